package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("KIEKKY_PLATFORM", "")
	t.Setenv("REQUEST_TIMEOUT", "")
	t.Setenv("POSTS_CACHE_TTL", "bogus")

	cfg := Load()

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, PlatformIOS, cfg.Platform)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Minute, cfg.PostsCacheTTL)
	assert.Equal(t, 10, cfg.FeedPageSize)
	require.NoError(t, cfg.Validate())
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		platform string
		apiURL   string
		want     string
	}{
		{"ios simulator", "development", PlatformIOS, "", "http://localhost:5001/api"},
		{"android emulator", "development", PlatformAndroidEmulator, "", "http://10.0.2.2:5001/api"},
		{"android device", "development", PlatformAndroidDevice, "", "http://192.168.1.10:5001/api"},
		{"web uses localhost", "development", PlatformWeb, "", "http://localhost:5001/api"},
		{"production", "production", PlatformAndroidDevice, "https://api.kiekky.com/", "https://api.kiekky.com/api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Environment:     tt.env,
				Platform:        tt.platform,
				APIURL:          tt.apiURL,
				DevHostIOS:      "http://localhost:5001",
				DevHostEmulator: "http://10.0.2.2:5001",
				DevHostDevice:   "http://192.168.1.10:5001",
			}
			assert.Equal(t, tt.want, cfg.BaseURL())
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Environment:     "development",
			Platform:        PlatformIOS,
			RequestTimeout:  10 * time.Second,
			StateBackend:    StateBackendFile,
			StateDir:        "/tmp/kiekky",
			PostsCacheTTL:   5 * time.Minute,
			AuthorCacheSize: 10,
			FeedPageSize:    10,
		}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.Environment = "production"
	assert.EqualError(t, cfg.Validate(), "API URL is required for production")

	cfg = base()
	cfg.Platform = "symbian"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.StateBackend = "etcd"
	assert.EqualError(t, cfg.Validate(), "invalid state backend: etcd")

	cfg = base()
	cfg.FeedPageSize = 0
	assert.Error(t, cfg.Validate())
}
