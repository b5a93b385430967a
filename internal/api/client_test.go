package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-client/internal/api"
	"github.com/imadgeboyega/kiekky-client/internal/backendtest"
	"github.com/imadgeboyega/kiekky-client/internal/common/apperror"
	"github.com/imadgeboyega/kiekky-client/internal/common/database"
	"github.com/imadgeboyega/kiekky-client/internal/securestore"
)

func newStore(t *testing.T, token, userID string) securestore.Store {
	t.Helper()
	store := securestore.NewPlain(database.NewMemoryStore())
	ctx := context.Background()
	if token != "" {
		require.NoError(t, store.Set(ctx, securestore.KeyAuthToken, token))
	}
	if userID != "" {
		require.NoError(t, store.Set(ctx, securestore.KeyBackendUserID, userID))
	}
	return store
}

func TestClient_AttachesBearerExceptOnPublicEndpoints(t *testing.T) {
	headers := make(chan http.Header, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	client := api.New(api.Options{BaseURL: srv.URL}, newStore(t, "tok-1", "u1"), nil)
	ctx := context.Background()

	_, err := client.Get(ctx, "/posts/all", nil)
	require.NoError(t, err)
	h := <-headers
	assert.Equal(t, "Bearer tok-1", h.Get("Authorization"))
	assert.NotEmpty(t, h.Get("X-Request-ID"))

	_, err = client.Post(ctx, "/clerk/login", map[string]string{"clerkId": "c1"})
	require.NoError(t, err)
	h = <-headers
	assert.Empty(t, h.Get("Authorization"))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
}

func TestClient_UnauthorizedClearsSession(t *testing.T) {
	backend := backendtest.New(backendtest.Options{})
	defer backend.Close()
	user := backend.AddUser(backendtest.User{Username: "ada"})

	store := newStore(t, backend.Token(user.ID), user.ID)
	var hookCalls int32
	client := api.New(api.Options{
		BaseURL:        backend.URL(),
		OnUnauthorized: func() { atomic.AddInt32(&hookCalls, 1) },
	}, store, nil)

	ctx := context.Background()
	_, err := client.Get(ctx, "/auth/verify", nil)
	require.NoError(t, err)

	backend.RevokeTokens()
	_, err = client.Get(ctx, "/auth/verify", nil)
	require.Error(t, err)
	assert.True(t, apperror.IsUnauthorized(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hookCalls))

	_, ok, err := securestore.Lookup(ctx, store, securestore.KeyAuthToken)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = securestore.Lookup(ctx, store, securestore.KeyBackendUserID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_MapsStatusToKind(t *testing.T) {
	tests := []struct {
		status int
		kind   apperror.Kind
	}{
		{http.StatusBadRequest, apperror.KindValidation},
		{http.StatusUnprocessableEntity, apperror.KindValidation},
		{http.StatusForbidden, apperror.KindForbidden},
		{http.StatusNotFound, apperror.KindNotFound},
		{http.StatusConflict, apperror.KindConflict},
		{http.StatusInternalServerError, apperror.KindServer},
		{http.StatusBadGateway, apperror.KindServer},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"success":false,"message":"backend says no"}`))
			}))
			defer srv.Close()

			client := api.New(api.Options{BaseURL: srv.URL}, newStore(t, "tok", "u1"), nil)
			_, err := client.Get(context.Background(), "/posts/p1", nil)
			require.Error(t, err)

			var appErr *apperror.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.kind, appErr.Kind)
			assert.Equal(t, tt.status, appErr.Status)
			assert.Equal(t, "backend says no", appErr.Message)
		})
	}
}

func TestClient_TimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := api.New(api.Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, newStore(t, "tok", "u1"), nil)
	_, err := client.Get(context.Background(), "/posts/all", nil)
	require.Error(t, err)
	assert.True(t, apperror.IsNetwork(err))
	assert.Equal(t, "Network error. Please check your connection and try again.", apperror.UserMessage(err))
}

func TestClient_PostMultipart(t *testing.T) {
	backend := backendtest.New(backendtest.Options{})
	defer backend.Close()
	user := backend.AddUser(backendtest.User{Username: "ada"})

	client := api.New(api.Options{BaseURL: backend.URL()}, newStore(t, backend.Token(user.ID), user.ID), nil)

	form := api.NewMultipartForm().
		AddField("caption", "sunset").
		AddField("tags", `["sky"]`).
		AddFile(api.FormFile{Field: "image", Filename: "a.png", ContentType: "image/png", Data: []byte("png-bytes")})

	env, err := client.PostMultipart(context.Background(), "/posts/create", form)
	require.NoError(t, err)
	assert.True(t, env.Succeeded())

	record := backend.LastCreate()
	require.NotNil(t, record)
	assert.Equal(t, "sunset", record.Fields["caption"])
	assert.Equal(t, "a.png", record.ImageFilename)
	assert.Equal(t, "image/png", record.ImageType)
	assert.Equal(t, len("png-bytes"), record.ImageSize)
}
