// internal/backendtest/session.go

package backendtest

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/imadgeboyega/kiekky-client/internal/api"
	"github.com/imadgeboyega/kiekky-client/internal/common/database"
	"github.com/imadgeboyega/kiekky-client/internal/securestore"
)

// Session is an API client wired to the backend with a signed-in user
type Session struct {
	API    *api.Client
	Secure securestore.Store
	KV     *database.MemoryStore
	UserID string
}

// BackendUserID reads the signed-in id the way the session manager does
func (s *Session) BackendUserID(ctx context.Context) (string, error) {
	id, _, err := securestore.Lookup(ctx, s.Secure, securestore.KeyBackendUserID)
	return id, err
}

// SignIn returns a client holding a valid token for userID. An empty userID gives a
// signed-out client.
func (b *Backend) SignIn(t testing.TB, userID string) *Session {
	t.Helper()

	kv := database.NewMemoryStore()
	secure := securestore.NewPlain(kv)
	ctx := context.Background()
	if userID != "" {
		if err := secure.Set(ctx, securestore.KeyAuthToken, b.Token(userID)); err != nil {
			t.Fatalf("store token: %v", err)
		}
		if err := secure.Set(ctx, securestore.KeyBackendUserID, userID); err != nil {
			t.Fatalf("store user id: %v", err)
		}
	}

	client := api.New(api.Options{
		BaseURL: b.URL(),
		Timeout: 5 * time.Second,
	}, secure, zap.NewNop())

	return &Session{API: client, Secure: secure, KV: kv, UserID: userID}
}
