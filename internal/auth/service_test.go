package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-client/internal/backendtest"
	"github.com/imadgeboyega/kiekky-client/internal/common/apperror"
	"github.com/imadgeboyega/kiekky-client/internal/securestore"
)

func signedToken(t *testing.T, userID string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     exp.Unix(),
	})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func identity() *IdentityUser {
	return &IdentityUser{ID: "clerk_1", Email: "ada@example.com", Username: "ada", ImageURL: "https://img/ada.png"}
}

func TestInitializeSession_LogsInAndPersists(t *testing.T) {
	backend := backendtest.New(backendtest.Options{})
	defer backend.Close()
	s := backend.SignIn(t, "")
	m := NewManager(s.API, s.Secure, nil)

	var events []bool
	m.Subscribe(func(_ Session, signedIn bool) { events = append(events, signedIn) })

	ctx := context.Background()
	session, err := m.InitializeSession(ctx, identity())
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.NotEmpty(t, session.UserID)
	assert.Equal(t, 1, backend.Calls("POST /clerk/login"))
	assert.Equal(t, []bool{true}, events)

	stored, ok, err := m.Current(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, *session, *stored)

	assert.True(t, m.IsAuthenticated(ctx))
	user, err := m.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Username)
}

func TestInitializeSession_ReusesStoredSession(t *testing.T) {
	backend := backendtest.New(backendtest.Options{})
	defer backend.Close()
	user := backend.AddUser(backendtest.User{ClerkID: "clerk_1", Username: "ada"})
	s := backend.SignIn(t, user.ID)
	m := NewManager(s.API, s.Secure, nil)

	session, err := m.InitializeSession(context.Background(), identity())
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)
	assert.Zero(t, backend.Calls("POST /clerk/login"), "opaque stored token is reused")
}

func TestInitializeSession_ExpiredTokenLogsInAgain(t *testing.T) {
	backend := backendtest.New(backendtest.Options{})
	defer backend.Close()
	user := backend.AddUser(backendtest.User{ClerkID: "clerk_1", Username: "ada"})
	s := backend.SignIn(t, user.ID)
	m := NewManager(s.API, s.Secure, nil)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	// Still valid: reused
	fresh := signedToken(t, user.ID, now.Add(time.Hour))
	require.NoError(t, s.Secure.Set(ctx, securestore.KeyAuthToken, fresh))
	session, err := m.InitializeSession(ctx, identity())
	require.NoError(t, err)
	assert.Equal(t, fresh, session.Token)
	assert.Zero(t, backend.Calls("POST /clerk/login"))

	// Inside the leeway counts as expired
	stale := signedToken(t, user.ID, now.Add(10*time.Second))
	require.NoError(t, s.Secure.Set(ctx, securestore.KeyAuthToken, stale))
	session, err = m.InitializeSession(ctx, identity())
	require.NoError(t, err)
	assert.NotEqual(t, stale, session.Token)
	assert.Equal(t, user.ID, session.UserID)
	assert.Equal(t, 1, backend.Calls("POST /clerk/login"))
}

func TestInitializeSession_FailureClearsCredentials(t *testing.T) {
	backend := backendtest.New(backendtest.Options{})
	defer backend.Close()
	s := backend.SignIn(t, "")
	m := NewManager(s.API, s.Secure, nil)
	ctx := context.Background()

	// Half a session: a token without a user id is not reused
	require.NoError(t, s.Secure.Set(ctx, securestore.KeyAuthToken, "leftover"))
	backend.Fail("POST /clerk/login", http.StatusInternalServerError, 1)

	var signedOut bool
	m.Subscribe(func(_ Session, signedIn bool) { signedOut = !signedIn })

	_, err := m.InitializeSession(ctx, identity())
	require.Error(t, err)
	assert.Equal(t, apperror.KindServer, apperror.KindOf(err))
	assert.True(t, signedOut)

	_, ok, err := m.Current(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, hasToken, err := securestore.Lookup(ctx, s.Secure, securestore.KeyAuthToken)
	require.NoError(t, err)
	assert.False(t, hasToken)
}

func TestInitializeSession_RequiresIdentity(t *testing.T) {
	backend := backendtest.New(backendtest.Options{})
	defer backend.Close()
	s := backend.SignIn(t, "")
	m := NewManager(s.API, s.Secure, nil)

	_, err := m.InitializeSession(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoIdentity)

	_, err = m.InitializeSession(context.Background(), &IdentityUser{ID: "  "})
	assert.True(t, apperror.IsValidation(err))
	assert.Zero(t, backend.TotalCalls())
}

func TestCreateUser_ToleratesExistingUser(t *testing.T) {
	backend := backendtest.New(backendtest.Options{})
	defer backend.Close()
	s := backend.SignIn(t, "")
	m := NewManager(s.API, s.Secure, nil)
	ctx := context.Background()
	req := &NewUser{ClerkID: "clerk_9", Email: "grace@example.com", Username: "grace"}

	created, err := m.CreateUser(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "grace", created.Username)

	again, err := m.CreateUser(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestSignOut(t *testing.T) {
	backend := backendtest.New(backendtest.Options{})
	defer backend.Close()
	user := backend.AddUser(backendtest.User{Username: "ada"})
	s := backend.SignIn(t, user.ID)
	m := NewManager(s.API, s.Secure, nil)
	ctx := context.Background()

	require.NoError(t, m.SignOut(ctx))
	id, err := m.BackendUserID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.False(t, m.IsAuthenticated(ctx))
	_, err = m.CurrentUser(ctx)
	assert.ErrorIs(t, err, ErrNotSignedIn)
}
