// internal/auth/service.go
// Backend session lifecycle: exchange the identity provider user for a backend token,
// persist it in the secure store, reuse it while it is valid.

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/imadgeboyega/kiekky-client/internal/common/apperror"
	"github.com/imadgeboyega/kiekky-client/internal/common/logger"
	"github.com/imadgeboyega/kiekky-client/internal/common/utils"
	"github.com/imadgeboyega/kiekky-client/internal/securestore"
)

// Common errors
var (
	ErrNoToken     = apperror.New(apperror.KindServer, "login response did not include a token")
	ErrNoIdentity  = apperror.Validation("identity user is required")
	ErrNotSignedIn = apperror.New(apperror.KindUnauthorized, "not signed in")
)

// expiryLeeway keeps a token that is about to expire from being reused
const expiryLeeway = 30 * time.Second

// Requester is the part of api.Client the session manager needs
type Requester interface {
	Get(ctx context.Context, path string, query url.Values) (*utils.Envelope, error)
	Post(ctx context.Context, path string, body interface{}) (*utils.Envelope, error)
}

// Manager owns the backend session
type Manager struct {
	api    Requester
	store  securestore.Store
	logger *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	subscribers map[int]func(Session, bool)
	nextSubID   int
}

func NewManager(client Requester, store securestore.Store, log *zap.Logger) *Manager {
	return &Manager{
		api:         client,
		store:       store,
		logger:      logger.OrNop(log),
		now:         time.Now,
		subscribers: make(map[int]func(Session, bool)),
	}
}

// InitializeSession reuses a stored session when both keys are present and the token has
// not expired, otherwise it exchanges the identity user for a new one. On failure the
// stored credentials are cleared.
func (m *Manager) InitializeSession(ctx context.Context, identity *IdentityUser) (*Session, error) {
	if identity == nil {
		return nil, ErrNoIdentity
	}

	existing, ok, err := m.Current(ctx)
	if err != nil {
		m.logger.Warn("Failed to read stored session", zap.Error(err))
	}
	if ok && m.reusable(existing.Token) {
		m.logger.Debug("Using existing session", zap.String("user_id", existing.UserID))
		return existing, nil
	}

	session, err := m.login(ctx, identity)
	if err != nil {
		m.logger.Error("Session initialization failed", zap.String("clerk_id", identity.ID), zap.Error(err))
		if clearErr := securestore.ClearSession(context.WithoutCancel(ctx), m.store); clearErr != nil {
			m.logger.Error("Failed to clear credentials", zap.Error(clearErr))
		}
		m.broadcast(Session{}, false)
		return nil, err
	}

	m.broadcast(*session, true)
	return session, nil
}

func (m *Manager) login(ctx context.Context, identity *IdentityUser) (*Session, error) {
	req := &LoginRequest{
		ClerkID:   identity.ID,
		Email:     identity.Email,
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		Username:  identity.Username,
		ImageURL:  identity.ImageURL,
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	env, err := m.api.Post(ctx, "/clerk/login", req)
	if err != nil {
		return nil, err
	}

	var token string
	if _, err := env.Decode(&token, "token"); err != nil || token == "" {
		return nil, ErrNoToken
	}
	var user User
	if _, err := env.Decode(&user, "user"); err != nil {
		return nil, apperror.Wrap(apperror.KindServer, "malformed login response", err)
	}

	if err := m.store.Set(ctx, securestore.KeyAuthToken, token); err != nil {
		return nil, err
	}
	if user.ID != "" {
		if err := m.store.Set(ctx, securestore.KeyBackendUserID, user.ID); err != nil {
			return nil, err
		}
	}

	return &Session{Token: token, UserID: user.ID}, nil
}

// reusable reports whether a stored token may be used again. Tokens that are not JWTs
// carry no expiry and are reused.
func (m *Manager) reusable(token string) bool {
	claims, err := utils.DecodeClaims(token)
	if err != nil {
		return errors.Is(err, utils.ErrOpaqueToken)
	}
	return !claims.Expired(m.now(), expiryLeeway)
}

// Current returns the stored session. ok is false unless both keys are present.
func (m *Manager) Current(ctx context.Context) (*Session, bool, error) {
	token, hasToken, err := securestore.Lookup(ctx, m.store, securestore.KeyAuthToken)
	if err != nil {
		return nil, false, err
	}
	userID, hasUser, err := securestore.Lookup(ctx, m.store, securestore.KeyBackendUserID)
	if err != nil {
		return nil, false, err
	}
	if !hasToken || !hasUser {
		return nil, false, nil
	}
	return &Session{Token: token, UserID: userID}, true, nil
}

// BackendUserID returns the signed-in user's backend id, or "" when signed out
func (m *Manager) BackendUserID(ctx context.Context) (string, error) {
	userID, _, err := securestore.Lookup(ctx, m.store, securestore.KeyBackendUserID)
	return userID, err
}

// CurrentUser fetches the signed-in user's backend record
func (m *Manager) CurrentUser(ctx context.Context) (*User, error) {
	userID, err := m.BackendUserID(ctx)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ErrNotSignedIn
	}

	env, err := m.api.Get(ctx, "/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}
	var user User
	found, err := env.Decode(&user, "data", "Data", "user")
	if err != nil {
		return nil, apperror.Wrap(apperror.KindServer, "malformed user response", err)
	}
	if !found {
		return nil, apperror.New(apperror.KindNotFound, "user not found")
	}
	return &user, nil
}

// IsAuthenticated asks the backend whether the stored token is still accepted
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	token, ok, err := securestore.Lookup(ctx, m.store, securestore.KeyAuthToken)
	if err != nil || !ok || token == "" {
		return false
	}

	env, err := m.api.Get(ctx, "/auth/verify", nil)
	if err != nil {
		m.logger.Debug("Token verification failed", zap.Error(err))
		return false
	}
	var success bool
	if _, err := env.Decode(&success, "success"); err != nil {
		return false
	}
	return success
}

// SignOut removes the stored session
func (m *Manager) SignOut(ctx context.Context) error {
	if err := securestore.ClearSession(ctx, m.store); err != nil {
		return err
	}
	m.broadcast(Session{}, false)
	return nil
}

// CreateUser registers a backend user. A 500 answer is tolerated and reported as a nil
// user because the backend uses it for already-registered users.
func (m *Manager) CreateUser(ctx context.Context, req *NewUser) (*User, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	env, err := m.api.Post(ctx, "/clerk/createUser", req)
	if err != nil {
		var appErr *apperror.Error
		if errors.As(err, &appErr) && appErr.Status == http.StatusInternalServerError {
			m.logger.Warn("Backend refused user creation", zap.String("clerk_id", req.ClerkID), zap.Error(err))
			return nil, nil
		}
		return nil, err
	}

	var user User
	if _, err := env.Decode(&user, "user", "data"); err != nil {
		return nil, apperror.Wrap(apperror.KindServer, "malformed user response", err)
	}
	return &user, nil
}

// Subscribe registers fn for session changes and returns a function that removes it
func (m *Manager) Subscribe(fn func(Session, bool)) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// NotifySignedOut tells subscribers the session is gone. The API client calls it after
// a 401 has cleared the store.
func (m *Manager) NotifySignedOut() {
	m.broadcast(Session{}, false)
}

func (m *Manager) broadcast(session Session, signedIn bool) {
	m.mu.Lock()
	subs := make([]func(Session, bool), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(session, signedIn)
	}
}
