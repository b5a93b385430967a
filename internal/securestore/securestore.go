// internal/securestore/securestore.go
// Persisted credentials: the backend bearer token and the backend user id

package securestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/imadgeboyega/kiekky-client/internal/common/database"
)

// Fixed keys shared with the mobile client
const (
	KeyAuthToken     = "auth_token"
	KeyBackendUserID = "mongo_user_id"
)

const keyPrefix = "secure_"

// ErrNotFound is returned when no value is stored under the key
var ErrNotFound = database.ErrNotFound

// Store holds small secret strings
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Plain stores values as-is. Used with the memory backend and in tests.
type Plain struct {
	kv database.Store
}

// NewPlain wraps a key/value store without encryption
func NewPlain(kv database.Store) *Plain {
	return &Plain{kv: kv}
}

func (p *Plain) Get(ctx context.Context, key string) (string, error) {
	value, err := p.kv.Get(ctx, keyPrefix+key)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

func (p *Plain) Set(ctx context.Context, key, value string) error {
	return p.kv.Set(ctx, keyPrefix+key, []byte(value), 0)
}

func (p *Plain) Delete(ctx context.Context, key string) error {
	return p.kv.Delete(ctx, keyPrefix+key)
}

// Lookup returns the stored value and whether it exists. Missing keys are not errors.
func Lookup(ctx context.Context, s Store, key string) (string, bool, error) {
	value, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, value != "", nil
}

// ClearSession removes both session keys. Both deletes are attempted.
func ClearSession(ctx context.Context, s Store) error {
	errToken := s.Delete(ctx, KeyAuthToken)
	errUser := s.Delete(ctx, KeyBackendUserID)
	if err := errors.Join(errToken, errUser); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
