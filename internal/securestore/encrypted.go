// internal/securestore/encrypted.go
// Encryption at rest with an argon2id-derived key and NaCl secretbox

package securestore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/imadgeboyega/kiekky-client/internal/common/database"
)

const (
	saltKey    = "secure__salt"
	nonceSize  = 24
	keySize    = 32
	saltLength = 16
)

var (
	ErrEmptyPassphrase = errors.New("passphrase is required")
	ErrDecrypt         = errors.New("failed to decrypt stored value")
)

// KeyParams are the argon2id cost parameters
type KeyParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
}

// DefaultKeyParams are sized for an interactive CLI start-up
var DefaultKeyParams = &KeyParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
}

// Encrypted seals every value before it reaches the backing store
type Encrypted struct {
	kv  database.Store
	key [keySize]byte
}

// NewEncrypted derives the sealing key from passphrase. The salt is created on first use
// and kept in the backing store.
func NewEncrypted(ctx context.Context, kv database.Store, passphrase string, params *KeyParams) (*Encrypted, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if params == nil {
		params = DefaultKeyParams
	}

	salt, err := loadOrCreateSalt(ctx, kv)
	if err != nil {
		return nil, err
	}

	e := &Encrypted{kv: kv}
	derived := argon2.IDKey([]byte(passphrase), salt, params.Iterations, params.Memory, params.Parallelism, keySize)
	copy(e.key[:], derived)
	return e, nil
}

func (e *Encrypted) Get(ctx context.Context, key string) (string, error) {
	sealed, err := e.kv.Get(ctx, keyPrefix+key)
	if err != nil {
		return "", err
	}
	if len(sealed) < nonceSize {
		return "", ErrDecrypt
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	opened, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &e.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(opened), nil
}

func (e *Encrypted) Set(ctx context.Context, key, value string) error {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(value), &nonce, &e.key)
	return e.kv.Set(ctx, keyPrefix+key, sealed, 0)
}

func (e *Encrypted) Delete(ctx context.Context, key string) error {
	return e.kv.Delete(ctx, keyPrefix+key)
}

func loadOrCreateSalt(ctx context.Context, kv database.Store) ([]byte, error) {
	salt, err := kv.Get(ctx, saltKey)
	if err == nil && len(salt) == saltLength {
		return salt, nil
	}
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}

	salt = make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if err := kv.Set(ctx, saltKey, salt, 0); err != nil {
		return nil, fmt.Errorf("failed to store salt: %w", err)
	}
	return salt, nil
}
