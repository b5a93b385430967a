package securestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-client/internal/common/database"
)

var testParams = &KeyParams{Memory: 1024, Iterations: 1, Parallelism: 1}

func TestEncrypted_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := database.NewMemoryStore()

	store, err := NewEncrypted(ctx, kv, "hunter2", testParams)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, KeyAuthToken, "tok-123"))

	raw, err := kv.Get(ctx, keyPrefix+KeyAuthToken)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "tok-123")

	value, err := store.Get(ctx, KeyAuthToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", value)

	// Reopening with the same passphrase reuses the stored salt
	reopened, err := NewEncrypted(ctx, kv, "hunter2", testParams)
	require.NoError(t, err)
	value, err = reopened.Get(ctx, KeyAuthToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", value)
}

func TestEncrypted_WrongPassphrase(t *testing.T) {
	ctx := context.Background()
	kv := database.NewMemoryStore()

	store, err := NewEncrypted(ctx, kv, "right", testParams)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, KeyBackendUserID, "u1"))

	other, err := NewEncrypted(ctx, kv, "wrong", testParams)
	require.NoError(t, err)
	_, err = other.Get(ctx, KeyBackendUserID)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = NewEncrypted(ctx, kv, "", testParams)
	assert.ErrorIs(t, err, ErrEmptyPassphrase)
}

func TestClearSession(t *testing.T) {
	ctx := context.Background()
	store := NewPlain(database.NewMemoryStore())

	require.NoError(t, store.Set(ctx, KeyAuthToken, "tok"))
	require.NoError(t, store.Set(ctx, KeyBackendUserID, "u1"))

	require.NoError(t, ClearSession(ctx, store))

	_, ok, err := Lookup(ctx, store, KeyAuthToken)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = Lookup(ctx, store, KeyBackendUserID)
	require.NoError(t, err)
	assert.False(t, ok)
}
