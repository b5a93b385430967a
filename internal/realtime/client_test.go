package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-client/internal/backendtest"
	"github.com/imadgeboyega/kiekky-client/internal/posts"
)

func TestClient_AppliesBackendEvents(t *testing.T) {
	backend := backendtest.New(backendtest.Options{})
	defer backend.Close()
	backend.AddUser(backendtest.User{ID: "u1", Username: "ada"})
	backend.AddUser(backendtest.User{ID: "u2", Username: "grace"})
	seeded := backend.AddPost(backendtest.Post{Author: "u1"})

	me := backend.SignIn(t, "u1")
	store := posts.NewStore()
	store.Upsert(&posts.Post{ID: seeded.ID, Author: "u1"})

	client := NewClient(backend.WebSocketURL(), me.Secure, NewDispatcher(store, me, nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Connect(ctx) }()

	require.Eventually(t, func() bool { return backend.Connections() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, client.Connected, time.Second, 10*time.Millisecond)

	// Another user likes the post through the API
	other := backend.SignIn(t, "u2")
	_, err := posts.NewHTTPRepository(other.API, nil).ToggleLike(context.Background(), seeded.ID)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		p, ok := store.Get(seeded.ID)
		return ok && p.HasLike("u2")
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, backend.Broadcast("post_deleted", map[string]string{"postId": seeded.ID}))
	assert.Eventually(t, func() bool { return store.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not close after cancel")
	}
	assert.False(t, client.Connected())
}

func TestClient_RejectsMissingToken(t *testing.T) {
	backend := backendtest.New(backendtest.Options{})
	defer backend.Close()

	signedOut := backend.SignIn(t, "")
	client := NewClient(backend.WebSocketURL(), signedOut.Secure, NewDispatcher(posts.NewStore(), signedOut, nil), nil)

	err := client.Connect(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, backend.Connections())
}

func TestClient_RunWithoutEndpoint(t *testing.T) {
	client := NewClient("", nil, nil, nil)
	assert.ErrorIs(t, client.Run(context.Background()), ErrNoEndpoint)
}

func TestClient_RunStopsOnCancel(t *testing.T) {
	backend := backendtest.New(backendtest.Options{})
	defer backend.Close()
	backend.AddUser(backendtest.User{ID: "u1"})
	me := backend.SignIn(t, "u1")

	client := NewClient(backend.WebSocketURL(), me.Secure, NewDispatcher(posts.NewStore(), me, nil), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	require.Eventually(t, func() bool { return backend.Connections() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
