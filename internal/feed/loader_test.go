package feed

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-client/internal/backendtest"
	"github.com/imadgeboyega/kiekky-client/internal/common/apperror"
	"github.com/imadgeboyega/kiekky-client/internal/posts"
)

const feedRoute = "GET /posts/all"

func newTestLoader(t *testing.T, n int) (*backendtest.Backend, *posts.Store, *Loader) {
	t.Helper()
	backend := backendtest.New(backendtest.Options{})
	t.Cleanup(backend.Close)
	backend.AddUser(backendtest.User{ID: "u1", Username: "ada"})
	for i := 0; i < n; i++ {
		likes := []string{}
		if i == 0 {
			likes = []string{"u1"}
		}
		backend.AddPost(backendtest.Post{Author: "u2", Likes: likes})
	}

	session := backend.SignIn(t, "u1")
	store := posts.NewStore()
	loader := NewLoader(posts.NewHTTPRepository(session.API, nil), store, session, 2, nil)
	return backend, store, loader
}

func TestLoader_Paginates(t *testing.T) {
	backend, _, loader := newTestLoader(t, 5)
	ctx := context.Background()

	require.NoError(t, loader.Refresh(ctx))
	st := loader.State()
	assert.Len(t, st.Posts, 2)
	assert.Equal(t, 1, st.Page)
	assert.True(t, st.HasMore)
	assert.Equal(t, 5, st.Total)

	require.NoError(t, loader.LoadMore(ctx))
	require.NoError(t, loader.LoadMore(ctx))
	st = loader.State()
	assert.Len(t, st.Posts, 5)
	assert.False(t, st.HasMore)

	// Exhausted: nothing is requested
	require.NoError(t, loader.LoadMore(ctx))
	assert.Equal(t, 3, backend.Calls(feedRoute))

	// The oldest post was seeded with the viewer's like
	assert.True(t, st.Posts[4].IsLiked)
	assert.False(t, st.Posts[0].IsLiked)
}

func TestLoader_RefreshReplacesList(t *testing.T) {
	backend, store, loader := newTestLoader(t, 3)
	ctx := context.Background()

	require.NoError(t, loader.Refresh(ctx))
	require.NoError(t, loader.LoadMore(ctx))
	assert.Len(t, loader.State().Posts, 3)

	newest := backend.AddPost(backendtest.Post{Author: "u1"})
	require.NoError(t, loader.Refresh(ctx))
	st := loader.State()
	require.Len(t, st.Posts, 2)
	assert.Equal(t, newest.ID, st.Posts[0].ID)
	assert.True(t, st.HasMore)

	// Local deletions show through the store
	store.Remove(newest.ID)
	assert.Len(t, loader.State().Posts, 1)
}

func TestLoader_DiscardsResponsesFromBeforeRefresh(t *testing.T) {
	backend, _, loader := newTestLoader(t, 3)
	ctx := context.Background()

	gate := backend.Hold(feedRoute)
	defer gate.Release()

	first := make(chan error, 1)
	go func() { first <- loader.Refresh(ctx) }()
	<-gate.Arrived

	assert.True(t, loader.State().Loading)
	require.NoError(t, loader.LoadMore(ctx), "load more is a no-op while loading")

	second := make(chan error, 1)
	go func() { second <- loader.Refresh(ctx) }()
	<-gate.Arrived

	gate.Release()
	assert.ErrorIs(t, <-first, ErrStale)
	require.NoError(t, <-second)

	st := loader.State()
	assert.False(t, st.Loading)
	assert.Len(t, st.Posts, 2)
	assert.Equal(t, 2, backend.Calls(feedRoute))
}

func TestLoader_FailureIsReported(t *testing.T) {
	backend, _, loader := newTestLoader(t, 3)
	backend.Fail(feedRoute, http.StatusInternalServerError, 1)
	ctx := context.Background()

	err := loader.Refresh(ctx)
	require.Error(t, err)
	st := loader.State()
	assert.False(t, st.Loading)
	assert.Equal(t, apperror.KindServer, apperror.KindOf(st.Err))
	assert.Empty(t, st.Posts)

	require.NoError(t, loader.Refresh(ctx))
	st = loader.State()
	assert.NoError(t, st.Err)
	assert.Len(t, st.Posts, 2)
}

// laggingRepo reads feed pages straight away but, once armed, returns them only when
// released
type laggingRepo struct {
	posts.Repository
	armed   atomic.Bool
	read    chan struct{}
	release chan struct{}
}

func (r *laggingRepo) GetFeed(ctx context.Context, page, limit int) (*posts.FeedPage, error) {
	result, err := r.Repository.GetFeed(ctx, page, limit)
	if r.armed.Load() {
		r.read <- struct{}{}
		select {
		case <-r.release:
		case <-ctx.Done():
		}
	}
	return result, err
}

func TestLoader_SlowPageKeepsLocalChanges(t *testing.T) {
	backend := backendtest.New(backendtest.Options{})
	t.Cleanup(backend.Close)
	backend.AddUser(backendtest.User{ID: "u1", Username: "ada"})
	older := backend.AddPost(backendtest.Post{Author: "u2"})
	newer := backend.AddPost(backendtest.Post{Author: "u2"})

	session := backend.SignIn(t, "u1")
	remote := posts.NewHTTPRepository(session.API, nil)
	repo := &laggingRepo{
		Repository: remote,
		read:       make(chan struct{}, 1),
		release:    make(chan struct{}),
	}
	store := posts.NewStore()
	loader := NewLoader(repo, store, session, 10, nil)
	likes := posts.NewLikeToggler(remote, store, session, nil)
	ctx := context.Background()

	require.NoError(t, loader.Refresh(ctx))
	require.Len(t, loader.State().Posts, 2)

	repo.armed.Store(true)
	done := make(chan error, 1)
	go func() { done <- loader.Refresh(ctx) }()
	<-repo.read

	liked, err := likes.Toggle(ctx, newer.ID)
	require.NoError(t, err)
	require.True(t, liked)
	require.True(t, store.Remove(older.ID))

	close(repo.release)
	require.NoError(t, <-done)

	st := loader.State()
	require.Len(t, st.Posts, 1, "a post removed locally is not brought back")
	assert.Equal(t, newer.ID, st.Posts[0].ID)
	assert.True(t, st.Posts[0].IsLiked)
	assert.Equal(t, []string{"u1"}, st.Posts[0].Likes)
}
