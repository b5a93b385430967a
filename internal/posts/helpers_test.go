package posts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-client/internal/backendtest"
)

type fixture struct {
	backend *backendtest.Backend
	session *backendtest.Session
	repo    *HTTPRepository
	store   *Store
}

// newFixture starts a backend with users u1 (ada) and u2 (grace), signed in as viewer
func newFixture(t *testing.T, opts backendtest.Options, viewer string) *fixture {
	t.Helper()
	backend := backendtest.New(opts)
	t.Cleanup(backend.Close)
	backend.AddUser(backendtest.User{ID: "u1", Username: "ada", ClerkID: "clerk_ada"})
	backend.AddUser(backendtest.User{ID: "u2", Username: "grace", ClerkID: "clerk_grace"})

	session := backend.SignIn(t, viewer)
	return &fixture{
		backend: backend,
		session: session,
		repo:    NewHTTPRepository(session.API, nil),
		store:   NewStore(),
	}
}

// load seeds a post on the backend and puts the client copy in the store
func (f *fixture) load(t *testing.T, p backendtest.Post) *Post {
	t.Helper()
	seeded := f.backend.AddPost(p)
	post, err := f.repo.GetPostByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	post.SyncLiked(f.session.UserID)
	f.store.Upsert(post)
	return post
}
