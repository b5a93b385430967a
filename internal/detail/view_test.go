package detail

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-client/internal/authors"
	"github.com/imadgeboyega/kiekky-client/internal/backendtest"
	"github.com/imadgeboyega/kiekky-client/internal/comments"
	"github.com/imadgeboyega/kiekky-client/internal/media"
	"github.com/imadgeboyega/kiekky-client/internal/posts"
)

const deleteRoute = "DELETE /posts/{id}"

type registry struct {
	mu         sync.Mutex
	trees      map[string]*comments.Tree
	registered int
}

func (r *registry) Register(postID string, tree *comments.Tree) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.trees == nil {
		r.trees = make(map[string]*comments.Tree)
	}
	r.trees[postID] = tree
	r.registered++
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.trees, postID)
	}
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trees)
}

type fixture struct {
	backend *backendtest.Backend
	deps    Deps
	trees   *registry
	post    *posts.Post
}

// newFixture seeds a post by author with one comment and signs in as viewer
func newFixture(t *testing.T, viewer, author string) *fixture {
	t.Helper()
	backend := backendtest.New(backendtest.Options{})
	t.Cleanup(backend.Close)
	backend.AddUser(backendtest.User{ID: "u1", Username: "ada"})
	backend.AddUser(backendtest.User{ID: "u2", Username: "grace"})

	seeded := backend.AddPost(backendtest.Post{Author: author, Content: "sunset", Likes: []string{"u2"}})
	backend.AddComment(seeded.ID, backendtest.Comment{
		ID:      "C1",
		Author:  backendtest.CommentAuthor{ID: "u2", Username: "grace"},
		Content: "great shot",
	})

	session := backend.SignIn(t, viewer)
	repo := posts.NewHTTPRepository(session.API, nil)
	store := posts.NewStore()
	trees := &registry{}

	return &fixture{
		backend: backend,
		trees:   trees,
		post:    &posts.Post{ID: seeded.ID, Author: author, Content: "sunset"},
		deps: Deps{
			Posts:   posts.NewService(repo, store, media.NewLoader(media.LoaderConfig{}), session, nil),
			Repo:    repo,
			Store:   store,
			Likes:   posts.NewLikeToggler(repo, store, session, nil),
			Authors: authors.NewResolver(session.API, 8, nil),
			Viewer:  session,
			Trees:   trees,
		},
	}
}

func (f *fixture) open(t *testing.T) *View {
	t.Helper()
	v := Open(context.Background(), f.deps, f.post)
	t.Cleanup(v.Close)
	return v
}

func TestView_LoadsAuthorPostAndComments(t *testing.T) {
	f := newFixture(t, "u1", "u2")
	v := f.open(t)

	require.NoError(t, v.Wait(context.Background()))

	assert.Equal(t, "grace", v.Author().Name)
	post, ok := v.Post()
	require.True(t, ok)
	assert.Equal(t, []string{"u2"}, post.Likes)
	assert.False(t, post.IsLiked)

	assert.Equal(t, 1, v.Tree().Len())
	assert.Equal(t, 1, f.trees.count())

	v.Close()
	assert.True(t, v.Closed())
	assert.Equal(t, 0, f.trees.count())
}

func TestView_ActionsDependOnOwnership(t *testing.T) {
	owner := newFixture(t, "u1", "u1").open(t)
	assert.True(t, owner.IsOwner())
	assert.Equal(t, []Action{ActionEdit, ActionDelete, ActionReport, ActionShare}, owner.Actions())

	other := newFixture(t, "u1", "u2").open(t)
	assert.False(t, other.IsOwner())
	assert.Equal(t, []Action{ActionReport, ActionShare}, other.Actions())

	signedOut := newFixture(t, "", "u2").open(t)
	assert.False(t, signedOut.IsOwner())
}

func TestView_DeleteByNonOwner(t *testing.T) {
	f := newFixture(t, "u1", "u2")
	v := f.open(t)
	require.NoError(t, v.Wait(context.Background()))

	asked := false
	err := v.Delete(context.Background(), ConfirmFunc(func(context.Context, string) (bool, error) {
		asked = true
		return true, nil
	}))
	assert.ErrorIs(t, err, posts.ErrNotOwner)
	assert.False(t, asked)
	assert.Equal(t, 0, f.backend.Calls(deleteRoute))
	assert.Equal(t, 1, f.deps.Store.Len())
	assert.False(t, v.Closed())
}

func TestView_DeleteDeclined(t *testing.T) {
	f := newFixture(t, "u1", "u1")
	v := f.open(t)

	var prompt string
	err := v.Delete(context.Background(), ConfirmFunc(func(_ context.Context, p string) (bool, error) {
		prompt = p
		return false, nil
	}))
	assert.True(t, IsDeclined(err))
	assert.Equal(t, "Are you sure you want to delete this post?", prompt)
	assert.Equal(t, 0, f.backend.Calls(deleteRoute))
	assert.False(t, v.Closed())
}

func TestView_DeleteConfirmed(t *testing.T) {
	f := newFixture(t, "u1", "u1")
	v := f.open(t)
	require.NoError(t, v.Wait(context.Background()))

	err := v.Delete(context.Background(), ConfirmFunc(func(context.Context, string) (bool, error) {
		return true, nil
	}))
	require.NoError(t, err)

	assert.True(t, v.Closed())
	assert.Equal(t, 0, f.deps.Store.Len())
	_, ok := f.backend.Post(f.post.ID)
	assert.False(t, ok)

	_, err = v.ToggleLike(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, "This post is no longer open", UserMessage(err))
}

func TestView_CloseDropsLateResults(t *testing.T) {
	f := newFixture(t, "u1", "u2")
	commentsGate := f.backend.Hold("GET /posts/comment/{id}")
	authorGate := f.backend.Hold("GET /users/{id}")
	defer commentsGate.Release()
	defer authorGate.Release()

	v := Open(context.Background(), f.deps, f.post)
	<-commentsGate.Arrived
	<-authorGate.Arrived

	v.Close()
	commentsGate.Release()
	authorGate.Release()
	require.NoError(t, v.Wait(context.Background()))

	assert.Equal(t, 0, v.Tree().Len())
	assert.Equal(t, authors.Placeholder(), v.Author())

	_, err := v.Edit(context.Background(), "late", "")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestView_EditAndLike(t *testing.T) {
	f := newFixture(t, "u1", "u1")
	v := f.open(t)
	require.NoError(t, v.Wait(context.Background()))
	ctx := context.Background()

	updated, err := v.Edit(ctx, "sunrise", "Lagos")
	require.NoError(t, err)
	assert.Equal(t, "sunrise", updated.Content)

	liked, err := v.ToggleLike(ctx)
	require.NoError(t, err)
	assert.True(t, liked)
	post, _ := v.Post()
	assert.ElementsMatch(t, []string{"u1", "u2"}, post.Likes)

	likers, err := v.Likers(ctx)
	require.NoError(t, err)
	require.Len(t, likers, 2)
	assert.Equal(t, "u2", likers[0].UserID)
	assert.Equal(t, "grace", likers[0].Name)
	assert.Equal(t, "ada", likers[1].Name)
}

func TestView_EditByNonOwner(t *testing.T) {
	f := newFixture(t, "u1", "u2")
	v := f.open(t)

	_, err := v.Edit(context.Background(), "hijack", "")
	assert.ErrorIs(t, err, posts.ErrNotOwner)
	assert.Equal(t, 0, f.backend.Calls("PATCH /posts/update/{id}"))
}

func TestView_ComposerFeedsTree(t *testing.T) {
	f := newFixture(t, "u1", "u2")
	v := f.open(t)
	require.NoError(t, v.Wait(context.Background()))

	composer := v.Composer()
	require.NoError(t, composer.StartReply("C1"))
	composer.SetText("nice!")
	_, err := composer.Submit(context.Background())
	require.NoError(t, err)

	c1, ok := v.Tree().Find("C1")
	require.True(t, ok)
	require.Len(t, c1.Replies, 1)
	assert.Equal(t, "nice!", c1.Replies[0].Content)
}

// laggingRepo reads the post from the backend straight away but returns it only once
// released, so the snapshot predates anything done in between
type laggingRepo struct {
	posts.Repository
	read    chan struct{}
	release chan struct{}
}

func (r *laggingRepo) GetPostByID(ctx context.Context, postID string) (*posts.Post, error) {
	post, err := r.Repository.GetPostByID(ctx, postID)
	r.read <- struct{}{}
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return post, err
}

func TestView_SlowRefreshKeepsLikeMadeMeanwhile(t *testing.T) {
	f := newFixture(t, "u1", "u2")
	f.post.Likes = []string{"u2"}
	repo := &laggingRepo{
		Repository: f.deps.Repo,
		read:       make(chan struct{}, 1),
		release:    make(chan struct{}),
	}
	f.deps.Repo = repo
	v := f.open(t)
	ctx := context.Background()

	select {
	case <-repo.read:
	case <-time.After(5 * time.Second):
		t.Fatal("post refresh never reached the backend")
	}

	liked, err := v.ToggleLike(ctx)
	require.NoError(t, err)
	require.True(t, liked)

	close(repo.release)
	require.NoError(t, v.Wait(ctx))

	post, ok := v.Post()
	require.True(t, ok)
	assert.True(t, post.IsLiked)
	assert.ElementsMatch(t, []string{"u2", "u1"}, post.Likes)

	server, _ := f.backend.Post(post.ID)
	assert.ElementsMatch(t, server.Likes, post.Likes)
}

func TestView_RefreshAppliesWhenNothingChanged(t *testing.T) {
	f := newFixture(t, "u1", "u2")
	f.post.Content = "stale caption"
	v := f.open(t)

	require.NoError(t, v.Wait(context.Background()))
	post, ok := v.Post()
	require.True(t, ok)
	assert.Equal(t, "sunset", post.Content)
	assert.Equal(t, []string{"u2"}, post.Likes)
}
