package comments

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-client/internal/backendtest"
	"github.com/imadgeboyega/kiekky-client/internal/common/apperror"
	"github.com/imadgeboyega/kiekky-client/internal/posts"
)

const commentRoute = "POST /posts/comment/{id}"

type composerFixture struct {
	backend  *backendtest.Backend
	postID   string
	tree     *Tree
	composer *Composer
}

func newComposerFixture(t *testing.T) *composerFixture {
	t.Helper()
	backend := backendtest.New(backendtest.Options{})
	t.Cleanup(backend.Close)
	backend.AddUser(backendtest.User{ID: "u1", Username: "ada"})
	backend.AddUser(backendtest.User{ID: "u2", Username: "grace"})

	post := backend.AddPost(backendtest.Post{Author: "u2"})
	backend.AddComment(post.ID, backendtest.Comment{
		ID:      "C1",
		Author:  backendtest.CommentAuthor{ID: "u2", Username: "grace"},
		Content: "great shot",
	})

	session := backend.SignIn(t, "u1")
	repo := posts.NewHTTPRepository(session.API, nil)
	list, err := repo.GetPostComments(context.Background(), post.ID)
	require.NoError(t, err)

	tree := Normalize(list)
	return &composerFixture{
		backend:  backend,
		postID:   post.ID,
		tree:     tree,
		composer: NewComposer(post.ID, tree, repo, nil),
	}
}

func TestComposer_ReplyLandsUnderParent(t *testing.T) {
	f := newComposerFixture(t)

	require.NoError(t, f.composer.StartReply("C1"))
	target := f.composer.ReplyingTo()
	require.NotNil(t, target)
	assert.Equal(t, "grace", target.Username)

	f.composer.SetText("  nice!  ")
	created, err := f.composer.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "nice!", created.Content)

	c1, ok := f.tree.Find("C1")
	require.True(t, ok)
	require.Len(t, c1.Replies, 1)
	assert.Equal(t, "nice!", c1.Replies[0].Content)
	assert.Equal(t, "ada", c1.Replies[0].Author.Username)

	assert.Empty(t, f.composer.Text())
	assert.Nil(t, f.composer.ReplyingTo())
}

func TestComposer_TopLevelGoesFirst(t *testing.T) {
	f := newComposerFixture(t)

	f.composer.SetText("hello")
	created, err := f.composer.Submit(context.Background())
	require.NoError(t, err)

	top := f.tree.TopLevel()
	require.Len(t, top, 2)
	assert.Equal(t, created.ID, top[0].ID)
	assert.Nil(t, top[0].ParentComment)
}

func TestComposer_BlankTextSendsNothing(t *testing.T) {
	f := newComposerFixture(t)

	f.composer.SetText(" \n\t ")
	_, err := f.composer.Submit(context.Background())
	assert.ErrorIs(t, err, ErrEmptyComment)
	assert.Equal(t, "Comment cannot be empty", apperror.UserMessage(err))
	assert.Equal(t, 0, f.backend.Calls(commentRoute))
	assert.Equal(t, 1, f.tree.Len())
}

func TestComposer_FailureKeepsText(t *testing.T) {
	f := newComposerFixture(t)
	f.backend.Fail(commentRoute, http.StatusInternalServerError, 1)

	require.NoError(t, f.composer.StartReply("C1"))
	f.composer.SetText("nice!")
	_, err := f.composer.Submit(context.Background())
	require.Error(t, err)

	assert.Equal(t, "nice!", f.composer.Text())
	require.NotNil(t, f.composer.ReplyingTo())
	assert.Equal(t, 1, f.tree.Len())

	// Retry succeeds with the preserved input
	_, err = f.composer.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.tree.Len())
}

func TestComposer_ReplyToUnknownComment(t *testing.T) {
	f := newComposerFixture(t)

	assert.ErrorIs(t, f.composer.StartReply("missing"), ErrParentNotFound)
	assert.Nil(t, f.composer.ReplyingTo())

	require.NoError(t, f.composer.StartReply("C1"))
	f.composer.CancelReply()
	assert.Nil(t, f.composer.ReplyingTo())
}
