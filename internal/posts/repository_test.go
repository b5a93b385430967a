package posts

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-client/internal/backendtest"
)

func TestHTTPRepository_FeedPagination(t *testing.T) {
	f := newFixture(t, backendtest.Options{}, "u1")
	for i := 0; i < 3; i++ {
		f.backend.AddPost(backendtest.Post{Author: "u2"})
	}
	ctx := context.Background()

	page, err := f.repo.GetFeed(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page.Posts, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, 3, page.Total)

	page, err = f.repo.GetFeed(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Posts, 1)
	assert.False(t, page.HasMore)
}

func TestHTTPRepository_CommentsAndReplies(t *testing.T) {
	f := newFixture(t, backendtest.Options{}, "u1")
	post := f.backend.AddPost(backendtest.Post{Author: "u2"})
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	top := f.backend.AddComment(post.ID, backendtest.Comment{
		Author:    backendtest.CommentAuthor{ID: "u2", Username: "grace"},
		Content:   "first",
		CreatedAt: base,
	})
	parent := top.ID
	f.backend.AddComment(post.ID, backendtest.Comment{
		Author:        backendtest.CommentAuthor{ID: "u1", Username: "ada"},
		Content:       "reply",
		ParentComment: &parent,
		CreatedAt:     base.Add(time.Minute),
	})
	ctx := context.Background()

	list, err := f.repo.GetPostComments(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "grace", list[0].Author.Username)
	require.Len(t, list[0].Replies, 1)
	assert.Equal(t, "reply", list[0].Replies[0].Content)
	assert.True(t, list[0].Replies[0].IsReply())

	replies, err := f.repo.GetCommentReplies(ctx, top.ID)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "u1", replies[0].Author.ID)

	added, err := f.repo.AddComment(ctx, post.ID, &CommentRequest{Content: "another", ParentComment: &parent})
	require.NoError(t, err)
	assert.Equal(t, post.ID, added.Post)
	assert.Equal(t, "ada", added.Author.Username)
	require.NotNil(t, added.ParentComment)
	assert.Equal(t, parent, *added.ParentComment)
}

func TestHTTPRepository_UserPostsDegradeToEmpty(t *testing.T) {
	f := newFixture(t, backendtest.Options{}, "u1")
	f.backend.AddPost(backendtest.Post{Author: "u1"})
	f.backend.AddPost(backendtest.Post{Author: "u2"})
	ctx := context.Background()

	list, err := f.repo.GetUserPosts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "u1", list[0].Author)

	f.backend.Fail("GET /posts/user/{id}", http.StatusInternalServerError, 1)
	list, err = f.repo.GetUserPosts(ctx, "u1")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestHTTPRepository_Likes(t *testing.T) {
	f := newFixture(t, backendtest.Options{}, "u1")
	post := f.backend.AddPost(backendtest.Post{Author: "u2", Likes: []string{"u2"}})
	ctx := context.Background()

	result, err := f.repo.ToggleLike(ctx, post.ID)
	require.NoError(t, err)
	require.NotNil(t, result.IsLiked)
	assert.True(t, *result.IsLiked)

	likes, err := f.repo.GetPostLikes(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u1"}, likes)
}

func TestPost_UnmarshalAcceptsEmbeddedAuthor(t *testing.T) {
	var p Post
	err := p.UnmarshalJSON([]byte(`{
		"_id": "p1",
		"author": {"_id": "u2", "username": "grace", "imageUrl": "https://img/g.png"},
		"caption": "hello",
		"category": ["sky"],
		"likes": ["u1", "u1", "u3"]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "u2", p.Author)
	require.NotNil(t, p.AuthorInfo)
	assert.Equal(t, "grace", p.AuthorInfo.Username)
	assert.Equal(t, "hello", p.Content)
	assert.Equal(t, []string{"sky"}, p.Tags)
	assert.Equal(t, []string{"u1", "u3"}, p.Likes)

	p.SyncLiked("u3")
	assert.True(t, p.IsLiked)
	assert.Equal(t, 2, p.LikesCount())
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"sky", "sun"}, NormalizeTags([]string{" sky", "", "sun", "sky "}))
	assert.Empty(t, NormalizeTags(nil))
}

func TestPost_LikersHaveNoDuplicates(t *testing.T) {
	p := &Post{Likes: []string{"u2"}}

	p.SetLiked("u1", true)
	p.SetLiked("u1", true)
	assert.False(t, p.AddLike("u2"))
	assert.Equal(t, 2, p.LikesCount())

	p.SetLiked("u1", false)
	assert.False(t, p.HasLike("u1"))
	assert.Equal(t, []string{"u2"}, p.Likes)
}
