package posts

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/kiekky-client/internal/backendtest"
	"github.com/imadgeboyega/kiekky-client/internal/common/apperror"
	"github.com/imadgeboyega/kiekky-client/internal/media"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

func pngDataURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}

func newTestService(f *fixture) *Service {
	return NewService(f.repo, f.store, media.NewLoader(media.LoaderConfig{}), f.session, nil)
}

func TestService_CreatePostValidatesBeforeSending(t *testing.T) {
	f := newFixture(t, backendtest.Options{}, "u1")
	svc := newTestService(f)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreatePostInput
		check func(t *testing.T, err error)
	}{
		{
			name:  "no tags",
			input: CreatePostInput{Image: pngDataURI(), Caption: "sunset", Tags: []string{" ", ""}},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrNoTags) },
		},
		{
			name:  "blank caption",
			input: CreatePostInput{Image: pngDataURI(), Caption: "   ", Tags: []string{"sky"}},
			check: func(t *testing.T, err error) {
				assert.True(t, apperror.IsValidation(err))
				assert.Equal(t, "caption is required", apperror.UserMessage(err))
			},
		},
		{
			name:  "no image",
			input: CreatePostInput{Caption: "sunset", Tags: []string{"sky"}},
			check: func(t *testing.T, err error) { assert.True(t, apperror.IsValidation(err)) },
		},
		{
			name:  "not an image",
			input: CreatePostInput{Image: "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("hello")), Caption: "sunset", Tags: []string{"sky"}},
			check: func(t *testing.T, err error) { assert.True(t, apperror.IsValidation(err)) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.input
			_, err := svc.CreatePost(ctx, &in)
			require.Error(t, err)
			tt.check(t, err)
		})
	}

	assert.Equal(t, 0, f.backend.TotalCalls())
	assert.Equal(t, 0, f.store.Len())
}

func TestService_CreatePostUploadsMultipart(t *testing.T) {
	f := newFixture(t, backendtest.Options{}, "u1")
	svc := newTestService(f)
	f.store.Upsert(&Post{ID: "older", Author: "u2"})

	post, err := svc.CreatePost(context.Background(), &CreatePostInput{
		Image:    pngDataURI(),
		Caption:  "  golden hour ",
		Tags:     []string{"sky", " sky ", "sun"},
		Location: "Lagos",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", post.Author)
	assert.Equal(t, "golden hour", post.Content)
	assert.Equal(t, []string{"sky", "sun"}, post.Tags)

	record := f.backend.LastCreate()
	require.NotNil(t, record)
	assert.Equal(t, "golden hour", record.Fields["caption"])
	assert.Equal(t, `["sky","sun"]`, record.Fields["tags"])
	assert.Equal(t, "u1", record.Fields["author"])
	assert.Equal(t, "Lagos", record.Fields["location"])
	assert.Equal(t, "image/png", record.ImageType)
	assert.Equal(t, len(pngBytes), record.ImageSize)
	assert.True(t, strings.HasSuffix(record.ImageFilename, ".png"))

	all := f.store.All()
	require.Len(t, all, 2)
	assert.Equal(t, post.ID, all[0].ID, "new post goes to the front")
}

func TestService_CreatePostEmbedsImage(t *testing.T) {
	f := newFixture(t, backendtest.Options{}, "u1")
	svc := newTestService(f)
	svc.EmbedImages = true

	_, err := svc.CreatePost(context.Background(), &CreatePostInput{
		Image:   pngDataURI(),
		Caption: "inline",
		Tags:    []string{"sky"},
	})
	require.NoError(t, err)

	record := f.backend.LastCreate()
	require.NotNil(t, record)
	assert.Equal(t, pngDataURI(), record.Fields["image"])
	assert.Empty(t, record.ImageFilename)
}

func TestService_DeleteByNonOwnerSendsNothing(t *testing.T) {
	f := newFixture(t, backendtest.Options{}, "u1")
	post := f.load(t, backendtest.Post{Author: "u2"})
	svc := newTestService(f)
	calls := f.backend.TotalCalls()

	err := svc.DeletePost(context.Background(), post.ID)
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Equal(t, calls, f.backend.TotalCalls())
	assert.Equal(t, 1, f.store.Len())

	_, ok := f.backend.Post(post.ID)
	assert.True(t, ok)
}

func TestService_DeleteByOwner(t *testing.T) {
	f := newFixture(t, backendtest.Options{}, "u1")
	post := f.load(t, backendtest.Post{Author: "u1"})
	svc := newTestService(f)

	require.NoError(t, svc.DeletePost(context.Background(), post.ID))
	assert.Equal(t, 0, f.store.Len())
	_, ok := f.backend.Post(post.ID)
	assert.False(t, ok)
}

func TestService_DeleteRejectedByBackendKeepsPost(t *testing.T) {
	f := newFixture(t, backendtest.Options{}, "u1")
	post := f.load(t, backendtest.Post{Author: "u1"})
	svc := newTestService(f)

	f.backend.FailWith("DELETE /posts/{id}", http.StatusForbidden, "Not authorized to delete this post", 1)

	err := svc.DeletePost(context.Background(), post.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
	assert.Equal(t, "Not authorized to delete this post", apperror.UserMessage(err))
	assert.Equal(t, 1, f.store.Len())
}

func TestService_UpdatePost(t *testing.T) {
	f := newFixture(t, backendtest.Options{}, "u1")
	mine := f.load(t, backendtest.Post{Author: "u1", Content: "before", Likes: []string{"u1"}})
	theirs := f.load(t, backendtest.Post{Author: "u2", Content: "theirs"})
	svc := newTestService(f)
	ctx := context.Background()

	updated, err := svc.UpdatePost(ctx, mine.ID, &UpdatePostRequest{Content: "after", Location: "Abuja"})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Content)
	assert.True(t, updated.IsLiked)

	stored, _ := f.store.Get(mine.ID)
	assert.Equal(t, "after", stored.Content)
	assert.Equal(t, "Abuja", stored.Location)

	_, err = svc.UpdatePost(ctx, theirs.ID, &UpdatePostRequest{Content: "hijack"})
	assert.ErrorIs(t, err, ErrNotOwner)
	remote, _ := f.backend.Post(theirs.ID)
	assert.Equal(t, "theirs", remote.Content)

	_, err = svc.UpdatePost(ctx, "missing", &UpdatePostRequest{Content: "x"})
	assert.ErrorIs(t, err, ErrPostMissing)
}

func TestService_ToggleSaveRequiresViewer(t *testing.T) {
	f := newFixture(t, backendtest.Options{}, "u1")
	post := f.load(t, backendtest.Post{Author: "u2"})
	svc := newTestService(f)
	ctx := context.Background()

	saved, err := svc.ToggleSave(ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, saved)
	user, _ := f.backend.User("u1")
	assert.Equal(t, []string{post.ID}, user.SavedPosts)

	signedOut := NewService(f.repo, f.store, nil, f.backend.SignIn(t, ""), nil)
	_, err = signedOut.ToggleSave(ctx, post.ID)
	assert.True(t, apperror.IsUnauthorized(err))
}
