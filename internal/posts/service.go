// internal/posts/service.go
package posts

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/imadgeboyega/kiekky-client/internal/api"
	"github.com/imadgeboyega/kiekky-client/internal/common/apperror"
	"github.com/imadgeboyega/kiekky-client/internal/common/logger"
	"github.com/imadgeboyega/kiekky-client/internal/common/utils"
	"github.com/imadgeboyega/kiekky-client/internal/media"
)

var (
	ErrNotOwner    = apperror.New(apperror.KindForbidden, "You can only change your own posts")
	ErrNoTags      = apperror.Validation("Please add at least one tag")
	ErrPostMissing = apperror.New(apperror.KindNotFound, "post not found")
)

// ImageLoader resolves an image reference into upload-ready bytes
type ImageLoader interface {
	Load(ctx context.Context, ref string) (*media.Image, error)
}

type Service struct {
	repo   Repository
	store  *Store
	images ImageLoader
	viewer ViewerSource
	logger *zap.Logger

	// EmbedImages sends the image as a data URI field instead of a file part
	EmbedImages bool
}

func NewService(repo Repository, store *Store, images ImageLoader, viewer ViewerSource, log *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		store:  store,
		images: images,
		viewer: viewer,
		logger: logger.OrNop(log),
	}
}

// CreatePost validates the input, uploads the post and puts it at the front of the store
func (s *Service) CreatePost(ctx context.Context, in *CreatePostInput) (*Post, error) {
	// Validate input
	in.Tags = NormalizeTags(in.Tags)
	if len(in.Tags) == 0 {
		return nil, ErrNoTags
	}
	if err := utils.ValidateStruct(in); err != nil {
		return nil, err
	}

	authorID, err := s.requireViewer(ctx)
	if err != nil {
		return nil, err
	}

	img, err := s.images.Load(ctx, in.Image)
	if err != nil {
		return nil, err
	}

	form, err := s.buildCreateForm(in, img, authorID)
	if err != nil {
		return nil, err
	}

	post, err := s.repo.CreatePost(ctx, form)
	if err != nil {
		s.logger.Error("Failed to create post", zap.String("author", authorID), zap.Error(err))
		return nil, err
	}
	if post.Author == "" {
		post.Author = authorID
	}
	post.SyncLiked(authorID)
	s.store.Add(post)
	postsCreated.Inc()

	return post, nil
}

func (s *Service) buildCreateForm(in *CreatePostInput, img *media.Image, authorID string) (*api.MultipartForm, error) {
	tags, err := json.Marshal(in.Tags)
	if err != nil {
		return nil, err
	}

	form := api.NewMultipartForm()
	if s.EmbedImages {
		form.AddField("image", img.DataURI())
	} else {
		form.AddFile(api.FormFile{
			Field:       "image",
			Filename:    img.Filename,
			ContentType: img.ContentType,
			Data:        img.Data,
		})
	}
	form.AddField("caption", strings.TrimSpace(in.Caption))
	form.AddField("tags", string(tags))
	form.AddField("author", authorID)
	if loc := strings.TrimSpace(in.Location); loc != "" {
		form.AddField("location", loc)
	}
	if in.Filters != "" {
		form.AddField("filters", in.Filters)
	}
	return form, nil
}

// GetPost refreshes a post from the backend and stores it
func (s *Service) GetPost(ctx context.Context, postID string) (*Post, error) {
	mark := s.store.Mark()
	post, err := s.repo.GetPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	viewerID, _ := s.viewer.BackendUserID(ctx)
	post.SyncLiked(viewerID)
	if !s.store.UpsertSince(post, mark) {
		if local, ok := s.store.Get(postID); ok {
			return local, nil
		}
	}
	return post, nil
}

// IsOwner reports whether the signed-in user authored the post
func (s *Service) IsOwner(ctx context.Context, post *Post) bool {
	viewerID, err := s.viewer.BackendUserID(ctx)
	if err != nil || viewerID == "" || post == nil {
		return false
	}
	return post.Author == viewerID
}

// UpdatePost edits caption and location of an owned post
func (s *Service) UpdatePost(ctx context.Context, postID string, req *UpdatePostRequest) (*Post, error) {
	post, ok := s.store.Get(postID)
	if !ok {
		return nil, ErrPostMissing
	}
	if !s.IsOwner(ctx, post) {
		return nil, ErrNotOwner
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	mark := s.store.Mark()
	updated, err := s.repo.UpdatePost(ctx, postID, req)
	if err != nil {
		s.logger.Error("Failed to update post", zap.String("post_id", postID), zap.Error(err))
		return nil, err
	}

	if updated != nil {
		updated.SyncLiked(post.Author)
		if s.store.UpsertSince(updated, mark) {
			return updated, nil
		}
		// Changed locally meanwhile: take only the edited fields
		result, _ := s.store.Update(postID, func(p *Post) {
			p.Content = updated.Content
			p.Location = updated.Location
		})
		return result, nil
	}

	// Backend confirmed without echoing the post
	result, _ := s.store.Update(postID, func(p *Post) {
		if req.Content != "" {
			p.Content = req.Content
		}
		p.Location = req.Location
	})
	return result, nil
}

// DeletePost removes an owned post. Non-owners get ErrNotOwner and no request is made.
func (s *Service) DeletePost(ctx context.Context, postID string) error {
	post, ok := s.store.Get(postID)
	if !ok {
		return ErrPostMissing
	}
	if !s.IsOwner(ctx, post) {
		return ErrNotOwner
	}

	if err := s.repo.DeletePost(ctx, postID, post.Author); err != nil {
		s.logger.Error("Failed to delete post", zap.String("post_id", postID), zap.Error(err))
		return err
	}

	s.store.Remove(postID)
	return nil
}

func (s *Service) ToggleSave(ctx context.Context, postID string) (bool, error) {
	if _, err := s.requireViewer(ctx); err != nil {
		return false, err
	}
	result, err := s.repo.ToggleSave(ctx, postID)
	if err != nil {
		return false, err
	}
	return result.IsSaved, nil
}

// Likers returns the ids of users who liked the post
func (s *Service) Likers(ctx context.Context, postID string) ([]string, error) {
	return s.repo.GetPostLikes(ctx, postID)
}

func (s *Service) requireViewer(ctx context.Context) (string, error) {
	viewerID, err := s.viewer.BackendUserID(ctx)
	if err != nil {
		return "", err
	}
	if viewerID == "" {
		return "", apperror.New(apperror.KindUnauthorized, "You must be signed in")
	}
	return viewerID, nil
}
