// internal/posts/repository.go
package posts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/imadgeboyega/kiekky-client/internal/api"
	"github.com/imadgeboyega/kiekky-client/internal/common/apperror"
	"github.com/imadgeboyega/kiekky-client/internal/common/logger"
	"github.com/imadgeboyega/kiekky-client/internal/common/utils"
)

// Repository is the backend surface for posts, likes and comments
type Repository interface {
	GetFeed(ctx context.Context, page, limit int) (*FeedPage, error)
	GetPostByID(ctx context.Context, postID string) (*Post, error)
	CreatePost(ctx context.Context, form *api.MultipartForm) (*Post, error)
	UpdatePost(ctx context.Context, postID string, req *UpdatePostRequest) (*Post, error)
	DeletePost(ctx context.Context, postID, userID string) error
	ToggleLike(ctx context.Context, postID string) (*LikeResult, error)
	GetPostLikes(ctx context.Context, postID string) ([]string, error)
	ToggleSave(ctx context.Context, postID string) (*SaveResult, error)
	GetPostComments(ctx context.Context, postID string) ([]Comment, error)
	AddComment(ctx context.Context, postID string, req *CommentRequest) (*Comment, error)
	GetCommentReplies(ctx context.Context, commentID string) ([]Comment, error)
	GetUserPosts(ctx context.Context, userID string) ([]*Post, error)
}

// Requester is the part of api.Client the repository needs
type Requester interface {
	Get(ctx context.Context, path string, query url.Values) (*utils.Envelope, error)
	Post(ctx context.Context, path string, body interface{}) (*utils.Envelope, error)
	Patch(ctx context.Context, path string, body interface{}) (*utils.Envelope, error)
	Delete(ctx context.Context, path string, body interface{}) (*utils.Envelope, error)
	PostMultipart(ctx context.Context, path string, form *api.MultipartForm) (*utils.Envelope, error)
}

type HTTPRepository struct {
	api    Requester
	logger *zap.Logger
}

func NewHTTPRepository(client Requester, log *zap.Logger) *HTTPRepository {
	return &HTTPRepository{api: client, logger: logger.OrNop(log)}
}

func (r *HTTPRepository) GetFeed(ctx context.Context, page, limit int) (*FeedPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	env, err := r.api.Get(ctx, "/posts/all", query)
	if err != nil {
		return nil, err
	}

	feed := &FeedPage{}
	if _, err := env.Decode(&feed.Posts, "posts", "data"); err != nil {
		return nil, malformed(err)
	}
	if _, err := env.Decode(&feed.HasMore, "hasMore"); err != nil {
		return nil, malformed(err)
	}
	if _, err := env.Decode(&feed.Total, "total"); err != nil {
		return nil, malformed(err)
	}
	return feed, nil
}

func (r *HTTPRepository) GetPostByID(ctx context.Context, postID string) (*Post, error) {
	env, err := r.api.Get(ctx, "/posts/"+url.PathEscape(postID), nil)
	if err != nil {
		return nil, err
	}
	return decodePost(env, "post", "data")
}

func (r *HTTPRepository) CreatePost(ctx context.Context, form *api.MultipartForm) (*Post, error) {
	env, err := r.api.PostMultipart(ctx, "/posts/create", form)
	if err != nil {
		return nil, err
	}
	if err := checkSuccess(env, "failed to create post"); err != nil {
		return nil, err
	}
	return decodePost(env, "post", "data")
}

// UpdatePost returns nil when the backend confirms without echoing the post
func (r *HTTPRepository) UpdatePost(ctx context.Context, postID string, req *UpdatePostRequest) (*Post, error) {
	env, err := r.api.Patch(ctx, "/posts/update/"+url.PathEscape(postID), req)
	if err != nil {
		return nil, err
	}
	if err := checkSuccess(env, "failed to update post"); err != nil {
		return nil, err
	}
	if !env.Has("post") && !env.Has("data") {
		return nil, nil
	}
	return decodePost(env, "post", "data")
}

func (r *HTTPRepository) DeletePost(ctx context.Context, postID, userID string) error {
	env, err := r.api.Delete(ctx, "/posts/"+url.PathEscape(postID), &DeleteRequest{UserID: userID})
	if err != nil {
		return err
	}
	return checkSuccess(env, "failed to delete post")
}

func (r *HTTPRepository) ToggleLike(ctx context.Context, postID string) (*LikeResult, error) {
	env, err := r.api.Post(ctx, "/posts/like/"+url.PathEscape(postID), nil)
	if err != nil {
		return nil, err
	}
	if err := checkSuccess(env, "failed to update like status"); err != nil {
		return nil, err
	}

	result := &LikeResult{Success: true}
	var isLiked bool
	found, err := env.Decode(&isLiked, "isLiked")
	if err != nil {
		return nil, malformed(err)
	}
	if found {
		result.IsLiked = &isLiked
	}
	if env.Has("likes") {
		likes, err := decodeUserIDs(env, "likes")
		if err != nil {
			return nil, malformed(err)
		}
		result.Likes = likes
	}
	return result, nil
}

func (r *HTTPRepository) GetPostLikes(ctx context.Context, postID string) ([]string, error) {
	env, err := r.api.Get(ctx, "/posts/like/"+url.PathEscape(postID), nil)
	if err != nil {
		return nil, err
	}
	likes, err := decodeUserIDs(env, "likes", "data")
	if err != nil {
		return nil, malformed(err)
	}
	return likes, nil
}

func (r *HTTPRepository) ToggleSave(ctx context.Context, postID string) (*SaveResult, error) {
	env, err := r.api.Post(ctx, "/posts/save/"+url.PathEscape(postID), nil)
	if err != nil {
		return nil, err
	}
	if err := checkSuccess(env, "failed to save post"); err != nil {
		return nil, err
	}

	result := &SaveResult{Success: true}
	if _, err := env.Decode(&result.IsSaved, "isSaved"); err != nil {
		return nil, malformed(err)
	}
	return result, nil
}

func (r *HTTPRepository) GetPostComments(ctx context.Context, postID string) ([]Comment, error) {
	env, err := r.api.Get(ctx, "/posts/comment/"+url.PathEscape(postID), nil)
	if err != nil {
		return nil, err
	}

	comments := []Comment{}
	if _, err := env.Decode(&comments, "comments", "data"); err != nil {
		return nil, malformed(err)
	}
	return comments, nil
}

func (r *HTTPRepository) AddComment(ctx context.Context, postID string, req *CommentRequest) (*Comment, error) {
	env, err := r.api.Post(ctx, "/posts/comment/"+url.PathEscape(postID), req)
	if err != nil {
		return nil, err
	}
	if err := checkSuccess(env, "failed to add comment"); err != nil {
		return nil, err
	}

	var comment Comment
	found, err := env.Decode(&comment, "comment", "data")
	if err != nil {
		return nil, malformed(err)
	}
	if !found || comment.ID == "" {
		return nil, apperror.New(apperror.KindServer, "comment missing from response")
	}
	if comment.Post == "" {
		comment.Post = postID
	}
	return &comment, nil
}

func (r *HTTPRepository) GetCommentReplies(ctx context.Context, commentID string) ([]Comment, error) {
	env, err := r.api.Get(ctx, "/comments/"+url.PathEscape(commentID)+"/replies", nil)
	if err != nil {
		return nil, err
	}

	replies := []Comment{}
	if _, err := env.Decode(&replies, "replies", "data", ""); err != nil {
		return nil, malformed(err)
	}
	return replies, nil
}

// GetUserPosts never fails: errors degrade to an empty list
func (r *HTTPRepository) GetUserPosts(ctx context.Context, userID string) ([]*Post, error) {
	env, err := r.api.Get(ctx, "/posts/user/"+url.PathEscape(userID), nil)
	if err != nil {
		r.logger.Warn("Failed to fetch user posts", zap.String("user_id", userID), zap.Error(err))
		return []*Post{}, nil
	}

	posts := []*Post{}
	if _, err := env.Decode(&posts, "posts", "data"); err != nil {
		r.logger.Warn("Malformed user posts response", zap.String("user_id", userID), zap.Error(err))
		return []*Post{}, nil
	}
	return posts, nil
}

func decodePost(env *utils.Envelope, keys ...string) (*Post, error) {
	var post Post
	found, err := env.Decode(&post, keys...)
	if err != nil {
		return nil, malformed(err)
	}
	if !found || post.ID == "" {
		return nil, apperror.New(apperror.KindServer, "post missing from response")
	}
	return &post, nil
}

// decodeUserIDs accepts a list of ids or of embedded users
func decodeUserIDs(env *utils.Envelope, keys ...string) ([]string, error) {
	var raw []json.RawMessage
	if _, err := env.Decode(&raw, keys...); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(raw))
	for _, item := range raw {
		id, _, err := decodeUserRef(item)
		if err != nil {
			return nil, err
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	return dedupe(ids), nil
}

func checkSuccess(env *utils.Envelope, fallback string) error {
	if env.Succeeded() {
		return nil
	}
	msg := env.ErrorMessage()
	if msg == "" {
		msg = fallback
	}
	return apperror.New(apperror.KindServer, msg)
}

func malformed(err error) error {
	return apperror.Wrap(apperror.KindServer, "malformed response", fmt.Errorf("decode: %w", err))
}
