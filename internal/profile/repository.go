// internal/profile/repository.go

package profile

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/imadgeboyega/kiekky-client/internal/common/apperror"
	"github.com/imadgeboyega/kiekky-client/internal/common/logger"
	"github.com/imadgeboyega/kiekky-client/internal/common/utils"
	"github.com/imadgeboyega/kiekky-client/internal/posts"
)

// Repository defines the profile endpoints of the backend
type Repository interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpdateProfile(ctx context.Context, userID string, req *UpdateProfileRequest) (*Profile, error)
	ToggleFollow(ctx context.Context, userID string) (*FollowResult, error)
	GetFollowers(ctx context.Context, userID string) ([]*Profile, error)
	GetFollowing(ctx context.Context, userID string) ([]*Profile, error)
	GetSavedPosts(ctx context.Context, userID string) ([]*posts.Post, error)
	DeleteAccount(ctx context.Context, userID string) error
	UpdateIdentity(ctx context.Context, clerkID string, req *IdentityUpdate) error
	DeleteIdentity(ctx context.Context, clerkID string) error
}

// Requester is the part of api.Client the repository needs
type Requester interface {
	Get(ctx context.Context, path string, query url.Values) (*utils.Envelope, error)
	Post(ctx context.Context, path string, body interface{}) (*utils.Envelope, error)
	Patch(ctx context.Context, path string, body interface{}) (*utils.Envelope, error)
	Delete(ctx context.Context, path string, body interface{}) (*utils.Envelope, error)
}

// httpRepository implements Repository over the REST API
type httpRepository struct {
	api    Requester
	logger *zap.Logger
}

// NewHTTPRepository creates a new REST repository
func NewHTTPRepository(client Requester, log *zap.Logger) Repository {
	return &httpRepository{api: client, logger: logger.OrNop(log)}
}

// GetProfile retrieves a user by backend id
func (r *httpRepository) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	env, err := r.api.Get(ctx, "/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}
	return decodeProfile(env)
}

// UpdateProfile patches the fields set in req
func (r *httpRepository) UpdateProfile(ctx context.Context, userID string, req *UpdateProfileRequest) (*Profile, error) {
	env, err := r.api.Patch(ctx, "/users/"+url.PathEscape(userID), req)
	if err != nil {
		return nil, err
	}
	if !env.Succeeded() {
		return nil, apperror.New(apperror.KindServer, messageOr(env, "failed to update profile"))
	}
	return decodeProfile(env)
}

// ToggleFollow follows or unfollows userID
func (r *httpRepository) ToggleFollow(ctx context.Context, userID string) (*FollowResult, error) {
	env, err := r.api.Post(ctx, "/users/follow/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}
	if !env.Succeeded() {
		return nil, apperror.New(apperror.KindServer, messageOr(env, "failed to update follow status"))
	}

	result := &FollowResult{Success: true}
	if _, err := env.Decode(&result.IsFollowing, "isFollowing"); err != nil {
		return nil, malformed(err)
	}
	return result, nil
}

func (r *httpRepository) GetFollowers(ctx context.Context, userID string) ([]*Profile, error) {
	return r.userList(ctx, "/users/followers/"+url.PathEscape(userID), "followers")
}

func (r *httpRepository) GetFollowing(ctx context.Context, userID string) ([]*Profile, error) {
	return r.userList(ctx, "/users/following/"+url.PathEscape(userID), "following")
}

// GetSavedPosts lists the posts userID bookmarked
func (r *httpRepository) GetSavedPosts(ctx context.Context, userID string) ([]*posts.Post, error) {
	env, err := r.api.Get(ctx, "/users/"+url.PathEscape(userID)+"/saved-posts", nil)
	if err != nil {
		return nil, err
	}
	saved := []*posts.Post{}
	if _, err := env.Decode(&saved, "savedPosts", "data"); err != nil {
		return nil, malformed(err)
	}
	return saved, nil
}

// DeleteAccount removes the backend user record
func (r *httpRepository) DeleteAccount(ctx context.Context, userID string) error {
	env, err := r.api.Delete(ctx, "/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return err
	}
	if !env.Succeeded() {
		return apperror.New(apperror.KindServer, messageOr(env, "failed to delete account"))
	}
	return nil
}

// UpdateIdentity updates the identity-provider user behind clerkID
func (r *httpRepository) UpdateIdentity(ctx context.Context, clerkID string, req *IdentityUpdate) error {
	env, err := r.api.Post(ctx, "/clerk/updateUser/"+url.PathEscape(clerkID), req)
	if err != nil {
		return err
	}
	if !env.Succeeded() {
		return apperror.New(apperror.KindServer, messageOr(env, "failed to update account"))
	}
	return nil
}

// DeleteIdentity removes the identity-provider user behind clerkID
func (r *httpRepository) DeleteIdentity(ctx context.Context, clerkID string) error {
	env, err := r.api.Delete(ctx, "/clerk/deleteUser/"+url.PathEscape(clerkID), nil)
	if err != nil {
		return err
	}
	if !env.Succeeded() {
		return apperror.New(apperror.KindServer, messageOr(env, "failed to delete account"))
	}
	return nil
}

func (r *httpRepository) userList(ctx context.Context, path, key string) ([]*Profile, error) {
	env, err := r.api.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	users := []*Profile{}
	if _, err := env.Decode(&users, key, "data"); err != nil {
		return nil, malformed(err)
	}
	return users, nil
}

func decodeProfile(env *utils.Envelope) (*Profile, error) {
	var p Profile
	found, err := env.Decode(&p, "user", "Data", "data")
	if err != nil {
		return nil, malformed(err)
	}
	if !found || p.ID == "" {
		return nil, apperror.New(apperror.KindNotFound, "User not found")
	}
	return &p, nil
}

func messageOr(env *utils.Envelope, fallback string) string {
	if msg := env.ErrorMessage(); msg != "" {
		return msg
	}
	return fallback
}

func malformed(err error) error {
	return apperror.Wrap(apperror.KindServer, "malformed response", fmt.Errorf("decode: %w", err))
}
