// internal/profile/service.go

package profile

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/imadgeboyega/kiekky-client/internal/common/apperror"
	"github.com/imadgeboyega/kiekky-client/internal/common/logger"
	"github.com/imadgeboyega/kiekky-client/internal/common/utils"
	"github.com/imadgeboyega/kiekky-client/internal/posts"
)

var (
	ErrUnauthorized     = apperror.New(apperror.KindUnauthorized, "You must be signed in")
	ErrCannotFollowSelf = apperror.Validation("You cannot follow yourself")
	ErrNotYourProfile   = apperror.New(apperror.KindForbidden, "You can only update your own profile")
	ErrNothingToUpdate  = apperror.Validation("Nothing to update")
	ErrNoIdentity       = apperror.Validation("This account has no linked sign-in identity")
)

// PostsSource lists a user's posts from the backend
type PostsSource interface {
	GetUserPosts(ctx context.Context, userID string) ([]*posts.Post, error)
}

type Service struct {
	repo   Repository
	posts  PostsSource
	cache  *posts.OwnPostsCache
	store  *posts.Store
	viewer posts.ViewerSource
	logger *zap.Logger
}

// NewService creates the profile service. cache and store may be nil.
func NewService(repo Repository, postsSrc PostsSource, cache *posts.OwnPostsCache, store *posts.Store, viewer posts.ViewerSource, log *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		posts:  postsSrc,
		cache:  cache,
		store:  store,
		viewer: viewer,
		logger: logger.OrNop(log),
	}
}

// GetProfile retrieves a profile. An empty userID means the signed-in user.
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	userID, err := s.resolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to fetch profile", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return profile, nil
}

// UpdateProfile validates and applies changes to the signed-in user's profile
func (s *Service) UpdateProfile(ctx context.Context, userID string, req *UpdateProfileRequest) (*Profile, error) {
	me, err := s.me(ctx)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		userID = me
	}
	if userID != me {
		return nil, ErrNotYourProfile
	}

	trimFields(req)
	if req.Username == nil && req.FirstName == nil && req.LastName == nil && req.Bio == nil && req.ProfileImg == nil {
		return nil, ErrNothingToUpdate
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	profile, err := s.repo.UpdateProfile(ctx, userID, req)
	if err != nil {
		s.logger.Error("Failed to update profile", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return profile, nil
}

// UpdateIdentity changes the signed-in user's identity-provider record
func (s *Service) UpdateIdentity(ctx context.Context, req *IdentityUpdate) error {
	me, err := s.me(ctx)
	if err != nil {
		return err
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	if req.empty() {
		return ErrNothingToUpdate
	}
	if err := utils.ValidateStruct(req); err != nil {
		return err
	}

	profile, err := s.repo.GetProfile(ctx, me)
	if err != nil {
		return err
	}
	if profile.ClerkID == "" {
		return ErrNoIdentity
	}

	if err := s.repo.UpdateIdentity(ctx, profile.ClerkID, req); err != nil {
		s.logger.Error("Failed to update identity", zap.String("user_id", me), zap.Error(err))
		return err
	}
	return nil
}

// DeleteAccount deletes the signed-in user's backend record, then the linked identity.
// The backend record is authoritative: once it is gone a failed identity delete is only
// logged. Local copies of the user's posts are dropped. Signing out is up to the caller.
func (s *Service) DeleteAccount(ctx context.Context) error {
	me, err := s.me(ctx)
	if err != nil {
		return err
	}
	profile, err := s.repo.GetProfile(ctx, me)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteAccount(ctx, me); err != nil {
		s.logger.Error("Failed to delete account", zap.String("user_id", me), zap.Error(err))
		return err
	}
	if profile.ClerkID != "" {
		if err := s.repo.DeleteIdentity(ctx, profile.ClerkID); err != nil {
			s.logger.Warn("Account deleted but identity removal failed",
				zap.String("user_id", me),
				zap.String("clerk_id", profile.ClerkID),
				zap.Error(err),
			)
		}
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, me); err != nil {
			s.logger.Warn("Failed to clear cached posts", zap.String("user_id", me), zap.Error(err))
		}
	}
	if s.store != nil {
		for _, p := range s.store.ByUser(me) {
			s.store.Remove(p.ID)
		}
	}
	return nil
}

// ToggleFollow follows or unfollows userID and returns whether the viewer now follows
func (s *Service) ToggleFollow(ctx context.Context, userID string) (bool, error) {
	me, err := s.me(ctx)
	if err != nil {
		return false, err
	}
	if userID == me {
		return false, ErrCannotFollowSelf
	}

	result, err := s.repo.ToggleFollow(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to toggle follow", zap.String("target_id", userID), zap.Error(err))
		return false, err
	}
	return result.IsFollowing, nil
}

func (s *Service) Followers(ctx context.Context, userID string) ([]*Profile, error) {
	userID, err := s.resolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetFollowers(ctx, userID)
}

func (s *Service) Following(ctx context.Context, userID string) ([]*Profile, error) {
	userID, err := s.resolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetFollowing(ctx, userID)
}

func (s *Service) SavedPosts(ctx context.Context, userID string) ([]*posts.Post, error) {
	userID, err := s.resolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetSavedPosts(ctx, userID)
}

// UserPosts lists a user's posts. The signed-in user's own list is served from the local
// cache while it is fresh and cached after every fetch. It reports whether the list came
// from the cache.
func (s *Service) UserPosts(ctx context.Context, userID string, refresh bool) ([]*posts.Post, bool, error) {
	userID, err := s.resolveUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	me, _ := s.viewer.BackendUserID(ctx)
	own := userID == me && s.cache != nil

	if own && !refresh {
		if cached, ok := s.cache.Get(ctx, userID); ok {
			s.logger.Debug("Using cached posts", zap.String("user_id", userID))
			return s.remember(cached, me, nil), true, nil
		}
	}

	var mark uint64
	if s.store != nil {
		mark = s.store.Mark()
	}
	list, err := s.posts.GetUserPosts(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if own {
		if err := s.cache.Put(ctx, userID, list); err != nil {
			s.logger.Warn("Failed to cache posts", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return s.remember(list, me, &mark), false, nil
}

// Overview loads a profile with its posts and completion
func (s *Service) Overview(ctx context.Context, userID string, refresh bool) (*Overview, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	list, fromCache, err := s.UserPosts(ctx, profile.ID, refresh)
	if err != nil {
		return nil, err
	}
	return &Overview{
		Profile:    profile,
		Posts:      list,
		Completion: CalculateCompletion(profile, len(list)),
		FromCache:  fromCache,
	}, nil
}

// remember puts listed posts into the shared store so detail views find them, and
// returns the store's copies. Fetched lists pass the mark taken before the request and
// never replace a post changed locally since; cached lists (mark nil) only fill gaps.
func (s *Service) remember(list []*posts.Post, viewerID string, mark *uint64) []*posts.Post {
	if s.store == nil {
		return list
	}
	out := make([]*posts.Post, 0, len(list))
	for _, p := range list {
		p.SyncLiked(viewerID)
		if mark != nil {
			s.store.UpsertSince(p, *mark)
		} else {
			s.store.Remember(p)
		}
		stored, ok := s.store.Get(p.ID)
		if !ok {
			// deleted locally while the list was in flight
			continue
		}
		out = append(out, stored)
	}
	return out
}

func (s *Service) resolveUser(ctx context.Context, userID string) (string, error) {
	if userID != "" {
		return userID, nil
	}
	return s.me(ctx)
}

func (s *Service) me(ctx context.Context) (string, error) {
	id, err := s.viewer.BackendUserID(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrUnauthorized
	}
	return id, nil
}

// CalculateCompletion reports which parts of a profile are filled in
func CalculateCompletion(profile *Profile, postCount int) *ProfileCompletion {
	completion := &ProfileCompletion{
		Missing:   []string{},
		Completed: []string{},
	}

	totalFields := 0
	completedFields := 0
	check := func(ok bool, name string) bool {
		totalFields++
		if ok {
			completedFields++
			completion.Completed = append(completion.Completed, name)
		} else {
			completion.Missing = append(completion.Missing, name)
		}
		return ok
	}

	basic := check(profile.Username != "", "username")
	basic = check(profile.FirstName != "" || profile.LastName != "", "name") && basic
	completion.Details.BasicInfo = basic
	completion.Details.ProfilePicture = check(profile.Avatar() != "", "profile_picture")
	completion.Details.Bio = check(strings.TrimSpace(profile.Bio) != "", "bio")
	completion.Details.FirstPost = check(postCount > 0, "first_post")

	if totalFields > 0 {
		completion.Percentage = completedFields * 100 / totalFields
	}
	return completion
}

func trimFields(req *UpdateProfileRequest) {
	for _, f := range []**string{&req.Username, &req.FirstName, &req.LastName, &req.Bio, &req.ProfileImg} {
		if *f == nil {
			continue
		}
		v := strings.TrimSpace(**f)
		*f = &v
	}
}
