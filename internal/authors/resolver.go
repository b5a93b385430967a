// internal/authors/resolver.go
// Display records (name and avatar) for backend user ids.
// Resolution asks the backend user record first and the identity provider second for a
// better avatar. Results are cached in a bounded LRU; concurrent lookups of one id share
// a single fetch.

package authors

import (
	"context"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/imadgeboyega/kiekky-client/internal/common/logger"
	"github.com/imadgeboyega/kiekky-client/internal/common/utils"
)

// PlaceholderName is shown when the author cannot be resolved
const PlaceholderName = "Unknown User"

// DefaultCacheSize applies when NewResolver gets a non-positive size
const DefaultCacheSize = 512

// fetchTimeout bounds a shared lookup, which outlives the caller that started it
const fetchTimeout = 15 * time.Second

// Record is what the UI shows for an author
type Record struct {
	Name      string
	AvatarURL string
}

// Initial is the placeholder letter used when there is no avatar
func (r Record) Initial() string {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return "?"
	}
	return strings.ToUpper(string([]rune(name)[0]))
}

// Placeholder is the record for an unresolvable author
func Placeholder() Record {
	return Record{Name: PlaceholderName}
}

// Requester is the part of api.Client the resolver needs
type Requester interface {
	Get(ctx context.Context, path string, query url.Values) (*utils.Envelope, error)
}

type backendUser struct {
	ID         string `json:"_id"`
	Username   string `json:"username"`
	ProfileImg string `json:"profileImg"`
	ClerkID    string `json:"clerkId"`
}

type identityUser struct {
	ImageURL string `json:"imageUrl"`
}

type Resolver struct {
	api    Requester
	cache  *lru.Cache[string, Record]
	group  singleflight.Group
	logger *zap.Logger
}

func NewResolver(client Requester, size int, log *zap.Logger) *Resolver {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, Record](size)
	if err != nil {
		// Only returned for a non-positive size
		panic(err)
	}
	return &Resolver{
		api:    client,
		cache:  cache,
		logger: logger.OrNop(log),
	}
}

// Resolve never fails: an unresolvable author yields the placeholder, which is not cached.
// Concurrent callers share one lookup that runs detached from any single caller, so a
// caller giving up gets the placeholder without spoiling the result for the others.
func (r *Resolver) Resolve(ctx context.Context, userID string) Record {
	if userID == "" {
		return Placeholder()
	}
	if rec, ok := r.cache.Get(userID); ok {
		cacheLookups.WithLabelValues("hit").Inc()
		return rec
	}
	cacheLookups.WithLabelValues("miss").Inc()

	ch := r.group.DoChan(userID, func() (interface{}, error) {
		if rec, ok := r.cache.Get(userID); ok {
			return rec, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return r.fetch(fctx, userID), nil
	})

	select {
	case res := <-ch:
		return res.Val.(Record)
	case <-ctx.Done():
		return Placeholder()
	}
}

// Cached returns the record without fetching
func (r *Resolver) Cached(userID string) (Record, bool) {
	return r.cache.Peek(userID)
}

// ResolveMany resolves ids concurrently and returns records in the same order
func (r *Resolver) ResolveMany(ctx context.Context, userIDs []string) []Record {
	out := make([]Record, len(userIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, id := range userIDs {
		i, id := i, id
		g.Go(func() error {
			out[i] = r.Resolve(gctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Prefetch warms the cache for ids that are not cached yet
func (r *Resolver) Prefetch(ctx context.Context, userIDs ...string) {
	missing := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id != "" && !r.cache.Contains(id) {
			missing = append(missing, id)
		}
	}
	r.ResolveMany(ctx, missing)
}

// Forget drops a cached record
func (r *Resolver) Forget(userID string) {
	r.cache.Remove(userID)
}

func (r *Resolver) Len() int {
	return r.cache.Len()
}

func (r *Resolver) fetch(ctx context.Context, userID string) Record {
	env, err := r.api.Get(ctx, "/users/"+url.PathEscape(userID), nil)
	if err != nil {
		r.logger.Warn("Failed to fetch author", zap.String("user_id", userID), zap.Error(err))
		return Placeholder()
	}

	var user backendUser
	found, err := env.Decode(&user, "Data", "data", "user")
	if err != nil || !found {
		r.logger.Warn("Author missing from response", zap.String("user_id", userID), zap.Error(err))
		return Placeholder()
	}

	rec := Record{Name: user.Username, AvatarURL: user.ProfileImg}
	if rec.Name == "" {
		rec.Name = PlaceholderName
	}

	if user.ClerkID != "" {
		if avatar, err := r.fetchIdentityAvatar(ctx, user.ClerkID); err != nil {
			r.logger.Debug("Failed to fetch identity avatar", zap.String("clerk_id", user.ClerkID), zap.Error(err))
		} else if avatar != "" {
			rec.AvatarURL = avatar
		}
	}

	r.cache.Add(userID, rec)
	return rec
}

func (r *Resolver) fetchIdentityAvatar(ctx context.Context, clerkID string) (string, error) {
	env, err := r.api.Get(ctx, "/clerk/user/"+url.PathEscape(clerkID), nil)
	if err != nil {
		return "", err
	}
	var user identityUser
	if _, err := env.Decode(&user, "user"); err != nil {
		return "", err
	}
	return user.ImageURL, nil
}
