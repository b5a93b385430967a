// internal/posts/likes.go
// Optimistic like toggling.
// Each post runs a small state machine: Idle -> Pending -> Confirmed | RolledBack.
// Only one request per post is in flight. Toggles that arrive while a request is pending
// change the desired state and are settled by at most one follow-up request.
package posts

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/imadgeboyega/kiekky-client/internal/common/apperror"
	"github.com/imadgeboyega/kiekky-client/internal/common/logger"
)

type LikeState int

const (
	LikeIdle LikeState = iota
	LikePending
	LikeConfirmed
	LikeRolledBack
)

func (s LikeState) String() string {
	switch s {
	case LikePending:
		return "pending"
	case LikeConfirmed:
		return "confirmed"
	case LikeRolledBack:
		return "rolled_back"
	default:
		return "idle"
	}
}

// ViewerSource reports the signed-in backend user id, or "" when signed out
type ViewerSource interface {
	BackendUserID(ctx context.Context) (string, error)
}

// ErrNotSignedIn is returned when a like is attempted without a session
var ErrNotSignedIn = apperror.New(apperror.KindUnauthorized, "You must be logged in to like posts")

type likeEntry struct {
	state     LikeState
	confirmed bool // last state the backend agreed to
	desired   bool
	inFlight  bool
}

type LikeToggler struct {
	repo   Repository
	store  *Store
	viewer ViewerSource
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*likeEntry
}

func NewLikeToggler(repo Repository, store *Store, viewer ViewerSource, log *zap.Logger) *LikeToggler {
	return &LikeToggler{
		repo:    repo,
		store:   store,
		viewer:  viewer,
		logger:  logger.OrNop(log),
		entries: make(map[string]*likeEntry),
	}
}

// Toggle flips the viewer's like on a post and returns the state now shown.
// When a request for the post is already pending only the desired state changes; the
// pending caller settles it.
func (t *LikeToggler) Toggle(ctx context.Context, postID string) (bool, error) {
	return t.apply(ctx, postID, func(shown bool) bool { return !shown })
}

// SetLiked requests a specific state. Repeating the intent while a request is pending
// does nothing.
func (t *LikeToggler) SetLiked(ctx context.Context, postID string, liked bool) (bool, error) {
	return t.apply(ctx, postID, func(bool) bool { return liked })
}

// State returns the post's current like state
func (t *LikeToggler) State(postID string) LikeState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[postID]; ok {
		return e.state
	}
	return LikeIdle
}

func (t *LikeToggler) apply(ctx context.Context, postID string, next func(shown bool) bool) (bool, error) {
	viewerID, err := t.viewer.BackendUserID(ctx)
	if err != nil {
		return false, err
	}
	if viewerID == "" {
		return false, ErrNotSignedIn
	}

	t.mu.Lock()
	entry, ok := t.entries[postID]
	if !ok {
		entry = &likeEntry{}
		t.entries[postID] = entry
	}

	if entry.inFlight {
		entry.desired = next(entry.desired)
		shown := entry.desired
		t.show(postID, viewerID, shown)
		t.mu.Unlock()
		likeOutcomes.WithLabelValues("coalesced").Inc()
		return shown, nil
	}

	post, ok := t.store.Get(postID)
	if !ok {
		t.mu.Unlock()
		return false, apperror.New(apperror.KindNotFound, "post is not loaded")
	}
	current := post.HasLike(viewerID)
	desired := next(current)
	if desired == current {
		t.mu.Unlock()
		return current, nil
	}

	entry.confirmed = current
	entry.desired = desired
	entry.inFlight = true
	entry.state = LikePending
	t.show(postID, viewerID, desired)
	t.mu.Unlock()

	return t.settle(ctx, postID, viewerID, entry)
}

// maxFollowUps bounds the requests sent after the first one in a settle
const maxFollowUps = 1

// settle drives requests until the backend agrees with the desired state, the follow-up
// budget is spent or ctx is done. Caller must own the in-flight slot.
func (t *LikeToggler) settle(ctx context.Context, postID, viewerID string, entry *likeEntry) (bool, error) {
	followUps := 0
	for {
		result, err := t.repo.ToggleLike(ctx, postID)

		t.mu.Lock()
		if err != nil {
			entry.desired = entry.confirmed
			entry.inFlight = false
			entry.state = LikeRolledBack
			t.show(postID, viewerID, entry.confirmed)
			shown := entry.confirmed
			t.mu.Unlock()

			likeOutcomes.WithLabelValues("rolled_back").Inc()
			t.logger.Warn("Like toggle failed, reverted",
				zap.String("post_id", postID),
				zap.Error(err),
			)
			return shown, err
		}

		serverLiked := !entry.confirmed
		if result.IsLiked != nil {
			serverLiked = *result.IsLiked
		}
		entry.confirmed = serverLiked

		if entry.desired == entry.confirmed || ctx.Err() != nil || followUps >= maxFollowUps {
			if entry.desired != entry.confirmed {
				reason := "follow-up limit reached"
				if ctx.Err() != nil {
					reason = "context done"
				}
				likeOutcomes.WithLabelValues("dropped").Inc()
				t.logger.Warn("Dropping like intent, keeping backend state",
					zap.String("post_id", postID),
					zap.Bool("wanted", entry.desired),
					zap.Bool("liked", entry.confirmed),
					zap.String("reason", reason),
				)
			}
			entry.desired = entry.confirmed
			entry.inFlight = false
			entry.state = LikeConfirmed
			t.reconcile(postID, viewerID, entry.confirmed, result.Likes)
			shown := entry.confirmed
			t.mu.Unlock()

			likeOutcomes.WithLabelValues("confirmed").Inc()
			return shown, nil
		}
		t.mu.Unlock()

		followUps++
		likeOutcomes.WithLabelValues("follow_up").Inc()
	}
}

// show writes the optimistic state into the store. Caller holds t.mu.
func (t *LikeToggler) show(postID, viewerID string, liked bool) {
	t.store.Update(postID, func(p *Post) {
		p.SetLiked(viewerID, liked)
	})
}

// reconcile applies the backend's view. A like list from the backend replaces ours.
func (t *LikeToggler) reconcile(postID, viewerID string, liked bool, likes []string) {
	t.store.Update(postID, func(p *Post) {
		if likes != nil {
			p.Likes = append([]string(nil), likes...)
		}
		p.SetLiked(viewerID, liked)
	})
}
