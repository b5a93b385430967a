// internal/feed/loader.go
// Paginated home feed.
// Responses that were dispatched before the latest Refresh are discarded.

package feed

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/imadgeboyega/kiekky-client/internal/common/logger"
	"github.com/imadgeboyega/kiekky-client/internal/posts"
)

// DefaultLimit is the page size used when none is configured
const DefaultLimit = 10

// ErrStale is returned when a response arrived after a newer Refresh
var ErrStale = errors.New("feed response superseded")

// State is a snapshot of the feed
type State struct {
	Posts   []*posts.Post
	Page    int
	HasMore bool
	Total   int
	Loading bool
	Err     error
}

type Loader struct {
	repo   posts.Repository
	store  *posts.Store
	viewer posts.ViewerSource
	limit  int
	logger *zap.Logger

	mu         sync.Mutex
	ids        []string
	page       int
	hasMore    bool
	total      int
	loading    bool
	err        error
	generation uint64
}

func NewLoader(repo posts.Repository, store *posts.Store, viewer posts.ViewerSource, limit int, log *zap.Logger) *Loader {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Loader{
		repo:    repo,
		store:   store,
		viewer:  viewer,
		limit:   limit,
		logger:  logger.OrNop(log),
		hasMore: true,
	}
}

// Refresh reloads the first page and replaces the list
func (l *Loader) Refresh(ctx context.Context) error {
	l.mu.Lock()
	l.generation++
	gen := l.generation
	l.loading = true
	l.err = nil
	l.mu.Unlock()

	return l.fetch(ctx, gen, 1, false)
}

// LoadMore appends the next page. It does nothing while loading or when exhausted.
func (l *Loader) LoadMore(ctx context.Context) error {
	l.mu.Lock()
	if l.loading || !l.hasMore {
		l.mu.Unlock()
		return nil
	}
	gen := l.generation
	next := l.page + 1
	l.loading = true
	l.err = nil
	l.mu.Unlock()

	return l.fetch(ctx, gen, next, true)
}

func (l *Loader) fetch(ctx context.Context, gen uint64, page int, appendPage bool) error {
	mark := l.store.Mark()
	result, err := l.repo.GetFeed(ctx, page, l.limit)
	viewerID, _ := l.viewer.BackendUserID(ctx)

	l.mu.Lock()
	if gen != l.generation {
		l.mu.Unlock()
		l.logger.Debug("Discarding stale feed page", zap.Int("page", page))
		return ErrStale
	}
	l.loading = false

	if err != nil {
		l.err = err
		l.mu.Unlock()
		l.logger.Warn("Failed to fetch posts", zap.Int("page", page), zap.Error(err))
		return err
	}

	if !appendPage {
		l.ids = l.ids[:0]
	}
	known := make(map[string]bool, len(l.ids))
	for _, id := range l.ids {
		known[id] = true
	}
	fresh := make([]*posts.Post, 0, len(result.Posts))
	for _, p := range result.Posts {
		if p == nil || p.ID == "" || known[p.ID] {
			continue
		}
		known[p.ID] = true
		p.SyncLiked(viewerID)
		fresh = append(fresh, p)
		l.ids = append(l.ids, p.ID)
	}

	l.page = page
	l.hasMore = result.HasMore
	l.total = result.Total
	l.mu.Unlock()

	// Store notifications run outside the loader lock. Posts changed locally while the
	// page was in flight keep their local copy.
	for _, p := range fresh {
		l.store.UpsertSince(p, mark)
	}
	return nil
}

// State returns the current feed. Posts are read through the store so local changes
// such as likes and deletions show up.
func (l *Loader) State() State {
	l.mu.Lock()
	ids := append([]string(nil), l.ids...)
	st := State{
		Page:    l.page,
		HasMore: l.hasMore,
		Total:   l.total,
		Loading: l.loading,
		Err:     l.err,
	}
	l.mu.Unlock()

	st.Posts = make([]*posts.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := l.store.Get(id); ok {
			st.Posts = append(st.Posts, p)
		}
	}
	return st
}
