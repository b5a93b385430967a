// internal/realtime/dispatcher.go
// Applies realtime events to the shared posts store and to open comment trees

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/imadgeboyega/kiekky-client/internal/comments"
	"github.com/imadgeboyega/kiekky-client/internal/common/logger"
	"github.com/imadgeboyega/kiekky-client/internal/posts"
)

// Handler consumes decoded events
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

type Dispatcher struct {
	store  *posts.Store
	viewer posts.ViewerSource
	logger *zap.Logger

	mu     sync.Mutex
	trees  map[string]map[int]*comments.Tree
	nextID int
}

func NewDispatcher(store *posts.Store, viewer posts.ViewerSource, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		viewer: viewer,
		logger: logger.OrNop(log),
		trees:  make(map[string]map[int]*comments.Tree),
	}
}

// Register routes comment events for postID into tree until the returned func is called
func (d *Dispatcher) Register(postID string, tree *comments.Tree) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	if d.trees[postID] == nil {
		d.trees[postID] = make(map[int]*comments.Tree)
	}
	d.trees[postID][id] = tree
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.trees[postID], id)
		if len(d.trees[postID]) == 0 {
			delete(d.trees, postID)
		}
	}
}

// Handle applies ev. Unknown event types are ignored.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	var err error
	outcome := "applied"

	switch EventType(ev.Type) {
	case EventPostLiked, EventPostUnliked:
		outcome, err = d.handleLike(ctx, ev)
	case EventCommentAdded:
		outcome, err = d.handleComment(ev)
	case EventPostDeleted:
		outcome, err = d.handleDelete(ev)
	default:
		outcome = "unknown"
		d.logger.Debug("Ignoring realtime event", zap.String("type", ev.Type))
	}

	if err != nil {
		outcome = "invalid"
	}
	eventsReceived.WithLabelValues(ev.Type, outcome).Inc()
	return err
}

// handleLike ignores the viewer's own likes; the toggler owns those
func (d *Dispatcher) handleLike(ctx context.Context, ev Event) (string, error) {
	var payload LikeEvent
	if err := decode(ev, &payload); err != nil {
		return "", err
	}
	viewerID, _ := d.viewer.BackendUserID(ctx)
	if payload.UserID == "" || payload.UserID == viewerID {
		return "skipped", nil
	}

	liked := EventType(ev.Type) == EventPostLiked
	_, ok := d.store.Update(payload.PostID, func(p *posts.Post) {
		if liked {
			p.AddLike(payload.UserID)
		} else {
			p.RemoveLike(payload.UserID)
		}
	})
	if !ok {
		return "skipped", nil
	}
	return "applied", nil
}

func (d *Dispatcher) handleComment(ev Event) (string, error) {
	var payload CommentEvent
	if err := decode(ev, &payload); err != nil {
		return "", err
	}
	c := payload.Comment
	if c.ID == "" {
		return "", fmt.Errorf("comment_added without comment id")
	}
	if c.Post == "" {
		c.Post = payload.PostID
	}

	d.store.Update(payload.PostID, func(p *posts.Post) {
		for _, id := range p.Comments {
			if id == c.ID {
				return
			}
		}
		p.Comments = append(p.Comments, c.ID)
	})

	for _, tree := range d.treesFor(payload.PostID) {
		if err := tree.Insert(c); err != nil {
			d.logger.Debug("Dropping live reply without parent",
				zap.String("post_id", payload.PostID),
				zap.String("comment_id", c.ID),
			)
		}
	}
	return "applied", nil
}

func (d *Dispatcher) handleDelete(ev Event) (string, error) {
	var payload DeleteEvent
	if err := decode(ev, &payload); err != nil {
		return "", err
	}
	if !d.store.Remove(payload.PostID) {
		return "skipped", nil
	}
	return "applied", nil
}

func (d *Dispatcher) treesFor(postID string) []*comments.Tree {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*comments.Tree, 0, len(d.trees[postID]))
	for _, t := range d.trees[postID] {
		out = append(out, t)
	}
	return out
}

func decode(ev Event, v interface{}) error {
	if err := json.Unmarshal(ev.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s event: %w", ev.Type, err)
	}
	return nil
}
