// internal/detail/view.go
// Post detail: the post, its author, comments and the actions offered to the viewer.
// Background loads run under the view's context; results that complete after Close are
// dropped.

package detail

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/imadgeboyega/kiekky-client/internal/authors"
	"github.com/imadgeboyega/kiekky-client/internal/comments"
	"github.com/imadgeboyega/kiekky-client/internal/common/apperror"
	"github.com/imadgeboyega/kiekky-client/internal/common/logger"
	"github.com/imadgeboyega/kiekky-client/internal/posts"
)

// Action is something the viewer can do with the post
type Action string

const (
	ActionDelete Action = "delete"
	ActionEdit   Action = "edit"
	ActionReport Action = "report"
	ActionShare  Action = "share"
)

var (
	ErrClosed   = errors.New("post view is closed")
	ErrDeclined = errors.New("deletion not confirmed")
)

// Confirmer asks the user to confirm a destructive action
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// TreeRegistry receives the view's comment tree so live events can reach it
type TreeRegistry interface {
	Register(postID string, tree *comments.Tree) (unregister func())
}

// Deps are the shared objects a view works with
type Deps struct {
	Posts   *posts.Service
	Repo    posts.Repository
	Store   *posts.Store
	Likes   *posts.LikeToggler
	Authors *authors.Resolver
	Viewer  posts.ViewerSource
	Trees   TreeRegistry // optional
	Logger  *zap.Logger
}

type View struct {
	deps     Deps
	postID   string
	authorID string
	tree     *comments.Tree
	composer *comments.Composer
	logger   *zap.Logger

	ctx        context.Context
	cancel     context.CancelFunc
	loads      *errgroup.Group
	unregister func()

	mu     sync.Mutex
	closed bool
	author authors.Record
}

// Open shows post and starts loading its author, a fresh copy of the post and its
// comments. Each load that fails is logged and leaves what is already shown.
func Open(ctx context.Context, deps Deps, post *posts.Post) *View {
	log := logger.OrNop(deps.Logger).With(zap.String("post_id", post.ID))

	if _, ok := deps.Store.Get(post.ID); !ok {
		deps.Store.Upsert(post)
	}

	vctx, cancel := context.WithCancel(ctx)
	tree := comments.NewTree()
	v := &View{
		deps:     deps,
		postID:   post.ID,
		authorID: post.Author,
		tree:     tree,
		composer: comments.NewComposer(post.ID, tree, deps.Repo, log),
		logger:   log,
		ctx:      vctx,
		cancel:   cancel,
		author:   authors.Placeholder(),
	}
	if deps.Trees != nil {
		v.unregister = deps.Trees.Register(post.ID, tree)
	}
	if rec, ok := deps.Authors.Cached(post.Author); ok {
		v.author = rec
	}

	mark := deps.Store.Mark()
	g, gctx := errgroup.WithContext(vctx)
	g.Go(func() error {
		rec := deps.Authors.Resolve(gctx, v.authorID)
		v.whileOpen(func() { v.author = rec })
		return nil
	})
	g.Go(func() error {
		fresh, err := deps.Repo.GetPostByID(gctx, v.postID)
		if err != nil {
			log.Warn("Failed to refresh post", zap.Error(err))
			return nil
		}
		viewerID, _ := deps.Viewer.BackendUserID(gctx)
		fresh.SyncLiked(viewerID)
		v.whileOpen(func() {
			if !deps.Store.UpsertSince(fresh, mark) {
				log.Debug("Post changed locally during refresh, keeping local copy")
			}
		})
		return nil
	})
	g.Go(func() error {
		list, err := deps.Repo.GetPostComments(gctx, v.postID)
		if err != nil {
			log.Warn("Failed to fetch comments", zap.Error(err))
			return nil
		}
		v.whileOpen(func() { tree.Reset(list) })
		return nil
	})
	v.loads = g

	return v
}

// whileOpen runs fn unless the view has been closed. It holds the view lock, so fn must
// not call back into the view.
func (v *View) whileOpen(fn func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	fn()
}

// Wait blocks until the background loads have finished or ctx is done
func (v *View) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = v.loads.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post returns the current copy of the post from the store
func (v *View) Post() (*posts.Post, bool) {
	return v.deps.Store.Get(v.postID)
}

func (v *View) PostID() string {
	return v.postID
}

// AuthorID is the backend id of the post's author
func (v *View) AuthorID() string {
	return v.authorID
}

// IsOwner compares the signed-in backend user with the post's author
func (v *View) IsOwner() bool {
	viewerID, err := v.deps.Viewer.BackendUserID(v.ctx)
	if err != nil || viewerID == "" {
		return false
	}
	return viewerID == v.authorID
}

// Author returns the author's display record, a placeholder until it resolves
func (v *View) Author() authors.Record {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.author
}

// Actions lists what the menu offers. Delete and edit are only offered to the owner.
func (v *View) Actions() []Action {
	if v.IsOwner() {
		return []Action{ActionEdit, ActionDelete, ActionReport, ActionShare}
	}
	return []Action{ActionReport, ActionShare}
}

// Delete asks for confirmation and removes the post. A non-owner gets posts.ErrNotOwner
// and nothing is sent. On success the view is closed.
func (v *View) Delete(ctx context.Context, confirm Confirmer) error {
	if v.Closed() {
		return ErrClosed
	}
	if !v.IsOwner() {
		return posts.ErrNotOwner
	}

	ok, err := confirm.Confirm(ctx, "Are you sure you want to delete this post?")
	if err != nil {
		return err
	}
	if !ok {
		return ErrDeclined
	}

	if err := v.deps.Posts.DeletePost(ctx, v.postID); err != nil {
		return err
	}
	v.Close()
	return nil
}

// Edit changes caption and location of an owned post
func (v *View) Edit(ctx context.Context, caption, location string) (*posts.Post, error) {
	if v.Closed() {
		return nil, ErrClosed
	}
	if !v.IsOwner() {
		return nil, posts.ErrNotOwner
	}
	return v.deps.Posts.UpdatePost(ctx, v.postID, &posts.UpdatePostRequest{
		Content:  caption,
		Location: location,
	})
}

// ToggleLike flips the viewer's like and returns the state now shown
func (v *View) ToggleLike(ctx context.Context) (bool, error) {
	if v.Closed() {
		return false, ErrClosed
	}
	return v.deps.Likes.Toggle(ctx, v.postID)
}

// Liker is a user who liked the post
type Liker struct {
	UserID string
	authors.Record
}

// Likers loads who liked the post with their display records
func (v *View) Likers(ctx context.Context) ([]Liker, error) {
	ids, err := v.deps.Repo.GetPostLikes(ctx, v.postID)
	if err != nil {
		v.logger.Warn("Failed to fetch likes", zap.Error(err))
		return nil, err
	}
	records := v.deps.Authors.ResolveMany(ctx, ids)
	out := make([]Liker, len(ids))
	for i, id := range ids {
		out[i] = Liker{UserID: id, Record: records[i]}
	}
	return out, nil
}

// Composer is the comment input bound to this view's tree
func (v *View) Composer() *comments.Composer {
	return v.composer
}

func (v *View) Tree() *comments.Tree {
	return v.tree
}

// Close abandons the view. Loads still in flight are cancelled and their results dropped.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.mu.Unlock()

	v.cancel()
	if v.unregister != nil {
		v.unregister()
	}
}

func (v *View) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// IsDeclined reports whether err means the user backed out of a confirmation
func IsDeclined(err error) bool {
	return errors.Is(err, ErrDeclined)
}

// UserMessage converts errors returned by the view into alert text
func UserMessage(err error) string {
	if errors.Is(err, ErrClosed) {
		return "This post is no longer open"
	}
	return apperror.UserMessage(err)
}
