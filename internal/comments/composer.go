// internal/comments/composer.go
// Compose state for the comment input of a post view

package comments

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/imadgeboyega/kiekky-client/internal/common/apperror"
	"github.com/imadgeboyega/kiekky-client/internal/common/logger"
	"github.com/imadgeboyega/kiekky-client/internal/common/utils"
	"github.com/imadgeboyega/kiekky-client/internal/posts"
)

var (
	ErrEmptyComment = apperror.Validation("Comment cannot be empty")
	ErrSubmitting   = apperror.New(apperror.KindConflict, "a comment is already being sent")
)

// Poster sends comments to the backend
type Poster interface {
	AddComment(ctx context.Context, postID string, req *posts.CommentRequest) (*posts.Comment, error)
}

// ReplyTarget is the comment a reply is addressed to
type ReplyTarget struct {
	CommentID string
	Username  string
}

type Composer struct {
	postID string
	tree   *Tree
	poster Poster
	logger *zap.Logger

	mu         sync.Mutex
	text       string
	replyingTo *ReplyTarget
	submitting bool
}

func NewComposer(postID string, tree *Tree, poster Poster, log *zap.Logger) *Composer {
	return &Composer{
		postID: postID,
		tree:   tree,
		poster: poster,
		logger: logger.OrNop(log),
	}
}

func (c *Composer) SetText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
}

func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// StartReply addresses the next submission to commentID
func (c *Composer) StartReply(commentID string) error {
	target, ok := c.tree.Find(commentID)
	if !ok {
		return ErrParentNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replyingTo = &ReplyTarget{CommentID: commentID, Username: target.Author.Username}
	return nil
}

func (c *Composer) CancelReply() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replyingTo = nil
}

// ReplyingTo returns the current reply target, or nil
func (c *Composer) ReplyingTo() *ReplyTarget {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.replyingTo == nil {
		return nil
	}
	target := *c.replyingTo
	return &target
}

// Submit sends the trimmed text as a comment, or as a reply when a target is set.
// Blank text sends nothing. On failure the tree and the text are left as they were.
func (c *Composer) Submit(ctx context.Context) (*posts.Comment, error) {
	c.mu.Lock()
	content := strings.TrimSpace(c.text)
	if content == "" {
		c.mu.Unlock()
		return nil, ErrEmptyComment
	}
	if c.submitting {
		c.mu.Unlock()
		return nil, ErrSubmitting
	}
	req := &posts.CommentRequest{Content: content}
	var target *ReplyTarget
	if c.replyingTo != nil {
		t := *c.replyingTo
		target = &t
		req.ParentComment = &t.CommentID
	}
	c.submitting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	created, err := c.poster.AddComment(ctx, c.postID, req)
	if err != nil {
		c.logger.Warn("Failed to add comment", zap.String("post_id", c.postID), zap.Error(err))
		return nil, err
	}

	if target != nil {
		if err := c.tree.AddReply(target.CommentID, *created); err != nil {
			c.logger.Warn("Reply parent vanished", zap.String("parent_id", target.CommentID), zap.Error(err))
		}
	} else {
		created.ParentComment = nil
		c.tree.AddTopLevel(*created)
	}

	c.mu.Lock()
	c.text = ""
	c.replyingTo = nil
	c.mu.Unlock()

	return created, nil
}
