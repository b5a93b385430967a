// internal/realtime/events.go

package realtime

import (
	"encoding/json"
	"time"

	"github.com/imadgeboyega/kiekky-client/internal/posts"
)

// Event is one message pushed by the backend
type Event struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

type EventType string

const (
	EventPostLiked    EventType = "post_liked"
	EventPostUnliked  EventType = "post_unliked"
	EventCommentAdded EventType = "comment_added"
	EventPostDeleted  EventType = "post_deleted"
)

// LikeEvent is the payload of post_liked and post_unliked
type LikeEvent struct {
	PostID string `json:"postId"`
	UserID string `json:"userId"`
}

// CommentEvent is the payload of comment_added
type CommentEvent struct {
	PostID  string        `json:"postId"`
	Comment posts.Comment `json:"comment"`
}

// DeleteEvent is the payload of post_deleted
type DeleteEvent struct {
	PostID string `json:"postId"`
}
