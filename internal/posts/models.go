// internal/posts/models.go
package posts

import (
	"encoding/json"
	"strings"
	"time"
)

type Post struct {
	ID        string    `json:"_id"`
	Author    string    `json:"author"` // backend user id
	Image     string    `json:"image"`
	Content   string    `json:"content"`
	Location  string    `json:"location,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Likes     []string  `json:"likes"`
	Comments  []string  `json:"comments"`
	Filters   string    `json:"filters,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	// Derived for the viewing user
	IsLiked bool `json:"isLiked"`

	// Set when the backend embeds the author instead of sending an id
	AuthorInfo *UserInfo `json:"-"`
}

type UserInfo struct {
	ID       string `json:"_id"`
	Username string `json:"username,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// UnmarshalJSON accepts the author as an id or as an embedded user, the caption under
// "content" or "caption", and tags under "tags" or "category"
func (p *Post) UnmarshalJSON(data []byte) error {
	type alias Post
	aux := struct {
		*alias
		Author   json.RawMessage `json:"author"`
		Caption  string          `json:"caption"`
		Category []string        `json:"category"`
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	id, info, err := decodeUserRef(aux.Author)
	if err != nil {
		return err
	}
	p.Author = id
	p.AuthorInfo = info

	if p.Content == "" {
		p.Content = aux.Caption
	}
	if len(p.Tags) == 0 && len(aux.Category) > 0 {
		p.Tags = aux.Category
	}
	p.Likes = dedupe(p.Likes)
	return nil
}

// HasLike reports whether userID is in the like set
func (p *Post) HasLike(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// AddLike inserts userID into the like set. It reports whether the set changed.
func (p *Post) AddLike(userID string) bool {
	if userID == "" || p.HasLike(userID) {
		return false
	}
	p.Likes = append(p.Likes, userID)
	return true
}

// RemoveLike removes userID from the like set. It reports whether the set changed.
func (p *Post) RemoveLike(userID string) bool {
	for i, id := range p.Likes {
		if id == userID {
			p.Likes = append(p.Likes[:i:i], p.Likes[i+1:]...)
			return true
		}
	}
	return false
}

// SetLiked adds or removes userID and keeps IsLiked consistent
func (p *Post) SetLiked(userID string, liked bool) {
	if liked {
		p.AddLike(userID)
	} else {
		p.RemoveLike(userID)
	}
	p.IsLiked = liked
}

// SyncLiked recomputes IsLiked from membership
func (p *Post) SyncLiked(viewerID string) {
	p.IsLiked = viewerID != "" && p.HasLike(viewerID)
}

func (p *Post) LikesCount() int {
	return len(p.Likes)
}

// Clone returns a deep copy
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	c.Tags = append([]string(nil), p.Tags...)
	c.Likes = append([]string(nil), p.Likes...)
	c.Comments = append([]string(nil), p.Comments...)
	if p.AuthorInfo != nil {
		info := *p.AuthorInfo
		c.AuthorInfo = &info
	}
	return &c
}

type Comment struct {
	ID            string        `json:"_id"`
	Post          string        `json:"post,omitempty"`
	Author        CommentAuthor `json:"author"`
	Content       string        `json:"content"`
	CreatedAt     time.Time     `json:"createdAt"`
	ParentComment *string       `json:"parentComment,omitempty"`
	Replies       []Comment     `json:"replies,omitempty"`
}

// IsReply reports whether the comment names a parent
func (c *Comment) IsReply() bool {
	return c.ParentComment != nil && *c.ParentComment != ""
}

// Clone returns a deep copy including replies
func (c Comment) Clone() Comment {
	out := c
	if c.ParentComment != nil {
		parent := *c.ParentComment
		out.ParentComment = &parent
	}
	if c.Replies != nil {
		out.Replies = make([]Comment, len(c.Replies))
		for i, r := range c.Replies {
			out.Replies[i] = r.Clone()
		}
	}
	return out
}

type CommentAuthor struct {
	ID       string `json:"_id"`
	Username string `json:"username,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// UnmarshalJSON accepts an id string or an embedded user
func (a *CommentAuthor) UnmarshalJSON(data []byte) error {
	id, info, err := decodeUserRef(data)
	if err != nil {
		return err
	}
	if info != nil {
		*a = CommentAuthor{ID: info.ID, Username: info.Username, ImageURL: info.ImageURL}
		return nil
	}
	*a = CommentAuthor{ID: id}
	return nil
}

type CreatePostInput struct {
	Image    string   `json:"image" validate:"notblank"` // path, URL, s3:// or data URI
	Caption  string   `json:"caption" validate:"notblank,max=2200"`
	Tags     []string `json:"tags" validate:"min=1,dive,notblank"`
	Location string   `json:"location,omitempty" validate:"max=200"`
	Filters  string   `json:"filters,omitempty"`
}

type UpdatePostRequest struct {
	Content  string `json:"content,omitempty" validate:"max=2200"`
	Location string `json:"location,omitempty" validate:"max=200"`
}

type CommentRequest struct {
	Content       string  `json:"content" validate:"notblank,max=1000"`
	ParentComment *string `json:"parentComment,omitempty"`
}

type DeleteRequest struct {
	UserID string `json:"userId"`
}

type PaginationParams struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type FeedPage struct {
	Posts   []*Post `json:"posts"`
	HasMore bool    `json:"hasMore"`
	Total   int     `json:"total"`
}

// LikeResult is the backend's answer to a like toggle
type LikeResult struct {
	Success bool
	IsLiked *bool // nil when the backend did not report the new state
	Likes   []string
}

// SaveResult is the backend's answer to a save toggle
type SaveResult struct {
	Success bool `json:"success"`
	IsSaved bool `json:"isSaved"`
}

// NormalizeTags trims tags and drops blanks and duplicates, keeping first occurrence order
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func decodeUserRef(raw json.RawMessage) (string, *UserInfo, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil, nil
	}
	if raw[0] == '"' {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", nil, err
		}
		return id, nil, nil
	}
	var info UserInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return "", nil, err
	}
	return info.ID, &info, nil
}

func dedupe(ids []string) []string {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
