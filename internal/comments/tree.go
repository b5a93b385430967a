// internal/comments/tree.go
// Comment/reply tree for one post.
// Every reply sits under the comment its parentComment names; top-level comments are
// shown newest first and replies in arrival order.

package comments

import (
	"errors"
	"sort"
	"sync"

	"github.com/imadgeboyega/kiekky-client/internal/posts"
)

var (
	ErrParentNotFound = errors.New("parent comment not found")
	ErrMissingID      = errors.New("comment has no id")
)

type node struct {
	comment posts.Comment // Replies is always nil here; children live in replies
	replies []*node
}

// Tree is safe for concurrent use
type Tree struct {
	mu    sync.RWMutex
	roots []*node
	index map[string]*node
}

// Row is one rendered line of the tree
type Row struct {
	Comment posts.Comment
	Depth   int
}

func NewTree() *Tree {
	return &Tree{index: make(map[string]*node)}
}

// Normalize builds a tree from a backend response. Replies may arrive nested, flat at
// the top level, or both. Duplicates keep their first occurrence and replies whose
// parent is unknown are dropped.
func Normalize(raw []posts.Comment) *Tree {
	type entry struct {
		comment posts.Comment
		parent  string
	}

	var (
		ordered []entry
		seen    = make(map[string]bool)
	)
	var collect func(list []posts.Comment, nestedUnder string)
	collect = func(list []posts.Comment, nestedUnder string) {
		for _, c := range list {
			if c.ID == "" || seen[c.ID] {
				continue
			}
			seen[c.ID] = true

			parent := nestedUnder
			if c.IsReply() {
				parent = *c.ParentComment
			}
			children := c.Replies
			c.Replies = nil
			if parent != "" && !c.IsReply() {
				p := parent
				c.ParentComment = &p
			}
			ordered = append(ordered, entry{comment: c, parent: parent})
			collect(children, c.ID)
		}
	}
	collect(raw, "")

	nodes := make(map[string]*node, len(ordered))
	for _, e := range ordered {
		nodes[e.comment.ID] = &node{comment: e.comment}
	}

	t := NewTree()
	for _, e := range ordered {
		n := nodes[e.comment.ID]
		if e.parent == "" {
			t.roots = append(t.roots, n)
			continue
		}
		if parent, ok := nodes[e.parent]; ok && e.parent != e.comment.ID {
			parent.replies = append(parent.replies, n)
		}
	}

	// Index only what is reachable from a root; parent cycles are dropped with orphans
	var index func(list []*node)
	index = func(list []*node) {
		for _, n := range list {
			t.index[n.comment.ID] = n
			index(n.replies)
		}
	}
	index(t.roots)

	return t
}

// Reset replaces the contents with a backend response. Comments that exist only locally
// (added while the response was in flight) are kept.
func (t *Tree) Reset(raw []posts.Comment) {
	loaded := Normalize(raw)

	t.mu.Lock()
	defer t.mu.Unlock()

	var local []*node
	for _, n := range t.roots {
		if _, ok := loaded.index[n.comment.ID]; !ok {
			local = append(local, n)
		}
	}
	var pending []posts.Comment
	for id, n := range t.index {
		if _, ok := loaded.index[id]; ok || !n.comment.IsReply() {
			continue
		}
		if _, parentLoaded := loaded.index[*n.comment.ParentComment]; parentLoaded {
			pending = append(pending, n.comment)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	t.roots = append(local, loaded.roots...)
	t.index = loaded.index
	for _, n := range local {
		var reindex func(n *node)
		reindex = func(n *node) {
			t.index[n.comment.ID] = n
			for _, r := range n.replies {
				reindex(r)
			}
		}
		reindex(n)
	}
	for _, c := range pending {
		if parent, ok := t.index[*c.ParentComment]; ok {
			if _, dup := t.index[c.ID]; !dup {
				parent.replies = append(parent.replies, t.adopt(c))
			}
		}
	}
}

// Insert places c by its parentComment
func (t *Tree) Insert(c posts.Comment) error {
	if c.IsReply() {
		return t.AddReply(*c.ParentComment, c)
	}
	t.AddTopLevel(c)
	return nil
}

// AddTopLevel puts c first. It reports false if the id is already present.
func (t *Tree) AddTopLevel(c posts.Comment) bool {
	if c.ID == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.index[c.ID]; ok {
		return false
	}
	c.ParentComment = nil
	n := t.adopt(c)
	t.roots = append([]*node{n}, t.roots...)
	return true
}

// AddReply appends c to the replies of parentID, wherever that comment sits.
// A duplicate id is ignored.
func (t *Tree) AddReply(parentID string, c posts.Comment) error {
	if c.ID == "" {
		return ErrMissingID
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.index[parentID]
	if !ok {
		return ErrParentNotFound
	}
	if _, dup := t.index[c.ID]; dup {
		return nil
	}
	c.ParentComment = &parentID
	parent.replies = append(parent.replies, t.adopt(c))
	return nil
}

// adopt indexes c and any replies it carries. Caller holds t.mu.
func (t *Tree) adopt(c posts.Comment) *node {
	children := c.Replies
	c.Replies = nil
	n := &node{comment: c.Clone()}
	t.index[c.ID] = n
	for _, child := range children {
		if child.ID == "" {
			continue
		}
		if _, dup := t.index[child.ID]; dup {
			continue
		}
		id := c.ID
		child.ParentComment = &id
		n.replies = append(n.replies, t.adopt(child))
	}
	return n
}

// Find returns the comment with its replies
func (t *Tree) Find(id string) (posts.Comment, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.index[id]
	if !ok {
		return posts.Comment{}, false
	}
	return n.export(), true
}

// Len counts every comment in the tree
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.index)
}

// TopLevel returns the top-level comments with nested replies, in display order
func (t *Tree) TopLevel() []posts.Comment {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]posts.Comment, 0, len(t.roots))
	for _, n := range t.roots {
		out = append(out, n.export())
	}
	return out
}

// Walk visits comments depth first in display order
func (t *Tree) Walk(fn func(c posts.Comment, depth int)) {
	for _, row := range t.Rows() {
		fn(row.Comment, row.Depth)
	}
}

// Rows flattens the tree depth first
func (t *Tree) Rows() []Row {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows := make([]Row, 0, len(t.index))
	var walk func(list []*node, depth int)
	walk = func(list []*node, depth int) {
		for _, n := range list {
			rows = append(rows, Row{Comment: n.comment.Clone(), Depth: depth})
			walk(n.replies, depth+1)
		}
	}
	walk(t.roots, 0)
	return rows
}

func (n *node) export() posts.Comment {
	c := n.comment.Clone()
	c.Replies = make([]posts.Comment, 0, len(n.replies))
	for _, r := range n.replies {
		c.Replies = append(c.Replies, r.export())
	}
	return c
}
