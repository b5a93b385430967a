// internal/posts/store.go
// In-memory collection of posts shared by every view of the running client
package posts

import (
	"sync"
)

// ChangeKind describes what happened to the collection
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeUpdated
	ChangeRemoved
	ChangeReplaced
)

// Change is delivered to subscribers after the store has been modified
type Change struct {
	Kind   ChangeKind
	PostID string
}

// Store holds posts newest first. Readers receive copies.
//
// Local changes (Add, Update, Remove, Replace) advance a mutation clock and stamp the post.
// Backend snapshots applied through UpsertSince are dropped when the post was stamped after
// the request went out, so a slow response cannot undo a like or a deletion made meanwhile.
type Store struct {
	mu          sync.RWMutex
	order       []string
	posts       map[string]*Post
	clock       uint64
	touched     map[string]uint64
	subscribers map[int]func(Change)
	nextSubID   int
}

func NewStore() *Store {
	return &Store{
		posts:       make(map[string]*Post),
		touched:     make(map[string]uint64),
		subscribers: make(map[int]func(Change)),
	}
}

// Mark returns the current mutation clock. Take it before sending a request whose response
// is applied with UpsertSince.
func (s *Store) Mark() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock
}

// touch stamps a local change. Caller holds the write lock.
func (s *Store) touch(postID string) {
	s.clock++
	s.touched[postID] = s.clock
}

// Add inserts a post at the front. An existing post with the same id is replaced and moved.
func (s *Store) Add(post *Post) {
	if post == nil || post.ID == "" {
		return
	}
	s.mu.Lock()
	if _, ok := s.posts[post.ID]; ok {
		s.removeFromOrder(post.ID)
	}
	s.posts[post.ID] = post.Clone()
	s.order = append([]string{post.ID}, s.order...)
	s.touch(post.ID)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeAdded, PostID: post.ID})
}

// Upsert replaces a known post in place or appends an unknown one
func (s *Store) Upsert(post *Post) {
	if post == nil || post.ID == "" {
		return
	}
	s.mu.Lock()
	known := s.put(post)
	s.mu.Unlock()

	s.notifyPut(post.ID, known)
}

// UpsertSince applies a backend snapshot fetched by a request sent at mark. It is dropped,
// and false returned, when the post changed locally after mark.
func (s *Store) UpsertSince(post *Post, mark uint64) bool {
	if post == nil || post.ID == "" {
		return false
	}
	s.mu.Lock()
	if s.touched[post.ID] > mark {
		s.mu.Unlock()
		return false
	}
	known := s.put(post)
	s.mu.Unlock()

	s.notifyPut(post.ID, known)
	return true
}

// Remember stores post only when no copy is held and it was not removed locally. Used for
// locally cached lists, which are never fresher than what the store already has.
func (s *Store) Remember(post *Post) bool {
	if post == nil || post.ID == "" {
		return false
	}
	s.mu.Lock()
	if _, ok := s.posts[post.ID]; ok || s.touched[post.ID] > 0 {
		s.mu.Unlock()
		return false
	}
	s.put(post)
	s.mu.Unlock()

	s.notifyPut(post.ID, false)
	return true
}

// put stores a copy and reports whether the post was already known. Caller holds the
// write lock.
func (s *Store) put(post *Post) bool {
	_, known := s.posts[post.ID]
	s.posts[post.ID] = post.Clone()
	if !known {
		s.order = append(s.order, post.ID)
	}
	return known
}

func (s *Store) notifyPut(postID string, known bool) {
	kind := ChangeUpdated
	if !known {
		kind = ChangeAdded
	}
	s.notify(Change{Kind: kind, PostID: postID})
}

// Replace swaps the whole collection, keeping the given order
func (s *Store) Replace(posts []*Post) {
	s.mu.Lock()
	s.posts = make(map[string]*Post, len(posts))
	s.order = make([]string, 0, len(posts))
	for _, p := range posts {
		if p == nil || p.ID == "" {
			continue
		}
		if _, dup := s.posts[p.ID]; !dup {
			s.order = append(s.order, p.ID)
		}
		s.posts[p.ID] = p.Clone()
		s.touch(p.ID)
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeReplaced})
}

func (s *Store) Get(postID string) (*Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[postID]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// All returns every post in display order
func (s *Store) All() []*Post {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Post, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.posts[id].Clone())
	}
	return out
}

// ByUser returns the posts authored by userID in display order
func (s *Store) ByUser(userID string) []*Post {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Post, 0)
	for _, id := range s.order {
		if p := s.posts[id]; p.Author == userID {
			out = append(out, p.Clone())
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Remove deletes a post. It reports whether the post was present.
func (s *Store) Remove(postID string) bool {
	s.mu.Lock()
	_, ok := s.posts[postID]
	if ok {
		delete(s.posts, postID)
		s.removeFromOrder(postID)
		s.touch(postID)
	}
	s.mu.Unlock()

	if ok {
		s.notify(Change{Kind: ChangeRemoved, PostID: postID})
	}
	return ok
}

// Update applies fn to the stored post under the write lock and returns a copy of the
// result. fn must not call back into the store.
func (s *Store) Update(postID string, fn func(*Post)) (*Post, bool) {
	s.mu.Lock()
	p, ok := s.posts[postID]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	fn(p)
	s.touch(postID)
	out := p.Clone()
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeUpdated, PostID: postID})
	return out, true
}

// Subscribe registers fn for change notifications and returns a function that removes it.
// fn runs synchronously after the change, outside the store lock.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(change Change) {
	s.mu.RLock()
	subs := make([]func(Change), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(change)
	}
}

func (s *Store) removeFromOrder(postID string) {
	for i, id := range s.order {
		if id == postID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}
