// internal/backendtest/backend.go
// In-memory stand-in for the Kiekky REST backend, served over httptest.
// Tests seed users and posts, inject failures per route and hold requests mid-flight.

package backendtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

type User struct {
	ID         string   `json:"_id"`
	ClerkID    string   `json:"clerkId,omitempty"`
	Email      string   `json:"email,omitempty"`
	Username   string   `json:"username,omitempty"`
	FirstName  string   `json:"firstName,omitempty"`
	LastName   string   `json:"lastName,omitempty"`
	ProfileImg string   `json:"profileImg,omitempty"`
	Bio        string   `json:"bio,omitempty"`
	Followers  []string `json:"followers"`
	Following  []string `json:"following"`
	Posts      []string `json:"posts"`
	SavedPosts []string `json:"savedPosts"`
}

type Post struct {
	ID        string    `json:"_id"`
	Author    string    `json:"author"`
	Image     string    `json:"image"`
	Content   string    `json:"content"`
	Location  string    `json:"location,omitempty"`
	Tags      []string  `json:"tags"`
	Likes     []string  `json:"likes"`
	Comments  []string  `json:"comments"`
	Filters   string    `json:"filters,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type CommentAuthor struct {
	ID       string `json:"_id"`
	Username string `json:"username,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type Comment struct {
	ID            string        `json:"_id"`
	Post          string        `json:"post"`
	Author        CommentAuthor `json:"author"`
	Content       string        `json:"content"`
	CreatedAt     time.Time     `json:"createdAt"`
	ParentComment *string       `json:"parentComment,omitempty"`
	Replies       []Comment     `json:"replies"`
}

// CreateRecord captures the last multipart create request
type CreateRecord struct {
	Fields        map[string]string
	ImageFilename string
	ImageType     string
	ImageSize     int
}

// Options tweak response shapes
type Options struct {
	// UserKey is the envelope key for GET /users/{id}: "Data", "data" or "user"
	UserKey string
	// FlatComments returns every comment at the top level instead of nesting replies
	FlatComments bool
	// LikeOmitsState leaves isLiked out of like toggle responses
	LikeOmitsState bool
}

type failure struct {
	status  int
	message string
	times   int
}

// Gate holds requests on one route until released
type Gate struct {
	Arrived chan struct{}
	release chan struct{}
	once    sync.Once
}

// Release lets every held and future request on the route through
func (g *Gate) Release() {
	g.once.Do(func() { close(g.release) })
}

type Backend struct {
	Server *httptest.Server

	mu          sync.Mutex
	opts        Options
	users       map[string]*User
	clerkImages map[string]string
	identities  map[string]map[string]string
	posts       map[string]*Post
	order       []string // newest first
	comments    map[string][]*Comment
	tokens      map[string]string
	calls       map[string]int
	failures    map[string]*failure
	gates       map[string]*Gate
	lastCreate  *CreateRecord
	seq         int

	hub *hub
}

// New starts a backend. Close it with Backend.Close.
func New(opts Options) *Backend {
	if opts.UserKey == "" {
		opts.UserKey = "Data"
	}
	b := &Backend{
		opts:        opts,
		users:       make(map[string]*User),
		clerkImages: make(map[string]string),
		identities:  make(map[string]map[string]string),
		posts:       make(map[string]*Post),
		comments:    make(map[string][]*Comment),
		tokens:      make(map[string]string),
		calls:       make(map[string]int),
		failures:    make(map[string]*failure),
		gates:       make(map[string]*Gate),
		hub:         newHub(),
	}

	r := chi.NewRouter()
	r.Route("/api", b.routes)
	b.Server = httptest.NewServer(r)
	return b
}

// URL is the API root, e.g. http://127.0.0.1:1234/api
func (b *Backend) URL() string {
	return b.Server.URL + "/api"
}

// WebSocketURL is the realtime endpoint
func (b *Backend) WebSocketURL() string {
	return "ws" + b.Server.URL[len("http"):] + "/api/ws"
}

func (b *Backend) Close() {
	b.hub.closeAll()
	b.Server.Close()
}

// AddUser seeds a user. An empty ID is generated.
func (b *Backend) AddUser(u User) *User {
	b.mu.Lock()
	defer b.mu.Unlock()
	if u.ID == "" {
		u.ID = b.nextID("u")
	}
	stored := u
	b.users[u.ID] = &stored
	return &stored
}

// SetClerkImage registers the identity provider avatar for a clerk id
func (b *Backend) SetClerkImage(clerkID, imageURL string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clerkImages[clerkID] = imageURL
}

// Identity returns the fields last written to the identity-provider user clerkID
func (b *Backend) Identity(clerkID string) (map[string]string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fields, ok := b.identities[clerkID]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out, true
}

// AddPost seeds a post as the newest one
func (b *Backend) AddPost(p Post) *Post {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.ID == "" {
		p.ID = b.nextID("p")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if p.Comments == nil {
		p.Comments = []string{}
	}
	stored := p
	b.posts[p.ID] = &stored
	b.order = append([]string{p.ID}, b.order...)
	return &stored
}

// AddComment seeds a comment on a post
func (b *Backend) AddComment(postID string, c Comment) *Comment {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c.ID == "" {
		c.ID = b.nextID("c")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.Post = postID
	stored := c
	b.comments[postID] = append(b.comments[postID], &stored)
	if p, ok := b.posts[postID]; ok {
		p.Comments = append(p.Comments, c.ID)
	}
	return &stored
}

// Token issues a bearer token for userID
func (b *Backend) Token(userID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueToken(userID)
}

// RevokeTokens invalidates every issued token
func (b *Backend) RevokeTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = make(map[string]string)
}

// Post returns a copy of the stored post
func (b *Backend) Post(postID string) (Post, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.posts[postID]
	if !ok {
		return Post{}, false
	}
	out := *p
	out.Likes = append([]string(nil), p.Likes...)
	return out, true
}

// User returns a copy of the stored user
func (b *Backend) User(userID string) (User, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[userID]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// Calls returns how many requests hit route, e.g. "POST /posts/like/{id}"
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// TotalCalls returns the number of requests across all routes
func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, n := range b.calls {
		total += n
	}
	return total
}

// Fail makes the next n requests on route answer with status
func (b *Backend) Fail(route string, status int, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = &failure{status: status, message: http.StatusText(status), times: n}
}

// FailWith is Fail with a custom message
func (b *Backend) FailWith(route string, status int, message string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = &failure{status: status, message: message, times: n}
}

// Hold parks requests on route until the gate is released
func (b *Backend) Hold(route string) *Gate {
	b.mu.Lock()
	defer b.mu.Unlock()
	g := &Gate{
		Arrived: make(chan struct{}, 64),
		release: make(chan struct{}),
	}
	b.gates[route] = g
	return g
}

// LastCreate returns the last create-post form received
func (b *Backend) LastCreate() *CreateRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastCreate
}

// Broadcast sends a realtime event to every connected websocket client
func (b *Backend) Broadcast(eventType string, data interface{}) error {
	return b.hub.broadcast(eventType, data)
}

// Connections returns the number of connected websocket clients
func (b *Backend) Connections() int {
	return b.hub.count()
}

// nextID requires b.mu
func (b *Backend) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s%d", prefix, b.seq)
}

// issueToken requires b.mu
func (b *Backend) issueToken(userID string) string {
	b.seq++
	token := fmt.Sprintf("tok-%s-%d", userID, b.seq)
	b.tokens[token] = userID
	return token
}
