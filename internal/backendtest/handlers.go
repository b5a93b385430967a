package backendtest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

type ctxKey struct{}

func (b *Backend) routes(r chi.Router) {
	// Public
	b.handle(r, http.MethodPost, "/clerk/login", false, b.clerkLogin)
	b.handle(r, http.MethodPost, "/clerk/createUser", false, b.createUser)

	b.handle(r, http.MethodGet, "/clerk/user/{clerkId}", true, b.clerkUser)
	b.handle(r, http.MethodPost, "/clerk/updateUser/{clerkId}", true, b.updateClerkUser)
	b.handle(r, http.MethodDelete, "/clerk/deleteUser/{clerkId}", true, b.deleteClerkUser)
	b.handle(r, http.MethodGet, "/auth/verify", true, b.verify)

	// Users
	b.handle(r, http.MethodGet, "/users/{id}", true, b.getUser)
	b.handle(r, http.MethodPatch, "/users/{id}", true, b.updateUser)
	b.handle(r, http.MethodDelete, "/users/{id}", true, b.deleteUser)
	b.handle(r, http.MethodPost, "/users/follow/{id}", true, b.toggleFollow)
	b.handle(r, http.MethodGet, "/users/followers/{id}", true, b.followers)
	b.handle(r, http.MethodGet, "/users/following/{id}", true, b.following)
	b.handle(r, http.MethodGet, "/users/{id}/saved-posts", true, b.savedPosts)

	// Posts
	b.handle(r, http.MethodGet, "/posts/all", true, b.listPosts)
	b.handle(r, http.MethodPost, "/posts/create", true, b.createPost)
	b.handle(r, http.MethodGet, "/posts/user/{id}", true, b.userPosts)
	b.handle(r, http.MethodGet, "/posts/like/{id}", true, b.getLikes)
	b.handle(r, http.MethodPost, "/posts/like/{id}", true, b.toggleLike)
	b.handle(r, http.MethodPost, "/posts/save/{id}", true, b.toggleSave)
	b.handle(r, http.MethodGet, "/posts/comment/{id}", true, b.listComments)
	b.handle(r, http.MethodPost, "/posts/comment/{id}", true, b.addComment)
	b.handle(r, http.MethodPatch, "/posts/update/{id}", true, b.updatePost)
	b.handle(r, http.MethodPatch, "/posts/{id}", true, b.updatePost)
	b.handle(r, http.MethodGet, "/posts/{id}", true, b.getPost)
	b.handle(r, http.MethodDelete, "/posts/{id}", true, b.deletePost)
	b.handle(r, http.MethodGet, "/comments/{id}/replies", true, b.replies)

	// Realtime
	b.handle(r, http.MethodGet, "/ws", true, b.serveWS)
}

// handle wraps a handler with call counting, failure injection, gates and auth
func (b *Backend) handle(r chi.Router, method, pattern string, private bool, h func(http.ResponseWriter, *http.Request)) {
	route := method + " " + pattern
	r.MethodFunc(method, pattern, func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		b.calls[route]++
		gate := b.gates[route]
		b.mu.Unlock()

		if gate != nil {
			gate.Arrived <- struct{}{}
			select {
			case <-gate.release:
			case <-req.Context().Done():
				return
			}
		}

		b.mu.Lock()
		if f := b.failures[route]; f != nil && f.times > 0 {
			f.times--
			b.mu.Unlock()
			writeJSON(w, f.status, map[string]interface{}{"success": false, "message": f.message})
			return
		}
		b.mu.Unlock()

		if private {
			userID, ok := b.authenticate(req)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "Unauthorized"})
				return
			}
			req = req.WithContext(context.WithValue(req.Context(), ctxKey{}, userID))
		}
		h(w, req)
	})
}

func (b *Backend) authenticate(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		return "", false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	userID, ok := b.tokens[token]
	return userID, ok
}

func caller(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

func (b *Backend) clerkLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClerkID   string `json:"clerkId"`
		Email     string `json:"email"`
		Username  string `json:"username"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		ImageURL  string `json:"imageUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClerkID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "clerkId is required"})
		return
	}

	b.mu.Lock()
	var user *User
	for _, u := range b.users {
		if u.ClerkID == req.ClerkID {
			user = u
			break
		}
	}
	if user == nil {
		user = &User{
			ID:        b.nextID("u"),
			ClerkID:   req.ClerkID,
			Email:     req.Email,
			Username:  req.Username,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		}
		b.users[user.ID] = user
	}
	if req.ImageURL != "" {
		b.clerkImages[req.ClerkID] = req.ImageURL
	}
	token := b.issueToken(user.ID)
	out := *user
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "token": token, "user": out})
}

func (b *Backend) createUser(w http.ResponseWriter, r *http.Request) {
	var req User
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClerkID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "clerkId is required"})
		return
	}

	b.mu.Lock()
	for _, u := range b.users {
		if u.ClerkID == req.ClerkID {
			b.mu.Unlock()
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "message": "User already exists"})
			return
		}
	}
	req.ID = b.nextID("u")
	stored := req
	b.users[req.ID] = &stored
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "user": stored})
}

func (b *Backend) clerkUser(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	image, ok := b.clerkImages[chi.URLParam(r, "clerkId")]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"message": "Clerk user not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": map[string]string{"imageUrl": image}})
}

func (b *Backend) verify(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "userId": caller(r)})
}

func (b *Backend) getUser(w http.ResponseWriter, r *http.Request) {
	u, ok := b.User(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "message": "User not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, b.opts.UserKey: u})
}

// ownsIdentity reports whether the caller's user is linked to clerkID. Caller holds b.mu.
func (b *Backend) ownsIdentity(r *http.Request, clerkID string) bool {
	u, ok := b.users[caller(r)]
	return ok && clerkID != "" && u.ClerkID == clerkID
}

func (b *Backend) updateClerkUser(w http.ResponseWriter, r *http.Request) {
	clerkID := chi.URLParam(r, "clerkId")

	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "invalid body"})
		return
	}

	b.mu.Lock()
	if !b.ownsIdentity(r, clerkID) {
		b.mu.Unlock()
		writeJSON(w, http.StatusForbidden, map[string]interface{}{"success": false, "message": "Not authorized to update this user"})
		return
	}
	fields := b.identities[clerkID]
	if fields == nil {
		fields = make(map[string]string)
		b.identities[clerkID] = fields
	}
	for k, v := range req {
		fields[k] = v
	}
	if image, ok := req["imageUrl"]; ok {
		b.clerkImages[clerkID] = image
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "User updated successfully"})
}

func (b *Backend) deleteClerkUser(w http.ResponseWriter, r *http.Request) {
	clerkID := chi.URLParam(r, "clerkId")

	b.mu.Lock()
	known := b.ownsIdentity(r, clerkID)
	if !known {
		// The backend user may already be gone; the identity is then matched by id alone
		for _, u := range b.users {
			if u.ClerkID == clerkID {
				known = true
				break
			}
		}
		if known {
			b.mu.Unlock()
			writeJSON(w, http.StatusForbidden, map[string]interface{}{"success": false, "message": "Not authorized to delete this user"})
			return
		}
	}
	delete(b.identities, clerkID)
	delete(b.clerkImages, clerkID)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "User deleted successfully"})
}

func (b *Backend) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id != caller(r) {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{"success": false, "message": "You can only delete your own account"})
		return
	}

	b.mu.Lock()
	if _, ok := b.users[id]; !ok {
		b.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "message": "User not found"})
		return
	}
	delete(b.users, id)
	for _, u := range b.users {
		u.Followers = without(u.Followers, id)
		u.Following = without(u.Following, id)
	}
	kept := b.order[:0]
	for _, postID := range b.order {
		if b.posts[postID].Author == id {
			delete(b.posts, postID)
			delete(b.comments, postID)
			continue
		}
		kept = append(kept, postID)
	}
	b.order = kept
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "User deleted successfully"})
}

func (b *Backend) updateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id != caller(r) {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{"success": false, "message": "You can only update your own profile"})
		return
	}

	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "invalid body"})
		return
	}

	b.mu.Lock()
	u, ok := b.users[id]
	if !ok {
		b.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "message": "User not found"})
		return
	}
	for field, value := range req {
		switch field {
		case "username":
			u.Username = value
		case "bio":
			u.Bio = value
		case "firstName":
			u.FirstName = value
		case "lastName":
			u.LastName = value
		case "profileImg":
			u.ProfileImg = value
		}
	}
	out := *u
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": out})
}

func (b *Backend) toggleFollow(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "id")
	me := caller(r)
	if target == me {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "You cannot follow yourself"})
		return
	}

	b.mu.Lock()
	other, ok := b.users[target]
	self := b.users[me]
	if !ok || self == nil {
		b.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "message": "User not found"})
		return
	}
	following := !contains(self.Following, target)
	if following {
		self.Following = append(self.Following, target)
		other.Followers = append(other.Followers, me)
	} else {
		self.Following = without(self.Following, target)
		other.Followers = without(other.Followers, me)
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "isFollowing": following})
}

func (b *Backend) followers(w http.ResponseWriter, r *http.Request) {
	b.userList(w, chi.URLParam(r, "id"), func(u *User) []string { return u.Followers })
}

func (b *Backend) following(w http.ResponseWriter, r *http.Request) {
	b.userList(w, chi.URLParam(r, "id"), func(u *User) []string { return u.Following })
}

func (b *Backend) userList(w http.ResponseWriter, id string, ids func(*User) []string) {
	b.mu.Lock()
	u, ok := b.users[id]
	if !ok {
		b.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "message": "User not found"})
		return
	}
	out := make([]User, 0)
	for _, other := range ids(u) {
		if ou, ok := b.users[other]; ok {
			out = append(out, *ou)
		}
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": out})
}

func (b *Backend) savedPosts(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	u, ok := b.users[chi.URLParam(r, "id")]
	if !ok {
		b.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "message": "User not found"})
		return
	}
	out := make([]Post, 0)
	for _, id := range u.SavedPosts {
		if p, ok := b.posts[id]; ok {
			out = append(out, *p)
		}
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": out})
}

func (b *Backend) listPosts(w http.ResponseWriter, r *http.Request) {
	page := atoiDefault(r.URL.Query().Get("page"), 1)
	limit := atoiDefault(r.URL.Query().Get("limit"), 10)
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	b.mu.Lock()
	total := len(b.order)
	start := (page - 1) * limit
	end := start + limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	out := make([]Post, 0, end-start)
	for _, id := range b.order[start:end] {
		out = append(out, *b.posts[id])
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"posts":   out,
		"page":    page,
		"total":   total,
		"hasMore": end < total,
	})
}

func (b *Backend) createPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "invalid form"})
		return
	}

	record := &CreateRecord{Fields: map[string]string{}}
	for key, values := range r.MultipartForm.Value {
		if len(values) > 0 {
			record.Fields[key] = values[0]
		}
	}

	image := record.Fields["image"]
	if file, header, err := r.FormFile("image"); err == nil {
		data, _ := io.ReadAll(file)
		file.Close()
		record.ImageFilename = header.Filename
		record.ImageType = header.Header.Get("Content-Type")
		record.ImageSize = len(data)
		image = "/uploads/posts/" + header.Filename
	}
	if image == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "image is required"})
		return
	}

	var tags []string
	if raw := record.Fields["tags"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			tags = strings.Split(raw, ",")
		}
	}

	b.mu.Lock()
	b.lastCreate = record
	b.mu.Unlock()

	post := b.AddPost(Post{
		Author:   caller(r),
		Image:    image,
		Content:  record.Fields["caption"],
		Location: record.Fields["location"],
		Filters:  record.Fields["filters"],
		Tags:     tags,
	})

	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "post": post})
}

func (b *Backend) userPosts(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	b.mu.Lock()
	out := make([]Post, 0)
	for _, id := range b.order {
		if p := b.posts[id]; p.Author == userID {
			out = append(out, *p)
		}
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "posts": out})
}

func (b *Backend) getLikes(w http.ResponseWriter, r *http.Request) {
	p, ok := b.Post(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "message": "Post not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "likes": p.Likes})
}

func (b *Backend) toggleLike(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")
	me := caller(r)

	b.mu.Lock()
	p, ok := b.posts[postID]
	if !ok {
		b.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "message": "Post not found"})
		return
	}
	liked := !contains(p.Likes, me)
	if liked {
		p.Likes = append(p.Likes, me)
	} else {
		p.Likes = without(p.Likes, me)
	}
	omit := b.opts.LikeOmitsState
	b.mu.Unlock()

	eventType := "post_unliked"
	if liked {
		eventType = "post_liked"
	}
	_ = b.Broadcast(eventType, map[string]string{"postId": postID, "userId": me})

	resp := map[string]interface{}{"success": true}
	if !omit {
		resp["isLiked"] = liked
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) toggleSave(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")

	b.mu.Lock()
	u, ok := b.users[caller(r)]
	if _, exists := b.posts[postID]; !exists || !ok {
		b.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "message": "Post not found"})
		return
	}
	saved := !contains(u.SavedPosts, postID)
	if saved {
		u.SavedPosts = append(u.SavedPosts, postID)
	} else {
		u.SavedPosts = without(u.SavedPosts, postID)
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "isSaved": saved})
}

func (b *Backend) listComments(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")

	b.mu.Lock()
	flat := b.comments[postID]
	var out []Comment
	if b.opts.FlatComments {
		out = make([]Comment, 0, len(flat))
		for _, c := range flat {
			cc := *c
			cc.Replies = []Comment{}
			out = append(out, cc)
		}
	} else {
		out = nest(flat, nil)
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Comments Fetched Successfully",
		"comments": out,
	})
}

func (b *Backend) addComment(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")
	me := caller(r)

	var req struct {
		Content       string  `json:"content"`
		ParentComment *string `json:"parentComment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "Content is required"})
		return
	}

	b.mu.Lock()
	if _, ok := b.posts[postID]; !ok {
		b.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "message": "Post not found"})
		return
	}
	if req.ParentComment != nil {
		found := false
		for _, c := range b.comments[postID] {
			if c.ID == *req.ParentComment {
				found = true
				break
			}
		}
		if !found {
			b.mu.Unlock()
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "message": "Parent comment not found"})
			return
		}
	}
	author := CommentAuthor{ID: me}
	if u, ok := b.users[me]; ok {
		author.Username = u.Username
		author.ImageURL = u.ProfileImg
	}
	b.mu.Unlock()

	comment := b.AddComment(postID, Comment{
		Author:        author,
		Content:       req.Content,
		ParentComment: req.ParentComment,
		Replies:       []Comment{},
	})
	_ = b.Broadcast("comment_added", map[string]interface{}{"postId": postID, "comment": comment})

	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "comment": comment})
}

func (b *Backend) updatePost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")

	var req struct {
		Content  *string `json:"content"`
		Location *string `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "invalid body"})
		return
	}

	b.mu.Lock()
	p, ok := b.posts[postID]
	if !ok {
		b.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "message": "Post not found"})
		return
	}
	if p.Author != caller(r) {
		b.mu.Unlock()
		writeJSON(w, http.StatusForbidden, map[string]interface{}{"success": false, "message": "Not authorized to update this post"})
		return
	}
	if req.Content != nil {
		p.Content = *req.Content
	}
	if req.Location != nil {
		p.Location = *req.Location
	}
	out := *p
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "post": out})
}

func (b *Backend) getPost(w http.ResponseWriter, r *http.Request) {
	p, ok := b.Post(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "message": "Post not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": p})
}

func (b *Backend) deletePost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")

	var req struct {
		UserID string `json:"userId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	p, ok := b.posts[postID]
	if !ok {
		b.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "message": "Post not found"})
		return
	}
	if p.Author != caller(r) || req.UserID != p.Author {
		b.mu.Unlock()
		writeJSON(w, http.StatusForbidden, map[string]interface{}{"success": false, "message": "Not authorized to delete this post"})
		return
	}
	delete(b.posts, postID)
	delete(b.comments, postID)
	for i, id := range b.order {
		if id == postID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.mu.Unlock()

	_ = b.Broadcast("post_deleted", map[string]string{"postId": postID})
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Post deleted successfully"})
}

func (b *Backend) replies(w http.ResponseWriter, r *http.Request) {
	commentID := chi.URLParam(r, "id")

	b.mu.Lock()
	out := make([]Comment, 0)
	for _, list := range b.comments {
		for _, c := range list {
			if c.ParentComment != nil && *c.ParentComment == commentID {
				out = append(out, *c)
			}
		}
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "replies": out})
}

// nest builds the reply tree below parent. Caller holds b.mu.
func nest(flat []*Comment, parent *string) []Comment {
	out := make([]Comment, 0)
	for _, c := range flat {
		if (parent == nil) != (c.ParentComment == nil) {
			continue
		}
		if parent != nil && *c.ParentComment != *parent {
			continue
		}
		cc := *c
		id := c.ID
		cc.Replies = nest(flat, &id)
		out = append(out, cc)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func without(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func atoiDefault(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
