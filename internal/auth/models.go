// internal/auth/models.go
// Data structures for the backend session exchange

package auth

// IdentityUser is the user handed over by the identity provider after sign-in
type IdentityUser struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Username  string
	ImageURL  string
}

// User is the backend account
type User struct {
	ID         string   `json:"_id"`
	ClerkID    string   `json:"clerkId"`
	Email      string   `json:"email"`
	Username   string   `json:"username,omitempty"`
	FirstName  string   `json:"firstName,omitempty"`
	LastName   string   `json:"lastName,omitempty"`
	ImageURL   string   `json:"imageUrl,omitempty"`
	ProfileImg string   `json:"profileImg,omitempty"`
	Bio        string   `json:"bio,omitempty"`
	Followers  []string `json:"followers,omitempty"`
	Following  []string `json:"following,omitempty"`
	Posts      []string `json:"posts,omitempty"`
	SavedPosts []string `json:"savedPosts,omitempty"`
}

// Session is the persisted backend session
type Session struct {
	Token  string
	UserID string // backend user id
}

// LoginRequest is the session exchange body for /clerk/login
type LoginRequest struct {
	ClerkID   string `json:"clerkId" validate:"notblank"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Username  string `json:"username,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// NewUser is the body for /clerk/createUser
type NewUser struct {
	ClerkID   string `json:"clerkId" validate:"notblank"`
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username,omitempty" validate:"omitempty,min=3,max=30"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
}
