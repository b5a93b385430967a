//internals/profile/models.go

package profile

import (
	"strings"

	"github.com/imadgeboyega/kiekky-client/internal/posts"
)

// Profile is a backend user as the profile screen shows it
type Profile struct {
	ID         string   `json:"_id"`
	ClerkID    string   `json:"clerkId"`
	Email      string   `json:"email"`
	Username   string   `json:"username"`
	FirstName  string   `json:"firstName,omitempty"`
	LastName   string   `json:"lastName,omitempty"`
	Bio        string   `json:"bio,omitempty"`
	ImageURL   string   `json:"imageUrl,omitempty"`
	ProfileImg string   `json:"profileImg,omitempty"`
	Followers  []string `json:"followers"`
	Following  []string `json:"following"`
	Posts      []string `json:"posts"`
	SavedPosts []string `json:"savedPosts"`
}

// DisplayName prefers the full name and falls back to the username
func (p *Profile) DisplayName() string {
	full := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	if full != "" {
		return full
	}
	return p.Username
}

// Avatar returns the best known image
func (p *Profile) Avatar() string {
	if p.ImageURL != "" {
		return p.ImageURL
	}
	return p.ProfileImg
}

// IsFollowedBy reports whether userID follows this profile
func (p *Profile) IsFollowedBy(userID string) bool {
	for _, id := range p.Followers {
		if id == userID {
			return true
		}
	}
	return false
}

// UpdateProfileRequest represents a profile update request. Nil fields are left alone.
type UpdateProfileRequest struct {
	Username   *string `json:"username,omitempty" validate:"omitempty,min=3,max=30"`
	FirstName  *string `json:"firstName,omitempty" validate:"omitempty,max=50"`
	LastName   *string `json:"lastName,omitempty" validate:"omitempty,max=50"`
	Bio        *string `json:"bio,omitempty" validate:"omitempty,max=500"`
	ProfileImg *string `json:"profileImg,omitempty" validate:"omitempty,url"`
}

// IdentityUpdate changes the identity-provider record linked to an account. Empty fields
// are left alone.
type IdentityUpdate struct {
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
	Username  string `json:"username,omitempty" validate:"omitempty,min=3,max=30"`
	FirstName string `json:"firstName,omitempty" validate:"omitempty,max=50"`
	LastName  string `json:"lastName,omitempty" validate:"omitempty,max=50"`
	ImageURL  string `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

func (u *IdentityUpdate) empty() bool {
	return u.Email == "" && u.Username == "" && u.FirstName == "" && u.LastName == "" && u.ImageURL == ""
}

// FollowResult is the backend's answer to a follow toggle
type FollowResult struct {
	Success     bool `json:"success"`
	IsFollowing bool `json:"isFollowing"`
}

// Overview is everything the profile screen needs in one value
type Overview struct {
	Profile    *Profile
	Posts      []*posts.Post
	Completion *ProfileCompletion
	FromCache  bool
}

// ProfileCompletion represents profile completion details
type ProfileCompletion struct {
	Percentage int                      `json:"percentage"`
	Missing    []string                 `json:"missing_fields"`
	Completed  []string                 `json:"completed_fields"`
	Details    ProfileCompletionDetails `json:"details"`
}

// ProfileCompletionDetails represents detailed completion status
type ProfileCompletionDetails struct {
	BasicInfo      bool `json:"basic_info"`
	ProfilePicture bool `json:"profile_picture"`
	Bio            bool `json:"bio"`
	FirstPost      bool `json:"first_post"`
}
