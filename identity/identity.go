package identity

import "strings"

// Identity is the shape both credential and OAuth logins resolve to before a
// session token is issued.
type Identity struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Picture  string `json:"picture,omitempty"`
}

// Profile is the subset of an OAuth/OIDC userinfo payload goSession consumes.
type Profile struct {
	Sub           string `json:"sub"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Picture       string `json:"picture"`
	EmailVerified bool   `json:"email_verified"`
}

// New builds an Identity with a normalized email.
func New(id, fullName, email, picture string) Identity {
	return Identity{
		ID:       id,
		FullName: fullName,
		Email:    NormalizeEmail(email),
		Picture:  picture,
	}
}

// FromProfile maps an external profile onto an Identity: sub becomes ID and
// name becomes FullName.
func FromProfile(p Profile) Identity {
	return New(p.Sub, p.Name, p.Email, p.Picture)
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsZero reports whether no identity fields are set.
func (i Identity) IsZero() bool {
	return i.ID == "" && i.Email == "" && i.FullName == "" && i.Picture == ""
}

// DisplayName returns FullName, falling back to Email.
func (i Identity) DisplayName() string {
	if name := strings.TrimSpace(i.FullName); name != "" {
		return name
	}
	return i.Email
}
