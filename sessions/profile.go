package sessions

// DefaultUserIcon replaces a missing profile picture
const DefaultUserIcon = "/icons/user.svg"

// UserProfile holds the identity claims returned by the provider
type UserProfile struct {
	Subject           string `json:"sub,omitempty"`
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Picture           string `json:"picture,omitempty"`
}

// WithDefaults fills a missing picture with DefaultUserIcon
func (p UserProfile) WithDefaults() UserProfile {
	if p.Picture == "" {
		p.Picture = DefaultUserIcon
	}
	return p
}

// UserID is the stable identifier stored alongside the profile
func (p UserProfile) UserID() string {
	if p.Email != "" {
		return p.Email
	}
	return p.Subject
}
