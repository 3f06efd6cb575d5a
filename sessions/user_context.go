package sessions

import (
	"encoding/json"
	"strings"
	"time"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/internal/utils"
)

const (
	ThemeDark    = "DARK"
	ThemeLight   = "LIGHT"
	ThemeDefault = ThemeDark
)

// UserContext reads and writes user related state (tokens, profile, theme,
// activity) through a Store.
type UserContext struct {
	store Store
}

func NewUserContext(store Store) *UserContext {
	return &UserContext{store: store}
}

// Session assembles the persisted token fields. Provider specific claims are not persisted.
func (u *UserContext) Session() Session {
	var s Session
	s.AccessToken, _ = u.store.Get(KeyAccessToken)
	s.IDToken, _ = u.store.Get(KeyIDToken)
	s.RefreshToken, _ = u.store.Get(KeyRefreshToken)
	if raw, ok := u.store.Get(KeyExpiresAt); ok {
		if ms, ok := utils.ParseMillis(raw); ok {
			s.ExpiresAt = time.UnixMilli(ms)
		}
	}
	return s
}

// SaveSession persists the three token fields. A refresh token replaces the
// stored one, an empty one leaves it in place.
func (u *UserContext) SaveSession(s Session) error {
	errs := []error{
		u.store.Set(KeyAccessToken, s.AccessToken),
		u.store.Set(KeyIDToken, s.IDToken),
		u.store.Set(KeyExpiresAt, utils.FormatMillis(s.ExpiresAt.UnixMilli())),
	}
	if s.RefreshToken != "" {
		errs = append(errs, u.store.Set(KeyRefreshToken, s.RefreshToken))
	}
	return autherrors.Join(errs...)
}

// ExpiresAt returns the stored expiry, false when absent or malformed
func (u *UserContext) ExpiresAt() (time.Time, bool) {
	raw, ok := u.store.Get(KeyExpiresAt)
	if !ok {
		return time.Time{}, false
	}
	ms, ok := utils.ParseMillis(raw)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func (u *UserContext) AccessToken() string {
	v, _ := u.store.Get(KeyAccessToken)
	return v
}

// AuthHeader returns the bearer authorization header value, empty without a token
func (u *UserContext) AuthHeader() string {
	if token := u.AccessToken(); token != "" {
		return "Bearer " + token
	}
	return ""
}

// LastActivity returns the stored activity timestamp, false when absent or malformed
func (u *UserContext) LastActivity() (time.Time, bool) {
	raw, ok := u.store.Get(KeyActivity)
	if !ok {
		return time.Time{}, false
	}
	ms, ok := utils.ParseMillis(raw)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func (u *UserContext) SetLastActivity(t time.Time) error {
	return u.store.Set(KeyActivity, utils.FormatMillis(t.UnixMilli()))
}

func (u *UserContext) StartingURL() string {
	v, _ := u.store.Get(KeyStartingURL)
	return v
}

func (u *UserContext) SetStartingURL(startingURL string) error {
	return u.store.Set(KeyStartingURL, startingURL)
}

func (u *UserContext) UserID() string {
	v, _ := u.store.Get(KeyUserID)
	return v
}

func (u *UserContext) SetUserID(id string) error {
	return u.store.Set(KeyUserID, id)
}

// Profile returns the stored profile, false when absent or unreadable
func (u *UserContext) Profile() (UserProfile, bool) {
	raw, ok := u.store.Get(KeyUserProfile)
	if !ok {
		return UserProfile{}, false
	}
	var p UserProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return UserProfile{}, false
	}
	return p, true
}

func (u *UserContext) SetProfile(p UserProfile) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return u.store.Set(KeyUserProfile, string(b))
}

// Theme returns the stored theme or ThemeDefault
func (u *UserContext) Theme() string {
	if v, ok := u.store.Get(KeyTheme); ok && v != "" {
		return v
	}
	return ThemeDefault
}

func (u *UserContext) SetTheme(theme string) error {
	return u.store.Set(KeyTheme, theme)
}

func (u *UserContext) IsDarkTheme() bool {
	return strings.EqualFold(u.Theme(), ThemeDark)
}

// ToggleTheme switches between dark and light and returns the new theme
func (u *UserContext) ToggleTheme() (string, error) {
	theme := ThemeDark
	if u.IsDarkTheme() {
		theme = ThemeLight
	}
	return theme, u.SetTheme(theme)
}

// Clear removes the token, user id, theme and activity keys
func (u *UserContext) Clear() error {
	var errs []error
	for _, k := range clearedOnLogout {
		errs = append(errs, u.store.Remove(k))
	}
	return autherrors.Join(errs...)
}
