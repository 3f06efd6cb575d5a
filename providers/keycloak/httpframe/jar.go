package httpframe

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/rs/zerolog/log"
)

// StoreJar is a cookie jar kept in a session store, so the provider session
// obtained by one process is sent by the frames of the next. The store holds
// the only copy: clearing the session on logout also drops the cookies.
type StoreJar struct {
	store sessions.Store
	now   func() time.Time

	mu sync.Mutex
}

var _ http.CookieJar = (*StoreJar)(nil)

// storedCookie is one cookie together with the URL that set it
type storedCookie struct {
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

func (c storedCookie) key(u *url.URL) string {
	domain := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
	if domain == "" {
		domain = u.Hostname()
	}
	return domain + ";" + c.Path + ";" + c.Name
}

func (c storedCookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

func NewStoreJar(store sessions.Store) *StoreJar {
	return &StoreJar{store: store, now: time.Now}
}

// SetCookies records the cookies set by a response from u. Expired or
// deleted cookies are removed.
func (j *StoreJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	stored := j.load()
	byKey := make(map[string]int, len(stored))
	for i, c := range stored {
		if parsed, err := url.Parse(c.URL); err == nil {
			byKey[c.key(parsed)] = i
		}
	}

	for _, c := range cookies {
		sc := storedCookie{
			URL:      u.String(),
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		switch {
		case c.MaxAge < 0:
			sc.Expires = now
		case c.MaxAge > 0:
			sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}

		if i, ok := byKey[sc.key(u)]; ok {
			stored[i] = sc
			continue
		}
		byKey[sc.key(u)] = len(stored)
		stored = append(stored, sc)
	}

	kept := stored[:0]
	for _, c := range stored {
		if !c.expired(now) {
			kept = append(kept, c)
		}
	}
	j.save(kept)
}

// Cookies returns the cookies to send to u
func (j *StoreJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil
	}
	now := j.now()
	for _, c := range j.load() {
		origin, err := url.Parse(c.URL)
		if err != nil || c.expired(now) {
			continue
		}
		jar.SetCookies(origin, []*http.Cookie{{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}})
	}
	return jar.Cookies(u)
}

func (j *StoreJar) load() []storedCookie {
	raw, ok := j.store.Get(sessions.KeyFrameCookies)
	if !ok || raw == "" {
		return nil
	}
	var stored []storedCookie
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		log.Warn().Err(err).Msg("Ignoring unreadable frame cookies")
		return nil
	}
	return stored
}

func (j *StoreJar) save(stored []storedCookie) {
	if len(stored) == 0 {
		if err := j.store.Remove(sessions.KeyFrameCookies); err != nil {
			log.Warn().Err(err).Msg("Failed to remove frame cookies")
		}
		return
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode frame cookies")
		return
	}
	if err := j.store.Set(sessions.KeyFrameCookies, string(raw)); err != nil {
		log.Warn().Err(err).Msg("Failed to store frame cookies")
	}
}
