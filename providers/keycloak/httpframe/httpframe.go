package httpframe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-session/providers/keycloak"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/rs/zerolog/log"
)

// ErrCrossOrigin is returned when the frame ended on another origin than the application
var ErrCrossOrigin = errors.New("blocked a frame from accessing a cross-origin location")

const defaultTimeout = 30 * time.Second

// Host loads frames over HTTP. Redirects are followed until one targets the
// application origin, whose URL (fragment included) becomes the frame location.
// The cookie jar carries the provider session between loads.
type Host struct {
	client *http.Client
	origin *url.URL

	mu     sync.Mutex
	frames map[*frame]struct{}
}

var _ keycloak.FrameHost = (*Host)(nil)

// New creates a frame host for the application at appOrigin.
// A nil client gets a fresh cookie jar.
func New(appOrigin string, client *http.Client) (*Host, error) {
	origin, err := url.Parse(appOrigin)
	if err != nil {
		return nil, fmt.Errorf("invalid application origin: %w", err)
	}
	if client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		client = &http.Client{Jar: jar, Timeout: defaultTimeout}
	}

	h := &Host{origin: origin, frames: make(map[*frame]struct{})}
	c := *client
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if h.sameOrigin(req.URL) {
			return http.ErrUseLastResponse
		}
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		return nil
	}
	h.client = &c
	return h, nil
}

// NewWithStore creates a frame host whose cookies live in store
func NewWithStore(appOrigin string, store sessions.Store) (*Host, error) {
	return New(appOrigin, &http.Client{Jar: NewStoreJar(store), Timeout: defaultTimeout})
}

// Open starts loading src and calls onLoad from a new goroutine when done
func (h *Host) Open(ctx context.Context, src string, onLoad func(keycloak.Frame)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return err
	}

	f := &frame{host: h}
	h.mu.Lock()
	h.frames[f] = struct{}{}
	h.mu.Unlock()

	go func() {
		f.location, f.err = h.load(req)
		onLoad(f)
	}()
	return nil
}

// Frames returns the number of frames not yet removed
func (h *Host) Frames() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames)
}

func (h *Host) load(req *http.Request) (*url.URL, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		location, err := resp.Location()
		if err != nil {
			return nil, fmt.Errorf("redirect without location: %w", err)
		}
		return location, nil
	}
	if resp.StatusCode >= 400 {
		log.Debug().Int("status", resp.StatusCode).Str("url", resp.Request.URL.Redacted()).Msg("Frame load failed")
	}
	return resp.Request.URL, nil
}

func (h *Host) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, h.origin.Scheme) && strings.EqualFold(u.Host, h.origin.Host)
}

type frame struct {
	host     *Host
	location *url.URL
	err      error
}

func (f *frame) Location() (*url.URL, error) {
	if f.err != nil {
		return nil, f.err
	}
	if !f.host.sameOrigin(f.location) {
		return nil, ErrCrossOrigin
	}
	return f.location, nil
}

func (f *frame) Remove() {
	f.host.mu.Lock()
	defer f.host.mu.Unlock()
	delete(f.host.frames, f)
}
