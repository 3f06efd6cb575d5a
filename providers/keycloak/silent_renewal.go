package keycloak

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jrsteele09/go-auth-session/authsession"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
)

// Frame is a hidden document frame
type Frame interface {
	// Location returns the URL the frame ended up on. Reading a location of
	// another origin fails.
	Location() (*url.URL, error)

	// Remove detaches the frame
	Remove()
}

// FrameHost creates hidden frames. onLoad is called once the frame finished
// loading src, possibly on another goroutine.
type FrameHost interface {
	Open(ctx context.Context, src string, onLoad func(Frame)) error
}

type renewal struct {
	tokens *authsession.Tokens
	err    error
}

// silentRenew loads a prompt=none login in a hidden frame and installs the
// tokens found in the redirect fragment. The frame is always removed. A result
// arriving after a logout is dropped with ErrRenewalDiscarded.
func (a *Adapter) silentRenew(ctx context.Context) (*authsession.Tokens, error) {
	epoch := a.epoch.Load()
	inst := a.Instance()
	renewalURL, state := inst.CreateLoginURL(LoginOptions{
		Prompt:      "none",
		RedirectURI: a.RenewalRedirectURI(),
	})

	done := make(chan renewal, 1)
	err := a.frames.Open(ctx, renewalURL, func(f Frame) {
		tokens, err := a.harvest(inst, f, state, epoch)
		f.Remove()
		done <- renewal{tokens: tokens, err: err}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open renewal frame: %w", autherrors.ErrRenewal, err)
	}

	select {
	case r := <-done:
		return r.tokens, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// harvest validates the frame's fragment and installs the new tokens unless a
// logout happened since epoch
func (a *Adapter) harvest(inst *Instance, f Frame, state string, epoch uint64) (*authsession.Tokens, error) {
	location, err := f.Location()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read renewal frame: %w", autherrors.ErrRenewal, err)
	}

	params, err := ParseFragment(location)
	if err != nil {
		return nil, err
	}
	if err := ValidateFragment(params, state); err != nil {
		return nil, err
	}

	if a.epoch.Load() != epoch {
		return nil, autherrors.ErrRenewalDiscarded
	}
	if err := inst.SetToken(params.Get("access_token"), "", params.Get("id_token"), a.host.Now()); err != nil {
		return nil, fmt.Errorf("%w: %w", autherrors.ErrRenewal, err)
	}
	tokens := sessionTokens(inst)
	// a logout racing SetToken may have cleared the state before it was set
	if a.epoch.Load() != epoch {
		inst.ClearToken()
		return nil, autherrors.ErrRenewalDiscarded
	}
	return &tokens, nil
}

// ParseFragment parses a URL fragment as query parameters
func ParseFragment(location *url.URL) (url.Values, error) {
	params, err := url.ParseQuery(location.EscapedFragment())
	if err != nil {
		return nil, fmt.Errorf("%w: malformed fragment: %w", autherrors.ErrRenewal, err)
	}
	return params, nil
}

// ValidateFragment accepts a silent renewal response carrying the expected
// state, an access token and no error.
func ValidateFragment(params url.Values, state string) error {
	if !params.Has("state") || params.Get("state") != state {
		return fmt.Errorf("%w: %w", autherrors.ErrRenewal, autherrors.ErrStateMismatch)
	}
	if params.Has("error") {
		return fmt.Errorf("%w: %s - %s", autherrors.ErrRenewal, params.Get("error"), params.Get("error_description"))
	}
	if !params.Has("access_token") {
		return fmt.Errorf("%w: %w", autherrors.ErrRenewal, autherrors.ErrMissingAccessToken)
	}
	return nil
}
