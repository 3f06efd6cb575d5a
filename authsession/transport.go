package authsession

import (
	"fmt"
	"net/http"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/rs/zerolog/log"
)

// Transport attaches the session's bearer token to outgoing requests. A stored
// session that is no longer valid is renewed before the request is sent.
type Transport struct {
	Controller *Controller
	Base       http.RoundTripper // nil uses http.DefaultTransport
}

var _ http.RoundTripper = (*Transport)(nil)

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	user := t.Controller.UserContext()
	if user.AccessToken() == "" {
		closeBody(req)
		return nil, fmt.Errorf("%w: no access token for %s", autherrors.ErrNotAuthenticated, req.URL.Redacted())
	}
	if err := t.Controller.CheckTokenValidity(req.Context()); err != nil {
		closeBody(req)
		return nil, fmt.Errorf("%w: %w", autherrors.ErrNotAuthenticated, err)
	}

	authReq := req.Clone(req.Context())
	authReq.Header.Set("Authorization", user.AuthHeader())
	log.Debug().Str("method", req.Method).Str("url", req.URL.Redacted()).Msg("Authenticated request")

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(authReq)
}

// closeBody releases the request body when the request is not sent
func closeBody(req *http.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}

// HTTPClient returns a client whose requests carry the session's bearer token
func (c *Controller) HTTPClient() *http.Client {
	return &http.Client{Transport: &Transport{Controller: c}}
}
