package authsession_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/authsession"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/stretchr/testify/require"
)

func echoAuthorization(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("Authorization")))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, client *http.Client, url string) (string, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return string(body), err
}

func TestTransport_AttachesBearerToken(t *testing.T) {
	f := setupTestFixture(t, withoutInactivity())
	f.controller.SetSession(epoch.Add(time.Hour), "tok", "idtok")

	body, err := get(t, f.controller.HTTPClient(), echoAuthorization(t).URL)

	require.NoError(t, err)
	require.Equal(t, "Bearer tok", body)
	require.Equal(t, 0, f.provider.RenewCalls())
}

func TestTransport_RenewsExpiredSession(t *testing.T) {
	f := setupTestFixture(t, withoutInactivity())
	f.controller.SetSession(epoch.Add(time.Hour), "stale", "idtok")
	require.NoError(t, f.store.Set(sessions.KeyExpiresAt, utils.FormatMillis(epoch.Add(-time.Minute).UnixMilli())))

	body, err := get(t, f.controller.HTTPClient(), echoAuthorization(t).URL)

	require.NoError(t, err)
	require.Equal(t, "Bearer renewed-token", body)
	require.Equal(t, 1, f.provider.RenewCalls())
}

func TestTransport_WithoutSession(t *testing.T) {
	f := setupTestFixture(t, withoutInactivity())

	_, err := get(t, f.controller.HTTPClient(), echoAuthorization(t).URL)

	require.ErrorIs(t, err, autherrors.ErrNotAuthenticated)
	require.Equal(t, 0, f.provider.RenewCalls())
	require.Equal(t, 0, f.provider.LogoutCalls())
}

func TestTransport_RenewalFailure(t *testing.T) {
	f := setupTestFixture(t, withoutInactivity())
	f.provider.renewFn = func(context.Context) (*authsession.Tokens, error) { return nil, errTest }
	f.controller.SetSession(epoch.Add(-time.Minute), "stale", "idtok")

	_, err := get(t, f.controller.HTTPClient(), echoAuthorization(t).URL)

	require.ErrorIs(t, err, autherrors.ErrNotAuthenticated)
	require.ErrorIs(t, err, autherrors.ErrRenewal)
	require.Equal(t, 1, f.provider.LogoutCalls())
}
