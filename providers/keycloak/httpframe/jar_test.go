package httpframe_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/jrsteele09/go-auth-session/providers/keycloak"
	"github.com/jrsteele09/go-auth-session/providers/keycloak/httpframe"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/sessions/memstore"
	"github.com/stretchr/testify/require"
)

// ssoServer starts a provider session on /login and renews silently on /auth
// only when the session cookie comes back
func ssoServer(t *testing.T, appURL string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			http.SetCookie(w, &http.Cookie{Name: "KEYCLOAK_SESSION", Value: "s1", Path: "/", HttpOnly: true})
			_, _ = w.Write([]byte("<html>welcome</html>"))
		case "/auth":
			if c, err := r.Cookie("KEYCLOAK_SESSION"); err != nil || c.Value != "s1" {
				_, _ = w.Write([]byte("<html>login form</html>"))
				return
			}
			http.Redirect(w, r, appURL+"/silentLogin.html#state=abc&access_token=tok", http.StatusFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStoreJar_SharesProviderSessionAcrossHosts(t *testing.T) {
	const appURL = "https://app.example.com"
	idp := ssoServer(t, appURL)
	store := memstore.New()

	first, err := httpframe.NewWithStore(appURL, store)
	require.NoError(t, err)
	require.ErrorIs(t, open(t, first, idp.URL+"/login").err, httpframe.ErrCrossOrigin)

	// a later process starts from the same store
	second, err := httpframe.NewWithStore(appURL, store)
	require.NoError(t, err)
	l := open(t, second, idp.URL+"/auth?prompt=none")

	require.NoError(t, l.err)
	params, err := keycloak.ParseFragment(l.location)
	require.NoError(t, err)
	require.Equal(t, "tok", params.Get("access_token"))

	t.Run("logout drops the cookies", func(t *testing.T) {
		require.NoError(t, sessions.NewUserContext(store).Clear())

		l := open(t, second, idp.URL+"/auth?prompt=none")

		require.ErrorIs(t, l.err, httpframe.ErrCrossOrigin)
	})
}

func TestStoreJar_SetCookies(t *testing.T) {
	store := memstore.New()
	jar := httpframe.NewStoreJar(store)
	realm, err := url.Parse("https://sso.example.com/auth/realms/acme/")
	require.NoError(t, err)
	other, err := url.Parse("https://other.example.com/")
	require.NoError(t, err)

	jar.SetCookies(realm, []*http.Cookie{
		{Name: "KEYCLOAK_IDENTITY", Value: "id-1", Path: "/auth/realms/acme/"},
		{Name: "AUTH_SESSION_ID", Value: "a-1", Path: "/"},
	})
	jar.SetCookies(realm, []*http.Cookie{{Name: "KEYCLOAK_IDENTITY", Value: "id-2", Path: "/auth/realms/acme/"}})

	cookies := httpframe.NewStoreJar(store).Cookies(realm)
	values := map[string]string{}
	for _, c := range cookies {
		values[c.Name] = c.Value
	}
	require.Equal(t, map[string]string{"KEYCLOAK_IDENTITY": "id-2", "AUTH_SESSION_ID": "a-1"}, values)
	require.Empty(t, jar.Cookies(other))

	jar.SetCookies(realm, []*http.Cookie{
		{Name: "KEYCLOAK_IDENTITY", Path: "/auth/realms/acme/", MaxAge: -1},
		{Name: "AUTH_SESSION_ID", Path: "/", MaxAge: -1},
	})

	require.Empty(t, jar.Cookies(realm))
	_, ok := store.Get(sessions.KeyFrameCookies)
	require.False(t, ok)
}
