package config

import "strings"

const (
	ProviderAuth0    = "auth0"
	ProviderKeycloak = "keycloak"
)

type ProviderConfig interface {
	GetAuthProvider() string
	GetAuthDomain() string
	GetAuthClientID() string
	GetAuthClientSecret() string
	GetAuthAudience() string
	GetAuthRealm() string
	GetBaseURL() string
	GetCallbackPath() string
	GetLoginPath() string
	GetSilentLoginPath() string
	GetSilentLoginCacheBreaker() string
}

type Provider struct{}

var _ ProviderConfig = Provider{}

// GetAuthProvider returns the identity provider selector, auth0 unless keycloak is requested
func (Provider) GetAuthProvider() string {
	if strings.EqualFold(GetEnv("AUTH_PROVIDER", ProviderAuth0), ProviderKeycloak) {
		return ProviderKeycloak
	}
	return ProviderAuth0
}

func (Provider) GetAuthDomain() string {
	return strings.TrimRight(GetEnv("AUTH_DOMAIN", ""), "/")
}

func (Provider) GetAuthClientID() string {
	return GetEnv("AUTH_CLIENT_ID", "")
}

func (Provider) GetAuthClientSecret() string {
	return GetEnv("AUTH_CLIENT_SECRET", "")
}

// GetAuthAudience falls back to the identifier when no explicit audience is set
func (p Provider) GetAuthAudience() string {
	return GetEnv("AUTH_AUDIENCE", p.GetAuthRealm())
}

// GetAuthRealm is the keycloak realm name
func (Provider) GetAuthRealm() string {
	return GetEnv("AUTH_IDENTIFIER", "")
}

// GetBaseURL returns the application origin (e.g., "https://app.example.com")
func (Provider) GetBaseURL() string {
	return strings.TrimRight(GetEnv("BASE_URL", "http://localhost:8080"), "/")
}

func (Provider) GetCallbackPath() string {
	return GetEnv("CALLBACK_PATH", "/callback")
}

func (Provider) GetLoginPath() string {
	return GetEnv("LOGIN_PATH", "/login")
}

func (Provider) GetSilentLoginPath() string {
	return GetEnv("SILENT_LOGIN_PATH", "/silentLogin.html")
}

func (Provider) GetSilentLoginCacheBreaker() string {
	return GetEnv("SILENT_LOGIN_CACHE_BREAKER", "")
}
