package authsession

import (
	"time"

	"github.com/jrsteele09/go-auth-session/internal/listeners"
	"github.com/jrsteele09/go-auth-session/sessions"
)

type (
	// TokenChangeListener is notified with every session update
	TokenChangeListener = listeners.Listener[sessions.TokenChange]
	// LogoutListener is notified when logout completes
	LogoutListener = listeners.Listener[struct{}]
	// InactivityListener is notified with the time left before the session is considered inactive
	InactivityListener = listeners.Listener[time.Duration]
)

func OnTokenChange(fn func(sessions.TokenChange)) *TokenChangeListener {
	return listeners.New(fn)
}

func OnLogout(fn func()) *LogoutListener {
	return listeners.New(func(struct{}) { fn() })
}

func OnInactivity(fn func(remaining time.Duration)) *InactivityListener {
	return listeners.New(fn)
}

// AddTokenChangeListener registers l, adding the same listener twice is a no-op
func (c *Controller) AddTokenChangeListener(l *TokenChangeListener) {
	c.tokenListeners.Add(l)
}

// RemoveTokenChangeListener unregisters l, or every token-change listener when l is nil
func (c *Controller) RemoveTokenChangeListener(l *TokenChangeListener) {
	c.tokenListeners.Remove(l)
}

func (c *Controller) AddLogoutListener(l *LogoutListener) {
	c.logoutListeners.Add(l)
}

// RemoveLogoutListener unregisters l, or every logout listener when l is nil
func (c *Controller) RemoveLogoutListener(l *LogoutListener) {
	c.logoutListeners.Remove(l)
}

func (c *Controller) AddInactivityListener(l *InactivityListener) {
	c.inactivityListeners.Add(l)
}

// RemoveInactivityListener unregisters l, or every inactivity listener when l is nil
func (c *Controller) RemoveInactivityListener(l *InactivityListener) {
	c.inactivityListeners.Remove(l)
}
