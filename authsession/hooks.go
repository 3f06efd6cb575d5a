package authsession

import (
	"sync"

	"github.com/jrsteele09/go-auth-session/internal/listeners"
)

// ActivitySource reports user interaction such as clicks and key presses
type ActivitySource interface {
	Subscribe(fn func()) (unsubscribe func())
}

// VisibilitySource reports when the application is hidden or shown
type VisibilitySource interface {
	Subscribe(fn func(visible bool)) (unsubscribe func())
}

// ActivityHooks is an ActivitySource driven by the host calling Touch
type ActivityHooks struct {
	registry listeners.Registry[struct{}]
}

var _ ActivitySource = (*ActivityHooks)(nil)

func NewActivityHooks() *ActivityHooks {
	return &ActivityHooks{}
}

func (a *ActivityHooks) Subscribe(fn func()) func() {
	l := listeners.New(func(struct{}) { fn() })
	a.registry.Add(l)
	var once sync.Once
	return func() {
		once.Do(func() { a.registry.Remove(l) })
	}
}

// Touch records one user interaction
func (a *ActivityHooks) Touch() {
	a.registry.Notify(struct{}{})
}

// Subscribers returns the number of active subscriptions
func (a *ActivityHooks) Subscribers() int {
	return a.registry.Len()
}

// VisibilityHooks is a VisibilitySource driven by the host calling SetVisible
type VisibilityHooks struct {
	registry listeners.Registry[bool]
}

var _ VisibilitySource = (*VisibilityHooks)(nil)

func NewVisibilityHooks() *VisibilityHooks {
	return &VisibilityHooks{}
}

func (v *VisibilityHooks) Subscribe(fn func(visible bool)) func() {
	l := listeners.New(fn)
	v.registry.Add(l)
	var once sync.Once
	return func() {
		once.Do(func() { v.registry.Remove(l) })
	}
}

// SetVisible reports a visibility change
func (v *VisibilityHooks) SetVisible(visible bool) {
	v.registry.Notify(visible)
}

func (v *VisibilityHooks) Subscribers() int {
	return v.registry.Len()
}
