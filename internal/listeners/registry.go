package listeners

import "sync"

// Listener wraps a callback so it has a comparable identity
type Listener[T any] struct {
	fn func(T)
}

func New[T any](fn func(T)) *Listener[T] {
	return &Listener[T]{fn: fn}
}

// Call invokes the callback
func (l *Listener[T]) Call(v T) {
	if l != nil && l.fn != nil {
		l.fn(v)
	}
}

// Registry is an ordered set of listeners
type Registry[T any] struct {
	mu    sync.Mutex
	items []*Listener[T]
}

// Add registers l once. It reports false for nil or already registered listeners.
func (r *Registry[T]) Add(l *Listener[T]) bool {
	if l == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing == l {
			return false
		}
	}
	r.items = append(r.items, l)
	return true
}

// Remove unregisters l, a nil listener clears the registry
func (r *Registry[T]) Remove(l *Listener[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l == nil {
		r.items = nil
		return
	}
	kept := make([]*Listener[T], 0, len(r.items))
	for _, existing := range r.items {
		if existing != l {
			kept = append(kept, existing)
		}
	}
	r.items = kept
}

// Notify calls every listener in registration order. The registry is not
// locked while callbacks run, so listeners may add or remove listeners.
func (r *Registry[T]) Notify(v T) {
	r.mu.Lock()
	snapshot := make([]*Listener[T], len(r.items))
	copy(snapshot, r.items)
	r.mu.Unlock()

	for _, l := range snapshot {
		l.Call(v)
	}
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
