package listeners_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-session/internal/listeners"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Run("notifies in registration order", func(t *testing.T) {
		var r listeners.Registry[int]
		var calls []string
		r.Add(listeners.New(func(v int) { calls = append(calls, "a") }))
		r.Add(listeners.New(func(v int) { calls = append(calls, "b") }))

		r.Notify(1)

		require.Equal(t, []string{"a", "b"}, calls)
	})

	t.Run("add is idempotent", func(t *testing.T) {
		var r listeners.Registry[int]
		n := 0
		l := listeners.New(func(int) { n++ })

		require.True(t, r.Add(l))
		require.False(t, r.Add(l))
		require.False(t, r.Add(nil))
		r.Notify(0)

		require.Equal(t, 1, n)
		require.Equal(t, 1, r.Len())
	})

	t.Run("remove single and clear", func(t *testing.T) {
		var r listeners.Registry[int]
		a := listeners.New(func(int) {})
		b := listeners.New(func(int) {})
		r.Add(a)
		r.Add(b)

		r.Remove(a)
		require.Equal(t, 1, r.Len())
		r.Remove(a)
		require.Equal(t, 1, r.Len())

		r.Remove(nil)
		require.Equal(t, 0, r.Len())
	})

	t.Run("listener may remove itself while notified", func(t *testing.T) {
		var r listeners.Registry[int]
		var self *listeners.Listener[int]
		n := 0
		self = listeners.New(func(int) {
			n++
			r.Remove(self)
		})
		r.Add(self)

		r.Notify(0)
		r.Notify(0)

		require.Equal(t, 1, n)
	})

	t.Run("nil listener call is a no-op", func(t *testing.T) {
		var l *listeners.Listener[int]
		require.NotPanics(t, func() { l.Call(1) })
	})
}
