package memstore_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/jrsteele09/go-auth-session/sessions/memstore"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	s := memstore.New()

	_, ok := s.Get(sessions.KeyTheme)
	require.False(t, ok)

	require.NoError(t, s.Set(sessions.KeyTheme, "DARK"))
	require.NoError(t, s.Set(sessions.KeyTheme, "LIGHT"))
	v, ok := s.Get(sessions.KeyTheme)
	require.True(t, ok)
	require.Equal(t, "LIGHT", v)

	require.NoError(t, s.Remove(sessions.KeyTheme))
	require.NoError(t, s.Remove(sessions.KeyTheme))
	require.Empty(t, s.Keys())
}
