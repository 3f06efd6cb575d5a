package authsession_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/authsession"
	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/jrsteele09/go-auth-session/sessions"
	"github.com/stretchr/testify/require"
)

func inactivityTimings(window time.Duration) authsession.Timings {
	return authsession.Timings{
		RenewalOffset:         time.Minute,
		ActivityCheckInterval: time.Minute,
		InactivityWarningLead: 5 * time.Minute,
		InactivityWindow:      window,
	}
}

func TestIsActive(t *testing.T) {
	stale := utils.FormatMillis(epoch.Add(-4000000 * time.Millisecond).UnixMilli())

	t.Run("disabled window is always active", func(t *testing.T) {
		f := setupTestFixture(t, inactivityTimings(0))
		require.True(t, f.controller.IsActive())
		require.NoError(t, f.store.Set(sessions.KeyActivity, stale))
		require.True(t, f.controller.IsActive())
	})

	t.Run("stale activity is inactive", func(t *testing.T) {
		f := setupTestFixture(t, inactivityTimings(3600000*time.Millisecond))
		require.NoError(t, f.store.Set(sessions.KeyActivity, stale))
		require.False(t, f.controller.IsActive())
	})

	t.Run("recent activity is active", func(t *testing.T) {
		f := setupTestFixture(t, inactivityTimings(time.Hour))
		require.NoError(t, f.store.Set(sessions.KeyActivity, utils.FormatMillis(epoch.Add(-time.Hour).UnixMilli())))
		require.True(t, f.controller.IsActive())
	})

	t.Run("missing or malformed activity is inactive", func(t *testing.T) {
		f := setupTestFixture(t, inactivityTimings(time.Hour))
		require.False(t, f.controller.IsActive())
		require.NoError(t, f.store.Set(sessions.KeyActivity, "yesterday"))
		require.False(t, f.controller.IsActive())
	})
}

func TestOnActivity_DebouncesBeforeListening(t *testing.T) {
	f := setupTestFixture(t, inactivityTimings(10*time.Minute))

	f.controller.OnActivity()
	require.Equal(t, 0, f.activity.Subscribers())
	last, ok := f.user.LastActivity()
	require.True(t, ok)
	require.True(t, last.Equal(epoch))

	f.clock.Advance(time.Minute)
	require.Equal(t, 1, f.activity.Subscribers())

	// activity through the source records and stops listening again
	f.clock.Advance(30 * time.Second)
	f.activity.Touch()
	require.Equal(t, 0, f.activity.Subscribers())
	last, _ = f.user.LastActivity()
	require.True(t, last.Equal(epoch.Add(90*time.Second)))
}

func TestOnActivity_DisabledWindowDoesNothing(t *testing.T) {
	f := setupTestFixture(t, inactivityTimings(0))

	f.controller.OnActivity()

	_, ok := f.user.LastActivity()
	require.False(t, ok)
	require.Equal(t, 0, f.clock.Pending())
}

func TestInactivityWarning(t *testing.T) {
	f := setupTestFixture(t, inactivityTimings(10*time.Minute))
	var warnings []time.Duration
	f.controller.AddInactivityListener(authsession.OnInactivity(func(remaining time.Duration) {
		warnings = append(warnings, remaining)
	}))

	f.controller.OnActivity()
	f.clock.Advance(5*time.Minute - time.Second)
	require.Empty(t, warnings)

	f.clock.Advance(time.Second)
	require.Equal(t, []time.Duration{5 * time.Minute}, warnings)

	// warning only, the session is not ended
	require.Equal(t, 0, f.provider.LogoutCalls())

	f.clock.Advance(time.Hour)
	require.Len(t, warnings, 1)
}

func TestInactivityWarning_ActivityRearms(t *testing.T) {
	f := setupTestFixture(t, inactivityTimings(10*time.Minute))
	warned := &counter{}
	f.controller.AddInactivityListener(authsession.OnInactivity(func(time.Duration) { warned.Inc() }))

	f.controller.OnActivity()
	f.clock.Advance(2 * time.Minute)
	f.activity.Touch()

	f.clock.Advance(3 * time.Minute)
	require.Equal(t, 0, warned.Get())

	f.clock.Advance(2 * time.Minute)
	require.Equal(t, 1, warned.Get())
}

func TestInactivityWarning_ActivityElsewhereSuppressesWarning(t *testing.T) {
	f := setupTestFixture(t, inactivityTimings(10*time.Minute))
	warned := &counter{}
	f.controller.AddInactivityListener(authsession.OnInactivity(func(time.Duration) { warned.Inc() }))

	f.controller.OnActivity()
	f.clock.Advance(4 * time.Minute)
	// another process sharing the store saw activity
	require.NoError(t, f.store.Set(sessions.KeyActivity, utils.FormatMillis(f.clock.Now().UnixMilli())))

	f.clock.Advance(time.Minute)
	require.Equal(t, 0, warned.Get())
}

func TestInactivityWarning_WindowShorterThanLead(t *testing.T) {
	f := setupTestFixture(t, inactivityTimings(2*time.Minute))
	var warnings []time.Duration
	f.controller.AddInactivityListener(authsession.OnInactivity(func(remaining time.Duration) {
		warnings = append(warnings, remaining)
	}))

	f.controller.OnActivity()
	f.clock.Advance(0)

	require.Equal(t, []time.Duration{2 * time.Minute}, warnings)
}
