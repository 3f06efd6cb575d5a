package authsession

import (
	"github.com/jrsteele09/go-auth-session/internal/clock"
	"github.com/rs/zerolog/log"
)

// OnActivity records a user interaction. Further activity is ignored for the
// activity check interval, after which the activity source is listened to
// again. The inactivity warning is re-armed from now.
func (c *Controller) OnActivity() {
	if c.timings.InactivityWindow <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopListeningForActivityLocked()
	if err := c.user.SetLastActivity(c.clock.Now()); err != nil {
		log.Warn().Err(err).Msg("Failed to store user activity")
	}
	stopTimer(&c.inactivityTimer)
	c.startCheckingForActivityLocked()
}

func (c *Controller) startCheckingForActivityLocked() {
	stopTimer(&c.activityCheckTimer)

	var check clock.Timer
	check = c.clock.AfterFunc(c.timings.ActivityCheckInterval, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.activityCheckTimer != check {
			return
		}
		c.activityCheckTimer = nil
		c.listenForActivityLocked()
	})
	c.activityCheckTimer = check

	delay := c.timings.warningDelay()
	remaining := c.timings.InactivityWindow - delay

	var warn clock.Timer
	warn = c.clock.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.inactivityTimer != warn {
			c.mu.Unlock()
			return
		}
		c.inactivityTimer = nil

		// another process sharing the store may have seen activity since; it
		// owns the warning in that case
		last, ok := c.user.LastActivity()
		idle := !ok || c.clock.Now().Sub(last) >= delay
		c.mu.Unlock()

		if idle {
			c.inactivityListeners.Notify(remaining)
		}
	})
	c.inactivityTimer = warn
}

func (c *Controller) listenForActivityLocked() {
	if c.stopActivity == nil {
		c.stopActivity = c.activity.Subscribe(c.OnActivity)
	}
}

func (c *Controller) stopListeningForActivityLocked() {
	if c.stopActivity != nil {
		c.stopActivity()
		c.stopActivity = nil
	}
}
