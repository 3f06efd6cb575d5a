package authsession

import (
	"time"

	"github.com/jrsteele09/go-auth-session/internal/config"
)

// Timings configures the lifecycle timers
type Timings struct {
	RenewalOffset         time.Duration // lead time before expiry at which a token stops counting as valid
	ActivityCheckInterval time.Duration // activity is ignored for this long after being recorded
	InactivityWarningLead time.Duration // inactivity listeners fire this long before the window ends
	InactivityWindow      time.Duration // zero or less disables inactivity tracking
}

func DefaultTimings() Timings {
	return Timings{
		RenewalOffset:         time.Minute,
		ActivityCheckInterval: time.Minute,
		InactivityWarningLead: 5 * time.Minute,
		InactivityWindow:      time.Hour,
	}
}

func TimingsFromConfig(cfg config.TimerConfig) Timings {
	return Timings{
		RenewalOffset:         cfg.GetRenewalOffset(),
		ActivityCheckInterval: cfg.GetActivityCheckInterval(),
		InactivityWarningLead: cfg.GetInactivityWarningLead(),
		InactivityWindow:      cfg.GetInactivityWindow(),
	}
}

// warningDelay is how long after the last activity the inactivity warning is due
func (t Timings) warningDelay() time.Duration {
	d := t.InactivityWindow - t.InactivityWarningLead
	if d < 0 {
		return 0
	}
	return d
}
