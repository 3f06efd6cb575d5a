package config

import "time"

type TimerConfig interface {
	GetInactivityWindow() time.Duration
	GetRenewalOffset() time.Duration
	GetActivityCheckInterval() time.Duration
	GetInactivityWarningLead() time.Duration
}

type Timers struct{}

var _ TimerConfig = Timers{}

// GetInactivityWindow returns the configured window, zero or less disables inactivity tracking
func (Timers) GetInactivityWindow() time.Duration {
	return time.Duration(GetEnvInt64("INACTIVITY_TIMER", 3600000)) * time.Millisecond
}

func (Timers) GetRenewalOffset() time.Duration {
	return time.Minute
}

func (Timers) GetActivityCheckInterval() time.Duration {
	return time.Minute
}

func (Timers) GetInactivityWarningLead() time.Duration {
	return 5 * time.Minute
}
