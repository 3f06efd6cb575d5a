package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the session lifecycle
var (
	// Authentication errors
	ErrAuthentication   = errors.New("authentication failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrProfileFetch     = errors.New("profile fetch failed")

	// Renewal errors
	ErrRenewal            = errors.New("token renewal failed")
	ErrRenewalDiscarded   = errors.New("renewal result discarded after logout")
	ErrStateMismatch      = errors.New("silent renewal state mismatch")
	ErrMissingAccessToken = errors.New("silent renewal returned no access token")

	// Token errors
	ErrTokenDecode = errors.New("token decode failed")

	// Redirect errors
	ErrRedirectInProgress = errors.New("redirect already in progress")

	// General errors
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Join combines errors, see errors.Join
func Join(errs ...error) error {
	return errors.Join(errs...)
}
