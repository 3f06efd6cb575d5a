package authsession

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-session/internal/clock"
	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/rs/zerolog/log"
)

const renewalKey = "renew"

// RenewToken obtains fresh tokens from the provider. Concurrent callers share
// one provider call and its outcome. A failed renewal logs the user out. A
// renewal that completes after a logout is discarded with ErrRenewalDiscarded.
// Cancelling ctx stops waiting but not the shared renewal.
//
// A token-change listener must not wait for RenewToken synchronously: the
// renewal delivering that change would be waiting on the listener. Start the
// renewal from a goroutine instead.
func (c *Controller) RenewToken(ctx context.Context) error {
	ch := c.renewals.DoChan(renewalKey, func() (any, error) {
		return nil, c.renew(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) renew(ctx context.Context) error {
	c.mu.Lock()
	generation := c.generation
	c.mu.Unlock()

	tokens, err := c.provider.Renew(ctx)
	if err != nil {
		if !c.isGeneration(generation) {
			log.Debug().Err(err).Msg("Ignoring renewal failure after logout")
			return autherrors.ErrRenewalDiscarded
		}
		log.Err(err).Msg("Failed to renew authentication token")
		c.Logout()
		if autherrors.Is(err, autherrors.ErrRenewal) {
			return err
		}
		return fmt.Errorf("%w: %w", autherrors.ErrRenewal, err)
	}

	if !c.setSession(*tokens, &generation) {
		log.Debug().Msg("Discarding renewed tokens after logout")
		return autherrors.ErrRenewalDiscarded
	}
	return nil
}

func (c *Controller) isGeneration(generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == generation
}

// CheckTokenValidity renews the token when the stored session is no longer valid
func (c *Controller) CheckTokenValidity(ctx context.Context) error {
	if c.IsAuthenticated() {
		return nil
	}
	c.mu.Lock()
	stopTimer(&c.renewalTimer)
	c.mu.Unlock()
	return c.RenewToken(ctx)
}

// scheduleRenewalLocked replaces the renewal timer. No timer is armed when the
// token is already inside the renewal offset.
func (c *Controller) scheduleRenewalLocked(expiresAt time.Time) {
	stopTimer(&c.renewalTimer)
	delay := expiresAt.Sub(c.clock.Now()) - c.timings.RenewalOffset
	if delay <= 0 {
		return
	}

	var t clock.Timer
	t = c.clock.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.renewalTimer != t {
			c.mu.Unlock()
			return
		}
		c.renewalTimer = nil
		c.mu.Unlock()

		if err := c.RenewToken(context.Background()); err != nil {
			log.Debug().Err(err).Msg("Scheduled renewal did not complete")
		}
	})
	c.renewalTimer = t
}

// RenewalScheduled reports whether a renewal timer is armed
func (c *Controller) RenewalScheduled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renewalTimer != nil
}

func (c *Controller) addVisibilityCheckLocked() {
	if c.stopVisibility == nil {
		c.stopVisibility = c.visibility.Subscribe(c.checkTokenOnVisibilityChange)
	}
}

func (c *Controller) removeVisibilityCheckLocked() {
	if c.stopVisibility != nil {
		c.stopVisibility()
		c.stopVisibility = nil
	}
}

func (c *Controller) checkTokenOnVisibilityChange(visible bool) {
	if !visible {
		return
	}
	if err := c.CheckTokenValidity(context.Background()); err != nil {
		log.Debug().Err(err).Msg("Token check on visibility change failed")
	}
}
