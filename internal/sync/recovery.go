package sync

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/matchdaylabs/leaguesync/internal/interfaces"
	"github.com/matchdaylabs/leaguesync/internal/models"
)

// RecoveryDispatcher selects and executes a remediation action for a
// classified stuck reason. Recovery is attempted at most once per detected
// stall per stage; the pipeline escalates to stage failure on a second
// detection rather than looping recovery attempts.
type RecoveryDispatcher struct {
	nav     interfaces.Navigator // nil when the driver lacks navigation
	session *models.SessionState
	wait    time.Duration
	logger  arbor.ILogger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRecoveryDispatcher creates a dispatcher operating on the shared session.
func NewRecoveryDispatcher(nav interfaces.Navigator, session *models.SessionState, wait time.Duration, logger arbor.ILogger) *RecoveryDispatcher {
	return &RecoveryDispatcher{
		nav:     nav,
		session: session,
		wait:    wait,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// Attempt executes the remediation action for the reason and reports whether
// the session is believed recovered. A false return means the current stage
// must fail: either the stall needs a human (challenge) or re-authentication
// is required upstream (access denied / session expired).
func (r *RecoveryDispatcher) Attempt(ctx context.Context, reason StuckReason) bool {
	r.logger.Info().
		Str("reason", string(reason)).
		Str("current_url", r.session.CurrentURL()).
		Msg("Attempting stuck-state recovery")

	switch reason {
	case ReasonEndlessLoading:
		return r.reloadAndWait(ctx)

	case ReasonErrorBanner:
		// Transient error banners often clear on their own; wait without
		// reloading and proceed optimistically.
		if err := r.sleep(ctx, r.wait); err != nil {
			return false
		}
		return true

	case ReasonChallenge:
		// Requires a human; non-retryable.
		r.logger.Warn().Msg("Challenge screen detected - recovery requires human interaction")
		return false

	case ReasonAccessDenied, ReasonSessionExpired:
		// Force re-authentication upstream.
		r.session.SetAuthenticated(false)
		r.logger.Warn().
			Str("reason", string(reason)).
			Msg("Session marked unauthenticated - re-authentication required")
		return false

	case ReasonUnavailable:
		// Remote surface says come back later; wait then reload.
		return r.reloadAndWait(ctx)

	default:
		return r.reloadAndWait(ctx)
	}
}

// reloadAndWait re-navigates to the current location and pauses for the
// fixed recovery delay.
func (r *RecoveryDispatcher) reloadAndWait(ctx context.Context) bool {
	url := r.session.CurrentURL()
	if r.nav == nil || url == "" {
		r.logger.Debug().Msg("Reload recovery unavailable - no navigator or location")
		return false
	}

	if err := r.nav.Navigate(ctx, url); err != nil {
		r.logger.Warn().
			Err(err).
			Str("url", url).
			Msg("Recovery reload failed")
		return false
	}

	if err := r.sleep(ctx, r.wait); err != nil {
		return false
	}

	r.session.Touch(url)
	return true
}
