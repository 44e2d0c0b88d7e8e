package sync

import (
	"regexp"

	"github.com/ternarybob/arbor"

	"github.com/matchdaylabs/leaguesync/internal/models"
)

// StuckReason classifies why the remote session has stopped making progress.
type StuckReason string

const (
	ReasonNone           StuckReason = ""
	ReasonEndlessLoading StuckReason = "endless_loading"
	ReasonChallenge      StuckReason = "challenge_detected"
	ReasonAccessDenied   StuckReason = "access_denied"
	ReasonSessionExpired StuckReason = "session_expired"
	ReasonUnavailable    StuckReason = "temporarily_unavailable"
	ReasonErrorBanner    StuckReason = "error_displayed"
)

// stuckRule pairs a case-insensitive pattern with the reason it indicates.
type stuckRule struct {
	pattern *regexp.Regexp
	reason  StuckReason
}

// StuckDetector inspects a session snapshot against an ordered table of
// known-bad patterns. Rule order is significant: earlier rules encode higher
// severity/specificity, so the challenge rule must precede the generic error
// rule to avoid misclassification.
//
// The detector fails open: a missing or empty snapshot is not proof of a
// stall, so it reports not-stuck. String matching is inherently fragile;
// false negatives are an accepted limitation, and new patterns can be added
// via AddRule without touching pipeline logic.
type StuckDetector struct {
	rules  []stuckRule
	logger arbor.ILogger
}

// NewStuckDetector creates a detector with the default rule table.
func NewStuckDetector(logger arbor.ILogger) *StuckDetector {
	d := &StuckDetector{logger: logger}

	// Order matters. Challenge and session rules come before the generic
	// error banner rule.
	d.AddRule(`(?i)(loading\.\.\.|still loading|please wait while|spinner)`, ReasonEndlessLoading)
	d.AddRule(`(?i)(captcha|verify (you('|’)?re|you are) (a )?human|unusual (traffic|activity)|security check|challenge|are you a robot)`, ReasonChallenge)
	d.AddRule(`(?i)(access denied|permission denied|not authorized|forbidden)`, ReasonAccessDenied)
	d.AddRule(`(?i)(session (has )?expired|logged out|please (sign|log) in again)`, ReasonSessionExpired)
	d.AddRule(`(?i)(temporarily unavailable|service unavailable|try again later|down for maintenance)`, ReasonUnavailable)
	d.AddRule(`(?i)(something went wrong|an error (has )?occurred|error occurred|oops)`, ReasonErrorBanner)

	return d
}

// AddRule appends a pattern to the rule table. Patterns are evaluated in
// insertion order; the first match wins.
func (d *StuckDetector) AddRule(pattern string, reason StuckReason) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		d.logger.Warn().
			Err(err).
			Str("pattern", pattern).
			Str("reason", string(reason)).
			Msg("Invalid stuck-detection pattern skipped")
		return
	}
	d.rules = append(d.rules, stuckRule{pattern: re, reason: reason})
}

// Detect classifies the snapshot. It returns the first matching reason, or
// (ReasonNone, false) when the snapshot shows no known stall pattern or
// cannot be evaluated at all.
func (d *StuckDetector) Detect(snapshot *models.PageSnapshot) (StuckReason, bool) {
	if snapshot.Empty() {
		// Absence of signal is not proof of a stall.
		return ReasonNone, false
	}

	content := snapshot.Text
	if content == "" {
		content = snapshot.HTML
	}

	for _, rule := range d.rules {
		if rule.pattern.MatchString(content) {
			d.logger.Debug().
				Str("reason", string(rule.reason)).
				Str("url", snapshot.URL).
				Msg("Stuck state detected")
			return rule.reason, true
		}
	}

	return ReasonNone, false
}
