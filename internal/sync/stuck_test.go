package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"

	"github.com/matchdaylabs/leaguesync/internal/models"
)

func snapshotWithText(text string) *models.PageSnapshot {
	return &models.PageSnapshot{
		URL:        "https://leagues.example.com/league/1",
		Text:       text,
		CapturedAt: time.Now(),
	}
}

func TestStuckDetectorClassifiesKnownPatterns(t *testing.T) {
	detector := NewStuckDetector(arbor.NewLogger())

	tests := []struct {
		name   string
		text   string
		reason StuckReason
	}{
		{"endless loading", "Loading... please stand by", ReasonEndlessLoading},
		{"captcha challenge", "Please complete the CAPTCHA to continue", ReasonChallenge},
		{"robot check", "Verify you are a human before proceeding", ReasonChallenge},
		{"access denied", "Access Denied: you do not have permission", ReasonAccessDenied},
		{"session expired", "Your session has expired, please sign in again", ReasonSessionExpired},
		{"unavailable", "Service temporarily unavailable, try again later", ReasonUnavailable},
		{"generic error", "Oops! Something went wrong on our end", ReasonErrorBanner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, stuck := detector.Detect(snapshotWithText(tt.text))
			assert.True(t, stuck)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestStuckDetectorChallengeBeforeGenericError(t *testing.T) {
	detector := NewStuckDetector(arbor.NewLogger())

	// Challenge pages often include generic error wording too; the challenge
	// classification must win.
	reason, stuck := detector.Detect(snapshotWithText(
		"Something went wrong. Please complete the security check to verify you are a human."))

	assert.True(t, stuck)
	assert.Equal(t, ReasonChallenge, reason)
}

func TestStuckDetectorHealthyPage(t *testing.T) {
	detector := NewStuckDetector(arbor.NewLogger())

	reason, stuck := detector.Detect(snapshotWithText(
		"My League - Standings. Team Alpha 5-2, Team Beta 4-3."))

	assert.False(t, stuck)
	assert.Equal(t, ReasonNone, reason)
}

func TestStuckDetectorFailsOpenOnEmptySnapshot(t *testing.T) {
	detector := NewStuckDetector(arbor.NewLogger())

	reason, stuck := detector.Detect(&models.PageSnapshot{})
	assert.False(t, stuck)
	assert.Equal(t, ReasonNone, reason)

	reason, stuck = detector.Detect(nil)
	assert.False(t, stuck)
	assert.Equal(t, ReasonNone, reason)
}

func TestStuckDetectorFallsBackToHTML(t *testing.T) {
	detector := NewStuckDetector(arbor.NewLogger())

	snapshot := &models.PageSnapshot{
		URL:  "https://leagues.example.com",
		HTML: `<div class="banner">Session has expired</div>`,
	}

	reason, stuck := detector.Detect(snapshot)
	assert.True(t, stuck)
	assert.Equal(t, ReasonSessionExpired, reason)
}

func TestStuckDetectorSkipsInvalidPattern(t *testing.T) {
	detector := NewStuckDetector(arbor.NewLogger())
	before := len(detector.rules)

	detector.AddRule(`([unclosed`, ReasonErrorBanner)
	assert.Len(t, detector.rules, before)

	detector.AddRule(`(?i)rate limit exceeded`, ReasonUnavailable)
	assert.Len(t, detector.rules, before+1)

	reason, stuck := detector.Detect(snapshotWithText("Rate limit exceeded for this account"))
	assert.True(t, stuck)
	assert.Equal(t, ReasonUnavailable, reason)
}
