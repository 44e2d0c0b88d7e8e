package models

import "time"

// LeagueSettings holds the coarse configuration extracted from a league's
// settings surface.
type LeagueSettings struct {
	Name        string `json:"name"`
	LeagueSize  int    `json:"league_size"`
	ScoringType string `json:"scoring_type"` // e.g. "head-to-head", "points", "roto"
	RosterSlots int    `json:"roster_slots"`
	Divisions   int    `json:"divisions"`
	Synthesized bool   `json:"synthesized"` // true when defaults were substituted
}

// DefaultLeagueSettings returns the fallback settings used when the driver
// cannot produce a snapshot at all.
func DefaultLeagueSettings() LeagueSettings {
	return LeagueSettings{
		Name:        "Unknown League",
		LeagueSize:  10,
		ScoringType: "head-to-head",
		RosterSlots: 15,
		Divisions:   1,
		Synthesized: true,
	}
}

// Member is one roster entry (a team/manager) in a league.
type Member struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TeamName    string `json:"team_name"`
	Placeholder bool   `json:"placeholder"` // true when synthesized after extraction failure
}

// MemberRecord holds the per-member detail records fetched in the
// sub-record stage.
type MemberRecord struct {
	MemberID      string  `json:"member_id"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	Ties          int     `json:"ties"`
	PointsFor     float64 `json:"points_for"`
	PointsAgainst float64 `json:"points_against"`
}

// LeagueMetadata holds auxiliary schedule/ordering information.
type LeagueMetadata struct {
	CurrentWeek   int  `json:"current_week"`
	TotalWeeks    int  `json:"total_weeks"`
	ScheduleKnown bool `json:"schedule_known"`
}

// DefaultLeagueMetadata returns the degraded-mode metadata used when the
// metadata stage fails.
func DefaultLeagueMetadata() LeagueMetadata {
	return LeagueMetadata{CurrentWeek: 1, TotalWeeks: 17, ScheduleKnown: false}
}

// LeagueData is the aggregate produced by a complete pipeline run.
type LeagueData struct {
	JobID    string         `json:"job_id"`
	Settings LeagueSettings `json:"settings"`
	Members  []Member       `json:"members"`
	Records  []MemberRecord `json:"records"`
	Metadata LeagueMetadata `json:"metadata"`
}

// PageSnapshot is an opaque description of the remote session's currently
// visible state, sourced from the driver.
type PageSnapshot struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	HTML       string    `json:"html"`
	Text       string    `json:"text"` // markdown-ish rendering of the visible content
	CapturedAt time.Time `json:"captured_at"`
}

// Empty reports whether the snapshot carries no usable content.
func (s *PageSnapshot) Empty() bool {
	return s == nil || (s.HTML == "" && s.Text == "")
}
