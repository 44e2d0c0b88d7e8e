package sync

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/matchdaylabs/leaguesync/internal/models"
)

// Snapshot parsing is best-effort by design: the remote markup is not under
// our control. Each parser tries an ordered list of candidate selectors and
// falls back to text heuristics before giving up.

// memberListLocators are tried in order when clicking into the
// members/roster listing.
var memberListLocators = []string{
	`a[href*="standings"]`,
	`a[href*="members"]`,
	`a[href*="owners"]`,
	`nav a:contains("Standings")`,
	`nav a:contains("League Members")`,
	`#league-nav a:contains("Members")`,
}

var (
	teamCountRe  = regexp.MustCompile(`(?i)(\d+)[\s-]*team`)
	rosterRe     = regexp.MustCompile(`(?i)roster\s*(?:size|slots)?\s*[:=]?\s*(\d+)`)
	divisionsRe  = regexp.MustCompile(`(?i)(\d+)\s*divisions?`)
	recordRe     = regexp.MustCompile(`(\d+)-(\d+)(?:-(\d+))?`)
	pointsForRe  = regexp.MustCompile(`(?i)(?:PF|points for)\s*[:=]?\s*([\d,]+(?:\.\d+)?)`)
	pointsAgstRe = regexp.MustCompile(`(?i)(?:PA|points against)\s*[:=]?\s*([\d,]+(?:\.\d+)?)`)
	weekOfRe     = regexp.MustCompile(`(?i)week\s+(\d+)\s+of\s+(\d+)`)
	weekRe       = regexp.MustCompile(`(?i)(?:week|matchup period)\s+(\d+)`)
)

// parseLeagueSettings extracts coarse league configuration from a snapshot.
// Returns an error when the snapshot yields no recognizable settings at all;
// the caller decides whether that is fatal.
func parseLeagueSettings(snapshot *models.PageSnapshot) (models.LeagueSettings, error) {
	if snapshot.Empty() {
		return models.LeagueSettings{}, fmt.Errorf("empty snapshot")
	}

	settings := models.LeagueSettings{
		ScoringType: "head-to-head",
		Divisions:   1,
	}

	text := snapshot.Text
	if text == "" {
		text = snapshot.HTML
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot.HTML)); err == nil {
		for _, sel := range []string{".league-name", "#league-name", "h1"} {
			if name := strings.TrimSpace(doc.Find(sel).First().Text()); name != "" {
				settings.Name = name
				break
			}
		}

		// Settings tables commonly label rows; harvest label/value pairs.
		doc.Find(".league-settings tr, #settings tr, table.settings tr").Each(func(_ int, row *goquery.Selection) {
			label := strings.ToLower(strings.TrimSpace(row.Find("td, th").First().Text()))
			value := strings.TrimSpace(row.Find("td").Last().Text())
			switch {
			// "roster size" must not be mistaken for league size, so the
			// roster check comes first.
			case strings.Contains(label, "roster"):
				if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
					settings.RosterSlots = n
				}
			case strings.Contains(label, "teams") || strings.Contains(label, "size"):
				if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
					settings.LeagueSize = n
				}
			case strings.Contains(label, "scoring"):
				settings.ScoringType = normalizeScoring(value)
			case strings.Contains(label, "division"):
				if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
					settings.Divisions = n
				}
			}
		})
	}

	if settings.Name == "" && snapshot.Title != "" {
		settings.Name = snapshot.Title
	}

	// Text heuristics fill anything the structured pass missed.
	if settings.LeagueSize == 0 {
		if m := teamCountRe.FindStringSubmatch(text); m != nil {
			settings.LeagueSize, _ = strconv.Atoi(m[1])
		}
	}
	if settings.RosterSlots == 0 {
		if m := rosterRe.FindStringSubmatch(text); m != nil {
			settings.RosterSlots, _ = strconv.Atoi(m[1])
		}
	}
	if m := divisionsRe.FindStringSubmatch(text); m != nil {
		settings.Divisions, _ = strconv.Atoi(m[1])
	}
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "rotisserie") || strings.Contains(lower, "roto"):
		settings.ScoringType = "roto"
	case strings.Contains(lower, "points league") || strings.Contains(lower, "total points"):
		settings.ScoringType = "points"
	}

	if settings.LeagueSize == 0 {
		return models.LeagueSettings{}, fmt.Errorf("no league settings recognized in snapshot (url=%s)", snapshot.URL)
	}

	return settings, nil
}

func normalizeScoring(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case strings.Contains(v, "roto"):
		return "roto"
	case strings.Contains(v, "point"):
		return "points"
	default:
		return "head-to-head"
	}
}

// parseMembers extracts the roster listing from a snapshot.
func parseMembers(snapshot *models.PageSnapshot) ([]models.Member, error) {
	if snapshot.Empty() {
		return nil, fmt.Errorf("empty snapshot")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot html: %w", err)
	}

	selectors := []string{
		"[data-team-id]",
		"tr.team-row",
		"table.standings tbody tr",
		"table.members tbody tr",
		".roster-list li",
	}

	var members []models.Member
	for _, sel := range selectors {
		doc.Find(sel).Each(func(i int, s *goquery.Selection) {
			m := models.Member{}
			if id, ok := s.Attr("data-team-id"); ok {
				m.ID = id
			}
			if team := strings.TrimSpace(s.Find(".team-name, td.team, a").First().Text()); team != "" {
				m.TeamName = team
			}
			if name := strings.TrimSpace(s.Find(".manager, td.manager, .owner").First().Text()); name != "" {
				m.Name = name
			}
			if m.TeamName == "" && m.Name == "" {
				// Fall back to the row text, first cell-ish fragment.
				if line := firstLine(s.Text()); line != "" {
					m.TeamName = line
				}
			}
			if m.ID == "" {
				m.ID = fmt.Sprintf("member-%d", i+1)
			}
			if m.TeamName != "" || m.Name != "" {
				members = append(members, m)
			}
		})
		if len(members) > 0 {
			break
		}
	}

	if len(members) == 0 {
		return nil, fmt.Errorf("no members recognized in snapshot (url=%s)", snapshot.URL)
	}

	return members, nil
}

// parseMemberRecord extracts the win/loss record and point totals for one
// member from a snapshot of their detail surface.
func parseMemberRecord(snapshot *models.PageSnapshot, memberID string) (models.MemberRecord, error) {
	if snapshot.Empty() {
		return models.MemberRecord{}, fmt.Errorf("empty snapshot")
	}

	text := snapshot.Text
	if text == "" {
		text = snapshot.HTML
	}

	record := models.MemberRecord{MemberID: memberID}

	m := recordRe.FindStringSubmatch(text)
	if m == nil {
		return models.MemberRecord{}, fmt.Errorf("no record found for member %s", memberID)
	}
	record.Wins, _ = strconv.Atoi(m[1])
	record.Losses, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		record.Ties, _ = strconv.Atoi(m[3])
	}

	if pf := pointsForRe.FindStringSubmatch(text); pf != nil {
		record.PointsFor = parseFloat(pf[1])
	}
	if pa := pointsAgstRe.FindStringSubmatch(text); pa != nil {
		record.PointsAgainst = parseFloat(pa[1])
	}

	return record, nil
}

// parseLeagueMetadata extracts schedule/ordering information.
func parseLeagueMetadata(snapshot *models.PageSnapshot) (models.LeagueMetadata, error) {
	if snapshot.Empty() {
		return models.LeagueMetadata{}, fmt.Errorf("empty snapshot")
	}

	text := snapshot.Text
	if text == "" {
		text = snapshot.HTML
	}

	if m := weekOfRe.FindStringSubmatch(text); m != nil {
		current, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		return models.LeagueMetadata{CurrentWeek: current, TotalWeeks: total, ScheduleKnown: true}, nil
	}

	if m := weekRe.FindStringSubmatch(text); m != nil {
		current, _ := strconv.Atoi(m[1])
		meta := models.DefaultLeagueMetadata()
		meta.CurrentWeek = current
		meta.ScheduleKnown = true
		return meta, nil
	}

	return models.LeagueMetadata{}, fmt.Errorf("no schedule information in snapshot (url=%s)", snapshot.URL)
}

// placeholderMembers synthesizes a roster when member extraction fails
// entirely; extraction is best-effort past the settings stage.
func placeholderMembers(count int) []models.Member {
	if count <= 0 {
		count = models.DefaultLeagueSettings().LeagueSize
	}
	members := make([]models.Member, count)
	for i := range members {
		members[i] = models.Member{
			ID:          fmt.Sprintf("member-%d", i+1),
			TeamName:    fmt.Sprintf("Team %d", i+1),
			Placeholder: true,
		}
	}
	return members
}

// Authenticated-vs-login markers used by the authenticating stage.
var (
	authenticatedMarkersRe = regexp.MustCompile(`(?i)(sign out|log out|logout|my team|my leagues|account settings|welcome back)`)
	loginMarkersRe         = regexp.MustCompile(`(?i)(<input[^>]+type=["']?password|sign in|log in to continue|forgot password)`)
)

func hasAuthenticatedMarkers(snapshot *models.PageSnapshot) bool {
	return !snapshot.Empty() && authenticatedMarkersRe.MatchString(snapshot.Text+snapshot.HTML)
}

func hasLoginMarkers(snapshot *models.PageSnapshot) bool {
	return !snapshot.Empty() && loginMarkersRe.MatchString(snapshot.Text+snapshot.HTML)
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return ""
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	return f
}
