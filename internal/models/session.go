package models

import (
	"sync"
	"time"
)

// Capability names one optional operation of the remote automation driver.
type Capability string

const (
	CapabilityNavigate Capability = "navigate"
	CapabilitySnapshot Capability = "snapshot"
	CapabilityClick    Capability = "click"
	CapabilityType     Capability = "type"
	CapabilityCapture  Capability = "capture_artifact"
)

// MinDriverCapabilities is the minimum number of driver capabilities required
// before the pipeline attempts real extraction. Below this the driver is
// marked unavailable and the pipeline synthesizes fallback data.
const MinDriverCapabilities = 3

// SessionState describes the single shared remote automation session. The
// pipeline is the only writer, but HTTP handlers read the state while a batch
// is running, so every access goes through the mutex.
type SessionState struct {
	mu sync.RWMutex

	active          bool
	authenticated   bool
	lastActivity    time.Time
	currentURL      string
	driverAvailable bool
	capabilities    map[Capability]bool
}

// SessionSnapshot is a point-in-time copy of the session state, safe to hold
// and serialize while the session keeps changing.
type SessionSnapshot struct {
	IsActive              bool                `json:"is_active"`
	IsAuthenticated       bool                `json:"is_authenticated"`
	LastActivityTime      time.Time           `json:"last_activity_time"`
	CurrentURL            string              `json:"current_url"`
	DriverAvailable       bool                `json:"driver_available"`
	AvailableCapabilities map[Capability]bool `json:"available_capabilities"`
}

// NewSessionState creates an unauthenticated session with no probed
// capabilities. The session may only become authenticated via a successful
// authentication check or the optimistic timeout fallback.
func NewSessionState() *SessionState {
	return &SessionState{
		capabilities: make(map[Capability]bool),
	}
}

// SetCapabilities records the probed capability set and derives driver
// availability from the MinDriverCapabilities threshold.
func (s *SessionState) SetCapabilities(caps map[Capability]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.capabilities = make(map[Capability]bool, len(caps))
	n := 0
	for c, ok := range caps {
		s.capabilities[c] = ok
		if ok {
			n++
		}
	}
	s.driverAvailable = n >= MinDriverCapabilities
}

// HasCapability reports whether the probed driver supports the capability.
func (s *SessionState) HasCapability(c Capability) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capabilities[c]
}

// CapabilityCount returns the number of usable driver capabilities.
func (s *SessionState) CapabilityCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, ok := range s.capabilities {
		if ok {
			n++
		}
	}
	return n
}

// DriverAvailable reports whether the driver met the capability threshold.
func (s *SessionState) DriverAvailable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.driverAvailable
}

// Authenticated reports whether the session is believed authenticated.
func (s *SessionState) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// SetAuthenticated records the authentication outcome.
func (s *SessionState) SetAuthenticated(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = v
}

// Touch records driver activity at the given location.
func (s *SessionState) Touch(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = true
	s.lastActivity = time.Now()
	if url != "" {
		s.currentURL = url
	}
}

// CurrentURL returns the last location the driver visited.
func (s *SessionState) CurrentURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentURL
}

// Snapshot returns a consistent copy of the full session state.
func (s *SessionState) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	caps := make(map[Capability]bool, len(s.capabilities))
	for c, ok := range s.capabilities {
		caps[c] = ok
	}
	return SessionSnapshot{
		IsActive:              s.active,
		IsAuthenticated:       s.authenticated,
		LastActivityTime:      s.lastActivity,
		CurrentURL:            s.currentURL,
		DriverAvailable:       s.driverAvailable,
		AvailableCapabilities: caps,
	}
}
