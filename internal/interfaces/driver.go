package interfaces

import (
	"context"

	"github.com/matchdaylabs/leaguesync/internal/models"
)

// The remote automation driver is polymorphic: an implementation may provide
// any subset of these capabilities. The pipeline probes once at startup and
// degrades gracefully when capabilities are missing.

// Navigator loads a location in the remote session.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// Snapshotter returns an opaque description of the session's visible state.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*models.PageSnapshot, error)
}

// Clicker tries locator candidates in order and returns on the first success.
type Clicker interface {
	Click(ctx context.Context, candidates []string) error
}

// Typer enters text into the element matched by the locator.
type Typer interface {
	Type(ctx context.Context, locator, text string) error
}

// ArtifactCapturer captures a named diagnostic artifact (e.g. a screenshot).
type ArtifactCapturer interface {
	CaptureArtifact(ctx context.Context, name string) error
}

// Driver is the full capability set. Implementations need not satisfy it;
// capability detection is done per-interface via ProbeCapabilities.
type Driver interface {
	Navigator
	Snapshotter
	Clicker
	Typer
	ArtifactCapturer
}

// ProbeCapabilities inspects a driver value and returns the set of
// capabilities it declares. Probed once at orchestrator startup rather than
// checked ad hoc at each call site.
func ProbeCapabilities(driver any) map[models.Capability]bool {
	caps := make(map[models.Capability]bool, 5)
	if _, ok := driver.(Navigator); ok {
		caps[models.CapabilityNavigate] = true
	}
	if _, ok := driver.(Snapshotter); ok {
		caps[models.CapabilitySnapshot] = true
	}
	if _, ok := driver.(Clicker); ok {
		caps[models.CapabilityClick] = true
	}
	if _, ok := driver.(Typer); ok {
		caps[models.CapabilityType] = true
	}
	if _, ok := driver.(ArtifactCapturer); ok {
		caps[models.CapabilityCapture] = true
	}
	return caps
}
