package events

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/matchdaylabs/leaguesync/internal/interfaces"
	"github.com/matchdaylabs/leaguesync/internal/models"
)

// ProgressBridge adapts the pipeline's progress reporting onto the event bus.
// It keeps the sync package free of transport concerns: websocket and any
// future consumers subscribe to events instead of the reporter directly.
type ProgressBridge struct {
	events interfaces.EventService
	logger arbor.ILogger
}

// NewProgressBridge creates a bridge publishing onto the given event service.
func NewProgressBridge(events interfaces.EventService, logger arbor.ILogger) *ProgressBridge {
	return &ProgressBridge{events: events, logger: logger}
}

// OnProgress publishes a per-job progress update.
func (b *ProgressBridge) OnProgress(jobID string, progress models.SyncProgress) {
	b.publish(interfaces.Event{
		Type:    interfaces.EventSyncProgress,
		Payload: progress,
	})
}

// OnJobComplete publishes a terminal job result.
func (b *ProgressBridge) OnJobComplete(result models.SyncResult) {
	b.publish(interfaces.Event{
		Type:    interfaces.EventJobComplete,
		Payload: result,
	})
}

// OnAllComplete publishes the ordered batch result list.
func (b *ProgressBridge) OnAllComplete(results []models.SyncResult) {
	b.publish(interfaces.Event{
		Type:    interfaces.EventRunComplete,
		Payload: results,
	})
}

// OnError publishes a job-level extraction error.
func (b *ProgressBridge) OnError(err *models.ExtractionError) {
	b.publish(interfaces.Event{
		Type:    interfaces.EventSyncError,
		Payload: err,
	})
}

func (b *ProgressBridge) publish(event interfaces.Event) {
	if err := b.events.Publish(context.Background(), event); err != nil {
		b.logger.Warn().
			Err(err).
			Str("event_type", string(event.Type)).
			Msg("Failed to publish progress event")
	}
}
