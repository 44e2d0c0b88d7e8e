package interfaces

import "context"

// EventType identifies a published event category.
type EventType string

const (
	EventSyncProgress EventType = "sync_progress"
	EventJobComplete  EventType = "job_complete"
	EventRunComplete  EventType = "run_complete"
	EventSyncError    EventType = "sync_error"
)

// Event is a published notification with an arbitrary payload.
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler processes a published event.
type EventHandler func(ctx context.Context, event Event) error

// EventService provides pub/sub distribution of events to subscribers.
type EventService interface {
	Subscribe(eventType EventType, handler EventHandler) error
	Publish(ctx context.Context, event Event) error
	PublishSync(ctx context.Context, event Event) error
	Close() error
}
