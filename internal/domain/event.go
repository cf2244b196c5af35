package domain

import "time"

// EventType tags events distributed through the event bus.
type EventType string

const (
	// EventTypeMetrics carries an AggregatedMetrics payload.
	EventTypeMetrics EventType = "metrics"
	// EventTypeIncident carries an *Incident payload.
	EventTypeIncident EventType = "incident"
	// EventTypeProgress carries a Progress payload.
	EventTypeProgress EventType = "progress"
)

// Event is one item fanned out to bus subscribers.
type Event struct {
	Type        EventType `json:"type"`
	PublishedAt time.Time `json:"published_at"`
	Payload     any       `json:"payload"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType EventType, payload any) Event {
	return Event{
		Type:        eventType,
		PublishedAt: time.Now().UTC(),
		Payload:     payload,
	}
}

// Progress is the observability signal emitted every progress interval of
// processed lines. It never affects correctness.
type Progress struct {
	WorkerID       string `json:"worker_id"`
	LinesProcessed int64  `json:"lines_processed"`
}

// EventPublisher is the half of the bus the pipeline needs.
type EventPublisher interface {
	Publish(event Event)
}
