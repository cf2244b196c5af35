// Package bus implements the event-distribution layer: fan-out of metric,
// incident, and progress events to live subscribers, decoupled from pipeline
// speed.
package bus

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/user/log-analyzer/internal/adapter/metrics"
	"github.com/user/log-analyzer/internal/domain"
)

// Subscription is one subscriber's handle. Events arrive on Events() in
// publication order; when the subscriber falls behind its bounded queue, the
// oldest queued events are dropped and Dropped() grows.
type Subscription struct {
	// mu serializes sends against close, so Unsubscribe during a publish can
	// never close the channel out from under a send.
	mu      sync.Mutex
	ch      chan domain.Event
	dropped atomic.Int64
	closed  bool
}

// Events returns the subscriber's receive channel. It is closed on
// Unsubscribe.
func (s *Subscription) Events() <-chan domain.Event {
	return s.ch
}

// Dropped returns how many events were discarded because this subscriber
// could not keep up.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// EventBus fans events out to all current subscribers. Publication never
// blocks on a slow subscriber and a new subscriber only sees events published
// after it subscribed.
type EventBus struct {
	logger  *slog.Logger
	m       *metrics.AnalyzerMetrics
	bufSize int

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// New creates an EventBus whose subscribers each get a queue of bufSize
// events. Metrics may be nil.
func New(logger *slog.Logger, m *metrics.AnalyzerMetrics, bufSize int) *EventBus {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &EventBus{
		logger:  logger.With("component", "event_bus"),
		m:       m,
		bufSize: bufSize,
		subs:    make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscriber.
func (b *EventBus) Subscribe() *Subscription {
	sub := &Subscription{ch: make(chan domain.Event, b.bufSize)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	b.logger.Debug("subscriber registered")
	return sub
}

// Unsubscribe removes the subscriber and closes its channel. Safe to call
// more than once.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	_, present := b.subs[sub]
	delete(b.subs, sub)
	b.mu.Unlock()
	if !present {
		return
	}

	sub.mu.Lock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
	sub.mu.Unlock()
	b.logger.Debug("subscriber removed", "dropped_events", sub.Dropped())
}

// Publish fans the event out to every current subscriber. A full subscriber
// queue sheds its oldest event rather than blocking publication.
func (b *EventBus) Publish(event domain.Event) {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		b.offer(sub, event)
	}
}

func (b *EventBus) offer(sub *Subscription, event domain.Event) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	for {
		select {
		case sub.ch <- event:
			return
		default:
		}
		// Queue full: shed the oldest queued event and retry.
		select {
		case <-sub.ch:
			sub.dropped.Add(1)
			if b.m != nil {
				b.m.EventsDropped.Inc()
			}
		default:
		}
	}
}
