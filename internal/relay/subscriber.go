// Package relay fans published events out to live stream subscribers and replays
// buffered history to subscribers as they connect.
package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/welldanyogia/webhook-relay/internal/events"
)

// DeliveryStatus is the outcome of handing one event to one subscriber.
type DeliveryStatus int

const (
	// Delivered means the event was queued for the subscriber.
	Delivered DeliveryStatus = iota
	// Gone means the subscriber is no longer registered.
	Gone
	// Overflow means the subscriber's queue is full; it is treated as disconnected.
	Overflow
)

func (s DeliveryStatus) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case Gone:
		return "gone"
	case Overflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Subscriber is one live stream connection as seen by the relay.
// The transport drains Events and stops when Done is closed.
type Subscriber struct {
	ID        string
	ViewerID  string
	CreatedAt time.Time

	queue     chan events.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscriber(viewerID string, queueSize int) *Subscriber {
	return &Subscriber{
		ID:        uuid.New().String(),
		ViewerID:  viewerID,
		CreatedAt: time.Now(),
		queue:     make(chan events.Event, queueSize),
		done:      make(chan struct{}),
	}
}

// Events returns the channel of events queued for this subscriber.
// It is never closed; select on Done as well.
func (s *Subscriber) Events() <-chan events.Event {
	return s.queue
}

// Done is closed once the subscriber has been removed from the relay.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// IsClosed returns true if the subscriber has been removed.
func (s *Subscriber) IsClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Pending returns the number of queued, undelivered events.
func (s *Subscriber) Pending() int {
	return len(s.queue)
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// offer queues ev without blocking.
func (s *Subscriber) offer(ev events.Event) DeliveryStatus {
	if s.IsClosed() {
		return Gone
	}
	select {
	case s.queue <- ev:
		return Delivered
	default:
		return Overflow
	}
}

// SubscriberInfo is a diagnostic view of a subscriber.
type SubscriberInfo struct {
	ID        string    `json:"id"`
	ViewerID  string    `json:"viewer_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Pending   int       `json:"pending"`
}
