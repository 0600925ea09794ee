package events

import (
	"container/list"
	"sync"
)

// DefaultHistorySize is used when a non-positive size is requested.
const DefaultHistorySize = 1000

// History implements Buffer as a bounded FIFO of recent events.
type History struct {
	mu      sync.RWMutex
	events  *list.List // oldest at Front, newest at Back
	maxSize int
}

// NewHistory creates a History holding at most maxSize events.
func NewHistory(maxSize int) *History {
	if maxSize <= 0 {
		maxSize = DefaultHistorySize
	}

	return &History{
		events:  list.New(),
		maxSize: maxSize,
	}
}

// Append adds an event at the tail.
// If the buffer is full, the oldest event is removed first.
func (h *History) Append(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.events.Len() >= h.maxSize {
		h.events.Remove(h.events.Front())
	}
	h.events.PushBack(event)
}

// Snapshot returns a copy of the buffered events in insertion order.
// The copy is unaffected by appends that happen after it returns.
func (h *History) Snapshot() []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]Event, 0, h.events.Len())
	for elem := h.events.Front(); elem != nil; elem = elem.Next() {
		result = append(result, elem.Value.(Event))
	}
	return result
}

// Since returns the events appended after the event with the given ID.
// ok is false when the ID is no longer (or never was) in the buffer.
func (h *History) Since(eventID string) (result []Event, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for elem := h.events.Back(); elem != nil; elem = elem.Prev() {
		if elem.Value.(Event).ID != eventID {
			continue
		}
		for next := elem.Next(); next != nil; next = next.Next() {
			result = append(result, next.Value.(Event))
		}
		return result, true
	}
	return nil, false
}

// IsEmpty reports whether the buffer holds no events.
func (h *History) IsEmpty() bool {
	return h.Len() == 0
}

// Len returns the number of events in the buffer.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.events.Len()
}

// Cap returns the maximum number of events kept.
func (h *History) Cap() int {
	return h.maxSize
}

// Clear removes all events.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events.Init()
}
