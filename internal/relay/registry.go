package relay

import (
	"sort"
	"sync"

	"github.com/welldanyogia/webhook-relay/internal/events"
)

// Registry tracks the currently live subscribers.
//
// Sends happen under the read lock and removal under the write lock, so once
// Remove returns no further event can be queued to that subscriber.
type Registry struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber // subscriberID -> Subscriber
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		subscribers: make(map[string]*Subscriber),
	}
}

// Add registers a subscriber.
func (r *Registry) Add(sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers[sub.ID] = sub
}

// Remove unregisters a subscriber and closes it.
// It returns false if the subscriber was not registered; calling it again is a no-op.
func (r *Registry) Remove(sub *Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(sub)
}

func (r *Registry) removeLocked(sub *Subscriber) bool {
	current, exists := r.subscribers[sub.ID]
	if !exists || current != sub {
		return false
	}
	delete(r.subscribers, sub.ID)
	sub.close()
	return true
}

// Contains reports whether sub is currently registered.
func (r *Registry) Contains(sub *Subscriber) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.containsLocked(sub)
}

func (r *Registry) containsLocked(sub *Subscriber) bool {
	current, exists := r.subscribers[sub.ID]
	return exists && current == sub
}

// Send queues ev for a single subscriber if it is still registered.
func (r *Registry) Send(sub *Subscriber, ev events.Event) DeliveryStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.containsLocked(sub) {
		return Gone
	}
	return sub.offer(ev)
}

// ForEach calls fn for every registered subscriber.
// fn must not block and must not call back into the Registry.
// Subscribers for which fn reports anything other than Delivered are removed
// after the walk and returned as dropped.
func (r *Registry) ForEach(fn func(sub *Subscriber) DeliveryStatus) (delivered int, dropped []*Subscriber) {
	r.mu.RLock()
	var failed []*Subscriber
	for _, sub := range r.subscribers {
		if fn(sub) == Delivered {
			delivered++
		} else {
			failed = append(failed, sub)
		}
	}
	r.mu.RUnlock()

	for _, sub := range failed {
		if r.Remove(sub) {
			dropped = append(dropped, sub)
		}
	}
	return delivered, dropped
}

// Len returns the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}

// List returns diagnostic info for every subscriber, oldest first.
func (r *Registry) List() []SubscriberInfo {
	r.mu.RLock()
	result := make([]SubscriberInfo, 0, len(r.subscribers))
	for _, sub := range r.subscribers {
		result = append(result, SubscriberInfo{
			ID:        sub.ID,
			ViewerID:  sub.ViewerID,
			CreatedAt: sub.CreatedAt,
			Pending:   sub.Pending(),
		})
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// RemoveAll unregisters and closes every subscriber.
func (r *Registry) RemoveAll() []*Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make([]*Subscriber, 0, len(r.subscribers))
	for _, sub := range r.subscribers {
		r.removeLocked(sub)
		removed = append(removed, sub)
	}
	return removed
}
