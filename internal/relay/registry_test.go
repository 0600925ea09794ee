package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/welldanyogia/webhook-relay/internal/events"
)

func TestRegistry_AddRemove(t *testing.T) {
	reg := NewRegistry()
	sub := newSubscriber("viewer-1", 4)

	reg.Add(sub)
	if !reg.Contains(sub) {
		t.Fatal("expected subscriber to be registered")
	}
	if reg.Len() != 1 {
		t.Errorf("expected 1 subscriber, got %d", reg.Len())
	}

	if !reg.Remove(sub) {
		t.Error("first remove should report true")
	}
	if reg.Remove(sub) {
		t.Error("second remove should report false")
	}
	if !sub.IsClosed() {
		t.Error("removed subscriber should be closed")
	}
	if reg.Len() != 0 {
		t.Errorf("expected empty registry, got %d", reg.Len())
	}
}

func TestRegistry_MembershipIsByIdentity(t *testing.T) {
	reg := NewRegistry()
	a := newSubscriber("", 4)
	impostor := &Subscriber{ID: a.ID, queue: make(chan events.Event, 1), done: make(chan struct{})}

	reg.Add(a)
	if reg.Contains(impostor) {
		t.Error("a different subscriber with the same ID must not count as registered")
	}
	if reg.Remove(impostor) {
		t.Error("removing a different subscriber with the same ID must be a no-op")
	}
	if !reg.Contains(a) {
		t.Error("original subscriber should still be registered")
	}
}

func TestRegistry_SendAfterRemove(t *testing.T) {
	reg := NewRegistry()
	sub := newSubscriber("", 4)
	reg.Add(sub)

	ev := events.New(events.TopicEvents, []byte(`{}`))
	if status := reg.Send(sub, ev); status != Delivered {
		t.Fatalf("expected Delivered, got %s", status)
	}

	reg.Remove(sub)
	if status := reg.Send(sub, ev); status != Gone {
		t.Errorf("expected Gone after remove, got %s", status)
	}
	if len(sub.Events()) != 1 {
		t.Errorf("expected exactly 1 queued event, got %d", len(sub.Events()))
	}
}

func TestRegistry_ForEachDropsFailures(t *testing.T) {
	reg := NewRegistry()
	full := newSubscriber("", 1)
	ok := newSubscriber("", 4)
	reg.Add(full)
	reg.Add(ok)

	ev := events.New(events.TopicEvents, []byte(`1`))
	full.offer(ev)

	delivered, dropped := reg.ForEach(func(sub *Subscriber) DeliveryStatus {
		return sub.offer(ev)
	})

	if delivered != 1 {
		t.Errorf("expected 1 delivery, got %d", delivered)
	}
	if len(dropped) != 1 || dropped[0] != full {
		t.Fatalf("expected the full subscriber to be dropped, got %v", dropped)
	}
	if reg.Contains(full) || !reg.Contains(ok) {
		t.Error("only the full subscriber should have been removed")
	}
}

// A callback asks for removal by reporting Gone; the walk removes it afterwards.
func TestRegistry_ForEachRemovesOnGone(t *testing.T) {
	reg := NewRegistry()
	keep := newSubscriber("keep", 4)
	evict := newSubscriber("evict", 4)
	reg.Add(keep)
	reg.Add(evict)

	delivered, dropped := reg.ForEach(func(sub *Subscriber) DeliveryStatus {
		if sub == evict {
			return Gone
		}
		return Delivered
	})

	if delivered != 1 || len(dropped) != 1 || dropped[0] != evict {
		t.Fatalf("expected evict dropped and one delivery, got %d %v", delivered, dropped)
	}
	if reg.Contains(evict) || !evict.IsClosed() {
		t.Error("evicted subscriber should be removed and closed")
	}
	if !reg.Contains(keep) || keep.IsClosed() {
		t.Error("other subscriber should be untouched")
	}
}

func TestRegistry_ListOrderedByCreation(t *testing.T) {
	reg := NewRegistry()
	var subs []*Subscriber
	for i := 0; i < 3; i++ {
		sub := newSubscriber("", 4)
		sub.CreatedAt = time.Unix(int64(100-i), 0)
		subs = append(subs, sub)
		reg.Add(sub)
	}

	list := reg.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.Before(list[i-1].CreatedAt) {
			t.Errorf("list not ordered by creation time at %d", i)
		}
	}
	if list[0].ID != subs[2].ID {
		t.Errorf("expected oldest subscriber first")
	}
}

func TestRegistry_RemoveAll(t *testing.T) {
	reg := NewRegistry()
	for i := 0; i < 5; i++ {
		reg.Add(newSubscriber("", 1))
	}

	removed := reg.RemoveAll()
	if len(removed) != 5 {
		t.Errorf("expected 5 removed, got %d", len(removed))
	}
	for _, sub := range removed {
		if !sub.IsClosed() {
			t.Error("RemoveAll should close every subscriber")
		}
	}
	if reg.Len() != 0 {
		t.Errorf("expected empty registry, got %d", reg.Len())
	}
}

func TestRegistry_ConcurrentSendAndRemove(t *testing.T) {
	reg := NewRegistry()
	sub := newSubscriber("", 10000)
	reg.Add(sub)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				reg.Send(sub, events.New(events.TopicEvents, []byte(`1`)))
			}
		}()
	}

	time.Sleep(time.Millisecond)
	reg.Remove(sub)
	queued := len(sub.Events())
	wg.Wait()

	if len(sub.Events()) != queued {
		t.Errorf("events queued after remove: before=%d after=%d", queued, len(sub.Events()))
	}
}

func TestSubscriber_OfferAfterClose(t *testing.T) {
	sub := newSubscriber("", 2)
	sub.close()
	sub.close()

	if status := sub.offer(events.New(events.TopicEvents, []byte(`1`))); status != Gone {
		t.Errorf("expected Gone, got %s", status)
	}
	select {
	case <-sub.Done():
	default:
		t.Error("done channel should be closed")
	}
}
