package relay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/welldanyogia/webhook-relay/internal/events"
)

func replayHistory(n int) []events.Event {
	history := make([]events.Event, n)
	for i := range history {
		history[i] = events.New(events.TopicEvents, []byte(fmt.Sprintf(`{"seq":%d}`, i)))
	}
	return history
}

func TestReplayer_DeliversAllWithSpacing(t *testing.T) {
	const interval = 20 * time.Millisecond
	reg := NewRegistry()
	sub := newSubscriber("", 16)
	reg.Add(sub)

	history := replayHistory(3)
	received := make([]events.Event, 0, len(history))
	arrivals := make([]time.Time, 0, len(history))
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for range history {
			select {
			case ev := <-sub.Events():
				received = append(received, ev)
				arrivals = append(arrivals, time.Now())
			case <-time.After(time.Second):
				return
			}
		}
	}()

	start := time.Now()
	result := Replayer{Interval: interval}.Run(context.Background(), reg, sub, history)
	<-consumed

	if result.Delivered != 3 || result.Dropped {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(received) != len(history) {
		t.Fatalf("expected %d events, got %d", len(history), len(received))
	}
	for i := range history {
		if received[i].ID != history[i].ID {
			t.Errorf("position %d: expected %s, got %s", i, history[i].Data, received[i].Data)
		}
	}
	if first := arrivals[0].Sub(start); first < interval {
		t.Errorf("first event arrived after %v, want >= %v", first, interval)
	}
	expectSpacing(t, arrivals, interval)
}

func TestReplayer_EmptyHistoryReturnsImmediately(t *testing.T) {
	reg := NewRegistry()
	sub := newSubscriber("", 1)
	reg.Add(sub)

	result := Replayer{Interval: time.Hour}.Run(context.Background(), reg, sub, nil)
	if result.Delivered != 0 {
		t.Errorf("expected nothing delivered, got %d", result.Delivered)
	}
}

func TestReplayer_StopsOnContextCancel(t *testing.T) {
	reg := NewRegistry()
	sub := newSubscriber("", 16)
	reg.Add(sub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := Replayer{Interval: 10 * time.Millisecond}.Run(ctx, reg, sub, replayHistory(5))
	if result.Delivered != 0 {
		t.Errorf("expected no deliveries after cancel, got %d", result.Delivered)
	}
}

func TestReplayer_StopsWhenSubscriberRemoved(t *testing.T) {
	reg := NewRegistry()
	sub := newSubscriber("", 16)
	reg.Add(sub)

	go func() {
		time.Sleep(35 * time.Millisecond)
		reg.Remove(sub)
	}()

	result := Replayer{Interval: 20 * time.Millisecond}.Run(context.Background(), reg, sub, replayHistory(10))
	if result.Delivered >= 10 {
		t.Errorf("replay should stop after removal, delivered %d", result.Delivered)
	}
	if result.Dropped {
		t.Error("a disconnect is not a drop")
	}
}

func TestReplayer_OverflowDropsSubscriber(t *testing.T) {
	reg := NewRegistry()
	sub := newSubscriber("", 1)
	reg.Add(sub)

	result := Replayer{Interval: time.Millisecond}.Run(context.Background(), reg, sub, replayHistory(3))
	if result.Delivered != 1 {
		t.Errorf("expected 1 delivered before overflow, got %d", result.Delivered)
	}
	if !result.Dropped {
		t.Error("expected subscriber to be dropped on overflow")
	}
	if reg.Contains(sub) {
		t.Error("overflowed subscriber should be removed")
	}
}
