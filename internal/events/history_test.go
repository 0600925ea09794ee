package events

import (
	"fmt"
	"sync"
	"testing"

	"pgregory.net/rapid"
)

// Helper to create a test event with a recognizable payload
func createTestEvent(i int) Event {
	return New(TopicEvents, []byte(fmt.Sprintf(`{"seq":%d}`, i)))
}

// Property: Last-N Retention
// *For any* capacity N and M > N appended events, Snapshot SHALL contain exactly the
// last N events in their original relative order.
func TestProperty_LastNRetention(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 50).Draw(t, "capacity")
		total := rapid.IntRange(capacity+1, capacity*3+1).Draw(t, "total")

		history := NewHistory(capacity)
		appended := make([]Event, total)
		for i := 0; i < total; i++ {
			appended[i] = createTestEvent(i)
			history.Append(appended[i])
		}

		snapshot := history.Snapshot()
		if len(snapshot) != capacity {
			t.Fatalf("expected %d events, got %d", capacity, len(snapshot))
		}

		want := appended[total-capacity:]
		for i := range snapshot {
			if snapshot[i].ID != want[i].ID {
				t.Fatalf("position %d: expected %s, got %s", i, want[i].ID, snapshot[i].ID)
			}
		}
	})
}

// Property: Capacity Bound Under Concurrency
// *For any* interleaving of concurrent appends, Len SHALL never exceed Cap.
func TestProperty_CapacityUnderConcurrentAppends(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 20).Draw(t, "capacity")
		writers := rapid.IntRange(2, 8).Draw(t, "writers")
		perWriter := rapid.IntRange(1, 50).Draw(t, "perWriter")

		history := NewHistory(capacity)

		var wg sync.WaitGroup
		var violations sync.Map
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					history.Append(createTestEvent(w*perWriter + i))
					if n := history.Len(); n > capacity {
						violations.Store(n, true)
					}
				}
			}(w)
		}
		wg.Wait()

		violations.Range(func(k, _ any) bool {
			t.Errorf("observed length %v above capacity %d", k, capacity)
			return true
		})

		expected := writers * perWriter
		if expected > capacity {
			expected = capacity
		}
		if history.Len() != expected {
			t.Errorf("expected final length %d, got %d", expected, history.Len())
		}
	})
}

func TestHistory_EndToEndCapacityTwo(t *testing.T) {
	history := NewHistory(2)
	for _, payload := range []string{`"a"`, `"b"`, `"c"`} {
		history.Append(New(TopicEvents, []byte(payload)))
	}

	snapshot := history.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 events, got %d", len(snapshot))
	}
	if string(snapshot[0].Data) != `"b"` || string(snapshot[1].Data) != `"c"` {
		t.Errorf("expected [b c], got [%s %s]", snapshot[0].Data, snapshot[1].Data)
	}
}

func TestHistory_SnapshotIsIndependent(t *testing.T) {
	history := NewHistory(3)
	history.Append(createTestEvent(0))
	history.Append(createTestEvent(1))

	snapshot := history.Snapshot()
	for i := 2; i < 10; i++ {
		history.Append(createTestEvent(i))
	}

	if len(snapshot) != 2 {
		t.Fatalf("snapshot changed length to %d", len(snapshot))
	}
	if string(snapshot[0].Data) != `{"seq":0}` {
		t.Errorf("snapshot contents changed: %s", snapshot[0].Data)
	}
}

func TestHistory_SnapshotDuringConcurrentAppends(t *testing.T) {
	history := NewHistory(100)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			history.Append(createTestEvent(i))
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		snapshot := history.Snapshot()
		if len(snapshot) > 100 {
			t.Fatalf("snapshot larger than capacity: %d", len(snapshot))
		}
		for _, ev := range snapshot {
			if ev.ID == "" {
				t.Fatal("snapshot contains a zero event")
			}
		}
	}
}

func TestHistory_Since(t *testing.T) {
	history := NewHistory(3)
	evs := make([]Event, 5)
	for i := range evs {
		evs[i] = createTestEvent(i)
		history.Append(evs[i])
	}

	after, ok := history.Since(evs[2].ID)
	if !ok {
		t.Fatal("expected retained event to be found")
	}
	if len(after) != 2 || after[0].ID != evs[3].ID || after[1].ID != evs[4].ID {
		t.Errorf("unexpected events after %s: %v", evs[2].ID, after)
	}

	if _, ok := history.Since(evs[0].ID); ok {
		t.Error("evicted event should not be found")
	}

	latest, ok := history.Since(evs[4].ID)
	if !ok || len(latest) != 0 {
		t.Errorf("expected no events after the newest, got %d (ok=%v)", len(latest), ok)
	}
}

func TestHistory_DefaultsAndEmpty(t *testing.T) {
	history := NewHistory(0)
	if history.Cap() != DefaultHistorySize {
		t.Errorf("expected default capacity %d, got %d", DefaultHistorySize, history.Cap())
	}
	if !history.IsEmpty() {
		t.Error("new history should be empty")
	}

	history.Append(createTestEvent(1))
	if history.IsEmpty() {
		t.Error("history should not be empty after append")
	}

	history.Clear()
	if !history.IsEmpty() || len(history.Snapshot()) != 0 {
		t.Error("history should be empty after Clear")
	}
}

func TestNew_CopiesData(t *testing.T) {
	data := []byte(`{"x":1}`)
	ev := New(TopicEvents, data)
	data[2] = 'y'

	if string(ev.Data) != `{"x":1}` {
		t.Errorf("event data aliased caller buffer: %s", ev.Data)
	}
	if ev.ID == "" || ev.Timestamp.IsZero() {
		t.Error("event should have an ID and timestamp")
	}
}
