package relay

import (
	"context"
	"time"

	"github.com/welldanyogia/webhook-relay/internal/events"
)

// DefaultReplayInterval is the pause before each replayed event.
const DefaultReplayInterval = 150 * time.Millisecond

// Replayer feeds buffered history to one newly connected subscriber at a throttled pace.
//
// Replay and live fan-out are independent paths into the same subscriber queue, so a
// live event published during a replay can arrive before older replayed events.
type Replayer struct {
	Interval time.Duration
}

// ReplayResult describes how a replay ended.
type ReplayResult struct {
	Delivered int
	// Dropped is set when the subscriber was removed because its queue was full.
	Dropped bool
}

// Run waits Interval before each event in history, then queues it to sub if sub is
// still registered. It stops early, without error, when sub disconnects or ctx is done.
func (p Replayer) Run(ctx context.Context, registry *Registry, sub *Subscriber, history []events.Event) ReplayResult {
	var result ReplayResult
	if len(history) == 0 {
		return result
	}

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultReplayInterval
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for i, ev := range history {
		if i > 0 {
			timer.Reset(interval)
		}

		select {
		case <-ctx.Done():
			return result
		case <-sub.Done():
			return result
		case <-timer.C:
		}

		if !registry.Contains(sub) {
			return result
		}

		switch registry.Send(sub, ev) {
		case Delivered:
			result.Delivered++
		case Overflow:
			result.Dropped = registry.Remove(sub)
			return result
		default:
			return result
		}
	}
	return result
}
