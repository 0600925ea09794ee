package relay

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/welldanyogia/webhook-relay/internal/events"
	"github.com/welldanyogia/webhook-relay/internal/logger"
	"github.com/welldanyogia/webhook-relay/internal/metrics"
)

// Config holds relay configuration.
type Config struct {
	ReplayInterval time.Duration // Default: 150ms
	QueueSize      int           // Default: 256 events per subscriber
	MaxSubscribers int           // Default: 0 (unlimited)
}

// DefaultConfig returns the default relay configuration.
func DefaultConfig() Config {
	return Config{
		ReplayInterval: DefaultReplayInterval,
		QueueSize:      256,
		MaxSubscribers: 0,
	}
}

// SubscribeOptions carries per-connection subscribe parameters.
type SubscribeOptions struct {
	// ViewerID labels the subscriber for diagnostics.
	ViewerID string
	// LastEventID limits replay to events after this ID when it is still buffered.
	LastEventID string
}

// Stats is a point-in-time view of the relay.
type Stats struct {
	Subscribers     int   `json:"subscribers"`
	ActiveReplays   int   `json:"active_replays"`
	HistorySize     int   `json:"history_size"`
	HistoryCapacity int   `json:"history_capacity"`
	Published       int64 `json:"published_total"`
}

type replayTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Relay appends published events to the history buffer and fans them out to every
// live subscriber. New subscribers get the buffered history replayed to them.
type Relay struct {
	history  events.Buffer
	registry *Registry
	replayer Replayer
	config   Config
	logger   *slog.Logger

	// pubMu serializes append+fan-out so every subscriber sees publish order,
	// and makes subscribe's register+snapshot atomic with respect to publishes.
	pubMu sync.Mutex

	mu      sync.Mutex
	replays map[*Subscriber]*replayTask
	wg      sync.WaitGroup

	closed    atomic.Bool
	published atomic.Int64
}

// New creates a Relay over the given history buffer.
func New(config Config, history events.Buffer, log *slog.Logger) *Relay {
	defaults := DefaultConfig()
	if config.ReplayInterval <= 0 {
		config.ReplayInterval = defaults.ReplayInterval
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if log == nil {
		log = slog.Default()
	}

	return &Relay{
		history:  history,
		registry: NewRegistry(),
		replayer: Replayer{Interval: config.ReplayInterval},
		config:   config,
		logger:   log,
		replays:  make(map[*Subscriber]*replayTask),
	}
}

// Publish appends event to history and queues it to every live subscriber.
// A subscriber that cannot take the event is dropped; that never fails the publish.
func (r *Relay) Publish(ctx context.Context, event events.Event) error {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()

	if r.closed.Load() {
		return ErrRelayClosed
	}

	r.history.Append(event)
	delivered, dropped := r.registry.ForEach(func(sub *Subscriber) DeliveryStatus {
		return sub.offer(event)
	})

	r.published.Add(1)
	metrics.EventsPublished.Inc()
	metrics.EventsDelivered.WithLabelValues("live").Add(float64(delivered))
	metrics.HistorySize.Set(float64(r.history.Len()))

	if len(dropped) > 0 {
		log := logger.WithCorrelationID(ctx, r.logger)
		for _, sub := range dropped {
			log.Warn("dropping slow subscriber",
				slog.String("subscriber_id", sub.ID),
				slog.String("event_id", event.ID),
			)
		}
		metrics.SubscribersDropped.WithLabelValues("slow").Add(float64(len(dropped)))
		metrics.SubscribersActive.Set(float64(r.registry.Len()))
	}

	return nil
}

// Subscribe registers a new subscriber and, if history is non-empty, starts replaying it.
// It returns immediately; the replay continues in the background until it finishes
// or the subscriber goes away.
func (r *Relay) Subscribe(opts SubscribeOptions) (*Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		return nil, ErrRelayClosed
	}
	if r.config.MaxSubscribers > 0 && r.registry.Len() >= r.config.MaxSubscribers {
		return nil, ErrTooManySubscribers
	}

	sub := newSubscriber(opts.ViewerID, r.config.QueueSize)

	// Holding pubMu here puts each event in exactly one of replay or live delivery.
	r.pubMu.Lock()
	r.registry.Add(sub)
	backlog := r.backlog(opts.LastEventID)
	r.pubMu.Unlock()

	metrics.SubscribersActive.Set(float64(r.registry.Len()))

	if len(backlog) > 0 {
		r.startReplayLocked(sub, backlog)
	}

	r.logger.Debug("subscriber connected",
		slog.String("subscriber_id", sub.ID),
		slog.Int("replay_events", len(backlog)),
	)
	return sub, nil
}

func (r *Relay) backlog(lastEventID string) []events.Event {
	if r.history.IsEmpty() {
		return nil
	}
	if lastEventID != "" {
		if after, ok := r.history.Since(lastEventID); ok {
			return after
		}
	}
	return r.history.Snapshot()
}

// startReplayLocked launches the replay task for sub. Caller must hold r.mu.
func (r *Relay) startReplayLocked(sub *Subscriber, backlog []events.Event) {
	ctx, cancel := context.WithCancel(context.Background())
	task := &replayTask{cancel: cancel, done: make(chan struct{})}
	r.replays[sub] = task

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(task.done)
		defer cancel()

		metrics.ReplaysActive.Inc()
		defer metrics.ReplaysActive.Dec()

		result := r.replayer.Run(ctx, r.registry, sub, backlog)
		metrics.EventsDelivered.WithLabelValues("replay").Add(float64(result.Delivered))
		if result.Dropped {
			r.logger.Warn("dropping slow subscriber during replay", slog.String("subscriber_id", sub.ID))
			metrics.SubscribersDropped.WithLabelValues("slow").Inc()
			metrics.SubscribersActive.Set(float64(r.registry.Len()))
		}

		r.mu.Lock()
		if r.replays[sub] == task {
			delete(r.replays, sub)
		}
		r.mu.Unlock()

		r.logger.Debug("replay finished",
			slog.String("subscriber_id", sub.ID),
			slog.Int("delivered", result.Delivered),
			slog.Int("backlog", len(backlog)),
		)
	}()
}

// Unsubscribe removes sub and stops its replay, waiting for the replay to exit.
// It is safe to call more than once and from the subscriber's own disconnect path.
func (r *Relay) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	removed := r.registry.Remove(sub)

	r.mu.Lock()
	task := r.replays[sub]
	delete(r.replays, sub)
	r.mu.Unlock()

	if task != nil {
		task.cancel()
		<-task.done
	}

	if removed {
		metrics.SubscribersActive.Set(float64(r.registry.Len()))
		r.logger.Debug("subscriber disconnected", slog.String("subscriber_id", sub.ID))
	}
}

// Close stops accepting publishes and subscribes, disconnects every subscriber and
// waits for all replays to exit.
func (r *Relay) Close() {
	r.mu.Lock()
	if r.closed.Swap(true) {
		r.mu.Unlock()
		return
	}
	tasks := make([]*replayTask, 0, len(r.replays))
	for sub, task := range r.replays {
		tasks = append(tasks, task)
		delete(r.replays, sub)
	}
	r.mu.Unlock()

	r.pubMu.Lock()
	removed := r.registry.RemoveAll()
	r.pubMu.Unlock()

	for _, task := range tasks {
		task.cancel()
	}
	r.wg.Wait()

	metrics.SubscribersActive.Set(0)
	r.logger.Info("relay closed", slog.Int("subscribers_disconnected", len(removed)))
}

// Contains reports whether sub is still live.
func (r *Relay) Contains(sub *Subscriber) bool {
	return r.registry.Contains(sub)
}

// Subscribers returns diagnostic info for the live subscribers.
func (r *Relay) Subscribers() []SubscriberInfo {
	return r.registry.List()
}

// SubscriberCount returns the number of live subscribers.
func (r *Relay) SubscriberCount() int {
	return r.registry.Len()
}

// Stats returns current relay counters.
func (r *Relay) Stats() Stats {
	r.mu.Lock()
	active := len(r.replays)
	r.mu.Unlock()

	return Stats{
		Subscribers:     r.registry.Len(),
		ActiveReplays:   active,
		HistorySize:     r.history.Len(),
		HistoryCapacity: r.history.Cap(),
		Published:       r.published.Load(),
	}
}

// IsClosed reports whether Close has been called.
func (r *Relay) IsClosed() bool {
	return r.closed.Load()
}
