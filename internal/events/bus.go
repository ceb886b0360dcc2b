package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// Bus is an in-process publish/subscribe event bus. Publishing is
// non-blocking; a full buffer drops the event rather than stalling the
// publisher, since render progress is periodic and self-correcting.
type Bus struct {
	config Config
	logger hclog.Logger

	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	events        chan Event
	running       bool
	stopCh        chan struct{}
	wg            sync.WaitGroup

	recent []Event
	stats  Stats
}

// NewBus creates a bus with the given configuration.
func NewBus(config Config, logger hclog.Logger) *Bus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.RecentEvents <= 0 {
		config.RecentEvents = DefaultConfig().RecentEvents
	}
	return &Bus{
		config:        config,
		logger:        logger.Named("events"),
		subscriptions: make(map[string]*Subscription),
		events:        make(chan Event, config.BufferSize),
		recent:        make([]Event, 0, config.RecentEvents),
		stopCh:        make(chan struct{}),
	}
}

// Start launches the dispatch loop.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return fmt.Errorf("event bus is already running")
	}
	b.running = true
	b.stopCh = make(chan struct{})

	b.wg.Add(1)
	go b.dispatch(ctx)

	b.logger.Info("event bus started", "buffer_size", b.config.BufferSize)
	return nil
}

// Stop drains the dispatch loop. Events still buffered when Stop is
// called are dropped.
func (b *Bus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	b.mu.Unlock()

	close(b.stopCh)

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		b.logger.Warn("event bus stop timed out")
		return ctx.Err()
	}
}

// Publish places an event on the bus. The event ID and timestamp are
// filled in when absent.
func (b *Bus) Publish(event Event) error {
	b.mu.RLock()
	running := b.running
	b.mu.RUnlock()
	if !running {
		return fmt.Errorf("event bus is not running")
	}

	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if event.Source == "" {
		return fmt.Errorf("event source is required")
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.events <- event:
		return nil
	default:
		b.logger.Warn("event buffer full, dropping event", "type", event.Type, "id", event.ID)
		return fmt.Errorf("event buffer full")
	}
}

// Subscribe registers a handler for events matching the filter.
func (b *Bus) Subscribe(filter Filter, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		ID:      uuid.New().String(),
		Filter:  filter,
		Handler: handler,
		Created: time.Now(),
	}
	b.subscriptions[sub.ID] = sub

	b.logger.Debug("subscription created", "subscription_id", sub.ID, "types", filter.Types)
	return sub
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(subscriptionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscriptions[subscriptionID]; !ok {
		return fmt.Errorf("subscription not found: %s", subscriptionID)
	}
	delete(b.subscriptions, subscriptionID)
	return nil
}

// Recent returns the retained event history, oldest first, optionally
// restricted by filter.
func (b *Bus) Recent(filter Filter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Event, 0, len(b.recent))
	for _, e := range b.recent {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// GetStats returns bus activity counters.
func (b *Bus) GetStats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := b.stats
	stats.ActiveSubscriptions = len(b.subscriptions)
	stats.RecentEvents = append([]Event(nil), b.recent...)
	return stats
}

// Health reports whether the bus is running and keeping up.
func (b *Bus) Health() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.running {
		return fmt.Errorf("event bus is not running")
	}
	usage := float64(len(b.events)) / float64(cap(b.events))
	if usage > 0.9 {
		return fmt.Errorf("event buffer is %d%% full", int(usage*100))
	}
	return nil
}

func (b *Bus) dispatch(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		case event := <-b.events:
			b.deliver(event)
		}
	}
}

func (b *Bus) deliver(event Event) {
	b.mu.Lock()
	b.recent = append(b.recent, event)
	if len(b.recent) > b.config.RecentEvents {
		b.recent = b.recent[1:]
	}
	b.stats.TotalEvents++
	if b.stats.EventsByType == nil {
		b.stats.EventsByType = make(map[string]int64)
	}
	b.stats.EventsByType[string(event.Type)]++

	var matching []*Subscription
	for _, sub := range b.subscriptions {
		if sub.Filter.Matches(event) {
			matching = append(matching, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range matching {
		b.notify(sub, event)
	}
}

func (b *Bus) notify(sub *Subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic in event handler", "subscription_id", sub.ID, "error", r, "event_id", event.ID)
		}
	}()

	if err := sub.Handler(event); err != nil {
		b.logger.Error("event handler error", "subscription_id", sub.ID, "error", err, "event_id", event.ID)
		return
	}

	b.mu.Lock()
	sub.Deliveries++
	now := time.Now()
	sub.LastDelivery = &now
	b.mu.Unlock()
}
