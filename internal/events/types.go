// Package events provides the notification bus connecting the render
// queue, the playback synchronizer, and the asset library to API
// consumers such as the websocket progress feed.
package events

import (
	"time"
)

// EventType represents the type of event
type EventType string

const (
	// Project events
	EventProjectCreated EventType = "project.created"
	EventProjectUpdated EventType = "project.updated"
	EventProjectDeleted EventType = "project.deleted"

	// Render job events
	EventRenderQueued    EventType = "render.queued"
	EventRenderStarted   EventType = "render.started"
	EventRenderProgress  EventType = "render.progress"
	EventRenderCompleted EventType = "render.completed"
	EventRenderFailed    EventType = "render.failed"
	EventRenderCancelled EventType = "render.cancelled"
	EventQueuePaused     EventType = "queue.paused"
	EventQueueResumed    EventType = "queue.resumed"

	// Playback events
	EventPlaybackStarted EventType = "playback.started"
	EventPlaybackStopped EventType = "playback.stopped"
	EventPlaybackSeeked  EventType = "playback.seeked"

	// Asset events
	EventAssetRegistered EventType = "asset.registered"
	EventAssetOnline     EventType = "asset.online"
	EventAssetOffline    EventType = "asset.offline"

	// System events
	EventSystemStarted EventType = "system.started"
	EventSystemStopped EventType = "system.stopped"
)

// Event represents a single notification on the bus.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Handler is invoked for every event matching a subscription's filter.
type Handler func(event Event) error

// Filter restricts which events a subscription receives. Empty fields
// match everything.
type Filter struct {
	Types   []EventType `json:"types,omitempty"`
	Sources []string    `json:"sources,omitempty"`
}

// Matches reports whether the event passes the filter.
func (f Filter) Matches(e Event) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Sources) > 0 {
		found := false
		for _, s := range f.Sources {
			if e.Source == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Subscription represents one registered handler.
type Subscription struct {
	ID           string     `json:"id"`
	Filter       Filter     `json:"filter"`
	Handler      Handler    `json:"-"`
	Created      time.Time  `json:"created"`
	LastDelivery *time.Time `json:"last_delivery,omitempty"`
	Deliveries   int64      `json:"deliveries"`
}

// Stats summarizes bus activity.
type Stats struct {
	TotalEvents         int64            `json:"total_events"`
	EventsByType        map[string]int64 `json:"events_by_type"`
	ActiveSubscriptions int              `json:"active_subscriptions"`
	RecentEvents        []Event          `json:"recent_events"`
}

// Config controls bus buffering and history retention.
type Config struct {
	BufferSize   int `json:"buffer_size"`
	RecentEvents int `json:"recent_events"`
}

// DefaultConfig returns the bus defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:   1000,
		RecentEvents: 100,
	}
}
