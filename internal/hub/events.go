package hub

import (
	"encoding/json"
	"fmt"
	"time"

	"showsync/internal/clock"
	"showsync/internal/presence"
	"showsync/internal/show"
)

// EventType identifies a websocket event pushed to browser displays.
type EventType string

const (
	// EventTypeState carries a full show-state snapshot.
	EventTypeState EventType = "state"
	// EventTypePresence carries aggregate online/offline counts.
	EventTypePresence EventType = "presence"
	// EventTypeClock carries the hub's authoritative time, so browser
	// displays can compute their offset the same way NATS displays do.
	EventTypeClock EventType = "clock"
)

// Event is the envelope for all hub-to-display websocket traffic.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func newEvent(t EventType, now time.Time, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", t, err)
	}
	return &Event{Type: t, Timestamp: now, Data: data}, nil
}

// NewStateEvent wraps a show-state snapshot.
func NewStateEvent(now time.Time, st show.State) (*Event, error) {
	return newEvent(EventTypeState, now, st)
}

// NewPresenceEvent wraps presence stats.
func NewPresenceEvent(now time.Time, stats presence.Stats) (*Event, error) {
	return newEvent(EventTypePresence, now, stats)
}

// NewClockEvent wraps a clock beacon.
func NewClockEvent(now time.Time) (*Event, error) {
	return newEvent(EventTypeClock, now, clock.Beacon{ServerUnixMs: now.UnixMilli()})
}
