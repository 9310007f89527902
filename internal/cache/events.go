package cache

import "time"

// EventType names a record lifecycle transition.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventEvicted EventType = "evicted"
	EventDeleted EventType = "deleted"
	EventFlushed EventType = "flushed"
	EventExpired EventType = "expired"
)

// Event describes one lifecycle transition.
type Event struct {
	Type    EventType  `json:"type"`
	Key     string     `json:"key,omitempty"`
	Victim  string     `json:"victim,omitempty"`
	Count   int        `json:"count,omitempty"`
	Removed int64      `json:"removed,omitempty"`
	Expires *time.Time `json:"expires,omitempty"`
	At      time.Time  `json:"at"`
}

// Publisher receives lifecycle events. Implementations must not block.
type Publisher interface {
	Publish(Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

// Publish calls f(evt).
func (f PublisherFunc) Publish(evt Event) {
	if f != nil {
		f(evt)
	}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
