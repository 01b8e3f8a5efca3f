package radio

import (
	"log/slog"
	"sync"
)

// EventType names what happened to a session.
type EventType string

const (
	EventStarted      EventType = "started"
	EventTitleChanged EventType = "title"
	EventStopped      EventType = "stopped"
)

// Event is delivered to subscribers.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Station   Station   `json:"station"`
	Title     string    `json:"title,omitempty"`

	// Natural is set on EventStopped when the stream or decoder ended on its
	// own rather than through Stop or a replacing Play.
	Natural bool `json:"natural,omitempty"`
}

const subscriberBuffer = 32

// broker fans events out to subscribers without ever blocking the publisher.
type broker struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func newBroker(logger *slog.Logger) *broker {
	return &broker{
		logger: logger,
		subs:   make(map[chan Event]struct{}),
	}
}

func (b *broker) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *broker) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.Debug("subscriber full, dropping event", "type", e.Type)
		}
	}
}
