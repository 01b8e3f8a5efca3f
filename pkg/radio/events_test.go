package radio

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBroker(t *testing.T) {
	b := newBroker(slog.New(slog.DiscardHandler))
	ch, cancel := b.subscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		b.publish(Event{Type: EventTitleChanged})
	}
	assert.Len(t, ch, subscriberBuffer)

	cancel()
	cancel()

	// Drains the buffered events, then reports closed.
	n := 0
	for range ch {
		n++
	}
	assert.Equal(t, subscriberBuffer, n)

	b.publish(Event{Type: EventStopped})
}
