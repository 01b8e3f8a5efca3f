package output

import (
	"sync"
	"time"

	"github.com/zachfi/icyradio/pkg/decode"
)

// Discard drops every frame. With Realtime set it sleeps for the duration of
// each frame so the pipeline runs at playback speed.
type Discard struct {
	Realtime bool

	mu     sync.Mutex
	played func(decode.Frame)
}

var _ decode.Sink = (*Discard)(nil)

func (d *Discard) Open(decode.Format) error { return nil }

func (d *Discard) Play(fr decode.Frame) error {
	if d.Realtime {
		time.Sleep(Duration(fr))
	}

	d.mu.Lock()
	cb := d.played
	d.mu.Unlock()

	if cb != nil {
		cb(fr)
	}
	return nil
}

func (d *Discard) OnFramePlayed(cb func(decode.Frame)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.played = cb
}

func (d *Discard) Close() error { return nil }

// Duration returns how long a frame takes to play.
func Duration(fr decode.Frame) time.Duration {
	bytesPerSecond := fr.Format.SampleRate * fr.Format.Channels * fr.Format.BytesPerSample
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(len(fr.Data)) * time.Second / time.Duration(bytesPerSecond)
}
