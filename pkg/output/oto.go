package output

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/zachfi/icyradio/pkg/decode"
)

// oto allows a single context per process, so every Oto sink shares it.
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoFormat decode.Format
)

func sharedContext(f decode.Format) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if f != otoFormat {
			return nil, fmt.Errorf("audio device already opened as %dHz/%dch, cannot switch to %dHz/%dch",
				otoFormat.SampleRate, otoFormat.Channels, f.SampleRate, f.Channels)
		}
		return otoCtx, nil
	}

	if f.BytesPerSample != 2 {
		return nil, fmt.Errorf("unsupported sample width %d, only 16-bit output is supported", f.BytesPerSample)
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   f.SampleRate,
		ChannelCount: f.Channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	otoCtx = ctx
	otoFormat = f

	return ctx, nil
}

// Oto plays frames on the default sound device through a persistent oto
// player fed by a pipe. Play blocks until the player has taken the frame.
//
// The played callback fires once the frame is in the player's buffer, which
// is ahead of the speaker by at most the player's buffer size (a few hundred
// milliseconds). Title changes are reported that much early.
type Oto struct {
	logger *slog.Logger

	mu         sync.Mutex
	format     decode.Format
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	played     func(decode.Frame)
	volume     int
	muted      bool
}

var _ decode.Sink = (*Oto)(nil)

// NewOto creates an Oto sink at the given volume (0-100).
func NewOto(volume int, logger *slog.Logger) *Oto {
	return &Oto{
		logger: logger,
		volume: clampVolume(volume),
	}
}

func (o *Oto) Open(f decode.Format) error {
	ctx, err := sharedContext(f)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		return fmt.Errorf("audio output already open")
	}

	o.format = f
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = ctx.NewPlayer(o.pipeReader)
	o.player.Play()

	o.logger.Debug("audio output opened", "rate", f.SampleRate, "channels", f.Channels)

	return nil
}

func (o *Oto) Play(fr decode.Frame) error {
	o.mu.Lock()
	w := o.pipeWriter
	format := o.format
	volume, muted := o.volume, o.muted
	cb := o.played
	o.mu.Unlock()

	if w == nil {
		return fmt.Errorf("output not initialized")
	}
	if fr.Format != format {
		return fmt.Errorf("frame format %+v does not match output format %+v", fr.Format, format)
	}

	applyVolume(fr.Data, volume, muted)

	if _, err := w.Write(fr.Data); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}

	if cb != nil {
		cb(fr)
	}
	return nil
}

func (o *Oto) OnFramePlayed(cb func(decode.Frame)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.played = cb
}

// SetVolume sets the volume (0-100)
func (o *Oto) SetVolume(volume int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = clampVolume(volume)
}

// SetMuted sets mute state
func (o *Oto) SetMuted(muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.muted = muted
}

func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var err error
	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		err = o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	o.played = nil

	return err
}
