package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/grafana/dskit/backoff"
	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zachfi/icyradio/pkg/decode"
	"github.com/zachfi/icyradio/pkg/output"
	"github.com/zachfi/icyradio/pkg/radio"
)

type Player struct {
	services.Service
	cfg    *Config
	logger *slog.Logger
	ctrl   *radio.Controller

	watcher *fsnotify.Watcher

	// wanted is the station the service keeps playing across natural ends;
	// nil after an explicit stop.
	wanted atomic.Pointer[radio.Station]

	// reconnMu guards wanted changes and the background reconnect loop.
	reconnMu sync.Mutex
	reconn   *reconnectJob

	volMu  sync.Mutex
	volume int
	muted  bool
	out    volumeControl
}

type reconnectJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// volumeControl is implemented by outputs whose level can change mid session.
type volumeControl interface {
	SetVolume(volume int)
	SetMuted(muted bool)
}

var module = "player"

// New creates and returns a new Player.
func New(cfg Config, logger *slog.Logger, reg prometheus.Registerer) (*Player, error) {
	p := &Player{
		cfg:    &cfg,
		logger: logger.With("module", module),
		volume: min(max(cfg.Volume, 0), 100),
	}

	var newSink func() decode.Sink
	switch cfg.Output {
	case OutputOto, "":
		newSink = p.newOto
	case OutputDiscard:
		newSink = func() decode.Sink { return &output.Discard{Realtime: true} }
	default:
		return nil, fmt.Errorf("unknown output %q", cfg.Output)
	}

	var decoderArgs []string
	if len(cfg.DecoderArgs) > 0 {
		decoderArgs = cfg.DecoderArgs
	}

	p.ctrl = radio.New(radio.Config{
		BlockSize:      cfg.BlockSize,
		Charset:        cfg.MetadataCharset,
		DecoderCommand: cfg.Decoder,
		DecoderArgs:    decoderArgs,
		DrainTimeout:   cfg.DrainTimeout,
	}, newSink, p.logger, reg)

	p.Service = services.NewBasicService(p.starting, p.running, p.stopping)

	return p, nil
}

// Controller returns the session controller driven by the service.
func (p *Player) Controller() *radio.Controller {
	return p.ctrl
}

func (p *Player) starting(_ context.Context) error {
	if p.cfg.StationsFile == "" {
		return nil
	}

	if err := p.reloadStations(); err != nil {
		return err
	}

	watcher, err := watchStations(p.cfg.StationsFile)
	if err != nil {
		return err
	}
	p.watcher = watcher

	return nil
}

func (p *Player) running(ctx context.Context) error {
	events, cancel := p.ctrl.Subscribe()
	defer cancel()

	if station, ok := p.initialStation(); ok {
		if err := p.Play(ctx, radio.ByStation(station)); err != nil {
			p.logger.Error("error opening stream", "err", err)
			if p.cfg.Reconnect {
				p.startReconnect(ctx, station)
			}
		}
	}

	var watchEvents <-chan fsnotify.Event
	var watchErrors <-chan error
	if p.watcher != nil {
		watchEvents = p.watcher.Events
		watchErrors = p.watcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case e := <-events:
			switch e.Type {
			case radio.EventTitleChanged:
				p.logger.Info("now listening to", "title", e.Title, "station", e.Station.Name)
			case radio.EventStopped:
				if e.Natural && p.cfg.Reconnect {
					p.logger.Info("stream ended", "station", e.Station.Name)
					p.startReconnect(ctx, e.Station)
				}
			}

		case ev, ok := <-watchEvents:
			if !ok {
				watchEvents = nil
				continue
			}
			if isStationsChange(ev, p.cfg.StationsFile) {
				if err := p.reloadStations(); err != nil {
					p.logger.Error("error reloading stations", "err", err)
				}
			}

		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			p.logger.Warn("stations watcher error", "err", err)
		}
	}
}

func (p *Player) stopping(_ error) error {
	p.logger.Info("stopping")

	p.want(nil)
	p.ctrl.Stop()

	var errs []error
	if p.watcher != nil {
		if err := p.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Play starts a station and remembers it for reconnects.
func (p *Player) Play(ctx context.Context, id radio.Identifier) error {
	station, err := id.Resolve(p.ctrl.Stations())
	if err != nil {
		return err
	}

	p.want(&station)
	return p.ctrl.Play(ctx, radio.ByStation(station))
}

// Stop ends playback and cancels reconnects.
func (p *Player) Stop() {
	p.want(nil)
	p.ctrl.Stop()
}

// want records the station to keep playing, nil for none, and ends any
// reconnect loop. An attempt already in flight finishes before want returns,
// so it cannot override the caller.
func (p *Player) want(station *radio.Station) {
	p.reconnMu.Lock()
	defer p.reconnMu.Unlock()

	p.wanted.Store(station)
	p.cancelReconnectLocked()
}

func (p *Player) cancelReconnectLocked() {
	if p.reconn == nil {
		return
	}
	p.reconn.cancel()
	<-p.reconn.done
	p.reconn = nil
}

// startReconnect runs reconnect in the background so the service loop keeps
// handling events. It does nothing unless station is still the wanted one.
func (p *Player) startReconnect(ctx context.Context, station radio.Station) {
	p.reconnMu.Lock()
	defer p.reconnMu.Unlock()

	if w := p.wanted.Load(); w == nil || *w != station {
		return
	}
	p.cancelReconnectLocked()

	ctx, cancel := context.WithCancel(ctx)
	job := &reconnectJob{cancel: cancel, done: make(chan struct{})}
	p.reconn = job

	go func() {
		defer close(job.done)
		defer cancel()
		p.reconnect(ctx, station)
	}()
}

// SetVolume changes the output level, 0-100, of the current and later sessions.
func (p *Player) SetVolume(volume int) error {
	if volume < 0 || volume > 100 {
		return fmt.Errorf("volume %d out of range [0, 100]", volume)
	}

	p.volMu.Lock()
	defer p.volMu.Unlock()

	p.volume = volume
	if p.out != nil {
		p.out.SetVolume(volume)
	}
	return nil
}

// SetMuted mutes or unmutes the current and later sessions.
func (p *Player) SetMuted(muted bool) {
	p.volMu.Lock()
	defer p.volMu.Unlock()

	p.muted = muted
	if p.out != nil {
		p.out.SetMuted(muted)
	}
}

// Volume returns the output level and mute state.
func (p *Player) Volume() (int, bool) {
	p.volMu.Lock()
	defer p.volMu.Unlock()
	return p.volume, p.muted
}

func (p *Player) newOto() decode.Sink {
	p.volMu.Lock()
	defer p.volMu.Unlock()

	o := output.NewOto(p.volume, p.logger)
	o.SetMuted(p.muted)
	p.out = o

	return o
}

func (p *Player) initialStation() (radio.Station, bool) {
	if p.cfg.URL != "" {
		name := p.cfg.Name
		if name == "" {
			name = p.cfg.URL
		}
		return radio.Station{Name: name, URL: p.cfg.URL}, true
	}

	if p.cfg.Station < 0 {
		return radio.Station{}, false
	}

	station, err := radio.ByIndex(p.cfg.Station).Resolve(p.ctrl.Stations())
	if err != nil {
		p.logger.Error("invalid startup station", "err", err)
		return radio.Station{}, false
	}
	return station, true
}

// reconnect replays station with exponential backoff until it plays, the
// service stops, or another station is chosen.
func (p *Player) reconnect(ctx context.Context, station radio.Station) {
	b := backoff.New(ctx, backoff.Config{
		MinBackoff: p.cfg.ReconnectBackoff,
		MaxBackoff: p.cfg.ReconnectBackoffMax,
	})

	for b.Ongoing() {
		b.Wait()
		if ctx.Err() != nil {
			return
		}

		wanted := p.wanted.Load()
		if wanted == nil || *wanted != station || p.ctrl.IsPlaying() {
			return
		}

		p.logger.Info("reconnecting", "station", station.Name, "attempt", b.NumRetries())
		err := p.ctrl.Play(ctx, radio.ByStation(station))
		if err == nil {
			return
		}
		p.logger.Warn("reconnect failed", "station", station.Name, "err", err)
	}
}

func (p *Player) reloadStations() error {
	stations, err := radio.LoadStations(p.cfg.StationsFile)
	if err != nil {
		return err
	}

	p.ctrl.SetStations(stations)
	p.logger.Info("loaded stations", "file", p.cfg.StationsFile, "count", len(stations))

	return nil
}
