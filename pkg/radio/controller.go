package radio

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zachfi/zkit/pkg/tracing"

	"github.com/zachfi/icyradio/pkg/decode"
	"github.com/zachfi/icyradio/pkg/shoutcast"
)

// DefaultBlockSize is the network read size used for sessions.
const DefaultBlockSize = 8192

// Config configures a Controller.
type Config struct {
	// Stations is the initial station list, WellKnownStations when nil.
	Stations []Station

	BlockSize int
	Charset   string

	DecoderCommand string
	DecoderArgs    []string
	DrainTimeout   time.Duration

	HTTPClient *http.Client
}

// Status describes the live session.
type Status struct {
	SessionID    string    `json:"session_id"`
	Station      Station   `json:"station"`
	StreamName   string    `json:"stream_name,omitempty"`
	Genre        string    `json:"genre,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	Bitrate      int       `json:"bitrate,omitempty"`
	Title        string    `json:"title"`
	StreamURL    string    `json:"stream_url,omitempty"`
	Started      time.Time `json:"started"`
	BytesFed     int64     `json:"bytes_fed"`
	FramesPlayed int64     `json:"frames_played"`
}

type session struct {
	id       string
	station  Station
	stream   *shoutcast.Stream
	pipeline *decode.Pipeline
	cancel   context.CancelFunc
	done     chan struct{}
	started  time.Time
	logger   *slog.Logger

	title atomic.Pointer[string]
}

// Controller plays one station at a time.
type Controller struct {
	cfg     Config
	newSink func() decode.Sink
	logger  *slog.Logger
	tracer  trace.Tracer

	metrics       *metrics
	decodeMetrics *decode.Metrics
	events        *broker

	// mu serializes Play and Stop.
	mu     sync.Mutex
	active atomic.Pointer[session]

	stationsMu sync.RWMutex
	stations   []Station

	callbackMu sync.RWMutex
	onTitle    func(string)
}

// New creates a Controller. newSink is called once per session for the
// audio output. Metrics are registered with reg unless it is nil.
func New(cfg Config, newSink func() decode.Sink, logger *slog.Logger, reg prometheus.Registerer) *Controller {
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.Stations == nil {
		cfg.Stations = WellKnownStations
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		cfg:           cfg,
		newSink:       newSink,
		logger:        logger,
		tracer:        otel.Tracer("github.com/zachfi/icyradio/pkg/radio"),
		decodeMetrics: decode.NewMetrics(reg),
		events:        newBroker(logger),
		stations:      slices.Clone(cfg.Stations),
	}
	c.metrics = newMetrics(reg, func() float64 {
		if c.IsPlaying() {
			return 1
		}
		return 0
	})

	return c
}

// Play starts the identified station, stopping the current session first.
// It returns once the stream is connected and the session goroutines are
// running, not once audio is audible. Connection failures are returned as
// *shoutcast.ConnectionError and leave the controller idle.
func (c *Controller) Play(ctx context.Context, id Identifier) error {
	ctx, span := c.tracer.Start(ctx, "Controller.Play")

	station, err := id.Resolve(c.Stations())
	if err != nil {
		return tracing.ErrHandler(span, err, "invalid station", c.logger)
	}
	span.SetAttributes(
		attribute.String("station.name", station.Name),
		attribute.String("station.url", station.URL),
	)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	opts := []shoutcast.Option{
		shoutcast.WithBlockSize(c.cfg.BlockSize),
		shoutcast.WithCharset(c.cfg.Charset),
		shoutcast.WithLogger(c.logger),
	}
	if c.cfg.HTTPClient != nil {
		opts = append(opts, shoutcast.WithHTTPClient(c.cfg.HTTPClient))
	}

	stream, err := shoutcast.Open(ctx, station.URL, opts...)
	if err != nil {
		c.metrics.connectFailures.Inc()
		return tracing.ErrHandler(span, err, "failed to open stream", c.logger)
	}

	s := &session{
		id:      uuid.NewString(),
		station: station,
		stream:  stream,
		done:    make(chan struct{}),
		started: time.Now(),
	}
	s.logger = c.logger.With("session", s.id)
	empty := ""
	s.title.Store(&empty)

	s.pipeline = decode.New(decode.Config{
		Command:      c.cfg.DecoderCommand,
		Args:         c.cfg.DecoderArgs,
		ContentType:  stream.ContentType,
		DrainTimeout: c.cfg.DrainTimeout,
		Metrics:      c.decodeMetrics,
	}, stream, c.newSink(), func(title string) { c.titleChanged(s, title) }, s.logger)

	// The session outlives the request that started it.
	var sctx context.Context
	sctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	c.active.Store(s)
	c.metrics.sessionsStarted.Inc()

	s.logger.Info("playing", "station", station.Name, "stream", stream.Name, "content_type", stream.ContentType)
	c.events.publish(Event{Type: EventStarted, SessionID: s.id, Station: station})

	go c.drive(sctx, s)

	span.SetAttributes(attribute.String("session.id", s.id))
	return tracing.ErrHandler(span, nil, "", c.logger)
}

// drive runs the pipeline to completion. It never takes c.mu; a session that
// ends on its own clears itself with a compare-and-swap.
func (c *Controller) drive(ctx context.Context, s *session) {
	defer close(s.done)

	if err := s.pipeline.Run(ctx); err != nil {
		s.logger.Error("decoder failed", "err", err)
	}
	if err := s.stream.Err(); err != nil {
		s.logger.Warn("stream read failed", "err", err)
	}
	_ = s.stream.Close()

	natural := c.active.CompareAndSwap(s, nil)
	reason := "stopped"
	if natural {
		reason = "natural"
	}
	c.metrics.sessionsEnded.WithLabelValues(reason).Inc()

	stats := s.pipeline.Stats()
	s.logger.Info("session ended", "reason", reason, "bytes_fed", stats.BytesFed, "frames_played", stats.FramesPlayed)
	c.events.publish(Event{Type: EventStopped, SessionID: s.id, Station: s.station, Natural: natural})
}

// Stop ends the current session and waits until the decoder has been reaped
// and the session goroutines have exited. Without a session it does nothing.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
}

func (c *Controller) stopLocked() {
	s := c.active.Swap(nil)
	if s == nil {
		return
	}

	s.logger.Info("stopping", "station", s.station.Name)

	s.stream.Stop()
	s.cancel()
	_ = s.stream.Close()
	s.pipeline.Stop()

	<-s.done
}

// IsPlaying reports whether a session is alive.
func (c *Controller) IsPlaying() bool {
	return c.active.Load() != nil
}

// SetSongTitleCallback replaces the title observer; nil removes it. The
// callback runs on the playback goroutine and must not call Stop or Play.
func (c *Controller) SetSongTitleCallback(cb func(string)) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.onTitle = cb
}

// Subscribe returns a channel of session events and a function that ends the
// subscription. Events are dropped for subscribers that fall behind.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	return c.events.subscribe()
}

func (c *Controller) titleChanged(s *session, title string) {
	s.title.Store(&title)
	c.metrics.titleChanges.Inc()
	s.logger.Info("now playing", "title", title)

	c.callbackMu.RLock()
	cb := c.onTitle
	c.callbackMu.RUnlock()

	if cb != nil {
		cb(title)
	}
	c.events.publish(Event{Type: EventTitleChanged, SessionID: s.id, Station: s.station, Title: title})
}

// SetStations replaces the station list used to resolve indexes.
func (c *Controller) SetStations(stations []Station) {
	c.stationsMu.Lock()
	defer c.stationsMu.Unlock()
	c.stations = slices.Clone(stations)
}

// Stations returns a copy of the station list.
func (c *Controller) Stations() []Station {
	c.stationsMu.RLock()
	defer c.stationsMu.RUnlock()
	return slices.Clone(c.stations)
}

// Current returns the station being played.
func (c *Controller) Current() (Station, bool) {
	s := c.active.Load()
	if s == nil {
		return Station{}, false
	}
	return s.station, true
}

// Status describes the live session.
func (c *Controller) Status() (Status, bool) {
	s := c.active.Load()
	if s == nil {
		return Status{}, false
	}

	var streamURL string
	if m := s.stream.Metadata(); m != nil {
		streamURL = m.StreamURL
	}

	stats := s.pipeline.Stats()
	return Status{
		SessionID:    s.id,
		Station:      s.station,
		StreamName:   s.stream.Name,
		Genre:        s.stream.Genre,
		ContentType:  s.stream.ContentType,
		Bitrate:      s.stream.Bitrate,
		Title:        *s.title.Load(),
		StreamURL:    streamURL,
		Started:      s.started,
		BytesFed:     stats.BytesFed,
		FramesPlayed: stats.FramesPlayed,
	}, true
}
