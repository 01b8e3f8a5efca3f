package shoutcast

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultBlockSize is the number of bytes requested per network read.
	DefaultBlockSize = 16384

	userAgent = "icyradio/1.0"
)

// Stream represents an open shoutcast stream.
type Stream struct {
	// The name of the server
	Name string

	// What category the server falls under
	Genre string

	// The description of the stream
	Description string

	// Homepage of the server
	URL string

	// Content-Type of the audio payload, eg. audio/mpeg
	ContentType string

	// Bitrate of the server
	Bitrate int

	// Amount of audio bytes between two metadata frames, 0 when not interleaved
	metaint int

	blockSize int
	text      textDecoder
	logger    *slog.Logger

	title   atomic.Pointer[string]
	meta    atomic.Pointer[Metadata]
	stopped atomic.Bool
	started atomic.Bool

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
	closeErr  error

	// The underlying data stream
	rc     io.ReadCloser
	cancel context.CancelFunc
}

type options struct {
	blockSize int
	charset   string
	client    *http.Client
	logger    *slog.Logger
}

// Option configures Open.
type Option func(*options)

// WithBlockSize sets the number of bytes requested per network read.
func WithBlockSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.blockSize = n
		}
	}
}

// WithCharset selects the text encoding of metadata frames. Any WHATWG
// encoding label is accepted; empty means strict UTF-8.
func WithCharset(charset string) Option {
	return func(o *options) {
		o.charset = charset
	}
}

// WithHTTPClient replaces the default streaming client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.client = c
		}
	}
}

// WithLogger sets the logger used for connection and demux diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// newStreamClient returns a client that bounds connection setup but never the body read.
func newStreamClient() *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		DisableCompression:    true,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	return &http.Client{Transport: transport}
}

// Open establishes a connection to a remote server and reads the ICY headers.
// Playlist URLs (.pls, .m3u) are resolved to the first stream they list.
// Transport failures and non-2xx responses are returned as *ConnectionError.
func Open(ctx context.Context, url string, opts ...Option) (*Stream, error) {
	o := &options{
		blockSize: DefaultBlockSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = newStreamClient()
	}

	text, err := newTextDecoder(o.charset)
	if err != nil {
		return nil, err
	}

	o.logger.Info("opening stream", "url", url)

	resp, cancel, err := get(ctx, o.client, url)
	if err != nil {
		return nil, err
	}

	if kind := detectPlaylist(url, resp.Header); kind != playlistNone {
		streamURL, err := resolvePlaylist(kind, resp.Body)
		resp.Body.Close()
		cancel()
		if err != nil {
			return nil, &ConnectionError{URL: url, Err: err}
		}

		o.logger.Info("resolved playlist to stream URL", "playlist", url, "url", streamURL)
		url = streamURL

		resp, cancel, err = get(ctx, o.client, url)
		if err != nil {
			return nil, err
		}
	}

	for k, v := range resp.Header {
		o.logger.Debug("http header", "key", k, "value", strings.Join(v, ","))
	}

	var metaint int
	if raw := strings.TrimSpace(resp.Header.Get("icy-metaint")); raw != "" {
		metaint, err = strconv.Atoi(raw)
		if err != nil || metaint < 0 {
			resp.Body.Close()
			cancel()
			return nil, &ConnectionError{URL: url, Err: errors.New("cannot parse icy-metaint " + strconv.Quote(raw))}
		}
	}

	var bitrate int
	if raw := resp.Header.Get("icy-br"); raw != "" {
		// Some servers send "128,128"; only the first value matters.
		first, _, _ := strings.Cut(raw, ",")
		if bitrate, err = strconv.Atoi(strings.TrimSpace(first)); err != nil {
			o.logger.Debug("ignoring malformed icy-br", "value", raw)
			bitrate = 0
		}
	}

	s := &Stream{
		Name:        resp.Header.Get("icy-name"),
		Genre:       resp.Header.Get("icy-genre"),
		Description: resp.Header.Get("icy-description"),
		URL:         resp.Header.Get("icy-url"),
		ContentType: resp.Header.Get("Content-Type"),
		Bitrate:     bitrate,
		metaint:     metaint,
		blockSize:   o.blockSize,
		text:        text,
		logger:      o.logger,
		rc:          resp.Body,
		cancel:      cancel,
	}
	empty := ""
	s.title.Store(&empty)

	return s, nil
}

// get issues the stream request. ctx bounds only the connection setup: once
// the response headers are in, the body stays open until the returned cancel
// is called.
func get(ctx context.Context, client *http.Client, url string) (*http.Response, context.CancelFunc, error) {
	reqCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		stop()
		cancel()
		return nil, nil, &ConnectionError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Icy-MetaData", "1")

	resp, err := client.Do(req)
	if !stop() && err == nil {
		// ctx ended while the headers were arriving.
		resp.Body.Close()
		err = ctx.Err()
	}
	if err != nil {
		cancel()
		return nil, nil, &ConnectionError{URL: url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		cancel()
		return nil, nil, &ConnectionError{URL: url, StatusCode: resp.StatusCode}
	}

	return resp, cancel, nil
}

// MetaInt returns the metadata interval announced by the server, 0 when the
// stream carries no interleaved metadata.
func (s *Stream) MetaInt() int {
	return s.metaint
}

// Title returns the most recent non-empty StreamTitle, or "" before the first one.
func (s *Stream) Title() string {
	return *s.title.Load()
}

// Metadata returns the last distinct metadata frame, or nil before the first one.
func (s *Stream) Metadata() *Metadata {
	return s.meta.Load()
}

// Err returns the read error that ended the block sequence, if it was not a
// clean end of stream or a requested stop.
func (s *Stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Stop asks the block sequence to end. It is checked between network reads and
// between yields; use Close to unblock a read already in flight.
func (s *Stream) Stop() {
	s.stopped.Store(true)
}

// Close stops the sequence and closes the underlying connection.
func (s *Stream) Close() error {
	s.Stop()
	s.closeOnce.Do(func() {
		s.logger.Debug("closing stream", "name", s.Name)
		s.closeErr = s.rc.Close()
		s.cancel()
	})
	return s.closeErr
}

// Blocks returns the lazy sequence of pure audio blocks. The sequence can be
// consumed once; calling Blocks again after that yields nothing. Each yielded
// slice is owned by the consumer.
func (s *Stream) Blocks() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		if !s.started.CompareAndSwap(false, true) {
			return
		}
		defer s.Close()

		var d *demuxer
		if s.metaint > 0 {
			d = newDemuxer(s.metaint)
		}

		buf := make([]byte, s.blockSize)
		for {
			if s.stopped.Load() {
				return
			}

			n, err := io.ReadFull(s.rc, buf)
			if n > 0 {
				if d == nil {
					chunk := make([]byte, n)
					copy(chunk, buf[:n])
					if !yield(chunk) {
						return
					}
				} else {
					d.write(buf[:n])
					for {
						audio, meta, ok := d.next()
						if !ok {
							break
						}
						s.handleMetadata(meta)
						if !yield(audio) || s.stopped.Load() {
							return
						}
					}
				}
			}

			if err != nil {
				if d != nil && isEOF(err) && !s.stopped.Load() {
					if audio := d.tail(); audio != nil {
						yield(audio)
					}
				}
				s.finish(err)
				return
			}
		}
	}
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func (s *Stream) finish(err error) {
	if isEOF(err) || s.stopped.Load() {
		s.logger.Debug("stream ended", "name", s.Name)
		return
	}

	s.logger.Debug("stream read failed", "name", s.Name, "err", err)
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

func (s *Stream) handleMetadata(raw []byte) {
	if len(raw) == 0 {
		return
	}

	text, err := s.text.decode(raw)
	if err != nil {
		s.logger.Debug("discarding metadata frame", "err", err)
		return
	}
	if text == "" {
		return
	}

	// Servers repeat the same frame every interval.
	m := NewMetadata(text)
	if m.Equals(s.meta.Load()) {
		return
	}
	s.meta.Store(m)
	s.logger.Debug("metadata changed", "name", s.Name, "fields", m.Fields)

	if m.HasTitle() {
		title := m.StreamTitle
		s.title.Store(&title)
	}
}
