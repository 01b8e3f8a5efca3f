package decode

import (
	"bufio"
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultCommand      = "ffmpeg"
	defaultDrainTimeout = 5 * time.Second
)

var errStopped = errors.New("pipeline stopped")

// Source provides the compressed audio and the live stream title.
// *shoutcast.Stream satisfies it.
type Source interface {
	Blocks() iter.Seq[[]byte]
	Title() string
}

// Config configures a Pipeline.
type Config struct {
	// Command is the decoder executable, ffmpeg by default.
	Command string

	// ContentType of the stream, used to pick the decoder input format hint.
	ContentType string

	// Args replaces the ffmpeg argument list when non-nil.
	Args []string

	// DrainTimeout bounds how long decoded audio keeps playing after the
	// source ends on its own.
	DrainTimeout time.Duration

	Metrics *Metrics
}

// Stats are running totals for one pipeline.
type Stats struct {
	BytesFed     int64
	FramesPlayed int64
}

// Pipeline feeds a Source through a decoder subprocess into a Sink.
type Pipeline struct {
	cfg     Config
	source  Source
	sink    Sink
	titles  *titleTracker
	logger  *slog.Logger
	metrics *Metrics

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	stopped bool

	bytesFed     atomic.Int64
	framesPlayed atomic.Int64
}

// New creates a pipeline. onTitle is called from the playback goroutine once
// for every change of the source title observed as frames play.
func New(cfg Config, source Source, sink Sink, onTitle func(string), logger *slog.Logger) *Pipeline {
	if cfg.Command == "" {
		cfg.Command = defaultCommand
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		cfg:     cfg,
		source:  source,
		sink:    sink,
		titles:  &titleTracker{notify: onTitle},
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// Stats returns the running totals.
func (p *Pipeline) Stats() Stats {
	return Stats{
		BytesFed:     p.bytesFed.Load(),
		FramesPlayed: p.framesPlayed.Load(),
	}
}

// Run drives the pipeline until the source ends, the decoder goes away or
// Stop is called. The playback goroutine has exited and the decoder has been
// reaped when Run returns. Only a failure to start the decoder is returned;
// everything after that ends the run quietly.
func (p *Pipeline) Run(ctx context.Context) error {
	next, stop := iter.Pull(p.source.Blocks())
	defer stop()

	first, ok := next()
	if !ok {
		p.logger.Info("stream ended before any audio arrived")
		return nil
	}

	stdout, err := p.start(first)
	if errors.Is(err, errStopped) {
		return nil
	}
	if err != nil {
		return err
	}

	// The decoder must have input before anything waits on its output.
	if err := p.write(first); err != nil {
		p.logger.Debug("decoder input closed", "err", err)
	}

	playbackDone := make(chan struct{})
	go func() {
		defer close(playbackDone)
		p.playback(stdout)
	}()

	if p.feed(ctx, next) {
		// Let the decoder flush what it already has.
		p.closeInput()
		timer := time.NewTimer(p.cfg.DrainTimeout)
		select {
		case <-playbackDone:
		case <-timer.C:
			p.logger.Debug("drain timed out")
		case <-ctx.Done():
		}
		timer.Stop()
	}

	p.Stop()
	<-playbackDone

	return nil
}

// feed writes blocks to the decoder until the source is exhausted or writing
// stops being possible. It reports whether the source ended on its own.
func (p *Pipeline) feed(ctx context.Context, next func() ([]byte, bool)) bool {
	for {
		if ctx.Err() != nil {
			return false
		}

		block, ok := next()
		if !ok {
			return !p.isStopped()
		}

		if err := p.write(block); err != nil {
			// A broken or closed pipe is how the decoder says it is done.
			p.logger.Debug("decoder input closed", "err", err)
			return false
		}
	}
}

func (p *Pipeline) start(first []byte) (io.Reader, error) {
	args := p.cfg.Args
	if args == nil {
		hint := InputFormat(p.cfg.ContentType)
		if hint == "" {
			hint = sniffFormat(first)
		}
		args = ffmpegArgs(hint)
	}

	cmd := exec.Command(p.cfg.Command, args...)
	cmd.Stderr = &stderrLogger{logger: p.logger}
	cmd.WaitDelay = time.Second

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &ProcessError{Op: "stdin", Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ProcessError{Op: "stdout", Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, errStopped
	}

	if err := cmd.Start(); err != nil {
		return nil, &ProcessError{Op: "start", Err: err}
	}

	p.logger.Debug("decoder started", "pid", cmd.Process.Pid, "args", args)

	p.cmd = cmd
	p.stdin = stdin
	p.stdout = stdout

	return stdout, nil
}

func (p *Pipeline) write(block []byte) error {
	p.mu.Lock()
	stdin := p.stdin
	p.mu.Unlock()

	if stdin == nil {
		return errStopped
	}

	n, err := stdin.Write(block)
	p.bytesFed.Add(int64(n))
	p.metrics.bytesFed.Add(float64(n))

	return err
}

func (p *Pipeline) closeInput() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stdin != nil {
		_ = p.stdin.Close()
	}
}

func (p *Pipeline) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// playback moves PCM frames from the decoder to the sink. Whatever ends it
// also ends the decoder.
func (p *Pipeline) playback(stdout io.Reader) {
	defer p.Stop()

	if err := p.sink.Open(PCM); err != nil {
		p.logger.Error("failed to open audio output", "err", err)
		return
	}
	defer func() {
		if err := p.sink.Close(); err != nil {
			p.logger.Error("failed to close audio output", "err", err)
		}
	}()
	p.sink.OnFramePlayed(p.framePlayed)

	size := PCM.FrameSize()
	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(stdout, buf)
		if n > 0 {
			if playErr := p.sink.Play(Frame{Data: buf[:n], Format: PCM}); playErr != nil {
				p.logger.Error("audio output failed", "err", playErr)
				return
			}
		}
		if err != nil {
			if !p.isStopped() && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				p.logger.Debug("decoder output closed", "err", err)
			}
			return
		}
	}
}

func (p *Pipeline) framePlayed(Frame) {
	p.framesPlayed.Add(1)
	p.metrics.framesPlayed.Inc()
	p.titles.observe(p.source.Title())
}

// Stop closes the decoder pipes, kills the decoder and reaps it. It is safe to
// call at any time, from any goroutine, any number of times. A playback
// goroutine blocked on the decoder output is released by it.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopped = true
	if p.cmd == nil {
		return
	}

	cmd := p.cmd
	_ = p.stdin.Close()
	_ = p.stdout.Close()
	p.cmd, p.stdin, p.stdout = nil, nil, nil

	reason := "killed"
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Debug("failed to kill decoder", "err", err)
	}
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.Exited() {
			reason = "exited"
			p.logger.Warn("decoder exited", "err", &ProcessError{Op: "wait", Err: err})
		}
	} else {
		reason = "exited"
	}
	p.metrics.decoderExits.WithLabelValues(reason).Inc()

	p.logger.Debug("decoder stopped", "reason", reason)
}

// titleTracker reports each distinct consecutive title once.
type titleTracker struct {
	mu      sync.Mutex
	current string
	notify  func(string)
}

func (t *titleTracker) observe(title string) bool {
	t.mu.Lock()
	changed := title != t.current
	if changed {
		t.current = title
	}
	t.mu.Unlock()

	if changed && t.notify != nil {
		t.notify(title)
	}
	return changed
}

// stderrLogger forwards decoder diagnostics line by line.
type stderrLogger struct {
	logger *slog.Logger
	buf    []byte
}

func (w *stderrLogger) Write(b []byte) (int, error) {
	w.buf = append(w.buf, b...)
	for {
		advance, line, err := bufio.ScanLines(w.buf, false)
		if err != nil || advance == 0 {
			break
		}
		if len(line) > 0 {
			w.logger.Warn("decoder output", "line", string(line))
		}
		w.buf = w.buf[advance:]
	}
	return len(b), nil
}
