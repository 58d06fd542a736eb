// Package pipeline feeds an opaque byte stream into a segment lifecycle,
// cutting a new fragment whenever the running time since the current
// fragment opened reaches the fragment duration.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

const defaultBufferSize = 188 * 1024 // a whole number of MPEG-TS packets

// Sink receives fragment events. *segmenter.Controller implements it.
type Sink interface {
	OpenSegment(at time.Duration) (string, io.Writer, error)
	FragmentClosed(at time.Duration) error
	Stop(at time.Duration) error
}

// Clock reports the pipeline running time.
type Clock func() time.Duration

// MonotonicClock returns a Clock measuring time elapsed since the call.
func MonotonicClock() Clock {
	start := time.Now()
	return func() time.Duration { return time.Since(start) }
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithClock replaces the monotonic running-time clock.
func WithClock(c Clock) Option {
	return func(s *Splitter) { s.clock = c }
}

// WithBufferSize sets the size of each read from the input.
func WithBufferSize(n int) Option {
	return func(s *Splitter) {
		if n > 0 {
			s.bufSize = n
		}
	}
}

// Splitter cuts a byte stream into fragments by running time.
type Splitter struct {
	sink     Sink
	duration time.Duration
	bufSize  int
	clock    Clock
	log      *slog.Logger
}

// NewSplitter returns a Splitter cutting fragments of at least duration. A
// zero duration never cuts: everything goes into one fragment.
func NewSplitter(sink Sink, duration time.Duration, log *slog.Logger, opts ...Option) *Splitter {
	s := &Splitter{
		sink:     sink,
		duration: duration,
		bufSize:  defaultBufferSize,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = MonotonicClock()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Run copies r into fragments until r is exhausted, ctx is cancelled or the
// sink fails. In every case the sink is stopped at the last running time
// before Run returns. Cancellation is a clean shutdown and returns nil.
func (s *Splitter) Run(ctx context.Context, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan []byte)
	readErr := make(chan error, 1)
	go s.read(ctx, r, chunks, readErr)

	var (
		w        io.Writer
		openedAt time.Duration
		open     bool
		written  int64
	)
	for {
		var chunk []byte
		select {
		case <-ctx.Done():
			s.log.Info("input cancelled, finishing playlist")
			return s.stop(nil)
		case c, ok := <-chunks:
			if !ok {
				var err error
				select {
				case err = <-readErr:
					err = fmt.Errorf("read input: %w", err)
				default:
					s.log.Info("input exhausted, finishing playlist")
				}
				return s.stop(err)
			}
			chunk = c
		}

		now := s.clock()
		if open && s.duration > 0 && now-openedAt >= s.duration {
			if err := s.sink.FragmentClosed(now); err != nil {
				return s.stop(fmt.Errorf("close fragment: %w", err))
			}
			s.log.Debug("fragment cut",
				slog.Duration("running_time", now),
				slog.Int64("bytes", written))
			open = false
		}
		if !open {
			path, sw, err := s.sink.OpenSegment(now)
			if err != nil {
				return s.stop(fmt.Errorf("open fragment: %w", err))
			}
			w, openedAt, open, written = sw, now, true, 0
			s.log.Debug("fragment opened", slog.String("path", path), slog.Duration("running_time", now))
		}

		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return s.stop(fmt.Errorf("write fragment: %w", err))
		}
	}
}

func (s *Splitter) read(ctx context.Context, r io.Reader, chunks chan<- []byte, readErr chan<- error) {
	defer close(chunks)
	for {
		buf := make([]byte, s.bufSize)
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case chunks <- buf[:n]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr <- err
			}
			return
		}
	}
}

func (s *Splitter) stop(cause error) error {
	if err := s.sink.Stop(s.clock()); err != nil {
		return errors.Join(cause, fmt.Errorf("stop: %w", err))
	}
	return cause
}
