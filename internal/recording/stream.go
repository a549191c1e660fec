package recording

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/LivePodcast/internal/core"
	"github.com/dkeye/LivePodcast/internal/domain"
)

var (
	ErrStreamClosed = errors.New("stream closed")
	ErrBackpressure = errors.New("recording queue full")
)

// Info is a snapshot of a stream, handed to finalize hooks.
type Info struct {
	ConnID       domain.ConnID
	Room         domain.RoomName
	Path         string
	StartedAt    time.Time
	FramesFed    int64
	FramesDrop   int64
	EncodedBytes int64
	Err          error
}

// Stream is the recording of one broadcasting connection: a bounded frame queue
// drained by a single goroutine into the encoder, whose output is appended to the file.
type Stream struct {
	connID    domain.ConnID
	room      domain.RoomName
	path      string
	startedAt time.Time

	frames chan core.Frame
	enc    Encoder
	file   *os.File
	sink   *countingWriter
	cancel context.CancelFunc

	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
	finalized chan struct{} // closed by the Recorder after its finalize hook ran

	fed     atomic.Int64
	dropped atomic.Int64
	err     error // set by run before done is closed

	logger zerolog.Logger
}

type countingWriter struct {
	w io.Writer
	n atomic.Int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(int64(n))
	encodedBytes.Add(context.Background(), int64(n))
	return n, err
}

func newStream(
	ctx context.Context,
	id domain.ConnID,
	room domain.RoomName,
	file *os.File,
	startedAt time.Time,
	queueSize int,
	newEncoder EncoderFactory,
	format Format,
) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	sink := &countingWriter{w: file}
	enc, err := newEncoder(ctx, sink, format)
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "create encoder")
	}
	s := &Stream{
		connID:    id,
		room:      room,
		path:      file.Name(),
		startedAt: startedAt,
		frames:    make(chan core.Frame, queueSize),
		enc:       enc,
		file:      file,
		sink:      sink,
		cancel:    cancel,
		done:      make(chan struct{}),
		finalized: make(chan struct{}),
		logger: log.With().
			Str("module", "recording").
			Str("conn", string(id)).
			Str("room", string(room)).
			Logger(),
	}
	go s.run()
	return s, nil
}

func (s *Stream) ConnID() domain.ConnID { return s.connID }
func (s *Stream) Room() domain.RoomName { return s.room }
func (s *Stream) Path() string          { return s.path }

// Done is closed once the encoder is flushed and the file is closed.
func (s *Stream) Done() <-chan struct{} { return s.done }

// TryWrite queues a frame for encoding without blocking.
// A full queue or a stream that already got end-of-input drops the frame.
func (s *Stream) TryWrite(f core.Frame) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStreamClosed
	}
	select {
	case s.frames <- f:
		return nil
	default:
		s.dropped.Add(1)
		framesDropped.Add(context.Background(), 1)
		return ErrBackpressure
	}
}

// CloseInput signals end of input. Queued frames are still encoded.
func (s *Stream) CloseInput() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.frames)
}

// Wait blocks until the stream is finalized. When ctx expires first the encoder
// is aborted and Wait still returns only after the file is closed.
func (s *Stream) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		s.logger.Warn().Msg("finalize timeout, aborting encoder")
		s.cancel()
		<-s.done
		return errors.Wrap(ctx.Err(), "finalize")
	}
}

// discard aborts a stream that was never registered and removes its file.
func (s *Stream) discard() {
	s.cancel()
	s.CloseInput()
	<-s.done
	if err := os.Remove(s.path); err != nil {
		s.logger.Warn().Err(err).Msg("remove discarded recording")
	}
}

func (s *Stream) Info() Info {
	info := Info{
		ConnID:       s.connID,
		Room:         s.room,
		Path:         s.path,
		StartedAt:    s.startedAt,
		FramesFed:    s.fed.Load(),
		FramesDrop:   s.dropped.Load(),
		EncodedBytes: s.sink.n.Load(),
	}
	select {
	case <-s.done:
		info.Err = s.err
	default:
	}
	return info
}

func (s *Stream) run() {
	defer close(s.done)
	defer s.cancel()

	var encErr error
	for f := range s.frames {
		if encErr != nil {
			s.dropped.Add(1)
			framesDropped.Add(context.Background(), 1)
			continue
		}
		if _, err := s.enc.Write(f); err != nil {
			encErr = err
			s.logger.Error().Err(err).Msg("encoder write failed, dropping remaining frames")
			s.dropped.Add(1)
			framesDropped.Add(context.Background(), 1)
			continue
		}
		s.fed.Add(1)
	}

	if err := s.enc.Close(); err != nil && encErr == nil {
		encErr = err
	}
	if err := s.file.Sync(); err != nil {
		s.logger.Warn().Err(err).Msg("sync recording")
	}
	if err := s.file.Close(); err != nil && encErr == nil {
		encErr = errors.Wrap(err, "close recording")
	}
	s.err = encErr

	ev := s.logger.Info()
	if encErr != nil {
		ev = s.logger.Warn().Err(encErr)
	}
	ev.Str("path", s.path).
		Int64("frames", s.fed.Load()).
		Int64("dropped", s.dropped.Load()).
		Int64("bytes", s.sink.n.Load()).
		Msg("recording finalized")
}
