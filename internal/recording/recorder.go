package recording

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/LivePodcast/internal/core"
	"github.com/dkeye/LivePodcast/internal/domain"
)

const maxNameAttempts = 100

var ErrRecorderClosed = errors.New("recorder closed")

type Config struct {
	Dir             string        `mapstructure:"dir"`
	FFmpegPath      string        `mapstructure:"ffmpeg_path"`
	QueueSize       int           `mapstructure:"queue_size"`
	FinalizeTimeout time.Duration `mapstructure:"finalize_timeout"`
}

// FinalizeHook is called once per stream after its file is closed.
type FinalizeHook func(Info)

type Option func(*Recorder)

func WithClock(c clockwork.Clock) Option {
	return func(r *Recorder) { r.clock = c }
}

func WithFinalizeHook(h FinalizeHook) Option {
	return func(r *Recorder) { r.onFinalized = h }
}

func WithFormat(f Format) Option {
	return func(r *Recorder) { r.format = f }
}

// Recorder owns the per-connection recording pipelines.
type Recorder struct {
	dir             string
	queueSize       int
	finalizeTimeout time.Duration
	format          Format
	newEncoder      EncoderFactory
	clock           clockwork.Clock
	onFinalized     FinalizeHook

	mu      sync.Mutex
	closed  bool
	streams map[domain.ConnID]*Stream
	// stopped but not yet closed
	finalizing map[*Stream]struct{}
}

func NewRecorder(cfg Config, newEncoder EncoderFactory, opts ...Option) (*Recorder, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 512
	}
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = 10 * time.Second
	}
	if cfg.Dir == "" {
		cfg.Dir = "recordings"
	}
	dir := filepath.Clean(cfg.Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create recordings dir %s", dir)
	}

	r := &Recorder{
		dir:             dir,
		queueSize:       cfg.QueueSize,
		finalizeTimeout: cfg.FinalizeTimeout,
		format:          PodcastFormat,
		newEncoder:      newEncoder,
		clock:           clockwork.NewRealClock(),
		streams:         make(map[domain.ConnID]*Stream),
		finalizing:      make(map[*Stream]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Recorder) Dir() string { return r.dir }

// Start opens a new recording for id. A stream already registered for id is
// detached and finalized in the background, so Start never waits on an encoder
// flush. Fails with ErrRecorderClosed once Shutdown has begun.
func (r *Recorder) Start(id domain.ConnID, room domain.RoomName) (*Stream, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRecorderClosed
	}
	prev := r.detachLocked(id)
	r.mu.Unlock()
	if prev != nil {
		go r.finalize(prev)
	}

	startedAt := r.clock.Now()
	file, err := r.createFile(startedAt, room, id)
	if err != nil {
		streamsFailed.Add(context.Background(), 1)
		return nil, err
	}

	s, err := newStream(context.Background(), id, room, file, startedAt, r.queueSize, r.newEncoder, r.format)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		streamsFailed.Add(context.Background(), 1)
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		s.discard()
		return nil, ErrRecorderClosed
	}
	// a concurrent Start for the same connection may have won
	old := r.detachLocked(id)
	r.streams[id] = s
	active := len(r.streams)
	r.mu.Unlock()
	if old != nil {
		go r.finalize(old)
	}

	streamsStarted.Add(context.Background(), 1)
	activeStreams.Add(context.Background(), 1)
	log.Info().Str("module", "recording").Str("conn", string(id)).Str("room", string(room)).
		Str("path", s.Path()).Int("active", active).Msg("recording started")
	return s, nil
}

// detachLocked moves id's stream from the registry to the finalizing set.
func (r *Recorder) detachLocked(id domain.ConnID) *Stream {
	s, ok := r.streams[id]
	if !ok {
		return nil
	}
	delete(r.streams, id)
	r.finalizing[s] = struct{}{}
	return s
}

// createFile opens a fresh file; O_EXCL guarantees two streams never share a name.
func (r *Recorder) createFile(ts time.Time, room domain.RoomName, id domain.ConnID) (*os.File, error) {
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		path := filepath.Join(r.dir, FileName(ts, room, id, attempt))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if !os.IsExist(err) {
			return nil, errors.Wrapf(err, "open recording %s", path)
		}
	}
	return nil, errors.Errorf("no free recording name for %s in %s", id, room)
}

// Feed hands a frame to the connection's encoder queue. It never blocks and
// reports whether the frame was accepted.
func (r *Recorder) Feed(id domain.ConnID, f core.Frame) bool {
	r.mu.Lock()
	s, ok := r.streams[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return s.TryWrite(f) == nil
}

// Stop ends the connection's recording and waits, bounded by the finalize
// timeout, until the file is closed. Safe to call without a stream and repeatedly.
func (r *Recorder) Stop(id domain.ConnID) {
	r.mu.Lock()
	s := r.detachLocked(id)
	r.mu.Unlock()
	if s == nil {
		return
	}
	r.finalize(s)
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

// Shutdown finalizes every registered stream in parallel and waits for the
// ones already being finalized. Later Starts are refused.
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	streams := make([]*Stream, 0, len(r.streams))
	for id, s := range r.streams {
		streams = append(streams, s)
		delete(r.streams, id)
	}
	pending := make([]*Stream, 0, len(r.finalizing))
	for s := range r.finalizing {
		pending = append(pending, s)
	}
	r.mu.Unlock()

	log.Info().Str("module", "recording").Int("count", len(streams)).Msg("closing encoder/output streams")

	var g errgroup.Group
	for _, s := range streams {
		g.Go(func() error {
			return r.finalizeCtx(ctx, s)
		})
	}
	// streams already handed to Stop by disconnecting clients
	for _, s := range pending {
		g.Go(func() error {
			select {
			case <-s.finalized:
				return nil
			case <-ctx.Done():
				return errors.Wrapf(ctx.Err(), "finalize %s", s.Path())
			}
		})
	}
	return g.Wait()
}

func (r *Recorder) finalize(s *Stream) {
	ctx, cancel := context.WithTimeout(context.Background(), r.finalizeTimeout)
	defer cancel()
	_ = r.finalizeCtx(ctx, s)
}

func (r *Recorder) finalizeCtx(ctx context.Context, s *Stream) error {
	start := time.Now()
	s.CloseInput()
	err := s.Wait(ctx)

	activeStreams.Add(context.Background(), -1)
	finalizeLatency.Record(context.Background(), time.Since(start).Milliseconds())
	if err != nil {
		streamsFailed.Add(context.Background(), 1)
	}
	if r.onFinalized != nil {
		r.onFinalized(s.Info())
	}
	close(s.finalized)

	r.mu.Lock()
	delete(r.finalizing, s)
	r.mu.Unlock()
	return err
}
