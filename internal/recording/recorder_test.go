package recording

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/suite"

	"github.com/dkeye/LivePodcast/internal/core"
	"github.com/dkeye/LivePodcast/internal/domain"
)

type RecorderSuite struct {
	suite.Suite
	dir      string
	clock    *clockwork.FakeClock
	encoders *fakeEncoders

	hookMu sync.Mutex
	hooked []Info
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.dir = filepath.Join(s.T().TempDir(), "recordings")
	s.clock = clockwork.NewFakeClockAt(time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC))
	s.encoders = &fakeEncoders{}
	s.hooked = nil
}

func (s *RecorderSuite) newRecorder(cfg Config) *Recorder {
	if cfg.Dir == "" {
		cfg.Dir = s.dir
	}
	r, err := NewRecorder(cfg, s.encoders.factory(),
		WithClock(s.clock),
		WithFinalizeHook(func(info Info) {
			s.hookMu.Lock()
			s.hooked = append(s.hooked, info)
			s.hookMu.Unlock()
		}),
	)
	s.Require().NoError(err)
	return r
}

func (s *RecorderSuite) finalized() []Info {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	return append([]Info(nil), s.hooked...)
}

func (s *RecorderSuite) TestNewRecorder_CreatesDir() {
	s.newRecorder(Config{})

	st, err := os.Stat(s.dir)
	s.Require().NoError(err)
	s.True(st.IsDir())
}

func (s *RecorderSuite) TestStartFeedStop() {
	r := s.newRecorder(Config{})

	st, err := r.Start("conn-a", "podcast1")
	s.Require().NoError(err)
	s.Equal(filepath.Join(r.Dir(), "2024-03-05T14.07.09.000Z__podcast1__conn-a.mp3"), st.Path())

	s.True(r.Feed("conn-a", core.Frame{1, 2, 3, 4}))
	s.True(r.Feed("conn-a", core.Frame{5, 6, 7, 8}))
	s.False(r.Feed("conn-b", core.Frame{1, 2, 3, 4}))

	r.Stop("conn-a")

	s.Zero(r.Len())

	data, err := os.ReadFile(st.Path())
	s.Require().NoError(err)
	s.Equal([]byte{1, 2, 3, 4, 5, 6, 7, 8}, data)

	infos := s.finalized()
	s.Require().Len(infos, 1)
	s.Equal(int64(2), infos[0].FramesFed)
	s.Equal(int64(8), infos[0].EncodedBytes)
	s.NoError(infos[0].Err)
	s.Equal(int32(1), s.encoders.closes.Load())
}

func (s *RecorderSuite) TestStop_Idempotent() {
	r := s.newRecorder(Config{})
	r.Stop("nobody")

	_, err := r.Start("conn-a", "podcast1")
	s.Require().NoError(err)
	r.Stop("conn-a")
	r.Stop("conn-a")

	s.Len(s.finalized(), 1)
	s.Equal(int32(1), s.encoders.closes.Load())
	s.False(r.Feed("conn-a", core.Frame{0, 0, 0, 0}))
}

func (s *RecorderSuite) TestStop_ConcurrentCallersFinalizeOnce() {
	r := s.newRecorder(Config{})
	_, err := r.Start("conn-a", "podcast1")
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Stop("conn-a")
		}()
	}
	wg.Wait()

	s.Len(s.finalized(), 1)
	s.Equal(int32(1), s.encoders.closes.Load())
}

func (s *RecorderSuite) TestStart_UniqueNamesWithinSameInstant() {
	r := s.newRecorder(Config{})

	first, err := r.Start("conn-a", "podcast1")
	s.Require().NoError(err)
	r.Stop("conn-a")

	second, err := r.Start("conn-a", "podcast1")
	s.Require().NoError(err)
	r.Stop("conn-a")

	s.NotEqual(first.Path(), second.Path())
	s.FileExists(first.Path())
	s.FileExists(second.Path())
	s.Equal("2024-03-05T14.07.09.000Z__podcast1__conn-a-1.mp3", filepath.Base(second.Path()))
}

func (s *RecorderSuite) TestStart_ReplacesRunningStream() {
	r := s.newRecorder(Config{})

	first, err := r.Start("conn-a", "room1")
	s.Require().NoError(err)
	s.clock.Advance(time.Second)
	second, err := r.Start("conn-a", "room2")
	s.Require().NoError(err)

	s.Eventually(func() bool {
		select {
		case <-first.Done():
			return true
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
	s.Equal(1, r.Len())
	s.Equal(domain.RoomName("room2"), second.Room())
	s.True(r.Feed("conn-a", core.Frame{1, 2, 3, 4}))

	r.Stop("conn-a")
	s.Eventually(func() bool { return len(s.finalized()) == 2 }, 2*time.Second, 5*time.Millisecond)
}

func (s *RecorderSuite) TestStart_ReplaceDoesNotWaitForFlush() {
	s.encoders.hangFirst = true
	r := s.newRecorder(Config{FinalizeTimeout: time.Second})

	first, err := r.Start("conn-a", "room1")
	s.Require().NoError(err)

	begin := time.Now()
	_, err = r.Start("conn-a", "room2")
	s.Require().NoError(err)
	s.Less(time.Since(begin), 300*time.Millisecond)

	select {
	case <-first.Done():
		s.Fail("replaced stream flushed before its encoder was aborted")
	default:
	}

	// Shutdown still waits for the replaced stream
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s.Require().NoError(r.Shutdown(ctx))
	<-first.Done()
	s.Len(s.finalized(), 2)
}

func (s *RecorderSuite) TestStart_RefusedAfterShutdown() {
	r := s.newRecorder(Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Require().NoError(r.Shutdown(ctx))

	_, err := r.Start("late", "room")
	s.ErrorIs(err, ErrRecorderClosed)
	s.Zero(r.Len())
	s.Zero(s.encoders.created.Load())

	entries, err := os.ReadDir(r.Dir())
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *RecorderSuite) TestStart_EncoderFailureLeavesNoFile() {
	s.encoders.fail = true
	r := s.newRecorder(Config{})

	_, err := r.Start("conn-a", "podcast1")
	s.Require().Error(err)

	entries, err := os.ReadDir(r.Dir())
	s.Require().NoError(err)
	s.Empty(entries)
	s.Zero(r.Len())
}

func (s *RecorderSuite) TestFeed_DropsWhenEncoderLags() {
	s.encoders.gate = make(chan struct{})
	r := s.newRecorder(Config{QueueSize: 2})

	st, err := r.Start("conn-a", "podcast1")
	s.Require().NoError(err)

	accepted := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 10 {
			if r.Feed("conn-a", core.Frame{0, 0, 0, 0}) {
				accepted++
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.FailNow("Feed blocked on a lagging encoder")
	}

	// one frame may already sit in the blocked Write, two more in the queue
	s.LessOrEqual(accepted, 3)
	s.GreaterOrEqual(accepted, 2)

	close(s.encoders.gate)
	r.Stop("conn-a")

	info := st.Info()
	s.Equal(int64(accepted), info.FramesFed)
	s.Equal(int64(10-accepted), info.FramesDrop)
}

func (s *RecorderSuite) TestStop_TimeoutAbortsEncoder() {
	s.encoders.hang = true
	r := s.newRecorder(Config{FinalizeTimeout: 50 * time.Millisecond})

	st, err := r.Start("conn-a", "podcast1")
	s.Require().NoError(err)

	stopped := make(chan struct{})
	go func() {
		r.Stop("conn-a")
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		s.FailNow("Stop did not honour the finalize timeout")
	}
	<-st.Done()
	s.Len(s.finalized(), 1)
}

func (s *RecorderSuite) TestShutdown_FinalizesEverything() {
	r := s.newRecorder(Config{})
	for _, id := range []domain.ConnID{"a", "b", "c"} {
		_, err := r.Start(id, "room")
		s.Require().NoError(err)
		s.True(r.Feed(id, core.Frame{1, 1, 1, 1}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Require().NoError(r.Shutdown(ctx))

	s.Zero(r.Len())
	infos := s.finalized()
	s.Len(infos, 3)
	for _, info := range infos {
		s.Equal(int64(4), info.EncodedBytes)
	}
}

func (s *RecorderSuite) TestShutdown_ReportsStuckStreams() {
	s.encoders.hang = true
	r := s.newRecorder(Config{})
	_, err := r.Start("a", "room")
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Error(r.Shutdown(ctx))
	s.Len(s.finalized(), 1)
}
