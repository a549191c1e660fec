package archive

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const contentTypeMP3 = "audio/mpeg"

var ErrUploaderClosed = errors.New("uploader closed")

// Uploader copies finalized recordings to a Store on a single background worker.
type Uploader struct {
	store         Store
	prefix        string
	timeout       time.Duration
	retryInterval time.Duration

	mu     sync.Mutex
	closed bool
	jobs   chan string
	done   chan struct{}
}

func NewUploader(store Store, prefix string, queue int, timeout time.Duration) *Uploader {
	if queue <= 0 {
		queue = 64
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	u := &Uploader{
		store:         store,
		prefix:        prefix,
		timeout:       timeout,
		retryInterval: 500 * time.Millisecond,
		jobs:          make(chan string, queue),
		done:          make(chan struct{}),
	}
	go u.run()
	return u
}

// Enqueue schedules filePath for upload without blocking.
func (u *Uploader) Enqueue(filePath string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return ErrUploaderClosed
	}
	select {
	case u.jobs <- filePath:
		return nil
	default:
		return errors.Errorf("upload queue full, skipping %s", filePath)
	}
}

// Close stops accepting uploads and waits for queued ones until ctx expires.
func (u *Uploader) Close(ctx context.Context) error {
	u.mu.Lock()
	if !u.closed {
		u.closed = true
		close(u.jobs)
	}
	u.mu.Unlock()

	select {
	case <-u.done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "archive uploads pending")
	}
}

func (u *Uploader) Key(filePath string) string {
	return path.Join(u.prefix, filepath.Base(filePath))
}

func (u *Uploader) run() {
	defer close(u.done)
	for p := range u.jobs {
		if err := u.upload(p); err != nil {
			log.Error().Err(err).Str("module", "archive").Str("path", p).Msg("upload failed")
			continue
		}
		log.Info().Str("module", "archive").Str("path", p).Str("key", u.Key(p)).Msg("recording archived")
	}
}

func (u *Uploader) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = u.retryInterval
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // bounded by the upload timeout
	return b
}

// upload retries transient store failures until the upload timeout runs out.
// A missing local file is permanent.
func (u *Uploader) upload(filePath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), u.timeout)
	defer cancel()

	key := u.Key(filePath)
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		f, err := os.Open(filePath)
		if err != nil {
			return backoff.Permanent(errors.Wrap(err, "open recording"))
		}
		defer f.Close()

		st, err := f.Stat()
		if err != nil {
			return backoff.Permanent(errors.Wrap(err, "stat recording"))
		}
		if err := u.store.Put(ctx, key, f, st.Size(), contentTypeMP3); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			log.Warn().Str("module", "archive").Int("attempt", attempt).Err(err).Str("key", key).Msg("upload attempt failed")
			return err
		}
		return nil
	}, backoff.WithContext(u.newBackOff(), ctx))
}
