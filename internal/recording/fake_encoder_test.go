package recording

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/pkg/errors"
)

// passEncoder copies PCM straight to the sink. A non-nil gate holds every
// Write until the gate is closed or the encoder is aborted.
type passEncoder struct {
	ctx    context.Context
	sink   io.Writer
	gate   chan struct{}
	closes *atomic.Int32
	hang   bool
}

func (e *passEncoder) Write(pcm []byte) (int, error) {
	if e.gate != nil {
		select {
		case <-e.gate:
		case <-e.ctx.Done():
			return 0, e.ctx.Err()
		}
	}
	return e.sink.Write(pcm)
}

func (e *passEncoder) Close() error {
	e.closes.Add(1)
	if e.hang {
		<-e.ctx.Done()
		return e.ctx.Err()
	}
	return nil
}

type fakeEncoders struct {
	gate      chan struct{}
	hang      bool
	hangFirst bool
	fail    bool
	created atomic.Int32
	closes  atomic.Int32
}

func (f *fakeEncoders) factory() EncoderFactory {
	return func(ctx context.Context, sink io.Writer, _ Format) (Encoder, error) {
		if f.fail {
			return nil, errors.New("encoder unavailable")
		}
		n := f.created.Add(1)
		hang := f.hang || (f.hangFirst && n == 1)
		return &passEncoder{ctx: ctx, sink: sink, gate: f.gate, closes: &f.closes, hang: hang}, nil
	}
}
