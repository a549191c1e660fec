package recording

import (
	"context"
	"io"
)

// Format describes the PCM accepted by an encoder and the compressed stream it emits.
type Format struct {
	Channels      int
	SampleRate    int
	BitDepth      int
	Float         bool
	OutBitRate    int // kbps
	OutSampleRate int
	OutChannels   int
}

// PodcastFormat is the fixed recording format: mono float32 at 44.1kHz in,
// 128kbps mono MP3 at 22.05kHz out.
var PodcastFormat = Format{
	Channels:      1,
	SampleRate:    44100,
	BitDepth:      32,
	Float:         true,
	OutBitRate:    128,
	OutSampleRate: 22050,
	OutChannels:   1,
}

// FrameSize is the byte size of one sample frame across all channels.
func (f Format) FrameSize() int {
	return f.Channels * f.BitDepth / 8
}

// Encoder turns raw PCM into a compressed stream written to the sink it was created with.
type Encoder interface {
	// Write feeds raw PCM. It may block while the encoder applies backpressure.
	Write(pcm []byte) (int, error)
	// Close signals end of input and returns once every encoded byte reached the sink.
	Close() error
}

// EncoderFactory creates an Encoder bound to sink. Cancelling ctx aborts the encoder.
type EncoderFactory func(ctx context.Context, sink io.Writer, format Format) (Encoder, error)
