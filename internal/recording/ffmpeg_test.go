package recording

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFFmpegArgs_PodcastFormat(t *testing.T) {
	args := ffmpegArgs(PodcastFormat)

	assert.Equal(t, []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "f32le",
		"-ar", "44100",
		"-ac", "1",
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", "128k",
		"-ar", "22050",
		"-ac", "1",
		"-f", "mp3",
		"pipe:1",
	}, args)
}

func TestFFmpegArgs_IntegerInput(t *testing.T) {
	f := PodcastFormat
	f.Float = false
	f.BitDepth = 16
	f.Channels = 2

	args := ffmpegArgs(f)
	assert.Equal(t, []string{"-f", "s16le"}, args[3:5])
	assert.Equal(t, "2", args[8])
	assert.Equal(t, 4, f.FrameSize())
}

func TestFFmpegFactory_MissingBinary(t *testing.T) {
	newEncoder := NewFFmpegFactory("/nonexistent/ffmpeg-binary")

	_, err := newEncoder(context.Background(), &bytes.Buffer{}, PodcastFormat)
	require.Error(t, err)
}

func TestFFmpegFactory_EncodesSine(t *testing.T) {
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}

	var out bytes.Buffer
	enc, err := NewFFmpegFactory(bin)(context.Background(), &out, PodcastFormat)
	require.NoError(t, err)

	// half a second of 440Hz in 1024-sample frames
	frame := make([]byte, 1024*4)
	for n := 0; n < PodcastFormat.SampleRate/2; n += 1024 {
		for i := 0; i < 1024; i++ {
			v := float32(math.Sin(2 * math.Pi * 440 * float64(n+i) / float64(PodcastFormat.SampleRate)))
			binary.LittleEndian.PutUint32(frame[i*4:], math.Float32bits(v))
		}
		_, err := enc.Write(frame)
		require.NoError(t, err)
	}
	require.NoError(t, enc.Close())
	require.NoError(t, enc.Close())

	require.Greater(t, out.Len(), 1000)
	head := out.Bytes()
	isID3 := bytes.HasPrefix(head, []byte("ID3"))
	isFrameSync := head[0] == 0xFF && head[1]&0xE0 == 0xE0
	assert.True(t, isID3 || isFrameSync, "output is not an mp3 stream")
}
