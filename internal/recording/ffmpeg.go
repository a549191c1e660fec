package recording

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const ffmpegWaitDelay = 2 * time.Second

// NewFFmpegFactory returns an EncoderFactory that pipes PCM through an ffmpeg process.
// Encoded MP3 bytes are copied from ffmpeg's stdout into the sink as they are produced.
func NewFFmpegFactory(binary string) EncoderFactory {
	if binary == "" {
		binary = "ffmpeg"
	}
	return func(ctx context.Context, sink io.Writer, format Format) (Encoder, error) {
		// #nosec G204 -- binary comes from config, args are fixed
		cmd := exec.CommandContext(ctx, binary, ffmpegArgs(format)...)
		cmd.Stdout = sink
		stderr := &bytes.Buffer{}
		cmd.Stderr = stderr
		cmd.WaitDelay = ffmpegWaitDelay

		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, errors.Wrap(err, "ffmpeg stdin pipe")
		}
		if err := cmd.Start(); err != nil {
			return nil, errors.Wrapf(err, "start %s", binary)
		}
		return &ffmpegEncoder{cmd: cmd, stdin: stdin, stderr: stderr}, nil
	}
}

func ffmpegArgs(f Format) []string {
	in := "s16le"
	if f.Float && f.BitDepth == 32 {
		in = "f32le"
	} else if f.BitDepth == 32 {
		in = "s32le"
	}
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", in,
		"-ar", strconv.Itoa(f.SampleRate),
		"-ac", strconv.Itoa(f.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", strconv.Itoa(f.OutBitRate) + "k",
		"-ar", strconv.Itoa(f.OutSampleRate),
		"-ac", strconv.Itoa(f.OutChannels),
		"-f", "mp3",
		"pipe:1",
	}
}

type ffmpegEncoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer

	closeOnce sync.Once
	closeErr  error
}

func (e *ffmpegEncoder) Write(pcm []byte) (int, error) {
	n, err := e.stdin.Write(pcm)
	if err != nil {
		return n, errors.Wrap(err, "write to ffmpeg")
	}
	return n, nil
}

func (e *ffmpegEncoder) Close() error {
	e.closeOnce.Do(func() {
		_ = e.stdin.Close()
		if err := e.cmd.Wait(); err != nil {
			// stderr is only written by exec's copier, which has finished after Wait.
			e.closeErr = errors.Wrapf(err, "ffmpeg exited: %s", bytes.TrimSpace(e.stderr.Bytes()))
		}
	})
	return e.closeErr
}
