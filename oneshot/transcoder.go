package oneshot

import (
	"context"
	"fmt"
	"strconv"

	apperrors "github.com/kbukum/dictation/errors"
	"github.com/kbukum/dictation/process"
)

// Transcoder converts an audio file into the recognizer's canonical format.
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string) error
}

// FFmpegTranscoder converts audio to mono 16-bit PCM WAV with ffmpeg.
type FFmpegTranscoder struct {
	binary     string
	sampleRate int
}

// NewFFmpegTranscoder creates a transcoder from cfg.
func NewFFmpegTranscoder(cfg Config) *FFmpegTranscoder {
	cfg.ApplyDefaults()
	return &FFmpegTranscoder{binary: cfg.FFmpegPath, sampleRate: cfg.SampleRateHz}
}

// Available reports whether the ffmpeg binary can be found.
func (t *FFmpegTranscoder) Available() bool {
	return process.Available(t.binary)
}

// Transcode writes src to dst as WAV at the configured sample rate. Errors
// are TRANSCODE_FAILED app errors.
func (t *FFmpegTranscoder) Transcode(ctx context.Context, src, dst string) error {
	res, err := process.Run(ctx, process.Command{
		Binary: t.binary,
		Args: []string{
			"-y", "-hide_banner", "-loglevel", "error",
			"-i", src,
			"-ar", strconv.Itoa(t.sampleRate),
			"-ac", "1",
			"-c:a", "pcm_s16le",
			"-f", "wav",
			dst,
		},
	})
	if err != nil {
		if tail := res.StderrTail(512); tail != "" {
			err = fmt.Errorf("%w: %s", err, tail)
		}
		return apperrors.TranscodeFailed(err)
	}
	return nil
}
