package merge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Transcoder wraps ffmpeg invocations for the picture-in-picture merge.
type Transcoder struct {
	binary     string
	preset     string
	crf        int
	scaleWidth int
	exec       Executor
}

// Option configures the transcoder.
type Option func(*Transcoder)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(t *Transcoder) {
		if exec != nil {
			t.exec = exec
		}
	}
}

// NewTranscoder constructs an ffmpeg wrapper.
func NewTranscoder(binary, preset string, crf, scaleWidth int, opts ...Option) (*Transcoder, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	t := &Transcoder{
		binary:     binary,
		preset:     preset,
		crf:        crf,
		scaleWidth: scaleWidth,
		exec:       commandExecutor{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// MergeArgs builds the fixed invocation: the webcam stream is scaled to a
// fifth of its size and overlaid in the bottom-right corner of the desktop
// share, the result downscaled to the configured width, with the webcam
// input supplying the audio track.
func (t *Transcoder) MergeArgs(deskshare, webcams, output string) []string {
	filter := fmt.Sprintf(
		"[1]scale=iw/5:-1[pip];[0][pip]overlay=main_w-overlay_w-20:main_h-overlay_h-20[merged];[merged]scale=%d:-2",
		t.scaleWidth,
	)
	return []string{
		"-v", "quiet",
		"-stats",
		"-i", deskshare,
		"-i", webcams,
		"-filter_complex", filter,
		"-map", "1:a",
		"-c:v", "libx264",
		"-preset", t.preset,
		"-crf", strconv.Itoa(t.crf),
		"-c:a", "aac",
		output,
	}
}

// Merge runs the merge invocation. A non-zero exit surfaces as an error; the
// caller decides whether that fails the key or the batch.
func (t *Transcoder) Merge(ctx context.Context, deskshare, webcams, output string, onOutput func(string)) error {
	return t.exec.Run(ctx, t.binary, t.MergeArgs(deskshare, webcams, output), onOutput)
}
