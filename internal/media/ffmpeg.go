package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"
	"sync"
)

var commandContext = exec.CommandContext

// FFmpegOption configures an ffmpeg source.
type FFmpegOption func(*ffmpegConfig)

type ffmpegConfig struct {
	binary string
	fps    float64
	width  int
}

// WithBinary overrides the ffmpeg executable.
func WithBinary(binary string) FFmpegOption {
	return func(c *ffmpegConfig) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithFPS limits the decoded frame rate.
func WithFPS(fps float64) FFmpegOption {
	return func(c *ffmpegConfig) { c.fps = fps }
}

// WithWidth scales frames to the given width keeping aspect ratio.
func WithWidth(width int) FFmpegOption {
	return func(c *ffmpegConfig) { c.width = width }
}

// FFmpeg decodes any input ffmpeg understands (file, RTSP URL, capture
// device) and reads raw PPM frames from its stdout.
type FFmpeg struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	r      *bufio.Reader
	stderr *strings.Builder

	closeOnce sync.Once
	closeErr  error
}

func OpenFFmpeg(ctx context.Context, input string, opts ...FFmpegOption) (*FFmpeg, error) {
	cfg := ffmpegConfig{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(&cfg)
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if strings.HasPrefix(input, "rtsp://") {
		args = append(args, "-rtsp_transport", "tcp")
	}
	args = append(args, "-i", input)
	var filters []string
	if cfg.fps > 0 {
		filters = append(filters, fmt.Sprintf("fps=%g", cfg.fps))
	}
	if cfg.width > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:-2", cfg.width))
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}
	args = append(args, "-f", "image2pipe", "-vcodec", "ppm", "-")

	cmd := commandContext(ctx, cfg.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &strings.Builder{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	return &FFmpeg{cmd: cmd, stdout: stdout, r: bufio.NewReaderSize(stdout, 1<<20), stderr: stderr}, nil
}

func (f *FFmpeg) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := ReadPPM(f.r)
	if errors.Is(err, io.EOF) {
		if werr := f.Close(); werr != nil {
			return nil, werr
		}
		return nil, io.EOF
	}
	return img, err
}

// Close stops ffmpeg. A non-zero exit after the stream was fully read is
// reported together with ffmpeg's stderr.
func (f *FFmpeg) Close() error {
	f.closeOnce.Do(func() {
		_ = f.stdout.Close()
		if err := f.cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && exitErr.ExitCode() == -1 {
				// killed by us or by context cancellation
				return
			}
			if msg := strings.TrimSpace(f.stderr.String()); msg != "" {
				f.closeErr = fmt.Errorf("ffmpeg: %w: %s", err, msg)
				return
			}
			f.closeErr = fmt.Errorf("ffmpeg: %w", err)
		}
	})
	return f.closeErr
}
