// Package media turns cameras, video files and still images into a sequence
// of decoded frames.
package media

import (
	"context"
	"fmt"
	"image"
	"io"
	"strings"
)

// Source yields frames in order. Next returns io.EOF once the source is
// exhausted.
type Source interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// Kind selects a Source implementation.
type Kind string

const (
	KindFFmpeg Kind = "ffmpeg"
	KindMJPEG  Kind = "mjpeg"
)

// Open builds a source for a camera or file location. MJPEG is assumed for
// http(s) URLs unless kind says otherwise.
func Open(ctx context.Context, kind Kind, location string, opts ...FFmpegOption) (Source, error) {
	if strings.TrimSpace(location) == "" {
		return nil, fmt.Errorf("media source location is required")
	}
	if kind == "" {
		kind = KindFFmpeg
		if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
			kind = KindMJPEG
		}
	}
	var (
		src Source
		err error
	)
	switch kind {
	case KindMJPEG:
		src, err = OpenMJPEG(ctx, nil, location)
	case KindFFmpeg:
		src, err = OpenFFmpeg(ctx, location, opts...)
	default:
		return nil, fmt.Errorf("unknown media source kind %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return src, nil
}

// Frames is an in-memory source, used for still images and tests.
type Frames struct {
	frames []image.Image
	next   int
}

func NewFrames(frames ...image.Image) *Frames {
	return &Frames{frames: frames}
}

func (f *Frames) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.next >= len(f.frames) {
		return nil, io.EOF
	}
	img := f.frames[f.next]
	f.next++
	return img, nil
}

func (f *Frames) Close() error { return nil }
