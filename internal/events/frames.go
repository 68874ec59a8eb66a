package events

import (
	"bytes"
	"context"
	"image"
	"sync"

	"github.com/disintegration/imaging"
)

// FrameBuffer holds the latest display frame as JPEG. Readers wait for a newer
// version instead of polling.
type FrameBuffer struct {
	mu      sync.Mutex
	jpeg    []byte
	version uint64
	changed chan struct{}
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{changed: make(chan struct{})}
}

// Show encodes img and makes it the current frame.
func (b *FrameBuffer) Show(img image.Image) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return err
	}
	b.mu.Lock()
	b.jpeg = buf.Bytes()
	b.version++
	close(b.changed)
	b.changed = make(chan struct{})
	b.mu.Unlock()
	return nil
}

// Latest returns the current frame and its version. The frame is nil until
// the first Show.
func (b *FrameBuffer) Latest() ([]byte, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.jpeg, b.version
}

// Next blocks until a frame newer than version is available.
func (b *FrameBuffer) Next(ctx context.Context, version uint64) ([]byte, uint64, error) {
	for {
		b.mu.Lock()
		if b.version > version {
			data, v := b.jpeg, b.version
			b.mu.Unlock()
			return data, v, nil
		}
		wait := b.changed
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, version, ctx.Err()
		case <-wait:
		}
	}
}
