package evidence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// Lifecycle implements capture-then-promote naming over a Store.
type Lifecycle struct {
	store Store
}

func NewLifecycle(store Store) *Lifecycle {
	return &Lifecycle{store: store}
}

// Capture encodes img as JPEG and stores it under a temporary name.
func (l *Lifecycle) Capture(ctx context.Context, img image.Image) (Ref, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return "", fmt.Errorf("encode proof: %w", err)
	}
	return l.store.Save(ctx, buf.Bytes(), TempName())
}

// maxPromoteAttempts bounds the suffixed names tried when a plate is proven
// more than once within the same second.
const maxPromoteAttempts = 10

// Promote renames a captured proof to <PLATE>_<YYYYmmdd_HHMMSS>_proof.jpg.
// When that name is taken it falls back to <PLATE>_<YYYYmmdd_HHMMSS>_<n>_proof.jpg
// starting at n=2.
func (l *Lifecycle) Promote(ctx context.Context, temp Ref, plate string, at time.Time) (Ref, error) {
	name := FinalName(plate, at)
	for n := 2; ; n++ {
		ref, err := l.store.Rename(ctx, temp, name)
		if !errors.Is(err, ErrExists) {
			return ref, err
		}
		if n > maxPromoteAttempts {
			return "", fmt.Errorf("promote proof for %s: %w", plate, err)
		}
		name = suffixedName(plate, at, n)
	}
}

const finalLayout = "20060102_150405"

// TempName is the capture-time name: six random hex digits.
func TempName() string {
	code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return code + "_proof.jpg"
}

func FinalName(plate string, at time.Time) string {
	return fmt.Sprintf("%s_%s_proof.jpg", plate, at.Format(finalLayout))
}

func suffixedName(plate string, at time.Time, n int) string {
	return fmt.Sprintf("%s_%s_%d_proof.jpg", plate, at.Format(finalLayout), n)
}
