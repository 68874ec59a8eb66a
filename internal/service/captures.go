package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"echallan-service/internal/domain/anpr"
)

const defaultCaptureLimit = 50

// Captures records every accepted live detection, clean or not.
type Captures struct {
	store CaptureStore
}

func NewCaptures(store CaptureStore) *Captures {
	return &Captures{store: store}
}

func (c *Captures) Record(ctx context.Context, obs anpr.Candidate, proof, cameraID string, at time.Time) (*anpr.Capture, error) {
	capture := &anpr.Capture{
		ID:         uuid.NewString(),
		Plate:      obs.Text,
		Confidence: obs.Confidence,
		ImageRef:   proof,
		CameraID:   cameraID,
		CapturedAt: at,
	}
	if err := c.store.Insert(ctx, capture); err != nil {
		return nil, fmt.Errorf("%w: insert capture: %w", ErrPersistence, err)
	}
	return capture, nil
}

// Recent lists the newest captures; limit defaults to 50.
func (c *Captures) Recent(ctx context.Context, limit int) ([]anpr.Capture, error) {
	if limit <= 0 {
		limit = defaultCaptureLimit
	}
	list, err := c.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list captures: %w", err)
	}
	return list, nil
}
