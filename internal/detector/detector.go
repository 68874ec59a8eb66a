package detector

import (
	"context"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"echallan-service/internal/domain/anpr"
	"echallan-service/internal/utils"
)

// MinConfidence is the floor below which a candidate is never reported.
const MinConfidence = 0.3

// Backend is the external detection capability. Implementations must be safe
// for concurrent use; the model state behind them is read-only after load.
type Backend interface {
	Detect(ctx context.Context, img image.Image) ([]anpr.Candidate, error)
}

// BackendFunc adapts a plain function to Backend.
type BackendFunc func(ctx context.Context, img image.Image) ([]anpr.Candidate, error)

func (f BackendFunc) Detect(ctx context.Context, img image.Image) ([]anpr.Candidate, error) {
	return f(ctx, img)
}

// Adapter normalizes backend output and swallows backend failures.
type Adapter struct {
	backend Backend
	log     zerolog.Logger
}

func NewAdapter(backend Backend, log zerolog.Logger) *Adapter {
	return &Adapter{
		backend: backend,
		log:     log.With().Str("component", "detector").Logger(),
	}
}

// Detect returns the valid candidates found in img. Any backend error or panic
// yields an empty list.
func (a *Adapter) Detect(ctx context.Context, img image.Image) (out []anpr.Candidate) {
	if img == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Err(fmt.Errorf("%v", r)).Msg("detector backend panicked")
			out = nil
		}
	}()

	raw, err := a.backend.Detect(ctx, img)
	if err != nil {
		a.log.Warn().Err(err).Msg("detection failed; treating frame as empty")
		return nil
	}
	return Normalize(raw)
}

// Normalize canonicalizes candidate text and drops invalid candidates.
func Normalize(raw []anpr.Candidate) []anpr.Candidate {
	out := make([]anpr.Candidate, 0, len(raw))
	for _, c := range raw {
		c.Text = utils.NormalizePlate(c.Text)
		if !Valid(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Valid reports whether a normalized candidate may be used as a plate reading.
func Valid(c anpr.Candidate) bool {
	return utils.IsPlausiblePlate(c.Text) && c.Confidence > MinConfidence
}
