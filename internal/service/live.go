package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/rs/zerolog"

	"echallan-service/internal/aggregator"
	"echallan-service/internal/detector"
	"echallan-service/internal/domain/anpr"
	"echallan-service/internal/domain/challan"
	"echallan-service/internal/events"
	"echallan-service/internal/evidence"
	"echallan-service/internal/media"
)

const publishTimeout = 5 * time.Second

// DisplaySink receives every frame read by the live loop.
type DisplaySink interface {
	Show(img image.Image) error
}

type LiveConfig struct {
	CameraID string
	Cooldown time.Duration
	Official challan.Official
	Location string
}

type LiveDeps struct {
	Detector  Detector
	Inspector *Inspector
	Issuer    *Issuer
	Evidence  *evidence.Lifecycle
	Captures  *Captures
	Publisher events.Publisher
	Display   DisplaySink
	Now       func() time.Time
}

// LiveLoop drives detection over a continuous frame source. A frame is
// considered for detection only when more than Cooldown has passed since the
// previous attempt, and a plate is accepted only when it differs from the
// previously accepted one. It is driven by a single goroutine.
type LiveLoop struct {
	deps LiveDeps
	cfg  LiveConfig
	log  zerolog.Logger

	lastAttempt time.Time
	lastPlate   string
}

func NewLiveLoop(deps LiveDeps, cfg LiveConfig, log zerolog.Logger) *LiveLoop {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 1500 * time.Millisecond
	}
	return &LiveLoop{
		deps: deps,
		cfg:  cfg,
		log:  log.With().Str("component", "live").Str("camera_id", cfg.CameraID).Logger(),
	}
}

// Run consumes src until it is exhausted (nil), a frame cannot be read
// (error) or ctx is cancelled (ctx.Err()).
func (l *LiveLoop) Run(ctx context.Context, src media.Source) error {
	l.log.Info().Dur("cooldown", l.cfg.Cooldown).Msg("live intake started")
	defer l.log.Info().Msg("live intake stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}
		l.Step(ctx, frame)
	}
}

// Step handles one frame. It returns the accepted plate, if any.
func (l *LiveLoop) Step(ctx context.Context, frame image.Image) (string, bool) {
	var (
		plate    string
		accepted bool
	)
	now := l.deps.Now()
	if l.lastAttempt.IsZero() || now.Sub(l.lastAttempt) > l.cfg.Cooldown {
		l.lastAttempt = now
		plate, accepted = l.detect(ctx, frame, now)
	}
	if l.deps.Display != nil {
		if err := l.deps.Display.Show(frame); err != nil {
			l.log.Debug().Err(err).Msg("failed to show frame")
		}
	}
	return plate, accepted
}

func (l *LiveLoop) detect(ctx context.Context, frame image.Image, at time.Time) (string, bool) {
	candidates := l.deps.Detector.Detect(ctx, frame)
	best, ok := aggregator.Best(candidates)
	if !ok || best.Text == l.lastPlate {
		return "", false
	}
	l.lastPlate = best.Text

	logger := l.log.With().Str("plate", best.Text).Float64("confidence", best.Confidence).Logger()
	logger.Info().Msg("plate accepted")

	var proof evidence.Ref
	if l.deps.Evidence != nil {
		annotated := detector.Annotate(frame, candidates, &best, detector.Annotation{Tag: l.cfg.Location, At: at})
		ref, err := l.deps.Evidence.Capture(ctx, annotated)
		if err != nil {
			logger.Error().Err(err).Msg("failed to capture proof image")
		} else {
			proof = ref
		}
	}

	if l.deps.Captures != nil {
		if _, err := l.deps.Captures.Record(ctx, best, string(proof), l.cfg.CameraID, at); err != nil {
			logger.Error().Err(err).Msg("failed to record capture")
		}
	}

	l.publish(ctx, anpr.PlateEvent{
		Plate:             best.Text,
		ConfidencePercent: anpr.ConfidencePercent(best.Confidence),
		CameraID:          l.cfg.CameraID,
		DetectedAt:        at,
	})

	report, found := l.deps.Inspector.Inspect(best.Text)
	if !found {
		logger.Info().Msg("plate not in reference data")
		return best.Text, true
	}
	c, err := l.deps.Issuer.Issue(ctx, IssueRequest{
		Report:       report,
		Proof:        proof,
		PromoteProof: true,
		Official:     l.cfg.Official,
		Location:     l.cfg.Location,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to issue challan")
	} else if c == nil {
		logger.Info().Msg("no violations")
	}
	return best.Text, true
}

func (l *LiveLoop) publish(ctx context.Context, ev anpr.PlateEvent) {
	if l.deps.Publisher == nil {
		return
	}
	go func() {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := l.deps.Publisher.Publish(pctx, ev); err != nil {
			l.log.Warn().Err(err).Str("plate", ev.Plate).Msg("failed to publish plate event")
		}
	}()
}
