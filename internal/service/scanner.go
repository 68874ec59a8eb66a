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
	"echallan-service/internal/compliance"
	"echallan-service/internal/detector"
	"echallan-service/internal/domain/anpr"
	"echallan-service/internal/domain/challan"
	"echallan-service/internal/evidence"
	"echallan-service/internal/media"
)

type ScanConfig struct {
	MaxFrames     int
	SampleEvery   int
	MinConfidence float64
}

type ScanOptions struct {
	Official challan.Official
	Location string
}

// ScanOutcome lists every distinct plate seen plus the primary result, which
// is nil when nothing was detected.
type ScanOutcome struct {
	Detections []anpr.PlateResult `json:"all_detections"`
	Primary    *anpr.PlateResult  `json:"primary,omitempty"`
	Report     *compliance.Report `json:"report,omitempty"`
	Proof      evidence.Ref       `json:"image_url,omitempty"`
	Challan    *challan.Challan   `json:"challan,omitempty"`
	Frames     int                `json:"frames_read"`
}

// Scanner runs the bounded batch scan over an uploaded video or image.
type Scanner struct {
	detector  Detector
	inspector *Inspector
	issuer    *Issuer
	evidence  *evidence.Lifecycle
	cfg       ScanConfig
	now       func() time.Time
	log       zerolog.Logger
}

// ScannerOption customises a Scanner.
type ScannerOption func(*Scanner)

// WithScanClock sets the clock used to stamp and name proof images.
func WithScanClock(now func() time.Time) ScannerOption {
	return func(s *Scanner) {
		if now != nil {
			s.now = now
		}
	}
}

func NewScanner(det Detector, inspector *Inspector, issuer *Issuer, lifecycle *evidence.Lifecycle, cfg ScanConfig, log zerolog.Logger, opts ...ScannerOption) *Scanner {
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = 450
	}
	if cfg.SampleEvery <= 0 {
		cfg.SampleEvery = 5
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = aggregator.CollectMinConfidence
	}
	s := &Scanner{
		detector:  det,
		inspector: inspector,
		issuer:    issuer,
		evidence:  lifecycle,
		cfg:       cfg,
		now:       time.Now,
		log:       log.With().Str("component", "scanner").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan reads at most MaxFrames frames, runs detection on every
// SampleEvery-th one and issues at most one challan for the primary plate.
// A read failure after the first frame ends the scan early; the plates
// collected so far are still aggregated.
func (s *Scanner) Scan(ctx context.Context, src media.Source, opts ScanOptions) (*ScanOutcome, error) {
	collector := aggregator.NewCollector(s.cfg.MinConfidence)
	frames := 0
	for frames < s.cfg.MaxFrames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 || ctx.Err() != nil {
				return nil, fmt.Errorf("read frame %d: %w", frames, err)
			}
			s.log.Warn().Err(err).Int("frames", frames).Msg("source failed mid-scan; aggregating frames read so far")
			break
		}
		if frames%s.cfg.SampleEvery == 0 {
			candidates := s.detector.Detect(ctx, frame)
			if best, ok := aggregator.Best(candidates); ok && best.Confidence >= s.cfg.MinConfidence {
				collector.Observe(frames, candidates, frame)
			}
		}
		frames++
	}

	observations := collector.Results()
	reports := make(map[string]*compliance.Report, len(observations))
	for _, o := range observations {
		if r, found := s.inspector.Inspect(o.Text); found {
			reports[o.Text] = &r
		}
	}

	outcome := &ScanOutcome{Frames: frames}
	for _, o := range observations {
		outcome.Detections = append(outcome.Detections, plateResult(o.Candidate, reports[o.Text]))
	}
	s.log.Info().Int("frames", frames).Int("plates", len(observations)).Msg("scan finished")

	sel, ok := aggregator.SelectPrimary(observations, func(plate string) aggregator.Verdict {
		r := reports[plate]
		if r == nil {
			return aggregator.Verdict{}
		}
		return aggregator.Verdict{Found: true, Violations: len(r.Violations)}
	})
	if !ok {
		return outcome, nil
	}
	idx := indexOf(outcome.Detections, sel.Primary.Text)
	if err := s.finish(ctx, outcome, idx, sel.Primary, reports[sel.Primary.Text], opts); err != nil {
		return nil, err
	}
	return outcome, nil
}

// ScanImage handles a single still image with the streaming threshold.
func (s *Scanner) ScanImage(ctx context.Context, img image.Image, opts ScanOptions) (*ScanOutcome, error) {
	candidates := s.detector.Detect(ctx, img)
	best, ok := aggregator.Best(candidates)
	outcome := &ScanOutcome{Frames: 1}
	if !ok {
		return outcome, nil
	}
	report, found := s.inspector.Inspect(best.Text)
	var rp *compliance.Report
	if found {
		rp = &report
	}
	outcome.Detections = []anpr.PlateResult{plateResult(best, rp)}
	obs := anpr.Observation{
		Candidate:  best,
		Frame:      img,
		Candidates: candidates,
	}
	if err := s.finish(ctx, outcome, 0, obs, rp, opts); err != nil {
		return nil, err
	}
	return outcome, nil
}

// finish stores the primary proof image, highlighting the primary plate, and
// issues a challan when the primary plate has violations.
func (s *Scanner) finish(ctx context.Context, outcome *ScanOutcome, idx int, primary anpr.Observation, report *compliance.Report, opts ScanOptions) error {
	outcome.Primary = &outcome.Detections[idx]
	outcome.Report = report
	logger := s.log.With().Str("plate", primary.Text).Float64("confidence", primary.Confidence).Logger()

	if s.evidence != nil && primary.Frame != nil {
		at := s.now()
		proof := detector.Annotate(primary.Frame, primary.Candidates, &primary.Candidate, detector.Annotation{Tag: opts.Location, At: at})
		ref, err := s.evidence.Capture(ctx, proof)
		if err == nil {
			ref, err = s.evidence.Promote(ctx, ref, primary.Text, at)
		}
		if err != nil {
			logger.Error().Err(err).Msg("failed to store proof image")
		}
		outcome.Proof = ref
	}

	if report == nil || !report.HasViolations() {
		return nil
	}
	c, err := s.issuer.Issue(ctx, IssueRequest{
		Report:   *report,
		Proof:    outcome.Proof,
		Official: opts.Official,
		Location: opts.Location,
	})
	if err != nil {
		return err
	}
	outcome.Challan = c
	outcome.Detections[idx].Status = anpr.ResultIssued
	return nil
}

func plateResult(c anpr.Candidate, report *compliance.Report) anpr.PlateResult {
	res := anpr.PlateResult{
		Plate:      c.Text,
		Confidence: anpr.ConfidencePercent(c.Confidence),
	}
	switch {
	case report == nil:
		res.Status, res.Reason = anpr.ResultNotInRefDB, "Not in Database"
	case report.HasViolations():
		res.Status, res.Reason = anpr.ResultViolation, report.ViolationLabel()
	default:
		res.Status, res.Reason = anpr.ResultClean, "No Violations"
	}
	return res
}

func indexOf(results []anpr.PlateResult, plate string) int {
	for i, r := range results {
		if r.Plate == plate {
			return i
		}
	}
	return 0
}
