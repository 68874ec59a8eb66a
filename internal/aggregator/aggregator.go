package aggregator

import (
	"image"

	"echallan-service/internal/detector"
	"echallan-service/internal/domain/anpr"
)

// CollectMinConfidence is the floor applied in collect-all mode.
const CollectMinConfidence = 0.4

// Best returns the highest-confidence valid candidate of a single frame.
// Ties keep the first candidate seen.
func Best(candidates []anpr.Candidate) (anpr.Candidate, bool) {
	var (
		best  anpr.Candidate
		found bool
	)
	for _, c := range candidates {
		if !detector.Valid(c) {
			continue
		}
		if !found || c.Confidence > best.Confidence {
			best, found = c, true
		}
	}
	return best, found
}

// Collector keeps the best observation per plate across a scan. It is not
// safe for concurrent use; a scan drives it from one goroutine.
type Collector struct {
	minConfidence float64
	best          map[string]anpr.Observation
	order         []string
}

// NewCollector returns an empty collector. A min of zero or less selects
// CollectMinConfidence.
func NewCollector(min float64) *Collector {
	if min <= 0 {
		min = CollectMinConfidence
	}
	return &Collector{
		minConfidence: min,
		best:          make(map[string]anpr.Observation),
	}
}

// Observe folds one sampled frame into the mapping. frame and candidates are
// kept with any plate whose best observation comes from this frame.
func (c *Collector) Observe(frameIndex int, candidates []anpr.Candidate, frame image.Image) {
	for _, cand := range candidates {
		if !detector.Valid(cand) || cand.Confidence < c.minConfidence {
			continue
		}
		prev, seen := c.best[cand.Text]
		if !seen {
			c.order = append(c.order, cand.Text)
		}
		if seen && cand.Confidence < prev.Confidence {
			continue
		}
		c.best[cand.Text] = anpr.Observation{
			Candidate:  cand,
			FrameIndex: frameIndex,
			Frame:      frame,
			Candidates: candidates,
		}
	}
}

func (c *Collector) Len() int {
	return len(c.best)
}

// Results returns every plate's best observation in first-seen order.
func (c *Collector) Results() []anpr.Observation {
	out := make([]anpr.Observation, 0, len(c.order))
	for _, plate := range c.order {
		out = append(out, c.best[plate])
	}
	return out
}
