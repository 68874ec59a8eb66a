package aggregator

import (
	"echallan-service/internal/domain/anpr"
)

// Verdict is the per-plate outcome a selection policy needs.
type Verdict struct {
	Found      bool
	Violations int
}

// Selection is the outcome of primary-result selection.
type Selection struct {
	Primary anpr.Observation
	// Violating is true when Primary was chosen because it has violations and
	// may therefore be issued.
	Violating bool
	Found     bool
}

// SelectPrimary prefers the highest-confidence plate with at least one
// violation, the later one winning a tie. Otherwise it falls back to the
// highest-confidence plate overall, the earlier one winning a tie. ok is false
// only when obs is empty.
func SelectPrimary(obs []anpr.Observation, judge func(plate string) Verdict) (sel Selection, ok bool) {
	if len(obs) == 0 {
		return Selection{}, false
	}

	var (
		top          anpr.Observation
		topViolating anpr.Observation
		haveViolator bool
	)
	for i, o := range obs {
		if i == 0 || o.Confidence > top.Confidence {
			top = o
		}
		v := judge(o.Text)
		if !v.Found || v.Violations == 0 {
			continue
		}
		if !haveViolator || o.Confidence >= topViolating.Confidence {
			topViolating, haveViolator = o, true
		}
	}

	if haveViolator {
		return Selection{Primary: topViolating, Violating: true, Found: true}, true
	}
	return Selection{Primary: top, Found: judge(top.Text).Found}, true
}
