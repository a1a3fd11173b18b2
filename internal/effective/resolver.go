// Package effective answers "what value was in effect for a subject
// on date D" from a time-ordered fact stream. Historical reports must
// not change retroactively when the current value changes, so this is
// a pure function of its inputs.
package effective

import (
	"time"

	"github.com/fieldsync/fieldsync/internal/models"
)

// DefaultLookback bounds how far back facts are considered. It is a
// performance/correctness trade-off, not a domain law, and can be
// tuned via config.
const DefaultLookback = 400 * 24 * time.Hour

// Resolver resolves effective-dated attributes.
type Resolver struct {
	lookback time.Duration
}

// NewResolver creates a Resolver. A non-positive lookback falls back
// to DefaultLookback.
func NewResolver(lookback time.Duration) *Resolver {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Resolver{lookback: lookback}
}

// Resolution reports where a resolved value came from.
type Resolution struct {
	Value    string
	FromFact bool // false when the live fallback was used
}

// Resolve returns the value in effect for subjectID on date at.
//
// Among facts for the subject with EffectiveFrom <= at and within the
// look-back window, the one with the greatest EffectiveFrom wins; on
// ties the greatest RecordedAt wins, so a back-dated correction
// written later supersedes the original same-day fact. When no fact
// qualifies the live value is returned, treating the present as having
// always been true absent better information.
func (r *Resolver) Resolve(facts []models.Fact, subjectID string, at time.Time, live string) Resolution {
	target := at.Unix()
	horizon := at.Add(-r.lookback).Unix()

	var best *models.Fact
	for i := range facts {
		f := &facts[i]
		if f.SubjectID != subjectID {
			continue
		}
		if f.EffectiveFrom > target || f.EffectiveFrom < horizon {
			continue
		}
		if best == nil || betterThan(f, best) {
			best = f
		}
	}

	if best == nil {
		return Resolution{Value: live, FromFact: false}
	}
	return Resolution{Value: best.Value, FromFact: true}
}

// betterThan orders candidate facts: later EffectiveFrom first, then
// later RecordedAt among same-day facts (last written wins).
func betterThan(a, b *models.Fact) bool {
	if a.EffectiveFrom != b.EffectiveFrom {
		return a.EffectiveFrom > b.EffectiveFrom
	}
	return a.RecordedAt > b.RecordedAt
}
