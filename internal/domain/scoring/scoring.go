// Package scoring computes integrity score reports from session event logs.
//
// The scorer is a pure projection over an append-only log: it performs no
// I/O, holds no mutable state and uses no randomness, so recomputing a report
// from the same log always yields the same score and counts.
package scoring

import (
	"context"
	"time"

	"github.com/proctorkit/vigil/internal/domain/model"
)

// Default scoring configuration constants.
const (
	defaultFloor   = 0
	defaultCeiling = 100
)

// DefaultWeights is the fixed per-occurrence deduction schedule. Recovery
// kinds are absent: they count in per-kind tallies but cost nothing.
func DefaultWeights() map[model.EventKind]int {
	return map[model.EventKind]int{
		model.KindFocusLost:      2,
		model.KindNoFace:         5,
		model.KindMultipleFaces:  10,
		model.KindPhoneDetected:  15,
		model.KindNotesDetected:  10,
		model.KindDeviceDetected: 10,
		model.KindDrowsiness:     3,
		model.KindAudioAnomaly:   2,
	}
}

// Option applies a configuration option to the DeductionScorer.
type Option func(*DeductionScorer)

// WithWeights replaces the per-kind deduction table. Unknown or benign kinds
// in the map are ignored; non-positive weights disable a kind's deduction.
func WithWeights(weights map[model.EventKind]int) Option {
	return func(s *DeductionScorer) {
		for kind, points := range weights {
			if kind.Benign() {
				continue
			}
			if _, ok := s.weights[kind]; !ok {
				continue
			}
			s.weights[kind] = points
		}
	}
}

// WithFloor sets the minimum reportable score.
func WithFloor(floor int) Option {
	return func(s *DeductionScorer) {
		s.floor = floor
	}
}

// WithCeiling sets the maximum reportable score (and the starting score).
func WithCeiling(ceiling int) Option {
	return func(s *DeductionScorer) {
		if ceiling > 0 {
			s.ceiling = ceiling
		}
	}
}

// Scorer computes a score report from a session and its ordered event log.
type Scorer interface {
	// Compute derives a report; it honors ctx for cancellation only at entry
	// since the computation itself performs no blocking work.
	Compute(ctx context.Context, session model.Session, events []model.Event, now time.Time) (model.ScoreReport, error)
}

// DeductionScorer implements Scorer with a fixed deduction schedule: start at
// the ceiling, subtract a per-kind cost for every violation occurrence, then
// clamp to [floor, ceiling].
type DeductionScorer struct {
	weights map[model.EventKind]int
	floor   int
	ceiling int
}

// NewDeductionScorer creates a scorer with the default schedule and any
// configuration options applied on top.
func NewDeductionScorer(opts ...Option) *DeductionScorer {
	s := &DeductionScorer{
		weights: DefaultWeights(),
		floor:   defaultFloor,
		ceiling: defaultCeiling,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Weight returns the per-occurrence deduction for a kind. Benign and unknown
// kinds cost zero.
func (s *DeductionScorer) Weight(kind model.EventKind) int {
	return s.weights[kind]
}

// Floor returns the minimum reportable score.
func (s *DeductionScorer) Floor() int { return s.floor }

// Ceiling returns the maximum reportable score.
func (s *DeductionScorer) Ceiling() int { return s.ceiling }

// Compute derives a ScoreReport from the session's event log. A log with zero
// events is not an error: it yields the ceiling score with all counts zero.
func (s *DeductionScorer) Compute(ctx context.Context, session model.Session, events []model.Event, now time.Time) (model.ScoreReport, error) {
	if err := ctx.Err(); err != nil {
		return model.ScoreReport{}, err
	}

	counts := make(map[model.EventKind]int, len(s.weights))
	for _, e := range events {
		counts[e.Kind]++
	}

	total := 0
	deductions := make([]model.Deduction, 0, len(s.weights))
	// Walk the enumeration in its stable order so breakdown rows and the
	// resulting report compare equal across recomputations.
	for _, kind := range model.Kinds() {
		points := s.weights[kind]
		if points <= 0 {
			continue
		}
		count := counts[kind]
		if count == 0 {
			continue
		}
		deductions = append(deductions, model.Deduction{
			Kind:   kind,
			Count:  count,
			Points: points,
			Total:  count * points,
		})
		total += count * points
	}

	duration, closed := session.Duration(now)

	return model.ScoreReport{
		SessionID:   session.SessionID,
		Subject:     session.Subject,
		GeneratedAt: now,
		Duration:    duration,
		Provisional: !closed,
		TotalEvents: len(events),
		Counts:      counts,
		Deductions:  deductions,
		Events:      events,
		Score:       s.clamp(s.ceiling - total),
	}, nil
}

// ScoreCounts computes just the clamped score from per-kind counts. The live
// tally uses this to derive a provisional score without a full log read.
func (s *DeductionScorer) ScoreCounts(counts map[model.EventKind]int) int {
	total := 0
	for kind, count := range counts {
		total += count * s.weights[kind]
	}
	return s.clamp(s.ceiling - total)
}

func (s *DeductionScorer) clamp(score int) int {
	if score < s.floor {
		return s.floor
	}
	if score > s.ceiling {
		return s.ceiling
	}
	return score
}
