// Package consensus aggregates independent provider verdicts into a single
// score and verdict.
package consensus

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/mwhelan/claimcheck/internal/models"
)

const (
	MethodWeightedMean = "weighted_mean"
	MethodMedian       = "median"
	MethodTrimmedMean  = "trimmed_mean"

	// trimFraction is the share trimmed from each tail by trimmed_mean.
	trimFraction = 0.2

	// WeakEvidenceThreshold is the evidence strength below which collected
	// evidence cannot carry a definitive verdict.
	WeakEvidenceThreshold = 0.5
)

// ErrNoVerdicts indicates that no usable provider verdicts were available.
var ErrNoVerdicts = errors.New("consensus: no usable verdicts")

// Engine computes consensus over provider verdicts according to spec
// configuration.
type Engine struct {
	cfg models.ConsensusConfig

	evidenceStrength float64
	gateOnEvidence   bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEvidenceStrength gates definitive verdicts on the strength of the
// collected evidence. While the strength sits below WeakEvidenceThreshold
// the verdict stays uncertain no matter how the providers score: weak
// evidence cannot carry a supported or refuted consensus.
func WithEvidenceStrength(strength float64) EngineOption {
	return func(e *Engine) {
		e.evidenceStrength = strength
		e.gateOnEvidence = true
	}
}

func NewEngine(cfg models.ConsensusConfig, opts ...EngineOption) *Engine {
	e := &Engine{cfg: cfg}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate aggregates the verdicts for one trial.
//
// Failed verdicts are excluded entirely rather than contributing a neutral
// score; a provider that errored tells us nothing about the claim. When
// fewer successful verdicts remain than the quorum requires, or the engine
// was built with WithEvidenceStrength and the evidence scored weak, the
// result is uncertain regardless of the score.
func (e *Engine) Evaluate(verdicts []models.ProviderVerdict) (*models.ConsensusResult, error) {
	scores := make([]float64, 0, len(verdicts))
	weights := make([]float64, 0, len(verdicts))
	excluded := 0

	for i := range verdicts {
		v := &verdicts[i]
		if v.Failed() {
			excluded++
			continue
		}

		score := SupportScore(v)
		if math.IsNaN(score) || math.IsInf(score, 0) {
			excluded++
			continue
		}

		weight := v.Weight
		if weight <= 0 {
			weight = 1.0
		}

		scores = append(scores, score)
		weights = append(weights, weight)
	}

	if len(scores) == 0 {
		return nil, fmt.Errorf("%w (%d excluded)", ErrNoVerdicts, excluded)
	}

	var score float64
	switch e.cfg.Method {
	case MethodWeightedMean, "":
		score = weightedMean(scores, weights)
	case MethodMedian:
		score = median(scores)
	case MethodTrimmedMean:
		score = trimmedMean(scores, trimFraction)
	default:
		return nil, fmt.Errorf("consensus: '%s' is not a valid method", e.cfg.Method)
	}

	quorumMet := len(scores) >= e.cfg.Quorum
	gated := e.gateOnEvidence && e.evidenceStrength < WeakEvidenceThreshold

	verdict := models.VerdictUncertain
	if quorumMet && !gated {
		switch {
		case score >= e.cfg.PassThreshold:
			verdict = models.VerdictSupported
		case score < e.cfg.FailThreshold:
			verdict = models.VerdictRefuted
		}
	}

	method := e.cfg.Method
	if method == "" {
		method = MethodWeightedMean
	}

	return &models.ConsensusResult{
		Score:         score,
		Verdict:       verdict,
		Method:        method,
		Agreement:     agreement(scores),
		QuorumMet:     quorumMet,
		EvidenceGated: gated,
		Scored:        len(scores),
		Excluded:      excluded,
	}, nil
}

// SupportScore maps a verdict and its confidence onto [0, 1], where 1 means
// fully supported and 0 fully refuted. An uncertain verdict is neutral at
// 0.5 regardless of confidence.
func SupportScore(v *models.ProviderVerdict) float64 {
	switch v.Verdict {
	case models.VerdictSupported:
		return 0.5 + v.Confidence/2
	case models.VerdictRefuted:
		return 0.5 - v.Confidence/2
	default:
		return 0.5
	}
}

func weightedMean(scores, weights []float64) float64 {
	var sum, weightSum float64
	for i, s := range scores {
		sum += s * weights[i]
		weightSum += weights[i]
	}
	return sum / weightSum
}

func median(scores []float64) float64 {
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// trimmedMean drops the given fraction from each tail before averaging.
// Small inputs where trimming would remove everything fall back to a plain
// mean.
func trimmedMean(scores []float64, fraction float64) float64 {
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)

	trim := int(float64(len(sorted)) * fraction)
	if len(sorted)-2*trim < 1 {
		trim = 0
	}
	sorted = sorted[trim : len(sorted)-trim]

	var sum float64
	for _, s := range sorted {
		sum += s
	}
	return sum / float64(len(sorted))
}

// agreement expresses how tightly the scores cluster, in [0, 1].
// Scores live in [0, 1], so their standard deviation is at most 0.5.
func agreement(scores []float64) float64 {
	if len(scores) < 2 {
		return 1.0
	}

	sd := models.ComputeStdDev(scores)
	a := 1.0 - 2.0*sd
	if a < 0 {
		a = 0
	}
	return a
}
