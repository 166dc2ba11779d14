package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rickgao/matchfeed/internal/model"
)

// ErrInvalidAssessment marks a provider response that fails schema checks.
// Such responses are retried like transient failures.
var ErrInvalidAssessment = errors.New("invalid assessment")

// Provider produces per-dimension scores for one candidate match.
type Provider interface {
	Score(ctx context.Context, subject model.SubjectProfile, counterparty model.CounterpartyProfile, campaign model.Campaign) (Assessment, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(context.Context, model.SubjectProfile, model.CounterpartyProfile, model.Campaign) (Assessment, error)

func (f ProviderFunc) Score(ctx context.Context, s model.SubjectProfile, cp model.CounterpartyProfile, c model.Campaign) (Assessment, error) {
	return f(ctx, s, cp, c)
}

// Assessment is a provider's answer. The overall score is always computed
// locally from the engine's weights.
type Assessment struct {
	DimensionScores map[model.Dimension]int
	StrengthAreas   []string
	WeaknessAreas   []string
	Reason          string
}

// Validate checks that exactly the known dimensions are present, each in
// [0,100], and that at least one strength area is given.
func (a Assessment) Validate() error {
	for _, d := range model.Dimensions {
		v, ok := a.DimensionScores[d]
		if !ok {
			return fmt.Errorf("%w: missing dimension %s", ErrInvalidAssessment, d)
		}
		if v < 0 || v > 100 {
			return fmt.Errorf("%w: dimension %s score %d out of range", ErrInvalidAssessment, d, v)
		}
	}
	for d := range a.DimensionScores {
		if !d.Known() {
			return fmt.Errorf("%w: unknown dimension %s", ErrInvalidAssessment, d)
		}
	}
	if len(a.StrengthAreas) == 0 {
		return fmt.Errorf("%w: no strength areas", ErrInvalidAssessment)
	}
	return nil
}

// Weights maps each dimension to its share of the overall score.
type Weights map[model.Dimension]float64

// DefaultWeights returns the standard weighting.
func DefaultWeights() Weights {
	return Weights{
		model.DimAudienceFit:         0.25,
		model.DimContentStyleFit:     0.20,
		model.DimBrandValueAlignment: 0.20,
		model.DimEngagementPotential: 0.20,
		model.DimCompensationFit:     0.15,
	}
}

// WeightsFromConfig converts configured weights keyed by dimension name.
func WeightsFromConfig(m map[string]float64) Weights {
	w := make(Weights, len(m))
	for k, v := range m {
		w[model.Dimension(k)] = v
	}
	return w
}

const weightTolerance = 1e-6

// Validate checks that weights cover exactly the known dimensions, are
// non-negative and sum to 1.0.
func (w Weights) Validate() error {
	known := make(map[model.Dimension]bool, len(model.Dimensions))
	for _, d := range model.Dimensions {
		known[d] = true
	}
	for d := range w {
		if !known[d] {
			return fmt.Errorf("unknown dimension %q", d)
		}
	}

	sum := 0.0
	for _, d := range model.Dimensions {
		v, ok := w[d]
		if !ok {
			return fmt.Errorf("missing weight for %s", d)
		}
		if v < 0 {
			return fmt.Errorf("weight for %s is negative", d)
		}
		sum += v
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}

// overall returns round(Σ w·d) clamped to [0,100].
func (w Weights) overall(scores map[model.Dimension]int) int {
	total := 0.0
	for _, d := range model.Dimensions {
		total += w[d] * float64(scores[d])
	}
	return clampScore(int(math.Round(total)))
}

// Config holds engine settings.
type Config struct {
	Weights       Weights
	Timeout       time.Duration // Per provider attempt
	MaxAttempts   int
	RetryDelay    time.Duration // First retry delay, doubled per attempt
	RetryMaxDelay time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Weights:       DefaultWeights(),
		Timeout:       20 * time.Second,
		MaxAttempts:   3,
		RetryDelay:    500 * time.Millisecond,
		RetryMaxDelay: 5 * time.Second,
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
