package scoring

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/matchfeed/internal/model"
)

// statusError mimics api.APIError.
type statusError struct{ code int }

func (e *statusError) Error() string     { return fmt.Sprintf("status %d", e.code) }
func (e *statusError) IsRetryable() bool { return e.code >= 500 || e.code == 429 }

func testConfig() Config {
	return Config{
		Weights:       DefaultWeights(),
		Timeout:       50 * time.Millisecond,
		MaxAttempts:   3,
		RetryDelay:    time.Millisecond,
		RetryMaxDelay: 5 * time.Millisecond,
	}
}

func testEntities() (model.SubjectProfile, model.CounterpartyProfile, model.Campaign) {
	subject := model.SubjectProfile{
		ID:              "athlete-1",
		Sport:           "Basketball",
		Division:        "D1",
		Followers:       50000,
		ContentStyles:   []string{"training", "lifestyle"},
		Values:          []string{"community", "health"},
		MinCompensation: 100000,
	}
	counterparty := model.CounterpartyProfile{
		ID:     "brand-1",
		Name:   "Acme",
		Values: []string{"health"},
	}
	campaign := model.Campaign{
		ID:             "campaign-1",
		CounterpartyID: "brand-1",
		TargetSports:   []string{"basketball", "soccer"},
		TargetDivision: "d1",
		IdealFollowers: 50000,
		Budget:         150000,
		ContentStyles:  []string{"training"},
		Values:         []string{"community"},
	}
	return subject, counterparty, campaign
}

func goodAssessment() Assessment {
	return Assessment{
		DimensionScores: map[model.Dimension]int{
			model.DimAudienceFit:         80,
			model.DimContentStyleFit:     60,
			model.DimBrandValueAlignment: 70,
			model.DimEngagementPotential: 90,
			model.DimCompensationFit:     100,
		},
		StrengthAreas: []string{"engagementPotential"},
		Reason:        "strong engagement",
	}
}

func TestNewEngine_RejectsBadWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights Weights
	}{
		{"sum too low", Weights{
			model.DimAudienceFit: 0.2, model.DimContentStyleFit: 0.2, model.DimBrandValueAlignment: 0.2,
			model.DimEngagementPotential: 0.2, model.DimCompensationFit: 0.1,
		}},
		{"missing dimension", Weights{
			model.DimAudienceFit: 0.5, model.DimContentStyleFit: 0.5,
		}},
		{"unknown dimension", Weights{
			model.DimAudienceFit: 0.25, model.DimContentStyleFit: 0.20, model.DimBrandValueAlignment: 0.20,
			model.DimEngagementPotential: 0.20, model.DimCompensationFit: 0.15, "charisma": 0,
		}},
		{"negative", Weights{
			model.DimAudienceFit: 1.2, model.DimContentStyleFit: -0.2, model.DimBrandValueAlignment: 0,
			model.DimEngagementPotential: 0, model.DimCompensationFit: 0,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Weights = tt.weights
			if _, err := NewEngine(cfg, nil, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestComputeScore_Provider(t *testing.T) {
	provider := ProviderFunc(func(context.Context, model.SubjectProfile, model.CounterpartyProfile, model.Campaign) (Assessment, error) {
		return goodAssessment(), nil
	})
	e, err := NewEngine(testConfig(), provider, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	s, cp, c := testEntities()
	got := e.ComputeScore(context.Background(), s, cp, c)

	// 0.25*80 + 0.2*60 + 0.2*70 + 0.2*90 + 0.15*100 = 79
	if got.OverallScore != 79 {
		t.Errorf("OverallScore = %d, want 79", got.OverallScore)
	}
	if got.ScoredBy != model.ScoredByProvider {
		t.Errorf("ScoredBy = %q, want provider", got.ScoredBy)
	}
	if got.DeliveryState != model.DeliveryPending {
		t.Errorf("DeliveryState = %q, want pending", got.DeliveryState)
	}
	if got.SubjectID != s.ID || got.CounterpartyID != cp.ID || got.CampaignID != c.ID {
		t.Errorf("key = %s", got.Key())
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestComputeScore_ProviderPerfectIsNotCapped(t *testing.T) {
	a := goodAssessment()
	for d := range a.DimensionScores {
		a.DimensionScores[d] = 100
	}
	provider := ProviderFunc(func(context.Context, model.SubjectProfile, model.CounterpartyProfile, model.Campaign) (Assessment, error) {
		return a, nil
	})
	e, _ := NewEngine(testConfig(), provider, nil)

	s, cp, c := testEntities()
	if got := e.ComputeScore(context.Background(), s, cp, c).OverallScore; got != 100 {
		t.Errorf("OverallScore = %d, want 100", got)
	}
}

func TestComputeScore_RetriesTransientFailures(t *testing.T) {
	tests := []struct {
		name     string
		failWith error
	}{
		{"server error", &statusError{code: 503}},
		{"rate limited", &statusError{code: 429}},
		{"transport error", errors.New("connection refused")},
		{"invalid schema", fmt.Errorf("%w: missing dimension", ErrInvalidAssessment)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			provider := ProviderFunc(func(context.Context, model.SubjectProfile, model.CounterpartyProfile, model.Campaign) (Assessment, error) {
				if calls.Add(1) < 3 {
					return Assessment{}, tt.failWith
				}
				return goodAssessment(), nil
			})
			e, _ := NewEngine(testConfig(), provider, nil)

			s, cp, c := testEntities()
			got := e.ComputeScore(context.Background(), s, cp, c)

			if calls.Load() != 3 {
				t.Errorf("calls = %d, want 3", calls.Load())
			}
			if got.ScoredBy != model.ScoredByProvider {
				t.Errorf("ScoredBy = %q, want provider", got.ScoredBy)
			}
		})
	}
}

func TestComputeScore_PermanentFailureSkipsRetries(t *testing.T) {
	var calls atomic.Int32
	provider := ProviderFunc(func(context.Context, model.SubjectProfile, model.CounterpartyProfile, model.Campaign) (Assessment, error) {
		calls.Add(1)
		return Assessment{}, &statusError{code: 400}
	})
	e, _ := NewEngine(testConfig(), provider, nil)

	s, cp, c := testEntities()
	got := e.ComputeScore(context.Background(), s, cp, c)

	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if got.ScoredBy != model.ScoredByFallback {
		t.Errorf("ScoredBy = %q, want fallback", got.ScoredBy)
	}
}

func TestComputeScore_InvalidAssessmentFallsBack(t *testing.T) {
	var calls atomic.Int32
	provider := ProviderFunc(func(context.Context, model.SubjectProfile, model.CounterpartyProfile, model.Campaign) (Assessment, error) {
		calls.Add(1)
		a := goodAssessment()
		a.DimensionScores[model.DimCompensationFit] = 140
		return a, nil
	})
	e, _ := NewEngine(testConfig(), provider, nil)

	s, cp, c := testEntities()
	got := e.ComputeScore(context.Background(), s, cp, c)

	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if got.ScoredBy != model.ScoredByFallback {
		t.Errorf("ScoredBy = %q, want fallback", got.ScoredBy)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestComputeScore_UnknownDimensionFallsBack(t *testing.T) {
	provider := ProviderFunc(func(context.Context, model.SubjectProfile, model.CounterpartyProfile, model.Campaign) (Assessment, error) {
		a := goodAssessment()
		a.DimensionScores["bogus"] = 500
		return a, nil
	})
	e, _ := NewEngine(testConfig(), provider, nil)

	s, cp, c := testEntities()
	got := e.ComputeScore(context.Background(), s, cp, c)

	if got.ScoredBy != model.ScoredByFallback {
		t.Errorf("ScoredBy = %q, want fallback", got.ScoredBy)
	}
	if _, ok := got.DimensionScores["bogus"]; ok {
		t.Error("unknown dimension leaked into the stored score")
	}
	if err := got.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestComputeScore_TimeoutPerAttempt(t *testing.T) {
	var calls atomic.Int32
	provider := ProviderFunc(func(ctx context.Context, _ model.SubjectProfile, _ model.CounterpartyProfile, _ model.Campaign) (Assessment, error) {
		calls.Add(1)
		<-ctx.Done()
		return Assessment{}, ctx.Err()
	})
	cfg := testConfig()
	cfg.Timeout = 10 * time.Millisecond
	e, _ := NewEngine(cfg, provider, nil)

	s, cp, c := testEntities()
	start := time.Now()
	got := e.ComputeScore(context.Background(), s, cp, c)

	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if got.ScoredBy != model.ScoredByFallback {
		t.Errorf("ScoredBy = %q, want fallback", got.ScoredBy)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("took %v, per-attempt timeout not applied", elapsed)
	}
}

func TestComputeScore_BoundsWithProviderDown(t *testing.T) {
	down := ProviderFunc(func(context.Context, model.SubjectProfile, model.CounterpartyProfile, model.Campaign) (Assessment, error) {
		return Assessment{}, errors.New("unreachable")
	})
	e, _ := NewEngine(testConfig(), down, nil)

	subjects := []model.SubjectProfile{
		{ID: "empty"},
		{ID: "huge", Sport: "soccer", Followers: 1 << 40, MinCompensation: 1},
		{ID: "negative", Followers: -10, MinCompensation: -5},
	}
	campaigns := []model.Campaign{
		{ID: "empty"},
		{ID: "rich", TargetSports: []string{"soccer"}, Budget: 1 << 40, IdealFollowers: 1},
		{ID: "poor", Budget: 0, IdealFollowers: 1000},
	}

	for _, s := range subjects {
		for _, c := range campaigns {
			got := e.ComputeScore(context.Background(), s, model.CounterpartyProfile{}, c)
			if err := got.Validate(); err != nil {
				t.Errorf("%s/%s: %v", s.ID, c.ID, err)
			}
			if got.OverallScore > fallbackCap {
				t.Errorf("%s/%s: OverallScore = %d, above cap", s.ID, c.ID, got.OverallScore)
			}
		}
	}
}

func TestComputeScore_NilProviderUsesFallback(t *testing.T) {
	e, err := NewEngine(testConfig(), nil, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	s, cp, c := testEntities()
	a := e.ComputeScore(context.Background(), s, cp, c)
	b := e.ComputeScore(context.Background(), s, cp, c)

	if a.ScoredBy != model.ScoredByFallback {
		t.Errorf("ScoredBy = %q, want fallback", a.ScoredBy)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("fallback not deterministic:\n%+v\n%+v", a, b)
	}
}

func TestComputeScore_CancelledContextFallsBack(t *testing.T) {
	var calls atomic.Int32
	provider := ProviderFunc(func(ctx context.Context, _ model.SubjectProfile, _ model.CounterpartyProfile, _ model.Campaign) (Assessment, error) {
		calls.Add(1)
		return Assessment{}, errors.New("unreachable")
	})
	cfg := testConfig()
	cfg.RetryDelay = time.Second
	cfg.RetryMaxDelay = time.Second
	e, _ := NewEngine(cfg, provider, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, cp, c := testEntities()
	got := e.ComputeScore(ctx, s, cp, c)
	if got.ScoredBy != model.ScoredByFallback {
		t.Errorf("ScoredBy = %q, want fallback", got.ScoredBy)
	}
	if calls.Load() > 1 {
		t.Errorf("calls = %d, want at most 1", calls.Load())
	}
}
