package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rickgao/matchfeed/internal/model"
)

var tracer = otel.Tracer("github.com/rickgao/matchfeed/internal/scoring")

// retryable is implemented by provider errors that know whether a retry can
// help (api.APIError).
type retryable interface {
	IsRetryable() bool
}

// Engine computes match scores. It asks the provider first and falls back to
// a local heuristic, so ComputeScore never fails.
type Engine struct {
	cfg      Config
	provider Provider
	logger   *slog.Logger
}

// NewEngine validates cfg and creates an Engine. A nil provider means every
// score comes from the heuristic.
func NewEngine(cfg Config, provider Provider, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Weights == nil {
		cfg.Weights = DefaultWeights()
	}
	if err := cfg.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	return &Engine{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
	}, nil
}

// ComputeScore returns an unpersisted MatchScore for the three entities.
// ID, timestamps and delivery state are left for the caller.
func (e *Engine) ComputeScore(ctx context.Context, subject model.SubjectProfile, counterparty model.CounterpartyProfile, campaign model.Campaign) model.MatchScore {
	ctx, span := tracer.Start(ctx, "scoring.ComputeScore", trace.WithAttributes(
		attribute.String("subject_id", subject.ID),
		attribute.String("campaign_id", campaign.ID),
	))
	defer span.End()

	source := model.ScoredByProvider
	assessment, err := e.assess(ctx, subject, counterparty, campaign)
	if err != nil {
		e.logger.Warn("scoring provider failed, using heuristic",
			"subject_id", subject.ID,
			"campaign_id", campaign.ID,
			"error", err,
		)
		span.RecordError(err)
		source = model.ScoredByFallback
		assessment = fallbackAssessment(subject, counterparty, campaign)
	}

	overall := e.cfg.Weights.overall(assessment.DimensionScores)
	if source == model.ScoredByFallback && overall > fallbackCap {
		overall = fallbackCap
	}

	span.SetAttributes(
		attribute.String("scored_by", string(source)),
		attribute.Int("overall_score", overall),
	)

	return model.MatchScore{
		SubjectID:       subject.ID,
		CounterpartyID:  counterparty.ID,
		CampaignID:      campaign.ID,
		OverallScore:    overall,
		DimensionScores: assessment.DimensionScores,
		StrengthAreas:   assessment.StrengthAreas,
		WeaknessAreas:   assessment.WeaknessAreas,
		Reason:          assessment.Reason,
		DeliveryState:   model.DeliveryPending,
		ScoredBy:        source,
	}
}

// assess calls the provider with a per-attempt timeout and retries transient
// failures with exponential backoff.
func (e *Engine) assess(ctx context.Context, subject model.SubjectProfile, counterparty model.CounterpartyProfile, campaign model.Campaign) (Assessment, error) {
	if e.provider == nil {
		return Assessment{}, errors.New("no scoring provider configured")
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.RetryDelay
	b.MaxInterval = e.cfg.RetryMaxDelay
	b.Multiplier = 2

	attempt := 0
	operation := func() (Assessment, error) {
		attempt++
		a, err := e.attempt(ctx, subject, counterparty, campaign)
		if err == nil {
			return a, nil
		}

		var r retryable
		if errors.As(err, &r) && !r.IsRetryable() {
			return Assessment{}, backoff.Permanent(err)
		}
		return Assessment{}, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(e.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			e.logger.Debug("retrying scoring provider",
				"attempt", attempt,
				"backoff", wait,
				"error", err,
			)
		}),
	)
}

func (e *Engine) attempt(ctx context.Context, subject model.SubjectProfile, counterparty model.CounterpartyProfile, campaign model.Campaign) (Assessment, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	a, err := e.provider.Score(ctx, subject, counterparty, campaign)
	if err != nil {
		return Assessment{}, err
	}
	if err := a.Validate(); err != nil {
		return Assessment{}, err
	}
	return a, nil
}
