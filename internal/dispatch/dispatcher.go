package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/matchfeed/internal/metrics"
	"github.com/rickgao/matchfeed/internal/model"
	"github.com/rickgao/matchfeed/internal/protocol"
)

var tracer = otel.Tracer("github.com/rickgao/matchfeed/internal/dispatch")

// Dispatcher runs match creation end to end.
type Dispatcher struct {
	profiles  ProfileStore
	campaigns CampaignStore
	matches   MatchStore
	scorer    Scorer
	deliverer Deliverer
	metrics   *metrics.DispatchMetrics
	logger    *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics records dispatch latency and outcomes.
func WithMetrics(m *metrics.DispatchMetrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// New creates a Dispatcher over a single store.
func New(store Store, scorer Scorer, deliverer Deliverer, logger *slog.Logger, opts ...Option) *Dispatcher {
	return NewWithStores(store, store, store, scorer, deliverer, logger, opts...)
}

// NewWithStores creates a Dispatcher whose collaborators live in different
// stores.
func NewWithStores(
	profiles ProfileStore,
	campaigns CampaignStore,
	matches MatchStore,
	scorer Scorer,
	deliverer Deliverer,
	logger *slog.Logger,
	opts ...Option,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		profiles:  profiles,
		campaigns: campaigns,
		matches:   matches,
		scorer:    scorer,
		deliverer: deliverer,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CreateMatch scores the key, persists it and pushes a match event to the
// subject if one of their connections is live and authenticated. Calling it
// again for the same key overwrites the stored row.
func (d *Dispatcher) CreateMatch(ctx context.Context, subjectID, counterpartyID, campaignID string) (model.MatchScore, error) {
	if subjectID == "" || counterpartyID == "" || campaignID == "" {
		return model.MatchScore{}, ErrInvalidRequest
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "dispatch.CreateMatch", trace.WithAttributes(
		attribute.String("subject_id", subjectID),
		attribute.String("counterparty_id", counterpartyID),
		attribute.String("campaign_id", campaignID),
	))
	defer span.End()

	m, err := d.createMatch(ctx, subjectID, counterpartyID, campaignID)
	if err != nil {
		d.metrics.Failed()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.MatchScore{}, err
	}

	d.metrics.Observe(time.Since(start), string(m.DeliveryState), string(m.ScoredBy))
	span.SetAttributes(
		attribute.String("match_id", m.ID),
		attribute.String("delivery_state", string(m.DeliveryState)),
		attribute.Int("overall_score", m.OverallScore),
	)
	return m, nil
}

func (d *Dispatcher) createMatch(ctx context.Context, subjectID, counterpartyID, campaignID string) (model.MatchScore, error) {
	var (
		subject      model.SubjectProfile
		counterparty model.CounterpartyProfile
		campaign     model.Campaign
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		subject, err = d.profiles.GetSubject(gctx, subjectID)
		return err
	})
	g.Go(func() (err error) {
		counterparty, err = d.profiles.GetCounterparty(gctx, counterpartyID)
		return err
	})
	g.Go(func() (err error) {
		campaign, err = d.campaigns.GetCampaign(gctx, campaignID)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.MatchScore{}, fmt.Errorf("load match inputs: %w", err)
	}

	if campaign.CounterpartyID != counterpartyID {
		return model.MatchScore{}, fmt.Errorf("campaign %q owned by %q, not %q: %w",
			campaignID, campaign.CounterpartyID, counterpartyID, ErrCampaignMismatch)
	}

	score := d.scorer.ComputeScore(ctx, subject, counterparty, campaign)
	score.DeliveryState = model.DeliveryPending

	// The pending row assigns the match ID carried in the pushed event.
	stored, err := d.matches.UpsertByKey(ctx, score)
	if err != nil {
		return model.MatchScore{}, &PersistenceError{Op: "upsert match " + score.Key().String(), Err: err}
	}

	logger := d.logger.With("match_id", stored.ID, "subject_id", subjectID, "campaign_id", campaignID)

	stored.DeliveryState = model.DeliveryUnclaimed
	if connID, live := d.deliverer.LookupByIdentity(subjectID); live {
		msg := protocol.Match(matchMessage(counterparty, campaign), matchData(stored, counterparty, campaign))
		if err := d.deliverer.Send(connID, msg); err != nil {
			logger.Warn("match send failed, recording as unclaimed", "conn_id", connID, "error", err)
		} else {
			stored.DeliveryState = model.DeliveryDelivered
			logger.Debug("match delivered", "conn_id", connID)
		}
	}

	stored, err = d.matches.UpsertByKey(ctx, stored)
	if err != nil {
		return model.MatchScore{}, &PersistenceError{Op: "record delivery state of match " + score.Key().String(), Err: err}
	}

	logger.Info("match created",
		"overall_score", stored.OverallScore,
		"delivery_state", stored.DeliveryState,
		"scored_by", stored.ScoredBy,
	)
	return stored, nil
}

// ListUnclaimed returns the subject's matches that found no live connection,
// newest first. A limit <= 0 selects DefaultUnclaimedLimit.
func (d *Dispatcher) ListUnclaimed(ctx context.Context, subjectID string, limit int) ([]model.MatchScore, error) {
	if subjectID == "" {
		return nil, ErrInvalidRequest
	}
	if limit <= 0 {
		limit = DefaultUnclaimedLimit
	}
	limit = min(limit, MaxUnclaimedLimit)

	matches, err := d.matches.ListUnclaimed(ctx, subjectID, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "list unclaimed matches", Err: err}
	}
	if matches == nil {
		matches = []model.MatchScore{}
	}
	return matches, nil
}

func matchMessage(counterparty model.CounterpartyProfile, campaign model.Campaign) string {
	name := counterparty.Name
	if name == "" {
		name = counterparty.ID
	}
	if campaign.Title == "" {
		return fmt.Sprintf("New match with %s", name)
	}
	return fmt.Sprintf("New match with %s: %s", name, campaign.Title)
}

func matchData(m model.MatchScore, counterparty model.CounterpartyProfile, campaign model.Campaign) protocol.MatchData {
	dims := make(map[string]int, len(m.DimensionScores))
	for d, v := range m.DimensionScores {
		dims[string(d)] = v
	}
	weaknesses := m.WeaknessAreas
	if weaknesses == nil {
		weaknesses = []string{}
	}

	return protocol.MatchData{
		MatchID:         m.ID,
		OverallScore:    m.OverallScore,
		DimensionScores: dims,
		StrengthAreas:   m.StrengthAreas,
		WeaknessAreas:   weaknesses,
		Reason:          m.Reason,
		Campaign: protocol.CampaignRef{
			ID:     campaign.ID,
			Title:  campaign.Title,
			Budget: campaign.Budget,
		},
		Counterparty: protocol.CounterpartRef{
			ID:       counterparty.ID,
			Name:     counterparty.Name,
			Industry: counterparty.Industry,
		},
		CreatedAt: m.CreatedAt,
	}
}
