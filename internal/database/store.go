package database

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/matchfeed/internal/model"
)

//go:embed schema.sql
var schemaSQL string

const matchColumns = `id, subject_id, counterparty_id, campaign_id, overall_score, dimension_scores,
	strength_areas, weakness_areas, reason, delivery_state, scored_by, created_at, updated_at`

// Store reads profiles and persists match scores in Postgres.
type Store struct {
	db     *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the timestamp source for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New wraps an existing pool.
func New(db *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSchema creates missing tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping verifies the pool is healthy.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// GetSubject loads one subject profile.
func (s *Store) GetSubject(ctx context.Context, id string) (model.SubjectProfile, error) {
	var p model.SubjectProfile
	err := s.db.QueryRow(ctx, `
		SELECT id, display_name, sport, division, school, followers, engagement_rate,
		       content_styles, core_values, min_compensation
		FROM subjects WHERE id = $1
	`, id).Scan(
		&p.ID, &p.DisplayName, &p.Sport, &p.Division, &p.School, &p.Followers,
		&p.EngagementRate, &p.ContentStyles, &p.Values, &p.MinCompensation,
	)
	if err != nil {
		return model.SubjectProfile{}, notFound(err, "subject", id)
	}
	return p, nil
}

// GetCounterparty loads one counterparty profile.
func (s *Store) GetCounterparty(ctx context.Context, id string) (model.CounterpartyProfile, error) {
	var p model.CounterpartyProfile
	err := s.db.QueryRow(ctx, `
		SELECT id, name, industry, core_values, content_styles
		FROM counterparties WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Industry, &p.Values, &p.ContentStyles)
	if err != nil {
		return model.CounterpartyProfile{}, notFound(err, "counterparty", id)
	}
	return p, nil
}

// GetCampaign loads one campaign.
func (s *Store) GetCampaign(ctx context.Context, id string) (model.Campaign, error) {
	var c model.Campaign
	err := s.db.QueryRow(ctx, `
		SELECT id, counterparty_id, title, target_sports, target_division, ideal_followers,
		       budget, content_styles, core_values
		FROM campaigns WHERE id = $1
	`, id).Scan(
		&c.ID, &c.CounterpartyID, &c.Title, &c.TargetSports, &c.TargetDivision,
		&c.IdealFollowers, &c.Budget, &c.ContentStyles, &c.Values,
	)
	if err != nil {
		return model.Campaign{}, notFound(err, "campaign", id)
	}
	return c, nil
}

// UpsertByKey inserts m or overwrites the row with the same
// (subject, counterparty, campaign) key. The stored ID and created_at of an
// existing row are kept and returned.
func (s *Store) UpsertByKey(ctx context.Context, m model.MatchScore) (model.MatchScore, error) {
	if err := m.Validate(); err != nil {
		return model.MatchScore{}, fmt.Errorf("invalid match: %w", err)
	}
	dims, err := json.Marshal(m.DimensionScores)
	if err != nil {
		return model.MatchScore{}, fmt.Errorf("encode dimension scores: %w", err)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := s.now().UTC()

	err = s.db.QueryRow(ctx, `
		INSERT INTO match_scores (`+matchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT (subject_id, counterparty_id, campaign_id) DO UPDATE SET
			overall_score    = EXCLUDED.overall_score,
			dimension_scores = EXCLUDED.dimension_scores,
			strength_areas   = EXCLUDED.strength_areas,
			weakness_areas   = EXCLUDED.weakness_areas,
			reason           = EXCLUDED.reason,
			delivery_state   = EXCLUDED.delivery_state,
			scored_by        = EXCLUDED.scored_by,
			updated_at       = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`,
		m.ID, m.SubjectID, m.CounterpartyID, m.CampaignID, m.OverallScore, dims,
		nonNil(m.StrengthAreas), nonNil(m.WeaknessAreas), m.Reason,
		string(m.DeliveryState), string(m.ScoredBy), now,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return model.MatchScore{}, fmt.Errorf("upsert match %s: %w", m.Key(), err)
	}

	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	s.logger.Debug("upserted match", "match_id", m.ID, "key", m.Key().String())
	return m, nil
}

// ListUnclaimed returns the subject's unclaimed matches, newest first.
func (s *Store) ListUnclaimed(ctx context.Context, subjectID string, limit int) ([]model.MatchScore, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+matchColumns+`
		FROM match_scores
		WHERE subject_id = $1 AND delivery_state = $2
		ORDER BY created_at DESC, id
		LIMIT $3
	`, subjectID, string(model.DeliveryUnclaimed), limit)
	if err != nil {
		return nil, fmt.Errorf("query unclaimed: %w", err)
	}
	defer rows.Close()

	var out []model.MatchScore
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unclaimed: %w", err)
	}
	return out, nil
}

func scanMatch(row pgx.Row) (model.MatchScore, error) {
	var (
		m        model.MatchScore
		dims     []byte
		state    string
		scoredBy string
	)
	err := row.Scan(
		&m.ID, &m.SubjectID, &m.CounterpartyID, &m.CampaignID, &m.OverallScore, &dims,
		&m.StrengthAreas, &m.WeaknessAreas, &m.Reason, &state, &scoredBy,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return model.MatchScore{}, fmt.Errorf("scan match: %w", err)
	}
	if err := json.Unmarshal(dims, &m.DimensionScores); err != nil {
		return model.MatchScore{}, fmt.Errorf("decode dimension scores: %w", err)
	}
	if m.DeliveryState, err = model.ParseDeliveryState(state); err != nil {
		return model.MatchScore{}, err
	}
	m.ScoredBy = model.ScoreSource(scoredBy)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m, nil
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %q: %w", kind, id, model.ErrNotFound)
	}
	return fmt.Errorf("load %s %q: %w", kind, id, err)
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
