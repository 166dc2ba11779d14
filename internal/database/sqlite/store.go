// Package sqlite provides a SQLite-backed match store for local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rickgao/matchfeed/internal/database/sqlite/migrations"
	"github.com/rickgao/matchfeed/internal/model"
)

const matchColumns = `id, subject_id, counterparty_id, campaign_id, overall_score, dimension_scores,
	strength_areas, weakness_areas, reason, delivery_state, scored_by, created_at, updated_at`

// Store persists profiles and match scores in a SQLite file.
type Store struct {
	db     *sql.DB
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

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Open opens the database at path and applies the embedded migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{
		db:     db,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ping verifies the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GetSubject loads one subject profile.
func (s *Store) GetSubject(ctx context.Context, id string) (model.SubjectProfile, error) {
	var (
		p              model.SubjectProfile
		styles, values string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, sport, division, school, followers, engagement_rate,
		       content_styles, core_values, min_compensation
		FROM subjects WHERE id = ?
	`, id).Scan(
		&p.ID, &p.DisplayName, &p.Sport, &p.Division, &p.School, &p.Followers,
		&p.EngagementRate, &styles, &values, &p.MinCompensation,
	)
	if err != nil {
		return model.SubjectProfile{}, notFound(err, "subject", id)
	}
	if err := errors.Join(decodeList(styles, &p.ContentStyles), decodeList(values, &p.Values)); err != nil {
		return model.SubjectProfile{}, fmt.Errorf("subject %q: %w", id, err)
	}
	return p, nil
}

// GetCounterparty loads one counterparty profile.
func (s *Store) GetCounterparty(ctx context.Context, id string) (model.CounterpartyProfile, error) {
	var (
		p              model.CounterpartyProfile
		values, styles string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, industry, core_values, content_styles
		FROM counterparties WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Industry, &values, &styles)
	if err != nil {
		return model.CounterpartyProfile{}, notFound(err, "counterparty", id)
	}
	if err := errors.Join(decodeList(values, &p.Values), decodeList(styles, &p.ContentStyles)); err != nil {
		return model.CounterpartyProfile{}, fmt.Errorf("counterparty %q: %w", id, err)
	}
	return p, nil
}

// GetCampaign loads one campaign.
func (s *Store) GetCampaign(ctx context.Context, id string) (model.Campaign, error) {
	var (
		c                      model.Campaign
		sports, styles, values string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, counterparty_id, title, target_sports, target_division, ideal_followers,
		       budget, content_styles, core_values
		FROM campaigns WHERE id = ?
	`, id).Scan(
		&c.ID, &c.CounterpartyID, &c.Title, &sports, &c.TargetDivision,
		&c.IdealFollowers, &c.Budget, &styles, &values,
	)
	if err != nil {
		return model.Campaign{}, notFound(err, "campaign", id)
	}
	if err := errors.Join(
		decodeList(sports, &c.TargetSports),
		decodeList(styles, &c.ContentStyles),
		decodeList(values, &c.Values),
	); err != nil {
		return model.Campaign{}, fmt.Errorf("campaign %q: %w", id, err)
	}
	return c, nil
}

// UpsertByKey inserts m or overwrites the row with the same
// (subject, counterparty, campaign) key, keeping the stored ID and created_at.
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
	now := toMillis(s.now())

	var createdAt, updatedAt int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO match_scores (`+matchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (subject_id, counterparty_id, campaign_id) DO UPDATE SET
			overall_score    = excluded.overall_score,
			dimension_scores = excluded.dimension_scores,
			strength_areas   = excluded.strength_areas,
			weakness_areas   = excluded.weakness_areas,
			reason           = excluded.reason,
			delivery_state   = excluded.delivery_state,
			scored_by        = excluded.scored_by,
			updated_at       = excluded.updated_at
		RETURNING id, created_at, updated_at
	`,
		m.ID, m.SubjectID, m.CounterpartyID, m.CampaignID, m.OverallScore, string(dims),
		encodeList(m.StrengthAreas), encodeList(m.WeaknessAreas), m.Reason,
		string(m.DeliveryState), string(m.ScoredBy), now, now,
	).Scan(&m.ID, &createdAt, &updatedAt)
	if err != nil {
		return model.MatchScore{}, fmt.Errorf("upsert match %s: %w", m.Key(), err)
	}

	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)
	s.logger.Debug("upserted match", "match_id", m.ID, "key", m.Key().String())
	return m, nil
}

// ListUnclaimed returns the subject's unclaimed matches, newest first.
func (s *Store) ListUnclaimed(ctx context.Context, subjectID string, limit int) ([]model.MatchScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+matchColumns+`
		FROM match_scores
		WHERE subject_id = ? AND delivery_state = ?
		ORDER BY created_at DESC, id
		LIMIT ?
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

func scanMatch(rows *sql.Rows) (model.MatchScore, error) {
	var (
		m                           model.MatchScore
		dims, strengths, weaknesses string
		state, scoredBy             string
		createdAt, updatedAt        int64
	)
	err := rows.Scan(
		&m.ID, &m.SubjectID, &m.CounterpartyID, &m.CampaignID, &m.OverallScore, &dims,
		&strengths, &weaknesses, &m.Reason, &state, &scoredBy, &createdAt, &updatedAt,
	)
	if err != nil {
		return model.MatchScore{}, fmt.Errorf("scan match: %w", err)
	}
	if err := json.Unmarshal([]byte(dims), &m.DimensionScores); err != nil {
		return model.MatchScore{}, fmt.Errorf("decode dimension scores: %w", err)
	}
	if err := errors.Join(decodeList(strengths, &m.StrengthAreas), decodeList(weaknesses, &m.WeaknessAreas)); err != nil {
		return model.MatchScore{}, err
	}
	if m.DeliveryState, err = model.ParseDeliveryState(state); err != nil {
		return model.MatchScore{}, err
	}
	m.ScoredBy = model.ScoreSource(scoredBy)
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)
	return m, nil
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %q: %w", kind, id, model.ErrNotFound)
	}
	return fmt.Errorf("load %s %q: %w", kind, id, err)
}

func encodeList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(v)
	return string(data)
}

func decodeList(raw string, dst *[]string) error {
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode list: %w", err)
	}
	return nil
}
