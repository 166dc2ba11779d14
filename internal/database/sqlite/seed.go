package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rickgao/matchfeed/internal/model"
)

// PutSubjects inserts or replaces subject profiles in one transaction.
func (s *Store) PutSubjects(ctx context.Context, subjects []model.SubjectProfile) error {
	return s.inTx(ctx, "subjects", func(tx *sql.Tx) error {
		for _, p := range subjects {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO subjects (id, display_name, sport, division, school, followers,
				                                 engagement_rate, content_styles, core_values, min_compensation)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, p.ID, p.DisplayName, p.Sport, p.Division, p.School, p.Followers,
				p.EngagementRate, encodeList(p.ContentStyles), encodeList(p.Values), p.MinCompensation,
			); err != nil {
				return fmt.Errorf("subject %q: %w", p.ID, err)
			}
		}
		return nil
	})
}

// PutCounterparties inserts or replaces counterparty profiles in one transaction.
func (s *Store) PutCounterparties(ctx context.Context, counterparties []model.CounterpartyProfile) error {
	return s.inTx(ctx, "counterparties", func(tx *sql.Tx) error {
		for _, p := range counterparties {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO counterparties (id, name, industry, core_values, content_styles)
				VALUES (?, ?, ?, ?, ?)
			`, p.ID, p.Name, p.Industry, encodeList(p.Values), encodeList(p.ContentStyles)); err != nil {
				return fmt.Errorf("counterparty %q: %w", p.ID, err)
			}
		}
		return nil
	})
}

// PutCampaigns inserts or replaces campaigns in one transaction.
func (s *Store) PutCampaigns(ctx context.Context, campaigns []model.Campaign) error {
	return s.inTx(ctx, "campaigns", func(tx *sql.Tx) error {
		for _, c := range campaigns {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO campaigns (id, counterparty_id, title, target_sports, target_division,
				                                  ideal_followers, budget, content_styles, core_values)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, c.ID, c.CounterpartyID, c.Title, encodeList(c.TargetSports), c.TargetDivision,
				c.IdealFollowers, c.Budget, encodeList(c.ContentStyles), encodeList(c.Values),
			); err != nil {
				return fmt.Errorf("campaign %q: %w", c.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, table string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s write: %w", table, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("write %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s write: %w", table, err)
	}
	s.logger.Debug("wrote rows", "table", table)
	return nil
}
