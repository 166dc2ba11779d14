package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/matchfeed/internal/model"
)

// PutSubjects inserts or replaces subject profiles in one batch.
func (s *Store) PutSubjects(ctx context.Context, subjects []model.SubjectProfile) error {
	batch := &pgx.Batch{}
	for _, p := range subjects {
		batch.Queue(`
			INSERT INTO subjects (id, display_name, sport, division, school, followers,
			                      engagement_rate, content_styles, core_values, min_compensation)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE SET
				display_name = EXCLUDED.display_name,
				sport = EXCLUDED.sport,
				division = EXCLUDED.division,
				school = EXCLUDED.school,
				followers = EXCLUDED.followers,
				engagement_rate = EXCLUDED.engagement_rate,
				content_styles = EXCLUDED.content_styles,
				core_values = EXCLUDED.core_values,
				min_compensation = EXCLUDED.min_compensation
		`, p.ID, p.DisplayName, p.Sport, p.Division, p.School, p.Followers,
			p.EngagementRate, nonNil(p.ContentStyles), nonNil(p.Values), p.MinCompensation)
	}
	return s.sendBatch(ctx, "subjects", batch)
}

// PutCounterparties inserts or replaces counterparty profiles in one batch.
func (s *Store) PutCounterparties(ctx context.Context, counterparties []model.CounterpartyProfile) error {
	batch := &pgx.Batch{}
	for _, p := range counterparties {
		batch.Queue(`
			INSERT INTO counterparties (id, name, industry, core_values, content_styles)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				industry = EXCLUDED.industry,
				core_values = EXCLUDED.core_values,
				content_styles = EXCLUDED.content_styles
		`, p.ID, p.Name, p.Industry, nonNil(p.Values), nonNil(p.ContentStyles))
	}
	return s.sendBatch(ctx, "counterparties", batch)
}

// PutCampaigns inserts or replaces campaigns in one batch.
func (s *Store) PutCampaigns(ctx context.Context, campaigns []model.Campaign) error {
	batch := &pgx.Batch{}
	for _, c := range campaigns {
		batch.Queue(`
			INSERT INTO campaigns (id, counterparty_id, title, target_sports, target_division,
			                       ideal_followers, budget, content_styles, core_values)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				counterparty_id = EXCLUDED.counterparty_id,
				title = EXCLUDED.title,
				target_sports = EXCLUDED.target_sports,
				target_division = EXCLUDED.target_division,
				ideal_followers = EXCLUDED.ideal_followers,
				budget = EXCLUDED.budget,
				content_styles = EXCLUDED.content_styles,
				core_values = EXCLUDED.core_values
		`, c.ID, c.CounterpartyID, c.Title, nonNil(c.TargetSports), c.TargetDivision,
			c.IdealFollowers, c.Budget, nonNil(c.ContentStyles), nonNil(c.Values))
	}
	return s.sendBatch(ctx, "campaigns", batch)
}

func (s *Store) sendBatch(ctx context.Context, table string, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("write %s row %d: %w", table, i, err)
		}
	}

	s.logger.Debug("wrote batch", "table", table, "count", batch.Len())
	return nil
}
