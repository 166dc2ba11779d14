package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/rickgao/matchfeed/internal/model"
	"github.com/rickgao/matchfeed/internal/scoring"
)

// Score asks the provider to assess one candidate match. It implements
// scoring.Provider.
func (c *Client) Score(ctx context.Context, s model.SubjectProfile, cp model.CounterpartyProfile, camp model.Campaign) (scoring.Assessment, error) {
	var resp ScoreResponse
	err := c.post(ctx, ScorePath, NewScoreRequest(s, cp, camp), &resp)
	if err != nil {
		if errors.Is(err, errDecode) {
			return scoring.Assessment{}, fmt.Errorf("%w: %v", scoring.ErrInvalidAssessment, err)
		}
		return scoring.Assessment{}, err
	}

	c.logger.Debug("provider scored match",
		"subject_id", s.ID,
		"campaign_id", camp.ID,
	)
	return resp.ToAssessment(), nil
}
