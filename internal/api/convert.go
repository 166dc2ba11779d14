package api

import (
	"github.com/rickgao/matchfeed/internal/model"
	"github.com/rickgao/matchfeed/internal/scoring"
)

// NewScoreRequest builds the provider request from domain types.
func NewScoreRequest(s model.SubjectProfile, cp model.CounterpartyProfile, c model.Campaign) ScoreRequest {
	return ScoreRequest{
		Subject: APISubject{
			ID:              s.ID,
			DisplayName:     s.DisplayName,
			Sport:           s.Sport,
			Division:        s.Division,
			School:          s.School,
			Followers:       s.Followers,
			EngagementRate:  s.EngagementRate,
			ContentStyles:   nonNil(s.ContentStyles),
			Values:          nonNil(s.Values),
			MinCompensation: s.MinCompensation,
		},
		Counterparty: APICounterparty{
			ID:            cp.ID,
			Name:          cp.Name,
			Industry:      cp.Industry,
			Values:        nonNil(cp.Values),
			ContentStyles: nonNil(cp.ContentStyles),
		},
		Campaign: APICampaign{
			ID:             c.ID,
			Title:          c.Title,
			TargetSports:   nonNil(c.TargetSports),
			TargetDivision: c.TargetDivision,
			IdealFollowers: c.IdealFollowers,
			Budget:         c.Budget,
			ContentStyles:  nonNil(c.ContentStyles),
			Values:         nonNil(c.Values),
		},
	}
}

// ToAssessment converts the response to a scoring.Assessment. Validation is
// left to the scoring engine.
func (r *ScoreResponse) ToAssessment() scoring.Assessment {
	dims := make(map[model.Dimension]int, len(r.DimensionScores))
	for k, v := range r.DimensionScores {
		dims[model.Dimension(k)] = v
	}
	return scoring.Assessment{
		DimensionScores: dims,
		StrengthAreas:   r.StrengthAreas,
		WeaknessAreas:   r.WeaknessAreas,
		Reason:          r.Reason,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
