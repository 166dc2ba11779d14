package api

// ScoreRequest is the body of POST /v1/match-scores.
type ScoreRequest struct {
	Subject      APISubject      `json:"subject"`
	Counterparty APICounterparty `json:"counterparty"`
	Campaign     APICampaign     `json:"campaign"`
}

// APISubject is the athlete profile as sent to the provider.
type APISubject struct {
	ID              string   `json:"id"`
	DisplayName     string   `json:"display_name"`
	Sport           string   `json:"sport"`
	Division        string   `json:"division,omitempty"`
	School          string   `json:"school,omitempty"`
	Followers       int64    `json:"followers"`
	EngagementRate  float64  `json:"engagement_rate"`
	ContentStyles   []string `json:"content_styles"`
	Values          []string `json:"values"`
	MinCompensation int64    `json:"min_compensation_cents"`
}

// APICounterparty is the brand profile as sent to the provider.
type APICounterparty struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Industry      string   `json:"industry,omitempty"`
	Values        []string `json:"values"`
	ContentStyles []string `json:"content_styles"`
}

// APICampaign is the campaign as sent to the provider.
type APICampaign struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	TargetSports   []string `json:"target_sports"`
	TargetDivision string   `json:"target_division,omitempty"`
	IdealFollowers int64    `json:"ideal_followers"`
	Budget         int64    `json:"budget_cents"`
	ContentStyles  []string `json:"content_styles"`
	Values         []string `json:"values"`
}

// ScoreResponse is the provider's assessment.
type ScoreResponse struct {
	DimensionScores map[string]int `json:"dimension_scores"`
	StrengthAreas   []string       `json:"strength_areas"`
	WeaknessAreas   []string       `json:"weakness_areas"`
	Reason          string         `json:"reason"`
}
