package model

import (
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Profile Types
// -----------------------------------------------------------------------------

// SubjectProfile is the athlete side of a match.
type SubjectProfile struct {
	ID              string   // Primary key
	DisplayName     string   // Public display name
	Sport           string   // e.g. "basketball"
	Division        string   // e.g. "D1"
	School          string   // Optional
	Followers       int64    // Total social followers across platforms
	EngagementRate  float64  // Average engagement (0.0-1.0)
	ContentStyles   []string // e.g. "lifestyle", "training"
	Values          []string // e.g. "community", "sustainability"
	MinCompensation int64    // Minimum acceptable deal (cents), 0 = unspecified
}

// CounterpartyProfile is the brand side of a match.
type CounterpartyProfile struct {
	ID            string   // Primary key
	Name          string   // Brand name
	Industry      string   // e.g. "apparel"
	Values        []string // Brand values
	ContentStyles []string // Preferred content styles
}

// Campaign is a brand campaign a subject can be matched against.
type Campaign struct {
	ID             string   // Primary key
	CounterpartyID string   // Foreign key to CounterpartyProfile
	Title          string   // Display title
	TargetSports   []string // Sports the campaign is looking for
	TargetDivision string   // Empty = any division
	IdealFollowers int64    // Preferred audience size, 0 = no preference
	Budget         int64    // Per-athlete budget (cents)
	ContentStyles  []string // Requested content styles
	Values         []string // Campaign-specific values
}

// -----------------------------------------------------------------------------
// Match Types
// -----------------------------------------------------------------------------

// Dimension names one weighted component of the overall score.
type Dimension string

const (
	DimAudienceFit         Dimension = "audienceFit"
	DimContentStyleFit     Dimension = "contentStyleFit"
	DimBrandValueAlignment Dimension = "brandValueAlignment"
	DimEngagementPotential Dimension = "engagementPotential"
	DimCompensationFit     Dimension = "compensationFit"
)

// Dimensions lists every dimension in canonical order.
// Order matters: it breaks ties when picking a strongest dimension.
var Dimensions = []Dimension{
	DimAudienceFit,
	DimContentStyleFit,
	DimBrandValueAlignment,
	DimEngagementPotential,
	DimCompensationFit,
}

// Known reports whether d is one of Dimensions.
func (d Dimension) Known() bool {
	for _, k := range Dimensions {
		if d == k {
			return true
		}
	}
	return false
}

// DeliveryState tracks whether a match reached a live connection.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryUnclaimed DeliveryState = "unclaimed"
)

// ParseDeliveryState converts a stored value back into a DeliveryState.
func ParseDeliveryState(s string) (DeliveryState, error) {
	switch DeliveryState(s) {
	case DeliveryPending, DeliveryDelivered, DeliveryUnclaimed:
		return DeliveryState(s), nil
	}
	return "", fmt.Errorf("unknown delivery state %q", s)
}

// ScoreSource records who produced the dimension scores.
type ScoreSource string

const (
	ScoredByProvider ScoreSource = "provider"
	ScoredByFallback ScoreSource = "fallback"
)

// MatchKey is the idempotent upsert key of a MatchScore.
type MatchKey struct {
	SubjectID      string
	CounterpartyID string
	CampaignID     string
}

// String renders the key for logs.
func (k MatchKey) String() string {
	return k.SubjectID + "/" + k.CounterpartyID + "/" + k.CampaignID
}

// MatchScore is the computed compatibility between a subject and a campaign.
type MatchScore struct {
	ID              string            // uuid, stable across upserts of the same key
	SubjectID       string            // Athlete
	CounterpartyID  string            // Brand
	CampaignID      string            // Campaign
	OverallScore    int               // 0-100
	DimensionScores map[Dimension]int // Each 0-100
	StrengthAreas   []string          // At least one
	WeaknessAreas   []string          // May be empty
	Reason          string            // Human-readable summary
	DeliveryState   DeliveryState     // Set once per dispatch
	ScoredBy        ScoreSource       // provider or fallback
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Key returns the upsert key for the match.
func (m MatchScore) Key() MatchKey {
	return MatchKey{
		SubjectID:      m.SubjectID,
		CounterpartyID: m.CounterpartyID,
		CampaignID:     m.CampaignID,
	}
}

// Validate checks the score invariants.
func (m MatchScore) Validate() error {
	if m.OverallScore < 0 || m.OverallScore > 100 {
		return fmt.Errorf("overall score %d out of range", m.OverallScore)
	}
	for _, d := range Dimensions {
		v, ok := m.DimensionScores[d]
		if !ok {
			return fmt.Errorf("missing dimension %s", d)
		}
		if v < 0 || v > 100 {
			return fmt.Errorf("dimension %s score %d out of range", d, v)
		}
	}
	for d := range m.DimensionScores {
		if !d.Known() {
			return fmt.Errorf("unknown dimension %s", d)
		}
	}
	if len(m.StrengthAreas) == 0 {
		return fmt.Errorf("at least one strength area is required")
	}
	return nil
}
