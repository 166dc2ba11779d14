package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/rickgao/matchfeed/internal/model"
)

const (
	// fallbackCap keeps heuristic scores from claiming a perfect match.
	fallbackCap = 95

	strengthThreshold = 70
	weaknessThreshold = 50

	// lowConfidenceSpread is the population standard deviation across the
	// five scaled dimensions above which the heuristic flags itself.
	lowConfidenceSpread = 15.0

	lowConfidenceNote = "low confidence: heuristic scoring disagreed across dimensions"
)

// fallbackAssessment scores a match from profile data alone. It is
// deterministic: identical inputs give identical output.
func fallbackAssessment(subject model.SubjectProfile, counterparty model.CounterpartyProfile, campaign model.Campaign) Assessment {
	raw := map[model.Dimension]float64{
		model.DimAudienceFit:         audienceFit(subject, campaign),
		model.DimContentStyleFit:     0.5 + 0.4*jaccard(subject.ContentStyles, campaign.ContentStyles),
		model.DimBrandValueAlignment: 0.5 + 0.4*jaccard(subject.Values, union(counterparty.Values, campaign.Values)),
		model.DimEngagementPotential: 0.5 + engagementBonus(subject.Followers, campaign.IdealFollowers),
		model.DimCompensationFit:     compensationFit(campaign.Budget, subject.MinCompensation),
	}

	scores := make(map[model.Dimension]int, len(raw))
	for d, v := range raw {
		scores[d] = int(math.Round(clampUnit(v) * 100))
	}

	var strengths, weaknesses []string
	best := model.Dimensions[0]
	for _, d := range model.Dimensions {
		if scores[d] > scores[best] {
			best = d
		}
		if scores[d] >= strengthThreshold {
			strengths = append(strengths, string(d))
		}
		if scores[d] < weaknessThreshold {
			weaknesses = append(weaknesses, string(d))
		}
	}
	if len(strengths) == 0 {
		strengths = []string{string(best)}
	}
	if spread(scores) > lowConfidenceSpread {
		weaknesses = append(weaknesses, lowConfidenceNote)
	}

	return Assessment{
		DimensionScores: scores,
		StrengthAreas:   strengths,
		WeaknessAreas:   weaknesses,
		Reason:          fmt.Sprintf("Scored by the built-in heuristic; strongest dimension is %s.", best),
	}
}

func audienceFit(subject model.SubjectProfile, campaign model.Campaign) float64 {
	v := 0.5
	if fold(campaign.TargetSports)[strings.ToLower(strings.TrimSpace(subject.Sport))] {
		v += 0.2
	}
	if campaign.TargetDivision != "" && strings.EqualFold(campaign.TargetDivision, subject.Division) {
		v += 0.1
	}
	return v
}

// engagementBonus peaks at 0.15 when actual equals ideal and decays
// linearly to zero at twice the distance of ideal.
func engagementBonus(actual, ideal int64) float64 {
	if ideal <= 0 {
		return 0
	}
	diff := math.Abs(float64(actual - ideal))
	return math.Max(0, 0.15*(1-diff/float64(ideal)))
}

func compensationFit(budget, minimum int64) float64 {
	if minimum <= 0 {
		return 0.6
	}
	ratio := float64(budget) / float64(minimum)
	if ratio >= 1 {
		return 0.8 + math.Min(0.2, 0.1*(ratio-1))
	}
	return 0.8 * ratio
}

// jaccard is |a∩b| / |a∪b| over case-folded values. Two empty sets score 0.
func jaccard(a, b []string) float64 {
	setA, setB := fold(a), fold(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	inter := 0
	for k := range setA {
		if setB[k] {
			inter++
		}
	}
	return float64(inter) / float64(len(setA)+len(setB)-inter)
}

func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func fold(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = true
		}
	}
	return set
}

// spread is the population standard deviation of the dimension scores.
func spread(scores map[model.Dimension]int) float64 {
	n := float64(len(model.Dimensions))
	mean := 0.0
	for _, d := range model.Dimensions {
		mean += float64(scores[d])
	}
	mean /= n

	variance := 0.0
	for _, d := range model.Dimensions {
		diff := float64(scores[d]) - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / n)
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
