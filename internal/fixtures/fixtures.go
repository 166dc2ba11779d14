// Package fixtures loads profile and campaign data from YAML for local
// development and demos (`matchd seed`).
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rickgao/matchfeed/internal/model"
)

// Writer accepts profile data. Both match stores implement it.
type Writer interface {
	PutSubjects(ctx context.Context, subjects []model.SubjectProfile) error
	PutCounterparties(ctx context.Context, counterparties []model.CounterpartyProfile) error
	PutCampaigns(ctx context.Context, campaigns []model.Campaign) error
}

// Set is the decoded content of a fixtures file.
type Set struct {
	Subjects       []Subject      `yaml:"subjects"`
	Counterparties []Counterparty `yaml:"counterparties"`
	Campaigns      []Campaign     `yaml:"campaigns"`
}

// Subject is the YAML form of model.SubjectProfile.
type Subject struct {
	ID              string   `yaml:"id"`
	DisplayName     string   `yaml:"display_name"`
	Sport           string   `yaml:"sport"`
	Division        string   `yaml:"division"`
	School          string   `yaml:"school"`
	Followers       int64    `yaml:"followers"`
	EngagementRate  float64  `yaml:"engagement_rate"`
	ContentStyles   []string `yaml:"content_styles"`
	Values          []string `yaml:"values"`
	MinCompensation int64    `yaml:"min_compensation"`
}

// Counterparty is the YAML form of model.CounterpartyProfile.
type Counterparty struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Industry      string   `yaml:"industry"`
	Values        []string `yaml:"values"`
	ContentStyles []string `yaml:"content_styles"`
}

// Campaign is the YAML form of model.Campaign.
type Campaign struct {
	ID             string   `yaml:"id"`
	CounterpartyID string   `yaml:"counterparty_id"`
	Title          string   `yaml:"title"`
	TargetSports   []string `yaml:"target_sports"`
	TargetDivision string   `yaml:"target_division"`
	IdealFollowers int64    `yaml:"ideal_followers"`
	Budget         int64    `yaml:"budget"`
	ContentStyles  []string `yaml:"content_styles"`
	Values         []string `yaml:"values"`
}

// Load reads and validates a fixtures file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates fixtures YAML.
func Parse(data []byte) (*Set, error) {
	var s Set
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse fixtures yaml: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks ids are present and unique, and every campaign points at
// a counterparty in the set.
func (s *Set) Validate() error {
	var errs []error

	seen := make(map[string]bool)
	check := func(kind, id string) {
		switch {
		case id == "":
			errs = append(errs, fmt.Errorf("%s: id is required", kind))
		case seen[kind+"/"+id]:
			errs = append(errs, fmt.Errorf("%s %q: duplicate id", kind, id))
		}
		seen[kind+"/"+id] = true
	}

	for _, p := range s.Subjects {
		check("subject", p.ID)
	}
	for _, p := range s.Counterparties {
		check("counterparty", p.ID)
	}
	for _, c := range s.Campaigns {
		check("campaign", c.ID)
		if !seen["counterparty/"+c.CounterpartyID] {
			errs = append(errs, fmt.Errorf("campaign %q: unknown counterparty %q", c.ID, c.CounterpartyID))
		}
	}
	return errors.Join(errs...)
}

// Apply writes the set through w: counterparties, then campaigns, then
// subjects.
func (s *Set) Apply(ctx context.Context, w Writer) error {
	counterparties := make([]model.CounterpartyProfile, 0, len(s.Counterparties))
	for _, p := range s.Counterparties {
		counterparties = append(counterparties, model.CounterpartyProfile(p))
	}
	campaigns := make([]model.Campaign, 0, len(s.Campaigns))
	for _, c := range s.Campaigns {
		campaigns = append(campaigns, model.Campaign(c))
	}
	subjects := make([]model.SubjectProfile, 0, len(s.Subjects))
	for _, p := range s.Subjects {
		subjects = append(subjects, model.SubjectProfile(p))
	}

	if err := w.PutCounterparties(ctx, counterparties); err != nil {
		return err
	}
	if err := w.PutCampaigns(ctx, campaigns); err != nil {
		return err
	}
	return w.PutSubjects(ctx, subjects)
}
