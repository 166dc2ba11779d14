package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rickgao/matchfeed/internal/model"
	"github.com/rickgao/matchfeed/internal/protocol"
)

// Errors
var (
	ErrNotFound         = model.ErrNotFound
	ErrCampaignMismatch = errors.New("campaign does not belong to counterparty")
	ErrInvalidRequest   = errors.New("subject, counterparty and campaign ids are required")
)

// PersistenceError wraps a failed match write or read. The caller should
// retry the whole operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ProfileStore loads both sides of a match.
type ProfileStore interface {
	GetSubject(ctx context.Context, id string) (model.SubjectProfile, error)
	GetCounterparty(ctx context.Context, id string) (model.CounterpartyProfile, error)
}

// CampaignStore loads campaigns.
type CampaignStore interface {
	GetCampaign(ctx context.Context, id string) (model.Campaign, error)
}

// MatchStore persists match scores keyed by (subject, counterparty, campaign).
type MatchStore interface {
	UpsertByKey(ctx context.Context, m model.MatchScore) (model.MatchScore, error)
	ListUnclaimed(ctx context.Context, subjectID string, limit int) ([]model.MatchScore, error)
}

// Store is everything the dispatcher reads and writes. Both the Postgres and
// SQLite stores implement it.
type Store interface {
	ProfileStore
	CampaignStore
	MatchStore
}

// Scorer computes an unpersisted match score. It must not fail.
type Scorer interface {
	ComputeScore(ctx context.Context, subject model.SubjectProfile, counterparty model.CounterpartyProfile, campaign model.Campaign) model.MatchScore
}

// Deliverer finds and writes to a subject's live connection.
type Deliverer interface {
	// LookupByIdentity returns an authenticated connection bound to identity.
	LookupByIdentity(identity string) (string, bool)
	Send(id string, msg protocol.ServerMessage) error
}

const (
	DefaultUnclaimedLimit = 50
	MaxUnclaimedLimit     = 500
)
