// Package store persists source contacts, target lists, target contacts,
// contact matches and background job records.
package store

import (
	"context"

	"github.com/blueoctober14/RightImpact/internal/model"
)

// Queries defines the reads and writes the matching engine performs. The
// same set is available on the store itself and inside a transaction.
type Queries interface {
	// Source contacts
	GetSourceContact(ctx context.Context, id int64) (*model.SourceContact, error)
	MarkSourceMatched(ctx context.Context, id int64) error
	UnmatchedSourceContactIDs(ctx context.Context, userIDs []int64) ([]int64, error)
	SourceContactIDsWithoutListMatch(ctx context.Context, listID int64) ([]int64, error)

	// Target lists
	GetTargetList(ctx context.Context, id int64) (*model.TargetList, error)
	ListTargetLists(ctx context.Context) ([]model.TargetList, error)

	// Target contacts
	FindTargetContactsByPhone(ctx context.Context, listID int64, phones []string) ([]model.TargetContactSnapshot, error)
	GetTargetContact(ctx context.Context, id int64) (*model.TargetContact, error)
	MarkTargetMatched(ctx context.Context, id int64, confidence model.Confidence, score float64) error

	// Matches
	InsertMatch(ctx context.Context, m *model.ContactMatch) (bool, error)
	MatchExists(ctx context.Context, sourceID, targetID int64) (bool, error)
	GetMatchesForContact(ctx context.Context, sourceID int64) ([]model.MatchDetail, error)
}

// JobStore persists background job status records.
type JobStore interface {
	CreateJob(ctx context.Context, job *model.Job) error
	StartJob(ctx context.Context, id string) error
	CompleteJob(ctx context.Context, id string, summary *model.BatchSummary) error
	FailJob(ctx context.Context, id string, errMsg string) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, limit int) ([]model.Job, error)
}

// Store is the full persistence boundary.
type Store interface {
	Queries
	JobStore

	// RunInTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise. fn must not retain q.
	RunInTx(ctx context.Context, fn func(q Queries) error) error

	// Seeding, used by the CLI and tests. Import pipelines own these rows.
	CreateSourceContact(ctx context.Context, c *model.SourceContact) error
	CreateTargetList(ctx context.Context, l *model.TargetList) error
	CreateTargetContact(ctx context.Context, c *model.TargetContact) error

	// ImportTargetContacts bulk-loads contacts into an existing list and
	// refreshes its counters. Returns the number of rows written.
	ImportTargetContacts(ctx context.Context, listID int64, contacts []model.TargetContact) (int, error)

	// DeleteTargetContactsByVoterIDs removes target contacts by voter id,
	// optionally scoped to one list, together with their matches. List
	// totals are recounted and source contacts left without any match get
	// matched=false. Returns the number of target contacts deleted.
	DeleteTargetContactsByVoterIDs(ctx context.Context, voterIDs []string, listID *int64) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
