package model

import "time"

// JobKind names a background matching operation.
type JobKind string

const (
	JobKindNewContacts JobKind = "match_new_contacts"
	JobKindTargetList  JobKind = "match_target_list"
)

// JobStatus is the lifecycle state of a background job.
type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
	JobStatusFailed   JobStatus = "failed"
)

// JobParams carries the inputs of a background job.
type JobParams struct {
	SourceContactIDs []int64 `json:"source_contact_ids,omitempty"`
	UserIDs          []int64 `json:"user_ids,omitempty"`
	TargetListIDs    []int64 `json:"target_list_ids,omitempty"`
	TargetListID     int64   `json:"target_list_id,omitempty"`
}

// Job is the pollable status record of a background matching job.
type Job struct {
	ID          string        `json:"id"`
	Kind        JobKind       `json:"kind"`
	Status      JobStatus     `json:"status"`
	Params      JobParams     `json:"params"`
	Summary     *BatchSummary `json:"summary,omitempty"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// BatchSummary is the best-effort result of a batch matching run.
type BatchSummary struct {
	ProcessedContacts int      `json:"processed_contacts" yaml:"processed_contacts"`
	TotalContacts     int      `json:"total_contacts" yaml:"total_contacts"`
	MatchesCreated    int      `json:"matches_created" yaml:"matches_created"`
	TargetListIDs     []int64  `json:"lists_matched,omitempty" yaml:"lists_matched,omitempty"`
	Errors            []string `json:"errors,omitempty" yaml:"errors,omitempty"`
	Success           bool     `json:"success" yaml:"success"`
	Message           string   `json:"message,omitempty" yaml:"message,omitempty"`
}
