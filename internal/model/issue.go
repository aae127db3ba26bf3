package model

import "time"

type IssueKind string

const (
	IssueKindMissingRequiredField IssueKind = "MISSING_REQUIRED_FIELD"
	IssueKindInvalidEmail         IssueKind = "INVALID_EMAIL"
	IssueKindDuplicateEmail       IssueKind = "DUPLICATE_EMAIL"
	IssueKindExistingEmail        IssueKind = "EXISTING_EMAIL"
)

// Issue is a validation problem scoped to a job. A single issue may be
// shared by several staging rows (e.g. every row carrying the same
// duplicated email links to one DUPLICATE_EMAIL issue).
type Issue struct {
	ID                int64      `json:"id" db:"issue_id"`
	JobID             int64      `json:"job_id" db:"issues_job_id"`
	Kind              IssueKind  `json:"kind" db:"issue_type"`
	Key               string     `json:"key" db:"issue_key"`
	Resolved          bool       `json:"resolved" db:"issue_resolved"`
	Description       string     `json:"description" db:"issue_description"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty" db:"issue_resolved_at"`
	ResolvedBy        *string    `json:"resolved_by,omitempty" db:"issue_resolved_by"`
	ResolutionComment *string    `json:"resolution_comment,omitempty" db:"issue_resolution_comment"`
	CreatedAt         time.Time  `json:"created_at" db:"issue_created_at"`
}

// IssueItem links one issue to one staging row. Links are only ever
// created; resolution history is preserved by leaving them in place.
type IssueItem struct {
	ID        int64 `json:"id" db:"issue_item_id"`
	IssueID   int64 `json:"issue_id" db:"item_issue_id"`
	StagingID int64 `json:"staging_id" db:"item_staging_id"`
}
