package model

import "time"

type StagingStatus string

const (
	StagingStatusReady   StagingStatus = "READY"
	StagingStatusIssue   StagingStatus = "ISSUE"
	StagingStatusDiscard StagingStatus = "DISCARD"
	StagingStatusSuccess StagingStatus = "SUCCESS"
)

// IsTerminal reports whether reprocessing must leave the row untouched.
func (s StagingStatus) IsTerminal() bool {
	return s == StagingStatusDiscard || s == StagingStatusSuccess
}

type StagingRow struct {
	ID        int64         `json:"id" db:"staging_id"`
	JobID     int64         `json:"job_id" db:"staging_job_id"`
	RowNumber int           `json:"row_number" db:"staging_row_number"`
	Email     string        `json:"email" db:"staging_email"`
	FirstName string        `json:"first_name" db:"staging_first_name"`
	LastName  string        `json:"last_name" db:"staging_last_name"`
	Company   string        `json:"company" db:"staging_company"`
	RowHash   string        `json:"row_hash" db:"staging_row_hash"`
	Status    StagingStatus `json:"status" db:"staging_status"`
	CreatedAt time.Time     `json:"created_at" db:"staging_created_at"`
}

// ContactRow is one parsed row from an uploaded file, before staging.
type ContactRow struct {
	RowNumber int    `json:"row_number"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
}
