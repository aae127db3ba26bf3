package model

import "time"

type JobStatus string

const (
	JobStatusPending     JobStatus = "PENDING"
	JobStatusProcessing  JobStatus = "PROCESSING"
	JobStatusNeedsReview JobStatus = "NEEDS_REVIEW"
	JobStatusCompleted   JobStatus = "COMPLETED"
	JobStatusFailed      JobStatus = "FAILED"
)

type Job struct {
	ID               int64      `json:"id" db:"job_id"`
	UserID           string     `json:"user_id" db:"job_user_id"`
	OriginalFilename string     `json:"original_filename" db:"job_original_filename"`
	S3ObjectKey      string     `json:"s3_object_key" db:"job_s3_object_key"`
	Status           JobStatus  `json:"status" db:"job_status"`
	TotalRows        int        `json:"total_rows" db:"job_total_rows"`
	ProcessedRows    int        `json:"processed_rows" db:"job_processed_rows"`
	IssueCount       int        `json:"issue_count" db:"job_issue_count"`
	ProcessStart     *time.Time `json:"process_start,omitempty" db:"job_process_start"`
	ProcessEnd       *time.Time `json:"process_end,omitempty" db:"job_process_end"`
	CreatedAt        time.Time  `json:"created_at" db:"job_created_at"`
}
