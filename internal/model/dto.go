package model

import "time"

// IngestionMessage is the work item carried on the ingestion queue.
type IngestionMessage struct {
	JobID int64  `json:"job_id"`
	S3Key string `json:"s3_key"`
}

// ReprocessMessage asks the worker to re-validate a job's staging rows.
type ReprocessMessage struct {
	JobID int64 `json:"job_id"`
}

// JobStatusResponse is the polled view of a job exposed by the API.
type JobStatusResponse struct {
	JobID            int64     `json:"job_id"`
	Status           string    `json:"status"`
	TotalRows        int       `json:"total_rows"`
	ProcessedRows    int       `json:"processed_rows"`
	UnresolvedIssues int       `json:"unresolved_issues"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// UploadResponse is returned after a file submission is accepted.
type UploadResponse struct {
	JobID    int64  `json:"job_id"`
	Filename string `json:"filename"`
	S3Key    string `json:"s3_key"`
	Status   string `json:"status"`
}
