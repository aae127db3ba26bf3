package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"contact-ingestion-db/internal/model"
	apperrors "contact-ingestion-db/pkg/errors"
)

type Repository interface {
	// Jobs
	CreateJob(ctx context.Context, job *model.Job) (int64, error)
	GetJob(ctx context.Context, jobID int64) (*model.Job, error)
	UpdateJobStatus(ctx context.Context, jobID int64, status model.JobStatus, processStart, processEnd *time.Time) error
	UpdateJobCounters(ctx context.Context, jobID int64, totalRows, processedRows, issueCount *int) error

	// Staging
	HasStagingRows(ctx context.Context, jobID int64) (bool, error)
	GetStagingRows(ctx context.Context, jobID int64) ([]model.StagingRow, error)
	GetStagingRow(ctx context.Context, stagingID int64) (*model.StagingRow, error)
	GetStagingRowHashes(ctx context.Context, jobID int64) (map[string]struct{}, error)
	// InsertStagingRow returns inserted=false when the (job, hash) unique
	// key already holds the row. That is the idempotency backstop, not an
	// error.
	InsertStagingRow(ctx context.Context, row *model.StagingRow) (id int64, inserted bool, err error)
	UpdateStagingStatus(ctx context.Context, stagingID int64, status model.StagingStatus) error

	// Issues
	GetOrCreateIssue(ctx context.Context, jobID int64, kind model.IssueKind, key, description string) (*model.Issue, error)
	LinkIssueItem(ctx context.Context, issueID, stagingID int64) error
	GetIssuesByJob(ctx context.Context, jobID int64) ([]model.Issue, error)
	GetIssueItemsByJob(ctx context.Context, jobID int64) ([]model.IssueItem, error)
	SetIssueResolved(ctx context.Context, issueID int64, resolved bool, resolvedBy, comment *string) error
	CountUnresolvedIssues(ctx context.Context, jobID int64) (int, error)

	// Contacts
	GetExistingEmails(ctx context.Context, userID string, emails []string) (map[string]struct{}, error)

	// ConsolidateJob promotes every READY staging row of the job into a
	// contact, flips those rows to SUCCESS and the job to COMPLETED, all
	// inside one transaction. Returns the number of contacts created.
	ConsolidateJob(ctx context.Context, jobID int64, userID string) (int, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const jobColumns = `job_id, job_user_id, job_original_filename, job_s3_object_key, job_status,
	job_total_rows, job_processed_rows, job_issue_count, job_process_start, job_process_end, job_created_at`

func (r *repository) CreateJob(ctx context.Context, job *model.Job) (int64, error) {
	query := `INSERT INTO jobs (job_user_id, job_original_filename, job_s3_object_key, job_status)
			  VALUES (?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query, job.UserID, job.OriginalFilename, job.S3ObjectKey, job.Status)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (r *repository) GetJob(ctx context.Context, jobID int64) (*model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = ?`

	var job model.Job
	err := r.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID, &job.UserID, &job.OriginalFilename, &job.S3ObjectKey, &job.Status,
		&job.TotalRows, &job.ProcessedRows, &job.IssueCount,
		&job.ProcessStart, &job.ProcessEnd, &job.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	return &job, nil
}

func (r *repository) UpdateJobStatus(ctx context.Context, jobID int64, status model.JobStatus, processStart, processEnd *time.Time) error {
	sets := []string{"job_status = ?"}
	args := []interface{}{status}

	if processStart != nil {
		sets = append(sets, "job_process_start = ?")
		args = append(args, *processStart)
	}
	if processEnd != nil {
		sets = append(sets, "job_process_end = ?")
		args = append(args, *processEnd)
	}
	args = append(args, jobID)

	query := fmt.Sprintf(`UPDATE jobs SET %s WHERE job_id = ?`, strings.Join(sets, ", "))
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *repository) UpdateJobCounters(ctx context.Context, jobID int64, totalRows, processedRows, issueCount *int) error {
	var sets []string
	var args []interface{}

	if totalRows != nil {
		sets = append(sets, "job_total_rows = ?")
		args = append(args, *totalRows)
	}
	if processedRows != nil {
		sets = append(sets, "job_processed_rows = ?")
		args = append(args, *processedRows)
	}
	if issueCount != nil {
		sets = append(sets, "job_issue_count = ?")
		args = append(args, *issueCount)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, jobID)

	query := fmt.Sprintf(`UPDATE jobs SET %s WHERE job_id = ?`, strings.Join(sets, ", "))
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *repository) HasStagingRows(ctx context.Context, jobID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM staging WHERE staging_job_id = ?)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, jobID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

const stagingColumns = `staging_id, staging_job_id, staging_row_number, staging_email, staging_first_name,
	staging_last_name, staging_company, staging_row_hash, staging_status, staging_created_at`

func scanStagingRow(scanner interface{ Scan(...interface{}) error }, row *model.StagingRow) error {
	return scanner.Scan(
		&row.ID, &row.JobID, &row.RowNumber, &row.Email, &row.FirstName,
		&row.LastName, &row.Company, &row.RowHash, &row.Status, &row.CreatedAt,
	)
}

func (r *repository) GetStagingRows(ctx context.Context, jobID int64) ([]model.StagingRow, error) {
	query := `SELECT ` + stagingColumns + ` FROM staging WHERE staging_job_id = ? ORDER BY staging_row_number`

	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staging []model.StagingRow
	for rows.Next() {
		var row model.StagingRow
		if err := scanStagingRow(rows, &row); err != nil {
			return nil, err
		}
		staging = append(staging, row)
	}

	return staging, rows.Err()
}

func (r *repository) GetStagingRow(ctx context.Context, stagingID int64) (*model.StagingRow, error) {
	query := `SELECT ` + stagingColumns + ` FROM staging WHERE staging_id = ?`

	var row model.StagingRow
	if err := scanStagingRow(r.db.QueryRowContext(ctx, query, stagingID), &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) GetStagingRowHashes(ctx context.Context, jobID int64) (map[string]struct{}, error) {
	query := `SELECT staging_row_hash FROM staging WHERE staging_job_id = ?`

	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := make(map[string]struct{})
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		hashes[hash] = struct{}{}
	}

	return hashes, rows.Err()
}

func (r *repository) InsertStagingRow(ctx context.Context, row *model.StagingRow) (int64, bool, error) {
	query := `INSERT INTO staging (staging_job_id, staging_row_number, staging_email, staging_first_name,
			  staging_last_name, staging_company, staging_row_hash, staging_status)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query, row.JobID, row.RowNumber, row.Email, row.FirstName,
		row.LastName, row.Company, row.RowHash, row.Status)
	if err != nil {
		if isDuplicateKey(err) {
			// Concurrent delivery already staged this row.
			return 0, false, nil
		}
		return 0, false, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (r *repository) UpdateStagingStatus(ctx context.Context, stagingID int64, status model.StagingStatus) error {
	query := `UPDATE staging SET staging_status = ? WHERE staging_id = ?`
	_, err := r.db.ExecContext(ctx, query, status, stagingID)
	return err
}

func (r *repository) GetOrCreateIssue(ctx context.Context, jobID int64, kind model.IssueKind, key, description string) (*model.Issue, error) {
	issue, err := r.getIssue(ctx, jobID, kind, key)
	if err == nil {
		return issue, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	query := `INSERT INTO issues (issues_job_id, issue_type, issue_key, issue_description, issue_resolved)
			  VALUES (?, ?, ?, ?, FALSE)`

	if _, err := r.db.ExecContext(ctx, query, jobID, kind, key, description); err != nil {
		if !isDuplicateKey(err) {
			return nil, err
		}
		// Lost a race to another worker on the same job; the issue exists now.
	}

	return r.getIssue(ctx, jobID, kind, key)
}

const issueColumns = `issue_id, issues_job_id, issue_type, issue_key, issue_resolved, issue_description,
	issue_resolved_at, issue_resolved_by, issue_resolution_comment, issue_created_at`

func (r *repository) getIssue(ctx context.Context, jobID int64, kind model.IssueKind, key string) (*model.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues
			  WHERE issues_job_id = ? AND issue_type = ? AND issue_key = ?`

	var issue model.Issue
	var description sql.NullString
	err := r.db.QueryRowContext(ctx, query, jobID, kind, key).Scan(
		&issue.ID, &issue.JobID, &issue.Kind, &issue.Key, &issue.Resolved, &description,
		&issue.ResolvedAt, &issue.ResolvedBy, &issue.ResolutionComment, &issue.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	issue.Description = description.String

	return &issue, nil
}

func (r *repository) LinkIssueItem(ctx context.Context, issueID, stagingID int64) error {
	query := `INSERT INTO issue_items (item_issue_id, item_staging_id) VALUES (?, ?)`

	if _, err := r.db.ExecContext(ctx, query, issueID, stagingID); err != nil {
		if isDuplicateKey(err) {
			// Link already present from an earlier pass.
			return nil
		}
		return err
	}
	return nil
}

func (r *repository) GetIssuesByJob(ctx context.Context, jobID int64) ([]model.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE issues_job_id = ?`

	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var issues []model.Issue
	for rows.Next() {
		var issue model.Issue
		var description sql.NullString
		err := rows.Scan(
			&issue.ID, &issue.JobID, &issue.Kind, &issue.Key, &issue.Resolved, &description,
			&issue.ResolvedAt, &issue.ResolvedBy, &issue.ResolutionComment, &issue.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		issue.Description = description.String
		issues = append(issues, issue)
	}

	return issues, rows.Err()
}

func (r *repository) GetIssueItemsByJob(ctx context.Context, jobID int64) ([]model.IssueItem, error) {
	query := `SELECT ii.issue_item_id, ii.item_issue_id, ii.item_staging_id
			  FROM issue_items ii
			  JOIN issues i ON i.issue_id = ii.item_issue_id
			  WHERE i.issues_job_id = ?`

	rows, err := r.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.IssueItem
	for rows.Next() {
		var item model.IssueItem
		if err := rows.Scan(&item.ID, &item.IssueID, &item.StagingID); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *repository) SetIssueResolved(ctx context.Context, issueID int64, resolved bool, resolvedBy, comment *string) error {
	var query string
	var args []interface{}

	if resolved {
		query = `UPDATE issues SET issue_resolved = TRUE, issue_resolved_at = NOW(),
				 issue_resolved_by = ?, issue_resolution_comment = ? WHERE issue_id = ?`
		args = []interface{}{resolvedBy, comment, issueID}
	} else {
		query = `UPDATE issues SET issue_resolved = FALSE, issue_resolved_at = NULL,
				 issue_resolved_by = NULL, issue_resolution_comment = NULL WHERE issue_id = ?`
		args = []interface{}{issueID}
	}

	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *repository) CountUnresolvedIssues(ctx context.Context, jobID int64) (int, error) {
	query := `SELECT COUNT(*) FROM issues WHERE issues_job_id = ? AND issue_resolved = FALSE`

	var count int
	if err := r.db.QueryRowContext(ctx, query, jobID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) GetExistingEmails(ctx context.Context, userID string, emails []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(emails) == 0 {
		return existing, nil
	}

	placeholders := strings.Repeat("?,", len(emails)-1) + "?"
	query := fmt.Sprintf(`SELECT contact_email FROM contacts
			  WHERE contact_user_id = ? AND contact_email IN (%s)`, placeholders)

	args := make([]interface{}, 0, len(emails)+1)
	args = append(args, userID)
	for _, email := range emails {
		args = append(args, email)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		existing[strings.ToLower(email)] = struct{}{}
	}

	return existing, rows.Err()
}

func (r *repository) ConsolidateJob(ctx context.Context, jobID int64, userID string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	query := `SELECT ` + stagingColumns + ` FROM staging
			  WHERE staging_job_id = ? AND staging_status = ? FOR UPDATE`

	rows, err := tx.QueryContext(ctx, query, jobID, model.StagingStatusReady)
	if err != nil {
		return 0, err
	}

	var ready []model.StagingRow
	for rows.Next() {
		var row model.StagingRow
		if err := scanStagingRow(rows, &row); err != nil {
			rows.Close()
			return 0, err
		}
		ready = append(ready, row)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	insertContact := `INSERT INTO contacts (contact_staging_id, contact_user_id, contact_email,
					  contact_first_name, contact_last_name, contact_company)
					  VALUES (?, ?, ?, ?, ?, ?)`
	markSuccess := `UPDATE staging SET staging_status = ? WHERE staging_id = ?`

	for _, row := range ready {
		if _, err := tx.ExecContext(ctx, insertContact, row.ID, userID, row.Email,
			row.FirstName, row.LastName, row.Company); err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, markSuccess, model.StagingStatusSuccess, row.ID); err != nil {
			return 0, err
		}
	}

	completeJob := `UPDATE jobs SET job_status = ?, job_process_end = NOW() WHERE job_id = ?`
	if _, err := tx.ExecContext(ctx, completeJob, model.JobStatusCompleted, jobID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(ready), nil
}
