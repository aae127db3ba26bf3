package ingest

import (
	"context"
	"errors"
	"time"

	"contact-ingestion-db/internal/db"
	"contact-ingestion-db/internal/logger"
	"contact-ingestion-db/internal/model"
	"contact-ingestion-db/internal/storage"
	"contact-ingestion-db/internal/tabular"
	apperrors "contact-ingestion-db/pkg/errors"

	"github.com/rs/zerolog"
)

// Outcome summarizes what processing a work item did to its job.
type Outcome string

const (
	OutcomeSkipped     Outcome = "skipped"
	OutcomeNeedsReview Outcome = "needs_review"
	OutcomeCompleted   Outcome = "completed"
	OutcomeFailed      Outcome = "failed"
)

// Processor runs the ingestion pipeline for one job at a time: routing,
// initial staging, re-validation and consolidation. Rows are handled
// strictly in file order; the only transaction boundary is the
// consolidation step inside the repository.
type Processor struct {
	repo             db.Repository
	storage          storage.Storage
	progressInterval int
	log              zerolog.Logger
}

func NewProcessor(repo db.Repository, store storage.Storage, progressInterval int) *Processor {
	if progressInterval <= 0 {
		progressInterval = 10
	}
	return &Processor{
		repo:             repo,
		storage:          store,
		progressInterval: progressInterval,
		log:              logger.Component("processor"),
	}
}

// ProcessJob is the single entry point consumed by the queue worker.
// Transient storage errors propagate with the job left in its pre-attempt
// status, so redelivery is safe.
func (p *Processor) ProcessJob(ctx context.Context, jobID int64) (Outcome, error) {
	job, err := p.repo.GetJob(ctx, jobID)
	if errors.Is(err, apperrors.ErrJobNotFound) {
		// Stale message; the job may have been deleted. Nothing to do.
		p.log.Warn().Int64("job_id", jobID).Msg("Job not found, skipping work item")
		return OutcomeSkipped, nil
	}
	if err != nil {
		return OutcomeFailed, err
	}

	hasStaging, err := p.repo.HasStagingRows(ctx, jobID)
	if err != nil {
		return OutcomeFailed, err
	}

	mode := Route(job.Status, hasStaging)
	p.log.Info().
		Int64("job_id", jobID).
		Str("status", string(job.Status)).
		Bool("has_staging", hasStaging).
		Str("mode", mode.String()).
		Msg("Routing job")

	switch mode {
	case ModeSkip:
		return OutcomeSkipped, nil
	case ModeReprocess:
		return p.reprocess(ctx, job)
	default:
		return p.processInitial(ctx, job)
	}
}

func (p *Processor) processInitial(ctx context.Context, job *model.Job) (Outcome, error) {
	log := p.log.With().Int64("job_id", job.ID).Str("flow", "initial").Logger()

	if err := p.markProcessing(ctx, job.ID); err != nil {
		return OutcomeFailed, err
	}

	data, err := storage.FetchBytes(ctx, p.storage, job.S3ObjectKey)
	if err != nil {
		// Fetch failures are transient; leave the job PROCESSING so a
		// redelivery resumes via the routing engine.
		return OutcomeFailed, apperrors.NewRetryableError(err, "fetch source file")
	}

	rows, err := tabular.ForFilename(job.OriginalFilename).Parse(ctx, data)
	if err != nil {
		log.Error().Err(err).Str("filename", job.OriginalFilename).Msg("Source file is not readable")
		p.failJob(ctx, job.ID)
		return OutcomeFailed, err
	}

	duplicates := DuplicateEmails(rows)
	existing, err := p.repo.GetExistingEmails(ctx, job.UserID, collectRowEmails(rows))
	if err != nil {
		return OutcomeFailed, err
	}

	staged, err := p.repo.GetStagingRowHashes(ctx, job.ID)
	if err != nil {
		return OutcomeFailed, err
	}
	guard := NewGuard(staged)

	totalRows := len(rows)
	if err := p.repo.UpdateJobCounters(ctx, job.ID, &totalRows, nil, nil); err != nil {
		return OutcomeFailed, err
	}

	log.Info().
		Int("total_rows", totalRows).
		Int("duplicate_emails", len(duplicates)).
		Int("existing_emails", len(existing)).
		Int("already_staged", len(staged)).
		Msg("Pre-processing complete")

	processed := 0
	skipped := 0
	for _, row := range rows {
		hash := RowHash(job.ID, row.RowNumber, row)

		if guard.AlreadyProcessed(hash) {
			skipped++
			p.flushProgress(ctx, job.ID, processed+skipped, log)
			continue
		}

		if err := p.stageRow(ctx, job.ID, row, hash, duplicates, existing, log); err != nil {
			// A bad row must not sink the batch.
			log.Error().Err(err).Int("row_number", row.RowNumber).Msg("Failed to process row")
		}
		guard.Mark(hash)

		processed++
		p.flushProgress(ctx, job.ID, processed+skipped, log)
	}

	log.Info().Int("processed", processed).Int("skipped", skipped).Msg("Staging pass complete")

	return p.finishPass(ctx, job, processed+skipped, log)
}

func (p *Processor) stageRow(
	ctx context.Context,
	jobID int64,
	row model.ContactRow,
	hash string,
	duplicates, existing map[string]struct{},
	log zerolog.Logger,
) error {
	findings := ValidateRow(row, duplicates, existing)

	status := model.StagingStatusReady
	if len(findings) > 0 {
		status = model.StagingStatusIssue
	}

	stagingID, inserted, err := p.repo.InsertStagingRow(ctx, &model.StagingRow{
		JobID:     jobID,
		RowNumber: row.RowNumber,
		Email:     row.Email,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Company:   row.Company,
		RowHash:   hash,
		Status:    status,
	})
	if err != nil {
		return err
	}
	if !inserted {
		// A concurrent delivery won the insert race; nothing left to do.
		log.Debug().Int("row_number", row.RowNumber).Msg("Row already staged")
		return nil
	}

	return p.recordFindings(ctx, jobID, stagingID, findings)
}

func (p *Processor) reprocess(ctx context.Context, job *model.Job) (Outcome, error) {
	log := p.log.With().Int64("job_id", job.ID).Str("flow", "reprocess").Logger()

	if err := p.markProcessing(ctx, job.ID); err != nil {
		return OutcomeFailed, err
	}

	staging, err := p.repo.GetStagingRows(ctx, job.ID)
	if err != nil {
		return OutcomeFailed, err
	}
	if len(staging) == 0 {
		log.Error().Msg("No staging rows to reprocess")
		p.failJob(ctx, job.ID)
		return OutcomeFailed, apperrors.ErrNoStagingRows
	}

	// DISCARD and SUCCESS rows are terminal: they stay out of the working
	// set and out of the duplicate scan.
	working := make([]model.StagingRow, 0, len(staging))
	for _, row := range staging {
		if !row.Status.IsTerminal() {
			working = append(working, row)
		}
	}

	duplicates := DuplicateStagingEmails(working)
	existing, err := p.repo.GetExistingEmails(ctx, job.UserID, collectStagingEmails(working))
	if err != nil {
		return OutcomeFailed, err
	}

	log.Info().
		Int("staging_rows", len(staging)).
		Int("working_rows", len(working)).
		Int("duplicate_emails", len(duplicates)).
		Msg("Reprocessing staging rows")

	statuses := make(map[int64]model.StagingStatus, len(staging))
	for _, row := range staging {
		statuses[row.ID] = row.Status
	}

	processed := 0
	for _, row := range working {
		findings := ValidateRow(model.ContactRow{
			RowNumber: row.RowNumber,
			Email:     row.Email,
			FirstName: row.FirstName,
			LastName:  row.LastName,
			Company:   row.Company,
		}, duplicates, existing)

		status := model.StagingStatusReady
		if len(findings) > 0 {
			status = model.StagingStatusIssue
		}

		if err := p.repo.UpdateStagingStatus(ctx, row.ID, status); err != nil {
			log.Error().Err(err).Int64("staging_id", row.ID).Msg("Failed to update staging row")
			continue
		}
		statuses[row.ID] = status

		if len(findings) > 0 {
			if err := p.recordFindings(ctx, job.ID, row.ID, findings); err != nil {
				log.Error().Err(err).Int64("staging_id", row.ID).Msg("Failed to record findings")
			}
		}

		processed++
		p.flushProgress(ctx, job.ID, processed, log)
	}

	if err := p.sweepResolutions(ctx, job.ID, statuses, log); err != nil {
		return OutcomeFailed, err
	}

	return p.finishPass(ctx, job, processed, log)
}

// recordFindings persists one issue per distinct cause and links the row
// to it. A fresh finding reopens a previously resolved issue.
func (p *Processor) recordFindings(ctx context.Context, jobID, stagingID int64, findings []Finding) error {
	for _, finding := range findings {
		issue, err := p.repo.GetOrCreateIssue(ctx, jobID, finding.Kind, finding.Key, finding.Detail)
		if err != nil {
			return err
		}
		if err := p.repo.LinkIssueItem(ctx, issue.ID, stagingID); err != nil {
			return err
		}
		if issue.Resolved {
			if err := p.repo.SetIssueResolved(ctx, issue.ID, false, nil, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Processor) sweepResolutions(ctx context.Context, jobID int64, statuses map[int64]model.StagingStatus, log zerolog.Logger) error {
	issues, err := p.repo.GetIssuesByJob(ctx, jobID)
	if err != nil {
		return err
	}
	items, err := p.repo.GetIssueItemsByJob(ctx, jobID)
	if err != nil {
		return err
	}

	toResolve, toReopen := ComputeResolutions(issues, items, statuses)

	resolvedBy := "system"
	comment := "All linked staging rows resolved during reprocessing"
	for _, issueID := range toResolve {
		if err := p.repo.SetIssueResolved(ctx, issueID, true, &resolvedBy, &comment); err != nil {
			return err
		}
		log.Info().Int64("issue_id", issueID).Msg("Issue resolved")
	}
	for _, issueID := range toReopen {
		if err := p.repo.SetIssueResolved(ctx, issueID, false, nil, nil); err != nil {
			return err
		}
		log.Info().Int64("issue_id", issueID).Msg("Issue reopened")
	}

	return nil
}

// finishPass writes the final counters, recomputes the unresolved-issue
// count from persisted issues and either parks the job for review or
// consolidates it.
func (p *Processor) finishPass(ctx context.Context, job *model.Job, processed int, log zerolog.Logger) (Outcome, error) {
	if err := p.repo.UpdateJobCounters(ctx, job.ID, nil, &processed, nil); err != nil {
		return OutcomeFailed, err
	}

	unresolved, err := p.repo.CountUnresolvedIssues(ctx, job.ID)
	if err != nil {
		return OutcomeFailed, err
	}
	if err := p.repo.UpdateJobCounters(ctx, job.ID, nil, nil, &unresolved); err != nil {
		return OutcomeFailed, err
	}

	if unresolved > 0 {
		now := time.Now().UTC()
		if err := p.repo.UpdateJobStatus(ctx, job.ID, model.JobStatusNeedsReview, nil, &now); err != nil {
			return OutcomeFailed, err
		}
		log.Info().Int("unresolved_issues", unresolved).Msg("Job needs review")
		return OutcomeNeedsReview, nil
	}

	// All four consolidation effects (contact inserts, SUCCESS flips, job
	// completion) commit together inside the repository or not at all.
	created, err := p.repo.ConsolidateJob(ctx, job.ID, job.UserID)
	if err != nil {
		return OutcomeFailed, err
	}

	log.Info().Int("contacts_created", created).Msg("Job consolidated")
	return OutcomeCompleted, nil
}

func (p *Processor) markProcessing(ctx context.Context, jobID int64) error {
	now := time.Now().UTC()
	return p.repo.UpdateJobStatus(ctx, jobID, model.JobStatusProcessing, &now, nil)
}

func (p *Processor) failJob(ctx context.Context, jobID int64) {
	now := time.Now().UTC()
	if err := p.repo.UpdateJobStatus(ctx, jobID, model.JobStatusFailed, nil, &now); err != nil {
		p.log.Error().Err(err).Int64("job_id", jobID).Msg("Failed to mark job as FAILED")
	}
}

func (p *Processor) flushProgress(ctx context.Context, jobID int64, count int, log zerolog.Logger) {
	if count%p.progressInterval != 0 {
		return
	}
	if err := p.repo.UpdateJobCounters(ctx, jobID, nil, &count, nil); err != nil {
		log.Warn().Err(err).Msg("Failed to update progress counter")
	}
}
