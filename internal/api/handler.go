package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"contact-ingestion-db/internal/config"
	"contact-ingestion-db/internal/db"
	"contact-ingestion-db/internal/logger"
	"contact-ingestion-db/internal/model"
	"contact-ingestion-db/internal/queue"
	"contact-ingestion-db/internal/storage"
	apperrors "contact-ingestion-db/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Handler struct {
	repo     db.Repository
	producer *queue.Producer
	storage  storage.Storage
	cfg      *config.Config
	log      zerolog.Logger
}

func NewHandler(
	repo db.Repository,
	producer *queue.Producer,
	store storage.Storage,
	cfg *config.Config,
) *Handler {
	return &Handler{
		repo:     repo,
		producer: producer,
		storage:  store,
		cfg:      cfg,
		log:      logger.Get(),
	}
}

// UploadFile accepts a contact file, stores it in S3, creates a PENDING
// job and enqueues the ingestion work item.
func (h *Handler) UploadFile(c *gin.Context) {
	userID := c.PostForm("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if h.cfg.Server.MaxUploadBytes > 0 && fileHeader.Size > h.cfg.Server.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to open uploaded file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer file.Close()

	filename := filepath.Base(fileHeader.Filename)
	s3Key := fmt.Sprintf("uploads/%s/%d_%s", userID, time.Now().UnixNano(), filename)

	if err := h.storage.Upload(c.Request.Context(), s3Key, file); err != nil {
		h.log.Error().Err(err).Str("s3_key", s3Key).Msg("Failed to upload file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	jobID, err := h.repo.CreateJob(c.Request.Context(), &model.Job{
		UserID:           userID,
		OriginalFilename: filename,
		S3ObjectKey:      s3Key,
		Status:           model.JobStatusPending,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job"})
		return
	}

	msg := model.IngestionMessage{JobID: jobID, S3Key: s3Key}
	if err := h.producer.EnqueueIngestion(c.Request.Context(), msg); err != nil {
		h.log.Error().Err(err).Int64("job_id", jobID).Msg("Failed to enqueue ingestion job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue job"})
		return
	}

	h.log.Info().Int64("job_id", jobID).Str("user_id", userID).Str("filename", filename).Msg("Job created")

	c.JSON(http.StatusAccepted, model.UploadResponse{
		JobID:    jobID,
		Filename: filename,
		S3Key:    s3Key,
		Status:   string(model.JobStatusPending),
	})
}

// GetJobStatus serves the polled observable fields of a job.
func (h *Handler) GetJobStatus(c *gin.Context) {
	job, ok := h.jobFromParam(c)
	if !ok {
		return
	}

	updatedAt := job.CreatedAt
	if job.ProcessEnd != nil {
		updatedAt = *job.ProcessEnd
	} else if job.ProcessStart != nil {
		updatedAt = *job.ProcessStart
	}

	c.JSON(http.StatusOK, model.JobStatusResponse{
		JobID:            job.ID,
		Status:           string(job.Status),
		TotalRows:        job.TotalRows,
		ProcessedRows:    job.ProcessedRows,
		UnresolvedIssues: job.IssueCount,
		UpdatedAt:        updatedAt,
	})
}

// ListIssues returns a job's issues so a user can work through them.
func (h *Handler) ListIssues(c *gin.Context) {
	job, ok := h.jobFromParam(c)
	if !ok {
		return
	}

	issues, err := h.repo.GetIssuesByJob(c.Request.Context(), job.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("job_id", job.ID).Msg("Failed to load issues")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job_id": job.ID, "issues": issues})
}

// DiscardRow records the user's decision to exclude a staging row. The
// next reprocessing pass takes it from there.
func (h *Handler) DiscardRow(c *gin.Context) {
	job, ok := h.jobFromParam(c)
	if !ok {
		return
	}

	stagingID, err := strconv.ParseInt(c.Param("staging_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid staging row ID"})
		return
	}

	row, err := h.repo.GetStagingRow(c.Request.Context(), stagingID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Staging row not found"})
		return
	}
	if row.JobID != job.ID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Staging row not found"})
		return
	}
	if row.Status == model.StagingStatusSuccess {
		c.JSON(http.StatusConflict, gin.H{"error": "Row already consolidated"})
		return
	}

	if err := h.repo.UpdateStagingStatus(c.Request.Context(), stagingID, model.StagingStatusDiscard); err != nil {
		h.log.Error().Err(err).Int64("staging_id", stagingID).Msg("Failed to discard staging row")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"staging_id": stagingID, "status": model.StagingStatusDiscard})
}

// TriggerReprocess enqueues a re-validation pass for a reviewed job.
func (h *Handler) TriggerReprocess(c *gin.Context) {
	job, ok := h.jobFromParam(c)
	if !ok {
		return
	}

	if job.Status != model.JobStatusNeedsReview {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Job is not awaiting review",
			"status": job.Status,
		})
		return
	}

	msg := model.ReprocessMessage{JobID: job.ID}
	if err := h.producer.EnqueueReprocess(c.Request.Context(), msg); err != nil {
		h.log.Error().Err(err).Int64("job_id", job.ID).Msg("Failed to enqueue reprocess job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue reprocess job"})
		return
	}

	h.log.Info().Int64("job_id", job.ID).Msg("Reprocess job enqueued")
	c.JSON(http.StatusAccepted, gin.H{"message": "Reprocess job queued", "job_id": job.ID})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.cfg.App.Name,
		"version": h.cfg.App.Version,
	})
}

func (h *Handler) jobFromParam(c *gin.Context) (*model.Job, bool) {
	jobID, err := strconv.ParseInt(c.Param("job_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return nil, false
	}

	job, err := h.repo.GetJob(c.Request.Context(), jobID)
	if err == apperrors.ErrJobNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return nil, false
	}
	if err != nil {
		h.log.Error().Err(err).Int64("job_id", jobID).Msg("Failed to load job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return nil, false
	}

	return job, true
}
