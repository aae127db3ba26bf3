package worker

import (
	"context"
	"encoding/json"

	"contact-ingestion-db/internal/config"
	"contact-ingestion-db/internal/db"
	"contact-ingestion-db/internal/ingest"
	"contact-ingestion-db/internal/logger"
	"contact-ingestion-db/internal/model"
	"contact-ingestion-db/internal/queue"
	"contact-ingestion-db/internal/storage"

	"github.com/rs/zerolog"
)

// IngestionWorker consumes ingestion and reprocess work items and drives
// the processor. A failed work item goes to the DLQ; the routing engine
// makes redelivered items resume safely.
type IngestionWorker struct {
	cfg        *config.Config
	processor  *ingest.Processor
	consumer   *queue.Consumer
	workerPool *WorkerPool
	log        zerolog.Logger
}

func NewIngestionWorker(
	cfg *config.Config,
	repo db.Repository,
	store storage.Storage,
	redisClient *queue.RedisClient,
) *IngestionWorker {
	return &IngestionWorker{
		cfg:        cfg,
		processor:  ingest.NewProcessor(repo, store, cfg.Workers.Ingestion.ProgressUpdateInterval),
		consumer:   queue.NewConsumer(redisClient, cfg),
		workerPool: NewWorkerPool(cfg.Workers.Ingestion.Count),
		log:        logger.Get(),
	}
}

func (w *IngestionWorker) Start(ctx context.Context) error {
	w.log.Info().Msg("Starting ingestion worker")

	w.workerPool.Start(ctx)

	go func() {
		if err := w.consumer.ConsumeReprocessQueue(ctx, w.handleReprocess); err != nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Reprocess consumer stopped")
		}
	}()

	return w.consumer.ConsumeIngestionQueue(ctx, w.handleIngestion)
}

func (w *IngestionWorker) Stop() {
	w.log.Info().Msg("Stopping ingestion worker")
	w.workerPool.Stop()
}

func (w *IngestionWorker) handleIngestion(ctx context.Context, data []byte) error {
	var msg model.IngestionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		w.log.Error().Err(err).Msg("Failed to unmarshal ingestion message")
		return err
	}

	w.log.Info().Int64("job_id", msg.JobID).Str("s3_key", msg.S3Key).Msg("Processing ingestion work item")
	return w.process(ctx, msg.JobID)
}

func (w *IngestionWorker) handleReprocess(ctx context.Context, data []byte) error {
	var msg model.ReprocessMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		w.log.Error().Err(err).Msg("Failed to unmarshal reprocess message")
		return err
	}

	w.log.Info().Int64("job_id", msg.JobID).Msg("Processing reprocess work item")
	return w.process(ctx, msg.JobID)
}

func (w *IngestionWorker) process(ctx context.Context, jobID int64) error {
	return w.workerPool.Run(ctx, func(ctx context.Context) error {
		outcome, err := w.processor.ProcessJob(ctx, jobID)
		if err != nil {
			w.log.Error().Err(err).Int64("job_id", jobID).Str("outcome", string(outcome)).Msg("Job processing failed")
			return err
		}
		w.log.Info().Int64("job_id", jobID).Str("outcome", string(outcome)).Msg("Job processed")
		return nil
	})
}
