package worker

import (
	"context"
	"sync"

	"contact-ingestion-db/internal/logger"

	"github.com/rs/zerolog"
)

type task struct {
	fn   func(context.Context) error
	done chan error
}

// WorkerPool bounds how many jobs a worker instance handles at once. Each
// slot processes one job start to finish; with a single slot the instance
// handles exactly one job at a time.
type WorkerPool struct {
	workerCount int
	taskChan    chan task
	wg          sync.WaitGroup
	log         zerolog.Logger
}

func NewWorkerPool(workerCount int) *WorkerPool {
	return &WorkerPool{
		workerCount: workerCount,
		taskChan:    make(chan task),
		log:         logger.Component("worker_pool"),
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	wp.log.Info().Int("worker_count", wp.workerCount).Msg("Starting worker pool")

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) Stop() {
	wp.log.Info().Msg("Stopping worker pool")
	close(wp.taskChan)
	wp.wg.Wait()
	wp.log.Info().Msg("Worker pool stopped")
}

// Run hands fn to a pool slot and waits for its result, so the caller
// (the queue consumer) sees the job's error and can dead-letter the
// message.
func (wp *WorkerPool) Run(ctx context.Context, fn func(context.Context) error) error {
	t := task{fn: fn, done: make(chan error, 1)}

	select {
	case wp.taskChan <- t:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	log := wp.log.With().Int("worker_id", id).Logger()
	log.Debug().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Worker stopping due to context cancellation")
			return
		case t, ok := <-wp.taskChan:
			if !ok {
				log.Debug().Msg("Worker stopping due to closed task channel")
				return
			}
			t.done <- t.fn(ctx)
		}
	}
}
