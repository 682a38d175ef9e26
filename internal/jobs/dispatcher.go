// Package jobs queues build notifications and runs their deliveries in the background.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sevigo/pixel-warden/internal/core"
)

// DefaultQueueSize is the capacity of the in-memory queue when none is configured.
const DefaultQueueSize = 100

// dispatcher implements core.JobDispatcher with a pool of worker goroutines reading
// notification ids from a buffered channel.
type dispatcher struct {
	job        core.Job       // Job executed by each worker.
	queue      chan string    // Queue of notification ids.
	maxWorkers int            // Number of concurrent workers.
	wg         sync.WaitGroup // Tracks active workers for graceful shutdown.
	logger     *slog.Logger
}

// NewDispatcher initializes a dispatcher with a worker pool.
// If maxWorkers is 0 or negative, it defaults to 1.
func NewDispatcher(job core.Job, maxWorkers, queueSize int, logger *slog.Logger) core.JobDispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &dispatcher{
		job:        job,
		maxWorkers: maxWorkers,
		queue:      make(chan string, queueSize),
		logger:     logger,
	}
	d.startWorkers()
	return d
}

func (d *dispatcher) startWorkers() {
	for i := range d.maxWorkers {
		d.wg.Add(1)
		go d.startWorker(i)
	}
}

// startWorker processes notifications from the queue until it's closed.
func (d *dispatcher) startWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Debug("starting notification worker", "id", workerID)

	for id := range d.queue {
		d.process(workerID, id)
	}

	d.logger.Debug("shutting down notification worker", "id", workerID)
}

func (d *dispatcher) process(workerID int, notificationID string) {
	if err := d.job.Run(context.Background(), notificationID); err != nil {
		d.logger.Error("notification job failed",
			"worker_id", workerID,
			"notification", notificationID,
			"error", err,
		)
	}
}

// Dispatch queues a notification for processing by a worker. A full queue is
// reported as an error; the row stays pending and the sweeper picks it up later.
func (d *dispatcher) Dispatch(_ context.Context, notificationID string) error {
	select {
	case d.queue <- notificationID:
		return nil
	default:
		return fmt.Errorf("notification queue is full, cannot accept %s", notificationID)
	}
}

// Stop gracefully shuts down the dispatcher, waiting for all workers to finish.
func (d *dispatcher) Stop() {
	d.logger.Info("stopping dispatcher and waiting for deliveries to finish")
	close(d.queue)
	d.wg.Wait()
	d.logger.Info("all deliveries have finished")
}
