package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sevigo/pixel-warden/internal/config"
	"github.com/sevigo/pixel-warden/internal/core"
)

const (
	DefaultRedisKey = "pixel-warden:notifications"
	popTimeout      = time.Second
	popErrorBackoff = time.Second
)

// NewRedisClient connects to the queue Redis and checks it answers.
func NewRedisClient(ctx context.Context, cfg config.QueueConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// redisQueue implements core.JobDispatcher on a Redis list so that queued ids
// survive a restart and can be shared by several server instances.
type redisQueue struct {
	rdb    *redis.Client
	key    string
	job    core.Job
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewRedisQueue starts workers popping notification ids from the list at key.
func NewRedisQueue(rdb *redis.Client, key string, job core.Job, maxWorkers int, logger *slog.Logger) core.JobDispatcher {
	if key == "" {
		key = DefaultRedisKey
	}
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &redisQueue{rdb: rdb, key: key, job: job, cancel: cancel, logger: logger}
	for i := range maxWorkers {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	return q
}

func (q *redisQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	for ctx.Err() == nil {
		res, err := q.rdb.BLPop(ctx, popTimeout, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			q.logger.Error("failed to pop notification", "worker_id", workerID, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(popErrorBackoff):
			}
			continue
		}
		// BLPOP answers with the key followed by the value.
		id := res[1]
		if err := q.job.Run(context.Background(), id); err != nil {
			q.logger.Error("notification job failed", "worker_id", workerID, "notification", id, "error", err)
		}
	}
}

// Dispatch appends the id to the Redis list.
func (q *redisQueue) Dispatch(ctx context.Context, notificationID string) error {
	if err := q.rdb.RPush(ctx, q.key, notificationID).Err(); err != nil {
		return fmt.Errorf("failed to enqueue notification %s: %w", notificationID, err)
	}
	return nil
}

// Stop stops popping and waits for running deliveries. Ids still in the list stay
// there for the next start.
func (q *redisQueue) Stop() {
	q.logger.Info("stopping redis queue workers")
	q.cancel()
	q.wg.Wait()
}
