package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-appeals-api/internal/models"
	"github.com/noah-isme/sma-appeals-api/pkg/jobs"
)

const deadlineSweepJob = "deadline_sweep"

type deadlineLister interface {
	ListOutstandingWithDeadline(ctx context.Context) ([]models.Appeal, error)
}

// DeadlineSweeper periodically buckets outstanding appeals and publishes the counts.
type DeadlineSweeper struct {
	store       deadlineLister
	metrics     *MetricsService
	logger      *zap.Logger
	horizonDays int
	now         func() time.Time
	queue       *jobs.Queue
}

// NewDeadlineSweeper wires the sweep handler into a single-worker queue.
func NewDeadlineSweeper(store deadlineLister, metrics *MetricsService, logger *zap.Logger, horizonDays int) *DeadlineSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if horizonDays <= 0 {
		horizonDays = DefaultDeadlineHorizonDays
	}
	s := &DeadlineSweeper{
		store:       store,
		metrics:     metrics,
		logger:      logger,
		horizonDays: horizonDays,
		now:         time.Now,
	}
	s.queue = jobs.NewQueue(deadlineSweepJob, s.handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 1,
		MaxRetries: 2,
		RetryDelay: 5 * time.Second,
		Logger:     logger,
	})
	return s
}

// Start runs one sweep immediately and then one per interval. On error the worker is
// stopped again.
func (s *DeadlineSweeper) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("deadline sweep interval must be positive, got %s", interval)
	}
	s.queue.Start(ctx)
	if err := s.queue.TryEnqueue(sweepJob(s.now())); err != nil {
		s.queue.Stop()
		return err
	}
	if err := s.queue.Every(interval, sweepJob); err != nil {
		s.queue.Stop()
		return err
	}
	return nil
}

// Stop halts the scheduler and worker.
func (s *DeadlineSweeper) Stop() {
	s.queue.Stop()
}

// Sweep buckets outstanding appeals once and publishes gauges.
func (s *DeadlineSweeper) Sweep(ctx context.Context) (models.DeadlineBuckets, error) {
	appeals, err := s.store.ListOutstandingWithDeadline(ctx)
	if err != nil {
		return models.DeadlineBuckets{}, fmt.Errorf("deadline sweep: %w", err)
	}
	buckets := Bucketize(appeals, s.now(), s.horizonDays)
	s.metrics.SetDeadlineBuckets(buckets)
	fields := []zap.Field{
		zap.Int("overdue", len(buckets.Overdue)),
		zap.Int("today", len(buckets.Today)),
		zap.Int("tomorrow", len(buckets.Tomorrow)),
		zap.Int("this_week", len(buckets.ThisWeek)),
		zap.Int("upcoming", len(buckets.Upcoming)),
	}
	if len(buckets.Overdue) > 0 {
		s.logger.Warn("appeals past their deadline", fields...)
	} else {
		s.logger.Debug("deadline sweep finished", fields...)
	}
	return buckets, nil
}

func (s *DeadlineSweeper) handle(ctx context.Context, _ jobs.Job) error {
	_, err := s.Sweep(ctx)
	return err
}

func sweepJob(at time.Time) jobs.Job {
	return jobs.Job{
		ID:       fmt.Sprintf("%s-%d", deadlineSweepJob, at.UnixNano()),
		Type:     deadlineSweepJob,
		Enqueued: at.UTC(),
	}
}
