package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domain "github.com/storesync/backend/internal/domain/sync"
)

// ---------------------------------------------------------------------------
// Job Types
// ---------------------------------------------------------------------------

// JobKind identifies what a queued job executes
type JobKind string

const (
	// JobKindRun is a full rule run over every qualifying source record
	JobKindRun JobKind = "RUN"
	// JobKindRetry re-runs a previously failed run against its re-opened log
	JobKindRetry JobKind = "RETRY"
	// JobKindReconciliation is a single-entity webhook reconciliation
	JobKindReconciliation JobKind = "RECONCILIATION"
)

// Job is one unit of work on the queue. Exactly one of RuleID, LogID or
// Event is meaningful, selected by Kind. Retry bookkeeping lives on the
// sync log itself, so a job carries no attempt state.
type Job struct {
	ID         uuid.UUID
	Kind       JobKind
	RuleID     uuid.UUID
	Trigger    domain.SyncTrigger
	LogID      uuid.UUID
	Event      domain.WebhookEvent
	EnqueuedAt time.Time
}

// ---------------------------------------------------------------------------
// Executor Interface
// ---------------------------------------------------------------------------

// Executor runs queued jobs. Implemented by the application-layer runner.
type Executor interface {
	// ExecuteRule runs one rule to completion
	ExecuteRule(ctx context.Context, ruleID uuid.UUID, trigger domain.SyncTrigger) (domain.RunStats, error)

	// ExecuteRetry re-runs a previously failed run
	ExecuteRetry(ctx context.Context, logID uuid.UUID) (domain.RunStats, error)

	// ExecuteReconciliation runs a single-entity reconciliation
	ExecuteReconciliation(ctx context.Context, event domain.WebhookEvent) error
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config holds worker pool configuration
type Config struct {
	// Workers is the number of concurrent sync workers
	Workers int
	// QueueSize is the job queue capacity
	QueueSize int
	// JobTimeout is the maximum time one job can run
	JobTimeout time.Duration
}

// DefaultConfig returns default worker pool configuration
func DefaultConfig() Config {
	return Config{
		Workers:    3,
		QueueSize:  100,
		JobTimeout: 15 * time.Minute,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return ErrInvalidConfig
	}
	if c.QueueSize <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// Scheduler
// ---------------------------------------------------------------------------

// Scheduler is the bounded worker pool every sync runs on. Enqueue methods
// never block: a full queue is reported to the caller instead of stalling
// webhook ingestion or the periodic trigger.
type Scheduler struct {
	config   Config
	executor Executor
	logger   *zap.Logger

	jobs      chan Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a new scheduler
func NewScheduler(config Config, executor Executor, logger *zap.Logger) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Scheduler{
		config:   config,
		executor: executor,
		logger:   logger,
		jobs:     make(chan Job, config.QueueSize),
	}, nil
}

// SetExecutor installs the job executor. Must be called before Start.
func (s *Scheduler) SetExecutor(executor Executor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executor = executor
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.executor == nil {
		s.mu.Unlock()
		return ErrInvalidConfig
	}
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Sync scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)

	return nil
}

// Stop gracefully stops the worker pool, waiting for in-flight jobs until
// the context expires
func (s *Scheduler) Stop(ctx context.Context) error {
	// Closing the channel under the mutex keeps it mutually exclusive
	// with submit's send.
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	close(s.jobs)
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// ---------------------------------------------------------------------------
// JobQueue Implementation
// ---------------------------------------------------------------------------

// EnqueueRun queues a full rule run
func (s *Scheduler) EnqueueRun(ruleID uuid.UUID, trigger domain.SyncTrigger) error {
	return s.submit(Job{
		ID:         uuid.New(),
		Kind:       JobKindRun,
		RuleID:     ruleID,
		Trigger:    trigger,
		EnqueuedAt: time.Now(),
	})
}

// EnqueueRetry queues a re-opened run for another attempt
func (s *Scheduler) EnqueueRetry(logID uuid.UUID) error {
	return s.submit(Job{
		ID:         uuid.New(),
		Kind:       JobKindRetry,
		LogID:      logID,
		EnqueuedAt: time.Now(),
	})
}

// EnqueueReconciliation queues a single-entity webhook reconciliation
func (s *Scheduler) EnqueueReconciliation(event domain.WebhookEvent) error {
	return s.submit(Job{
		ID:         uuid.New(),
		Kind:       JobKindReconciliation,
		Event:      event,
		EnqueuedAt: time.Now(),
	})
}

// submit places a job on the queue without blocking. The mutex is held
// across the send so Stop cannot close the channel mid-submit; the send
// never blocks, so the critical section stays short.
func (s *Scheduler) submit(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job:
		s.logger.Debug("Sync job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("job_kind", string(job.Kind)),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// ---------------------------------------------------------------------------
// Workers
// ---------------------------------------------------------------------------

// worker processes jobs from the queue
func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	s.logger.Debug("Sync worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Sync worker stopping", zap.Int("worker_id", workerID))
			return
		case job, ok := <-s.jobs:
			if !ok {
				s.logger.Debug("Sync job channel closed", zap.Int("worker_id", workerID))
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

// processJob executes a single job
func (s *Scheduler) processJob(ctx context.Context, job Job, workerID int) {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	started := time.Now()

	var stats domain.RunStats
	var err error
	switch job.Kind {
	case JobKindRun:
		stats, err = s.executor.ExecuteRule(jobCtx, job.RuleID, job.Trigger)
	case JobKindRetry:
		stats, err = s.executor.ExecuteRetry(jobCtx, job.LogID)
	case JobKindReconciliation:
		err = s.executor.ExecuteReconciliation(jobCtx, job.Event)
	default:
		s.logger.Error("Unknown sync job kind",
			zap.String("job_id", job.ID.String()),
			zap.String("job_kind", string(job.Kind)),
		)
		return
	}

	if err != nil {
		s.logger.Error("Sync job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("job_kind", string(job.Kind)),
			zap.Duration("duration", time.Since(started)),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Sync job completed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("job_kind", string(job.Kind)),
		zap.Duration("duration", time.Since(started)),
		zap.Int("total", stats.Total),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
}
