package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	domain "github.com/storesync/backend/internal/domain/sync"
)

// ---------------------------------------------------------------------------
// MaintenanceService Interface
// ---------------------------------------------------------------------------

// MaintenanceService exposes the periodic housekeeping the trigger drives.
// Implemented by the application-layer sync service.
type MaintenanceService interface {
	// EnqueueDueRetries re-enqueues every re-opened run whose retry delay
	// has elapsed
	EnqueueDueRetries(ctx context.Context) error

	// PurgeOldLogs deletes sync logs past the retention window
	PurgeOldLogs(ctx context.Context) (int64, error)
}

// ---------------------------------------------------------------------------
// TriggerConfig
// ---------------------------------------------------------------------------

// TriggerConfig holds the periodic trigger schedule
type TriggerConfig struct {
	// ProductInterval is how often product rules run
	ProductInterval time.Duration
	// InventoryInterval is how often inventory rules run
	InventoryInterval time.Duration
	// OrderInterval is how often order rules run
	OrderInterval time.Duration
	// InterRuleDelay spaces out rule submissions within one cycle so a
	// cycle does not burst every rule at the platforms at once
	InterRuleDelay time.Duration
	// RetrySweepInterval is how often due retries are re-enqueued
	RetrySweepInterval time.Duration
	// RetentionSweepHour is the local hour of day the log purge runs at
	RetentionSweepHour int
}

// DefaultTriggerConfig returns default trigger configuration
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{
		ProductInterval:    time.Hour,
		InventoryInterval:  15 * time.Minute,
		OrderInterval:      30 * time.Minute,
		InterRuleDelay:     5 * time.Second,
		RetrySweepInterval: time.Minute,
		RetentionSweepHour: 3,
	}
}

// Validate validates the configuration
func (c *TriggerConfig) Validate() error {
	if c.ProductInterval <= 0 || c.InventoryInterval <= 0 || c.OrderInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.InterRuleDelay < 0 {
		return ErrInvalidConfig
	}
	if c.RetrySweepInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.RetentionSweepHour < 0 || c.RetentionSweepHour > 23 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// PeriodicTrigger
// ---------------------------------------------------------------------------

// PeriodicTrigger drives the scheduler on the per-kind default cadence:
// one loop per entity kind submitting every active rule of that kind, a
// retry sweep re-enqueueing due retries, and a daily retention sweep.
type PeriodicTrigger struct {
	config    TriggerConfig
	scheduler *Scheduler
	rules     domain.SyncRuleRepository
	service   MaintenanceService
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewPeriodicTrigger creates a new periodic trigger
func NewPeriodicTrigger(
	config TriggerConfig,
	scheduler *Scheduler,
	rules domain.SyncRuleRepository,
	service MaintenanceService,
	logger *zap.Logger,
) (*PeriodicTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &PeriodicTrigger{
		config:    config,
		scheduler: scheduler,
		rules:     rules,
		service:   service,
		logger:    logger,
	}, nil
}

// Start starts the trigger loops
func (p *PeriodicTrigger) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = true
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	kinds := []struct {
		kind     domain.EntityKind
		interval time.Duration
	}{
		{domain.EntityKindProduct, p.config.ProductInterval},
		{domain.EntityKindInventory, p.config.InventoryInterval},
		{domain.EntityKindOrder, p.config.OrderInterval},
	}
	for _, k := range kinds {
		p.wg.Add(1)
		go p.kindLoop(ctx, k.kind, k.interval)
	}

	p.wg.Add(1)
	go p.retrySweepLoop(ctx)

	p.wg.Add(1)
	go p.retentionSweepLoop(ctx)

	p.logger.Info("Periodic sync trigger started",
		zap.Duration("product_interval", p.config.ProductInterval),
		zap.Duration("inventory_interval", p.config.InventoryInterval),
		zap.Duration("order_interval", p.config.OrderInterval),
		zap.Int("retention_sweep_hour", p.config.RetentionSweepHour),
	)

	return nil
}

// Stop stops the trigger loops
func (p *PeriodicTrigger) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Periodic sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// kindLoop submits every active rule of one kind on its interval
func (p *PeriodicTrigger) kindLoop(ctx context.Context, kind domain.EntityKind, interval time.Duration) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.triggerKind(ctx, kind)
		}
	}
}

// triggerKind submits every active rule of one kind, spaced by the
// inter-rule delay
func (p *PeriodicTrigger) triggerKind(ctx context.Context, kind domain.EntityKind) {
	rules, err := p.rules.FindActiveByKind(ctx, kind)
	if err != nil {
		p.logger.Error("Failed to load active rules",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return
	}

	for i, rule := range rules {
		if i > 0 && p.config.InterRuleDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.config.InterRuleDelay):
			}
		}

		if err := p.scheduler.EnqueueRun(rule.ID, domain.SyncTriggerScheduled); err != nil {
			if errors.Is(err, ErrJobQueueFull) {
				// Skip the rest of the cycle; the next tick picks them up.
				p.logger.Warn("Sync job queue full, deferring remaining rules",
					zap.String("kind", string(kind)),
					zap.Int("deferred", len(rules)-i),
				)
				return
			}
			p.logger.Error("Failed to enqueue scheduled run",
				zap.String("rule_id", rule.ID.String()),
				zap.Error(err),
			)
		}
	}
}

// retrySweepLoop periodically re-enqueues due retries
func (p *PeriodicTrigger) retrySweepLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.RetrySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.service.EnqueueDueRetries(ctx); err != nil {
				p.logger.Error("Retry sweep failed", zap.Error(err))
			}
		}
	}
}

// retentionSweepLoop purges old sync logs once a day at the configured hour
func (p *PeriodicTrigger) retentionSweepLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		wait := time.Until(p.nextSweep(time.Now()))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			purged, err := p.service.PurgeOldLogs(ctx)
			if err != nil {
				p.logger.Error("Retention sweep failed", zap.Error(err))
				continue
			}
			p.logger.Info("Retention sweep completed", zap.Int64("purged", purged))
		}
	}
}

// nextSweep returns the next occurrence of the retention sweep hour
func (p *PeriodicTrigger) nextSweep(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), p.config.RetentionSweepHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
