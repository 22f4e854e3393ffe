package sync

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domain "github.com/storesync/backend/internal/domain/sync"
)

// Runner is the execution entry point the worker pool calls into. It wraps
// the orchestrator and reconciler with rule lookup and the retry policy.
type Runner struct {
	orchestrator *Orchestrator
	reconciler   *Reconciler
	service      *Service
	rules        domain.SyncRuleRepository
	logs         domain.SyncLogRepository
	logger       *zap.Logger
}

// NewRunner creates a new runner
func NewRunner(
	orchestrator *Orchestrator,
	reconciler *Reconciler,
	service *Service,
	rules domain.SyncRuleRepository,
	logs domain.SyncLogRepository,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		orchestrator: orchestrator,
		reconciler:   reconciler,
		service:      service,
		rules:        rules,
		logs:         logs,
		logger:       logger,
	}
}

// ExecuteRule runs one rule to completion and applies the retry policy on
// run-level failure
func (r *Runner) ExecuteRule(ctx context.Context, ruleID uuid.UUID, trigger domain.SyncTrigger) (domain.RunStats, error) {
	rule, err := r.rules.FindByID(ctx, ruleID)
	if err != nil {
		return domain.RunStats{}, err
	}
	if !rule.IsActive {
		return domain.RunStats{}, domain.ErrRuleInactive
	}

	log, runErr := r.orchestrator.Run(ctx, rule, trigger)
	if runErr != nil {
		if log != nil {
			r.service.HandleRunFailure(ctx, log)
		}
		return domain.RunStats{}, runErr
	}
	return log.Stats, nil
}

// ExecuteRetry re-runs a previously failed run against its re-opened log,
// preserving the retry count
func (r *Runner) ExecuteRetry(ctx context.Context, logID uuid.UUID) (domain.RunStats, error) {
	log, err := r.logs.FindByID(ctx, logID)
	if err != nil {
		return domain.RunStats{}, err
	}
	if log.Status != domain.SyncLogStatusPending {
		return domain.RunStats{}, domain.ErrLogNotRetryable
	}
	if log.SyncRuleID == nil {
		return domain.RunStats{}, domain.ErrRuleNotFound
	}
	rule, err := r.rules.FindByID(ctx, *log.SyncRuleID)
	if err != nil {
		return domain.RunStats{}, err
	}

	result, runErr := r.orchestrator.RunWithLog(ctx, rule, log)
	if runErr != nil {
		r.service.HandleRunFailure(ctx, result)
		return domain.RunStats{}, runErr
	}
	return result.Stats, nil
}

// ExecuteReconciliation runs a single-entity webhook reconciliation
func (r *Runner) ExecuteReconciliation(ctx context.Context, event domain.WebhookEvent) error {
	return r.reconciler.Reconcile(ctx, event)
}
