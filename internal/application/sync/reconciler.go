package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/shared"
	domain "github.com/storesync/backend/internal/domain/sync"
)

// defaultDedupTTL is how long a processed delivery ID is remembered
const defaultDedupTTL = 24 * time.Hour

// Reconciler runs webhook-triggered single-entity reconciliations through
// the same match, transform, mapping, adapter pipeline as full rule runs,
// scoped to one entity.
type Reconciler struct {
	orchestrator *Orchestrator
	rules        domain.SyncRuleRepository
	dedup        shared.IdempotencyStore
	dedupTTL     time.Duration
	logger       *zap.Logger
}

// NewReconciler creates a new reconciler. The dedup store short-circuits
// platform redeliveries; the mapping upsert remains the correctness
// mechanism when dedup is unavailable.
func NewReconciler(
	orchestrator *Orchestrator,
	rules domain.SyncRuleRepository,
	dedup shared.IdempotencyStore,
	logger *zap.Logger,
) *Reconciler {
	return &Reconciler{
		orchestrator: orchestrator,
		rules:        rules,
		dedup:        dedup,
		dedupTTL:     defaultDedupTTL,
		logger:       logger,
	}
}

// Reconcile processes one verified webhook event: every active rule whose
// source is the delivering store and whose kind matches the event is
// replayed for the single affected entity. Each rule produces exactly one
// terminal sync log.
func (r *Reconciler) Reconcile(ctx context.Context, event domain.WebhookEvent) error {
	if event.DeliveryID != "" && r.dedup != nil {
		fresh, err := r.dedup.MarkProcessed(ctx, dedupKey(event), r.dedupTTL)
		if err != nil {
			r.logger.Warn("Delivery dedup store unavailable, relying on mapping upsert",
				zap.String("delivery_id", event.DeliveryID),
				zap.Error(err),
			)
		} else if !fresh {
			r.logger.Debug("Duplicate webhook delivery ignored",
				zap.String("delivery_id", event.DeliveryID),
				zap.String("topic", event.Topic),
			)
			return nil
		}
	}

	rules, err := r.rules.FindActiveBySourceStore(ctx, event.StoreID, event.Kind)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		r.logger.Debug("No active rules for webhook event",
			zap.String("store_id", event.StoreID.String()),
			zap.String("kind", event.Kind.String()),
		)
		return nil
	}

	for i := range rules {
		if err := r.reconcileOne(ctx, &rules[i], event); err != nil {
			r.logger.Error("Webhook reconciliation failed",
				zap.String("rule_id", rules[i].ID.String()),
				zap.String("entity_id", event.ExternalEntityID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// reconcileOne replays one rule for the single affected entity
func (r *Reconciler) reconcileOne(ctx context.Context, rule *domain.SyncRule, event domain.WebhookEvent) error {
	o := r.orchestrator

	ruleID := rule.ID
	log := domain.NewReconciliationLog(rule.SourceStoreID, rule.TargetStoreID, rule.Kind, event.ExternalEntityID, &ruleID)
	if err := o.logs.Save(ctx, log); err != nil {
		return err
	}

	runErr := r.reconcileEntity(ctx, rule, event.ExternalEntityID, log)
	if runErr != nil {
		if err := log.Fail(runErr.Error()); err == nil {
			if saveErr := o.logs.Save(ctx, log); saveErr != nil {
				r.logger.Error("Failed to persist failed reconciliation log",
					zap.String("log_id", log.ID.String()),
					zap.Error(saveErr),
				)
			}
		}
		return runErr
	}
	return nil
}

// reconcileEntity fetches the affected entity and pushes it through the
// rule's pipeline
func (r *Reconciler) reconcileEntity(ctx context.Context, rule *domain.SyncRule, externalID string, log *domain.SyncLog) error {
	o := r.orchestrator

	rc, err := o.resolveRun(ctx, rule)
	if err != nil {
		return err
	}

	if err := log.Start(); err != nil {
		return err
	}
	if err := o.logs.Save(ctx, log); err != nil {
		return err
	}

	if err := o.pace(ctx); err != nil {
		return interrupted(err)
	}
	raw, err := rc.source.FetchRecord(ctx, rc.sourceStore, rule.Kind, externalID)
	if err != nil {
		return err
	}

	stats := domain.RunStats{Total: 1}
	record := rc.source.ToInternal(raw, rule.Kind)

	if !rule.Conditions.Matches(record) {
		stats.Skipped = 1
		if err := log.Complete(stats, nil, ""); err != nil {
			return err
		}
		return o.logs.Save(ctx, log)
	}

	outcome, err := o.propagate(ctx, rc, record)
	if err != nil {
		stats.Failed = 1
		if completeErr := log.Complete(stats, []string{externalID}, err.Error()); completeErr != nil {
			return completeErr
		}
		return o.logs.Save(ctx, log)
	}

	switch outcome {
	case outcomeCreated:
		stats.Created = 1
	case outcomeUpdated:
		stats.Updated = 1
	case outcomeSkipped:
		stats.Skipped = 1
	}

	if err := log.Complete(stats, nil, ""); err != nil {
		return err
	}
	return o.logs.Save(ctx, log)
}

// dedupKey builds the idempotency key for one delivery
func dedupKey(event domain.WebhookEvent) string {
	return "webhook:" + event.StoreID.String() + ":" + event.DeliveryID
}
