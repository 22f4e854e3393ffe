package sync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	domain "github.com/storesync/backend/internal/domain/sync"
)

// Orchestrator coordinates connectors, the condition matcher, the
// transformation engine, and the mapping store for rule executions.
// It is the only component in the sync pipeline with side effects.
type Orchestrator struct {
	stores   domain.StoreRepository
	mappings domain.MappingRepository
	logs     domain.SyncLogRepository
	registry domain.ConnectorRegistry
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewOrchestrator creates a new orchestrator. The limiter paces outbound
// adapter calls; upstream rate limits are respected here, not in adapters.
func NewOrchestrator(
	stores domain.StoreRepository,
	mappings domain.MappingRepository,
	logs domain.SyncLogRepository,
	registry domain.ConnectorRegistry,
	limiter *rate.Limiter,
	logger *zap.Logger,
) *Orchestrator {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Orchestrator{
		stores:   stores,
		mappings: mappings,
		logs:     logs,
		registry: registry,
		limiter:  limiter,
		logger:   logger,
	}
}

// Run executes one rule: a new pending log is created, records are paged
// from the source store, matched, transformed, and propagated to the
// target store. The returned log carries the terminal state and RunStats.
func (o *Orchestrator) Run(ctx context.Context, rule *domain.SyncRule, trigger domain.SyncTrigger) (*domain.SyncLog, error) {
	log := domain.NewSyncLog(rule, trigger)
	if err := o.logs.Save(ctx, log); err != nil {
		return nil, err
	}
	return o.RunWithLog(ctx, rule, log)
}

// RunWithLog executes a rule against an already-accepted log. Retries
// re-enter here with the re-opened log so the run keeps its retry count.
func (o *Orchestrator) RunWithLog(ctx context.Context, rule *domain.SyncRule, log *domain.SyncLog) (*domain.SyncLog, error) {
	runErr := o.execute(ctx, rule, log)
	if runErr != nil {
		if failErr := log.Fail(runErr.Error()); failErr != nil {
			o.logger.Error("Failed to finalize sync log",
				zap.String("log_id", log.ID.String()),
				zap.Error(failErr),
			)
		}
		if saveErr := o.logs.Save(ctx, log); saveErr != nil {
			o.logger.Error("Failed to persist failed sync log",
				zap.String("log_id", log.ID.String()),
				zap.Error(saveErr),
			)
		}
		return log, runErr
	}
	return log, nil
}

// runContext bundles the resolved collaborators for one run
type runContext struct {
	rule        *domain.SyncRule
	sourceStore *domain.Store
	targetStore *domain.Store
	source      domain.MarketplaceConnector
	target      domain.MarketplaceConnector
}

// execute pages through the source catalog and propagates each matching
// record. Any error it returns is a run-level failure; per-record failures
// are absorbed into the stats.
func (o *Orchestrator) execute(ctx context.Context, rule *domain.SyncRule, log *domain.SyncLog) error {
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

	var (
		stats     domain.RunStats
		failedIDs []string
		firstErr  string
	)

	cursor := ""
	for {
		if err := o.pace(ctx); err != nil {
			return interrupted(err)
		}
		page, err := rc.source.FetchRecords(ctx, rc.sourceStore, rule.Kind, cursor)
		if err != nil {
			return err
		}

		for i := range page.Records {
			if ctx.Err() != nil {
				return interrupted(ctx.Err())
			}
			stats.Total++

			record := rc.source.ToInternal(page.Records[i], rule.Kind)
			if !rule.Conditions.Matches(record) {
				stats.Skipped++
				continue
			}

			outcome, err := o.propagate(ctx, rc, record)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return interrupted(err)
				}
				stats.Failed++
				failedIDs = append(failedIDs, record.ExternalID)
				if firstErr == "" {
					firstErr = err.Error()
				}
				o.logger.Warn("Record propagation failed",
					zap.String("rule_id", rule.ID.String()),
					zap.String("entity_id", record.ExternalID),
					zap.Error(err),
				)
				continue
			}
			switch outcome {
			case outcomeCreated:
				stats.Created++
			case outcomeUpdated:
				stats.Updated++
			case outcomeSkipped:
				stats.Skipped++
			}
		}

		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	if err := log.Complete(stats, failedIDs, firstErr); err != nil {
		return err
	}
	return o.logs.Save(ctx, log)
}

// propagateOutcome is the per-record result of a propagation attempt
type propagateOutcome int

const (
	outcomeCreated propagateOutcome = iota
	outcomeUpdated
	outcomeSkipped
)

// propagate pushes one matched record to the target store. Products and
// orders are created or updated based on the resolved mapping; inventory
// has no create path, so records without a product mapping are skipped.
func (o *Orchestrator) propagate(ctx context.Context, rc *runContext, record *domain.InternalRecord) (propagateOutcome, error) {
	transformed := rc.rule.Transformations.Apply(record)

	if rc.rule.Kind == domain.EntityKindInventory {
		return o.pushInventory(ctx, rc, transformed)
	}

	targetID, err := o.mappings.Resolve(ctx, rc.rule.SourceStoreID, rc.rule.TargetStoreID, rc.rule.Kind, record.ExternalID)
	switch {
	case err == nil:
		payload := rc.target.FromInternal(transformed, rc.rule.Kind)
		if err := o.pace(ctx); err != nil {
			return outcomeSkipped, err
		}
		if err := rc.target.UpdateRecord(ctx, rc.targetStore, rc.rule.Kind, targetID, payload); err != nil {
			return outcomeSkipped, err
		}
		return outcomeUpdated, nil

	case errors.Is(err, domain.ErrMappingNotFound):
		payload := rc.target.FromInternal(transformed, rc.rule.Kind)
		if err := o.pace(ctx); err != nil {
			return outcomeSkipped, err
		}
		externalID, err := rc.target.CreateRecord(ctx, rc.targetStore, rc.rule.Kind, payload)
		if err != nil {
			return outcomeSkipped, err
		}
		mapping, err := domain.NewEntityMapping(
			rc.rule.SourceStoreID, rc.rule.TargetStoreID, rc.rule.Kind,
			record.ExternalID, externalID, rc.rule.ID,
		)
		if err != nil {
			return outcomeSkipped, err
		}
		if err := o.mappings.Upsert(ctx, mapping); err != nil {
			return outcomeSkipped, err
		}
		return outcomeCreated, nil

	default:
		return outcomeSkipped, err
	}
}

// pushInventory propagates an inventory level. Inventory sync presupposes
// the product already exists on the target store; a missing mapping means
// the record is skipped, not failed.
func (o *Orchestrator) pushInventory(ctx context.Context, rc *runContext, record *domain.InternalRecord) (propagateOutcome, error) {
	targetID, err := o.mappings.Resolve(ctx, rc.rule.SourceStoreID, rc.rule.TargetStoreID, domain.EntityKindProduct, record.ExternalID)
	if errors.Is(err, domain.ErrMappingNotFound) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeSkipped, err
	}

	quantity := int64(0)
	if raw, ok := record.Get("quantity"); ok {
		if d, numeric := domain.ToDecimal(raw); numeric {
			quantity = d.IntPart()
		}
	}

	if err := o.pace(ctx); err != nil {
		return outcomeSkipped, err
	}
	if err := rc.target.PushInventory(ctx, rc.targetStore, targetID, "", quantity); err != nil {
		return outcomeSkipped, err
	}
	return outcomeUpdated, nil
}

// resolveRun loads both stores with credentials and their connectors
func (o *Orchestrator) resolveRun(ctx context.Context, rule *domain.SyncRule) (*runContext, error) {
	sourceStore, err := o.stores.FindByIDWithCredentials(ctx, rule.SourceStoreID)
	if err != nil {
		return nil, err
	}
	targetStore, err := o.stores.FindByIDWithCredentials(ctx, rule.TargetStoreID)
	if err != nil {
		return nil, err
	}
	source, err := o.registry.Connector(sourceStore.Type)
	if err != nil {
		return nil, err
	}
	target, err := o.registry.Connector(targetStore.Type)
	if err != nil {
		return nil, err
	}
	return &runContext{
		rule:        rule,
		sourceStore: sourceStore,
		targetStore: targetStore,
		source:      source,
		target:      target,
	}, nil
}

// pace blocks until the next adapter call is allowed
func (o *Orchestrator) pace(ctx context.Context) error {
	return o.limiter.Wait(ctx)
}

// interrupted wraps a cancellation so an aborted run finalizes with a
// distinguishable error the retry policy can re-enqueue
func interrupted(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrRunInterrupted, err)
}
