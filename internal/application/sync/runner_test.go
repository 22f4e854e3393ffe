package sync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domain "github.com/storesync/backend/internal/domain/sync"
)

type runnerFixture struct {
	*orchestratorFixture
	runner *Runner
	rules  *memRuleRepo
	queue  *recordingQueue
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()

	base := newOrchestratorFixture(t)
	rules := newMemRuleRepo()
	queue := &recordingQueue{}

	registry := newFakeRegistry(base.source, base.target)
	service := NewService(rules, base.logs, base.stores, newMemWebhookRepo(), registry, queue, RetryPolicy{
		RetryFailedSync:  true,
		MaxRetryAttempts: 3,
		RetryDelay:       time.Minute,
		LogRetentionDays: 30,
	}, zap.NewNop())
	reconciler := NewReconciler(base.orchestrator, rules, newFakeDedupStore(), zap.NewNop())
	runner := NewRunner(base.orchestrator, reconciler, service, rules, base.logs, zap.NewNop())

	return &runnerFixture{
		orchestratorFixture: base,
		runner:              runner,
		rules:               rules,
		queue:               queue,
	}
}

func (f *runnerFixture) seedRule(t *testing.T) *domain.SyncRule {
	t.Helper()
	rule := f.productRule(t)
	require.NoError(t, f.rules.Save(context.Background(), rule))
	return rule
}

func TestRunner_ExecuteRule(t *testing.T) {
	ctx := context.Background()

	t.Run("runs a rule to completion", func(t *testing.T) {
		f := newRunnerFixture(t)
		seedCatalog(f.orchestratorFixture)
		rule := f.seedRule(t)

		stats, err := f.runner.ExecuteRule(ctx, rule.ID, domain.SyncTriggerScheduled)

		require.NoError(t, err)
		assert.Equal(t, domain.RunStats{Total: 4, Created: 4}, stats)
	})

	t.Run("unknown rule", func(t *testing.T) {
		f := newRunnerFixture(t)

		_, err := f.runner.ExecuteRule(ctx, uuid.New(), domain.SyncTriggerScheduled)

		assert.ErrorIs(t, err, domain.ErrRuleNotFound)
	})

	t.Run("inactive rule is refused", func(t *testing.T) {
		f := newRunnerFixture(t)
		rule := f.seedRule(t)
		rule.Disable()
		require.NoError(t, f.rules.Save(ctx, rule))

		_, err := f.runner.ExecuteRule(ctx, rule.ID, domain.SyncTriggerScheduled)

		assert.ErrorIs(t, err, domain.ErrRuleInactive)
	})

	t.Run("run failure schedules a retry", func(t *testing.T) {
		f := newRunnerFixture(t)
		f.source.fetchErr = domain.NewMarketplaceError(domain.StoreTypeShopify, "fetch_records", 503, "service unavailable", nil)
		rule := f.seedRule(t)

		_, err := f.runner.ExecuteRule(ctx, rule.ID, domain.SyncTriggerScheduled)

		require.Error(t, err)
		pending := f.logs.byStatus(domain.SyncLogStatusPending)
		require.Len(t, pending, 1)
		assert.Equal(t, 1, pending[0].RetryCount)
		require.NotNil(t, pending[0].NextRetryAt)
	})
}

func TestRunner_ExecuteRetry(t *testing.T) {
	ctx := context.Background()

	// retryableLog runs a rule against a broken source, which fails the run
	// and re-opens its log under the retry policy.
	retryableLog := func(t *testing.T, f *runnerFixture, rule *domain.SyncRule) *domain.SyncLog {
		t.Helper()
		f.source.fetchErr = assert.AnError
		_, err := f.runner.ExecuteRule(ctx, rule.ID, domain.SyncTriggerScheduled)
		require.Error(t, err)
		f.source.fetchErr = nil

		pending := f.logs.byStatus(domain.SyncLogStatusPending)
		require.Len(t, pending, 1)
		return &pending[0]
	}

	t.Run("retry completes and keeps the attempt count", func(t *testing.T) {
		f := newRunnerFixture(t)
		seedCatalog(f.orchestratorFixture)
		rule := f.seedRule(t)
		log := retryableLog(t, f, rule)

		stats, err := f.runner.ExecuteRetry(ctx, log.ID)

		require.NoError(t, err)
		assert.Equal(t, domain.RunStats{Total: 4, Created: 4}, stats)

		stored, err := f.logs.FindByID(ctx, log.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.SyncLogStatusCompleted, stored.Status)
		assert.Equal(t, 1, stored.RetryCount)
		assert.Nil(t, stored.NextRetryAt)
	})

	t.Run("repeated failure schedules the next attempt", func(t *testing.T) {
		f := newRunnerFixture(t)
		rule := f.seedRule(t)
		log := retryableLog(t, f, rule)
		f.source.fetchErr = assert.AnError

		_, err := f.runner.ExecuteRetry(ctx, log.ID)

		require.Error(t, err)
		stored, findErr := f.logs.FindByID(ctx, log.ID)
		require.NoError(t, findErr)
		assert.Equal(t, domain.SyncLogStatusPending, stored.Status)
		assert.Equal(t, 2, stored.RetryCount)
	})

	t.Run("completed log is not retryable", func(t *testing.T) {
		f := newRunnerFixture(t)
		seedCatalog(f.orchestratorFixture)
		rule := f.seedRule(t)

		_, err := f.runner.ExecuteRule(ctx, rule.ID, domain.SyncTriggerScheduled)
		require.NoError(t, err)
		completed := f.logs.byStatus(domain.SyncLogStatusCompleted)
		require.Len(t, completed, 1)

		_, err = f.runner.ExecuteRetry(ctx, completed[0].ID)

		assert.ErrorIs(t, err, domain.ErrLogNotRetryable)
	})

	t.Run("unknown log", func(t *testing.T) {
		f := newRunnerFixture(t)

		_, err := f.runner.ExecuteRetry(ctx, uuid.New())

		assert.ErrorIs(t, err, domain.ErrLogNotFound)
	})

	t.Run("log without a rule", func(t *testing.T) {
		f := newRunnerFixture(t)
		orphan := &domain.SyncLog{
			ID:      uuid.New(),
			Kind:    domain.EntityKindProduct,
			Trigger: domain.SyncTriggerScheduled,
			Status:  domain.SyncLogStatusPending,
		}
		require.NoError(t, f.logs.Save(ctx, orphan))

		_, err := f.runner.ExecuteRetry(ctx, orphan.ID)

		assert.ErrorIs(t, err, domain.ErrRuleNotFound)
	})
}

func TestRunner_ExecuteReconciliation(t *testing.T) {
	ctx := context.Background()
	f := newRunnerFixture(t)
	seedCatalog(f.orchestratorFixture)
	rule := f.seedRule(t)

	err := f.runner.ExecuteReconciliation(ctx, domain.WebhookEvent{
		StoreID:          f.sourceStore.ID,
		Platform:         domain.StoreTypeShopify,
		Kind:             domain.EntityKindProduct,
		ExternalEntityID: "p1",
		DeliveryID:       "delivery-1",
	})

	require.NoError(t, err)
	assert.Len(t, f.target.created, 1)

	logs := f.logs.byStatus(domain.SyncLogStatusCompleted)
	require.Len(t, logs, 1)
	assert.Equal(t, rule.ID, *logs[0].SyncRuleID)
	assert.Equal(t, domain.SyncTriggerWebhook, logs[0].Trigger)
}
