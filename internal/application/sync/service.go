package sync

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/shared"
	domain "github.com/storesync/backend/internal/domain/sync"
)

// JobQueue dispatches work onto the bounded worker pool. Implemented by
// the scheduler; the service never runs syncs inline.
type JobQueue interface {
	// EnqueueRun queues a full rule run
	EnqueueRun(ruleID uuid.UUID, trigger domain.SyncTrigger) error

	// EnqueueRetry queues a re-opened run for another attempt
	EnqueueRetry(logID uuid.UUID) error

	// EnqueueReconciliation queues a single-entity webhook reconciliation
	EnqueueReconciliation(event domain.WebhookEvent) error
}

// RetryPolicy holds the run retry and log retention settings
type RetryPolicy struct {
	// RetryFailedSync enables re-enqueueing failed runs
	RetryFailedSync bool
	// MaxRetryAttempts bounds how many times one run is retried
	MaxRetryAttempts int
	// RetryDelay is how long a failed run waits before re-enqueue
	RetryDelay time.Duration
	// LogRetentionDays is the age past which sync logs are purged
	LogRetentionDays int
}

// Service is the operator-facing application service over sync rules and
// sync logs: rule lifecycle, manual triggers, retry policy, log retention.
type Service struct {
	rules    domain.SyncRuleRepository
	logs     domain.SyncLogRepository
	stores   domain.StoreRepository
	webhooks domain.WebhookRepository
	registry domain.ConnectorRegistry
	queue    JobQueue
	policy   RetryPolicy
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates a new sync application service
func NewService(
	rules domain.SyncRuleRepository,
	logs domain.SyncLogRepository,
	stores domain.StoreRepository,
	webhooks domain.WebhookRepository,
	registry domain.ConnectorRegistry,
	queue JobQueue,
	policy RetryPolicy,
	logger *zap.Logger,
) *Service {
	return &Service{
		rules:    rules,
		logs:     logs,
		stores:   stores,
		webhooks: webhooks,
		registry: registry,
		queue:    queue,
		policy:   policy,
		validate: validator.New(),
		logger:   logger,
	}
}

// ---------------------------------------------------------------------------
// Rule Lifecycle
// ---------------------------------------------------------------------------

// CreateRule validates and persists a new sync rule
func (s *Service) CreateRule(ctx context.Context, req CreateRuleRequest) (*domain.SyncRule, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}

	if _, err := s.stores.FindByID(ctx, req.SourceStoreID); err != nil {
		return nil, err
	}
	if _, err := s.stores.FindByID(ctx, req.TargetStoreID); err != nil {
		return nil, err
	}

	rule, err := domain.NewSyncRule(req.Name, req.SourceStoreID, req.TargetStoreID, domain.EntityKind(req.Kind))
	if err != nil {
		return nil, err
	}
	rule.Conditions = req.Conditions
	rule.Transformations = req.Transformations
	rule.Schedule = req.Schedule
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	if err := s.rules.Save(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// UpdateRule applies edits to an existing rule
func (s *Service) UpdateRule(ctx context.Context, id uuid.UUID, req UpdateRuleRequest) (*domain.SyncRule, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}

	rule, err := s.rules.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Conditions != nil {
		rule.Conditions = req.Conditions
	}
	if req.Transformations != nil {
		rule.Transformations = req.Transformations
	}
	if req.Schedule != nil {
		rule.Schedule = *req.Schedule
	}
	rule.UpdatedAt = time.Now()
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	if err := s.rules.Save(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// GetRule retrieves a rule by ID
func (s *Service) GetRule(ctx context.Context, id uuid.UUID) (*domain.SyncRule, error) {
	return s.rules.FindByID(ctx, id)
}

// ListRules returns all rules
func (s *Service) ListRules(ctx context.Context) ([]domain.SyncRule, error) {
	return s.rules.FindAll(ctx)
}

// DeleteRule deletes a rule. Mappings the rule produced survive; they are
// only removed by explicit cleanup.
func (s *Service) DeleteRule(ctx context.Context, id uuid.UUID) error {
	if _, err := s.rules.FindByID(ctx, id); err != nil {
		return err
	}
	return s.rules.Delete(ctx, id)
}

// EnableRule activates a rule and registers its webhooks on the source
// store on first activation
func (s *Service) EnableRule(ctx context.Context, id uuid.UUID, callbackBase string) error {
	rule, err := s.rules.FindByID(ctx, id)
	if err != nil {
		return err
	}
	rule.Enable()
	if err := s.rules.Save(ctx, rule); err != nil {
		return err
	}

	if callbackBase != "" {
		if err := s.ensureWebhook(ctx, rule, callbackBase); err != nil {
			// Webhook registration failure does not roll back activation;
			// scheduled runs still cover the rule.
			s.logger.Warn("Webhook registration failed on rule activation",
				zap.String("rule_id", rule.ID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// DisableRule deactivates a rule
func (s *Service) DisableRule(ctx context.Context, id uuid.UUID) error {
	rule, err := s.rules.FindByID(ctx, id)
	if err != nil {
		return err
	}
	rule.Disable()
	return s.rules.Save(ctx, rule)
}

// RunNow queues a manual run of a rule
func (s *Service) RunNow(ctx context.Context, id uuid.UUID) error {
	rule, err := s.rules.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !rule.IsActive {
		return domain.ErrRuleInactive
	}
	return s.queue.EnqueueRun(rule.ID, domain.SyncTriggerManual)
}

// ---------------------------------------------------------------------------
// Sync Logs
// ---------------------------------------------------------------------------

// GetLog retrieves a sync log by ID
func (s *Service) GetLog(ctx context.Context, id uuid.UUID) (*domain.SyncLog, error) {
	return s.logs.FindByID(ctx, id)
}

// ListLogs returns sync logs matching the filter, newest first
func (s *Service) ListLogs(ctx context.Context, filter domain.SyncLogFilter) ([]domain.SyncLog, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	return s.logs.List(ctx, filter)
}

// ---------------------------------------------------------------------------
// Retry & Retention
// ---------------------------------------------------------------------------

// HandleRunFailure applies the retry policy to a failed run. Runs out of
// attempts, or with retry disabled, stay failed.
func (s *Service) HandleRunFailure(ctx context.Context, log *domain.SyncLog) {
	if !s.policy.RetryFailedSync {
		return
	}
	if !log.CanRetry(s.policy.MaxRetryAttempts) {
		return
	}
	if err := log.ScheduleRetry(s.policy.RetryDelay, s.policy.MaxRetryAttempts); err != nil {
		return
	}
	if err := s.logs.Save(ctx, log); err != nil {
		s.logger.Error("Failed to persist retry schedule",
			zap.String("log_id", log.ID.String()),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("Sync run scheduled for retry",
		zap.String("log_id", log.ID.String()),
		zap.Int("retry_count", log.RetryCount),
		zap.Time("next_retry_at", *log.NextRetryAt),
	)
}

// EnqueueDueRetries re-enqueues every re-opened run whose retry delay has
// elapsed
func (s *Service) EnqueueDueRetries(ctx context.Context) error {
	due, err := s.logs.FindDueRetries(ctx, time.Now())
	if err != nil {
		return err
	}
	for i := range due {
		log := &due[i]
		// Clear the retry marker before enqueueing so an overlapping sweep
		// does not enqueue the same run twice.
		retryAt := log.NextRetryAt
		log.NextRetryAt = nil
		if err := s.logs.Save(ctx, log); err != nil {
			s.logger.Error("Failed to claim retry", zap.String("log_id", log.ID.String()), zap.Error(err))
			continue
		}
		if err := s.queue.EnqueueRetry(log.ID); err != nil {
			s.logger.Error("Failed to enqueue retry", zap.String("log_id", log.ID.String()), zap.Error(err))
			// Restore the marker so the next sweep finds the run again;
			// a full queue must not strand a pending retry.
			log.NextRetryAt = retryAt
			if saveErr := s.logs.Save(ctx, log); saveErr != nil {
				s.logger.Error("Failed to restore retry schedule", zap.String("log_id", log.ID.String()), zap.Error(saveErr))
			}
		}
	}
	return nil
}

// PurgeOldLogs removes sync logs older than the retention window
func (s *Service) PurgeOldLogs(ctx context.Context) (int64, error) {
	if s.policy.LogRetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -s.policy.LogRetentionDays)
	removed, err := s.logs.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("Purged old sync logs",
			zap.Int64("removed", removed),
			zap.Time("cutoff", cutoff),
		)
	}
	return removed, nil
}

// ---------------------------------------------------------------------------
// Webhook Registration
// ---------------------------------------------------------------------------

// topicForKind maps an entity kind to the webhook topic registered for it
func topicForKind(kind domain.EntityKind) string {
	switch kind {
	case domain.EntityKindProduct:
		return "products/update"
	case domain.EntityKindInventory:
		return "inventory/update"
	case domain.EntityKindOrder:
		return "orders/update"
	default:
		return ""
	}
}

// ensureWebhook registers the rule's topic on its source store when no
// registration exists yet
func (s *Service) ensureWebhook(ctx context.Context, rule *domain.SyncRule, callbackBase string) error {
	topic := topicForKind(rule.Kind)
	if topic == "" {
		return domain.ErrRuleInvalidKind
	}

	existing, err := s.webhooks.FindByStoreAndTopic(ctx, rule.SourceStoreID, topic)
	if err == nil && existing != nil {
		return nil
	}

	store, err := s.stores.FindByIDWithCredentials(ctx, rule.SourceStoreID)
	if err != nil {
		return err
	}
	connector, err := s.registry.Connector(store.Type)
	if err != nil {
		return err
	}

	address := callbackBase + "/webhook/" + strings.ToLower(store.Type.String())
	externalID, err := connector.RegisterWebhook(ctx, store, topic, address)
	if err != nil {
		return err
	}

	secret := ""
	if store.Credentials != nil {
		secret = store.Credentials.WebhookSecret
	}
	webhook := &domain.Webhook{
		ID:         uuid.New(),
		StoreID:    store.ID,
		ExternalID: externalID,
		Topic:      topic,
		Address:    address,
		Format:     "json",
		Secret:     secret,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	return s.webhooks.Save(ctx, webhook)
}
