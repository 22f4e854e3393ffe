package handler

import (
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	syncapp "github.com/storesync/backend/internal/application/sync"
	domain "github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/marketplace"
	"github.com/storesync/backend/internal/infrastructure/persistence"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
	"github.com/storesync/backend/internal/interfaces/http/router"
)

// captureQueue records enqueued work instead of executing it
type captureQueue struct {
	mu              sync.Mutex
	runs            []uuid.UUID
	retries         []uuid.UUID
	reconciliations []domain.WebhookEvent
	enqueueErr      error
}

func (q *captureQueue) EnqueueRun(ruleID uuid.UUID, trigger domain.SyncTrigger) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.runs = append(q.runs, ruleID)
	return nil
}

func (q *captureQueue) EnqueueRetry(logID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.retries = append(q.retries, logID)
	return nil
}

func (q *captureQueue) EnqueueReconciliation(event domain.WebhookEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.reconciliations = append(q.reconciliations, event)
	return nil
}

// testAPI bundles the wired handlers and their backing repositories
type testAPI struct {
	engine   *gin.Engine
	db       *gorm.DB
	queue    *captureQueue
	stores   *persistence.GormStoreRepository
	rules    *persistence.GormSyncRuleRepository
	logs     *persistence.GormSyncLogRepository
	webhooks *persistence.GormWebhookRepository
	service  *syncapp.Service
}

const testPublicURL = "https://sync.example.com"

func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.StoreModel{},
		&models.SyncRuleModel{},
		&models.SyncLogModel{},
		&models.WebhookModel{},
	))

	stores := persistence.NewGormStoreRepository(db)
	rules := persistence.NewGormSyncRuleRepository(db)
	logs := persistence.NewGormSyncLogRepository(db)
	webhooks := persistence.NewGormWebhookRepository(db)
	registry := marketplace.NewRegistry(
		marketplace.NewShopifyConnector(),
		marketplace.NewWooCommerceConnector(),
	)
	queue := &captureQueue{}

	service := syncapp.NewService(rules, logs, stores, webhooks, registry, queue, syncapp.RetryPolicy{
		RetryFailedSync:  true,
		MaxRetryAttempts: 3,
		RetryDelay:       time.Minute,
		LogRetentionDays: 30,
	}, zap.NewNop())

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	r := router.NewRouter(engine)
	r.Register(NewSyncRuleHandler(service, testPublicURL))
	r.Register(NewSyncLogHandler(service))
	r.RegisterRoot(NewWebhookHandler(stores, webhooks, registry, queue, testPublicURL, zap.NewNop()))
	r.Setup()

	return &testAPI{
		engine:   engine,
		db:       db,
		queue:    queue,
		stores:   stores,
		rules:    rules,
		logs:     logs,
		webhooks: webhooks,
		service:  service,
	}
}

// seedStore persists a store and returns it with credentials attached
func (api *testAPI) seedStore(t *testing.T, storeType domain.StoreType, webhookSecret string) *domain.Store {
	t.Helper()

	store := &domain.Store{
		ID:       uuid.New(),
		Name:     "test " + storeType.String(),
		Type:     storeType,
		BaseURL:  "https://" + storeType.String() + ".example.com",
		IsActive: true,
		Credentials: &domain.StoreCredentials{
			APIKey:        "key",
			APISecret:     "secret",
			AccessToken:   "token",
			WebhookSecret: webhookSecret,
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	var model models.StoreModel
	model.FromDomain(store)
	require.NoError(t, api.db.Create(&model).Error)
	return store
}

// seedWebhook persists a webhook registration for a store
func (api *testAPI) seedWebhook(t *testing.T, storeID uuid.UUID, topic, secret string) {
	t.Helper()

	model := models.WebhookModel{
		ID:         uuid.New(),
		StoreID:    storeID,
		ExternalID: "wh-1",
		Topic:      topic,
		Address:    testPublicURL + "/webhook/shopify",
		Format:     "json",
		Secret:     secret,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	require.NoError(t, api.db.Create(&model).Error)
}
