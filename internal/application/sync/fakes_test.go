package sync

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/storesync/backend/internal/domain/sync"
)

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

type memStoreRepo struct {
	stores map[uuid.UUID]*domain.Store
}

func newMemStoreRepo(stores ...*domain.Store) *memStoreRepo {
	repo := &memStoreRepo{stores: make(map[uuid.UUID]*domain.Store)}
	for _, s := range stores {
		repo.stores[s.ID] = s
	}
	return repo
}

func (r *memStoreRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Store, error) {
	store, ok := r.stores[id]
	if !ok {
		return nil, domain.ErrStoreNotFound
	}
	bare := *store
	bare.Credentials = nil
	return &bare, nil
}

func (r *memStoreRepo) FindByIDWithCredentials(_ context.Context, id uuid.UUID) (*domain.Store, error) {
	store, ok := r.stores[id]
	if !ok {
		return nil, domain.ErrStoreNotFound
	}
	copied := *store
	return &copied, nil
}

func (r *memStoreRepo) FindActive(_ context.Context) ([]domain.Store, error) {
	var out []domain.Store
	for _, s := range r.stores {
		if s.IsActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

type memRuleRepo struct {
	mu    stdsync.Mutex
	rules map[uuid.UUID]*domain.SyncRule
}

func newMemRuleRepo(rules ...*domain.SyncRule) *memRuleRepo {
	repo := &memRuleRepo{rules: make(map[uuid.UUID]*domain.SyncRule)}
	for _, r := range rules {
		repo.rules[r.ID] = r
	}
	return repo
}

func (r *memRuleRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.SyncRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, domain.ErrRuleNotFound
	}
	copied := *rule
	return &copied, nil
}

func (r *memRuleRepo) FindAll(_ context.Context) ([]domain.SyncRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SyncRule
	for _, rule := range r.rules {
		out = append(out, *rule)
	}
	return out, nil
}

func (r *memRuleRepo) FindActive(_ context.Context) ([]domain.SyncRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SyncRule
	for _, rule := range r.rules {
		if rule.IsActive {
			out = append(out, *rule)
		}
	}
	return out, nil
}

func (r *memRuleRepo) FindActiveByKind(_ context.Context, kind domain.EntityKind) ([]domain.SyncRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SyncRule
	for _, rule := range r.rules {
		if rule.IsActive && rule.Kind == kind {
			out = append(out, *rule)
		}
	}
	return out, nil
}

func (r *memRuleRepo) FindActiveBySourceStore(_ context.Context, storeID uuid.UUID, kind domain.EntityKind) ([]domain.SyncRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SyncRule
	for _, rule := range r.rules {
		if !rule.IsActive || rule.SourceStoreID != storeID {
			continue
		}
		if kind != "" && rule.Kind != kind {
			continue
		}
		out = append(out, *rule)
	}
	return out, nil
}

func (r *memRuleRepo) Save(_ context.Context, rule *domain.SyncRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *rule
	r.rules[rule.ID] = &copied
	return nil
}

func (r *memRuleRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return domain.ErrRuleNotFound
	}
	delete(r.rules, id)
	return nil
}

type memLogRepo struct {
	mu   stdsync.Mutex
	logs map[uuid.UUID]*domain.SyncLog
}

func newMemLogRepo() *memLogRepo {
	return &memLogRepo{logs: make(map[uuid.UUID]*domain.SyncLog)}
}

func (r *memLogRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.SyncLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	log, ok := r.logs[id]
	if !ok {
		return nil, domain.ErrLogNotFound
	}
	copied := *log
	return &copied, nil
}

func (r *memLogRepo) List(_ context.Context, filter domain.SyncLogFilter) ([]domain.SyncLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []domain.SyncLog
	for _, log := range r.logs {
		if filter.SyncRuleID != nil && (log.SyncRuleID == nil || *log.SyncRuleID != *filter.SyncRuleID) {
			continue
		}
		if filter.Status != nil && log.Status != *filter.Status {
			continue
		}
		if filter.Kind != nil && log.Kind != *filter.Kind {
			continue
		}
		all = append(all, *log)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, int64(len(all)), nil
}

func (r *memLogRepo) FindDueRetries(_ context.Context, now time.Time) ([]domain.SyncLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SyncLog
	for _, log := range r.logs {
		if log.Status == domain.SyncLogStatusPending && log.NextRetryAt != nil && !log.NextRetryAt.After(now) {
			out = append(out, *log)
		}
	}
	return out, nil
}

func (r *memLogRepo) Save(_ context.Context, log *domain.SyncLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *log
	r.logs[log.ID] = &copied
	return nil
}

func (r *memLogRepo) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for id, log := range r.logs {
		if log.CreatedAt.Before(cutoff) {
			delete(r.logs, id)
			removed++
		}
	}
	return removed, nil
}

// byStatus returns the stored logs in a given status
func (r *memLogRepo) byStatus(status domain.SyncLogStatus) []domain.SyncLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SyncLog
	for _, log := range r.logs {
		if log.Status == status {
			out = append(out, *log)
		}
	}
	return out
}

type mappingKey struct {
	targetStoreID  uuid.UUID
	kind           domain.EntityKind
	sourceEntityID string
}

type memMappingRepo struct {
	mu       stdsync.Mutex
	mappings map[mappingKey]*domain.EntityMapping
}

func newMemMappingRepo() *memMappingRepo {
	return &memMappingRepo{mappings: make(map[mappingKey]*domain.EntityMapping)}
}

func (r *memMappingRepo) Resolve(_ context.Context, _, targetStoreID uuid.UUID, kind domain.EntityKind, sourceEntityID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mapping, ok := r.mappings[mappingKey{targetStoreID, kind, sourceEntityID}]
	if !ok {
		return "", domain.ErrMappingNotFound
	}
	return mapping.TargetEntityID, nil
}

func (r *memMappingRepo) Upsert(_ context.Context, mapping *domain.EntityMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *mapping
	r.mappings[mappingKey{mapping.TargetStoreID, mapping.Kind, mapping.SourceEntityID}] = &copied
	return nil
}

func (r *memMappingRepo) FindByRule(_ context.Context, ruleID uuid.UUID) ([]domain.EntityMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.EntityMapping
	for _, mapping := range r.mappings {
		if mapping.SyncRuleID == ruleID {
			out = append(out, *mapping)
		}
	}
	return out, nil
}

func (r *memMappingRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, mapping := range r.mappings {
		if mapping.ID == id {
			delete(r.mappings, key)
			return nil
		}
	}
	return domain.ErrMappingNotFound
}

func (r *memMappingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mappings)
}

type webhookKey struct {
	storeID uuid.UUID
	topic   string
}

type memWebhookRepo struct {
	mu       stdsync.Mutex
	webhooks map[webhookKey]*domain.Webhook
}

func newMemWebhookRepo() *memWebhookRepo {
	return &memWebhookRepo{webhooks: make(map[webhookKey]*domain.Webhook)}
}

func (r *memWebhookRepo) FindByStore(_ context.Context, storeID uuid.UUID) ([]domain.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Webhook
	for key, wh := range r.webhooks {
		if key.storeID == storeID {
			out = append(out, *wh)
		}
	}
	return out, nil
}

func (r *memWebhookRepo) FindByStoreAndTopic(_ context.Context, storeID uuid.UUID, topic string) (*domain.Webhook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wh, ok := r.webhooks[webhookKey{storeID, topic}]
	if !ok {
		return nil, domain.ErrWebhookNotFound
	}
	copied := *wh
	return &copied, nil
}

func (r *memWebhookRepo) Save(_ context.Context, webhook *domain.Webhook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *webhook
	r.webhooks[webhookKey{webhook.StoreID, webhook.Topic}] = &copied
	return nil
}

func (r *memWebhookRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, wh := range r.webhooks {
		if wh.ID == id {
			delete(r.webhooks, key)
			return nil
		}
	}
	return domain.ErrWebhookNotFound
}

// ---------------------------------------------------------------------------
// Fake connector & registry
// ---------------------------------------------------------------------------

// fakeConnector is a scriptable in-memory marketplace. The source side
// serves records out of `records`; the target side captures creates and
// updates and can be told to fail for specific entity ids.
type fakeConnector struct {
	mu        stdsync.Mutex
	storeType domain.StoreType

	records  []domain.PlatformRecord
	byID     map[string]domain.PlatformRecord
	pageSize int
	fetchErr error

	created       []domain.PlatformRecord
	updated       map[string]domain.PlatformRecord
	inventory     map[string]int64
	nextCreateID  int
	failCreateFor map[string]error
	failUpdateFor map[string]error

	registeredTopics []string
	registerErr      error
}

func newFakeConnector(storeType domain.StoreType) *fakeConnector {
	return &fakeConnector{
		storeType:     storeType,
		byID:          make(map[string]domain.PlatformRecord),
		pageSize:      50,
		updated:       make(map[string]domain.PlatformRecord),
		inventory:     make(map[string]int64),
		failCreateFor: make(map[string]error),
		failUpdateFor: make(map[string]error),
	}
}

func (c *fakeConnector) addRecord(record domain.PlatformRecord) {
	c.records = append(c.records, record)
	c.byID[domain.Stringify(record["id"])] = record
}

func (c *fakeConnector) StoreType() domain.StoreType { return c.storeType }

func (c *fakeConnector) FetchRecords(_ context.Context, _ *domain.Store, _ domain.EntityKind, cursor string) (*domain.RecordPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(cursor)
	}
	end := start + c.pageSize
	if end > len(c.records) {
		end = len(c.records)
	}
	return &domain.RecordPage{
		Records:    c.records[start:end],
		NextCursor: strconv.Itoa(end),
		HasMore:    end < len(c.records),
	}, nil
}

func (c *fakeConnector) FetchRecord(_ context.Context, _ *domain.Store, _ domain.EntityKind, externalID string) (domain.PlatformRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	record, ok := c.byID[externalID]
	if !ok {
		return nil, fmt.Errorf("record %s not found", externalID)
	}
	return record, nil
}

func (c *fakeConnector) ToInternal(record domain.PlatformRecord, kind domain.EntityKind) *domain.InternalRecord {
	internal := domain.NewInternalRecord(kind, domain.Stringify(record["id"]))
	for k, v := range record {
		internal.Fields[k] = v
	}
	return internal
}

func (c *fakeConnector) FromInternal(record *domain.InternalRecord, _ domain.EntityKind) domain.PlatformRecord {
	out := domain.PlatformRecord{"id": record.ExternalID}
	for k, v := range record.Fields {
		out[k] = v
	}
	return out
}

func (c *fakeConnector) CreateRecord(_ context.Context, _ *domain.Store, _ domain.EntityKind, record domain.PlatformRecord) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failCreateFor[domain.Stringify(record["id"])]; err != nil {
		return "", err
	}
	c.nextCreateID++
	c.created = append(c.created, record)
	return fmt.Sprintf("tgt-%d", c.nextCreateID), nil
}

func (c *fakeConnector) UpdateRecord(_ context.Context, _ *domain.Store, _ domain.EntityKind, externalID string, record domain.PlatformRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failUpdateFor[externalID]; err != nil {
		return err
	}
	c.updated[externalID] = record
	return nil
}

func (c *fakeConnector) PushInventory(_ context.Context, _ *domain.Store, externalProductID, _ string, quantity int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inventory[externalProductID] = quantity
	return nil
}

func (c *fakeConnector) VerifyWebhookSignature(_ []byte, headers http.Header, secret string) bool {
	return headers.Get("X-Test-Signature") == secret
}

func (c *fakeConnector) RegisterWebhook(_ context.Context, _ *domain.Store, topic, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.registerErr != nil {
		return "", c.registerErr
	}
	c.registeredTopics = append(c.registeredTopics, topic)
	return fmt.Sprintf("wh-%d", len(c.registeredTopics)), nil
}

func (c *fakeConnector) createdTitles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	titles := make([]string, 0, len(c.created))
	for _, record := range c.created {
		titles = append(titles, domain.Stringify(record["title"]))
	}
	sort.Strings(titles)
	return titles
}

type fakeRegistry struct {
	connectors map[domain.StoreType]domain.MarketplaceConnector
}

func newFakeRegistry(connectors ...domain.MarketplaceConnector) *fakeRegistry {
	r := &fakeRegistry{connectors: make(map[domain.StoreType]domain.MarketplaceConnector)}
	for _, c := range connectors {
		r.connectors[c.StoreType()] = c
	}
	return r
}

func (r *fakeRegistry) Connector(storeType domain.StoreType) (domain.MarketplaceConnector, error) {
	c, ok := r.connectors[storeType]
	if !ok {
		return nil, domain.ErrConnectorNotRegistered
	}
	return c, nil
}

func (r *fakeRegistry) List() []domain.MarketplaceConnector {
	var out []domain.MarketplaceConnector
	for _, c := range r.connectors {
		out = append(out, c)
	}
	return out
}

// ---------------------------------------------------------------------------
// Fake dedup store & job queue
// ---------------------------------------------------------------------------

type fakeDedupStore struct {
	mu   stdsync.Mutex
	seen map[string]bool
	err  error
}

func newFakeDedupStore() *fakeDedupStore {
	return &fakeDedupStore{seen: make(map[string]bool)}
}

func (s *fakeDedupStore) MarkProcessed(_ context.Context, deliveryID string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if s.seen[deliveryID] {
		return false, nil
	}
	s.seen[deliveryID] = true
	return true, nil
}

func (s *fakeDedupStore) IsProcessed(_ context.Context, deliveryID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[deliveryID], nil
}

func (s *fakeDedupStore) Close() error { return nil }

type recordingQueue struct {
	mu              stdsync.Mutex
	runs            []uuid.UUID
	retries         []uuid.UUID
	reconciliations []domain.WebhookEvent
	retryErr        error
}

func (q *recordingQueue) EnqueueRun(ruleID uuid.UUID, _ domain.SyncTrigger) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.runs = append(q.runs, ruleID)
	return nil
}

func (q *recordingQueue) EnqueueRetry(logID uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.retryErr != nil {
		return q.retryErr
	}
	q.retries = append(q.retries, logID)
	return nil
}

func (q *recordingQueue) EnqueueReconciliation(event domain.WebhookEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reconciliations = append(q.reconciliations, event)
	return nil
}
