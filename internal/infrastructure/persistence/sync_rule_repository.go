package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
)

// GormSyncRuleRepository implements SyncRuleRepository using GORM
type GormSyncRuleRepository struct {
	db *gorm.DB
}

// NewGormSyncRuleRepository creates a new GormSyncRuleRepository
func NewGormSyncRuleRepository(db *gorm.DB) *GormSyncRuleRepository {
	return &GormSyncRuleRepository{db: db}
}

// FindByID finds a rule by its ID
func (r *GormSyncRuleRepository) FindByID(ctx context.Context, id uuid.UUID) (*sync.SyncRule, error) {
	var model models.SyncRuleModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrRuleNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns all rules
func (r *GormSyncRuleRepository) FindAll(ctx context.Context) ([]sync.SyncRule, error) {
	return r.findWhere(ctx, r.db.WithContext(ctx))
}

// FindActive returns all active rules
func (r *GormSyncRuleRepository) FindActive(ctx context.Context) ([]sync.SyncRule, error) {
	return r.findWhere(ctx, r.db.WithContext(ctx).Where("is_active = ?", true))
}

// FindActiveByKind returns active rules for one entity kind
func (r *GormSyncRuleRepository) FindActiveByKind(ctx context.Context, kind sync.EntityKind) ([]sync.SyncRule, error) {
	return r.findWhere(ctx, r.db.WithContext(ctx).
		Where("is_active = ? AND kind = ?", true, kind))
}

// FindActiveBySourceStore returns active rules whose source is the given
// store, optionally narrowed to one entity kind
func (r *GormSyncRuleRepository) FindActiveBySourceStore(ctx context.Context, storeID uuid.UUID, kind sync.EntityKind) ([]sync.SyncRule, error) {
	query := r.db.WithContext(ctx).
		Where("is_active = ? AND source_store_id = ?", true, storeID)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	return r.findWhere(ctx, query)
}

// findWhere runs a rule query and converts the results to domain rules
func (r *GormSyncRuleRepository) findWhere(ctx context.Context, query *gorm.DB) ([]sync.SyncRule, error) {
	var ruleModels []models.SyncRuleModel
	if err := query.Order("created_at ASC").Find(&ruleModels).Error; err != nil {
		return nil, err
	}

	rules := make([]sync.SyncRule, len(ruleModels))
	for i, model := range ruleModels {
		rules[i] = *model.ToDomain()
	}
	return rules, nil
}

// Save creates or updates a rule
func (r *GormSyncRuleRepository) Save(ctx context.Context, rule *sync.SyncRule) error {
	model := models.SyncRuleModelFromDomain(rule)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete deletes a rule
func (r *GormSyncRuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.SyncRuleModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return sync.ErrRuleNotFound
	}
	return nil
}

var _ sync.SyncRuleRepository = (*GormSyncRuleRepository)(nil)
