package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
)

// GormMappingRepository implements MappingRepository using GORM.
// Product and inventory correlations share the product_mappings table;
// order correlations live in order_mappings.
type GormMappingRepository struct {
	db *gorm.DB
}

// NewGormMappingRepository creates a new GormMappingRepository
func NewGormMappingRepository(db *gorm.DB) *GormMappingRepository {
	return &GormMappingRepository{db: db}
}

// Resolve returns the target entity id previously correlated with the
// source entity, or ErrMappingNotFound when no mapping exists
func (r *GormMappingRepository) Resolve(ctx context.Context, sourceStoreID, targetStoreID uuid.UUID, kind sync.EntityKind, sourceEntityID string) (string, error) {
	query := r.db.WithContext(ctx).
		Where("source_store_id = ? AND target_store_id = ? AND kind = ? AND source_entity_id = ?",
			sourceStoreID, targetStoreID, kind, sourceEntityID)

	if kind == sync.EntityKindOrder {
		var model models.OrderMappingModel
		if err := query.First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", sync.ErrMappingNotFound
			}
			return "", err
		}
		return model.TargetEntityID, nil
	}

	var model models.ProductMappingModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", sync.ErrMappingNotFound
		}
		return "", err
	}
	return model.TargetEntityID, nil
}

// Upsert creates the mapping on first propagation and updates the target
// entity id on every subsequent one. The conflict target is the unique
// index on (source_entity_id, target_store_id, kind), which serializes
// concurrent writers on the same identity.
func (r *GormMappingRepository) Upsert(ctx context.Context, mapping *sync.EntityMapping) error {
	onConflict := clause.OnConflict{
		Columns: []clause.Column{
			{Name: "source_entity_id"},
			{Name: "target_store_id"},
			{Name: "kind"},
		},
		DoUpdates: clause.Assignments(map[string]any{
			"target_entity_id": mapping.TargetEntityID,
			"sync_rule_id":     mapping.SyncRuleID,
			"updated_at":       time.Now(),
		}),
	}

	if mapping.Kind == sync.EntityKindOrder {
		var model models.OrderMappingModel
		model.FromDomain(mapping)
		return r.db.WithContext(ctx).Clauses(onConflict).Create(&model).Error
	}

	var model models.ProductMappingModel
	model.FromDomain(mapping)
	return r.db.WithContext(ctx).Clauses(onConflict).Create(&model).Error
}

// FindByRule returns all mappings produced by a rule, across both tables
func (r *GormMappingRepository) FindByRule(ctx context.Context, ruleID uuid.UUID) ([]sync.EntityMapping, error) {
	var productModels []models.ProductMappingModel
	if err := r.db.WithContext(ctx).
		Where("sync_rule_id = ?", ruleID).
		Find(&productModels).Error; err != nil {
		return nil, err
	}

	var orderModels []models.OrderMappingModel
	if err := r.db.WithContext(ctx).
		Where("sync_rule_id = ?", ruleID).
		Find(&orderModels).Error; err != nil {
		return nil, err
	}

	mappings := make([]sync.EntityMapping, 0, len(productModels)+len(orderModels))
	for _, model := range productModels {
		mappings = append(mappings, *model.ToDomain())
	}
	for _, model := range orderModels {
		mappings = append(mappings, *model.ToDomain())
	}
	return mappings, nil
}

// Delete removes a mapping from whichever table holds it
func (r *GormMappingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.ProductMappingModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	result = r.db.WithContext(ctx).Delete(&models.OrderMappingModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return sync.ErrMappingNotFound
	}
	return nil
}

var _ sync.MappingRepository = (*GormMappingRepository)(nil)
