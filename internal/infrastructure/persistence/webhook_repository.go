package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
)

// GormWebhookRepository implements WebhookRepository using GORM
type GormWebhookRepository struct {
	db *gorm.DB
}

// NewGormWebhookRepository creates a new GormWebhookRepository
func NewGormWebhookRepository(db *gorm.DB) *GormWebhookRepository {
	return &GormWebhookRepository{db: db}
}

// FindByStore returns all registrations for a store
func (r *GormWebhookRepository) FindByStore(ctx context.Context, storeID uuid.UUID) ([]sync.Webhook, error) {
	var webhookModels []models.WebhookModel
	if err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("topic ASC").
		Find(&webhookModels).Error; err != nil {
		return nil, err
	}

	webhooks := make([]sync.Webhook, 0, len(webhookModels))
	for _, model := range webhookModels {
		webhooks = append(webhooks, *model.ToDomain())
	}
	return webhooks, nil
}

// FindByStoreAndTopic returns the registration for one topic on a store
func (r *GormWebhookRepository) FindByStoreAndTopic(ctx context.Context, storeID uuid.UUID, topic string) (*sync.Webhook, error) {
	var model models.WebhookModel
	if err := r.db.WithContext(ctx).
		Where("store_id = ? AND topic = ?", storeID, topic).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrWebhookNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a registration. Re-registering a topic a store
// already has replaces the platform id and secret instead of duplicating
// the row.
func (r *GormWebhookRepository) Save(ctx context.Context, webhook *sync.Webhook) error {
	var model models.WebhookModel
	model.FromDomain(webhook)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "store_id"},
			{Name: "topic"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"external_id", "address", "format", "secret", "updated_at"}),
	}).Create(&model).Error
}

// Delete removes a registration
func (r *GormWebhookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.WebhookModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return sync.ErrWebhookNotFound
	}
	return nil
}

var _ sync.WebhookRepository = (*GormWebhookRepository)(nil)
