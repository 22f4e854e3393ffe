package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
)

// GormStoreRepository implements StoreRepository using GORM
type GormStoreRepository struct {
	db *gorm.DB
}

// NewGormStoreRepository creates a new GormStoreRepository
func NewGormStoreRepository(db *gorm.DB) *GormStoreRepository {
	return &GormStoreRepository{db: db}
}

// FindByID finds a store by its ID, without credentials
func (r *GormStoreRepository) FindByID(ctx context.Context, id uuid.UUID) (*sync.Store, error) {
	var model models.StoreModel
	if err := r.db.WithContext(ctx).
		Omit("api_key", "api_secret", "access_token", "webhook_secret").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrStoreNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDWithCredentials finds a store with its API credentials loaded
func (r *GormStoreRepository) FindByIDWithCredentials(ctx context.Context, id uuid.UUID) (*sync.Store, error) {
	var model models.StoreModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrStoreNotFound
		}
		return nil, err
	}
	return model.ToDomainWithCredentials(), nil
}

// FindActive returns all active stores
func (r *GormStoreRepository) FindActive(ctx context.Context) ([]sync.Store, error) {
	var storeModels []models.StoreModel
	if err := r.db.WithContext(ctx).
		Omit("api_key", "api_secret", "access_token", "webhook_secret").
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&storeModels).Error; err != nil {
		return nil, err
	}

	stores := make([]sync.Store, len(storeModels))
	for i, model := range storeModels {
		stores[i] = *model.ToDomain()
	}
	return stores, nil
}

// Save creates or updates a store
func (r *GormStoreRepository) Save(ctx context.Context, store *sync.Store) error {
	var model models.StoreModel
	model.FromDomain(store)
	return r.db.WithContext(ctx).Save(&model).Error
}

var _ sync.StoreRepository = (*GormStoreRepository)(nil)
