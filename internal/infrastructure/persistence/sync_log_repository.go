package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/persistence/models"
)

// GormSyncLogRepository implements SyncLogRepository using GORM
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// FindByID finds a log by its ID
func (r *GormSyncLogRepository) FindByID(ctx context.Context, id uuid.UUID) (*sync.SyncLog, error) {
	var model models.SyncLogModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrLogNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns logs matching the filter, newest first, with the total count
func (r *GormSyncLogRepository) List(ctx context.Context, filter sync.SyncLogFilter) ([]sync.SyncLog, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SyncLogModel{})

	if filter.SyncRuleID != nil {
		query = query.Where("sync_rule_id = ?", *filter.SyncRuleID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	var logModels []models.SyncLogModel
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&logModels).Error; err != nil {
		return nil, 0, err
	}

	logs := make([]sync.SyncLog, len(logModels))
	for i, model := range logModels {
		logs[i] = *model.ToDomain()
	}
	return logs, total, nil
}

// FindDueRetries returns runs re-opened for retry whose NextRetryAt has
// passed and which have not yet been re-enqueued
func (r *GormSyncLogRepository) FindDueRetries(ctx context.Context, now time.Time) ([]sync.SyncLog, error) {
	var logModels []models.SyncLogModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", sync.SyncLogStatusPending, now).
		Order("next_retry_at ASC").
		Find(&logModels).Error; err != nil {
		return nil, err
	}

	logs := make([]sync.SyncLog, len(logModels))
	for i, model := range logModels {
		logs[i] = *model.ToDomain()
	}
	return logs, nil
}

// Save creates or updates a log
func (r *GormSyncLogRepository) Save(ctx context.Context, log *sync.SyncLog) error {
	model := models.SyncLogModelFromDomain(log)
	return r.db.WithContext(ctx).Save(model).Error
}

// PurgeOlderThan deletes logs created before the cutoff, returning the
// number of rows removed
func (r *GormSyncLogRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.SyncLogModel{})
	return result.RowsAffected, result.Error
}

var _ sync.SyncLogRepository = (*GormSyncLogRepository)(nil)
