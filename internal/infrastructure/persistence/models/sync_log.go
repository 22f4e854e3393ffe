package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/storesync/backend/internal/domain/sync"
)

// SyncLogModel is the persistence model for the SyncLog domain entity
type SyncLogModel struct {
	ID               uuid.UUID          `gorm:"type:uuid;primary_key"`
	SyncRuleID       *uuid.UUID         `gorm:"type:uuid;index:idx_sync_logs_rule"`
	SourceStoreID    uuid.UUID          `gorm:"type:uuid;not null"`
	TargetStoreID    uuid.UUID          `gorm:"type:uuid;not null"`
	Kind             sync.EntityKind    `gorm:"type:varchar(20);not null;index:idx_sync_logs_kind"`
	Trigger          sync.SyncTrigger   `gorm:"type:varchar(20);not null"`
	Status           sync.SyncLogStatus `gorm:"type:varchar(20);not null;index:idx_sync_logs_status"`
	TotalRecords     int                `gorm:"not null;default:0"`
	CreatedRecords   int                `gorm:"not null;default:0"`
	UpdatedRecords   int                `gorm:"not null;default:0"`
	SkippedRecords   int                `gorm:"not null;default:0"`
	FailedRecords    int                `gorm:"not null;default:0"`
	FailedIDsJSON    string             `gorm:"type:jsonb;column:failed_ids"`
	ExternalSourceID string             `gorm:"type:varchar(100)"`
	ExternalTargetID string             `gorm:"type:varchar(100)"`
	Error            string             `gorm:"type:text"`
	RetryCount       int                `gorm:"not null;default:0"`
	NextRetryAt      *time.Time         `gorm:"index:idx_sync_logs_next_retry"`
	CreatedAt        time.Time          `gorm:"not null;index:idx_sync_logs_created"`
	StartedAt        *time.Time
	CompletedAt      *time.Time
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the persistence model to a domain SyncLog
func (m *SyncLogModel) ToDomain() *sync.SyncLog {
	log := &sync.SyncLog{
		ID:            m.ID,
		SyncRuleID:    m.SyncRuleID,
		SourceStoreID: m.SourceStoreID,
		TargetStoreID: m.TargetStoreID,
		Kind:          m.Kind,
		Trigger:       m.Trigger,
		Status:        m.Status,
		Stats: sync.RunStats{
			Total:   m.TotalRecords,
			Created: m.CreatedRecords,
			Updated: m.UpdatedRecords,
			Skipped: m.SkippedRecords,
			Failed:  m.FailedRecords,
		},
		FailedIDs:        make([]string, 0),
		ExternalSourceID: m.ExternalSourceID,
		ExternalTargetID: m.ExternalTargetID,
		Error:            m.Error,
		RetryCount:       m.RetryCount,
		NextRetryAt:      m.NextRetryAt,
		CreatedAt:        m.CreatedAt,
		StartedAt:        m.StartedAt,
		CompletedAt:      m.CompletedAt,
	}

	if m.FailedIDsJSON != "" {
		var failedIDs []string
		if err := json.Unmarshal([]byte(m.FailedIDsJSON), &failedIDs); err == nil {
			log.FailedIDs = failedIDs
		}
	}

	return log
}

// FromDomain populates the persistence model from a domain SyncLog
func (m *SyncLogModel) FromDomain(log *sync.SyncLog) {
	m.ID = log.ID
	m.SyncRuleID = log.SyncRuleID
	m.SourceStoreID = log.SourceStoreID
	m.TargetStoreID = log.TargetStoreID
	m.Kind = log.Kind
	m.Trigger = log.Trigger
	m.Status = log.Status
	m.TotalRecords = log.Stats.Total
	m.CreatedRecords = log.Stats.Created
	m.UpdatedRecords = log.Stats.Updated
	m.SkippedRecords = log.Stats.Skipped
	m.FailedRecords = log.Stats.Failed
	m.ExternalSourceID = log.ExternalSourceID
	m.ExternalTargetID = log.ExternalTargetID
	m.Error = log.Error
	m.RetryCount = log.RetryCount
	m.NextRetryAt = log.NextRetryAt
	m.CreatedAt = log.CreatedAt
	m.StartedAt = log.StartedAt
	m.CompletedAt = log.CompletedAt

	if len(log.FailedIDs) > 0 {
		if data, err := json.Marshal(log.FailedIDs); err == nil {
			m.FailedIDsJSON = string(data)
		}
	} else {
		m.FailedIDsJSON = "[]"
	}
}

// SyncLogModelFromDomain creates a new persistence model from a domain SyncLog
func SyncLogModelFromDomain(log *sync.SyncLog) *SyncLogModel {
	m := &SyncLogModel{}
	m.FromDomain(log)
	return m
}
