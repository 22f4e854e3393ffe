package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/storesync/backend/internal/domain/sync"
)

// Product and inventory correlations live in product_mappings, order
// correlations in order_mappings; the unique index on source entity,
// target store and kind is what makes propagation idempotent. Index names
// are global in both postgres and sqlite, so each table carries its own.

// ProductMappingModel persists product and inventory identity correlations
type ProductMappingModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	SourceStoreID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	TargetStoreID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_product_mapping_identity,priority:2"`
	Kind           sync.EntityKind `gorm:"type:varchar(20);not null;uniqueIndex:idx_product_mapping_identity,priority:3"`
	SourceEntityID string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_product_mapping_identity,priority:1"`
	TargetEntityID string          `gorm:"type:varchar(100);not null"`
	SyncRuleID     uuid.UUID       `gorm:"type:uuid;index"`
	CreatedAt      time.Time       `gorm:"not null"`
	UpdatedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductMappingModel) TableName() string {
	return "product_mappings"
}

// ToDomain converts the persistence model to a domain EntityMapping
func (m *ProductMappingModel) ToDomain() *sync.EntityMapping {
	return &sync.EntityMapping{
		ID:             m.ID,
		SourceStoreID:  m.SourceStoreID,
		TargetStoreID:  m.TargetStoreID,
		Kind:           m.Kind,
		SourceEntityID: m.SourceEntityID,
		TargetEntityID: m.TargetEntityID,
		SyncRuleID:     m.SyncRuleID,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain EntityMapping
func (m *ProductMappingModel) FromDomain(mapping *sync.EntityMapping) {
	m.ID = mapping.ID
	m.SourceStoreID = mapping.SourceStoreID
	m.TargetStoreID = mapping.TargetStoreID
	m.Kind = mapping.Kind
	m.SourceEntityID = mapping.SourceEntityID
	m.TargetEntityID = mapping.TargetEntityID
	m.SyncRuleID = mapping.SyncRuleID
	m.CreatedAt = mapping.CreatedAt
	m.UpdatedAt = mapping.UpdatedAt
}

// OrderMappingModel persists order identity correlations
type OrderMappingModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	SourceStoreID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	TargetStoreID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_order_mapping_identity,priority:2"`
	Kind           sync.EntityKind `gorm:"type:varchar(20);not null;uniqueIndex:idx_order_mapping_identity,priority:3"`
	SourceEntityID string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_order_mapping_identity,priority:1"`
	TargetEntityID string          `gorm:"type:varchar(100);not null"`
	SyncRuleID     uuid.UUID       `gorm:"type:uuid;index"`
	CreatedAt      time.Time       `gorm:"not null"`
	UpdatedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderMappingModel) TableName() string {
	return "order_mappings"
}

// ToDomain converts the persistence model to a domain EntityMapping
func (m *OrderMappingModel) ToDomain() *sync.EntityMapping {
	return &sync.EntityMapping{
		ID:             m.ID,
		SourceStoreID:  m.SourceStoreID,
		TargetStoreID:  m.TargetStoreID,
		Kind:           m.Kind,
		SourceEntityID: m.SourceEntityID,
		TargetEntityID: m.TargetEntityID,
		SyncRuleID:     m.SyncRuleID,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain EntityMapping
func (m *OrderMappingModel) FromDomain(mapping *sync.EntityMapping) {
	m.ID = mapping.ID
	m.SourceStoreID = mapping.SourceStoreID
	m.TargetStoreID = mapping.TargetStoreID
	m.Kind = mapping.Kind
	m.SourceEntityID = mapping.SourceEntityID
	m.TargetEntityID = mapping.TargetEntityID
	m.SyncRuleID = mapping.SyncRuleID
	m.CreatedAt = mapping.CreatedAt
	m.UpdatedAt = mapping.UpdatedAt
}
