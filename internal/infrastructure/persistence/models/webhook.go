package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/storesync/backend/internal/domain/sync"
)

// WebhookModel is the persistence model for the Webhook domain entity
type WebhookModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	StoreID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_webhooks_store_topic,priority:1"`
	ExternalID string    `gorm:"type:varchar(100)"`
	Topic      string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_webhooks_store_topic,priority:2"`
	Address    string    `gorm:"type:varchar(512);not null"`
	Format     string    `gorm:"type:varchar(20);not null;default:'json'"`
	Secret     string    `gorm:"type:varchar(255)"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WebhookModel) TableName() string {
	return "webhooks"
}

// ToDomain converts the persistence model to a domain Webhook
func (m *WebhookModel) ToDomain() *sync.Webhook {
	return &sync.Webhook{
		ID:         m.ID,
		StoreID:    m.StoreID,
		ExternalID: m.ExternalID,
		Topic:      m.Topic,
		Address:    m.Address,
		Format:     m.Format,
		Secret:     m.Secret,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Webhook
func (m *WebhookModel) FromDomain(w *sync.Webhook) {
	m.ID = w.ID
	m.StoreID = w.StoreID
	m.ExternalID = w.ExternalID
	m.Topic = w.Topic
	m.Address = w.Address
	m.Format = w.Format
	m.Secret = w.Secret
	m.CreatedAt = w.CreatedAt
	m.UpdatedAt = w.UpdatedAt
}
