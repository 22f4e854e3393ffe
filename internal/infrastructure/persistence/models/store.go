package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/storesync/backend/internal/domain/sync"
)

// StoreModel is the persistence model for the Store domain entity.
// Credential columns are only selected by the with-credentials lookup.
type StoreModel struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key"`
	Name          string         `gorm:"type:varchar(255);not null"`
	Type          sync.StoreType `gorm:"type:varchar(20);not null;index"`
	BaseURL       string         `gorm:"type:varchar(512);not null"`
	IsActive      bool           `gorm:"not null;default:true;index"`
	APIKey        string         `gorm:"type:varchar(255)"`
	APISecret     string         `gorm:"type:varchar(255)"`
	AccessToken   string         `gorm:"type:varchar(512)"`
	WebhookSecret string         `gorm:"type:varchar(255)"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StoreModel) TableName() string {
	return "stores"
}

// ToDomain converts the persistence model to a domain Store without credentials
func (m *StoreModel) ToDomain() *sync.Store {
	return &sync.Store{
		ID:        m.ID,
		Name:      m.Name,
		Type:      m.Type,
		BaseURL:   m.BaseURL,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// ToDomainWithCredentials converts the model including its API credentials
func (m *StoreModel) ToDomainWithCredentials() *sync.Store {
	store := m.ToDomain()
	store.Credentials = &sync.StoreCredentials{
		APIKey:        m.APIKey,
		APISecret:     m.APISecret,
		AccessToken:   m.AccessToken,
		WebhookSecret: m.WebhookSecret,
	}
	return store
}

// FromDomain populates the persistence model from a domain Store
func (m *StoreModel) FromDomain(s *sync.Store) {
	m.ID = s.ID
	m.Name = s.Name
	m.Type = s.Type
	m.BaseURL = s.BaseURL
	m.IsActive = s.IsActive
	m.CreatedAt = s.CreatedAt
	m.UpdatedAt = s.UpdatedAt
	if s.Credentials != nil {
		m.APIKey = s.Credentials.APIKey
		m.APISecret = s.Credentials.APISecret
		m.AccessToken = s.Credentials.AccessToken
		m.WebhookSecret = s.Credentials.WebhookSecret
	}
}
