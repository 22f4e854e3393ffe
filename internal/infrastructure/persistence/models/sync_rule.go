package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/storesync/backend/internal/domain/sync"
)

// SyncRuleModel is the persistence model for the SyncRule domain entity.
// Conditions and transformations are stored as JSON documents.
type SyncRuleModel struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primary_key"`
	Name                string          `gorm:"type:varchar(255);not null"`
	SourceStoreID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_sync_rules_source"`
	TargetStoreID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_sync_rules_target"`
	Kind                sync.EntityKind `gorm:"type:varchar(20);not null;index:idx_sync_rules_kind"`
	ConditionsJSON      string          `gorm:"type:jsonb;column:conditions"`
	TransformationsJSON string          `gorm:"type:jsonb;column:transformations"`
	IsActive            bool            `gorm:"not null;default:true;index"`
	Schedule            string          `gorm:"type:varchar(64)"`
	CreatedAt           time.Time       `gorm:"not null"`
	UpdatedAt           time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncRuleModel) TableName() string {
	return "sync_rules"
}

// ToDomain converts the persistence model to a domain SyncRule
func (m *SyncRuleModel) ToDomain() *sync.SyncRule {
	rule := &sync.SyncRule{
		ID:              m.ID,
		Name:            m.Name,
		SourceStoreID:   m.SourceStoreID,
		TargetStoreID:   m.TargetStoreID,
		Kind:            m.Kind,
		Conditions:      sync.PredicateSpec{},
		Transformations: sync.TransformSpec{},
		IsActive:        m.IsActive,
		Schedule:        m.Schedule,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}

	if m.ConditionsJSON != "" {
		var conditions sync.PredicateSpec
		if err := json.Unmarshal([]byte(m.ConditionsJSON), &conditions); err == nil {
			rule.Conditions = conditions
		}
	}
	if m.TransformationsJSON != "" {
		var transformations sync.TransformSpec
		if err := json.Unmarshal([]byte(m.TransformationsJSON), &transformations); err == nil {
			rule.Transformations = transformations
		}
	}

	return rule
}

// FromDomain populates the persistence model from a domain SyncRule
func (m *SyncRuleModel) FromDomain(rule *sync.SyncRule) {
	m.ID = rule.ID
	m.Name = rule.Name
	m.SourceStoreID = rule.SourceStoreID
	m.TargetStoreID = rule.TargetStoreID
	m.Kind = rule.Kind
	m.IsActive = rule.IsActive
	m.Schedule = rule.Schedule
	m.CreatedAt = rule.CreatedAt
	m.UpdatedAt = rule.UpdatedAt

	m.ConditionsJSON = marshalOrEmpty(rule.Conditions)
	m.TransformationsJSON = marshalOrEmpty(rule.Transformations)
}

// SyncRuleModelFromDomain creates a new persistence model from a domain SyncRule
func SyncRuleModelFromDomain(rule *sync.SyncRule) *SyncRuleModel {
	m := &SyncRuleModel{}
	m.FromDomain(rule)
	return m
}

// marshalOrEmpty serializes a value to JSON, defaulting to an empty object
func marshalOrEmpty(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
