package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// EntityMapping
// ---------------------------------------------------------------------------

// EntityMapping correlates a source-store entity id with its counterpart id
// on a specific target store. It is unique on (SourceEntityID, TargetStoreID,
// Kind); a second sync of the same source entity to the same target store
// updates TargetEntityID instead of creating a duplicate target record.
type EntityMapping struct {
	// ID is the unique identifier of this mapping
	ID uuid.UUID
	// SourceStoreID is the store the entity originates from
	SourceStoreID uuid.UUID
	// TargetStoreID is the store the entity was propagated to
	TargetStoreID uuid.UUID
	// Kind is the entity kind being correlated
	Kind EntityKind
	// SourceEntityID is the entity's id on the source store
	SourceEntityID string
	// TargetEntityID is the entity's id on the target store
	TargetEntityID string
	// SyncRuleID references the rule that produced this mapping
	SyncRuleID uuid.UUID
	// CreatedAt is when the mapping was first created
	CreatedAt time.Time
	// UpdatedAt is when the mapping was last upserted
	UpdatedAt time.Time
}

// NewEntityMapping creates a new entity mapping
func NewEntityMapping(sourceStoreID, targetStoreID uuid.UUID, kind EntityKind, sourceEntityID, targetEntityID string, ruleID uuid.UUID) (*EntityMapping, error) {
	if sourceStoreID == uuid.Nil {
		return nil, ErrMappingInvalidSourceStore
	}
	if targetStoreID == uuid.Nil {
		return nil, ErrMappingInvalidTargetStore
	}
	if sourceEntityID == "" {
		return nil, ErrMappingInvalidSourceID
	}
	if targetEntityID == "" {
		return nil, ErrMappingInvalidTargetID
	}
	if !kind.IsValid() {
		return nil, ErrRuleInvalidKind
	}

	now := time.Now()
	return &EntityMapping{
		ID:             uuid.New(),
		SourceStoreID:  sourceStoreID,
		TargetStoreID:  targetStoreID,
		Kind:           kind,
		SourceEntityID: sourceEntityID,
		TargetEntityID: targetEntityID,
		SyncRuleID:     ruleID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ---------------------------------------------------------------------------
// MappingRepository Interface
// ---------------------------------------------------------------------------

// MappingRepository defines the persistence interface for entity mappings.
// Upsert is the mechanism that makes the orchestrator's create-or-update
// decision idempotent under redelivered or overlapping triggers; writes to
// a given (SourceEntityID, TargetStoreID, Kind) row must be serialized.
type MappingRepository interface {
	// Resolve returns the target entity id previously correlated with the
	// source entity, or ErrMappingNotFound when no mapping exists
	Resolve(ctx context.Context, sourceStoreID, targetStoreID uuid.UUID, kind EntityKind, sourceEntityID string) (string, error)

	// Upsert creates the mapping on first propagation and updates
	// TargetEntityID on every subsequent one, never creating a duplicate
	Upsert(ctx context.Context, mapping *EntityMapping) error

	// FindByRule returns all mappings produced by a rule
	FindByRule(ctx context.Context, ruleID uuid.UUID) ([]EntityMapping, error)

	// Delete removes a mapping. Mappings are never deleted by normal
	// operation, only by explicit cleanup.
	Delete(ctx context.Context, id uuid.UUID) error
}
