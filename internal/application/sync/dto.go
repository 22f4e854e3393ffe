package sync

import (
	"github.com/google/uuid"

	domain "github.com/storesync/backend/internal/domain/sync"
)

// CreateRuleRequest carries the fields for creating a sync rule.
// Source and target must differ; NewSyncRule enforces it, since
// validator's nefield does not handle [16]byte UUID values.
type CreateRuleRequest struct {
	Name            string               `json:"name" validate:"required,max=255"`
	SourceStoreID   uuid.UUID            `json:"source_store_id" validate:"required"`
	TargetStoreID   uuid.UUID            `json:"target_store_id" validate:"required"`
	Kind            string               `json:"kind" validate:"required,oneof=PRODUCT INVENTORY ORDER"`
	Conditions      domain.PredicateSpec `json:"conditions"`
	Transformations domain.TransformSpec `json:"transformations"`
	Schedule        string               `json:"schedule" validate:"max=64"`
}

// UpdateRuleRequest carries the editable fields of a sync rule.
// Nil fields are left unchanged.
type UpdateRuleRequest struct {
	Name            *string              `json:"name,omitempty" validate:"omitempty,max=255"`
	Conditions      domain.PredicateSpec `json:"conditions,omitempty"`
	Transformations domain.TransformSpec `json:"transformations,omitempty"`
	Schedule        *string              `json:"schedule,omitempty" validate:"omitempty,max=64"`
}
