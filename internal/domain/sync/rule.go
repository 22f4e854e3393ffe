package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// SyncRule Entity
// ---------------------------------------------------------------------------

// SyncRule is a configured synchronization policy between two stores:
// which entities flow from the source store to the target store, filtered
// by Conditions and mapped through Transformations.
type SyncRule struct {
	// ID is the unique identifier of the rule
	ID uuid.UUID
	// Name is the operator-facing rule name
	Name string
	// SourceStoreID is the store records are fetched from
	SourceStoreID uuid.UUID
	// TargetStoreID is the store records are propagated to
	TargetStoreID uuid.UUID
	// Kind is the entity kind this rule synchronizes
	Kind EntityKind
	// Conditions filter source records; empty means every record qualifies
	Conditions PredicateSpec
	// Transformations map qualifying records before propagation
	Transformations TransformSpec
	// IsActive indicates whether the scheduler picks this rule up
	IsActive bool
	// Schedule is the cron expression for periodic runs; empty means the
	// rule only runs on the per-kind default schedule or manual triggers
	Schedule string
	// CreatedAt is when the rule was created
	CreatedAt time.Time
	// UpdatedAt is when the rule was last updated
	UpdatedAt time.Time
}

// NewSyncRule creates a new sync rule between two distinct stores
func NewSyncRule(name string, sourceStoreID, targetStoreID uuid.UUID, kind EntityKind) (*SyncRule, error) {
	rule := &SyncRule{
		ID:              uuid.New(),
		Name:            name,
		SourceStoreID:   sourceStoreID,
		TargetStoreID:   targetStoreID,
		Kind:            kind,
		Conditions:      PredicateSpec{},
		Transformations: TransformSpec{},
		IsActive:        true,
	}
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// Validate validates the rule's invariants
func (r *SyncRule) Validate() error {
	if r.Name == "" {
		return ErrRuleInvalidName
	}
	if r.SourceStoreID == uuid.Nil {
		return ErrRuleInvalidSource
	}
	if r.TargetStoreID == uuid.Nil {
		return ErrRuleInvalidTarget
	}
	if r.SourceStoreID == r.TargetStoreID {
		return ErrRuleSameStore
	}
	if !r.Kind.IsValid() {
		return ErrRuleInvalidKind
	}
	if err := r.Conditions.Validate(); err != nil {
		return err
	}
	return r.Transformations.Validate()
}

// Enable activates the rule
func (r *SyncRule) Enable() {
	r.IsActive = true
	r.UpdatedAt = time.Now()
}

// Disable deactivates the rule
func (r *SyncRule) Disable() {
	r.IsActive = false
	r.UpdatedAt = time.Now()
}

// ---------------------------------------------------------------------------
// SyncRuleRepository Interface
// ---------------------------------------------------------------------------

// SyncRuleRepository defines the persistence interface for sync rules
type SyncRuleRepository interface {
	// FindByID finds a rule by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*SyncRule, error)

	// FindAll returns all rules
	FindAll(ctx context.Context) ([]SyncRule, error)

	// FindActive returns all active rules
	FindActive(ctx context.Context) ([]SyncRule, error)

	// FindActiveByKind returns active rules for one entity kind
	FindActiveByKind(ctx context.Context, kind EntityKind) ([]SyncRule, error)

	// FindActiveBySourceStore returns active rules whose source is the
	// given store, optionally narrowed to one entity kind
	FindActiveBySourceStore(ctx context.Context, storeID uuid.UUID, kind EntityKind) ([]SyncRule, error)

	// Save creates or updates a rule
	Save(ctx context.Context, rule *SyncRule) error

	// Delete deletes a rule
	Delete(ctx context.Context, id uuid.UUID) error
}
