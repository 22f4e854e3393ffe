package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// SyncLog Status
// ---------------------------------------------------------------------------

// SyncLogStatus represents the lifecycle state of a sync run
type SyncLogStatus string

const (
	// SyncLogStatusPending is set the instant a run is accepted,
	// before any network call
	SyncLogStatusPending SyncLogStatus = "PENDING"
	// SyncLogStatusInProgress is set on the first adapter call
	SyncLogStatusInProgress SyncLogStatus = "IN_PROGRESS"
	// SyncLogStatusCompleted means every fetched-and-matched record was
	// attempted, regardless of per-record outcome
	SyncLogStatusCompleted SyncLogStatus = "COMPLETED"
	// SyncLogStatusFailed means a run-level failure occurred
	SyncLogStatusFailed SyncLogStatus = "FAILED"
)

// IsValid returns true if the status is valid
func (s SyncLogStatus) IsValid() bool {
	switch s {
	case SyncLogStatusPending, SyncLogStatusInProgress, SyncLogStatusCompleted, SyncLogStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for completed and failed
func (s SyncLogStatus) IsTerminal() bool {
	return s == SyncLogStatusCompleted || s == SyncLogStatusFailed
}

// String returns the string representation of SyncLogStatus
func (s SyncLogStatus) String() string {
	return string(s)
}

// SyncTrigger identifies what started a run
type SyncTrigger string

const (
	// SyncTriggerScheduled marks runs started by the periodic trigger
	SyncTriggerScheduled SyncTrigger = "SCHEDULED"
	// SyncTriggerManual marks operator-initiated runs
	SyncTriggerManual SyncTrigger = "MANUAL"
	// SyncTriggerWebhook marks single-entity webhook reconciliations
	SyncTriggerWebhook SyncTrigger = "WEBHOOK"
)

// ---------------------------------------------------------------------------
// RunStats
// ---------------------------------------------------------------------------

// RunStats aggregates per-record outcomes for one run.
// Invariant: Total = Created + Updated + Skipped + Failed.
type RunStats struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Consistent reports whether the accounting invariant holds
func (s RunStats) Consistent() bool {
	return s.Total == s.Created+s.Updated+s.Skipped+s.Failed
}

// ---------------------------------------------------------------------------
// SyncLog Entity
// ---------------------------------------------------------------------------

// SyncLog is the append-only lifecycle record of one sync run or webhook
// reconciliation. Terminal states are immutable; the only sanctioned
// exception is ScheduleRetry, which re-opens a failed run within the
// configured attempt bound.
type SyncLog struct {
	// ID is the unique identifier of the log
	ID uuid.UUID
	// SyncRuleID references the rule that ran; nil for webhook-triggered
	// reconciliations not tied to a stored rule
	SyncRuleID *uuid.UUID
	// SourceStoreID is the run's source store
	SourceStoreID uuid.UUID
	// TargetStoreID is the run's target store
	TargetStoreID uuid.UUID
	// Kind is the entity kind the run covered
	Kind EntityKind
	// Trigger identifies what started the run
	Trigger SyncTrigger
	// Status is the run's lifecycle state
	Status SyncLogStatus
	// Stats aggregates per-record outcomes; meaningful once completed
	Stats RunStats
	// FailedIDs lists source entity ids whose propagation failed
	FailedIDs []string
	// ExternalSourceID is set for single-entity reconciliations
	ExternalSourceID string
	// ExternalTargetID is set when a single-entity run resolved a target id
	ExternalTargetID string
	// Error is the run-level (or first per-record) error message
	Error string
	// RetryCount is how many retry attempts have been made
	RetryCount int
	// NextRetryAt is when a failed run becomes eligible for re-enqueue
	NextRetryAt *time.Time
	// CreatedAt is when the run was accepted
	CreatedAt time.Time
	// StartedAt is when the first adapter call was made
	StartedAt *time.Time
	// CompletedAt is when the run reached a terminal state
	CompletedAt *time.Time
}

// NewSyncLog creates a pending log for a rule run
func NewSyncLog(rule *SyncRule, trigger SyncTrigger) *SyncLog {
	ruleID := rule.ID
	return &SyncLog{
		ID:            uuid.New(),
		SyncRuleID:    &ruleID,
		SourceStoreID: rule.SourceStoreID,
		TargetStoreID: rule.TargetStoreID,
		Kind:          rule.Kind,
		Trigger:       trigger,
		Status:        SyncLogStatusPending,
		FailedIDs:     make([]string, 0),
		CreatedAt:     time.Now(),
	}
}

// NewReconciliationLog creates a pending log for a single-entity
// webhook reconciliation
func NewReconciliationLog(sourceStoreID, targetStoreID uuid.UUID, kind EntityKind, externalSourceID string, ruleID *uuid.UUID) *SyncLog {
	return &SyncLog{
		ID:               uuid.New(),
		SyncRuleID:       ruleID,
		SourceStoreID:    sourceStoreID,
		TargetStoreID:    targetStoreID,
		Kind:             kind,
		Trigger:          SyncTriggerWebhook,
		Status:           SyncLogStatusPending,
		FailedIDs:        make([]string, 0),
		ExternalSourceID: externalSourceID,
		CreatedAt:        time.Now(),
	}
}

// Start transitions the log from pending to in_progress
func (l *SyncLog) Start() error {
	if l.Status != SyncLogStatusPending {
		return ErrLogInvalidTransition
	}
	now := time.Now()
	l.Status = SyncLogStatusInProgress
	l.StartedAt = &now
	return nil
}

// Complete finalizes the log with aggregate run stats. Per-record failures
// are carried in the stats and FailedIDs; they never flip the run to failed.
func (l *SyncLog) Complete(stats RunStats, failedIDs []string, firstError string) error {
	if l.Status.IsTerminal() {
		return ErrLogFinalized
	}
	if l.Status != SyncLogStatusInProgress {
		return ErrLogInvalidTransition
	}
	now := time.Now()
	l.Status = SyncLogStatusCompleted
	l.Stats = stats
	l.FailedIDs = failedIDs
	l.Error = firstError
	l.CompletedAt = &now
	l.NextRetryAt = nil
	return nil
}

// Fail finalizes the log with a run-level error
func (l *SyncLog) Fail(message string) error {
	if l.Status.IsTerminal() {
		return ErrLogFinalized
	}
	now := time.Now()
	l.Status = SyncLogStatusFailed
	l.Error = message
	l.CompletedAt = &now
	return nil
}

// CanRetry reports whether a failed run has attempts remaining
func (l *SyncLog) CanRetry(maxAttempts int) bool {
	return l.Status == SyncLogStatusFailed && l.RetryCount < maxAttempts
}

// ScheduleRetry re-opens a failed run for another attempt after the given
// delay. A run that has already failed maxAttempts times is never retried
// again.
func (l *SyncLog) ScheduleRetry(delay time.Duration, maxAttempts int) error {
	if l.Status != SyncLogStatusFailed {
		return ErrLogNotRetryable
	}
	if l.RetryCount >= maxAttempts {
		return ErrLogRetryExhausted
	}
	next := time.Now().Add(delay)
	l.RetryCount++
	l.NextRetryAt = &next
	l.Status = SyncLogStatusPending
	l.StartedAt = nil
	l.CompletedAt = nil
	return nil
}

// ---------------------------------------------------------------------------
// SyncLogRepository Interface
// ---------------------------------------------------------------------------

// SyncLogFilter defines filter criteria for listing sync logs
type SyncLogFilter struct {
	// SyncRuleID filters by rule (optional)
	SyncRuleID *uuid.UUID
	// Status filters by lifecycle state (optional)
	Status *SyncLogStatus
	// Kind filters by entity kind (optional)
	Kind *EntityKind
	// Page number (1-indexed)
	Page int
	// Page size
	PageSize int
}

// SyncLogRepository defines the persistence interface for sync logs
type SyncLogRepository interface {
	// FindByID finds a log by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*SyncLog, error)

	// List returns logs matching the filter, newest first, with the total count
	List(ctx context.Context, filter SyncLogFilter) ([]SyncLog, int64, error)

	// FindDueRetries returns runs re-opened by ScheduleRetry whose
	// NextRetryAt has passed and which have not yet been re-enqueued
	FindDueRetries(ctx context.Context, now time.Time) ([]SyncLog, error)

	// Save creates or updates a log
	Save(ctx context.Context, log *SyncLog) error

	// PurgeOlderThan deletes logs created before the cutoff, returning the
	// number of rows removed. Logs are purged by age, never by count.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
