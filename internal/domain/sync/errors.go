package sync

import (
	"errors"
	"fmt"
)

var (
	// Rule errors
	ErrRuleInvalidName      = errors.New("sync: rule name is required")
	ErrRuleInvalidSource    = errors.New("sync: invalid source store ID")
	ErrRuleInvalidTarget    = errors.New("sync: invalid target store ID")
	ErrRuleSameStore        = errors.New("sync: source and target store must differ")
	ErrRuleInvalidKind      = errors.New("sync: invalid entity kind")
	ErrRuleNotFound         = errors.New("sync: rule not found")
	ErrRuleInactive         = errors.New("sync: rule is not active")
	ErrRuleInvalidPredicate = errors.New("sync: invalid predicate spec")
	ErrRuleInvalidTransform = errors.New("sync: invalid transform spec")

	// Store errors
	ErrStoreNotFound      = errors.New("sync: store not found")
	ErrStoreInactive      = errors.New("sync: store is not active")
	ErrStoreNoCredentials = errors.New("sync: store credentials not configured")
	ErrStoreInvalidType   = errors.New("sync: invalid store type")

	// Mapping errors
	ErrMappingInvalidSourceStore = errors.New("sync: invalid mapping source store ID")
	ErrMappingInvalidTargetStore = errors.New("sync: invalid mapping target store ID")
	ErrMappingInvalidSourceID    = errors.New("sync: invalid mapping source entity ID")
	ErrMappingInvalidTargetID    = errors.New("sync: invalid mapping target entity ID")
	ErrMappingNotFound           = errors.New("sync: entity mapping not found")

	// Sync log errors
	ErrLogNotFound          = errors.New("sync: sync log not found")
	ErrLogFinalized         = errors.New("sync: sync log already finalized")
	ErrLogInvalidTransition = errors.New("sync: invalid sync log state transition")
	ErrLogRetryExhausted    = errors.New("sync: retry attempts exhausted")
	ErrLogNotRetryable      = errors.New("sync: sync log is not retryable")

	// Connector errors
	ErrConnectorNotRegistered = errors.New("sync: no connector registered for store type")
	ErrWebhookNotFound        = errors.New("sync: webhook registration not found")

	// ErrRunInterrupted marks a run aborted between records, e.g. on shutdown.
	// Interrupted runs finalize failed and stay eligible for retry.
	ErrRunInterrupted = errors.New("sync: run interrupted")
)

// MarketplaceError is the single error surfaced for any failed upstream
// marketplace call. Adapters never retry internally; retry policy is owned
// by the orchestrator.
type MarketplaceError struct {
	// Platform identifies the marketplace the call was made against
	Platform StoreType
	// Op is the adapter operation that failed (e.g. "fetch_records")
	Op string
	// StatusCode is the upstream HTTP status, 0 for transport failures
	StatusCode int
	// Message is the upstream error message
	Message string
	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface
func (e *MarketplaceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s failed with HTTP %d: %s", e.Platform, e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s failed: %s", e.Platform, e.Op, e.Message)
}

// Unwrap returns the underlying error
func (e *MarketplaceError) Unwrap() error {
	return e.Err
}

// NewMarketplaceError creates a marketplace error for a failed upstream call
func NewMarketplaceError(platform StoreType, op string, statusCode int, message string, err error) *MarketplaceError {
	return &MarketplaceError{
		Platform:   platform,
		Op:         op,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// IsMarketplaceError reports whether err is (or wraps) a MarketplaceError
func IsMarketplaceError(err error) bool {
	var me *MarketplaceError
	return errors.As(err, &me)
}
