package sync

import (
	"context"
	"net/http"
)

// ---------------------------------------------------------------------------
// MarketplaceConnector Port Interface
// ---------------------------------------------------------------------------

// PlatformRecord is a raw platform-shaped payload as sent to or received
// from a marketplace API. Its shape is connector-specific.
type PlatformRecord map[string]any

// RecordPage is one page of a paginated fetch
type RecordPage struct {
	// Records are the raw platform records on this page
	Records []PlatformRecord
	// NextCursor continues the fetch when HasMore is true. Connectors for
	// page-number platforms encode the page number as the cursor.
	NextCursor string
	// HasMore indicates another page exists
	HasMore bool
}

// MarketplaceConnector is the fixed capability interface every supported
// platform implements. Connectors surface any network or upstream failure
// as a single MarketplaceError and never retry internally.
type MarketplaceConnector interface {
	// StoreType returns the platform this connector handles
	StoreType() StoreType

	// FetchRecords fetches one page of records of the given kind.
	// An empty cursor starts from the beginning.
	FetchRecords(ctx context.Context, store *Store, kind EntityKind, cursor string) (*RecordPage, error)

	// FetchRecord fetches a single record by its external id, used by
	// webhook-triggered reconciliation
	FetchRecord(ctx context.Context, store *Store, kind EntityKind, externalID string) (PlatformRecord, error)

	// ToInternal maps a platform record to the internal representation.
	// It is total: missing optional fields map to defaults, never an error.
	ToInternal(record PlatformRecord, kind EntityKind) *InternalRecord

	// FromInternal maps an internal record back to the platform shape.
	// It is total in the same sense as ToInternal.
	FromInternal(record *InternalRecord, kind EntityKind) PlatformRecord

	// CreateRecord creates a record on the store and returns its external id
	CreateRecord(ctx context.Context, store *Store, kind EntityKind, record PlatformRecord) (string, error)

	// UpdateRecord updates an existing record on the store
	UpdateRecord(ctx context.Context, store *Store, kind EntityKind, externalID string, record PlatformRecord) error

	// PushInventory sets the available quantity for a product, or for one
	// of its variants when externalVariantID is non-empty
	PushInventory(ctx context.Context, store *Store, externalProductID, externalVariantID string, quantity int64) error

	// VerifyWebhookSignature checks the platform-specific HMAC signature
	// over the raw request body against the per-store shared secret
	VerifyWebhookSignature(rawBody []byte, headers http.Header, secret string) bool

	// RegisterWebhook registers interest in a topic on the store and
	// returns the platform-assigned webhook id
	RegisterWebhook(ctx context.Context, store *Store, topic, address string) (string, error)
}

// ---------------------------------------------------------------------------
// ConnectorRegistry
// ---------------------------------------------------------------------------

// ConnectorRegistry provides access to the configured connectors,
// keyed by store type
type ConnectorRegistry interface {
	// Connector returns the connector for the given store type
	Connector(storeType StoreType) (MarketplaceConnector, error)

	// List returns all registered connectors
	List() []MarketplaceConnector
}
