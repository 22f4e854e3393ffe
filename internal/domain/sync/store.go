package sync

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// StoreType
// ---------------------------------------------------------------------------

// StoreType represents the marketplace platform a store belongs to
type StoreType string

const (
	// StoreTypeShopify represents a Shopify store
	StoreTypeShopify StoreType = "SHOPIFY"
	// StoreTypeLazada represents a Lazada seller account
	StoreTypeLazada StoreType = "LAZADA"
	// StoreTypeShopee represents a Shopee seller account
	StoreTypeShopee StoreType = "SHOPEE"
	// StoreTypeWooCommerce represents a WooCommerce site
	StoreTypeWooCommerce StoreType = "WOOCOMMERCE"
)

// IsValid returns true if the store type is valid
func (t StoreType) IsValid() bool {
	switch t {
	case StoreTypeShopify, StoreTypeLazada, StoreTypeShopee, StoreTypeWooCommerce:
		return true
	default:
		return false
	}
}

// String returns the string representation of StoreType
func (t StoreType) String() string {
	return string(t)
}

// ParseStoreType parses a platform identifier (as used in webhook paths)
// into a StoreType. Matching is case-insensitive.
func ParseStoreType(s string) (StoreType, bool) {
	switch StoreType(strings.ToUpper(s)) {
	case StoreTypeShopify:
		return StoreTypeShopify, true
	case StoreTypeLazada:
		return StoreTypeLazada, true
	case StoreTypeShopee:
		return StoreTypeShopee, true
	case StoreTypeWooCommerce:
		return StoreTypeWooCommerce, true
	default:
		return "", false
	}
}

// ---------------------------------------------------------------------------
// Store Entity
// ---------------------------------------------------------------------------

// StoreCredentials holds the secrets needed to call a store's API.
// Credentials are only loaded through FindByIDWithCredentials.
type StoreCredentials struct {
	// APIKey is the platform API key or consumer key
	APIKey string
	// APISecret is the platform API secret or consumer secret
	APISecret string
	// AccessToken is the OAuth access token where the platform uses one
	AccessToken string
	// WebhookSecret is the per-store shared secret for webhook signatures
	WebhookSecret string
}

// Store represents a connected marketplace store
type Store struct {
	// ID is the unique identifier of the store
	ID uuid.UUID
	// Name is the operator-facing store name
	Name string
	// Type identifies the marketplace platform
	Type StoreType
	// BaseURL is the API base URL for this store
	BaseURL string
	// IsActive indicates whether the store participates in syncs
	IsActive bool
	// Credentials are the store's API secrets; nil unless loaded explicitly
	Credentials *StoreCredentials
	// CreatedAt is when the store was connected
	CreatedAt time.Time
	// UpdatedAt is when the store was last updated
	UpdatedAt time.Time
}

// HasCredentials returns true if credentials are loaded on this store
func (s *Store) HasCredentials() bool {
	return s.Credentials != nil
}

// ---------------------------------------------------------------------------
// StoreRepository Interface
// ---------------------------------------------------------------------------

// StoreRepository is the collaborator interface for store lookup.
// The core treats store persistence as an opaque repository.
type StoreRepository interface {
	// FindByID finds a store by its ID, without credentials
	FindByID(ctx context.Context, id uuid.UUID) (*Store, error)

	// FindByIDWithCredentials finds a store with its API credentials loaded
	FindByIDWithCredentials(ctx context.Context, id uuid.UUID) (*Store, error)

	// FindActive returns all active stores
	FindActive(ctx context.Context) ([]Store, error)
}
