package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Webhook Entity
// ---------------------------------------------------------------------------

// Webhook records interest in a topic on a store. It is created when an
// operator, or the orchestrator on first activation of a rule, registers
// the topic with the platform; the ingestion endpoint reads it to verify
// request authenticity.
type Webhook struct {
	// ID is the unique identifier of the registration
	ID uuid.UUID
	// StoreID is the store the webhook is registered on
	StoreID uuid.UUID
	// ExternalID is the platform-assigned webhook id
	ExternalID string
	// Topic is the platform topic, e.g. "products/update"
	Topic string
	// Address is the callback URL the platform delivers to
	Address string
	// Format is the delivery payload format, typically "json"
	Format string
	// Secret is the shared secret used to verify deliveries
	Secret string
	// CreatedAt is when the registration was created
	CreatedAt time.Time
	// UpdatedAt is when the registration was last updated
	UpdatedAt time.Time
}

// ---------------------------------------------------------------------------
// WebhookEvent
// ---------------------------------------------------------------------------

// WebhookEvent is a verified inbound delivery, reduced to what
// reconciliation needs
type WebhookEvent struct {
	// StoreID is the store the delivery came from
	StoreID uuid.UUID
	// Platform is the delivering platform
	Platform StoreType
	// Topic is the platform topic of the delivery
	Topic string
	// Kind is the entity kind the topic maps to
	Kind EntityKind
	// ExternalEntityID is the affected entity's id on the source store
	ExternalEntityID string
	// DeliveryID uniquely identifies this delivery for dedup; platforms
	// reuse it on redelivery
	DeliveryID string
}

// ---------------------------------------------------------------------------
// WebhookRepository Interface
// ---------------------------------------------------------------------------

// WebhookRepository defines the persistence interface for webhook
// registrations
type WebhookRepository interface {
	// FindByStore returns all registrations for a store
	FindByStore(ctx context.Context, storeID uuid.UUID) ([]Webhook, error)

	// FindByStoreAndTopic returns the registration for one topic on a store
	FindByStoreAndTopic(ctx context.Context, storeID uuid.UUID, topic string) (*Webhook, error)

	// Save creates or updates a registration
	Save(ctx context.Context, webhook *Webhook) error

	// Delete removes a registration
	Delete(ctx context.Context, id uuid.UUID) error
}
