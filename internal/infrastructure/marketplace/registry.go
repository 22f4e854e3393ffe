package marketplace

import (
	"fmt"
	"sync"

	domain "github.com/storesync/backend/internal/domain/sync"
)

// Registry holds the configured connectors keyed by store type.
// Dispatch is by lookup; adding a platform means registering a connector,
// not touching call sites.
type Registry struct {
	mu         sync.RWMutex
	connectors map[domain.StoreType]domain.MarketplaceConnector
}

// NewRegistry creates a registry with the given connectors
func NewRegistry(connectors ...domain.MarketplaceConnector) *Registry {
	r := &Registry{
		connectors: make(map[domain.StoreType]domain.MarketplaceConnector, len(connectors)),
	}
	for _, c := range connectors {
		r.connectors[c.StoreType()] = c
	}
	return r
}

// Register adds or replaces the connector for its store type
func (r *Registry) Register(c domain.MarketplaceConnector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[c.StoreType()] = c
}

// Connector returns the connector for the given store type
func (r *Registry) Connector(storeType domain.StoreType) (domain.MarketplaceConnector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connectors[storeType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrConnectorNotRegistered, storeType)
	}
	return c, nil
}

// List returns all registered connectors
func (r *Registry) List() []domain.MarketplaceConnector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.MarketplaceConnector, 0, len(r.connectors))
	for _, c := range r.connectors {
		out = append(out, c)
	}
	return out
}

var _ domain.ConnectorRegistry = (*Registry)(nil)
