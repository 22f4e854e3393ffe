// Package sync contains the Synchronization bounded context.
// This context keeps product, inventory, and order records consistent across
// independently-owned marketplace stores.
//
// Key concepts:
//   - MarketplaceConnector: Port interface for connecting to marketplace platforms (Shopify, Lazada, Shopee, WooCommerce)
//   - SyncRule: A configured (source store, target store, entity kind) synchronization policy
//   - PredicateSpec / TransformSpec: Pure filtering and field transformation applied per record
//   - EntityMapping: Durable correlation between a source entity id and its counterpart on a target store
//   - SyncLog: Append-only lifecycle record for every rule run and webhook reconciliation
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package sync
