package marketplace

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	domain "github.com/storesync/backend/internal/domain/sync"
)

const shopifyAPIVersion = "2024-01"

const shopifyPageSize = 250

// linkNextPattern extracts the page_info cursor from a Link response header
var linkNextPattern = regexp.MustCompile(`<[^>]*[?&]page_info=([^&>]+)[^>]*>;\s*rel="next"`)

// ShopifyConnector implements MarketplaceConnector for Shopify-style stores.
// The platform uses token-authenticated JSON REST endpoints with opaque
// page_info cursors carried in the Link response header.
type ShopifyConnector struct {
	client *http.Client
}

// NewShopifyConnector creates a Shopify connector
func NewShopifyConnector() *ShopifyConnector {
	return &ShopifyConnector{client: newHTTPClient()}
}

// StoreType returns the platform this connector handles
func (c *ShopifyConnector) StoreType() domain.StoreType {
	return domain.StoreTypeShopify
}

// endpoint builds an admin API URL for the given store
func (c *ShopifyConnector) endpoint(store *domain.Store, path string) string {
	return strings.TrimRight(store.BaseURL, "/") + "/admin/api/" + shopifyAPIVersion + path
}

// authHeaders returns the access-token header for the store
func (c *ShopifyConnector) authHeaders(store *domain.Store) (http.Header, error) {
	if !store.HasCredentials() {
		return nil, domain.ErrStoreNoCredentials
	}
	h := http.Header{}
	h.Set("X-Shopify-Access-Token", store.Credentials.AccessToken)
	return h, nil
}

// resourceFor maps an entity kind to the platform resource. Inventory has
// no resource of its own; quantities ride on product variants.
func shopifyResource(kind domain.EntityKind) (plural, singular string) {
	if kind == domain.EntityKindOrder {
		return "orders", "order"
	}
	return "products", "product"
}

// FetchRecords fetches one page of records of the given kind
func (c *ShopifyConnector) FetchRecords(ctx context.Context, store *domain.Store, kind domain.EntityKind, cursor string) (*domain.RecordPage, error) {
	headers, err := c.authHeaders(store)
	if err != nil {
		return nil, err
	}

	plural, _ := shopifyResource(kind)
	query := url.Values{}
	query.Set("limit", fmt.Sprintf("%d", shopifyPageSize))
	if cursor != "" {
		query.Set("page_info", cursor)
	}

	body, respHeaders, err := doJSON(ctx, c.client, c.StoreType(), "fetch_records", http.MethodGet,
		c.endpoint(store, "/"+plural+".json?"+query.Encode()), headers, nil)
	if err != nil {
		return nil, err
	}

	next := nextPageInfo(respHeaders.Get("Link"))
	return &domain.RecordPage{
		Records:    decodeRecords(body, plural),
		NextCursor: next,
		HasMore:    next != "",
	}, nil
}

// FetchRecord fetches a single record by its external id
func (c *ShopifyConnector) FetchRecord(ctx context.Context, store *domain.Store, kind domain.EntityKind, externalID string) (domain.PlatformRecord, error) {
	headers, err := c.authHeaders(store)
	if err != nil {
		return nil, err
	}

	plural, singular := shopifyResource(kind)
	body, _, err := doJSON(ctx, c.client, c.StoreType(), "fetch_record", http.MethodGet,
		c.endpoint(store, "/"+plural+"/"+externalID+".json"), headers, nil)
	if err != nil {
		return nil, err
	}

	record := decodeRecord(body, singular)
	if record == nil {
		return nil, domain.NewMarketplaceError(c.StoreType(), "fetch_record", 0, "malformed response", nil)
	}
	return record, nil
}

// CreateRecord creates a record on the store and returns its external id
func (c *ShopifyConnector) CreateRecord(ctx context.Context, store *domain.Store, kind domain.EntityKind, record domain.PlatformRecord) (string, error) {
	headers, err := c.authHeaders(store)
	if err != nil {
		return "", err
	}

	plural, singular := shopifyResource(kind)
	body, _, err := doJSON(ctx, c.client, c.StoreType(), "create_record", http.MethodPost,
		c.endpoint(store, "/"+plural+".json"), headers, map[string]any{singular: record})
	if err != nil {
		return "", err
	}

	created := decodeRecord(body, singular)
	if created == nil {
		return "", domain.NewMarketplaceError(c.StoreType(), "create_record", 0, "malformed response", nil)
	}
	return extractID(created, "id"), nil
}

// UpdateRecord updates an existing record on the store
func (c *ShopifyConnector) UpdateRecord(ctx context.Context, store *domain.Store, kind domain.EntityKind, externalID string, record domain.PlatformRecord) error {
	headers, err := c.authHeaders(store)
	if err != nil {
		return err
	}

	plural, singular := shopifyResource(kind)
	_, _, err = doJSON(ctx, c.client, c.StoreType(), "update_record", http.MethodPut,
		c.endpoint(store, "/"+plural+"/"+externalID+".json"), headers, map[string]any{singular: record})
	return err
}

// PushInventory sets the available quantity for a product or variant
func (c *ShopifyConnector) PushInventory(ctx context.Context, store *domain.Store, externalProductID, externalVariantID string, quantity int64) error {
	headers, err := c.authHeaders(store)
	if err != nil {
		return err
	}

	itemID := externalProductID
	if externalVariantID != "" {
		itemID = externalVariantID
	}

	_, _, err = doJSON(ctx, c.client, c.StoreType(), "push_inventory", http.MethodPost,
		c.endpoint(store, "/inventory_levels/set.json"), headers, map[string]any{
			"inventory_item_id": itemID,
			"available":         quantity,
		})
	return err
}

// VerifyWebhookSignature checks the X-Shopify-Hmac-Sha256 header, a
// base64-encoded HMAC-SHA256 of the raw body keyed by the shared secret.
func (c *ShopifyConnector) VerifyWebhookSignature(rawBody []byte, headers http.Header, secret string) bool {
	provided := headers.Get("X-Shopify-Hmac-Sha256")
	if provided == "" || secret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(provided), []byte(expected))
}

// RegisterWebhook registers interest in a topic and returns the webhook id
func (c *ShopifyConnector) RegisterWebhook(ctx context.Context, store *domain.Store, topic, address string) (string, error) {
	headers, err := c.authHeaders(store)
	if err != nil {
		return "", err
	}

	body, _, err := doJSON(ctx, c.client, c.StoreType(), "register_webhook", http.MethodPost,
		c.endpoint(store, "/webhooks.json"), headers, map[string]any{
			"webhook": map[string]any{
				"topic":   topic,
				"address": address,
				"format":  "json",
			},
		})
	if err != nil {
		return "", err
	}

	created := decodeRecord(body, "webhook")
	if created == nil {
		return "", domain.NewMarketplaceError(c.StoreType(), "register_webhook", 0, "malformed response", nil)
	}
	return extractID(created, "id"), nil
}

// ---------------------------------------------------------------------------
// Record Mapping
// ---------------------------------------------------------------------------

// ToInternal maps a platform record to the internal representation
func (c *ShopifyConnector) ToInternal(record domain.PlatformRecord, kind domain.EntityKind) *domain.InternalRecord {
	internal := domain.NewInternalRecord(kind, extractID(record, "id"))

	switch kind {
	case domain.EntityKindOrder:
		internal.Set("number", domain.Stringify(record["order_number"]))
		internal.Set("status", domain.Stringify(record["financial_status"]))
		internal.Set("total", domain.Stringify(record["total_price"]))
		internal.Set("currency", domain.Stringify(record["currency"]))
		internal.Set("email", domain.Stringify(record["email"]))
		if items, ok := record["line_items"].([]any); ok {
			internal.Set("line_items", mapLineItems(items))
		}

	case domain.EntityKindInventory:
		internal.Set("sku", firstVariantField(record, "sku"))
		qty, _ := domain.ToDecimal(firstVariantField(record, "inventory_quantity"))
		internal.Set("quantity", qty.IntPart())

	default:
		internal.Set("title", domain.Stringify(record["title"]))
		internal.Set("description", domain.Stringify(record["body_html"]))
		internal.Set("status", domain.Stringify(record["status"]))
		internal.Set("vendor", domain.Stringify(record["vendor"]))
		internal.Set("price", firstVariantField(record, "price"))
		internal.Set("sku", firstVariantField(record, "sku"))
		if variants, ok := record["variants"].([]any); ok {
			internal.Set("variants", mapShopifyVariants(variants))
		}
	}

	return internal
}

// FromInternal maps an internal record back to the platform shape
func (c *ShopifyConnector) FromInternal(record *domain.InternalRecord, kind domain.EntityKind) domain.PlatformRecord {
	out := domain.PlatformRecord{}

	switch kind {
	case domain.EntityKindOrder:
		number, _ := record.GetString("number")
		total, _ := record.GetString("total")
		currency, _ := record.GetString("currency")
		email, _ := record.GetString("email")
		out["order_number"] = number
		out["total_price"] = total
		out["currency"] = currency
		out["email"] = email

	default:
		title, _ := record.GetString("title")
		description, _ := record.GetString("description")
		status, _ := record.GetString("status")
		vendor, _ := record.GetString("vendor")
		out["title"] = title
		out["body_html"] = description
		out["status"] = status
		out["vendor"] = vendor

		variants := record.Variants()
		if len(variants) == 0 {
			price, _ := record.GetString("price")
			sku, _ := record.GetString("sku")
			variants = []map[string]any{{"price": price, "sku": sku}}
		}
		wire := make([]any, 0, len(variants))
		for _, v := range variants {
			item := map[string]any{
				"sku":   domain.Stringify(v["sku"]),
				"price": domain.Stringify(v["price"]),
			}
			if qty, ok := domain.ToDecimal(v["quantity"]); ok {
				item["inventory_quantity"] = qty.IntPart()
			}
			wire = append(wire, item)
		}
		out["variants"] = wire
	}

	return out
}

// mapShopifyVariants converts wire variants to internal variant maps
func mapShopifyVariants(raw []any) []any {
	out := make([]any, 0, len(raw))
	for _, item := range raw {
		v, ok := item.(map[string]any)
		if !ok {
			continue
		}
		variant := map[string]any{
			"external_id": extractID(domain.PlatformRecord(v), "id"),
			"sku":         domain.Stringify(v["sku"]),
			"price":       domain.Stringify(v["price"]),
		}
		if qty, ok := domain.ToDecimal(v["inventory_quantity"]); ok {
			variant["quantity"] = qty.IntPart()
		}
		out = append(out, variant)
	}
	return out
}

// mapLineItems converts wire order line items to internal maps. Shopify
// and WooCommerce share the same line item field names.
func mapLineItems(raw []any) []any {
	out := make([]any, 0, len(raw))
	for _, item := range raw {
		li, ok := item.(map[string]any)
		if !ok {
			continue
		}
		qty, _ := domain.ToDecimal(li["quantity"])
		out = append(out, map[string]any{
			"sku":      domain.Stringify(li["sku"]),
			"title":    domain.Stringify(li["title"]),
			"price":    domain.Stringify(li["price"]),
			"quantity": qty.IntPart(),
		})
	}
	return out
}

// firstVariantField reads a field from the first variant of a product record
func firstVariantField(record domain.PlatformRecord, field string) string {
	variants, ok := record["variants"].([]any)
	if !ok || len(variants) == 0 {
		return domain.Stringify(record[field])
	}
	first, ok := variants[0].(map[string]any)
	if !ok {
		return ""
	}
	return domain.Stringify(first[field])
}

// nextPageInfo extracts the next-page cursor from a Link header
func nextPageInfo(link string) string {
	m := linkNextPattern.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	return m[1]
}

var _ domain.MarketplaceConnector = (*ShopifyConnector)(nil)
