package marketplace

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	domain "github.com/storesync/backend/internal/domain/sync"
)

const wooPageSize = 100

const wooAPIPrefix = "/wp-json/wc/v3"

// WooCommerceConnector implements MarketplaceConnector for WooCommerce-style
// sites. The REST API uses basic auth with consumer key and secret, and
// listing endpoints paginate by page number.
type WooCommerceConnector struct {
	client *http.Client
}

// NewWooCommerceConnector creates a WooCommerce connector
func NewWooCommerceConnector() *WooCommerceConnector {
	return &WooCommerceConnector{client: newHTTPClient()}
}

// StoreType returns the platform this connector handles
func (c *WooCommerceConnector) StoreType() domain.StoreType {
	return domain.StoreTypeWooCommerce
}

// endpoint builds a REST API URL for the given store
func (c *WooCommerceConnector) endpoint(store *domain.Store, path string) string {
	return strings.TrimRight(store.BaseURL, "/") + wooAPIPrefix + path
}

// authHeaders returns the basic-auth header from consumer key and secret
func (c *WooCommerceConnector) authHeaders(store *domain.Store) (http.Header, error) {
	if !store.HasCredentials() {
		return nil, domain.ErrStoreNoCredentials
	}
	creds := store.Credentials

	token := base64.StdEncoding.EncodeToString([]byte(creds.APIKey + ":" + creds.APISecret))
	h := http.Header{}
	h.Set("Authorization", "Basic "+token)
	return h, nil
}

// wooResource maps an entity kind to the platform resource
func wooResource(kind domain.EntityKind) string {
	if kind == domain.EntityKindOrder {
		return "orders"
	}
	return "products"
}

// FetchRecords fetches one page of records; the cursor encodes the page number
func (c *WooCommerceConnector) FetchRecords(ctx context.Context, store *domain.Store, kind domain.EntityKind, cursor string) (*domain.RecordPage, error) {
	headers, err := c.authHeaders(store)
	if err != nil {
		return nil, err
	}

	page := 1
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, domain.NewMarketplaceError(c.StoreType(), "fetch_records", 0, "invalid cursor: "+cursor, err)
		}
		page = parsed
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(wooPageSize))

	body, respHeaders, err := doJSON(ctx, c.client, c.StoreType(), "fetch_records", http.MethodGet,
		c.endpoint(store, "/"+wooResource(kind)+"?"+query.Encode()), headers, nil)
	if err != nil {
		return nil, err
	}

	// List endpoints answer with a bare JSON array
	var raw []map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, domain.NewMarketplaceError(c.StoreType(), "fetch_records", 0, "malformed response", err)
	}
	records := make([]domain.PlatformRecord, 0, len(raw))
	for _, item := range raw {
		records = append(records, domain.PlatformRecord(item))
	}

	totalPages, _ := strconv.Atoi(respHeaders.Get("X-WP-TotalPages"))
	hasMore := page < totalPages
	next := ""
	if hasMore {
		next = strconv.Itoa(page + 1)
	}
	return &domain.RecordPage{Records: records, NextCursor: next, HasMore: hasMore}, nil
}

// FetchRecord fetches a single record by its external id
func (c *WooCommerceConnector) FetchRecord(ctx context.Context, store *domain.Store, kind domain.EntityKind, externalID string) (domain.PlatformRecord, error) {
	headers, err := c.authHeaders(store)
	if err != nil {
		return nil, err
	}

	body, _, err := doJSON(ctx, c.client, c.StoreType(), "fetch_record", http.MethodGet,
		c.endpoint(store, "/"+wooResource(kind)+"/"+externalID), headers, nil)
	if err != nil {
		return nil, err
	}

	record := decodeRecord(body, "")
	if record == nil {
		return nil, domain.NewMarketplaceError(c.StoreType(), "fetch_record", 0, "malformed response", nil)
	}
	return record, nil
}

// CreateRecord creates a record on the store and returns its external id
func (c *WooCommerceConnector) CreateRecord(ctx context.Context, store *domain.Store, kind domain.EntityKind, record domain.PlatformRecord) (string, error) {
	headers, err := c.authHeaders(store)
	if err != nil {
		return "", err
	}

	body, _, err := doJSON(ctx, c.client, c.StoreType(), "create_record", http.MethodPost,
		c.endpoint(store, "/"+wooResource(kind)), headers, record)
	if err != nil {
		return "", err
	}

	created := decodeRecord(body, "")
	if created == nil {
		return "", domain.NewMarketplaceError(c.StoreType(), "create_record", 0, "malformed response", nil)
	}
	return extractID(created, "id"), nil
}

// UpdateRecord updates an existing record on the store
func (c *WooCommerceConnector) UpdateRecord(ctx context.Context, store *domain.Store, kind domain.EntityKind, externalID string, record domain.PlatformRecord) error {
	headers, err := c.authHeaders(store)
	if err != nil {
		return err
	}

	_, _, err = doJSON(ctx, c.client, c.StoreType(), "update_record", http.MethodPut,
		c.endpoint(store, "/"+wooResource(kind)+"/"+externalID), headers, record)
	return err
}

// PushInventory sets the stock quantity for a product or variation
func (c *WooCommerceConnector) PushInventory(ctx context.Context, store *domain.Store, externalProductID, externalVariantID string, quantity int64) error {
	headers, err := c.authHeaders(store)
	if err != nil {
		return err
	}

	path := "/products/" + externalProductID
	if externalVariantID != "" {
		path += "/variations/" + externalVariantID
	}

	_, _, err = doJSON(ctx, c.client, c.StoreType(), "push_inventory", http.MethodPut,
		c.endpoint(store, path), headers, map[string]any{
			"manage_stock":   true,
			"stock_quantity": quantity,
		})
	return err
}

// VerifyWebhookSignature checks the X-WC-Webhook-Signature header, a
// base64-encoded HMAC-SHA256 of the raw body keyed by the shared secret.
func (c *WooCommerceConnector) VerifyWebhookSignature(rawBody []byte, headers http.Header, secret string) bool {
	provided := headers.Get("X-WC-Webhook-Signature")
	if provided == "" || secret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(provided), []byte(expected))
}

// RegisterWebhook registers interest in a topic and returns the webhook id
func (c *WooCommerceConnector) RegisterWebhook(ctx context.Context, store *domain.Store, topic, address string) (string, error) {
	headers, err := c.authHeaders(store)
	if err != nil {
		return "", err
	}

	secret := ""
	if store.HasCredentials() {
		secret = store.Credentials.WebhookSecret
	}

	body, _, err := doJSON(ctx, c.client, c.StoreType(), "register_webhook", http.MethodPost,
		c.endpoint(store, "/webhooks"), headers, map[string]any{
			"name":         "storesync " + topic,
			"topic":        topic,
			"delivery_url": address,
			"secret":       secret,
		})
	if err != nil {
		return "", err
	}

	created := decodeRecord(body, "")
	if created == nil {
		return "", domain.NewMarketplaceError(c.StoreType(), "register_webhook", 0, "malformed response", nil)
	}
	return extractID(created, "id"), nil
}

// ---------------------------------------------------------------------------
// Record Mapping
// ---------------------------------------------------------------------------

// ToInternal maps a platform record to the internal representation
func (c *WooCommerceConnector) ToInternal(record domain.PlatformRecord, kind domain.EntityKind) *domain.InternalRecord {
	internal := domain.NewInternalRecord(kind, extractID(record, "id"))

	switch kind {
	case domain.EntityKindOrder:
		internal.Set("number", domain.Stringify(record["number"]))
		internal.Set("status", domain.Stringify(record["status"]))
		internal.Set("total", domain.Stringify(record["total"]))
		internal.Set("currency", domain.Stringify(record["currency"]))
		if billing, ok := record["billing"].(map[string]any); ok {
			internal.Set("email", domain.Stringify(billing["email"]))
		}
		if items, ok := record["line_items"].([]any); ok {
			internal.Set("line_items", mapLineItems(items))
		}

	case domain.EntityKindInventory:
		internal.Set("sku", domain.Stringify(record["sku"]))
		qty, _ := domain.ToDecimal(record["stock_quantity"])
		internal.Set("quantity", qty.IntPart())

	default:
		internal.Set("title", domain.Stringify(record["name"]))
		internal.Set("description", domain.Stringify(record["description"]))
		internal.Set("status", domain.Stringify(record["status"]))
		internal.Set("price", domain.Stringify(record["regular_price"]))
		internal.Set("sku", domain.Stringify(record["sku"]))
		// Variations come back as bare ids; the product-level price and
		// stock stand in for variant detail
		if qty, ok := domain.ToDecimal(record["stock_quantity"]); ok {
			internal.Set("quantity", qty.IntPart())
		}
	}

	return internal
}

// FromInternal maps an internal record back to the platform shape
func (c *WooCommerceConnector) FromInternal(record *domain.InternalRecord, kind domain.EntityKind) domain.PlatformRecord {
	if kind == domain.EntityKindOrder {
		number, _ := record.GetString("number")
		total, _ := record.GetString("total")
		currency, _ := record.GetString("currency")
		status, _ := record.GetString("status")
		return domain.PlatformRecord{
			"number":   number,
			"total":    total,
			"currency": currency,
			"status":   status,
		}
	}

	title, _ := record.GetString("title")
	description, _ := record.GetString("description")
	status, _ := record.GetString("status")
	price, _ := record.GetString("price")
	sku, _ := record.GetString("sku")

	out := domain.PlatformRecord{
		"name":          title,
		"description":   description,
		"regular_price": price,
		"sku":           sku,
	}
	if status != "" {
		out["status"] = wooStatus(status)
	}
	return out
}

// wooStatus translates the internal status vocabulary to the platform's
func wooStatus(status string) string {
	switch strings.ToLower(status) {
	case "active", "normal", "publish":
		return "publish"
	case "draft", "unlist":
		return "draft"
	default:
		return strings.ToLower(status)
	}
}

var _ domain.MarketplaceConnector = (*WooCommerceConnector)(nil)
