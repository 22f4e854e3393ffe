package marketplace

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domain "github.com/storesync/backend/internal/domain/sync"
)

const shopeePageSize = 100

// CallbackURLHeader carries the full callback URL into signature
// verification. The platform signs url|body, and the URL is only known at
// the HTTP layer, so the webhook handler forwards it through this header.
const CallbackURLHeader = "X-Callback-Url"

// ShopeeConnector implements MarketplaceConnector for Shopee-style seller
// accounts. Calls are authenticated by a hex HMAC-SHA256 signature over
// partner id, API path, timestamp, access token and shop id. Listing
// endpoints paginate by opaque cursor.
type ShopeeConnector struct {
	client *http.Client
	now    func() time.Time
}

// NewShopeeConnector creates a Shopee connector
func NewShopeeConnector() *ShopeeConnector {
	return &ShopeeConnector{
		client: newHTTPClient(),
		now:    time.Now,
	}
}

// StoreType returns the platform this connector handles
func (c *ShopeeConnector) StoreType() domain.StoreType {
	return domain.StoreTypeShopee
}

// signedURL builds a request URL with the common signed parameters.
// The shop id is carried in the store's APIKey alongside the partner id,
// formatted as "partnerID:shopID".
func (c *ShopeeConnector) signedURL(store *domain.Store, apiPath string, params map[string]string) (string, error) {
	if !store.HasCredentials() {
		return "", domain.ErrStoreNoCredentials
	}
	creds := store.Credentials

	partnerID, shopID := splitPartnerKey(creds.APIKey)
	timestamp := strconv.FormatInt(c.now().Unix(), 10)

	base := partnerID + apiPath + timestamp + creds.AccessToken + shopID
	mac := hmac.New(sha256.New, []byte(creds.APISecret))
	mac.Write([]byte(base))
	sign := hex.EncodeToString(mac.Sum(nil))

	values := url.Values{}
	values.Set("partner_id", partnerID)
	values.Set("shop_id", shopID)
	values.Set("timestamp", timestamp)
	values.Set("access_token", creds.AccessToken)
	values.Set("sign", sign)
	for k, v := range params {
		values.Set(k, v)
	}

	return strings.TrimRight(store.BaseURL, "/") + apiPath + "?" + values.Encode(), nil
}

// splitPartnerKey splits a "partnerID:shopID" API key
func splitPartnerKey(apiKey string) (partnerID, shopID string) {
	parts := strings.SplitN(apiKey, ":", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return apiKey, ""
}

// shopeePath maps an entity kind to the listing and single-record API paths
func shopeePath(kind domain.EntityKind) (list, single string) {
	if kind == domain.EntityKindOrder {
		return "/api/v2/order/get_order_list", "/api/v2/order/get_order_detail"
	}
	return "/api/v2/product/get_item_list", "/api/v2/product/get_item_base_info"
}

// unwrapShopee checks the platform error field and returns the response envelope
func (c *ShopeeConnector) unwrapShopee(op string, body []byte) (map[string]any, error) {
	var payload struct {
		Error    string         `json:"error"`
		Message  string         `json:"message"`
		Response map[string]any `json:"response"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, domain.NewMarketplaceError(c.StoreType(), op, 0, "malformed response", err)
	}
	if payload.Error != "" {
		return nil, domain.NewMarketplaceError(c.StoreType(), op, 0,
			fmt.Sprintf("platform error %s: %s", payload.Error, payload.Message), nil)
	}
	return payload.Response, nil
}

// FetchRecords fetches one page of records using the platform cursor
func (c *ShopeeConnector) FetchRecords(ctx context.Context, store *domain.Store, kind domain.EntityKind, cursor string) (*domain.RecordPage, error) {
	listPath, _ := shopeePath(kind)
	params := map[string]string{
		"page_size": strconv.Itoa(shopeePageSize),
	}
	if cursor != "" {
		params["cursor"] = cursor
	}

	reqURL, err := c.signedURL(store, listPath, params)
	if err != nil {
		return nil, err
	}

	body, _, err := doJSON(ctx, c.client, c.StoreType(), "fetch_records", http.MethodGet, reqURL, nil, nil)
	if err != nil {
		return nil, err
	}

	envelope, err := c.unwrapShopee("fetch_records", body)
	if err != nil {
		return nil, err
	}

	key := "item"
	if kind == domain.EntityKindOrder {
		key = "order_list"
	}
	records := recordsFromEnvelope(envelope, key)

	next := domain.Stringify(envelope["next_cursor"])
	hasMore := false
	if more, ok := envelope["has_next_page"].(bool); ok {
		hasMore = more
	}
	if !hasMore {
		next = ""
	}
	return &domain.RecordPage{Records: records, NextCursor: next, HasMore: hasMore}, nil
}

// FetchRecord fetches a single record by its external id
func (c *ShopeeConnector) FetchRecord(ctx context.Context, store *domain.Store, kind domain.EntityKind, externalID string) (domain.PlatformRecord, error) {
	_, singlePath := shopeePath(kind)
	idParam := "item_id"
	if kind == domain.EntityKindOrder {
		idParam = "order_sn"
	}

	reqURL, err := c.signedURL(store, singlePath, map[string]string{idParam: externalID})
	if err != nil {
		return nil, err
	}

	body, _, err := doJSON(ctx, c.client, c.StoreType(), "fetch_record", http.MethodGet, reqURL, nil, nil)
	if err != nil {
		return nil, err
	}

	envelope, err := c.unwrapShopee("fetch_record", body)
	if err != nil {
		return nil, err
	}

	// Single-record endpoints still answer with a one-element list
	key := "item_list"
	if kind == domain.EntityKindOrder {
		key = "order_list"
	}
	records := recordsFromEnvelope(envelope, key)
	if len(records) == 0 {
		return nil, domain.NewMarketplaceError(c.StoreType(), "fetch_record", 0, "record not found: "+externalID, nil)
	}
	return records[0], nil
}

// CreateRecord creates a record on the store and returns its external id
func (c *ShopeeConnector) CreateRecord(ctx context.Context, store *domain.Store, kind domain.EntityKind, record domain.PlatformRecord) (string, error) {
	reqURL, err := c.signedURL(store, "/api/v2/product/add_item", nil)
	if err != nil {
		return "", err
	}

	body, _, err := doJSON(ctx, c.client, c.StoreType(), "create_record", http.MethodPost, reqURL, nil, record)
	if err != nil {
		return "", err
	}

	envelope, err := c.unwrapShopee("create_record", body)
	if err != nil {
		return "", err
	}
	return extractID(domain.PlatformRecord(envelope), "item_id"), nil
}

// UpdateRecord updates an existing record on the store
func (c *ShopeeConnector) UpdateRecord(ctx context.Context, store *domain.Store, kind domain.EntityKind, externalID string, record domain.PlatformRecord) error {
	reqURL, err := c.signedURL(store, "/api/v2/product/update_item", nil)
	if err != nil {
		return err
	}

	payload := domain.PlatformRecord{}
	for k, v := range record {
		payload[k] = v
	}
	if id, err := strconv.ParseInt(externalID, 10, 64); err == nil {
		payload["item_id"] = id
	} else {
		payload["item_id"] = externalID
	}

	body, _, err := doJSON(ctx, c.client, c.StoreType(), "update_record", http.MethodPost, reqURL, nil, payload)
	if err != nil {
		return err
	}
	_, err = c.unwrapShopee("update_record", body)
	return err
}

// PushInventory sets the available quantity for a product or model
func (c *ShopeeConnector) PushInventory(ctx context.Context, store *domain.Store, externalProductID, externalVariantID string, quantity int64) error {
	reqURL, err := c.signedURL(store, "/api/v2/product/update_stock", nil)
	if err != nil {
		return err
	}

	stock := map[string]any{"normal_stock": quantity}
	if externalVariantID != "" {
		stock["model_id"] = externalVariantID
	}
	payload := map[string]any{
		"item_id":    externalProductID,
		"stock_list": []any{stock},
	}

	body, _, err := doJSON(ctx, c.client, c.StoreType(), "push_inventory", http.MethodPost, reqURL, nil, payload)
	if err != nil {
		return err
	}
	_, err = c.unwrapShopee("push_inventory", body)
	return err
}

// VerifyWebhookSignature checks the Authorization header, a hex-encoded
// HMAC-SHA256 of "url|body" keyed by the shared secret. The callback URL
// is forwarded by the HTTP layer in the X-Callback-Url header.
func (c *ShopeeConnector) VerifyWebhookSignature(rawBody []byte, headers http.Header, secret string) bool {
	provided := headers.Get("Authorization")
	if provided == "" || secret == "" {
		return false
	}

	base := headers.Get(CallbackURLHeader) + "|" + string(rawBody)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(strings.ToLower(provided)), []byte(expected))
}

// RegisterWebhook registers interest in a topic and returns the webhook id
func (c *ShopeeConnector) RegisterWebhook(ctx context.Context, store *domain.Store, topic, address string) (string, error) {
	reqURL, err := c.signedURL(store, "/api/v2/push/set_config", nil)
	if err != nil {
		return "", err
	}

	body, _, err := doJSON(ctx, c.client, c.StoreType(), "register_webhook", http.MethodPost, reqURL, nil, map[string]any{
		"topic":        topic,
		"callback_url": address,
	})
	if err != nil {
		return "", err
	}

	envelope, err := c.unwrapShopee("register_webhook", body)
	if err != nil {
		return "", err
	}
	return extractID(domain.PlatformRecord(envelope), "config_id"), nil
}

// ---------------------------------------------------------------------------
// Record Mapping
// ---------------------------------------------------------------------------

// ToInternal maps a platform record to the internal representation
func (c *ShopeeConnector) ToInternal(record domain.PlatformRecord, kind domain.EntityKind) *domain.InternalRecord {
	switch kind {
	case domain.EntityKindOrder:
		internal := domain.NewInternalRecord(kind, domain.Stringify(record["order_sn"]))
		internal.Set("number", domain.Stringify(record["order_sn"]))
		internal.Set("status", domain.Stringify(record["order_status"]))
		internal.Set("total", domain.Stringify(record["total_amount"]))
		internal.Set("currency", domain.Stringify(record["currency"]))
		return internal

	case domain.EntityKindInventory:
		internal := domain.NewInternalRecord(kind, extractID(record, "item_id"))
		internal.Set("sku", domain.Stringify(record["item_sku"]))
		qty, _ := domain.ToDecimal(record["normal_stock"])
		internal.Set("quantity", qty.IntPart())
		return internal

	default:
		internal := domain.NewInternalRecord(kind, extractID(record, "item_id"))
		internal.Set("title", domain.Stringify(record["item_name"]))
		internal.Set("description", domain.Stringify(record["description"]))
		internal.Set("status", strings.ToLower(domain.Stringify(record["item_status"])))
		internal.Set("sku", domain.Stringify(record["item_sku"]))
		if price, ok := priceFromShopee(record); ok {
			internal.Set("price", price)
		}

		models, _ := record["models"].([]any)
		variants := make([]any, 0, len(models))
		for _, item := range models {
			model, ok := item.(map[string]any)
			if !ok {
				continue
			}
			qty, _ := domain.ToDecimal(model["normal_stock"])
			variants = append(variants, map[string]any{
				"external_id": extractID(domain.PlatformRecord(model), "model_id"),
				"sku":         domain.Stringify(model["model_sku"]),
				"price":       domain.Stringify(model["price"]),
				"quantity":    qty.IntPart(),
			})
		}
		internal.Set("variants", variants)
		return internal
	}
}

// FromInternal maps an internal record back to the platform shape
func (c *ShopeeConnector) FromInternal(record *domain.InternalRecord, kind domain.EntityKind) domain.PlatformRecord {
	if kind == domain.EntityKindOrder {
		number, _ := record.GetString("number")
		total, _ := record.GetString("total")
		return domain.PlatformRecord{
			"order_sn":     number,
			"total_amount": total,
		}
	}

	title, _ := record.GetString("title")
	description, _ := record.GetString("description")
	sku, _ := record.GetString("sku")
	out := domain.PlatformRecord{
		"item_name":   title,
		"description": description,
		"item_sku":    sku,
	}
	if price, ok := record.Get("price"); ok {
		if d, ok := domain.ToDecimal(price); ok {
			out["price_info"] = map[string]any{"original_price": d.InexactFloat64()}
		}
	}

	variants := record.Variants()
	models := make([]any, 0, len(variants))
	for _, v := range variants {
		model := map[string]any{
			"model_sku": domain.Stringify(v["sku"]),
		}
		if d, ok := domain.ToDecimal(v["price"]); ok {
			model["price"] = d.InexactFloat64()
		}
		if qty, ok := domain.ToDecimal(v["quantity"]); ok {
			model["normal_stock"] = qty.IntPart()
		}
		models = append(models, model)
	}
	if len(models) > 0 {
		out["models"] = models
	}

	return out
}

// priceFromShopee reads the original price from the price_info envelope
func priceFromShopee(record domain.PlatformRecord) (string, bool) {
	info, ok := record["price_info"].(map[string]any)
	if !ok {
		return "", false
	}
	d, ok := domain.ToDecimal(info["original_price"])
	if !ok {
		return "", false
	}
	return d.StringFixed(2), true
}

var _ domain.MarketplaceConnector = (*ShopeeConnector)(nil)
