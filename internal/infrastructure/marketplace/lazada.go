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
	"sort"
	"strconv"
	"strings"
	"time"

	domain "github.com/storesync/backend/internal/domain/sync"
)

const lazadaPageSize = 100

// LazadaConnector implements MarketplaceConnector for Lazada-style seller
// accounts. Every call carries a signed query string: HMAC-SHA256 over the
// API path plus the sorted parameters, keyed by the app secret. Listing
// endpoints paginate by offset.
type LazadaConnector struct {
	client *http.Client
	now    func() time.Time
}

// NewLazadaConnector creates a Lazada connector
func NewLazadaConnector() *LazadaConnector {
	return &LazadaConnector{
		client: newHTTPClient(),
		now:    time.Now,
	}
}

// StoreType returns the platform this connector handles
func (c *LazadaConnector) StoreType() domain.StoreType {
	return domain.StoreTypeLazada
}

// signedURL builds a request URL with the common signed parameters
func (c *LazadaConnector) signedURL(store *domain.Store, apiPath string, params map[string]string) (string, error) {
	if !store.HasCredentials() {
		return "", domain.ErrStoreNoCredentials
	}
	creds := store.Credentials

	if params == nil {
		params = make(map[string]string)
	}
	params["app_key"] = creds.APIKey
	params["access_token"] = creds.AccessToken
	params["timestamp"] = strconv.FormatInt(c.now().UnixMilli(), 10)
	params["sign_method"] = "sha256"
	params["sign"] = signLazada(creds.APISecret, apiPath, params)

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return strings.TrimRight(store.BaseURL, "/") + apiPath + "?" + values.Encode(), nil
}

// signLazada computes the request signature: uppercase hex HMAC-SHA256 over
// apiPath + key1value1key2value2... with keys sorted, excluding sign itself.
func signLazada(secret, apiPath string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "sign" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var builder strings.Builder
	builder.WriteString(apiPath)
	for _, k := range keys {
		builder.WriteString(k)
		builder.WriteString(params[k])
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(builder.String()))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// lazadaPath maps an entity kind to the listing API path
func lazadaPath(kind domain.EntityKind) (list, single string) {
	if kind == domain.EntityKindOrder {
		return "/orders/get", "/order/get"
	}
	return "/products/get", "/product/item/get"
}

// lazadaDataKey is the array key inside the data envelope
func lazadaDataKey(kind domain.EntityKind) string {
	if kind == domain.EntityKindOrder {
		return "orders"
	}
	return "products"
}

// unwrapLazada checks the platform response code and returns the data envelope
func (c *LazadaConnector) unwrapLazada(op string, body []byte) (map[string]any, error) {
	var payload struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, domain.NewMarketplaceError(c.StoreType(), op, 0, "malformed response", err)
	}
	if payload.Code != "" && payload.Code != "0" {
		return nil, domain.NewMarketplaceError(c.StoreType(), op, 0,
			fmt.Sprintf("platform error %s: %s", payload.Code, payload.Message), nil)
	}
	return payload.Data, nil
}

// FetchRecords fetches one page of records; the cursor encodes the offset
func (c *LazadaConnector) FetchRecords(ctx context.Context, store *domain.Store, kind domain.EntityKind, cursor string) (*domain.RecordPage, error) {
	offset := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, domain.NewMarketplaceError(c.StoreType(), "fetch_records", 0, "invalid cursor: "+cursor, err)
		}
		offset = parsed
	}

	listPath, _ := lazadaPath(kind)
	reqURL, err := c.signedURL(store, listPath, map[string]string{
		"offset": strconv.Itoa(offset),
		"limit":  strconv.Itoa(lazadaPageSize),
	})
	if err != nil {
		return nil, err
	}

	body, _, err := doJSON(ctx, c.client, c.StoreType(), "fetch_records", http.MethodGet, reqURL, nil, nil)
	if err != nil {
		return nil, err
	}

	data, err := c.unwrapLazada("fetch_records", body)
	if err != nil {
		return nil, err
	}

	records := recordsFromEnvelope(data, lazadaDataKey(kind))
	hasMore := len(records) == lazadaPageSize
	next := ""
	if hasMore {
		next = strconv.Itoa(offset + lazadaPageSize)
	}
	return &domain.RecordPage{Records: records, NextCursor: next, HasMore: hasMore}, nil
}

// FetchRecord fetches a single record by its external id
func (c *LazadaConnector) FetchRecord(ctx context.Context, store *domain.Store, kind domain.EntityKind, externalID string) (domain.PlatformRecord, error) {
	_, singlePath := lazadaPath(kind)
	idParam := "item_id"
	if kind == domain.EntityKindOrder {
		idParam = "order_id"
	}

	reqURL, err := c.signedURL(store, singlePath, map[string]string{idParam: externalID})
	if err != nil {
		return nil, err
	}

	body, _, err := doJSON(ctx, c.client, c.StoreType(), "fetch_record", http.MethodGet, reqURL, nil, nil)
	if err != nil {
		return nil, err
	}

	data, err := c.unwrapLazada("fetch_record", body)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, domain.NewMarketplaceError(c.StoreType(), "fetch_record", 0, "empty response", nil)
	}
	return domain.PlatformRecord(data), nil
}

// CreateRecord creates a record on the store and returns its external id
func (c *LazadaConnector) CreateRecord(ctx context.Context, store *domain.Store, kind domain.EntityKind, record domain.PlatformRecord) (string, error) {
	reqURL, err := c.signedURL(store, "/product/create", nil)
	if err != nil {
		return "", err
	}

	body, _, err := doJSON(ctx, c.client, c.StoreType(), "create_record", http.MethodPost, reqURL, nil, record)
	if err != nil {
		return "", err
	}

	data, err := c.unwrapLazada("create_record", body)
	if err != nil {
		return "", err
	}
	return extractID(domain.PlatformRecord(data), "item_id"), nil
}

// UpdateRecord updates an existing record on the store
func (c *LazadaConnector) UpdateRecord(ctx context.Context, store *domain.Store, kind domain.EntityKind, externalID string, record domain.PlatformRecord) error {
	reqURL, err := c.signedURL(store, "/product/update", map[string]string{"item_id": externalID})
	if err != nil {
		return err
	}

	body, _, err := doJSON(ctx, c.client, c.StoreType(), "update_record", http.MethodPost, reqURL, nil, record)
	if err != nil {
		return err
	}
	_, err = c.unwrapLazada("update_record", body)
	return err
}

// PushInventory sets the available quantity for a product or SKU
func (c *LazadaConnector) PushInventory(ctx context.Context, store *domain.Store, externalProductID, externalVariantID string, quantity int64) error {
	params := map[string]string{
		"item_id":  externalProductID,
		"quantity": strconv.FormatInt(quantity, 10),
	}
	if externalVariantID != "" {
		params["sku_id"] = externalVariantID
	}

	reqURL, err := c.signedURL(store, "/product/stock/update", params)
	if err != nil {
		return err
	}

	body, _, err := doJSON(ctx, c.client, c.StoreType(), "push_inventory", http.MethodPost, reqURL, nil, nil)
	if err != nil {
		return err
	}
	_, err = c.unwrapLazada("push_inventory", body)
	return err
}

// VerifyWebhookSignature checks the Authorization header, a hex-encoded
// HMAC-SHA256 of the raw body keyed by the shared secret.
func (c *LazadaConnector) VerifyWebhookSignature(rawBody []byte, headers http.Header, secret string) bool {
	provided := headers.Get("Authorization")
	if provided == "" || secret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(strings.ToLower(provided)), []byte(expected))
}

// RegisterWebhook registers interest in a topic and returns the webhook id
func (c *LazadaConnector) RegisterWebhook(ctx context.Context, store *domain.Store, topic, address string) (string, error) {
	reqURL, err := c.signedURL(store, "/webhook/create", map[string]string{
		"topic":   topic,
		"address": address,
	})
	if err != nil {
		return "", err
	}

	body, _, err := doJSON(ctx, c.client, c.StoreType(), "register_webhook", http.MethodPost, reqURL, nil, nil)
	if err != nil {
		return "", err
	}

	data, err := c.unwrapLazada("register_webhook", body)
	if err != nil {
		return "", err
	}
	return extractID(domain.PlatformRecord(data), "webhook_id"), nil
}

// ---------------------------------------------------------------------------
// Record Mapping
// ---------------------------------------------------------------------------

// ToInternal maps a platform record to the internal representation
func (c *LazadaConnector) ToInternal(record domain.PlatformRecord, kind domain.EntityKind) *domain.InternalRecord {
	switch kind {
	case domain.EntityKindOrder:
		internal := domain.NewInternalRecord(kind, extractID(record, "order_id"))
		internal.Set("number", domain.Stringify(record["order_number"]))
		internal.Set("status", domain.Stringify(record["status"]))
		internal.Set("total", domain.Stringify(record["price"]))
		internal.Set("currency", domain.Stringify(record["currency"]))
		internal.Set("email", domain.Stringify(record["customer_email"]))
		return internal

	case domain.EntityKindInventory:
		internal := domain.NewInternalRecord(kind, extractID(record, "item_id"))
		sku, qty := firstLazadaSku(record)
		internal.Set("sku", sku)
		internal.Set("quantity", qty)
		return internal

	default:
		internal := domain.NewInternalRecord(kind, extractID(record, "item_id"))
		attrs, _ := record["attributes"].(map[string]any)
		internal.Set("title", domain.Stringify(attrs["name"]))
		internal.Set("description", domain.Stringify(attrs["description"]))
		internal.Set("status", domain.Stringify(record["status"]))
		internal.Set("vendor", domain.Stringify(attrs["brand"]))

		skus, _ := record["skus"].([]any)
		variants := make([]any, 0, len(skus))
		for _, item := range skus {
			sku, ok := item.(map[string]any)
			if !ok {
				continue
			}
			qty, _ := domain.ToDecimal(sku["quantity"])
			variants = append(variants, map[string]any{
				"external_id": extractID(domain.PlatformRecord(sku), "sku_id"),
				"sku":         domain.Stringify(sku["seller_sku"]),
				"price":       domain.Stringify(sku["price"]),
				"quantity":    qty.IntPart(),
			})
		}
		internal.Set("variants", variants)
		if len(skus) > 0 {
			if first, ok := skus[0].(map[string]any); ok {
				internal.Set("price", domain.Stringify(first["price"]))
				internal.Set("sku", domain.Stringify(first["seller_sku"]))
			}
		}
		return internal
	}
}

// FromInternal maps an internal record back to the platform shape
func (c *LazadaConnector) FromInternal(record *domain.InternalRecord, kind domain.EntityKind) domain.PlatformRecord {
	if kind == domain.EntityKindOrder {
		number, _ := record.GetString("number")
		total, _ := record.GetString("total")
		currency, _ := record.GetString("currency")
		return domain.PlatformRecord{
			"order_number": number,
			"price":        total,
			"currency":     currency,
		}
	}

	title, _ := record.GetString("title")
	description, _ := record.GetString("description")
	vendor, _ := record.GetString("vendor")
	out := domain.PlatformRecord{
		"attributes": map[string]any{
			"name":        title,
			"description": description,
			"brand":       vendor,
		},
	}

	variants := record.Variants()
	if len(variants) == 0 {
		price, _ := record.GetString("price")
		sku, _ := record.GetString("sku")
		variants = []map[string]any{{"price": price, "sku": sku}}
	}
	skus := make([]any, 0, len(variants))
	for _, v := range variants {
		item := map[string]any{
			"seller_sku": domain.Stringify(v["sku"]),
			"price":      domain.Stringify(v["price"]),
		}
		if qty, ok := domain.ToDecimal(v["quantity"]); ok {
			item["quantity"] = qty.IntPart()
		}
		skus = append(skus, item)
	}
	out["skus"] = skus

	return out
}

// firstLazadaSku reads the seller SKU and quantity from the first SKU entry
func firstLazadaSku(record domain.PlatformRecord) (string, int64) {
	skus, ok := record["skus"].([]any)
	if !ok || len(skus) == 0 {
		return "", 0
	}
	first, ok := skus[0].(map[string]any)
	if !ok {
		return "", 0
	}
	qty, _ := domain.ToDecimal(first["quantity"])
	return domain.Stringify(first["seller_sku"]), qty.IntPart()
}

// recordsFromEnvelope extracts an array of objects from a data envelope
func recordsFromEnvelope(data map[string]any, key string) []domain.PlatformRecord {
	raw, ok := data[key].([]any)
	if !ok {
		return nil
	}
	records := make([]domain.PlatformRecord, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			records = append(records, domain.PlatformRecord(m))
		}
	}
	return records
}

var _ domain.MarketplaceConnector = (*LazadaConnector)(nil)
