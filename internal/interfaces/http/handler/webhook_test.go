package handler

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/storesync/backend/internal/domain/sync"
)

func shopifySignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func postWebhook(api *testAPI, platform string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/"+platform, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	api.engine.ServeHTTP(rec, req)
	return rec
}

func TestWebhookHandler_Receive(t *testing.T) {
	const secret = "webhook-secret"
	body := []byte(`{"id": 98765, "title": "Blue Shirt"}`)

	t.Run("verified delivery is acknowledged and queued", func(t *testing.T) {
		api := setupTestAPI(t)
		store := api.seedStore(t, domain.StoreTypeShopify, secret)
		api.seedWebhook(t, store.ID, "products/update", secret)

		rec := postWebhook(api, "shopify", body, map[string]string{
			"X-Shopify-Topic":       "products/update",
			"X-Shopify-Hmac-Sha256": shopifySignature(body, secret),
			"X-Shopify-Webhook-Id":  "delivery-1",
		})

		assert.Equal(t, http.StatusOK, rec.Code)

		api.queue.mu.Lock()
		defer api.queue.mu.Unlock()
		require.Len(t, api.queue.reconciliations, 1)
		event := api.queue.reconciliations[0]
		assert.Equal(t, store.ID, event.StoreID)
		assert.Equal(t, domain.StoreTypeShopify, event.Platform)
		assert.Equal(t, domain.EntityKindProduct, event.Kind)
		assert.Equal(t, "98765", event.ExternalEntityID)
		assert.Equal(t, "delivery-1", event.DeliveryID)
	})

	t.Run("mismatched signature is rejected with 401 and not processed", func(t *testing.T) {
		api := setupTestAPI(t)
		store := api.seedStore(t, domain.StoreTypeShopify, secret)
		api.seedWebhook(t, store.ID, "products/update", secret)

		rec := postWebhook(api, "shopify", body, map[string]string{
			"X-Shopify-Topic":       "products/update",
			"X-Shopify-Hmac-Sha256": shopifySignature(body, "wrong-secret"),
		})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		api.queue.mu.Lock()
		defer api.queue.mu.Unlock()
		assert.Empty(t, api.queue.reconciliations)
	})

	t.Run("unsigned delivery is rejected with 401", func(t *testing.T) {
		api := setupTestAPI(t)
		store := api.seedStore(t, domain.StoreTypeShopify, secret)
		api.seedWebhook(t, store.ID, "products/update", secret)

		rec := postWebhook(api, "shopify", body, map[string]string{
			"X-Shopify-Topic": "products/update",
		})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown platform returns 404", func(t *testing.T) {
		api := setupTestAPI(t)

		rec := postWebhook(api, "etsy", body, nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown topic returns 400", func(t *testing.T) {
		api := setupTestAPI(t)
		store := api.seedStore(t, domain.StoreTypeShopify, secret)
		api.seedWebhook(t, store.ID, "products/update", secret)

		rec := postWebhook(api, "shopify", body, map[string]string{
			"X-Shopify-Topic":       "carts/update",
			"X-Shopify-Hmac-Sha256": shopifySignature(body, secret),
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delivery id falls back to a body digest", func(t *testing.T) {
		api := setupTestAPI(t)
		store := api.seedStore(t, domain.StoreTypeShopify, secret)
		api.seedWebhook(t, store.ID, "products/update", secret)

		rec := postWebhook(api, "shopify", body, map[string]string{
			"X-Shopify-Topic":       "products/update",
			"X-Shopify-Hmac-Sha256": shopifySignature(body, secret),
		})

		assert.Equal(t, http.StatusOK, rec.Code)
		api.queue.mu.Lock()
		defer api.queue.mu.Unlock()
		require.Len(t, api.queue.reconciliations, 1)
		assert.Len(t, api.queue.reconciliations[0].DeliveryID, 64)
	})

	t.Run("signature identifies the sender among multiple stores", func(t *testing.T) {
		api := setupTestAPI(t)
		first := api.seedStore(t, domain.StoreTypeShopify, "first-secret")
		second := api.seedStore(t, domain.StoreTypeShopify, "second-secret")
		api.seedWebhook(t, first.ID, "products/update", "first-secret")
		api.seedWebhook(t, second.ID, "products/update", "second-secret")

		rec := postWebhook(api, "shopify", body, map[string]string{
			"X-Shopify-Topic":       "products/update",
			"X-Shopify-Hmac-Sha256": shopifySignature(body, "second-secret"),
		})

		assert.Equal(t, http.StatusOK, rec.Code)
		api.queue.mu.Lock()
		defer api.queue.mu.Unlock()
		require.Len(t, api.queue.reconciliations, 1)
		assert.Equal(t, second.ID, api.queue.reconciliations[0].StoreID)
	})

	t.Run("queue failure is not acknowledged", func(t *testing.T) {
		api := setupTestAPI(t)
		store := api.seedStore(t, domain.StoreTypeShopify, secret)
		api.seedWebhook(t, store.ID, "products/update", secret)
		api.queue.enqueueErr = assert.AnError

		rec := postWebhook(api, "shopify", body, map[string]string{
			"X-Shopify-Topic":       "products/update",
			"X-Shopify-Hmac-Sha256": shopifySignature(body, secret),
		})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("payload without an entity id returns 400", func(t *testing.T) {
		api := setupTestAPI(t)
		store := api.seedStore(t, domain.StoreTypeShopify, secret)
		empty := []byte(`{"title": "no id here"}`)
		api.seedWebhook(t, store.ID, "products/update", secret)

		rec := postWebhook(api, "shopify", empty, map[string]string{
			"X-Shopify-Topic":       "products/update",
			"X-Shopify-Hmac-Sha256": shopifySignature(empty, secret),
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestKindForTopic(t *testing.T) {
	tests := []struct {
		topic string
		kind  domain.EntityKind
		ok    bool
	}{
		{"products/update", domain.EntityKindProduct, true},
		{"products/create", domain.EntityKindProduct, true},
		{"product.updated", domain.EntityKindProduct, true},
		{"inventory/update", domain.EntityKindInventory, true},
		{"inventory_levels/update", domain.EntityKindInventory, true},
		{"orders/update", domain.EntityKindOrder, true},
		{"order.status.changed", domain.EntityKindOrder, true},
		{"carts/update", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			kind, ok := kindForTopic(tt.topic)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.kind, kind)
			}
		})
	}
}

func TestEntityIDFromPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		ok      bool
	}{
		{"numeric id", `{"id": 123}`, "123", true},
		{"string id", `{"id": "abc"}`, "abc", true},
		{"item id", `{"item_id": 456}`, "456", true},
		{"nested in data envelope", `{"data": {"order_id": "ord-9"}}`, "ord-9", true},
		{"no id", `{"title": "nothing"}`, "", false},
		{"not json", `plain text`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := entityIDFromPayload([]byte(tt.payload))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
