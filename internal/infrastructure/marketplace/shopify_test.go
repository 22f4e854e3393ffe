package marketplace

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/storesync/backend/internal/domain/sync"
)

func shopifyStore(baseURL string) *domain.Store {
	return &domain.Store{
		ID:       uuid.New(),
		Name:     "test shop",
		Type:     domain.StoreTypeShopify,
		BaseURL:  baseURL,
		IsActive: true,
		Credentials: &domain.StoreCredentials{
			AccessToken:   "test-token",
			WebhookSecret: "hook-secret",
		},
	}
}

func TestShopifyConnector_FetchRecords(t *testing.T) {
	t.Run("first page with next cursor", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-token", r.Header.Get("X-Shopify-Access-Token"))
			assert.Contains(t, r.URL.Path, "/admin/api/"+shopifyAPIVersion+"/products.json")

			w.Header().Set("Link", `<https://shop.example/admin/api/2024-01/products.json?limit=250&page_info=abc123>; rel="next"`)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"products":[
				{"id":101,"title":"Widget","body_html":"A widget","status":"active",
				 "variants":[{"id":201,"sku":"W-1","price":"19.99","inventory_quantity":5}]},
				{"id":102,"title":"Gadget","status":"draft","variants":[]}
			]}`))
		}))
		defer server.Close()

		c := NewShopifyConnector()
		page, err := c.FetchRecords(context.Background(), shopifyStore(server.URL), domain.EntityKindProduct, "")
		require.NoError(t, err)

		assert.Len(t, page.Records, 2)
		assert.True(t, page.HasMore)
		assert.Equal(t, "abc123", page.NextCursor)
	})

	t.Run("last page has no cursor", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "abc123", r.URL.Query().Get("page_info"))
			_, _ = w.Write([]byte(`{"products":[]}`))
		}))
		defer server.Close()

		c := NewShopifyConnector()
		page, err := c.FetchRecords(context.Background(), shopifyStore(server.URL), domain.EntityKindProduct, "abc123")
		require.NoError(t, err)

		assert.Empty(t, page.Records)
		assert.False(t, page.HasMore)
		assert.Empty(t, page.NextCursor)
	})

	t.Run("upstream failure surfaces as marketplace error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"errors":"throttled"}`))
		}))
		defer server.Close()

		c := NewShopifyConnector()
		_, err := c.FetchRecords(context.Background(), shopifyStore(server.URL), domain.EntityKindProduct, "")
		require.Error(t, err)

		assert.True(t, domain.IsMarketplaceError(err))
		var me *domain.MarketplaceError
		require.ErrorAs(t, err, &me)
		assert.Equal(t, http.StatusTooManyRequests, me.StatusCode)
		assert.Equal(t, domain.StoreTypeShopify, me.Platform)
	})

	t.Run("missing credentials", func(t *testing.T) {
		store := shopifyStore("http://unused.example")
		store.Credentials = nil

		c := NewShopifyConnector()
		_, err := c.FetchRecords(context.Background(), store, domain.EntityKindProduct, "")
		assert.ErrorIs(t, err, domain.ErrStoreNoCredentials)
	})
}

func TestShopifyConnector_CreateRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		product, ok := payload["product"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "New Widget", product["title"])

		_, _ = w.Write([]byte(`{"product":{"id":555,"title":"New Widget"}}`))
	}))
	defer server.Close()

	c := NewShopifyConnector()
	id, err := c.CreateRecord(context.Background(), shopifyStore(server.URL), domain.EntityKindProduct,
		domain.PlatformRecord{"title": "New Widget"})
	require.NoError(t, err)
	assert.Equal(t, "555", id)
}

func TestShopifyConnector_PushInventory(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/inventory_levels/set.json")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewShopifyConnector()

	t.Run("variant takes precedence", func(t *testing.T) {
		err := c.PushInventory(context.Background(), shopifyStore(server.URL), "prod-1", "var-2", 40)
		require.NoError(t, err)
		assert.Equal(t, "var-2", got["inventory_item_id"])
		assert.Equal(t, float64(40), got["available"])
	})

	t.Run("product level without variant", func(t *testing.T) {
		err := c.PushInventory(context.Background(), shopifyStore(server.URL), "prod-1", "", 7)
		require.NoError(t, err)
		assert.Equal(t, "prod-1", got["inventory_item_id"])
	})
}

func TestShopifyConnector_ToInternal(t *testing.T) {
	c := NewShopifyConnector()

	t.Run("product", func(t *testing.T) {
		record := domain.PlatformRecord{
			"id":        float64(101),
			"title":     "Widget",
			"body_html": "A widget",
			"status":    "active",
			"variants": []any{
				map[string]any{"id": float64(201), "sku": "W-1", "price": "19.99", "inventory_quantity": float64(5)},
			},
		}

		internal := c.ToInternal(record, domain.EntityKindProduct)
		assert.Equal(t, "101", internal.ExternalID)

		title, _ := internal.GetString("title")
		assert.Equal(t, "Widget", title)
		price, _ := internal.GetString("price")
		assert.Equal(t, "19.99", price)

		variants := internal.Variants()
		require.Len(t, variants, 1)
		assert.Equal(t, "W-1", variants[0]["sku"])
		assert.Equal(t, int64(5), variants[0]["quantity"])
	})

	t.Run("missing optional fields map to defaults", func(t *testing.T) {
		internal := c.ToInternal(domain.PlatformRecord{"id": float64(9)}, domain.EntityKindProduct)
		assert.Equal(t, "9", internal.ExternalID)
		title, ok := internal.GetString("title")
		assert.True(t, ok)
		assert.Empty(t, title)
	})

	t.Run("inventory rides on first variant", func(t *testing.T) {
		record := domain.PlatformRecord{
			"id": float64(101),
			"variants": []any{
				map[string]any{"sku": "W-1", "inventory_quantity": float64(12)},
			},
		}
		internal := c.ToInternal(record, domain.EntityKindInventory)
		qty, _ := internal.Get("quantity")
		assert.Equal(t, int64(12), qty)
	})
}

func TestShopifyConnector_FromInternal(t *testing.T) {
	c := NewShopifyConnector()

	internal := domain.NewInternalRecord(domain.EntityKindProduct, "101")
	internal.Set("title", "Widget")
	internal.Set("description", "A widget")
	internal.Set("status", "active")
	internal.Set("variants", []any{
		map[string]any{"sku": "W-1", "price": "21.99", "quantity": int64(3)},
	})

	out := c.FromInternal(internal, domain.EntityKindProduct)
	assert.Equal(t, "Widget", out["title"])
	assert.Equal(t, "A widget", out["body_html"])

	variants, ok := out["variants"].([]any)
	require.True(t, ok)
	require.Len(t, variants, 1)
	first := variants[0].(map[string]any)
	assert.Equal(t, "21.99", first["price"])
	assert.Equal(t, int64(3), first["inventory_quantity"])
}

func TestShopifyConnector_VerifyWebhookSignature(t *testing.T) {
	c := NewShopifyConnector()
	body := []byte(`{"id":101}`)
	secret := "hook-secret"

	sign := func(b []byte, s string) string {
		mac := hmac.New(sha256.New, []byte(s))
		mac.Write(b)
		return base64.StdEncoding.EncodeToString(mac.Sum(nil))
	}

	t.Run("valid signature", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-Shopify-Hmac-Sha256", sign(body, secret))
		assert.True(t, c.VerifyWebhookSignature(body, headers, secret))
	})

	t.Run("wrong secret", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-Shopify-Hmac-Sha256", sign(body, "other"))
		assert.False(t, c.VerifyWebhookSignature(body, headers, secret))
	})

	t.Run("tampered body", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-Shopify-Hmac-Sha256", sign(body, secret))
		assert.False(t, c.VerifyWebhookSignature([]byte(`{"id":102}`), headers, secret))
	})

	t.Run("missing header", func(t *testing.T) {
		assert.False(t, c.VerifyWebhookSignature(body, http.Header{}, secret))
	})
}

func TestNextPageInfo(t *testing.T) {
	tests := []struct {
		name string
		link string
		want string
	}{
		{
			name: "next link present",
			link: `<https://shop.example/admin/api/2024-01/products.json?limit=250&page_info=abc123>; rel="next"`,
			want: "abc123",
		},
		{
			name: "previous only",
			link: `<https://shop.example/admin/api/2024-01/products.json?page_info=xyz>; rel="previous"`,
			want: "",
		},
		{
			name: "both relations",
			link: `<https://s.example/p.json?page_info=prev1>; rel="previous", <https://s.example/p.json?page_info=next2>; rel="next"`,
			want: "next2",
		},
		{name: "empty header", link: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextPageInfo(tt.link))
		})
	}
}
