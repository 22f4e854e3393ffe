package marketplace

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/storesync/backend/internal/domain/sync"
)

func wooStore(baseURL string) *domain.Store {
	return &domain.Store{
		ID:       uuid.New(),
		Name:     "test site",
		Type:     domain.StoreTypeWooCommerce,
		BaseURL:  baseURL,
		IsActive: true,
		Credentials: &domain.StoreCredentials{
			APIKey:        "ck_test",
			APISecret:     "cs_test",
			WebhookSecret: "wc-secret",
		},
	}
}

func TestWooCommerceConnector_FetchRecords(t *testing.T) {
	t.Run("page number pagination", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "ck_test", user)
			assert.Equal(t, "cs_test", pass)
			assert.Equal(t, wooAPIPrefix+"/products", r.URL.Path)
			assert.Equal(t, "1", r.URL.Query().Get("page"))

			w.Header().Set("X-WP-TotalPages", "3")
			_, _ = w.Write([]byte(`[{"id":601,"name":"Chair","regular_price":"45.00","status":"publish"}]`))
		}))
		defer server.Close()

		c := NewWooCommerceConnector()
		page, err := c.FetchRecords(context.Background(), wooStore(server.URL), domain.EntityKindProduct, "")
		require.NoError(t, err)

		require.Len(t, page.Records, 1)
		assert.True(t, page.HasMore)
		assert.Equal(t, "2", page.NextCursor)
	})

	t.Run("last page", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "3", r.URL.Query().Get("page"))
			w.Header().Set("X-WP-TotalPages", "3")
			_, _ = w.Write([]byte(`[]`))
		}))
		defer server.Close()

		c := NewWooCommerceConnector()
		page, err := c.FetchRecords(context.Background(), wooStore(server.URL), domain.EntityKindProduct, "3")
		require.NoError(t, err)

		assert.False(t, page.HasMore)
		assert.Empty(t, page.NextCursor)
	})
}

func TestWooCommerceConnector_PushInventory(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.Equal(t, http.MethodPut, r.Method)
		_, _ = w.Write([]byte(`{"id":601}`))
	}))
	defer server.Close()

	c := NewWooCommerceConnector()

	t.Run("product level", func(t *testing.T) {
		err := c.PushInventory(context.Background(), wooStore(server.URL), "601", "", 10)
		require.NoError(t, err)
		assert.Equal(t, wooAPIPrefix+"/products/601", gotPath)
	})

	t.Run("variation level", func(t *testing.T) {
		err := c.PushInventory(context.Background(), wooStore(server.URL), "601", "702", 10)
		require.NoError(t, err)
		assert.Equal(t, wooAPIPrefix+"/products/601/variations/702", gotPath)
	})
}

func TestWooCommerceConnector_Mapping(t *testing.T) {
	c := NewWooCommerceConnector()

	t.Run("order to internal", func(t *testing.T) {
		record := domain.PlatformRecord{
			"id":       float64(900),
			"number":   "900",
			"status":   "processing",
			"total":    "61.50",
			"currency": "USD",
			"billing":  map[string]any{"email": "buyer@example.com"},
		}

		internal := c.ToInternal(record, domain.EntityKindOrder)
		assert.Equal(t, "900", internal.ExternalID)
		email, _ := internal.GetString("email")
		assert.Equal(t, "buyer@example.com", email)
	})

	t.Run("product from internal maps status vocabulary", func(t *testing.T) {
		internal := domain.NewInternalRecord(domain.EntityKindProduct, "601")
		internal.Set("title", "Chair")
		internal.Set("price", "45.00")
		internal.Set("status", "active")

		out := c.FromInternal(internal, domain.EntityKindProduct)
		assert.Equal(t, "Chair", out["name"])
		assert.Equal(t, "45.00", out["regular_price"])
		assert.Equal(t, "publish", out["status"])
	})
}

func TestWooCommerceConnector_VerifyWebhookSignature(t *testing.T) {
	c := NewWooCommerceConnector()
	body := []byte(`{"id":601}`)
	secret := "wc-secret"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	valid := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	t.Run("valid signature", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-WC-Webhook-Signature", valid)
		assert.True(t, c.VerifyWebhookSignature(body, headers, secret))
	})

	t.Run("empty secret rejected", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-WC-Webhook-Signature", valid)
		assert.False(t, c.VerifyWebhookSignature(body, headers, ""))
	})
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry(
		NewShopifyConnector(),
		NewLazadaConnector(),
		NewShopeeConnector(),
		NewWooCommerceConnector(),
	)

	t.Run("lookup by store type", func(t *testing.T) {
		for _, st := range []domain.StoreType{
			domain.StoreTypeShopify,
			domain.StoreTypeLazada,
			domain.StoreTypeShopee,
			domain.StoreTypeWooCommerce,
		} {
			c, err := registry.Connector(st)
			require.NoError(t, err)
			assert.Equal(t, st, c.StoreType())
		}
	})

	t.Run("unregistered type", func(t *testing.T) {
		empty := NewRegistry()
		_, err := empty.Connector(domain.StoreTypeShopify)
		assert.ErrorIs(t, err, domain.ErrConnectorNotRegistered)
	})

	t.Run("list", func(t *testing.T) {
		assert.Len(t, registry.List(), 4)
	})
}
