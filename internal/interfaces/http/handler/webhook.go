package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	syncapp "github.com/storesync/backend/internal/application/sync"
	domain "github.com/storesync/backend/internal/domain/sync"
	"github.com/storesync/backend/internal/infrastructure/marketplace"
)

// defaultMaxWebhookBody bounds how much of a delivery body is read
const defaultMaxWebhookBody = 1 << 20 // 1MB

// deliveryIDHeaders are the platform headers carrying a delivery id,
// tried in order
var deliveryIDHeaders = []string{
	"X-Shopify-Webhook-Id",
	"X-WC-Webhook-Delivery-ID",
	"X-Delivery-Id",
}

// topicHeaders are the platform headers carrying the delivery topic
var topicHeaders = []string{
	"X-Shopify-Topic",
	"X-WC-Webhook-Topic",
}

// WebhookHandler ingests platform webhook deliveries. The sender is
// identified by signature: the delivery is verified against each candidate
// store's registration secret, and the store whose secret verifies is the
// sender. Verification happens before any processing; reconciliation is
// dispatched to the worker pool after the acknowledgement.
type WebhookHandler struct {
	BaseHandler
	stores      domain.StoreRepository
	webhooks    domain.WebhookRepository
	registry    domain.ConnectorRegistry
	queue       syncapp.JobQueue
	publicURL   string
	maxBodySize int64
	logger      *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(
	stores domain.StoreRepository,
	webhooks domain.WebhookRepository,
	registry domain.ConnectorRegistry,
	queue syncapp.JobQueue,
	publicURL string,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		stores:      stores,
		webhooks:    webhooks,
		registry:    registry,
		queue:       queue,
		publicURL:   strings.TrimSuffix(publicURL, "/"),
		maxBodySize: defaultMaxWebhookBody,
		logger:      logger,
	}
}

// Receive handles POST /webhook/:platform
func (h *WebhookHandler) Receive(c *gin.Context) {
	platform, ok := domain.ParseStoreType(c.Param("platform"))
	if !ok {
		h.NotFound(c, "Unknown platform")
		return
	}

	connector, err := h.registry.Connector(platform)
	if err != nil {
		h.NotFound(c, "Unknown platform")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBodySize))
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}

	topic := topicFromRequest(c, body)
	kind, ok := kindForTopic(topic)
	if !ok {
		h.BadRequest(c, "Unknown webhook topic")
		return
	}

	// Shopee signs the full callback URL along with the body; forward it
	// so the connector can verify.
	c.Request.Header.Set(marketplace.CallbackURLHeader, h.publicURL+c.Request.URL.RequestURI())

	store, verified := h.identifySender(c, platform, topic, body, connector)
	if !verified {
		h.Unauthorized(c, "Webhook signature verification failed")
		return
	}

	entityID, ok := entityIDFromPayload(body)
	if !ok {
		h.BadRequest(c, "Delivery payload carries no entity id")
		return
	}

	event := domain.WebhookEvent{
		StoreID:          store,
		Platform:         platform,
		Topic:            topic,
		Kind:             kind,
		ExternalEntityID: entityID,
		DeliveryID:       deliveryIDFromRequest(c, body),
	}

	if err := h.queue.EnqueueReconciliation(event); err != nil {
		// Not acknowledged: the platform redelivers, and dedup absorbs
		// any overlap.
		h.logger.Error("Failed to enqueue webhook reconciliation",
			zap.String("platform", platform.String()),
			zap.String("topic", topic),
			zap.Error(err),
		)
		h.InternalError(c, "Failed to queue reconciliation")
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// identifySender finds the store whose registration secret verifies the
// delivery signature
func (h *WebhookHandler) identifySender(c *gin.Context, platform domain.StoreType, topic string, body []byte, connector domain.MarketplaceConnector) (uuid.UUID, bool) {
	stores, err := h.stores.FindActive(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load candidate stores", zap.Error(err))
		return uuid.Nil, false
	}

	for i := range stores {
		store := &stores[i]
		if store.Type != platform {
			continue
		}

		registration, err := h.webhooks.FindByStoreAndTopic(c.Request.Context(), store.ID, topic)
		if err != nil {
			if !errors.Is(err, domain.ErrWebhookNotFound) {
				h.logger.Error("Failed to load webhook registration",
					zap.String("store_id", store.ID.String()),
					zap.Error(err),
				)
			}
			continue
		}

		if connector.VerifyWebhookSignature(body, c.Request.Header, registration.Secret) {
			return store.ID, true
		}
	}
	return uuid.Nil, false
}

// topicFromRequest reads the delivery topic from platform headers, falling
// back to the payload
func topicFromRequest(c *gin.Context, body []byte) string {
	for _, header := range topicHeaders {
		if topic := c.GetHeader(header); topic != "" {
			return topic
		}
	}

	var payload struct {
		Topic string `json:"topic"`
		Type  string `json:"type"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Topic != "" {
			return payload.Topic
		}
		return payload.Type
	}
	return ""
}

// kindForTopic maps a delivery topic to the entity kind it affects
func kindForTopic(topic string) (domain.EntityKind, bool) {
	switch {
	case strings.HasPrefix(topic, "product"):
		return domain.EntityKindProduct, true
	case strings.HasPrefix(topic, "inventory"):
		return domain.EntityKindInventory, true
	case strings.HasPrefix(topic, "order"):
		return domain.EntityKindOrder, true
	default:
		return "", false
	}
}

// entityIDFromPayload extracts the affected entity's platform id. Flat
// payloads carry it at the top level; envelope payloads nest it under
// "data".
func entityIDFromPayload(body []byte) (string, bool) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}

	if id, ok := idFromFields(payload); ok {
		return id, true
	}
	if data, ok := payload["data"].(map[string]any); ok {
		return idFromFields(data)
	}
	return "", false
}

// idFromFields tries the id field names the platforms use
func idFromFields(fields map[string]any) (string, bool) {
	for _, key := range []string{"id", "item_id", "product_id", "order_id"} {
		switch v := fields[key].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case float64:
			return fmt.Sprintf("%.0f", v), true
		}
	}
	return "", false
}

// deliveryIDFromRequest reads the platform delivery id, falling back to a
// digest of the body so redeliveries without an id still deduplicate
func deliveryIDFromRequest(c *gin.Context, body []byte) string {
	for _, header := range deliveryIDHeaders {
		if id := c.GetHeader(header); id != "" {
			return id
		}
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// RegisterRoutes registers the webhook ingestion route. Webhook callbacks
// live at the root, outside the versioned API group.
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhook/:platform", h.Receive)
}
