package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	syncapp "github.com/storesync/backend/internal/application/sync"
	domain "github.com/storesync/backend/internal/domain/sync"
)

// SyncLogHandler handles sync log API endpoints. Logs are the only surface
// operators see run outcomes through.
type SyncLogHandler struct {
	BaseHandler
	service *syncapp.Service
}

// NewSyncLogHandler creates a new SyncLogHandler
func NewSyncLogHandler(service *syncapp.Service) *SyncLogHandler {
	return &SyncLogHandler{service: service}
}

// SyncLogResponse represents a sync log in the response
type SyncLogResponse struct {
	ID               string   `json:"id"`
	SyncRuleID       *string  `json:"sync_rule_id,omitempty"`
	SourceStoreID    string   `json:"source_store_id"`
	TargetStoreID    string   `json:"target_store_id"`
	Kind             string   `json:"kind"`
	Trigger          string   `json:"trigger"`
	Status           string   `json:"status"`
	Total            int      `json:"total"`
	Created          int      `json:"created"`
	Updated          int      `json:"updated"`
	Skipped          int      `json:"skipped"`
	Failed           int      `json:"failed"`
	FailedIDs        []string `json:"failed_ids,omitempty"`
	ExternalSourceID string   `json:"external_source_id,omitempty"`
	ExternalTargetID string   `json:"external_target_id,omitempty"`
	Error            string   `json:"error,omitempty"`
	RetryCount       int      `json:"retry_count"`
	NextRetryAt      *string  `json:"next_retry_at,omitempty"`
	CreatedAt        string   `json:"created_at"`
	StartedAt        *string  `json:"started_at,omitempty"`
	CompletedAt      *string  `json:"completed_at,omitempty"`
}

func toSyncLogResponse(log *domain.SyncLog) SyncLogResponse {
	resp := SyncLogResponse{
		ID:               log.ID.String(),
		SourceStoreID:    log.SourceStoreID.String(),
		TargetStoreID:    log.TargetStoreID.String(),
		Kind:             log.Kind.String(),
		Trigger:          string(log.Trigger),
		Status:           string(log.Status),
		Total:            log.Stats.Total,
		Created:          log.Stats.Created,
		Updated:          log.Stats.Updated,
		Skipped:          log.Stats.Skipped,
		Failed:           log.Stats.Failed,
		FailedIDs:        log.FailedIDs,
		ExternalSourceID: log.ExternalSourceID,
		ExternalTargetID: log.ExternalTargetID,
		Error:            log.Error,
		RetryCount:       log.RetryCount,
		CreatedAt:        log.CreatedAt.Format(time.RFC3339),
	}
	if log.SyncRuleID != nil {
		id := log.SyncRuleID.String()
		resp.SyncRuleID = &id
	}
	if log.NextRetryAt != nil {
		t := log.NextRetryAt.Format(time.RFC3339)
		resp.NextRetryAt = &t
	}
	if log.StartedAt != nil {
		t := log.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &t
	}
	if log.CompletedAt != nil {
		t := log.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &t
	}
	return resp
}

// Get retrieves a sync log by ID
func (h *SyncLogHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid log ID format")
		return
	}

	log, err := h.service.GetLog(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toSyncLogResponse(log))
}

// List returns sync logs matching the query filters, newest first
func (h *SyncLogHandler) List(c *gin.Context) {
	filter, err := logFilterFromQuery(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	logs, total, err := h.service.ListLogs(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	responses := make([]SyncLogResponse, len(logs))
	for i := range logs {
		responses[i] = toSyncLogResponse(&logs[i])
	}
	h.SuccessWithMeta(c, responses, total, filter.Page, filter.PageSize)
}

// logFilterFromQuery parses list query parameters
func logFilterFromQuery(c *gin.Context) (domain.SyncLogFilter, error) {
	filter := domain.SyncLogFilter{Page: 1, PageSize: 20}

	if raw := c.Query("rule_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, err
		}
		filter.SyncRuleID = &id
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.SyncLogStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("kind"); raw != "" {
		kind := domain.EntityKind(raw)
		filter.Kind = &kind
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return filter, err
		}
		filter.Page = page
	}
	if raw := c.Query("page_size"); raw != "" {
		pageSize, err := strconv.Atoi(raw)
		if err != nil {
			return filter, err
		}
		filter.PageSize = pageSize
	}
	return filter, nil
}

// RegisterRoutes registers sync log routes
func (h *SyncLogHandler) RegisterRoutes(rg *gin.RouterGroup) {
	logs := rg.Group("/sync/logs")
	{
		logs.GET("", h.List)
		logs.GET("/:id", h.Get)
	}
}
