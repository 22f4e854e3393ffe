package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	syncapp "github.com/storesync/backend/internal/application/sync"
	domain "github.com/storesync/backend/internal/domain/sync"
)

// SyncRuleHandler handles sync rule API endpoints
type SyncRuleHandler struct {
	BaseHandler
	service      *syncapp.Service
	callbackBase string
}

// NewSyncRuleHandler creates a new SyncRuleHandler. callbackBase is the
// public base URL webhook callbacks are registered under.
func NewSyncRuleHandler(service *syncapp.Service, callbackBase string) *SyncRuleHandler {
	return &SyncRuleHandler{
		service:      service,
		callbackBase: callbackBase,
	}
}

// SyncRuleResponse represents a sync rule in the response
type SyncRuleResponse struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	SourceStoreID   string               `json:"source_store_id"`
	TargetStoreID   string               `json:"target_store_id"`
	Kind            string               `json:"kind"`
	Conditions      domain.PredicateSpec `json:"conditions"`
	Transformations domain.TransformSpec `json:"transformations"`
	IsActive        bool                 `json:"is_active"`
	Schedule        string               `json:"schedule,omitempty"`
	CreatedAt       string               `json:"created_at"`
	UpdatedAt       string               `json:"updated_at"`
}

func toSyncRuleResponse(rule *domain.SyncRule) SyncRuleResponse {
	return SyncRuleResponse{
		ID:              rule.ID.String(),
		Name:            rule.Name,
		SourceStoreID:   rule.SourceStoreID.String(),
		TargetStoreID:   rule.TargetStoreID.String(),
		Kind:            rule.Kind.String(),
		Conditions:      rule.Conditions,
		Transformations: rule.Transformations,
		IsActive:        rule.IsActive,
		Schedule:        rule.Schedule,
		CreatedAt:       rule.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       rule.UpdatedAt.Format(time.RFC3339),
	}
}

// Create creates a new sync rule
func (h *SyncRuleHandler) Create(c *gin.Context) {
	var req syncapp.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	rule, err := h.service.CreateRule(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toSyncRuleResponse(rule))
}

// Get retrieves a sync rule by ID
func (h *SyncRuleHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid rule ID format")
		return
	}

	rule, err := h.service.GetRule(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toSyncRuleResponse(rule))
}

// List returns all sync rules
func (h *SyncRuleHandler) List(c *gin.Context) {
	rules, err := h.service.ListRules(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	responses := make([]SyncRuleResponse, len(rules))
	for i := range rules {
		responses[i] = toSyncRuleResponse(&rules[i])
	}
	h.Success(c, responses)
}

// Update updates a sync rule's editable fields
func (h *SyncRuleHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid rule ID format")
		return
	}

	var req syncapp.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	rule, err := h.service.UpdateRule(c.Request.Context(), id, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toSyncRuleResponse(rule))
}

// Delete deletes a sync rule
func (h *SyncRuleHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid rule ID format")
		return
	}

	if err := h.service.DeleteRule(c.Request.Context(), id); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

// Enable activates a rule and ensures its webhook registration
func (h *SyncRuleHandler) Enable(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid rule ID format")
		return
	}

	if err := h.service.EnableRule(c.Request.Context(), id, h.callbackBase); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, gin.H{"enabled": true})
}

// Disable deactivates a rule
func (h *SyncRuleHandler) Disable(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid rule ID format")
		return
	}

	if err := h.service.DisableRule(c.Request.Context(), id); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, gin.H{"enabled": false})
}

// RunNow queues an immediate manual run of a rule
func (h *SyncRuleHandler) RunNow(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid rule ID format")
		return
	}

	if err := h.service.RunNow(c.Request.Context(), id); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, gin.H{"queued": true})
}

// RegisterRoutes registers sync rule routes
func (h *SyncRuleHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rules := rg.Group("/sync/rules")
	{
		rules.POST("", h.Create)
		rules.GET("", h.List)
		rules.GET("/:id", h.Get)
		rules.PUT("/:id", h.Update)
		rules.DELETE("/:id", h.Delete)
		rules.POST("/:id/enable", h.Enable)
		rules.POST("/:id/disable", h.Disable)
		rules.POST("/:id/run", h.RunNow)
	}
}
