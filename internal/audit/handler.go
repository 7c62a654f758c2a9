package audit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler exposes the audit log to administrators
type Handler struct {
	recorder Recorder
	logger   *zap.Logger
}

// NewHandler creates a new audit handler
func NewHandler(recorder Recorder, logger *zap.Logger) *Handler {
	return &Handler{
		recorder: recorder,
		logger:   logger,
	}
}

// RegisterAdminRoutes registers the audit listing on an admin group
func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.GET("/audit", h.ListEntries)
}

// ListEntries returns the newest entries. Query: company_id, action, actor,
// limit.
func (h *Handler) ListEntries(c *gin.Context) {
	var filter Filter

	if raw := c.Query("company_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company ID"})
			return
		}
		filter.CompanyID = &id
	}
	if raw := c.Query("action"); raw != "" {
		action := Action(raw)
		filter.Action = &action
	}
	filter.Actor = c.Query("actor")
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		filter.Limit = limit
	}

	entries, err := h.recorder.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list audit entries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []*Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}
