package teams

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/auth"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/companies"
)

// Handler handles team HTTP requests
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new teams handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the team routes on a /teams/companies/:id group.
// The group must run after auth.RequireAuth.
func (h *Handler) RegisterRoutes(team *gin.RouterGroup) {
	team.Use(h.TeamAccess())
	team.GET("/members", h.ListMembers)
	team.POST("/members", auth.RequireRole(auth.RoleAdmin), h.Invite)
	team.GET("/tasks", h.Inbox)
	team.POST("/tasks", h.SendTask)
}

// TeamAccess admits admins, the company owner and invited members
func (h *Handler) TeamAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid company ID"})
			return
		}
		userID, ok := auth.CurrentUserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		admin := auth.Role(c.GetString(auth.ContextUserRole)) == auth.RoleAdmin
		if err := h.service.Authorize(c.Request.Context(), companyID, userID, admin); err != nil {
			h.respondError(c, err)
			c.Abort()
			return
		}

		c.Set(companies.ContextCompanyID, companyID)
		c.Next()
	}
}

// ListMembers lists the company team
func (h *Handler) ListMembers(c *gin.Context) {
	companyID, _ := companies.CompanyIDFromContext(c)

	members, err := h.service.Members(c.Request.Context(), companyID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// Invite adds a user to the company team
func (h *Handler) Invite(c *gin.Context) {
	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	companyID, _ := companies.CompanyIDFromContext(c)
	inviterID, _ := auth.CurrentUserID(c)

	member, err := h.service.Invite(c.Request.Context(), inviterID, companyID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

// SendTask sends a task or message to a team member
func (h *Handler) SendTask(c *gin.Context) {
	var req TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	companyID, _ := companies.CompanyIDFromContext(c)
	fromID, _ := auth.CurrentUserID(c)

	task, err := h.service.SendTask(c.Request.Context(), companyID, fromID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// Inbox lists the caller's tasks within the company
func (h *Handler) Inbox(c *gin.Context) {
	companyID, _ := companies.CompanyIDFromContext(c)
	userID, _ := auth.CurrentUserID(c)

	tasks, err := h.service.Inbox(c.Request.Context(), companyID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, companies.ErrCompanyNotFound), errors.Is(err, auth.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, companies.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidRole), errors.Is(err, ErrNotMember), errors.Is(err, ErrEmptyTask):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Team request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
