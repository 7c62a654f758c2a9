package planning

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/auth"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/companies"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
)

// Handler handles HTTP requests for plans, scenarios and offsets
type Handler struct {
	service      *Service
	defaultYears int
	logger       *zap.Logger
}

// NewHandler creates a new planning handler
func NewHandler(service *Service, defaultYears int, logger *zap.Logger) *Handler {
	return &Handler{
		service:      service,
		defaultYears: defaultYears,
		logger:       logger,
	}
}

// RegisterRoutes registers routes under a /companies/:id group that already
// runs companies.Handler.CompanyAccess.
func (h *Handler) RegisterRoutes(company *gin.RouterGroup) {
	plans := company.Group("/plans")
	{
		plans.GET("", h.ListPlans)
		plans.GET("/:name", h.GetPlan)
		plans.PUT("/:name", h.SavePlan)
		plans.DELETE("/:name", h.DeletePlan)
		plans.GET("/:name/forecast", h.ApplyPlan)
	}

	scenarios := company.Group("/scenarios")
	{
		scenarios.GET("", h.ListScenarios)
		scenarios.GET("/:name", h.GetScenario)
		scenarios.PUT("/:name", h.SaveScenario)
		scenarios.DELETE("/:name", h.DeleteScenario)
		scenarios.POST("/:name/load", h.LoadScenario)
		scenarios.POST("/compare", h.CompareScenarios)
	}

	offsets := company.Group("/offsets")
	{
		offsets.GET("", h.ListPurchases)
		offsets.POST("", h.PurchaseOffsets)
	}
}

// =====================================================
// Plans
// =====================================================

func (h *Handler) ListPlans(c *gin.Context) {
	companyID, _ := companies.CompanyIDFromContext(c)
	plans, err := h.service.ListPlans(c.Request.Context(), companyID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

func (h *Handler) GetPlan(c *gin.Context) {
	companyID, _ := companies.CompanyIDFromContext(c)
	plan, err := h.service.GetPlan(c.Request.Context(), companyID, c.Param("name"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NamedPlan{Name: c.Param("name"), Plan: plan})
}

func (h *Handler) SavePlan(c *gin.Context) {
	companyID, _ := companies.CompanyIDFromContext(c)

	var req SavePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.SavePlan(c.Request.Context(), companyID, c.Param("name"), req.Plan); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NamedPlan{Name: c.Param("name"), Plan: req.Plan})
}

func (h *Handler) DeletePlan(c *gin.Context) {
	companyID, _ := companies.CompanyIDFromContext(c)
	if err := h.service.DeletePlan(c.Request.Context(), companyID, c.Param("name")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ApplyPlan forecasts current sources under a saved plan. ?years= sets the horizon.
func (h *Handler) ApplyPlan(c *gin.Context) {
	companyID, _ := companies.CompanyIDFromContext(c)

	years := h.defaultYears
	if v := c.Query("years"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "years must be an integer"})
			return
		}
		years = n
	}

	result, err := h.service.ApplyPlan(c.Request.Context(), companyID, c.Param("name"), years)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// =====================================================
// Scenarios
// =====================================================

func (h *Handler) ListScenarios(c *gin.Context) {
	companyID, _ := companies.CompanyIDFromContext(c)
	scenarios, err := h.service.ListScenarios(c.Request.Context(), companyID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": scenarios})
}

func (h *Handler) GetScenario(c *gin.Context) {
	companyID, _ := companies.CompanyIDFromContext(c)
	sources, err := h.service.GetScenario(c.Request.Context(), companyID, c.Param("name"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NamedScenario{Name: c.Param("name"), Sources: sources})
}

func (h *Handler) SaveScenario(c *gin.Context) {
	companyID, _ := companies.CompanyIDFromContext(c)

	var req SaveScenarioRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if err := h.service.SaveScenario(c.Request.Context(), companyID, c.Param("name"), req.Sources); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Scenario saved", "name": c.Param("name")})
}

func (h *Handler) DeleteScenario(c *gin.Context) {
	companyID, _ := companies.CompanyIDFromContext(c)
	if err := h.service.DeleteScenario(c.Request.Context(), companyID, c.Param("name")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) LoadScenario(c *gin.Context) {
	companyID, _ := companies.CompanyIDFromContext(c)
	sources, err := h.service.LoadScenario(c.Request.Context(), c.GetString(auth.ContextUserEmail), companyID, c.Param("name"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Scenario loaded", "sources": sources})
}

func (h *Handler) CompareScenarios(c *gin.Context) {
	companyID, _ := companies.CompanyIDFromContext(c)

	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comparisons, err := h.service.CompareScenarios(c.Request.Context(), companyID, req.Names)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"years": emissions.ScenarioCompareYears, "scenarios": comparisons})
}

// =====================================================
// Offsets
// =====================================================

func (h *Handler) ListPurchases(c *gin.Context) {
	companyID, _ := companies.CompanyIDFromContext(c)
	purchases, err := h.service.ListPurchases(c.Request.Context(), companyID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}

func (h *Handler) PurchaseOffsets(c *gin.Context) {
	companyID, _ := companies.CompanyIDFromContext(c)
	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req OffsetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	quote, err := h.service.PurchaseOffsets(c.Request.Context(), userID, c.GetString(auth.ContextUserEmail), companyID, req.Tons)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, quote)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrPlanNotFound), errors.Is(err, ErrScenarioNotFound), errors.Is(err, companies.ErrCompanyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, emissions.ErrInvalidInput), errors.Is(err, emissions.ErrMissingData):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Planning request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
