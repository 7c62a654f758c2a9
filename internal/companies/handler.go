package companies

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/audit"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/auth"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
)

// Handler handles HTTP requests for companies and their emission sources
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new companies handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers company routes. The group must already require a session.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	companies := router.Group("/companies")
	{
		companies.POST("", h.CreateCompany)
		companies.GET("", h.ListCompanies)
		companies.GET("/:id", h.GetCompany)
		companies.DELETE("/:id", h.DeleteCompany)

		companies.GET("/:id/sources", h.ListSources)
		companies.POST("/:id/sources", h.AddSource)
		companies.PUT("/:id/sources", h.ReplaceSources)
		companies.POST("/:id/sources/import", h.ImportCSV)
		companies.POST("/:id/sources/external", h.ImportExternal)
		companies.GET("/:id/validation", h.ValidationReport)
		companies.GET("/:id/sources/map", h.SourceMap)
	}
}

// RegisterSyncRoutes registers the machine-to-machine sync API behind the
// given middleware (API key authentication, rate limiting).
func (h *Handler) RegisterSyncRoutes(router *gin.RouterGroup, middleware ...gin.HandlerFunc) {
	sync := router.Group("/sync", middleware...)
	{
		sync.PUT("/emissions", h.SyncEmissions)
		sync.GET("/emissions", h.GetSyncedEmissions)
	}
}

// =====================================================
// Companies
// =====================================================

// CreateCompany creates a company owned by the caller
func (h *Handler) CreateCompany(c *gin.Context) {
	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req CreateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	company, err := h.service.CreateCompany(c.Request.Context(), userID, &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, company)
}

// ListCompanies lists the caller's companies, or every company for admins
func (h *Handler) ListCompanies(c *gin.Context) {
	var owner *uuid.UUID
	if !isAdmin(c) {
		userID, ok := auth.CurrentUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		owner = &userID
	}

	companies, err := h.service.ListCompanies(c.Request.Context(), owner)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"companies": companies, "count": len(companies)})
}

// GetCompany returns a company with its sources
func (h *Handler) GetCompany(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}

	snapshot, err := h.service.Snapshot(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// DeleteCompany removes a company
func (h *Handler) DeleteCompany(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}

	if err := h.service.DeleteCompany(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// =====================================================
// Emission sources
// =====================================================

// ListSources returns a company's emission sources
func (h *Handler) ListSources(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}

	sources, err := h.service.ListSources(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sources": sources, "total": emissions.TotalEmissions(sources)})
}

// SourceMap returns located sources as a GeoJSON feature collection
func (h *Handler) SourceMap(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}

	result, err := h.service.SourceMap(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AddSource appends one emission source
func (h *Handler) AddSource(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}

	var source emissions.EmissionSource
	if err := c.ShouldBindJSON(&source); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.AddSource(c.Request.Context(), id, source); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, source)
}

// ReplaceSources replaces all of a company's sources
func (h *Handler) ReplaceSources(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}

	var req SourcesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sources, err := h.service.ReplaceSources(c.Request.Context(), c.GetString(auth.ContextUserEmail), id, req.Sources, audit.ActionSourcesImported)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

// ImportCSV replaces a company's sources from an uploaded CSV file
func (h *Handler) ImportCSV(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "CSV file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	result, err := h.service.ImportCSV(c.Request.Context(), c.GetString(auth.ContextUserEmail), id, file)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ImportExternal replaces a company's sources with external API data
func (h *Handler) ImportExternal(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}

	result, err := h.service.ImportExternal(c.Request.Context(), c.GetString(auth.ContextUserEmail), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ValidationReport checks a company's sources against its sector
func (h *Handler) ValidationReport(c *gin.Context) {
	id, ok := h.authorize(c)
	if !ok {
		return
	}

	report, err := h.service.ValidationReport(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// =====================================================
// Sync API
// =====================================================

// SyncEmissions replaces a company's sources on behalf of an API key holder
func (h *Handler) SyncEmissions(c *gin.Context) {
	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Sources) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "emission_sources must not be empty"})
		return
	}

	if !h.authorizeCompany(c, req.CompanyID) {
		return
	}

	sources, err := h.service.ReplaceSources(c.Request.Context(), c.GetString(auth.ContextUserEmail), req.CompanyID, req.Sources, audit.ActionSourcesSynced)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Emission data updated",
		"company_id": req.CompanyID,
		"sources":    len(sources),
	})
}

// GetSyncedEmissions returns a company's sources to an API key holder
func (h *Handler) GetSyncedEmissions(c *gin.Context) {
	id, err := uuid.Parse(c.Query("company_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company ID"})
		return
	}

	if !h.authorizeCompany(c, id) {
		return
	}

	sources, err := h.service.ListSources(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"company_id": id, "emission_sources": sources})
}

// =====================================================
// Helpers
// =====================================================

// ContextCompanyID is set by CompanyAccess to the authorized company id
const ContextCompanyID = "company_id"

// CompanyAccess is middleware for routes under /companies/:id that checks the
// caller owns the company, or is an admin.
func (h *Handler) CompanyAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.authorize(c)
		if !ok {
			c.Abort()
			return
		}
		c.Set(ContextCompanyID, id)
		c.Next()
	}
}

// CompanyIDFromContext returns the id stored by CompanyAccess
func CompanyIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextCompanyID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// authorize parses the :id parameter and checks the caller may access it
func (h *Handler) authorize(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company ID"})
		return uuid.Nil, false
	}
	return id, h.authorizeCompany(c, id)
}

func (h *Handler) authorizeCompany(c *gin.Context, id uuid.UUID) bool {
	company, err := h.service.GetCompany(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return false
	}

	if isAdmin(c) {
		return true
	}
	if userID, ok := auth.CurrentUserID(c); ok && userID == company.OwnerID {
		return true
	}

	h.respondError(c, ErrForbidden)
	return false
}

func isAdmin(c *gin.Context) bool {
	return auth.Role(c.GetString(auth.ContextUserRole)) == auth.RoleAdmin
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrCompanyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidSector), errors.Is(err, ErrInvalidSize),
		errors.Is(err, emissions.ErrInvalidInput), errors.Is(err, emissions.ErrMissingData):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Company request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
