package dashboard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/companies"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
)

// Handler handles dashboard HTTP requests
type Handler struct {
	service *Service
	stats   *StatsCache
	logger  *zap.Logger
}

// NewHandler creates a new dashboard handler. stats may be nil.
func NewHandler(service *Service, stats *StatsCache, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		stats:   stats,
		logger:  logger,
	}
}

// RegisterRoutes registers routes under a /companies/:id group that already
// runs companies.Handler.CompanyAccess.
func (h *Handler) RegisterRoutes(company *gin.RouterGroup) {
	company.GET("/dashboard", h.GetSummary)
	company.GET("/benchmark", h.GetBenchmark)
}

// RegisterAdminRoutes registers cache inspection routes
func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.GET("/cache/stats", h.GetCacheStats)
}

// GetSummary returns the company dashboard
func (h *Handler) GetSummary(c *gin.Context) {
	companyID, _ := companies.CompanyIDFromContext(c)

	summary, cached, err := h.service.Summary(c.Request.Context(), companyID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("X-Cache", cacheHeader(cached))
	c.JSON(http.StatusOK, summary)
}

// GetBenchmark compares the company with its sector
func (h *Handler) GetBenchmark(c *gin.Context) {
	companyID, _ := companies.CompanyIDFromContext(c)

	result, cached, err := h.service.Benchmark(c.Request.Context(), companyID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("X-Cache", cacheHeader(cached))
	c.JSON(http.StatusOK, result)
}

// GetCacheStats returns hit and miss counts
func (h *Handler) GetCacheStats(c *gin.Context) {
	if h.stats == nil {
		c.JSON(http.StatusOK, CacheStats{})
		return
	}
	c.JSON(http.StatusOK, h.stats.GetStats())
}

func cacheHeader(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, companies.ErrCompanyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, emissions.ErrMissingData), errors.Is(err, emissions.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Dashboard request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
