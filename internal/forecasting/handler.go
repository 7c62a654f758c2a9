package forecasting

import (
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/companies"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
)

// Handler handles forecasting HTTP requests
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new forecasting handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the inline engine routes. Every request carries
// its own source list.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	h.registerEngine(router)
	router.POST("/predict", h.Predict)
	router.POST("/predict/batch", h.PredictBatch)
}

// RegisterCompanyRoutes registers the engine routes under a /companies/:id
// group that already runs companies.Handler.CompanyAccess. Sources come from
// the stored company.
func (h *Handler) RegisterCompanyRoutes(company *gin.RouterGroup) {
	company.GET("/analytics", h.GetAnalytics)
	h.registerEngine(company.Group("/engine"))
}

func (h *Handler) registerEngine(router *gin.RouterGroup) {
	router.POST("/forecast", h.Forecast)
	router.POST("/reduction", h.Reduction)
	router.POST("/optimize", h.Optimize)
	router.POST("/anomalies", h.Anomalies)
	router.POST("/cost-curve", h.CostCurve)
	router.POST("/action-plan", h.ActionPlan)
	router.POST("/scenario", h.Scenario)
}

// companyID is set only on company routes
func companyID(c *gin.Context) *uuid.UUID {
	if id, ok := companies.CompanyIDFromContext(c); ok {
		return &id
	}
	return nil
}

// bind decodes the body. Company routes may omit it.
func bind(c *gin.Context, req any) error {
	err := c.ShouldBindJSON(req)
	if errors.Is(err, io.EOF) && companyID(c) != nil {
		return nil
	}
	return err
}

// Forecast projects the current total
func (h *Handler) Forecast(c *gin.Context) {
	var req ForecastRequest
	if err := bind(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, cached, err := h.service.Forecast(c.Request.Context(), companyID(c), req)
	h.respond(c, result, cached, err)
}

// Reduction forecasts the total after a percentage plan
func (h *Handler) Reduction(c *gin.Context) {
	var req ReductionRequest
	if err := bind(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, cached, err := h.service.Reduction(c.Request.Context(), companyID(c), req)
	h.respond(c, result, cached, err)
}

// Optimize spends a budget on the cheapest reductions
func (h *Handler) Optimize(c *gin.Context) {
	var req OptimizeRequest
	if err := bind(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, cached, err := h.service.Optimize(c.Request.Context(), companyID(c), req)
	h.respond(c, result, cached, err)
}

// Anomalies flags unusual records
func (h *Handler) Anomalies(c *gin.Context) {
	var req AnomalyRequest
	if err := bind(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, cached, err := h.service.Anomalies(c.Request.Context(), companyID(c), req)
	h.respond(c, result, cached, err)
}

// CostCurve returns cost against tons reduced
func (h *Handler) CostCurve(c *gin.Context) {
	var req CostCurveRequest
	if err := bind(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	points, cached, err := h.service.CostCurve(c.Request.Context(), companyID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("X-Cache", cacheHeader(cached))
	c.JSON(http.StatusOK, gin.H{"points": points})
}

// ActionPlan projects a yearly reduction schedule
func (h *Handler) ActionPlan(c *gin.Context) {
	var req ActionPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, cached, err := h.service.ActionPlan(c.Request.Context(), companyID(c), req)
	h.respond(c, result, cached, err)
}

// Scenario simulates per-record overrides
func (h *Handler) Scenario(c *gin.Context) {
	var req ScenarioRequest
	if err := bind(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, cached, err := h.service.Scenario(c.Request.Context(), companyID(c), req)
	h.respond(c, result, cached, err)
}

// GetAnalytics returns the analytics view of the company
func (h *Handler) GetAnalytics(c *gin.Context) {
	id, _ := companies.CompanyIDFromContext(c)

	years := 0
	if raw := c.Query("years"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid years"})
			return
		}
		years = v
	}

	result, cached, err := h.service.Analytics(c.Request.Context(), id, years)
	h.respond(c, result, cached, err)
}

// Predict runs the regression model on one feature row
func (h *Handler) Predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.Predict(req.Features)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PredictBatch predicts every row of an uploaded CSV. ?format=csv returns the
// rows with a prediction column instead of JSON.
func (h *Handler) PredictBatch(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to open upload"})
		return
	}
	defer f.Close()

	rows, err := h.service.PredictBatch(f)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if c.Query("format") == "csv" {
		c.Header("Content-Disposition", `attachment; filename="predictions.csv"`)
		c.Header("Content-Type", "text/csv")
		if err := writePredictionsCSV(c.Writer, rows); err != nil {
			h.logger.Error("Failed to write predictions", zap.Error(err))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"rows": rows, "count": len(rows)})
}

func writePredictionsCSV(w io.Writer, rows []emissions.PredictionRow) error {
	var header []string
	for name := range rows[0].Features {
		header = append(header, name)
	}
	sort.Strings(header)

	writer := csv.NewWriter(w)
	if err := writer.Write(append(header, emissions.PredictionColumn)); err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, 0, len(header)+1)
		for _, name := range header {
			record = append(record, strconv.FormatFloat(row.Features[name], 'f', -1, 64))
		}
		record = append(record, strconv.FormatFloat(row.Prediction, 'f', 2, 64))
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func (h *Handler) respond(c *gin.Context, result any, cached bool, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("X-Cache", cacheHeader(cached))
	c.JSON(http.StatusOK, result)
}

func cacheHeader(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, emissions.ErrInvalidInput), errors.Is(err, emissions.ErrMissingData):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, companies.ErrCompanyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, emissions.ErrModelUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Forecasting request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
