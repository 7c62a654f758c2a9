package reports

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/auth"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/companies"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/reports/export"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/reports/scheduler"
)

// Handler handles HTTP requests for reports
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new reports handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers download routes on a /reports/companies/:id group
// that already runs companies.Handler.CompanyAccess
func (h *Handler) RegisterRoutes(company *gin.RouterGroup) {
	company.GET("/pdf", h.download(FormatPDF))
	company.GET("/csv", h.download(FormatCSV))
	company.GET("/xlsx", h.download(FormatExcel))
	company.GET("/compliance", h.GetCompliance)
	company.POST("/archive", h.ArchiveReport)
}

// RegisterAdminRoutes registers delivery routes
func (h *Handler) RegisterAdminRoutes(admin *gin.RouterGroup) {
	admin.POST("/reports/send", h.SendReports)
	admin.GET("/reports/schedule", h.GetSchedule)
}

// download returns a handler that renders the company report in format
func (h *Handler) download(format Format) gin.HandlerFunc {
	return func(c *gin.Context) {
		companyID, _ := companies.CompanyIDFromContext(c)

		report, err := h.service.Render(c.Request.Context(), companyID, format, export.StandardGHGProtocol)
		if err != nil {
			h.respondError(c, err)
			return
		}
		h.attach(c, report)
	}
}

// GetCompliance renders a compliance report. Query: standard=ghg|iso,
// format=pdf|csv.
func (h *Handler) GetCompliance(c *gin.Context) {
	companyID, _ := companies.CompanyIDFromContext(c)

	standard, ok := export.ParseStandard(c.Query("standard"))
	if !ok {
		h.respondError(c, fmt.Errorf("%w: %q", ErrUnknownStandard, c.Query("standard")))
		return
	}

	format := FormatCompliancePDF
	switch c.DefaultQuery("format", "pdf") {
	case "pdf":
	case "csv":
		format = FormatComplianceCSV
	default:
		h.respondError(c, fmt.Errorf("%w: %q", ErrUnsupportedFormat, c.Query("format")))
		return
	}

	report, err := h.service.Render(c.Request.Context(), companyID, format, standard)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.attach(c, report)
}

// ArchiveReport stores a rendered report in the report bucket. Query:
// format, standard.
func (h *Handler) ArchiveReport(c *gin.Context) {
	companyID, _ := companies.CompanyIDFromContext(c)

	format, err := ParseFormat(c.Query("format"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	standard, ok := export.ParseStandard(c.Query("standard"))
	if !ok {
		h.respondError(c, fmt.Errorf("%w: %q", ErrUnknownStandard, c.Query("standard")))
		return
	}

	resp, err := h.service.Archive(c.Request.Context(), c.GetString(auth.ContextUserID), companyID, format, standard)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// SendReports delivers a company report or starts a full delivery run
func (h *Handler) SendReports(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.service.Send(c.Request.Context(), c.GetString(auth.ContextUserID), &req)
	if err != nil {
		if resp != nil && resp.Execution != nil && !isClientError(err) && !errors.Is(err, scheduler.ErrDeliveryDisabled) {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "execution": resp.Execution})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetSchedule returns the periodic delivery job status
func (h *Handler) GetSchedule(c *gin.Context) {
	status := h.service.Schedule()
	if status == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report schedule not configured"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) attach(c *gin.Context, report *GeneratedReport) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName))
	c.Data(http.StatusOK, report.ContentType, report.Data)
}

func isClientError(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrUnknownStandard) ||
		errors.Is(err, scheduler.ErrUnsupportedDelivery) ||
		errors.Is(err, scheduler.ErrNoRecipients) ||
		errors.Is(err, emissions.ErrMissingData) ||
		errors.Is(err, emissions.ErrInvalidInput)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case isClientError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, companies.ErrCompanyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrArchiveDisabled), errors.Is(err, scheduler.ErrDeliveryDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Report request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
