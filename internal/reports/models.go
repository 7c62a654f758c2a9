package reports

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/reports/scheduler"
)

// Format is a rendered report format
type Format string

const (
	FormatPDF           Format = "pdf"
	FormatCSV           Format = "csv"
	FormatExcel         Format = "xlsx"
	FormatCompliancePDF Format = "compliance_pdf"
	FormatComplianceCSV Format = "compliance_csv"
)

const (
	contentTypePDF         = "application/pdf"
	contentTypeCSV         = "text/csv"
	contentTypeSpreadsheet = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ParseFormat maps a query or config value to a Format
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatPDF:
		return FormatPDF, nil
	case "excel":
		return FormatExcel, nil
	case FormatCSV, FormatExcel, FormatCompliancePDF, FormatComplianceCSV:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	switch f {
	case FormatCSV, FormatComplianceCSV:
		return contentTypeCSV
	case FormatExcel:
		return contentTypeSpreadsheet
	default:
		return contentTypePDF
	}
}

// Extension returns the file extension of the format
func (f Format) Extension() string {
	switch f {
	case FormatCSV, FormatComplianceCSV:
		return ".csv"
	case FormatExcel:
		return ".xlsx"
	default:
		return ".pdf"
	}
}

var (
	ErrUnsupportedFormat = errors.New("unsupported report format")
	ErrUnknownStandard   = errors.New("unknown reporting standard")
	ErrArchiveDisabled   = errors.New("report archive not configured")
)

// GeneratedReport is a rendered report ready to download or deliver
type GeneratedReport = scheduler.GeneratedReport

// =====================================================
// Requests and responses
// =====================================================

// SendRequest triggers report delivery. Without a company id the periodic
// run is started for every recipient.
type SendRequest struct {
	CompanyID  *uuid.UUID `json:"company_id,omitempty"`
	Format     string     `json:"format,omitempty"`
	Method     string     `json:"method,omitempty"`
	Recipients []string   `json:"recipients,omitempty" binding:"omitempty,dive,email"`
	WebhookURL string     `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// ArchiveResponse points at an archived report
type ArchiveResponse struct {
	FileName    string `json:"file_name"`
	FileKey     string `json:"file_key"`
	DownloadURL string `json:"download_url,omitempty"`
}
