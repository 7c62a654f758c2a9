package reports

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/audit"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/companies"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/dashboard"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/reports/export"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/reports/scheduler"
)

// Snapshotter loads a company with its emission sources
type Snapshotter interface {
	Snapshot(ctx context.Context, id uuid.UUID) (*companies.CompanyWithSources, error)
}

// SummarySource computes the dashboard summary of a company
type SummarySource interface {
	Summary(ctx context.Context, companyID uuid.UUID) (*dashboard.Summary, bool, error)
}

// Service renders company reports and triggers their delivery
type Service struct {
	companies Snapshotter
	summaries SummarySource
	recorder  audit.Recorder
	executor  *scheduler.Executor
	schedule  *scheduler.ScheduleManager
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a new reports service. recorder may be nil.
func NewService(companySource Snapshotter, summaries SummarySource, recorder audit.Recorder, logger *zap.Logger) *Service {
	return &Service{
		companies: companySource,
		summaries: summaries,
		recorder:  recorder,
		now:       time.Now,
		logger:    logger,
	}
}

// WithDelivery attaches the executor used for archive and send operations
// and the periodic schedule. Either may be nil.
func (s *Service) WithDelivery(executor *scheduler.Executor, schedule *scheduler.ScheduleManager) *Service {
	s.executor = executor
	s.schedule = schedule
	return s
}

// Report assembles the content of a company report
func (s *Service) Report(ctx context.Context, companyID uuid.UUID) (*export.EmissionReport, error) {
	snapshot, err := s.companies.Snapshot(ctx, companyID)
	if err != nil {
		return nil, err
	}
	summary, _, err := s.summaries.Summary(ctx, companyID)
	if err != nil {
		return nil, err
	}

	return &export.EmissionReport{
		CompanyName:     snapshot.Company.Name,
		Sector:          snapshot.Company.Sector,
		Size:            snapshot.Company.Size,
		Sources:         snapshot.Sources,
		Total:           summary.Total,
		Forecast:        summary.Forecast,
		Analytics:       summary.Analytics,
		Target:          summary.Target,
		TargetYear:      summary.TargetYear,
		Benchmark:       summary.Benchmark,
		Recommendations: summary.Recommendations,
		GeneratedAt:     s.now().UTC(),
	}, nil
}

// Build renders a report in a format named by a string. Compliance formats
// use the GHG Protocol. It satisfies scheduler.ReportBuilder.
func (s *Service) Build(ctx context.Context, companyID uuid.UUID, format string) (*GeneratedReport, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return s.Render(ctx, companyID, f, export.StandardGHGProtocol)
}

// Render renders a company report. standard only applies to the compliance
// formats.
func (s *Service) Render(ctx context.Context, companyID uuid.UUID, format Format, standard export.Standard) (*GeneratedReport, error) {
	report, err := s.Report(ctx, companyID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch format {
	case FormatPDF:
		gen := export.NewPDFGenerator(export.DefaultPDFOptions())
		if err := gen.EmissionReport(report); err != nil {
			return nil, fmt.Errorf("failed to render pdf: %w", err)
		}
		err = gen.WriteTo(&buf)
	case FormatCSV:
		err = export.WriteReportCSV(&buf, report)
	case FormatExcel:
		err = export.WriteReportWorkbook(&buf, report)
	case FormatCompliancePDF:
		gen := export.NewPDFGenerator(export.DefaultPDFOptions())
		if err := gen.ComplianceReport(report, standard); err != nil {
			return nil, fmt.Errorf("failed to render pdf: %w", err)
		}
		err = gen.WriteTo(&buf)
	case FormatComplianceCSV:
		err = export.WriteComplianceCSV(&buf, report, standard)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write %s report: %w", format, err)
	}

	s.logger.Debug("Rendered report",
		zap.String("company_id", companyID.String()),
		zap.String("format", string(format)),
		zap.Int("bytes", buf.Len()))

	return &GeneratedReport{
		CompanyID:   companyID,
		CompanyName: report.CompanyName,
		Data:        buf.Bytes(),
		ContentType: format.ContentType(),
		FileName:    fileName(report, format, standard),
		GeneratedAt: report.GeneratedAt,
	}, nil
}

// Archive renders a report and stores it in the report bucket
func (s *Service) Archive(ctx context.Context, actor string, companyID uuid.UUID, format Format, standard export.Standard) (*ArchiveResponse, error) {
	if s.executor == nil {
		return nil, ErrArchiveDisabled
	}

	report, err := s.Render(ctx, companyID, format, standard)
	if err != nil {
		return nil, err
	}

	key, url, err := s.executor.Archive(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("failed to archive report: %w", err)
	}

	if s.recorder != nil {
		entry := audit.NewEntry(audit.ActionReportGenerated, actor, &companyID, audit.JSONB{
			"format":   string(format),
			"file_key": key,
		})
		if err := s.recorder.Record(ctx, entry); err != nil {
			s.logger.Warn("Failed to record archived report", zap.Error(err))
		}
	}

	return &ArchiveResponse{
		FileName:    report.FileName,
		FileKey:     key,
		DownloadURL: url,
	}, nil
}

// SendResponse carries a single execution or a full run
type SendResponse struct {
	Execution *scheduler.ExecutionResult `json:"execution,omitempty"`
	Run       *scheduler.RunSummary      `json:"run,omitempty"`
}

// Send delivers one company report, or runs the periodic delivery for all
// recipients when no company is named
func (s *Service) Send(ctx context.Context, actor string, req *SendRequest) (*SendResponse, error) {
	if req.CompanyID == nil {
		if s.schedule == nil {
			return nil, fmt.Errorf("%w: schedule", scheduler.ErrDeliveryDisabled)
		}
		run, err := s.schedule.RunOnce(ctx)
		if err != nil {
			return nil, err
		}
		return &SendResponse{Run: run}, nil
	}

	if s.executor == nil {
		return nil, fmt.Errorf("%w: executor", scheduler.ErrDeliveryDisabled)
	}
	format, err := ParseFormat(req.Format)
	if err != nil {
		return nil, err
	}
	method, err := scheduler.ParseDeliveryMethod(req.Method)
	if err != nil {
		return nil, err
	}

	result, err := s.executor.Execute(ctx, &scheduler.ExecutionRequest{
		CompanyID:       *req.CompanyID,
		Format:          string(format),
		DeliveryMethod:  method,
		RecipientEmails: req.Recipients,
		WebhookURL:      req.WebhookURL,
		TriggeredBy:     actor,
	})
	return &SendResponse{Execution: result}, err
}

// Schedule returns the status of the periodic delivery job
func (s *Service) Schedule() *scheduler.JobStatus {
	if s.schedule == nil {
		return nil
	}
	return s.schedule.Status()
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

func fileName(report *export.EmissionReport, format Format, standard export.Standard) string {
	name := slug(report.CompanyName)
	if name == "" {
		name = "company"
	}
	date := report.GeneratedAt.Format("20060102")

	switch format {
	case FormatCompliancePDF, FormatComplianceCSV:
		return fmt.Sprintf("%s_compliance_%s_%s%s", slug(string(standard)), name, date, format.Extension())
	default:
		return fmt.Sprintf("co2_report_%s_%s%s", name, date, format.Extension())
	}
}
