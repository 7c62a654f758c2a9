package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/audit"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/notifications"
	"github.com/Kaustab2003/co2-emission-forecasting/pkg/storage"
)

// ErrReportTooLarge is returned when a rendered report exceeds the size limit
var ErrReportTooLarge = errors.New("report exceeds maximum file size")

// Executor renders a company report, archives it and delivers it
type Executor struct {
	builder  ReportBuilder
	delivery *DeliveryManager
	archive  storage.S3Client
	recorder audit.Recorder
	notifier notifications.Notifier
	logger   *zap.Logger
	config   ExecutorConfig
}

// ReportBuilder renders a company report in a format
type ReportBuilder interface {
	Build(ctx context.Context, companyID uuid.UUID, format string) (*GeneratedReport, error)
}

// GeneratedReport represents a generated report
type GeneratedReport struct {
	CompanyID   uuid.UUID `json:"company_id"`
	CompanyName string    `json:"company_name"`
	Data        []byte    `json:"-"`
	ContentType string    `json:"content_type"`
	FileName    string    `json:"file_name"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ExecutionRequest represents a report execution request
type ExecutionRequest struct {
	CompanyID       uuid.UUID      `json:"company_id"`
	Format          string         `json:"format"`
	DeliveryMethod  DeliveryMethod `json:"delivery_method"`
	RecipientEmails []string       `json:"recipient_emails,omitempty"`
	WebhookURL      string         `json:"webhook_url,omitempty"`
	TriggeredBy     string         `json:"triggered_by,omitempty"`
}

// ExecutionResult represents the result of report execution
type ExecutionResult struct {
	ExecutionID    uuid.UUID         `json:"execution_id"`
	CompanyID      uuid.UUID         `json:"company_id"`
	Status         string            `json:"status"`
	FileName       string            `json:"file_name,omitempty"`
	FileSizeBytes  int64             `json:"file_size_bytes"`
	FileKey        string            `json:"file_key,omitempty"`
	DownloadURL    string            `json:"download_url,omitempty"`
	DeliveryStatus map[string]string `json:"delivery_status,omitempty"`
	StartedAt      time.Time         `json:"started_at"`
	CompletedAt    time.Time         `json:"completed_at"`
	DurationMs     int64             `json:"duration_ms"`
	Error          string            `json:"error,omitempty"`
}

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ExecutorConfig configuration for the executor
type ExecutorConfig struct {
	Timeout           time.Duration `json:"timeout"`
	DownloadURLExpiry time.Duration `json:"download_url_expiry"`
	MaxFileSizeBytes  int64         `json:"max_file_size_bytes"`
	WebhookRetries    int           `json:"webhook_retries"`
}

// DefaultExecutorConfig returns default configuration
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Timeout:           5 * time.Minute,
		DownloadURLExpiry: 24 * time.Hour,
		MaxFileSizeBytes:  25 * 1024 * 1024,
		WebhookRetries:    3,
	}
}

// NewExecutor creates a new executor. archive, recorder and notifier may be
// nil.
func NewExecutor(
	builder ReportBuilder,
	delivery *DeliveryManager,
	archive storage.S3Client,
	recorder audit.Recorder,
	notifier notifications.Notifier,
	logger *zap.Logger,
	config ExecutorConfig,
) *Executor {
	return &Executor{
		builder:  builder,
		delivery: delivery,
		archive:  archive,
		recorder: recorder,
		notifier: notifier,
		logger:   logger,
		config:   config,
	}
}

// Execute renders a report and delivers it
func (e *Executor) Execute(ctx context.Context, req *ExecutionRequest) (*ExecutionResult, error) {
	executionID := uuid.New()
	startTime := time.Now()

	e.logger.Info("Starting report execution",
		zap.String("execution_id", executionID.String()),
		zap.String("company_id", req.CompanyID.String()),
		zap.String("format", req.Format),
		zap.String("method", string(req.DeliveryMethod)))

	result := &ExecutionResult{
		ExecutionID:    executionID,
		CompanyID:      req.CompanyID,
		StartedAt:      startTime,
		DeliveryStatus: make(map[string]string),
	}
	fail := func(err error) (*ExecutionResult, error) {
		result.Status = StatusFailed
		result.Error = err.Error()
		result.CompletedAt = time.Now()
		result.DurationMs = time.Since(startTime).Milliseconds()
		e.record(ctx, req, result)
		return result, err
	}

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	report, err := e.builder.Build(ctx, req.CompanyID, req.Format)
	if err != nil {
		return fail(fmt.Errorf("report generation failed: %w", err))
	}
	result.FileName = report.FileName
	result.FileSizeBytes = int64(len(report.Data))

	if e.config.MaxFileSizeBytes > 0 && result.FileSizeBytes > e.config.MaxFileSizeBytes {
		return fail(ErrReportTooLarge)
	}

	if e.archive != nil {
		key, url, err := e.Archive(ctx, report)
		switch {
		case err == nil:
			result.FileKey = key
			result.DownloadURL = url
		case req.DeliveryMethod == DeliveryArchive:
			return fail(err)
		default:
			e.logger.Warn("Failed to archive report", zap.Error(err))
		}
	} else if req.DeliveryMethod == DeliveryArchive {
		return fail(fmt.Errorf("%w: archive", ErrDeliveryDisabled))
	}

	if err := e.deliver(ctx, req, report, result); err != nil {
		return fail(err)
	}

	result.Status = StatusCompleted
	result.CompletedAt = time.Now()
	result.DurationMs = time.Since(startTime).Milliseconds()
	e.record(ctx, req, result)

	notifications.SafeNotify(ctx, e.notifier, e.logger, notifications.NewAlert(
		notifications.KindReportSent,
		req.CompanyID,
		notifications.SeverityInfo,
		"Emission report sent",
		fmt.Sprintf("The %s report for %s was delivered by %s.", req.Format, report.CompanyName, req.DeliveryMethod),
	).WithData("file_name", report.FileName))

	e.logger.Info("Report execution completed",
		zap.String("execution_id", executionID.String()),
		zap.Int64("duration_ms", result.DurationMs))

	return result, nil
}

// Archive uploads report under a dated company prefix and returns the key
// and a presigned download link
func (e *Executor) Archive(ctx context.Context, report *GeneratedReport) (string, string, error) {
	if e.archive == nil {
		return "", "", fmt.Errorf("%w: archive", ErrDeliveryDisabled)
	}

	generated := report.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	key := fmt.Sprintf("reports/%s/%s/%s", report.CompanyID, generated.UTC().Format("2006-01-02"), report.FileName)

	if _, err := e.archive.Upload(ctx, key, report.Data, report.ContentType); err != nil {
		return "", "", err
	}

	url, err := e.archive.GetPresignedURL(ctx, key, e.config.DownloadURLExpiry)
	if err != nil {
		e.logger.Warn("Failed to generate download URL", zap.String("key", key), zap.Error(err))
		return key, "", nil
	}
	return key, url, nil
}

// deliver delivers the report using the requested method
func (e *Executor) deliver(ctx context.Context, req *ExecutionRequest, report *GeneratedReport, result *ExecutionResult) error {
	method := req.DeliveryMethod

	switch method {
	case DeliveryEmail, DeliverySES:
		body := fmt.Sprintf("Attached is your latest CO₂ emission report for %s.", report.CompanyName)
		if result.DownloadURL != "" {
			body += "\n\nDownload link: " + result.DownloadURL
		}
		err := e.delivery.DeliverByEmail(ctx, method, &EmailDelivery{
			To:      req.RecipientEmails,
			Subject: fmt.Sprintf("CO₂ Emission Report for %s", report.CompanyName),
			Body:    body,
			Attachments: []Attachment{
				{Name: report.FileName, Data: report.Data, ContentType: report.ContentType},
			},
		})
		return e.status(result, method, err)

	case DeliveryWebhook:
		err := e.delivery.DeliverByWebhook(ctx, &WebhookDelivery{
			URL: req.WebhookURL,
			Payload: map[string]any{
				"company_id":   report.CompanyID.String(),
				"company_name": report.CompanyName,
				"file_name":    report.FileName,
				"file_key":     result.FileKey,
				"download_url": result.DownloadURL,
				"generated_at": report.GeneratedAt.Format(time.RFC3339),
			},
			RetryCount: e.config.WebhookRetries,
		})
		return e.status(result, method, err)

	case DeliveryArchive:
		result.DeliveryStatus[string(method)] = "uploaded"
		return nil
	}

	return fmt.Errorf("%w: %q", ErrUnsupportedDelivery, method)
}

func (e *Executor) status(result *ExecutionResult, method DeliveryMethod, err error) error {
	if err != nil {
		result.DeliveryStatus[string(method)] = fmt.Sprintf("failed: %v", err)
		return err
	}
	result.DeliveryStatus[string(method)] = "sent"
	return nil
}

func (e *Executor) record(ctx context.Context, req *ExecutionRequest, result *ExecutionResult) {
	if e.recorder == nil {
		return
	}
	actor := req.TriggeredBy
	if actor == "" {
		actor = "scheduler"
	}
	companyID := req.CompanyID
	entry := audit.NewEntry(audit.ActionReportDelivered, actor, &companyID, audit.JSONB{
		"execution_id": result.ExecutionID.String(),
		"format":       req.Format,
		"method":       string(req.DeliveryMethod),
		"recipients":   len(req.RecipientEmails),
		"status":       result.Status,
		"file_key":     result.FileKey,
		"error":        result.Error,
	})
	if err := e.recorder.Record(ctx, entry); err != nil {
		e.logger.Warn("Failed to record report delivery", zap.Error(err))
	}
}
