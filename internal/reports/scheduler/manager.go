package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultCronExpression runs the report job every Monday at 08:00
const DefaultCronExpression = "0 0 8 * * 1"

// cronParser accepts the six-field expressions used by cron.WithSeconds
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ScheduleManager runs the periodic report delivery job
type ScheduleManager struct {
	cron       *cron.Cron
	entryID    cron.EntryID
	executor   *Executor
	recipients RecipientSource
	logger     *zap.Logger
	config     ScheduleManagerConfig
	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
}

// RecipientSource lists the users that receive the periodic report
type RecipientSource interface {
	ListRecipients(ctx context.Context) ([]*Recipient, error)
}

// Recipient is a user paired with one company that has emission sources
type Recipient struct {
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Email       string    `json:"email" db:"email"`
	Name        string    `json:"name" db:"name"`
	CompanyID   uuid.UUID `json:"company_id" db:"company_id"`
	CompanyName string    `json:"company_name" db:"company_name"`
}

// ScheduleManagerConfig configuration for the schedule manager
type ScheduleManagerConfig struct {
	CronExpression string         `json:"cron_expression"`
	Format         string         `json:"format"`
	DeliveryMethod DeliveryMethod `json:"delivery_method"`
	WebhookURL     string         `json:"webhook_url"`
	MaxConcurrent  int            `json:"max_concurrent"`
	RunTimeout     time.Duration  `json:"run_timeout"`
}

// DefaultScheduleManagerConfig returns default configuration
func DefaultScheduleManagerConfig() ScheduleManagerConfig {
	return ScheduleManagerConfig{
		CronExpression: DefaultCronExpression,
		Format:         "pdf",
		DeliveryMethod: DeliveryEmail,
		MaxConcurrent:  4,
		RunTimeout:     30 * time.Minute,
	}
}

// RunSummary reports the outcome of one delivery run
type RunSummary struct {
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
	Recipients  int                `json:"recipients"`
	Sent        int                `json:"sent"`
	Failed      int                `json:"failed"`
	Results     []*ExecutionResult `json:"results"`
}

// JobStatus represents the status of the scheduled job
type JobStatus struct {
	CronExpression string    `json:"cron_expression"`
	NextRun        time.Time `json:"next_run"`
	PrevRun        time.Time `json:"prev_run"`
	IsActive       bool      `json:"is_active"`
}

// NewScheduleManager creates a new schedule manager
func NewScheduleManager(
	executor *Executor,
	recipients RecipientSource,
	logger *zap.Logger,
	config ScheduleManagerConfig,
) *ScheduleManager {
	defaults := DefaultScheduleManagerConfig()
	if config.CronExpression == "" {
		config.CronExpression = defaults.CronExpression
	}
	if config.Format == "" {
		config.Format = defaults.Format
	}
	if config.DeliveryMethod == "" {
		config.DeliveryMethod = defaults.DeliveryMethod
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = defaults.MaxConcurrent
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = defaults.RunTimeout
	}

	return &ScheduleManager{
		cron:       cron.New(cron.WithSeconds()),
		executor:   executor,
		recipients: recipients,
		logger:     logger,
		config:     config,
	}
}

// Start registers the delivery job and starts the cron scheduler. Runs stop
// when ctx is cancelled.
func (m *ScheduleManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("schedule manager already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	entryID, err := m.cron.AddFunc(m.config.CronExpression, func() {
		runCtx, cancelRun := context.WithTimeout(ctx, m.config.RunTimeout)
		defer cancelRun()
		if _, err := m.RunOnce(runCtx); err != nil {
			m.logger.Error("Scheduled report run failed", zap.Error(err))
		}
	})
	if err != nil {
		cancel()
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	m.entryID = entryID
	m.cancel = cancel
	m.running = true
	m.cron.Start()

	m.logger.Info("Started schedule manager",
		zap.String("cron", m.config.CronExpression),
		zap.String("format", m.config.Format),
		zap.String("method", string(m.config.DeliveryMethod)))
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (m *ScheduleManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	m.logger.Info("Stopping schedule manager")

	m.cancel()
	done := m.cron.Stop()
	<-done.Done()

	m.cron.Remove(m.entryID)
	m.running = false
}

// RunOnce sends the report to every recipient with at most MaxConcurrent
// executions in flight. Individual failures are counted, not returned.
func (m *ScheduleManager) RunOnce(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{StartedAt: time.Now()}

	recipients, err := m.recipients.ListRecipients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	summary.Recipients = len(recipients)

	m.logger.Info("Starting report run", zap.Int("recipients", len(recipients)))

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, m.config.MaxConcurrent)
	)

	for _, recipient := range recipients {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return summary, ctx.Err()
		}

		wg.Add(1)
		go func(r *Recipient) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := m.executor.Execute(ctx, m.request(r))

			mu.Lock()
			defer mu.Unlock()
			if result != nil {
				summary.Results = append(summary.Results, result)
			}
			if err != nil {
				summary.Failed++
				m.logger.Warn("Failed to send report",
					zap.String("email", r.Email),
					zap.String("company_id", r.CompanyID.String()),
					zap.Error(err))
				return
			}
			summary.Sent++
		}(recipient)
	}

	wg.Wait()
	summary.CompletedAt = time.Now()

	m.logger.Info("Report run completed",
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.CompletedAt.Sub(summary.StartedAt)))

	return summary, nil
}

func (m *ScheduleManager) request(r *Recipient) *ExecutionRequest {
	req := &ExecutionRequest{
		CompanyID:      r.CompanyID,
		Format:         m.config.Format,
		DeliveryMethod: m.config.DeliveryMethod,
		WebhookURL:     m.config.WebhookURL,
		TriggeredBy:    "scheduler",
	}
	if r.Email != "" {
		req.RecipientEmails = []string{r.Email}
	}
	return req
}

// Status returns the next and previous run of the delivery job
func (m *ScheduleManager) Status() *JobStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := &JobStatus{
		CronExpression: m.config.CronExpression,
		IsActive:       m.running,
	}
	if m.running {
		entry := m.cron.Entry(m.entryID)
		status.NextRun = entry.Next
		status.PrevRun = entry.Prev
	} else {
		status.NextRun = calculateNextExecution(m.config.CronExpression, time.Now())
	}
	return status
}

// calculateNextExecution returns the zero time when expr does not parse
func calculateNextExecution(expr string, from time.Time) time.Time {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}
	}
	return schedule.Next(from)
}

// ValidateCronExpression validates a six-field cron expression
func ValidateCronExpression(expr string) error {
	_, err := cronParser.Parse(expr)
	return err
}
