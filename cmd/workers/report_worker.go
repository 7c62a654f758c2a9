package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/reports/scheduler"
)

// ReportSchedule is the cron-driven delivery job
type ReportSchedule interface {
	Start(ctx context.Context) error
	Stop()
	RunOnce(ctx context.Context) (*scheduler.RunSummary, error)
	Status() *scheduler.JobStatus
}

// ReportWorker runs the weekly report delivery job
type ReportWorker struct {
	schedule ReportSchedule
	logger   *zap.Logger
	config   ReportWorkerConfig
}

// ReportWorkerConfig configuration for the report worker
type ReportWorkerConfig struct {
	// RunOnStart delivers one round immediately before waiting for the schedule
	RunOnStart bool
}

// NewReportWorker creates a new report worker
func NewReportWorker(schedule ReportSchedule, logger *zap.Logger, config ReportWorkerConfig) *ReportWorker {
	return &ReportWorker{
		schedule: schedule,
		logger:   logger,
		config:   config,
	}
}

// Start starts the schedule and blocks until ctx is cancelled
func (w *ReportWorker) Start(ctx context.Context) error {
	if w.config.RunOnStart {
		summary, err := w.schedule.RunOnce(ctx)
		if err != nil {
			w.logger.Error("Initial report run failed", zap.Error(err))
		} else {
			w.logger.Info("Initial report run completed",
				zap.Int("sent", summary.Sent),
				zap.Int("failed", summary.Failed))
		}
	}

	if err := w.schedule.Start(ctx); err != nil {
		return err
	}
	defer w.schedule.Stop()

	if status := w.schedule.Status(); status != nil {
		w.logger.Info("Report worker started",
			zap.String("cron", status.CronExpression),
			zap.Time("next_run", status.NextRun))
	}

	<-ctx.Done()
	w.logger.Info("Report worker shutting down")
	return nil
}
