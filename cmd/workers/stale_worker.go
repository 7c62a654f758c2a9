package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/companies"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/notifications"
)

// StaleSource lists companies whose data needs a refresh
type StaleSource interface {
	StaleCompanies(ctx context.Context, now time.Time) ([]*companies.Company, error)
}

// StaleWorker alerts owners of companies whose emission data went stale
type StaleWorker struct {
	source   StaleSource
	notifier notifications.Notifier
	logger   *zap.Logger
	config   StaleWorkerConfig
	now      func() time.Time

	mu       sync.Mutex
	notified map[uuid.UUID]time.Time
	done     chan struct{}
}

// StaleWorkerConfig configuration for the stale data worker
type StaleWorkerConfig struct {
	CheckInterval time.Duration
	MaxConcurrent int
	// RenotifyAfter is the quiet period before the same company is alerted again
	RenotifyAfter time.Duration
}

// DefaultStaleWorkerConfig returns default configuration
func DefaultStaleWorkerConfig() StaleWorkerConfig {
	return StaleWorkerConfig{
		CheckInterval: time.Hour,
		MaxConcurrent: 5,
		RenotifyAfter: 24 * time.Hour,
	}
}

// NewStaleWorker creates a new stale data worker
func NewStaleWorker(source StaleSource, notifier notifications.Notifier, logger *zap.Logger, config StaleWorkerConfig) *StaleWorker {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 1
	}
	return &StaleWorker{
		source:   source,
		notifier: notifier,
		logger:   logger,
		config:   config,
		now:      time.Now,
		notified: make(map[uuid.UUID]time.Time),
		done:     make(chan struct{}),
	}
}

// Start runs checks until ctx is cancelled or Stop is called
func (w *StaleWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting stale data worker",
		zap.Duration("check_interval", w.config.CheckInterval),
		zap.Int("max_concurrent", w.config.MaxConcurrent))

	ticker := time.NewTicker(w.config.CheckInterval)
	defer ticker.Stop()

	w.CheckOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stale data worker shutting down")
			return nil
		case <-w.done:
			w.logger.Info("Stale data worker stopped")
			return nil
		case <-ticker.C:
			w.CheckOnce(ctx)
		}
	}
}

// Stop stops the worker
func (w *StaleWorker) Stop() {
	close(w.done)
}

// CheckOnce alerts every stale company not alerted within RenotifyAfter and
// returns how many alerts were sent.
func (w *StaleWorker) CheckOnce(ctx context.Context) int {
	now := w.now()
	stale, err := w.source.StaleCompanies(ctx, now)
	if err != nil {
		w.logger.Error("Failed to list stale companies", zap.Error(err))
		return 0
	}
	if len(stale) == 0 {
		return 0
	}

	var due []*companies.Company
	w.mu.Lock()
	for _, company := range stale {
		if last, ok := w.notified[company.ID]; ok && now.Sub(last) < w.config.RenotifyAfter {
			continue
		}
		w.notified[company.ID] = now
		due = append(due, company)
	}
	w.mu.Unlock()

	if len(due) == 0 {
		return 0
	}
	w.logger.Info("Alerting stale companies", zap.Int("count", len(due)))

	sem := make(chan struct{}, w.config.MaxConcurrent)
	var wg sync.WaitGroup
	for _, company := range due {
		sem <- struct{}{}
		wg.Add(1)
		go func(company *companies.Company) {
			defer func() { <-sem; wg.Done() }()
			notifications.SafeNotify(ctx, w.notifier, w.logger, staleAlert(company, now))
		}(company)
	}
	wg.Wait()

	return len(due)
}

func staleAlert(company *companies.Company, now time.Time) notifications.Alert {
	message := fmt.Sprintf("%s has no emission data on record.", company.Name)
	if company.LastUpdatedAt != nil {
		_, days := emissions.StaleSince(*company.LastUpdatedAt, now)
		message = fmt.Sprintf("%s emission data was last updated %d days ago.", company.Name, days)
	}
	return notifications.NewAlert(notifications.KindStaleData, company.ID, notifications.SeverityWarning,
		"Emission data is out of date", message)
}
