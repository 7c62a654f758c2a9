package notifications

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Notifier delivers alerts to some channel
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// MultiNotifier fans an alert out to every notifier. All notifiers are
// attempted and their errors joined.
type MultiNotifier []Notifier

// Notify implements Notifier
func (m MultiNotifier) Notify(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes alerts to the logger
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier
func (n *LogNotifier) Notify(ctx context.Context, alert Alert) error {
	n.logger.Info("Alert raised",
		zap.String("kind", string(alert.Kind)),
		zap.String("company_id", alert.CompanyID.String()),
		zap.String("severity", string(alert.Severity)),
		zap.String("title", alert.Title),
	)
	return nil
}

// SafeNotify sends an alert and logs instead of failing. Alerts are best-effort
// and must never fail the request that raised them.
func SafeNotify(ctx context.Context, notifier Notifier, logger *zap.Logger, alert Alert) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, alert); err != nil {
		logger.Warn("Failed to deliver alert",
			zap.String("kind", string(alert.Kind)),
			zap.Error(fmt.Errorf("notify: %w", err)),
		)
	}
}
