package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/companies"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/notifications"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/reports/scheduler"
)

type staticStale struct {
	companies []*companies.Company
	err       error
}

func (s staticStale) StaleCompanies(ctx context.Context, now time.Time) ([]*companies.Company, error) {
	return s.companies, s.err
}

type collectingNotifier struct {
	mu     sync.Mutex
	alerts []notifications.Alert
}

func (n *collectingNotifier) Notify(ctx context.Context, alert notifications.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil
}

func TestStaleWorker_CheckOnce(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	updated := now.AddDate(0, 0, -45)
	source := staticStale{companies: []*companies.Company{
		{ID: uuid.New(), Name: "Acme Steel", LastUpdatedAt: &updated},
		{ID: uuid.New(), Name: "Empty Co"},
	}}
	notifier := &collectingNotifier{}

	worker := NewStaleWorker(source, notifier, zap.NewNop(), DefaultStaleWorkerConfig())
	worker.now = func() time.Time { return now }

	assert.Equal(t, 2, worker.CheckOnce(context.Background()))
	require.Len(t, notifier.alerts, 2)
	for _, alert := range notifier.alerts {
		assert.Equal(t, notifications.KindStaleData, alert.Kind)
		assert.Equal(t, notifications.SeverityWarning, alert.Severity)
	}

	messages := []string{notifier.alerts[0].Message, notifier.alerts[1].Message}
	assert.Contains(t, messages, "Acme Steel emission data was last updated 45 days ago.")
	assert.Contains(t, messages, "Empty Co has no emission data on record.")

	// Within the quiet period nothing is re-sent
	worker.now = func() time.Time { return now.Add(time.Hour) }
	assert.Equal(t, 0, worker.CheckOnce(context.Background()))

	worker.now = func() time.Time { return now.Add(25 * time.Hour) }
	assert.Equal(t, 2, worker.CheckOnce(context.Background()))
	assert.Len(t, notifier.alerts, 4)
}

func TestStaleWorker_SourceError(t *testing.T) {
	notifier := &collectingNotifier{}
	worker := NewStaleWorker(staticStale{err: errors.New("db down")}, notifier, zap.NewNop(), DefaultStaleWorkerConfig())

	assert.Equal(t, 0, worker.CheckOnce(context.Background()))
	assert.Empty(t, notifier.alerts)
}

func TestStaleWorker_StartStop(t *testing.T) {
	worker := NewStaleWorker(staticStale{}, nil, zap.NewNop(), StaleWorkerConfig{CheckInterval: time.Hour})

	errc := make(chan error, 1)
	go func() { errc <- worker.Start(context.Background()) }()
	worker.Stop()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

type fakeSchedule struct {
	mu      sync.Mutex
	started bool
	stopped bool
	runs    int
}

func (f *fakeSchedule) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeSchedule) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeSchedule) RunOnce(ctx context.Context) (*scheduler.RunSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	return &scheduler.RunSummary{Sent: 3}, nil
}

func (f *fakeSchedule) Status() *scheduler.JobStatus {
	return &scheduler.JobStatus{CronExpression: scheduler.DefaultCronExpression, IsActive: true}
}

func TestReportWorker_Start(t *testing.T) {
	schedule := &fakeSchedule{}
	worker := NewReportWorker(schedule, zap.NewNop(), ReportWorkerConfig{RunOnStart: true})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- worker.Start(ctx) }()

	require.Eventually(t, func() bool {
		schedule.mu.Lock()
		defer schedule.mu.Unlock()
		return schedule.started
	}, time.Second, 10*time.Millisecond)
	cancel()

	require.NoError(t, <-errc)
	assert.Equal(t, 1, schedule.runs)
	assert.True(t, schedule.stopped)
}
