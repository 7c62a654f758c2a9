package scheduler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/audit"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/notifications"
)

// =====================================================
// Fakes
// =====================================================

type MockSES struct {
	mock.Mock
}

func (m *MockSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sesv2.SendEmailOutput), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, entry *audit.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockRecorder) List(ctx context.Context, filter audit.Filter) ([]*audit.Entry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Entry), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, alert notifications.Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	args := m.Called(ctx, key, body, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockArchive) Download(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockArchive) GetPresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	args := m.Called(ctx, key, expiration)
	return args.String(0), args.Error(1)
}

type recordingSender struct {
	mu   sync.Mutex
	sent []*EmailDelivery
	err  error
}

func (s *recordingSender) Send(ctx context.Context, delivery *EmailDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, delivery)
	return s.err
}

type fakeBuilder struct {
	active  int32
	maxSeen int32
	delay   time.Duration
	err     error
}

func (b *fakeBuilder) Build(ctx context.Context, companyID uuid.UUID, format string) (*GeneratedReport, error) {
	n := atomic.AddInt32(&b.active, 1)
	defer atomic.AddInt32(&b.active, -1)
	for {
		seen := atomic.LoadInt32(&b.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&b.maxSeen, seen, n) {
			break
		}
	}
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.err != nil {
		return nil, b.err
	}
	return &GeneratedReport{
		CompanyID:   companyID,
		CompanyName: "Acme",
		Data:        []byte("%PDF-1.3 report"),
		ContentType: "application/pdf",
		FileName:    "co2_report_acme.pdf",
		GeneratedAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}, nil
}

type staticRecipients struct {
	recipients []*Recipient
	err        error
}

func (s *staticRecipients) ListRecipients(ctx context.Context) ([]*Recipient, error) {
	return s.recipients, s.err
}

type deliveryCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (d *deliveryCounter) ObserveDelivery(method string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.counts == nil {
		d.counts = make(map[string]int)
	}
	key := method + ":ok"
	if err != nil {
		key = method + ":error"
	}
	d.counts[key]++
}

// =====================================================
// Delivery
// =====================================================

func TestParseDeliveryMethod(t *testing.T) {
	m, err := ParseDeliveryMethod("")
	require.NoError(t, err)
	assert.Equal(t, DeliveryEmail, m)

	m, err = ParseDeliveryMethod(" SES ")
	require.NoError(t, err)
	assert.Equal(t, DeliverySES, m)

	_, err = ParseDeliveryMethod("fax")
	assert.ErrorIs(t, err, ErrUnsupportedDelivery)
}

func TestBuildMessage(t *testing.T) {
	data := []byte("%PDF-1.3 sample")
	msg, err := BuildMessage("Emission Reports", "reports@example.com", &EmailDelivery{
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "CO₂ Emission Report for Acme",
		Body:    "Attached is your latest report.",
		Attachments: []Attachment{
			{Name: "report.pdf", Data: data, ContentType: "application/pdf"},
		},
	})
	require.NoError(t, err)

	out := string(msg)
	assert.Contains(t, out, "From: Emission Reports <reports@example.com>\r\n")
	assert.Contains(t, out, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, out, "Content-Type: multipart/mixed; boundary=")
	assert.Contains(t, out, "Attached is your latest report.")
	assert.Contains(t, out, `Content-Disposition: attachment; filename="report.pdf"`)
	assert.Contains(t, out, base64.StdEncoding.EncodeToString(data))
}

func TestWrapBase64_LineLength(t *testing.T) {
	data := make([]byte, 200)
	for _, line := range strings.Split(strings.TrimSpace(string(wrapBase64(data))), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
}

func TestSMTPSender_Send(t *testing.T) {
	assert.Nil(t, NewSMTPSender(EmailConfig{}))

	sender := NewSMTPSender(EmailConfig{
		SMTPHost:    "smtp.example.com",
		SMTPPort:    587,
		Username:    "user",
		Password:    "secret",
		FromAddress: "reports@example.com",
	})
	require.NotNil(t, sender)

	var gotAddr, gotFrom string
	var gotTo []string
	sender.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo = addr, from, to
		assert.NotNil(t, a)
		return nil
	}

	err := sender.Send(context.Background(), &EmailDelivery{To: []string{"owner@example.com"}, Subject: "s", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "reports@example.com", gotFrom)
	assert.Equal(t, []string{"owner@example.com"}, gotTo)
}

func TestSESSender_Send(t *testing.T) {
	client := new(MockSES)
	client.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *sesv2.SendEmailInput) bool {
		return *in.FromEmailAddress == "reports@example.com" &&
			len(in.Destination.ToAddresses) == 1 &&
			strings.Contains(string(in.Content.Raw.Data), "Subject: Weekly report")
	})).Return(&sesv2.SendEmailOutput{}, nil)

	sender := NewSESSender(client, "reports@example.com")
	require.NotNil(t, sender)

	err := sender.Send(context.Background(), &EmailDelivery{To: []string{"owner@example.com"}, Subject: "Weekly report"})
	require.NoError(t, err)
	client.AssertExpectations(t)

	assert.Nil(t, NewSESSender(client, ""))
}

func TestDeliveryManager_DeliverByEmail(t *testing.T) {
	smtpSender := &recordingSender{}
	observer := &deliveryCounter{}
	d := NewDeliveryManager(smtpSender, nil, observer, zap.NewNop())

	err := d.DeliverByEmail(context.Background(), DeliveryEmail, &EmailDelivery{To: []string{"a@example.com"}})
	require.NoError(t, err)
	assert.Len(t, smtpSender.sent, 1)

	err = d.DeliverByEmail(context.Background(), DeliveryEmail, &EmailDelivery{})
	assert.ErrorIs(t, err, ErrNoRecipients)

	err = d.DeliverByEmail(context.Background(), DeliverySES, &EmailDelivery{To: []string{"a@example.com"}})
	assert.ErrorIs(t, err, ErrDeliveryDisabled)

	assert.Equal(t, 1, observer.counts["email:ok"])
	assert.Equal(t, 1, observer.counts["email:error"])
	assert.Equal(t, 1, observer.counts["ses:error"])
}

func TestDeliveryManager_DeliverByWebhook(t *testing.T) {
	var calls int32
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "token", r.Header.Get("X-Signature"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := NewDeliveryManager(nil, nil, nil, zap.NewNop())
	err := d.DeliverByWebhook(context.Background(), &WebhookDelivery{
		URL:        server.URL,
		Headers:    map[string]string{"X-Signature": "token"},
		Payload:    map[string]any{"file_name": "report.pdf"},
		RetryCount: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "report.pdf", payload["file_name"])
}

func TestDeliveryManager_DeliverByWebhookFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d := NewDeliveryManager(nil, nil, nil, zap.NewNop())
	err := d.DeliverByWebhook(context.Background(), &WebhookDelivery{URL: server.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")

	err = d.DeliverByWebhook(context.Background(), &WebhookDelivery{})
	assert.ErrorIs(t, err, ErrDeliveryDisabled)
}

// =====================================================
// Executor
// =====================================================

func TestExecutor_ExecuteEmailWithArchive(t *testing.T) {
	smtpSender := &recordingSender{}
	archive := new(MockArchive)
	recorder := new(MockRecorder)
	notifier := new(MockNotifier)
	companyID := uuid.New()

	archive.On("Upload", mock.Anything, "reports/"+companyID.String()+"/2026-03-02/co2_report_acme.pdf", mock.Anything, "application/pdf").
		Return("https://bucket/reports/key", nil)
	archive.On("GetPresignedURL", mock.Anything, mock.Anything, 24*time.Hour).Return("https://signed", nil)
	recorder.On("Record", mock.Anything, mock.MatchedBy(func(e *audit.Entry) bool {
		return e.Action == audit.ActionReportDelivered && e.Details["status"] == StatusCompleted
	})).Return(nil)
	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(a notifications.Alert) bool {
		return a.Kind == notifications.KindReportSent
	})).Return(nil)

	executor := NewExecutor(&fakeBuilder{}, NewDeliveryManager(smtpSender, nil, nil, zap.NewNop()),
		archive, recorder, notifier, zap.NewNop(), DefaultExecutorConfig())

	result, err := executor.Execute(context.Background(), &ExecutionRequest{
		CompanyID:       companyID,
		Format:          "pdf",
		DeliveryMethod:  DeliveryEmail,
		RecipientEmails: []string{"owner@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "https://signed", result.DownloadURL)
	assert.Equal(t, "sent", result.DeliveryStatus["email"])

	require.Len(t, smtpSender.sent, 1)
	email := smtpSender.sent[0]
	assert.Equal(t, "CO₂ Emission Report for Acme", email.Subject)
	assert.Contains(t, email.Body, "Attached is your latest CO₂ emission report for Acme.")
	assert.Contains(t, email.Body, "https://signed")
	require.Len(t, email.Attachments, 1)
	assert.Equal(t, "co2_report_acme.pdf", email.Attachments[0].Name)

	archive.AssertExpectations(t)
	recorder.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestExecutor_ExecuteFailures(t *testing.T) {
	recorder := new(MockRecorder)
	recorder.On("Record", mock.Anything, mock.MatchedBy(func(e *audit.Entry) bool {
		return e.Details["status"] == StatusFailed
	})).Return(nil)

	delivery := NewDeliveryManager(&recordingSender{err: errors.New("relay down")}, nil, nil, zap.NewNop())

	t.Run("build error", func(t *testing.T) {
		executor := NewExecutor(&fakeBuilder{err: errors.New("boom")}, delivery, nil, recorder, nil, zap.NewNop(), DefaultExecutorConfig())
		result, err := executor.Execute(context.Background(), &ExecutionRequest{CompanyID: uuid.New(), DeliveryMethod: DeliveryEmail})
		require.Error(t, err)
		assert.Equal(t, StatusFailed, result.Status)
	})

	t.Run("archive without bucket", func(t *testing.T) {
		executor := NewExecutor(&fakeBuilder{}, delivery, nil, recorder, nil, zap.NewNop(), DefaultExecutorConfig())
		_, err := executor.Execute(context.Background(), &ExecutionRequest{CompanyID: uuid.New(), DeliveryMethod: DeliveryArchive})
		assert.ErrorIs(t, err, ErrDeliveryDisabled)
	})

	t.Run("too large", func(t *testing.T) {
		cfg := DefaultExecutorConfig()
		cfg.MaxFileSizeBytes = 4
		executor := NewExecutor(&fakeBuilder{}, delivery, nil, recorder, nil, zap.NewNop(), cfg)
		_, err := executor.Execute(context.Background(), &ExecutionRequest{CompanyID: uuid.New(), DeliveryMethod: DeliveryEmail})
		assert.ErrorIs(t, err, ErrReportTooLarge)
	})

	t.Run("relay error", func(t *testing.T) {
		executor := NewExecutor(&fakeBuilder{}, delivery, nil, recorder, nil, zap.NewNop(), DefaultExecutorConfig())
		result, err := executor.Execute(context.Background(), &ExecutionRequest{
			CompanyID:       uuid.New(),
			DeliveryMethod:  DeliveryEmail,
			RecipientEmails: []string{"owner@example.com"},
		})
		require.Error(t, err)
		assert.Contains(t, result.DeliveryStatus["email"], "relay down")
	})
}

// =====================================================
// Schedule manager
// =====================================================

func TestScheduleManager_RunOnce(t *testing.T) {
	smtpSender := &recordingSender{}
	builder := &fakeBuilder{delay: 20 * time.Millisecond}
	executor := NewExecutor(builder, NewDeliveryManager(smtpSender, nil, nil, zap.NewNop()),
		nil, nil, nil, zap.NewNop(), DefaultExecutorConfig())

	var recipients []*Recipient
	for i := 0; i < 6; i++ {
		recipients = append(recipients, &Recipient{UserID: uuid.New(), Email: "user@example.com", CompanyID: uuid.New()})
	}
	recipients = append(recipients, &Recipient{UserID: uuid.New(), CompanyID: uuid.New()})

	manager := NewScheduleManager(executor, &staticRecipients{recipients: recipients}, zap.NewNop(),
		ScheduleManagerConfig{MaxConcurrent: 2})

	summary, err := manager.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, summary.Recipients)
	assert.Equal(t, 6, summary.Sent)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, summary.Results, 7)
	assert.Len(t, smtpSender.sent, 6)
	assert.LessOrEqual(t, atomic.LoadInt32(&builder.maxSeen), int32(2))
}

func TestScheduleManager_RunOnceRecipientError(t *testing.T) {
	manager := NewScheduleManager(nil, &staticRecipients{err: errors.New("db down")}, zap.NewNop(), ScheduleManagerConfig{})
	_, err := manager.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestScheduleManager_StartStop(t *testing.T) {
	manager := NewScheduleManager(nil, &staticRecipients{}, zap.NewNop(), ScheduleManagerConfig{})

	status := manager.Status()
	assert.False(t, status.IsActive)
	assert.Equal(t, DefaultCronExpression, status.CronExpression)
	assert.Equal(t, time.Monday, status.NextRun.Weekday())

	require.NoError(t, manager.Start(context.Background()))
	assert.Error(t, manager.Start(context.Background()))
	assert.True(t, manager.Status().IsActive)

	manager.Stop()
	assert.False(t, manager.Status().IsActive)
}

func TestScheduleManager_InvalidCron(t *testing.T) {
	manager := NewScheduleManager(nil, &staticRecipients{}, zap.NewNop(), ScheduleManagerConfig{CronExpression: "not a cron"})
	assert.Error(t, manager.Start(context.Background()))
	assert.Error(t, ValidateCronExpression("not a cron"))
	assert.NoError(t, ValidateCronExpression(DefaultCronExpression))
}
