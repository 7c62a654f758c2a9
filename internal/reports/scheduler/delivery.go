package scheduler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

// DeliveryMethod names how a report leaves the system
type DeliveryMethod string

const (
	DeliveryEmail   DeliveryMethod = "email"
	DeliverySES     DeliveryMethod = "ses"
	DeliveryWebhook DeliveryMethod = "webhook"
	DeliveryArchive DeliveryMethod = "archive"
)

// ParseDeliveryMethod maps a config or request value to a DeliveryMethod
func ParseDeliveryMethod(s string) (DeliveryMethod, error) {
	switch m := DeliveryMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case "", DeliveryEmail:
		return DeliveryEmail, nil
	case DeliverySES, DeliveryWebhook, DeliveryArchive:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedDelivery, s)
}

var (
	ErrNoRecipients        = errors.New("no recipients specified")
	ErrUnsupportedDelivery = errors.New("unsupported delivery method")
	ErrDeliveryDisabled    = errors.New("delivery channel not configured")
)

// DeliveryObserver records delivery outcomes
type DeliveryObserver interface {
	ObserveDelivery(method string, err error)
}

// DeliveryManager handles report delivery
type DeliveryManager struct {
	smtp       EmailSender
	ses        EmailSender
	httpClient *http.Client
	observer   DeliveryObserver
	logger     *zap.Logger
}

// EmailSender sends a composed email
type EmailSender interface {
	Send(ctx context.Context, delivery *EmailDelivery) error
}

// EmailConfig configuration for email delivery
type EmailConfig struct {
	SMTPHost    string `json:"smtp_host"`
	SMTPPort    int    `json:"smtp_port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	FromAddress string `json:"from_address"`
	FromName    string `json:"from_name"`
}

// EmailDelivery represents an email delivery request
type EmailDelivery struct {
	To          []string     `json:"to"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents an email attachment
type Attachment struct {
	Name        string `json:"name"`
	Data        []byte `json:"data"`
	ContentType string `json:"content_type"`
}

// WebhookDelivery represents a webhook delivery request
type WebhookDelivery struct {
	URL        string            `json:"url"`
	Method     string            `json:"method,omitempty"` // Default: POST
	Headers    map[string]string `json:"headers,omitempty"`
	Payload    map[string]any    `json:"payload"`
	RetryCount int               `json:"retry_count,omitempty"`
}

// DeliveryResult represents the result of a delivery attempt
type DeliveryResult struct {
	Method      DeliveryMethod `json:"method"`
	Success     bool           `json:"success"`
	Recipient   string         `json:"recipient,omitempty"`
	Error       string         `json:"error,omitempty"`
	DeliveredAt time.Time      `json:"delivered_at"`
}

// NewDeliveryManager creates a new delivery manager. Either sender may be nil
// when that channel is not configured.
func NewDeliveryManager(smtpSender, sesSender EmailSender, observer DeliveryObserver, logger *zap.Logger) *DeliveryManager {
	return &DeliveryManager{
		smtp: smtpSender,
		ses:  sesSender,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		observer: observer,
		logger:   logger,
	}
}

// WithHTTPClient replaces the webhook HTTP client
func (d *DeliveryManager) WithHTTPClient(client *http.Client) *DeliveryManager {
	d.httpClient = client
	return d
}

// DeliverByEmail sends a report through the SMTP or SES channel
func (d *DeliveryManager) DeliverByEmail(ctx context.Context, method DeliveryMethod, delivery *EmailDelivery) error {
	err := d.deliverByEmail(ctx, method, delivery)
	d.observe(method, err)
	return err
}

func (d *DeliveryManager) deliverByEmail(ctx context.Context, method DeliveryMethod, delivery *EmailDelivery) error {
	if len(delivery.To) == 0 {
		return ErrNoRecipients
	}

	sender := d.smtp
	if method == DeliverySES {
		sender = d.ses
	}
	if sender == nil {
		return fmt.Errorf("%w: %s", ErrDeliveryDisabled, method)
	}

	d.logger.Info("Sending email",
		zap.String("method", string(method)),
		zap.Strings("to", delivery.To),
		zap.String("subject", delivery.Subject))

	if err := sender.Send(ctx, delivery); err != nil {
		d.logger.Error("Failed to send email",
			zap.Error(err),
			zap.Strings("to", delivery.To))
		return fmt.Errorf("failed to send email: %w", err)
	}

	d.logger.Info("Email sent successfully", zap.Strings("to", delivery.To))
	return nil
}

// DeliverByWebhook posts a report notification, retrying with a linear
// backoff until an attempt returns 2xx
func (d *DeliveryManager) DeliverByWebhook(ctx context.Context, delivery *WebhookDelivery) error {
	err := d.deliverByWebhook(ctx, delivery)
	d.observe(DeliveryWebhook, err)
	return err
}

func (d *DeliveryManager) deliverByWebhook(ctx context.Context, delivery *WebhookDelivery) error {
	if delivery.URL == "" {
		return fmt.Errorf("%w: webhook URL is required", ErrDeliveryDisabled)
	}

	method := delivery.Method
	if method == "" {
		method = http.MethodPost
	}

	payloadBytes, err := json.Marshal(delivery.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	retries := delivery.RetryCount
	if retries == 0 {
		retries = 1
	}

	d.logger.Info("Sending webhook",
		zap.String("url", delivery.URL),
		zap.String("method", method))

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, delivery.URL, bytes.NewReader(payloadBytes))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for key, value := range delivery.Headers {
			req.Header.Set(key, value)
		}

		resp, err := d.httpClient.Do(req)
		if err != nil {
			lastErr = err
			d.logger.Warn("Webhook request failed",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			d.logger.Info("Webhook delivered successfully",
				zap.String("url", delivery.URL),
				zap.Int("status_code", resp.StatusCode))
			return nil
		}

		lastErr = fmt.Errorf("webhook returned status %d", resp.StatusCode)
		d.logger.Warn("Webhook returned non-success status",
			zap.Int("attempt", attempt+1),
			zap.Int("status_code", resp.StatusCode))
	}

	return fmt.Errorf("webhook delivery failed after %d attempts: %w", retries, lastErr)
}

func (d *DeliveryManager) observe(method DeliveryMethod, err error) {
	if d.observer != nil {
		d.observer.ObserveDelivery(string(method), err)
	}
}

// =====================================================
// Senders
// =====================================================

// SendMailFunc matches smtp.SendMail
type SendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends mail through an SMTP relay
type SMTPSender struct {
	config   EmailConfig
	sendMail SendMailFunc
}

// NewSMTPSender creates an SMTP sender. It returns nil when no host is set.
func NewSMTPSender(config EmailConfig) *SMTPSender {
	if config.SMTPHost == "" {
		return nil
	}
	return &SMTPSender{config: config, sendMail: smtp.SendMail}
}

// Send composes and sends delivery
func (s *SMTPSender) Send(ctx context.Context, delivery *EmailDelivery) error {
	msg, err := BuildMessage(s.config.FromName, s.config.FromAddress, delivery)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.SMTPHost)
	}

	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)
	return s.sendMail(addr, auth, s.config.FromAddress, delivery.To, msg)
}

// SESAPI is the subset of the SES v2 client used to send mail
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends raw MIME messages through Amazon SES
type SESSender struct {
	client SESAPI
	from   string
}

// NewSESSender creates an SES sender. It returns nil when no sender address
// is configured.
func NewSESSender(client SESAPI, from string) *SESSender {
	if client == nil || from == "" {
		return nil
	}
	return &SESSender{client: client, from: from}
}

// Send composes delivery and hands it to SES as a raw message
func (s *SESSender) Send(ctx context.Context, delivery *EmailDelivery) error {
	msg, err := BuildMessage("", s.from, delivery)
	if err != nil {
		return err
	}

	_, err = s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &sestypes.Destination{ToAddresses: delivery.To},
		Content: &sestypes.EmailContent{
			Raw: &sestypes.RawMessage{Data: msg},
		},
	})
	return err
}

// BuildMessage builds a multipart/mixed message with a text body and one
// base64 part per attachment
func BuildMessage(fromName, fromAddress string, delivery *EmailDelivery) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	from := fromAddress
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromAddress)
	}

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(delivery.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", delivery.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	body, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := body.Write([]byte(delivery.Body)); err != nil {
		return nil, err
	}

	for _, attachment := range delivery.Attachments {
		part, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {fmt.Sprintf("%s; name=%q", attachment.ContentType, attachment.Name)},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", attachment.Name)},
		})
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(wrapBase64(attachment.Data)); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wrapBase64 encodes data in 76 character lines
func wrapBase64(data []byte) []byte {
	const lineLen = 76
	encoded := base64.StdEncoding.EncodeToString(data)

	var out bytes.Buffer
	for i := 0; i < len(encoded); i += lineLen {
		end := min(i+lineLen, len(encoded))
		out.WriteString(encoded[i:end])
		out.WriteString("\r\n")
	}
	return out.Bytes()
}
