package notifications

import (
	"time"

	"github.com/google/uuid"
)

// AlertKind categorizes an alert
type AlertKind string

const (
	KindStaleData     AlertKind = "stale_data"
	KindAnomaly       AlertKind = "anomaly"
	KindForecastSpike AlertKind = "forecast_spike"
	KindReportSent    AlertKind = "report_sent"
	KindTeamTask      AlertKind = "team_task"
)

// Severity levels
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a notification about a company's emission data
type Alert struct {
	ID        uuid.UUID              `json:"id"`
	Kind      AlertKind              `json:"kind"`
	CompanyID uuid.UUID              `json:"company_id"`
	Severity  Severity               `json:"severity"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewAlert fills in the id and timestamp of an alert
func NewAlert(kind AlertKind, companyID uuid.UUID, severity Severity, title, message string) Alert {
	return Alert{
		ID:        uuid.New(),
		Kind:      kind,
		CompanyID: companyID,
		Severity:  severity,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

// WithData attaches extra fields to the alert
func (a Alert) WithData(key string, value interface{}) Alert {
	data := make(map[string]interface{}, len(a.Data)+1)
	for k, v := range a.Data {
		data[k] = v
	}
	data[key] = value
	a.Data = data
	return a
}

// WebSocketMessage is the frame format exchanged with websocket clients
type WebSocketMessage struct {
	Type       string      `json:"type"`
	CompanyIDs []string    `json:"company_ids,omitempty"`
	Alert      *Alert      `json:"alert,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Websocket message types
const (
	MessageTypeAlert       = "alert"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypeSubscribed  = "subscribed"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeError       = "error"
)
