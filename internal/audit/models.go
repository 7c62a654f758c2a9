package audit

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action identifies what was audited
type Action string

const (
	ActionSourcesSynced   Action = "sources_synced"
	ActionSourcesImported Action = "sources_imported"
	ActionOffsetPurchased Action = "offset_purchased"
	ActionReportDelivered Action = "report_delivered"
	ActionReportGenerated Action = "report_generated"
	ActionAPIKeyReset     Action = "api_key_reset"
	ActionUserDeactivated Action = "user_deactivated"
	ActionUserReactivated Action = "user_reactivated"
	ActionTeamInvite      Action = "team_invite"
	ActionTeamTask        Action = "team_task"
)

// Entry is one audit log record
type Entry struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Action    Action     `json:"action" db:"action"`
	Actor     string     `json:"actor" db:"actor"`
	CompanyID *uuid.UUID `json:"company_id,omitempty" db:"company_id"`
	Details   JSONB      `json:"details,omitempty" db:"details"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Filter narrows a List call. Zero values match everything.
type Filter struct {
	CompanyID *uuid.UUID
	Action    *Action
	Actor     string
	Limit     int
}

// Recorder writes and reads the audit log
type Recorder interface {
	Record(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter Filter) ([]*Entry, error)
}

// NewEntry fills in the id and timestamp of an entry
func NewEntry(action Action, actor string, companyID *uuid.UUID, details JSONB) *Entry {
	return &Entry{
		ID:        uuid.New(),
		Action:    action,
		Actor:     actor,
		CompanyID: companyID,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
}

// JSONB is a wrapper for JSONB columns
type JSONB map[string]interface{}

// Value implements driver.Valuer
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

const defaultListLimit = 100

func (f Filter) limit() int {
	if f.Limit <= 0 || f.Limit > 1000 {
		return defaultListLimit
	}
	return f.Limit
}

// MemoryRecorder keeps entries in memory. It backs the CLI and tests.
type MemoryRecorder struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewMemoryRecorder creates an empty in-memory recorder
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (r *MemoryRecorder) Record(_ context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, entry)
	return nil
}

func (r *MemoryRecorder) List(_ context.Context, filter Filter) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Entry
	for i := len(r.entries) - 1; i >= 0 && len(out) < filter.limit(); i-- {
		e := r.entries[i]
		if filter.CompanyID != nil && (e.CompanyID == nil || *e.CompanyID != *filter.CompanyID) {
			continue
		}
		if filter.Action != nil && e.Action != *filter.Action {
			continue
		}
		if filter.Actor != "" && e.Actor != filter.Actor {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
