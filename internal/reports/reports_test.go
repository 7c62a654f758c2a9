package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/companies"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/dashboard"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/emissions"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/reports/export"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/reports/scheduler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =====================================================
// Fixtures
// =====================================================

type fakeCompanies struct {
	snapshots map[uuid.UUID]*companies.CompanyWithSources
}

func (f *fakeCompanies) Snapshot(ctx context.Context, id uuid.UUID) (*companies.CompanyWithSources, error) {
	snapshot, ok := f.snapshots[id]
	if !ok {
		return nil, companies.ErrCompanyNotFound
	}
	return snapshot, nil
}

type fakeSummaries struct{}

func (fakeSummaries) Summary(ctx context.Context, companyID uuid.UUID) (*dashboard.Summary, bool, error) {
	if companyID == emptyCompanyID {
		return nil, false, emissions.ErrMissingData
	}
	return &dashboard.Summary{
		CompanyID:   companyID,
		CompanyName: "Acme Steel",
		Sector:      "Manufacturing",
		Total:       1000,
		Forecast: emissions.ForecastSeries{
			{Year: 2026, Emission: 1020},
			{Year: 2027, Emission: 1040.4},
		},
		Analytics: emissions.ForecastAnalytics{AverageAnnualChange: 20.2, Trend: "increasing"},
		Target:    1000,
		Recommendations: []emissions.Recommendation{
			{SourceType: "Electricity", TonsSaved: 120, Message: "Switch to renewable electricity."},
		},
	}, false, nil
}

var (
	acmeID         = uuid.MustParse("7f1c1e5c-58a4-4c1e-9a53-0c8a1d1c0a01")
	emptyCompanyID = uuid.MustParse("7f1c1e5c-58a4-4c1e-9a53-0c8a1d1c0a02")
)

func newTestService() *Service {
	companySource := &fakeCompanies{snapshots: map[uuid.UUID]*companies.CompanyWithSources{
		acmeID: {
			Company: &companies.Company{ID: acmeID, Name: "Acme Steel", Sector: "Manufacturing", Size: "Medium"},
			Sources: []emissions.EmissionSource{
				{Type: "Electricity", Emission: 600},
				{Type: "Transport", Emission: 400},
			},
		},
		emptyCompanyID: {
			Company: &companies.Company{ID: emptyCompanyID, Name: "Empty Co", Sector: "Retail", Size: "Small"},
		},
	}}
	service := NewService(companySource, fakeSummaries{}, nil, zap.NewNop())
	service.now = func() time.Time { return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) }
	return service
}

func setupRouter(service *Service) *gin.Engine {
	router := gin.New()
	handler := NewHandler(service, zap.NewNop())

	company := router.Group("/reports/companies/:id", func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		c.Set(companies.ContextCompanyID, id)
	})
	handler.RegisterRoutes(company)
	handler.RegisterAdminRoutes(router.Group("/admin"))
	return router
}

// =====================================================
// Service
// =====================================================

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	f, err = ParseFormat("excel")
	require.NoError(t, err)
	assert.Equal(t, FormatExcel, f)
	assert.Equal(t, ".xlsx", f.Extension())

	_, err = ParseFormat("docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestService_Render(t *testing.T) {
	service := newTestService()

	report, err := service.Render(context.Background(), acmeID, FormatCSV, export.StandardGHGProtocol)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", report.ContentType)
	assert.Equal(t, "co2_report_acme_steel_20260302.csv", report.FileName)
	assert.Equal(t, "Acme Steel", report.CompanyName)
	assert.Contains(t, string(report.Data), "Electricity,600.00,60.00")

	report, err = service.Render(context.Background(), acmeID, FormatCompliancePDF, export.StandardISO14064)
	require.NoError(t, err)
	assert.Equal(t, "iso_14064_compliance_acme_steel_20260302.pdf", report.FileName)
	assert.True(t, bytes.HasPrefix(report.Data, []byte("%PDF")))

	_, err = service.Render(context.Background(), uuid.New(), FormatPDF, export.StandardGHGProtocol)
	assert.ErrorIs(t, err, companies.ErrCompanyNotFound)

	_, err = service.Build(context.Background(), acmeID, "docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestService_ArchiveWithoutBucket(t *testing.T) {
	_, err := newTestService().Archive(context.Background(), "admin", acmeID, FormatPDF, export.StandardGHGProtocol)
	assert.ErrorIs(t, err, ErrArchiveDisabled)
}

func TestService_SendWebhook(t *testing.T) {
	var payload map[string]any
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	service := newTestService()
	executor := scheduler.NewExecutor(service, scheduler.NewDeliveryManager(nil, nil, nil, zap.NewNop()),
		nil, nil, nil, zap.NewNop(), scheduler.DefaultExecutorConfig())
	service.WithDelivery(executor, nil)

	id := acmeID
	resp, err := service.Send(context.Background(), "admin", &SendRequest{
		CompanyID:  &id,
		Format:     "xlsx",
		Method:     "webhook",
		WebhookURL: hook.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, scheduler.StatusCompleted, resp.Execution.Status)
	assert.Equal(t, "co2_report_acme_steel_20260302.xlsx", payload["file_name"])

	_, err = service.Send(context.Background(), "admin", &SendRequest{})
	assert.ErrorIs(t, err, scheduler.ErrDeliveryDisabled)
}

// =====================================================
// Repository
// =====================================================

func TestPostgresRecipientRepository_ListRecipients(t *testing.T) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRecipientRepository(sqlx.NewDb(db, "sqlmock"))

	userID := uuid.New()
	rows := sqlmock.NewRows([]string{"user_id", "email", "name", "company_id", "company_name"}).
		AddRow(userID.String(), "owner@example.com", "Owner", acmeID.String(), "Acme Steel")
	mockDB.ExpectQuery(regexp.QuoteMeta("FROM users u")).WillReturnRows(rows)

	recipients, err := repo.ListRecipients(context.Background())
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, userID, recipients[0].UserID)
	assert.Equal(t, acmeID, recipients[0].CompanyID)
	assert.Equal(t, "Acme Steel", recipients[0].CompanyName)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

// =====================================================
// Handler
// =====================================================

func TestHandler_DownloadPDF(t *testing.T) {
	router := setupRouter(newTestService())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reports/companies/"+acmeID.String()+"/pdf", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "co2_report_acme_steel_20260302.pdf")
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
}

func TestHandler_Compliance(t *testing.T) {
	router := setupRouter(newTestService())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reports/companies/"+acmeID.String()+"/compliance?standard=iso&format=csv", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ISO 14064,Acme Steel,Manufacturing,Medium,Transport,400.00")

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/reports/companies/"+acmeID.String()+"/compliance?standard=gri", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/reports/companies/"+acmeID.String()+"/compliance?format=docx", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Errors(t *testing.T) {
	router := setupRouter(newTestService())

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"unknown company", http.MethodGet, "/reports/companies/" + uuid.New().String() + "/csv", http.StatusNotFound},
		{"no sources", http.MethodGet, "/reports/companies/" + emptyCompanyID.String() + "/xlsx", http.StatusBadRequest},
		{"archive disabled", http.MethodPost, "/reports/companies/" + acmeID.String() + "/archive", http.StatusServiceUnavailable},
		{"no schedule", http.MethodGet, "/admin/reports/schedule", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestHandler_SendReportsValidation(t *testing.T) {
	router := setupRouter(newTestService())

	body := `{"recipients":["not-an-email"]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/reports/send", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/admin/reports/send", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
