package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := NewRegistry()

	router := gin.New()
	router.Use(reg.Middleware())
	router.GET("/api/v1/forecast/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(reg.Handler()))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/forecast/abc", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(reg.RequestsTotal.WithLabelValues("GET", "/api/v1/forecast/:id", "200")))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(w.Body.String(), "co2_http_requests_total"))
}

func TestObservers(t *testing.T) {
	reg := NewRegistry()

	reg.ObserveForecast("baseline")
	reg.ObserveForecast("baseline")
	reg.ObserveOptimizerRun()
	reg.ObserveAnomalies(3)
	reg.ObserveCache("dashboard", true)
	reg.ObserveCache("dashboard", false)
	reg.ObserveDelivery("email", errors.New("smtp down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.ForecastsComputed.WithLabelValues("baseline")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.OptimizerRuns))
	assert.Equal(t, 3.0, testutil.ToFloat64(reg.AnomaliesFlagged))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CacheHits.WithLabelValues("dashboard")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CacheMisses.WithLabelValues("dashboard")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.ReportsDelivered.WithLabelValues("email", "failed")))

	var nilRegistry *Registry
	assert.NotPanics(t, func() { nilRegistry.ObserveForecast("baseline") })
}
