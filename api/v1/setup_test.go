package v1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kaustab2003/co2-emission-forecasting/internal/config"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("info")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger("debug")
	require.NoError(t, err)

	_, err = NewLogger("chatty")
	assert.Error(t, err)
}

func TestSetup_RequiresSecret(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Security.JWTSecret = ""

	_, err = Setup(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestNewAWSClients_Disabled(t *testing.T) {
	clients, err := newAWSClients(context.Background(), &config.AWSConfig{})
	require.NoError(t, err)
	assert.Nil(t, clients.s3)
	assert.Nil(t, clients.ses)
	assert.Nil(t, clients.sns)
	assert.Nil(t, clients.dynamo)
}

func TestNewAWSClients_OnlyConfiguredServices(t *testing.T) {
	clients, err := newAWSClients(context.Background(), &config.AWSConfig{
		Region:          "eu-west-1",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Endpoint:        "http://localhost:4566",
		ReportBucket:    "reports",
		SNSTopicARN:     "arn:aws:sns:eu-west-1:000000000000:alerts",
	})
	require.NoError(t, err)
	assert.NotNil(t, clients.s3)
	assert.NotNil(t, clients.sns)
	assert.Nil(t, clients.ses)
	assert.Nil(t, clients.dynamo)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/ping", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}
