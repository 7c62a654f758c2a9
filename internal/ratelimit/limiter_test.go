package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestLimiter_PerKey(t *testing.T) {
	l := NewLimiter(0.001, 2)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	// other keys have their own bucket
	assert.True(t, l.Allow("b"))
}

func TestLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewLimiter(0.001, 1)

	router := gin.New()
	router.Use(l.Middleware(HeaderKey("X-API-Key")))
	router.GET("/sync", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/sync", nil)
		req.Header.Set("X-API-Key", key)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("k1"))
	assert.Equal(t, http.StatusTooManyRequests, do("k1"))
	assert.Equal(t, http.StatusOK, do("k2"))
}
