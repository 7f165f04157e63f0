package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/GriffinCanCode/SessionOS/backend/internal/config"
)

func setupTestRouter(cfg config.RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimit(cfg))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})
	return router
}

func TestRateLimitAllowsWithinBudget(t *testing.T) {
	router := setupTestRouter(config.RateLimitConfig{RequestsPerSecond: 100, Burst: 10})

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/test", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "request %d within burst", i)
	}
}

func TestRateLimitRejectsOverBudget(t *testing.T) {
	router := setupTestRouter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2})

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/test", nil)
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Contains(t, codes[2:], http.StatusTooManyRequests)
}

func TestRateLimitTracksClientsSeparately(t *testing.T) {
	router := setupTestRouter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})

	first := httptest.NewRecorder()
	reqA := httptest.NewRequest("GET", "/test", nil)
	reqA.RemoteAddr = "10.0.0.1:1234"
	router.ServeHTTP(first, reqA)
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	reqB := httptest.NewRequest("GET", "/test", nil)
	reqB.RemoteAddr = "10.0.0.2:1234"
	router.ServeHTTP(second, reqB)
	assert.Equal(t, http.StatusOK, second.Code, "a different client has its own budget")
}
