package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRequestID_EchoesCallerID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("X-Request-ID", "abc-123")

	RequestID()(c)

	assert.Equal(t, "abc-123", c.GetString(RequestIDKey))
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestRequestID_MintsWhenAbsent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	RequestID()(c)

	assert.NotEmpty(t, c.GetString(RequestIDKey))
	assert.Equal(t, c.GetString(RequestIDKey), w.Header().Get("X-Request-ID"))
}
