package logger_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nischalstha-ns/e-commerce-sub001/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TeesToSink(t *testing.T) {
	var buf bytes.Buffer
	l, err := logger.New("production", &buf)
	require.NoError(t, err)

	l.Info("cart updated")
	_ = l.Sync()

	assert.Contains(t, buf.String(), `"msg":"cart updated"`)
	assert.Contains(t, buf.String(), `"timestamp"`)
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(logger.RequestID())

	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen = logger.RequestIDFrom(c.Request.Context())
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "abc")
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))

	assert.Equal(t, "unknown", logger.RequestIDFrom(context.Background()))
}
