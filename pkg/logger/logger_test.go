package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGinMiddlewareSkipsProbeEndpoints(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := zap.New(core)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(l))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/corrections/pending", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Zero(t, logs.Len())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/corrections/pending", nil))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	require.Equal(t, "http_request", entry.Message)
	require.Equal(t, "/corrections/pending", entry.ContextMap()["path"])
}
