package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.ReleaseMode)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	server := gin.New()
	server.Use(RequestLogger(logger))

	var ctxLoggerSet bool

	server.GET("/ping", func(gctx *gin.Context) {
		ctxLoggerSet = zerolog.Ctx(gctx.Request.Context()).GetLevel() != zerolog.Disabled
		gctx.Status(http.StatusNoContent)
	})

	t.Run("GeneratesRequestID", func(t *testing.T) {
		buf.Reset()

		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/ping", nil)

		server.ServeHTTP(recorder, request)

		require.Equal(t, http.StatusNoContent, recorder.Code)
		require.NotEmpty(t, recorder.Header().Get(RequestIDHeader))
		require.True(t, ctxLoggerSet)
		require.Contains(t, buf.String(), recorder.Header().Get(RequestIDHeader))
		require.Contains(t, buf.String(), `"path":"/ping"`)
	})

	t.Run("KeepsRequestID", func(t *testing.T) {
		buf.Reset()

		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodGet, "/ping", nil)
		request.Header.Set(RequestIDHeader, "req-1")

		server.ServeHTTP(recorder, request)

		require.Equal(t, "req-1", recorder.Header().Get(RequestIDHeader))
		require.Contains(t, buf.String(), `"request_id":"req-1"`)
	})
}
