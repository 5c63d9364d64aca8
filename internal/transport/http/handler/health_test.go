package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfchat/internal/domain"
)

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	state := func() domain.IndexState { return domain.StateBuilt }

	run := func(checks map[string]Checker) (int, map[string]any) {
		r := gin.New()
		r.GET("/healthz", NewHealthHandler("pdfchat", "test", time.Now(), state, checks).Check)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return rec.Code, body
	}

	code, body := run(nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "built", body["index_state"])
	assert.Equal(t, "pdfchat", body["app"])

	code, body = run(map[string]Checker{
		"redis": func(context.Context) error { return nil },
		"mysql": func(context.Context) error { return errors.New("refused") },
	})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, true, deps["redis"].(map[string]any)["ok"])
	assert.Equal(t, "refused", deps["mysql"].(map[string]any)["message"])
}
