package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"signet/internal/domain"
	"signet/internal/handler"
	"signet/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testOwner = domain.Owner{ID: uuid.New(), Email: "owner@example.com", Name: "Olivia Owner"}

// withOwner stands in for the auth middleware.
func withOwner(c *gin.Context) {
	c.Set(middleware.ContextKeyOwner, testOwner)
	c.Next()
}

func perform(r *gin.Engine, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = http.NoBody
	}
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("User-Agent", "handler-test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func performJSON(r *gin.Engine, method, path string, payload interface{}) *httptest.ResponseRecorder {
	b, _ := json.Marshal(payload)
	return perform(r, method, path, bytes.NewReader(b), "application/json")
}

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.APIResponse {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decode(t, w)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}
