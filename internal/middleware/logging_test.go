package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"license-management-service/config"
	"license-management-service/internal/infra"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(infra.NewLogger(&buf, &config.Config{}, slog.LevelInfo))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestApplicationScope(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Route("/v1/applications/{app_code}", func(r chi.Router) {
		r.Use(ApplicationScope)
		r.Get("/keys", func(w http.ResponseWriter, r *http.Request) {
			got = infra.ApplicationCodeFrom(r.Context())
		})
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/applications/abc/keys", nil))

	assert.Equal(t, "ABC", got)
}

func TestWriteAuditLog(t *testing.T) {
	buf := captureLogs(t)

	WriteAuditLog(context.Background(), AuditLog{
		Operation:       "issue_license",
		ApplicationCode: "ABC",
		Generation:      2,
		SerialNumber:    "SNABC-0000-0000-0000-6LUX",
		Result:          "success",
	})

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "issue_license", record["operation"])
	assert.Equal(t, "ABC", record["application_code"])
	assert.Equal(t, "SNABC-0000-0000-0000-6LUX", record["serial_number"])
	assert.NotEmpty(t, record["timestamp"])
}

func TestRequestLogger(t *testing.T) {
	buf := captureLogs(t)

	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/applications/ABC/licenses", nil))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, float64(http.StatusCreated), record["status"])
	assert.Equal(t, "/v1/applications/ABC/licenses", record["path"])
}
