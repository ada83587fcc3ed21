// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"license-management-service/internal/infra"
)

// AuditLog は監査ログの構造体。
type AuditLog struct {
	Operation       string `json:"operation"`
	ApplicationCode string `json:"application_code"`
	Generation      uint   `json:"generation,omitempty"`
	SerialNumber    string `json:"serial_number,omitempty"`
	Result          string `json:"result"`
	Timestamp       string `json:"timestamp"`
}

// WriteAuditLog は監査ログを出力する。
func WriteAuditLog(ctx context.Context, entry AuditLog) {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	slog.InfoContext(ctx, "license operation completed",
		"operation", entry.Operation,
		"application_code", entry.ApplicationCode,
		"generation", entry.Generation,
		"serial_number", entry.SerialNumber,
		"result", entry.Result,
		"timestamp", entry.Timestamp,
		"request_id", chimiddleware.GetReqID(ctx),
	)
}

// RequestLogger はリクエストごとのアクセスログをslogで出力する。
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			slog.InfoContext(r.Context(), "http request",
				"operation", "http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chimiddleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

// ApplicationScope はURLのapp_codeをコンテキストに設定し、以降のログに付与させる。
func ApplicationScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := infra.WithApplicationCode(r.Context(), chi.URLParam(r, "app_code"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
