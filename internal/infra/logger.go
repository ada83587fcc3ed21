package infra

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"license-management-service/config"
)

type applicationCodeKey struct{}

// WithApplicationCode はログに付与するアプリケーションコードをコンテキストに設定する。
func WithApplicationCode(ctx context.Context, code string) context.Context {
	if code == "" {
		return ctx
	}
	return context.WithValue(ctx, applicationCodeKey{}, strings.ToUpper(code))
}

// ApplicationCodeFrom はコンテキストのアプリケーションコードを返す。
func ApplicationCodeFrom(ctx context.Context) string {
	code, _ := ctx.Value(applicationCodeKey{}).(string)
	return code
}

// TraceHandler はトレース情報とリクエスト対象のアプリケーションコードをログに付与するslogハンドラ。
type TraceHandler struct {
	handler     slog.Handler
	tracePrefix string
	otelEnabled bool
}

// NewTraceHandler はトレース情報付きのslogハンドラを生成する。
func NewTraceHandler(handler slog.Handler, cfg *config.Config) *TraceHandler {
	h := &TraceHandler{handler: handler, otelEnabled: cfg.OtelEnabled}
	if cfg.GoogleCloudProject != "" {
		h.tracePrefix = "projects/" + cfg.GoogleCloudProject + "/traces/"
	}
	return h
}

// Enabled はハンドラがログを処理するかどうかを返す。
func (h *TraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle はログレコードにトレース情報とアプリケーションコードを付与する。
// レコードが既にapplication_codeを持つ場合は上書きしない。
func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if code := ApplicationCodeFrom(ctx); code != "" && !hasAttr(r, "application_code") {
		r.AddAttrs(slog.String("application_code", code))
	}
	if h.otelEnabled {
		r.AddAttrs(h.traceAttrs(trace.SpanContextFromContext(ctx))...)
	}
	return h.handler.Handle(ctx, r)
}

func (h *TraceHandler) traceAttrs(sc trace.SpanContext) []slog.Attr {
	if !sc.IsValid() {
		return nil
	}
	traceID := sc.TraceID().String()
	spanID := sc.SpanID().String()
	attrs := []slog.Attr{
		slog.String("trace", traceID),
		slog.String("spanId", spanID),
		slog.Bool("traceSampled", sc.IsSampled()),
	}
	// Google Cloud Logging連携用
	if h.tracePrefix != "" {
		attrs = append(attrs,
			slog.String("logging.googleapis.com/trace", h.tracePrefix+traceID),
			slog.String("logging.googleapis.com/spanId", spanID),
		)
	}
	return attrs
}

func hasAttr(r slog.Record, key string) bool {
	found := false
	r.Attrs(func(a slog.Attr) bool {
		found = a.Key == key
		return !found
	})
	return found
}

// WithAttrs は属性を追加した新しいハンドラを返す。
func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{handler: h.handler.WithAttrs(attrs), tracePrefix: h.tracePrefix, otelEnabled: h.otelEnabled}
}

// WithGroup はグループを追加した新しいハンドラを返す。
func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{handler: h.handler.WithGroup(name), tracePrefix: h.tracePrefix, otelEnabled: h.otelEnabled}
}

// ParseLogLevel はLOG_LEVELの値をslog.Levelに変換する。未知の値はINFOとなる。
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger はサービス名とバージョンを付与したJSONロガーを生成する。
func NewLogger(w io.Writer, cfg *config.Config, level slog.Level) *slog.Logger {
	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewTraceHandler(jsonHandler, cfg)).With(
		"service", cfg.OtelServiceName,
		"version", Version,
	)
}

// SetupLogger はトレース情報付きのグローバルロガーを設定する。
func SetupLogger(cfg *config.Config, level slog.Level) {
	slog.SetDefault(NewLogger(os.Stdout, cfg, level))
}
