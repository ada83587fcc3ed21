package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"license-management-service/config"
	"license-management-service/internal/middleware"
)

// NewRouter はルーターを生成する。
// metricsHandlerがnilの場合は/metricsを公開しない。
func NewRouter(keyH *KeyHandler, licenseH *LicenseHandler, metricsHandler http.Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	// ルート定義
	r.Route("/v1/applications/{app_code}", func(r chi.Router) {
		r.Use(middleware.ApplicationScope)

		r.Route("/keys", func(r chi.Router) {
			r.Post("/", keyH.CreateKey)
			r.Get("/", keyH.ListKeys)
			r.Get("/current", keyH.GetCurrentKey)
			r.Get("/{generation}", keyH.GetKeyByGeneration)
			r.Delete("/{generation}", keyH.DisableKey)
			r.Post("/rotate", keyH.RotateKey)
		})
		r.Route("/licenses", func(r chi.Router) {
			r.Post("/", licenseH.IssueLicense)
			r.Get("/", licenseH.ListLicenses)
			r.Post("/verify", licenseH.VerifyLicense)
			r.Get("/{serial_number}", licenseH.GetLicense)
		})
	})

	if cfg != nil && cfg.OtelEnabled {
		return otelhttp.NewHandler(r, cfg.OtelServiceName)
	}
	return r
}
