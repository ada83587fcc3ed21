package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"license-management-service/internal/domain"
	"license-management-service/internal/middleware"
	"license-management-service/internal/usecase"
	"license-management-service/pkg/httputil"
	"license-management-service/pkg/licensing"
)

// LicenseHandler はライセンス発行・検証のHTTPハンドラを提供する。
type LicenseHandler struct {
	service  *usecase.LicenseService
	metrics  MetricsRecorder
	validate *validator.Validate
}

// NewLicenseHandler は新しいLicenseHandlerを生成する。
func NewLicenseHandler(service *usecase.LicenseService, metrics MetricsRecorder) *LicenseHandler {
	return &LicenseHandler{
		service:  service,
		metrics:  metrics,
		validate: newValidator(),
	}
}

// PropertyRequest はライセンスプロパティのリクエスト形式。
type PropertyRequest struct {
	Key   string `json:"key" validate:"required,max=256,excludes=:"`
	Value string `json:"value" validate:"max=4096"`
}

// IssueLicenseRequest はライセンス発行のリクエスト形式。
type IssueLicenseRequest struct {
	HardwareIdentifier string            `json:"hardware_identifier" validate:"omitempty,max=64,hwid"`
	ExpirationDate     *time.Time        `json:"expiration_date,omitempty"`
	Properties         []PropertyRequest `json:"properties" validate:"max=100,dive"`
}

// VerifyLicenseRequest はライセンス検証のリクエスト形式。
type VerifyLicenseRequest struct {
	Content            string `json:"content" validate:"required,max=65536"`
	HardwareIdentifier string `json:"hardware_identifier" validate:"omitempty,max=64,hwid"`
}

// LicenseResponse は発行済みライセンスのレスポンス形式。
type LicenseResponse struct {
	ApplicationCode    string               `json:"application_code"`
	SerialNumber       string               `json:"serial_number"`
	KeyGeneration      uint                 `json:"key_generation"`
	HardwareIdentifier string               `json:"hardware_identifier"`
	IssueDate          string               `json:"issue_date"`
	ExpirationDate     string               `json:"expiration_date"`
	Properties         []licensing.Property `json:"properties"`
	Content            string               `json:"content"`
	CreatedAt          string               `json:"created_at"`
}

// LicenseListResponse は発行済みライセンス一覧のレスポンス形式。
type LicenseListResponse struct {
	Licenses []LicenseResponse `json:"licenses"`
}

// VerifyLicenseResponse は検証に成功したライセンスのレスポンス形式。
type VerifyLicenseResponse struct {
	Valid              bool                 `json:"valid"`
	KeyGeneration      uint                 `json:"key_generation"`
	SerialNumber       string               `json:"serial_number"`
	HardwareIdentifier string               `json:"hardware_identifier"`
	IssueDate          string               `json:"issue_date"`
	ExpirationDate     string               `json:"expiration_date"`
	Properties         []licensing.Property `json:"properties"`
}

func newLicenseResponse(l *domain.IssuedLicense) LicenseResponse {
	props := l.Properties
	if props == nil {
		props = []licensing.Property{}
	}
	return LicenseResponse{
		ApplicationCode:    l.ApplicationCode,
		SerialNumber:       l.SerialNumber,
		KeyGeneration:      l.KeyGeneration,
		HardwareIdentifier: l.HardwareIdentifier,
		IssueDate:          l.IssueDate.Format(time.RFC3339),
		ExpirationDate:     l.ExpirationDate.Format(time.RFC3339),
		Properties:         props,
		Content:            l.Content,
		CreatedAt:          l.CreatedAt.Format(time.RFC3339),
	}
}

// writeLicenseError はサービスのエラーをHTTPレスポンスに変換する。
// 検証失敗はLicenseErrorのコードとメッセージをそのまま返す。
func writeLicenseError(w http.ResponseWriter, err error) {
	var le *licensing.LicenseError
	switch {
	case errors.As(err, &le):
		httputil.Error(w, http.StatusUnprocessableEntity, string(le.Code), le.Message)
	case errors.Is(err, licensing.ErrInvalidFormat):
		httputil.Error(w, http.StatusUnprocessableEntity, "INVALID_FORMAT", "license has not a valid format")
	case errors.Is(err, domain.ErrInvalidLicenseRequest):
		httputil.Error(w, http.StatusBadRequest, "INVALID_LICENSE_REQUEST", err.Error())
	case errors.Is(err, domain.ErrLicenseNotFound):
		httputil.Error(w, http.StatusNotFound, "LICENSE_NOT_FOUND", "license not found for this application")
	default:
		writeKeyError(w, err)
	}
}

// verificationResult はメトリクスに記録する検証結果のラベルを返す。
func verificationResult(err error) string {
	var le *licensing.LicenseError
	switch {
	case err == nil:
		return "valid"
	case errors.As(err, &le):
		return strings.ToLower(string(le.Code))
	case errors.Is(err, licensing.ErrInvalidFormat):
		return "invalid_format"
	default:
		return "error"
	}
}

// IssueLicense は現在の署名鍵でライセンスを発行する。
func (h *LicenseHandler) IssueLicense(w http.ResponseWriter, r *http.Request) {
	appCode := chi.URLParam(r, "app_code")

	var req IssueLicenseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil && !errors.Is(err, httputil.ErrEmptyBody) {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "request body is not valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", validationMessage(err))
		return
	}

	input := usecase.IssueLicenseInput{
		ApplicationCode:    appCode,
		HardwareIdentifier: req.HardwareIdentifier,
	}
	if req.ExpirationDate != nil {
		input.ExpirationDate = *req.ExpirationDate
	}
	for _, p := range req.Properties {
		input.Properties = append(input.Properties, licensing.Property{Key: p.Key, Value: p.Value})
	}

	issued, err := h.service.IssueLicense(r.Context(), input)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), middleware.AuditLog{
			Operation:       "ISSUE_LICENSE",
			ApplicationCode: appCode,
			Result:          resultFailed,
		})
		writeLicenseError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), middleware.AuditLog{
		Operation:       "ISSUE_LICENSE",
		ApplicationCode: issued.ApplicationCode,
		Generation:      issued.KeyGeneration,
		SerialNumber:    issued.SerialNumber,
		Result:          resultSuccess,
	})
	h.metrics.LicenseIssued(issued.ApplicationCode)
	httputil.JSON(w, http.StatusCreated, newLicenseResponse(issued))
}

// VerifyLicense はライセンス文字列を有効な全世代の公開鍵で検証する。
func (h *LicenseHandler) VerifyLicense(w http.ResponseWriter, r *http.Request) {
	appCode := chi.URLParam(r, "app_code")

	var req VerifyLicenseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil && !errors.Is(err, httputil.ErrEmptyBody) {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "request body is not valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", validationMessage(err))
		return
	}

	result, err := h.service.VerifyLicense(r.Context(), usecase.VerifyLicenseInput{
		ApplicationCode:    appCode,
		Content:            req.Content,
		HardwareIdentifier: req.HardwareIdentifier,
	})
	h.metrics.LicenseVerified(strings.ToUpper(appCode), verificationResult(err))
	if err != nil {
		writeLicenseError(w, err)
		return
	}

	l := result.License
	httputil.JSON(w, http.StatusOK, VerifyLicenseResponse{
		Valid:              true,
		KeyGeneration:      result.KeyGeneration,
		SerialNumber:       l.SerialNumber(),
		HardwareIdentifier: l.HardwareIdentifier(),
		IssueDate:          l.IssueDate().Format(time.RFC3339),
		ExpirationDate:     l.ExpirationDate().Format(time.RFC3339),
		Properties:         l.Properties(),
	})
}

// ListLicenses は発行済みライセンス一覧を取得する。
func (h *LicenseHandler) ListLicenses(w http.ResponseWriter, r *http.Request) {
	appCode := chi.URLParam(r, "app_code")

	licenses, err := h.service.ListLicenses(r.Context(), appCode)
	if err != nil {
		writeLicenseError(w, err)
		return
	}

	response := LicenseListResponse{
		Licenses: make([]LicenseResponse, len(licenses)),
	}
	for i, l := range licenses {
		response.Licenses[i] = newLicenseResponse(l)
	}
	httputil.JSON(w, http.StatusOK, response)
}

// GetLicense はシリアル番号で発行済みライセンスを取得する。
func (h *LicenseHandler) GetLicense(w http.ResponseWriter, r *http.Request) {
	appCode := chi.URLParam(r, "app_code")
	serial := chi.URLParam(r, "serial_number")

	license, err := h.service.GetLicense(r.Context(), appCode, serial)
	if err != nil {
		writeLicenseError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, newLicenseResponse(license))
}
