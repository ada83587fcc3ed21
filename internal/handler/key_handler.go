// Package handler はHTTPハンドラを提供する。
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"license-management-service/internal/domain"
	"license-management-service/internal/middleware"
	"license-management-service/internal/usecase"
	"license-management-service/pkg/httputil"
)

const (
	resultSuccess = "SUCCESS"
	resultFailed  = "FAILED"
)

// MetricsRecorder はハンドラが記録するメトリクスのインターフェース。
type MetricsRecorder interface {
	LicenseIssued(applicationCode string)
	LicenseVerified(applicationCode, result string)
	KeyOperation(operation, result string)
}

// KeyHandler は署名鍵のHTTPハンドラを提供する。
type KeyHandler struct {
	service *usecase.KeyService
	metrics MetricsRecorder
}

// NewKeyHandler は新しいKeyHandlerを生成する。
func NewKeyHandler(service *usecase.KeyService, metrics MetricsRecorder) *KeyHandler {
	return &KeyHandler{service: service, metrics: metrics}
}

func validateGeneration(genStr string) (uint, error) {
	gen, err := strconv.ParseUint(genStr, 10, 32)
	if err != nil || gen < 1 {
		return 0, domain.ErrInvalidGeneration
	}
	return uint(gen), nil
}

// KeyMetadataResponse は署名鍵メタデータのレスポンス形式。
type KeyMetadataResponse struct {
	ApplicationCode string `json:"application_code"`
	Generation      uint   `json:"generation"`
	PublicKey       string `json:"public_key"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
}

// KeyListResponse は署名鍵一覧のレスポンス形式。
type KeyListResponse struct {
	Keys []KeyMetadataResponse `json:"keys"`
}

func newKeyMetadataResponse(m *domain.SigningKeyMetadata) KeyMetadataResponse {
	return KeyMetadataResponse{
		ApplicationCode: m.ApplicationCode,
		Generation:      m.Generation,
		PublicKey:       m.PublicKey,
		Status:          string(m.Status),
		CreatedAt:       m.CreatedAt.Format(time.RFC3339),
	}
}

// audit は監査ログとメトリクスを記録する。
func (h *KeyHandler) audit(r *http.Request, operation, applicationCode string, generation uint, result string) {
	middleware.WriteAuditLog(r.Context(), middleware.AuditLog{
		Operation:       operation,
		ApplicationCode: applicationCode,
		Generation:      generation,
		Result:          result,
	})
	h.metrics.KeyOperation(operation, result)
}

// writeKeyError はサービスのエラーをHTTPレスポンスに変換する。
func writeKeyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidApplicationCode):
		httputil.Error(w, http.StatusBadRequest, "INVALID_APPLICATION_CODE", "invalid application code format")
	case errors.Is(err, domain.ErrInvalidGeneration):
		httputil.Error(w, http.StatusBadRequest, "INVALID_GENERATION", "invalid generation number")
	case errors.Is(err, domain.ErrKeyNotFound):
		httputil.Error(w, http.StatusNotFound, "KEY_NOT_FOUND", "signing key not found for this application")
	case errors.Is(err, domain.ErrKeyAlreadyExists):
		httputil.Error(w, http.StatusConflict, "KEY_ALREADY_EXISTS", "signing key already exists for this application")
	case errors.Is(err, domain.ErrKeyDisabled):
		httputil.Error(w, http.StatusGone, "KEY_DISABLED", "signing key has been disabled")
	case errors.Is(err, domain.ErrKeyAlreadyDisabled):
		httputil.Error(w, http.StatusConflict, "KEY_ALREADY_DISABLED", "signing key is already disabled")
	default:
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// CreateKey はアプリケーションの最初の署名鍵を生成する。
func (h *KeyHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	appCode := chi.URLParam(r, "app_code")

	metadata, err := h.service.CreateKey(r.Context(), appCode)
	if err != nil {
		h.audit(r, "CREATE_KEY", appCode, 0, resultFailed)
		writeKeyError(w, err)
		return
	}

	h.audit(r, "CREATE_KEY", metadata.ApplicationCode, metadata.Generation, resultSuccess)
	httputil.JSON(w, http.StatusCreated, newKeyMetadataResponse(metadata))
}

// GetCurrentKey は現在有効な署名鍵の公開鍵を取得する。
func (h *KeyHandler) GetCurrentKey(w http.ResponseWriter, r *http.Request) {
	appCode := chi.URLParam(r, "app_code")

	metadata, err := h.service.GetCurrentKey(r.Context(), appCode)
	if err != nil {
		h.audit(r, "GET_CURRENT_KEY", appCode, 0, resultFailed)
		writeKeyError(w, err)
		return
	}

	h.audit(r, "GET_CURRENT_KEY", metadata.ApplicationCode, metadata.Generation, resultSuccess)
	httputil.JSON(w, http.StatusOK, newKeyMetadataResponse(metadata))
}

// GetKeyByGeneration は指定された世代の署名鍵の公開鍵を取得する。
func (h *KeyHandler) GetKeyByGeneration(w http.ResponseWriter, r *http.Request) {
	appCode := chi.URLParam(r, "app_code")

	generation, err := validateGeneration(chi.URLParam(r, "generation"))
	if err != nil {
		writeKeyError(w, err)
		return
	}

	metadata, err := h.service.GetKeyByGeneration(r.Context(), appCode, generation)
	if err != nil {
		h.audit(r, "GET_KEY_BY_GENERATION", appCode, generation, resultFailed)
		writeKeyError(w, err)
		return
	}

	h.audit(r, "GET_KEY_BY_GENERATION", metadata.ApplicationCode, generation, resultSuccess)
	httputil.JSON(w, http.StatusOK, newKeyMetadataResponse(metadata))
}

// RotateKey は新しい世代の署名鍵を生成する。既存の世代は有効なまま残る。
func (h *KeyHandler) RotateKey(w http.ResponseWriter, r *http.Request) {
	appCode := chi.URLParam(r, "app_code")

	metadata, err := h.service.RotateKey(r.Context(), appCode)
	if err != nil {
		h.audit(r, "ROTATE_KEY", appCode, 0, resultFailed)
		writeKeyError(w, err)
		return
	}

	h.audit(r, "ROTATE_KEY", metadata.ApplicationCode, metadata.Generation, resultSuccess)
	httputil.JSON(w, http.StatusCreated, newKeyMetadataResponse(metadata))
}

// ListKeys は署名鍵一覧を取得する。
func (h *KeyHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	appCode := chi.URLParam(r, "app_code")

	keys, err := h.service.ListKeys(r.Context(), appCode)
	if err != nil {
		h.audit(r, "LIST_KEYS", appCode, 0, resultFailed)
		writeKeyError(w, err)
		return
	}

	h.audit(r, "LIST_KEYS", appCode, 0, resultSuccess)
	response := KeyListResponse{
		Keys: make([]KeyMetadataResponse, len(keys)),
	}
	for i, k := range keys {
		response.Keys[i] = newKeyMetadataResponse(k)
	}
	httputil.JSON(w, http.StatusOK, response)
}

// DisableKey は署名鍵を無効化する。
func (h *KeyHandler) DisableKey(w http.ResponseWriter, r *http.Request) {
	appCode := chi.URLParam(r, "app_code")

	generation, err := validateGeneration(chi.URLParam(r, "generation"))
	if err != nil {
		writeKeyError(w, err)
		return
	}

	if err := h.service.DisableKey(r.Context(), appCode, generation); err != nil {
		h.audit(r, "DISABLE_KEY", appCode, generation, resultFailed)
		writeKeyError(w, err)
		return
	}

	h.audit(r, "DISABLE_KEY", appCode, generation, resultSuccess)
	w.WriteHeader(http.StatusAccepted)
}
