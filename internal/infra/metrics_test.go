package infra

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.LicenseIssued("ABC")
	m.LicenseIssued("ABC")
	m.LicenseVerified("ABC", "EXPIRED")
	m.KeyOperation("CREATE_KEY", "SUCCESS")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `license_management_licenses_issued_total{application_code="ABC"} 2`)
	assert.Contains(t, body, `license_management_license_verifications_total{application_code="ABC",result="EXPIRED"} 1`)
	assert.Contains(t, body, `license_management_signing_key_operations_total{operation="CREATE_KEY",result="SUCCESS"} 1`)
}
