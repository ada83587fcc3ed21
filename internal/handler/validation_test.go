package handler

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_IssueLicenseRequest(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name    string
		req     IssueLicenseRequest
		wantErr string
	}{
		{name: "empty", req: IssueLicenseRequest{}},
		{name: "valid", req: IssueLicenseRequest{
			HardwareIdentifier: testHardwareID,
			Properties:         []PropertyRequest{{Key: "Name", Value: "Jane Doe"}},
		}},
		{name: "invalid hardware identifier", req: IssueLicenseRequest{HardwareIdentifier: "AAAA-BBBB"}, wantErr: "hardware_identifier must be a valid hardware identifier"},
		{name: "missing key", req: IssueLicenseRequest{Properties: []PropertyRequest{{Value: "x"}}}, wantErr: "properties[0].key is required"},
		{name: "colon in key", req: IssueLicenseRequest{Properties: []PropertyRequest{{Key: "a:b"}}}, wantErr: "properties[0].key must not contain ':'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, validationMessage(err), tt.wantErr)
		})
	}
}

func TestValidator_VerifyLicenseRequest(t *testing.T) {
	v := newValidator()

	err := v.Struct(VerifyLicenseRequest{})
	require.Error(t, err)
	assert.Equal(t, "content is required", validationMessage(err))

	assert.NoError(t, v.Struct(VerifyLicenseRequest{Content: "abc", HardwareIdentifier: testHardwareID}))
}

func TestRegisterValidations(t *testing.T) {
	v := validator.New()
	require.NoError(t, registerValidations(v))

	assert.NoError(t, v.Var(testHardwareID, "hwid"))
	assert.Error(t, v.Var("AAAA-BBBB", "hwid"), "hwid rule should reject an invalid checksum")
}
