package licensing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func serializedTestLicense(t *testing.T) string {
	t.Helper()
	l, _ := newTestLicense(t)
	content, err := l.Serialize()
	require.NoError(t, err)
	return content
}

func TestVerifier_LoadAndVerify(t *testing.T) {
	pair, _ := testKeyPairs(t)
	content := serializedTestLicense(t)

	l, err := NewVerifier().
		WithRSAPublicKey(pair.PublicKey).
		WithApplicationCode("abc").
		WithComputerCharacteristics(fakeCharacteristics{"cpu", "bios", "board", "disk2"}).
		WithClock(fixedClock(testExpiration.Add(-time.Hour))).
		LoadAndVerify(content)
	require.NoError(t, err)

	v, _ := l.Property("Name")
	assert.Equal(t, "Jane Doe", v)
}

func TestVerifier_Failures(t *testing.T) {
	pair, other := testKeyPairs(t)
	content := serializedTestLicense(t)
	valid := func() *Verifier {
		return NewVerifier().
			WithRSAPublicKey(pair.PublicKey).
			WithHardwareIdentifier(goldenHardwareID).
			WithClock(fixedClock(testExpiration.Add(-time.Hour)))
	}

	tests := []struct {
		name     string
		verifier *Verifier
		wantCode ErrorCode
	}{
		{name: "other key", verifier: valid().WithRSAPublicKey(other.PublicKey), wantCode: CodeInvalidSignature},
		{name: "other application", verifier: valid().WithApplicationCode("XYZ"), wantCode: CodeApplicationCodeMismatch},
		{name: "other computer", verifier: valid().WithHardwareIdentifier("XXXXXXXX-XXXXXXXX-XXXXXXXX-K81HG8EH-GES7"), wantCode: CodeHardwareMismatch},
		{name: "expired", verifier: valid().WithClock(fixedClock(testExpiration.Add(time.Second))), wantCode: CodeExpired},
		{
			name:     "signature checked first",
			verifier: valid().WithRSAPublicKey(other.PublicKey).WithApplicationCode("XYZ").WithClock(fixedClock(MaxExpirationDate)),
			wantCode: CodeInvalidSignature,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := tt.verifier.LoadAndVerify(content)
			require.Error(t, err)
			assert.Nil(t, l)
			assert.True(t, errors.Is(err, ErrLicense))

			var le *LicenseError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.wantCode, le.Code)
			assert.NotEmpty(t, le.Message)
		})
	}
}

func TestVerifier_ExpiredMessage(t *testing.T) {
	pair, _ := testKeyPairs(t)
	_, err := NewVerifier().
		WithRSAPublicKey(pair.PublicKey).
		WithHardwareIdentifier(goldenHardwareID).
		WithClock(fixedClock(testExpiration.Add(24 * time.Hour))).
		LoadAndVerify(serializedTestLicense(t))
	assert.EqualError(t, err, "License has been expired since '01/02/2030 03:04:05'.")
}

func TestVerifier_HardwareNotSupported(t *testing.T) {
	pair, _ := testKeyPairs(t)
	_, err := NewVerifier().
		WithRSAPublicKey(pair.PublicKey).
		LoadAndVerify(serializedTestLicense(t))
	assert.ErrorIs(t, err, ErrHardwareNotSupported)
}

func TestVerifier_UnboundLicense(t *testing.T) {
	pair, _ := testKeyPairs(t)
	l, err := NewBuilder().WithRSAPrivateKey(pair.PrivateKey).SignAndCreate()
	require.NoError(t, err)
	content, err := l.Serialize()
	require.NoError(t, err)

	// ハードウェアにもアプリケーションにも紐付かないライセンスはどこでも有効
	_, err = NewVerifier().
		WithRSAPublicKey(pair.PublicKey).
		WithApplicationCode("XYZ").
		LoadAndVerify(content)
	assert.NoError(t, err)
}

func TestVerifier_ConfigurationErrors(t *testing.T) {
	content := serializedTestLicense(t)

	_, err := NewVerifier().LoadAndVerify(content)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewVerifier().WithRSAPublicKey("###").LoadAndVerify(content)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	pair, _ := testKeyPairs(t)
	_, err = NewVerifier().WithRSAPublicKey(pair.PublicKey).WithApplicationCode("AB").LoadAndVerify(content)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestVerifier_MalformedContent(t *testing.T) {
	pair, _ := testKeyPairs(t)
	_, err := NewVerifier().WithRSAPublicKey(pair.PublicKey).LoadAndVerify("garbage")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestVerifier_LoadFromSource(t *testing.T) {
	pair, _ := testKeyPairs(t)
	v := NewVerifier().
		WithRSAPublicKey(pair.PublicKey).
		WithHardwareIdentifier(goldenHardwareID).
		WithClock(fixedClock(testExpiration.Add(-time.Hour)))

	l, err := v.LoadFromSource(NewInMemorySource(""))
	require.NoError(t, err)
	assert.Nil(t, l)

	l, err = v.LoadFromSource(NewInMemorySource(serializedTestLicense(t)))
	require.NoError(t, err)
	assert.Equal(t, goldenHardwareID, l.HardwareIdentifier())
}
