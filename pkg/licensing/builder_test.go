package licensing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_WithRSAPrivateKey(t *testing.T) {
	pair, _ := testKeyPairs(t)

	l, err := NewBuilder().WithRSAPrivateKey(pair.PrivateKey).SignAndCreate()
	require.NoError(t, err)
	assert.True(t, l.IsSigned())
	assert.NoError(t, l.Verify(testSigner(t, pair.PublicKey)))
}

func TestBuilder_Errors(t *testing.T) {
	pair, _ := testKeyPairs(t)
	signer := testSigner(t, pair.PrivateKey)

	tests := []struct {
		name    string
		builder *Builder
		wantErr error
	}{
		{name: "no signer", builder: NewBuilder(), wantErr: ErrInvalidArgument},
		{name: "nil signer", builder: NewBuilder().WithSigner(nil), wantErr: ErrInvalidArgument},
		{name: "public key", builder: NewBuilder().WithRSAPrivateKey(pair.PublicKey), wantErr: ErrInvalidArgument},
		{name: "malformed key", builder: NewBuilder().WithRSAPrivateKey("###"), wantErr: ErrInvalidArgument},
		{name: "duplicate property", builder: NewBuilder().WithSigner(signer).WithProperty("a", "1").WithProperty("a", "2"), wantErr: ErrInvalidArgument},
		{name: "colon in property key", builder: NewBuilder().WithSigner(signer).WithProperty("a:b", "1"), wantErr: ErrInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := tt.builder.SignAndCreate()
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, l)
		})
	}
}

func TestBuilder_Expiration(t *testing.T) {
	pair, _ := testKeyPairs(t)
	signer := testSigner(t, pair.PrivateKey)

	l, err := NewBuilder().WithSigner(signer).ExpiresIn(48 * time.Hour).SignAndCreate()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), l.ExpirationDate(), time.Minute)

	l, err = NewBuilder().WithSigner(signer).ExpiresIn(time.Hour).WithoutExpiration().SignAndCreate()
	require.NoError(t, err)
	assert.Equal(t, MaxExpirationDate, l.ExpirationDate())
}

func TestBuilder_Without(t *testing.T) {
	pair, _ := testKeyPairs(t)

	l, err := NewBuilder().
		WithRSAPrivateKey(pair.PrivateKey).
		WithHardwareIdentifier(goldenHardwareID).
		WithoutHardwareIdentifier().
		WithSerialNumber("SNABC-0000-0000-0000-6LUX").
		WithoutSerialNumber().
		SignAndCreate()
	require.NoError(t, err)
	assert.Equal(t, NoHardwareIdentifier, l.HardwareIdentifier())
	assert.Equal(t, NoSerialNumber, l.SerialNumber())
}
