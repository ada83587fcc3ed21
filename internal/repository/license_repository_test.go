package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"license-management-service/internal/domain"
	"license-management-service/pkg/licensing"
)

func newIssuedLicense(applicationCode, serialNumber string) *domain.IssuedLicense {
	return &domain.IssuedLicense{
		ApplicationCode:    applicationCode,
		KeyGeneration:      1,
		SerialNumber:       serialNumber,
		HardwareIdentifier: licensing.NoHardwareIdentifier,
		IssueDate:          time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC),
		ExpirationDate:     licensing.MaxExpirationDate,
		Properties: []licensing.Property{
			{Key: "Name", Value: "Jane Doe"},
			{Key: "Seats", Value: "10"},
		},
		Content: "obfuscated-content",
	}
}

func TestLicenseRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewLicenseRepository(setupTestDB(t))

	license := newIssuedLicense("ABC", "SNABC-0000-0000-0000-6LUX")
	require.NoError(t, repo.Create(ctx, license))
	assert.NotEmpty(t, license.ID, "ID should be generated")

	found, err := repo.FindBySerialNumber(ctx, "ABC", "SNABC-0000-0000-0000-6LUX")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "obfuscated-content", found.Content)
	assert.True(t, found.ExpirationDate.Equal(licensing.MaxExpirationDate), "expiration: got %v", found.ExpirationDate)

	// プロパティは挿入順を保つ
	assert.Equal(t, []licensing.Property{
		{Key: "Name", Value: "Jane Doe"},
		{Key: "Seats", Value: "10"},
	}, found.Properties)
}

func TestLicenseRepository_FindBySerialNumber_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewLicenseRepository(setupTestDB(t))

	require.NoError(t, repo.Create(ctx, newIssuedLicense("ABC", "SNABC-0000-0000-0000-6LUX")))

	// 他のアプリケーションのシリアル番号は見えない
	found, err := repo.FindBySerialNumber(ctx, "XYZ", "SNABC-0000-0000-0000-6LUX")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestLicenseRepository_DuplicateSerialNumber(t *testing.T) {
	ctx := context.Background()
	repo := NewLicenseRepository(setupTestDB(t))

	require.NoError(t, repo.Create(ctx, newIssuedLicense("ABC", "SNABC-0000-0000-0000-6LUX")))
	assert.Error(t, repo.Create(ctx, newIssuedLicense("ABC", "SNABC-0000-0000-0000-6LUX")), "unique constraint should reject duplicates")
}

func TestLicenseRepository_FindAllByApplicationCode(t *testing.T) {
	ctx := context.Background()
	repo := NewLicenseRepository(setupTestDB(t))

	for _, serial := range []string{"SNABC-AAAA-AAAA-AAAA-0000", "SNABC-BBBB-BBBB-BBBB-0000"} {
		require.NoError(t, repo.Create(ctx, newIssuedLicense("ABC", serial)))
	}
	require.NoError(t, repo.Create(ctx, newIssuedLicense("XYZ", "SNXYZ-AAAA-AAAA-AAAA-0000")))

	licenses, err := repo.FindAllByApplicationCode(ctx, "ABC")
	require.NoError(t, err)
	require.Len(t, licenses, 2)
	for _, l := range licenses {
		assert.Equal(t, "ABC", l.ApplicationCode)
	}

	licenses, err = repo.FindAllByApplicationCode(ctx, "QQQ")
	require.NoError(t, err)
	assert.Empty(t, licenses)
}
