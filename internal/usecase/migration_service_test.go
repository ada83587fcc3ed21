package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"license-management-service/internal/domain"
)

const testMigrationsDir = "/migrations"

// mockMigrationRepository はテスト用のモック。
type mockMigrationRepository struct {
	appliedMigrations map[string]*domain.Migration
	recordError       error
	ensureCalls       int
}

func newMockMigrationRepository() *mockMigrationRepository {
	return &mockMigrationRepository{
		appliedMigrations: make(map[string]*domain.Migration),
	}
}

func (m *mockMigrationRepository) EnsureTable(ctx context.Context) error {
	m.ensureCalls++
	return nil
}

func (m *mockMigrationRepository) FindAllApplied(ctx context.Context) ([]*domain.Migration, error) {
	var result []*domain.Migration
	for _, migration := range m.appliedMigrations {
		result = append(result, migration)
	}
	return result, nil
}

func (m *mockMigrationRepository) RecordMigration(ctx context.Context, tx *gorm.DB, version string) error {
	if m.recordError != nil {
		return m.recordError
	}
	now := time.Now()
	m.appliedMigrations[version] = &domain.Migration{
		Version:   version,
		AppliedAt: &now,
		Status:    domain.MigrationStatusApplied,
	}
	return nil
}

func (m *mockMigrationRepository) IsMigrationApplied(ctx context.Context, version string) (bool, error) {
	_, exists := m.appliedMigrations[version]
	return exists, nil
}

func (m *mockMigrationRepository) markApplied(versions ...string) {
	now := time.Now()
	for _, v := range versions {
		m.appliedMigrations[v] = &domain.Migration{
			Version:   v,
			AppliedAt: &now,
			Status:    domain.MigrationStatusApplied,
		}
	}
}

// setupTestMigrationsFs はテスト用のmigrationsディレクトリを持つメモリ上のファイルシステムを作成する。
func setupTestMigrationsFs(t *testing.T) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	files := map[string]string{
		"001_create_signing_keys.sql":    "CREATE TABLE signing_keys (id TEXT);",
		"002_create_issued_licenses.sql": "CREATE TABLE issued_licenses (id TEXT);",
		"003_add_license_index.sql":      "CREATE INDEX idx_license_id ON issued_licenses(id);",
		"README.md":                      "not a migration",
	}
	for filename, content := range files {
		writeMigrationFile(t, fs, filename, content)
	}
	return fs
}

func writeMigrationFile(t *testing.T, fs afero.Fs, filename, content string) {
	t.Helper()
	err := afero.WriteFile(fs, filepath.Join(testMigrationsDir, filename), []byte(content), 0644)
	require.NoError(t, err, "failed to create test migration file")
}

// setupTestDB はテスト用のインメモリSQLiteデータベースを作成する。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to open test database")
	return db
}

func tableExists(t *testing.T, db *gorm.DB, table string) bool {
	t.Helper()
	var count int64
	err := db.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count).Error
	require.NoError(t, err, "failed to check table %s", table)
	return count == 1
}

func TestMigrationService_ApplyMigrations(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := newMockMigrationRepository()
	service := NewMigrationService(repo, db, setupTestMigrationsFs(t), testMigrationsDir)

	count, err := service.ApplyMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 1, repo.ensureCalls, "EnsureTable should be called once")

	for _, table := range []string{"signing_keys", "issued_licenses"} {
		assert.True(t, tableExists(t, db, table), "table %s was not created", table)
	}

	// 2回目は何も適用しない
	count, err = service.ApplyMigrations(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMigrationService_ApplyMigrations_AlreadyApplied(t *testing.T) {
	repo := newMockMigrationRepository()
	repo.markApplied("001")

	db := setupTestDB(t)
	require.NoError(t, db.Exec("CREATE TABLE signing_keys (id TEXT)").Error)
	service := NewMigrationService(repo, db, setupTestMigrationsFs(t), testMigrationsDir)

	count, err := service.ApplyMigrations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMigrationService_ApplyMigrations_InvalidSQL(t *testing.T) {
	fs := setupTestMigrationsFs(t)
	writeMigrationFile(t, fs, "004_invalid.sql", "INVALID SQL SYNTAX;")
	repo := newMockMigrationRepository()
	service := NewMigrationService(repo, setupTestDB(t), fs, testMigrationsDir)

	count, err := service.ApplyMigrations(context.Background())
	assert.ErrorIs(t, err, domain.ErrMigrationFailed)
	assert.Equal(t, 3, count, "migrations before the failure stay applied")
	assert.NotContains(t, repo.appliedMigrations, "004")
}

func TestMigrationService_ApplyMigrations_RecordFailureRollsBack(t *testing.T) {
	db := setupTestDB(t)
	repo := newMockMigrationRepository()
	repo.recordError = errors.New("record failed")
	service := NewMigrationService(repo, db, setupTestMigrationsFs(t), testMigrationsDir)

	_, err := service.ApplyMigrations(context.Background())
	assert.ErrorIs(t, err, domain.ErrMigrationFailed)
	assert.False(t, tableExists(t, db, "signing_keys"), "signing_keys creation should be rolled back")
}

func TestMigrationService_ApplyMigrations_InvalidFileName(t *testing.T) {
	fs := setupTestMigrationsFs(t)
	writeMigrationFile(t, fs, "broken.sql", "SELECT 1;")
	service := NewMigrationService(newMockMigrationRepository(), setupTestDB(t), fs, testMigrationsDir)

	_, err := service.ApplyMigrations(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidMigrationFile)
}

func TestMigrationService_ApplyMigrations_DuplicateVersion(t *testing.T) {
	fs := setupTestMigrationsFs(t)
	writeMigrationFile(t, fs, "001_duplicate.sql", "SELECT 1;")
	service := NewMigrationService(newMockMigrationRepository(), setupTestDB(t), fs, testMigrationsDir)

	_, err := service.ApplyMigrations(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidMigrationFile)
}

func TestMigrationService_ApplyMigrations_MissingDir(t *testing.T) {
	service := NewMigrationService(newMockMigrationRepository(), setupTestDB(t), afero.NewMemMapFs(), "/nowhere")

	_, err := service.ApplyMigrations(context.Background())
	assert.ErrorIs(t, err, domain.ErrMigrationFileNotFound)
}

func TestMigrationService_GetMigrationStatus(t *testing.T) {
	repo := newMockMigrationRepository()
	repo.markApplied("001")
	service := NewMigrationService(repo, setupTestDB(t), setupTestMigrationsFs(t), testMigrationsDir)

	migrations, err := service.GetMigrationStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	// バージョン順に並び、001のみ適用済み
	expected := []struct {
		version string
		status  domain.MigrationStatus
	}{
		{"001", domain.MigrationStatusApplied},
		{"002", domain.MigrationStatusPending},
		{"003", domain.MigrationStatusPending},
	}
	for i, want := range expected {
		assert.Equal(t, want.version, migrations[i].Version, "migrations[%d]", i)
		assert.Equal(t, want.status, migrations[i].Status, "migration %s", want.version)
	}
	assert.NotNil(t, migrations[0].AppliedAt)
}
