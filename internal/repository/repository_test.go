package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB はテスト用のインメモリSQLiteデータベースを作成する。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to open test database")

	// SQLite用にENUM→TEXT変換
	statements := []string{
		`CREATE TABLE signing_keys (
			id TEXT PRIMARY KEY,
			application_code TEXT NOT NULL,
			generation INTEGER NOT NULL,
			public_key TEXT NOT NULL,
			encrypted_private_key BLOB NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(application_code, generation)
		)`,
		`CREATE INDEX idx_app_status ON signing_keys(application_code, status)`,
		`CREATE TABLE issued_licenses (
			id TEXT PRIMARY KEY,
			application_code TEXT NOT NULL,
			key_generation INTEGER NOT NULL,
			serial_number TEXT NOT NULL UNIQUE,
			hardware_identifier TEXT NOT NULL,
			issue_date DATETIME NOT NULL,
			expiration_date DATETIME NOT NULL,
			properties TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error, "failed to create tables")
	}

	return db
}

func insertSigningKey(t *testing.T, db *gorm.DB, id, applicationCode string, generation uint, status string) {
	t.Helper()
	err := db.Exec("INSERT INTO signing_keys (id, application_code, generation, public_key, encrypted_private_key, status) VALUES (?, ?, ?, ?, ?, ?)",
		id, applicationCode, generation, "public-key", []byte("encrypted-private-key"), status).Error
	require.NoError(t, err, "failed to insert test data")
}
