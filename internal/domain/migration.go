package domain

import "time"

// MigrationStatus はスキーママイグレーションの適用状態を表す。
type MigrationStatus string

const (
	MigrationStatusPending MigrationStatus = "pending"
	MigrationStatusApplied MigrationStatus = "applied"
)

// Migration はsigning_keys/issued_licensesテーブルを構築するマイグレーション1件を表す。
type Migration struct {
	Version   string // 例: "001"
	Name      string // ファイル名から抽出
	AppliedAt *time.Time
	FilePath  string
	Status    MigrationStatus
}

// IsApplied は適用済みか返す。
func (m *Migration) IsApplied() bool {
	return m.Status == MigrationStatusApplied
}
