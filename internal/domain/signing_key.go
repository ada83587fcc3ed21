// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import "time"

// KeyStatus は署名鍵のステータスを表す。
type KeyStatus string

const (
	// KeyStatusActive は有効な鍵を表す。
	KeyStatusActive KeyStatus = "active"
	// KeyStatusDisabled は無効化された鍵を表す。
	KeyStatusDisabled KeyStatus = "disabled"
)

// SigningKey はアプリケーションごとのライセンス署名鍵エンティティを表す。
// 秘密鍵はKMSで暗号化された状態でのみ保持する。
type SigningKey struct {
	ID                  string
	ApplicationCode     string
	Generation          uint
	PublicKey           string // base64エンコードされたPKIX DER
	EncryptedPrivateKey []byte
	Status              KeyStatus
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// SigningKeyMetadata は署名鍵のメタデータを表す（秘密鍵を含まない）。
type SigningKeyMetadata struct {
	ApplicationCode string
	Generation      uint
	PublicKey       string
	Status          KeyStatus
	CreatedAt       time.Time
}

// Metadata は秘密鍵を除いたメタデータを返す。
func (k *SigningKey) Metadata() *SigningKeyMetadata {
	return &SigningKeyMetadata{
		ApplicationCode: k.ApplicationCode,
		Generation:      k.Generation,
		PublicKey:       k.PublicKey,
		Status:          k.Status,
		CreatedAt:       k.CreatedAt,
	}
}
