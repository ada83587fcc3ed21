// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"license-management-service/internal/domain"
)

// SigningKeyModel はgorm用のモデル定義。
type SigningKeyModel struct {
	ID                  string    `gorm:"type:char(36);primaryKey"`
	ApplicationCode     string    `gorm:"type:char(3);not null;uniqueIndex:uk_app_generation;index:idx_app_status"`
	Generation          uint      `gorm:"not null;uniqueIndex:uk_app_generation"`
	PublicKey           string    `gorm:"type:text;not null"`
	EncryptedPrivateKey []byte    `gorm:"type:blob;not null"`
	Status              string    `gorm:"type:enum('active','disabled');not null;default:'active';index:idx_app_status"`
	CreatedAt           time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
	UpdatedAt           time.Time `gorm:"type:datetime(6);not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (SigningKeyModel) TableName() string {
	return "signing_keys"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *SigningKeyModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

func (m *SigningKeyModel) toDomain() *domain.SigningKey {
	return &domain.SigningKey{
		ID:                  m.ID,
		ApplicationCode:     m.ApplicationCode,
		Generation:          m.Generation,
		PublicKey:           m.PublicKey,
		EncryptedPrivateKey: m.EncryptedPrivateKey,
		Status:              domain.KeyStatus(m.Status),
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// SigningKeyRepository は署名鍵のデータアクセスを提供する。
type SigningKeyRepository struct {
	db *gorm.DB
}

// NewSigningKeyRepository は新しいSigningKeyRepositoryを生成する。
func NewSigningKeyRepository(db *gorm.DB) *SigningKeyRepository {
	return &SigningKeyRepository{db: db}
}

// ExistsByApplicationCode は指定されたアプリケーションに署名鍵が存在するか確認する。
func (r *SigningKeyRepository) ExistsByApplicationCode(ctx context.Context, applicationCode string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&SigningKeyModel{}).
		Where("application_code = ?", applicationCode).
		Count(&count).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to count signing keys",
			"operation", "exists_by_application_code",
			"application_code", applicationCode,
			"error", err,
		)
		return false, err
	}
	return count > 0, nil
}

// Create は新しい署名鍵を保存する。
func (r *SigningKeyRepository) Create(ctx context.Context, key *domain.SigningKey) error {
	model := &SigningKeyModel{
		ID:                  key.ID,
		ApplicationCode:     key.ApplicationCode,
		Generation:          key.Generation,
		PublicKey:           key.PublicKey,
		EncryptedPrivateKey: key.EncryptedPrivateKey,
		Status:              string(key.Status),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create signing key",
			"operation", "create",
			"application_code", key.ApplicationCode,
			"generation", key.Generation,
			"error", err,
		)
		return err
	}
	key.ID = model.ID
	key.CreatedAt = model.CreatedAt
	key.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByApplicationCodeAndGeneration は指定されたアプリケーション・世代の署名鍵を取得する。
// 存在しない場合は(nil, nil)を返す。
func (r *SigningKeyRepository) FindByApplicationCodeAndGeneration(ctx context.Context, applicationCode string, generation uint) (*domain.SigningKey, error) {
	var model SigningKeyModel
	err := r.db.WithContext(ctx).
		Where("application_code = ? AND generation = ?", applicationCode, generation).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find signing key",
			"operation", "find_by_application_code_and_generation",
			"application_code", applicationCode,
			"generation", generation,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// FindLatestActiveByApplicationCode は最新の有効な署名鍵を取得する。
func (r *SigningKeyRepository) FindLatestActiveByApplicationCode(ctx context.Context, applicationCode string) (*domain.SigningKey, error) {
	var model SigningKeyModel
	err := r.db.WithContext(ctx).
		Where("application_code = ? AND status = ?", applicationCode, string(domain.KeyStatusActive)).
		Order("generation DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find latest active signing key",
			"operation", "find_latest_active_by_application_code",
			"application_code", applicationCode,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// FindActiveByApplicationCode は有効な署名鍵を新しい世代から順に取得する。
func (r *SigningKeyRepository) FindActiveByApplicationCode(ctx context.Context, applicationCode string) ([]*domain.SigningKey, error) {
	var models []SigningKeyModel
	err := r.db.WithContext(ctx).
		Where("application_code = ? AND status = ?", applicationCode, string(domain.KeyStatusActive)).
		Order("generation DESC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find active signing keys",
			"operation", "find_active_by_application_code",
			"application_code", applicationCode,
			"error", err,
		)
		return nil, err
	}
	return toSigningKeys(models), nil
}

// FindAllByApplicationCode は全世代の署名鍵を世代順に取得する。
func (r *SigningKeyRepository) FindAllByApplicationCode(ctx context.Context, applicationCode string) ([]*domain.SigningKey, error) {
	var models []SigningKeyModel
	err := r.db.WithContext(ctx).
		Where("application_code = ?", applicationCode).
		Order("generation ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find all signing keys",
			"operation", "find_all_by_application_code",
			"application_code", applicationCode,
			"error", err,
		)
		return nil, err
	}
	return toSigningKeys(models), nil
}

// GetMaxGeneration は最大世代番号を取得する。鍵がない場合は0。
func (r *SigningKeyRepository) GetMaxGeneration(ctx context.Context, applicationCode string) (uint, error) {
	var maxGen *uint
	err := r.db.WithContext(ctx).
		Model(&SigningKeyModel{}).
		Where("application_code = ?", applicationCode).
		Select("MAX(generation)").
		Scan(&maxGen).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to get max generation",
			"operation", "get_max_generation",
			"application_code", applicationCode,
			"error", err,
		)
		return 0, err
	}
	if maxGen == nil {
		return 0, nil
	}
	return *maxGen, nil
}

// UpdateStatus は指定されたIDの署名鍵のステータスを更新する。
func (r *SigningKeyRepository) UpdateStatus(ctx context.Context, id string, status domain.KeyStatus) error {
	err := r.db.WithContext(ctx).
		Model(&SigningKeyModel{}).
		Where("id = ?", id).
		Update("status", string(status)).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to update signing key status",
			"operation", "update_status",
			"id", id,
			"status", status,
			"error", err,
		)
		return err
	}
	return nil
}

func toSigningKeys(models []SigningKeyModel) []*domain.SigningKey {
	keys := make([]*domain.SigningKey, len(models))
	for i := range models {
		keys[i] = models[i].toDomain()
	}
	return keys
}
