package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"license-management-service/internal/domain"
	"license-management-service/pkg/licensing"
)

// IssuedLicenseModel はgorm用のモデル定義。
type IssuedLicenseModel struct {
	ID                 string    `gorm:"type:char(36);primaryKey"`
	ApplicationCode    string    `gorm:"type:char(3);not null;index:idx_app_created"`
	KeyGeneration      uint      `gorm:"not null"`
	SerialNumber       string    `gorm:"type:varchar(32);not null;uniqueIndex:uk_serial_number"`
	HardwareIdentifier string    `gorm:"type:varchar(128);not null"`
	IssueDate          time.Time `gorm:"type:datetime;not null"`
	ExpirationDate     time.Time `gorm:"type:datetime;not null"`
	Properties         string    `gorm:"type:text;not null"`
	Content            string    `gorm:"type:text;not null"`
	CreatedAt          time.Time `gorm:"type:datetime(6);not null;autoCreateTime;index:idx_app_created"`
}

// TableName はテーブル名を返す。
func (IssuedLicenseModel) TableName() string {
	return "issued_licenses"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *IssuedLicenseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

func (m *IssuedLicenseModel) toDomain() (*domain.IssuedLicense, error) {
	var props []licensing.Property
	if err := json.Unmarshal([]byte(m.Properties), &props); err != nil {
		return nil, fmt.Errorf("decoding properties of %s: %w", m.SerialNumber, err)
	}
	return &domain.IssuedLicense{
		ID:                 m.ID,
		ApplicationCode:    m.ApplicationCode,
		KeyGeneration:      m.KeyGeneration,
		SerialNumber:       m.SerialNumber,
		HardwareIdentifier: m.HardwareIdentifier,
		IssueDate:          m.IssueDate.UTC(),
		ExpirationDate:     m.ExpirationDate.UTC(),
		Properties:         props,
		Content:            m.Content,
		CreatedAt:          m.CreatedAt,
	}, nil
}

// LicenseRepository は発行済みライセンスのデータアクセスを提供する。
type LicenseRepository struct {
	db *gorm.DB
}

// NewLicenseRepository は新しいLicenseRepositoryを生成する。
func NewLicenseRepository(db *gorm.DB) *LicenseRepository {
	return &LicenseRepository{db: db}
}

// Create は発行済みライセンスを保存する。
func (r *LicenseRepository) Create(ctx context.Context, license *domain.IssuedLicense) error {
	props := license.Properties
	if props == nil {
		props = []licensing.Property{}
	}
	encoded, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("encoding properties: %w", err)
	}

	model := &IssuedLicenseModel{
		ID:                 license.ID,
		ApplicationCode:    license.ApplicationCode,
		KeyGeneration:      license.KeyGeneration,
		SerialNumber:       license.SerialNumber,
		HardwareIdentifier: license.HardwareIdentifier,
		IssueDate:          license.IssueDate,
		ExpirationDate:     license.ExpirationDate,
		Properties:         string(encoded),
		Content:            license.Content,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create issued license",
			"operation", "create",
			"application_code", license.ApplicationCode,
			"serial_number", license.SerialNumber,
			"error", err,
		)
		return err
	}
	license.ID = model.ID
	license.CreatedAt = model.CreatedAt
	return nil
}

// FindBySerialNumber はシリアル番号でライセンスを取得する。存在しない場合は(nil, nil)を返す。
func (r *LicenseRepository) FindBySerialNumber(ctx context.Context, applicationCode, serialNumber string) (*domain.IssuedLicense, error) {
	var model IssuedLicenseModel
	err := r.db.WithContext(ctx).
		Where("application_code = ? AND serial_number = ?", applicationCode, serialNumber).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find issued license",
			"operation", "find_by_serial_number",
			"application_code", applicationCode,
			"serial_number", serialNumber,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain()
}

// FindAllByApplicationCode はアプリケーションのライセンスを新しい順に取得する。
func (r *LicenseRepository) FindAllByApplicationCode(ctx context.Context, applicationCode string) ([]*domain.IssuedLicense, error) {
	var models []IssuedLicenseModel
	err := r.db.WithContext(ctx).
		Where("application_code = ?", applicationCode).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find issued licenses",
			"operation", "find_all_by_application_code",
			"application_code", applicationCode,
			"error", err,
		)
		return nil, err
	}

	licenses := make([]*domain.IssuedLicense, len(models))
	for i := range models {
		l, err := models[i].toDomain()
		if err != nil {
			slog.ErrorContext(ctx, "failed to decode issued license",
				"operation", "find_all_by_application_code",
				"serial_number", models[i].SerialNumber,
				"error", err,
			)
			return nil, err
		}
		licenses[i] = l
	}
	return licenses, nil
}
