package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"license-management-service/internal/domain"
	"license-management-service/pkg/licensing"
)

const tracerName = "license-management-service/internal/usecase"

// LicenseRepository は発行済みライセンスのデータアクセスのインターフェース。
type LicenseRepository interface {
	Create(ctx context.Context, license *domain.IssuedLicense) error
	FindBySerialNumber(ctx context.Context, applicationCode, serialNumber string) (*domain.IssuedLicense, error)
	FindAllByApplicationCode(ctx context.Context, applicationCode string) ([]*domain.IssuedLicense, error)
}

// SignerProvider は署名・検証に使う鍵を提供する。
type SignerProvider interface {
	CurrentSigner(ctx context.Context, applicationCode string) (*GenerationSigner, error)
	PublicSigners(ctx context.Context, applicationCode string) ([]*GenerationSigner, error)
}

// IssueLicenseInput はライセンス発行の入力。
type IssueLicenseInput struct {
	ApplicationCode    string
	HardwareIdentifier string    // 空ならハードウェアに紐付けない
	ExpirationDate     time.Time // ゼロ値なら有効期限なし
	Properties         []licensing.Property
}

// VerifyLicenseInput はライセンス検証の入力。
type VerifyLicenseInput struct {
	ApplicationCode    string
	Content            string
	HardwareIdentifier string // 空ならハードウェアを照合しない
}

// VerifyLicenseResult はライセンス検証の結果。
type VerifyLicenseResult struct {
	License       *licensing.SignedLicense
	KeyGeneration uint
}

// LicenseService はライセンスの発行と検証のビジネスロジックを提供する。
type LicenseService struct {
	repo    LicenseRepository
	signers SignerProvider
	now     func() time.Time
}

// NewLicenseService は新しいLicenseServiceを生成する。
func NewLicenseService(repo LicenseRepository, signers SignerProvider) *LicenseService {
	return &LicenseService{
		repo:    repo,
		signers: signers,
		now:     time.Now,
	}
}

// IssueLicense はシリアル番号を採番し、現在の署名鍵で署名したライセンスを発行・記録する。
func (s *LicenseService) IssueLicense(ctx context.Context, input IssueLicenseInput) (_ *domain.IssuedLicense, err error) {
	ctx, span := startSpan(ctx, "LicenseService.IssueLicense", input.ApplicationCode)
	defer func() { endSpan(span, err) }()

	code, err := normalizeApplicationCode(input.ApplicationCode)
	if err != nil {
		return nil, err
	}
	if err := s.validateIssueInput(input); err != nil {
		return nil, err
	}

	serial, err := licensing.NewSerialNumber(code)
	if err != nil {
		return nil, fmt.Errorf("generating serial number: %w", err)
	}

	current, err := s.signers.CurrentSigner(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("loading signer: %w", err)
	}

	b := licensing.NewBuilder().
		WithSigner(current.Signer).
		WithHardwareIdentifier(input.HardwareIdentifier).
		WithSerialNumber(serial).
		ExpiresOn(input.ExpirationDate)
	for _, p := range input.Properties {
		b.WithProperty(p.Key, p.Value)
	}
	license, err := b.SignAndCreate()
	if err != nil {
		if errors.Is(err, licensing.ErrInvalidFormat) || errors.Is(err, licensing.ErrInvalidArgument) {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidLicenseRequest, err)
		}
		return nil, fmt.Errorf("signing license: %w", err)
	}

	content, err := license.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serializing license: %w", err)
	}

	issued := &domain.IssuedLicense{
		ApplicationCode:    code,
		KeyGeneration:      current.Generation,
		SerialNumber:       license.SerialNumber(),
		HardwareIdentifier: license.HardwareIdentifier(),
		IssueDate:          license.IssueDate(),
		ExpirationDate:     license.ExpirationDate(),
		Properties:         license.Properties(),
		Content:            content,
	}
	if err := s.repo.Create(ctx, issued); err != nil {
		return nil, fmt.Errorf("recording license: %w", err)
	}
	span.SetAttributes(
		attribute.String("license.serial_number", issued.SerialNumber),
		attribute.Int64("license.key_generation", int64(issued.KeyGeneration)),
	)

	slog.InfoContext(ctx, "license issued",
		"operation", "issue_license",
		"application_code", code,
		"serial_number", issued.SerialNumber,
		"key_generation", issued.KeyGeneration,
	)
	return issued, nil
}

func (s *LicenseService) validateIssueInput(input IssueLicenseInput) error {
	hw := input.HardwareIdentifier
	if hw != "" && !licensing.IsHardwareIdentifierCheckSumValid(hw) {
		return fmt.Errorf("%w: hardware identifier %q has an invalid checksum", domain.ErrInvalidLicenseRequest, hw)
	}
	if !input.ExpirationDate.IsZero() && input.ExpirationDate.Before(s.now()) {
		return fmt.Errorf("%w: expiration date is in the past", domain.ErrInvalidLicenseRequest)
	}
	return nil
}

// VerifyLicense は有効な全世代の公開鍵でライセンスを検証する。
// 署名エラーの場合のみ次の世代を試し、それ以外の検証エラーはそのまま返す。
func (s *LicenseService) VerifyLicense(ctx context.Context, input VerifyLicenseInput) (_ *VerifyLicenseResult, err error) {
	ctx, span := startSpan(ctx, "LicenseService.VerifyLicense", input.ApplicationCode)
	defer func() { endSpan(span, err) }()

	code, err := normalizeApplicationCode(input.ApplicationCode)
	if err != nil {
		return nil, err
	}

	parsed, err := licensing.Deserialize(input.Content)
	if err != nil {
		return nil, err
	}
	hardwareID := input.HardwareIdentifier
	if hardwareID == "" {
		hardwareID = parsed.HardwareIdentifier()
	}

	signers, err := s.signers.PublicSigners(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("loading public keys: %w", err)
	}

	var lastErr error
	for _, gs := range signers {
		license, err := licensing.NewVerifier().
			WithSigner(gs.Signer).
			WithApplicationCode(code).
			WithHardwareIdentifier(hardwareID).
			WithClock(s.now).
			LoadAndVerify(input.Content)
		if err == nil {
			span.SetAttributes(
				attribute.String("license.serial_number", license.SerialNumber()),
				attribute.Int64("license.key_generation", int64(gs.Generation)),
			)
			return &VerifyLicenseResult{License: license, KeyGeneration: gs.Generation}, nil
		}
		if !licensing.HasCode(err, licensing.CodeInvalidSignature) {
			slog.InfoContext(ctx, "license rejected",
				"operation", "verify_license",
				"application_code", code,
				"serial_number", parsed.SerialNumber(),
				"key_generation", gs.Generation,
				"error", err,
			)
			return nil, err
		}
		lastErr = err
	}

	slog.InfoContext(ctx, "license signature not valid for any active key",
		"operation", "verify_license",
		"application_code", code,
		"serial_number", parsed.SerialNumber(),
		"keys", len(signers),
	)
	return nil, lastErr
}

// ListLicenses はアプリケーションの発行済みライセンスを新しい順に取得する。
func (s *LicenseService) ListLicenses(ctx context.Context, applicationCode string) ([]*domain.IssuedLicense, error) {
	code, err := normalizeApplicationCode(applicationCode)
	if err != nil {
		return nil, err
	}

	licenses, err := s.repo.FindAllByApplicationCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("finding licenses: %w", err)
	}
	return licenses, nil
}

// GetLicense はシリアル番号で発行済みライセンスを取得する。
func (s *LicenseService) GetLicense(ctx context.Context, applicationCode, serialNumber string) (*domain.IssuedLicense, error) {
	code, err := normalizeApplicationCode(applicationCode)
	if err != nil {
		return nil, err
	}

	license, err := s.repo.FindBySerialNumber(ctx, code, serialNumber)
	if err != nil {
		return nil, fmt.Errorf("finding license: %w", err)
	}
	if license == nil {
		return nil, domain.ErrLicenseNotFound
	}
	return license, nil
}

func startSpan(ctx context.Context, name, applicationCode string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name,
		trace.WithAttributes(attribute.String("license.application_code", strings.ToUpper(applicationCode))),
	)
}

// endSpan は検証の拒否も含めてエラーをスパンに記録して終了する。
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
