// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"license-management-service/internal/domain"
	"license-management-service/pkg/licensing"
)

// SigningKeyRepository は署名鍵のデータアクセスのインターフェース。
type SigningKeyRepository interface {
	ExistsByApplicationCode(ctx context.Context, applicationCode string) (bool, error)
	Create(ctx context.Context, key *domain.SigningKey) error
	FindByApplicationCodeAndGeneration(ctx context.Context, applicationCode string, generation uint) (*domain.SigningKey, error)
	FindLatestActiveByApplicationCode(ctx context.Context, applicationCode string) (*domain.SigningKey, error)
	FindActiveByApplicationCode(ctx context.Context, applicationCode string) ([]*domain.SigningKey, error)
	FindAllByApplicationCode(ctx context.Context, applicationCode string) ([]*domain.SigningKey, error)
	GetMaxGeneration(ctx context.Context, applicationCode string) (uint, error)
	UpdateStatus(ctx context.Context, id string, status domain.KeyStatus) error
}

// KMSClient は暗号化/復号のインターフェース。
type KMSClient interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// GenerationSigner は世代番号付きのSigner。
type GenerationSigner struct {
	Generation uint
	Signer     *licensing.RSASigner
}

// KeyService はライセンス署名鍵に関するビジネスロジックを提供する。
type KeyService struct {
	repo      SigningKeyRepository
	kmsClient KMSClient
	keyBits   int
}

// NewKeyService は新しいKeyServiceを生成する。
func NewKeyService(repo SigningKeyRepository, kmsClient KMSClient, keyBits int) *KeyService {
	return &KeyService{
		repo:      repo,
		kmsClient: kmsClient,
		keyBits:   keyBits,
	}
}

// normalizeApplicationCode はアプリケーションコードを大文字化して検証する。
func normalizeApplicationCode(applicationCode string) (string, error) {
	code, err := licensing.EnsureApplicationCodeIsValid(applicationCode)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidApplicationCode, err)
	}
	return code, nil
}

// newSigningKey はRSA鍵ペアを生成し、秘密鍵をKMSで暗号化する。
func (s *KeyService) newSigningKey(ctx context.Context, applicationCode string, generation uint) (*domain.SigningKey, error) {
	pair, err := licensing.GenerateRSAKeyPair(s.keyBits)
	if err != nil {
		return nil, err
	}

	encrypted, err := s.kmsClient.Encrypt(ctx, []byte(pair.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("encrypting private key: %w", err)
	}

	return &domain.SigningKey{
		ApplicationCode:     applicationCode,
		Generation:          generation,
		PublicKey:           pair.PublicKey,
		EncryptedPrivateKey: encrypted,
		Status:              domain.KeyStatusActive,
	}, nil
}

// CreateKey は指定されたアプリケーションに対して最初の署名鍵を生成する。
func (s *KeyService) CreateKey(ctx context.Context, applicationCode string) (*domain.SigningKeyMetadata, error) {
	code, err := normalizeApplicationCode(applicationCode)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByApplicationCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("checking existing key: %w", err)
	}
	if exists {
		return nil, domain.ErrKeyAlreadyExists
	}

	key, err := s.newSigningKey(ctx, code, 1)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("creating key: %w", err)
	}

	slog.InfoContext(ctx, "signing key created",
		"operation", "create_key",
		"application_code", code,
		"generation", key.Generation,
	)
	return key.Metadata(), nil
}

// GetCurrentKey は現在有効な署名鍵の公開情報を取得する。
func (s *KeyService) GetCurrentKey(ctx context.Context, applicationCode string) (*domain.SigningKeyMetadata, error) {
	code, err := normalizeApplicationCode(applicationCode)
	if err != nil {
		return nil, err
	}

	key, err := s.repo.FindLatestActiveByApplicationCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("finding current key: %w", err)
	}
	if key == nil {
		return nil, domain.ErrKeyNotFound
	}
	return key.Metadata(), nil
}

// GetKeyByGeneration は指定された世代の署名鍵の公開情報を取得する。
func (s *KeyService) GetKeyByGeneration(ctx context.Context, applicationCode string, generation uint) (*domain.SigningKeyMetadata, error) {
	key, err := s.findActive(ctx, applicationCode, generation)
	if err != nil {
		return nil, err
	}
	return key.Metadata(), nil
}

func (s *KeyService) findActive(ctx context.Context, applicationCode string, generation uint) (*domain.SigningKey, error) {
	code, err := normalizeApplicationCode(applicationCode)
	if err != nil {
		return nil, err
	}
	if generation == 0 {
		return nil, domain.ErrInvalidGeneration
	}

	key, err := s.repo.FindByApplicationCodeAndGeneration(ctx, code, generation)
	if err != nil {
		return nil, fmt.Errorf("finding key: %w", err)
	}
	if key == nil {
		return nil, domain.ErrKeyNotFound
	}
	if key.Status == domain.KeyStatusDisabled {
		return nil, domain.ErrKeyDisabled
	}
	return key, nil
}

// RotateKey は新しい世代の署名鍵を生成する。既存の世代は検証用に有効なまま残る。
func (s *KeyService) RotateKey(ctx context.Context, applicationCode string) (*domain.SigningKeyMetadata, error) {
	code, err := normalizeApplicationCode(applicationCode)
	if err != nil {
		return nil, err
	}

	maxGen, err := s.repo.GetMaxGeneration(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("getting max generation: %w", err)
	}
	if maxGen == 0 {
		return nil, domain.ErrKeyNotFound
	}

	key, err := s.newSigningKey(ctx, code, maxGen+1)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("creating key: %w", err)
	}

	slog.InfoContext(ctx, "signing key rotated",
		"operation", "rotate_key",
		"application_code", code,
		"generation", key.Generation,
	)
	return key.Metadata(), nil
}

// ListKeys は全世代の署名鍵メタデータを取得する。
func (s *KeyService) ListKeys(ctx context.Context, applicationCode string) ([]*domain.SigningKeyMetadata, error) {
	code, err := normalizeApplicationCode(applicationCode)
	if err != nil {
		return nil, err
	}

	keys, err := s.repo.FindAllByApplicationCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("finding keys: %w", err)
	}

	metadata := make([]*domain.SigningKeyMetadata, len(keys))
	for i, k := range keys {
		metadata[i] = k.Metadata()
	}
	return metadata, nil
}

// DisableKey は指定された世代の署名鍵を無効化する。
// 無効化された鍵で署名されたライセンスはサーバ側の検証に通らなくなる。
func (s *KeyService) DisableKey(ctx context.Context, applicationCode string, generation uint) error {
	code, err := normalizeApplicationCode(applicationCode)
	if err != nil {
		return err
	}

	key, err := s.repo.FindByApplicationCodeAndGeneration(ctx, code, generation)
	if err != nil {
		return fmt.Errorf("finding key: %w", err)
	}
	if key == nil {
		return domain.ErrKeyNotFound
	}
	if key.Status == domain.KeyStatusDisabled {
		return domain.ErrKeyAlreadyDisabled
	}

	if err := s.repo.UpdateStatus(ctx, key.ID, domain.KeyStatusDisabled); err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	return nil
}

// CurrentSigner は最新の有効な署名鍵の秘密鍵を復号し、署名可能なSignerを返す。
func (s *KeyService) CurrentSigner(ctx context.Context, applicationCode string) (*GenerationSigner, error) {
	code, err := normalizeApplicationCode(applicationCode)
	if err != nil {
		return nil, err
	}

	key, err := s.repo.FindLatestActiveByApplicationCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("finding current key: %w", err)
	}
	if key == nil {
		return nil, domain.ErrKeyNotFound
	}

	privateKey, err := s.kmsClient.Decrypt(ctx, key.EncryptedPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("decrypting private key: %w", err)
	}
	signer, err := licensing.NewRSASigner(string(privateKey))
	if err != nil {
		return nil, fmt.Errorf("loading private key of generation %d: %w", key.Generation, err)
	}
	return &GenerationSigner{Generation: key.Generation, Signer: signer}, nil
}

// PublicSigners は有効な全世代の公開鍵から検証用Signerを新しい順に返す。
func (s *KeyService) PublicSigners(ctx context.Context, applicationCode string) ([]*GenerationSigner, error) {
	code, err := normalizeApplicationCode(applicationCode)
	if err != nil {
		return nil, err
	}

	keys, err := s.repo.FindActiveByApplicationCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("finding active keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, domain.ErrKeyNotFound
	}

	signers := make([]*GenerationSigner, 0, len(keys))
	for _, k := range keys {
		signer, err := licensing.NewRSASigner(k.PublicKey)
		if err != nil {
			slog.ErrorContext(ctx, "failed to load public key",
				"operation", "public_signers",
				"application_code", code,
				"generation", k.Generation,
				"error", err,
			)
			return nil, fmt.Errorf("loading public key of generation %d: %w", k.Generation, err)
		}
		signers = append(signers, &GenerationSigner{Generation: k.Generation, Signer: signer})
	}
	return signers, nil
}
