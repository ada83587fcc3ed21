package domain

import "errors"

var (
	// ErrKeyNotFound は指定されたアプリケーション・世代の署名鍵が存在しない場合のエラー。
	ErrKeyNotFound = errors.New("signing key not found")

	// ErrKeyAlreadyExists は指定されたアプリケーションに既に署名鍵が存在する場合のエラー。
	ErrKeyAlreadyExists = errors.New("signing key already exists")

	// ErrKeyDisabled は指定された署名鍵が無効化されている場合のエラー。
	ErrKeyDisabled = errors.New("signing key is disabled")

	// ErrKeyAlreadyDisabled は指定された署名鍵が既に無効化されている場合のエラー。
	ErrKeyAlreadyDisabled = errors.New("signing key is already disabled")

	// ErrInvalidApplicationCode はアプリケーションコードの形式が不正な場合のエラー。
	ErrInvalidApplicationCode = errors.New("invalid application code")

	// ErrInvalidGeneration は世代番号が不正な場合のエラー。
	ErrInvalidGeneration = errors.New("invalid generation")

	// ErrLicenseNotFound は指定されたシリアル番号のライセンスが存在しない場合のエラー。
	ErrLicenseNotFound = errors.New("license not found")

	// ErrInvalidLicenseRequest は発行要求の内容が不正な場合のエラー。
	ErrInvalidLicenseRequest = errors.New("invalid license request")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrMigrationFileNotFound はマイグレーションファイルが見つからない場合のエラー。
	ErrMigrationFileNotFound = errors.New("migration file not found")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)
