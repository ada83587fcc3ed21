package licensing

import (
	"errors"

	"license-management-service/pkg/checksum"
)

var (
	// ErrInvalidArgument は引数が不正な場合のエラー。
	ErrInvalidArgument = checksum.ErrInvalidArgument

	// ErrInvalidFormat は入力の形式が不正な場合のエラー。
	ErrInvalidFormat = errors.New("invalid format")

	// ErrHardwareNotSupported はハードウェア特性の取得手段が設定されていない場合のエラー。
	ErrHardwareNotSupported = errors.New("hardware identifier is not supported without computer characteristics")

	// ErrLicense は全てのLicenseErrorにマッチする。
	ErrLicense = errors.New("license error")
)

// ErrorCode はLicenseErrorの種別を表す。
type ErrorCode string

const (
	CodeNotSigned               ErrorCode = "NOT_SIGNED"
	CodeInvalidSignature        ErrorCode = "INVALID_SIGNATURE"
	CodeExpired                 ErrorCode = "EXPIRED"
	CodeApplicationCodeMismatch ErrorCode = "APPLICATION_CODE_MISMATCH"
	CodeHardwareMismatch        ErrorCode = "HARDWARE_MISMATCH"
)

// LicenseError はライセンス検証の失敗を表す唯一のドメインエラー。
// 呼び出し側はCodeで分岐し、Messageを利用者に提示する。
type LicenseError struct {
	Code    ErrorCode
	Message string
}

func (e *LicenseError) Error() string {
	return e.Message
}

// Is はErrLicenseとの比較を許可する。
func (e *LicenseError) Is(target error) bool {
	return target == ErrLicense
}

// HasCode はerrが指定されたコードのLicenseErrorか判定する。
func HasCode(err error, code ErrorCode) bool {
	var le *LicenseError
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

func newLicenseError(code ErrorCode, msg string) *LicenseError {
	return &LicenseError{Code: code, Message: msg}
}
