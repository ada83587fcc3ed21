package licensing

import (
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
	"strings"

	"license-management-service/pkg/checksum"
)

// NoSerialNumber はシリアル番号に紐付かないライセンスを表す。
const NoSerialNumber = "NO_SERIAL_NO"

const (
	serialPrefix        = "SN"
	serialFragmentSize  = 4
	serialFragmentCount = 3
	separator           = "-"
)

var (
	applicationCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	serialAppender       = checksum.NewAppender(separator, checksum.MustNewDefault(serialFragmentSize))
	serialEncoder        = checksum.NewDefaultEncoder(serialFragmentSize)
)

// EnsureApplicationCodeIsValid はアプリケーションコードを大文字化して検証する。
func EnsureApplicationCodeIsValid(code string) (string, error) {
	code = strings.ToUpper(code)
	if !applicationCodeRegex.MatchString(code) {
		return "", fmt.Errorf("%w: application code %q has to consist of 3 capital letters", ErrInvalidFormat, code)
	}
	return code, nil
}

// NewSerialNumber はアプリケーションコード付きのシリアル番号を生成する。
// 形式: SN{AppCode}-{Fragment}-{Fragment}-{Fragment}-{CheckSum}
func NewSerialNumber(code string) (string, error) {
	return NewSerialNumberFrom(code, rand.Reader)
}

// NewSerialNumberFrom は乱数源を指定してシリアル番号を生成する。
func NewSerialNumberFrom(code string, random io.Reader) (string, error) {
	code, err := EnsureApplicationCodeIsValid(code)
	if err != nil {
		return "", err
	}

	fragments := make([]string, serialFragmentCount)
	for i := range fragments {
		b := make([]byte, serialFragmentSize)
		if _, err := io.ReadFull(random, b); err != nil {
			return "", fmt.Errorf("reading random bytes: %w", err)
		}
		fragments[i], err = serialEncoder.Encode(b)
		if err != nil {
			return "", err
		}
	}
	return buildSerialNumber(code, fragments)
}

// EmptySerialNumber は全ての断片が"0000"のシリアル番号を生成する。
func EmptySerialNumber(code string) (string, error) {
	code, err := EnsureApplicationCodeIsValid(code)
	if err != nil {
		return "", err
	}
	fragments := make([]string, serialFragmentCount)
	for i := range fragments {
		fragments[i] = strings.Repeat("0", serialFragmentSize)
	}
	return buildSerialNumber(code, fragments)
}

func buildSerialNumber(code string, fragments []string) (string, error) {
	return serialAppender.Append(serialPrefix + code + separator + strings.Join(fragments, separator))
}

// IsSerialNumberCheckSumValid はシリアル番号のチェックサムを検証する。
// NoSerialNumberの扱いは呼び出し側の責務。
func IsSerialNumberCheckSumValid(serial string) bool {
	return serialAppender.Verify(serial)
}

// IsApplicationCodeValid はシリアル番号が指定されたアプリケーションコードを持つか判定する。
func IsApplicationCodeValid(serial, code string) (bool, error) {
	if serial == NoSerialNumber {
		return true, nil
	}
	code, err := EnsureApplicationCodeIsValid(code)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(serial, serialPrefix+code), nil
}
