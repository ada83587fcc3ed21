package licensing

import (
	"crypto/md5"
	"strings"

	"license-management-service/pkg/checksum"
)

// NoHardwareIdentifier はハードウェアに紐付かないライセンスを表す。
const NoHardwareIdentifier = "NO_HARDWARE_ID"

const (
	hardwarePartSize = 8
	// partialEqualMaxRatio 以下なら部分一致とみなす。特性4つなら3つ中2つの一致が必要。
	partialEqualMaxRatio = 2.1
)

var (
	hardwareAppender = checksum.NewAppender(separator, checksum.MustNewDefault(4))
	hardwareEncoder  = checksum.NewDefaultEncoder(hardwarePartSize)
)

// ComputerCharacteristics は現在のコンピュータのハードウェア特性を提供する。
type ComputerCharacteristics interface {
	CharacteristicsForCurrentComputer() []string
}

// HardwareIdentifier は注入されたハードウェア特性からマシン識別子を生成する。
type HardwareIdentifier struct {
	characteristics ComputerCharacteristics
}

// NewHardwareIdentifier は新しいHardwareIdentifierを生成する。
func NewHardwareIdentifier(c ComputerCharacteristics) *HardwareIdentifier {
	return &HardwareIdentifier{characteristics: c}
}

// ForCurrentComputer は現在のコンピュータのハードウェア識別子を返す。
func (h *HardwareIdentifier) ForCurrentComputer() (string, error) {
	if h == nil || h.characteristics == nil {
		return "", ErrHardwareNotSupported
	}
	return HardwareIdentifierFor(h.characteristics.CharacteristicsForCurrentComputer())
}

// IsValidForCurrentComputer は識別子が現在のコンピュータと部分一致するか判定する。
func (h *HardwareIdentifier) IsValidForCurrentComputer(id string) (bool, error) {
	if id == NoHardwareIdentifier {
		return true, nil
	}
	current, err := h.ForCurrentComputer()
	if err != nil {
		return false, err
	}
	return ArePartialEqual(id, current), nil
}

// HardwareIdentifierFor は特性の列からハードウェア識別子を計算する。
func HardwareIdentifierFor(characteristics []string) (string, error) {
	parts := make([]string, 0, len(characteristics))
	for _, c := range characteristics {
		digest := md5.Sum([]byte(c))
		part, err := hardwareEncoder.Encode(digest[:])
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return hardwareAppender.Append(strings.Join(parts, separator))
}

// ArePartialEqual は末尾のチェックサムを除いた断片が十分に一致するか判定する。
func ArePartialEqual(id1, id2 string) bool {
	parts1 := strings.Split(id1, separator)
	parts2 := strings.Split(id2, separator)
	if len(parts1) != len(parts2) {
		return false
	}

	n := len(parts1) - 1
	matches := 0
	for i := 0; i < n; i++ {
		if parts1[i] == parts2[i] {
			matches++
		}
	}
	if matches == 0 {
		return false
	}
	return float64(n)/float64(matches) <= partialEqualMaxRatio
}

// IsHardwareIdentifierCheckSumValid はハードウェア識別子のチェックサムを検証する。
func IsHardwareIdentifierCheckSumValid(id string) bool {
	if id == NoHardwareIdentifier {
		return true
	}
	return hardwareAppender.Verify(id)
}
