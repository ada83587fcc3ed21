package licensing

import (
	"encoding/base64"
	"fmt"
)

// obfuscationMask はシリアライズ済みライセンスに適用する固定マスク。
// 目視での閲覧を妨げるだけで、機密性は提供しない。
var obfuscationMask = []byte{32, 45, 12, 43, 33, 1}

// Obfuscate はテキストをマスクしてbase64エンコードする。
func Obfuscate(text string) string {
	b := []byte(text)
	xorMask(b, obfuscationMask)
	return base64.StdEncoding.EncodeToString(b)
}

// Deobfuscate はObfuscateの逆変換を行う。
func Deobfuscate(s string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decoding base64: %w", err)
	}
	xorMask(b, obfuscationMask)
	return string(b), nil
}
