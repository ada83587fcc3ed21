// Package checksum は人手で入力される識別子向けの固定長チェックサムと決定的エンコーダを提供する。
package checksum

import (
	"errors"
	"fmt"
	"strings"
)

// Alphabet は標準の出力文字集合 [A-Z][0-9]。
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ErrInvalidArgument は引数が不正な場合のエラー。
var ErrInvalidArgument = errors.New("invalid argument")

// Checksum はバイト列から固定長の文字列を生成する。
// 暗号学的な衝突耐性はなく、入力ミスや破損の検出のみを目的とする。
type Checksum struct {
	alphabet []byte
	length   int
}

// New は指定された文字集合と長さでChecksumを生成する。
func New(alphabet string, length int) (*Checksum, error) {
	chars := dedup(alphabet)
	if len(chars) == 0 {
		return nil, fmt.Errorf("%w: alphabet must not be empty", ErrInvalidArgument)
	}
	if length <= 0 {
		return nil, fmt.Errorf("%w: length must be positive, got %d", ErrInvalidArgument, length)
	}
	return &Checksum{alphabet: chars, length: length}, nil
}

// NewDefault は標準文字集合でChecksumを生成する。
func NewDefault(length int) (*Checksum, error) {
	return New(Alphabet, length)
}

// MustNewDefault はNewDefaultの失敗時にpanicする版。パッケージ変数の初期化用。
func MustNewDefault(length int) *Checksum {
	c, err := NewDefault(length)
	if err != nil {
		panic(err)
	}
	return c
}

// Length はチェックサムの長さを返す。
func (c *Checksum) Length() int {
	return c.length
}

// Create は指定されたバイト列のチェックサムを生成する。
func (c *Checksum) Create(b []byte) (string, error) {
	if b == nil {
		return "", fmt.Errorf("%w: bytes must not be nil", ErrInvalidArgument)
	}
	return mapBytes(adjustSize(b, c.length), c.alphabet), nil
}

// adjustSize はバイト列を長さnに正規化する。
// 長い場合は循環XORで畳み込み、短い場合は循環XORで敷き詰める。
func adjustSize(b []byte, n int) []byte {
	switch {
	case len(b) == n:
		return b
	case len(b) > n:
		out := make([]byte, n)
		for i, v := range b {
			out[i%n] ^= v
		}
		return out
	default:
		out := make([]byte, n)
		if len(b) == 0 {
			return out
		}
		for i := range out {
			out[i] ^= b[i%len(b)]
		}
		return out
	}
}

func mapBytes(b []byte, alphabet []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, v := range b {
		sb.WriteByte(alphabet[int(v)%len(alphabet)])
	}
	return sb.String()
}

// dedup は出現順を保ったまま重複文字を除去する。
func dedup(s string) []byte {
	seen := make(map[byte]bool, len(s))
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if seen[s[i]] {
			continue
		}
		seen[s[i]] = true
		out = append(out, s[i])
	}
	return out
}
