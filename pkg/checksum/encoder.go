package checksum

import "fmt"

// encoderSeed はマスク列を生成する乱数生成器の固定シード。
// 全プロセス・全マシンで同じ値でなければ、同じハードウェア特性から同じ断片が得られなくなる。
const encoderSeed = 99

// Encoder はバイト列を固定長の文字列へ決定的に写像する。
type Encoder struct {
	alphabet []byte
	length   int
}

// NewEncoder は文字集合と出力長を指定してEncoderを生成する。
// lengthが負の場合は入力長を出力長として使う。
func NewEncoder(alphabet string, length int) *Encoder {
	return &Encoder{alphabet: []byte(alphabet), length: length}
}

// NewDefaultEncoder は標準文字集合でEncoderを生成する。
func NewDefaultEncoder(length int) *Encoder {
	return NewEncoder(Alphabet, length)
}

// Encode はバイト列をエンコードする。
func (e *Encoder) Encode(b []byte) (string, error) {
	if b == nil {
		return "", fmt.Errorf("%w: bytes must not be nil", ErrInvalidArgument)
	}
	length := e.length
	if length < 0 {
		length = len(b)
	}
	return e.encode(b, length)
}

// EncodeString は文字列のUTF-8表現をエンコードする。
func (e *Encoder) EncodeString(s string) (string, error) {
	length := e.length
	if length < 0 {
		length = len(s)
	}
	return e.encode([]byte(s), length)
}

func (e *Encoder) encode(b []byte, length int) (string, error) {
	if length == 0 {
		return "", nil
	}
	if len(b) == 0 {
		return "", fmt.Errorf("%w: cannot encode empty input to length %d", ErrInvalidArgument, length)
	}
	if len(e.alphabet) == 0 {
		return "", fmt.Errorf("%w: alphabet must not be empty", ErrInvalidArgument)
	}

	buf := newSubtractiveRandom(encoderSeed).bytes(length)
	for i := range buf {
		buf[i] ^= b[i%len(b)]
	}
	return mapBytes(buf, e.alphabet), nil
}
