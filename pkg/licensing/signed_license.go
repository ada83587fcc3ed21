// Package licensing はオフラインで検証可能なライセンスの発行と検証を提供する。
//
// ライセンスは発行日、有効期限、シリアル番号、ハードウェア識別子、任意のプロパティを
// 正規化テキストとして保持し、その全体に対する署名を末尾の行に持つ。
// 難読化レイヤは目視での閲覧を妨げるだけであり、内容の機密性は保証しない。
package licensing

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout は正規化テキストでの日時の書式。ロケールに依存しない。
const DateLayout = "01/02/2006 15:04:05"

// MaxExpirationDate は有効期限なしを表す。
var MaxExpirationDate = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

var errMalformedLicense = fmt.Errorf("%w: license has not a valid format", ErrInvalidFormat)

// Property はライセンスのキーと値の組。
type Property struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SignedLicense は署名付きライセンス。署名以外のフィールドは生成後に変更できない。
type SignedLicense struct {
	hardwareIdentifier string
	serialNumber       string
	issueDate          time.Time
	expirationDate     time.Time
	properties         []Property
	signature          string
}

// NewSignedLicense は未署名のライセンスを生成する。発行日は当日(UTC)となる。
// 空のハードウェア識別子・シリアル番号、ゼロ値の有効期限には既定値を使う。
func NewSignedLicense(hardwareIdentifier, serialNumber string, expirationDate time.Time, properties []Property) (*SignedLicense, error) {
	if hardwareIdentifier == "" {
		hardwareIdentifier = NoHardwareIdentifier
	}
	if serialNumber == "" {
		serialNumber = NoSerialNumber
	}
	if expirationDate.IsZero() {
		expirationDate = MaxExpirationDate
	}
	return newSignedLicense(hardwareIdentifier, serialNumber, today(), expirationDate, properties, "")
}

// newSignedLicense は値をそのまま保持する。各フィールドは正規化テキストの1行に収まらなければならない。
func newSignedLicense(hardwareIdentifier, serialNumber string, issueDate, expirationDate time.Time, properties []Property, signature string) (*SignedLicense, error) {
	if strings.ContainsAny(hardwareIdentifier, "\r\n") {
		return nil, fmt.Errorf("%w: line break is not allowed in hardware identifier", ErrInvalidFormat)
	}
	if strings.ContainsAny(serialNumber, "\r\n") {
		return nil, fmt.Errorf("%w: line break is not allowed in serial number", ErrInvalidFormat)
	}

	seen := make(map[string]bool, len(properties))
	props := make([]Property, 0, len(properties))
	for _, p := range properties {
		if strings.Contains(p.Key, ":") {
			return nil, fmt.Errorf("%w: character ':' is not allowed in property key %q", ErrInvalidFormat, p.Key)
		}
		if strings.ContainsAny(p.Key+p.Value, "\r\n") {
			return nil, fmt.Errorf("%w: line break is not allowed in property %q", ErrInvalidFormat, p.Key)
		}
		if seen[p.Key] {
			return nil, fmt.Errorf("%w: duplicate property key %q", ErrInvalidFormat, p.Key)
		}
		seen[p.Key] = true
		props = append(props, p)
	}

	return &SignedLicense{
		hardwareIdentifier: hardwareIdentifier,
		serialNumber:       serialNumber,
		issueDate:          issueDate.UTC().Truncate(time.Second),
		expirationDate:     expirationDate.UTC().Truncate(time.Second),
		properties:         props,
		signature:          signature,
	}, nil
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// HardwareIdentifier はライセンスが紐付くハードウェア識別子を返す。
func (l *SignedLicense) HardwareIdentifier() string { return l.hardwareIdentifier }

// SerialNumber はシリアル番号を返す。
func (l *SignedLicense) SerialNumber() string { return l.serialNumber }

// IssueDate は発行日を返す。
func (l *SignedLicense) IssueDate() time.Time { return l.issueDate }

// ExpirationDate は有効期限を返す。
func (l *SignedLicense) ExpirationDate() time.Time { return l.expirationDate }

// Properties は挿入順のプロパティのコピーを返す。
func (l *SignedLicense) Properties() []Property {
	out := make([]Property, len(l.properties))
	copy(out, l.properties)
	return out
}

// Property は指定されたキーの値を返す。
func (l *SignedLicense) Property(key string) (string, bool) {
	for _, p := range l.properties {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// IsSigned は署名済みか返す。
func (l *SignedLicense) IsSigned() bool {
	return l.signature != ""
}

// IsExpired は指定時刻の時点で有効期限が切れているか返す。
func (l *SignedLicense) IsExpired(now time.Time) bool {
	return l.expirationDate.Before(now)
}

// Sign は正規化テキストに署名する。再署名すると署名は上書きされる。
func (l *SignedLicense) Sign(signer Signer) error {
	if signer == nil {
		return fmt.Errorf("%w: signer must not be nil", ErrInvalidArgument)
	}
	sig, err := signer.Sign(l.canonicalText())
	if err != nil {
		return fmt.Errorf("signing license: %w", err)
	}
	l.signature = sig
	return nil
}

// Verify は署名が正規化テキストに対して有効か検証する。
func (l *SignedLicense) Verify(signer Signer) error {
	if signer == nil {
		return fmt.Errorf("%w: signer must not be nil", ErrInvalidArgument)
	}
	if l.signature == "" || !signer.Verify(l.canonicalText(), l.signature) {
		return newLicenseError(CodeInvalidSignature, "Signature of license file is not valid.")
	}
	return nil
}

// SerializeAsPlainText は署名行を含む正規化テキストを返す。
func (l *SignedLicense) SerializeAsPlainText() (string, error) {
	if l.signature == "" {
		return "", newLicenseError(CodeNotSigned, "License file is not signed.")
	}
	return l.canonicalText() + l.signature, nil
}

// Serialize は難読化したテキストを返す。
func (l *SignedLicense) Serialize() (string, error) {
	text, err := l.SerializeAsPlainText()
	if err != nil {
		return "", err
	}
	return Obfuscate(text), nil
}

// canonicalText は署名対象の5フィールドを行単位で書き出す。
func (l *SignedLicense) canonicalText() string {
	var sb strings.Builder
	writeLine(&sb, l.hardwareIdentifier)
	writeLine(&sb, l.serialNumber)
	writeLine(&sb, l.issueDate.Format(DateLayout))
	writeLine(&sb, l.expirationDate.Format(DateLayout))
	for _, p := range l.properties {
		writeLine(&sb, p.Key+":"+p.Value)
	}
	return sb.String()
}

func writeLine(sb *strings.Builder, s string) {
	sb.WriteString(s)
	sb.WriteByte('\n')
}

// Deserialize はテキストからライセンスを復元する。署名はまだ検証されていない。
// 1行目がハードウェア識別子のチェックサム検証を通れば平文、そうでなければ難読化形式とみなす。
// どの段階の失敗も同一の形式エラーとして返す。
func Deserialize(content string) (*SignedLicense, error) {
	if content == "" {
		return nil, errMalformedLicense
	}

	lines := splitLines(content)
	if len(lines) == 0 {
		return nil, errMalformedLicense
	}
	if !IsHardwareIdentifierCheckSumValid(lines[0]) {
		plain, err := Deobfuscate(unwrap(content))
		if err != nil {
			return nil, errMalformedLicense
		}
		lines = splitLines(plain)
	}

	if len(lines) < 4 {
		return nil, errMalformedLicense
	}
	l, err := parseLines(lines)
	if err != nil {
		return nil, errMalformedLicense
	}
	return l, nil
}

func parseLines(lines []string) (*SignedLicense, error) {
	issueDate, err := parseDate(lines[2])
	if err != nil {
		return nil, err
	}
	expirationDate, err := parseDate(lines[3])
	if err != nil {
		return nil, err
	}

	// 4行のみの場合、最終行は有効期限と署名を兼ねる
	var properties []Property
	for _, line := range lines[4:max(4, len(lines)-1)] {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("property line without ':'")
		}
		properties = append(properties, Property{Key: key, Value: value})
	}

	return newSignedLicense(lines[0], lines[1], issueDate, expirationDate, properties, lines[len(lines)-1])
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{DateLayout, time.RFC3339, "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// splitLines は改行で分割し、空行を除く。CRLFも受け付ける。
func splitLines(s string) []string {
	raw := strings.Split(s, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// unwrap は折り返された難読化テキストから改行を取り除く。
func unwrap(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

// Wrap は1行のテキストを指定桁数で折り返す。
func Wrap(s string, columns int) string {
	if columns < 1 || len(s) <= columns {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i += columns {
		if i > 0 {
			sb.WriteByte('\n')
		}
		end := i + columns
		if end > len(s) {
			end = len(s)
		}
		sb.WriteString(s[i:end])
	}
	return sb.String()
}
