package checksum

// Appender は値とそのチェックサムを区切り文字で連結する。
type Appender struct {
	separator string
	checksum  *Checksum
}

// NewAppender は新しいAppenderを生成する。
func NewAppender(separator string, c *Checksum) *Appender {
	return &Appender{separator: separator, checksum: c}
}

// Append は値の末尾に区切り文字とチェックサムを付与する。
func (a *Appender) Append(value string) (string, error) {
	sum, err := a.checksum.Create([]byte(value))
	if err != nil {
		return "", err
	}
	return value + a.separator + sum, nil
}

// Verify は末尾のチェックサムが値と一致するか検証する。
// チェックサムを含むには短すぎる入力はfalseとなる。
func (a *Appender) Verify(text string) bool {
	prefixLen := len(text) - a.checksum.Length() - len(a.separator)
	if prefixLen <= 0 {
		return false
	}
	prefix := text[:prefixLen]
	sum, err := a.checksum.Create([]byte(prefix))
	if err != nil {
		return false
	}
	return text == prefix+a.separator+sum
}
