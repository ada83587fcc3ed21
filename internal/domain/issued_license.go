package domain

import (
	"time"

	"license-management-service/pkg/licensing"
)

// IssuedLicense は発行済みライセンスの台帳エントリを表す。
// Contentは顧客に配布した難読化済みのライセンス文字列そのもの。
type IssuedLicense struct {
	ID                 string
	ApplicationCode    string
	KeyGeneration      uint
	SerialNumber       string
	HardwareIdentifier string
	IssueDate          time.Time
	ExpirationDate     time.Time
	Properties         []licensing.Property
	Content            string
	CreatedAt          time.Time
}
