package licensing

import (
	"errors"
	"fmt"
	"time"
)

// Builder は署名付きライセンスを組み立てる。
// 途中で発生したエラーは記録され、SignAndCreateで返される。
type Builder struct {
	signer             Signer
	hardwareIdentifier string
	serialNumber       string
	expirationDate     time.Time
	properties         []Property
	err                error
}

// NewBuilder は新しいBuilderを生成する。
func NewBuilder() *Builder {
	return &Builder{
		hardwareIdentifier: NoHardwareIdentifier,
		serialNumber:       NoSerialNumber,
		expirationDate:     MaxExpirationDate,
	}
}

// WithSigner は署名に使うSignerを設定する。
func (b *Builder) WithSigner(signer Signer) *Builder {
	if signer == nil {
		b.fail(fmt.Errorf("%w: signer must not be nil", ErrInvalidArgument))
		return b
	}
	b.signer = signer
	return b
}

// WithRSAPrivateKey はbase64エンコードされたRSA秘密鍵で署名する。
func (b *Builder) WithRSAPrivateKey(privateKey string) *Builder {
	signer, err := NewRSASigner(privateKey)
	if err != nil {
		b.fail(err)
		return b
	}
	if !signer.CanSign() {
		b.fail(fmt.Errorf("%w: private key is required", ErrInvalidArgument))
		return b
	}
	return b.WithSigner(signer)
}

// WithHardwareIdentifier はライセンスをハードウェア識別子に紐付ける。
func (b *Builder) WithHardwareIdentifier(id string) *Builder {
	if id == "" {
		id = NoHardwareIdentifier
	}
	b.hardwareIdentifier = id
	return b
}

// WithoutHardwareIdentifier はハードウェアに紐付けない。
func (b *Builder) WithoutHardwareIdentifier() *Builder {
	b.hardwareIdentifier = NoHardwareIdentifier
	return b
}

// WithSerialNumber はシリアル番号を設定する。
func (b *Builder) WithSerialNumber(serial string) *Builder {
	if serial == "" {
		serial = NoSerialNumber
	}
	b.serialNumber = serial
	return b
}

// WithoutSerialNumber はシリアル番号を設定しない。
func (b *Builder) WithoutSerialNumber() *Builder {
	b.serialNumber = NoSerialNumber
	return b
}

// ExpiresOn は有効期限を設定する。
func (b *Builder) ExpiresOn(t time.Time) *Builder {
	b.expirationDate = t
	return b
}

// ExpiresIn は現在時刻からの有効期間を設定する。
func (b *Builder) ExpiresIn(d time.Duration) *Builder {
	b.expirationDate = time.Now().UTC().Add(d)
	return b
}

// WithoutExpiration は有効期限なしとする。
func (b *Builder) WithoutExpiration() *Builder {
	b.expirationDate = MaxExpirationDate
	return b
}

// WithProperty はプロパティを追加する。キーに':'を含めることはできない。
func (b *Builder) WithProperty(key, value string) *Builder {
	for _, p := range b.properties {
		if p.Key == key {
			b.fail(fmt.Errorf("%w: property %q is already set", ErrInvalidArgument, key))
			return b
		}
	}
	b.properties = append(b.properties, Property{Key: key, Value: value})
	return b
}

// SignAndCreate はライセンスを生成して署名する。
func (b *Builder) SignAndCreate() (*SignedLicense, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.signer == nil {
		return nil, fmt.Errorf("%w: signer is required", ErrInvalidArgument)
	}

	l, err := NewSignedLicense(b.hardwareIdentifier, b.serialNumber, b.expirationDate, b.properties)
	if err != nil {
		return nil, err
	}
	if err := l.Sign(b.signer); err != nil {
		return nil, err
	}
	return l, nil
}

func (b *Builder) fail(err error) {
	b.err = errors.Join(b.err, err)
}
