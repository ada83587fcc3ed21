package licensing

import (
	"errors"
	"fmt"
	"time"
)

// Verifier はライセンスの署名、アプリケーションコード、ハードウェア、有効期限を検証する。
type Verifier struct {
	signer          Signer
	applicationCode string
	hardware        *HardwareIdentifier
	hardwareID      string
	now             func() time.Time
	err             error
}

// NewVerifier は新しいVerifierを生成する。
func NewVerifier() *Verifier {
	return &Verifier{now: time.Now}
}

// WithSigner は署名の検証に使うSignerを設定する。
func (v *Verifier) WithSigner(signer Signer) *Verifier {
	if signer == nil {
		v.fail(fmt.Errorf("%w: signer must not be nil", ErrInvalidArgument))
		return v
	}
	v.signer = signer
	return v
}

// WithRSAPublicKey はbase64エンコードされたRSA公開鍵で検証する。
func (v *Verifier) WithRSAPublicKey(publicKey string) *Verifier {
	signer, err := NewRSASigner(publicKey)
	if err != nil {
		v.fail(err)
		return v
	}
	return v.WithSigner(signer)
}

// WithApplicationCode はシリアル番号のアプリケーションコードを検証対象にする。
func (v *Verifier) WithApplicationCode(code string) *Verifier {
	code, err := EnsureApplicationCodeIsValid(code)
	if err != nil {
		v.fail(err)
		return v
	}
	v.applicationCode = code
	return v
}

// WithoutApplicationCode はアプリケーションコードを検証しない。
func (v *Verifier) WithoutApplicationCode() *Verifier {
	v.applicationCode = ""
	return v
}

// WithComputerCharacteristics は現在のコンピュータとハードウェア識別子を照合する。
func (v *Verifier) WithComputerCharacteristics(c ComputerCharacteristics) *Verifier {
	v.hardware = NewHardwareIdentifier(c)
	return v
}

// WithHardwareIdentifier は指定された識別子とハードウェア識別子を照合する。
// 発行サーバなど、検証対象のマシン上で動かない場合に使う。
func (v *Verifier) WithHardwareIdentifier(id string) *Verifier {
	v.hardwareID = id
	return v
}

// WithClock は有効期限の判定に使う時計を差し替える。
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	if now != nil {
		v.now = now
	}
	return v
}

// LoadAndVerify はライセンスを復元し、全ての検証を行う。
func (v *Verifier) LoadAndVerify(content string) (*SignedLicense, error) {
	if v.err != nil {
		return nil, v.err
	}
	if v.signer == nil {
		return nil, fmt.Errorf("%w: signer is required", ErrInvalidArgument)
	}

	l, err := Deserialize(content)
	if err != nil {
		return nil, err
	}
	if err := l.Verify(v.signer); err != nil {
		return nil, err
	}

	if v.applicationCode != "" {
		ok, err := IsApplicationCodeValid(l.SerialNumber(), v.applicationCode)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, newLicenseError(CodeApplicationCodeMismatch,
				fmt.Sprintf("Application Code '%s' is not valid for the license.", v.applicationCode))
		}
	}

	ok, err := v.isHardwareValid(l.HardwareIdentifier())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newLicenseError(CodeHardwareMismatch, "License has been activated for another computer.")
	}

	if l.IsExpired(v.now().UTC()) {
		return nil, newLicenseError(CodeExpired,
			fmt.Sprintf("License has been expired since '%s'.", l.ExpirationDate().Format(DateLayout)))
	}
	return l, nil
}

// LoadFromSource はソースからライセンスを読み込んで検証する。
// ソースにライセンスがない場合は(nil, nil)を返す。
func (v *Verifier) LoadFromSource(src LicenseSource) (*SignedLicense, error) {
	content, err := src.Read()
	if err != nil {
		return nil, fmt.Errorf("reading license: %w", err)
	}
	if content == "" {
		return nil, nil
	}
	return v.LoadAndVerify(content)
}

func (v *Verifier) isHardwareValid(id string) (bool, error) {
	if id == NoHardwareIdentifier {
		return true, nil
	}
	if v.hardwareID != "" {
		return ArePartialEqual(id, v.hardwareID), nil
	}
	return v.hardware.IsValidForCurrentComputer(id)
}

func (v *Verifier) fail(err error) {
	v.err = errors.Join(v.err, err)
}
