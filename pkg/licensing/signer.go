package licensing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

// Signer は正規化テキストの署名と検証を行う。
type Signer interface {
	Sign(content string) (string, error)
	// Verify は不正な署名に対してもpanicせずfalseを返す。
	Verify(content, signature string) bool
}

// SigningKeyPair は公開鍵と秘密鍵の組。どちらもbase64エンコードされたDER。
type SigningKeyPair struct {
	PublicKey  string
	PrivateKey string
}

// signatureMask は署名バイト列に適用する固定マスク。秘密ではない。
var signatureMask = []byte{2, 43, 2, 54, 199, 3, 43}

// RSASigner はSHA-512ダイジェストに対するRSA PKCS#1 v1.5署名を行う。
// 鍵素材のみを保持するため並行利用できる。
type RSASigner struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

// GenerateRSAKeyPair は新しいRSA鍵ペアを生成する。
func GenerateRSAKeyPair(bits int) (*SigningKeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generating rsa key: %w", err)
	}
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshaling public key: %w", err)
	}
	return &SigningKeyPair{
		PublicKey:  base64.StdEncoding.EncodeToString(pub),
		PrivateKey: base64.StdEncoding.EncodeToString(x509.MarshalPKCS1PrivateKey(key)),
	}, nil
}

// NewRSASigner はbase64エンコードされた秘密鍵または公開鍵からRSASignerを生成する。
func NewRSASigner(key string) (*RSASigner, error) {
	der, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("%w: key is not base64: %v", ErrInvalidArgument, err)
	}

	if priv, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return &RSASigner{privateKey: priv, publicKey: &priv.PublicKey}, nil
	}
	if parsed, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		if priv, ok := parsed.(*rsa.PrivateKey); ok {
			return &RSASigner{privateKey: priv, publicKey: &priv.PublicKey}, nil
		}
	}
	if parsed, err := x509.ParsePKIXPublicKey(der); err == nil {
		if pub, ok := parsed.(*rsa.PublicKey); ok {
			return &RSASigner{publicKey: pub}, nil
		}
	}
	if pub, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return &RSASigner{publicKey: pub}, nil
	}
	return nil, fmt.Errorf("%w: key is not an RSA key", ErrInvalidArgument)
}

// CanSign は秘密鍵を保持しているか返す。
func (s *RSASigner) CanSign() bool {
	return s.privateKey != nil
}

// Sign は内容に署名し、マスク済み署名のbase64を返す。
func (s *RSASigner) Sign(content string) (string, error) {
	if s.privateKey == nil {
		return "", fmt.Errorf("%w: private key is required for signing", ErrInvalidArgument)
	}
	digest := sha512.Sum512([]byte(content))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.privateKey, crypto.SHA512, digest[:])
	if err != nil {
		return "", fmt.Errorf("signing: %w", err)
	}
	xorMask(sig, signatureMask)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify は署名を検証する。
func (s *RSASigner) Verify(content, signature string) bool {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	xorMask(sig, signatureMask)
	digest := sha512.Sum512([]byte(content))
	return rsa.VerifyPKCS1v15(s.publicKey, crypto.SHA512, digest[:], sig) == nil
}

func xorMask(b, mask []byte) {
	for i := range b {
		b[i] ^= mask[i%len(mask)]
	}
}
