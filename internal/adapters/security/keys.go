package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// PEMKeyProvider holds the decryption private key parsed once at startup.
type PEMKeyProvider struct {
	key *rsa.PrivateKey
}

// NewPEMKeyProvider parses an RSA private key from PEM material in either
// PKCS#8 or PKCS#1 form.
func NewPEMKeyProvider(pemData string) (*PEMKeyProvider, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("no PEM block found in private key material")
	}
	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("private key is not RSA")
		}
		return &PEMKeyProvider{key: rsaKey}, nil
	}
	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &PEMKeyProvider{key: rsaKey}, nil
}

// NewStaticKeyProvider wraps an already parsed key; test fixtures use this.
func NewStaticKeyProvider(key *rsa.PrivateKey) *PEMKeyProvider {
	return &PEMKeyProvider{key: key}
}

func (p *PEMKeyProvider) PrivateKey() *rsa.PrivateKey { return p.key }
