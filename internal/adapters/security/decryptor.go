package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/domain"
	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/ports"
)

// PayloadDecryptor implements the remote graph service's rich-payload
// protocol: RSA-OAEP unwrap of the session key, HMAC-SHA256 verification of
// the ciphertext, then AES-256-CBC decryption with the IV taken from the
// first block of the session key. The step order is a security invariant:
// the ciphertext is never decrypted after a failed signature check.
type PayloadDecryptor struct {
	keys ports.PrivateKeyProvider
}

func NewPayloadDecryptor(keys ports.PrivateKeyProvider) *PayloadDecryptor {
	return &PayloadDecryptor{keys: keys}
}

func (d *PayloadDecryptor) Decrypt(content domain.EncryptedContent) (map[string]any, error) {
	wrappedKey, err := base64.StdEncoding.DecodeString(content.DataKey)
	if err != nil {
		return nil, malformed("decode data key", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(content.Data)
	if err != nil {
		return nil, malformed("decode data", err)
	}
	signature, err := base64.StdEncoding.DecodeString(content.DataSignature)
	if err != nil {
		return nil, malformed("decode data signature", err)
	}

	// The remote service wraps the session key with RSA-OAEP over SHA-1;
	// anything else here breaks wire compatibility.
	sessionKey, err := rsa.DecryptOAEP(sha1.New(), nil, d.keys.PrivateKey(), wrappedKey, nil)
	if err != nil {
		return nil, &domain.DecryptionError{Kind: domain.DecryptionKeyUnwrapFailed, Err: err}
	}

	mac := hmac.New(sha256.New, sessionKey)
	mac.Write(ciphertext)
	if !hmac.Equal(mac.Sum(nil), signature) {
		return nil, &domain.DecryptionError{Kind: domain.DecryptionSignatureInvalid}
	}

	plaintext, err := decryptAESCBC(sessionKey, ciphertext)
	if err != nil {
		return nil, malformed("decrypt payload", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return nil, malformed("parse payload", err)
	}
	return doc, nil
}

func decryptAESCBC(sessionKey, ciphertext []byte) ([]byte, error) {
	if len(sessionKey) < aes.BlockSize {
		return nil, errors.New("session key shorter than one block")
	}
	block, err := aes.NewCipher(sessionKey)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext is not a whole number of blocks")
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, sessionKey[:aes.BlockSize]).CryptBlocks(plaintext, ciphertext)
	return stripPKCS7(plaintext)
}

func stripPKCS7(padded []byte) ([]byte, error) {
	if len(padded) == 0 {
		return nil, errors.New("empty plaintext")
	}
	pad := int(padded[len(padded)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(padded) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range padded[len(padded)-pad:] {
		if int(b) != pad {
			return nil, errors.New("invalid padding")
		}
	}
	return padded[:len(padded)-pad], nil
}

func malformed(step string, err error) error {
	return &domain.DecryptionError{
		Kind: domain.DecryptionMalformed,
		Err:  fmt.Errorf("%s: %w", step, err),
	}
}
