package ports

import (
	"context"
	"crypto/rsa"

	"github.com/viralforge/mesh/services/integrations/M34-change-notification-service/internal/domain"
)

// ValidationTokenVerifier checks one bearer validation token against the
// issuing authority's key set and the configured audience/issuer. All failure
// modes collapse to false: the caller's policy is all-or-nothing over a batch.
type ValidationTokenVerifier interface {
	Verify(ctx context.Context, raw string) bool
}

// PayloadDecryptor unwraps, verifies and decrypts a rich notification payload,
// returning the parsed plaintext document. Failures are *domain.DecryptionError
// values carrying the failure kind.
type PayloadDecryptor interface {
	Decrypt(content domain.EncryptedContent) (map[string]any, error)
}

// PrivateKeyProvider supplies the asymmetric key used for session-key unwrap.
// The key is loaded once at process start and read-only thereafter.
type PrivateKeyProvider interface {
	PrivateKey() *rsa.PrivateKey
}
