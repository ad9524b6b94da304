package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently.
	ErrNotFound = errors.New("resource not found")
	// ErrBatchInvalid means at least one validation token in the batch failed
	// verification; the whole batch is suppressed, never partially processed.
	ErrBatchInvalid = errors.New("validation token check failed for batch")
	// ErrUnauthenticated hides whether the client state or the subscription
	// lookup failed, to avoid leaking which per-notification check tripped.
	ErrUnauthenticated = errors.New("notification unauthenticated")
)

// Decryption failure kinds. SignatureInvalid is security-relevant: the
// ciphertext must never be decrypted once the signature check has failed.
const (
	DecryptionMalformed        = "malformed"
	DecryptionKeyUnwrapFailed  = "key_unwrap_failed"
	DecryptionSignatureInvalid = "signature_invalid"
)

// DecryptionError is the terminal failure of decrypting a single notification's
// rich payload. It never aborts processing of sibling notifications.
type DecryptionError struct {
	Kind string
	Err  error
}

func (e *DecryptionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("decryption failed: %s", e.Kind)
	}
	return fmt.Sprintf("decryption failed: %s: %v", e.Kind, e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// DecryptionKind extracts the failure kind, or "" when err is not a DecryptionError.
func DecryptionKind(err error) string {
	var de *DecryptionError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
