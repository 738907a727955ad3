package keyring

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNoKeys is returned when the vendor has no keys in the pool.
	ErrNoKeys = errors.New("keyring: no keys available")

	// ErrKeyIntegrity is wrapped by IntegrityError.
	ErrKeyIntegrity = errors.New("keyring: key integrity error")
)

// IntegrityError reports a stored key that failed to decrypt under the
// master key: wrong key, corruption or tampering.
type IntegrityError struct {
	KeyID  uuid.UUID
	Vendor string
	Err    error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("keyring: key %s for vendor %q failed to decrypt: %v", e.KeyID, e.Vendor, e.Err)
}

func (e *IntegrityError) Unwrap() []error {
	return []error{ErrKeyIntegrity, e.Err}
}
