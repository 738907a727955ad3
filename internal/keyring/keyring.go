// Package keyring selects and decrypts vendor keys from the shared pool.
package keyring

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/keyproxy/internal/crypto"
	"github.com/nextlevelbuilder/keyproxy/internal/secret"
	"github.com/nextlevelbuilder/keyproxy/internal/store"
)

// Keyring picks one key per call by round-robin over the vendor's pool.
// Plaintext is never cached; every selection decrypts fresh.
type Keyring struct {
	keys   store.APIKeyStore
	cipher *crypto.Cipher
	cursor Cursor
}

// New creates a Keyring. A nil cursor selects a MemoryCursor.
func New(keys store.APIKeyStore, cipher *crypto.Cipher, cursor Cursor) *Keyring {
	if cursor == nil {
		cursor = NewMemoryCursor()
	}
	return &Keyring{keys: keys, cipher: cipher, cursor: cursor}
}

// Lease is a decrypted key checked out for the duration of one upstream call.
type Lease struct {
	KeyID  uuid.UUID
	Vendor string

	once sync.Once
	buf  *secret.Buffer
}

// Secret returns the plaintext buffer. Invalid after Close.
func (l *Lease) Secret() *secret.Buffer {
	return l.buf
}

// Close zeroes the plaintext. Idempotent.
func (l *Lease) Close() error {
	var err error
	l.once.Do(func() { err = l.buf.Close() })
	return err
}

// Select returns a lease on the next key for vendor. The caller must Close it.
// Returns ErrNoKeys when the pool is empty and *IntegrityError when the
// selected key does not decrypt.
func (k *Keyring) Select(ctx context.Context, vendor string) (*Lease, error) {
	rows, err := k.keys.ListKeysForVendor(ctx, vendor)
	if err != nil {
		return nil, fmt.Errorf("list keys for %s: %w", vendor, err)
	}
	if len(rows) == 0 {
		return nil, ErrNoKeys
	}

	row := rows[k.cursor.Next(ctx, vendor)%uint64(len(rows))]

	plain, err := k.cipher.Decrypt(row.Ciphertext)
	if err != nil {
		return nil, &IntegrityError{KeyID: row.ID, Vendor: vendor, Err: err}
	}
	buf, err := secret.NewFromBytes(plain)
	if err != nil {
		secret.Zero(plain)
		return nil, &IntegrityError{KeyID: row.ID, Vendor: vendor, Err: err}
	}
	return &Lease{KeyID: row.ID, Vendor: vendor, buf: buf}, nil
}

// Do selects a key, runs fn with the lease and closes the lease when fn returns.
func (k *Keyring) Do(ctx context.Context, vendor string, fn func(*Lease) error) error {
	lease, err := k.Select(ctx, vendor)
	if err != nil {
		return err
	}
	defer lease.Close()
	return fn(lease)
}
