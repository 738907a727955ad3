package secret

import (
	"crypto/subtle"
	"errors"
	"sync"
)

// Buffer holds sensitive data that is zeroed on Close.
//
// A Buffer must not be copied after creation.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	length int
	closed bool
	// release returns the backing memory to the system after zeroing.
	release func([]byte) error
}

// New allocates a zero-filled buffer of the given size.
// The caller must call Close when the secret is no longer needed.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, errors.New("secret: buffer size must be positive")
	}
	data, release, err := allocate(size)
	if err != nil {
		return nil, err
	}
	return &Buffer{data: data, length: size, release: release}, nil
}

// NewFromBytes copies source into a new buffer and zeroes source in place,
// so the caller's slice no longer holds the secret.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, errors.New("secret: cannot create buffer from empty source")
	}

	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buffer.data, source)
	Zero(source)
	return buffer, nil
}

// Bytes returns the secret data. The slice points into the buffer's memory;
// do not retain it past Close. Panics if the buffer has been closed.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}
	return b.data[:b.length]
}

// String returns a heap copy of the secret for APIs that need a string
// (HTTP header values). Prefer Bytes. Panics if the buffer has been closed.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}
	return string(b.data[:b.length])
}

// Len returns the size of the secret data.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

// Equal reports whether the buffer holds exactly other, in constant time.
func (b *Buffer) Equal(other []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}
	return subtle.ConstantTimeCompare(b.data[:b.length], other) == 1
}

// Closed reports whether Close has been called.
func (b *Buffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Close zeroes the contents and releases the memory. Idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	Zero(b.data)
	var err error
	if b.release != nil {
		err = b.release(b.data)
	}
	b.data = nil
	return err
}

// Zero overwrites data with zeros.
func Zero(data []byte) {
	for index := range data {
		data[index] = 0
	}
}
