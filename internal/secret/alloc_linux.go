//go:build linux

package secret

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// allocate maps anonymous memory outside the Go heap. mlock and
// MADV_DONTDUMP are best effort: containers commonly run with a small
// RLIMIT_MEMLOCK, and a gateway that refuses keys under memory pressure is
// worse than one whose pages may be swapped.
func allocate(size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, nil, fmt.Errorf("secret: mmap failed: %w", err)
	}

	locked := unix.Mlock(data) == nil
	_ = unix.Madvise(data, unix.MADV_DONTDUMP)

	release := func(b []byte) error {
		var firstError error
		if locked {
			if err := unix.Munlock(b); err != nil {
				firstError = fmt.Errorf("secret: munlock failed: %w", err)
			}
		}
		if err := unix.Munmap(b); err != nil && firstError == nil {
			firstError = fmt.Errorf("secret: munmap failed: %w", err)
		}
		return firstError
	}
	return data, release, nil
}
