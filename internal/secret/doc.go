// Package secret holds short-lived sensitive bytes (decrypted vendor keys,
// secrets typed at the CLI) in a buffer that is zeroed on Close.
//
// On Linux the backing memory is an anonymous mmap region outside the Go heap,
// locked against swap with mlock when the process's RLIMIT_MEMLOCK allows it,
// and excluded from core dumps with MADV_DONTDUMP. Elsewhere the buffer lives
// on the heap and is still zeroed on Close.
//
// Access after Close panics. Close is idempotent.
package secret
