package vfs

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
)

// Bytes is an immutable, cheaply cloned byte buffer with a precomputed
// content hash for fast equality checks.
type Bytes struct {
	data     []byte
	fastHash uint64
}

// NewBytes wraps data as an immutable Bytes value. Callers must not mutate
// data after the call.
func NewBytes(data []byte) Bytes {
	return Bytes{data: data, fastHash: xxhash.Sum64(data)}
}

// Data returns the underlying byte slice. Callers must treat it as
// read-only.
func (b Bytes) Data() []byte {
	return b.data
}

// FastHash returns the precomputed xxhash digest.
func (b Bytes) FastHash() uint64 {
	return b.fastHash
}

// Len reports the content length in bytes.
func (b Bytes) Len() int {
	return len(b.data)
}

// Equal performs a cheap hash comparison before falling back to a full
// byte-for-byte comparison, so repeated identical overlays are nearly free.
func (b Bytes) Equal(o Bytes) bool {
	if b.fastHash != o.fastHash {
		return false
	}
	return bytes.Equal(b.data, o.data)
}
