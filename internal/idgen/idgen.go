// Package idgen generates document IDs for collections that declare
// id.auto. The generators are small and dependency-free, minimal
// hand-rolled helpers for this class of concern.
package idgen

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/groundlabs/grounddb/internal/schema"
)

// Generate returns a new ID for the given auto-generation kind.
func Generate(kind schema.IDAuto) (string, error) {
	switch kind {
	case schema.IDAutoUUID:
		return uuid.New().String(), nil
	case schema.IDAutoULID:
		return newULID(time.Now())
	case schema.IDAutoNanoID:
		return newNanoID(21)
	default:
		return "", fmt.Errorf("idgen: unknown auto kind %q", kind)
	}
}

// crockfordAlphabet is ULID's base32 alphabet (Crockford, no I/L/O/U).
const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// newULID encodes a 48-bit millisecond timestamp followed by 80 bits of
// randomness as 26 Crockford-base32 characters, lexicographically sortable
// by creation time like a real ULID.
func newULID(t time.Time) (string, error) {
	var data [16]byte

	ms := uint64(t.UnixMilli())
	data[0] = byte(ms >> 40)
	data[1] = byte(ms >> 32)
	data[2] = byte(ms >> 24)
	data[3] = byte(ms >> 16)
	data[4] = byte(ms >> 8)
	data[5] = byte(ms)

	if _, err := rand.Read(data[6:]); err != nil {
		return "", fmt.Errorf("idgen: reading randomness: %w", err)
	}

	return encodeCrockford(data[:]), nil
}

// encodeCrockford renders 16 bytes (128 bits) as 26 base32 characters.
func encodeCrockford(data []byte) string {
	var b strings.Builder
	b.Grow(26)

	var bitBuf uint64
	var bitCount uint

	flush := func() {
		for bitCount >= 5 {
			bitCount -= 5
			idx := (bitBuf >> bitCount) & 0x1F
			b.WriteByte(crockfordAlphabet[idx])
		}
	}

	for _, by := range data {
		bitBuf = (bitBuf << 8) | uint64(by)
		bitCount += 8
		flush()
	}

	if bitCount > 0 {
		idx := (bitBuf << (5 - bitCount)) & 0x1F
		b.WriteByte(crockfordAlphabet[idx])
	}

	return b.String()
}

// nanoIDAlphabet mirrors the reference nanoid implementation's default
// URL-safe alphabet.
const nanoIDAlphabet = "_-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

func newNanoID(size int) (string, error) {
	bytes := make([]byte, size)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("idgen: reading randomness: %w", err)
	}

	out := make([]byte, size)
	for i, b := range bytes {
		out[i] = nanoIDAlphabet[b&63]
	}

	return string(out), nil
}
