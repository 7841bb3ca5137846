package ring

import (
	"encoding/binary"
	"errors"
)

// MaxKeywordLen is the widest supported keyword, four bytes (32 bits).
const MaxKeywordLen = 4

var (
	ErrKeywordLen      = errors.New("ring: keyword length out of range")
	ErrKeywordNotFound = errors.New("ring: keyword not found")
)

// InsertKeyword serializes the low kwLen bytes of kw most-significant
// byte first, independent of host byte order, and appends them via
// WriteSpan. A 4-byte keyword 0xCCFB22AA lands in the stream as
// CC FB 22 AA.
func (b *Buffer) InsertKeyword(kw uint32, kwLen int) error {
	if kwLen < 1 || kwLen > MaxKeywordLen {
		return ErrKeywordLen
	}
	var word [4]byte
	binary.BigEndian.PutUint32(word[:], kw)
	return b.WriteSpan(word[4-kwLen:])
}

// FindKeyword scans the stored window from the read offset for the first
// position whose kwLen consecutive bytes, reconstructed big-endian,
// equal kw. It returns the 1-based distance from the read offset to the
// first matched byte (distance 1 means the match starts at the read
// offset), so a framed payload is distance-1 bytes long. Exactly
// stored-kwLen+1 candidate positions are examined; it fails with
// ErrKeywordNotFound when none match. The buffer is not mutated.
func (b *Buffer) FindKeyword(kw uint32, kwLen int) (int, error) {
	if kwLen < 1 || kwLen > MaxKeywordLen {
		return 0, ErrKeywordLen
	}
	if b.stored < kwLen {
		return 0, ErrKeywordNotFound
	}
	// Cheap first-byte filter before reconstructing the full word.
	lead := byte(kw >> (uint(kwLen-1) * 8))
	pos := b.readPos
	for distance := 1; distance <= b.stored-kwLen+1; distance++ {
		if b.store[pos] == lead && b.wordAt(pos, kwLen) == kw {
			return distance, nil
		}
		pos = b.advance(pos, 1)
	}
	return 0, ErrKeywordNotFound
}

// wordAt reconstructs n bytes starting at pos into a big-endian word.
// Callers guarantee pos and n lie within the stored window.
func (b *Buffer) wordAt(pos, n int) uint32 {
	var word uint32
	for i := 0; i < n; i++ {
		word = word<<8 | uint32(b.store[pos])
		pos = b.advance(pos, 1)
	}
	return word
}
