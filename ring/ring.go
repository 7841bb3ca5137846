// Package ring implements a fixed-capacity circular byte buffer with
// keyword-based framing support. The buffer binds to a caller-supplied
// backing store and tracks three cursors: the read offset, the write
// offset, and the count of stored bytes. It is not safe for concurrent
// use; producer and consumer must coordinate externally.
package ring

import "errors"

var (
	ErrCapacityTooSmall  = errors.New("ring: capacity too small")
	ErrBufferFull        = errors.New("ring: buffer full")
	ErrBufferEmpty       = errors.New("ring: buffer empty")
	ErrInsufficientSpace = errors.New("ring: insufficient space")
	ErrInsufficientData  = errors.New("ring: insufficient data")
)

// Buffer is a fixed-capacity circular byte buffer. The zero value is not
// usable; construct one with New.
type Buffer struct {
	store    []byte
	capacity int
	readPos  int
	writePos int
	stored   int
}

// New binds a Buffer to store. The Buffer takes exclusive ownership of
// store for its lifetime; callers must not alias it. The capacity is
// len(store) and must be at least 2 (one slot is reserved by byte-wise
// writes to disambiguate full from empty).
func New(store []byte) (*Buffer, error) {
	if len(store) < 2 {
		return nil, ErrCapacityTooSmall
	}
	return &Buffer{store: store, capacity: len(store)}, nil
}

// advance moves a cursor n positions forward, wrapping at capacity.
func (b *Buffer) advance(pos, n int) int {
	return (pos + n) % b.capacity
}

// WriteByte appends one byte. It fails with ErrBufferFull when stored
// bytes reach capacity-1: byte-wise writes reserve one slot, unlike
// WriteSpan which may fill the buffer completely.
func (b *Buffer) WriteByte(c byte) error {
	if b.stored == b.capacity-1 {
		return ErrBufferFull
	}
	b.store[b.writePos] = c
	b.writePos = b.advance(b.writePos, 1)
	b.stored++
	return nil
}

// ReadByte consumes and returns the oldest stored byte. It fails with
// ErrBufferEmpty when nothing is stored; stale bytes are never exposed.
func (b *Buffer) ReadByte() (byte, error) {
	if b.stored == 0 {
		return 0, ErrBufferEmpty
	}
	c := b.store[b.readPos]
	b.readPos = b.advance(b.readPos, 1)
	b.stored--
	return c, nil
}

// WriteSpan appends all of p, splitting the copy in two when it crosses
// the physical end of the store. Unlike WriteByte it checks against the
// raw capacity, so span writes may occupy every slot. It fails with
// ErrInsufficientSpace and writes nothing when p does not fit.
func (b *Buffer) WriteSpan(p []byte) error {
	if b.stored+len(p) > b.capacity {
		return ErrInsufficientSpace
	}
	tailRoom := b.capacity - b.writePos
	if len(p) > tailRoom {
		copy(b.store[b.writePos:], p[:tailRoom])
		copy(b.store, p[tailRoom:])
		b.writePos = len(p) - tailRoom
	} else {
		copy(b.store[b.writePos:], p)
		b.writePos = b.advance(b.writePos, len(p))
	}
	b.stored += len(p)
	return nil
}

// ReadSpan consumes exactly len(out) bytes into out, mirroring
// WriteSpan's split-copy across the wrap boundary. It fails with
// ErrInsufficientData and consumes nothing when fewer bytes are stored.
func (b *Buffer) ReadSpan(out []byte) error {
	if len(out) > b.stored {
		return ErrInsufficientData
	}
	tailRoom := b.capacity - b.readPos
	if len(out) > tailRoom {
		copy(out[:tailRoom], b.store[b.readPos:])
		copy(out[tailRoom:], b.store)
		b.readPos = len(out) - tailRoom
	} else {
		copy(out, b.store[b.readPos:b.readPos+len(out)])
		b.readPos = b.advance(b.readPos, len(out))
	}
	b.stored -= len(out)
	return nil
}

// Delete discards n stored bytes without copying them out, advancing the
// read offset circularly. It fails with ErrInsufficientData and discards
// nothing when n exceeds the stored count. Typically used to consume a
// separator located by FindKeyword.
func (b *Buffer) Delete(n int) error {
	if n > b.stored {
		return ErrInsufficientData
	}
	b.readPos = b.advance(b.readPos, n)
	b.stored -= n
	return nil
}

// Length returns the count of stored, unread bytes.
func (b *Buffer) Length() int {
	return b.stored
}

// FreeSpace returns capacity minus the stored count. Note that WriteByte
// refuses the final slot, so a return of 1 still means WriteByte fails.
func (b *Buffer) FreeSpace() int {
	return b.capacity - b.stored
}

// Capacity returns the total slot count of the backing store.
func (b *Buffer) Capacity() int {
	return b.capacity
}
