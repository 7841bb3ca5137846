// Package framing layers a record protocol onto a ring.Buffer: a
// producer appends a payload chunk followed by a fixed separator
// keyword, and a consumer repeatedly locates the separator, extracts
// the payload in front of it, and discards the separator bytes.
package framing

import (
	"encoding/binary"
	"errors"

	"github.com/danmuck/streamring/ring"
)

var (
	ErrSeparatorLen = errors.New("framing: separator length out of range")
	ErrNoRecord     = errors.New("framing: no complete record buffered")
)

// Separator is the keyword delimiter written after each record payload.
// On the wire it is the low Len bytes of Value, most-significant byte
// first, regardless of host byte order.
type Separator struct {
	Value uint32
	Len   int
}

func (s Separator) Validate() error {
	if s.Len < 1 || s.Len > ring.MaxKeywordLen {
		return ErrSeparatorLen
	}
	return nil
}

// Bytes returns the separator's wire bytes.
func (s Separator) Bytes() []byte {
	var word [4]byte
	binary.BigEndian.PutUint32(word[:], s.Value)
	return word[4-s.Len:]
}

// Writer appends separator-delimited records to a ring.Buffer.
type Writer struct {
	buf *ring.Buffer
	sep Separator
}

func NewWriter(buf *ring.Buffer, sep Separator) (*Writer, error) {
	if err := sep.Validate(); err != nil {
		return nil, err
	}
	return &Writer{buf: buf, sep: sep}, nil
}

// WriteRecord appends payload followed by the separator as one logical
// unit. When the buffer cannot hold both, it fails with
// ring.ErrInsufficientSpace and writes nothing, so a failed record never
// leaves a partial frame behind.
func (w *Writer) WriteRecord(payload []byte) error {
	if w.buf.Length()+len(payload)+w.sep.Len > w.buf.Capacity() {
		return ring.ErrInsufficientSpace
	}
	if err := w.buf.WriteSpan(payload); err != nil {
		return err
	}
	return w.buf.InsertKeyword(w.sep.Value, w.sep.Len)
}

// Scanner extracts separator-delimited records from a ring.Buffer.
type Scanner struct {
	buf *ring.Buffer
	sep Separator
}

func NewScanner(buf *ring.Buffer, sep Separator) (*Scanner, error) {
	if err := sep.Validate(); err != nil {
		return nil, err
	}
	return &Scanner{buf: buf, sep: sep}, nil
}

// Next locates the nearest separator, consumes the payload in front of
// it, and discards the separator bytes. It returns ErrNoRecord when no
// complete record is buffered yet; partially received payloads stay in
// the buffer untouched. Back-to-back separators yield empty payloads.
func (s *Scanner) Next() ([]byte, error) {
	distance, err := s.buf.FindKeyword(s.sep.Value, s.sep.Len)
	if err != nil {
		if errors.Is(err, ring.ErrKeywordNotFound) {
			return nil, ErrNoRecord
		}
		return nil, err
	}
	payload := make([]byte, distance-1)
	if err := s.buf.ReadSpan(payload); err != nil {
		return nil, err
	}
	if err := s.buf.Delete(s.sep.Len); err != nil {
		return nil, err
	}
	return payload, nil
}

// Buffered reports the bytes currently held, complete records or not.
func (s *Scanner) Buffered() int {
	return s.buf.Length()
}
