package sertype

import (
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned by Buffer accessors and by Deserialize when an
// index or length falls outside the owned bytes.
var ErrOutOfBounds = errors.New("buffer access out of bounds")

// Buffer owns a byte slice and an explicit length. Every access is checked
// against the length, never against the capacity of the backing array.
type Buffer struct {
	data   []byte
	length int
}

// NewBuffer wraps the first length bytes of data.
func NewBuffer(data []byte, length int) (*Buffer, error) {
	if length < 0 || length > len(data) {
		return nil, fmt.Errorf("%w: length %d, have %d bytes", ErrOutOfBounds, length, len(data))
	}
	return &Buffer{data: data[:length:length], length: length}, nil
}

// Len returns the number of valid bytes.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return b.length
}

// Bytes returns the valid bytes. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data[:b.length]
}

// At returns the byte at offset i.
func (b *Buffer) At(i int) (byte, error) {
	if i < 0 || i >= b.Len() {
		return 0, fmt.Errorf("%w: index %d, length %d", ErrOutOfBounds, i, b.Len())
	}
	return b.data[i], nil
}

// Slice returns n bytes starting at off.
func (b *Buffer) Slice(off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off > b.Len()-n {
		return nil, fmt.Errorf("%w: [%d:+%d], length %d", ErrOutOfBounds, off, n, b.Len())
	}
	return b.data[off : off+n], nil
}

// Release drops the backing array. The buffer reads as empty afterwards.
func (b *Buffer) Release() {
	b.data = nil
	b.length = 0
}
