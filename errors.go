package bmff

import (
	"errors"
	"fmt"
)

var (
	// ErrIncomplete indicates the input holds a valid prefix of a box header
	// but not enough bytes to finish it. Retry with more input.
	ErrIncomplete = errors.New("bmff: incomplete box header")

	// ErrMalformed indicates a structurally invalid box header. More input
	// will not fix it.
	ErrMalformed = errors.New("bmff: malformed box header")

	// ErrTruncatedBox indicates a box whose declared size runs past the end
	// of the enclosing buffer or stream.
	ErrTruncatedBox = errors.New("bmff: box extends past end of data")

	// ErrInvalidBoxType indicates a string that cannot be used as a FourCC.
	ErrInvalidBoxType = errors.New("bmff: box type must be exactly 4 bytes")
)

// IncompleteError reports how many more bytes are needed before the header
// can be parsed. It matches ErrIncomplete with errors.Is.
type IncompleteError struct {
	Needed int // additional bytes required to finish the field being read
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%s: need %d more bytes", ErrIncomplete, e.Needed)
}

func (e *IncompleteError) Is(target error) bool {
	return target == ErrIncomplete
}

// MalformedError describes a header whose declared size cannot hold the
// header itself. It matches ErrMalformed with errors.Is.
type MalformedError struct {
	Type       BoxType
	Size       uint64 // declared size (largesize for extended headers)
	HeaderSize int
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: [%s] size %d is smaller than its %d-byte header",
		ErrMalformed, e.Type.Quoted(), e.Size, e.HeaderSize)
}

func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformed
}
