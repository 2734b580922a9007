package bmff

import (
	"encoding/binary"
	"errors"
)

var be = binary.BigEndian

// Header sizes in bytes.
const (
	BasicHeaderSize    = 8  // size(4) + type(4)
	ExtendedHeaderSize = 16 // size(4) + type(4) + largesize(8)
)

// Header is a parsed box header.
type Header struct {
	Size       uint64 // total box size including header; 0 means the box extends to the end of its enclosing stream
	Type       BoxType
	HeaderSize int // bytes consumed by the header (8 or 16)
}

// ExtendsToEnd reports whether the header carries the size 0 sentinel.
// The parser does not know the enclosing stream length, so the caller
// must resolve it.
func (h Header) ExtendsToEnd() bool { return h.Size == 0 }

// PayloadSize returns the number of bytes following the header that belong
// to the box. It returns false for boxes that extend to the end of the stream.
func (h Header) PayloadSize() (uint64, bool) {
	if h.ExtendsToEnd() {
		return 0, false
	}
	return h.Size - uint64(h.HeaderSize), true
}

// IsContainer reports whether the box type is a known container.
func (h Header) IsContainer() bool { return IsContainerBox(h.Type) }

// ParseHeader extracts one box header from the front of b.
//
// On success it returns the header and the bytes after it; the returned
// slice shares b's backing array. If b is a valid prefix of a header that
// is too short to finish, the error is an *IncompleteError; append more
// bytes and call ParseHeader again from the same start. If the declared
// size cannot hold the header, the error is a *MalformedError.
//
// ParseHeader keeps no state, does not modify b and is safe for concurrent use.
//
//	size(32) type(32) [largesize(64) if size == 1]
func ParseHeader(b []byte) (Header, []byte, error) {
	if len(b) < 4 {
		return Header{}, nil, &IncompleteError{Needed: 4 - len(b)}
	}
	raw := be.Uint32(b)

	if len(b) < BasicHeaderSize {
		return Header{}, nil, &IncompleteError{Needed: BasicHeaderSize - len(b)}
	}
	h := Header{
		Size:       uint64(raw),
		HeaderSize: BasicHeaderSize,
	}
	copy(h.Type[:], b[4:8])

	if raw == 1 {
		if len(b) < ExtendedHeaderSize {
			return Header{}, nil, &IncompleteError{Needed: ExtendedHeaderSize - len(b)}
		}
		h.Size = be.Uint64(b[8:16])
		h.HeaderSize = ExtendedHeaderSize
		if h.Size < ExtendedHeaderSize {
			return Header{}, nil, &MalformedError{Type: h.Type, Size: h.Size, HeaderSize: h.HeaderSize}
		}
	} else if raw != 0 && raw < BasicHeaderSize {
		return Header{}, nil, &MalformedError{Type: h.Type, Size: h.Size, HeaderSize: h.HeaderSize}
	}

	return h, b[h.HeaderSize:], nil
}

// Status names the outcome of a ParseHeader call.
type Status uint8

const (
	Parsed Status = iota
	Incomplete
	Malformed
)

func (s Status) String() string {
	switch s {
	case Parsed:
		return "parsed"
	case Incomplete:
		return "incomplete"
	case Malformed:
		return "malformed"
	}
	return "unknown"
}

// Outcome classifies an error returned by ParseHeader.
func Outcome(err error) Status {
	switch {
	case err == nil:
		return Parsed
	case errors.Is(err, ErrIncomplete):
		return Incomplete
	default:
		return Malformed
	}
}
