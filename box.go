// Package bmff reads box headers of ISO Base Media File Format (ISOBMFF) streams.
//
// The core primitive is ParseHeader, a stateless function that extracts one
// box header from the front of a byte slice and tells the caller whether the
// header was parsed, needs more bytes, or is malformed. Reader and Scanner
// are built on top of it for in-memory buffers and io.Reader streams.
package bmff

import (
	"fmt"
	"strconv"
	"strings"
)

// BoxType is a 4-byte box type identifier.
type BoxType [4]byte

func (t BoxType) String() string {
	return string(t[:])
}

// Quoted returns the type as a printable string, escaping bytes outside the
// printable ASCII range as \xNN.
func (t BoxType) Quoted() string {
	var sb strings.Builder
	for _, c := range t {
		if c >= 0x20 && c < 0x7f {
			sb.WriteByte(c)
			continue
		}
		sb.WriteString(`\x`)
		sb.WriteByte(hexDigit(c >> 4))
		sb.WriteByte(hexDigit(c))
	}
	return sb.String()
}

// ParseBoxType converts a 4-character string into a BoxType.
func ParseBoxType(s string) (BoxType, error) {
	var t BoxType
	if len(s) != len(t) {
		return t, fmt.Errorf("%w: %s has %d bytes", ErrInvalidBoxType, strconv.Quote(s), len(s))
	}
	copy(t[:], s)
	return t, nil
}

// Known box types.
var (
	TypeFtyp = BoxType{'f', 't', 'y', 'p'}
	TypeStyp = BoxType{'s', 't', 'y', 'p'} // Segment type box (used in fragmented MP4)
	TypeMoov = BoxType{'m', 'o', 'o', 'v'}
	TypeMvhd = BoxType{'m', 'v', 'h', 'd'}
	TypeTrak = BoxType{'t', 'r', 'a', 'k'}
	TypeTref = BoxType{'t', 'r', 'e', 'f'}
	TypeTrgr = BoxType{'t', 'r', 'g', 'r'}
	TypeEdts = BoxType{'e', 'd', 't', 's'}
	TypeMdia = BoxType{'m', 'd', 'i', 'a'}
	TypeMinf = BoxType{'m', 'i', 'n', 'f'}
	TypeDinf = BoxType{'d', 'i', 'n', 'f'}
	TypeStbl = BoxType{'s', 't', 'b', 'l'}
	// Fragment movie boxes
	TypeMvex = BoxType{'m', 'v', 'e', 'x'}
	TypeMoof = BoxType{'m', 'o', 'o', 'f'}
	TypeTraf = BoxType{'t', 'r', 'a', 'f'}
	TypeMfra = BoxType{'m', 'f', 'r', 'a'}
	TypeSidx = BoxType{'s', 'i', 'd', 'x'} // Segment index box
	TypeEmsg = BoxType{'e', 'm', 's', 'g'} // Event message box
	// Metadata boxes
	TypeMeta = BoxType{'m', 'e', 't', 'a'}
	TypeUdta = BoxType{'u', 'd', 't', 'a'}
	TypeUuid = BoxType{'u', 'u', 'i', 'd'}
	// Data boxes
	TypeMdat = BoxType{'m', 'd', 'a', 't'}
	TypeFree = BoxType{'f', 'r', 'e', 'e'}
	TypeSkip = BoxType{'s', 'k', 'i', 'p'}
	TypeWide = BoxType{'w', 'i', 'd', 'e'}
)

// IsContainerBox returns true if the box type is a container that holds child boxes.
func IsContainerBox(t BoxType) bool {
	switch t {
	case TypeMoov, TypeTrak, TypeEdts, TypeMdia,
		TypeMinf, TypeDinf, TypeStbl, TypeUdta,
		TypeMeta, TypeMvex, TypeMoof, TypeTraf,
		TypeTref, TypeTrgr, TypeMfra:
		return true
	}
	return false
}

const hexChars = "0123456789abcdef"

// hexDigit returns the lowercase hex character for a 4-bit nibble.
func hexDigit(b byte) byte {
	return hexChars[b&0x0f]
}
