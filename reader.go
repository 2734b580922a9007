package bmff

import "fmt"

// Reader walks the sibling boxes of an in-memory buffer. The buffer is the
// enclosing stream, so a size 0 box is resolved to the end of the buffer.
//
// Reader does not descend into children. To walk a container, create a new
// Reader over its Data.
type Reader struct {
	buf []byte
	pos int // next position to parse from
	err error

	// Current box state
	hdr      Header
	boxStart int
	boxEnd   int
}

// NewReader creates a Reader for the given buffer.
func NewReader(buf []byte) Reader {
	return Reader{buf: buf}
}

// Next advances to the next sibling box. Returns false if no more boxes
// or on error; check Err after the loop.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	// Skip past current box
	if r.boxEnd > r.pos {
		r.pos = r.boxEnd
	}
	if r.pos >= len(r.buf) {
		return false
	}

	h, _, err := ParseHeader(r.buf[r.pos:])
	if err != nil {
		r.err = fmt.Errorf("at offset %d: %w", r.pos, err)
		return false
	}

	avail := uint64(len(r.buf) - r.pos)
	if h.Size == 0 {
		h.Size = avail
	}
	if h.Size > avail {
		r.err = fmt.Errorf("at offset %d: [%s] size %d, %d bytes left: %w",
			r.pos, h.Type.Quoted(), h.Size, avail, ErrTruncatedBox)
		return false
	}

	r.hdr = h
	r.boxStart = r.pos
	r.boxEnd = r.pos + int(h.Size)
	return true
}

// Err returns the error that stopped iteration, if any.
func (r *Reader) Err() error { return r.err }

// Header returns the current box header with size 0 resolved.
func (r *Reader) Header() Header { return r.hdr }

// Type returns the current box's type.
func (r *Reader) Type() BoxType { return r.hdr.Type }

// Size returns the current box's total size including header.
func (r *Reader) Size() uint64 { return r.hdr.Size }

// Offset returns the byte offset of the current box's start in the buffer.
func (r *Reader) Offset() int { return r.boxStart }

// HeaderSize returns the size of the current box's header in bytes.
func (r *Reader) HeaderSize() int { return r.hdr.HeaderSize }

// Data returns the current box's payload.
// Note that, the returned slice points into the original buffer.
func (r *Reader) Data() []byte {
	return r.buf[r.boxStart+r.hdr.HeaderSize : r.boxEnd]
}

// RawBox returns the entire current box including header.
// Note that, the returned slice points into the original buffer.
func (r *Reader) RawBox() []byte {
	return r.buf[r.boxStart:r.boxEnd]
}
