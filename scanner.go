package bmff

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
)

// DefaultBufferSize is the number of bytes a Scanner requests per read.
const DefaultBufferSize = 4096

// maxEmptyReads bounds consecutive (0, nil) reads before giving up.
const maxEmptyReads = 100

// ScanEntry represents a top-level box discovered by the Scanner.
type ScanEntry struct {
	Type       BoxType
	Size       uint64 // total box size including header
	Offset     int64  // byte offset from start of stream
	HeaderSize int    // header size (8 or 16 bytes)
	ToEnd      bool   // size 0 box on a non-seekable stream; Size is unknown
}

// DataSize returns the size of the box data (excluding the header).
// It is 0 for ToEnd entries.
func (e ScanEntry) DataSize() uint64 {
	if e.ToEnd {
		return 0
	}
	return e.Size - uint64(e.HeaderSize)
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithBufferSize sets how many bytes the Scanner requests per read.
func WithBufferSize(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.chunk = n
		}
	}
}

// Scanner reads top-level box headers from a stream of unknown length
// without loading box contents into memory. It feeds ParseHeader with
// whatever bytes have arrived and reads more whenever the header is
// incomplete, then skips the box data: by seeking when the reader is an
// io.Seeker, by discarding otherwise.
//
// Typical usage:
//
//	sc := bmff.NewScanner(conn)
//	for sc.Next() {
//	    e := sc.Entry()
//	    if e.Type == bmff.TypeMoov {
//	        buf := make([]byte, e.DataSize())
//	        sc.ReadBody(buf)
//	        // parse moov contents...
//	    }
//	}
//	if err := sc.Err(); err != nil { ... }
type Scanner struct {
	r      io.Reader
	seeker io.Seeker // nil when r cannot seek
	base   int64     // seeker position when the scan started
	end    int64     // stream length relative to base, -1 until known

	store []byte // backing array for buf
	buf   []byte // bytes read from r but not consumed yet
	chunk int
	eof   bool

	entry     ScanEntry
	pos       int64  // stream offset of buf[0]
	remaining uint64 // current box data not yet consumed
	toEnd     bool   // current box runs to the end of the stream
	done      bool
	err       error
}

// NewScanner creates a Scanner that reads box headers from r.
func NewScanner(r io.Reader, opts ...ScannerOption) *Scanner {
	s := &Scanner{r: r, chunk: DefaultBufferSize, end: -1}
	for _, opt := range opts {
		opt(s)
	}
	// Pipes and terminals implement io.Seeker but fail on Seek.
	if seeker, ok := r.(io.Seeker); ok {
		if base, err := seeker.Seek(0, io.SeekCurrent); err == nil {
			s.seeker = seeker
			s.base = base
		}
	}
	return s
}

// Next advances to the next top-level box. Returns false when there
// are no more boxes or an error occurs. Check Err() after the loop.
func (s *Scanner) Next() bool {
	return s.NextContext(context.Background())
}

// NextContext is like Next but stops with ctx.Err() when ctx is done
// before a complete header has arrived.
func (s *Scanner) NextContext(ctx context.Context) bool {
	if s.err != nil || s.done {
		return false
	}
	if s.toEnd {
		s.done = true
		return false
	}
	if err := s.skip(); err != nil {
		s.err = err
		return false
	}

	for {
		h, _, err := ParseHeader(s.buf)
		if err == nil {
			return s.accept(h)
		}
		if !errors.Is(err, ErrIncomplete) {
			s.err = fmt.Errorf("at offset %d: %w", s.pos, err)
			return false
		}
		if s.eof {
			if len(s.buf) > 0 {
				s.err = fmt.Errorf("at offset %d: %w: %w", s.pos, io.ErrUnexpectedEOF, err)
			}
			s.done = true
			return false
		}
		if err := ctx.Err(); err != nil {
			s.err = err
			return false
		}
		if err := s.fill(); err != nil {
			s.err = err
			return false
		}
	}
}

// accept records h as the current entry and consumes its header bytes.
func (s *Scanner) accept(h Header) bool {
	e := ScanEntry{
		Type:       h.Type,
		Size:       h.Size,
		Offset:     s.pos,
		HeaderSize: h.HeaderSize,
	}
	s.buf = s.buf[h.HeaderSize:]
	s.pos += int64(h.HeaderSize)
	s.toEnd = false

	if h.ExtendsToEnd() {
		end, ok, err := s.streamEnd()
		if err != nil {
			s.err = err
			return false
		}
		if ok {
			// Box extends to end of file; determine remaining size
			e.Size = uint64(end - e.Offset)
		} else {
			e.ToEnd = true
			s.toEnd = true
		}
	}

	s.entry = e
	s.remaining = e.DataSize()
	return true
}

// skip consumes whatever is left of the current box's data.
func (s *Scanner) skip() error {
	if s.remaining == 0 {
		return nil
	}
	n := min(uint64(len(s.buf)), s.remaining)
	s.buf = s.buf[n:]
	s.pos += int64(n)
	s.remaining -= n
	if s.remaining == 0 {
		return nil
	}

	if s.remaining > math.MaxInt64-uint64(s.pos) {
		return s.truncated()
	}
	skip := int64(s.remaining)

	if s.seeker != nil {
		end, _, err := s.streamEnd()
		if err != nil {
			return err
		}
		if s.pos+skip > end {
			return s.truncated()
		}
		if _, err := s.seeker.Seek(skip, io.SeekCurrent); err != nil {
			return err
		}
	} else {
		n, err := io.CopyN(io.Discard, s.r, skip)
		s.pos += n
		s.remaining -= uint64(n)
		if err == io.EOF {
			s.eof = true
			return s.truncated()
		}
		if err != nil {
			return err
		}
		return nil
	}

	s.pos += skip
	s.remaining = 0
	return nil
}

func (s *Scanner) truncated() error {
	e := s.entry
	return fmt.Errorf("at offset %d: [%s] size %d: %w: %w",
		e.Offset, e.Type.Quoted(), e.Size, ErrTruncatedBox, io.ErrUnexpectedEOF)
}

// fill reads one chunk from r and appends it to buf.
func (s *Scanner) fill() error {
	if len(s.buf) == 0 {
		s.buf = s.store[:0]
	}
	if cap(s.buf)-len(s.buf) < s.chunk {
		n := len(s.buf)
		if cap(s.store) < n+s.chunk {
			s.store = make([]byte, 0, n+s.chunk)
		}
		s.buf = append(s.store[:0], s.buf...)
	}

	n := len(s.buf)
	for range maxEmptyReads {
		m, err := s.r.Read(s.buf[n : n+s.chunk])
		if m < 0 || m > s.chunk {
			return fmt.Errorf("bmff: reader returned invalid count %d from Read", m)
		}
		s.buf = s.buf[:n+m]
		if err == io.EOF {
			s.eof = true
			return nil
		}
		if err != nil {
			return err
		}
		if m > 0 {
			return nil
		}
	}
	return io.ErrNoProgress
}

// streamEnd returns the stream length relative to the scan start. It
// reports false when the stream is not seekable.
func (s *Scanner) streamEnd() (int64, bool, error) {
	if s.seeker == nil {
		return 0, false, nil
	}
	if s.end < 0 {
		cur, err := s.seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, false, err
		}
		end, err := s.seeker.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, false, err
		}
		// Seek back to where we were
		if _, err := s.seeker.Seek(cur, io.SeekStart); err != nil {
			return 0, false, err
		}
		s.end = end - s.base
	}
	return s.end, true, nil
}

// Entry returns the current box entry. Only valid after Next returns true.
func (s *Scanner) Entry() ScanEntry {
	return s.entry
}

// Err returns the first error encountered by the Scanner. A stream that
// ends cleanly on a box boundary is not an error.
func (s *Scanner) Err() error {
	return s.err
}

// Body returns a reader over the part of the current box's data that has
// not been consumed yet. Bytes read through it are not skipped again by
// the next call to Next. For ToEnd entries the reader runs to EOF.
func (s *Scanner) Body() io.Reader {
	return bodyReader{s}
}

// ReadBody reads the current box's data (excluding header) into buf.
// buf must be exactly DataSize() bytes and the data must not have been
// read through Body.
func (s *Scanner) ReadBody(buf []byte) error {
	if s.toEnd || uint64(len(buf)) != s.remaining || s.remaining != s.entry.DataSize() {
		return fmt.Errorf("bmff: ReadBody needs the full %d-byte body of [%s], have %d unread",
			s.entry.DataSize(), s.entry.Type.Quoted(), s.remaining)
	}
	if _, err := io.ReadFull(s.Body(), buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return s.truncated()
		}
		return err
	}
	return nil
}

type bodyReader struct{ s *Scanner }

func (b bodyReader) Read(p []byte) (int, error) {
	s := b.s
	if !s.toEnd {
		if s.remaining == 0 {
			return 0, io.EOF
		}
		if uint64(len(p)) > s.remaining {
			p = p[:s.remaining]
		}
	}

	var n int
	var err error
	if len(s.buf) > 0 {
		n = copy(p, s.buf)
		s.buf = s.buf[n:]
	} else if s.eof {
		err = io.EOF
	} else {
		n, err = s.r.Read(p)
		if err == io.EOF {
			s.eof = true
		}
	}

	s.pos += int64(n)
	if !s.toEnd {
		s.remaining -= uint64(n)
		if err == io.EOF && s.remaining > 0 {
			err = io.ErrUnexpectedEOF
		}
	}
	return n, err
}
