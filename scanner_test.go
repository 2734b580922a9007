package bmff

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// --- Helpers ---

// unseekable hides the io.Seeker of the wrapped reader.
type unseekable struct{ r io.Reader }

func (u unseekable) Read(p []byte) (int, error) { return u.r.Read(p) }

// pipeLike implements io.Seeker but fails like a pipe does.
type pipeLike struct{ io.Reader }

func (pipeLike) Seek(int64, int) (int64, error) { return 0, errors.New("illegal seek") }

// stalled never returns data or an error.
type stalled struct{}

func (stalled) Read([]byte) (int, error) { return 0, nil }

func collectEntries(t *testing.T, sc *Scanner) []ScanEntry {
	t.Helper()
	var entries []ScanEntry
	for sc.Next() {
		entries = append(entries, sc.Entry())
	}
	return entries
}

var wantTestFile = []ScanEntry{
	{Type: TypeFtyp, Size: 24, Offset: 0, HeaderSize: 8},
	{Type: TypeMoov, Size: 28, Offset: 24, HeaderSize: 8},
	{Type: TypeFree, Size: 8, Offset: 52, HeaderSize: 8},
	{Type: TypeMdat, Size: 21, Offset: 60, HeaderSize: 16},
}

// --- Scanner Test Suite ---

type ScannerTestSuite struct {
	suite.Suite
	data []byte
}

func (s *ScannerTestSuite) SetupTest() {
	s.data = testFile()
}

func (s *ScannerTestSuite) readers() map[string]func() io.Reader {
	return map[string]func() io.Reader{
		"Seekable":        func() io.Reader { return bytes.NewReader(s.data) },
		"Unseekable":      func() io.Reader { return unseekable{bytes.NewReader(s.data)} },
		"OneByte":         func() io.Reader { return iotest.OneByteReader(bytes.NewReader(s.data)) },
		"HalfReader":      func() io.Reader { return iotest.HalfReader(bytes.NewReader(s.data)) },
		"DataErr":         func() io.Reader { return iotest.DataErrReader(bytes.NewReader(s.data)) },
		"PipeLikeSeeker":  func() io.Reader { return pipeLike{bytes.NewReader(s.data)} },
		"SeekableTinyBuf": func() io.Reader { return bytes.NewReader(s.data) },
	}
}

func (s *ScannerTestSuite) TestEntries() {
	for name, open := range s.readers() {
		s.Run(name, func() {
			var opts []ScannerOption
			if name == "SeekableTinyBuf" {
				opts = append(opts, WithBufferSize(3))
			}
			sc := NewScanner(open(), opts...)
			entries := collectEntries(s.T(), sc)
			s.Require().NoError(sc.Err())
			s.Assert().Equal(wantTestFile, entries)
		})
	}
}

func (s *ScannerTestSuite) TestBufferSizes() {
	for _, size := range []int{1, 7, 8, 9, 16, 17, 4096} {
		sc := NewScanner(bytes.NewReader(s.data), WithBufferSize(size))
		s.Assert().Equal(wantTestFile, collectEntries(s.T(), sc), "buffer size %d", size)
		s.Assert().NoError(sc.Err())

		sc = NewScanner(unseekable{bytes.NewReader(s.data)}, WithBufferSize(size))
		s.Assert().Equal(wantTestFile, collectEntries(s.T(), sc), "buffer size %d", size)
		s.Assert().NoError(sc.Err())
	}
}

func (s *ScannerTestSuite) TestReadBody() {
	sc := NewScanner(iotest.OneByteReader(bytes.NewReader(s.data)))
	s.Require().True(sc.Next())
	s.Require().True(sc.Next())
	e := sc.Entry()
	s.Require().Equal(TypeMoov, e.Type)

	body := make([]byte, e.DataSize())
	s.Require().NoError(sc.ReadBody(body))
	s.Assert().Equal(s.data[32:52], body)

	s.Assert().Error(sc.ReadBody(body), "body was already consumed")

	s.Require().True(sc.Next())
	s.Assert().Equal(TypeFree, sc.Entry().Type)
	s.Require().True(sc.Next())
	s.Assert().Equal(TypeMdat, sc.Entry().Type)
	s.Assert().False(sc.Next())
	s.Assert().NoError(sc.Err())
}

func (s *ScannerTestSuite) TestReadBodyWrongLength() {
	sc := NewScanner(bytes.NewReader(s.data))
	s.Require().True(sc.Next())
	err := sc.ReadBody(make([]byte, 3))
	s.Require().Error(err)
	s.Assert().Contains(err.Error(), "16-byte body of [ftyp]")
}

func (s *ScannerTestSuite) TestPartialBodyThenNext() {
	sc := NewScanner(unseekable{bytes.NewReader(s.data)}, WithBufferSize(10))
	s.Require().True(sc.Next())
	s.Require().True(sc.Next())

	head := make([]byte, 8)
	_, err := io.ReadFull(sc.Body(), head)
	s.Require().NoError(err)
	s.Assert().Equal(s.data[32:40], head)

	s.Require().True(sc.Next())
	s.Assert().Equal(wantTestFile[2], sc.Entry())
}

func (s *ScannerTestSuite) TestBaseOffset() {
	junk := []byte{9, 9, 9, 9, 9}
	r := bytes.NewReader(append(junk, s.data...))
	_, err := r.Seek(int64(len(junk)), io.SeekStart)
	s.Require().NoError(err)

	sc := NewScanner(r, WithBufferSize(8))
	s.Assert().Equal(wantTestFile, collectEntries(s.T(), sc))
	s.Assert().NoError(sc.Err())
}

func TestScanner(t *testing.T) {
	suite.Run(t, new(ScannerTestSuite))
}

// --- Standalone Scanner Tests ---

func TestScannerEmptyStream(t *testing.T) {
	sc := NewScanner(bytes.NewReader(nil))
	assert.False(t, sc.Next())
	assert.NoError(t, sc.Err())
}

func TestScannerSizeZero(t *testing.T) {
	data := AppendBox(nil, TypeFtyp, []byte("isom"))
	data = AppendHeader(data, TypeMdat, 0)
	data = append(data, bytes.Repeat([]byte{0xab}, 100)...)

	t.Run("SeekableResolvesSize", func(t *testing.T) {
		sc := NewScanner(bytes.NewReader(data), WithBufferSize(8))
		entries := collectEntries(t, sc)
		require.NoError(t, sc.Err())
		require.Len(t, entries, 2)
		assert.Equal(t, ScanEntry{Type: TypeMdat, Size: 108, Offset: 12, HeaderSize: 8}, entries[1])
	})

	t.Run("UnseekableRunsToEnd", func(t *testing.T) {
		sc := NewScanner(unseekable{bytes.NewReader(data)}, WithBufferSize(20))
		require.True(t, sc.Next())
		require.True(t, sc.Next())
		e := sc.Entry()
		assert.True(t, e.ToEnd)
		assert.Equal(t, TypeMdat, e.Type)
		assert.Equal(t, int64(12), e.Offset)
		assert.Zero(t, e.DataSize())

		rest, err := io.ReadAll(sc.Body())
		require.NoError(t, err)
		assert.Equal(t, data[20:], rest)

		assert.False(t, sc.Next())
		assert.NoError(t, sc.Err())
	})

	t.Run("UnseekableSkipsBody", func(t *testing.T) {
		sc := NewScanner(pipeLike{bytes.NewReader(data)})
		entries := collectEntries(t, sc)
		require.NoError(t, sc.Err())
		require.Len(t, entries, 2)
		assert.True(t, entries[1].ToEnd)
	})
}

func TestScannerTruncatedBody(t *testing.T) {
	data := AppendBox(nil, TypeFree, nil)
	data = AppendHeader(data, TypeMdat, 64)
	data = append(data, 1, 2, 3)

	for name, r := range map[string]io.Reader{
		"Seekable":   bytes.NewReader(data),
		"SeekTiny":   bytes.NewReader(data),
		"Unseekable": iotest.OneByteReader(bytes.NewReader(data)),
	} {
		t.Run(name, func(t *testing.T) {
			var opts []ScannerOption
			if name == "SeekTiny" {
				opts = append(opts, WithBufferSize(8))
			}
			sc := NewScanner(r, opts...)
			entries := collectEntries(t, sc)
			assert.Len(t, entries, 2, "the truncated box header is still reported")
			require.Error(t, sc.Err())
			assert.ErrorIs(t, sc.Err(), ErrTruncatedBox)
			assert.ErrorIs(t, sc.Err(), io.ErrUnexpectedEOF)
			assert.Contains(t, sc.Err().Error(), "at offset 8: [mdat] size 64")
		})
	}
}

func TestScannerTruncatedReadBody(t *testing.T) {
	data := AppendHeader(nil, TypeMoov, 64)
	data = append(data, 1, 2, 3)

	sc := NewScanner(unseekable{bytes.NewReader(data)})
	require.True(t, sc.Next())
	err := sc.ReadBody(make([]byte, 56))
	assert.ErrorIs(t, err, ErrTruncatedBox)
}

func TestScannerPartialHeaderAtEOF(t *testing.T) {
	data := AppendBox(nil, TypeFree, nil)
	data = append(data, 0, 0, 0, 1, 'm', 'd', 'a', 't', 0, 0)

	sc := NewScanner(iotest.OneByteReader(bytes.NewReader(data)))
	assert.True(t, sc.Next())
	assert.False(t, sc.Next())
	require.Error(t, sc.Err())
	assert.ErrorIs(t, sc.Err(), io.ErrUnexpectedEOF)
	assert.ErrorIs(t, sc.Err(), ErrIncomplete)

	var ierr *IncompleteError
	require.True(t, errors.As(sc.Err(), &ierr))
	assert.Equal(t, 6, ierr.Needed)
}

func TestScannerMalformed(t *testing.T) {
	data := AppendBox(nil, TypeFtyp, []byte("isom"))
	data = AppendHeader(data, TypeFree, 3)
	data = append(data, AppendBox(nil, TypeMdat, nil)...)

	sc := NewScanner(bytes.NewReader(data))
	assert.True(t, sc.Next())
	assert.False(t, sc.Next())
	assert.ErrorIs(t, sc.Err(), ErrMalformed)
	assert.Contains(t, sc.Err().Error(), "at offset 12")
	assert.False(t, sc.Next(), "no resynchronisation after a malformed header")
}

func TestScannerReadError(t *testing.T) {
	boom := errors.New("boom")
	sc := NewScanner(iotest.ErrReader(boom))
	assert.False(t, sc.Next())
	assert.ErrorIs(t, sc.Err(), boom)

	r := io.MultiReader(bytes.NewReader(AppendBox(nil, TypeFree, nil)), iotest.ErrReader(boom))
	sc = NewScanner(r)
	assert.True(t, sc.Next())
	assert.False(t, sc.Next())
	assert.ErrorIs(t, sc.Err(), boom)
}

func TestScannerNoProgress(t *testing.T) {
	sc := NewScanner(stalled{})
	assert.False(t, sc.Next())
	assert.ErrorIs(t, sc.Err(), io.ErrNoProgress)
}

func TestScannerContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sc := NewScanner(unseekable{bytes.NewReader(testFile())})
	assert.False(t, sc.NextContext(ctx))
	assert.ErrorIs(t, sc.Err(), context.Canceled)
}

func TestScanEntryDataSize(t *testing.T) {
	assert.Equal(t, uint64(16), ScanEntry{Size: 32, HeaderSize: 16}.DataSize())
	assert.Zero(t, ScanEntry{ToEnd: true, HeaderSize: 8}.DataSize())
}

func BenchmarkScanner(b *testing.B) {
	var data []byte
	for range 1000 {
		data = AppendBox(data, TypeFree, make([]byte, 120))
	}
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sc := NewScanner(unseekable{bytes.NewReader(data)})
		for sc.Next() {
		}
		if sc.Err() != nil {
			b.Fatal(sc.Err())
		}
	}
}
