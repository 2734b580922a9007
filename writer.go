package bmff

import "math"

// HeaderLen returns the header length AppendHeader uses for a box of the
// given total size.
func HeaderLen(size uint64) int {
	if size > math.MaxUint32 {
		return ExtendedHeaderSize
	}
	return BasicHeaderSize
}

// AppendHeader appends a box header for a box of the given total size
// (header included) to dst. Sizes that do not fit in 32 bits are written
// with the extended 64-bit form. A size of 0 writes the extends-to-end
// sentinel.
func AppendHeader(dst []byte, t BoxType, size uint64) []byte {
	if HeaderLen(size) == ExtendedHeaderSize {
		return AppendExtendedHeader(dst, t, size)
	}
	dst = be.AppendUint32(dst, uint32(size))
	return append(dst, t[:]...)
}

// AppendExtendedHeader appends a 16-byte header (size field 1 followed by
// a 64-bit largesize) regardless of whether size fits in 32 bits.
func AppendExtendedHeader(dst []byte, t BoxType, size uint64) []byte {
	dst = be.AppendUint32(dst, 1)
	dst = append(dst, t[:]...)
	return be.AppendUint64(dst, size)
}

// AppendBox appends a complete box with the given payload, choosing the
// header form from the resulting size.
func AppendBox(dst []byte, t BoxType, payload []byte) []byte {
	size := uint64(BasicHeaderSize + len(payload))
	if HeaderLen(size) == ExtendedHeaderSize {
		size += ExtendedHeaderSize - BasicHeaderSize
	}
	dst = AppendHeader(dst, t, size)
	return append(dst, payload...)
}
