package binary

import "unicode/utf8"

// B032, B0255/Str0255, B064K and B016M are length-prefixed bounded byte
// strings. Each wraps a borrowed view into the decode buffer when produced
// by Decode/SizeHint-driven parsing; IntoOwned copies it out so the value
// can outlive that buffer.

// B032 carries at most 32 bytes behind a 1-byte length prefix.
type B032 struct{ b []byte }

func NewB032(b []byte) (B032, error) {
	if len(b) > 32 {
		return B032{}, &ValueExceedsMaxSizeErr{Fixed: true, PrefixSize: 1, Max: 32, Actual: len(b)}
	}
	return B032{b: b}, nil
}

func (v B032) Bytes() []byte { return v.b }
func (v B032) GetSize() int  { return 1 + len(v.b) }

// IntoOwned returns a copy of the bounded string backed by its own memory,
// safe to retain past the lifetime of the buffer it was decoded from.
func (v B032) IntoOwned() B032 {
	owned := make([]byte, len(v.b))
	copy(owned, v.b)
	return B032{b: owned}
}

func (v B032) Encode(dst []byte) (int, error) {
	if len(v.b) > 32 {
		return 0, &ValueExceedsMaxSizeErr{Fixed: true, PrefixSize: 1, Max: 32, Actual: len(v.b)}
	}
	if len(dst) < v.GetSize() {
		return 0, &WriteErr{Expected: v.GetSize(), Actual: len(dst)}
	}
	dst[0] = byte(len(v.b))
	copy(dst[1:], v.b)
	return v.GetSize(), nil
}

// SizeHintB032 reports how many bytes a B032 at buf[0:] would consume, or a
// NeedMoreBytesErr if buf is too short to determine that.
func SizeHintB032(buf []byte) (int, error) {
	return sizeHintBounded(buf, 1, 32)
}

func DecodeB032(src []byte) (B032, int, error) {
	n, b, err := decodeBounded(src, 1, 32)
	if err != nil {
		return B032{}, 0, err
	}
	return B032{b: b}, n, nil
}

// B0255 carries at most 255 bytes behind a 1-byte length prefix.
type B0255 struct{ b []byte }

func NewB0255(b []byte) (B0255, error) {
	if len(b) > 255 {
		return B0255{}, &ValueExceedsMaxSizeErr{Fixed: true, PrefixSize: 1, Max: 255, Actual: len(b)}
	}
	return B0255{b: b}, nil
}

func (v B0255) Bytes() []byte { return v.b }
func (v B0255) GetSize() int  { return 1 + len(v.b) }

func (v B0255) IntoOwned() B0255 {
	owned := make([]byte, len(v.b))
	copy(owned, v.b)
	return B0255{b: owned}
}

func (v B0255) Encode(dst []byte) (int, error) {
	if len(v.b) > 255 {
		return 0, &ValueExceedsMaxSizeErr{Fixed: true, PrefixSize: 1, Max: 255, Actual: len(v.b)}
	}
	if len(dst) < v.GetSize() {
		return 0, &WriteErr{Expected: v.GetSize(), Actual: len(dst)}
	}
	dst[0] = byte(len(v.b))
	copy(dst[1:], v.b)
	return v.GetSize(), nil
}

func SizeHintB0255(buf []byte) (int, error) {
	return sizeHintBounded(buf, 1, 255)
}

func DecodeB0255(src []byte) (B0255, int, error) {
	n, b, err := decodeBounded(src, 1, 255)
	if err != nil {
		return B0255{}, 0, err
	}
	return B0255{b: b}, n, nil
}

// Str0255 is a B0255 whose payload is additionally required to be valid
// UTF-8.
type Str0255 struct{ B0255 }

func NewStr0255(s string) (Str0255, error) {
	b, err := NewB0255([]byte(s))
	if err != nil {
		return Str0255{}, err
	}
	return Str0255{B0255: b}, nil
}

func (v Str0255) String() string { return string(v.b) }

func DecodeStr0255(src []byte) (Str0255, int, error) {
	b, n, err := DecodeB0255(src)
	if err != nil {
		return Str0255{}, 0, err
	}
	if !utf8.Valid(b.b) {
		return Str0255{}, 0, &InvalidSizeErr{Type: "Str0255(utf8)", Want: -1, Got: -1}
	}
	return Str0255{B0255: b}, n, nil
}

// B064K carries at most 65535 bytes behind a 2-byte little-endian length
// prefix (coinbase prefix/suffix, extension-field payloads).
type B064K struct{ b []byte }

func NewB064K(b []byte) (B064K, error) {
	if len(b) > 65535 {
		return B064K{}, &ValueExceedsMaxSizeErr{Fixed: true, PrefixSize: 2, Max: 65535, Actual: len(b)}
	}
	return B064K{b: b}, nil
}

func (v B064K) Bytes() []byte { return v.b }
func (v B064K) GetSize() int  { return 2 + len(v.b) }

func (v B064K) IntoOwned() B064K {
	owned := make([]byte, len(v.b))
	copy(owned, v.b)
	return B064K{b: owned}
}

func (v B064K) Encode(dst []byte) (int, error) {
	if len(v.b) > 65535 {
		return 0, &ValueExceedsMaxSizeErr{Fixed: true, PrefixSize: 2, Max: 65535, Actual: len(v.b)}
	}
	if len(dst) < v.GetSize() {
		return 0, &WriteErr{Expected: v.GetSize(), Actual: len(dst)}
	}
	if _, err := EncodeU16(uint16(len(v.b)), dst); err != nil {
		return 0, err
	}
	copy(dst[2:], v.b)
	return v.GetSize(), nil
}

func SizeHintB064K(buf []byte) (int, error) {
	return sizeHintBounded(buf, 2, 65535)
}

func DecodeB064K(src []byte) (B064K, int, error) {
	n, b, err := decodeBounded(src, 2, 65535)
	if err != nil {
		return B064K{}, 0, err
	}
	return B064K{b: b}, n, nil
}

// B016M carries at most 16777215 bytes behind a 3-byte little-endian (u24)
// length prefix (full block templates, transaction lists).
type B016M struct{ b []byte }

func NewB016M(b []byte) (B016M, error) {
	if len(b) > U24Max-1 {
		return B016M{}, &ValueExceedsMaxSizeErr{Fixed: true, PrefixSize: 3, Max: U24Max - 1, Actual: len(b)}
	}
	return B016M{b: b}, nil
}

func (v B016M) Bytes() []byte { return v.b }
func (v B016M) GetSize() int  { return 3 + len(v.b) }

func (v B016M) IntoOwned() B016M {
	owned := make([]byte, len(v.b))
	copy(owned, v.b)
	return B016M{b: owned}
}

func (v B016M) Encode(dst []byte) (int, error) {
	if len(v.b) > U24Max-1 {
		return 0, &ValueExceedsMaxSizeErr{Fixed: true, PrefixSize: 3, Max: U24Max - 1, Actual: len(v.b)}
	}
	if len(dst) < v.GetSize() {
		return 0, &WriteErr{Expected: v.GetSize(), Actual: len(dst)}
	}
	if _, err := EncodeU24(uint32(len(v.b)), dst); err != nil {
		return 0, err
	}
	copy(dst[3:], v.b)
	return v.GetSize(), nil
}

func SizeHintB016M(buf []byte) (int, error) {
	return sizeHintBounded(buf, 3, U24Max-1)
}

func DecodeB016M(src []byte) (B016M, int, error) {
	n, b, err := decodeBounded(src, 3, U24Max-1)
	if err != nil {
		return B016M{}, 0, err
	}
	return B016M{b: b}, n, nil
}

// -----------------------------------------------------------------------------
// Shared bounded-length machinery
// -----------------------------------------------------------------------------

// readLenPrefix reads a prefixSize-byte little-endian length prefix.
func readLenPrefix(buf []byte, prefixSize int) (int, error) {
	switch prefixSize {
	case 1:
		return int(buf[0]), nil
	case 2:
		v, _, err := DecodeU16(buf)
		return int(v), err
	case 3:
		v, _, err := DecodeU24(buf)
		return int(v), err
	default:
		panic("binary: unsupported length prefix size")
	}
}

// sizeHintBounded implements the three-valued SizeHint contract:
// if the buffer is too short to read even the prefix, NeedMoreBytesErr
// reports exactly how many bytes are missing; otherwise it returns
// prefixSize+length, the number of bytes the complete value occupies.
func sizeHintBounded(buf []byte, prefixSize, max int) (int, error) {
	if len(buf) < prefixSize {
		return 0, &NeedMoreBytesErr{Missing: prefixSize - len(buf)}
	}
	length, err := readLenPrefix(buf, prefixSize)
	if err != nil {
		return 0, err
	}
	if length > max {
		return 0, &ValueExceedsMaxSizeErr{Fixed: false, PrefixSize: prefixSize, Max: max, Actual: length}
	}
	return prefixSize + length, nil
}

// decodeBounded reads the length prefix and slices out a borrowed view of
// the payload. It returns the total bytes consumed (prefix+payload) and the
// view itself.
func decodeBounded(src []byte, prefixSize, max int) (int, []byte, error) {
	if len(src) < prefixSize {
		return 0, nil, &OutOfBoundErr{Wanted: prefixSize, Got: len(src)}
	}
	length, err := readLenPrefix(src, prefixSize)
	if err != nil {
		return 0, nil, err
	}
	if length > max {
		return 0, nil, &ValueExceedsMaxSizeErr{Fixed: false, PrefixSize: prefixSize, Max: max, Actual: length}
	}
	total := prefixSize + length
	if len(src) < total {
		return 0, nil, &OutOfBoundErr{Wanted: total, Got: len(src)}
	}
	return total, src[prefixSize:total], nil
}
