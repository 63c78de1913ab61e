// Package binary implements the Sv2 wire type system: the primitive and
// bounded-length types every Stratum V2 message field is built from, their
// size-hinting contract, and the error taxonomy the codec layer surfaces.
package binary

import "fmt"

// OutOfBoundErr reports that a buffer was shorter than a type's declared
// wire size.
type OutOfBoundErr struct {
	Wanted, Got int
}

func (e *OutOfBoundErr) Error() string {
	return fmt.Sprintf("binary: out of bound: wanted %d bytes, got %d", e.Wanted, e.Got)
}

// NotABoolErr reports a boolean field whose byte was neither 0x00 nor 0x01.
type NotABoolErr struct {
	Byte byte
}

func (e *NotABoolErr) Error() string {
	return fmt.Sprintf("binary: not a bool: 0x%02x", e.Byte)
}

// U24TooBigErr reports an attempt to encode a value outside u24 range.
type U24TooBigErr struct {
	Value uint32
}

func (e *U24TooBigErr) Error() string {
	return fmt.Sprintf("binary: u24 too big: %d", e.Value)
}

// ValueExceedsMaxSizeErr reports a bounded byte-string or sequence whose
// declared or actual size exceeds its type's maximum.
type ValueExceedsMaxSizeErr struct {
	// Fixed is true when the overflow was detected on an encode of an
	// in-memory value (as opposed to a decoded length prefix).
	Fixed      bool
	PrefixSize int
	Max        int
	Actual     int
}

func (e *ValueExceedsMaxSizeErr) Error() string {
	kind := "decoded length"
	if e.Fixed {
		kind = "value"
	}
	return fmt.Sprintf("binary: %s exceeds max size: max %d (prefix %d bytes), actual %d", kind, e.Max, e.PrefixSize, e.Actual)
}

// InvalidSizeErr reports a fixed-size typed constructor (U256, PubKey,
// Signature, ShortTxId, U32AsRef, ...) given the wrong number of bytes.
type InvalidSizeErr struct {
	Type      string
	Want, Got int
}

func (e *InvalidSizeErr) Error() string {
	return fmt.Sprintf("binary: invalid %s size: want %d, got %d", e.Type, e.Want, e.Got)
}

// WriteErr reports a destination buffer too small to hold an encoded value.
type WriteErr struct {
	Expected, Actual int
}

func (e *WriteErr) Error() string {
	return fmt.Sprintf("binary: write error: expected room for %d bytes, got %d", e.Expected, e.Actual)
}

// ErrVoidFieldMarker and ErrNoDecodableFieldPassed report structural misuse
// of the field-marker decoding walk (internal consistency errors, not wire
// errors).
var (
	ErrVoidFieldMarker      = fmt.Errorf("binary: void field marker")
	ErrNoDecodableFieldPassed = fmt.Errorf("binary: no decodable field passed")
)

// NeedMoreBytesErr is returned by SizeHint implementations when the buffer
// is too short to even read a type's length prefix (let alone its payload).
// Missing is always > 0.
type NeedMoreBytesErr struct {
	Missing int
}

func (e *NeedMoreBytesErr) Error() string {
	return fmt.Sprintf("binary: need %d more bytes", e.Missing)
}
