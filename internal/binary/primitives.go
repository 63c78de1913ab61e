package binary

import (
	"encoding/binary"
	"math"
)

// Sv2Type is implemented by every wire type the codec knows how to size and
// encode. Decoding is done through free functions (DecodeXxx) rather than a
// method, since Go cannot express "return Self" polymorphically; SizeHint
// plays the same split role for variable-length types.
type Sv2Type interface {
	GetSize() int
	Encode(dst []byte) (int, error)
}

// U24Max is the exclusive upper bound of a u24 value.
const U24Max = 1 << 24

// EncodeU24 writes v as 3 little-endian bytes. It fails with U24TooBigErr
// if v does not fit.
func EncodeU24(v uint32, dst []byte) (int, error) {
	if v >= U24Max {
		return 0, &U24TooBigErr{Value: v}
	}
	if len(dst) < 3 {
		return 0, &WriteErr{Expected: 3, Actual: len(dst)}
	}
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	return 3, nil
}

// DecodeU24 reads 3 little-endian bytes as a u24 value.
func DecodeU24(src []byte) (uint32, int, error) {
	if len(src) < 3 {
		return 0, 0, &OutOfBoundErr{Wanted: 3, Got: len(src)}
	}
	v := uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16
	return v, 3, nil
}

// EncodeBool writes a strict Sv2 bool: 0x00 or 0x01.
func EncodeBool(v bool, dst []byte) (int, error) {
	if len(dst) < 1 {
		return 0, &WriteErr{Expected: 1, Actual: len(dst)}
	}
	if v {
		dst[0] = 1
	} else {
		dst[0] = 0
	}
	return 1, nil
}

// DecodeBool reads a strict Sv2 bool. Any byte other than 0x00/0x01 fails
// with NotABoolErr.
func DecodeBool(src []byte) (bool, int, error) {
	if len(src) < 1 {
		return false, 0, &OutOfBoundErr{Wanted: 1, Got: len(src)}
	}
	switch src[0] {
	case 0:
		return false, 1, nil
	case 1:
		return true, 1, nil
	default:
		return false, 0, &NotABoolErr{Byte: src[0]}
	}
}

// EncodeU16/EncodeU32/EncodeU64/EncodeF32 and their Decode counterparts wrap
// encoding/binary for the fixed-width little-endian primitives, surfacing
// the same WriteErr/OutOfBoundErr pair the rest of the package uses so
// callers don't special-case them.

func EncodeU16(v uint16, dst []byte) (int, error) {
	if len(dst) < 2 {
		return 0, &WriteErr{Expected: 2, Actual: len(dst)}
	}
	binary.LittleEndian.PutUint16(dst, v)
	return 2, nil
}

func DecodeU16(src []byte) (uint16, int, error) {
	if len(src) < 2 {
		return 0, 0, &OutOfBoundErr{Wanted: 2, Got: len(src)}
	}
	return binary.LittleEndian.Uint16(src), 2, nil
}

func EncodeU32(v uint32, dst []byte) (int, error) {
	if len(dst) < 4 {
		return 0, &WriteErr{Expected: 4, Actual: len(dst)}
	}
	binary.LittleEndian.PutUint32(dst, v)
	return 4, nil
}

func DecodeU32(src []byte) (uint32, int, error) {
	if len(src) < 4 {
		return 0, 0, &OutOfBoundErr{Wanted: 4, Got: len(src)}
	}
	return binary.LittleEndian.Uint32(src), 4, nil
}

func EncodeU64(v uint64, dst []byte) (int, error) {
	if len(dst) < 8 {
		return 0, &WriteErr{Expected: 8, Actual: len(dst)}
	}
	binary.LittleEndian.PutUint64(dst, v)
	return 8, nil
}

func DecodeU64(src []byte) (uint64, int, error) {
	if len(src) < 8 {
		return 0, 0, &OutOfBoundErr{Wanted: 8, Got: len(src)}
	}
	return binary.LittleEndian.Uint64(src), 8, nil
}

func EncodeF32(v float32, dst []byte) (int, error) {
	return EncodeU32(math.Float32bits(v), dst)
}

func DecodeF32(src []byte) (float32, int, error) {
	bits, n, err := DecodeU32(src)
	if err != nil {
		return 0, 0, err
	}
	return math.Float32frombits(bits), n, nil
}

// -----------------------------------------------------------------------------
// Fixed-size 32/64/6/4-byte typed values
// -----------------------------------------------------------------------------

// U256 is a 32-byte hash value (prev_hash, merkle path entries, targets).
type U256 [32]byte

func NewU256(b []byte) (U256, error) {
	var u U256
	if len(b) != 32 {
		return u, &InvalidSizeErr{Type: "U256", Want: 32, Got: len(b)}
	}
	copy(u[:], b)
	return u, nil
}

func (u U256) GetSize() int { return 32 }

func (u U256) Encode(dst []byte) (int, error) {
	if len(dst) < 32 {
		return 0, &WriteErr{Expected: 32, Actual: len(dst)}
	}
	copy(dst, u[:])
	return 32, nil
}

func DecodeU256(src []byte) (U256, int, error) {
	if len(src) < 32 {
		return U256{}, 0, &OutOfBoundErr{Wanted: 32, Got: len(src)}
	}
	var u U256
	copy(u[:], src[:32])
	return u, 32, nil
}

// PubKey is a 32-byte X25519/Ed25519-style public key.
type PubKey [32]byte

func NewPubKey(b []byte) (PubKey, error) {
	var p PubKey
	if len(b) != 32 {
		return p, &InvalidSizeErr{Type: "PubKey", Want: 32, Got: len(b)}
	}
	copy(p[:], b)
	return p, nil
}

func (p PubKey) GetSize() int { return 32 }

func (p PubKey) Encode(dst []byte) (int, error) {
	if len(dst) < 32 {
		return 0, &WriteErr{Expected: 32, Actual: len(dst)}
	}
	copy(dst, p[:])
	return 32, nil
}

func DecodePubKey(src []byte) (PubKey, int, error) {
	if len(src) < 32 {
		return PubKey{}, 0, &OutOfBoundErr{Wanted: 32, Got: len(src)}
	}
	var p PubKey
	copy(p[:], src[:32])
	return p, 32, nil
}

// Signature is a 64-byte Ed25519-style signature.
type Signature [64]byte

func NewSignature(b []byte) (Signature, error) {
	var s Signature
	if len(b) != 64 {
		return s, &InvalidSizeErr{Type: "Signature", Want: 64, Got: len(b)}
	}
	copy(s[:], b)
	return s, nil
}

func (s Signature) GetSize() int { return 64 }

func (s Signature) Encode(dst []byte) (int, error) {
	if len(dst) < 64 {
		return 0, &WriteErr{Expected: 64, Actual: len(dst)}
	}
	copy(dst, s[:])
	return 64, nil
}

func DecodeSignature(src []byte) (Signature, int, error) {
	if len(src) < 64 {
		return Signature{}, 0, &OutOfBoundErr{Wanted: 64, Got: len(src)}
	}
	var s Signature
	copy(s[:], src[:64])
	return s, 64, nil
}

// ShortTxId is a 6-byte short transaction id used by the Job Declaration
// protocol's compact transaction lists.
type ShortTxId [6]byte

func NewShortTxId(b []byte) (ShortTxId, error) {
	var s ShortTxId
	if len(b) != 6 {
		return s, &InvalidSizeErr{Type: "ShortTxId", Want: 6, Got: len(b)}
	}
	copy(s[:], b)
	return s, nil
}

func (s ShortTxId) GetSize() int { return 6 }

func (s ShortTxId) Encode(dst []byte) (int, error) {
	if len(dst) < 6 {
		return 0, &WriteErr{Expected: 6, Actual: len(dst)}
	}
	copy(dst, s[:])
	return 6, nil
}

func DecodeShortTxId(src []byte) (ShortTxId, int, error) {
	if len(src) < 6 {
		return ShortTxId{}, 0, &OutOfBoundErr{Wanted: 6, Got: len(src)}
	}
	var s ShortTxId
	copy(s[:], src[:6])
	return s, 6, nil
}

// U32AsRef is a 4-byte little-endian view of a u32, used where the protocol
// wants the byte representation rather than the numeric type (e.g. as a
// sequence element).
type U32AsRef [4]byte

func NewU32AsRef(v uint32) U32AsRef {
	var u U32AsRef
	binary.LittleEndian.PutUint32(u[:], v)
	return u
}

func (u U32AsRef) Uint32() uint32 { return binary.LittleEndian.Uint32(u[:]) }

func (u U32AsRef) GetSize() int { return 4 }

func (u U32AsRef) Encode(dst []byte) (int, error) {
	if len(dst) < 4 {
		return 0, &WriteErr{Expected: 4, Actual: len(dst)}
	}
	copy(dst, u[:])
	return 4, nil
}

func DecodeU32AsRef(src []byte) (U32AsRef, int, error) {
	if len(src) < 4 {
		return U32AsRef{}, 0, &OutOfBoundErr{Wanted: 4, Got: len(src)}
	}
	var u U32AsRef
	copy(u[:], src[:4])
	return u, 4, nil
}
