package binary

// Seq0255 is a 1-byte-count-prefixed sequence of elements whose per-element
// wire size is fixed or otherwise cheaply introspectable (U256, PubKey,
// U32AsRef, ShortTxId, ...).
type Seq0255[T Sv2Type] struct {
	Elems []T
}

func NewSeq0255[T Sv2Type](elems []T) (Seq0255[T], error) {
	if len(elems) > 255 {
		return Seq0255[T]{}, &ValueExceedsMaxSizeErr{Fixed: true, PrefixSize: 1, Max: 255, Actual: len(elems)}
	}
	return Seq0255[T]{Elems: elems}, nil
}

func (s Seq0255[T]) GetSize() int {
	n := 1
	for _, e := range s.Elems {
		n += e.GetSize()
	}
	return n
}

func (s Seq0255[T]) Encode(dst []byte) (int, error) {
	if len(s.Elems) > 255 {
		return 0, &ValueExceedsMaxSizeErr{Fixed: true, PrefixSize: 1, Max: 255, Actual: len(s.Elems)}
	}
	size := s.GetSize()
	if len(dst) < size {
		return 0, &WriteErr{Expected: size, Actual: len(dst)}
	}
	dst[0] = byte(len(s.Elems))
	off := 1
	for _, e := range s.Elems {
		n, err := e.Encode(dst[off:])
		if err != nil {
			return 0, err
		}
		off += n
	}
	return off, nil
}

// ElemDecoder decodes a single sequence element and reports how many bytes
// it consumed, mirroring the (value, consumed, error) shape the rest of
// this package uses.
type ElemDecoder[T Sv2Type] func([]byte) (T, int, error)

// DecodeSeq0255 decodes a Seq0255[T] using the supplied per-element decoder.
func DecodeSeq0255[T Sv2Type](src []byte, decodeElem ElemDecoder[T]) (Seq0255[T], int, error) {
	if len(src) < 1 {
		return Seq0255[T]{}, 0, &OutOfBoundErr{Wanted: 1, Got: len(src)}
	}
	count := int(src[0])
	off := 1
	elems := make([]T, 0, count)
	for i := 0; i < count; i++ {
		e, n, err := decodeElem(src[off:])
		if err != nil {
			return Seq0255[T]{}, 0, err
		}
		elems = append(elems, e)
		off += n
	}
	return Seq0255[T]{Elems: elems}, off, nil
}

// Seq064K is a 2-byte-count-prefixed sequence, used for larger element
// counts (e.g. Job Declaration's transaction-id lists).
type Seq064K[T Sv2Type] struct {
	Elems []T
}

func NewSeq064K[T Sv2Type](elems []T) (Seq064K[T], error) {
	if len(elems) > 65535 {
		return Seq064K[T]{}, &ValueExceedsMaxSizeErr{Fixed: true, PrefixSize: 2, Max: 65535, Actual: len(elems)}
	}
	return Seq064K[T]{Elems: elems}, nil
}

func (s Seq064K[T]) GetSize() int {
	n := 2
	for _, e := range s.Elems {
		n += e.GetSize()
	}
	return n
}

func (s Seq064K[T]) Encode(dst []byte) (int, error) {
	if len(s.Elems) > 65535 {
		return 0, &ValueExceedsMaxSizeErr{Fixed: true, PrefixSize: 2, Max: 65535, Actual: len(s.Elems)}
	}
	size := s.GetSize()
	if len(dst) < size {
		return 0, &WriteErr{Expected: size, Actual: len(dst)}
	}
	if _, err := EncodeU16(uint16(len(s.Elems)), dst); err != nil {
		return 0, err
	}
	off := 2
	for _, e := range s.Elems {
		n, err := e.Encode(dst[off:])
		if err != nil {
			return 0, err
		}
		off += n
	}
	return off, nil
}

func DecodeSeq064K[T Sv2Type](src []byte, decodeElem ElemDecoder[T]) (Seq064K[T], int, error) {
	count, off, err := DecodeU16(src)
	if err != nil {
		return Seq064K[T]{}, 0, err
	}
	elems := make([]T, 0, count)
	for i := 0; i < int(count); i++ {
		e, n, err := decodeElem(src[off:])
		if err != nil {
			return Seq064K[T]{}, 0, err
		}
		elems = append(elems, e)
		off += n
	}
	return Seq064K[T]{Elems: elems}, off, nil
}

// Sv2Option is a Seq0255[T] constrained to 0 or 1 elements, the Sv2 analog
// of Option<T>.
type Sv2Option[T Sv2Type] struct {
	seq Seq0255[T]
}

func NewSv2Option[T Sv2Type](v *T) (Sv2Option[T], error) {
	if v == nil {
		s, _ := NewSeq0255[T](nil)
		return Sv2Option[T]{seq: s}, nil
	}
	s, err := NewSeq0255([]T{*v})
	if err != nil {
		return Sv2Option[T]{}, err
	}
	return Sv2Option[T]{seq: s}, nil
}

func (o Sv2Option[T]) IsSome() bool { return len(o.seq.Elems) == 1 }

// Get returns the contained value and true, or the zero value and false.
func (o Sv2Option[T]) Get() (T, bool) {
	if o.IsSome() {
		return o.seq.Elems[0], true
	}
	var zero T
	return zero, false
}

func (o Sv2Option[T]) GetSize() int { return o.seq.GetSize() }

func (o Sv2Option[T]) Encode(dst []byte) (int, error) { return o.seq.Encode(dst) }

func DecodeSv2Option[T Sv2Type](src []byte, decodeElem ElemDecoder[T]) (Sv2Option[T], int, error) {
	seq, n, err := DecodeSeq0255(src, decodeElem)
	if err != nil {
		return Sv2Option[T]{}, 0, err
	}
	if len(seq.Elems) > 1 {
		return Sv2Option[T]{}, 0, &ValueExceedsMaxSizeErr{Fixed: false, PrefixSize: 1, Max: 1, Actual: len(seq.Elems)}
	}
	return Sv2Option[T]{seq: seq}, n, nil
}
