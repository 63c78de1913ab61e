// Package templatedistribution implements the Sv2 Template Distribution
// sub-protocol, carrying block templates (and the prev_hash they bind to)
// from a template provider down to a Job Declarator or pool.
package templatedistribution

import (
	bin "github.com/ironseam/sv2bridge/internal/binary"
)

const (
	MsgTypeCoinbaseOutputDataSize uint8 = 0x70
	MsgTypeNewTemplate            uint8 = 0x71
	MsgTypeSetNewPrevHash         uint8 = 0x72
	MsgTypeRequestTransactionData uint8 = 0x73
)

// NewTemplate announces a candidate block template. FutureTemplate is true
// when the template isn't yet bound to a prev_hash; a later SetNewPrevHash
// bearing the same TemplateID activates it.
type NewTemplate struct {
	TemplateID               uint64
	FutureTemplate           bool
	Version                  uint32
	CoinbaseTxVersion        uint32
	CoinbasePrefix           bin.B0255
	CoinbaseTxInputSequence  uint32
	CoinbaseTxValueRemaining uint64
	CoinbaseTxOutputs        bin.B064K
	CoinbaseTxLockTime       uint32
	MerklePath               bin.Seq0255[bin.U256]
}

func (m NewTemplate) GetSize() int {
	return 8 + 1 + 4 + 4 + m.CoinbasePrefix.GetSize() + 4 + 8 +
		m.CoinbaseTxOutputs.GetSize() + 4 + m.MerklePath.GetSize()
}

func (m NewTemplate) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	off := 0
	n, err := bin.EncodeU64(m.TemplateID, dst[off:])
	if err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeBool(m.FutureTemplate, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.Version, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.CoinbaseTxVersion, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.CoinbasePrefix.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.CoinbaseTxInputSequence, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU64(m.CoinbaseTxValueRemaining, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.CoinbaseTxOutputs.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.CoinbaseTxLockTime, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.MerklePath.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	return off, nil
}

func DecodeNewTemplate(src []byte) (NewTemplate, int, error) {
	var m NewTemplate
	var off, n int
	var err error
	if m.TemplateID, n, err = bin.DecodeU64(src[off:]); err != nil {
		return NewTemplate{}, 0, err
	}
	off += n
	if m.FutureTemplate, n, err = bin.DecodeBool(src[off:]); err != nil {
		return NewTemplate{}, 0, err
	}
	off += n
	if m.Version, n, err = bin.DecodeU32(src[off:]); err != nil {
		return NewTemplate{}, 0, err
	}
	off += n
	if m.CoinbaseTxVersion, n, err = bin.DecodeU32(src[off:]); err != nil {
		return NewTemplate{}, 0, err
	}
	off += n
	if m.CoinbasePrefix, n, err = bin.DecodeB0255(src[off:]); err != nil {
		return NewTemplate{}, 0, err
	}
	off += n
	if m.CoinbaseTxInputSequence, n, err = bin.DecodeU32(src[off:]); err != nil {
		return NewTemplate{}, 0, err
	}
	off += n
	if m.CoinbaseTxValueRemaining, n, err = bin.DecodeU64(src[off:]); err != nil {
		return NewTemplate{}, 0, err
	}
	off += n
	if m.CoinbaseTxOutputs, n, err = bin.DecodeB064K(src[off:]); err != nil {
		return NewTemplate{}, 0, err
	}
	off += n
	if m.CoinbaseTxLockTime, n, err = bin.DecodeU32(src[off:]); err != nil {
		return NewTemplate{}, 0, err
	}
	off += n
	if m.MerklePath, n, err = bin.DecodeSeq0255(src[off:], bin.DecodeU256); err != nil {
		return NewTemplate{}, 0, err
	}
	off += n
	return m, off, nil
}

// SetNewPrevHash (template-distribution flavor) binds TemplateID to a
// concrete previous block hash and the header fields that don't change
// across jobs built from it. Distinct from mining.SetNewPrevHash, which
// operates in channel/job_id space rather than template_id space.
type SetNewPrevHash struct {
	TemplateID      uint64
	PrevHash        bin.U256
	HeaderTimestamp uint32
	NBits           uint32
	Target          bin.U256
}

func (m SetNewPrevHash) GetSize() int { return 8 + 32 + 4 + 4 + 32 }

func (m SetNewPrevHash) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	off := 0
	n, err := bin.EncodeU64(m.TemplateID, dst[off:])
	if err != nil {
		return 0, err
	}
	off += n
	if n, err = m.PrevHash.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.HeaderTimestamp, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.NBits, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.Target.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	return off, nil
}

func DecodeSetNewPrevHash(src []byte) (SetNewPrevHash, int, error) {
	var m SetNewPrevHash
	var off, n int
	var err error
	if m.TemplateID, n, err = bin.DecodeU64(src[off:]); err != nil {
		return SetNewPrevHash{}, 0, err
	}
	off += n
	if m.PrevHash, n, err = bin.DecodeU256(src[off:]); err != nil {
		return SetNewPrevHash{}, 0, err
	}
	off += n
	if m.HeaderTimestamp, n, err = bin.DecodeU32(src[off:]); err != nil {
		return SetNewPrevHash{}, 0, err
	}
	off += n
	if m.NBits, n, err = bin.DecodeU32(src[off:]); err != nil {
		return SetNewPrevHash{}, 0, err
	}
	off += n
	if m.Target, n, err = bin.DecodeU256(src[off:]); err != nil {
		return SetNewPrevHash{}, 0, err
	}
	off += n
	return m, off, nil
}

// CoinbaseOutputDataSize tells the template provider how many bytes of
// coinbase output space the requester needs reserved for its own payouts.
type CoinbaseOutputDataSize struct {
	CoinbaseOutputMaxAdditionalSize uint32
}

func (m CoinbaseOutputDataSize) GetSize() int { return 4 }

func (m CoinbaseOutputDataSize) Encode(dst []byte) (int, error) {
	_, err := bin.EncodeU32(m.CoinbaseOutputMaxAdditionalSize, dst)
	return 4, err
}

func DecodeCoinbaseOutputDataSize(src []byte) (CoinbaseOutputDataSize, int, error) {
	v, n, err := bin.DecodeU32(src)
	if err != nil {
		return CoinbaseOutputDataSize{}, 0, err
	}
	return CoinbaseOutputDataSize{CoinbaseOutputMaxAdditionalSize: v}, n, nil
}
