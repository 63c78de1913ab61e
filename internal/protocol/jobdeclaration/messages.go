// Package jobdeclaration implements the Sv2 Job Declaration sub-protocol:
// token allocation and job declaration between a pool's Job Declarator
// Server and a downstream Job Declarator Client.
package jobdeclaration

import (
	bin "github.com/ironseam/sv2bridge/internal/binary"
)

const (
	MsgTypeAllocateMiningJobToken        uint8 = 0x50
	MsgTypeAllocateMiningJobTokenSuccess uint8 = 0x51
	MsgTypeDeclareMiningJob              uint8 = 0x57
	MsgTypeDeclareMiningJobSuccess       uint8 = 0x58
	MsgTypeDeclareMiningJobError         uint8 = 0x59
)

// AllocateMiningJobToken requests a fresh token a client can later attach
// to a DeclareMiningJob.
type AllocateMiningJobToken struct {
	UserIdentifier bin.Str0255
	RequestID      uint32
}

func (m AllocateMiningJobToken) GetSize() int { return m.UserIdentifier.GetSize() + 4 }

func (m AllocateMiningJobToken) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	n, err := m.UserIdentifier.Encode(dst)
	if err != nil {
		return 0, err
	}
	if _, err := bin.EncodeU32(m.RequestID, dst[n:]); err != nil {
		return 0, err
	}
	return m.GetSize(), nil
}

func DecodeAllocateMiningJobToken(src []byte) (AllocateMiningJobToken, int, error) {
	ident, n, err := bin.DecodeStr0255(src)
	if err != nil {
		return AllocateMiningJobToken{}, 0, err
	}
	id, n2, err := bin.DecodeU32(src[n:])
	if err != nil {
		return AllocateMiningJobToken{}, 0, err
	}
	return AllocateMiningJobToken{UserIdentifier: ident, RequestID: id}, n + n2, nil
}

// AllocateMiningJobTokenSuccess hands back the allocated token, a one-shot
// credential good for a single DeclareMiningJob.
type AllocateMiningJobTokenSuccess struct {
	RequestID                       uint32
	MiningJobToken                  bin.B0255
	CoinbaseOutputMaxAdditionalSize uint32
}

func (m AllocateMiningJobTokenSuccess) GetSize() int {
	return 4 + m.MiningJobToken.GetSize() + 4
}

func (m AllocateMiningJobTokenSuccess) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	off := 0
	n, err := bin.EncodeU32(m.RequestID, dst[off:])
	if err != nil {
		return 0, err
	}
	off += n
	if n, err = m.MiningJobToken.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.CoinbaseOutputMaxAdditionalSize, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	return off, nil
}

func DecodeAllocateMiningJobTokenSuccess(src []byte) (AllocateMiningJobTokenSuccess, int, error) {
	var m AllocateMiningJobTokenSuccess
	var off, n int
	var err error
	if m.RequestID, n, err = bin.DecodeU32(src[off:]); err != nil {
		return AllocateMiningJobTokenSuccess{}, 0, err
	}
	off += n
	if m.MiningJobToken, n, err = bin.DecodeB0255(src[off:]); err != nil {
		return AllocateMiningJobTokenSuccess{}, 0, err
	}
	off += n
	if m.CoinbaseOutputMaxAdditionalSize, n, err = bin.DecodeU32(src[off:]); err != nil {
		return AllocateMiningJobTokenSuccess{}, 0, err
	}
	off += n
	return m, off, nil
}

// DeclareMiningJob submits a fully-built custom job (the declarator's own
// coinbase and transaction set) against a previously allocated token.
type DeclareMiningJob struct {
	RequestID      uint32
	MiningJobToken bin.B0255
	Version        uint32
	CoinbasePrefix bin.B064K
	CoinbaseSuffix bin.B064K
	TxIDsList      bin.Seq064K[bin.ShortTxId]
}

func (m DeclareMiningJob) GetSize() int {
	return 4 + m.MiningJobToken.GetSize() + 4 + m.CoinbasePrefix.GetSize() +
		m.CoinbaseSuffix.GetSize() + m.TxIDsList.GetSize()
}

func (m DeclareMiningJob) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	off := 0
	n, err := bin.EncodeU32(m.RequestID, dst[off:])
	if err != nil {
		return 0, err
	}
	off += n
	if n, err = m.MiningJobToken.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.Version, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.CoinbasePrefix.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.CoinbaseSuffix.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.TxIDsList.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	return off, nil
}

func DecodeDeclareMiningJob(src []byte) (DeclareMiningJob, int, error) {
	var m DeclareMiningJob
	var off, n int
	var err error
	if m.RequestID, n, err = bin.DecodeU32(src[off:]); err != nil {
		return DeclareMiningJob{}, 0, err
	}
	off += n
	if m.MiningJobToken, n, err = bin.DecodeB0255(src[off:]); err != nil {
		return DeclareMiningJob{}, 0, err
	}
	off += n
	if m.Version, n, err = bin.DecodeU32(src[off:]); err != nil {
		return DeclareMiningJob{}, 0, err
	}
	off += n
	if m.CoinbasePrefix, n, err = bin.DecodeB064K(src[off:]); err != nil {
		return DeclareMiningJob{}, 0, err
	}
	off += n
	if m.CoinbaseSuffix, n, err = bin.DecodeB064K(src[off:]); err != nil {
		return DeclareMiningJob{}, 0, err
	}
	off += n
	if m.TxIDsList, n, err = bin.DecodeSeq064K(src[off:], bin.DecodeShortTxId); err != nil {
		return DeclareMiningJob{}, 0, err
	}
	off += n
	return m, off, nil
}

// DeclareMiningJobSuccess confirms a declared job was accepted.
type DeclareMiningJobSuccess struct {
	RequestID         uint32
	NewMiningJobToken bin.B0255
}

func (m DeclareMiningJobSuccess) GetSize() int { return 4 + m.NewMiningJobToken.GetSize() }

func (m DeclareMiningJobSuccess) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	n, err := bin.EncodeU32(m.RequestID, dst)
	if err != nil {
		return 0, err
	}
	if _, err := m.NewMiningJobToken.Encode(dst[n:]); err != nil {
		return 0, err
	}
	return m.GetSize(), nil
}

func DecodeDeclareMiningJobSuccess(src []byte) (DeclareMiningJobSuccess, int, error) {
	id, n, err := bin.DecodeU32(src)
	if err != nil {
		return DeclareMiningJobSuccess{}, 0, err
	}
	token, n2, err := bin.DecodeB0255(src[n:])
	if err != nil {
		return DeclareMiningJobSuccess{}, 0, err
	}
	return DeclareMiningJobSuccess{RequestID: id, NewMiningJobToken: token}, n + n2, nil
}

// DeclareMiningJobError rejects a declared job. This implementation's
// declaration policy never validates the job against a live bitcoind
// mempool view (see the job declarator server's token and structural
// checks); ErrorCode communicates purely structural or policy
// (unknown or expired token, coinbase size) rejections.
type DeclareMiningJobError struct {
	RequestID uint32
	ErrorCode bin.Str0255
}

func (m DeclareMiningJobError) GetSize() int { return 4 + m.ErrorCode.GetSize() }

func (m DeclareMiningJobError) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	n, err := bin.EncodeU32(m.RequestID, dst)
	if err != nil {
		return 0, err
	}
	if _, err := m.ErrorCode.Encode(dst[n:]); err != nil {
		return 0, err
	}
	return m.GetSize(), nil
}

func DecodeDeclareMiningJobError(src []byte) (DeclareMiningJobError, int, error) {
	id, n, err := bin.DecodeU32(src)
	if err != nil {
		return DeclareMiningJobError{}, 0, err
	}
	code, n2, err := bin.DecodeStr0255(src[n:])
	if err != nil {
		return DeclareMiningJobError{}, 0, err
	}
	return DeclareMiningJobError{RequestID: id, ErrorCode: code}, n + n2, nil
}
