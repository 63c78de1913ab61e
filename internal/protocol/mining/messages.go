// Package mining implements the Sv2 Mining sub-protocol message records:
// channel lifecycle, job distribution, and share submission.
package mining

import (
	bin "github.com/ironseam/sv2bridge/internal/binary"
)

const (
	MsgTypeOpenStandardMiningChannel        uint8 = 0x10
	MsgTypeOpenStandardMiningChannelSuccess uint8 = 0x11
	MsgTypeOpenStandardMiningChannelError   uint8 = 0x12
	MsgTypeOpenExtendedMiningChannel        uint8 = 0x13
	MsgTypeOpenExtendedMiningChannelSuccess uint8 = 0x14
	MsgTypeOpenExtendedMiningChannelError   uint8 = 0x15
	MsgTypeUpdateChannel                    uint8 = 0x16
	MsgTypeUpdateChannelError               uint8 = 0x17
	MsgTypeCloseChannel                     uint8 = 0x18
	MsgTypeSetExtranoncePrefix              uint8 = 0x19
	MsgTypeSubmitSharesStandard             uint8 = 0x1a
	MsgTypeSubmitSharesExtended             uint8 = 0x1b
	MsgTypeSubmitSharesSuccess              uint8 = 0x1c
	MsgTypeSubmitSharesError                uint8 = 0x1d
	MsgTypeNewMiningJob                     uint8 = 0x1e
	MsgTypeNewExtendedMiningJob             uint8 = 0x1f
	MsgTypeSetNewPrevHash                   uint8 = 0x20
	MsgTypeSetTarget                        uint8 = 0x21
	MsgTypeSetCustomMiningJob               uint8 = 0x22
	MsgTypeSetCustomMiningJobSuccess        uint8 = 0x23
	MsgTypeSetCustomMiningJobError          uint8 = 0x24
	MsgTypeReconnect                        uint8 = 0x25
)

func decodeMinNTime(src []byte) (bin.U32AsRef, int, error) { return bin.DecodeU32AsRef(src) }

// NewMiningJob announces a job for a standard channel. A job is "future"
// (not yet bound to a prev_hash) when MinNTime is empty, and is activated
// by a later SetNewPrevHash bearing the same JobID.
type NewMiningJob struct {
	ChannelID  uint32
	JobID      uint32
	MinNTime   bin.Sv2Option[bin.U32AsRef]
	Version    uint32
	MerkleRoot bin.U256
}

func (m NewMiningJob) GetSize() int {
	return 4 + 4 + m.MinNTime.GetSize() + 4 + m.MerkleRoot.GetSize()
}

func (m NewMiningJob) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	off := 0
	n, err := bin.EncodeU32(m.ChannelID, dst[off:])
	if err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.JobID, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.MinNTime.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.Version, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.MerkleRoot.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	return off, nil
}

func DecodeNewMiningJob(src []byte) (NewMiningJob, int, error) {
	var m NewMiningJob
	var off, n int
	var err error
	if m.ChannelID, n, err = bin.DecodeU32(src[off:]); err != nil {
		return NewMiningJob{}, 0, err
	}
	off += n
	if m.JobID, n, err = bin.DecodeU32(src[off:]); err != nil {
		return NewMiningJob{}, 0, err
	}
	off += n
	if m.MinNTime, n, err = bin.DecodeSv2Option(src[off:], decodeMinNTime); err != nil {
		return NewMiningJob{}, 0, err
	}
	off += n
	if m.Version, n, err = bin.DecodeU32(src[off:]); err != nil {
		return NewMiningJob{}, 0, err
	}
	off += n
	if m.MerkleRoot, n, err = bin.DecodeU256(src[off:]); err != nil {
		return NewMiningJob{}, 0, err
	}
	off += n
	return m, off, nil
}

// NewExtendedMiningJob carries the raw coinbase split and merkle path an
// extended-channel miner (or the translator on its behalf) assembles the
// block header from.
type NewExtendedMiningJob struct {
	ChannelID             uint32
	JobID                 uint32
	MinNTime              bin.Sv2Option[bin.U32AsRef]
	Version               uint32
	VersionRollingAllowed bool
	MerklePath            bin.Seq0255[bin.U256]
	CoinbaseTxPrefix      bin.B064K
	CoinbaseTxSuffix      bin.B064K
}

func (m NewExtendedMiningJob) GetSize() int {
	return 4 + 4 + m.MinNTime.GetSize() + 4 + 1 + m.MerklePath.GetSize() +
		m.CoinbaseTxPrefix.GetSize() + m.CoinbaseTxSuffix.GetSize()
}

func (m NewExtendedMiningJob) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	off := 0
	n, err := bin.EncodeU32(m.ChannelID, dst[off:])
	if err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.JobID, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.MinNTime.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.Version, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeBool(m.VersionRollingAllowed, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.MerklePath.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.CoinbaseTxPrefix.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.CoinbaseTxSuffix.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	return off, nil
}

func DecodeNewExtendedMiningJob(src []byte) (NewExtendedMiningJob, int, error) {
	var m NewExtendedMiningJob
	var off, n int
	var err error
	if m.ChannelID, n, err = bin.DecodeU32(src[off:]); err != nil {
		return NewExtendedMiningJob{}, 0, err
	}
	off += n
	if m.JobID, n, err = bin.DecodeU32(src[off:]); err != nil {
		return NewExtendedMiningJob{}, 0, err
	}
	off += n
	if m.MinNTime, n, err = bin.DecodeSv2Option(src[off:], decodeMinNTime); err != nil {
		return NewExtendedMiningJob{}, 0, err
	}
	off += n
	if m.Version, n, err = bin.DecodeU32(src[off:]); err != nil {
		return NewExtendedMiningJob{}, 0, err
	}
	off += n
	if m.VersionRollingAllowed, n, err = bin.DecodeBool(src[off:]); err != nil {
		return NewExtendedMiningJob{}, 0, err
	}
	off += n
	if m.MerklePath, n, err = bin.DecodeSeq0255(src[off:], bin.DecodeU256); err != nil {
		return NewExtendedMiningJob{}, 0, err
	}
	off += n
	if m.CoinbaseTxPrefix, n, err = bin.DecodeB064K(src[off:]); err != nil {
		return NewExtendedMiningJob{}, 0, err
	}
	off += n
	if m.CoinbaseTxSuffix, n, err = bin.DecodeB064K(src[off:]); err != nil {
		return NewExtendedMiningJob{}, 0, err
	}
	off += n
	return m, off, nil
}

// SetNewPrevHash (mining flavor) binds a previously-announced future job to
// a concrete previous-block hash, activating it.
type SetNewPrevHash struct {
	ChannelID uint32
	JobID     uint32
	PrevHash  bin.U256
	MinNTime  uint32
	NBits     uint32
}

func (m SetNewPrevHash) GetSize() int { return 4 + 4 + 32 + 4 + 4 }

func (m SetNewPrevHash) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	off := 0
	n, err := bin.EncodeU32(m.ChannelID, dst[off:])
	if err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.JobID, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.PrevHash.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.MinNTime, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.NBits, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	return off, nil
}

func DecodeSetNewPrevHash(src []byte) (SetNewPrevHash, int, error) {
	var m SetNewPrevHash
	var off, n int
	var err error
	if m.ChannelID, n, err = bin.DecodeU32(src[off:]); err != nil {
		return SetNewPrevHash{}, 0, err
	}
	off += n
	if m.JobID, n, err = bin.DecodeU32(src[off:]); err != nil {
		return SetNewPrevHash{}, 0, err
	}
	off += n
	if m.PrevHash, n, err = bin.DecodeU256(src[off:]); err != nil {
		return SetNewPrevHash{}, 0, err
	}
	off += n
	if m.MinNTime, n, err = bin.DecodeU32(src[off:]); err != nil {
		return SetNewPrevHash{}, 0, err
	}
	off += n
	if m.NBits, n, err = bin.DecodeU32(src[off:]); err != nil {
		return SetNewPrevHash{}, 0, err
	}
	off += n
	return m, off, nil
}

// SetExtranoncePrefix assigns (or reassigns) a channel's extranonce
// prefix.
type SetExtranoncePrefix struct {
	ChannelID        uint32
	ExtranoncePrefix bin.B032
}

func (m SetExtranoncePrefix) GetSize() int { return 4 + m.ExtranoncePrefix.GetSize() }

func (m SetExtranoncePrefix) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	n, err := bin.EncodeU32(m.ChannelID, dst)
	if err != nil {
		return 0, err
	}
	if _, err := m.ExtranoncePrefix.Encode(dst[n:]); err != nil {
		return 0, err
	}
	return m.GetSize(), nil
}

func DecodeSetExtranoncePrefix(src []byte) (SetExtranoncePrefix, int, error) {
	id, n, err := bin.DecodeU32(src)
	if err != nil {
		return SetExtranoncePrefix{}, 0, err
	}
	prefix, n2, err := bin.DecodeB032(src[n:])
	if err != nil {
		return SetExtranoncePrefix{}, 0, err
	}
	return SetExtranoncePrefix{ChannelID: id, ExtranoncePrefix: prefix}, n + n2, nil
}

// CloseChannel tears down a channel, with a human-readable reason.
type CloseChannel struct {
	ChannelID  uint32
	ReasonCode bin.Str0255
}

func (m CloseChannel) GetSize() int { return 4 + m.ReasonCode.GetSize() }

func (m CloseChannel) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	n, err := bin.EncodeU32(m.ChannelID, dst)
	if err != nil {
		return 0, err
	}
	if _, err := m.ReasonCode.Encode(dst[n:]); err != nil {
		return 0, err
	}
	return m.GetSize(), nil
}

func DecodeCloseChannel(src []byte) (CloseChannel, int, error) {
	id, n, err := bin.DecodeU32(src)
	if err != nil {
		return CloseChannel{}, 0, err
	}
	reason, n2, err := bin.DecodeStr0255(src[n:])
	if err != nil {
		return CloseChannel{}, 0, err
	}
	return CloseChannel{ChannelID: id, ReasonCode: reason}, n + n2, nil
}

// OpenStandardMiningChannel requests a new standard channel.
type OpenStandardMiningChannel struct {
	RequestID         uint32
	UserIdentity      bin.Str0255
	NominalHashrate   float32
	MaxTargetRequired bin.U256
}

func (m OpenStandardMiningChannel) GetSize() int {
	return 4 + m.UserIdentity.GetSize() + 4 + 32
}

func (m OpenStandardMiningChannel) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	off := 0
	n, err := bin.EncodeU32(m.RequestID, dst[off:])
	if err != nil {
		return 0, err
	}
	off += n
	if n, err = m.UserIdentity.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeF32(m.NominalHashrate, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.MaxTargetRequired.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	return off, nil
}

func DecodeOpenStandardMiningChannel(src []byte) (OpenStandardMiningChannel, int, error) {
	var m OpenStandardMiningChannel
	var off, n int
	var err error
	if m.RequestID, n, err = bin.DecodeU32(src[off:]); err != nil {
		return OpenStandardMiningChannel{}, 0, err
	}
	off += n
	if m.UserIdentity, n, err = bin.DecodeStr0255(src[off:]); err != nil {
		return OpenStandardMiningChannel{}, 0, err
	}
	off += n
	if m.NominalHashrate, n, err = bin.DecodeF32(src[off:]); err != nil {
		return OpenStandardMiningChannel{}, 0, err
	}
	off += n
	if m.MaxTargetRequired, n, err = bin.DecodeU256(src[off:]); err != nil {
		return OpenStandardMiningChannel{}, 0, err
	}
	off += n
	return m, off, nil
}

// OpenStandardMiningChannelSuccess confirms a channel's creation.
type OpenStandardMiningChannelSuccess struct {
	RequestID        uint32
	ChannelID        uint32
	Target           bin.U256
	ExtranoncePrefix bin.B032
	GroupChannelID   uint32
}

func (m OpenStandardMiningChannelSuccess) GetSize() int {
	return 4 + 4 + 32 + m.ExtranoncePrefix.GetSize() + 4
}

func (m OpenStandardMiningChannelSuccess) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	off := 0
	n, err := bin.EncodeU32(m.RequestID, dst[off:])
	if err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.ChannelID, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.Target.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.ExtranoncePrefix.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.GroupChannelID, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	return off, nil
}

func DecodeOpenStandardMiningChannelSuccess(src []byte) (OpenStandardMiningChannelSuccess, int, error) {
	var m OpenStandardMiningChannelSuccess
	var off, n int
	var err error
	if m.RequestID, n, err = bin.DecodeU32(src[off:]); err != nil {
		return OpenStandardMiningChannelSuccess{}, 0, err
	}
	off += n
	if m.ChannelID, n, err = bin.DecodeU32(src[off:]); err != nil {
		return OpenStandardMiningChannelSuccess{}, 0, err
	}
	off += n
	if m.Target, n, err = bin.DecodeU256(src[off:]); err != nil {
		return OpenStandardMiningChannelSuccess{}, 0, err
	}
	off += n
	if m.ExtranoncePrefix, n, err = bin.DecodeB032(src[off:]); err != nil {
		return OpenStandardMiningChannelSuccess{}, 0, err
	}
	off += n
	if m.GroupChannelID, n, err = bin.DecodeU32(src[off:]); err != nil {
		return OpenStandardMiningChannelSuccess{}, 0, err
	}
	off += n
	return m, off, nil
}

// SubmitSharesStandard reports a solved (or attempted) share on a standard
// channel.
type SubmitSharesStandard struct {
	ChannelID   uint32
	SequenceNum uint32
	JobID       uint32
	Nonce       uint32
	NTime       uint32
	Version     uint32
}

func (m SubmitSharesStandard) GetSize() int { return 4 * 6 }

func (m SubmitSharesStandard) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	vals := []uint32{m.ChannelID, m.SequenceNum, m.JobID, m.Nonce, m.NTime, m.Version}
	off := 0
	for _, v := range vals {
		n, err := bin.EncodeU32(v, dst[off:])
		if err != nil {
			return 0, err
		}
		off += n
	}
	return off, nil
}

func DecodeSubmitSharesStandard(src []byte) (SubmitSharesStandard, int, error) {
	var vals [6]uint32
	off := 0
	for i := range vals {
		v, n, err := bin.DecodeU32(src[off:])
		if err != nil {
			return SubmitSharesStandard{}, 0, err
		}
		vals[i] = v
		off += n
	}
	return SubmitSharesStandard{
		ChannelID:   vals[0],
		SequenceNum: vals[1],
		JobID:       vals[2],
		Nonce:       vals[3],
		NTime:       vals[4],
		Version:     vals[5],
	}, off, nil
}

// SubmitSharesSuccess acknowledges a batch of accepted shares.
type SubmitSharesSuccess struct {
	ChannelID       uint32
	LastSequenceNum uint32
	NewSubmits      uint32
	NewDifficulty   uint64
}

func (m SubmitSharesSuccess) GetSize() int { return 4 + 4 + 4 + 8 }

func (m SubmitSharesSuccess) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	off := 0
	n, err := bin.EncodeU32(m.ChannelID, dst[off:])
	if err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.LastSequenceNum, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.NewSubmits, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU64(m.NewDifficulty, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	return off, nil
}

func DecodeSubmitSharesSuccess(src []byte) (SubmitSharesSuccess, int, error) {
	var m SubmitSharesSuccess
	var off, n int
	var err error
	if m.ChannelID, n, err = bin.DecodeU32(src[off:]); err != nil {
		return SubmitSharesSuccess{}, 0, err
	}
	off += n
	if m.LastSequenceNum, n, err = bin.DecodeU32(src[off:]); err != nil {
		return SubmitSharesSuccess{}, 0, err
	}
	off += n
	if m.NewSubmits, n, err = bin.DecodeU32(src[off:]); err != nil {
		return SubmitSharesSuccess{}, 0, err
	}
	off += n
	if m.NewDifficulty, n, err = bin.DecodeU64(src[off:]); err != nil {
		return SubmitSharesSuccess{}, 0, err
	}
	off += n
	return m, off, nil
}

// SubmitSharesError reports why a share submission was rejected.
type SubmitSharesError struct {
	ChannelID   uint32
	SequenceNum uint32
	ErrorCode   bin.Str0255
}

func (m SubmitSharesError) GetSize() int { return 4 + 4 + m.ErrorCode.GetSize() }

func (m SubmitSharesError) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	off := 0
	n, err := bin.EncodeU32(m.ChannelID, dst[off:])
	if err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.SequenceNum, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.ErrorCode.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	return off, nil
}

func DecodeSubmitSharesError(src []byte) (SubmitSharesError, int, error) {
	var m SubmitSharesError
	var off, n int
	var err error
	if m.ChannelID, n, err = bin.DecodeU32(src[off:]); err != nil {
		return SubmitSharesError{}, 0, err
	}
	off += n
	if m.SequenceNum, n, err = bin.DecodeU32(src[off:]); err != nil {
		return SubmitSharesError{}, 0, err
	}
	off += n
	if m.ErrorCode, n, err = bin.DecodeStr0255(src[off:]); err != nil {
		return SubmitSharesError{}, 0, err
	}
	off += n
	return m, off, nil
}

// SetTarget updates a channel's mining target.
type SetTarget struct {
	ChannelID uint32
	MaxTarget bin.U256
}

func (m SetTarget) GetSize() int { return 4 + 32 }

func (m SetTarget) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	n, err := bin.EncodeU32(m.ChannelID, dst)
	if err != nil {
		return 0, err
	}
	if _, err := m.MaxTarget.Encode(dst[n:]); err != nil {
		return 0, err
	}
	return m.GetSize(), nil
}

func DecodeSetTarget(src []byte) (SetTarget, int, error) {
	id, n, err := bin.DecodeU32(src)
	if err != nil {
		return SetTarget{}, 0, err
	}
	target, n2, err := bin.DecodeU256(src[n:])
	if err != nil {
		return SetTarget{}, 0, err
	}
	return SetTarget{ChannelID: id, MaxTarget: target}, n + n2, nil
}

// Reconnect instructs a downstream to reconnect elsewhere.
type Reconnect struct {
	NewHost bin.Str0255
	NewPort uint16
}

func (m Reconnect) GetSize() int { return m.NewHost.GetSize() + 2 }

func (m Reconnect) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	n, err := m.NewHost.Encode(dst)
	if err != nil {
		return 0, err
	}
	if _, err := bin.EncodeU16(m.NewPort, dst[n:]); err != nil {
		return 0, err
	}
	return m.GetSize(), nil
}

func DecodeReconnect(src []byte) (Reconnect, int, error) {
	host, n, err := bin.DecodeStr0255(src)
	if err != nil {
		return Reconnect{}, 0, err
	}
	port, n2, err := bin.DecodeU16(src[n:])
	if err != nil {
		return Reconnect{}, 0, err
	}
	return Reconnect{NewHost: host, NewPort: port}, n + n2, nil
}
