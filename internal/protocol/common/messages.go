// Package common implements the Sv2 Common/Setup sub-protocol message
// records shared by every role before it specializes into Mining, Job
// Declaration, or Template Distribution.
package common

import (
	bin "github.com/ironseam/sv2bridge/internal/binary"
)

// Message type numbers for the Common sub-protocol, stable across the
// frame header's msg_type byte.
const (
	MsgTypeSetupConnection        uint8 = 0x00
	MsgTypeSetupConnectionSuccess uint8 = 0x01
	MsgTypeSetupConnectionError   uint8 = 0x02
	MsgTypeChannelEndpointChanged uint8 = 0x03
)

// Protocol identifies which of the four sub-protocols a SetupConnection is
// negotiating.
type Protocol uint8

const (
	ProtocolMining              Protocol = 0
	ProtocolJobDeclaration      Protocol = 1
	ProtocolTemplateDistribution Protocol = 2
)

// SetupConnection opens every Sv2 connection, regardless of sub-protocol.
type SetupConnection struct {
	Protocol        Protocol
	MinVersion      uint16
	MaxVersion      uint16
	Flags           uint32
	EndpointHost    bin.Str0255
	EndpointPort    uint16
	Vendor          bin.Str0255
	HardwareVersion bin.Str0255
	Firmware        bin.Str0255
	DeviceID        bin.Str0255
}

func (m SetupConnection) GetSize() int {
	return 1 + 2 + 2 + 4 + m.EndpointHost.GetSize() + 2 +
		m.Vendor.GetSize() + m.HardwareVersion.GetSize() + m.Firmware.GetSize() + m.DeviceID.GetSize()
}

func (m SetupConnection) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	off := 0
	dst[off] = byte(m.Protocol)
	off++
	n, err := bin.EncodeU16(m.MinVersion, dst[off:])
	if err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU16(m.MaxVersion, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU32(m.Flags, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.EndpointHost.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = bin.EncodeU16(m.EndpointPort, dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.Vendor.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.HardwareVersion.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.Firmware.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	if n, err = m.DeviceID.Encode(dst[off:]); err != nil {
		return 0, err
	}
	off += n
	return off, nil
}

func DecodeSetupConnection(src []byte) (SetupConnection, int, error) {
	if len(src) < 1 {
		return SetupConnection{}, 0, &bin.OutOfBoundErr{Wanted: 1, Got: len(src)}
	}
	var m SetupConnection
	off := 0
	m.Protocol = Protocol(src[off])
	off++

	var n int
	var err error
	if m.MinVersion, n, err = bin.DecodeU16(src[off:]); err != nil {
		return SetupConnection{}, 0, err
	}
	off += n
	if m.MaxVersion, n, err = bin.DecodeU16(src[off:]); err != nil {
		return SetupConnection{}, 0, err
	}
	off += n
	if m.Flags, n, err = bin.DecodeU32(src[off:]); err != nil {
		return SetupConnection{}, 0, err
	}
	off += n
	if m.EndpointHost, n, err = bin.DecodeStr0255(src[off:]); err != nil {
		return SetupConnection{}, 0, err
	}
	off += n
	if m.EndpointPort, n, err = bin.DecodeU16(src[off:]); err != nil {
		return SetupConnection{}, 0, err
	}
	off += n
	if m.Vendor, n, err = bin.DecodeStr0255(src[off:]); err != nil {
		return SetupConnection{}, 0, err
	}
	off += n
	if m.HardwareVersion, n, err = bin.DecodeStr0255(src[off:]); err != nil {
		return SetupConnection{}, 0, err
	}
	off += n
	if m.Firmware, n, err = bin.DecodeStr0255(src[off:]); err != nil {
		return SetupConnection{}, 0, err
	}
	off += n
	if m.DeviceID, n, err = bin.DecodeStr0255(src[off:]); err != nil {
		return SetupConnection{}, 0, err
	}
	off += n
	return m, off, nil
}

// SetupConnectionSuccess confirms the protocol version the server chose.
type SetupConnectionSuccess struct {
	UsedVersion uint16
	Flags       uint32
}

func (m SetupConnectionSuccess) GetSize() int { return 6 }

func (m SetupConnectionSuccess) Encode(dst []byte) (int, error) {
	if len(dst) < 6 {
		return 0, &bin.WriteErr{Expected: 6, Actual: len(dst)}
	}
	n, err := bin.EncodeU16(m.UsedVersion, dst)
	if err != nil {
		return 0, err
	}
	if _, err := bin.EncodeU32(m.Flags, dst[n:]); err != nil {
		return 0, err
	}
	return 6, nil
}

func DecodeSetupConnectionSuccess(src []byte) (SetupConnectionSuccess, int, error) {
	v, n, err := bin.DecodeU16(src)
	if err != nil {
		return SetupConnectionSuccess{}, 0, err
	}
	f, n2, err := bin.DecodeU32(src[n:])
	if err != nil {
		return SetupConnectionSuccess{}, 0, err
	}
	return SetupConnectionSuccess{UsedVersion: v, Flags: f}, n + n2, nil
}

// SetupConnectionError reports why the server rejected a SetupConnection.
// Whether the receiving side treats it as fatal or retries is a policy
// decision of the role, not of this record.
type SetupConnectionError struct {
	Flags     uint32
	ErrorCode bin.Str0255
}

func (m SetupConnectionError) GetSize() int { return 4 + m.ErrorCode.GetSize() }

func (m SetupConnectionError) Encode(dst []byte) (int, error) {
	if len(dst) < m.GetSize() {
		return 0, &bin.WriteErr{Expected: m.GetSize(), Actual: len(dst)}
	}
	n, err := bin.EncodeU32(m.Flags, dst)
	if err != nil {
		return 0, err
	}
	if _, err := m.ErrorCode.Encode(dst[n:]); err != nil {
		return 0, err
	}
	return m.GetSize(), nil
}

func DecodeSetupConnectionError(src []byte) (SetupConnectionError, int, error) {
	flags, n, err := bin.DecodeU32(src)
	if err != nil {
		return SetupConnectionError{}, 0, err
	}
	code, n2, err := bin.DecodeStr0255(src[n:])
	if err != nil {
		return SetupConnectionError{}, 0, err
	}
	return SetupConnectionError{Flags: flags, ErrorCode: code}, n + n2, nil
}

// ChannelEndpointChanged notifies that a channel's routing endpoint
// changed (e.g. after an upstream reconnect). The translator, with its
// single upstream channel, has no rerouting policy to apply on receipt;
// multi-channel roles would.
type ChannelEndpointChanged struct {
	ChannelID uint32
}

func (m ChannelEndpointChanged) GetSize() int { return 4 }

func (m ChannelEndpointChanged) Encode(dst []byte) (int, error) {
	_, err := bin.EncodeU32(m.ChannelID, dst)
	return 4, err
}

func DecodeChannelEndpointChanged(src []byte) (ChannelEndpointChanged, int, error) {
	id, n, err := bin.DecodeU32(src)
	if err != nil {
		return ChannelEndpointChanged{}, 0, err
	}
	return ChannelEndpointChanged{ChannelID: id}, n, nil
}
