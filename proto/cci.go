package proto

import (
	"fmt"

	"github.com/cxlfabric/cxlswitch/pkg"
)

// cciHeaderLen is the fixed CCI message header: opcode (2B), a message tag
// (1B), a response flag (1B, nonzero on a response), return code (2B, response only), vendor-specific
// extended status (2B), and payload length (4B), §2.2.
const cciHeaderLen = 12

// CciMessage is a decoded CCI/MCTP fabric-manager command or response, used
// both on a native CCI connection and, wrapped, as the payload of a
// TunnelManagementCommand.
type CciMessage struct {
	Opcode     uint16
	Tag        uint8
	IsResponse bool
	ReturnCode pkg.ReturnCode
	Payload    []byte
}

// Len returns the total encoded size, header and payload included.
func (m CciMessage) Len() int { return SystemHeaderLen + cciHeaderLen + len(m.Payload) }

// MarshalTo encodes m, including its SystemHeader, into buf.
func (m CciMessage) MarshalTo(buf []byte) int {
	total := m.Len()
	SystemHeader{PayloadType: PayloadTypeCci, PayloadLength: uint16(total)}.MarshalTo(buf)
	b := buf[SystemHeaderLen:]

	putUint16LE(b[0:2], m.Opcode)
	b[2] = m.Tag
	if m.IsResponse {
		b[3] = 1
	}
	putUint16LE(b[4:6], uint16(m.ReturnCode))
	b[6], b[7] = 0, 0
	putUint32LE(b[8:12], uint32(len(m.Payload)))

	n := SystemHeaderLen + cciHeaderLen
	n += copy(buf[n:], m.Payload)
	return n
}

// ParseCciMessage decodes a CCI message from its header-following payload.
func ParseCciMessage(hdr SystemHeader, payload []byte) (CciMessage, error) {
	if len(payload) < cciHeaderLen {
		return CciMessage{}, fmt.Errorf("%w: CCI message needs %d header bytes, got %d", pkg.ErrShortPacket, cciHeaderLen, len(payload))
	}
	m := CciMessage{
		Opcode:     getUint16LE(payload[0:2]),
		Tag:        payload[2],
		IsResponse: payload[3] != 0,
		ReturnCode: pkg.ReturnCode(getUint16LE(payload[4:6])),
	}
	plen := int(getUint32LE(payload[8:12]))
	if len(payload) < cciHeaderLen+plen {
		return CciMessage{}, fmt.Errorf("%w: CCI message payload truncated: want %d, have %d", pkg.ErrShortPacket, plen, len(payload)-cciHeaderLen)
	}
	if plen > 0 {
		m.Payload = append([]byte(nil), payload[cciHeaderLen:cciHeaderLen+plen]...)
	}
	return m, nil
}

// NewCciCommand builds an outgoing CCI command message.
func NewCciCommand(opcode uint16, tag uint8, payload []byte) CciMessage {
	return CciMessage{Opcode: opcode, Tag: tag, Payload: payload}
}

// NewCciResponse builds a CCI response to the given command's tag.
func NewCciResponse(opcode uint16, tag uint8, rc pkg.ReturnCode, payload []byte) CciMessage {
	return CciMessage{Opcode: opcode, Tag: tag, IsResponse: true, ReturnCode: rc, Payload: payload}
}
