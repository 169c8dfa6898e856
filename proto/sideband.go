package proto

import (
	"fmt"

	"github.com/cxlfabric/cxlswitch/pkg"
)

// SidebandType identifies the sideband handshake/teardown message kind,
// §2.1, §4.3.
type SidebandType uint8

const (
	SidebandConnectionRequest      SidebandType = 0
	SidebandConnectionAccept       SidebandType = 1
	SidebandConnectionReject       SidebandType = 2
	SidebandConnectionDisconnected SidebandType = 3
)

func (t SidebandType) String() string {
	switch t {
	case SidebandConnectionRequest:
		return "CONNECTION_REQUEST"
	case SidebandConnectionAccept:
		return "CONNECTION_ACCEPT"
	case SidebandConnectionReject:
		return "CONNECTION_REJECT"
	case SidebandConnectionDisconnected:
		return "CONNECTION_DISCONNECTED"
	default:
		return fmt.Sprintf("SidebandType(%d)", uint8(t))
	}
}

// SidebandPacket carries the switch connection handshake. Port is valid
// only on SidebandConnectionRequest, where it names the physical port
// index the connecting device is claiming.
type SidebandPacket struct {
	Type SidebandType
	Port uint8
}

// Len returns the total encoded size, header included.
func (p SidebandPacket) Len() int {
	if p.Type == SidebandConnectionRequest {
		return SystemHeaderLen + 2
	}
	return SystemHeaderLen + 1
}

// MarshalTo encodes p, including its SystemHeader, into buf.
func (p SidebandPacket) MarshalTo(buf []byte) int {
	payloadLen := 1
	if p.Type == SidebandConnectionRequest {
		payloadLen = 2
	}
	SystemHeader{PayloadType: PayloadTypeSideband, PayloadLength: uint16(SystemHeaderLen + payloadLen)}.MarshalTo(buf)
	buf[SystemHeaderLen] = byte(p.Type)
	if p.Type == SidebandConnectionRequest {
		buf[SystemHeaderLen+1] = p.Port
	}
	return SystemHeaderLen + payloadLen
}

// ParseSidebandPacket decodes the payload following a SystemHeader already
// identified as PayloadTypeSideband.
func ParseSidebandPacket(hdr SystemHeader, payload []byte) (SidebandPacket, error) {
	if len(payload) < 1 {
		return SidebandPacket{}, fmt.Errorf("%w: sideband packet with no type byte", pkg.ErrShortPacket)
	}
	p := SidebandPacket{Type: SidebandType(payload[0])}
	if p.Type == SidebandConnectionRequest {
		if len(payload) < 2 {
			return SidebandPacket{}, fmt.Errorf("%w: CONNECTION_REQUEST missing port index", pkg.ErrShortPacket)
		}
		p.Port = payload[1]
	}
	return p, nil
}

// NewConnectionRequest builds the sideband packet a device sends on
// connect to claim a physical port.
func NewConnectionRequest(port uint8) SidebandPacket {
	return SidebandPacket{Type: SidebandConnectionRequest, Port: port}
}

// NewConnectionAccept builds the switch's affirmative handshake reply.
func NewConnectionAccept() SidebandPacket { return SidebandPacket{Type: SidebandConnectionAccept} }

// NewConnectionReject builds the switch's handshake reply for an occupied
// or out-of-range port.
func NewConnectionReject() SidebandPacket { return SidebandPacket{Type: SidebandConnectionReject} }

// NewConnectionDisconnected builds the sentinel the packet processor
// injects into every queue of a connection that has dropped, so consumers
// blocked on a read unblock instead of hanging forever.
func NewConnectionDisconnected() SidebandPacket {
	return SidebandPacket{Type: SidebandConnectionDisconnected}
}
