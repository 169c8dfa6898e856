package proto

import (
	"fmt"
	"io"

	"github.com/cxlfabric/cxlswitch/pkg"
)

// Packet is implemented by every decoded wire value in this package. Len
// reports the packet's total encoded size, SystemHeader included.
type Packet interface {
	Len() int
	MarshalTo(buf []byte) int
}

// GetPacket reads one framed packet from r: a SystemHeader, then its
// payload, dispatching on PayloadType to the matching decoder. This is the
// single entry point the packet processor's read loop uses, mirroring the
// teacher's msg-type switch in host/hal/fifo/fifo.go generalized from USB
// message kinds to CXL payload types.
func GetPacket(r io.Reader) (Packet, error) {
	hdr, err := ReadSystemHeader(r)
	if err != nil {
		return nil, err
	}
	payloadLen := int(hdr.PayloadLength) - SystemHeaderLen
	if payloadLen < 0 {
		return nil, fmt.Errorf("%w: payload_length %d shorter than header", pkg.ErrShortPacket, hdr.PayloadLength)
	}
	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("reading %s payload: %w", hdr.PayloadType, err)
		}
	}

	switch hdr.PayloadType {
	case PayloadTypeSideband:
		p, err := ParseSidebandPacket(hdr, payload)
		return p, err
	case PayloadTypeCxlIO:
		p, err := ParseCxlIoPacket(hdr, payload)
		return p, err
	case PayloadTypeCxlMem:
		p, err := ParseCxlMemPacket(hdr, payload)
		return p, err
	case PayloadTypeCxlCache:
		p, err := ParseCxlCachePacket(hdr, payload)
		return p, err
	case PayloadTypeCci:
		p, err := ParseCciMessage(hdr, payload)
		return p, err
	default:
		return nil, fmt.Errorf("%w: payload_type %d", pkg.ErrUnsupportedPacket, hdr.PayloadType)
	}
}

// Encode returns p's full wire encoding, SystemHeader included.
func Encode(p Packet) []byte {
	buf := make([]byte, p.Len())
	p.MarshalTo(buf)
	return buf
}
