package proto

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cxlfabric/cxlswitch/pkg"
)

// PayloadType identifies which protocol class follows a SystemHeader.
type PayloadType uint8

// Payload types, §2.1.
const (
	PayloadTypeCxlIO    PayloadType = 1
	PayloadTypeCxlMem   PayloadType = 2
	PayloadTypeCxlCache PayloadType = 3
	PayloadTypeCci      PayloadType = 4
	PayloadTypeSideband PayloadType = 15
)

func (t PayloadType) String() string {
	switch t {
	case PayloadTypeCxlIO:
		return "CXL_IO"
	case PayloadTypeCxlMem:
		return "CXL_MEM"
	case PayloadTypeCxlCache:
		return "CXL_CACHE"
	case PayloadTypeCci:
		return "CCI"
	case PayloadTypeSideband:
		return "SIDEBAND"
	default:
		return fmt.Sprintf("PayloadType(%d)", uint8(t))
	}
}

// SystemHeaderLen is the fixed size in bytes of every SystemHeader.
const SystemHeaderLen = 4

// SystemHeader prefixes every packet on a switch connection: a 4-bit
// payload type and a 12-bit payload length (the byte count of the whole
// packet, this header included), per §2.1.
type SystemHeader struct {
	PayloadType   PayloadType
	PayloadLength uint16
}

// MarshalTo encodes h into buf[0:4]. buf must be at least SystemHeaderLen
// bytes.
func (h SystemHeader) MarshalTo(buf []byte) {
	buf[0] = byte(h.PayloadType&0x0F) | byte((h.PayloadLength&0x0F)<<4)
	buf[1] = byte(h.PayloadLength >> 4)
	buf[2] = 0
	buf[3] = 0
}

// ParseSystemHeader decodes a SystemHeader from buf[0:4].
func ParseSystemHeader(buf []byte) (SystemHeader, error) {
	if len(buf) < SystemHeaderLen {
		return SystemHeader{}, fmt.Errorf("%w: system header needs %d bytes, got %d", pkg.ErrShortPacket, SystemHeaderLen, len(buf))
	}
	length := uint16(buf[0]>>4) | uint16(buf[1])<<4
	return SystemHeader{
		PayloadType:   PayloadType(buf[0] & 0x0F),
		PayloadLength: length,
	}, nil
}

// ReadSystemHeader reads exactly SystemHeaderLen bytes from r and decodes
// them. Returns io.EOF unchanged if r is closed before any byte is read,
// so callers can use it as a frame-loop sentinel the way the teacher's FIFO
// HAL treats a closed named pipe.
func ReadSystemHeader(r io.Reader) (SystemHeader, error) {
	var buf [SystemHeaderLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return SystemHeader{}, err
	}
	return ParseSystemHeader(buf[:])
}

// putUint16LE, getUint16LE and their 32/64-bit siblings are small helpers kept local to proto so
// sub-codecs don't each re-import encoding/binary for one call site.
func putUint16LE(buf []byte, v uint16) { binary.LittleEndian.PutUint16(buf, v) }
func getUint16LE(buf []byte) uint16    { return binary.LittleEndian.Uint16(buf) }
func putUint32LE(buf []byte, v uint32) { binary.LittleEndian.PutUint32(buf, v) }
func getUint32LE(buf []byte) uint32    { return binary.LittleEndian.Uint32(buf) }
func putUint64LE(buf []byte, v uint64) { binary.LittleEndian.PutUint64(buf, v) }
func getUint64LE(buf []byte) uint64    { return binary.LittleEndian.Uint64(buf) }
