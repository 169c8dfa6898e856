package proto

import (
	"fmt"

	"github.com/cxlfabric/cxlswitch/pkg"
)

// MemClass is the CXL.mem message class: master-to-subordinate request, or
// one of the two subordinate-to-master response shapes, §6.
type MemClass uint8

const (
	MemClassM2SReq MemClass = 0 // request, no data (read)
	MemClassM2SRwD MemClass = 1 // request with data (write)
	MemClassS2MNDR MemClass = 2 // no-data response
	MemClassS2MDRS MemClass = 3 // data response
)

func (c MemClass) String() string {
	switch c {
	case MemClassM2SReq:
		return "M2S_REQ"
	case MemClassM2SRwD:
		return "M2S_RWD"
	case MemClassS2MNDR:
		return "S2M_NDR"
	case MemClassS2MDRS:
		return "S2M_DRS"
	default:
		return fmt.Sprintf("MemClass(%d)", uint8(c))
	}
}

// MemOpcode is the per-class memory operation, a small subset of the CXL.mem
// opcode space sufficient for host<->device load/store emulation.
type MemOpcode uint8

const (
	MemOpRead       MemOpcode = 1 // M2SReq
	MemOpWrite      MemOpcode = 2 // M2SRwD
	MemOpCompNoData MemOpcode = 3 // S2MNDR
	MemOpCompData   MemOpcode = 4 // S2MDRS
)

// cxlMemHeaderLen is the fixed header size before any data block.
const cxlMemHeaderLen = 16

// CxlMemDataLen is the size of a CXL.mem data block (one cacheline), §6.
const CxlMemDataLen = 64

// CxlMemPacket is a decoded CXL.mem packet. CacheID selects the fabric's
// cache-ID decoder entry for multi-logical-device routing, §4.2.
type CxlMemPacket struct {
	Class   MemClass
	Opcode  MemOpcode
	Address uint64 // 64-byte aligned
	Tag     uint16
	CacheID uint8
	Data    []byte // CxlMemDataLen bytes, present for M2SRwD and S2MDRS
}

// GetTransactionID keys the correlation table the same way CXL.io does,
// using Tag as both fields packed together since CXL.mem has no separate
// requester ID on this emulated fabric.
func (p CxlMemPacket) GetTransactionID() uint32 { return uint32(p.Tag) }

// Len returns the total encoded size, header and data included.
func (p CxlMemPacket) Len() int {
	n := SystemHeaderLen + cxlMemHeaderLen
	if p.Class == MemClassM2SRwD || p.Class == MemClassS2MDRS {
		n += CxlMemDataLen
	}
	return n
}

// MarshalTo encodes p, including its SystemHeader, into buf.
func (p CxlMemPacket) MarshalTo(buf []byte) int {
	total := p.Len()
	SystemHeader{PayloadType: PayloadTypeCxlMem, PayloadLength: uint16(total)}.MarshalTo(buf)
	b := buf[SystemHeaderLen:]

	b[0] = byte(p.Class)
	b[1] = byte(p.Opcode)
	putUint64LE(b[2:10], p.Address)
	putUint16LE(b[10:12], p.Tag)
	b[12] = p.CacheID
	b[13], b[14], b[15] = 0, 0, 0

	n := SystemHeaderLen + cxlMemHeaderLen
	if len(p.Data) > 0 {
		n += copy(buf[n:], p.Data)
	}
	return n
}

// ParseCxlMemPacket decodes the payload following a SystemHeader already
// identified as PayloadTypeCxlMem.
func ParseCxlMemPacket(hdr SystemHeader, payload []byte) (CxlMemPacket, error) {
	if len(payload) < cxlMemHeaderLen {
		return CxlMemPacket{}, fmt.Errorf("%w: CXL.mem packet needs %d header bytes, got %d", pkg.ErrShortPacket, cxlMemHeaderLen, len(payload))
	}
	p := CxlMemPacket{
		Class:   MemClass(payload[0]),
		Opcode:  MemOpcode(payload[1]),
		Address: getUint64LE(payload[2:10]),
		Tag:     getUint16LE(payload[10:12]),
		CacheID: payload[12],
	}
	if p.Class == MemClassM2SRwD || p.Class == MemClassS2MDRS {
		if len(payload) < cxlMemHeaderLen+CxlMemDataLen {
			return CxlMemPacket{}, fmt.Errorf("%w: CXL.mem data block truncated", pkg.ErrShortPacket)
		}
		p.Data = append([]byte(nil), payload[cxlMemHeaderLen:cxlMemHeaderLen+CxlMemDataLen]...)
	}
	return p, nil
}

// NewMemRead builds an M2S request reading one cacheline at addr.
func NewMemRead(addr uint64, tag uint16, cacheID uint8) CxlMemPacket {
	return CxlMemPacket{Class: MemClassM2SReq, Opcode: MemOpRead, Address: addr, Tag: tag, CacheID: cacheID}
}

// NewMemWrite builds an M2S request writing one cacheline of data at addr.
// data must be CxlMemDataLen bytes.
func NewMemWrite(addr uint64, data []byte, tag uint16, cacheID uint8) CxlMemPacket {
	return CxlMemPacket{Class: MemClassM2SRwD, Opcode: MemOpWrite, Address: addr, Data: data, Tag: tag, CacheID: cacheID}
}

// NewMemCompletion builds an S2M no-data response (write acknowledgment).
func NewMemCompletion(tag uint16, cacheID uint8) CxlMemPacket {
	return CxlMemPacket{Class: MemClassS2MNDR, Opcode: MemOpCompNoData, Tag: tag, CacheID: cacheID}
}

// NewMemCompletionData builds an S2M data response (read result). data
// must be CxlMemDataLen bytes.
func NewMemCompletionData(data []byte, tag uint16, cacheID uint8) CxlMemPacket {
	return CxlMemPacket{Class: MemClassS2MDRS, Opcode: MemOpCompData, Data: data, Tag: tag, CacheID: cacheID}
}
