package proto

import (
	"fmt"

	"github.com/cxlfabric/cxlswitch/pkg"
)

// CacheClass is the CXL.cache message class, mirroring CXL.mem's
// request/response split but for device-initiated cache line requests,
// §6.
type CacheClass uint8

const (
	CacheClassD2HReq  CacheClass = 0 // device-to-host request (snoop-able read/write)
	CacheClassH2DResp CacheClass = 1 // host-to-device response (grant/go)
	CacheClassH2DData CacheClass = 2 // host-to-device data response
)

func (c CacheClass) String() string {
	switch c {
	case CacheClassD2HReq:
		return "D2H_REQ"
	case CacheClassH2DResp:
		return "H2D_RESP"
	case CacheClassH2DData:
		return "H2D_DATA"
	default:
		return fmt.Sprintf("CacheClass(%d)", uint8(c))
	}
}

const cxlCacheHeaderLen = 16

// CxlCachePacket is a decoded CXL.cache packet carrying a device-initiated
// cache protocol request or the host's response, addressed by CacheID
// through the same cache-ID decoder/routing table CXL.mem uses.
type CxlCachePacket struct {
	Class   CacheClass
	Address uint64
	Tag     uint16
	CacheID uint8
	Data    []byte // CxlMemDataLen bytes, present on CacheClassH2DData
}

func (p CxlCachePacket) GetTransactionID() uint32 { return uint32(p.Tag) }

func (p CxlCachePacket) Len() int {
	n := SystemHeaderLen + cxlCacheHeaderLen
	if p.Class == CacheClassH2DData {
		n += CxlMemDataLen
	}
	return n
}

func (p CxlCachePacket) MarshalTo(buf []byte) int {
	total := p.Len()
	SystemHeader{PayloadType: PayloadTypeCxlCache, PayloadLength: uint16(total)}.MarshalTo(buf)
	b := buf[SystemHeaderLen:]

	b[0] = byte(p.Class)
	putUint64LE(b[1:9], p.Address)
	putUint16LE(b[9:11], p.Tag)
	b[11] = p.CacheID

	n := SystemHeaderLen + cxlCacheHeaderLen
	if len(p.Data) > 0 {
		n += copy(buf[n:], p.Data)
	}
	return n
}

func ParseCxlCachePacket(hdr SystemHeader, payload []byte) (CxlCachePacket, error) {
	if len(payload) < cxlCacheHeaderLen {
		return CxlCachePacket{}, fmt.Errorf("%w: CXL.cache packet needs %d header bytes, got %d", pkg.ErrShortPacket, cxlCacheHeaderLen, len(payload))
	}
	p := CxlCachePacket{
		Class:   CacheClass(payload[0]),
		Address: getUint64LE(payload[1:9]),
		Tag:     getUint16LE(payload[9:11]),
		CacheID: payload[11],
	}
	if p.Class == CacheClassH2DData {
		if len(payload) < cxlCacheHeaderLen+CxlMemDataLen {
			return CxlCachePacket{}, fmt.Errorf("%w: CXL.cache data block truncated", pkg.ErrShortPacket)
		}
		p.Data = append([]byte(nil), payload[cxlCacheHeaderLen:cxlCacheHeaderLen+CxlMemDataLen]...)
	}
	return p, nil
}

// NewCacheRead builds a device-initiated read request for one cacheline.
func NewCacheRead(addr uint64, tag uint16, cacheID uint8) CxlCachePacket {
	return CxlCachePacket{Class: CacheClassD2HReq, Address: addr, Tag: tag, CacheID: cacheID}
}

// NewCacheGrant builds the host's non-data response (e.g. invalidate ack).
func NewCacheGrant(tag uint16, cacheID uint8) CxlCachePacket {
	return CxlCachePacket{Class: CacheClassH2DResp, Tag: tag, CacheID: cacheID}
}

// NewCacheData builds the host's data response to a device read request.
// data must be CxlMemDataLen bytes.
func NewCacheData(data []byte, tag uint16, cacheID uint8) CxlCachePacket {
	return CxlCachePacket{Class: CacheClassH2DData, Data: data, Tag: tag, CacheID: cacheID}
}
