package proto

import (
	"fmt"

	"github.com/cxlfabric/cxlswitch/pkg"
)

// FmtType is the CXL.io TLP format/type byte, §6.
type FmtType uint8

// TLP format/type values, §6.
const (
	FmtTypeMrd32  FmtType = 0x00
	FmtTypeMrd64  FmtType = 0x20
	FmtTypeMwr32  FmtType = 0x40
	FmtTypeMwr64  FmtType = 0x60
	FmtTypeCfgRd0 FmtType = 0x04
	FmtTypeCfgWr0 FmtType = 0x44
	FmtTypeCfgRd1 FmtType = 0x05
	FmtTypeCfgWr1 FmtType = 0x45
	FmtTypeCpl    FmtType = 0x0A
	FmtTypeCplD   FmtType = 0x4A
)

func (f FmtType) String() string {
	switch f {
	case FmtTypeMrd32:
		return "MRD_32B"
	case FmtTypeMrd64:
		return "MRD_64B"
	case FmtTypeMwr32:
		return "MWR_32B"
	case FmtTypeMwr64:
		return "MWR_64B"
	case FmtTypeCfgRd0:
		return "CFG_RD0"
	case FmtTypeCfgWr0:
		return "CFG_WR0"
	case FmtTypeCfgRd1:
		return "CFG_RD1"
	case FmtTypeCfgWr1:
		return "CFG_WR1"
	case FmtTypeCpl:
		return "CPL"
	case FmtTypeCplD:
		return "CPL_D"
	default:
		return fmt.Sprintf("FmtType(%#02x)", uint8(f))
	}
}

// IsWrite reports whether fmtType carries a request payload (MWR, CFG_WR).
func (f FmtType) IsWrite() bool { return f&0x40 != 0 && f != FmtTypeCpl && f != FmtTypeCplD }

// IsPosted reports whether fmtType expects no completion TLP (memory
// writes only; everything else, including config writes, is non-posted
// and gets a transaction ID entry, §3).
func (f FmtType) IsPosted() bool { return f == FmtTypeMwr32 || f == FmtTypeMwr64 }

// CxlIoKind groups the ten FmtType values into the three sub-header shapes
// a CXL.io TLP can carry.
type CxlIoKind uint8

const (
	CxlIoMemoryRequest CxlIoKind = iota
	CxlIoConfigRequest
	CxlIoCompletion
)

func kindOf(f FmtType) (CxlIoKind, error) {
	switch f {
	case FmtTypeMrd32, FmtTypeMrd64, FmtTypeMwr32, FmtTypeMwr64:
		return CxlIoMemoryRequest, nil
	case FmtTypeCfgRd0, FmtTypeCfgWr0, FmtTypeCfgRd1, FmtTypeCfgWr1:
		return CxlIoConfigRequest, nil
	case FmtTypeCpl, FmtTypeCplD:
		return CxlIoCompletion, nil
	default:
		return 0, fmt.Errorf("%w: fmt_type %#02x", pkg.ErrUnsupportedPacket, uint8(f))
	}
}

// TlpPrefix is the optional multi-logical-device routing prefix carried
// ahead of the TLP header for fabric-managed MLDs, §6, §3 (S3).
type TlpPrefix struct {
	LdID uint8
}

// cxlIoHeaderLen is the fixed 20-byte TLP header: 8 common bytes plus 12
// bytes of kind-specific sub-header, §4.2.
const cxlIoHeaderLen = 20

// CxlIoPacket is a decoded CXL.io TLP: the common header fields plus
// whichever kind-specific sub-header its FmtType selects. Only the fields
// relevant to Kind are meaningful; callers switch on Kind (or just read
// FmtType) before touching sub-header fields.
type CxlIoPacket struct {
	FmtType     FmtType
	Kind        CxlIoKind
	LengthDW    uint16 // payload length in DWORDs, valid for memory requests
	Attributes  uint8
	RequesterID uint16
	Tag         uint8
	Prefix      TlpPrefix

	// Memory request (MRD/MWR)
	Address uint64 // byte address, reconstructed from the wire's split upper/lower fields

	// Config request (CFG_RD/CFG_WR)
	Bus      uint8
	Device   uint8
	Function uint8
	Register uint16 // extended config space offset, 12 bits

	// Completion (CPL/CPL_D)
	CompleterID uint16
	Status      pkg.CompletionStatus
	ByteCount   uint16

	Data []byte // write data (MWR) or completion data (CPL_D)
}

// GetTransactionID returns the (requester_id, tag) pair packed the way the
// correlation table keys it, §3.
func (p CxlIoPacket) GetTransactionID() uint32 {
	return uint32(p.RequesterID)<<8 | uint32(p.Tag)
}

func memAddress(upper56, lower6 uint64) uint64 { return (upper56 << 8) | (lower6 << 2) }
func splitAddress(addr uint64) (upper56, lower6 uint64) {
	return addr >> 8, (addr >> 2) & 0x3F
}

// Len returns the total encoded size, header and data included.
func (p CxlIoPacket) Len() int { return SystemHeaderLen + cxlIoHeaderLen + len(p.Data) }

// MarshalTo encodes p, including its SystemHeader, into buf. buf must be
// at least p.Len() bytes.
func (p CxlIoPacket) MarshalTo(buf []byte) int {
	total := p.Len()
	SystemHeader{PayloadType: PayloadTypeCxlIO, PayloadLength: uint16(total)}.MarshalTo(buf)
	b := buf[SystemHeaderLen:]

	b[0] = byte(p.FmtType)
	putUint16LE(b[1:3], p.LengthDW)
	b[3] = p.Attributes
	putUint16LE(b[4:6], p.RequesterID)
	b[6] = p.Tag
	b[7] = p.Prefix.LdID

	switch p.Kind {
	case CxlIoMemoryRequest:
		upper, lower := splitAddress(p.Address)
		putUint64LE(b[8:16], upper)
		b[16] = byte(lower)
	case CxlIoConfigRequest:
		b[8] = p.Bus
		b[9] = (p.Device & 0x1F) | (p.Function&0x07)<<5
		putUint16LE(b[10:12], p.Register&0x0FFF)
	case CxlIoCompletion:
		putUint16LE(b[8:10], p.CompleterID)
		b[10] = byte(p.Status)
		putUint16LE(b[11:13], p.ByteCount)
	}

	n := SystemHeaderLen + cxlIoHeaderLen
	n += copy(buf[n:], p.Data)
	return n
}

// ParseCxlIoPacket decodes the payload following a SystemHeader already
// identified as PayloadTypeCxlIO.
func ParseCxlIoPacket(hdr SystemHeader, payload []byte) (CxlIoPacket, error) {
	if len(payload) < cxlIoHeaderLen {
		return CxlIoPacket{}, fmt.Errorf("%w: CXL.io TLP needs %d header bytes, got %d", pkg.ErrShortPacket, cxlIoHeaderLen, len(payload))
	}
	fmtType := FmtType(payload[0])
	kind, err := kindOf(fmtType)
	if err != nil {
		return CxlIoPacket{}, err
	}

	p := CxlIoPacket{
		FmtType:     fmtType,
		Kind:        kind,
		LengthDW:    getUint16LE(payload[1:3]),
		Attributes:  payload[3],
		RequesterID: getUint16LE(payload[4:6]),
		Tag:         payload[6],
		Prefix:      TlpPrefix{LdID: payload[7]},
	}

	switch kind {
	case CxlIoMemoryRequest:
		upper := getUint64LE(payload[8:16])
		lower := uint64(payload[16])
		p.Address = memAddress(upper, lower)
	case CxlIoConfigRequest:
		p.Bus = payload[8]
		p.Device = payload[9] & 0x1F
		p.Function = (payload[9] >> 5) & 0x07
		p.Register = getUint16LE(payload[10:12]) & 0x0FFF
	case CxlIoCompletion:
		p.CompleterID = getUint16LE(payload[8:10])
		p.Status = pkg.CompletionStatus(payload[10])
		p.ByteCount = getUint16LE(payload[11:13])
	}

	if want := int(hdr.PayloadLength) - SystemHeaderLen - cxlIoHeaderLen; want > 0 {
		if len(payload) < cxlIoHeaderLen+want {
			return CxlIoPacket{}, fmt.Errorf("%w: CXL.io TLP data truncated: want %d, have %d", pkg.ErrShortPacket, want, len(payload)-cxlIoHeaderLen)
		}
		p.Data = append([]byte(nil), payload[cxlIoHeaderLen:cxlIoHeaderLen+want]...)
	}
	return p, nil
}

// NewMemoryRead builds a non-posted CXL.io memory read TLP.
func NewMemoryRead(addr uint64, lengthDW uint16, requesterID uint16, tag uint8, ldID uint8) CxlIoPacket {
	return CxlIoPacket{
		FmtType: FmtTypeMrd64, Kind: CxlIoMemoryRequest,
		Address: addr, LengthDW: lengthDW,
		RequesterID: requesterID, Tag: tag, Prefix: TlpPrefix{LdID: ldID},
	}
}

// NewMemoryWrite builds a posted CXL.io memory write TLP carrying data.
func NewMemoryWrite(addr uint64, data []byte, requesterID uint16, tag uint8, ldID uint8) CxlIoPacket {
	return CxlIoPacket{
		FmtType: FmtTypeMwr64, Kind: CxlIoMemoryRequest,
		Address: addr, LengthDW: uint16((len(data) + 3) / 4), Data: data,
		RequesterID: requesterID, Tag: tag, Prefix: TlpPrefix{LdID: ldID},
	}
}

// NewConfigRead builds a CXL.io type-0 configuration read TLP.
func NewConfigRead(bus, device, function uint8, register uint16, requesterID uint16, tag uint8, ldID uint8) CxlIoPacket {
	return CxlIoPacket{
		FmtType: FmtTypeCfgRd0, Kind: CxlIoConfigRequest,
		Bus: bus, Device: device, Function: function, Register: register,
		RequesterID: requesterID, Tag: tag, Prefix: TlpPrefix{LdID: ldID},
	}
}

// NewConfigWrite builds a CXL.io type-0 configuration write TLP.
func NewConfigWrite(bus, device, function uint8, register uint16, data []byte, requesterID uint16, tag uint8, ldID uint8) CxlIoPacket {
	return CxlIoPacket{
		FmtType: FmtTypeCfgWr0, Kind: CxlIoConfigRequest,
		Bus: bus, Device: device, Function: function, Register: register, Data: data,
		RequesterID: requesterID, Tag: tag, Prefix: TlpPrefix{LdID: ldID},
	}
}

// NewCompletion builds a data-less completion (for posted/errored requests).
func NewCompletion(completerID uint16, status pkg.CompletionStatus, requesterID uint16, tag uint8, ldID uint8) CxlIoPacket {
	return CxlIoPacket{
		FmtType: FmtTypeCpl, Kind: CxlIoCompletion,
		CompleterID: completerID, Status: status,
		RequesterID: requesterID, Tag: tag, Prefix: TlpPrefix{LdID: ldID},
	}
}

// NewCompletionData builds a completion carrying read data.
func NewCompletionData(completerID uint16, status pkg.CompletionStatus, data []byte, requesterID uint16, tag uint8, ldID uint8) CxlIoPacket {
	return CxlIoPacket{
		FmtType: FmtTypeCplD, Kind: CxlIoCompletion,
		CompleterID: completerID, Status: status, ByteCount: uint16(len(data)), Data: data,
		RequesterID: requesterID, Tag: tag, Prefix: TlpPrefix{LdID: ldID},
	}
}
