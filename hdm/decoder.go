package hdm

import (
	"fmt"

	"github.com/cxlfabric/cxlswitch/compreg"
	"github.com/cxlfabric/cxlswitch/pkg"
)

// Decoder is one committed HDM decoder slot's translation state, common to
// both the device and switch variants. IG and IW are the raw register
// field values (not yet decoded into granularity/way counts).
type Decoder struct {
	Base      uint64
	Size      uint64
	IG        uint8
	IW        uint8
	Committed bool
}

// interleaveGranularity returns 2^(ig+8) bytes, the byte stride of one
// interleave chunk, §4.5.
func (d Decoder) interleaveGranularity() uint64 { return 1 << (uint(d.IG) + 8) }

// interleaveWays returns 2^iw, the number of interleave targets, §4.5.
func (d Decoder) interleaveWays() uint64 { return 1 << uint(d.IW) }

// Contains reports whether hpa falls within this decoder's committed
// range.
func (d Decoder) Contains(hpa uint64) bool {
	return d.Committed && d.Size > 0 && hpa >= d.Base && hpa < d.Base+d.Size
}

// bitRange extracts bits [lo, hi] (inclusive) of v as an unsigned integer,
// right-justified: the Go equivalent of the original's get_bit_range
// slice-based extraction.
func bitRange(v uint64, lo, hi int) uint64 {
	if hi < lo {
		return 0
	}
	width := hi - lo + 1
	if width >= 64 {
		return v >> uint(lo)
	}
	mask := (uint64(1) << uint(width)) - 1
	return (v >> uint(lo)) & mask
}

// DeviceDecoder translates a host physical address into a device physical
// address, §4.5.
type DeviceDecoder struct {
	Decoder
	DpaBase uint64
	DpaSkip uint64
}

// GetDPA computes the device physical address for hpa, which must satisfy
// d.Contains(hpa). Ported verbatim from the original's
// DeviceHdmDecoder.get_dpa: split the HPA offset into a low run of
// ig+8 bits and a high remainder, scaled down by the interleave ways
// before being recombined above the low run.
func (d DeviceDecoder) GetDPA(hpa uint64) (uint64, error) {
	if !d.Contains(hpa) {
		return 0, fmt.Errorf("%w: hpa %#x not in decoder range [%#x, %#x)", pkg.ErrMisalignedAddress, hpa, d.Base, d.Base+d.Size)
	}
	offset := hpa - d.Base

	dpaOffsetLow := bitRange(offset, 0, int(d.IG)+7)

	var dpaOffsetHigh uint64
	if d.IW < 8 {
		dpaOffsetHigh = bitRange(offset, int(d.IG)+8+int(d.IW), 51)
	} else {
		dpaOffsetHigh = bitRange(offset, int(d.IG)+int(d.IW), 51) / 3
	}

	dpa := (dpaOffsetHigh << (uint(d.IG) + 8)) | dpaOffsetLow
	return dpa + d.DpaBase + d.DpaSkip, nil
}

// LoadDeviceDecoder reads a device decoder's committed state out of its
// register slot.
func LoadDeviceDecoder(cap *compreg.HdmDecoderCapability, buf []byte, slot int) DeviceDecoder {
	start, _ := cap.Slot(slot)
	s := buf[start : start+compreg.HdmDecoderSlotLen]
	return DeviceDecoder{
		Decoder: Decoder{
			Base:      readBase(s),
			Size:      readSize(s),
			IG:        uint8(readCtrlBits(s, 0, 3)),
			IW:        uint8(readCtrlBits(s, 4, 7)),
			Committed: readCtrlBits(s, 10, 10) == 1,
		},
		DpaSkip: readTail(s),
	}
}

// SwitchDecoder translates a host physical address into which of its
// target downstream ports should receive the request, §4.5.
type SwitchDecoder struct {
	Decoder
	Targets []uint8 // downstream port indices, length must be interleaveWays()
}

// GetTarget computes the target port for hpa, which must satisfy
// d.Contains(hpa). Ported from the original's
// SwitchHdmDecoder.get_target: the target index is the HPA's interleave
// granularity chunk number, modulo the number of ways.
func (d SwitchDecoder) GetTarget(hpa uint64) (uint8, error) {
	if !d.Contains(hpa) {
		return 0, fmt.Errorf("%w: hpa %#x not in decoder range [%#x, %#x)", pkg.ErrMisalignedAddress, hpa, d.Base, d.Base+d.Size)
	}
	ways := d.interleaveWays()
	targetIndex := (hpa / d.interleaveGranularity()) % ways
	if int(targetIndex) >= len(d.Targets) {
		return 0, fmt.Errorf("%w: target index %d exceeds %d configured targets", pkg.ErrInvalidBinding, targetIndex, len(d.Targets))
	}
	return d.Targets[targetIndex], nil
}

// LoadSwitchDecoder reads a switch decoder's committed state out of its
// register slot. targets supplies the configured target-port list
// (packed in the slot's 8-byte tail by the virtual switch manager at
// bind time, one byte per way, up to 8 ways).
func LoadSwitchDecoder(cap *compreg.HdmDecoderCapability, buf []byte, slot int) SwitchDecoder {
	start, _ := cap.Slot(slot)
	s := buf[start : start+compreg.HdmDecoderSlotLen]
	iw := uint8(readCtrlBits(s, 4, 7))
	ways := 1 << iw
	tail := s[0x14:0x1C]
	targets := make([]uint8, 0, ways)
	for i := 0; i < ways && i < len(tail); i++ {
		targets = append(targets, tail[i])
	}
	return SwitchDecoder{
		Decoder: Decoder{
			Base:      readBase(s),
			Size:      readSize(s),
			IG:        uint8(readCtrlBits(s, 0, 3)),
			IW:        iw,
			Committed: readCtrlBits(s, 10, 10) == 1,
		},
		Targets: targets,
	}
}

func readBase(slot []byte) uint64 {
	low := uint64(slot[0]) | uint64(slot[1])<<8 | uint64(slot[2])<<16 | uint64(slot[3])<<24
	high := uint64(slot[4]) | uint64(slot[5])<<8 | uint64(slot[6])<<16 | uint64(slot[7])<<24
	return low | (high << 32)
}

func readSize(slot []byte) uint64 {
	low := uint64(slot[8]) | uint64(slot[9])<<8 | uint64(slot[10])<<16 | uint64(slot[11])<<24
	high := uint64(slot[12]) | uint64(slot[13])<<8 | uint64(slot[14])<<16 | uint64(slot[15])<<24
	return low | (high << 32)
}

func readTail(slot []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(slot[0x14+i]) << uint(8*i)
	}
	return v
}

func readCtrlBits(slot []byte, lo, hi int) uint64 {
	ctrl := uint64(slot[0x10]) | uint64(slot[0x11])<<8 | uint64(slot[0x12])<<16 | uint64(slot[0x13])<<24
	return bitRange(ctrl, lo, hi)
}
