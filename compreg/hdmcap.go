package compreg

import (
	"fmt"

	"github.com/cxlfabric/cxlswitch/layout"
	"github.com/cxlfabric/cxlswitch/pkg"
)

// HdmDecoderCapabilityHeaderLen is the size of the fixed capability header
// preceding the decoder slot array, §6 ("decoder-capability+0x10").
const HdmDecoderCapabilityHeaderLen = 0x10

// hdmCapabilityHeaderLayout builds the fixed header fields ahead of the
// decoder slot array: the decoder_count encoding (baked in as a per-block
// RO default, since it is fixed at construction time and never writable)
// and a handful of capability/global-control bits not exercised by the
// translation tests.
func hdmCapabilityHeaderLayout(decoderCountEncoded uint8) *layout.Layout {
	return layout.MustNew("hdm_decoder_capability_header", []layout.Field{
		layout.BitField("decoder_count", 0, 3, layout.RO, uint64(decoderCountEncoded)),
		layout.BitField("target_count", 4, 7, layout.RO, 0),
		layout.BitField("reserved", 8, 31, layout.Reserved, 0),
		layout.ByteField("global_control", 0x04, 0x07, layout.RW, 0, 0),
		layout.ByteField("reserved_08", 0x08, 0x0F, layout.Reserved, 0, 0),
	})
}

// decoderCountTable maps the 4-bit decoder_count field to the number of
// implemented decoders, §4.5: 0-8 -> 1,2,4,6,8,10,12,14,16; 9-12 -> 20,24,28,32.
var decoderCountTable = [13]int{1, 2, 4, 6, 8, 10, 12, 14, 16, 20, 24, 28, 32}

// DecodeDecoderCount translates the 4-bit decoder_count encoding into the
// implemented decoder count, or pkg.ErrInvalidDecoderCount for any value
// above 12.
func DecodeDecoderCount(encoded uint8) (int, error) {
	if int(encoded) >= len(decoderCountTable) {
		return 0, fmt.Errorf("%w: decoder_count encoding %d", pkg.ErrInvalidDecoderCount, encoded)
	}
	return decoderCountTable[encoded], nil
}

// EncodeDecoderCount finds the encoding for an implemented decoder count.
// n must be one of the table's exact values.
func EncodeDecoderCount(n int) (uint8, error) {
	for i, v := range decoderCountTable {
		if v == n {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("%w: no encoding for %d decoders", pkg.ErrInvalidDecoderCount, n)
}

// HdmDecoderCapability is the full HDM decoder capability register block:
// the fixed header plus count slots of HdmDecoderSlotLayout.
type HdmDecoderCapability struct {
	Count int
}

// NewHdmDecoderCapability builds the register block description for count
// implemented decoders.
func NewHdmDecoderCapability(count int) (*HdmDecoderCapability, error) {
	if _, err := EncodeDecoderCount(count); err != nil {
		return nil, err
	}
	return &HdmDecoderCapability{Count: count}, nil
}

// Len returns the total register block size: header plus one slot per
// implemented decoder.
func (c *HdmDecoderCapability) Len() int {
	return HdmDecoderCapabilityHeaderLen + c.Count*HdmDecoderSlotLen
}

// NewBuffer allocates the register block, including its decoder_count
// encoding in the header.
func (c *HdmDecoderCapability) NewBuffer() []byte {
	buf := make([]byte, c.Len())
	encoded, _ := EncodeDecoderCount(c.Count) // validated in NewHdmDecoderCapability
	copy(buf[:HdmDecoderCapabilityHeaderLen], hdmCapabilityHeaderLayout(encoded).NewBuffer())
	for i := 0; i < c.Count; i++ {
		off := HdmDecoderCapabilityHeaderLen + i*HdmDecoderSlotLen
		copy(buf[off:off+HdmDecoderSlotLen], HdmDecoderSlotLayout.NewBuffer())
	}
	return buf
}

// Slot returns the byte range of decoder i's register slot within the
// block's buffer.
func (c *HdmDecoderCapability) Slot(i int) (start, end int) {
	start = HdmDecoderCapabilityHeaderLen + i*HdmDecoderSlotLen
	return start, start + HdmDecoderSlotLen
}

// WriteSlot applies a write to decoder i's slot at the given in-slot
// offset, honoring HdmDecoderSlotLayout's attribute semantics.
func (c *HdmDecoderCapability) WriteSlot(buf []byte, i int, offset int, data []byte) {
	start, end := c.Slot(i)
	HdmDecoderSlotLayout.Write(buf[start:end], offset, data)
}
