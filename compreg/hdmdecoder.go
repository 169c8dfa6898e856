package compreg

import "github.com/cxlfabric/cxlswitch/layout"

// HdmDecoderSlotLen is the fixed size of one HDM decoder's register slot,
// §6.
const HdmDecoderSlotLen = 0x20

const ctrlBase = 0x10 * 8 // bit offset of the control DWORD, byte 0x10

// HdmDecoderSlotLayout describes one HDM decoder slot: a 256 MiB-aligned
// base and size, a control word packing the interleave granularity/ways
// and the commit handshake, and an 8-byte tail that holds either a
// device decoder's dpa_skip or a switch decoder's packed target list.
var HdmDecoderSlotLayout = layout.MustNew("hdm_decoder_slot", []layout.Field{
	layout.ByteField("base_low", 0x00, 0x03, layout.RW, 0, 0xF0000000),
	layout.ByteField("base_high", 0x04, 0x07, layout.RW, 0, 0),
	layout.ByteField("size_low", 0x08, 0x0B, layout.RW, 0, 0xF0000000),
	layout.ByteField("size_high", 0x0C, 0x0F, layout.RW, 0, 0),
	layout.BitField("ig", ctrlBase+0, ctrlBase+3, layout.RW, 0),
	layout.BitField("iw", ctrlBase+4, ctrlBase+7, layout.RW, 0),
	layout.BitField("lock_on_commit", ctrlBase+8, ctrlBase+8, layout.RW, 0),
	layout.BitField("commit", ctrlBase+9, ctrlBase+9, layout.RW, 0),
	layout.BitField("committed", ctrlBase+10, ctrlBase+10, layout.RO, 0),
	layout.BitField("error_not_committed", ctrlBase+11, ctrlBase+11, layout.RW1C, 0),
	layout.BitField("target_type", ctrlBase+12, ctrlBase+12, layout.RW, 0),
	layout.BitField("bi", ctrlBase+13, ctrlBase+13, layout.RW, 0),
	layout.BitField("uio", ctrlBase+14, ctrlBase+14, layout.RW, 0),
	layout.BitField("reserved_ctrl", ctrlBase+15, ctrlBase+31, layout.Reserved, 0),
	layout.ByteField("tail", 0x14, 0x1B, layout.RW, 0, 0),
	layout.ByteField("reserved", 0x1C, 0x1F, layout.Reserved, 0, 0),
})
