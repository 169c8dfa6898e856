package pcicfg

import (
	"github.com/cxlfabric/cxlswitch/layout"
)

// HeaderType distinguishes a type-0 (endpoint/downstream port) from a
// type-1 (bridge/upstream port) PCIe configuration header, §6.
type HeaderType uint8

const (
	HeaderTypeEndpoint HeaderType = 0x00
	HeaderTypeBridge   HeaderType = 0x01
)

// BarSize describes one base address register's backing aperture. A zero
// Size means the BAR is unimplemented (always reads zero, ignores writes).
type BarSize struct {
	Size uint32 // must be a power of two, or zero
}

// barWriteMask returns the mask a BAR accepts on write: the complement of
// (size-1) in the address bits, with the low 4 flag bits (always RO on
// this emulated fabric: 32-bit, non-prefetchable memory BARs) cleared.
// Writing 0xFFFFFFFF and reading back yields ~(size-1), §8 property 5.
func barWriteMask(size uint32) uint64 {
	if size == 0 {
		return 0
	}
	return uint64(^(size - 1)) & 0xFFFFFFF0
}

// standardHeaderLen is the size of the PCI type-0/type-1 header common
// region, before capabilities.
const standardHeaderLen = 0x40

// ExtendedConfigSpaceLen is the total PCIe configuration space size (4 KiB
// extended config space), §6.
const ExtendedConfigSpaceLen = 4096

// ConfigSpace is one port device's configuration-space register file.
type ConfigSpace struct {
	*layout.Layout
	bars [6]BarSize
}

// NewConfigSpace builds the register file for a port device. vendorID and
// deviceID are the values reported in config-space reads; bars sizes
// BAR0..BAR5 (0 for unimplemented).
func NewConfigSpace(headerType HeaderType, vendorID, deviceID uint16, classCode uint32, bars [6]BarSize) *ConfigSpace {
	// An unimplemented BAR is RO: a zero write mask means "whole field" to
	// the layout engine, so it cannot express "no writable bits".
	barAttr := func(i int) layout.Attr {
		if bars[i].Size == 0 {
			return layout.RO
		}
		return layout.RW
	}
	fields := []layout.Field{
		layout.ByteField("vendor_id", 0x00, 0x01, layout.RO, uint64(vendorID), 0),
		layout.ByteField("device_id", 0x02, 0x03, layout.RO, uint64(deviceID), 0),
		layout.ByteField("command", 0x04, 0x05, layout.RW, 0, 0),
		layout.ByteField("status", 0x06, 0x07, layout.RW1C, 0, 0),
		layout.ByteField("revision_id", 0x08, 0x08, layout.RO, 1, 0),
		layout.ByteField("class_code", 0x09, 0x0B, layout.RO, uint64(classCode), 0),
		layout.ByteField("cache_line_size", 0x0C, 0x0C, layout.RW, 0, 0),
		layout.ByteField("latency_timer", 0x0D, 0x0D, layout.RW, 0, 0),
		layout.ByteField("header_type", 0x0E, 0x0E, layout.RO, uint64(headerType), 0),
		layout.ByteField("bist", 0x0F, 0x0F, layout.RW, 0, 0),
		layout.ByteField("bar0", 0x10, 0x13, barAttr(0), 0, barWriteMask(bars[0].Size)),
		layout.ByteField("bar1", 0x14, 0x17, barAttr(1), 0, barWriteMask(bars[1].Size)),
		layout.ByteField("bar2", 0x18, 0x1B, barAttr(2), 0, barWriteMask(bars[2].Size)),
		layout.ByteField("bar3", 0x1C, 0x1F, barAttr(3), 0, barWriteMask(bars[3].Size)),
		layout.ByteField("bar4", 0x20, 0x23, barAttr(4), 0, barWriteMask(bars[4].Size)),
		layout.ByteField("bar5", 0x24, 0x27, barAttr(5), 0, barWriteMask(bars[5].Size)),
		layout.ByteField("cardbus_cis_ptr", 0x28, 0x2B, layout.RO, 0, 0),
		layout.ByteField("subsystem_vendor_id", 0x2C, 0x2D, layout.RO, 0, 0),
		layout.ByteField("subsystem_id", 0x2E, 0x2F, layout.RO, 0, 0),
		layout.ByteField("expansion_rom_base", 0x30, 0x33, layout.RW, 0, 0),
		layout.ByteField("capabilities_ptr", 0x34, 0x34, layout.RO, 0x40, 0),
		layout.ByteField("reserved_35", 0x35, 0x37, layout.Reserved, 0, 0),
		layout.ByteField("reserved_38", 0x38, 0x3B, layout.Reserved, 0, 0),
		layout.ByteField("interrupt_line", 0x3C, 0x3C, layout.RW, 0, 0),
		layout.ByteField("interrupt_pin", 0x3D, 0x3D, layout.RO, 1, 0),
		layout.ByteField("min_gnt", 0x3E, 0x3E, layout.RO, 0, 0),
		layout.ByteField("max_lat", 0x3F, 0x3F, layout.RO, 0, 0),
		layout.DynamicByteField("extended", standardHeaderLen, ExtendedConfigSpaceLen-standardHeaderLen),
	}
	l := layout.MustNew("pcie_config_space", fields)
	return &ConfigSpace{Layout: l, bars: bars}
}

// NewBuffer allocates and default-initializes the register file's backing
// buffer, sized to the full 4 KiB extended config space.
func (c *ConfigSpace) NewBuffer() []byte {
	return c.Layout.NewBuffer()
}
