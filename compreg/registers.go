package compreg

import "github.com/cxlfabric/cxlswitch/layout"

// RasCapabilityLayout is the CXL RAS capability register block: an
// uncorrectable/correctable error status pair plus their masks, §6.
var RasCapabilityLayout = layout.MustNew("ras_capability", []layout.Field{
	layout.ByteField("uncorrectable_error_status", 0x00, 0x03, layout.RW1C, 0, 0),
	layout.ByteField("uncorrectable_error_mask", 0x04, 0x07, layout.RW, 0, 0),
	layout.ByteField("uncorrectable_error_severity", 0x08, 0x0B, layout.RW, 0, 0),
	layout.ByteField("correctable_error_status", 0x0C, 0x0F, layout.RW1C, 0, 0),
	layout.ByteField("correctable_error_mask", 0x10, 0x13, layout.RW, 0, 0),
	layout.ByteField("error_capabilities_and_control", 0x14, 0x17, layout.RW, 0, 0),
	layout.ByteField("header_log", 0x18, 0x37, layout.RO, 0, 0),
})

// LinkCapabilityLayout is the CXL Link capability/control/status register
// block governing the flex-bus link state between two connected ports,
// §6.
var LinkCapabilityLayout = layout.MustNew("link_capability", []layout.Field{
	layout.ByteField("capability", 0x00, 0x03, layout.RO, 0, 0),
	layout.ByteField("control", 0x04, 0x07, layout.RW, 0, 0),
	layout.ByteField("status", 0x08, 0x0B, layout.RW1C, 0, 0),
})

// BiDecoderLayout is the Back-Invalidate decoder capability/control
// register block, §6.
var BiDecoderLayout = layout.MustNew("bi_decoder", []layout.Field{
	layout.ByteField("capability", 0x00, 0x03, layout.RO, 0, 0),
	layout.ByteField("control", 0x04, 0x07, layout.RW, 0, 0),
	layout.ByteField("status", 0x08, 0x0B, layout.RW1C, 0, 0),
})

// BiRouteTableEntryLen is the byte size of one Back-Invalidate route table
// entry.
const BiRouteTableEntryLen = 0x04

// BiRouteTableEntryLayout describes one entry of the BI route table: which
// downstream port a back-invalidate for a given cache ID routes to.
var BiRouteTableEntryLayout = layout.MustNew("bi_route_table_entry", []layout.Field{
	layout.ByteField("target_port", 0x00, 0x00, layout.RW, 0, 0),
	layout.ByteField("valid", 0x01, 0x01, layout.RW, 0, 0),
	layout.ByteField("reserved", 0x02, 0x03, layout.Reserved, 0, 0),
})

// CacheIdDecoderLayout is the Cache-ID decoder capability/control register
// block used to route CXL.cache and CXL.mem traffic for multi-logical
// devices by cache ID rather than by HDM decoder target, §6.
var CacheIdDecoderLayout = layout.MustNew("cache_id_decoder", []layout.Field{
	layout.ByteField("capability", 0x00, 0x03, layout.RO, 0, 0),
	layout.BitField("cache_id", 0x04*8+0, 0x04*8+7, layout.RW, 0),
	layout.BitField("forward", 0x04*8+8, 0x04*8+8, layout.RW, 0),
	layout.BitField("reserved", 0x04*8+9, 0x04*8+31, layout.Reserved, 0),
})

// CacheIdRouteTableEntryLen is the byte size of one cache-ID route table
// entry.
const CacheIdRouteTableEntryLen = 0x04

// CacheIdRouteTableEntryLayout describes one entry of the cache-ID route
// table: which port a given cache ID's traffic routes to.
var CacheIdRouteTableEntryLayout = layout.MustNew("cache_id_route_table_entry", []layout.Field{
	layout.ByteField("target_port", 0x00, 0x00, layout.RW, 0, 0),
	layout.ByteField("valid", 0x01, 0x01, layout.RW, 0, 0),
	layout.ByteField("reserved", 0x02, 0x03, layout.Reserved, 0, 0),
})
