package pcicfg

import "github.com/cxlfabric/cxlswitch/layout"

// DvsecHeaderLen is the size of a PCIe extended capability header plus the
// two CXL DVSEC header DWORDs (vendor ID, DVSEC length/revision/ID), §6.
const DvsecHeaderLen = 12

// DvsecLayout describes the Designated Vendor-Specific Extended Capability
// header CXL uses to advertise its component registers and flexible bus
// capability, placed in the port device's extended config space.
var DvsecLayout = layout.MustNew("dvsec_header", []layout.Field{
	layout.ByteField("cap_id", 0x0, 0x1, layout.RO, 0x0023, 0),          // PCIe extended capability ID for DVSEC
	layout.ByteField("cap_version_next", 0x2, 0x3, layout.RO, 0, 0),     // version[3:0] | next_ptr[15:4]
	layout.ByteField("dvsec_vendor_id", 0x4, 0x5, layout.RO, 0x1E98, 0), // CXL vendor ID
	layout.ByteField("dvsec_rev_len", 0x6, 0x7, layout.RO, 0, 0),        // revision[3:0] | length[15:4]
	layout.ByteField("dvsec_id", 0x8, 0x9, layout.RO, 0, 0),
	layout.ByteField("reserved", 0xA, 0xB, layout.Reserved, 0, 0),
})

// DoeHeaderLen is the size of a PCIe Data Object Exchange extended
// capability header, §6.
const DoeHeaderLen = 20

// DoeLayout describes the DOE mailbox capability register block a port
// device exposes for structured capability discovery.
var DoeLayout = layout.MustNew("doe_header", []layout.Field{
	layout.ByteField("cap_id", 0x00, 0x01, layout.RO, 0x002E, 0), // PCIe extended capability ID for DOE
	layout.ByteField("cap_version_next", 0x02, 0x03, layout.RO, 0, 0),
	layout.ByteField("capabilities", 0x04, 0x07, layout.RO, 0, 0),
	layout.ByteField("control", 0x08, 0x0B, layout.RW, 0, 0),
	layout.ByteField("status", 0x0C, 0x0F, layout.RW1C, 0, 0),
	layout.ByteField("write_data_mailbox", 0x10, 0x13, layout.RW, 0, 0),
})
