package devreg

import "github.com/cxlfabric/cxlswitch/layout"

// CapabilityArrayEntryLen is the size of one entry in the device
// capability array header: an ID, version, and byte offset to the
// register block it describes.
const CapabilityArrayEntryLen = 0x10

// CapabilityArrayEntryLayout describes one capability array entry.
var CapabilityArrayEntryLayout = layout.MustNew("capability_array_entry", []layout.Field{
	layout.ByteField("capability_id", 0x00, 0x01, layout.RO, 0, 0),
	layout.ByteField("version", 0x02, 0x02, layout.RO, 0, 0),
	layout.ByteField("reserved", 0x03, 0x03, layout.Reserved, 0, 0),
	layout.ByteField("offset", 0x04, 0x07, layout.RO, 0, 0),
	layout.ByteField("length", 0x08, 0x0B, layout.RO, 0, 0),
	layout.ByteField("reserved_0c", 0x0C, 0x0F, layout.Reserved, 0, 0),
})

// Capability IDs advertised in the capability array, §6.
const (
	CapabilityIDDeviceStatus = 0x01
	CapabilityIDMailbox      = 0x02
	CapabilityIDMemoryDevice = 0x03
)

// DeviceStatusLayout is the device status register block: the overall
// device health/readiness a host polls before issuing mailbox commands.
var DeviceStatusLayout = layout.MustNew("device_status", []layout.Field{
	layout.BitField("ready", 0, 0, layout.RO, 1),
	layout.BitField("fatal", 1, 1, layout.RO, 0),
	layout.BitField("reserved", 2, 31, layout.Reserved, 0),
})

// MailboxCapabilityLen is the size of the fixed mailbox registers that
// precede the payload region (capability, the command register with the
// doorbell bit, background status, return code); the payload region
// starts at this offset, §6/§4.6.
const MailboxCapabilityLen = 0x14

// MailboxPayloadLen is the size of the mailbox command/response payload
// area. Real CXL mailboxes size this from a capability field; this
// emulated fabric fixes it, matching the largest FM-API payload the cci
// package constructs.
const MailboxPayloadLen = 4096

// MailboxLayout is the CXL Mailbox register block: a capability DWORD,
// the command register (opcode and the doorbell bit the mailbox package
// polls), the background-command status, a return-code register, and the
// raw payload tail.
var MailboxLayout = layout.MustNew("mailbox", []layout.Field{
	layout.ByteField("capability", 0x00, 0x03, layout.RO, 0, 0),
	layout.BitField("command_opcode", 0x04*8+0, 0x04*8+15, layout.RW, 0),
	layout.BitField("doorbell", 0x04*8+16, 0x04*8+16, layout.RW, 0),
	layout.BitField("reserved_ctrl", 0x04*8+17, 0x04*8+31, layout.Reserved, 0),
	layout.ByteField("status", 0x08, 0x0B, layout.RW1C, 0, 0),
	layout.ByteField("background_opcode", 0x0C, 0x0D, layout.RO, 0, 0),
	layout.ByteField("background_percent_complete", 0x0E, 0x0E, layout.RO, 0, 0),
	layout.ByteField("reserved_0f", 0x0F, 0x0F, layout.Reserved, 0, 0),
	layout.ByteField("return_code", 0x10, 0x11, layout.RO, 0, 0),
	layout.ByteField("reserved_12", 0x12, 0x13, layout.Reserved, 0, 0),
	layout.DynamicByteField("payload", MailboxCapabilityLen, MailboxPayloadLen),
})

// MemoryDeviceStatusLayout is the memory-device status register block:
// media readiness and the reset-needed bit, §6.
var MemoryDeviceStatusLayout = layout.MustNew("memory_device_status", []layout.Field{
	layout.BitField("media_status", 0, 1, layout.RO, 1), // 1 = ready
	layout.BitField("mailbox_interface_ready", 2, 2, layout.RO, 1),
	layout.BitField("reset_needed", 3, 5, layout.RO, 0),
	layout.BitField("reserved", 6, 31, layout.Reserved, 0),
})
