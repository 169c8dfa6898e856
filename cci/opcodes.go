package cci

// Opcode identifies a CCI/FM-API command, §4.7.
type Opcode uint16

// Fabric-manager opcodes.
const (
	OpcodeIdentifySwitchDevice    Opcode = 0x5100
	OpcodeGetPhysicalPortState    Opcode = 0x5101
	OpcodeGetVirtualCxlSwitchInfo Opcode = 0x5102
	OpcodeBindVppb                Opcode = 0x5103
	OpcodeUnbindVppb              Opcode = 0x5104
	OpcodeGetLdInfo               Opcode = 0x5110
	OpcodeGetLdAllocations        Opcode = 0x5111
	OpcodeSetLdAllocations        Opcode = 0x5112
	OpcodeTunnelManagementCommand Opcode = 0x5200
)

func (o Opcode) String() string {
	switch o {
	case OpcodeIdentifySwitchDevice:
		return "IdentifySwitchDevice"
	case OpcodeGetPhysicalPortState:
		return "GetPhysicalPortState"
	case OpcodeGetVirtualCxlSwitchInfo:
		return "GetVirtualCxlSwitchInfo"
	case OpcodeBindVppb:
		return "BindVppb"
	case OpcodeUnbindVppb:
		return "UnbindVppb"
	case OpcodeGetLdInfo:
		return "GetLdInfo"
	case OpcodeGetLdAllocations:
		return "GetLdAllocations"
	case OpcodeSetLdAllocations:
		return "SetLdAllocations"
	case OpcodeTunnelManagementCommand:
		return "TunnelManagementCommand"
	default:
		return "Opcode(unknown)"
	}
}

// NotificationOpcode identifies an unsolicited event the executor can
// push to a subscribed CCI connection (port connect/disconnect, bind
// state change), §4.7.
type NotificationOpcode uint16

const (
	NotificationPhysicalPortStateChange NotificationOpcode = 0x6100
	NotificationVppbBindStateChange     NotificationOpcode = 0x6101
)
