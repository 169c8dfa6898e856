// Package cci implements the MCTP/CCI fabric-manager command executor:
// the opcode dispatch table an FM-API client (or the management plane)
// drives over a native CCI connection or, tunneled, through
// TunnelManagementCommand, §4.7.
//
// The executor holds no fabric state itself; it is handed narrow
// interfaces (SwitchInfoProvider, PortStateProvider, VppbBinder,
// LdInfoProvider); the first three are implemented by the vswitch and
// port packages, and no package outside the tests implements
// LdInfoProvider. This is the same
// separation the teacher keeps between host/host.go's request dispatch
// and the HAL it drives. This avoids an import cycle (vswitch needs to
// send CCI notifications; cci needs vswitch's bind/unbind) while keeping
// the opcode table in one place.
package cci
