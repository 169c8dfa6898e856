package cci

import "encoding/binary"

// IdentifySwitchDeviceInfo is the response payload for
// IdentifySwitchDevice: a static description of the switch's shape.
type IdentifySwitchDeviceInfo struct {
	NumPhysicalPorts uint8
	NumVCSs          uint8
	NumTotalVppb     uint8
	NumActiveVppb    uint8
	ActivePortMask   uint32 // bit i set if physical port i is connected
}

func (i IdentifySwitchDeviceInfo) MarshalBinary() []byte {
	buf := make([]byte, 8)
	buf[0] = i.NumPhysicalPorts
	buf[1] = i.NumVCSs
	buf[2] = i.NumTotalVppb
	buf[3] = i.NumActiveVppb
	binary.LittleEndian.PutUint32(buf[4:8], i.ActivePortMask)
	return buf
}

// PhysicalPortState is one physical port's reported state for
// GetPhysicalPortState, §4.4/4.7.
type PhysicalPortState struct {
	PortIndex uint8
	Connected bool
	PortType  uint8 // 0 = USP, 1 = DSP
	BoundLD   uint8 // bound logical device, if any
}

func (p PhysicalPortState) MarshalBinary() []byte {
	buf := make([]byte, 4)
	buf[0] = p.PortIndex
	if p.Connected {
		buf[1] = 1
	}
	buf[2] = p.PortType
	buf[3] = p.BoundLD
	return buf
}

// VirtualSwitchInfo is one VCS's reported state for
// GetVirtualCxlSwitchInfo.
type VirtualSwitchInfo struct {
	VCSID      uint8
	VppbCount  uint8
	BoundPorts []uint8 // physical port bound to each vPPB, 0xFF if unbound
}

func (v VirtualSwitchInfo) MarshalBinary() []byte {
	buf := make([]byte, 2+len(v.BoundPorts))
	buf[0] = v.VCSID
	buf[1] = v.VppbCount
	copy(buf[2:], v.BoundPorts)
	return buf
}

// BindVppbRequest is the request payload for BindVppb.
type BindVppbRequest struct {
	VCSID        uint8
	VppbID       uint8
	PhysicalPort uint8
	LdID         uint8
}

func ParseBindVppbRequest(buf []byte) (BindVppbRequest, bool) {
	if len(buf) < 4 {
		return BindVppbRequest{}, false
	}
	return BindVppbRequest{VCSID: buf[0], VppbID: buf[1], PhysicalPort: buf[2], LdID: buf[3]}, true
}

// UnbindVppbRequest is the request payload for UnbindVppb.
type UnbindVppbRequest struct {
	VCSID  uint8
	VppbID uint8
}

func ParseUnbindVppbRequest(buf []byte) (UnbindVppbRequest, bool) {
	if len(buf) < 2 {
		return UnbindVppbRequest{}, false
	}
	return UnbindVppbRequest{VCSID: buf[0], VppbID: buf[1]}, true
}

// LdInfo is the response payload for GetLdInfo: a multi-logical-device
// port's configured logical device count and per-LD memory size.
type LdInfo struct {
	NumLDs       uint8
	MemorySizeMB uint32 // per-LD, equal shares of the physical device
}

func (i LdInfo) MarshalBinary() []byte {
	buf := make([]byte, 8)
	buf[0] = i.NumLDs
	binary.LittleEndian.PutUint32(buf[4:8], i.MemorySizeMB)
	return buf
}

// LdAllocation is one logical device's memory allocation, in multiples of
// the port's allocation granularity.
type LdAllocation struct {
	LdID       uint8
	RangeCount uint32
}

func MarshalLdAllocations(allocs []LdAllocation) []byte {
	buf := make([]byte, 1+5*len(allocs))
	buf[0] = uint8(len(allocs))
	for i, a := range allocs {
		off := 1 + 5*i
		buf[off] = a.LdID
		binary.LittleEndian.PutUint32(buf[off+1:off+5], a.RangeCount)
	}
	return buf
}

func ParseLdAllocations(buf []byte) ([]LdAllocation, bool) {
	if len(buf) < 1 {
		return nil, false
	}
	n := int(buf[0])
	if len(buf) < 1+5*n {
		return nil, false
	}
	out := make([]LdAllocation, n)
	for i := 0; i < n; i++ {
		off := 1 + 5*i
		out[i] = LdAllocation{LdID: buf[off], RangeCount: binary.LittleEndian.Uint32(buf[off+1 : off+5])}
	}
	return out, true
}

// TunnelManagementCommandRequest carries another CCI message addressed to
// a logical device behind a multi-logical-device port, §3 (S3).
type TunnelManagementCommandRequest struct {
	PhysicalPort uint8
	LdID         uint8
	Payload      []byte // an encoded proto.CciMessage
}

func ParseTunnelRequest(buf []byte) (TunnelManagementCommandRequest, bool) {
	if len(buf) < 2 {
		return TunnelManagementCommandRequest{}, false
	}
	return TunnelManagementCommandRequest{PhysicalPort: buf[0], LdID: buf[1], Payload: append([]byte(nil), buf[2:]...)}, true
}
