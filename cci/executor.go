package cci

import (
	"context"

	"github.com/cxlfabric/cxlswitch/fifo"
	"github.com/cxlfabric/cxlswitch/pkg"
	"github.com/cxlfabric/cxlswitch/proto"
)

// SwitchInfoProvider answers the switch-shape queries, implemented by the
// physical port manager plus the virtual switch manager.
type SwitchInfoProvider interface {
	IdentifySwitchDevice() IdentifySwitchDeviceInfo
	VirtualCxlSwitchInfo(vcsID uint8) (VirtualSwitchInfo, error)
}

// PortStateProvider answers physical port state queries.
type PortStateProvider interface {
	PhysicalPortState(port uint8) (PhysicalPortState, error)
}

// VppbBinder performs vPPB bind/unbind, implemented by the virtual switch
// manager.
type VppbBinder interface {
	BindVppb(vcsID, vppbID, physicalPort, ldID uint8) error
	UnbindVppb(vcsID, vppbID uint8) error
}

// LdInfoProvider answers multi-logical-device queries and mutations.
type LdInfoProvider interface {
	LdInfo(port uint8) (LdInfo, error)
	LdAllocations(port uint8) ([]LdAllocation, error)
	SetLdAllocations(port uint8, allocations []LdAllocation) error
}

// Tunneler forwards a tunneled command to the logical device it
// addresses and returns its raw CCI response payload.
type Tunneler interface {
	Tunnel(ctx context.Context, physicalPort, ldID uint8, payload []byte) ([]byte, error)
}

// Executor dispatches decoded CCI messages to the fabric components that
// answer them, §4.7.
type Executor struct {
	SwitchInfo SwitchInfoProvider
	PortState  PortStateProvider
	Binder     VppbBinder
	LdInfo     LdInfoProvider
	Tunnel     Tunneler
}

// Execute dispatches req by opcode and returns the response message,
// always with req.Tag carried through for correlation.
func (e *Executor) Execute(ctx context.Context, req proto.CciMessage) proto.CciMessage {
	payload, rc := e.dispatch(ctx, req)
	return proto.NewCciResponse(req.Opcode, req.Tag, rc, payload)
}

func (e *Executor) dispatch(ctx context.Context, req proto.CciMessage) ([]byte, pkg.ReturnCode) {
	switch Opcode(req.Opcode) {
	case OpcodeIdentifySwitchDevice:
		if e.SwitchInfo == nil {
			return nil, pkg.ReturnCodeUnsupported
		}
		return e.SwitchInfo.IdentifySwitchDevice().MarshalBinary(), pkg.ReturnCodeSuccess

	case OpcodeGetPhysicalPortState:
		if e.PortState == nil || len(req.Payload) < 1 {
			return nil, pkg.ReturnCodeInvalidInput
		}
		state, err := e.PortState.PhysicalPortState(req.Payload[0])
		if err != nil {
			return nil, pkg.ReturnCodeInvalidInput
		}
		return state.MarshalBinary(), pkg.ReturnCodeSuccess

	case OpcodeGetVirtualCxlSwitchInfo:
		if e.SwitchInfo == nil || len(req.Payload) < 1 {
			return nil, pkg.ReturnCodeInvalidInput
		}
		info, err := e.SwitchInfo.VirtualCxlSwitchInfo(req.Payload[0])
		if err != nil {
			return nil, pkg.ReturnCodeInvalidInput
		}
		return info.MarshalBinary(), pkg.ReturnCodeSuccess

	case OpcodeBindVppb:
		if e.Binder == nil {
			return nil, pkg.ReturnCodeUnsupported
		}
		bind, ok := ParseBindVppbRequest(req.Payload)
		if !ok {
			return nil, pkg.ReturnCodeInvalidPayloadLength
		}
		if err := e.Binder.BindVppb(bind.VCSID, bind.VppbID, bind.PhysicalPort, bind.LdID); err != nil {
			return nil, pkg.ReturnCodeInvalidInput
		}
		return nil, pkg.ReturnCodeSuccess

	case OpcodeUnbindVppb:
		if e.Binder == nil {
			return nil, pkg.ReturnCodeUnsupported
		}
		unbind, ok := ParseUnbindVppbRequest(req.Payload)
		if !ok {
			return nil, pkg.ReturnCodeInvalidPayloadLength
		}
		if err := e.Binder.UnbindVppb(unbind.VCSID, unbind.VppbID); err != nil {
			return nil, pkg.ReturnCodeInvalidInput
		}
		return nil, pkg.ReturnCodeSuccess

	case OpcodeGetLdInfo:
		if e.LdInfo == nil || len(req.Payload) < 1 {
			return nil, pkg.ReturnCodeInvalidInput
		}
		info, err := e.LdInfo.LdInfo(req.Payload[0])
		if err != nil {
			return nil, pkg.ReturnCodeInvalidInput
		}
		return info.MarshalBinary(), pkg.ReturnCodeSuccess

	case OpcodeGetLdAllocations:
		if e.LdInfo == nil || len(req.Payload) < 1 {
			return nil, pkg.ReturnCodeInvalidInput
		}
		allocs, err := e.LdInfo.LdAllocations(req.Payload[0])
		if err != nil {
			return nil, pkg.ReturnCodeInvalidInput
		}
		return MarshalLdAllocations(allocs), pkg.ReturnCodeSuccess

	case OpcodeSetLdAllocations:
		if e.LdInfo == nil || len(req.Payload) < 1 {
			return nil, pkg.ReturnCodeInvalidInput
		}
		allocs, ok := ParseLdAllocations(req.Payload[1:])
		if !ok {
			return nil, pkg.ReturnCodeInvalidPayloadLength
		}
		if err := e.LdInfo.SetLdAllocations(req.Payload[0], allocs); err != nil {
			return nil, pkg.ReturnCodeInvalidInput
		}
		return nil, pkg.ReturnCodeSuccess

	case OpcodeTunnelManagementCommand:
		if e.Tunnel == nil {
			return nil, pkg.ReturnCodeUnsupported
		}
		t, ok := ParseTunnelRequest(req.Payload)
		if !ok {
			return nil, pkg.ReturnCodeInvalidPayloadLength
		}
		resp, err := e.Tunnel.Tunnel(ctx, t.PhysicalPort, t.LdID, t.Payload)
		if err != nil {
			return nil, pkg.ReturnCodeInternalError
		}
		return resp, pkg.ReturnCodeSuccess

	default:
		return nil, pkg.ReturnCodeUnsupported
	}
}

// NewNotification builds an unsolicited event message, tag 0 since it is
// not a response to any request.
func NewNotification(op NotificationOpcode, payload []byte) proto.CciMessage {
	return proto.CciMessage{Opcode: uint16(op), Payload: payload}
}

// Observer is notified after each command executes, for metrics
// collection. switchd adapts metrics.Registry's IncCciCommand to it with
// a closure; left as a narrow function type here to avoid cci importing
// metrics.
type Observer func(opcode Opcode, rc pkg.ReturnCode)

// Serve drains pair's inbound CCI messages, executes each against e, and
// writes the response back onto pair's outbound queue, until ctx is
// cancelled or pair.Target.Get errors (connection torn down). observe, if
// non-nil, is called once per processed command.
func (e *Executor) Serve(ctx context.Context, pair *fifo.FifoPair, observe Observer) error {
	for {
		pkt, err := pair.Target.Get(ctx)
		if err != nil {
			return err
		}
		if sb, ok := pkt.(proto.SidebandPacket); ok && sb.Type == proto.SidebandConnectionDisconnected {
			return pkg.ErrDisconnected
		}
		req, ok := pkt.(proto.CciMessage)
		if !ok {
			continue
		}
		payload, rc := e.dispatch(ctx, req)
		resp := proto.NewCciResponse(req.Opcode, req.Tag, rc, payload)
		if observe != nil {
			observe(Opcode(req.Opcode), rc)
		}
		if err := pair.Host.Put(ctx, resp); err != nil {
			return err
		}
	}
}
