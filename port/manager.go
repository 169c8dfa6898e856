package port

import (
	"fmt"

	"github.com/cxlfabric/cxlswitch/cci"
	"github.com/cxlfabric/cxlswitch/pkg"
	"github.com/cxlfabric/cxlswitch/switchconn"
)

// Manager is the Physical Port Manager, §2.8: owns every physical port's
// register model and connection state, and is the switch connection
// manager's claim/connect callback target.
type Manager struct {
	ports []*Port
}

// NewManager builds a manager for the given ports, indexed by Port.Index.
// The caller is responsible for building each Port's PortDevice with the
// right Type (Upstream for the single host-facing port, Downstream for
// the rest).
func NewManager(ports []*Port) *Manager {
	return &Manager{ports: ports}
}

// Port returns the port at index, or an error if out of range.
func (m *Manager) Port(index uint8) (*Port, error) {
	if int(index) >= len(m.ports) {
		return nil, fmt.Errorf("%w: %d", pkg.ErrInvalidPortIndex, index)
	}
	return m.ports[index], nil
}

// Ports returns every managed port.
func (m *Manager) Ports() []*Port { return m.ports }

// Claim implements switchconn.PortClaimFunc: valid, unoccupied port
// index.
func (m *Manager) Claim(index uint8) bool {
	p, err := m.Port(index)
	if err != nil {
		return false
	}
	return !p.Connected()
}

// Connect implements switchconn.ConnectFunc: attaches the accepted
// connection to its port.
func (m *Manager) Connect(index uint8, proc *switchconn.Processor) {
	p, err := m.Port(index)
	if err != nil {
		pkg.LogWarn(pkg.ComponentConn, "connect callback for unknown port", "port", index)
		return
	}
	p.Attach(proc.CxlConnection(), proc)
	pkg.LogInfo(pkg.ComponentConn, "port connected", "port", index, "type", p.Type)
}

// Disconnect marks port detached and unbinds any vPPB bound to it,
// §4.8 on_port_update. onDisconnected, if non-nil, receives the port
// index so the caller can cascade into the Virtual Switch Manager
// without this package importing vswitch.
func (m *Manager) Disconnect(index uint8, onDisconnected func(uint8)) {
	p, err := m.Port(index)
	if err != nil {
		return
	}
	p.Detach()
	pkg.LogInfo(pkg.ComponentConn, "port disconnected", "port", index)
	if onDisconnected != nil {
		onDisconnected(index)
	}
}

// IsDownstreamPort implements vswitch.PortClassifier.
func (m *Manager) IsDownstreamPort(index uint8) bool {
	p, err := m.Port(index)
	if err != nil {
		return false
	}
	return p.Type == Downstream
}

// LdAllocated implements vswitch.LdAllocationChecker: any ld id below the
// port's configured logical device count is considered allocated. No
// per-LD allocation bookkeeping (range multipliers) is kept; this only
// answers the existence question BindVppb needs.
func (m *Manager) LdAllocated(physicalPort, ldID uint8) bool {
	p, err := m.Port(physicalPort)
	if err != nil {
		return false
	}
	return ldID < p.LogicalDeviceCount()
}

// PhysicalPortState implements cci.PortStateProvider.
func (m *Manager) PhysicalPortState(index uint8) (cci.PhysicalPortState, error) {
	p, err := m.Port(index)
	if err != nil {
		return cci.PhysicalPortState{}, err
	}
	return p.physicalPortState(), nil
}

// IdentifySwitchDevice contributes the physical-port-shaped fields of
// cci.IdentifySwitchDeviceInfo (NumPhysicalPorts, ActivePortMask); the
// vPPB-shaped fields come from vswitch.Manager.IdentifySwitchDevice. The
// two are merged by switchd's switchInfo adapter, which assembles the
// final executor response.
func (m *Manager) IdentifySwitchDevice() cci.IdentifySwitchDeviceInfo {
	info := cci.IdentifySwitchDeviceInfo{NumPhysicalPorts: uint8(len(m.ports))}
	for _, p := range m.ports {
		if p.Connected() {
			info.ActivePortMask |= 1 << uint(p.Index)
		}
	}
	return info
}
