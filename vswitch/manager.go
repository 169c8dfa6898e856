package vswitch

import (
	"fmt"
	"sync"

	"github.com/cxlfabric/cxlswitch/cci"
	"github.com/cxlfabric/cxlswitch/pkg"
)

// target identifies a downstream (physical port, logical device) pair,
// the unit that at most one vPPB across all virtual switches may bind to.
type target struct {
	physicalPort uint8
	ldID         uint8
}

// PortClassifier answers whether a physical port is wired as a downstream
// port, one of BindVppb's preconditions (§4.7). Implemented by the port
// package; declared here to avoid an import cycle.
type PortClassifier interface {
	IsDownstreamPort(physicalPort uint8) bool
}

// LdAllocationChecker answers whether a logical device id is allocated on
// a multi-logical-device physical port, BindVppb precondition (e).
// Non-MLD ports (ldID == noLD) never consult it.
type LdAllocationChecker interface {
	LdAllocated(physicalPort, ldID uint8) bool
}

// NotifyFunc receives a fabric-manager notification to push to subscribed
// CCI connections, §4.7 "Notifications (sent, not requested)".
type NotifyFunc func(cci.NotificationOpcode, []byte)

// Manager is the Virtual Switch Manager, §2.9/§4.8: owns every Virtual
// CXL Switch and enforces the cross-switch uniqueness invariant that a
// given (physical port, logical device) is bound by at most one vPPB.
type Manager struct {
	Ports   PortClassifier
	LdAlloc LdAllocationChecker
	Notify  NotifyFunc

	mu       sync.Mutex
	switches map[uint8]*VirtualSwitch
	bound    map[target]struct{ vcs, vppb uint8 }
}

// NewManager builds an empty Virtual Switch Manager.
func NewManager(ports PortClassifier, ldAlloc LdAllocationChecker, notify NotifyFunc) *Manager {
	return &Manager{
		Ports:    ports,
		LdAlloc:  ldAlloc,
		Notify:   notify,
		switches: make(map[uint8]*VirtualSwitch),
		bound:    make(map[target]struct{ vcs, vppb uint8 }),
	}
}

// CreateVirtualSwitch registers a new Virtual CXL Switch bound to
// upstreamPort with vppbCount vPPBs, all initially UNBOUND.
func (m *Manager) CreateVirtualSwitch(id, upstreamPort uint8, vppbCount int) *VirtualSwitch {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs := NewVirtualSwitch(id, upstreamPort, vppbCount)
	m.switches[id] = vs
	return vs
}

// Switch returns the Virtual CXL Switch with the given id.
func (m *Manager) Switch(vcsID uint8) (*VirtualSwitch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs, ok := m.switches[vcsID]
	if !ok {
		return nil, pkg.ErrUnknownVCS
	}
	return vs, nil
}

// SwitchForUpstreamPort returns the Virtual CXL Switch whose UpstreamPort
// matches physicalPort, for wiring a connected upstream port's packet
// router to the switch that owns its vPPB routing table.
func (m *Manager) SwitchForUpstreamPort(physicalPort uint8) (*VirtualSwitch, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, vs := range m.switches {
		if vs.UpstreamPort == physicalPort {
			return vs, true
		}
	}
	return nil, false
}

// BindVppb implements cci.VppbBinder, enforcing every precondition of
// §4.7's BindVppb before delegating the state transition to the target
// VirtualSwitch.
func (m *Manager) BindVppb(vcsID, vppbID, physicalPort, ldID uint8) error {
	m.mu.Lock()
	vs, ok := m.switches[vcsID]
	if !ok {
		m.mu.Unlock()
		return pkg.ErrUnknownVCS
	}
	if m.Ports != nil && !m.Ports.IsDownstreamPort(physicalPort) {
		m.mu.Unlock()
		return fmt.Errorf("%w: physical port %d is not a downstream port", pkg.ErrInvalidBinding, physicalPort)
	}
	hasLD := ldID != noLD
	if hasLD && m.LdAlloc != nil && !m.LdAlloc.LdAllocated(physicalPort, ldID) {
		m.mu.Unlock()
		return fmt.Errorf("%w: ld %d not allocated on port %d", pkg.ErrInvalidBinding, ldID, physicalPort)
	}
	t := target{physicalPort: physicalPort, ldID: ldID}
	if owner, taken := m.bound[t]; taken && !(owner.vcs == vcsID && owner.vppb == vppbID) {
		m.mu.Unlock()
		return fmt.Errorf("%w: port %d ld %d already bound by vcs %d vppb %d", pkg.ErrInvalidBinding, physicalPort, ldID, owner.vcs, owner.vppb)
	}

	if err := vs.bind(vppbID, physicalPort, ldID); err != nil {
		m.mu.Unlock()
		return err
	}
	m.bound[t] = struct{ vcs, vppb uint8 }{vcs: vcsID, vppb: vppbID}
	m.mu.Unlock()

	m.emitSwitchUpdate(vcsID, vppbID, VppbBound)
	return nil
}

// UnbindVppb implements cci.VppbBinder.
func (m *Manager) UnbindVppb(vcsID, vppbID uint8) error {
	m.mu.Lock()
	vs, ok := m.switches[vcsID]
	if !ok {
		m.mu.Unlock()
		return pkg.ErrUnknownVCS
	}
	if err := vs.unbind(vppbID); err != nil {
		m.mu.Unlock()
		return err
	}
	for t, owner := range m.bound {
		if owner.vcs == vcsID && owner.vppb == vppbID {
			delete(m.bound, t)
			break
		}
	}
	m.mu.Unlock()

	m.emitSwitchUpdate(vcsID, vppbID, VppbUnbound)
	return nil
}

// OnPortDisconnected unbinds every vPPB across every switch that was
// bound to physicalPort, §4.8 on_port_update.
func (m *Manager) OnPortDisconnected(physicalPort uint8) {
	m.mu.Lock()
	var events []struct{ vcs, vppb uint8 }
	for vcsID, vs := range m.switches {
		for _, vppbID := range vs.disconnectPort(physicalPort) {
			events = append(events, struct{ vcs, vppb uint8 }{vcs: vcsID, vppb: vppbID})
		}
	}
	for t := range m.bound {
		if t.physicalPort == physicalPort {
			delete(m.bound, t)
		}
	}
	m.mu.Unlock()

	for _, e := range events {
		m.emitSwitchUpdate(e.vcs, e.vppb, VppbUnbound)
	}
}

func (m *Manager) emitSwitchUpdate(vcsID, vppbID uint8, state VppbState) {
	if m.Notify == nil {
		return
	}
	m.Notify(cci.NotificationVppbBindStateChange, []byte{vcsID, vppbID, uint8(state)})
}

// IdentifySwitchDevice implements cci.SwitchInfoProvider.
func (m *Manager) IdentifySwitchDevice() cci.IdentifySwitchDeviceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := cci.IdentifySwitchDeviceInfo{NumVCSs: uint8(len(m.switches))}
	for _, vs := range m.switches {
		for _, b := range vs.Bindings() {
			info.NumTotalVppb++
			if b.State == VppbBound {
				info.NumActiveVppb++
			}
		}
	}
	return info
}

// VirtualCxlSwitchInfo implements cci.SwitchInfoProvider.
func (m *Manager) VirtualCxlSwitchInfo(vcsID uint8) (cci.VirtualSwitchInfo, error) {
	vs, err := m.Switch(vcsID)
	if err != nil {
		return cci.VirtualSwitchInfo{}, err
	}
	bindings := vs.Bindings()
	bound := make([]uint8, len(bindings))
	for i, b := range bindings {
		if b.State == VppbBound {
			bound[i] = b.PhysicalPort
		} else {
			bound[i] = 0xFF
		}
	}
	return cci.VirtualSwitchInfo{VCSID: vcsID, VppbCount: uint8(vs.VppbCount()), BoundPorts: bound}, nil
}
