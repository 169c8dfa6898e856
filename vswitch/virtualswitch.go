package vswitch

import (
	"sync"
	"sync/atomic"

	"github.com/cxlfabric/cxlswitch/pkg"
)

// busOffset is the bus number a vPPB's secondary/subordinate bus is fixed
// to, relative to the owning virtual switch's upstream bus: vPPB i sits on
// bus i+1. A single vPPB spans exactly one bus, so secondary == subordinate.
const busOffset = 1

// VirtualSwitch is one Virtual CXL Switch, §4.8: a fixed-size array of
// vPPBs bound to an upstream port, each independently bindable to a
// downstream physical port (and logical device, for an MLD target).
type VirtualSwitch struct {
	ID           uint8
	UpstreamPort uint8

	mu     sync.Mutex // guards vppbs; routes is read lock-free via atomic swap
	vppbs  []vppb
	routes atomic.Pointer[routingTable]
}

// NewVirtualSwitch allocates a switch with vppbCount vPPBs, all UNBOUND.
func NewVirtualSwitch(id, upstreamPort uint8, vppbCount int) *VirtualSwitch {
	vs := &VirtualSwitch{ID: id, UpstreamPort: upstreamPort, vppbs: make([]vppb, vppbCount)}
	for i := range vs.vppbs {
		vs.vppbs[i].ldID = noLD
	}
	empty := routingTable{}
	vs.routes.Store(&empty)
	return vs
}

// VppbCount returns the number of vPPBs this switch owns.
func (vs *VirtualSwitch) VppbCount() int { return len(vs.vppbs) }

// BusForVppb returns the single PCI bus number routed by vPPB id.
func (vs *VirtualSwitch) BusForVppb(vppbID uint8) uint8 { return vppbID + busOffset }

// Binding returns a snapshot of vPPB id's current state.
func (vs *VirtualSwitch) Binding(vppbID uint8) (Binding, error) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	if int(vppbID) >= len(vs.vppbs) {
		return Binding{}, pkg.ErrInvalidBinding
	}
	return vs.vppbs[vppbID].snapshot(vppbID), nil
}

// Bindings returns a snapshot of every vPPB owned by this switch.
func (vs *VirtualSwitch) Bindings() []Binding {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	out := make([]Binding, len(vs.vppbs))
	for i, v := range vs.vppbs {
		out[i] = v.snapshot(uint8(i))
	}
	return out
}

// RouteByVppb returns vPPB id's current forwarding target. Lock-free: it
// reads the latest atomically-swapped routing table snapshot.
func (vs *VirtualSwitch) RouteByVppb(vppbID uint8) (Route, bool) {
	table := *vs.routes.Load()
	r, ok := table[vppbID]
	return r, ok
}

// RouteByBus returns the route for the vPPB whose bus range contains bus.
func (vs *VirtualSwitch) RouteByBus(bus uint8) (Route, bool) {
	if bus < busOffset {
		return Route{}, false
	}
	return vs.RouteByVppb(bus - busOffset)
}

// bind transitions vppbID from UNBOUND to BOUND via BIND_IN_PROGRESS,
// installing a new routing-table snapshot. ldID is noLD for a non-MLD
// target.
func (vs *VirtualSwitch) bind(vppbID, physicalPort, ldID uint8) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if int(vppbID) >= len(vs.vppbs) {
		return pkg.ErrInvalidBinding
	}
	v := &vs.vppbs[vppbID]
	if v.state != VppbUnbound {
		return pkg.ErrInvalidBinding
	}

	v.state = VppbBindInProgress
	v.physicalPort = physicalPort
	v.ldID = ldID
	v.state = VppbBound

	next := (*vs.routes.Load()).clone()
	next[vppbID] = Route{PhysicalPort: physicalPort, LdID: ldID, HasLD: ldID != noLD}
	vs.routes.Store(&next)
	return nil
}

// unbind transitions vppbID from BOUND back to UNBOUND via
// UNBIND_IN_PROGRESS, removing its routing-table entry.
func (vs *VirtualSwitch) unbind(vppbID uint8) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if int(vppbID) >= len(vs.vppbs) {
		return pkg.ErrInvalidBinding
	}
	v := &vs.vppbs[vppbID]
	if v.state != VppbBound {
		return pkg.ErrInvalidBinding
	}

	v.state = VppbUnbindInProgress
	v.physicalPort = 0
	v.ldID = noLD
	v.state = VppbUnbound

	next := (*vs.routes.Load()).clone()
	delete(next, vppbID)
	vs.routes.Store(&next)
	return nil
}

// disconnectPort forces every vPPB bound to physicalPort back to UNBOUND,
// §2 "vPPB bindings persist across connection events of their DSP; on DSP
// disconnect the vPPB enters ... UNBOUND". It returns the ids of the vPPBs
// that changed state, so the caller knows which SwitchUpdateEvents to emit.
func (vs *VirtualSwitch) disconnectPort(physicalPort uint8) []uint8 {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	var changed []uint8
	next := (*vs.routes.Load()).clone()
	for i := range vs.vppbs {
		v := &vs.vppbs[i]
		if v.state == VppbBound && v.physicalPort == physicalPort {
			v.state = VppbUnbound
			v.physicalPort = 0
			v.ldID = noLD
			delete(next, uint8(i))
			changed = append(changed, uint8(i))
		}
	}
	if len(changed) > 0 {
		vs.routes.Store(&next)
	}
	return changed
}
