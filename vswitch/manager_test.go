package vswitch

import (
	"errors"
	"testing"

	"github.com/cxlfabric/cxlswitch/pkg"
)

type fakePorts struct{ dsp map[uint8]bool }

func (f fakePorts) IsDownstreamPort(port uint8) bool { return f.dsp[port] }

type fakeLdAlloc struct{ allocated map[uint8]map[uint8]bool }

func (f fakeLdAlloc) LdAllocated(port, ldID uint8) bool { return f.allocated[port][ldID] }

func newTestManager() *Manager {
	ports := fakePorts{dsp: map[uint8]bool{1: true, 2: true}}
	return NewManager(ports, nil, nil)
}

func TestBindVppb_Success(t *testing.T) {
	m := newTestManager()
	vs := m.CreateVirtualSwitch(0, 0, 2)

	if err := m.BindVppb(0, 0, 1, noLD); err != nil {
		t.Fatalf("BindVppb() error = %v", err)
	}
	b, err := vs.Binding(0)
	if err != nil {
		t.Fatalf("Binding() error = %v", err)
	}
	if b.State != VppbBound || b.PhysicalPort != 1 {
		t.Errorf("binding = %+v, want BOUND to port 1", b)
	}
}

func TestBindVppb_RejectsNonDownstreamPort(t *testing.T) {
	m := newTestManager()
	m.CreateVirtualSwitch(0, 0, 1)
	err := m.BindVppb(0, 0, 9, noLD)
	if !errors.Is(err, pkg.ErrInvalidBinding) {
		t.Fatalf("error = %v, want ErrInvalidBinding", err)
	}
}

func TestBindVppb_RejectsAlreadyBound(t *testing.T) {
	m := newTestManager()
	m.CreateVirtualSwitch(0, 0, 1)
	if err := m.BindVppb(0, 0, 1, noLD); err != nil {
		t.Fatalf("first bind: %v", err)
	}
	if err := m.BindVppb(0, 0, 2, noLD); !errors.Is(err, pkg.ErrInvalidBinding) {
		t.Fatalf("second bind error = %v, want ErrInvalidBinding", err)
	}
}

func TestBindVppb_RejectsCrossSwitchDoubleBind(t *testing.T) {
	m := newTestManager()
	m.CreateVirtualSwitch(0, 0, 1)
	m.CreateVirtualSwitch(1, 1, 1)

	if err := m.BindVppb(0, 0, 1, noLD); err != nil {
		t.Fatalf("bind on vcs 0: %v", err)
	}
	if err := m.BindVppb(1, 0, 1, noLD); !errors.Is(err, pkg.ErrInvalidBinding) {
		t.Fatalf("bind on vcs 1 error = %v, want ErrInvalidBinding (target already bound)", err)
	}
}

func TestBindVppb_RejectsUnallocatedLD(t *testing.T) {
	ports := fakePorts{dsp: map[uint8]bool{1: true}}
	ld := fakeLdAlloc{allocated: map[uint8]map[uint8]bool{1: {0: true}}}
	m := NewManager(ports, ld, nil)
	m.CreateVirtualSwitch(0, 0, 1)

	if err := m.BindVppb(0, 0, 1, 5); !errors.Is(err, pkg.ErrInvalidBinding) {
		t.Fatalf("error = %v, want ErrInvalidBinding for unallocated ld", err)
	}
	if err := m.BindVppb(0, 0, 1, 0); err != nil {
		t.Fatalf("bind with allocated ld: %v", err)
	}
}

func TestUnbindVppb_RoundTrip(t *testing.T) {
	m := newTestManager()
	vs := m.CreateVirtualSwitch(0, 0, 1)

	if err := m.BindVppb(0, 0, 1, noLD); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := m.UnbindVppb(0, 0); err != nil {
		t.Fatalf("unbind: %v", err)
	}
	b, _ := vs.Binding(0)
	if b.State != VppbUnbound {
		t.Errorf("state after unbind = %v, want UNBOUND", b.State)
	}
	if err := m.BindVppb(0, 0, 2, noLD); err != nil {
		t.Fatalf("rebind after unbind: %v", err)
	}
}

func TestUnbindVppb_RejectsNotBound(t *testing.T) {
	m := newTestManager()
	m.CreateVirtualSwitch(0, 0, 1)
	if err := m.UnbindVppb(0, 0); !errors.Is(err, pkg.ErrInvalidBinding) {
		t.Fatalf("error = %v, want ErrInvalidBinding", err)
	}
}

func TestOnPortDisconnected_UnbindsBoundVppbs(t *testing.T) {
	m := newTestManager()
	vs0 := m.CreateVirtualSwitch(0, 0, 2)
	vs1 := m.CreateVirtualSwitch(1, 1, 1)

	mustBind(t, m, 0, 0, 1, 0)
	mustBind(t, m, 0, 1, 2, noLD)
	mustBind(t, m, 1, 0, 1, 1)

	m.OnPortDisconnected(1)

	if b, _ := vs0.Binding(0); b.State != VppbUnbound {
		t.Errorf("vs0/vppb0 state = %v, want UNBOUND", b.State)
	}
	if b, _ := vs0.Binding(1); b.State != VppbBound {
		t.Errorf("vs0/vppb1 state = %v, want still BOUND (different port)", b.State)
	}
	if b, _ := vs1.Binding(0); b.State != VppbUnbound {
		t.Errorf("vs1/vppb0 state = %v, want UNBOUND", b.State)
	}

	if err := m.BindVppb(0, 0, 1, 0); err != nil {
		t.Fatalf("rebind target freed by disconnect: %v", err)
	}
}

func TestVirtualCxlSwitchInfo(t *testing.T) {
	m := newTestManager()
	m.CreateVirtualSwitch(0, 0, 2)
	mustBind(t, m, 0, 0, 1, noLD)

	info, err := m.VirtualCxlSwitchInfo(0)
	if err != nil {
		t.Fatalf("VirtualCxlSwitchInfo() error = %v", err)
	}
	if info.VppbCount != 2 || info.BoundPorts[0] != 1 || info.BoundPorts[1] != 0xFF {
		t.Errorf("info = %+v", info)
	}
}

func TestVirtualCxlSwitchInfo_UnknownVCS(t *testing.T) {
	m := newTestManager()
	if _, err := m.VirtualCxlSwitchInfo(9); !errors.Is(err, pkg.ErrUnknownVCS) {
		t.Fatalf("error = %v, want ErrUnknownVCS", err)
	}
}

func TestIdentifySwitchDevice_CountsVppbs(t *testing.T) {
	m := newTestManager()
	m.CreateVirtualSwitch(0, 0, 2)
	m.CreateVirtualSwitch(1, 1, 1)
	mustBind(t, m, 0, 0, 1, noLD)

	info := m.IdentifySwitchDevice()
	if info.NumVCSs != 2 || info.NumTotalVppb != 3 || info.NumActiveVppb != 1 {
		t.Errorf("info = %+v", info)
	}
}

func TestRouteByBus(t *testing.T) {
	m := newTestManager()
	vs := m.CreateVirtualSwitch(0, 0, 2)
	mustBind(t, m, 0, 1, 2, noLD)

	route, ok := vs.RouteByBus(vs.BusForVppb(1))
	if !ok || route.PhysicalPort != 2 {
		t.Errorf("RouteByBus = %+v, %v, want port 2", route, ok)
	}
	if _, ok := vs.RouteByBus(0); ok {
		t.Errorf("RouteByBus(0) should miss: bus 0 belongs to the upstream port itself")
	}
}

func mustBind(t *testing.T, m *Manager, vcs, vppb, port, ld uint8) {
	t.Helper()
	if err := m.BindVppb(vcs, vppb, port, ld); err != nil {
		t.Fatalf("BindVppb(%d,%d,%d,%d) error = %v", vcs, vppb, port, ld, err)
	}
}
