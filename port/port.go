package port

import (
	"sync"

	"github.com/cxlfabric/cxlswitch/cci"
	"github.com/cxlfabric/cxlswitch/fifo"
	"github.com/cxlfabric/cxlswitch/proc"
	"github.com/cxlfabric/cxlswitch/proto"
)

// Port is one physical switch port: its fixed identity and register
// model, plus whatever connection is currently attached, §3 Port
// (physical).
type Port struct {
	Index  uint8
	Type   Type
	Device *PortDevice

	mu        sync.Mutex
	connected bool
	conn      *fifo.CxlConnection
	processor *proc.Processor
	ldCount   uint8 // 0 for a non-MLD downstream port
}

// NewPort builds a disconnected port.
func NewPort(index uint8, t Type, device *PortDevice) *Port {
	return &Port{Index: index, Type: t, Device: device}
}

// SetLogicalDeviceCount configures port as a multi-logical-device
// downstream port with n logical devices, for LdInfo/LdAllocations
// queries.
func (p *Port) SetLogicalDeviceCount(n uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ldCount = n
}

// IsMLD reports whether the port hosts more than one logical device.
func (p *Port) IsMLD() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ldCount > 1
}

// LogicalDeviceCount returns the configured logical device count (1 if
// unset/non-MLD).
func (p *Port) LogicalDeviceCount() uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ldCount == 0 {
		return 1
	}
	return p.ldCount
}

// Attach marks the port connected over conn/proc, called by the switch
// connection manager's handshake callback once a link is accepted.
func (p *Port) Attach(conn *fifo.CxlConnection, processor *proc.Processor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn = conn
	p.processor = processor
	p.connected = true
}

// Detach marks the port disconnected, called once the attached
// Processor's loops exit.
func (p *Port) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn = nil
	p.processor = nil
	p.connected = false
}

// Connected reports whether a link is currently attached.
func (p *Port) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Connection returns the attached CxlConnection, or nil if disconnected.
func (p *Port) Connection() *fifo.CxlConnection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn
}

// Processor returns the attached Packet Processor, or nil if disconnected.
func (p *Port) Processor() *proc.Processor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processor
}

// Send writes pkt to this port's attached connection. It is a no-op
// returning nil if the port is currently disconnected, matching a
// dropped-on-the-floor posted write to an absent device.
func (p *Port) Send(pkt proto.Packet) error {
	proc := p.Processor()
	if proc == nil {
		return nil
	}
	return proc.Send(pkt)
}

// physicalPortState builds the per-port value Manager.PhysicalPortState
// returns for cci.PortStateProvider, §4.7 GetPhysicalPortState.
func (p *Port) physicalPortState() cci.PhysicalPortState {
	p.mu.Lock()
	defer p.mu.Unlock()
	portType := uint8(0)
	if p.Type == Downstream {
		portType = 1
	}
	return cci.PhysicalPortState{PortIndex: p.Index, Connected: p.connected, PortType: portType}
}
