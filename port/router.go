package port

import (
	"context"
	"sync"

	"github.com/cxlfabric/cxlswitch/pkg"
	"github.com/cxlfabric/cxlswitch/proto"
	"github.com/cxlfabric/cxlswitch/vswitch"
	"golang.org/x/sync/errgroup"
)

// switchLookup resolves which downstream port (and, for an MLD target,
// which logical device) currently owns a vPPB's traffic, narrowed to two
// lookup methods so it depends on vswitch.VirtualSwitch's
// shape rather than the whole vswitch.Manager.
type switchLookup interface {
	BusForVppb(vppbID uint8) uint8
	RouteByBus(bus uint8) (vswitch.Route, bool)
}

// Router forwards an upstream port's CXL.io config/MMIO traffic and
// CXL.mem traffic to the correct downstream port, per §4.8's routing
// rules: config by BDF/bus range, CXL.mem by the upstream port's switch
// HDM decoders.
type Router struct {
	ports *Manager

	mu      sync.Mutex
	pending map[uint32]uint8 // transaction id -> origin port index, for completions routed back upstream
}

// NewRouter builds a router over ports.
func NewRouter(ports *Manager) *Router {
	return &Router{ports: ports, pending: make(map[uint32]uint8)}
}

// Run forwards usp's cfg and cxl.mem traffic until ctx is cancelled or the
// port disconnects. vs is the Virtual CXL Switch owning usp's vPPBs.
func (r *Router) Run(ctx context.Context, usp *Port, vs switchLookup) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.forwardCfg(gctx, usp, vs) })
	g.Go(func() error { return r.forwardMem(gctx, usp, vs) })
	return g.Wait()
}

// forwardCfg drains usp's inbound cfg queue: bus 0 requests answer
// against usp's own configuration space, everything else routes through
// vs's bus ranges to a downstream port.
func (r *Router) forwardCfg(ctx context.Context, usp *Port, vs switchLookup) error {
	conn := usp.Connection()
	if conn == nil {
		return pkg.ErrDisconnected
	}
	for {
		pkt, err := conn.Cfg.Target.Get(ctx)
		if err != nil {
			return err
		}
		if isDisconnectSentinel(pkt) {
			return nil
		}
		req, ok := pkt.(proto.CxlIoPacket)
		if !ok {
			continue
		}

		if req.Bus == 0 {
			r.answerLocalCfg(usp, req)
			continue
		}

		route, ok := vs.RouteByBus(req.Bus)
		if !ok {
			r.sendCompletion(usp, req, pkg.CompletionUnsupportedRequest, nil)
			continue
		}
		dsp, err := r.ports.Port(route.PhysicalPort)
		if err != nil {
			r.sendCompletion(usp, req, pkg.CompletionUnsupportedRequest, nil)
			continue
		}
		if route.HasLD {
			req.Prefix.LdID = route.LdID
		}
		if !req.FmtType.IsPosted() {
			r.mu.Lock()
			r.pending[req.GetTransactionID()] = usp.Index
			r.mu.Unlock()
		}
		if err := dsp.Send(req); err != nil {
			pkg.LogWarn(pkg.ComponentConn, "cfg forward failed", "port", dsp.Index, "error", err)
		}
	}
}

// forwardMem drains usp's inbound cxl.mem queue, consulting usp's own
// committed switch HDM decoders for the target downstream port.
func (r *Router) forwardMem(ctx context.Context, usp *Port, vs switchLookup) error {
	conn := usp.Connection()
	if conn == nil {
		return pkg.ErrDisconnected
	}
	for {
		pkt, err := conn.CxlMem.Target.Get(ctx)
		if err != nil {
			return err
		}
		if isDisconnectSentinel(pkt) {
			return nil
		}
		req, ok := pkt.(proto.CxlMemPacket)
		if !ok {
			continue
		}

		var targetPort uint8
		var resolved bool
		for _, dec := range usp.Device.SwitchDecoders() {
			if dec.Contains(req.Address) {
				if t, err := dec.GetTarget(req.Address); err == nil {
					targetPort, resolved = t, true
					break
				}
			}
		}
		if !resolved {
			continue
		}
		dsp, err := r.ports.Port(targetPort)
		if err != nil {
			continue
		}
		r.mu.Lock()
		r.pending[req.GetTransactionID()] = usp.Index
		r.mu.Unlock()
		if err := dsp.Send(req); err != nil {
			pkg.LogWarn(pkg.ComponentConn, "mem forward failed", "port", dsp.Index, "error", err)
		}
	}
}

// RunReturn drains dsp's completion-bound queues (MMIO, where the packet
// processor queues every CXL.io completion it does not resolve itself, and
// CXL.mem) and forwards each back to whichever upstream port originated
// the matching request, resolved through the router's cross-port
// correlation table.
func (r *Router) RunReturn(ctx context.Context, dsp *Port) error {
	conn := dsp.Connection()
	if conn == nil {
		return pkg.ErrDisconnected
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.drainCompletions(gctx, conn.MMIO.Target) })
	g.Go(func() error { return r.drainCompletions(gctx, conn.CxlMem.Target) })
	return g.Wait()
}

func (r *Router) drainCompletions(ctx context.Context, q interface {
	Get(context.Context) (proto.Packet, error)
}) error {
	for {
		pkt, err := q.Get(ctx)
		if err != nil {
			return err
		}
		if isDisconnectSentinel(pkt) {
			return nil
		}
		var tid uint32
		switch v := pkt.(type) {
		case proto.CxlIoPacket:
			tid = v.GetTransactionID()
		case proto.CxlMemPacket:
			tid = v.GetTransactionID()
		default:
			continue
		}

		r.mu.Lock()
		origin, ok := r.pending[tid]
		if ok {
			delete(r.pending, tid)
		}
		r.mu.Unlock()
		if !ok {
			continue
		}
		usp, err := r.ports.Port(origin)
		if err != nil {
			continue
		}
		if err := usp.Send(pkt); err != nil {
			pkg.LogWarn(pkg.ComponentConn, "completion return failed", "port", usp.Index, "error", err)
		}
	}
}

// answerLocalCfg handles a config request addressed to the upstream
// port's own bus-0 configuration space and replies with a completion.
func (r *Router) answerLocalCfg(usp *Port, req proto.CxlIoPacket) {
	if req.FmtType.IsWrite() {
		usp.Device.WriteConfig(int(req.Register), req.Data)
		r.sendCompletion(usp, req, pkg.CompletionSuccess, nil)
		return
	}
	length := int(req.LengthDW) * 4
	if length == 0 {
		length = 4
	}
	data := usp.Device.ReadConfig(int(req.Register), length)
	r.sendCompletion(usp, req, pkg.CompletionSuccess, data)
}

func (r *Router) sendCompletion(usp *Port, req proto.CxlIoPacket, status pkg.CompletionStatus, data []byte) {
	var resp proto.CxlIoPacket
	if len(data) > 0 {
		resp = proto.NewCompletionData(0, status, data, req.RequesterID, req.Tag, req.Prefix.LdID)
	} else {
		resp = proto.NewCompletion(0, status, req.RequesterID, req.Tag, req.Prefix.LdID)
	}
	if err := usp.Send(resp); err != nil {
		pkg.LogWarn(pkg.ComponentConn, "local cfg completion failed", "port", usp.Index, "error", err)
	}
}

func isDisconnectSentinel(pkt proto.Packet) bool {
	sb, ok := pkt.(proto.SidebandPacket)
	return ok && sb.Type == proto.SidebandConnectionDisconnected
}
