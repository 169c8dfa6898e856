// Package switchd wires the leaf components (port, vswitch, cci, fifo,
// switchconn, mgmt, metrics) into one running CXL fabric switch process.
// It is kept separate from cmd/cxlswitch so the composition is testable
// without a cobra command line, mirroring getployz-ployz's split between
// a thin cmd/ployzd/main.go and its internal/controlplane/manager.
package switchd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/cxlfabric/cxlswitch/cci"
	"github.com/cxlfabric/cxlswitch/config"
	"github.com/cxlfabric/cxlswitch/mgmt"
	"github.com/cxlfabric/cxlswitch/metrics"
	"github.com/cxlfabric/cxlswitch/pkg"
	"github.com/cxlfabric/cxlswitch/port"
	"github.com/cxlfabric/cxlswitch/switchconn"
	"github.com/cxlfabric/cxlswitch/vswitch"
)

// switchInfo merges the physical-port-shaped and vPPB-shaped halves of
// cci.IdentifySwitchDeviceInfo, each owned by a different manager, §4.7.
type switchInfo struct {
	ports    *port.Manager
	vswitchM *vswitch.Manager
}

func (s switchInfo) IdentifySwitchDevice() cci.IdentifySwitchDeviceInfo {
	info := s.ports.IdentifySwitchDevice()
	vsInfo := s.vswitchM.IdentifySwitchDevice()
	info.NumVCSs = vsInfo.NumVCSs
	info.NumTotalVppb = vsInfo.NumTotalVppb
	info.NumActiveVppb = vsInfo.NumActiveVppb
	return info
}

func (s switchInfo) VirtualCxlSwitchInfo(vcsID uint8) (cci.VirtualSwitchInfo, error) {
	return s.vswitchM.VirtualCxlSwitchInfo(vcsID)
}

// Switch is one running fabric switch instance: every physical port's
// connection state, the virtual switches layered on top, and the
// side-channel servers (CCI-over-CXL-wire dispatch happens per
// connection; mgmt is the out-of-band plane).
type Switch struct {
	Ports    *port.Manager
	VSwitch  *vswitch.Manager
	Conn     *switchconn.Manager
	Router   *port.Router
	Mgmt     *mgmt.Server
	Metrics  *metrics.Registry
	Executor *cci.Executor
}

// New builds a Switch from a validated Topology. It does not start
// listening; call Run for that.
func New(top *config.Topology) (*Switch, error) {
	if err := top.Validate(); err != nil {
		return nil, fmt.Errorf("switchd: invalid topology: %w", err)
	}

	ports := make([]*port.Port, 0, len(top.Ports))
	for _, spec := range top.Ports {
		var t port.Type
		var dev *port.PortDevice
		var err error
		if spec.Type == "upstream" {
			t = port.Upstream
			dev, err = port.NewUpstreamPortDevice(spec.VendorID, spec.DeviceID)
		} else {
			t = port.Downstream
			dev, err = port.NewDownstreamPortDevice(spec.VendorID, spec.DeviceID)
		}
		if err != nil {
			return nil, fmt.Errorf("switchd: port %d: %w", spec.Index, err)
		}
		p := port.NewPort(spec.Index, t, dev)
		if spec.LogicalDevices > 0 {
			p.SetLogicalDeviceCount(spec.LogicalDevices)
		}
		ports = append(ports, p)
	}

	portMgr := port.NewManager(ports)
	mgmtSrv := mgmt.NewServer()
	vsMgr := vswitch.NewManager(portMgr, portMgr, func(op cci.NotificationOpcode, payload []byte) {
		mgmtSrv.Broadcast(op, payload)
	})
	for _, spec := range top.VirtualSwitches {
		vsMgr.CreateVirtualSwitch(spec.ID, spec.UpstreamID, int(spec.VppbCount))
	}

	metricsReg := metrics.NewRegistry()
	executor := &cci.Executor{
		SwitchInfo: switchInfo{ports: portMgr, vswitchM: vsMgr},
		PortState:  portMgr,
		Binder:     vsMgr,
	}

	s := &Switch{
		Ports:    portMgr,
		VSwitch:  vsMgr,
		Router:   port.NewRouter(portMgr),
		Mgmt:     mgmtSrv,
		Metrics:  metricsReg,
		Executor: executor,
	}
	s.Conn = switchconn.NewManager(portMgr.Claim, s.onConnect, 256)
	s.registerMgmtHandlers()
	return s, nil
}

// registerMgmtHandlers exposes IdentifySwitchDevice/GetVirtualCxlSwitchInfo
// over the management plane, for cmd/cxlswitch status rather than
// requiring a status query to speak the CCI wire protocol.
func (s *Switch) registerMgmtHandlers() {
	s.Mgmt.Handle("identify", func(ctx context.Context, params json.RawMessage) (any, error) {
		return s.info().IdentifySwitchDevice(), nil
	})
	s.Mgmt.Handle("vcs_info", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req struct {
			VCSID uint8 `json:"vcs_id"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("vcs_info: %w", err)
		}
		return s.VSwitch.VirtualCxlSwitchInfo(req.VCSID)
	})
}

func (s *Switch) info() switchInfo {
	return switchInfo{ports: s.Ports, vswitchM: s.VSwitch}
}

// Run starts accepting switch connections on listenAddr and, if
// mgmtAddr or metricsAddr are non-empty, the management plane and the
// Prometheus /metrics endpoint on those addresses. It blocks until ctx
// is cancelled or any listener errors.
func (s *Switch) Run(ctx context.Context, listenAddr, mgmtAddr, metricsAddr string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Conn.Listen(gctx, listenAddr) })
	if mgmtAddr != "" {
		g.Go(func() error { return s.Mgmt.Listen(gctx, mgmtAddr) })
	}
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(s.Metrics.Gatherer(), promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		g.Go(func() error {
			<-gctx.Done()
			return srv.Close()
		})
		g.Go(func() error {
			pkg.LogInfo(pkg.ComponentMgmt, "metrics server listening", "addr", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("switchd: metrics server: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// onConnect implements switchconn.ConnectFunc: attaches the new
// connection to its port, then starts the per-connection CCI executor
// and, for an upstream port, the packet router.
func (s *Switch) onConnect(index uint8, proc *switchconn.Processor) {
	s.Ports.Connect(index, proc)
	s.Metrics.SetConnectedPorts(len(connectedPorts(s.Ports)))

	p, err := s.Ports.Port(index)
	if err != nil {
		return
	}
	conn := p.Connection()
	if conn == nil {
		return
	}

	ctx := context.Background()
	go func() {
		if err := s.Executor.Serve(ctx, conn.Cci, func(op cci.Opcode, rc pkg.ReturnCode) {
			s.Metrics.IncCciCommand(op.String(), rc.String())
		}); err != nil {
			pkg.LogDebug(pkg.ComponentCCI, "cci server stopped", "port", index, "error", err)
		}
	}()

	if p.Type == port.Upstream {
		if vs, ok := s.VSwitch.SwitchForUpstreamPort(index); ok {
			go func() {
				if err := s.Router.Run(ctx, p, vs); err != nil {
					pkg.LogDebug(pkg.ComponentConn, "router stopped", "port", index, "error", err)
				}
				s.Ports.Disconnect(index, s.VSwitch.OnPortDisconnected)
				s.Metrics.SetConnectedPorts(len(connectedPorts(s.Ports)))
			}()
			return
		}
	}

	go func() {
		if err := s.Router.RunReturn(ctx, p); err != nil {
			pkg.LogDebug(pkg.ComponentConn, "router return path stopped", "port", index, "error", err)
		}
		s.Ports.Disconnect(index, s.VSwitch.OnPortDisconnected)
		s.Metrics.SetConnectedPorts(len(connectedPorts(s.Ports)))
	}()
}

func connectedPorts(m *port.Manager) []*port.Port {
	var out []*port.Port
	for _, p := range m.Ports() {
		if p.Connected() {
			out = append(out, p)
		}
	}
	return out
}
