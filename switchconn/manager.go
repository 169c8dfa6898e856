package switchconn

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/cxlfabric/cxlswitch/fifo"
	"github.com/cxlfabric/cxlswitch/pkg"
	"github.com/cxlfabric/cxlswitch/proc"
	"github.com/cxlfabric/cxlswitch/proto"
)

// PortClaimFunc validates and reserves a physical port index for an
// incoming connection. It returns false if the port is out of range or
// already occupied; the manager rejects the connection in that case
// without ever handing the caller a Processor.
type PortClaimFunc func(port uint8) bool

// ConnectFunc is invoked once a connection is accepted and fully wired,
// so the caller (the physical port manager) can associate the port index
// with its Processor and CxlConnection and start whatever else runs on
// top (CCI executor, HDM decoders, ...).
type ConnectFunc func(port uint8, proc *Processor)

// Processor is a type alias so callers of this package don't need to
// import proc directly just to hold a reference.
type Processor = proc.Processor

// Manager is the switch's connection manager: a TCP listener that
// completes the sideband handshake for every inbound device/host
// connection, §4.3.
type Manager struct {
	listener net.Listener
	claim    PortClaimFunc
	onConn   ConnectFunc
	queueCap int
}

// NewManager creates a Manager that is not yet listening; Bind then Serve,
// or Listen, starts accepting.
func NewManager(claim PortClaimFunc, onConn ConnectFunc, queueCap int) *Manager {
	if queueCap <= 0 {
		queueCap = 256
	}
	return &Manager{claim: claim, onConn: onConn, queueCap: queueCap}
}

// Bind opens the listening socket without yet accepting connections, so
// callers (and tests) can read back the resolved address — e.g. after
// binding port 0 — before Serve starts the accept loop.
func (m *Manager) Bind(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("switch connection manager: listen %s: %w", addr, err)
	}
	m.listener = ln
	return nil
}

// Listen binds addr and serves, running until ctx is cancelled or the
// listener errors. Equivalent to calling Bind followed by Serve.
func (m *Manager) Listen(ctx context.Context, addr string) error {
	if err := m.Bind(addr); err != nil {
		return err
	}
	return m.Serve(ctx)
}

// Serve accepts connections on an already-Bound listener until ctx is
// cancelled or the listener errors.
func (m *Manager) Serve(ctx context.Context) error {
	ln := m.listener
	pkg.LogInfo(pkg.ComponentConn, "switch connection manager listening", "addr", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("switch connection manager: accept: %w", err)
			}
			go m.handshake(gctx, conn)
		}
	})
	return g.Wait()
}

func (m *Manager) handshake(ctx context.Context, conn net.Conn) {
	pkt, err := proto.GetPacket(conn)
	if err != nil {
		pkg.LogWarn(pkg.ComponentConn, "handshake: reading CONNECTION_REQUEST failed", "error", err)
		conn.Close()
		return
	}
	req, ok := pkt.(proto.SidebandPacket)
	if !ok || req.Type != proto.SidebandConnectionRequest {
		pkg.LogWarn(pkg.ComponentConn, "handshake: expected CONNECTION_REQUEST", "got", pkt)
		conn.Close()
		return
	}

	if !m.claim(req.Port) {
		pkg.LogWarn(pkg.ComponentConn, "handshake: rejecting connection", "port", req.Port)
		buf := proto.Encode(proto.NewConnectionReject())
		conn.Write(buf)
		conn.Close()
		return
	}

	buf := proto.Encode(proto.NewConnectionAccept())
	if _, err := conn.Write(buf); err != nil {
		pkg.LogWarn(pkg.ComponentConn, "handshake: sending CONNECTION_ACCEPT failed", "error", err)
		conn.Close()
		return
	}

	cxl := fifo.NewCxlConnection(m.queueCap)
	p := proc.New(conn, cxl, nil)
	pkg.LogInfo(pkg.ComponentConn, "connection accepted", "port", req.Port)
	if m.onConn != nil {
		m.onConn(req.Port, p)
	}

	go p.RunIncoming(ctx)
	go p.RunOutgoing(ctx)
}

// Addr returns the bound listener address, for tests and status reporting.
func (m *Manager) Addr() net.Addr {
	if m.listener == nil {
		return nil
	}
	return m.listener.Addr()
}
