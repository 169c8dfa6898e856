// Package mgmt is the switch's out-of-band management plane: a JSON-RPC
// envelope fabric-manager tooling and CxlHost companion processes talk to
// register themselves and subscribe to event notifications, separate from
// the byte-exact CXL wire protocol carried by switchconn/proc.
//
// No websocket library sits anywhere in the dependency surface this module
// draws on, so the transport here is newline-delimited JSON-RPC over plain
// TCP rather than opencxl's websockets.serve — the envelope shape
// (method/params dispatch, a push-notification side channel) follows
// host_manager_conn.py; the transport follows switchconn.Manager's own
// net.Listener/errgroup accept loop.
package mgmt

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cxlfabric/cxlswitch/cci"
	"github.com/cxlfabric/cxlswitch/pkg"
)

// Request is one JSON-RPC call.
type Request struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response carries a method's result or error, keyed to the Request's ID.
type Response struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result any             `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Notification is an unsolicited event pushed to every subscribed
// connection, mirroring a cci.NotificationOpcode event but JSON-encoded
// for this side channel instead of the CCI wire format.
type Notification struct {
	Opcode  cci.NotificationOpcode `json:"opcode"`
	Payload json.RawMessage        `json:"payload,omitempty"`
}

// Handler answers one JSON-RPC method call.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Server is the management plane's JSON-RPC endpoint.
type Server struct {
	listener net.Listener

	mu       sync.RWMutex
	handlers map[string]Handler

	subMu       sync.Mutex
	subscribers map[uuid.UUID]chan Notification
}

// NewServer builds an unbound Server.
func NewServer() *Server {
	return &Server{
		handlers:    make(map[string]Handler),
		subscribers: make(map[uuid.UUID]chan Notification),
	}
}

// Handle registers a method handler. Re-registering a method replaces its
// handler.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// RegisterEventHandler subscribes ch to every future Broadcast and returns
// a handle for UnregisterEventHandler, matching host_manager_conn.py's
// listener-registration contract.
func (s *Server) RegisterEventHandler(ch chan Notification) uuid.UUID {
	id := uuid.New()
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers[id] = ch
	return id
}

// UnregisterEventHandler removes a subscriber. It is a no-op if id is
// unknown.
func (s *Server) UnregisterEventHandler(id uuid.UUID) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	delete(s.subscribers, id)
}

// Broadcast pushes a notification to every registered subscriber,
// dropping it for any subscriber whose channel is full rather than
// blocking the whole fabric on a slow listener.
func (s *Server) Broadcast(opcode cci.NotificationOpcode, payload []byte) {
	n := Notification{Opcode: opcode, Payload: payload}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subscribers {
		select {
		case ch <- n:
		default:
			pkg.LogWarn(pkg.ComponentMgmt, "dropping notification for slow subscriber", "subscriber", id)
		}
	}
}

// Bind opens the listening socket without accepting connections yet.
func (s *Server) Bind(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("management server: listen %s: %w", addr, err)
	}
	s.listener = ln
	return nil
}

// Listen binds addr and serves until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	if err := s.Bind(addr); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Addr returns the bound listener address, or nil if unbound.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections on an already-Bound listener until ctx is
// cancelled or the listener errors.
func (s *Server) Serve(ctx context.Context) error {
	ln := s.listener
	pkg.LogInfo(pkg.ComponentMgmt, "management server listening", "addr", ln.Addr())

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
				return fmt.Errorf("management server: accept: %w", err)
			}
			go s.handleConn(gctx, conn)
		}
	})
	return g.Wait()
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	id := s.RegisterEventHandler(make(chan Notification, 32))
	defer s.UnregisterEventHandler(id)
	s.subMu.Lock()
	events := s.subscribers[id]
	s.subMu.Unlock()

	enc := json.NewEncoder(conn)
	var encMu sync.Mutex
	writeLocked := func(v any) error {
		encMu.Lock()
		defer encMu.Unlock()
		return enc.Encode(v)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case n := <-events:
				if err := writeLocked(n); err != nil {
					return err
				}
			}
		}
	})
	g.Go(func() error {
		sc := bufio.NewScanner(conn)
		sc.Buffer(make([]byte, 4096), 1<<20)
		for sc.Scan() {
			var req Request
			if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
				writeLocked(Response{Error: fmt.Sprintf("malformed request: %v", err)})
				continue
			}
			s.dispatch(gctx, req, writeLocked)
		}
		return sc.Err()
	})
	if err := g.Wait(); err != nil {
		pkg.LogDebug(pkg.ComponentMgmt, "management connection closed", "error", err)
	}
}

func (s *Server) dispatch(ctx context.Context, req Request, write func(any) error) {
	s.mu.RLock()
	h, ok := s.handlers[req.Method]
	s.mu.RUnlock()
	if !ok {
		write(Response{ID: req.ID, Error: fmt.Sprintf("unknown method %q", req.Method)})
		return
	}
	result, err := h(ctx, req.Params)
	if err != nil {
		write(Response{ID: req.ID, Error: err.Error()})
		return
	}
	write(Response{ID: req.ID, Result: result})
}
