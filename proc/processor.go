package proc

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/cxlfabric/cxlswitch/fifo"
	"github.com/cxlfabric/cxlswitch/pkg"
	"github.com/cxlfabric/cxlswitch/proto"
)

// pending is one in-flight non-posted request awaiting its completion,
// generalizing the teacher's per-Transfer completion signal
// (host/transfer.go) into one entry of a correlation table keyed by
// transaction ID.
type pending struct {
	done chan proto.Packet
}

// Processor owns one switch connection's wire I/O: it decodes incoming
// packets and both routes posted traffic to fifo.CxlConnection queues and
// resolves non-posted requests against a transaction-ID correlation
// table, and it serializes outgoing packets (pushed via Send or drained
// from the Cci queue) onto the wire.
type Processor struct {
	conn net.Conn
	cxl  *fifo.CxlConnection

	mu      sync.Mutex
	table   map[uint32]*pending
	closed  bool
	onClose func()
}

// New builds a Processor for an already-accepted or already-dialed
// connection. onClose, if non-nil, runs once when the connection is torn
// down (by either loop), after the disconnect sentinel has been injected.
func New(conn net.Conn, cxl *fifo.CxlConnection, onClose func()) *Processor {
	return &Processor{
		conn:    conn,
		cxl:     cxl,
		table:   make(map[uint32]*pending),
		onClose: onClose,
	}
}

// CxlConnection returns the fifo queues this processor routes traffic
// through, for callers (the physical port manager, the CCI executor)
// that need to consume or produce class traffic directly.
func (p *Processor) CxlConnection() *fifo.CxlConnection { return p.cxl }

// transactionID is implemented by every packet kind that participates in
// request/completion correlation.
type transactionID interface {
	GetTransactionID() uint32
}

// RunIncoming decodes packets off the wire until ctx is cancelled or the
// connection errors, routing each to its class queue or resolving a
// pending correlation table entry. It always returns with the connection
// torn down and the disconnect sentinel injected.
func (p *Processor) RunIncoming(ctx context.Context) error {
	defer p.teardown()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		pkt, err := proto.GetPacket(p.conn)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("packet processor: decode: %w", err)
		}
		if err := p.route(ctx, pkt); err != nil {
			pkg.LogWarn(pkg.ComponentProc, "dropping undeliverable packet", "error", err)
		}
	}
}

func (p *Processor) route(ctx context.Context, pkt proto.Packet) error {
	switch v := pkt.(type) {
	case proto.SidebandPacket:
		if v.Type == proto.SidebandConnectionDisconnected {
			return p.teardown()
		}
		return p.resolveOrQueue(ctx, v, p.cxl.Cci)
	case proto.CxlIoPacket:
		if v.Kind == proto.CxlIoCompletion {
			if p.resolve(v.GetTransactionID(), v) {
				return nil
			}
		}
		if v.Kind == proto.CxlIoConfigRequest {
			return p.cxl.Cfg.Target.Put(ctx, v)
		}
		return p.cxl.MMIO.Target.Put(ctx, v)
	case proto.CxlMemPacket:
		if v.Class == proto.MemClassS2MNDR || v.Class == proto.MemClassS2MDRS {
			if p.resolve(v.GetTransactionID(), v) {
				return nil
			}
		}
		return p.cxl.CxlMem.Target.Put(ctx, v)
	case proto.CxlCachePacket:
		if v.Class == proto.CacheClassH2DResp || v.Class == proto.CacheClassH2DData {
			if p.resolve(v.GetTransactionID(), v) {
				return nil
			}
		}
		return p.cxl.CxlCache.Target.Put(ctx, v)
	case proto.CciMessage:
		return p.cxl.Cci.Target.Put(ctx, v)
	default:
		return fmt.Errorf("%w: unrecognized decoded type %T", pkg.ErrUnsupportedPacket, pkt)
	}
}

func (p *Processor) resolveOrQueue(ctx context.Context, pkt proto.Packet, pair *fifo.FifoPair) error {
	return pair.Target.Put(ctx, pkt)
}

func (p *Processor) resolve(id uint32, pkt proto.Packet) bool {
	p.mu.Lock()
	entry, ok := p.table[id]
	if ok {
		delete(p.table, id)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	entry.done <- pkt
	return true
}

// SendRequest writes a non-posted request and blocks until its completion
// arrives, the connection drops, or ctx is cancelled.
func (p *Processor) SendRequest(ctx context.Context, req proto.Packet, id uint32) (proto.Packet, error) {
	entry := &pending{done: make(chan proto.Packet, 1)}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, pkg.ErrDisconnected
	}
	p.table[id] = entry
	p.mu.Unlock()

	if err := p.Send(req); err != nil {
		p.mu.Lock()
		delete(p.table, id)
		p.mu.Unlock()
		return nil, err
	}

	select {
	case resp, ok := <-entry.done:
		if !ok {
			return nil, pkg.ErrDisconnected
		}
		return resp, nil
	case <-ctx.Done():
		p.mu.Lock()
		delete(p.table, id)
		p.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Send writes a packet to the wire without waiting for any reply.
func (p *Processor) Send(pkt proto.Packet) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return pkg.ErrDisconnected
	}
	buf := proto.Encode(pkt)
	_, err := p.conn.Write(buf)
	return err
}

// RunOutgoing drains the connection's Cci target-bound queue onto the
// wire until ctx is cancelled or the connection drops. Other classes are
// written directly via Send by the component that produces them (the HDM
// decoder path, the mailbox, etc.) rather than funneled through one
// outgoing queue, since their producers already run on their own
// goroutine per §4.5's RunnableComponent model.
func (p *Processor) RunOutgoing(ctx context.Context) error {
	defer p.teardown()
	for {
		pkt, err := p.cxl.Cci.Host.Get(ctx)
		if err != nil {
			return err
		}
		if err := p.Send(pkt); err != nil {
			return err
		}
	}
}

// teardown closes the connection once, injects CONNECTION_DISCONNECTED
// into every class pair's Target queue so blocked Get callers on those
// queues unblock, and fails every
// outstanding correlation-table entry.
func (p *Processor) teardown() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	table := p.table
	p.table = make(map[uint32]*pending)
	p.mu.Unlock()

	_ = p.conn.Close()
	sentinel := proto.NewConnectionDisconnected()
	bg := context.Background()
	for _, pair := range p.cxl.Pairs() {
		_ = pair.Target.Put(bg, sentinel)
	}
	for _, entry := range table {
		close(entry.done)
	}
	if p.onClose != nil {
		p.onClose()
	}
	return nil
}
