package proc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cxlfabric/cxlswitch/fifo"
	"github.com/cxlfabric/cxlswitch/pkg"
	"github.com/cxlfabric/cxlswitch/proto"
)

func newPipeProcessors(t *testing.T) (a, b *Processor) {
	t.Helper()
	c1, c2 := net.Pipe()
	a = New(c1, fifo.NewCxlConnection(8), nil)
	b = New(c2, fifo.NewCxlConnection(8), nil)
	return a, b
}

func TestProcessor_ConfigRequestRoutesToQueue(t *testing.T) {
	a, b := newPipeProcessors(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.RunIncoming(ctx)
	go b.RunIncoming(ctx)

	req := proto.NewConfigRead(0, 1, 0, 0x10, 0x0001, 5, 0)
	if err := b.Send(req); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	getCtx, getCancel := context.WithTimeout(context.Background(), time.Second)
	defer getCancel()
	got, err := a.cxl.Cfg.Target.Get(getCtx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	cfg, ok := got.(proto.CxlIoPacket)
	if !ok || cfg.Register != 0x10 {
		t.Fatalf("got %+v, want CxlIoPacket with Register=0x10", got)
	}
}

func TestProcessor_SendRequestResolvesOnCompletion(t *testing.T) {
	a, b := newPipeProcessors(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.RunIncoming(ctx)
	go b.RunIncoming(ctx)

	// b sends a memory read and waits for the completion a will send back
	// once it observes the request on its MMIO queue.
	go func() {
		getCtx, getCancel := context.WithTimeout(context.Background(), time.Second)
		defer getCancel()
		pkt, err := a.cxl.MMIO.Target.Get(getCtx)
		if err != nil {
			return
		}
		rd := pkt.(proto.CxlIoPacket)
		cpl := proto.NewCompletionData(0x0002, pkg.CompletionSuccess, []byte{1, 2, 3, 4}, rd.RequesterID, rd.Tag, 0)
		a.Send(cpl)
	}()

	req := proto.NewMemoryRead(0x1000, 1, 0x0001, 9, 0)
	respCtx, respCancel := context.WithTimeout(context.Background(), time.Second)
	defer respCancel()
	resp, err := b.SendRequest(respCtx, req, req.GetTransactionID())
	if err != nil {
		t.Fatalf("SendRequest() error = %v", err)
	}
	cpl, ok := resp.(proto.CxlIoPacket)
	if !ok || cpl.Kind != proto.CxlIoCompletion {
		t.Fatalf("resp = %+v, want a completion", resp)
	}
}

func TestProcessor_DisconnectInjectsSentinel(t *testing.T) {
	a, b := newPipeProcessors(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.RunIncoming(ctx)
	go b.RunIncoming(ctx)

	a.conn.Close()

	getCtx, getCancel := context.WithTimeout(context.Background(), time.Second)
	defer getCancel()
	got, err := b.cxl.Cci.Target.Get(getCtx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	sb, ok := got.(proto.SidebandPacket)
	if !ok || sb.Type != proto.SidebandConnectionDisconnected {
		t.Fatalf("got %+v, want CONNECTION_DISCONNECTED sentinel", got)
	}
}
