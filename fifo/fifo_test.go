package fifo

import (
	"context"
	"testing"
	"time"

	"github.com/cxlfabric/cxlswitch/proto"
)

func TestQueue_PutGet(t *testing.T) {
	q := NewQueue(4)
	ctx := context.Background()
	want := proto.NewConnectionAccept()

	if err := q.Put(ctx, want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := q.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}

func TestQueue_GetBlocksUntilCancel(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Get(ctx)
	if err == nil {
		t.Fatal("Get() on empty queue with cancelled context = nil error, want error")
	}
}

func TestQueue_FIFOOrder(t *testing.T) {
	q := NewQueue(8)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := q.Put(ctx, proto.NewConnectionRequest(uint8(i))); err != nil {
			t.Fatalf("Put(%d) error = %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		got, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		sb := got.(proto.SidebandPacket)
		if sb.Port != uint8(i) {
			t.Errorf("Get() #%d port = %d, want %d", i, sb.Port, i)
		}
	}
}

func TestCxlConnection_Pairs(t *testing.T) {
	conn := NewCxlConnection(4)
	pairs := conn.Pairs()
	if len(pairs) != 5 {
		t.Fatalf("Pairs() len = %d, want 5", len(pairs))
	}
	wantClasses := []Class{ClassCfg, ClassMMIO, ClassCxlMem, ClassCxlCache, ClassCci}
	for i, p := range pairs {
		if p.Class != wantClasses[i] {
			t.Errorf("Pairs()[%d].Class = %v, want %v", i, p.Class, wantClasses[i])
		}
	}
}
