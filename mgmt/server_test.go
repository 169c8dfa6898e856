package mgmt

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/cxlfabric/cxlswitch/cci"
)

func startServer(t *testing.T) (*Server, context.CancelFunc) {
	t.Helper()
	s := NewServer()
	if err := s.Bind("127.0.0.1:0"); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go s.Serve(ctx)
	return s, cancel
}

func TestServer_HandleDispatchesMethod(t *testing.T) {
	s, cancel := startServer(t)
	defer cancel()
	s.Handle("host_init", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p struct {
			Port int `json:"port"`
		}
		json.Unmarshal(params, &p)
		return map[string]int{"port": p.Port}, nil
	})

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	conn.Write([]byte(`{"id":"1","method":"host_init","params":{"port":7}}` + "\n"))
	conn.SetReadDeadline(time.Now().Add(time.Second))
	sc := bufio.NewScanner(conn)
	if !sc.Scan() {
		t.Fatalf("no response read: %v", sc.Err())
	}
	var resp Response
	if err := json.Unmarshal(sc.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != "" {
		t.Fatalf("resp.Error = %q, want empty", resp.Error)
	}
}

func TestServer_UnknownMethodReturnsError(t *testing.T) {
	s, cancel := startServer(t)
	defer cancel()

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	conn.Write([]byte(`{"id":"1","method":"nonexistent"}` + "\n"))
	conn.SetReadDeadline(time.Now().Add(time.Second))
	sc := bufio.NewScanner(conn)
	if !sc.Scan() {
		t.Fatalf("no response read: %v", sc.Err())
	}
	var resp Response
	json.Unmarshal(sc.Bytes(), &resp)
	if resp.Error == "" {
		t.Fatalf("resp.Error = empty, want an unknown-method error")
	}
}

func TestServer_BroadcastReachesSubscriber(t *testing.T) {
	s, cancel := startServer(t)
	defer cancel()

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	// Give handleConn a moment to register the subscriber before broadcasting.
	time.Sleep(20 * time.Millisecond)
	s.Broadcast(cci.NotificationVppbBindStateChange, []byte(`{"vppb_id":2}`))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	sc := bufio.NewScanner(conn)
	if !sc.Scan() {
		t.Fatalf("no notification read: %v", sc.Err())
	}
	var n Notification
	if err := json.Unmarshal(sc.Bytes(), &n); err != nil {
		t.Fatalf("unmarshal notification: %v", err)
	}
	if n.Opcode != cci.NotificationVppbBindStateChange {
		t.Errorf("n.Opcode = %v, want NotificationVppbBindStateChange", n.Opcode)
	}
}

func TestRegisterUnregisterEventHandler(t *testing.T) {
	s := NewServer()
	ch := make(chan Notification, 1)
	id := s.RegisterEventHandler(ch)
	s.Broadcast(cci.NotificationPhysicalPortStateChange, nil)
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("broadcast not received before unregister")
	}

	s.UnregisterEventHandler(id)
	s.Broadcast(cci.NotificationPhysicalPortStateChange, nil)
	select {
	case <-ch:
		t.Fatalf("received broadcast after unregister")
	case <-time.After(50 * time.Millisecond):
	}
}
