package switchd

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cxlfabric/cxlswitch/cci"
	"github.com/cxlfabric/cxlswitch/config"
	"github.com/cxlfabric/cxlswitch/pkg"
	"github.com/cxlfabric/cxlswitch/proto"
	"github.com/cxlfabric/cxlswitch/switchconn"
)

const testTopology = `
listen_address: "127.0.0.1:0"
ports:
  - index: 0
    type: upstream
    vendor_id: 0x1E98
    device_id: 0x0001
  - index: 1
    type: downstream
    vendor_id: 0x1E98
    device_id: 0x0002
virtual_switches:
  - id: 0
    vppb_count: 2
    upstream_port: 0
`

func newTestSwitch(t *testing.T) *Switch {
	t.Helper()
	top, err := config.Load(strings.NewReader(testTopology))
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	sw, err := New(top)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := sw.Conn.Bind("127.0.0.1:0"); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	return sw
}

// TestSwitch_HostReadsBus0ConfigSpace exercises the S1-style BAR-probing
// path: a host dials the upstream port and reads its own config space
// directly off the switch's local answer path, with no downstream
// forwarding involved.
func TestSwitch_HostReadsBus0ConfigSpace(t *testing.T) {
	sw := newTestSwitch(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sw.Conn.Serve(ctx)

	client := switchconn.NewClient()
	hostProc, err := client.Dial(ctx, sw.Conn.Addr().String(), 0)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	go hostProc.RunIncoming(ctx)
	go hostProc.RunOutgoing(ctx)

	req := proto.NewConfigRead(0, 0, 0, 0x00, 0x0001, 5, 0)
	respCtx, respCancel := context.WithTimeout(ctx, 2*time.Second)
	defer respCancel()
	resp, err := hostProc.SendRequest(respCtx, req, req.GetTransactionID())
	if err != nil {
		t.Fatalf("SendRequest() error = %v", err)
	}
	cpl, ok := resp.(proto.CxlIoPacket)
	if !ok || len(cpl.Data) < 2 || cpl.Data[0] != 0x98 || cpl.Data[1] != 0x1E {
		t.Fatalf("resp = %+v, want vendor id 0x1E98", resp)
	}
}

// TestSwitch_BindVppbOverCci drives BindVppb through the real CCI
// executor wiring, over a real TCP connection, end to end.
func TestSwitch_BindVppbOverCci(t *testing.T) {
	sw := newTestSwitch(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sw.Conn.Serve(ctx)

	client := switchconn.NewClient()
	hostProc, err := client.Dial(ctx, sw.Conn.Addr().String(), 0)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	go hostProc.RunIncoming(ctx)
	go hostProc.RunOutgoing(ctx)

	bind := cci.BindVppbRequest{VCSID: 0, VppbID: 0, PhysicalPort: 1, LdID: 0xFF}
	payload := []byte{bind.VCSID, bind.VppbID, bind.PhysicalPort, bind.LdID}
	req := proto.NewCciCommand(uint16(cci.OpcodeBindVppb), 1, payload)

	// CCI traffic is not correlated through SendRequest's pending table
	// (proc.Processor.route always queues CciMessage onto Cci.Target);
	// the response is read directly off the host's own Cci queue.
	if err := hostProc.Send(req); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	getCtx, getCancel := context.WithTimeout(ctx, 2*time.Second)
	defer getCancel()
	pkt, err := hostProc.CxlConnection().Cci.Target.Get(getCtx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	cciResp, ok := pkt.(proto.CciMessage)
	if !ok || cciResp.ReturnCode != pkg.ReturnCodeSuccess {
		t.Fatalf("resp = %+v, want Success", pkt)
	}

	vs, err := sw.VSwitch.Switch(0)
	if err != nil {
		t.Fatalf("Switch(0) error = %v", err)
	}
	route, ok := vs.RouteByVppb(0)
	if !ok || route.PhysicalPort != 1 {
		t.Fatalf("route = %+v, ok=%v, want physical port 1", route, ok)
	}
}
