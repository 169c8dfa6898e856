package switchconn

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cxlfabric/cxlswitch/fifo"
	"github.com/cxlfabric/cxlswitch/pkg"
	"github.com/cxlfabric/cxlswitch/proc"
	"github.com/cxlfabric/cxlswitch/proto"
)

// Client dials a switch connection manager on behalf of a device or host
// endpoint, retrying with exponential backoff until the connection is
// accepted, rejected, or ctx is cancelled, §4.3.
type Client struct {
	initialBackoff time.Duration
	maxBackoff     time.Duration
	queueCap       int
}

// NewClient returns a Client with the default backoff schedule: 250ms
// initial, doubling, capped at 2 minutes so a device started before its
// switch eventually connects without hammering the listener.
func NewClient() *Client {
	return &Client{
		initialBackoff: 250 * time.Millisecond,
		maxBackoff:     120 * time.Second,
		queueCap:       256,
	}
}

// Dial connects to addr, claims port, and returns the resulting Processor
// once the switch accepts the connection. It retries dial failures with
// exponential backoff; a CONNECTION_REJECT from the switch is returned
// immediately as pkg.ErrPortOccupied without further retries, since
// retrying an occupied port is never going to succeed on its own.
func (c *Client) Dial(ctx context.Context, addr string, port uint8) (*proc.Processor, error) {
	backoff := c.initialBackoff
	for {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			pkg.LogWarn(pkg.ComponentConn, "dial failed, retrying", "addr", addr, "backoff", backoff, "error", err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
			if backoff > c.maxBackoff {
				backoff = c.maxBackoff
			}
			continue
		}

		p, err := c.handshake(conn, port)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

func (c *Client) handshake(conn net.Conn, port uint8) (*proc.Processor, error) {
	req := proto.Encode(proto.NewConnectionRequest(port))
	if _, err := conn.Write(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("switch connection client: sending CONNECTION_REQUEST: %w", err)
	}

	pkt, err := proto.GetPacket(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("switch connection client: reading handshake reply: %w", err)
	}
	reply, ok := pkt.(proto.SidebandPacket)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("%w: unexpected handshake reply %T", pkg.ErrUnexpectedClass, pkt)
	}
	switch reply.Type {
	case proto.SidebandConnectionReject:
		conn.Close()
		return nil, fmt.Errorf("port %d: %w", port, pkg.ErrPortOccupied)
	case proto.SidebandConnectionAccept:
		cxl := fifo.NewCxlConnection(c.queueCap)
		return proc.New(conn, cxl, nil), nil
	default:
		conn.Close()
		return nil, fmt.Errorf("%w: handshake reply type %s", pkg.ErrUnexpectedClass, reply.Type)
	}
}
