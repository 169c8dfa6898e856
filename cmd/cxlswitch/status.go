package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"gopkg.in/yaml.v3"
)

// rpcRequest/rpcResponse mirror mgmt.Request/mgmt.Response's wire shape.
// status does not import mgmt directly so it exercises the same envelope
// a standalone fabric-manager tool would, over a plain net.Conn.
type rpcRequest struct {
	ID     int             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func printStatus(ctx context.Context, addr string) error {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	conn, err := (&net.Dialer{}).DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("status: dial %s: %w", addr, err)
	}
	defer conn.Close()

	enc := json.NewEncoder(conn)
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 4096), 1<<20)

	call := func(id int, method string, params any) (json.RawMessage, error) {
		var raw json.RawMessage
		if params != nil {
			p, err := json.Marshal(params)
			if err != nil {
				return nil, err
			}
			raw = p
		}
		if err := enc.Encode(rpcRequest{ID: id, Method: method, Params: raw}); err != nil {
			return nil, fmt.Errorf("status: send %s: %w", method, err)
		}
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, fmt.Errorf("status: read %s response: %w", method, err)
			}
			return nil, fmt.Errorf("status: connection closed before %s responded", method)
		}
		var resp rpcResponse
		if err := json.Unmarshal(sc.Bytes(), &resp); err != nil {
			return nil, fmt.Errorf("status: decode %s response: %w", method, err)
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("status: %s: %s", method, resp.Error)
		}
		return resp.Result, nil
	}

	identifyRaw, err := call(1, "identify", nil)
	if err != nil {
		return err
	}
	var identify struct {
		NumPhysicalPorts uint8  `json:"NumPhysicalPorts"`
		NumVCSs          uint8  `json:"NumVCSs"`
		NumTotalVppb     uint8  `json:"NumTotalVppb"`
		NumActiveVppb    uint8  `json:"NumActiveVppb"`
		ActivePortMask   uint32 `json:"ActivePortMask"`
	}
	if err := json.Unmarshal(identifyRaw, &identify); err != nil {
		return fmt.Errorf("status: unmarshal identify: %w", err)
	}

	snapshot := struct {
		Identify        any   `yaml:"identify"`
		VirtualSwitches []any `yaml:"virtual_switches"`
	}{Identify: identify}

	for vcsID := uint8(0); vcsID < identify.NumVCSs; vcsID++ {
		vcsRaw, err := call(int(vcsID)+2, "vcs_info", struct {
			VCSID uint8 `json:"vcs_id"`
		}{VCSID: vcsID})
		if err != nil {
			return err
		}
		var vcs struct {
			VCSID      uint8   `json:"VCSID"`
			VppbCount  uint8   `json:"VppbCount"`
			BoundPorts []uint8 `json:"BoundPorts"`
		}
		if err := json.Unmarshal(vcsRaw, &vcs); err != nil {
			return fmt.Errorf("status: unmarshal vcs_info %d: %w", vcsID, err)
		}
		snapshot.VirtualSwitches = append(snapshot.VirtualSwitches, vcs)
	}

	out, err := yaml.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("status: marshal snapshot: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
