// Command cxlhost emulates the host side of a CXL fabric switch: it
// dials the switch's upstream port and issues configuration-space
// reads/writes and CCI fabric-management commands, printing whatever
// the switch answers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cxlfabric/cxlswitch/cci"
	"github.com/cxlfabric/cxlswitch/pkg"
	"github.com/cxlfabric/cxlswitch/proto"
	"github.com/cxlfabric/cxlswitch/switchconn"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var addr string
	var debug bool

	cmd := &cobra.Command{
		Use:   "cxlhost",
		Short: "Drive CXL.io and CCI traffic against a switch's upstream port",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				pkg.SetLogLevel(slog.LevelDebug)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", "", "switch connection address")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.MarkPersistentFlagRequired("addr")

	cmd.AddCommand(readConfigCmd(&addr), bindVppbCmd(&addr), unbindVppbCmd(&addr))
	return cmd
}

func dialHost(addr string) (context.Context, context.CancelFunc, *switchconn.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	return ctx, cancel, switchconn.NewClient()
}

func readConfigCmd(addr *string) *cobra.Command {
	var bus, device, function uint8
	var register uint16
	var length uint8

	cmd := &cobra.Command{
		Use:   "read-config",
		Short: "Read a configuration-space register through the upstream port",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, client := dialHost(*addr)
			defer cancel()

			proc, err := client.Dial(ctx, *addr, 0)
			if err != nil {
				return fmt.Errorf("cxlhost: dial %s: %w", *addr, err)
			}
			go proc.RunIncoming(ctx)
			go proc.RunOutgoing(ctx)

			req := proto.NewConfigRead(bus, device, function, register, 0x0001, 1, 0)
			req.LengthDW = uint16((length + 3) / 4)
			respCtx, respCancel := context.WithTimeout(ctx, 5*time.Second)
			defer respCancel()
			resp, err := proc.SendRequest(respCtx, req, req.GetTransactionID())
			if err != nil {
				return fmt.Errorf("cxlhost: read-config: %w", err)
			}
			cpl, ok := resp.(proto.CxlIoPacket)
			if !ok {
				return fmt.Errorf("cxlhost: unexpected response type %T", resp)
			}
			if cpl.Status != pkg.CompletionSuccess {
				return fmt.Errorf("cxlhost: read-config: completion status %s", cpl.Status)
			}
			fmt.Printf("%x\n", cpl.Data)
			return nil
		},
	}
	cmd.Flags().Uint8Var(&bus, "bus", 0, "PCI bus number")
	cmd.Flags().Uint8Var(&device, "device", 0, "PCI device number")
	cmd.Flags().Uint8Var(&function, "function", 0, "PCI function number")
	cmd.Flags().Uint16Var(&register, "register", 0, "config space register offset")
	cmd.Flags().Uint8Var(&length, "length", 4, "bytes to read, rounded up to a DWORD")
	return cmd
}

// cciRoundTrip sends req on proc and reads the correlated response
// directly off the connection's own CCI queue, since CCI traffic is
// never resolved through SendRequest's pending table.
func cciRoundTrip(ctx context.Context, p interface {
	Send(proto.Packet) error
}, cciTarget interface {
	Get(context.Context) (proto.Packet, error)
}, req proto.CciMessage) (proto.CciMessage, error) {
	if err := p.Send(req); err != nil {
		return proto.CciMessage{}, err
	}
	pkt, err := cciTarget.Get(ctx)
	if err != nil {
		return proto.CciMessage{}, err
	}
	resp, ok := pkt.(proto.CciMessage)
	if !ok {
		return proto.CciMessage{}, fmt.Errorf("cxlhost: unexpected CCI reply type %T", pkt)
	}
	return resp, nil
}

func bindVppbCmd(addr *string) *cobra.Command {
	var vcsID, vppbID, physicalPort, ldID uint8

	cmd := &cobra.Command{
		Use:   "bind-vppb",
		Short: "Bind a virtual PCI-to-PCI bridge to a physical downstream port",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, client := dialHost(*addr)
			defer cancel()

			proc, err := client.Dial(ctx, *addr, 0)
			if err != nil {
				return fmt.Errorf("cxlhost: dial %s: %w", *addr, err)
			}
			go proc.RunIncoming(ctx)
			go proc.RunOutgoing(ctx)

			payload := []byte{vcsID, vppbID, physicalPort, ldID}
			req := proto.NewCciCommand(uint16(cci.OpcodeBindVppb), 1, payload)
			resp, err := cciRoundTrip(ctx, proc, proc.CxlConnection().Cci.Target, req)
			if err != nil {
				return fmt.Errorf("cxlhost: bind-vppb: %w", err)
			}
			if resp.ReturnCode != pkg.ReturnCodeSuccess {
				return fmt.Errorf("cxlhost: bind-vppb: return code %s", resp.ReturnCode)
			}
			fmt.Println("ok")
			return nil
		},
	}
	cmd.Flags().Uint8Var(&vcsID, "vcs", 0, "virtual CXL switch id")
	cmd.Flags().Uint8Var(&vppbID, "vppb", 0, "vPPB index within the virtual switch")
	cmd.Flags().Uint8Var(&physicalPort, "physical-port", 0, "physical downstream port to bind")
	cmd.Flags().Uint8Var(&ldID, "ld-id", 0xFF, "logical device id, 0xFF for a single-logical-device port")
	cmd.MarkFlagRequired("physical-port")
	return cmd
}

func unbindVppbCmd(addr *string) *cobra.Command {
	var vcsID, vppbID uint8

	cmd := &cobra.Command{
		Use:   "unbind-vppb",
		Short: "Unbind a virtual PCI-to-PCI bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel, client := dialHost(*addr)
			defer cancel()

			proc, err := client.Dial(ctx, *addr, 0)
			if err != nil {
				return fmt.Errorf("cxlhost: dial %s: %w", *addr, err)
			}
			go proc.RunIncoming(ctx)
			go proc.RunOutgoing(ctx)

			req := proto.NewCciCommand(uint16(cci.OpcodeUnbindVppb), 1, []byte{vcsID, vppbID})
			resp, err := cciRoundTrip(ctx, proc, proc.CxlConnection().Cci.Target, req)
			if err != nil {
				return fmt.Errorf("cxlhost: unbind-vppb: %w", err)
			}
			if resp.ReturnCode != pkg.ReturnCodeSuccess {
				return fmt.Errorf("cxlhost: unbind-vppb: return code %s", resp.ReturnCode)
			}
			fmt.Println("ok")
			return nil
		},
	}
	cmd.Flags().Uint8Var(&vcsID, "vcs", 0, "virtual CXL switch id")
	cmd.Flags().Uint8Var(&vppbID, "vppb", 0, "vPPB index within the virtual switch")
	return cmd
}
