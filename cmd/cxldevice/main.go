// Command cxldevice emulates one CXL endpoint: it dials a switch's
// downstream port and answers the configuration-space and CXL.mem
// traffic the switch forwards to it, backed by an in-memory region
// sized by --memory-size.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cxlfabric/cxlswitch/pkg"
	"github.com/cxlfabric/cxlswitch/port"
	"github.com/cxlfabric/cxlswitch/proc"
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
	var portIndex uint8
	var vendorID, deviceID uint16
	var memSize uint64
	var debug bool

	cmd := &cobra.Command{
		Use:   "cxldevice",
		Short: "Emulate one CXL endpoint attached to a switch's downstream port",
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				pkg.SetLogLevel(slog.LevelDebug)
			}
			if memSize == 0 {
				return fmt.Errorf("--memory-size must be non-zero")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dev, err := port.NewDownstreamPortDevice(vendorID, deviceID)
			if err != nil {
				return fmt.Errorf("cxldevice: %w", err)
			}

			client := switchconn.NewClient()
			proc, err := client.Dial(ctx, addr, portIndex)
			if err != nil {
				return fmt.Errorf("cxldevice: dial %s port %d: %w", addr, portIndex, err)
			}
			pkg.LogInfo(pkg.ComponentConn, "device attached", "addr", addr, "port", portIndex)

			mem := make([]byte, memSize)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return proc.RunIncoming(gctx) })
			g.Go(func() error { return proc.RunOutgoing(gctx) })
			g.Go(func() error { return serveConfig(gctx, proc, dev) })
			g.Go(func() error { return serveMemory(gctx, proc, mem) })
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "switch connection address")
	cmd.Flags().Uint8Var(&portIndex, "port", 1, "downstream port index to claim")
	cmd.Flags().Uint16Var(&vendorID, "vendor-id", 0x1E98, "PCI vendor id to present")
	cmd.Flags().Uint16Var(&deviceID, "device-id", 0x0002, "PCI device id to present")
	cmd.Flags().Uint64Var(&memSize, "memory-size", 1<<20, "backing memory region size, bytes")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.MarkFlagRequired("addr")
	return cmd
}

// serveConfig answers every configuration-space request the switch
// forwards to this device's own register file until ctx is cancelled.
func serveConfig(ctx context.Context, p *proc.Processor, dev *port.PortDevice) error {
	cfg := p.CxlConnection().Cfg
	for {
		pkt, err := cfg.Target.Get(ctx)
		if err != nil {
			return err
		}
		req, ok := pkt.(proto.CxlIoPacket)
		if !ok {
			continue
		}
		var resp proto.CxlIoPacket
		if req.FmtType.IsWrite() {
			dev.WriteConfig(int(req.Register), req.Data)
			resp = proto.NewCompletion(0, pkg.CompletionSuccess, req.RequesterID, req.Tag, req.Prefix.LdID)
		} else {
			length := int(req.LengthDW) * 4
			if length == 0 {
				length = 4
			}
			data := dev.ReadConfig(int(req.Register), length)
			resp = proto.NewCompletionData(0, pkg.CompletionSuccess, data, req.RequesterID, req.Tag, req.Prefix.LdID)
		}
		if err := p.Send(resp); err != nil {
			return err
		}
	}
}

// serveMemory answers every CXL.mem request against mem, a flat byte
// region addressed modulo its own length so an out-of-range address
// wraps rather than panics.
func serveMemory(ctx context.Context, p *proc.Processor, mem []byte) error {
	cxlMem := p.CxlConnection().CxlMem
	for {
		pkt, err := cxlMem.Target.Get(ctx)
		if err != nil {
			return err
		}
		req, ok := pkt.(proto.CxlMemPacket)
		if !ok {
			continue
		}
		switch req.Class {
		case proto.MemClassM2SRwD:
			off := int(req.Address) % len(mem)
			copy(mem[off:], req.Data)
			if err := p.Send(proto.NewMemCompletion(req.Tag, req.CacheID)); err != nil {
				return err
			}
		case proto.MemClassM2SReq:
			off := int(req.Address) % len(mem)
			end := off + proto.CxlMemDataLen
			data := make([]byte, proto.CxlMemDataLen)
			if end <= len(mem) {
				copy(data, mem[off:end])
			} else {
				copy(data, mem[off:])
			}
			if err := p.Send(proto.NewMemCompletionData(data, req.Tag, req.CacheID)); err != nil {
				return err
			}
		}
	}
}
