// Command cxlswitch runs the CXL fabric switch emulator: it loads a
// topology file, builds every physical port and virtual CXL switch it
// describes, and serves switch connections and the management plane
// until interrupted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cxlfabric/cxlswitch/config"
	"github.com/cxlfabric/cxlswitch/pkg"
	"github.com/cxlfabric/cxlswitch/switchd"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var topologyPath string
	var listenAddr string
	var mgmtAddr string
	var metricsAddr string
	var logFormat string
	var debug bool

	cmd := &cobra.Command{
		Use:   "cxlswitch",
		Short: "Run a CXL fabric switch emulator",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				pkg.SetLogLevel(slog.LevelDebug)
			}
			if logFormat == "json" {
				pkg.SetLogFormat(pkg.LogFormatJSON)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(topologyPath)
			if err != nil {
				return fmt.Errorf("open topology: %w", err)
			}
			defer f.Close()

			top, err := config.Load(f)
			if err != nil {
				return err
			}
			if listenAddr != "" {
				top.ListenAddress = listenAddr
			}
			if mgmtAddr != "" {
				top.ManagementAddress = mgmtAddr
			}
			if metricsAddr != "" {
				top.MetricsAddress = metricsAddr
			}

			sw, err := switchd.New(top)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return sw.Run(ctx, top.ListenAddress, top.ManagementAddress, top.MetricsAddress)
		},
	}

	cmd.Flags().StringVar(&topologyPath, "topology", "", "path to the topology YAML file")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "switch connection listen address, overrides topology")
	cmd.Flags().StringVar(&mgmtAddr, "mgmt", "", "management plane listen address, overrides topology")
	cmd.Flags().StringVar(&metricsAddr, "metrics", "", "Prometheus /metrics listen address, overrides topology")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "log output format: text or json")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	cmd.MarkFlagRequired("topology")

	cmd.AddCommand(statusCmd())
	return cmd
}

func statusCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running switch's IdentifySwitchDevice/GetVirtualCxlSwitchInfo snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStatus(context.Background(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "management plane address to query")
	cmd.MarkFlagRequired("addr")
	return cmd
}
