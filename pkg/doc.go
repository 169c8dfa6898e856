// Package pkg provides shared utilities for the CXL fabric emulator.
//
// This package contains common functionality used across the switch,
// port, and fabric-management packages, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types grouped by the fabric's error taxonomy
//   - Component identifiers for log filtering
//   - CCI/mailbox return codes
//
// # Logging
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentSwitch, "vppb bound", "vcs", 0, "vppb", 1)
//
// # Errors
//
//	if errors.Is(err, pkg.ErrDuplicateTransactionID) {
//	    // Close the connection.
//	}
package pkg
