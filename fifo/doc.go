// Package fifo provides the in-process queue plumbing a switch connection
// is built from: one bounded, ordered queue per packet class, paired
// into a bidirectional FifoPair, and bundled five-wide (cfg, mmio,
// cxl.mem, cxl.cache, cci) into a CxlConnection, §4.3.
//
// The teacher's FIFO HAL (host/hal/fifo/fifo.go) used named pipes on disk
// because it bridged to a real USB device process; this fabric has no
// such boundary; two goroutines exchanging proto.Packet values over a Go
// channel is the direct generalization of the same "one ordered byte
// stream per logical connection" idea. The class split and the
// CONNECTION_DISCONNECTED sentinel come from the same packet-processor
// design that would otherwise need OS pipes per class.
package fifo
