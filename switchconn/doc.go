// Package switchconn implements the switch's connection manager (the TCP
// accept loop that completes the sideband handshake and claims a physical
// port, §4.3, §3 S1/S4) and the connection client devices and hosts use to
// dial in, retrying with bounded exponential backoff on failure.
//
// Grounded on the teacher's device/hal/fifo connection-establishment
// pattern (poll for a device-{uuid} directory, then exchange setup
// messages) generalized from a filesystem rendezvous to a real TCP accept
// loop guarded by golang.org/x/sync/errgroup, the way aistore's transport
// layer supervises its listener goroutines.
package switchconn
