// Package mailbox implements the CXL Mailbox: a doorbell-triggered command
// execution model where a caller writes an opcode and payload into the
// device-register mailbox block, sets the doorbell bit, and the mailbox
// invokes a registered handler, writing the return code and payload back
// before clearing the doorbell, §4.6.
//
// Handlers that cannot complete synchronously (long-running FM-API
// background operations) report a return code of
// pkg.ReturnCodeBackgroundCommandStarted; until the handler's goroutine
// posts the final result with CompleteBackground, the mailbox refuses new
// doorbells and reports the percent-complete the handler sets through
// Mailbox.Progress (the background-status register in the buffer is not
// updated), mirroring the teacher's RunnableComponent single-threaded
// suspension-point model (host/host.go) generalized to one background
// goroutine per mailbox rather than one dispatch loop per device.
package mailbox
