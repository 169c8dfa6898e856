// Package devreg implements the CXL Device Registers a downstream-facing
// endpoint (or the switch's emulated view of one) exposes: the capability
// array header that advertises which of the device, memory-device, and
// mailbox register blocks are present, and the blocks themselves, §6.
//
// The mailbox register block's doorbell/command/payload fields are what
// the mailbox package polls and drives; everything else here is read
// mostly, built the same way as compreg's register files on top of
// layout.
package devreg
