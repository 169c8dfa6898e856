// Package hdm implements the Host-managed Device Memory decoder managers:
// the device variant, which translates a host physical address into a
// device physical address via the IG/IW bit-range algorithm, and the
// switch variant, which translates a host physical address into a target
// downstream port by modular index, §4.5.
//
// Ported directly from original_source's device and switch HDM decoder
// get_dpa/get_target methods (opencxl/cxl/component/hdm_decoder.py),
// Go-idiomized: bit-range extraction becomes explicit shift/mask helpers
// instead of Python slice-based bit manipulation, and decoder state lives
// in a small struct per slot rather than being read back out of the
// register file on every translation.
package hdm
