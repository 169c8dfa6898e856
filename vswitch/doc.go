// Package vswitch implements the Virtual Switch Manager, §4.8: one or
// more Virtual CXL Switches, each owning a fixed number of vPPBs that bind
// an upstream port's traffic to a downstream physical port (and, for a
// multi-logical-device target, a particular logical device).
//
// A VirtualSwitch holds no connection state of its own; bind/unbind only
// mutate the routing table that the upstream port's packet router
// consults. This mirrors the teacher's separation between device state
// (device/device.go) and the HAL that moves bytes.
package vswitch
