// Package proto implements the byte-exact, little-endian wire codec for
// every CXL protocol class carried over a switch connection: the common
// system header, the sideband handshake, CXL.io TLPs, CXL.mem and
// CXL.cache packets, and the CCI message used both natively and as a
// tunnel payload (§2, §3, §4.2, §6).
//
// Every constructor produces a fully-formed, self-describing value; every
// Marshal/Parse pair round-trips (§8 property 1): decoding the bytes
// produced by an encoder yields a structurally-equal value, and the
// encoded length always equals the decoded SystemHeader.PayloadLength.
//
// The coding style follows the teacher's MarshalTo/Parse pairs
// (device/descriptor.go, host/hal.SetupPacket) rather than routing packet
// fields through the declarative layout engine: packet shapes are fixed by
// the wire protocol, not configuration, so hand-written little-endian
// puts/gets read more directly than a generic field-list would.
package proto
