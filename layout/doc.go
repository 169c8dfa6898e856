// Package layout implements the byte-layout engine that every register file
// in this module is built on (§4.1); wire packets are hand-encoded by the
// proto package and do not use it. A Layout describes a
// structure as an ordered list of [Field] values — bit ranges, byte ranges,
// nested sub-structures, and at most one trailing dynamic tail — each
// carrying an access [Attr]. The Layout precomputes, once, the bitmasks
// that govern what a write to the underlying buffer is allowed to change;
// reads (GetBits, GetBytesLE) are plain little-endian unpacks over the
// live buffer.
//
// This mirrors the teacher's per-type MarshalTo/Parse pairs
// (device/descriptor.go) generalized from one struct at a time into a
// declarative, reusable description so register files (§4.1/§6) share one
// implementation of attribute semantics.
package layout
