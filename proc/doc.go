// Package proc implements the packet processor: the pair of cooperating
// loops that sit between a raw switch connection (a net.Conn) and a
// connection's fifo.CxlConnection queues, §4.4.
//
// The incoming loop decodes framed packets with proto.GetPacket and either
// routes them to the matching class queue or, for non-posted requests,
// resolves a pending transaction in the correlation table keyed by
// GetTransactionID. The outgoing loop drains the Cci class (or higher
// levels push directly via Send) and writes packets to the wire. When the
// connection drops, a CONNECTION_DISCONNECTED sideband sentinel is
// injected into every class pair's Target queue so blocked consumers of
// those queues unblock instead of
// hanging, rather than leaving half the system waiting forever.
//
// This generalizes the teacher's host/transfer.go request/response
// correlation (an atomic "completed" flag per in-flight Transfer) from one
// USB transfer at a time to a table of concurrently in-flight TLPs.
package proc
