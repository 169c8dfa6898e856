package fifo

import (
	"context"

	"github.com/cxlfabric/cxlswitch/proto"
)

// Queue is an ordered, single-class packet queue backed by a buffered
// channel. It holds at most its capacity: once full, Put blocks until a Get
// makes room or ctx is cancelled. Get blocks until data arrives or ctx is
// cancelled.
type Queue struct {
	items chan proto.Packet
}

// NewQueue returns a Queue buffered to capacity packets before Put starts
// applying backpressure. A capacity of 0 or less selects the default of
// 256; the queue is never unbounded. Callers size it to the class's expected
// depth (mailbox/cci traffic is low-rate, cxl.mem is not).
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 256
	}
	return &Queue{items: make(chan proto.Packet, capacity)}
}

// Put enqueues p, blocking only if the queue is at capacity.
func (q *Queue) Put(ctx context.Context, p proto.Packet) error {
	select {
	case q.items <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get dequeues the next packet, blocking until one is available or ctx is
// cancelled.
func (q *Queue) Get(ctx context.Context) (proto.Packet, error) {
	select {
	case p := <-q.items:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Class identifies which of a FifoPair's five packet streams a queue
// carries, §4.3.
type Class int

const (
	ClassCfg Class = iota
	ClassMMIO
	ClassCxlMem
	ClassCxlCache
	ClassCci
)

func (c Class) String() string {
	switch c {
	case ClassCfg:
		return "cfg"
	case ClassMMIO:
		return "mmio"
	case ClassCxlMem:
		return "cxl.mem"
	case ClassCxlCache:
		return "cxl.cache"
	case ClassCci:
		return "cci"
	default:
		return "unknown"
	}
}

// FifoPair is one direction-agnostic, per-class pair: host-to-target and
// target-to-host queues for the same packet class.
type FifoPair struct {
	Class Class
	Host  *Queue // host -> target
	Target *Queue // target -> host
}

// NewFifoPair allocates a FifoPair for class with both directions queued
// at capacity.
func NewFifoPair(class Class, capacity int) *FifoPair {
	return &FifoPair{Class: class, Host: NewQueue(capacity), Target: NewQueue(capacity)}
}

// CxlConnection bundles the five FifoPairs (§4.3) that together carry one
// switch connection's traffic: config space, MMIO, CXL.mem, CXL.cache,
// and CCI.
type CxlConnection struct {
	Cfg      *FifoPair
	MMIO     *FifoPair
	CxlMem   *FifoPair
	CxlCache *FifoPair
	Cci      *FifoPair
}

// NewCxlConnection allocates all five pairs for a newly-accepted
// connection.
func NewCxlConnection(capacity int) *CxlConnection {
	return &CxlConnection{
		Cfg:      NewFifoPair(ClassCfg, capacity),
		MMIO:     NewFifoPair(ClassMMIO, capacity),
		CxlMem:   NewFifoPair(ClassCxlMem, capacity),
		CxlCache: NewFifoPair(ClassCxlCache, capacity),
		Cci:      NewFifoPair(ClassCci, capacity),
	}
}

// Pairs returns all five pairs in a fixed order, for code that must act on
// every class uniformly (e.g. injecting a disconnect sentinel).
func (c *CxlConnection) Pairs() []*FifoPair {
	return []*FifoPair{c.Cfg, c.MMIO, c.CxlMem, c.CxlCache, c.Cci}
}
