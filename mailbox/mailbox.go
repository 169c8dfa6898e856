package mailbox

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cxlfabric/cxlswitch/devreg"
	"github.com/cxlfabric/cxlswitch/pkg"
)

// Handler executes one mailbox opcode against payload and returns the
// response payload and return code. RingDoorbell calls it synchronously on
// the caller's goroutine. A handler for a long-running operation starts its
// own goroutine, returns ReturnCodeBackgroundCommandStarted at once, and
// from that goroutine reports progress with SetProgress and posts the final
// result with CompleteBackground.
type Handler func(ctx context.Context, m *Mailbox, opcode uint16, payload []byte) ([]byte, pkg.ReturnCode)

// Mailbox is one device register block's command execution engine: a
// buffer laid out per devreg.MailboxLayout, a dispatch table from opcode
// to Handler, and the background-operation bookkeeping for handlers that
// report ReturnCodeBackgroundCommandStarted.
type Mailbox struct {
	buf      []byte
	handlers map[uint16]Handler

	mu         sync.Mutex
	background bool
	progress   uint8
}

// New allocates a Mailbox with a fresh register buffer.
func New() *Mailbox {
	return &Mailbox{buf: devreg.MailboxLayout.NewBuffer(), handlers: make(map[uint16]Handler)}
}

// Register installs h as the handler for opcode, overwriting any
// previous registration.
func (m *Mailbox) Register(opcode uint16, h Handler) {
	m.handlers[opcode] = h
}

// Buffer returns the mailbox's backing register buffer, for a component
// register block to embed at its mailbox capability offset.
func (m *Mailbox) Buffer() []byte { return m.buf }

// RingDoorbell writes opcode and payload into the mailbox's command
// register and payload area, as a host driver would via MMIO, then rings
// the doorbell. Returns pkg.ErrBackgroundBusy if a previous background
// operation has not yet completed.
func (m *Mailbox) RingDoorbell(ctx context.Context, opcode uint16, payload []byte) ([]byte, pkg.ReturnCode, error) {
	m.mu.Lock()
	if m.background {
		m.mu.Unlock()
		return nil, 0, pkg.ErrBackgroundBusy
	}
	m.mu.Unlock()

	if len(payload) > devreg.MailboxPayloadLen {
		return nil, 0, fmt.Errorf("%w: payload %d bytes exceeds mailbox capacity %d", pkg.ErrInvalidPayloadLength, len(payload), devreg.MailboxPayloadLen)
	}
	copy(m.buf[devreg.MailboxCapabilityLen:], payload)
	for i := len(payload); i < devreg.MailboxPayloadLen; i++ {
		m.buf[devreg.MailboxCapabilityLen+i] = 0
	}
	// Command register: opcode in bytes 0x04-0x05, doorbell at bit 0 of
	// byte 0x06. The doorbell clears once the result has been written.
	binary.LittleEndian.PutUint16(m.buf[0x04:0x06], opcode)
	m.buf[0x06] |= 0x01
	defer func() { m.buf[0x06] &^= 0x01 }()

	h, ok := m.handlers[opcode]
	if !ok {
		return nil, pkg.ReturnCodeUnsupported, fmt.Errorf("%w: opcode %#04x", pkg.ErrUnknownOpcode, opcode)
	}

	respPayload, rc := h(ctx, m, opcode, payload)
	if rc == pkg.ReturnCodeBackgroundCommandStarted {
		m.mu.Lock()
		m.background = true
		m.progress = 0
		m.mu.Unlock()
	}
	m.writeResponse(respPayload, rc)
	return respPayload, rc, nil
}

// SetProgress updates the background operation's percent-complete, for a
// handler running on its own goroutine after returning
// ReturnCodeBackgroundCommandStarted.
func (m *Mailbox) SetProgress(percent uint8) {
	m.mu.Lock()
	m.progress = percent
	m.mu.Unlock()
}

// CompleteBackground finalizes a background operation: writes the final
// payload and return code and clears the in-progress flag so a subsequent
// RingDoorbell is accepted.
func (m *Mailbox) CompleteBackground(payload []byte, rc pkg.ReturnCode) {
	m.mu.Lock()
	m.background = false
	m.progress = 100
	m.mu.Unlock()
	m.writeResponse(payload, rc)
}

// Progress returns the current background operation's percent-complete
// and whether one is in flight.
func (m *Mailbox) Progress() (percent uint8, inProgress bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progress, m.background
}

func (m *Mailbox) writeResponse(payload []byte, rc pkg.ReturnCode) {
	n := copy(m.buf[devreg.MailboxCapabilityLen:], payload)
	for i := n; i < devreg.MailboxPayloadLen; i++ {
		m.buf[devreg.MailboxCapabilityLen+i] = 0
	}
	binary.LittleEndian.PutUint16(m.buf[0x10:0x12], uint16(rc))
}
