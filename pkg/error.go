package pkg

import "errors"

// Fabric errors, grouped by taxonomy (decode / protocol / validation /
// timeout / transport / internal).
var (
	// ErrUnsupportedPacket indicates a packet with an unrecognized
	// payload_type or msg_class on the wire.
	ErrUnsupportedPacket = errors.New("unsupported packet")

	// ErrShortPacket indicates fewer bytes were read than payload_length
	// declared.
	ErrShortPacket = errors.New("short packet")

	// ErrInvalidLayout indicates a byte-layout structure description
	// failed validation (non-contiguous fields, more than one dynamic
	// field, a dynamic field not placed last, ...).
	ErrInvalidLayout = errors.New("invalid layout")

	// ErrDuplicateTransactionID indicates a second TLP was issued with a
	// (requester_id, tag) pair that already has one in flight.
	ErrDuplicateTransactionID = errors.New("duplicate transaction id")

	// ErrUnexpectedClass indicates a packet arrived for a class the
	// connection has no FIFO-pair for.
	ErrUnexpectedClass = errors.New("unexpected packet class")

	// ErrReadOnlyRegister indicates a write landed on a read-only or
	// reserved bit range.
	ErrReadOnlyRegister = errors.New("register is read-only")

	// ErrInvalidPortIndex indicates a port index outside [0, N).
	ErrInvalidPortIndex = errors.New("invalid port index")

	// ErrPortOccupied indicates a connection attempt to a port that
	// already has an active connection.
	ErrPortOccupied = errors.New("port already connected")

	// ErrInvalidDecoderCount indicates an HDM decoder-count register
	// value outside the {0..8, 9..12} encoding.
	ErrInvalidDecoderCount = errors.New("invalid decoder count")

	// ErrMisalignedAddress indicates an address that violates a
	// required alignment (64-byte CXL.mem line address, 256 MiB HDM
	// base/size, ...).
	ErrMisalignedAddress = errors.New("misaligned address")

	// ErrTimeout indicates a bounded wait elapsed without completion.
	ErrTimeout = errors.New("timeout")

	// ErrDisconnected indicates the underlying transport is gone.
	ErrDisconnected = errors.New("connection disconnected")

	// ErrNotRunning indicates an operation was attempted on a component
	// that has not reached the RUNNING lifecycle state.
	ErrNotRunning = errors.New("component not running")

	// ErrAlreadyRunning indicates run() was invoked twice.
	ErrAlreadyRunning = errors.New("component already running")

	// ErrNotReady indicates stop() was invoked before wait_for_ready
	// reported readiness.
	ErrNotReady = errors.New("component not ready")

	// ErrInvalidBinding indicates a vPPB bind/unbind precondition failed
	// (already bound, wrong state, port not a DSP, ld_id not allocated).
	ErrInvalidBinding = errors.New("invalid vppb binding")

	// ErrUnknownVCS indicates a virtual CXL switch id with no matching
	// Virtual Switch.
	ErrUnknownVCS = errors.New("unknown virtual cxl switch")

	// ErrUnknownOpcode indicates no handler is registered for a
	// mailbox or CCI command opcode.
	ErrUnknownOpcode = errors.New("unknown command opcode")

	// ErrInvalidPayloadLength indicates command.payload_length exceeds
	// the mailbox payload size.
	ErrInvalidPayloadLength = errors.New("invalid payload length")

	// ErrBackgroundBusy indicates a doorbell ring while a background
	// command is already in progress.
	ErrBackgroundBusy = errors.New("background command in progress")
)

// ReturnCode is the CCI/mailbox command completion status (§3, §4.6/4.7).
type ReturnCode uint16

// Return code values. The numeric encoding follows the CXL fabric-manager
// command response convention; SUCCESS is always zero.
const (
	ReturnCodeSuccess ReturnCode = iota
	ReturnCodeBackgroundCommandStarted
	ReturnCodeInvalidInput
	ReturnCodeUnsupported
	ReturnCodeInternalError
	ReturnCodeBusy
	ReturnCodeInvalidPayloadLength
	ReturnCodeInvalidHandle
	ReturnCodeMediaDisabled
)

// String returns a human-readable return-code name.
func (c ReturnCode) String() string {
	switch c {
	case ReturnCodeSuccess:
		return "success"
	case ReturnCodeBackgroundCommandStarted:
		return "background_command_started"
	case ReturnCodeInvalidInput:
		return "invalid_input"
	case ReturnCodeUnsupported:
		return "unsupported"
	case ReturnCodeInternalError:
		return "internal_error"
	case ReturnCodeBusy:
		return "busy"
	case ReturnCodeInvalidPayloadLength:
		return "invalid_payload_length"
	case ReturnCodeInvalidHandle:
		return "invalid_handle"
	case ReturnCodeMediaDisabled:
		return "media_disabled"
	default:
		return "unknown"
	}
}

// CompletionStatus is the CXL.io completion status field (§6).
type CompletionStatus uint8

// Completion status values.
const (
	CompletionSuccess            CompletionStatus = 0x0
	CompletionUnsupportedRequest CompletionStatus = 0x1
	CompletionConfigRequestRetry CompletionStatus = 0x2
	CompletionAbort              CompletionStatus = 0x4
)

// String returns a human-readable completion-status name.
func (s CompletionStatus) String() string {
	switch s {
	case CompletionSuccess:
		return "SC"
	case CompletionUnsupportedRequest:
		return "UR"
	case CompletionConfigRequestRetry:
		return "RRS"
	case CompletionAbort:
		return "CA"
	default:
		return "unknown"
	}
}
