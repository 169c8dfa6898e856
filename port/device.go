package port

import (
	"fmt"

	"github.com/cxlfabric/cxlswitch/compreg"
	"github.com/cxlfabric/cxlswitch/hdm"
	"github.com/cxlfabric/cxlswitch/pcicfg"
	"github.com/cxlfabric/cxlswitch/pkg"
)

// decoderCount is the number of HDM decoder slots every port device
// implements; 2 is enough to exercise interleaving across a handful of
// downstream ports without padding the register block to its max size.
const decoderCount = 2

// PortDevice is one physical port's register model: PCIe configuration
// space, the RAS/Link/HDM component-register blocks, and (USP only) the
// switch HDM decoders the router consults for CXL.mem target resolution,
// §3 Port Device / §6.
type PortDevice struct {
	Type   Type
	Config *pcicfg.ConfigSpace
	config []byte

	ras  []byte
	link []byte

	hdmCap *compreg.HdmDecoderCapability
	hdm    []byte
}

// newPortDevice builds the register file common to both port kinds.
func newPortDevice(t Type, vendorID, deviceID uint16) (*PortDevice, error) {
	headerType := pcicfg.HeaderTypeEndpoint
	if t == Upstream {
		headerType = pcicfg.HeaderTypeBridge
	}
	bars := [6]pcicfg.BarSize{{Size: 1 << 16}} // BAR0: 64 KiB component-register aperture
	cfg := pcicfg.NewConfigSpace(headerType, vendorID, deviceID, 0x050210 /* CXL mem controller */, bars)

	hdmCap, err := compreg.NewHdmDecoderCapability(decoderCount)
	if err != nil {
		return nil, fmt.Errorf("port device: %w", err)
	}

	return &PortDevice{
		Type:   t,
		Config: cfg,
		config: cfg.NewBuffer(),
		ras:    compreg.RasCapabilityLayout.NewBuffer(),
		link:   compreg.LinkCapabilityLayout.NewBuffer(),
		hdmCap: hdmCap,
		hdm:    hdmCap.NewBuffer(),
	}, nil
}

// NewUpstreamPortDevice builds a type-1 (bridge) port device for a
// host-facing upstream port.
func NewUpstreamPortDevice(vendorID, deviceID uint16) (*PortDevice, error) {
	return newPortDevice(Upstream, vendorID, deviceID)
}

// NewDownstreamPortDevice builds a type-0 (endpoint) port device for a
// device-facing downstream port.
func NewDownstreamPortDevice(vendorID, deviceID uint16) (*PortDevice, error) {
	return newPortDevice(Downstream, vendorID, deviceID)
}

// ReadConfig returns a copy of length bytes of configuration space
// starting at offset. Out-of-range reads are clamped, matching an
// unimplemented/reserved region reading as zero.
func (d *PortDevice) ReadConfig(offset, length int) []byte {
	out := make([]byte, length)
	if offset >= len(d.config) {
		return out
	}
	end := offset + length
	if end > len(d.config) {
		end = len(d.config)
	}
	copy(out, d.config[offset:end])
	return out
}

// WriteConfig applies a masked write to configuration space at offset.
func (d *PortDevice) WriteConfig(offset int, data []byte) {
	d.Config.Write(d.config, offset, data)
}

// DecoderCount returns the number of HDM decoder slots this device
// implements.
func (d *PortDevice) DecoderCount() int { return d.hdmCap.Count }

// ReadHdmSlot returns decoder i's raw 32-byte register slot.
func (d *PortDevice) ReadHdmSlot(i int) []byte {
	start, end := d.hdmCap.Slot(i)
	return d.hdm[start:end]
}

// WriteHdmSlot applies a software write to decoder i's slot, then runs the
// commit side effect if the write set the commit bit, §4.5 "On each
// commit, the mailbox/control register writes the committed and
// error-not-committed status bits atomically, then clears commit."
func (d *PortDevice) WriteHdmSlot(i int, offset int, data []byte) {
	d.hdmCap.WriteSlot(d.hdm, i, offset, data)
	start, end := d.hdmCap.Slot(i)
	applyCommit(d.hdm[start:end])
}

// commitCtrlByte is the slot-relative byte holding lock_on_commit, commit,
// committed and error_not_committed (control DWORD byte 1 of 4, since
// those four bits sit at absolute bits 8-11 of the 0x10-based control
// word: see compreg.HdmDecoderSlotLayout).
const commitCtrlByte = 0x11

const (
	bitCommit            = 1 << 1
	bitCommitted         = 1 << 2
	bitErrorNotCommitted = 1 << 3
)

// applyCommit performs the hardware-side effect of a 0->1 commit bit
// transition: sets committed, clears commit and error_not_committed. This
// writes the slot buffer directly because "committed" is RO to software
// writes (compreg.HdmDecoderSlotLayout); only the emulated hardware sets
// it.
func applyCommit(slot []byte) {
	if slot[commitCtrlByte]&bitCommit == 0 {
		return
	}
	slot[commitCtrlByte] = (slot[commitCtrlByte] &^ (bitCommit | bitErrorNotCommitted)) | bitCommitted
}

// SwitchDecoders returns every committed switch-type HDM decoder slot,
// loaded fresh off the register buffer, for a router's CXL.mem target
// resolution. Uncommitted slots are omitted.
func (d *PortDevice) SwitchDecoders() []hdm.SwitchDecoder {
	var out []hdm.SwitchDecoder
	for i := 0; i < d.DecoderCount(); i++ {
		dec := hdm.LoadSwitchDecoder(d.hdmCap, d.hdm, i)
		if dec.Committed {
			out = append(out, dec)
		}
	}
	return out
}

// CommitSwitchDecoder programs and commits decoder slot i as a switch
// decoder routing an HPA window to targets (one downstream port index per
// interleave way), §4.5. It is the Virtual Switch Manager's (or a test
// harness's) entry point for standing up routing without going through
// the byte-exact register write path, mirroring how bind-time programming
// is described as an effect of BindVppb rather than a raw register poke.
func (d *PortDevice) CommitSwitchDecoder(slot int, base, size uint64, ig, iw uint8, targets []uint8) error {
	if slot >= d.DecoderCount() {
		return fmt.Errorf("%w: slot %d exceeds %d decoders", pkg.ErrInvalidPortIndex, slot, d.DecoderCount())
	}
	if len(targets) > 8 {
		return fmt.Errorf("%w: %d targets exceeds 8 interleave ways", pkg.ErrInvalidBinding, len(targets))
	}
	start, end := d.hdmCap.Slot(slot)
	s := d.hdm[start:end]

	putLE32(s[0x00:0x04], uint32(base))
	putLE32(s[0x04:0x08], uint32(base>>32))
	putLE32(s[0x08:0x0C], uint32(size))
	putLE32(s[0x0C:0x10], uint32(size>>32))
	s[0x10] = (ig & 0x0F) | (iw&0x0F)<<4
	for i, t := range targets {
		s[0x14+i] = t
	}
	s[commitCtrlByte] |= bitCommit
	applyCommit(s)
	return nil
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
