package compreg

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/cxlfabric/cxlswitch/pkg"
)

func TestDecoderCountRoundTrip(t *testing.T) {
	for encoded, want := range decoderCountTable {
		got, err := DecodeDecoderCount(uint8(encoded))
		if err != nil {
			t.Fatalf("DecodeDecoderCount(%d) error = %v", encoded, err)
		}
		if got != want {
			t.Errorf("DecodeDecoderCount(%d) = %d, want %d", encoded, got, want)
		}
		enc, err := EncodeDecoderCount(want)
		if err != nil || enc != uint8(encoded) {
			t.Errorf("EncodeDecoderCount(%d) = (%d, %v), want (%d, nil)", want, enc, err, encoded)
		}
	}
}

func TestDecodeDecoderCount_Invalid(t *testing.T) {
	_, err := DecodeDecoderCount(13)
	if !errors.Is(err, pkg.ErrInvalidDecoderCount) {
		t.Fatalf("DecodeDecoderCount(13) error = %v, want ErrInvalidDecoderCount", err)
	}
}

func TestHdmDecoderCapability_SlotLayout(t *testing.T) {
	cap, err := NewHdmDecoderCapability(8)
	if err != nil {
		t.Fatalf("NewHdmDecoderCapability() error = %v", err)
	}
	buf := cap.NewBuffer()
	if len(buf) != HdmDecoderCapabilityHeaderLen+8*HdmDecoderSlotLen {
		t.Fatalf("NewBuffer() len = %d, want %d", len(buf), HdmDecoderCapabilityHeaderLen+8*HdmDecoderSlotLen)
	}

	// Base/size are 256 MiB aligned: write all-1s, expect every bit below
	// bit 28 masked off.
	cap.WriteSlot(buf, 0, 0x00, []byte{0xFF, 0xFF, 0xFF, 0xFF})
	start, _ := cap.Slot(0)
	gotBase := binary.LittleEndian.Uint32(buf[start : start+4])
	if gotBase != 0xF0000000 {
		t.Errorf("base_low after all-1s write = %#x, want 0xF0000000", gotBase)
	}

	// committed bit is RO: writing it through the control DWORD must not
	// change it.
	cap.WriteSlot(buf, 0, 0x10, []byte{0xFF, 0xFF, 0xFF, 0xFF})
	ctrl := binary.LittleEndian.Uint32(buf[start+0x10 : start+0x14])
	if ctrl&(1<<10) != 0 {
		t.Errorf("committed bit set by write, want RO (always 0 until the hdm manager sets it internally)")
	}
	if ctrl&0x0F != 0x0F {
		t.Errorf("ig nibble = %#x, want 0xF (RW)", ctrl&0x0F)
	}
}

func TestHdmDecoderCapability_RejectsInvalidCount(t *testing.T) {
	_, err := NewHdmDecoderCapability(13)
	if !errors.Is(err, pkg.ErrInvalidDecoderCount) {
		t.Fatalf("NewHdmDecoderCapability(13) error = %v, want ErrInvalidDecoderCount", err)
	}
}
