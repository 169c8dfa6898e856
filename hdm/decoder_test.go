package hdm

import (
	"errors"
	"testing"

	"github.com/cxlfabric/cxlswitch/pkg"
)

func TestDeviceDecoder_GetDPA_NoInterleave(t *testing.T) {
	d := DeviceDecoder{
		Decoder: Decoder{Base: 0x1_0000_0000, Size: 0x1000_0000, IG: 0, IW: 0, Committed: true},
		DpaBase: 0x4000_0000,
	}
	for _, offset := range []uint64{0, 0x100, 0xFFFF, 0x0FFF_FFFF} {
		dpa, err := d.GetDPA(d.Base + offset)
		if err != nil {
			t.Fatalf("GetDPA(offset=%#x) error = %v", offset, err)
		}
		want := d.DpaBase + offset
		if dpa != want {
			t.Errorf("GetDPA(offset=%#x) = %#x, want %#x", offset, dpa, want)
		}
	}
}

func TestDeviceDecoder_GetDPA_TwoWayInterleave(t *testing.T) {
	// ig=0 -> 256-byte granularity, iw=1 -> 2-way interleave. Within one
	// device's DPA space, every other 256B chunk of the HPA range maps to
	// this device, compacted contiguously.
	d := DeviceDecoder{
		Decoder: Decoder{Base: 0, Size: 0x10000, IG: 0, IW: 1, Committed: true},
	}
	dpa0, err := d.GetDPA(0)
	if err != nil {
		t.Fatalf("GetDPA(0) error = %v", err)
	}
	dpa1, err := d.GetDPA(512) // second chunk belonging to this device (chunk 1, HPA 256, is the other way)
	if err != nil {
		t.Fatalf("GetDPA(512) error = %v", err)
	}
	if dpa0 != 0 {
		t.Errorf("GetDPA(0) = %#x, want 0", dpa0)
	}
	if dpa1 != 256 {
		t.Errorf("GetDPA(512) = %#x, want 0x100 (the next 256B chunk, compacted)", dpa1)
	}
}

func TestDeviceDecoder_GetDPA_OutOfRange(t *testing.T) {
	d := DeviceDecoder{Decoder: Decoder{Base: 0x1000, Size: 0x1000, Committed: true}}
	_, err := d.GetDPA(0x5000)
	if !errors.Is(err, pkg.ErrMisalignedAddress) {
		t.Fatalf("GetDPA(out of range) error = %v, want ErrMisalignedAddress", err)
	}
}

func TestDeviceDecoder_GetDPA_NotCommitted(t *testing.T) {
	d := DeviceDecoder{Decoder: Decoder{Base: 0, Size: 0x1000, Committed: false}}
	_, err := d.GetDPA(0x100)
	if err == nil {
		t.Fatal("GetDPA() on an uncommitted decoder = nil error, want error")
	}
}

func TestSwitchDecoder_GetTarget_TwoWay(t *testing.T) {
	d := SwitchDecoder{
		Decoder: Decoder{Base: 0, Size: 0x10000, IG: 0, IW: 1, Committed: true},
		Targets: []uint8{5, 7},
	}
	tests := []struct {
		hpa  uint64
		want uint8
	}{
		{0, 5},
		{256, 7},
		{512, 5},
		{768, 7},
		{1024, 5},
	}
	for _, tt := range tests {
		got, err := d.GetTarget(tt.hpa)
		if err != nil {
			t.Fatalf("GetTarget(%#x) error = %v", tt.hpa, err)
		}
		if got != tt.want {
			t.Errorf("GetTarget(%#x) = %d, want %d", tt.hpa, got, tt.want)
		}
	}
}

func TestSwitchDecoder_GetTarget_EvenDistribution(t *testing.T) {
	d := SwitchDecoder{
		Decoder: Decoder{Base: 0, Size: 8 * 256 * 2, IG: 0, IW: 1, Committed: true},
		Targets: []uint8{0, 1},
	}
	counts := map[uint8]int{}
	for hpa := d.Base; hpa < d.Base+d.Size; hpa += d.interleaveGranularity() {
		target, err := d.GetTarget(hpa)
		if err != nil {
			t.Fatalf("GetTarget(%#x) error = %v", hpa, err)
		}
		counts[target]++
	}
	if counts[0] != counts[1] {
		t.Errorf("interleave distribution = %v, want equal counts per target", counts)
	}
}
