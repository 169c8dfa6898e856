package port

import "testing"

func TestPortDevice_ConfigReadWrite(t *testing.T) {
	d, err := NewUpstreamPortDevice(0x1E98, 0x0001)
	if err != nil {
		t.Fatalf("NewUpstreamPortDevice() error = %v", err)
	}

	got := d.ReadConfig(0x00, 2)
	if got[0] != 0x98 || got[1] != 0x1E {
		t.Errorf("vendor_id = %v, want little-endian 0x1E98", got)
	}

	d.WriteConfig(0x04, []byte{0xFF, 0xFF})
	if got := d.ReadConfig(0x04, 2); got[0] != 0xFF || got[1] != 0xFF {
		t.Errorf("command after write = %v, want 0xFFFF", got)
	}
}

func TestPortDevice_HeaderTypeDistinguishesUSPFromDSP(t *testing.T) {
	usp, _ := NewUpstreamPortDevice(1, 1)
	dsp, _ := NewDownstreamPortDevice(1, 1)

	if got := usp.ReadConfig(0x0E, 1)[0]; got != 0x01 {
		t.Errorf("usp header_type = %#x, want 0x01 (bridge)", got)
	}
	if got := dsp.ReadConfig(0x0E, 1)[0]; got != 0x00 {
		t.Errorf("dsp header_type = %#x, want 0x00 (endpoint)", got)
	}
}

func TestPortDevice_CommitSwitchDecoder(t *testing.T) {
	d, _ := NewUpstreamPortDevice(1, 1)

	if err := d.CommitSwitchDecoder(0, 0, 0x10000000, 0, 1, []uint8{3, 5}); err != nil {
		t.Fatalf("CommitSwitchDecoder() error = %v", err)
	}

	decs := d.SwitchDecoders()
	if len(decs) != 1 {
		t.Fatalf("SwitchDecoders() = %d entries, want 1", len(decs))
	}
	dec := decs[0]
	if !dec.Committed || dec.Size != 0x10000000 || len(dec.Targets) != 2 {
		t.Fatalf("decoder = %+v", dec)
	}
	target, err := dec.GetTarget(0)
	if err != nil || target != 3 {
		t.Errorf("GetTarget(0) = %d, %v, want 3, nil", target, err)
	}
	target, err = dec.GetTarget(0x100)
	if err != nil || target != 5 {
		t.Errorf("GetTarget(0x100) = %d, %v, want 5, nil", target, err)
	}
}

func TestPortDevice_CommitSwitchDecoder_RejectsTooManyTargets(t *testing.T) {
	d, _ := NewUpstreamPortDevice(1, 1)
	targets := make([]uint8, 9)
	if err := d.CommitSwitchDecoder(0, 0, 1<<28, 0, 0, targets); err == nil {
		t.Fatalf("expected error for 9 targets")
	}
}

func TestPortDevice_UncommittedDecoderExcluded(t *testing.T) {
	d, _ := NewUpstreamPortDevice(1, 1)
	if decs := d.SwitchDecoders(); len(decs) != 0 {
		t.Errorf("SwitchDecoders() on fresh device = %d, want 0", len(decs))
	}
}
