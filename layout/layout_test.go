package layout

import (
	"errors"
	"testing"

	"github.com/cxlfabric/cxlswitch/pkg"
)

func TestNew_Contiguity(t *testing.T) {
	tests := []struct {
		name    string
		fields  []Field
		wantErr bool
	}{
		{
			name: "simple bytes",
			fields: []Field{
				ByteField("a", 0, 1, RW, 0, 0),
				ByteField("b", 2, 3, RO, 0, 0),
			},
		},
		{
			name: "bitfields filling a byte",
			fields: []Field{
				BitField("lo", 0, 3, RW, 0),
				BitField("hi", 4, 7, RO, 0),
			},
		},
		{
			name: "gap between byte fields is an error",
			fields: []Field{
				ByteField("a", 0, 1, RW, 0, 0),
				ByteField("b", 3, 3, RO, 0, 0),
			},
			wantErr: true,
		},
		{
			name: "bitfields not filling a whole byte",
			fields: []Field{
				BitField("lo", 0, 3, RW, 0),
			},
			wantErr: true,
		},
		{
			name: "dynamic field not last",
			fields: []Field{
				DynamicByteField("tail", 0, 4),
				ByteField("a", 4, 4, RO, 0, 0),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.name, tt.fields)
			if tt.wantErr && err == nil {
				t.Fatalf("New() = nil error, want error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("New() = %v, want nil", err)
			}
			if tt.wantErr && !errors.Is(err, pkg.ErrInvalidLayout) {
				t.Fatalf("New() error = %v, want wrapping ErrInvalidLayout", err)
			}
		})
	}
}

func TestLayout_WriteSemantics(t *testing.T) {
	l := MustNew("reg", []Field{
		ByteField("ro", 0, 0, RO, 0xAA, 0),
		ByteField("rw", 1, 1, RW, 0, 0),
		ByteField("rw1c", 2, 2, RW1C, 0, 0),
		ByteField("reserved", 3, 3, Reserved, 0, 0),
	})

	buf := l.NewBuffer()
	if buf[0] != 0xAA {
		t.Fatalf("RO default = %#x, want 0xAA", buf[0])
	}

	// RO write ignored.
	l.Write(buf, 0, []byte{0xFF})
	if buf[0] != 0xAA {
		t.Errorf("RO write changed value: %#x", buf[0])
	}

	// RW write stored verbatim.
	l.Write(buf, 1, []byte{0x5A})
	if buf[1] != 0x5A {
		t.Errorf("RW write = %#x, want 0x5A", buf[1])
	}

	// RW1C: set bits, then write 1s to clear a subset.
	buf[2] = 0b1111_0000
	l.Write(buf, 2, []byte{0b0101_0000})
	if buf[2] != 0b1010_0000 {
		t.Errorf("RW1C write = %#08b, want %#08b", buf[2], 0b1010_0000)
	}

	// Reserved write ignored.
	l.Write(buf, 3, []byte{0xFF})
	if buf[3] != 0 {
		t.Errorf("Reserved write changed value: %#x", buf[3])
	}
}

func TestLayout_BitFieldMask(t *testing.T) {
	l := MustNew("ctrl", []Field{
		BitField("ig", 0, 3, RW, 0),
		BitField("iw", 4, 7, RW, 0),
		BitField("commit", 8, 8, RW, 0),
		BitField("committed", 9, 9, RO, 0),
		BitField("reserved", 10, 15, Reserved, 0),
	})

	buf := l.NewBuffer()
	l.Write(buf, 0, []byte{0x7A, 0xFF})
	if got := GetBits(buf, 0, 3); got != 0xA {
		t.Errorf("ig = %#x, want 0xA", got)
	}
	if got := GetBits(buf, 4, 7); got != 0x7 {
		t.Errorf("iw = %#x, want 0x7", got)
	}
	if got := GetBits(buf, 8, 8); got != 1 {
		t.Errorf("commit = %d, want 1", got)
	}
	if got := GetBits(buf, 9, 9); got != 0 {
		t.Errorf("committed (RO) = %d, want 0 (write ignored)", got)
	}
	if got := GetBits(buf, 10, 15); got != 0 {
		t.Errorf("reserved = %d, want 0", got)
	}
}

func TestLayout_Roundtrip(t *testing.T) {
	child := MustNew("inner", []Field{
		ByteField("x", 0, 3, RW, 0, 0),
	})
	outer := MustNew("outer", []Field{
		ByteField("hdr", 0, 1, RW, 0, 0),
		StructureField("inner", 2, 5, child),
	})

	buf := outer.NewBuffer()
	outer.Write(buf, 0, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
	if got := GetBytesLE(buf, 2, 5); got != 0x06050403 {
		t.Errorf("nested struct value = %#x, want 0x06050403", got)
	}
}

func TestLayout_DynamicTail(t *testing.T) {
	l := MustNew("pkt", []Field{
		ByteField("hdr", 0, 3, RW, 0, 0),
		DynamicByteField("data", 4, 0),
	})

	buf := l.NewBuffer()
	if len(buf) != 4 {
		t.Fatalf("NewBuffer() len = %d, want 4", len(buf))
	}

	buf = l.ResizeDynamic(buf, 8)
	if len(buf) != 12 {
		t.Fatalf("ResizeDynamic() len = %d, want 12", len(buf))
	}
	l.Write(buf, 4, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	if got := l.DynamicTail(buf); got[0] != 1 || got[7] != 8 {
		t.Errorf("DynamicTail = %v", got)
	}
}
