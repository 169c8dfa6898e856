package layout

import (
	"encoding/binary"
	"fmt"

	"github.com/cxlfabric/cxlswitch/pkg"
)

// Layout is a validated, ordered field list describing a structure, plus
// the precomputed per-byte write masks that implement §4.1's attribute
// semantics.
type Layout struct {
	Name   string
	Fields []Field

	// FixedSize is the number of bytes before any dynamic tail. If the
	// structure has no dynamic tail, FixedSize is the whole structure size.
	FixedSize int

	// HasDynamic is true if the last field is KindDynamic or
	// KindRepeatedDynamic.
	HasDynamic bool
	DynamicIdx int // index into Fields of the dynamic field, -1 if none

	writeMask []byte // bits a plain RW write may change, per byte of FixedSize
	rw1cMask  []byte // bits that clear-on-write-1, per byte of FixedSize
}

// New validates fields and builds a Layout. Fields must be contiguous (each
// field starts exactly where the previous one ended), bit fields must
// collectively fill whole bytes before a byte-granularity field may follow,
// and at most one dynamic field (Dynamic or RepeatedDynamic) may appear,
// always last.
func New(name string, fields []Field) (*Layout, error) {
	l := &Layout{Name: name, Fields: fields, DynamicIdx: -1}

	cursorBit := 0
	for i, f := range fields {
		if f.Kind == KindDynamic || f.Kind == KindRepeatedDynamic {
			if i != len(fields)-1 {
				return nil, fmt.Errorf("%w: %s: dynamic field %q must be last", pkg.ErrInvalidLayout, name, f.Name)
			}
			if cursorBit%8 != 0 {
				return nil, fmt.Errorf("%w: %s: dynamic field %q not byte-aligned", pkg.ErrInvalidLayout, name, f.Name)
			}
			if f.StartByte != cursorBit/8 {
				return nil, fmt.Errorf("%w: %s: dynamic field %q starts at %d, expected %d", pkg.ErrInvalidLayout, name, f.Name, f.StartByte, cursorBit/8)
			}
			l.HasDynamic = true
			l.DynamicIdx = i
			l.FixedSize = f.StartByte
			continue
		}

		switch f.Kind {
		case KindBit:
			if f.StartBit != cursorBit {
				return nil, fmt.Errorf("%w: %s: bit field %q starts at bit %d, expected %d", pkg.ErrInvalidLayout, name, f.Name, f.StartBit, cursorBit)
			}
			if f.EndBit < f.StartBit {
				return nil, fmt.Errorf("%w: %s: bit field %q has end < start", pkg.ErrInvalidLayout, name, f.Name)
			}
			cursorBit = f.EndBit + 1
		case KindByte, KindStruct:
			if cursorBit%8 != 0 {
				return nil, fmt.Errorf("%w: %s: field %q follows a bit-field run that does not fill whole bytes", pkg.ErrInvalidLayout, name, f.Name)
			}
			if f.StartByte != cursorBit/8 {
				return nil, fmt.Errorf("%w: %s: field %q starts at byte %d, expected %d", pkg.ErrInvalidLayout, name, f.Name, f.StartByte, cursorBit/8)
			}
			if f.EndByte < f.StartByte {
				return nil, fmt.Errorf("%w: %s: field %q has end < start", pkg.ErrInvalidLayout, name, f.Name)
			}
			cursorBit = (f.EndByte + 1) * 8
		default:
			return nil, fmt.Errorf("%w: %s: field %q has unknown kind", pkg.ErrInvalidLayout, name, f.Name)
		}
	}

	if !l.HasDynamic {
		if cursorBit%8 != 0 {
			return nil, fmt.Errorf("%w: %s: trailing bit fields do not fill a whole byte", pkg.ErrInvalidLayout, name)
		}
		l.FixedSize = cursorBit / 8
	}

	l.writeMask = make([]byte, l.FixedSize)
	l.rw1cMask = make([]byte, l.FixedSize)
	for _, f := range fields {
		switch f.Kind {
		case KindBit:
			if !f.Attr.writable() && !f.Attr.rw1c() {
				continue
			}
			for bit := f.StartBit; bit <= f.EndBit; bit++ {
				byteIdx := bit / 8
				bitIdx := uint(bit % 8)
				if f.Attr.writable() {
					l.writeMask[byteIdx] |= 1 << bitIdx
				} else {
					l.rw1cMask[byteIdx] |= 1 << bitIdx
				}
			}
		case KindByte:
			if !f.Attr.writable() && !f.Attr.rw1c() {
				continue
			}
			for b := f.StartByte; b <= f.EndByte; b++ {
				var m byte = 0xFF
				if f.WriteMask != 0 {
					shift := uint(8 * (b - f.StartByte))
					m = byte(f.WriteMask >> shift)
				}
				if f.Attr.writable() {
					l.writeMask[b] |= m
				} else {
					l.rw1cMask[b] |= m
				}
			}
		case KindStruct:
			if f.Child == nil {
				continue
			}
			for i := 0; i < len(f.Child.writeMask) && f.StartByte+i <= f.EndByte; i++ {
				l.writeMask[f.StartByte+i] |= f.Child.writeMask[i]
				l.rw1cMask[f.StartByte+i] |= f.Child.rw1cMask[i]
			}
		}
	}

	return l, nil
}

// MustNew panics if New returns an error; for use in package-level var
// initializers describing fixed register layouts.
func MustNew(name string, fields []Field) *Layout {
	l, err := New(name, fields)
	if err != nil {
		panic(err)
	}
	return l
}

// NewBuffer allocates a zero-initialized buffer sized for the structure's
// fixed portion plus, if the structure has a dynamic tail, its default
// length (or zero elements for a RepeatedDynamicField).
func (l *Layout) NewBuffer() []byte {
	size := l.FixedSize
	if l.HasDynamic {
		f := l.Fields[l.DynamicIdx]
		if f.Kind == KindDynamic {
			size += f.DefaultLen
		}
	}
	buf := make([]byte, size)
	l.applyDefaults(buf)
	return buf
}

func (l *Layout) applyDefaults(buf []byte) {
	for _, f := range l.Fields {
		switch f.Kind {
		case KindBit:
			if f.Default == 0 {
				continue
			}
			mask := bitMaskRange(0, f.EndBit-f.StartBit)
			setBitsLE(buf, f.StartBit, f.EndBit, f.Default&mask)
		case KindByte:
			if f.Default == 0 {
				continue
			}
			setBytesLE(buf, f.StartByte, f.EndByte, f.Default)
		case KindStruct:
			if f.Child != nil {
				f.Child.applyDefaults(buf[f.StartByte : f.EndByte+1])
			}
		}
	}
}

// DynamicTail returns the variable-length trailing slice of buf (the
// portion beyond FixedSize). Empty if the layout has no dynamic field.
func (l *Layout) DynamicTail(buf []byte) []byte {
	if !l.HasDynamic || len(buf) <= l.FixedSize {
		return nil
	}
	return buf[l.FixedSize:]
}

// ResizeDynamic grows or shrinks buf's dynamic tail to exactly newLen
// bytes, zero-padding on growth, and returns the resulting buffer. Only
// valid for layouts whose last field is KindDynamic.
func (l *Layout) ResizeDynamic(buf []byte, newLen int) []byte {
	if !l.HasDynamic {
		return buf
	}
	out := make([]byte, l.FixedSize+newLen)
	n := copy(out, buf)
	_ = n
	return out
}

// GetBits reads an inclusive bit range [startBit,endBit] as an unsigned
// integer, little-endian bit order.
func GetBits(buf []byte, startBit, endBit int) uint64 {
	var v uint64
	for bit := startBit; bit <= endBit; bit++ {
		byteIdx := bit / 8
		if byteIdx >= len(buf) {
			break
		}
		bitIdx := uint(bit % 8)
		if buf[byteIdx]&(1<<bitIdx) != 0 {
			v |= 1 << uint(bit-startBit)
		}
	}
	return v
}

func setBitsLE(buf []byte, startBit, endBit int, value uint64) {
	for bit := startBit; bit <= endBit; bit++ {
		byteIdx := bit / 8
		if byteIdx >= len(buf) {
			break
		}
		bitIdx := uint(bit % 8)
		if value&(1<<uint(bit-startBit)) != 0 {
			buf[byteIdx] |= 1 << bitIdx
		} else {
			buf[byteIdx] &^= 1 << bitIdx
		}
	}
}

// GetBytesLE reads an inclusive byte range [start,end] (at most 8 bytes) as
// a little-endian unsigned integer.
func GetBytesLE(buf []byte, start, end int) uint64 {
	var v uint64
	n := end - start + 1
	for i := 0; i < n; i++ {
		if start+i >= len(buf) {
			break
		}
		v |= uint64(buf[start+i]) << uint(8*i)
	}
	return v
}

func setBytesLE(buf []byte, start, end int, value uint64) {
	n := end - start + 1
	tmp := make([]byte, 8)
	binary.LittleEndian.PutUint64(tmp, value)
	copy(buf[start:start+n], tmp[:n])
}

// Write applies a write of data to buf at byte offset, honoring each
// touched byte's write mask: RW-family bits are stored verbatim, RW1C-family
// bits clear the corresponding stored bit when written as 1, and
// RO/RESERVED/HW_INIT bits never change. Bytes beyond FixedSize (the
// dynamic tail, if any) are always written verbatim.
func (l *Layout) Write(buf []byte, offset int, data []byte) {
	for i, b := range data {
		pos := offset + i
		if pos >= len(buf) {
			break
		}
		if pos >= l.FixedSize {
			buf[pos] = b
			continue
		}
		wm := l.writeMask[pos]
		rm := l.rw1cMask[pos]
		cur := buf[pos]
		next := (cur &^ wm) | (b & wm)
		next &^= b & rm
		buf[pos] = next
	}
}
