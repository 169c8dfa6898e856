package layout

// Attr is the access attribute of a field, per §4.1.
type Attr int

// Field access attributes.
const (
	RO       Attr = iota // Read-only; writes ignored.
	RW                   // Read-write; writes stored verbatim under mask.
	RWS                  // Read-write, sticky across reset (same write semantics as RW).
	RWL                  // Read-write, lockable (same write semantics as RW).
	RWO                  // Read-write-once (same write semantics as RW; one-shot enforcement is caller's job).
	RW1C                 // Read-write-1-to-clear: a written 1 bit clears the stored bit.
	RW1CS                // RW1C, sticky across reset.
	Reserved             // Always ignores writes, reads as stored (typically zero).
	HWInit               // Hardware-initialized; writes ignored.
)

// writable reports whether this attribute accepts a verbatim write under
// its mask (the RW family). RW1C family is handled separately.
func (a Attr) writable() bool {
	switch a {
	case RW, RWS, RWL, RWO:
		return true
	default:
		return false
	}
}

func (a Attr) rw1c() bool {
	return a == RW1C || a == RW1CS
}

// Kind distinguishes the field variants of §4.1.
type Kind int

// Field kinds.
const (
	KindBit Kind = iota
	KindByte
	KindStruct
	KindDynamic
	KindRepeatedDynamic
)

// Field is one entry in a Layout's ordered field list.
//
// Bit offsets (StartBit/EndBit) are measured from the start of the
// enclosing structure, bit 0 being the least-significant bit of byte 0.
// Byte offsets (StartByte/EndByte) are inclusive byte indices.
type Field struct {
	Name string
	Kind Kind

	// KindBit
	StartBit int
	EndBit   int

	// KindByte / KindStruct / KindDynamic / KindRepeatedDynamic
	StartByte int
	EndByte   int // inclusive; unused (0) for KindDynamic

	Attr      Attr
	Default   uint64
	WriteMask uint64 // optional explicit mask override for KindByte; 0 means "derive from Attr over the full range"

	Child      *Layout // KindStruct
	ElemLayout *Layout // KindRepeatedDynamic: layout of one element
	ElemSize   int     // KindRepeatedDynamic: byte size of one element

	DefaultLen int // KindDynamic: default tail length in bytes
}

// BitField declares a bit-range field.
func BitField(name string, startBit, endBit int, attr Attr, def uint64) Field {
	return Field{Name: name, Kind: KindBit, StartBit: startBit, EndBit: endBit, Attr: attr, Default: def}
}

// ByteField declares a byte-range field, optionally with an explicit write
// mask (0 derives a full-range mask from attr).
func ByteField(name string, startByte, endByte int, attr Attr, def uint64, writeMask uint64) Field {
	return Field{Name: name, Kind: KindByte, StartByte: startByte, EndByte: endByte, Attr: attr, Default: def, WriteMask: writeMask}
}

// StructureField declares a nested sub-structure occupying [startByte,endByte].
func StructureField(name string, startByte, endByte int, child *Layout) Field {
	return Field{Name: name, Kind: KindStruct, StartByte: startByte, EndByte: endByte, Child: child}
}

// DynamicByteField declares the single trailing variable-length tail of a
// structure. Must be the last field.
func DynamicByteField(name string, startByte, defaultLength int) Field {
	return Field{Name: name, Kind: KindDynamic, StartByte: startByte, DefaultLen: defaultLength}
}

// RepeatedDynamicField declares zero or more contiguous elements of a fixed
// element layout, filling [startByte, startByte+totalLength). Must be last.
func RepeatedDynamicField(name string, startByte, totalLength int, elem *Layout) Field {
	return Field{
		Name: name, Kind: KindRepeatedDynamic,
		StartByte: startByte, EndByte: startByte + totalLength - 1,
		ElemLayout: elem, ElemSize: elem.FixedSize,
	}
}

func bitMaskRange(lo, hi int) uint64 {
	if hi < lo {
		return 0
	}
	n := hi - lo + 1
	if n >= 64 {
		return ^uint64(0)
	}
	return ((uint64(1) << uint(n)) - 1) << uint(lo)
}
