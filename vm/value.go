package vm

// Value represents a Prota value in a single 64-bit word.
//
// The low two bits select the tag:
//   - Int: the word arithmetically shifted right by two (62 significant bits)
//   - Ref: a heap handle (arena index and generation)
//   - Immediate: nil, true, characters and special markers
//   - Magic: reserved for host extension, never interpreted by the core
//
// Immediates carry a further two-bit subtag in bits 2-3 and their payload
// from bit 4 up. The layout matches the legacy stream format, so raw words
// from push-constant operands and legacy streams decode without translation.
type Value uint64

// Tag values
const (
	TagInt       = 0
	TagRef       = 1
	TagImmediate = 2
	TagMagic     = 3

	tagMask = 3
)

// Immediate subtags
const (
	immedSpecial = 0x0
	immedChar    = 0x4
	immedBoolean = 0x8

	immedMask = 0xC
)

// Pre-defined immediates
const (
	Nil  Value = immedSpecial | TagImmediate         // 0x2
	True Value = 1<<4 | immedBoolean | TagImmediate // 0x1A
)

// Integer range (62-bit signed)
const (
	MaxInt int64 = 1<<61 - 1
	MinInt int64 = -(1 << 61)
)

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// Tag returns the low two tag bits of v.
func (v Value) Tag() int {
	return int(v & tagMask)
}

// IsInt returns true if v is an integer.
func (v Value) IsInt() bool {
	return v&tagMask == TagInt
}

// IsRef returns true if v refers to a heap object.
func (v Value) IsRef() bool {
	return v&tagMask == TagRef
}

// IsImmediate returns true if v is nil, true, a character or another
// immediate marker.
func (v Value) IsImmediate() bool {
	return v&tagMask == TagImmediate
}

// IsMagic returns true if v is a magic pointer.
func (v Value) IsMagic() bool {
	return v&tagMask == TagMagic
}

// IsChar returns true if v is a character.
func (v Value) IsChar() bool {
	return v&(tagMask|immedMask) == TagImmediate|immedChar
}

// IsNil returns true if v is nil.
func (v Value) IsNil() bool {
	return v == Nil
}

// IsTrue returns true if v is the boolean true immediate.
func (v Value) IsTrue() bool {
	return v == True
}

// Truthy reports whether v counts as true in a condition. Only nil is false.
func (v Value) Truthy() bool {
	return v != Nil
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// FromInt converts n to an integer value without a range check. Bits beyond
// the 62-bit range are discarded.
func FromInt(n int64) Value {
	return Value(uint64(n) << 2)
}

// CheckedInt converts n to an integer value, failing with ValueOutOfRange if
// n does not fit in 62 bits.
func CheckedInt(n int64) (Value, error) {
	if n > MaxInt || n < MinInt {
		return Nil, frError(ErrValueOutOfRange, Nil)
	}
	return FromInt(n), nil
}

// FromChar converts a Unicode code point to a character value.
func FromChar(c rune) Value {
	return Value(uint64(uint32(c))<<4 | immedChar | TagImmediate)
}

// FromBool converts b to a value: true becomes True, false becomes Nil.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return Nil
}

// Immediate constructs a special immediate with the given payload.
func Immediate(payload uint32) Value {
	return Value(uint64(payload)<<4 | immedSpecial | TagImmediate)
}

// MagicPointer constructs a magic pointer value for the given index.
func MagicPointer(index uint32) Value {
	return Value(uint64(index)<<2 | TagMagic)
}

// ---------------------------------------------------------------------------
// Conversion
// ---------------------------------------------------------------------------

// Int returns the integer held by v, or NotAnInteger.
func (v Value) Int() (int64, error) {
	if !v.IsInt() {
		return 0, typeError(ErrNotAnInteger, v)
	}
	return int64(v) >> 2, nil
}

// UnsafeInt returns the integer held by v without checking the tag.
func (v Value) UnsafeInt() int64 {
	return int64(v) >> 2
}

// Char returns the code point held by v, or NotACharacter.
func (v Value) Char() (rune, error) {
	if !v.IsChar() {
		return 0, typeError(ErrNotACharacter, v)
	}
	return rune(uint64(v) >> 4), nil
}

// UnsafeChar returns the code point held by v without checking the tag.
func (v Value) UnsafeChar() rune {
	return rune(uint64(v) >> 4)
}

// MagicIndex returns the index of a magic pointer.
func (v Value) MagicIndex() uint32 {
	return uint32(uint64(v) >> 2)
}

// ImmediatePayload returns the payload bits of an immediate.
func (v Value) ImmediatePayload() uint32 {
	return uint32(uint64(v) >> 4)
}

// ---------------------------------------------------------------------------
// References
// ---------------------------------------------------------------------------

// A reference packs the arena index in bits 2-33 and the generation in
// bits 34-63. Index 0 is never allocated.
const (
	refIndexBits = 32
	refGenMask   = 1<<30 - 1
)

func makeRef(index, gen uint32) Value {
	return Value(uint64(gen&refGenMask)<<(refIndexBits+2) | uint64(index)<<2 | TagRef)
}

func (v Value) refIndex() uint32 {
	return uint32(uint64(v) >> 2)
}

func (v Value) refGen() uint32 {
	return uint32(uint64(v)>>(refIndexBits+2)) & refGenMask
}
