package vm

import (
	"encoding/binary"
	"math"

	"golang.org/x/text/encoding/unicode"
)

// ---------------------------------------------------------------------------
// Strings
// ---------------------------------------------------------------------------

// Strings are binaries of class string holding NUL-terminated UTF-16
// big-endian text, the layout legacy streams carry.
var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// NewString allocates a string object holding s.
func (h *Heap) NewString(s string) Value {
	enc, err := utf16be.NewEncoder().Bytes([]byte(s))
	if err != nil {
		enc = nil
	}
	data := make([]byte, len(enc)+2)
	copy(data, enc)
	return h.alloc(&Object{cls: h.Sym.String, data: data})
}

func (h *Heap) stringObject(v Value) (*Object, error) {
	if !h.IsString(v) {
		return nil, typeError(ErrNotAString, v)
	}
	return h.object(v)
}

// stringUnits returns the UTF-16 code units of a string without its
// terminator.
func stringUnits(o *Object) []byte {
	data := o.data[:len(o.data)&^1]
	if n := len(data); n >= 2 && data[n-2] == 0 && data[n-1] == 0 {
		data = data[:n-2]
	}
	return data
}

// StringValue decodes a string object.
func (h *Heap) StringValue(v Value) (string, error) {
	o, err := h.stringObject(v)
	if err != nil {
		return "", err
	}
	dec, err := utf16be.NewDecoder().Bytes(stringUnits(o))
	if err != nil {
		return "", frError(ErrBadArguments, v)
	}
	return string(dec), nil
}

// StringLength returns the number of UTF-16 code units in a string.
func (h *Heap) StringLength(v Value) (int, error) {
	o, err := h.stringObject(v)
	if err != nil {
		return 0, err
	}
	return len(stringUnits(o)) / 2, nil
}

// StringCharAt returns the character at code unit i.
func (h *Heap) StringCharAt(v Value, i int) (Value, error) {
	o, err := h.stringObject(v)
	if err != nil {
		return Nil, err
	}
	units := stringUnits(o)
	if i < 0 || 2*i >= len(units) {
		return Nil, frError(ErrOutOfBounds, FromInt(int64(i)))
	}
	return FromChar(rune(binary.BigEndian.Uint16(units[2*i:]))), nil
}

// SetStringCharAt replaces the code unit at i with c.
func (h *Heap) SetStringCharAt(v Value, i int, c Value) error {
	r, err := c.Char()
	if err != nil {
		return err
	}
	if r > 0xFFFF {
		return frError(ErrValueOutOfRange, c)
	}
	o, err := h.stringObject(v)
	if err != nil {
		return err
	}
	units := stringUnits(o)
	if i < 0 || 2*i >= len(units) {
		return frError(ErrOutOfBounds, FromInt(int64(i)))
	}
	binary.BigEndian.PutUint16(units[2*i:], uint16(r))
	return nil
}

// StrAppend destructively appends the text of b to a.
func (h *Heap) StrAppend(a, b Value) error {
	oa, err := h.stringObject(a)
	if err != nil {
		return err
	}
	ob, err := h.stringObject(b)
	if err != nil {
		return err
	}
	ua, ub := stringUnits(oa), stringUnits(ob)
	data := make([]byte, 0, len(ua)+len(ub)+2)
	data = append(data, ua...)
	data = append(data, ub...)
	oa.data = append(data, 0, 0)
	return nil
}

// ---------------------------------------------------------------------------
// Reals
// ---------------------------------------------------------------------------

// NewReal allocates a real: a binary of class real holding a big-endian
// IEEE 754 double.
func (h *Heap) NewReal(f float64) Value {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, math.Float64bits(f))
	return h.alloc(&Object{cls: h.Sym.Real, data: data})
}

// Real returns the double held by a real, or NotAReal.
func (h *Heap) Real(v Value) (float64, error) {
	if !h.IsReal(v) {
		return 0, typeError(ErrNotAReal, v)
	}
	o, err := h.object(v)
	if err != nil {
		return 0, err
	}
	if len(o.data) != 8 {
		return 0, typeError(ErrNotAReal, v)
	}
	return math.Float64frombits(binary.BigEndian.Uint64(o.data)), nil
}
