package vm

import "encoding/binary"

// ---------------------------------------------------------------------------
// Symbols: interned, case-insensitive names
// ---------------------------------------------------------------------------

// A symbol is a binary object of class SymbolClass. Its data is a 4-byte
// big-endian hash followed by the NUL-terminated name as first interned.
// Interning is case-insensitive, so identity implies name equality.

// Symbols holds the symbols the runtime itself refers to.
type Symbols struct {
	Proto        Value // _proto
	Parent       Value // _parent
	Implementor  Value // _implementor
	NextArgFrame Value // _nextArgFrame

	Array    Value
	String   Value
	Real     Value
	PathExpr Value
	Iterator Value
	Handlers Value
	Frame    Value
	Int      Value
	Char     Value
	Boolean  Value

	Name      Value
	Data      Value
	ErrorCode Value

	Class        Value
	Instructions Value
	Literals     Value
	ArgFrame     Value
	NumArgs      Value
	Entry        Value

	PrintDepth Value
	Vars       Value
	Functions  Value

	Top    Value
	Left   Value
	Bottom Value
	Right  Value
}

func newSymbols(h *Heap) Symbols {
	return Symbols{
		Proto:        h.Intern("_proto"),
		Parent:       h.Intern("_parent"),
		Implementor:  h.Intern("_implementor"),
		NextArgFrame: h.Intern("_nextArgFrame"),
		Array:        h.Intern("array"),
		String:       h.Intern("string"),
		Real:         h.Intern("real"),
		PathExpr:     h.Intern("pathExpr"),
		Iterator:     h.Intern("iterator"),
		Handlers:     h.Intern("handlers"),
		Frame:        h.Intern("frame"),
		Int:          h.Intern("int"),
		Char:         h.Intern("char"),
		Boolean:      h.Intern("boolean"),
		Name:         h.Intern("name"),
		Data:         h.Intern("data"),
		ErrorCode:    h.Intern("errorCode"),
		Class:        h.Intern("class"),
		Instructions: h.Intern("instructions"),
		Literals:     h.Intern("literals"),
		ArgFrame:     h.Intern("argFrame"),
		NumArgs:      h.Intern("numArgs"),
		Entry:        h.Intern("entry"),
		PrintDepth:   h.Intern("printDepth"),
		Vars:         h.Intern("vars"),
		Functions:    h.Intern("functions"),
		Top:          h.Intern("top"),
		Left:         h.Intern("left"),
		Bottom:       h.Intern("bottom"),
		Right:        h.Intern("right"),
	}
}

func asciiUpper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

func foldName(name string) string {
	b := []byte(name)
	for i, c := range b {
		b[i] = asciiUpper(c)
	}
	return string(b)
}

// SymbolHash computes the case-insensitive hash stored in a symbol.
func SymbolHash(name string) uint32 {
	var hash int32
	for i := 0; i < len(name); i++ {
		hash = hash*67 + int32(asciiUpper(name[i])) - 113
	}
	return uint32(hash)
}

// Intern returns the symbol with the given name, creating it if needed.
func (h *Heap) Intern(name string) Value {
	key := foldName(name)
	if sym, ok := h.symbols[key]; ok {
		return sym
	}
	data := make([]byte, 4+len(name)+1)
	binary.BigEndian.PutUint32(data, SymbolHash(name))
	copy(data[4:], name)
	sym := h.alloc(&Object{cls: SymbolClass, data: data})
	h.symbols[key] = sym
	return sym
}

// LookupSymbol returns an existing symbol without creating one.
func (h *Heap) LookupSymbol(name string) (Value, bool) {
	sym, ok := h.symbols[foldName(name)]
	return sym, ok
}

// SymbolName returns the name of a symbol.
func (h *Heap) SymbolName(v Value) (string, error) {
	o, err := h.symbolObject(v)
	if err != nil {
		return "", err
	}
	return string(o.data[4 : len(o.data)-1]), nil
}

func (h *Heap) symbolObject(v Value) (*Object, error) {
	if !v.IsRef() {
		return nil, typeError(ErrNotASymbol, v)
	}
	o, err := h.object(v)
	if err != nil {
		return nil, err
	}
	if !o.isSymbol() || len(o.data) < 5 {
		return nil, typeError(ErrNotASymbol, v)
	}
	return o, nil
}

func (o *Object) symbolHash() uint32 {
	return binary.BigEndian.Uint32(o.data)
}
