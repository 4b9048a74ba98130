package vm

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// An interpreted function is a frame:
//
//	{class: FunctionClass, instructions, literals, argFrame, numArgs}
//
// numArgs packs the argument count in the low 16 bits and the count of
// extra locals above them. argFrame, when present, is the closure template
// cloned for every activation; its _nextArgFrame, _parent and _implementor
// slots link the enclosing scope, receiver and implementor.
//
// A native function is a frame {class: NativeFunctionClass, entry, numArgs}
// whose entry indexes the VM's native registry.

// NativeFunc is the Go implementation of a native function. args aliases
// the value stack and is only valid during the call.
type NativeFunc func(p *Process, rcvr Value, args []Value) (Value, error)

// PackNumArgs combines an argument and local count.
func PackNumArgs(args, locals int) Value {
	return FromInt(int64(args&0xFFFF | locals<<16))
}

// NewFunction allocates an interpreted function. literals may be nil and
// argFrame may be Nil.
func (h *Heap) NewFunction(code []byte, literals []Value, numArgs, numLocals int, argFrame Value) (Value, error) {
	if numArgs < 0 || numArgs > 0xFFFF || numLocals < 0 || numLocals > 0xFFFF {
		return Nil, frError(ErrValueOutOfRange, FromInt(int64(numArgs)))
	}
	lits := Nil
	if literals != nil {
		lits = h.NewPlainArray(literals...)
	}
	return h.NewFrameWithSlots(
		[]Value{h.Sym.Class, h.Sym.Instructions, h.Sym.Literals, h.Sym.ArgFrame, h.Sym.NumArgs},
		[]Value{FunctionClass, h.NewBinary(h.Sym.Instructions, code), lits, argFrame, PackNumArgs(numArgs, numLocals)},
	)
}

// NewArgFrame allocates a closure template holding the three link slots
// followed by a nil slot for each name.
func (h *Heap) NewArgFrame(names ...Value) (Value, error) {
	tags := append([]Value{h.Sym.NextArgFrame, h.Sym.Parent, h.Sym.Implementor}, names...)
	return h.NewFrameWithSlots(tags, nilSlots(len(tags)))
}

// IsFunction reports whether v is an interpreted or native function.
func (h *Heap) IsFunction(v Value) bool {
	if !h.IsFrame(v) {
		return false
	}
	cls, err := h.GetSlot(v, h.Sym.Class)
	return err == nil && (cls == FunctionClass || cls == NativeFunctionClass)
}

// function is the decoded form of an interpreted function.
type function struct {
	code      []byte
	literals  Value
	argFrame  Value
	numArgs   int
	numLocals int
}

func (h *Heap) decodeFunction(fn Value) (*function, error) {
	get := func(tag Value) Value {
		v, _ := h.GetSlot(fn, tag)
		return v
	}
	instrs := get(h.Sym.Instructions)
	code, err := h.Data(instrs)
	if err != nil {
		return nil, typeError(ErrNotAFunction, fn)
	}
	n := get(h.Sym.NumArgs)
	if !n.IsInt() {
		return nil, typeError(ErrNotAFunction, fn)
	}
	packed := uint32(n.UnsafeInt())
	f := &function{
		code:      code,
		literals:  get(h.Sym.Literals),
		argFrame:  get(h.Sym.ArgFrame),
		numArgs:   int(packed & 0xFFFF),
		numLocals: int(packed >> 16),
	}
	if f.literals != Nil && !h.IsArray(f.literals) {
		return nil, typeError(ErrNotAFunction, fn)
	}
	if f.argFrame != Nil && !h.IsFrame(f.argFrame) {
		return nil, typeError(ErrNotAFunction, fn)
	}
	return f, nil
}

// functionClass returns FunctionClass or NativeFunctionClass for a
// function, or NotAFunction.
func (h *Heap) functionClass(fn Value) (Value, error) {
	if !h.IsFrame(fn) {
		return Nil, typeError(ErrNotAFunction, fn)
	}
	cls, err := h.GetSlot(fn, h.Sym.Class)
	if err != nil {
		return Nil, err
	}
	if cls != FunctionClass && cls != NativeFunctionClass {
		return Nil, typeError(ErrNotAFunction, fn)
	}
	return cls, nil
}
