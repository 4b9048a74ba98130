package vm

import "fmt"

// ---------------------------------------------------------------------------
// Built-in native functions
// ---------------------------------------------------------------------------

type nativeDecl struct {
	name    string
	numArgs int
	fn      NativeFunc
}

var builtinNatives = []nativeDecl{
	{"Throw", 2, nativeThrow},
	{"Rethrow", 0, nativeRethrow},
	{"CurrentException", 0, nativeCurrentException},
	{"Print", 1, nativePrint},
	{"BNot", 1, nativeBNot},
	{"DeepClone", 1, nativeDeepClone},
	{"RemoveSlot", 2, nativeRemoveSlot},
	{"HasSlot", 2, nativeHasSlot},
	{"ReplaceObject", 2, nativeReplaceObject},
	{"Apply", 2, nativeApply},
}

func (vm *VM) installNatives() {
	for _, d := range builtinNatives {
		if _, err := vm.DefineNative(d.name, d.numArgs, d.fn); err != nil {
			vm.log.Errorf("installing native %s: %s", d.name, err)
		}
	}
}

// Throw(name, data) raises an exception named by a symbol.
func nativeThrow(p *Process, _ Value, args []Value) (Value, error) {
	name, err := p.h.SymbolName(args[0])
	if err != nil {
		return Nil, err
	}
	return Nil, NewException(name, args[1])
}

// Rethrow() raises the exception being handled again.
func nativeRethrow(p *Process, _ Value, _ []Value) (Value, error) {
	ex := p.currentException()
	if ex == nil {
		return Nil, intrpError(ErrNoCurrentEx, Nil)
	}
	return Nil, ex
}

func nativeCurrentException(p *Process, _ Value, _ []Value) (Value, error) {
	return p.CurrentException()
}

func nativePrint(p *Process, _ Value, args []Value) (Value, error) {
	if _, err := fmt.Fprintln(p.vm.Out, p.vm.Sprint(args[0])); err != nil {
		return Nil, err
	}
	return Nil, nil
}

func nativeBNot(_ *Process, _ Value, args []Value) (Value, error) {
	n, err := args[0].Int()
	if err != nil {
		return Nil, err
	}
	return FromInt(^n), nil
}

func nativeDeepClone(p *Process, _ Value, args []Value) (Value, error) {
	return p.h.DeepClone(args[0])
}

func nativeRemoveSlot(p *Process, _ Value, args []Value) (Value, error) {
	return args[0], p.h.RemoveSlot(args[0], args[1])
}

func nativeHasSlot(p *Process, _ Value, args []Value) (Value, error) {
	ok, err := p.h.HasSlot(args[0], args[1])
	return FromBool(ok), err
}

func nativeReplaceObject(p *Process, _ Value, args []Value) (Value, error) {
	return Nil, p.h.ReplaceObject(args[0], args[1])
}

// Apply(fn, args) calls fn with the elements of an array.
func nativeApply(p *Process, _ Value, args []Value) (Value, error) {
	var elems []Value
	if args[1] != Nil {
		var err error
		if elems, err = p.h.Elements(args[1]); err != nil {
			return Nil, err
		}
	}
	return p.Apply(args[0], elems)
}
