package vm

import (
	"bytes"
	"fmt"
	"testing"
)

func TestSprint(t *testing.T) {
	vm := New(Config{})
	h := vm.Heap
	a, b := h.Intern("a"), h.Intern("b")
	frame, _ := h.NewFrameWithSlots([]Value{a, b}, []Value{FromInt(1), h.NewPlainArray(FromInt(2), FromInt(3))})

	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"int", FromInt(-12), "-12"},
		{"nil", Nil, "nil"},
		{"true", True, "true"},
		{"char", FromChar('q'), "$q"},
		{"symbol", h.Intern("Hello"), "Hello"},
		{"real", h.NewReal(1.5), "1.500000"},
		{"string", h.NewString("say \"hi\""), `"say \"hi\""`},
		{"string with return", h.NewString("a\rb"), `"a\nb"`},
		{"frame", frame, "{a: 1, b: [2, 3]}"},
		{"empty frame", h.NewFrame(), "{}"},
		{"classed array", h.NewArrayOf(h.Intern("point"), FromInt(1)), "[point: 1]"},
		{"path", h.NewPath(a, b, FromInt(0)), "a.b.0"},
		{"binary", h.NewBinary(h.Intern("bits"), []byte{1, 2, 3}), "<bits 3 bytes>"},
		{"immediate", SymbolClass, "#55552"},
	}
	for _, tt := range tests {
		if got := vm.Sprint(tt.v); got != tt.want {
			t.Errorf("Sprint(%s) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestSprintCycles(t *testing.T) {
	vm := New(Config{})
	h := vm.Heap
	self := h.Intern("self")
	f := h.NewFrame()
	_ = h.SetSlot(f, self, f)
	want := fmt.Sprintf("{self: {#%X}}", f.refIndex())
	if got := vm.Sprint(f); got != want {
		t.Errorf("Sprint(cycle) = %s, want %s", got, want)
	}

	arr := h.NewPlainArray(Nil)
	_ = h.SetIndex(arr, 0, arr)
	want = fmt.Sprintf("[[#%X]]", arr.refIndex())
	if got := vm.Sprint(arr); got != want {
		t.Errorf("Sprint(array cycle) = %s, want %s", got, want)
	}

	// Shared but acyclic structure prints in full.
	leaf := h.NewPlainArray(FromInt(1))
	if got := vm.Sprint(h.NewPlainArray(leaf, leaf)); got != "[[1], [1]]" {
		t.Errorf("Sprint(shared) = %s, want [[1], [1]]", got)
	}
}

func TestPrintDepth(t *testing.T) {
	vm := New(Config{})
	h := vm.Heap
	inner := h.NewPlainArray(FromInt(1))
	outer, _ := h.NewFrameWithSlots([]Value{h.Intern("x")}, []Value{inner})

	if got := vm.Sprint(outer); got != "{x: [1]}" {
		t.Errorf("Sprint() = %s, want {x: [1]}", got)
	}
	if _, err := vm.SetGlobalVar(h.Sym.PrintDepth, FromInt(1), true); err != nil {
		t.Fatal(err)
	}
	if vm.PrintDepth() != 1 {
		t.Errorf("PrintDepth() = %d, want 1", vm.PrintDepth())
	}
	want := fmt.Sprintf("{x: [#%X]}", inner.refIndex())
	if got := vm.Sprint(outer); got != want {
		t.Errorf("Sprint() at depth 1 = %s, want %s", got, want)
	}
}

func TestSprintForwarderAndStale(t *testing.T) {
	vm := New(Config{})
	h := vm.Heap
	a := h.NewPlainArray(FromInt(1))
	b := h.NewPlainArray(FromInt(2))
	_ = h.ReplaceObject(a, b)
	if got := vm.Sprint(a); got != "-> [2]" {
		t.Errorf("Sprint(forwarder) = %s, want -> [2]", got)
	}

	garbage := h.NewPlainArray()
	vm.Collect()
	want := fmt.Sprintf("<stale #%X>", garbage.refIndex())
	if got := vm.Sprint(garbage); got != want {
		t.Errorf("Sprint(collected) = %s, want %s", got, want)
	}
}

func TestDisplay(t *testing.T) {
	vm := New(Config{})
	h := vm.Heap
	tests := []struct {
		v    Value
		want string
	}{
		{h.NewString("plain"), "plain"},
		{h.Intern("sym"), "sym"},
		{FromChar('z'), "z"},
		{FromInt(4), "4"},
	}
	for _, tt := range tests {
		if got := vm.Display(tt.v); got != tt.want {
			t.Errorf("Display() = %q, want %q", got, tt.want)
		}
	}
}

func TestPrintNative(t *testing.T) {
	vm := New(Config{})
	var buf bytes.Buffer
	vm.Out = &buf
	h := vm.Heap
	a := NewAssembler()
	a.PushLiteral(h.NewPlainArray(FromInt(1), h.NewString("two")))
	a.PushLiteral(h.Intern("Print"))
	a.Emit(OpCall, 1)
	a.Unary(UnaryReturn)
	fn, err := h.NewFunction(a.Bytes(), a.Literals(), 0, 0, Nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := vm.Call(fn); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "[1, \"two\"]\n" {
		t.Errorf("Print output = %q, want %q", got, "[1, \"two\"]\n")
	}
}
