package vm

import (
	"math"
	"testing"
)

// ---------------------------------------------------------------------------
// Symbol tests
// ---------------------------------------------------------------------------

func TestInternCaseInsensitive(t *testing.T) {
	h := NewHeap()
	a := h.Intern("Foo")
	b := h.Intern("FOO")
	c := h.Intern("foo")
	if a != b || b != c {
		t.Errorf("Intern(Foo/FOO/foo) = %v/%v/%v, want one symbol", a, b, c)
	}
	name, err := h.SymbolName(c)
	if err != nil || name != "Foo" {
		t.Errorf("SymbolName() = %q, %v, want %q", name, err, "Foo")
	}
	if h.Intern("bar") == a {
		t.Error("different names interned to the same symbol")
	}
	if _, ok := h.LookupSymbol("nosuchsymbolyet"); ok {
		t.Error("LookupSymbol() found a symbol that was never interned")
	}
}

func TestSymbolHash(t *testing.T) {
	tests := []struct {
		name string
		want int32
	}{
		{"", 0},
		{"A", -48},
		{"ab", -48*67 + 66 - 113},
	}
	for _, tt := range tests {
		if got := SymbolHash(tt.name); got != uint32(tt.want) {
			t.Errorf("SymbolHash(%q) = %d, want %d", tt.name, int32(got), tt.want)
		}
	}
	if SymbolHash("hello") != SymbolHash("HeLLo") {
		t.Error("SymbolHash should ignore case")
	}
}

func TestSymbolPredicates(t *testing.T) {
	h := NewHeap()
	sym := h.Intern("x")
	if !h.IsSymbol(sym) || h.Kind(sym) != KindBinary {
		t.Errorf("symbol Kind() = %v, want binary symbol", h.Kind(sym))
	}
	if h.IsSymbol(h.NewString("x")) {
		t.Error("string reported as symbol")
	}
	if _, err := h.SymbolName(FromInt(1)); !IsError(err, ErrNotASymbol) {
		t.Errorf("SymbolName(1) error = %v, want NotASymbol", err)
	}
}

// ---------------------------------------------------------------------------
// String and real tests
// ---------------------------------------------------------------------------

func TestStrings(t *testing.T) {
	h := NewHeap()
	s := h.NewString("héllo")
	got, err := h.StringValue(s)
	if err != nil || got != "héllo" {
		t.Fatalf("StringValue() = %q, %v, want %q", got, err, "héllo")
	}
	if n, _ := h.StringLength(s); n != 5 {
		t.Errorf("StringLength() = %d, want 5", n)
	}
	if size, _ := h.Length(s); size != 12 {
		t.Errorf("Length() = %d, want 12 (UTF-16 plus terminator)", size)
	}
	c, err := h.StringCharAt(s, 1)
	if err != nil || c != FromChar('é') {
		t.Errorf("StringCharAt(1) = %v, %v, want $é", c, err)
	}
	if err := h.SetStringCharAt(s, 0, FromChar('j')); err != nil {
		t.Fatal(err)
	}
	if err := h.StrAppend(s, h.NewString("!")); err != nil {
		t.Fatal(err)
	}
	if got, _ := h.StringValue(s); got != "jéllo!" {
		t.Errorf("after edits StringValue() = %q, want %q", got, "jéllo!")
	}
	if _, err := h.StringCharAt(s, 6); !IsError(err, ErrOutOfBounds) {
		t.Errorf("StringCharAt(6) error = %v, want OutOfBounds", err)
	}
}

func TestReals(t *testing.T) {
	h := NewHeap()
	for _, f := range []float64{0, 1.5, -2.25, math.Inf(1)} {
		r := h.NewReal(f)
		got, err := h.Real(r)
		if err != nil || got != f {
			t.Errorf("Real(NewReal(%v)) = %v, %v", f, got, err)
		}
	}
	if _, err := h.Real(FromInt(1)); !IsError(err, ErrNotAReal) {
		t.Errorf("Real(1) error = %v, want NotAReal", err)
	}
	if _, err := h.Real(h.NewString("1.0")); !IsError(err, ErrNotAReal) {
		t.Errorf("Real(string) error = %v, want NotAReal", err)
	}
}

// ---------------------------------------------------------------------------
// Object tests
// ---------------------------------------------------------------------------

func TestArrayAccess(t *testing.T) {
	h := NewHeap()
	arr, err := h.NewArray(h.Sym.Array, 3)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := h.GetIndex(arr, 2); v != Nil {
		t.Errorf("new array slot = %v, want nil", v)
	}
	if err := h.SetIndex(arr, 1, FromInt(9)); err != nil {
		t.Fatal(err)
	}
	if v, _ := h.GetIndex(arr, 1); v != FromInt(9) {
		t.Errorf("GetIndex(1) = %v, want 9", v)
	}
	if _, err := h.GetIndex(arr, 3); !IsError(err, ErrOutOfBounds) {
		t.Errorf("GetIndex(3) error = %v, want OutOfBounds", err)
	}
	if err := h.AddArraySlot(arr, True); err != nil {
		t.Fatal(err)
	}
	if n, _ := h.ArrayLength(arr); n != 4 {
		t.Errorf("ArrayLength() = %d, want 4", n)
	}
	if _, err := h.GetIndex(h.NewFrame(), 0); !IsError(err, ErrNotAnArray) {
		t.Errorf("GetIndex(frame) error = %v, want NotAnArray", err)
	}
}

func TestResize(t *testing.T) {
	h := NewHeap()
	arr := h.NewPlainArray(FromInt(1), FromInt(2), FromInt(3))
	if err := h.Resize(arr, 5); err != nil {
		t.Fatal(err)
	}
	elems, _ := h.Elements(arr)
	want := []Value{FromInt(1), FromInt(2), FromInt(3), Nil, Nil}
	if len(elems) != len(want) {
		t.Fatalf("Elements() after grow = %v, want %v", elems, want)
	}
	for i := range want {
		if elems[i] != want[i] {
			t.Errorf("slot %d = %v, want %v", i, elems[i], want[i])
		}
	}
	if err := h.Resize(arr, 1); err != nil {
		t.Fatal(err)
	}
	if n, _ := h.Length(arr); n != 1 {
		t.Errorf("Length() after shrink = %d, want 1", n)
	}

	bin := h.NewBinary(h.Sym.Array, []byte{1, 2})
	if err := h.Resize(bin, 4); err != nil {
		t.Fatal(err)
	}
	data, _ := h.Data(bin)
	if string(data) != "\x01\x02\x00\x00" {
		t.Errorf("Data() after grow = %v, want [1 2 0 0]", data)
	}

	if err := h.Resize(arr, -1); !IsError(err, ErrNegativeSize) {
		t.Errorf("Resize(-1) error = %v, want NegativeSize", err)
	}
	if _, err := h.NewArray(Nil, -1); !IsError(err, ErrNegativeSize) {
		t.Errorf("NewArray(-1) error = %v, want NegativeSize", err)
	}
	if err := h.Resize(h.NewFrame(), 2); !IsError(err, ErrUnexpectedFrame) {
		t.Errorf("Resize(frame) error = %v, want UnexpectedFrame", err)
	}
}

func TestClassOfObjects(t *testing.T) {
	h := NewHeap()
	arr := h.NewPlainArray()
	if cls, _ := h.Class(arr); cls != h.Sym.Array {
		t.Errorf("Class() = %v, want array", cls)
	}
	foo := h.Intern("foo")
	if err := h.SetClass(arr, foo); err != nil {
		t.Fatal(err)
	}
	if cls, _ := h.Class(arr); cls != foo {
		t.Errorf("Class() after SetClass = %v, want foo", cls)
	}
	if _, err := h.Class(h.NewFrame()); !IsError(err, ErrUnexpectedFrame) {
		t.Errorf("Class(frame) error = %v, want UnexpectedFrame", err)
	}
}

func TestReplaceObject(t *testing.T) {
	h := NewHeap()
	a := h.NewPlainArray(FromInt(1))
	b := h.NewPlainArray(FromInt(2))
	holder := h.NewPlainArray(a)

	if err := h.ReplaceObject(a, b); err != nil {
		t.Fatal(err)
	}
	if !h.IsForwarder(a) {
		t.Error("replaced object is not a forwarder")
	}
	if !h.EQ(a, b) {
		t.Error("EQ(old, new) = false after ReplaceObject")
	}
	held, _ := h.GetIndex(holder, 0)
	if v, _ := h.GetIndex(held, 0); v != FromInt(2) {
		t.Errorf("access through old reference = %v, want 2", v)
	}
	if err := h.ReplaceObject(b, a); !IsError(err, ErrSameObject) {
		t.Errorf("ReplaceObject(b, a) error = %v, want SameObject", err)
	}
}

func TestEQ(t *testing.T) {
	h := NewHeap()
	a := h.NewPlainArray()
	tests := []struct {
		name string
		x, y Value
		want bool
	}{
		{"same int", FromInt(3), FromInt(3), true},
		{"different int", FromInt(3), FromInt(4), false},
		{"same ref", a, a, true},
		{"different refs", a, h.NewPlainArray(), false},
		{"nil", Nil, Nil, true},
		{"same symbol", h.Intern("a"), h.Intern("A"), true},
	}
	for _, tt := range tests {
		if got := h.EQ(tt.x, tt.y); got != tt.want {
			t.Errorf("EQ(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
