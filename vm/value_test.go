package vm

import "testing"

// ---------------------------------------------------------------------------
// Integer tests
// ---------------------------------------------------------------------------

func TestIntRoundTrip(t *testing.T) {
	tests := []int64{0, 1, -1, 42, -42, 1 << 40, MaxInt, MinInt}
	for _, n := range tests {
		v := FromInt(n)
		if !v.IsInt() {
			t.Errorf("FromInt(%d).IsInt() = false, want true", n)
			continue
		}
		got, err := v.Int()
		if err != nil || got != n {
			t.Errorf("FromInt(%d).Int() = %d, %v, want %d", n, got, err, n)
		}
	}
}

func TestIntWraps(t *testing.T) {
	got := FromInt(MaxInt + 1).UnsafeInt()
	if got != MinInt {
		t.Errorf("FromInt(MaxInt+1) = %d, want %d", got, MinInt)
	}
}

func TestCheckedInt(t *testing.T) {
	if _, err := CheckedInt(MaxInt); err != nil {
		t.Errorf("CheckedInt(MaxInt) error = %v", err)
	}
	_, err := CheckedInt(MaxInt + 1)
	if !IsError(err, ErrValueOutOfRange) {
		t.Errorf("CheckedInt(MaxInt+1) error = %v, want ValueOutOfRange", err)
	}
}

// ---------------------------------------------------------------------------
// Immediate tests
// ---------------------------------------------------------------------------

func TestImmediateLayout(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want Value
	}{
		{"nil", Nil, 0x2},
		{"true", True, 0x1A},
		{"char A", FromChar('A'), 0x416},
		{"int 5", FromInt(5), 0x14},
	}
	for _, tt := range tests {
		if tt.v != tt.want {
			t.Errorf("%s = %#x, want %#x", tt.name, uint64(tt.v), uint64(tt.want))
		}
	}
}

func TestCharRoundTrip(t *testing.T) {
	for _, r := range []rune{'a', 'Z', 0, 0x263A, 0xFFFF} {
		v := FromChar(r)
		if !v.IsChar() || !v.IsImmediate() {
			t.Errorf("FromChar(%q) is not a character immediate", r)
		}
		got, err := v.Char()
		if err != nil || got != r {
			t.Errorf("FromChar(%q).Char() = %q, %v", r, got, err)
		}
	}
	if _, err := FromInt(3).Char(); !IsError(err, ErrNotACharacter) {
		t.Errorf("Int.Char() error = %v, want NotACharacter", err)
	}
}

func TestPredicates(t *testing.T) {
	if FromBool(false) != Nil || FromBool(true) != True {
		t.Error("FromBool should map to nil and true")
	}
	if Nil.Truthy() {
		t.Error("nil should not be truthy")
	}
	if !FromInt(0).Truthy() {
		t.Error("0 should be truthy")
	}
	if !MagicPointer(7).IsMagic() || MagicPointer(7).MagicIndex() != 7 {
		t.Error("MagicPointer round trip failed")
	}
	if Immediate(0x5555) != SymbolClass {
		t.Errorf("Immediate(0x5555) = %#x, want SymbolClass", uint64(Immediate(0x5555)))
	}
	if _, err := True.Int(); !IsError(err, ErrNotAnInteger) {
		t.Errorf("True.Int() error = %v, want NotAnInteger", err)
	}
}

func TestRefEncoding(t *testing.T) {
	v := makeRef(12345, 77)
	if !v.IsRef() {
		t.Fatal("makeRef is not a reference")
	}
	if v.refIndex() != 12345 || v.refGen() != 77 {
		t.Errorf("makeRef(12345, 77) decodes to %d, %d", v.refIndex(), v.refGen())
	}
}
