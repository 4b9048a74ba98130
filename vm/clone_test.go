package vm

import "testing"

func TestCloneFrame(t *testing.T) {
	h := newCheckedHeap()
	a, b := h.Intern("a"), h.Intern("b")
	inner := h.NewPlainArray(FromInt(1))
	f, _ := h.NewFrameWithSlots([]Value{a}, []Value{inner})

	g, err := h.Clone(f)
	if err != nil {
		t.Fatal(err)
	}
	if h.EQ(f, g) {
		t.Fatal("Clone() returned the same object")
	}
	fm, _ := h.FrameMap(f)
	gm, _ := h.FrameMap(g)
	if fm != gm {
		t.Error("clone does not share its map with the original")
	}
	if v, _ := h.GetSlot(g, a); v != inner {
		t.Error("shallow clone copied a referenced object")
	}

	if err := h.SetSlot(g, b, True); err != nil {
		t.Fatal(err)
	}
	if ok, _ := h.HasSlot(f, b); ok {
		t.Error("slot added to the clone appeared in the original")
	}
	if err := h.SetSlot(f, a, Nil); err != nil {
		t.Fatal(err)
	}
	if v, _ := h.GetSlot(g, a); v != inner {
		t.Errorf("clone GetSlot(a) = %v after original changed, want the array", v)
	}
}

func TestCloneImmediatesAndSymbols(t *testing.T) {
	h := NewHeap()
	sym := h.Intern("s")
	for _, v := range []Value{FromInt(3), Nil, True, FromChar('x'), sym} {
		c, err := h.Clone(v)
		if err != nil || c != v {
			t.Errorf("Clone(%v) = %v, %v, want the same value", v, c, err)
		}
	}
	s := h.NewString("abc")
	c, _ := h.Clone(s)
	if c == s {
		t.Fatal("Clone(string) returned the same object")
	}
	_ = h.SetStringCharAt(c, 0, FromChar('x'))
	if got, _ := h.StringValue(s); got != "abc" {
		t.Errorf("original string = %q after editing the clone, want %q", got, "abc")
	}
}

func TestDeepCloneSharingAndCycles(t *testing.T) {
	h := newCheckedHeap()
	self, shared := h.Intern("self"), h.Intern("shared")
	other, name := h.Intern("other"), h.Intern("name")

	leaf := h.NewPlainArray(FromInt(7))
	f := h.NewFrame()
	_ = h.SetSlot(f, self, f)
	_ = h.SetSlot(f, shared, leaf)
	_ = h.SetSlot(f, other, leaf)
	_ = h.SetSlot(f, name, name)

	c, err := h.DeepClone(f)
	if err != nil {
		t.Fatal(err)
	}
	if h.EQ(c, f) {
		t.Fatal("DeepClone() returned the original")
	}
	if v, _ := h.GetSlot(c, self); !h.EQ(v, c) {
		t.Error("cycle not reproduced: clone.self is not the clone")
	}
	s1, _ := h.GetSlot(c, shared)
	s2, _ := h.GetSlot(c, other)
	if h.EQ(s1, leaf) {
		t.Error("referenced array was not copied")
	}
	if !h.EQ(s1, s2) {
		t.Error("shared substructure was copied twice")
	}
	if v, _ := h.GetSlot(c, name); v != name {
		t.Error("symbol was copied")
	}
	_ = h.SetIndex(s1, 0, FromInt(8))
	if v, _ := h.GetIndex(leaf, 0); v != FromInt(7) {
		t.Errorf("original leaf = %v after editing the copy, want 7", v)
	}
}
