package vm

import (
	"fmt"
	"testing"
)

func newCheckedHeap() *Heap {
	h := NewHeap()
	h.DebugChecks = true
	return h
}

func syms(h *Heap, names ...string) []Value {
	out := make([]Value, len(names))
	for i, n := range names {
		out[i] = h.Intern(n)
	}
	return out
}

func numberedSym(h *Heap, i int) Value {
	return h.Intern(fmt.Sprintf("SYM%d", i))
}

// ---------------------------------------------------------------------------
// Slot access
// ---------------------------------------------------------------------------

func TestSlotRoundTrip(t *testing.T) {
	h := newCheckedHeap()
	f := h.NewFrame()
	a, b := h.Intern("a"), h.Intern("b")

	if err := h.SetSlot(f, a, FromInt(1)); err != nil {
		t.Fatal(err)
	}
	if err := h.SetSlot(f, b, FromInt(2)); err != nil {
		t.Fatal(err)
	}
	if err := h.SetSlot(f, a, FromInt(3)); err != nil {
		t.Fatal(err)
	}
	if v, _ := h.GetSlot(f, a); v != FromInt(3) {
		t.Errorf("GetSlot(a) = %v, want 3", v)
	}
	if v, _ := h.GetSlot(f, h.Intern("B")); v != FromInt(2) {
		t.Errorf("GetSlot(B) = %v, want 2", v)
	}
	if v, _ := h.GetSlot(f, h.Intern("c")); v != Nil {
		t.Errorf("GetSlot(missing) = %v, want nil", v)
	}
	if n, _ := h.Length(f); n != 2 {
		t.Errorf("Length() = %d, want 2", n)
	}
	tags, _ := h.SlotTags(f)
	if len(tags) != 2 || tags[0] != a || tags[1] != b {
		t.Errorf("SlotTags() = %v, want [a b]", tags)
	}
}

func TestSlotTagsMustBeSymbols(t *testing.T) {
	h := NewHeap()
	f := h.NewFrame()
	if err := h.SetSlot(f, FromInt(1), True); !IsError(err, ErrNotASymbol) {
		t.Errorf("SetSlot(int tag) error = %v, want NotASymbol", err)
	}
	if err := h.SetSlot(f, h.NewString("a"), True); !IsError(err, ErrNotASymbol) {
		t.Errorf("SetSlot(string tag) error = %v, want NotASymbol", err)
	}
	if _, err := h.NewMapWithTags([]Value{Nil}, Nil); !IsError(err, ErrNotASymbol) {
		t.Errorf("NewMapWithTags(nil tag) error = %v, want NotASymbol", err)
	}
	if _, err := h.GetSlot(h.NewPlainArray(), h.Intern("a")); !IsError(err, ErrNotAFrame) {
		t.Errorf("GetSlot(array) error = %v, want NotAFrame", err)
	}
}

func TestRemoveSlot(t *testing.T) {
	h := newCheckedHeap()
	a, b, c := h.Intern("a"), h.Intern("b"), h.Intern("c")
	f, err := h.NewFrameWithSlots([]Value{a, b, c}, []Value{FromInt(1), FromInt(2), FromInt(3)})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.RemoveSlot(f, b); err != nil {
		t.Fatal(err)
	}
	if err := h.RemoveSlot(f, h.Intern("missing")); err != nil {
		t.Errorf("RemoveSlot(missing) error = %v", err)
	}
	if ok, _ := h.HasSlot(f, b); ok {
		t.Error("HasSlot(b) = true after removal")
	}
	if v, _ := h.GetSlot(f, c); v != FromInt(3) {
		t.Errorf("GetSlot(c) = %v, want 3", v)
	}
	values, _ := h.FrameValues(f)
	if len(values) != 2 || values[0] != FromInt(1) || values[1] != FromInt(3) {
		t.Errorf("FrameValues() = %v, want [1 3]", values)
	}
}

// ---------------------------------------------------------------------------
// Promotion and table sizing
// ---------------------------------------------------------------------------

func TestPromotionIsTransparent(t *testing.T) {
	h := newCheckedHeap()
	f := h.NewFrame()
	for i := 0; i < 100; i++ {
		if err := h.SetSlot(f, numberedSym(h, i), FromInt(int64(i))); err != nil {
			t.Fatalf("SetSlot(SYM%d) error = %v", i, err)
		}
		for j := 0; j <= i; j++ {
			v, err := h.GetSlot(f, numberedSym(h, j))
			if err != nil || v != FromInt(int64(j)) {
				t.Fatalf("after %d slots GetSlot(SYM%d) = %v, %v, want %d", i+1, j, v, err, j)
			}
		}
	}
	m, _ := h.FrameMap(f)
	mo, _ := h.mapObject(m)
	if !mapIsHashed(mo) {
		t.Error("map not hashed after 100 slots")
	}
	if n, _ := h.Length(f); n != 100 {
		t.Errorf("Length() = %d, want 100", n)
	}
}

func TestPromotionInterleavedWithRemoval(t *testing.T) {
	h := newCheckedHeap()
	f := h.NewFrame()
	present := map[int]bool{}
	for i := 0; i < 200; i++ {
		if err := h.SetSlot(f, numberedSym(h, i), FromInt(int64(i))); err != nil {
			t.Fatal(err)
		}
		present[i] = true
		if i%3 == 2 {
			if err := h.RemoveSlot(f, numberedSym(h, i-1)); err != nil {
				t.Fatal(err)
			}
			delete(present, i-1)
		}
	}
	for i := 0; i < 200; i++ {
		v, _ := h.GetSlot(f, numberedSym(h, i))
		if present[i] && v != FromInt(int64(i)) {
			t.Errorf("GetSlot(SYM%d) = %v, want %d", i, v, i)
		}
		if ok, _ := h.HasSlot(f, numberedSym(h, i)); ok != present[i] {
			t.Errorf("HasSlot(SYM%d) = %v, want %v", i, ok, present[i])
		}
	}
	if n, _ := h.Length(f); n != len(present) {
		t.Errorf("Length() = %d, want %d", n, len(present))
	}
}

func TestShrinkAfterMassRemoval(t *testing.T) {
	h := newCheckedHeap()
	f := h.NewFrame()
	for i := 0; i < 500; i++ {
		if err := h.SetSlot(f, numberedSym(h, i), FromInt(int64(i))); err != nil {
			t.Fatal(err)
		}
	}
	m, _ := h.FrameMap(f)
	mo, _ := h.mapObject(m)
	grown := len(mapTags(mo))

	for i := 100; i < 500; i++ {
		if err := h.RemoveSlot(f, numberedSym(h, i)); err != nil {
			t.Fatalf("RemoveSlot(SYM%d) error = %v", i, err)
		}
	}
	if err := h.CheckFrame(f); err != nil {
		t.Fatalf("CheckFrame() = %v", err)
	}
	for _, i := range []int{7, 42} {
		if v, _ := h.GetSlot(f, numberedSym(h, i)); v != FromInt(int64(i)) {
			t.Errorf("GetSlot(SYM%d) = %v, want %d", i, v, i)
		}
	}
	if ok, _ := h.HasSlot(f, numberedSym(h, 400)); ok {
		t.Error("HasSlot(SYM400) = true after removal")
	}
	if n, _ := h.Length(f); n != 100 {
		t.Errorf("Length() = %d, want 100", n)
	}
	m, _ = h.FrameMap(f)
	mo, _ = h.mapObject(m)
	if shrunk := len(mapTags(mo)); shrunk >= grown || shrunk < promoteSize {
		t.Errorf("table size after removal = %d, want below %d and at least %d", shrunk, grown, promoteSize)
	}
}

func TestTombstonesAreReused(t *testing.T) {
	h := newCheckedHeap()
	f := h.NewFrame()
	for i := 0; i < 40; i++ {
		_ = h.SetSlot(f, numberedSym(h, i), FromInt(int64(i)))
	}
	// Churn a single slot far more times than the table has buckets.
	for round := 0; round < 1000; round++ {
		tag := numberedSym(h, 1000+round%5)
		if err := h.SetSlot(f, tag, True); err != nil {
			t.Fatal(err)
		}
		if err := h.RemoveSlot(f, tag); err != nil {
			t.Fatal(err)
		}
	}
	if n, _ := h.Length(f); n != 40 {
		t.Errorf("Length() = %d, want 40", n)
	}
	if v, _ := h.GetSlot(f, numberedSym(h, 39)); v != FromInt(39) {
		t.Errorf("GetSlot(SYM39) = %v, want 39", v)
	}
}

// ---------------------------------------------------------------------------
// Maps and supermaps
// ---------------------------------------------------------------------------

func TestFindOffsetSentinel(t *testing.T) {
	h := NewHeap()
	tags := syms(h, "a", "b")
	super, _ := h.NewMapWithTags(tags, Nil)
	m, _ := h.NewMapWithTags(syms(h, "c"), super)

	tests := []struct {
		tag   string
		off   int
		found bool
	}{
		{"a", 0, true},
		{"b", 1, true},
		{"c", 2, true},
		{"d", 3, false},
	}
	for _, tt := range tests {
		off, found, err := h.FindOffset(m, h.Intern(tt.tag))
		if err != nil || off != tt.off || found != tt.found {
			t.Errorf("FindOffset(%s) = %d, %v, %v, want %d, %v", tt.tag, off, found, err, tt.off, tt.found)
		}
	}
}

func TestSupermapSlots(t *testing.T) {
	h := newCheckedHeap()
	a, b, c := h.Intern("a"), h.Intern("b"), h.Intern("c")
	super, _ := h.NewMapWithTags([]Value{a, b}, Nil)
	m, _ := h.NewMapWithTags([]Value{c}, super)
	f, err := h.NewFrameWithMap(m)
	if err != nil {
		t.Fatal(err)
	}
	for i, tag := range []Value{a, b, c} {
		if err := h.SetSlot(f, tag, FromInt(int64(i+1))); err != nil {
			t.Fatal(err)
		}
	}
	// Adding a slot goes to the frame's own level, never the supermap.
	d := h.Intern("d")
	if err := h.SetSlot(f, d, FromInt(4)); err != nil {
		t.Fatal(err)
	}
	if superTags, _ := h.MapTags(super); len(superTags) != 2 {
		t.Errorf("supermap tags = %v, want [a b]", superTags)
	}
	tags, _ := h.SlotTags(f)
	want := []Value{a, b, c, d}
	if len(tags) != len(want) {
		t.Fatalf("SlotTags() = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("tag %d = %v, want %v", i, tags[i], want[i])
		}
	}
}

func TestSupermapRemovalFlattens(t *testing.T) {
	h := newCheckedHeap()
	a, b, c := h.Intern("a"), h.Intern("b"), h.Intern("c")
	super, _ := h.NewMapWithTags([]Value{a, b}, Nil)
	m, _ := h.NewMapWithTags([]Value{c}, super)
	f, _ := h.NewFrameWithMap(m)
	sibling, _ := h.NewFrameWithMap(m)
	for i, tag := range []Value{a, b, c} {
		_ = h.SetSlot(f, tag, FromInt(int64(i+1)))
		_ = h.SetSlot(sibling, tag, FromInt(int64(10+i)))
	}

	if err := h.RemoveSlot(f, a); err != nil {
		t.Fatal(err)
	}
	if ok, _ := h.HasSlot(f, a); ok {
		t.Error("HasSlot(a) = true after removal")
	}
	if v, _ := h.GetSlot(f, b); v != FromInt(2) {
		t.Errorf("GetSlot(b) = %v, want 2", v)
	}
	if v, _ := h.GetSlot(f, c); v != FromInt(3) {
		t.Errorf("GetSlot(c) = %v, want 3", v)
	}
	fm, _ := h.FrameMap(f)
	fo, _ := h.mapObject(fm)
	if mapSuper(fo) != Nil {
		t.Error("flattened map still has a supermap")
	}
	if v, _ := h.GetSlot(sibling, a); v != FromInt(10) {
		t.Errorf("sibling GetSlot(a) = %v, want 10", v)
	}
}

// ---------------------------------------------------------------------------
// Shared maps
// ---------------------------------------------------------------------------

func TestSharedMapCopyOnWrite(t *testing.T) {
	h := newCheckedHeap()
	a, b := h.Intern("a"), h.Intern("b")
	m, _ := h.NewMapWithTags([]Value{a}, Nil)
	f1, _ := h.NewFrameWithMap(m)
	f2, _ := h.NewFrameWithMap(m)

	if err := h.SetSlot(f1, b, True); err != nil {
		t.Fatal(err)
	}
	if ok, _ := h.HasSlot(f2, b); ok {
		t.Error("slot added to one frame appeared in a frame sharing its map")
	}
	m1, _ := h.FrameMap(f1)
	m2, _ := h.FrameMap(f2)
	if m1 == m2 {
		t.Error("frame kept the shared map after adding a slot")
	}
	if m2 != m {
		t.Error("untouched frame lost the shared map")
	}
	// Changing a value does not copy the map.
	if err := h.SetSlot(f2, a, FromInt(5)); err != nil {
		t.Fatal(err)
	}
	if m2, _ = h.FrameMap(f2); m2 != m {
		t.Error("setting an existing slot copied the map")
	}
}

func TestHashedMapCopyOnWrite(t *testing.T) {
	h := newCheckedHeap()
	f := h.NewFrame()
	for i := 0; i < 50; i++ {
		_ = h.SetSlot(f, numberedSym(h, i), FromInt(int64(i)))
	}
	g, err := h.Clone(f)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.RemoveSlot(g, numberedSym(h, 3)); err != nil {
		t.Fatal(err)
	}
	if v, _ := h.GetSlot(f, numberedSym(h, 3)); v != FromInt(3) {
		t.Errorf("original GetSlot(SYM3) = %v, want 3", v)
	}
	if ok, _ := h.HasSlot(g, numberedSym(h, 3)); ok {
		t.Error("clone still has SYM3")
	}
	if err := h.CheckFrame(f); err != nil {
		t.Errorf("CheckFrame(original) = %v", err)
	}
}
