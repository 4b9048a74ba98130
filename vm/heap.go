package vm

// ---------------------------------------------------------------------------
// Objects
// ---------------------------------------------------------------------------

// Object header flags. They are fixed at allocation; only ReplaceObject
// rewrites them, turning the object into a forwarder.
const (
	flagSlotted   = 1
	flagFrame     = 2
	flagForwarder = 4
)

// Object is a heap object. Binaries hold bytes, arrays and frames hold
// slots. A frame keeps its map where binaries and arrays keep their class.
type Object struct {
	flags   uint8
	marked  bool
	cls     Value // class, or the map of a frame
	data    []byte
	slots   []Value
	forward Value // replacement, for forwarders
}

func (o *Object) isFrame() bool {
	return o.flags&(flagSlotted|flagFrame) == flagSlotted|flagFrame
}

func (o *Object) isArray() bool {
	return o.flags&(flagSlotted|flagFrame) == flagSlotted
}

func (o *Object) isBinary() bool {
	return o.flags&(flagSlotted|flagForwarder) == 0
}

func (o *Object) isSymbol() bool {
	return o.isBinary() && o.cls == SymbolClass
}

// Special classes. They are immediates so that no heap object is needed to
// recognize symbols and functions.
const (
	FunctionClass       Value = 0x3<<4 | TagImmediate    // 0x32
	NativeFunctionClass Value = 0x4<<4 | TagImmediate    // 0x42
	SymbolClass         Value = 0x5555<<4 | TagImmediate // 0x55552
)

// Kind classifies the object a value refers to.
type Kind int

const (
	KindImmediate Kind = iota
	KindBinary
	KindArray
	KindFrame
)

func (k Kind) String() string {
	switch k {
	case KindBinary:
		return "binary"
	case KindArray:
		return "array"
	case KindFrame:
		return "frame"
	}
	return "immediate"
}

// ---------------------------------------------------------------------------
// Heap
// ---------------------------------------------------------------------------

// Heap is an arena of objects addressed by generational handles. Handle 0
// is reserved; a freed handle is reused with a bumped generation, so stale
// references are detected instead of aliasing a new object.
type Heap struct {
	objects []*Object
	gens    []uint32
	free    []uint32
	live    int
	allocs  int // allocations since the last collection

	symbols map[string]Value // upper-cased name -> symbol
	pins    map[Value]int

	// Sym holds the predefined symbols.
	Sym Symbols

	// DebugChecks runs CheckFrame after every slot addition and removal.
	DebugChecks bool
}

// NewHeap creates a heap with the predefined symbols interned.
func NewHeap() *Heap {
	h := &Heap{
		objects: make([]*Object, 1, 1024),
		gens:    make([]uint32, 1, 1024),
		symbols: make(map[string]Value),
		pins:    make(map[Value]int),
	}
	h.Sym = newSymbols(h)
	return h
}

func (h *Heap) alloc(o *Object) Value {
	var idx uint32
	if n := len(h.free); n > 0 {
		idx = h.free[n-1]
		h.free = h.free[:n-1]
	} else {
		idx = uint32(len(h.objects))
		h.objects = append(h.objects, nil)
		h.gens = append(h.gens, 0)
	}
	h.objects[idx] = o
	h.live++
	h.allocs++
	return makeRef(idx, h.gens[idx])
}

// raw returns the object v names without following forwarders.
func (h *Heap) raw(v Value) (*Object, error) {
	if !v.IsRef() {
		return nil, typeError(ErrNotAPointer, v)
	}
	idx := v.refIndex()
	if idx == 0 || int(idx) >= len(h.objects) || h.objects[idx] == nil ||
		h.gens[idx]&refGenMask != v.refGen() {
		return nil, frError(ErrInternal, Nil)
	}
	return h.objects[idx], nil
}

// object returns the object v refers to, following forwarders.
func (h *Heap) object(v Value) (*Object, error) {
	o, err := h.raw(v)
	for err == nil && o.flags&flagForwarder != 0 {
		o, err = h.raw(o.forward)
	}
	return o, err
}

// Resolve follows forwarders and returns the reference to the object v
// finally denotes. Non-references are returned unchanged.
func (h *Heap) Resolve(v Value) (Value, error) {
	if !v.IsRef() {
		return v, nil
	}
	for {
		o, err := h.raw(v)
		if err != nil {
			return Nil, err
		}
		if o.flags&flagForwarder == 0 {
			return v, nil
		}
		v = o.forward
	}
}

// EQ reports whether a and b are the same value. References are equal when
// they resolve to the same object; everything else compares by value.
func (h *Heap) EQ(a, b Value) bool {
	if a == b {
		return true
	}
	if !a.IsRef() || !b.IsRef() {
		return false
	}
	oa, err := h.object(a)
	if err != nil {
		return false
	}
	ob, err := h.object(b)
	if err != nil {
		return false
	}
	return oa == ob
}

// Live returns the number of allocated objects.
func (h *Heap) Live() int {
	return h.live
}

// Pin keeps v alive across collections until a matching Unpin.
func (h *Heap) Pin(v Value) {
	if v.IsRef() {
		h.pins[v]++
	}
}

// Unpin releases a Pin.
func (h *Heap) Unpin(v Value) {
	if n := h.pins[v]; n > 1 {
		h.pins[v] = n - 1
	} else {
		delete(h.pins, v)
	}
}

// ---------------------------------------------------------------------------
// Type predicates
// ---------------------------------------------------------------------------

// Kind returns what kind of object v refers to. Immediates, integers, magic
// pointers and dangling references report KindImmediate.
func (h *Heap) Kind(v Value) Kind {
	if !v.IsRef() {
		return KindImmediate
	}
	o, err := h.object(v)
	if err != nil {
		return KindImmediate
	}
	switch {
	case o.isFrame():
		return KindFrame
	case o.isArray():
		return KindArray
	}
	return KindBinary
}

// IsBinary returns true if v refers to a binary object.
func (h *Heap) IsBinary(v Value) bool {
	return h.Kind(v) == KindBinary
}

// IsArray returns true if v refers to an array.
func (h *Heap) IsArray(v Value) bool {
	return h.Kind(v) == KindArray
}

// IsFrame returns true if v refers to a frame.
func (h *Heap) IsFrame(v Value) bool {
	return h.Kind(v) == KindFrame
}

// IsSymbol returns true if v refers to a symbol.
func (h *Heap) IsSymbol(v Value) bool {
	if !v.IsRef() {
		return false
	}
	o, err := h.object(v)
	return err == nil && o.isSymbol()
}

// IsForwarder returns true if v itself (before following) is a forwarder.
func (h *Heap) IsForwarder(v Value) bool {
	o, err := h.raw(v)
	return err == nil && o.flags&flagForwarder != 0
}

func (h *Heap) hasClass(v, cls Value) bool {
	if !v.IsRef() {
		return false
	}
	o, err := h.object(v)
	return err == nil && !o.isFrame() && h.EQ(o.cls, cls)
}

// IsString returns true if v is a binary of class string.
func (h *Heap) IsString(v Value) bool {
	return h.IsBinary(v) && h.hasClass(v, h.Sym.String)
}

// IsReal returns true if v is a binary of class real.
func (h *Heap) IsReal(v Value) bool {
	return h.IsBinary(v) && h.hasClass(v, h.Sym.Real)
}

// ---------------------------------------------------------------------------
// Forwarding
// ---------------------------------------------------------------------------

// ReplaceObject turns oldObj into a forwarder to newObj, so every existing
// reference to oldObj now reaches newObj.
func (h *Heap) ReplaceObject(oldObj, newObj Value) error {
	po, err := h.object(oldObj)
	if err != nil {
		return err
	}
	pn, err := h.object(newObj)
	if err != nil {
		return err
	}
	if po == pn {
		return frError(ErrSameObject, oldObj)
	}
	target, err := h.Resolve(newObj)
	if err != nil {
		return err
	}
	po.flags = flagForwarder
	po.cls = Nil
	po.data = nil
	po.slots = nil
	po.forward = target
	return nil
}
