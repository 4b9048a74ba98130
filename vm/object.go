package vm

// maxSlots bounds the size of any object, in slots or bytes.
const maxSlots = 1<<28 - 1

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

// NewBinary allocates a binary object holding a copy of data.
func (h *Heap) NewBinary(cls Value, data []byte) Value {
	buf := make([]byte, len(data))
	copy(buf, data)
	return h.alloc(&Object{cls: cls, data: buf})
}

// NewBinarySize allocates a zero-filled binary object of size bytes.
func (h *Heap) NewBinarySize(cls Value, size int) (Value, error) {
	if size < 0 {
		return Nil, frError(ErrNegativeSize, FromInt(int64(size)))
	}
	if size > maxSlots {
		return Nil, frError(ErrOutOfBounds, FromInt(int64(size)))
	}
	return h.alloc(&Object{cls: cls, data: make([]byte, size)}), nil
}

// NewArray allocates an array of n nil slots.
func (h *Heap) NewArray(cls Value, n int) (Value, error) {
	if n < 0 {
		return Nil, frError(ErrNegativeSize, FromInt(int64(n)))
	}
	if n > maxSlots {
		return Nil, frError(ErrOutOfBounds, FromInt(int64(n)))
	}
	return h.alloc(&Object{flags: flagSlotted, cls: cls, slots: nilSlots(n)}), nil
}

// NewArrayOf allocates an array holding elems.
func (h *Heap) NewArrayOf(cls Value, elems ...Value) Value {
	slots := make([]Value, len(elems))
	copy(slots, elems)
	return h.alloc(&Object{flags: flagSlotted, cls: cls, slots: slots})
}

// NewPlainArray allocates an array of class array holding elems.
func (h *Heap) NewPlainArray(elems ...Value) Value {
	return h.NewArrayOf(h.Sym.Array, elems...)
}

func nilSlots(n int) []Value {
	slots := make([]Value, n)
	for i := range slots {
		slots[i] = Nil
	}
	return slots
}

// ---------------------------------------------------------------------------
// Typed access
// ---------------------------------------------------------------------------

func (h *Heap) arrayObject(v Value) (*Object, error) {
	o, err := h.object(v)
	if err != nil {
		return nil, err
	}
	if !o.isArray() {
		return nil, typeError(ErrNotAnArray, v)
	}
	return o, nil
}

func (h *Heap) binaryObject(v Value) (*Object, error) {
	o, err := h.object(v)
	if err != nil {
		return nil, err
	}
	if !o.isBinary() {
		return nil, typeError(ErrNotABinary, v)
	}
	return o, nil
}

// GetIndex returns slot i of an array.
func (h *Heap) GetIndex(arr Value, i int) (Value, error) {
	o, err := h.arrayObject(arr)
	if err != nil {
		return Nil, err
	}
	if i < 0 || i >= len(o.slots) {
		return Nil, frError(ErrOutOfBounds, FromInt(int64(i)))
	}
	return o.slots[i], nil
}

// SetIndex stores v into slot i of an array.
func (h *Heap) SetIndex(arr Value, i int, v Value) error {
	o, err := h.arrayObject(arr)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(o.slots) {
		return frError(ErrOutOfBounds, FromInt(int64(i)))
	}
	o.slots[i] = v
	return nil
}

// Elements returns a copy of an array's slots.
func (h *Heap) Elements(arr Value) ([]Value, error) {
	o, err := h.arrayObject(arr)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(o.slots))
	copy(out, o.slots)
	return out, nil
}

// ArrayLength returns the number of slots in an array.
func (h *Heap) ArrayLength(arr Value) (int, error) {
	o, err := h.arrayObject(arr)
	if err != nil {
		return 0, err
	}
	return len(o.slots), nil
}

// AddArraySlot appends v to an array.
func (h *Heap) AddArraySlot(arr Value, v Value) error {
	o, err := h.arrayObject(arr)
	if err != nil {
		return err
	}
	o.slots = append(o.slots, v)
	return nil
}

// Data returns the bytes of a binary object. The slice aliases the object.
func (h *Heap) Data(bin Value) ([]byte, error) {
	o, err := h.binaryObject(bin)
	if err != nil {
		return nil, err
	}
	return o.data, nil
}

// BinaryLength returns the size of a binary object in bytes.
func (h *Heap) BinaryLength(bin Value) (int, error) {
	o, err := h.binaryObject(bin)
	if err != nil {
		return 0, err
	}
	return len(o.data), nil
}

// Class returns the class of a binary or array. Frames have no class slot
// of their own and report UnexpectedFrame.
func (h *Heap) Class(obj Value) (Value, error) {
	o, err := h.object(obj)
	if err != nil {
		return Nil, err
	}
	if o.isFrame() {
		return Nil, typeError(ErrUnexpectedFrame, obj)
	}
	return o.cls, nil
}

// SetClass replaces the class of a binary or array.
func (h *Heap) SetClass(obj, cls Value) error {
	o, err := h.object(obj)
	if err != nil {
		return err
	}
	if o.isFrame() {
		return typeError(ErrUnexpectedFrame, obj)
	}
	o.cls = cls
	return nil
}

// ---------------------------------------------------------------------------
// Size
// ---------------------------------------------------------------------------

// Resize changes the length of an array (in slots) or a binary (in bytes).
// Growing fills arrays with nil and binaries with zero bytes; shrinking
// truncates.
func (h *Heap) Resize(obj Value, n int) error {
	o, err := h.object(obj)
	if err != nil {
		return err
	}
	if n < 0 {
		return frError(ErrNegativeSize, FromInt(int64(n)))
	}
	if n > maxSlots {
		return frError(ErrOutOfBounds, FromInt(int64(n)))
	}
	switch {
	case o.isFrame():
		return typeError(ErrUnexpectedFrame, obj)
	case o.isArray():
		if n <= len(o.slots) {
			clear(o.slots[n:])
			o.slots = o.slots[:n]
			return nil
		}
		for len(o.slots) < n {
			o.slots = append(o.slots, Nil)
		}
	default:
		if n <= len(o.data) {
			o.data = o.data[:n]
			return nil
		}
		o.data = append(o.data, make([]byte, n-len(o.data))...)
	}
	return nil
}

// Length returns the size of any object: bytes for binaries, slots for
// arrays, and occupied slots across the whole map chain for frames.
func (h *Heap) Length(obj Value) (int, error) {
	o, err := h.object(obj)
	if err != nil {
		return 0, err
	}
	switch {
	case o.isFrame():
		return h.frameLength(o)
	case o.isArray():
		return len(o.slots), nil
	}
	return len(o.data), nil
}
