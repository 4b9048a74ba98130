package vm

// ---------------------------------------------------------------------------
// Cloning
// ---------------------------------------------------------------------------

// Clone makes a shallow copy of an object. Non-references and symbols are
// returned unchanged. Cloning a frame marks its map shared rather than
// copying it; the clone and the original copy the map on their first
// structural change.
func (h *Heap) Clone(v Value) (Value, error) {
	if !v.IsRef() {
		return v, nil
	}
	o, err := h.object(v)
	if err != nil {
		return Nil, err
	}
	if o.isSymbol() {
		return v, nil
	}
	n := &Object{flags: o.flags, cls: o.cls}
	if o.isFrame() {
		if err := h.markShared(o.cls); err != nil {
			return Nil, err
		}
	}
	if o.flags&flagSlotted != 0 {
		n.slots = make([]Value, len(o.slots))
		copy(n.slots, o.slots)
	} else {
		n.data = make([]byte, len(o.data))
		copy(n.data, o.data)
	}
	return h.alloc(n), nil
}

// DeepClone copies an object graph. Shared substructure stays shared and
// cycles are reproduced among the copies. Symbols are not copied, and
// frames share their maps with the originals.
func (h *Heap) DeepClone(v Value) (Value, error) {
	if !v.IsRef() {
		return v, nil
	}
	return h.deepClone(v, make(map[*Object]Value))
}

func (h *Heap) deepClone(v Value, seen map[*Object]Value) (Value, error) {
	o, err := h.object(v)
	if err != nil {
		return Nil, err
	}
	if o.isSymbol() {
		return v, nil
	}
	if c, ok := seen[o]; ok {
		return c, nil
	}
	c, err := h.Clone(v)
	if err != nil {
		return Nil, err
	}
	// Record the copy before visiting children so cycles end here.
	seen[o] = c

	co, err := h.object(c)
	if err != nil {
		return Nil, err
	}
	if !co.isFrame() && co.cls.IsRef() {
		if co.cls, err = h.deepClone(co.cls, seen); err != nil {
			return Nil, err
		}
	}
	for i, s := range co.slots {
		if !s.IsRef() {
			continue
		}
		if co.slots[i], err = h.deepClone(s, seen); err != nil {
			return Nil, err
		}
	}
	return c, nil
}
