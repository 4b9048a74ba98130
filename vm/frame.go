package vm

// ---------------------------------------------------------------------------
// Frames
// ---------------------------------------------------------------------------

// NewFrame allocates an empty frame with its own sequential map.
func (h *Heap) NewFrame() Value {
	return h.alloc(&Object{flags: flagSlotted | flagFrame, cls: h.NewMap(Nil)})
}

// NewFrameWithMap allocates a frame laid out by mapv, with every slot nil.
// The map is marked shared: the first slot added or removed copies it.
func (h *Heap) NewFrameWithMap(mapv Value) (Value, error) {
	n, err := h.prefixSize(mapv)
	if err != nil {
		return Nil, err
	}
	if err := h.markShared(mapv); err != nil {
		return Nil, err
	}
	return h.alloc(&Object{flags: flagSlotted | flagFrame, cls: mapv, slots: nilSlots(n)}), nil
}

// NewFrameWithSlots allocates a frame holding tags[i]: values[i].
func (h *Heap) NewFrameWithSlots(tags, values []Value) (Value, error) {
	if len(tags) != len(values) {
		return Nil, frError(ErrBadArguments, Nil)
	}
	f := h.NewFrame()
	for i, tag := range tags {
		if err := h.SetSlot(f, tag, values[i]); err != nil {
			return Nil, err
		}
	}
	return f, nil
}

func (h *Heap) frameObject(v Value) (*Object, error) {
	if !v.IsRef() {
		return nil, typeError(ErrNotAFrame, v)
	}
	o, err := h.object(v)
	if err != nil {
		return nil, err
	}
	if !o.isFrame() {
		return nil, typeError(ErrNotAFrame, v)
	}
	return o, nil
}

// GetSlot returns the value of a frame slot, or nil if the frame has no
// such slot. Only the frame itself is searched, not its _proto chain.
func (h *Heap) GetSlot(frame, tag Value) (Value, error) {
	o, err := h.frameObject(frame)
	if err != nil {
		return Nil, err
	}
	off, found, err := h.FindOffset(o.cls, tag)
	if err != nil || !found {
		return Nil, err
	}
	return o.slots[off], nil
}

// SetSlot stores v in a frame slot, adding the slot if needed.
func (h *Heap) SetSlot(frame, tag, v Value) error {
	o, err := h.frameObject(frame)
	if err != nil {
		return err
	}
	off, found, err := h.FindOffset(o.cls, tag)
	if err != nil {
		return err
	}
	if !found {
		if off, err = h.addSlot(o, tag); err != nil {
			return err
		}
	}
	o.slots[off] = v
	if h.DebugChecks {
		return h.CheckFrame(frame)
	}
	return nil
}

// HasSlot reports whether a frame has a slot named tag.
func (h *Heap) HasSlot(frame, tag Value) (bool, error) {
	o, err := h.frameObject(frame)
	if err != nil {
		return false, err
	}
	_, found, err := h.FindOffset(o.cls, tag)
	return found, err
}

// RemoveSlot removes a frame slot. Removing a missing slot does nothing.
func (h *Heap) RemoveSlot(frame, tag Value) error {
	o, err := h.frameObject(frame)
	if err != nil {
		return err
	}
	if err := h.removeSlot(o, tag); err != nil {
		return err
	}
	if h.DebugChecks {
		return h.CheckFrame(frame)
	}
	return nil
}

func (h *Heap) frameLength(o *Object) (int, error) {
	return h.mapOccupiedChain(o.cls)
}

// ---------------------------------------------------------------------------
// Raw layout access
// ---------------------------------------------------------------------------

// FrameMap returns the map of a frame.
func (h *Heap) FrameMap(frame Value) (Value, error) {
	o, err := h.frameObject(frame)
	if err != nil {
		return Nil, err
	}
	return o.cls, nil
}

// FrameValues returns a copy of a frame's data in map order, including the
// nil data of empty hash buckets.
func (h *Heap) FrameValues(frame Value) ([]Value, error) {
	o, err := h.frameObject(frame)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(o.slots))
	copy(out, o.slots)
	return out, nil
}

// SetFrameValueAt stores v at data offset i of a frame.
func (h *Heap) SetFrameValueAt(frame Value, i int, v Value) error {
	o, err := h.frameObject(frame)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(o.slots) {
		return frError(ErrOutOfBounds, FromInt(int64(i)))
	}
	o.slots[i] = v
	return nil
}

// EachSlot calls fn with every tag and value of a frame in map order,
// supermap slots first, skipping empty and tombstoned hash buckets. It
// stops when fn returns false.
func (h *Heap) EachSlot(frame Value, fn func(tag, v Value) bool) error {
	o, err := h.frameObject(frame)
	if err != nil {
		return err
	}
	return h.walkMap(o.cls, o.slots, fn)
}

// SlotTags returns the tags of a frame in map order.
func (h *Heap) SlotTags(frame Value) ([]Value, error) {
	var tags []Value
	err := h.EachSlot(frame, func(tag, _ Value) bool {
		tags = append(tags, tag)
		return true
	})
	return tags, err
}
