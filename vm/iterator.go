package vm

// ---------------------------------------------------------------------------
// Iterators
// ---------------------------------------------------------------------------

// An iterator is an array of class iterator. Its slots hold the current
// tag (an index for arrays) and value, the object being walked, the object
// the walk started from, the data offset, and the deep flag. A deep walk
// of a frame continues through its _proto chain, skipping tags a frame
// nearer the start already produced.
const (
	iterTag = iota
	iterValue
	iterObject
	iterRoot
	iterIndex
	iterDeeply
	iterSize
)

// NewIterator creates an iterator positioned on the first slot of an array
// or frame.
func (h *Heap) NewIterator(obj Value, deeply bool) (Value, error) {
	if !obj.IsRef() {
		return Nil, typeError(ErrNotAPointer, obj)
	}
	switch h.Kind(obj) {
	case KindArray, KindFrame:
	default:
		return Nil, typeError(ErrNotAFrameOrArray, obj)
	}
	iter := h.NewArrayOf(h.Sym.Iterator, Nil, Nil, obj, obj, FromInt(0), FromBool(deeply))
	it, err := h.object(iter)
	if err != nil {
		return Nil, err
	}
	if err := h.settle(it); err != nil {
		return Nil, err
	}
	return iter, nil
}

func (h *Heap) iteratorObject(iter Value) (*Object, error) {
	o, err := h.arrayObject(iter)
	if err != nil {
		return nil, err
	}
	if len(o.slots) != iterSize || !h.EQ(o.cls, h.Sym.Iterator) {
		return nil, typeError(ErrBadArguments, iter)
	}
	return o, nil
}

// IteratorDone reports whether the iterator has run past its last slot.
func (h *Heap) IteratorDone(iter Value) (bool, error) {
	it, err := h.iteratorObject(iter)
	if err != nil {
		return false, err
	}
	cur := it.slots[iterObject]
	if !cur.IsRef() {
		return false, typeError(ErrNotAFrameOrArray, cur)
	}
	o, err := h.object(cur)
	if err != nil {
		return false, err
	}
	if o.flags&flagSlotted == 0 {
		return false, typeError(ErrNotAFrameOrArray, cur)
	}
	return int(it.slots[iterIndex].UnsafeInt()) >= len(o.slots), nil
}

// IteratorNext advances the iterator to the next slot.
func (h *Heap) IteratorNext(iter Value) error {
	it, err := h.iteratorObject(iter)
	if err != nil {
		return err
	}
	it.slots[iterIndex] = FromInt(it.slots[iterIndex].UnsafeInt() + 1)
	return h.settle(it)
}

// IteratorTag returns the current tag or index.
func (h *Heap) IteratorTag(iter Value) (Value, error) {
	return h.GetIndex(iter, iterTag)
}

// IteratorValue returns the current value.
func (h *Heap) IteratorValue(iter Value) (Value, error) {
	return h.GetIndex(iter, iterValue)
}

// settle moves the iterator forward from its current offset to the first
// slot that should be produced, filling in the tag and value.
func (h *Heap) settle(it *Object) error {
	deeply := it.slots[iterDeeply].Truthy()
	for {
		cur := it.slots[iterObject]
		o, err := h.object(cur)
		if err != nil {
			return err
		}
		idx := int(it.slots[iterIndex].UnsafeInt())

		if !o.isFrame() {
			if idx < len(o.slots) {
				it.slots[iterTag] = FromInt(int64(idx))
				it.slots[iterValue] = o.slots[idx]
			} else {
				it.slots[iterTag], it.slots[iterValue] = Nil, Nil
			}
			return nil
		}

		for ; idx < len(o.slots); idx++ {
			tag, err := h.mapTagAt(o.cls, idx)
			if err != nil {
				return err
			}
			if tag == Nil {
				continue
			}
			if deeply {
				hidden, err := h.shadowed(it.slots[iterRoot], cur, tag)
				if err != nil {
					return err
				}
				if hidden {
					continue
				}
			}
			it.slots[iterTag] = tag
			it.slots[iterValue] = o.slots[idx]
			it.slots[iterIndex] = FromInt(int64(idx))
			return nil
		}

		it.slots[iterIndex] = FromInt(int64(idx))
		it.slots[iterTag], it.slots[iterValue] = Nil, Nil
		if !deeply {
			return nil
		}
		proto, err := h.GetSlot(cur, h.Sym.Proto)
		if err != nil {
			return err
		}
		if !h.IsFrame(proto) {
			return nil
		}
		it.slots[iterObject] = proto
		it.slots[iterIndex] = FromInt(0)
	}
}

// shadowed reports whether a frame on the _proto chain between root and
// cur (exclusive) defines tag.
func (h *Heap) shadowed(root, cur, tag Value) (bool, error) {
	for f := root; f != Nil && !h.EQ(f, cur); {
		has, err := h.HasSlot(f, tag)
		if err != nil || has {
			return has, err
		}
		if f, err = h.GetSlot(f, h.Sym.Proto); err != nil {
			return false, err
		}
	}
	return false, nil
}
