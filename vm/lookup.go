package vm

// ---------------------------------------------------------------------------
// Inheritance
// ---------------------------------------------------------------------------

// Inheritor is what method and variable resolution needs from an object
// model: own slots, a prototype link and a lexical parent link.
type Inheritor interface {
	// OwnSlot returns the value of a slot defined directly on obj.
	OwnSlot(obj, name Value) (Value, bool, error)
	// Proto returns the _proto link of obj, or nil.
	Proto(obj Value) (Value, error)
	// Parent returns the _parent link of obj, or nil.
	Parent(obj Value) (Value, error)
}

// OwnSlot implements Inheritor.
func (h *Heap) OwnSlot(obj, name Value) (Value, bool, error) {
	o, err := h.frameObject(obj)
	if err != nil {
		return Nil, false, err
	}
	off, found, err := h.FindOffset(o.cls, name)
	if err != nil || !found {
		return Nil, false, err
	}
	return o.slots[off], true, nil
}

// Proto implements Inheritor.
func (h *Heap) Proto(obj Value) (Value, error) {
	return h.GetSlot(obj, h.Sym.Proto)
}

// Parent implements Inheritor.
func (h *Heap) Parent(obj Value) (Value, error) {
	return h.GetSlot(obj, h.Sym.Parent)
}

// resolve walks the _proto chain from start looking for name. With
// lexical set, once a _proto chain is exhausted the walk continues from
// the _parent of the object that began that chain. It returns the object
// defining the slot and the slot's value.
func resolve(in Inheritor, start, name Value, lexical bool) (where, value Value, found bool, err error) {
	for left := start; left != Nil; {
		for cur := left; cur != Nil; {
			v, ok, err := in.OwnSlot(cur, name)
			if err != nil {
				return Nil, Nil, false, err
			}
			if ok {
				return cur, v, true, nil
			}
			if cur, err = in.Proto(cur); err != nil {
				return Nil, Nil, false, err
			}
		}
		if !lexical {
			break
		}
		var err error
		if left, err = in.Parent(left); err != nil {
			return Nil, Nil, false, err
		}
	}
	return Nil, Nil, false, nil
}

// ProtoLookup finds name along the _proto chain of start.
func ProtoLookup(in Inheritor, start, name Value) (where, value Value, found bool, err error) {
	return resolve(in, start, name, false)
}

// FullLookup finds name along the _proto chains of start and each of its
// _parent ancestors.
func FullLookup(in Inheritor, start, name Value) (where, value Value, found bool, err error) {
	return resolve(in, start, name, true)
}

// Assign stores v in the first _parent ancestor of start (start included)
// whose _proto chain defines name. The slot is written on that ancestor
// itself, shadowing an inherited value.
func (h *Heap) Assign(start, name, v Value) (bool, error) {
	for left := start; left != Nil; {
		_, _, found, err := ProtoLookup(h, left, name)
		if err != nil {
			return false, err
		}
		if found {
			return true, h.SetSlot(left, name, v)
		}
		if left, err = h.Parent(left); err != nil {
			return false, err
		}
	}
	return false, nil
}

// ---------------------------------------------------------------------------
// Lexical scope
// ---------------------------------------------------------------------------

// LexicalLookup finds name in a closure chain linked by _nextArgFrame.
func (h *Heap) LexicalLookup(start, name Value) (Value, bool, error) {
	for cur := start; cur != Nil; {
		v, ok, err := h.OwnSlot(cur, name)
		if err != nil || ok {
			return v, ok, err
		}
		if cur, err = h.GetSlot(cur, h.Sym.NextArgFrame); err != nil {
			return Nil, false, err
		}
	}
	return Nil, false, nil
}

// LexicalAssign stores v in the innermost closure frame defining name.
func (h *Heap) LexicalAssign(start, name, v Value) (bool, error) {
	for cur := start; cur != Nil; {
		_, ok, err := h.OwnSlot(cur, name)
		if err != nil {
			return false, err
		}
		if ok {
			return true, h.SetSlot(cur, name, v)
		}
		if cur, err = h.GetSlot(cur, h.Sym.NextArgFrame); err != nil {
			return false, err
		}
	}
	return false, nil
}
