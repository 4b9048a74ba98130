package vm

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

// A path is an integer (array index), a symbol (frame slot), or an array of
// class pathExpr whose elements are integers and symbols applied in order.

// NewPath allocates a path expression.
func (h *Heap) NewPath(elems ...Value) Value {
	return h.NewArrayOf(h.Sym.PathExpr, elems...)
}

func (h *Heap) pathElements(path Value) ([]Value, bool) {
	if !h.IsArray(path) || !h.hasClass(path, h.Sym.PathExpr) {
		return nil, false
	}
	o, err := h.object(path)
	if err != nil {
		return nil, false
	}
	return o.slots, true
}

func (h *Heap) getStep(obj, elt Value) (Value, error) {
	if elt.IsInt() {
		return h.GetIndex(obj, int(elt.UnsafeInt()))
	}
	return h.GetSlot(obj, elt)
}

func (h *Heap) setStep(obj, elt, v Value) error {
	if elt.IsInt() {
		return h.SetIndex(obj, int(elt.UnsafeInt()), v)
	}
	return h.SetSlot(obj, elt, v)
}

// GetPath follows path from obj and returns the value it reaches.
func (h *Heap) GetPath(obj, path Value) (Value, error) {
	if path.IsInt() || h.IsSymbol(path) {
		return h.getStep(obj, path)
	}
	elems, ok := h.pathElements(path)
	if !ok {
		return Nil, typeError(ErrInvalidPath, path)
	}
	cur := obj
	for i, elt := range elems {
		if cur == Nil && i > 0 {
			return Nil, frError(ErrPathFailed, path)
		}
		var err error
		if cur, err = h.getStep(cur, elt); err != nil {
			return Nil, err
		}
	}
	return cur, nil
}

// SetPath follows all but the last element of path from obj and stores v
// at the last one.
func (h *Heap) SetPath(obj, path, v Value) error {
	if path.IsInt() || h.IsSymbol(path) {
		return h.setStep(obj, path, v)
	}
	elems, ok := h.pathElements(path)
	if !ok || len(elems) == 0 {
		return typeError(ErrInvalidPath, path)
	}
	cur := obj
	for i, elt := range elems[:len(elems)-1] {
		if cur == Nil && i > 0 {
			return frError(ErrPathFailed, path)
		}
		var err error
		if cur, err = h.getStep(cur, elt); err != nil {
			return err
		}
	}
	if cur == Nil {
		return frError(ErrPathFailed, path)
	}
	return h.setStep(cur, elems[len(elems)-1], v)
}

// HasPath reports whether every step of path exists from obj. It never
// fails for a missing step, only for a malformed path.
func (h *Heap) HasPath(obj, path Value) (bool, error) {
	if !obj.IsRef() {
		return false, nil
	}
	if path.IsInt() {
		return h.hasStep(obj, path), nil
	}
	if h.IsSymbol(path) {
		return h.hasStep(obj, path), nil
	}
	elems, ok := h.pathElements(path)
	if !ok {
		return false, typeError(ErrInvalidPath, path)
	}
	cur := obj
	for _, elt := range elems {
		if !h.hasStep(cur, elt) {
			return false, nil
		}
		var err error
		if cur, err = h.getStep(cur, elt); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (h *Heap) hasStep(obj, elt Value) bool {
	switch h.Kind(obj) {
	case KindArray:
		if !elt.IsInt() {
			return false
		}
		n, _ := h.ArrayLength(obj)
		i := elt.UnsafeInt()
		return i >= 0 && i < int64(n)
	case KindFrame:
		if !h.IsSymbol(elt) {
			return false
		}
		ok, err := h.HasSlot(obj, elt)
		return err == nil && ok
	}
	return false
}
