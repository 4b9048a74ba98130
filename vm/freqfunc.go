package vm

import "strings"

// ---------------------------------------------------------------------------
// Frequently used functions
// ---------------------------------------------------------------------------

// Arithmetic and comparison are integer-only. Results wrap within 62 bits.
// "/" always produces a real.

func (p *Process) popInts() (a, b int64, err error) {
	bv := p.pop()
	av := p.pop()
	if b, err = bv.Int(); err != nil {
		return 0, 0, err
	}
	if a, err = av.Int(); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func (p *Process) intOp(fn func(a, b int64) Value) error {
	a, b, err := p.popInts()
	if err != nil {
		return err
	}
	p.push(fn(a, b))
	return nil
}

func (p *Process) freqFunc(ff FreqFunc) error {
	h := p.h
	switch ff {
	case FFAdd:
		return p.intOp(func(a, b int64) Value { return FromInt(a + b) })
	case FFSubtract:
		return p.intOp(func(a, b int64) Value { return FromInt(a - b) })
	case FFMultiply:
		return p.intOp(func(a, b int64) Value { return FromInt(a * b) })
	case FFBitAnd:
		return p.intOp(func(a, b int64) Value { return FromInt(a & b) })
	case FFBitOr:
		return p.intOp(func(a, b int64) Value { return FromInt(a | b) })
	case FFLessThan:
		return p.intOp(func(a, b int64) Value { return FromBool(a < b) })
	case FFGreaterThan:
		return p.intOp(func(a, b int64) Value { return FromBool(a > b) })
	case FFLessOrEqual:
		return p.intOp(func(a, b int64) Value { return FromBool(a <= b) })
	case FFGreaterOrEqual:
		return p.intOp(func(a, b int64) Value { return FromBool(a >= b) })

	case FFDivide:
		a, b, err := p.popInts()
		if err != nil {
			return err
		}
		p.push(h.NewReal(float64(a) / float64(b)))

	case FFDiv:
		a, b, err := p.popInts()
		if err != nil {
			return err
		}
		if b == 0 {
			return newError(ExDivByZero, ErrDivideByZero, FromInt(a))
		}
		p.push(FromInt(a / b))

	case FFBitNot:
		a, err := p.pop().Int()
		if err != nil {
			return err
		}
		p.push(FromInt(^a))

	case FFEquals:
		p.push(FromBool(h.EQ(p.pop(), p.pop())))

	case FFNotEquals:
		p.push(FromBool(!h.EQ(p.pop(), p.pop())))

	case FFNot:
		p.push(FromBool(!p.pop().Truthy()))

	case FFARef:
		iv := p.pop()
		obj := p.pop()
		v, err := p.aref(obj, iv)
		if err != nil {
			return err
		}
		p.push(v)

	case FFSetARef:
		elt := p.pop()
		iv := p.pop()
		obj := p.pop()
		if err := p.setARef(obj, iv, elt); err != nil {
			return err
		}
		p.push(elt)

	case FFNewIterator:
		deeply := p.pop()
		obj := p.pop()
		iter, err := h.NewIterator(obj, deeply.Truthy())
		if err != nil {
			return err
		}
		p.push(iter)

	case FFLength:
		obj := p.pop()
		if !obj.IsRef() {
			return typeError(ErrNotAPointer, obj)
		}
		n, err := h.Length(obj)
		if err != nil {
			return err
		}
		p.push(FromInt(int64(n)))

	case FFClone:
		v, err := h.Clone(p.pop())
		if err != nil {
			return err
		}
		p.push(v)

	case FFSetClass:
		cls := p.pop()
		obj := p.pop()
		if err := p.setClass(obj, cls); err != nil {
			return err
		}
		p.push(obj)

	case FFAddArraySlot:
		elt := p.pop()
		arr := p.pop()
		if err := h.AddArraySlot(arr, elt); err != nil {
			return err
		}
		p.push(elt)

	case FFStringer:
		s, err := p.stringer(p.pop())
		if err != nil {
			return err
		}
		p.push(s)

	case FFHasPath:
		path := p.pop()
		obj := p.pop()
		ok, err := h.HasPath(obj, path)
		if err != nil {
			return err
		}
		p.push(FromBool(ok))

	case FFClassOf:
		p.push(p.ClassOf(p.pop()))

	default:
		return intrpError(ErrInvalidBytecode, FromInt(int64(ff)))
	}
	return nil
}

// aref indexes an array by slot or a string by character.
func (p *Process) aref(obj, iv Value) (Value, error) {
	i, err := iv.Int()
	if err != nil {
		return Nil, err
	}
	if p.h.IsString(obj) {
		return p.h.StringCharAt(obj, int(i))
	}
	if !p.h.IsArray(obj) {
		return Nil, typeError(ErrNotAnArray, obj)
	}
	return p.h.GetIndex(obj, int(i))
}

func (p *Process) setARef(obj, iv, elt Value) error {
	i, err := iv.Int()
	if err != nil {
		return err
	}
	if p.h.IsString(obj) {
		return p.h.SetStringCharAt(obj, int(i), elt)
	}
	if !p.h.IsArray(obj) {
		return typeError(ErrNotAnArray, obj)
	}
	return p.h.SetIndex(obj, int(i), elt)
}

// setClass sets the class of a binary or array, or the class slot of a
// frame.
func (p *Process) setClass(obj, cls Value) error {
	if p.h.IsFrame(obj) {
		return p.h.SetSlot(obj, p.h.Sym.Class, cls)
	}
	if !obj.IsRef() {
		return typeError(ErrNotAPointer, obj)
	}
	return p.h.SetClass(obj, cls)
}

// ClassOf returns the class of any value: the class slot of a frame (or
// 'frame when it has none), the class of a binary or array, and a symbol
// naming the kind of an immediate. nil has no class.
func (p *Process) ClassOf(v Value) Value {
	h := p.h
	switch {
	case v.IsInt():
		return h.Sym.Int
	case v.IsChar():
		return h.Sym.Char
	case v == True:
		return h.Sym.Boolean
	case !v.IsRef():
		return Nil
	}
	if h.IsFrame(v) {
		cls, err := h.GetSlot(v, h.Sym.Class)
		if err != nil || cls == Nil {
			return h.Sym.Frame
		}
		return cls
	}
	cls, err := h.Class(v)
	if err != nil {
		return Nil
	}
	return cls
}

// stringer concatenates the display forms of an array's elements into a
// new string, skipping nils.
func (p *Process) stringer(arr Value) (Value, error) {
	elems, err := p.h.Elements(arr)
	if err != nil {
		return Nil, err
	}
	var sb strings.Builder
	for _, v := range elems {
		if v != Nil {
			sb.WriteString(p.vm.Display(v))
		}
	}
	return p.h.NewString(sb.String()), nil
}
