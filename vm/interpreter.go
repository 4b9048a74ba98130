package vm

// ---------------------------------------------------------------------------
// callFrame: execution state for one function activation
// ---------------------------------------------------------------------------

type callFrame struct {
	fn       Value
	code     []byte
	ip       int
	locals   int   // stack index of local 0, the first argument
	literals Value // array, or nil
	closure  Value // innermost closure frame, linked by _nextArgFrame
	rcvr     Value
	impl     Value // frame the running method was found in
	tempSize int   // arguments plus declared locals
}

// stackHeadroom is the most any single instruction pushes without going
// through a call, which checks its own needs.
const stackHeadroom = 8

// ---------------------------------------------------------------------------
// Process: stacks and dispatch
// ---------------------------------------------------------------------------

// Process holds the value stack, call stack and handler stack of one
// interpretation. Both stacks are fixed-capacity and full-ascending: sp and
// fp index the most recently pushed entry.
type Process struct {
	vm *VM
	h  *Heap

	stack    []Value
	sp       int
	frames   []callFrame
	fp       int
	handlers *handler

	// natives holds the function and receiver of each running native.
	natives []Value

	underflow bool
}

func (vm *VM) newProcess() *Process {
	return &Process{
		vm:     vm,
		h:      vm.Heap,
		stack:  nilSlots(vm.config.ValueStack),
		sp:     -1,
		frames: make([]callFrame, vm.config.CallStack),
		fp:     -1,
	}
}

// VM returns the VM the process belongs to.
func (p *Process) VM() *VM {
	return p.vm
}

// Heap returns the process's heap.
func (p *Process) Heap() *Heap {
	return p.h
}

func stackOverflow() *Exception {
	return &Exception{Name: ExIntrp, Code: ErrStackOverflow, Data: Nil, Fatal: true}
}

func (p *Process) push(v Value) {
	p.sp++
	p.stack[p.sp] = v
}

func (p *Process) pop() Value {
	if p.sp < 0 {
		p.underflow = true
		return Nil
	}
	v := p.stack[p.sp]
	p.stack[p.sp] = Nil
	p.sp--
	return v
}

func (p *Process) peek(n int) Value {
	if p.sp-n < 0 {
		p.underflow = true
		return Nil
	}
	return p.stack[p.sp-n]
}

// window returns the top n values in push order. It aliases the stack.
func (p *Process) window(n int) []Value {
	if n > p.sp+1 {
		p.underflow = true
		return nil
	}
	return p.stack[p.sp-n+1 : p.sp+1]
}

func (p *Process) drop(n int) {
	if n > p.sp+1 {
		p.underflow = true
		n = p.sp + 1
	}
	for i := p.sp - n + 1; i <= p.sp; i++ {
		p.stack[i] = Nil
	}
	p.sp -= n
}

func (p *Process) pushFrame(cf callFrame) error {
	if p.fp+1 >= len(p.frames) {
		return stackOverflow()
	}
	p.fp++
	p.frames[p.fp] = cf
	return nil
}

// popFrame removes the top call frame along with any handlers it left
// installed.
func (p *Process) popFrame() {
	for p.handlers != nil && p.handlers.fp >= p.fp {
		p.handlers = p.handlers.prev
	}
	p.frames[p.fp] = callFrame{}
	p.fp--
}

// unwind cuts both stacks back to the given depths, clearing what it
// removes.
func (p *Process) unwind(sp, fp int) {
	for p.sp > sp {
		p.stack[p.sp] = Nil
		p.sp--
	}
	for p.fp > fp {
		p.popFrame()
	}
}

// Depth returns the number of active call frames.
func (p *Process) Depth() int {
	return p.fp + 1
}

func (p *Process) literal(f *callFrame, i int) (Value, error) {
	if f.literals == Nil {
		return Nil, intrpError(ErrInvalidBytecode, FromInt(int64(i)))
	}
	v, err := p.h.GetIndex(f.literals, i)
	if err != nil {
		return Nil, intrpError(ErrInvalidBytecode, FromInt(int64(i)))
	}
	return v, nil
}

func (p *Process) localIndex(f *callFrame, i int) (int, error) {
	if i < 0 || i >= f.tempSize {
		return 0, intrpError(ErrInvalidBytecode, FromInt(int64(i)))
	}
	return f.locals + i, nil
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// Apply calls fn with args on this process and returns its result. It may
// be used from a native function. On error both stacks and the handler
// stack are restored to their state on entry.
func (p *Process) Apply(fn Value, args []Value) (Value, error) {
	sp, fp, handlers := p.sp, p.fp, p.handlers
	if p.sp+len(args)+stackHeadroom >= len(p.stack) {
		return Nil, stackOverflow()
	}
	for _, a := range args {
		p.push(a)
	}
	limit := p.fp + 1
	err := p.invoke(fn, len(args), false, Nil, Nil)
	if err == nil && p.fp == limit {
		err = p.interpret(limit)
	}
	if err != nil {
		p.unwind(sp, fp)
		p.handlers = handlers
		return Nil, err
	}
	result := p.pop()
	p.unwind(sp, fp)
	return result, nil
}

// invoke starts a call of fn with nargs arguments on the stack. A native
// runs to completion and leaves its result in place of the arguments; an
// interpreted function gets a new call frame. For sends, rcvr and impl
// are the receiver and the frame the method was found in.
func (p *Process) invoke(fn Value, nargs int, send bool, rcvr, impl Value) error {
	h := p.h
	cls, err := h.functionClass(fn)
	if err != nil {
		return err
	}
	if nargs > p.sp+1 {
		return intrpError(ErrInvalidBytecode, FromInt(int64(nargs)))
	}

	if cls == NativeFunctionClass {
		n, _ := h.GetSlot(fn, h.Sym.NumArgs)
		if !n.IsInt() || int(n.UnsafeInt()) != nargs {
			return intrpError(ErrWrongNumArgs, fn)
		}
		entry, _ := h.GetSlot(fn, h.Sym.Entry)
		nf, err := p.vm.nativeAt(entry)
		if err != nil {
			return err
		}
		if !send {
			rcvr = Nil
		}
		mark := len(p.natives)
		p.natives = append(p.natives, fn, rcvr)
		result, err := nf(p, rcvr, p.window(nargs))
		p.natives = p.natives[:mark]
		if err != nil {
			return err
		}
		p.drop(nargs)
		p.push(result)
		return nil
	}

	f, err := h.decodeFunction(fn)
	if err != nil {
		return err
	}
	if f.numArgs != nargs {
		return intrpError(ErrWrongNumArgs, fn)
	}
	if p.sp+f.numLocals+stackHeadroom >= len(p.stack) {
		return stackOverflow()
	}
	cf := callFrame{
		fn:       fn,
		code:     f.code,
		locals:   p.sp - nargs + 1,
		literals: f.literals,
		tempSize: f.numArgs + f.numLocals,
		closure:  Nil,
	}
	if send {
		cf.rcvr, cf.impl = rcvr, impl
	} else {
		cf.rcvr, cf.impl = Nil, Nil
	}
	if f.argFrame != Nil {
		if cf.closure, err = h.Clone(f.argFrame); err != nil {
			return err
		}
		if send {
			if err := p.bindLink(cf.closure, h.Sym.Parent, rcvr); err != nil {
				return err
			}
			if err := p.bindLink(cf.closure, h.Sym.Implementor, impl); err != nil {
				return err
			}
		} else {
			cf.rcvr, _ = h.GetSlot(f.argFrame, h.Sym.Parent)
			cf.impl, _ = h.GetSlot(f.argFrame, h.Sym.Implementor)
		}
	}
	if err := p.pushFrame(cf); err != nil {
		return err
	}
	for range f.numLocals {
		p.push(Nil)
	}
	return nil
}

// bindLink sets a link slot of a closure frame if the template declares it.
func (p *Process) bindLink(closure, tag, v Value) error {
	ok, err := p.h.HasSlot(closure, tag)
	if err != nil || !ok {
		return err
	}
	return p.h.SetSlot(closure, tag, v)
}

// send looks up name from start and invokes what it finds with rcvr as the
// receiver. A resend searches only the _proto chain. When nothing is found
// the arguments are dropped and false is returned.
func (p *Process) send(rcvr, start, name Value, nargs int, resend bool) (bool, error) {
	var (
		impl, fn Value
		found    bool
		err      error
	)
	if start != Nil {
		if resend {
			impl, fn, found, err = ProtoLookup(p.h, start, name)
		} else {
			impl, fn, found, err = FullLookup(p.h, start, name)
		}
		if err != nil {
			return false, err
		}
	}
	if !found {
		p.drop(nargs)
		return false, nil
	}
	return true, p.invoke(fn, nargs, true, rcvr, impl)
}

// ---------------------------------------------------------------------------
// Interpretation
// ---------------------------------------------------------------------------

// interpret runs until the frame at depth limit returns. Exceptions are
// offered to handlers installed at or above limit; one that none takes is
// returned.
func (p *Process) interpret(limit int) error {
	for {
		err := p.run(limit)
		if err == nil {
			return nil
		}
		p.underflow = false
		ex := AsException(err)
		if !p.handleException(ex, limit) {
			return ex
		}
	}
}

func (p *Process) run(limit int) error {
	h := p.h
	vm := p.vm
	for {
		if p.sp+stackHeadroom >= len(p.stack) {
			return stackOverflow()
		}
		vm.maybeCollect()

		f := &p.frames[p.fp]
		if vm.config.Trace {
			vm.traceInstruction(p, f)
		}
		op, param, next, err := decode(f.code, f.ip)
		if err != nil {
			return err
		}
		vm.profile.Ops[f.code[f.ip]]++
		f.ip = next

		switch op {
		case OpUnary0:
			switch Unary(param) {
			case UnaryPop:
				p.pop()

			case UnaryDup:
				p.push(p.peek(0))

			case UnaryReturn:
				if f.tempSize > 0 {
					result := p.pop()
					p.drop(f.tempSize)
					p.push(result)
				}
				done := p.fp == limit
				p.popFrame()
				if done {
					if p.underflow {
						p.underflow = false
						return intrpError(ErrInvalidBytecode, Nil)
					}
					return nil
				}

			case UnaryPushSelf:
				p.push(f.rcvr)

			case UnarySetLexScope:
				fn, err := p.setLexScope(f, p.pop())
				if err != nil {
					return err
				}
				p.push(fn)

			case UnaryIterNext:
				if err := h.IteratorNext(p.pop()); err != nil {
					return err
				}

			case UnaryIterDone:
				done, err := h.IteratorDone(p.pop())
				if err != nil {
					return err
				}
				p.push(FromBool(done))

			case UnaryPopHandlers:
				if err := p.popHandlers(); err != nil {
					return err
				}

			default:
				return intrpError(ErrInvalidBytecode, FromInt(int64(param)))
			}

		case OpPush:
			v, err := p.literal(f, param)
			if err != nil {
				return err
			}
			p.push(v)

		case OpPushConstant:
			v := Value(int64(param))
			if v.IsRef() {
				return intrpError(ErrInvalidBytecode, Nil)
			}
			p.push(v)

		case OpCall:
			name := p.pop()
			fn, err := vm.GetGlobalFunction(name)
			if err != nil {
				return err
			}
			if fn == Nil {
				return intrpError(ErrUndefinedFunction, name)
			}
			if err := p.invoke(fn, param, false, Nil, Nil); err != nil {
				return err
			}

		case OpInvoke:
			if err := p.invoke(p.pop(), param, false, Nil, Nil); err != nil {
				return err
			}

		case OpSend, OpSendIfDefined:
			name := p.pop()
			rcvr := p.pop()
			ok, err := p.send(rcvr, rcvr, name, param, false)
			if err != nil {
				return err
			}
			if !ok {
				if op == OpSend {
					return intrpError(ErrUndefinedMethod, name)
				}
				p.push(Nil)
			}

		case OpResend, OpResendIfDefined:
			name := p.pop()
			if f.impl == Nil {
				return intrpError(ErrNoProto, name)
			}
			start, err := h.Proto(f.impl)
			if err != nil {
				return err
			}
			ok, err := p.send(f.rcvr, start, name, param, true)
			if err != nil {
				return err
			}
			if !ok {
				if op == OpResend {
					return intrpError(ErrUndefinedMethod, name)
				}
				p.push(Nil)
			}

		case OpBranch:
			f.ip = param

		case OpBranchIfTrue:
			if p.pop().Truthy() {
				f.ip = param
			}

		case OpBranchIfFalse:
			if !p.pop().Truthy() {
				f.ip = param
			}

		case OpFindVar:
			name, err := p.literal(f, param)
			if err != nil {
				return err
			}
			v, err := p.findVar(f, name)
			if err != nil {
				return err
			}
			p.push(v)

		case OpGetVar:
			i, err := p.localIndex(f, param)
			if err != nil {
				return err
			}
			p.push(p.stack[i])

		case OpMakeFrame:
			frame, err := p.makeFrame(p.pop(), param)
			if err != nil {
				return err
			}
			p.push(frame)

		case OpMakeArray:
			cls := p.pop()
			var arr Value
			if param == MakeArrayFromStack {
				n, err := p.pop().Int()
				if err != nil {
					return err
				}
				if arr, err = h.NewArray(cls, int(n)); err != nil {
					return err
				}
			} else {
				arr = h.NewArrayOf(cls, p.window(param)...)
				p.drop(param)
			}
			p.push(arr)

		case OpGetPath:
			path := p.pop()
			obj := p.pop()
			if obj == Nil {
				if param != 0 {
					return frError(ErrPathFailed, path)
				}
				p.push(Nil)
				break
			}
			v, err := h.GetPath(obj, path)
			if err != nil {
				return err
			}
			p.push(v)

		case OpSetPath:
			v := p.pop()
			path := p.pop()
			obj := p.pop()
			if err := h.SetPath(obj, path, v); err != nil {
				return err
			}
			if param == 1 {
				p.push(v)
			}

		case OpSetVar:
			i, err := p.localIndex(f, param)
			if err != nil {
				return err
			}
			p.stack[i] = p.pop()

		case OpFindAndSetVar:
			name, err := p.literal(f, param)
			if err != nil {
				return err
			}
			if err := p.findAndSetVar(f, name, p.pop()); err != nil {
				return err
			}

		case OpIncrVar:
			i, err := p.localIndex(f, param)
			if err != nil {
				return err
			}
			addend, err := p.peek(0).Int()
			if err != nil {
				return err
			}
			cur, err := p.stack[i].Int()
			if err != nil {
				return err
			}
			result := FromInt(cur + addend)
			p.stack[i] = result
			p.push(result)

		case OpBranchIfLoopNotDone:
			taken, err := p.loopNotDone()
			if err != nil {
				return err
			}
			if taken {
				f.ip = param
			}

		case OpFreqFunc:
			if param < len(vm.profile.FreqFuncs) {
				vm.profile.FreqFuncs[param]++
			}
			if err := p.freqFunc(FreqFunc(param)); err != nil {
				return err
			}

		case OpNewHandlers:
			if err := p.newHandlers(param); err != nil {
				return err
			}

		default:
			return intrpError(ErrInvalidBytecode, FromInt(int64(op)))
		}

		if p.underflow {
			p.underflow = false
			return intrpError(ErrInvalidBytecode, Nil)
		}
	}
}

// setLexScope binds a function literal to the current activation: the
// copy's closure template chains to the current closure and captures the
// receiver and implementor.
func (p *Process) setLexScope(f *callFrame, fn Value) (Value, error) {
	h := p.h
	cls, err := h.functionClass(fn)
	if err != nil {
		return Nil, err
	}
	if cls != FunctionClass {
		return Nil, typeError(ErrNotAFunction, fn)
	}
	fn, err = h.Clone(fn)
	if err != nil {
		return Nil, err
	}
	af, err := h.GetSlot(fn, h.Sym.ArgFrame)
	if err != nil {
		return Nil, err
	}
	if af == Nil {
		af, err = h.NewArgFrame()
	} else {
		af, err = h.Clone(af)
	}
	if err != nil {
		return Nil, err
	}
	if err := h.SetSlot(af, h.Sym.NextArgFrame, f.closure); err != nil {
		return Nil, err
	}
	if err := p.bindLink(af, h.Sym.Parent, f.rcvr); err != nil {
		return Nil, err
	}
	if err := p.bindLink(af, h.Sym.Implementor, f.impl); err != nil {
		return Nil, err
	}
	return fn, h.SetSlot(fn, h.Sym.ArgFrame, af)
}

// findVar resolves a free variable: the closure chain, then the receiver's
// inheritance, then the globals.
func (p *Process) findVar(f *callFrame, name Value) (Value, error) {
	h := p.h
	if v, ok, err := h.LexicalLookup(f.closure, name); err != nil || ok {
		return v, err
	}
	if h.IsFrame(f.rcvr) {
		if _, v, ok, err := FullLookup(h, f.rcvr, name); err != nil || ok {
			return v, err
		}
	}
	if v, ok, err := p.vm.GetGlobalVar(name); err != nil || ok {
		return v, err
	}
	return Nil, intrpError(ErrUndefinedVariable, name)
}

// findAndSetVar assigns a free variable in the same order findVar reads
// it. A variable found nowhere becomes a slot of the innermost closure,
// which is created if the activation has none.
func (p *Process) findAndSetVar(f *callFrame, name, v Value) error {
	h := p.h
	if ok, err := h.LexicalAssign(f.closure, name, v); err != nil || ok {
		return err
	}
	if h.IsFrame(f.rcvr) {
		if ok, err := h.Assign(f.rcvr, name, v); err != nil || ok {
			return err
		}
	}
	if ok, err := p.vm.SetGlobalVar(name, v, false); err != nil || ok {
		return err
	}
	if f.closure == Nil {
		closure, err := h.NewArgFrame()
		if err != nil {
			return err
		}
		f.closure = closure
	}
	return h.SetSlot(f.closure, name, v)
}

// makeFrame builds a frame laid out by mapv from the top n stack values.
func (p *Process) makeFrame(mapv Value, n int) (Value, error) {
	h := p.h
	size, err := h.prefixSize(mapv)
	if err != nil {
		return Nil, err
	}
	if size != n {
		return Nil, frError(ErrBadArguments, mapv)
	}
	values := p.window(n)
	frame, err := h.NewFrameWithMap(mapv)
	if err != nil {
		return Nil, err
	}
	o, err := h.frameObject(frame)
	if err != nil {
		return Nil, err
	}
	copy(o.slots, values)
	p.drop(n)
	return frame, nil
}

// loopNotDone pops the limit, index and increment of a counted loop and
// reports whether another iteration is due.
func (p *Process) loopNotDone() (bool, error) {
	limit, err := p.pop().Int()
	if err != nil {
		return false, err
	}
	index, err := p.pop().Int()
	if err != nil {
		return false, err
	}
	incr, err := p.pop().Int()
	if err != nil {
		return false, err
	}
	switch {
	case incr == 0:
		return false, intrpError(ErrZeroForLoopIncr, Nil)
	case incr > 0:
		return index <= limit, nil
	}
	return index >= limit, nil
}
