package vm

// ---------------------------------------------------------------------------
// Handler stack
// ---------------------------------------------------------------------------

// handler is an active handler scope installed by new-handlers. clauses is
// an array of class handlers holding (name symbol, target offset) pairs.
// sp and fp are the stack depths restored when a clause is taken.
type handler struct {
	prev    *handler
	used    bool // a clause of this handler is running
	clauses Value
	sp      int
	fp      int
	ex      *Exception
}

// newHandlers pops n clause pairs and installs a handler for the current
// call frame.
func (p *Process) newHandlers(n int) error {
	if n*2 > p.sp+1 {
		return intrpError(ErrInvalidBytecode, FromInt(int64(n)))
	}
	window := p.stack[p.sp-n*2+1 : p.sp+1]
	clauses := p.h.NewArrayOf(p.h.Sym.Handlers, window...)
	p.drop(n * 2)
	p.handlers = &handler{
		prev:    p.handlers,
		clauses: clauses,
		sp:      p.sp,
		fp:      p.fp,
	}
	return nil
}

// popHandlers removes the innermost handler, which must belong to the
// current call frame.
func (p *Process) popHandlers() error {
	if p.handlers == nil || p.handlers.fp != p.fp {
		return intrpError(ErrInvalidBytecode, Nil)
	}
	p.handlers = p.handlers.prev
	return nil
}

// handleException looks for a handler clause matching ex among handlers
// installed at call depth limit or deeper. Handlers that do not match are
// discarded. On a match the stacks are cut back to the handler's depth and
// execution resumes at the clause target.
func (p *Process) handleException(ex *Exception, limit int) bool {
	if ex.Fatal {
		return false
	}
	for p.handlers != nil && p.handlers.fp >= limit {
		hd := p.handlers
		if !hd.used {
			if target, ok := p.matchClause(hd, ex.Name); ok {
				hd.used = true
				hd.ex = ex
				p.unwind(hd.sp, hd.fp)
				p.frames[p.fp].ip = target
				return true
			}
		}
		p.handlers = hd.prev
	}
	return false
}

func (p *Process) matchClause(hd *handler, name string) (int, bool) {
	clauses, err := p.h.Elements(hd.clauses)
	if err != nil {
		return 0, false
	}
	for i := 0; i+1 < len(clauses); i += 2 {
		pattern, err := p.h.SymbolName(clauses[i])
		if err != nil || !Subexception(name, pattern) {
			continue
		}
		if target := clauses[i+1]; target.IsInt() {
			return int(target.UnsafeInt()), true
		}
	}
	return 0, false
}

// currentException returns the exception being serviced by the innermost
// used handler, or nil.
func (p *Process) currentException() *Exception {
	for hd := p.handlers; hd != nil; hd = hd.prev {
		if hd.used {
			return hd.ex
		}
	}
	return nil
}

// CurrentException returns the exception being handled as a frame with
// name, errorCode (internal failures only) and data slots, or nil when no
// handler clause is running.
func (p *Process) CurrentException() (Value, error) {
	ex := p.currentException()
	if ex == nil {
		return Nil, nil
	}
	h := p.h
	tags := []Value{h.Sym.Name}
	values := []Value{h.Intern(ex.Name)}
	if ex.Code != 0 {
		tags = append(tags, h.Sym.ErrorCode)
		values = append(values, FromInt(int64(ex.Code)))
	}
	tags = append(tags, h.Sym.Data)
	values = append(values, ex.Data)
	return h.NewFrameWithSlots(tags, values)
}
