package vm

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// ---------------------------------------------------------------------------
// Printer
// ---------------------------------------------------------------------------

// printer writes the source-like form of values. Objects currently being
// printed are tracked so a cycle prints as a back-reference marker instead
// of recursing; shared but acyclic structure prints in full.
type printer struct {
	h        *Heap
	sb       strings.Builder
	maxDepth int
	depth    int
	active   map[*Object]bool
}

// PrintDepth returns the nesting depth the printer expands: the global
// printDepth when it holds a positive integer, else the configured depth.
func (vm *VM) PrintDepth() int {
	if v, ok, err := vm.GetGlobalVar(vm.Heap.Sym.PrintDepth); err == nil && ok && v.IsInt() && v.UnsafeInt() > 0 {
		return int(v.UnsafeInt())
	}
	return vm.config.MaxPrintDepth
}

// Sprint returns the printed form of v.
func (vm *VM) Sprint(v Value) string {
	return vm.Heap.Sprint(v, vm.PrintDepth())
}

// Fprint writes the printed form of v to w.
func (vm *VM) Fprint(w io.Writer, v Value) error {
	_, err := io.WriteString(w, vm.Sprint(v))
	return err
}

// Sprint returns the printed form of v, expanding objects nested at most
// maxDepth deep.
func (h *Heap) Sprint(v Value, maxDepth int) string {
	pr := &printer{h: h, maxDepth: maxDepth, active: make(map[*Object]bool)}
	pr.value(v)
	return pr.sb.String()
}

func (pr *printer) printf(format string, args ...any) {
	fmt.Fprintf(&pr.sb, format, args...)
}

func (pr *printer) value(v Value) {
	pr.depth++
	defer func() { pr.depth-- }()

	switch v.Tag() {
	case TagInt:
		pr.sb.WriteString(strconv.FormatInt(v.UnsafeInt(), 10))
	case TagImmediate:
		switch {
		case v == Nil:
			pr.sb.WriteString("nil")
		case v == True:
			pr.sb.WriteString("true")
		case v.IsChar():
			pr.sb.WriteByte('$')
			pr.sb.WriteRune(v.UnsafeChar())
		default:
			pr.printf("#%X", uint64(v))
		}
	case TagMagic:
		pr.printf("#%X", uint64(v))
	case TagRef:
		pr.object(v)
	}
}

func (pr *printer) object(v Value) {
	o, err := pr.h.raw(v)
	if err != nil {
		pr.printf("<stale #%X>", v.refIndex())
		return
	}
	if o.flags&flagForwarder != 0 {
		pr.sb.WriteString("-> ")
		pr.value(o.forward)
		return
	}
	if pr.active[o] {
		switch {
		case o.isFrame():
			pr.printf("{#%X}", v.refIndex())
		case o.isArray():
			pr.printf("[#%X]", v.refIndex())
		default:
			pr.printf("<#%X>", v.refIndex())
		}
		return
	}
	pr.active[o] = true
	defer delete(pr.active, o)

	switch {
	case o.isFrame():
		pr.frame(v, o)
	case o.isArray():
		pr.array(v, o)
	default:
		pr.binary(v, o)
	}
}

func (pr *printer) frame(v Value, o *Object) {
	pr.sb.WriteByte('{')
	if pr.depth > pr.maxDepth {
		pr.printf("#%X", v.refIndex())
		pr.sb.WriteByte('}')
		return
	}
	first := true
	err := pr.h.walkMap(o.cls, o.slots, func(tag, val Value) bool {
		if !first {
			pr.sb.WriteString(", ")
		}
		first = false
		pr.value(tag)
		pr.sb.WriteString(": ")
		pr.value(val)
		return true
	})
	if err != nil {
		pr.sb.WriteString("<bad map>")
	}
	pr.sb.WriteByte('}')
}

func (pr *printer) array(v Value, o *Object) {
	if pr.h.EQ(o.cls, pr.h.Sym.PathExpr) {
		for i, elt := range o.slots {
			if i > 0 {
				pr.sb.WriteByte('.')
			}
			pr.value(elt)
		}
		return
	}
	pr.sb.WriteByte('[')
	if pr.depth > pr.maxDepth {
		pr.printf("#%X", v.refIndex())
		pr.sb.WriteByte(']')
		return
	}
	if !pr.h.EQ(o.cls, pr.h.Sym.Array) {
		pr.value(o.cls)
		pr.sb.WriteString(": ")
	}
	for i, elt := range o.slots {
		if i > 0 {
			pr.sb.WriteString(", ")
		}
		pr.value(elt)
	}
	pr.sb.WriteByte(']')
}

func (pr *printer) binary(v Value, o *Object) {
	h := pr.h
	switch {
	case o.isSymbol():
		name, _ := h.SymbolName(v)
		pr.sb.WriteString(name)
	case h.IsReal(v):
		f, err := h.Real(v)
		if err != nil {
			pr.sb.WriteString("<bad real>")
			return
		}
		pr.printf("%f", f)
	case h.IsString(v):
		s, err := h.StringValue(v)
		if err != nil {
			pr.sb.WriteString("<bad string>")
			return
		}
		pr.sb.WriteByte('"')
		for _, r := range s {
			switch {
			case r == '\r':
				pr.sb.WriteString(`\n`)
			case r == '"':
				pr.sb.WriteString(`\"`)
			case unicode.IsPrint(r):
				pr.sb.WriteRune(r)
			default:
				pr.sb.WriteByte('*')
			}
		}
		pr.sb.WriteByte('"')
	default:
		pr.sb.WriteByte('<')
		pr.value(o.cls)
		pr.printf(" %d bytes>", len(o.data))
	}
}

// ---------------------------------------------------------------------------
// Display form
// ---------------------------------------------------------------------------

// Display returns the text a value contributes when converted to a string:
// the contents of strings, the names of symbols, characters themselves, and
// the printed form of anything else.
func (vm *VM) Display(v Value) string {
	h := vm.Heap
	switch {
	case v.IsChar():
		return string(v.UnsafeChar())
	case h.IsString(v):
		s, err := h.StringValue(v)
		if err == nil {
			return s
		}
	case h.IsSymbol(v):
		s, err := h.SymbolName(v)
		if err == nil {
			return s
		}
	}
	return vm.Sprint(v)
}
