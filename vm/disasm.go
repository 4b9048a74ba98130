package vm

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// FormatInstruction formats the instruction at ip and returns the offset
// of the next one.
func (vm *VM) FormatInstruction(code []byte, ip int, literals []Value) (string, int, error) {
	op, b, next, err := decode(code, ip)
	if err != nil {
		return "", next, err
	}
	var text string
	switch op {
	case OpUnary0:
		text = Unary(b).String()
	case OpPushConstant:
		text = fmt.Sprintf("%s <%s>", op, vm.Sprint(Value(int64(b))))
	case OpPush, OpFindVar, OpFindAndSetVar:
		if b < len(literals) {
			text = fmt.Sprintf("%s <%s>", op, vm.Sprint(literals[b]))
		} else {
			text = fmt.Sprintf("%s %d <bad literal>", op, b)
		}
	case OpFreqFunc:
		text = FreqFunc(b).String()
	default:
		text = fmt.Sprintf("%s %d", op, b)
	}
	return fmt.Sprintf("%04d  %s", ip, text), next, nil
}

// DisassembleCode returns a listing of code, one instruction per line.
func (vm *VM) DisassembleCode(code []byte, literals []Value) (string, error) {
	var lines []string
	for ip := 0; ip < len(code); {
		line, next, err := vm.FormatInstruction(code, ip, literals)
		if err != nil {
			return strings.Join(lines, "\n"), err
		}
		lines = append(lines, line)
		ip = next
	}
	return strings.Join(lines, "\n"), nil
}

// Disassemble returns a listing of an interpreted function.
func (vm *VM) Disassemble(fn Value) (string, error) {
	cls, err := vm.Heap.functionClass(fn)
	if err != nil {
		return "", err
	}
	if cls == NativeFunctionClass {
		entry, _ := vm.Heap.GetSlot(fn, vm.Heap.Sym.Entry)
		if i := entry.UnsafeInt(); entry.IsInt() && i >= 0 && i < int64(len(vm.natives)) {
			return "native " + vm.natives[i].name, nil
		}
		return "native", nil
	}
	f, err := vm.Heap.decodeFunction(fn)
	if err != nil {
		return "", err
	}
	var literals []Value
	if f.literals != Nil {
		if literals, err = vm.Heap.Elements(f.literals); err != nil {
			return "", err
		}
	}
	return vm.DisassembleCode(f.code, literals)
}

// traceInstruction logs the instruction about to run with the top of the
// value stack.
func (vm *VM) traceInstruction(p *Process, f *callFrame) {
	if !vm.log.AllowLevel(commonlog.Debug) {
		return
	}
	var literals []Value
	if f.literals != Nil {
		literals, _ = vm.Heap.Elements(f.literals)
	}
	text, _, err := vm.FormatInstruction(f.code, f.ip, literals)
	if err != nil {
		text = err.Error()
	}
	var stack []string
	for i := max(0, p.sp-5); i <= p.sp; i++ {
		stack = append(stack, vm.Heap.Sprint(p.stack[i], 1))
	}
	vm.log.Debugf("[%d] %s | %s", p.fp, text, strings.Join(stack, " "))
}

// ---------------------------------------------------------------------------
// Instruction profile
// ---------------------------------------------------------------------------

// Profile counts executed instructions by instruction byte and
// freq-func calls by function.
type Profile struct {
	Ops       [256]uint64
	FreqFuncs [32]uint64
}

// InstructionCounts returns the profile gathered since the VM was created
// or the profile was last reset.
func (vm *VM) InstructionCounts() Profile {
	return vm.profile
}

// ResetInstructionCounts clears the profile.
func (vm *VM) ResetInstructionCounts() {
	vm.profile = Profile{}
}

// Total returns the number of instructions executed.
func (pr *Profile) Total() uint64 {
	var n uint64
	for _, c := range pr.Ops {
		n += c
	}
	return n
}

// String formats the profile as a table: unary operations, then each
// opcode with a column per B field, then the freq-funcs.
func (pr *Profile) String() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 8, 1, ' ', tabwriter.AlignRight)
	for u := UnaryPop; u <= UnaryPopHandlers; u++ {
		fmt.Fprintf(w, "%s\t%d\t\n", u, pr.Ops[Instr(OpUnary0, int(u))])
	}
	for op := OpPush; op <= OpNewHandlers; op++ {
		fmt.Fprintf(w, "%s\t", op)
		for b := 0; b <= 7; b++ {
			fmt.Fprintf(w, "%d\t", pr.Ops[Instr(op, b)])
		}
		fmt.Fprintln(w)
	}
	for ff := FFAdd; ff < numFreqFuncs; ff++ {
		fmt.Fprintf(w, "%s\t%d\t\n", ff, pr.FreqFuncs[ff])
	}
	w.Flush()
	return sb.String()
}
