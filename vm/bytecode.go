package vm

import "fmt"

// ---------------------------------------------------------------------------
// Instruction encoding
// ---------------------------------------------------------------------------

// An instruction is one byte: the top five bits select the operation (the
// A field) and the low three bits carry its parameter (the B field). A B
// field of 7 means the parameter is in the following two bytes, big-endian.
// The parameter of push-constant is signed; all others are unsigned.

// Opcode is the A field of an instruction.
type Opcode byte

const (
	OpUnary0 Opcode = iota
	OpUnary1
	OpUnary2
	OpPush
	OpPushConstant
	OpCall
	OpInvoke
	OpSend
	OpSendIfDefined
	OpResend
	OpResendIfDefined
	OpBranch
	OpBranchIfTrue
	OpBranchIfFalse
	OpFindVar
	OpGetVar
	OpMakeFrame
	OpMakeArray
	OpGetPath
	OpSetPath
	OpSetVar
	OpFindAndSetVar
	OpIncrVar
	OpBranchIfLoopNotDone
	OpFreqFunc
	OpNewHandlers
	OpUnused26
	OpUnused27
	OpUnused28
	OpUnused29
	OpUnused30
	OpUnused31
)

// Unary is the parameter of an OpUnary0 instruction.
type Unary int

const (
	UnaryPop Unary = iota
	UnaryDup
	UnaryReturn
	UnaryPushSelf
	UnarySetLexScope
	UnaryIterNext
	UnaryIterDone
	UnaryPopHandlers
)

// FreqFunc is the parameter of an OpFreqFunc instruction.
type FreqFunc int

const (
	FFAdd FreqFunc = iota
	FFSubtract
	FFARef
	FFSetARef
	FFEquals
	FFNot
	FFNotEquals
	FFMultiply
	FFDivide
	FFDiv
	FFLessThan
	FFGreaterThan
	FFGreaterOrEqual
	FFLessOrEqual
	FFBitAnd
	FFBitOr
	FFBitNot
	FFNewIterator
	FFLength
	FFClone
	FFSetClass
	FFAddArraySlot
	FFStringer
	FFHasPath
	FFClassOf

	numFreqFuncs
)

// MakeArrayFromStack is the make-array parameter that takes the size from
// the stack instead of collecting elements.
const MakeArrayFromStack = 0xFFFF

// Instr builds an instruction byte.
func Instr(op Opcode, b int) byte {
	return byte(op)<<3 | byte(b&7)
}

// ---------------------------------------------------------------------------
// Names
// ---------------------------------------------------------------------------

var opNames = [...]string{
	"unary0", "unary1", "unary2", "push", "push-constant", "call", "invoke",
	"send", "send-if-defined", "resend", "resend-if-defined", "branch",
	"branch-if-true", "branch-if-false", "find-var", "get-var", "make-frame",
	"make-array", "get-path", "set-path", "set-var", "find-and-set-var",
	"incr-var", "branch-if-loop-not-done", "freq-func", "new-handlers",
	"unused26", "unused27", "unused28", "unused29", "unused30", "unused31",
}

var unaryNames = [...]string{
	"pop", "dup", "return", "push-self", "set-lex-scope", "iter-next",
	"iter-done", "pop-handlers",
}

var freqFuncNames = [...]string{
	"+", "-", "ARef", "SetARef", "=", "not", "<>", "*", "/", "div", "<", ">",
	">=", "<=", "BAnd", "BOr", "BNot", "NewIterator", "Length", "Clone",
	"SetClass", "AddArraySlot", "Stringer", "HasPath", "ClassOf",
}

func (op Opcode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("op%d", int(op))
}

func (u Unary) String() string {
	if u >= 0 && int(u) < len(unaryNames) {
		return unaryNames[u]
	}
	return fmt.Sprintf("unary0 %d", int(u))
}

func (f FreqFunc) String() string {
	if f >= 0 && int(f) < len(freqFuncNames) {
		return freqFuncNames[f]
	}
	return fmt.Sprintf("freq-func %d", int(f))
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// decode reads the instruction at ip and returns its opcode, parameter and
// the offset of the next instruction.
func decode(code []byte, ip int) (Opcode, int, int, error) {
	if ip < 0 || ip >= len(code) {
		return 0, 0, ip, intrpError(ErrInvalidBytecode, FromInt(int64(ip)))
	}
	op := Opcode(code[ip] >> 3)
	b := int(code[ip] & 7)
	ip++
	if b == 7 {
		if ip+2 > len(code) {
			return 0, 0, ip, intrpError(ErrInvalidBytecode, FromInt(int64(ip)))
		}
		if op == OpPushConstant {
			b = int(int16(uint16(code[ip])<<8 | uint16(code[ip+1])))
		} else {
			b = int(code[ip])<<8 | int(code[ip+1])
		}
		ip += 2
	}
	return op, b, ip, nil
}

// ---------------------------------------------------------------------------
// Assembler: helper for constructing bytecode
// ---------------------------------------------------------------------------

// Assembler builds an instruction sequence and its literal pool.
type Assembler struct {
	code     []byte
	literals []Value
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{code: make([]byte, 0, 64)}
}

// Bytes returns the assembled instructions.
func (a *Assembler) Bytes() []byte {
	return a.code
}

// Literals returns the literal pool.
func (a *Assembler) Literals() []Value {
	return a.literals
}

// Len returns the current offset.
func (a *Assembler) Len() int {
	return len(a.code)
}

// Literal adds v to the literal pool, reusing an identical entry, and
// returns its index.
func (a *Assembler) Literal(v Value) int {
	for i, lit := range a.literals {
		if lit == v {
			return i
		}
	}
	a.literals = append(a.literals, v)
	return len(a.literals) - 1
}

// Emit appends op with parameter b, using the short form when it fits.
func (a *Assembler) Emit(op Opcode, b int) {
	if b >= 0 && b < 7 {
		a.code = append(a.code, Instr(op, b))
		return
	}
	a.code = append(a.code, Instr(op, 7), byte(b>>8), byte(b))
}

// Unary appends a unary0 instruction.
func (a *Assembler) Unary(u Unary) {
	if u == UnaryPopHandlers {
		// Always three bytes: 07 00 07.
		a.code = append(a.code, Instr(OpUnary0, 7), 0, 7)
		return
	}
	a.Emit(OpUnary0, int(u))
}

// Freq appends a freq-func instruction.
func (a *Assembler) Freq(f FreqFunc) {
	a.Emit(OpFreqFunc, int(f))
}

// PushConstant appends a push-constant of the raw word v. Only words that
// fit a signed 16-bit operand and are not references can be encoded.
func (a *Assembler) PushConstant(v Value) error {
	n := int64(v)
	if v.IsRef() || n < -1<<15 || n >= 1<<15 {
		return frError(ErrValueOutOfRange, v)
	}
	a.Emit(OpPushConstant, int(n))
	return nil
}

// PushInt appends a push-constant of an integer, or a push of a literal
// when the integer is too large for an operand.
func (a *Assembler) PushInt(n int64) {
	if err := a.PushConstant(FromInt(n)); err != nil {
		a.Emit(OpPush, a.Literal(FromInt(n)))
	}
}

// PushLiteral appends a push of v through the literal pool.
func (a *Assembler) PushLiteral(v Value) {
	a.Emit(OpPush, a.Literal(v))
}

// ---------------------------------------------------------------------------
// Labels
// ---------------------------------------------------------------------------

// Label is a code offset that may not be known yet. Branch targets and
// handler clause targets are absolute offsets from the start of the code.
type Label struct {
	resolved bool
	position int
	refs     []labelRef
}

type labelRef struct {
	at      int  // offset of the two operand bytes
	encoded bool // the operand is an integer pushed as a constant
}

// NewLabel creates an unresolved label.
func (a *Assembler) NewLabel() *Label {
	return &Label{}
}

// Mark resolves a label to the current offset and patches every reference.
func (a *Assembler) Mark(l *Label) {
	l.resolved = true
	l.position = len(a.code)
	for _, ref := range l.refs {
		a.patch(ref, l.position)
	}
	l.refs = nil
}

func (a *Assembler) patch(ref labelRef, target int) {
	operand := target
	if ref.encoded {
		operand = int(FromInt(int64(target)))
	}
	a.code[ref.at] = byte(operand >> 8)
	a.code[ref.at+1] = byte(operand)
}

func (a *Assembler) emitLabelRef(op Opcode, l *Label, encoded bool) {
	a.code = append(a.code, Instr(op, 7), 0, 0)
	ref := labelRef{at: len(a.code) - 2, encoded: encoded}
	if l.resolved {
		a.patch(ref, l.position)
		return
	}
	l.refs = append(l.refs, ref)
}

// Branch appends a branch instruction to l. The long form is always used
// so forward references can be patched.
func (a *Assembler) Branch(op Opcode, l *Label) {
	a.emitLabelRef(op, l, false)
}

// PushLabel pushes the offset of l as an integer, the form handler
// clauses expect.
func (a *Assembler) PushLabel(l *Label) {
	a.emitLabelRef(OpPushConstant, l, true)
}
