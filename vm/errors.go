package vm

import (
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Exception names
// ---------------------------------------------------------------------------

// Built-in exception names. Names are dotted paths; a handler for a prefix
// catches every descendant.
const (
	ExFr        = "evt.ex.fr"
	ExIntrp     = "evt.ex.fr.intrp"
	ExType      = "evt.ex.fr.type"
	ExDivByZero = "evt.ex.div0"
)

// ErrorCode identifies an internal failure. The values are the historical
// frame-system error numbers.
type ErrorCode int

// evt.ex.fr
const (
	ErrBadStreamFormat ErrorCode = -48006
	ErrNotAPointer     ErrorCode = -48200
	ErrBadMagicPtr     ErrorCode = -48201
	ErrEmptyPath       ErrorCode = -48202
	ErrInvalidPath     ErrorCode = -48203
	ErrPathFailed      ErrorCode = -48204
	ErrOutOfBounds     ErrorCode = -48205
	ErrSameObject      ErrorCode = -48206
	ErrBadArguments    ErrorCode = -48210
	ErrNegativeSize    ErrorCode = -48218
	ErrValueOutOfRange ErrorCode = -48219
	ErrInternal        ErrorCode = -48223
)

// evt.ex.fr.type
const (
	ErrNotAFrame        ErrorCode = -48400
	ErrNotAnArray       ErrorCode = -48401
	ErrNotAString       ErrorCode = -48402
	ErrNotANumber       ErrorCode = -48404
	ErrNotAReal         ErrorCode = -48405
	ErrNotAnInteger     ErrorCode = -48406
	ErrNotACharacter    ErrorCode = -48407
	ErrNotABinary       ErrorCode = -48408
	ErrNotAPath         ErrorCode = -48409
	ErrNotASymbol       ErrorCode = -48410
	ErrNotAFunction     ErrorCode = -48411
	ErrNotAFrameOrArray ErrorCode = -48412
	ErrUnexpectedFrame  ErrorCode = -48416
)

// evt.ex.fr.intrp
const (
	ErrStackOverflow     ErrorCode = -48801
	ErrWrongNumArgs      ErrorCode = -48803
	ErrZeroForLoopIncr   ErrorCode = -48804
	ErrDivideByZero      ErrorCode = -48805
	ErrNoCurrentEx       ErrorCode = -48806
	ErrUndefinedVariable ErrorCode = -48807
	ErrUndefinedFunction ErrorCode = -48808
	ErrUndefinedMethod   ErrorCode = -48809
	ErrNoProto           ErrorCode = -48810
	ErrNilSlotAccess     ErrorCode = -48811
	ErrInvalidBytecode   ErrorCode = -48812
)

var errorMessages = map[ErrorCode]string{
	ErrBadStreamFormat:   "stream has bad or unknown format",
	ErrNotAPointer:       "expected a frame, array, or binary object",
	ErrBadMagicPtr:       "invalid magic pointer",
	ErrEmptyPath:         "empty path",
	ErrInvalidPath:       "invalid segment in path expression",
	ErrPathFailed:        "path failed",
	ErrOutOfBounds:       "index out of bounds",
	ErrSameObject:        "source and destination must be different objects",
	ErrBadArguments:      "bad arguments",
	ErrNegativeSize:      "cannot create or change an object to negative size",
	ErrValueOutOfRange:   "value out of range",
	ErrInternal:          "internal object system inconsistency",
	ErrNotAFrame:         "expected a frame",
	ErrNotAnArray:        "expected an array",
	ErrNotAString:        "expected a string",
	ErrNotANumber:        "expected a number",
	ErrNotAReal:          "expected a real",
	ErrNotAnInteger:      "expected an integer",
	ErrNotACharacter:     "expected a character",
	ErrNotABinary:        "expected a binary object",
	ErrNotAPath:          "expected a path expression",
	ErrNotASymbol:        "expected a symbol",
	ErrNotAFunction:      "expected a function",
	ErrNotAFrameOrArray:  "expected a frame or an array",
	ErrUnexpectedFrame:   "unexpected frame",
	ErrStackOverflow:     "stack overflow",
	ErrWrongNumArgs:      "wrong number of arguments",
	ErrZeroForLoopIncr:   "for loop increment is zero",
	ErrDivideByZero:      "division by zero",
	ErrNoCurrentEx:       "no current exception",
	ErrUndefinedVariable: "undefined variable",
	ErrUndefinedFunction: "undefined global function",
	ErrUndefinedMethod:   "undefined method",
	ErrNoProto:           "no _proto for inherited send",
	ErrNilSlotAccess:     "tried to access slot of nil",
	ErrInvalidBytecode:   "invalid bytecode",
}

// String returns a short description of the error code.
func (c ErrorCode) String() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return fmt.Sprintf("error %d", int(c))
}

// ---------------------------------------------------------------------------
// Exception
// ---------------------------------------------------------------------------

// Exception is a raised Prota exception. Internal failures carry an error
// code; exceptions thrown from code carry only a name and data.
type Exception struct {
	Name  string
	Code  ErrorCode
	Data  Value
	Fatal bool // never delivered to a handler
}

func (e *Exception) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (%d)", e.Name, e.Code, int(e.Code))
	}
	return e.Name
}

// NewException creates an exception thrown from code.
func NewException(name string, data Value) *Exception {
	return &Exception{Name: name, Data: data}
}

// FrError creates an evt.ex.fr exception carrying code. Packages that build
// heap objects outside the interpreter report failures with it.
func FrError(code ErrorCode, data Value) *Exception {
	return frError(code, data)
}

func newError(name string, code ErrorCode, data Value) *Exception {
	return &Exception{Name: name, Code: code, Data: data}
}

func frError(code ErrorCode, data Value) *Exception {
	return newError(ExFr, code, data)
}

func typeError(code ErrorCode, data Value) *Exception {
	return newError(ExType, code, data)
}

func intrpError(code ErrorCode, data Value) *Exception {
	return newError(ExIntrp, code, data)
}

// Subexception reports whether name is pattern or a dotted descendant of it:
// "a.b.c" and "a.b" match "a.b", "a.bc" and "a" do not.
func Subexception(name, pattern string) bool {
	if !strings.HasPrefix(name, pattern) {
		return false
	}
	return len(name) == len(pattern) || name[len(pattern)] == '.'
}

// AsException extracts the *Exception from err, wrapping foreign errors in
// a generic evt.ex exception.
func AsException(err error) *Exception {
	var ex *Exception
	if errors.As(err, &ex) {
		return ex
	}
	return &Exception{Name: "evt.ex", Code: ErrInternal, Data: Nil}
}

// IsError reports whether err is an exception carrying the given code.
func IsError(err error, code ErrorCode) bool {
	var ex *Exception
	return errors.As(err, &ex) && ex.Code == code
}
