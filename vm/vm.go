package vm

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config sizes and tunes a VM.
type Config struct {
	ValueStack       int  // value stack capacity per process
	CallStack        int  // call frame capacity per process
	Trace            bool // log every instruction at debug level
	DebugChecks      bool // verify frame maps after every slot change
	MaxPrintDepth    int  // printer depth when printDepth is not set
	CollectThreshold int  // allocations between collections, 0 disables
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		ValueStack:    4096,
		CallStack:     512,
		MaxPrintDepth: 8,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ValueStack <= 0 {
		c.ValueStack = d.ValueStack
	}
	if c.CallStack <= 0 {
		c.CallStack = d.CallStack
	}
	if c.MaxPrintDepth <= 0 {
		c.MaxPrintDepth = d.MaxPrintDepth
	}
	return c
}

// ---------------------------------------------------------------------------
// VM
// ---------------------------------------------------------------------------

// VM is an interpreter instance: a heap, the global variable and function
// tables, and the registry of native functions. Instances share nothing.
type VM struct {
	ID   string
	Heap *Heap
	Out  io.Writer // destination of Print

	config Config
	log    commonlog.Logger

	variables Value
	functions Value
	natives   []native

	procs []*Process // processes currently interpreting

	profile Profile
	gcStats CollectorStats
}

type native struct {
	name string
	fn   NativeFunc
}

// New creates a VM with the built-in natives installed.
func New(cfg Config) *VM {
	cfg = cfg.withDefaults()
	h := NewHeap()
	h.DebugChecks = cfg.DebugChecks
	vm := &VM{
		ID:     uuid.New().String(),
		Heap:   h,
		Out:    os.Stdout,
		config: cfg,
		log:    commonlog.GetLogger("prota.vm"),
	}
	vm.functions = h.NewFrame()
	vm.variables = h.NewFrame()
	// Neither frame can fail to take a slot.
	_ = h.SetSlot(vm.variables, h.Sym.Vars, vm.variables)
	_ = h.SetSlot(vm.variables, h.Sym.Functions, vm.functions)
	vm.installNatives()
	vm.log.Debugf("vm %s created", vm.ID)
	return vm
}

// Config returns the VM's configuration.
func (vm *VM) Config() Config {
	return vm.config
}

// Variables returns the global variable frame.
func (vm *VM) Variables() Value {
	return vm.variables
}

// Functions returns the global function frame.
func (vm *VM) Functions() Value {
	return vm.functions
}

// ---------------------------------------------------------------------------
// Globals
// ---------------------------------------------------------------------------

// GetGlobalVar returns a global variable and whether it exists.
func (vm *VM) GetGlobalVar(name Value) (Value, bool, error) {
	return vm.Heap.OwnSlot(vm.variables, name)
}

// SetGlobalVar sets a global variable. Without create, only an existing
// variable is set; the result reports whether the value was stored.
func (vm *VM) SetGlobalVar(name, v Value, create bool) (bool, error) {
	if !create {
		ok, err := vm.Heap.HasSlot(vm.variables, name)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, vm.Heap.SetSlot(vm.variables, name, v)
}

// GetGlobalFunction returns the global function called name, or nil.
func (vm *VM) GetGlobalFunction(name Value) (Value, error) {
	return vm.Heap.GetSlot(vm.functions, name)
}

// SetGlobalFunction installs fn as the global function called name.
func (vm *VM) SetGlobalFunction(name, fn Value) error {
	return vm.Heap.SetSlot(vm.functions, name, fn)
}

// DefineNative registers a Go function and installs it as a global
// function taking numArgs arguments.
func (vm *VM) DefineNative(name string, numArgs int, fn NativeFunc) (Value, error) {
	h := vm.Heap
	vm.natives = append(vm.natives, native{name: name, fn: fn})
	entry := FromInt(int64(len(vm.natives) - 1))
	f, err := h.NewFrameWithSlots(
		[]Value{h.Sym.Class, h.Sym.Entry, h.Sym.NumArgs},
		[]Value{NativeFunctionClass, entry, FromInt(int64(numArgs))},
	)
	if err != nil {
		return Nil, err
	}
	return f, vm.SetGlobalFunction(h.Intern(name), f)
}

func (vm *VM) nativeAt(entry Value) (NativeFunc, error) {
	i := entry.UnsafeInt()
	if !entry.IsInt() || i < 0 || i >= int64(len(vm.natives)) {
		return nil, typeError(ErrNotAFunction, entry)
	}
	return vm.natives[i].fn, nil
}

// ---------------------------------------------------------------------------
// Entry point
// ---------------------------------------------------------------------------

// Call runs fn with args on a fresh process and returns its result. An
// exception no handler caught is returned as an *Exception. Values the
// caller keeps from the result should be pinned before the next call if
// collection is enabled.
func (vm *VM) Call(fn Value, args ...Value) (Value, error) {
	p := vm.newProcess()
	vm.procs = append(vm.procs, p)
	defer vm.release(p)

	result, err := p.Apply(fn, args)
	if err != nil {
		vm.log.Debugf("vm %s: unhandled %s", vm.ID, err)
	}
	return result, err
}

// CallByName calls the global function called name.
func (vm *VM) CallByName(name string, args ...Value) (Value, error) {
	sym := vm.Heap.Intern(name)
	fn, err := vm.GetGlobalFunction(sym)
	if err != nil {
		return Nil, err
	}
	if fn == Nil {
		return Nil, intrpError(ErrUndefinedFunction, sym)
	}
	return vm.Call(fn, args...)
}

func (vm *VM) release(p *Process) {
	for i := len(vm.procs) - 1; i >= 0; i-- {
		if vm.procs[i] == p {
			vm.procs = append(vm.procs[:i], vm.procs[i+1:]...)
			return
		}
	}
}
