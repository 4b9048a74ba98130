package vm

import "testing"

func TestConfigDefaults(t *testing.T) {
	vm := New(Config{CallStack: 10})
	cfg := vm.Config()
	if cfg.CallStack != 10 {
		t.Errorf("CallStack = %d, want 10", cfg.CallStack)
	}
	d := DefaultConfig()
	if cfg.ValueStack != d.ValueStack || cfg.MaxPrintDepth != d.MaxPrintDepth {
		t.Errorf("Config() = %+v, want defaults for unset fields", cfg)
	}
	if vm.ID == "" || vm.ID == New(Config{}).ID {
		t.Error("VM ids should be set and unique")
	}
}

func TestGlobalVariables(t *testing.T) {
	vm := New(Config{})
	h := vm.Heap
	x := h.Intern("x")

	if ok, err := vm.SetGlobalVar(x, FromInt(1), false); ok || err != nil {
		t.Errorf("SetGlobalVar(create=false) on missing = %v, %v, want false", ok, err)
	}
	if _, ok, _ := vm.GetGlobalVar(x); ok {
		t.Error("GetGlobalVar() found a variable that was never created")
	}
	if ok, err := vm.SetGlobalVar(x, FromInt(1), true); !ok || err != nil {
		t.Errorf("SetGlobalVar(create=true) = %v, %v, want true", ok, err)
	}
	if v, ok, _ := vm.GetGlobalVar(x); !ok || v != FromInt(1) {
		t.Errorf("GetGlobalVar() = %v, %v, want 1", v, ok)
	}
	if v, ok, _ := vm.GetGlobalVar(h.Sym.Vars); !ok || v != vm.Variables() {
		t.Error("the vars global should hold the variable frame")
	}
	if v, _, _ := vm.GetGlobalVar(h.Sym.Functions); v != vm.Functions() {
		t.Error("the functions global should hold the function frame")
	}
}

func TestBuiltinNativesInstalled(t *testing.T) {
	vm := New(Config{})
	h := vm.Heap
	for _, d := range builtinNatives {
		fn, err := vm.GetGlobalFunction(h.Intern(d.name))
		if err != nil || !h.IsFunction(fn) {
			t.Errorf("global function %s = %v, %v, want a native", d.name, fn, err)
		}
	}
}

func TestCallNativeDirectly(t *testing.T) {
	vm := New(Config{})
	got, err := vm.CallByName("BNot", FromInt(5))
	if err != nil || got != FromInt(^5) {
		t.Errorf("BNot(5) = %v, %v, want %d", got, err, ^5)
	}
	if _, err := vm.CallByName("BNot"); !IsError(err, ErrWrongNumArgs) {
		t.Errorf("BNot() error = %v, want WrongNumArgs", err)
	}
	if _, err := vm.CallByName("nosuch"); !IsError(err, ErrUndefinedFunction) {
		t.Errorf("nosuch() error = %v, want UndefinedFunction", err)
	}
	_, err = vm.CallByName("Throw", vm.Heap.Intern("evt.ex.user"), FromInt(1))
	if ex := AsException(err); err == nil || ex.Name != "evt.ex.user" {
		t.Errorf("Throw() error = %v, want evt.ex.user", err)
	}
}

func TestSubexception(t *testing.T) {
	tests := []struct {
		name, pattern string
		want          bool
	}{
		{"a.b", "a.b", true},
		{"a.b.c", "a.b", true},
		{"a.bc", "a.b", false},
		{"a", "a.b", false},
		{"evt.ex.fr.type", "evt.ex", true},
		{"evt.exception", "evt.ex", false},
	}
	for _, tt := range tests {
		if got := Subexception(tt.name, tt.pattern); got != tt.want {
			t.Errorf("Subexception(%q, %q) = %v, want %v", tt.name, tt.pattern, got, tt.want)
		}
	}
}
