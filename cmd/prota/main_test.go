package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chazu/prota/vm"
)

func divideFunction(t *testing.T, machine *vm.VM) vm.Value {
	t.Helper()
	a := vm.NewAssembler()
	a.PushInt(84)
	a.Emit(vm.OpGetVar, 0)
	a.Freq(vm.FFDiv)
	a.Unary(vm.UnaryReturn)
	fn, err := machine.Heap.NewFunction(a.Bytes(), a.Literals(), 1, 0, vm.Nil)
	if err != nil {
		t.Fatalf("NewFunction() error = %v", err)
	}
	return fn
}

func TestExecuteCall(t *testing.T) {
	machine := vm.New(vm.Config{})
	var out bytes.Buffer
	if err := execute(&out, machine, divideFunction(t, machine), options{}, []string{"2"}); err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	if got := out.String(); got != "42\n" {
		t.Errorf("execute() output = %q, want %q", got, "42\n")
	}
}

func TestExecuteProfileOnFailure(t *testing.T) {
	machine := vm.New(vm.Config{})
	var out bytes.Buffer
	err := execute(&out, machine, divideFunction(t, machine), options{profile: true}, []string{"0"})
	if !vm.IsError(err, vm.ErrDivideByZero) {
		t.Fatalf("execute() error = %v, want DivideByZero", err)
	}
	if !strings.Contains(out.String(), "div") {
		t.Errorf("execute() output = %q, want instruction counts", out.String())
	}
}

func TestArgValue(t *testing.T) {
	h := vm.New(vm.Config{}).Heap
	if v := argValue(h, "-12"); v != vm.FromInt(-12) {
		t.Errorf("argValue(-12) = %v, want integer -12", v)
	}
	if s, err := h.StringValue(argValue(h, "abc")); err != nil || s != "abc" {
		t.Errorf("argValue(abc) = %q, %v, want string abc", s, err)
	}
	big := argValue(h, "9223372036854775807")
	if _, err := h.StringValue(big); err != nil {
		t.Errorf("argValue(out of range) is not a string: %v", err)
	}
}
