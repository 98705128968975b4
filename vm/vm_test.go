package vm

import (
	"bytes"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestVM(t *testing.T) (*VM, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Stdout = &out
	cfg.Stderr = &out
	return NewVM(cfg), &out
}

func defClass(t *testing.T, vm *VM, name string, super Value) *Module {
	t.Helper()
	c, err := vm.DefineClass(nil, super, name)
	if err != nil {
		t.Fatalf("DefineClass(%s): %v", name, err)
	}
	return c
}

func defModule(t *testing.T, vm *VM, name string) *Module {
	t.Helper()
	m, err := vm.DefineModule(nil, name)
	if err != nil {
		t.Fatalf("DefineModule(%s): %v", name, err)
	}
	return m
}

func def(t *testing.T, vm *VM, mod *Module, name string, arity int, fn Func) *Method {
	t.Helper()
	m := NewMethod(name, arity, fn)
	if err := vm.DefineMethod(mod, name, m); err != nil {
		t.Fatalf("DefineMethod(%s): %v", name, err)
	}
	return m
}

// returns defines name on mod answering a fixed string.
func returns(t *testing.T, vm *VM, mod *Module, name, result string) {
	t.Helper()
	def(t, vm, mod, name, 0, func(c *Call) (Value, error) {
		return c.VM.Str(result), nil
	})
}

func newInstance(t *testing.T, vm *VM, cls *Module, args ...Value) Value {
	t.Helper()
	obj, err := vm.New(cls, nil, args...)
	if err != nil {
		t.Fatalf("%s.new: %v", cls.Name(), err)
	}
	return obj
}

func mustSend(t *testing.T, vm *VM, recv Value, name string, args ...Value) Value {
	t.Helper()
	v, err := vm.Send(recv, name, args...)
	if err != nil {
		t.Fatalf("send %s: %v", name, err)
	}
	return v
}

func goString(v Value) string {
	if s, ok := v.(*String); ok {
		return s.String()
	}
	return "<not a string>"
}

func moduleNames(mods []*Module) string {
	names := make([]string, len(mods))
	for i, m := range mods {
		names[i] = m.Name()
	}
	return strings.Join(names, ", ")
}

// expectError checks that err is an exception of cls whose message
// contains msg.
func expectError(t *testing.T, vm *VM, err error, cls *Module, msg string) {
	t.Helper()
	exc := vm.AsException(err)
	if exc == nil {
		t.Fatalf("err = %v, want %s", err, cls.Name())
	}
	if exc.Class() != cls {
		t.Errorf("exception class = %s, want %s (%s)", exc.Class().Name(), cls.Name(), exc.Message())
	}
	if !strings.Contains(exc.Message(), msg) {
		t.Errorf("message = %q, want it to contain %q", exc.Message(), msg)
	}
}

// ---------------------------------------------------------------------------
// Bootstrap
// ---------------------------------------------------------------------------

func TestBootstrapHierarchy(t *testing.T) {
	vm, _ := newTestVM(t)

	tests := []struct {
		class *Module
		super *Module
	}{
		{vm.ObjectClass, vm.BasicObjectClass},
		{vm.ModuleClass, vm.ObjectClass},
		{vm.ClassClass, vm.ModuleClass},
		{vm.IntegerClass, vm.NumericClass},
		{vm.NoMethodErrorClass, vm.NameErrorClass},
		{vm.StopIterationClass, vm.IndexErrorClass},
		{vm.HostErrorClass, vm.StandardErrorClass},
	}
	for _, tt := range tests {
		if got := tt.class.Superclass(); got != tt.super {
			t.Errorf("%s.superclass = %v, want %s", tt.class.Name(), got, tt.super.Name())
		}
	}

	if vm.BasicObjectClass.Superclass() != nil {
		t.Error("BasicObject should have no superclass")
	}
	if vm.ClassOf(vm.ObjectClass) != vm.ClassClass {
		t.Errorf("Object.class = %s, want Class", vm.ClassOf(vm.ObjectClass).Name())
	}
	if vm.ClassOf(vm.KernelModule) != vm.ModuleClass {
		t.Errorf("Kernel.class = %s, want Module", vm.ClassOf(vm.KernelModule).Name())
	}
	if got := moduleNames(vm.Ancestors(vm.IntegerClass)); got != "Integer, Numeric, Comparable, Object, Kernel, BasicObject" {
		t.Errorf("Integer.ancestors = %s", got)
	}
}

func TestBootstrapConstants(t *testing.T) {
	vm, _ := newTestVM(t)

	for _, name := range []string{"Object", "Kernel", "String", "ArgumentError", "STDOUT"} {
		if !vm.ConstDefined(vm.ObjectClass, name, false) {
			t.Errorf("%s should be defined on Object", name)
		}
	}
	if got := vm.Inspect(vm.Main); got != "main" {
		t.Errorf("main.inspect = %q, want main", got)
	}
	if vm.GlobalGet("$!") != Nil {
		t.Errorf("$! = %v, want nil", vm.GlobalGet("$!"))
	}
}

func TestBootstrapMethodsArePristine(t *testing.T) {
	vm, _ := newTestVM(t)

	if m := vm.FindMethod(vm.ObjectClass, "method_missing"); m == nil || !m.Pristine {
		t.Error("built-in method_missing should be pristine")
	}
	c := defClass(t, vm, "Widget", nil)
	m := def(t, vm, c, "method_missing", -1, func(c *Call) (Value, error) { return Nil, nil })
	if m.Pristine {
		t.Error("user method should not be pristine")
	}
}

func TestIndependentVMs(t *testing.T) {
	a, _ := newTestVM(t)
	b, _ := newTestVM(t)
	if a.ID == b.ID {
		t.Error("VMs should have distinct IDs")
	}

	ca := defClass(t, a, "Shared", nil)
	returns(t, a, ca, "who", "a")

	if b.ConstDefined(b.ObjectClass, "Shared", false) {
		t.Error("a constant defined in one VM leaked into another")
	}
	cb := defClass(t, b, "Shared", nil)
	returns(t, b, cb, "who", "b")

	if got := goString(mustSend(t, a, newInstance(t, a, ca), "who")); got != "a" {
		t.Errorf("a: who = %q, want a", got)
	}
	if got := goString(mustSend(t, b, newInstance(t, b, cb), "who")); got != "b" {
		t.Errorf("b: who = %q, want b", got)
	}
}

func TestGlobals(t *testing.T) {
	vm, _ := newTestVM(t)

	if vm.GlobalGet("$unset") != Nil {
		t.Error("unset global should be nil")
	}
	vm.GlobalSet("$answer", Int(42))
	if got := vm.GlobalGet("$answer"); got != Int(42) {
		t.Errorf("$answer = %v, want 42", got)
	}
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"error", SeverityError},
		{"warning", SeverityWarning},
		{"ignore", SeverityIgnore},
	}
	for _, tt := range tests {
		got, err := ParseSeverity(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseSeverity(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
		if got.String() != tt.in {
			t.Errorf("%v.String() = %q, want %q", got, got.String(), tt.in)
		}
	}
	if _, err := ParseSeverity("fatal"); err == nil {
		t.Error("ParseSeverity(fatal) should fail")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg.ExperimentalFeatures = SeverityError
	if err := cfg.Validate(); err == nil {
		t.Error("experimental_features=error should be rejected")
	}

	// NewVM downgrades it rather than failing.
	vm := NewVM(cfg)
	if vm.Config().ExperimentalFeatures != SeverityWarning {
		t.Errorf("ExperimentalFeatures = %v, want warning", vm.Config().ExperimentalFeatures)
	}
}

func TestUnsupportedSeverity(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Stderr = &out
	cfg.UnsupportedFeatures = SeverityError
	vm := NewVM(cfg)
	expectError(t, vm, vm.Unsupported("tail calls"), vm.NotImplementedErrorClass, "tail calls is not supported")

	cfg.UnsupportedFeatures = SeverityWarning
	vm = NewVM(cfg)
	for i := 0; i < 2; i++ {
		if err := vm.Unsupported("tail calls"); err != nil {
			t.Fatalf("Unsupported with warning severity: %v", err)
		}
	}
	if n := strings.Count(out.String(), "tail calls is not supported"); n != 1 {
		t.Errorf("warning printed %d times, want once", n)
	}

	out.Reset()
	cfg.UnsupportedFeatures = SeverityIgnore
	vm = NewVM(cfg)
	if err := vm.Unsupported("tail calls"); err != nil || out.Len() != 0 {
		t.Errorf("ignored feature: err = %v, output %q", err, out.String())
	}
}

func TestMaxCallDepth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCallDepth = 50
	vm := NewVM(cfg)

	c := defClass(t, vm, "Deep", nil)
	def(t, vm, c, "down", 0, func(c *Call) (Value, error) {
		return c.VM.Send(c.Self, "down")
	})
	_, err := vm.Send(newInstance(t, vm, c), "down")
	expectError(t, vm, err, vm.SystemStackErrorClass, "stack level too deep")
	if vm.Depth() != 0 {
		t.Errorf("Depth = %d after unwinding, want 0", vm.Depth())
	}
}
