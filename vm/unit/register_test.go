package unit

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/chazu/garnet/vm"
)

func newTestVM(t *testing.T) (*vm.VM, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cfg := vm.DefaultConfig()
	cfg.Stdout = &out
	cfg.Stderr = &out
	return vm.NewVM(cfg), &out
}

func load(t *testing.T, machine *vm.VM, src string) *Unit {
	t.Helper()
	u := compileSource(t, src)
	Register(machine, u)
	if _, err := machine.Require(u.Path); err != nil {
		t.Fatalf("require %s: %v", u.Path, err)
	}
	return u
}

func lookupModule(t *testing.T, machine *vm.VM, path string) *vm.Module {
	t.Helper()
	v, err := machine.ConstGetPath(vm.NewNesting(), path)
	if err != nil {
		t.Fatalf("%s: %v", path, err)
	}
	mod, ok := v.(*vm.Module)
	if !ok {
		t.Fatalf("%s = %v, want a module", path, v)
	}
	return mod
}

func send(t *testing.T, machine *vm.VM, recv vm.Value, name string, args ...vm.Value) vm.Value {
	t.Helper()
	v, err := machine.Send(recv, name, args...)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return v
}

func str(v vm.Value) string {
	if s, ok := v.(*vm.String); ok {
		return s.String()
	}
	return "<not a string>"
}

// ---------------------------------------------------------------------------
// Definitions
// ---------------------------------------------------------------------------

func TestRegisterCounter(t *testing.T) {
	machine, _ := newTestVM(t)
	load(t, machine, counterSource)

	counter := lookupModule(t, machine, "Counter")
	if _, err := machine.New(counter, nil); err != nil {
		t.Fatal(err)
	}
	first := machine.GlobalGet("$counter")
	if got := send(t, machine, first, "value"); got != vm.Int(10) {
		t.Errorf("value = %v, want 10", got)
	}
	send(t, machine, first, "count=", vm.Int(3))
	if got := send(t, machine, first, "count"); got != vm.Int(3) {
		t.Errorf("count = %v, want 3", got)
	}
	if got := send(t, machine, counter, "made"); got != vm.Int(2) {
		t.Errorf("Counter.made = %v, want 2", got)
	}

	m := machine.FindMethod(counter, "initialize")
	if m == nil {
		t.Fatal("Counter#initialize not defined")
	}
	if got := m.Source.String(); got != "counter:3" {
		t.Errorf("initialize source = %q, want counter:3", got)
	}
}

func TestRegisterRequireOnce(t *testing.T) {
	machine, _ := newTestVM(t)
	u := load(t, machine, counterSource)
	ran, err := machine.Require(u.Path)
	if err != nil {
		t.Fatal(err)
	}
	if ran {
		t.Error("second require ran the unit again")
	}
	if err := machine.Load(u.Path); err != nil {
		t.Fatal(err)
	}
	// load reruns the class variable initializer and main.
	if got := send(t, machine, lookupModule(t, machine, "Counter"), "made"); got != vm.Int(1) {
		t.Errorf("Counter.made after load = %v, want 1", got)
	}
}

const shapesSource = `
path = "shapes"

[[defs]]
kind = "module"
name = "Named"

[[defs.methods]]
name = "describe"
body = '(send "named " :+ (zsuper))'

[[defs]]
name = "Shape"

[[defs.methods]]
name = "describe"
body = '"shape"'

[[defs.methods]]
name = "sides"
params = ["n", "extra=0"]
body = "(send n :+ extra)"

[[defs]]
name = "Square"
superclass = "Shape"
prepend = ["Named"]

[[defs.methods]]
name = "describe"
body = '(send "square < " :+ (zsuper))'
`

func TestRegisterSuperChain(t *testing.T) {
	machine, _ := newTestVM(t)
	load(t, machine, shapesSource)

	sq, err := machine.New(lookupModule(t, machine, "Square"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := str(send(t, machine, sq, "describe")); got != "named square < shape" {
		t.Errorf("describe = %q, want %q", got, "named square < shape")
	}
	if got := send(t, machine, sq, "sides", vm.Int(4)); got != vm.Int(4) {
		t.Errorf("sides(4) = %v, want 4", got)
	}
	if got := send(t, machine, sq, "sides", vm.Int(4), vm.Int(1)); got != vm.Int(5) {
		t.Errorf("sides(4, 1) = %v, want 5", got)
	}

	_, err = machine.Send(sq, "sides", vm.Int(1), vm.Int(2), vm.Int(3))
	exc := machine.AsException(err)
	if exc == nil || exc.Class() != machine.ArgumentErrorClass {
		t.Fatalf("sides(1, 2, 3) err = %v, want ArgumentError", err)
	}
	if want := "wrong number of arguments (given 3, expected 1..2)"; exc.Message() != want {
		t.Errorf("message = %q, want %q", exc.Message(), want)
	}
}

// ---------------------------------------------------------------------------
// Blocks and non-local exits
// ---------------------------------------------------------------------------

const utilSource = `
path = "util"

[[defs]]
kind = "module"
name = "Util"

[[defs.methods]]
name = "first_over"
singleton = true
params = ["list", "limit"]
body = '(send list :each (block (x) (if (send x :> limit) (break x))))'

[[defs.methods]]
name = "zero_evens"
singleton = true
params = ["list"]
body = '(send list :map (block (x) (if (send x :even?) (next 0)) x))'

[[defs.methods]]
name = "find_even"
singleton = true
params = ["list"]
body = '(send list :each (block (x) (if (send x :even?) (return x)))) nil'

[[defs.methods]]
name = "twice"
singleton = true
body = '(if (block-given?) (do (yield 1) (yield 2)) :none)'

[[defs.methods]]
name = "adder"
singleton = true
params = ["n"]
body = '(lambda (x) (send x :+ n))'

[[defs.methods]]
name = "stringify"
singleton = true
params = ["list"]
body = '(send list :map (& :to_s))'
`

func TestRegisterBreak(t *testing.T) {
	machine, _ := newTestVM(t)
	load(t, machine, utilSource)
	util := lookupModule(t, machine, "Util")

	list := machine.NewArray(vm.Int(1), vm.Int(5), vm.Int(9))
	if got := send(t, machine, util, "first_over", list, vm.Int(4)); got != vm.Int(5) {
		t.Errorf("first_over = %v, want 5", got)
	}
	if got := send(t, machine, util, "first_over", list, vm.Int(100)); got != vm.Value(list) {
		t.Errorf("first_over without a match = %v, want the list", got)
	}
}

func TestRegisterNext(t *testing.T) {
	machine, _ := newTestVM(t)
	load(t, machine, utilSource)

	list := machine.NewArray(vm.Int(1), vm.Int(2), vm.Int(3))
	got := send(t, machine, lookupModule(t, machine, "Util"), "zero_evens", list)
	if s := machine.Inspect(got); s != "[1, 0, 3]" {
		t.Errorf("zero_evens = %s, want [1, 0, 3]", s)
	}
}

func TestRegisterReturnFromBlock(t *testing.T) {
	machine, _ := newTestVM(t)
	load(t, machine, utilSource)
	util := lookupModule(t, machine, "Util")

	if got := send(t, machine, util, "find_even", machine.NewArray(vm.Int(1), vm.Int(4), vm.Int(6))); got != vm.Int(4) {
		t.Errorf("find_even = %v, want 4", got)
	}
	if got := send(t, machine, util, "find_even", machine.NewArray(vm.Int(1))); got != vm.Nil {
		t.Errorf("find_even without evens = %v, want nil", got)
	}
}

func TestRegisterYield(t *testing.T) {
	machine, _ := newTestVM(t)
	load(t, machine, utilSource)
	util := lookupModule(t, machine, "Util")

	if got := send(t, machine, util, "twice"); got != vm.Symbol("none") {
		t.Errorf("twice without block = %v, want :none", got)
	}
	var seen []vm.Value
	blk := machine.Block(func(args ...vm.Value) (vm.Value, error) {
		seen = append(seen, args[0])
		return vm.Nil, nil
	})
	if _, err := machine.SendBlock(util, "twice", blk); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0] != vm.Int(1) || seen[1] != vm.Int(2) {
		t.Errorf("yielded %v, want [1 2]", seen)
	}
}

func TestRegisterLambdaClosure(t *testing.T) {
	machine, _ := newTestVM(t)
	load(t, machine, utilSource)

	add := send(t, machine, lookupModule(t, machine, "Util"), "adder", vm.Int(10))
	p, ok := add.(*vm.Proc)
	if !ok || !p.IsLambda() {
		t.Fatalf("adder = %v, want a lambda", add)
	}
	got, err := machine.CallProc(p, vm.Int(5))
	if err != nil {
		t.Fatal(err)
	}
	if got != vm.Int(15) {
		t.Errorf("adder(10).call(5) = %v, want 15", got)
	}
	if _, err := machine.CallProc(p); err == nil {
		t.Error("lambda called without arguments, want ArgumentError")
	}
}

func TestRegisterBlockPass(t *testing.T) {
	machine, _ := newTestVM(t)
	load(t, machine, utilSource)

	got := send(t, machine, lookupModule(t, machine, "Util"), "stringify", machine.NewArray(vm.Int(1), vm.Int(2)))
	if s := machine.Inspect(got); s != `["1", "2"]` {
		t.Errorf("stringify = %s, want [\"1\", \"2\"]", s)
	}
}

// ---------------------------------------------------------------------------
// Exceptions
// ---------------------------------------------------------------------------

const mathSource = `
path = "safe_math"

[[defs]]
kind = "module"
name = "SafeMath"

[[defs.methods]]
name = "div"
singleton = true
params = ["a", "b"]
body = '(rescue (send a :/ b) (ZeroDivisionError) e (set $last_error (send e :message)) -1)'

[[defs.methods]]
name = "div_logged"
singleton = true
params = ["a", "b"]
body = '(ensure (send a :/ b) (set $ensured true))'
`

func TestRegisterRescue(t *testing.T) {
	machine, _ := newTestVM(t)
	load(t, machine, mathSource)
	safe := lookupModule(t, machine, "SafeMath")

	if got := send(t, machine, safe, "div", vm.Int(6), vm.Int(3)); got != vm.Int(2) {
		t.Errorf("div(6, 3) = %v, want 2", got)
	}
	if got := send(t, machine, safe, "div", vm.Int(1), vm.Int(0)); got != vm.Int(-1) {
		t.Errorf("div(1, 0) = %v, want -1", got)
	}
	if got := str(machine.GlobalGet("$last_error")); got != "divided by 0" {
		t.Errorf("$last_error = %q, want divided by 0", got)
	}
	if machine.CurrentException() != nil {
		t.Errorf("$! after rescue = %v, want nil", machine.CurrentException())
	}
}

func TestRegisterEnsure(t *testing.T) {
	machine, _ := newTestVM(t)
	load(t, machine, mathSource)

	_, err := machine.Send(lookupModule(t, machine, "SafeMath"), "div_logged", vm.Int(1), vm.Int(0))
	if exc := machine.AsException(err); exc == nil || exc.Class() != machine.ZeroDivisionErrorClass {
		t.Errorf("err = %v, want ZeroDivisionError", err)
	}
	if machine.GlobalGet("$ensured") != vm.True {
		t.Error("ensure clause did not run")
	}
}

// ---------------------------------------------------------------------------
// Refinements, stubs, autoload and main
// ---------------------------------------------------------------------------

const shoutSource = `
path = "shout"
using = ["Shout"]
main = '(set $result (send "hi" :shout))'

[[defs]]
kind = "module"
name = "Shout"

[[defs]]
kind = "refine"
scope = "Shout"
name = "String"

[[defs.methods]]
name = "shout"
body = '(send self :+ "!")'
`

func TestRegisterUsing(t *testing.T) {
	machine, _ := newTestVM(t)
	load(t, machine, shoutSource)

	if got := str(machine.GlobalGet("$result")); got != "hi!" {
		t.Errorf("$result = %q, want hi!", got)
	}
	_, err := machine.Send(machine.Str("hi"), "shout")
	if exc := machine.AsException(err); exc == nil || exc.Class() != machine.NoMethodErrorClass {
		t.Errorf("unrefined send err = %v, want NoMethodError", err)
	}
}

func TestRegisterMainOutput(t *testing.T) {
	machine, out := newTestVM(t)
	load(t, machine, `
path = "hello"
main = '(call puts "hello")'
`)
	if got := out.String(); got != "hello\n" {
		t.Errorf("output = %q, want %q", got, "hello\n")
	}
}

func TestRegisterDeferred(t *testing.T) {
	machine, _ := newTestVM(t)
	u := compileSource(t, `
path = "later"
deferred = true
main = '(set $done true)'
`)
	Register(machine, u)
	if machine.GlobalGet("$done") != vm.Nil {
		t.Fatal("main ran at registration")
	}
	if _, err := machine.Require("later"); err != nil {
		t.Fatal(err)
	}
	if machine.GlobalGet("$done") != vm.True {
		t.Error("deferred main did not run when the unit was required")
	}
}

func TestRegisterAutoload(t *testing.T) {
	machine, _ := newTestVM(t)
	Register(machine, compileSource(t, `
path = "lib/widget"
[[defs]]
name = "Widget"
`))
	load(t, machine, `
path = "app"
[[autoload]]
name = "Widget"
path = "lib/widget"
`)
	if slices.Contains(machine.LoadedFeatures(), "lib/widget") {
		t.Fatal("autoload target loaded before first reference")
	}
	lookupModule(t, machine, "Widget")
	if !slices.Contains(machine.LoadedFeatures(), "lib/widget") {
		t.Error("referencing Widget did not load lib/widget")
	}
}

func TestRegisterStubs(t *testing.T) {
	machine, _ := newTestVM(t)
	load(t, machine, `
path = "stubs"
stubs = ["frobnicate"]
main = '(rescue (send 1 :frobnicate) (NoMethodError) e (set $stubbed (send e :name)))'
`)
	if got := machine.GlobalGet("$stubbed"); got != vm.Symbol("frobnicate") {
		t.Errorf("$stubbed = %v, want :frobnicate", got)
	}
}

func TestRegisterRequireFailure(t *testing.T) {
	machine, _ := newTestVM(t)
	u := compileSource(t, `
path = "needs"
requires = ["missing/thing"]
`)
	Register(machine, u)
	_, err := machine.Require("needs")
	exc := machine.AsException(err)
	if exc == nil || exc.Class() != machine.LoadErrorClass {
		t.Fatalf("err = %v, want LoadError", err)
	}
	if !strings.Contains(exc.Message(), "missing/thing") {
		t.Errorf("message = %q, want it to name missing/thing", exc.Message())
	}
}

func TestInvoke(t *testing.T) {
	machine, _ := newTestVM(t)
	load(t, machine, utilSource)

	got, err := Invoke(machine, "Util.first_over", machine.NewArray(vm.Int(3), vm.Int(7)), vm.Int(5))
	if err != nil {
		t.Fatal(err)
	}
	if got != vm.Int(7) {
		t.Errorf("Invoke = %v, want 7", got)
	}

	_, err = Invoke(machine, "Nope.run")
	if exc := machine.AsException(err); exc == nil || exc.Class() != machine.NameErrorClass {
		t.Errorf("Invoke(Nope.run) err = %v, want NameError", err)
	}
	if _, err := Invoke(machine, "Util."); err == nil {
		t.Error("Invoke with an empty method name succeeded")
	}
}

func TestBreakFromProcClosure(t *testing.T) {
	machine, _ := newTestVM(t)
	load(t, machine, `
path = "orphan"
main = '(set $blk (block () (break 1)))'
`)
	p := machine.GlobalGet("$blk").(*vm.Proc)
	_, err := machine.CallProc(p)
	exc := machine.AsException(err)
	if exc == nil || exc.Class() != machine.LocalJumpErrorClass {
		t.Fatalf("err = %v, want LocalJumpError", err)
	}
	var sig *vm.BreakSignal
	if errors.As(err, &sig) {
		t.Error("break escaped as a signal")
	}
}

func TestEval(t *testing.T) {
	machine, _ := newTestVM(t)
	load(t, machine, utilSource)

	got, err := Eval(machine, `(set x 4) (send Util :first_over (array 1 x 9) 3)`)
	if err != nil {
		t.Fatal(err)
	}
	if got != vm.Int(4) {
		t.Errorf("Eval = %v, want 4", got)
	}

	_, err = Eval(machine, "(send 1")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Errorf("Eval(incomplete) err = %v, want a ParseError", err)
	}
}
