package vm

import (
	"testing"
)

func TestIncludeOrder(t *testing.T) {
	vm, _ := newTestVM(t)
	c := defClass(t, vm, "Widget", nil)
	i1 := defModule(t, vm, "I1")
	i2 := defModule(t, vm, "I2")

	if err := vm.Include(c, i1); err != nil {
		t.Fatal(err)
	}
	if err := vm.Include(c, i2); err != nil {
		t.Fatal(err)
	}
	if got := moduleNames(vm.Ancestors(c)); got != "Widget, I2, I1, Object, Kernel, BasicObject" {
		t.Errorf("ancestors = %s", got)
	}

	// Several modules in one call keep argument order.
	d := defClass(t, vm, "Gadget", nil)
	if err := vm.Include(d, i1, i2); err != nil {
		t.Fatal(err)
	}
	if got := moduleNames(vm.Ancestors(d)); got != "Gadget, I1, I2, Object, Kernel, BasicObject" {
		t.Errorf("ancestors = %s", got)
	}
}

func TestPrependOrder(t *testing.T) {
	vm, _ := newTestVM(t)
	base := defClass(t, vm, "Base", nil)
	c := defClass(t, vm, "Widget", base)
	p1 := defModule(t, vm, "P1")
	p2 := defModule(t, vm, "P2")
	inc := defModule(t, vm, "Inc")

	for _, err := range []error{vm.Prepend(c, p1), vm.Prepend(c, p2), vm.Include(c, inc)} {
		if err != nil {
			t.Fatal(err)
		}
	}
	want := "P2, P1, Widget, Inc, Base, Object, Kernel, BasicObject"
	if got := moduleNames(vm.Ancestors(c)); got != want {
		t.Errorf("ancestors = %s, want %s", got, want)
	}
	if !c.HasOrigin() {
		t.Error("prepending should give the class an origin")
	}
	if got := moduleNames(c.OwnPrependedModules()); got != "P2, P1" {
		t.Errorf("OwnPrependedModules = %s", got)
	}
}

func TestPrependedMethodWinsOverLaterDefinition(t *testing.T) {
	vm, _ := newTestVM(t)
	c := defClass(t, vm, "Widget", nil)
	p := defModule(t, vm, "Loud")
	if err := vm.Prepend(c, p); err != nil {
		t.Fatal(err)
	}

	// Defined after the prepend, but still behind it.
	returns(t, vm, c, "name", "widget")
	def(t, vm, p, "name", 0, func(c *Call) (Value, error) {
		v, err := c.Super()
		if err != nil {
			return nil, err
		}
		return c.VM.Str(goString(v) + "!"), nil
	})

	if got := goString(mustSend(t, vm, newInstance(t, vm, c), "name")); got != "widget!" {
		t.Errorf("name = %q, want widget!", got)
	}
}

func TestTransitiveInclude(t *testing.T) {
	vm, _ := newTestVM(t)
	inner := defModule(t, vm, "Inner")
	outer := defModule(t, vm, "Outer")
	if err := vm.Include(outer, inner); err != nil {
		t.Fatal(err)
	}
	c := defClass(t, vm, "Widget", nil)
	if err := vm.Include(c, outer); err != nil {
		t.Fatal(err)
	}
	if got := moduleNames(vm.Ancestors(c)); got != "Widget, Outer, Inner, Object, Kernel, BasicObject" {
		t.Errorf("ancestors = %s", got)
	}
	if !vm.Includes(c, inner) {
		t.Error("Widget should include Inner transitively")
	}
	if got := moduleNames(vm.IncludedModules(c)); got != "Outer, Inner, Kernel" {
		t.Errorf("IncludedModules = %s", got)
	}
	if len(c.IncludeChain()) != 2 || !c.IncludeChain()[0].Root || c.IncludeChain()[1].Root {
		t.Error("the first proxy of an include should be its root")
	}
	if p := c.IncludeChain()[1]; p.Source() != outer || p.Includer() != c {
		t.Error("proxy should record the included module and the includer")
	}
}

func TestReincludeIsIdempotent(t *testing.T) {
	vm, _ := newTestVM(t)
	m := defModule(t, vm, "Mixin")
	c := defClass(t, vm, "Widget", nil)

	for i := 0; i < 2; i++ {
		if err := vm.Include(c, m); err != nil {
			t.Fatalf("include #%d: %v", i+1, err)
		}
	}
	if got := moduleNames(vm.Ancestors(c)); got != "Widget, Mixin, Object, Kernel, BasicObject" {
		t.Errorf("ancestors = %s", got)
	}
}

func TestReincludePicksUpNewModules(t *testing.T) {
	vm, _ := newTestVM(t)
	m := defModule(t, vm, "Mixin")
	extra := defModule(t, vm, "Extra")
	c := defClass(t, vm, "Widget", nil)

	if err := vm.Include(c, m); err != nil {
		t.Fatal(err)
	}
	if err := vm.Include(m, extra); err != nil {
		t.Fatal(err)
	}
	if vm.Includes(c, extra) {
		t.Error("Extra should not reach Widget before Mixin is included again")
	}
	root := c.IncludeChain()[0]

	if err := vm.Include(c, m); err != nil {
		t.Fatal(err)
	}
	if got := moduleNames(vm.Ancestors(c)); got != "Widget, Mixin, Extra, Object, Kernel, BasicObject" {
		t.Errorf("ancestors = %s", got)
	}

	// Only Extra gets a new proxy; Mixin's existing one stays.
	chain := c.IncludeChain()
	if len(chain) != 2 || chain[0] != root || !chain[0].Root {
		t.Errorf("include chain = %v, want the original Mixin proxy first", chain)
	}
	if n := len(m.proxies); n != 1 {
		t.Errorf("len(Mixin proxies) = %d, want 1", n)
	}
	if len(chain) == 2 && (chain[1].Module != extra || chain[1].Root) {
		t.Errorf("second proxy = %v, want a non-root proxy for Extra", chain[1].Module)
	}
}

func TestCyclicInclude(t *testing.T) {
	vm, _ := newTestVM(t)
	a := defModule(t, vm, "A")
	b := defModule(t, vm, "B")
	if err := vm.Include(a, b); err != nil {
		t.Fatal(err)
	}

	expectError(t, vm, vm.Include(b, a), vm.ArgumentErrorClass, "cyclic include detected")
	expectError(t, vm, vm.Include(a, a), vm.ArgumentErrorClass, "cyclic include detected")
	expectError(t, vm, vm.Prepend(b, a), vm.ArgumentErrorClass, "cyclic prepend detected")

	c := defClass(t, vm, "Widget", nil)
	expectError(t, vm, vm.Include(a, c), vm.TypeErrorClass, "wrong argument type Class (expected Module)")
}

func TestDoublePrepend(t *testing.T) {
	vm, _ := newTestVM(t)
	c := defClass(t, vm, "Widget", nil)
	p := defModule(t, vm, "Loud")

	if err := vm.Prepend(c, p); err != nil {
		t.Fatal(err)
	}
	expectError(t, vm, vm.Prepend(c, p), vm.RuntimeErrorClass, "Prepending a module multiple times is not supported")
}

func TestAncestorsMemoized(t *testing.T) {
	vm, _ := newTestVM(t)
	c := defClass(t, vm, "Widget", nil)

	first := vm.Ancestors(c)
	second := vm.Ancestors(c)
	if &first[0] != &second[0] {
		t.Error("ancestors should be memoized while the epoch is unchanged")
	}

	epoch := vm.Epoch()
	if err := vm.Include(c, defModule(t, vm, "Mixin")); err != nil {
		t.Fatal(err)
	}
	if vm.Epoch() == epoch {
		t.Error("include should bump the epoch")
	}
	if got := len(vm.Ancestors(c)); got != len(first)+1 {
		t.Errorf("len(ancestors) = %d, want %d", got, len(first)+1)
	}
}

func TestIncludeInvalidatesLookup(t *testing.T) {
	vm, _ := newTestVM(t)
	c := defClass(t, vm, "Widget", nil)
	sub := defClass(t, vm, "Knob", c)
	obj := newInstance(t, vm, sub)

	returns(t, vm, vm.ObjectClass, "label", "object")
	if got := goString(mustSend(t, vm, obj, "label")); got != "object" {
		t.Fatalf("label = %q, want object", got)
	}

	// Including into the superclass changes what the subclass sees.
	m := defModule(t, vm, "Labelled")
	returns(t, vm, m, "label", "labelled")
	if err := vm.Include(c, m); err != nil {
		t.Fatal(err)
	}
	if got := goString(mustSend(t, vm, obj, "label")); got != "labelled" {
		t.Errorf("label = %q, want labelled", got)
	}
}

func TestIncludedHook(t *testing.T) {
	vm, _ := newTestVM(t)
	m := defModule(t, vm, "Tracked")
	meta, _ := vm.SingletonClass(m)

	var includers []Value
	def(t, vm, meta, "included", 1, func(c *Call) (Value, error) {
		includers = append(includers, c.Args[0])
		return Nil, nil
	})
	c := defClass(t, vm, "Widget", nil)
	if err := vm.Include(c, m); err != nil {
		t.Fatal(err)
	}
	if len(includers) != 1 || includers[0] != Value(c) {
		t.Errorf("included hook saw %v, want [Widget]", includers)
	}
}

func TestExtend(t *testing.T) {
	vm, _ := newTestVM(t)
	m := defModule(t, vm, "Greeting")
	returns(t, vm, m, "greet", "hello")

	obj := newInstance(t, vm, vm.ObjectClass)
	if err := vm.Extend(obj, m); err != nil {
		t.Fatal(err)
	}
	if got := goString(mustSend(t, vm, obj, "greet")); got != "hello" {
		t.Errorf("greet = %q, want hello", got)
	}
	if !vm.IsA(obj, m) {
		t.Error("extended object should be a Greeting")
	}
	if _, err := vm.Send(newInstance(t, vm, vm.ObjectClass), "greet"); err == nil {
		t.Error("extend should only affect the one object")
	}
}

// Module Greet with hi; class Foo includes it.
func TestIncludeScenario(t *testing.T) {
	vm, _ := newTestVM(t)
	greet := defModule(t, vm, "Greet")
	returns(t, vm, greet, "hi", "hi")
	foo := defClass(t, vm, "Foo", nil)
	if err := vm.Include(foo, greet); err != nil {
		t.Fatal(err)
	}

	if got := goString(mustSend(t, vm, newInstance(t, vm, foo), "hi")); got != "hi" {
		t.Errorf("Foo.new.hi = %q, want hi", got)
	}
	anc := vm.Ancestors(foo)
	if anc[0] != foo || anc[1] != greet {
		t.Errorf("ancestors = %s, want Greet right after Foo", moduleNames(anc))
	}
}
