package vm

import (
	"testing"
)

// ---------------------------------------------------------------------------
// Definition
// ---------------------------------------------------------------------------

func TestDefineClassReopen(t *testing.T) {
	vm, _ := newTestVM(t)
	base := defClass(t, vm, "Base", nil)
	foo := defClass(t, vm, "Foo", base)

	again, err := vm.DefineClass(nil, nil, "Foo")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if again != foo {
		t.Error("reopening should return the existing class")
	}
	if foo.Superclass() != base {
		t.Errorf("Foo.superclass = %v, want Base", foo.Superclass())
	}

	_, err = vm.DefineClass(nil, vm.StringClass, "Foo")
	expectError(t, vm, err, vm.TypeErrorClass, "superclass mismatch for class Foo")

	_, err = vm.DefineModule(nil, "Foo")
	expectError(t, vm, err, vm.TypeErrorClass, "Foo is not a module")

	defModule(t, vm, "Mixin")
	_, err = vm.DefineClass(nil, nil, "Mixin")
	expectError(t, vm, err, vm.TypeErrorClass, "Mixin is not a class")
}

func TestNestedNames(t *testing.T) {
	vm, _ := newTestVM(t)
	outer := defModule(t, vm, "Outer")

	inner, err := vm.DefineClass(outer, nil, "Inner")
	if err != nil {
		t.Fatal(err)
	}
	if got := inner.Name(); got != "Outer::Inner" {
		t.Errorf("Name = %q, want Outer::Inner", got)
	}
	if got := inner.BaseName(); got != "Inner" {
		t.Errorf("BaseName = %q, want Inner", got)
	}
	if vm.ConstDefined(vm.ObjectClass, "Inner", false) {
		t.Error("Inner should not be defined at top level")
	}

	anon, err := vm.NewClass(nil)
	if err != nil {
		t.Fatal(err)
	}
	if anon.Name() != "" {
		t.Errorf("anonymous class name = %q, want empty", anon.Name())
	}
	if _, err := vm.ConstSet(outer, "Named", anon); err != nil {
		t.Fatal(err)
	}
	if got := anon.Name(); got != "Outer::Named" {
		t.Errorf("Name after assignment = %q, want Outer::Named", got)
	}

	// A second assignment does not rename it.
	if _, err := vm.ConstSet(nil, "Alias", anon); err != nil {
		t.Fatal(err)
	}
	if got := anon.Name(); got != "Outer::Named" {
		t.Errorf("Name after second assignment = %q, want Outer::Named", got)
	}
}

func TestAllocateClassErrors(t *testing.T) {
	vm, _ := newTestVM(t)
	mod := defModule(t, vm, "Mixin")
	obj := newInstance(t, vm, vm.ObjectClass)
	meta, err := vm.SingletonClass(obj)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		super Value
		msg   string
	}{
		{vm.ClassClass, "can't make subclass of Class"},
		{mod, "superclass must be a Class (Module given)"},
		{meta, "can't make subclass of singleton class"},
		{Int(3), "superclass must be a Class (Integer given)"},
	}
	for _, tt := range tests {
		_, err := vm.AllocateClass("Bad", tt.super)
		expectError(t, vm, err, vm.TypeErrorClass, tt.msg)
	}
}

func TestAllocate(t *testing.T) {
	vm, _ := newTestVM(t)

	_, err := vm.Allocate(vm.IntegerClass)
	expectError(t, vm, err, vm.TypeErrorClass, "allocator undefined for Integer")

	_, err = vm.Allocate(defModule(t, vm, "Mixin"))
	expectError(t, vm, err, vm.NoMethodErrorClass, "undefined method 'new' for module Mixin")

	// Subclasses of bridged classes get the native representation.
	text := defClass(t, vm, "Text", vm.StringClass)
	obj, err := vm.Allocate(text)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := obj.(*String); !ok {
		t.Errorf("Text instance is %T, want *String", obj)
	}
	if vm.ClassOf(obj) != text {
		t.Errorf("class = %s, want Text", vm.ClassOf(obj).Name())
	}
}

func TestBridge(t *testing.T) {
	vm, _ := newTestVM(t)

	if vm.BridgedClass(NativeArray) != vm.ArrayClass {
		t.Error("Array should be bridged to the native array")
	}
	err := vm.Bridge(NativeArray, defClass(t, vm, "List", nil))
	expectError(t, vm, err, vm.ArgumentErrorClass, "already bridged")

	native := NewNativeType("Buffer", func() HeapValue { return &String{} })
	buffer, err := vm.DefineClass(nil, native, "Buffer")
	if err != nil {
		t.Fatal(err)
	}
	if buffer.Superclass() != vm.ObjectClass {
		t.Errorf("Buffer.superclass = %v, want Object", buffer.Superclass())
	}
	if vm.BridgedClass(native) != buffer {
		t.Error("BridgedClass(Buffer) should be the new class")
	}
	obj, err := vm.Allocate(buffer)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := obj.(*String); !ok {
		t.Errorf("Buffer instance is %T, want *String", obj)
	}
}

// ---------------------------------------------------------------------------
// Singleton classes
// ---------------------------------------------------------------------------

func TestSingletonClassChain(t *testing.T) {
	vm, _ := newTestVM(t)
	base := defClass(t, vm, "Base", nil)
	sub := defClass(t, vm, "Sub", base)

	subMeta, err := vm.SingletonClass(sub)
	if err != nil {
		t.Fatal(err)
	}
	baseMeta, _ := vm.SingletonClass(base)
	if subMeta.Superclass() != baseMeta {
		t.Error("Sub's singleton class should inherit from Base's")
	}
	if !subMeta.IsSingleton() || subMeta.Attached() != Value(sub) {
		t.Error("singleton class should be attached to Sub")
	}
	if got := vm.Inspect(subMeta); got != "#<Class:Sub>" {
		t.Errorf("inspect = %q, want #<Class:Sub>", got)
	}

	modMeta, _ := vm.SingletonClass(defModule(t, vm, "Mixin"))
	if modMeta.Superclass() != vm.ModuleClass {
		t.Errorf("module singleton superclass = %v, want Module", modMeta.Superclass())
	}

	// Class methods are inherited through the singleton chain.
	def(t, vm, baseMeta, "create", 0, func(c *Call) (Value, error) {
		return c.VM.New(c.Self.(*Module), nil)
	})
	obj := mustSend(t, vm, sub, "create")
	if vm.ClassOf(obj) != sub {
		t.Errorf("Sub.create made a %s, want Sub", vm.ClassOf(obj).Name())
	}
}

func TestClassMethodsReachUntouchedSubclasses(t *testing.T) {
	vm, _ := newTestVM(t)
	parent := defClass(t, vm, "Parent", nil)
	parentMeta, err := vm.SingletonClass(parent)
	if err != nil {
		t.Fatal(err)
	}
	returns(t, vm, parentMeta, "create", "made")

	// Nothing has asked for Child's singleton class yet.
	child := defClass(t, vm, "Child", parent)
	if got := goString(mustSend(t, vm, child, "create")); got != "made" {
		t.Errorf("Child.create = %q, want made", got)
	}
	grandchild, err := vm.NewClass(child)
	if err != nil {
		t.Fatal(err)
	}
	if got := goString(mustSend(t, vm, grandchild, "create")); got != "made" {
		t.Errorf("anonymous subclass create = %q, want made", got)
	}
	if !vm.IsA(child, parentMeta) {
		t.Error("Child should be a kind of Parent's singleton class")
	}
	if ok, err := vm.RespondTo(child, "create", false); err != nil || !ok {
		t.Errorf("Child.respond_to?(:create) = %v, %v; want true", ok, err)
	}
	if vm.ClassOf(child) != vm.ClassClass {
		t.Errorf("Child.class = %s, want Class", vm.ClassOf(child).Name())
	}

	// Core class methods follow the same chain.
	custom := defClass(t, vm, "ParseError", vm.StandardErrorClass)
	err = vm.Raise(custom, vm.Str("bad token"))
	expectError(t, vm, err, custom, "bad token")
	e, err := vm.Send(vm.KeyErrorClass, "exception", vm.Str("gone"))
	if err != nil {
		t.Fatal(err)
	}
	if exc, ok := e.(*Exception); !ok || exc.Class() != vm.KeyErrorClass {
		t.Errorf("KeyError.exception = %v, want a KeyError", e)
	}
}

func TestSingletonClassImmediates(t *testing.T) {
	vm, _ := newTestVM(t)

	for _, v := range []Value{Int(1), Float(1.5), Symbol("a")} {
		_, err := vm.SingletonClass(v)
		expectError(t, vm, err, vm.TypeErrorClass, "can't define singleton")
	}
	if m, err := vm.SingletonClass(Nil); err != nil || m != vm.NilClass {
		t.Errorf("nil.singleton_class = %v, %v; want NilClass", m, err)
	}
	if m, err := vm.SingletonClass(True); err != nil || m != vm.TrueClass {
		t.Errorf("true.singleton_class = %v, %v; want TrueClass", m, err)
	}
}

func TestSingletonMethods(t *testing.T) {
	vm, _ := newTestVM(t)
	c := defClass(t, vm, "Thing", nil)
	a := newInstance(t, vm, c)
	b := newInstance(t, vm, c)

	m := NewMethod("special", 0, func(c *Call) (Value, error) { return Symbol("yes"), nil })
	if err := vm.DefineSingletonMethod(a, "special", m); err != nil {
		t.Fatal(err)
	}
	if got := mustSend(t, vm, a, "special"); got != Symbol("yes") {
		t.Errorf("a.special = %v, want :yes", got)
	}
	if _, err := vm.Send(b, "special"); vm.AsException(err) == nil {
		t.Error("b.special should raise NoMethodError")
	}
	if vm.ClassOf(a) != c {
		t.Errorf("ClassOf ignores singletons: got %s", vm.ClassOf(a).Name())
	}

	err := vm.DefineSingletonMethod(Int(5), "x", NewMethod("x", 0, nil))
	expectError(t, vm, err, vm.TypeErrorClass, "can't define singleton")
}

func TestFreezeSingleton(t *testing.T) {
	vm, _ := newTestVM(t)
	obj := newInstance(t, vm, vm.ObjectClass)
	meta, _ := vm.SingletonClass(obj)
	vm.Freeze(obj)

	if !Frozen(meta) {
		t.Error("freezing an object should freeze its singleton class")
	}
	err := vm.DefineSingletonMethod(obj, "late", NewMethod("late", 0, nil))
	expectError(t, vm, err, vm.FrozenErrorClass, "can't modify frozen")

	err = vm.IvarSet(obj, "@a", Int(1))
	expectError(t, vm, err, vm.FrozenErrorClass, "can't modify frozen Object")
}

// ---------------------------------------------------------------------------
// Hierarchy queries and hooks
// ---------------------------------------------------------------------------

func TestInheritedHook(t *testing.T) {
	vm, _ := newTestVM(t)
	base := defClass(t, vm, "Base", nil)
	meta, _ := vm.SingletonClass(base)

	var seen []*Module
	def(t, vm, meta, "inherited", 1, func(c *Call) (Value, error) {
		seen = append(seen, c.Args[0].(*Module))
		return Nil, nil
	})

	sub := defClass(t, vm, "Sub", base)
	anon, err := vm.NewClass(base)
	if err != nil {
		t.Fatal(err)
	}
	defClass(t, vm, "Sub", nil) // reopening does not fire the hook

	if len(seen) != 2 || seen[0] != sub || seen[1] != anon {
		t.Errorf("inherited saw %d classes, want Sub then the anonymous class", len(seen))
	}

	subs := vm.Subclasses(base)
	if len(subs) != 2 {
		t.Errorf("Subclasses = %s, want 2 entries", moduleNames(subs))
	}
	if !vm.IsSubclassOf(sub, base) || vm.IsSubclassOf(base, sub) {
		t.Error("IsSubclassOf is wrong for Sub/Base")
	}
}

func TestClassVariables(t *testing.T) {
	vm, _ := newTestVM(t)
	base := defClass(t, vm, "Base", nil)
	sub := defClass(t, vm, "Sub", base)

	if err := vm.ClassVarSet(base, "@@count", Int(1)); err != nil {
		t.Fatal(err)
	}
	if v, err := vm.ClassVarGet(sub, "@@count"); err != nil || v != Int(1) {
		t.Errorf("Sub @@count = %v, %v; want 1", v, err)
	}

	// Assigning through the subclass updates the owner.
	if err := vm.ClassVarSet(sub, "@@count", Int(2)); err != nil {
		t.Fatal(err)
	}
	if v, _ := vm.ClassVarGet(base, "@@count"); v != Int(2) {
		t.Errorf("Base @@count = %v, want 2", v)
	}

	// Reading from a singleton class uses the attached class.
	meta, _ := vm.SingletonClass(sub)
	if v, err := vm.ClassVarGet(meta, "@@count"); err != nil || v != Int(2) {
		t.Errorf("singleton @@count = %v, %v; want 2", v, err)
	}

	_, err := vm.ClassVarGet(base, "@@missing")
	expectError(t, vm, err, vm.NameErrorClass, "uninitialized class variable @@missing in Base")

	err = vm.ClassVarSet(base, "@bad", Nil)
	expectError(t, vm, err, vm.NameErrorClass, "'@bad' is not allowed as a class variable name")

	if got := vm.ClassVars(sub); len(got) != 1 || got[0] != "@@count" {
		t.Errorf("ClassVars = %v, want [@@count]", got)
	}
}

func TestModuleKinds(t *testing.T) {
	vm, _ := newTestVM(t)
	c := defClass(t, vm, "Thing", nil)
	m := defModule(t, vm, "Mixin")

	if !c.IsClass() || m.IsClass() {
		t.Error("IsClass is wrong")
	}
	if m.Superclass() != nil {
		t.Error("modules have no superclass")
	}
	if got := vm.Inspect(c); got != "Thing" {
		t.Errorf("inspect = %q, want Thing", got)
	}
	anon := vm.AllocateModule("")
	if got := vm.Inspect(anon); len(got) < 10 || got[:9] != "#<Module:" {
		t.Errorf("anonymous module inspect = %q, want #<Module:0x...>", got)
	}
}
