package vm

import (
	"math"
	"testing"
)

func TestTruthy(t *testing.T) {
	vm, _ := newTestVM(t)
	tests := []struct {
		v    Value
		want bool
	}{
		{Nil, false},
		{False, false},
		{nil, false},
		{True, true},
		{Int(0), true},
		{vm.Str(""), true},
		{vm.NewArray(), true},
		{Symbol("x"), true},
	}
	for _, tt := range tests {
		if got := Truthy(tt.v); got != tt.want {
			t.Errorf("Truthy(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
	if FromBool(true) != True || FromBool(false) != False {
		t.Error("FromBool should map to True and False")
	}
	if !IsNil(nil) || !IsNil(Nil) || IsNil(False) {
		t.Error("IsNil should accept Go nil and Nil only")
	}
}

func TestObjectID(t *testing.T) {
	vm, _ := newTestVM(t)
	tests := []struct {
		v    Value
		want int64
	}{
		{False, 0},
		{True, 2},
		{Nil, 4},
		{Int(0), 1},
		{Int(3), 7},
		{Int(-1), -1},
	}
	for _, tt := range tests {
		if got := vm.ObjectID(tt.v); got != tt.want {
			t.Errorf("ObjectID(%v) = %d, want %d", tt.v, got, tt.want)
		}
	}

	a, b := vm.Str("same"), vm.Str("same")
	idA := vm.ObjectID(a)
	if idA%2 != 0 || idA < 6 {
		t.Errorf("heap id = %d, want an even id of at least 6", idA)
	}
	if vm.ObjectID(a) != idA {
		t.Error("ObjectID should be stable")
	}
	if vm.ObjectID(b) == idA {
		t.Error("distinct objects should have distinct ids")
	}
	if vm.ObjectID(Symbol("s")) != vm.ObjectID(Symbol("s")) {
		t.Error("equal symbols should share an id")
	}
	if vm.ObjectID(Float(1.5)) == vm.ObjectID(Float(2.5)) {
		t.Error("different floats should have different ids")
	}
}

func TestInstanceVariables(t *testing.T) {
	vm, _ := newTestVM(t)
	c := defClass(t, vm, "Widget", nil)
	obj := newInstance(t, vm, c)

	if vm.IvarGet(obj, "@size") != Nil || vm.IvarDefined(obj, "@size") {
		t.Error("unset ivar should read as nil and not be defined")
	}
	for _, kv := range []struct {
		name string
		v    Value
	}{{"@b", Int(2)}, {"@a", Int(1)}, {"@b", Int(3)}} {
		if err := vm.IvarSet(obj, kv.name, kv.v); err != nil {
			t.Fatal(err)
		}
	}
	if names := vm.Ivars(obj); len(names) != 2 || names[0] != "@b" || names[1] != "@a" {
		t.Errorf("Ivars = %v, want [@b @a]", names)
	}
	if vm.IvarGet(obj, "@b") != Int(3) {
		t.Errorf("@b = %v, want 3", vm.IvarGet(obj, "@b"))
	}

	old, err := vm.IvarRemove(obj, "@b")
	if err != nil || old != Int(3) {
		t.Errorf("IvarRemove = %v, %v; want 3", old, err)
	}
	_, err = vm.IvarRemove(obj, "@b")
	expectError(t, vm, err, vm.NameErrorClass, "instance variable @b not defined")

	vm.Freeze(obj)
	expectError(t, vm, vm.IvarSet(obj, "@a", Nil), vm.FrozenErrorClass, "can't modify frozen Widget")
	expectError(t, vm, vm.IvarSet(Int(1), "@a", Nil), vm.FrozenErrorClass, "can't modify frozen Integer: 1")
}

func TestHiddenProperties(t *testing.T) {
	vm, _ := newTestVM(t)
	obj := newInstance(t, vm, vm.ObjectClass)

	for _, v := range []Value{obj, Int(5)} {
		vm.DefineHiddenProperty(v, "$$meta", "tag")
		if got, ok := vm.HiddenProperty(v, "$$meta"); !ok || got != "tag" {
			t.Errorf("HiddenProperty(%v) = %v, %v", v, got, ok)
		}
		vm.DeleteHiddenProperty(v, "$$meta")
		if _, ok := vm.HiddenProperty(v, "$$meta"); ok {
			t.Errorf("property still present on %v after delete", v)
		}
	}

	vm.DefineHiddenProperty(obj, "$$meta", 1)
	if len(vm.Ivars(obj)) != 0 {
		t.Error("hidden properties should not show up as ivars")
	}
}

func TestFrozen(t *testing.T) {
	vm, _ := newTestVM(t)
	if !Frozen(Int(1)) || !Frozen(Nil) || !Frozen(Symbol("s")) {
		t.Error("immediates should always be frozen")
	}
	s := vm.Str("text")
	if Frozen(s) {
		t.Error("new strings should not be frozen")
	}
	if vm.Freeze(s) != Value(s) || !Frozen(s) {
		t.Error("Freeze should freeze and return its argument")
	}
	expectError(t, vm, vm.CheckFrozen(s), vm.FrozenErrorClass, `can't modify frozen String: "text"`)
}

func TestInspect(t *testing.T) {
	vm, _ := newTestVM(t)
	c := defClass(t, vm, "Widget", nil)
	obj := newInstance(t, vm, c)
	if err := vm.IvarSet(obj, "@a", Int(1)); err != nil {
		t.Fatal(err)
	}
	if err := vm.IvarSet(obj, "@b", vm.Str("x")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		v    Value
		want string
	}{
		{Nil, "nil"},
		{True, "true"},
		{Int(-42), "-42"},
		{Float(1), "1.0"},
		{Float(2.5), "2.5"},
		{Float(math.Inf(1)), "Infinity"},
		{Symbol("name"), ":name"},
		{Symbol("two words"), `:"two words"`},
		{Symbol("<=>"), ":<=>"},
		{vm.Str(`say "hi"`), `"say \"hi\""`},
		{vm.NewArray(Int(1), vm.Str("x"), Nil), `[1, "x", nil]`},
		{obj, `#<Widget @a=1, @b="x">`},
		{c, "Widget"},
		{vm.NewException(vm.ArgumentErrorClass, "bad"), "#<ArgumentError: bad>"},
	}
	for _, tt := range tests {
		if got := vm.Inspect(tt.v); got != tt.want {
			t.Errorf("Inspect = %s, want %s", got, tt.want)
		}
	}
}

func TestInspectRecursive(t *testing.T) {
	vm, _ := newTestVM(t)
	arr := vm.NewArray(Int(1))
	arr.elems = append(arr.elems, arr)
	if got := vm.Inspect(arr); got != "[1, [...]]" {
		t.Errorf("Inspect = %s, want [1, [...]]", got)
	}
}

func TestSelectors(t *testing.T) {
	vm, _ := newTestVM(t)
	n := vm.Selectors.Len()
	id := vm.Selectors.Intern("brand_new_selector")
	if vm.Selectors.Intern("brand_new_selector") != id {
		t.Error("Intern should be idempotent")
	}
	if vm.Selectors.Lookup("brand_new_selector") != id || vm.Selectors.Name(id) != "brand_new_selector" {
		t.Error("Lookup and Name should round-trip")
	}
	if vm.Selectors.Lookup("never_seen_selector") >= 0 {
		t.Error("Lookup of an unknown name should be negative")
	}
	if vm.Selectors.Len() != n+1 {
		t.Errorf("Len = %d, want %d", vm.Selectors.Len(), n+1)
	}
}
