package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// Inspect returns recv.inspect as a Go string. Errors fall back to the
// default rendering.
func (vm *VM) Inspect(v Value) string {
	s, err := vm.InspectValue(v)
	if err != nil {
		return vm.defaultInspect(v)
	}
	return s
}

// InspectValue sends inspect to v and returns the result.
func (vm *VM) InspectValue(v Value) (string, error) {
	if v == nil {
		return "nil", nil
	}
	if vm.ObjectClass == nil || vm.MethodFor(v, "inspect") == nil {
		return vm.defaultInspect(v), nil
	}
	r, err := vm.Send(v, "inspect")
	if err != nil {
		return "", err
	}
	if s, ok := r.(*String); ok {
		return s.str, nil
	}
	return vm.defaultInspect(r), nil
}

// ToS returns v.to_s as a Go string.
func (vm *VM) ToS(v Value) (string, error) {
	if s, ok := v.(*String); ok {
		return s.str, nil
	}
	r, err := vm.Send(v, "to_s")
	if err != nil {
		return "", err
	}
	if s, ok := r.(*String); ok {
		return s.str, nil
	}
	return vm.defaultInspect(v), nil
}

// withInspectGuard renders v with fn unless v is already being rendered
// further up the stack, in which case it returns recursive.
func (vm *VM) withInspectGuard(v Value, recursive string, fn func() (string, error)) (string, error) {
	id := vm.ObjectID(v)
	if vm.inspecting[id] {
		return recursive, nil
	}
	vm.inspecting[id] = true
	defer delete(vm.inspecting, id)
	return fn()
}

// defaultInspect renders v without dispatch.
func (vm *VM) defaultInspect(v Value) string {
	switch x := v.(type) {
	case nil, nilValue:
		return "nil"
	case Bool:
		return strconv.FormatBool(bool(x))
	case Int:
		return strconv.FormatInt(int64(x), 10)
	case Float:
		return formatFloat(float64(x))
	case Symbol:
		return inspectSymbol(x)
	case *String:
		return strconv.Quote(x.str)
	case *Module:
		return vm.inspectModule(x)
	case *Exception:
		return vm.inspectException(x)
	case *NativeType:
		return "#<NativeType " + x.Name + ">"
	}
	return fmt.Sprintf("#<%s>", vm.ClassOf(v).Name())
}

func (vm *VM) inspectModule(m *Module) string {
	if m.IsSingleton() {
		return "#<Class:" + vm.Inspect(m.singletonOf) + ">"
	}
	if m.refinedClass != nil {
		return "#<refinement:" + vm.Inspect(m.refinedClass) + ">"
	}
	if name := m.Name(); name != "" {
		return name
	}
	return fmt.Sprintf("#<%s:0x%016x>", titleKind(m), uint64(vm.ObjectID(m)))
}

func (vm *VM) inspectException(e *Exception) string {
	name := vm.ClassOf(e).Name()
	if e.message == "" || e.message == name {
		return name
	}
	return fmt.Sprintf("#<%s: %s>", name, e.message)
}

// inspectObject renders "#<Foo @a=1, @b=2>".
func (vm *VM) inspectObject(v Value) (string, error) {
	cls := vm.ClassOf(v).Name()
	if cls == "" {
		cls = vm.Inspect(vm.ClassOf(v))
	}
	return vm.withInspectGuard(v, "#<"+cls+" ...>", func() (string, error) {
		names := vm.Ivars(v)
		if len(names) == 0 {
			return "#<" + cls + ">", nil
		}
		parts := make([]string, len(names))
		for i, n := range names {
			s, err := vm.InspectValue(vm.IvarGet(v, n))
			if err != nil {
				return "", err
			}
			parts[i] = n + "=" + s
		}
		return "#<" + cls + " " + strings.Join(parts, ", ") + ">", nil
	})
}

// inspectArray renders "[1, 2, [...]]".
func (vm *VM) inspectArray(a *Array) (string, error) {
	return vm.withInspectGuard(a, "[...]", func() (string, error) {
		parts := make([]string, len(a.elems))
		for i, e := range a.elems {
			s, err := vm.InspectValue(e)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	})
}
