package vm

// ClassOf returns the real class of v, ignoring any singleton class.
func (vm *VM) ClassOf(v Value) *Module {
	switch x := v.(type) {
	case nil, nilValue:
		return vm.NilClass
	case Bool:
		if x {
			return vm.TrueClass
		}
		return vm.FalseClass
	case Int:
		return vm.IntegerClass
	case Float:
		return vm.FloatClass
	case Symbol:
		return vm.SymbolClass
	case HeapValue:
		if c := x.hdr().class; c != nil {
			return c
		}
		return vm.defaultClass(x)
	}
	return vm.ObjectClass
}

// defaultClass picks the class for a heap value constructed directly in Go
// without a class.
func (vm *VM) defaultClass(v HeapValue) *Module {
	switch v.(type) {
	case *String:
		return vm.StringClass
	case *Array:
		return vm.ArrayClass
	case *Proc:
		return vm.ProcClass
	case *Exception:
		return vm.RuntimeErrorClass
	case *IO:
		return vm.IOClass
	case *Module:
		return vm.ModuleClass
	}
	return vm.ObjectClass
}

// dispatchClass is where method lookup for v starts: its singleton class
// when it has one, otherwise its class. A plain class always dispatches
// through its metaclass so class methods of its superclasses are found.
func (vm *VM) dispatchClass(v Value) *Module {
	if h, ok := v.(HeapValue); ok {
		if meta := h.hdr().meta; meta != nil {
			return meta
		}
	}
	if m, ok := v.(*Module); ok && m.kind == kindClass && !m.IsSingleton() && vm.ClassClass != nil {
		if meta, err := vm.SingletonClass(m); err == nil {
			return meta
		}
	}
	return vm.ClassOf(v)
}

// SingletonClassIfExists returns v's singleton class without creating one.
func (vm *VM) SingletonClassIfExists(v Value) *Module {
	if h, ok := v.(HeapValue); ok {
		return h.hdr().meta
	}
	return nil
}

// SingletonClass returns the singleton class of v, creating it on first
// use. nil, true and false answer their own classes; numbers and symbols
// cannot have one.
func (vm *VM) SingletonClass(v Value) (*Module, error) {
	switch x := v.(type) {
	case nil, nilValue:
		return vm.NilClass, nil
	case Bool:
		if x {
			return vm.TrueClass, nil
		}
		return vm.FalseClass, nil
	case Int, Float, Symbol, *NativeType:
		return nil, vm.Errorf(vm.TypeErrorClass, "can't define singleton")
	}

	h := v.(HeapValue).hdr()
	if h.meta != nil {
		return h.meta, nil
	}

	var super *Module
	if m, ok := v.(*Module); ok {
		switch {
		case m.kind == kindModule:
			super = vm.ModuleClass
		case m.superclass == nil:
			super = vm.ClassClass
		default:
			s, err := vm.SingletonClass(m.superclass)
			if err != nil {
				return nil, err
			}
			super = s
		}
	} else {
		super = vm.ClassOf(v)
	}

	meta := vm.allocateClass("", super, true)
	meta.singletonOf = v
	meta.frozen = h.frozen
	h.meta = meta
	if m, ok := v.(*Module); ok {
		if m.kind == kindClass {
			m.class = vm.ClassClass
		} else {
			m.class = vm.ModuleClass
		}
	}
	return meta, nil
}
