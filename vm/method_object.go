package vm

import "fmt"

// MethodObject is a reified method: a Method when bound to a receiver, an
// UnboundMethod otherwise.
type MethodObject struct {
	Header
	method *Method
	name   string
	origin *Module
	recv   Value
	bound  bool
}

func (*MethodObject) isValue() {}

// Method returns the method record behind the object.
func (mo *MethodObject) Method() *Method { return mo.method }

// Owner returns the module that defines the method. Aliases report the
// owner of the original definition.
func (mo *MethodObject) Owner() *Module { return mo.method.Original().Owner }

// UnboundMethod looks up name on mod the way instance_method does.
func (vm *VM) UnboundMethod(mod *Module, name string) (*MethodObject, error) {
	m := vm.FindMethod(mod, name)
	if m == nil || m.Stub {
		exc := vm.NewException(vm.NameErrorClass,
			"undefined method '"+name+"' for "+mod.kindName()+" '"+vm.Inspect(mod)+"'")
		exc.name = Symbol(name)
		exc.receiver = mod
		return nil, vm.raise(exc)
	}
	mo := &MethodObject{method: m, name: name, origin: mod}
	mo.class = vm.UnboundMethodClass
	return mo, nil
}

// BoundMethod looks up name on recv the way Kernel#method does.
func (vm *VM) BoundMethod(recv Value, name string) (*MethodObject, error) {
	m := vm.MethodFor(recv, name)
	if m == nil {
		ok, err := vm.RespondTo(recv, name, true)
		if err != nil {
			return nil, err
		}
		if !ok {
			exc := vm.NewException(vm.NameErrorClass,
				"undefined method '"+name+"' for "+vm.describeReceiver(recv))
			exc.name = Symbol(name)
			exc.receiver = recv
			return nil, vm.raise(exc)
		}
		// Backed by method_missing.
		mname := name
		m = NewVarMethod(name, 0, func(c *Call) (Value, error) {
			return c.VM.methodMissing(c.Self, mname, c.Args, c.Block)
		})
		m.Owner = vm.dispatchClass(recv)
	}
	mo := &MethodObject{method: m, name: name, origin: vm.dispatchClass(recv), recv: recv, bound: true}
	mo.class = vm.MethodClass
	return mo, nil
}

func (vm *VM) inspectMethodObject(mo *MethodObject) string {
	kind := "UnboundMethod"
	if mo.bound {
		kind = "Method"
	}
	owner := mo.Owner()
	sep := "#"
	label := vm.Inspect(owner)
	if owner.IsSingleton() {
		sep = "."
		label = vm.Inspect(owner.singletonOf)
	}
	s := fmt.Sprintf("#<%s: %s%s%s", kind, label, sep, mo.name)
	if orig := mo.method.Original(); orig.Name != mo.name && orig.Name != "" {
		s += "(" + orig.Name + ")"
	}
	if src := mo.method.Original().Source; src != nil {
		s += " " + src.String()
	}
	return s + ">"
}

// ---------------------------------------------------------------------------
// Method and UnboundMethod Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerMethodObjectPrimitives() {
	sel := vm.Selectors

	vm.KernelModule.AddMethod1(sel, "method", func(c *Call, arg Value) (Value, error) {
		name, err := c.VM.nameArg(arg)
		if err != nil {
			return nil, err
		}
		return c.VM.BoundMethod(c.Self, name)
	})

	for _, cls := range []*Module{vm.MethodClass, vm.UnboundMethodClass} {
		cls.AddMethod0(sel, "name", func(c *Call) (Value, error) {
			return Symbol(c.Self.(*MethodObject).name), nil
		})

		cls.AddMethod0(sel, "original_name", func(c *Call) (Value, error) {
			mo := c.Self.(*MethodObject)
			if n := mo.method.Original().Name; n != "" {
				return Symbol(n), nil
			}
			return Symbol(mo.name), nil
		})

		cls.AddMethod0(sel, "owner", func(c *Call) (Value, error) {
			return c.Self.(*MethodObject).Owner(), nil
		})

		cls.AddMethod0(sel, "arity", func(c *Call) (Value, error) {
			return Int(c.Self.(*MethodObject).method.Original().Arity), nil
		})

		cls.AddMethod0(sel, "source_location", func(c *Call) (Value, error) {
			src := c.Self.(*MethodObject).method.Original().Source
			if src == nil {
				return Nil, nil
			}
			return c.VM.NewArray(c.VM.Str(src.File), Int(src.Line)), nil
		})

		render := func(c *Call) (Value, error) {
			return c.VM.Str(c.VM.inspectMethodObject(c.Self.(*MethodObject))), nil
		}
		cls.AddMethod0(sel, "inspect", render)
		cls.AddMethod0(sel, "to_s", render)
	}

	call := func(c *Call) (Value, error) {
		mo := c.Self.(*MethodObject)
		return c.VM.invoke(mo.method, mo.recv, mo.name, c.Args, c.Block)
	}
	vm.MethodClass.AddVarMethod(sel, "call", 0, call)
	vm.MethodClass.AddVarMethod(sel, "()", 0, call)

	vm.MethodClass.AddMethod0(sel, "receiver", func(c *Call) (Value, error) {
		return c.Self.(*MethodObject).recv, nil
	})

	vm.MethodClass.AddMethod0(sel, "unbind", func(c *Call) (Value, error) {
		mo := c.Self.(*MethodObject)
		u := &MethodObject{method: mo.method, name: mo.name, origin: mo.origin}
		u.class = c.VM.UnboundMethodClass
		return u, nil
	})

	vm.MethodClass.AddMethod0(sel, "to_proc", func(c *Call) (Value, error) {
		mo := c.Self.(*MethodObject)
		return c.VM.NewLambda(mo.recv, mo.method.Original().Arity, func(pc *Call) (Value, error) {
			return pc.VM.invoke(mo.method, mo.recv, mo.name, pc.Args, pc.Block)
		}), nil
	})

	vm.UnboundMethodClass.AddMethod1(sel, "bind", func(c *Call, recv Value) (Value, error) {
		mo := c.Self.(*MethodObject)
		if err := c.VM.checkBindable(mo, recv); err != nil {
			return nil, err
		}
		b := &MethodObject{method: mo.method, name: mo.name, origin: mo.origin, recv: recv, bound: true}
		b.class = c.VM.MethodClass
		return b, nil
	})

	vm.UnboundMethodClass.AddVarMethod(sel, "bind_call", 1, func(c *Call) (Value, error) {
		mo := c.Self.(*MethodObject)
		recv := c.Args[0]
		if err := c.VM.checkBindable(mo, recv); err != nil {
			return nil, err
		}
		return c.VM.invoke(mo.method, recv, mo.name, c.Args[1:], c.Block)
	})
}

// checkBindable rejects binding a method to an object that does not have
// its owner among its ancestors. Methods from modules bind to anything.
func (vm *VM) checkBindable(mo *MethodObject, recv Value) error {
	owner := mo.Owner()
	if owner.kind == kindModule {
		return nil
	}
	if owner.IsSingleton() {
		if owner.singletonOf == recv {
			return nil
		}
		return vm.Errorf(vm.TypeErrorClass, "singleton method called for a different object")
	}
	if !vm.IsA(recv, owner) {
		return vm.Errorf(vm.TypeErrorClass, "bind argument must be an instance of %s", vm.Inspect(owner))
	}
	return nil
}
