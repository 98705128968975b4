package vm

// ---------------------------------------------------------------------------
// Method definition
// ---------------------------------------------------------------------------

// Define installs m on target the way a def statement does: on the module
// itself when target is a module, on Object when target is the main
// object, and on the singleton class otherwise. A module being
// instance_eval'd receives singleton methods.
func (vm *VM) Define(target Value, name string, m *Method) error {
	if mod, ok := target.(*Module); ok && !vm.inInstanceEval(mod) {
		return vm.DefineMethod(mod, name, m)
	}
	if target == Value(vm.Main) {
		return vm.DefineMethod(vm.ObjectClass, name, m)
	}
	return vm.DefineSingletonMethod(target, name, m)
}

// DefineMethod installs m in mod's method table and fires method_added
// (singleton_method_added for singleton classes). Under module_function
// the method is copied to the module's singleton class as well.
func (vm *VM) DefineMethod(mod *Module, name string, m *Method) error {
	if err := vm.CheckFrozen(mod); err != nil {
		return err
	}
	m.Name = name
	m.Owner = mod
	mod.vtable.AddMethod(vm.Selectors.Intern(name), m)

	if mod.kind == kindModule && mod.moduleFunction {
		meta, err := vm.SingletonClass(mod)
		if err != nil {
			return err
		}
		dup := m.clone()
		dup.Owner = meta
		meta.vtable.AddMethod(vm.Selectors.Intern(name), dup)
	}

	if m.Stub {
		return nil
	}
	if mod.IsSingleton() {
		return vm.callHook(mod.singletonOf, "singleton_method_added", Symbol(name))
	}
	return vm.callHook(mod, "method_added", Symbol(name))
}

// DefineSingletonMethod installs m on obj's singleton class.
func (vm *VM) DefineSingletonMethod(obj Value, name string, m *Method) error {
	switch obj.(type) {
	case Int, Float, Symbol:
		return vm.Errorf(vm.TypeErrorClass, "can't define singleton")
	}
	if err := vm.CheckFrozen(obj); err != nil {
		return err
	}
	meta, err := vm.SingletonClass(obj)
	if err != nil {
		return err
	}
	return vm.DefineMethod(meta, name, m)
}

// DefineBlockMethod installs a define_method style method whose body is
// blk called with the receiver as self.
func (vm *VM) DefineBlockMethod(mod *Module, name string, blk *Proc) error {
	m := &Method{
		Arity:   blk.arity,
		Dynamic: true,
		body: func(c *Call) (Value, error) {
			return blk.fn(c)
		},
	}
	if !blk.lambda && m.Arity > 0 {
		m.Arity = -1
		inner := m.body
		want := blk.arity
		m.body = func(c *Call) (Value, error) {
			c.Args = fitArgs(c.Args, want)
			return inner(c)
		}
	}
	return vm.DefineMethod(mod, name, m)
}

// Alias makes newName refer to the method oldName resolves to on target.
// Aliases always point at the original definition, and super inside an
// alias continues from the original's owner.
func (vm *VM) Alias(target Value, newName, oldName string) error {
	mod, err := vm.aliasTarget(target)
	if err != nil {
		return err
	}
	body := vm.FindMethod(mod, oldName)
	if (body == nil || body.Stub) && mod.kind == kindModule {
		body = vm.FindMethod(vm.ObjectClass, oldName)
	}
	if body == nil || body.Stub {
		exc := vm.NewException(vm.NameErrorClass,
			"undefined method '"+oldName+"' for "+mod.kindName()+" '"+vm.Inspect(mod)+"'")
		exc.name = Symbol(oldName)
		exc.receiver = mod
		return vm.raise(exc)
	}
	orig := body.Original()
	alias := &Method{
		Arity:   orig.Arity,
		Params:  orig.Params,
		Source:  orig.Source,
		AliasOf: orig,
		Dynamic: orig.Dynamic,
		body:    orig.body,
	}
	return vm.DefineMethod(mod, newName, alias)
}

func (vm *VM) aliasTarget(target Value) (*Module, error) {
	if mod, ok := target.(*Module); ok && !vm.inInstanceEval(mod) {
		return mod, nil
	}
	if target == Value(vm.Main) {
		return vm.ObjectClass, nil
	}
	return vm.SingletonClass(target)
}

// RemoveMethod deletes mod's own definition of name. Inherited
// definitions become visible again.
func (vm *VM) RemoveMethod(mod *Module, name string) error {
	if err := vm.CheckFrozen(mod); err != nil {
		return err
	}
	sel := vm.Selectors.Lookup(name)
	if sel < 0 || !mod.vtable.HasMethod(sel) {
		exc := vm.NewException(vm.NameErrorClass, "method '"+name+"' not defined in "+vm.Inspect(mod))
		exc.name = Symbol(name)
		exc.receiver = mod
		return vm.raise(exc)
	}
	mod.vtable.RemoveMethod(sel)
	if mod.IsSingleton() {
		return vm.callHook(mod.singletonOf, "singleton_method_removed", Symbol(name))
	}
	return vm.callHook(mod, "method_removed", Symbol(name))
}

// UndefMethod blocks name on mod: sends of name to instances fall
// through to method_missing even when an ancestor defines it.
func (vm *VM) UndefMethod(mod *Module, name string) error {
	if err := vm.CheckFrozen(mod); err != nil {
		return err
	}
	if m := vm.FindMethod(mod, name); m == nil || m.Stub {
		exc := vm.NewException(vm.NameErrorClass,
			"undefined method '"+name+"' for "+mod.kindName()+" '"+vm.Inspect(mod)+"'")
		exc.name = Symbol(name)
		exc.receiver = mod
		return vm.raise(exc)
	}
	stub := newStub(name)
	stub.Undefined = true
	stub.Owner = mod
	mod.vtable.AddMethod(vm.Selectors.Intern(name), stub)
	if mod.IsSingleton() {
		return vm.callHook(mod.singletonOf, "singleton_method_undefined", Symbol(name))
	}
	return vm.callHook(mod, "method_undefined", Symbol(name))
}

// AddStubs installs method_missing stubs on BasicObject for names, so
// sends of those names reach a method_missing defined anywhere below.
func (vm *VM) AddStubs(names ...string) {
	vm.BasicObjectClass.AddStubs(vm.Selectors, names...)
}

// ModuleFunction copies the named methods of mod to its singleton class.
// With no names, later definitions in mod are copied as they are made.
func (vm *VM) ModuleFunction(mod *Module, names ...string) error {
	if mod.kind != kindModule {
		return vm.Errorf(vm.TypeErrorClass, "module_function must be called for modules")
	}
	if len(names) == 0 {
		mod.moduleFunction = true
		return nil
	}
	meta, err := vm.SingletonClass(mod)
	if err != nil {
		return err
	}
	for _, name := range names {
		m := vm.FindMethod(mod, name)
		if m == nil || m.Stub {
			exc := vm.NewException(vm.NameErrorClass, "undefined method '"+name+"' for module '"+vm.Inspect(mod)+"'")
			exc.name = Symbol(name)
			return vm.raise(exc)
		}
		dup := m.clone()
		dup.Owner = meta
		meta.vtable.AddMethod(vm.Selectors.Intern(name), dup)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Attribute accessors
// ---------------------------------------------------------------------------

// AttrReader defines name returning @name.
func (vm *VM) AttrReader(mod *Module, names ...string) error {
	for _, name := range names {
		if !validIdentifier(name) {
			return vm.Errorf(vm.NameErrorClass, "invalid attribute name '%s'", name)
		}
		ivarName := "@" + name
		m := NewMethod0(name, func(c *Call) (Value, error) {
			return c.VM.IvarGet(c.Self, ivarName), nil
		})
		if err := vm.DefineMethod(mod, name, m); err != nil {
			return err
		}
	}
	return nil
}

// AttrWriter defines name= assigning @name.
func (vm *VM) AttrWriter(mod *Module, names ...string) error {
	for _, name := range names {
		if !validIdentifier(name) {
			return vm.Errorf(vm.NameErrorClass, "invalid attribute name '%s'", name)
		}
		ivarName := "@" + name
		m := NewMethod1(name+"=", func(c *Call, v Value) (Value, error) {
			if err := c.VM.IvarSet(c.Self, ivarName, v); err != nil {
				return nil, err
			}
			return v, nil
		})
		if err := vm.DefineMethod(mod, name+"=", m); err != nil {
			return err
		}
	}
	return nil
}

// AttrAccessor defines both reader and writer.
func (vm *VM) AttrAccessor(mod *Module, names ...string) error {
	if err := vm.AttrReader(mod, names...); err != nil {
		return err
	}
	return vm.AttrWriter(mod, names...)
}

// ---------------------------------------------------------------------------
// instance_eval
// ---------------------------------------------------------------------------

func (vm *VM) inInstanceEval(m *Module) bool {
	return vm.instanceEvals[m] > 0
}

// InstanceEval calls blk with obj as self. While it runs, def and alias
// aimed at obj target its singleton class.
func (vm *VM) InstanceEval(obj Value, blk *Proc, args ...Value) (Value, error) {
	if mod, ok := obj.(*Module); ok {
		vm.instanceEvals[mod]++
		defer func() {
			if vm.instanceEvals[mod]--; vm.instanceEvals[mod] <= 0 {
				delete(vm.instanceEvals, mod)
			}
		}()
	}
	return vm.callProc(blk, obj, args, nil)
}

// ModuleEval calls blk with mod as self, for class_eval style blocks.
func (vm *VM) ModuleEval(mod *Module, blk *Proc, args ...Value) (Value, error) {
	return vm.callProc(blk, mod, args, nil)
}
