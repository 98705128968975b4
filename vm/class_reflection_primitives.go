package vm

// ---------------------------------------------------------------------------
// Module Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerModulePrimitives() {
	m := vm.ModuleClass
	sel := vm.Selectors

	// Naming

	m.AddMethod0(sel, "name", func(c *Call) (Value, error) {
		if name := c.Self.(*Module).Name(); name != "" {
			return c.VM.Str(name), nil
		}
		return Nil, nil
	})

	render := func(c *Call) (Value, error) {
		return c.VM.Str(c.VM.inspectModule(c.Self.(*Module))), nil
	}
	m.AddMethod0(sel, "to_s", render)
	m.AddMethod0(sel, "inspect", render)

	m.AddMethod0(sel, "hash", func(c *Call) (Value, error) {
		return Int(c.VM.ObjectID(c.Self)), nil
	})

	// Ordering

	// === - the case equality rescue clauses rely on; compared by
	// identity against vm.moduleCaseEq to take the fast path.
	m.AddMethod1(sel, "===", func(c *Call, v Value) (Value, error) {
		return FromBool(c.VM.IsA(v, c.Self.(*Module))), nil
	})

	m.AddMethod1(sel, "<", func(c *Call, other Value) (Value, error) {
		return c.VM.compareModules(c.Self.(*Module), other, true)
	})

	m.AddMethod1(sel, "<=", func(c *Call, other Value) (Value, error) {
		return c.VM.compareModules(c.Self.(*Module), other, false)
	})

	m.AddMethod1(sel, ">", func(c *Call, other Value) (Value, error) {
		o, err := c.VM.moduleArg(other, "compared with non class/module")
		if err != nil {
			return nil, err
		}
		return c.VM.compareModules(o, c.Self, true)
	})

	m.AddMethod1(sel, ">=", func(c *Call, other Value) (Value, error) {
		o, err := c.VM.moduleArg(other, "compared with non class/module")
		if err != nil {
			return nil, err
		}
		return c.VM.compareModules(o, c.Self, false)
	})

	// Ancestry

	m.AddMethod0(sel, "ancestors", func(c *Call) (Value, error) {
		return c.VM.moduleArray(c.VM.Ancestors(c.Self.(*Module))), nil
	})

	m.AddMethod0(sel, "included_modules", func(c *Call) (Value, error) {
		return c.VM.moduleArray(c.VM.IncludedModules(c.Self.(*Module))), nil
	})

	m.AddMethod1(sel, "include?", func(c *Call, arg Value) (Value, error) {
		mod, err := c.VM.moduleArg(arg, "wrong argument type "+c.VM.ClassOf(arg).Name()+" (expected Module)")
		if err != nil {
			return nil, err
		}
		return FromBool(c.VM.Includes(c.Self.(*Module), mod)), nil
	})

	m.AddMethod0(sel, "singleton_class?", func(c *Call) (Value, error) {
		return FromBool(c.Self.(*Module).IsSingleton()), nil
	})

	m.AddVarMethod(sel, "include", 1, func(c *Call) (Value, error) {
		mods, err := c.VM.moduleArgs(c.Args)
		if err != nil {
			return nil, err
		}
		if err := c.VM.Include(c.Self.(*Module), mods...); err != nil {
			return nil, err
		}
		return c.Self, nil
	})

	m.AddVarMethod(sel, "prepend", 1, func(c *Call) (Value, error) {
		mods, err := c.VM.moduleArgs(c.Args)
		if err != nil {
			return nil, err
		}
		if err := c.VM.Prepend(c.Self.(*Module), mods...); err != nil {
			return nil, err
		}
		return c.Self, nil
	})

	m.AddMethod1(sel, "append_features", func(c *Call, target Value) (Value, error) {
		t, err := c.VM.moduleArg(target, "wrong argument type "+c.VM.ClassOf(target).Name()+" (expected Module)")
		if err != nil {
			return nil, err
		}
		return c.Self, c.VM.AppendFeatures(c.Self.(*Module), t)
	})

	m.AddMethod1(sel, "prepend_features", func(c *Call, target Value) (Value, error) {
		t, err := c.VM.moduleArg(target, "wrong argument type "+c.VM.ClassOf(target).Name()+" (expected Module)")
		if err != nil {
			return nil, err
		}
		return c.Self, c.VM.PrependFeatures(c.Self.(*Module), t)
	})

	m.AddMethod1(sel, "extend_object", func(c *Call, obj Value) (Value, error) {
		return obj, c.VM.ExtendObject(c.Self.(*Module), obj)
	})

	// Hooks. Pristine no-ops the runtime skips unless overridden.
	for _, hook := range []string{
		"included", "extended", "prepended",
		"method_added", "method_removed", "method_undefined", "const_added",
	} {
		m.AddMethod1(sel, hook, func(c *Call, _ Value) (Value, error) { return Nil, nil })
	}

	m.AddMethod1(sel, "const_missing", func(c *Call, name Value) (Value, error) {
		n, err := c.VM.nameArg(name)
		if err != nil {
			return nil, err
		}
		return nil, c.VM.uninitializedConstant(c.Self.(*Module), n)
	})

	// Methods

	m.AddVarMethod(sel, "instance_methods", 0, func(c *Call) (Value, error) {
		mod := c.Self.(*Module)
		if len(c.Args) > 0 && !Truthy(c.Args[0]) {
			return c.VM.symbolArray(c.VM.ownMethodNames(mod)), nil
		}
		return c.VM.symbolArray(c.VM.methodNames(mod)), nil
	})

	m.AddVarMethod(sel, "method_defined?", 1, func(c *Call) (Value, error) {
		name, err := c.VM.nameArg(c.Args[0])
		if err != nil {
			return nil, err
		}
		mod := c.Self.(*Module)
		var meth *Method
		if len(c.Args) > 1 && !Truthy(c.Args[1]) {
			meth = mod.LocalMethod(c.VM.Selectors, name)
		} else {
			meth = c.VM.FindMethod(mod, name)
		}
		return FromBool(meth != nil && !meth.Stub), nil
	})

	m.AddMethod1(sel, "instance_method", func(c *Call, arg Value) (Value, error) {
		name, err := c.VM.nameArg(arg)
		if err != nil {
			return nil, err
		}
		return c.VM.UnboundMethod(c.Self.(*Module), name)
	})

	m.AddVarMethod(sel, "define_method", 1, func(c *Call) (Value, error) {
		name, err := c.VM.nameArg(c.Args[0])
		if err != nil {
			return nil, err
		}
		mod := c.Self.(*Module)
		body := c.Arg(1)
		switch b := body.(type) {
		case *Proc:
			err = c.VM.DefineBlockMethod(mod, name, b)
		case *MethodObject:
			err = c.VM.DefineMethod(mod, name, b.method.clone())
		default:
			if c.Block == nil {
				return nil, c.VM.Errorf(c.VM.ArgumentErrorClass, "tried to create Proc object without a block")
			}
			err = c.VM.DefineBlockMethod(mod, name, c.Block)
		}
		if err != nil {
			return nil, err
		}
		return Symbol(name), nil
	})

	m.AddMethod2(sel, "alias_method", func(c *Call, newName, oldName Value) (Value, error) {
		nn, err := c.VM.nameArg(newName)
		if err != nil {
			return nil, err
		}
		on, err := c.VM.nameArg(oldName)
		if err != nil {
			return nil, err
		}
		if err := c.VM.Alias(c.Self, nn, on); err != nil {
			return nil, err
		}
		return Symbol(nn), nil
	})

	m.AddVarMethod(sel, "remove_method", 0, func(c *Call) (Value, error) {
		for _, a := range c.Args {
			name, err := c.VM.nameArg(a)
			if err != nil {
				return nil, err
			}
			if err := c.VM.RemoveMethod(c.Self.(*Module), name); err != nil {
				return nil, err
			}
		}
		return c.Self, nil
	})

	m.AddVarMethod(sel, "undef_method", 0, func(c *Call) (Value, error) {
		for _, a := range c.Args {
			name, err := c.VM.nameArg(a)
			if err != nil {
				return nil, err
			}
			if err := c.VM.UndefMethod(c.Self.(*Module), name); err != nil {
				return nil, err
			}
		}
		return c.Self, nil
	})

	attr := func(define func(*Module, ...string) error, suffixes ...string) Func {
		return func(c *Call) (Value, error) {
			names := make([]string, len(c.Args))
			for i, a := range c.Args {
				n, err := c.VM.nameArg(a)
				if err != nil {
					return nil, err
				}
				names[i] = n
			}
			if err := define(c.Self.(*Module), names...); err != nil {
				return nil, err
			}
			var defined []string
			for _, n := range names {
				for _, suffix := range suffixes {
					defined = append(defined, n+suffix)
				}
			}
			return c.VM.symbolArray(defined), nil
		}
	}
	m.AddVarMethod(sel, "attr_reader", 0, attr(vm.AttrReader, ""))
	m.AddVarMethod(sel, "attr", 0, attr(vm.AttrReader, ""))
	m.AddVarMethod(sel, "attr_writer", 0, attr(vm.AttrWriter, "="))
	m.AddVarMethod(sel, "attr_accessor", 0, attr(vm.AttrAccessor, "", "="))

	m.AddVarMethod(sel, "module_function", 0, func(c *Call) (Value, error) {
		names := make([]string, len(c.Args))
		for i, a := range c.Args {
			n, err := c.VM.nameArg(a)
			if err != nil {
				return nil, err
			}
			names[i] = n
		}
		if err := c.VM.ModuleFunction(c.Self.(*Module), names...); err != nil {
			return nil, err
		}
		return Nil, nil
	})

	// Visibility is not modelled; every method is public.
	for _, name := range []string{"public", "private", "protected", "private_class_method", "public_class_method", "private_constant"} {
		m.AddVarMethod(sel, name, 0, func(c *Call) (Value, error) {
			if err := c.VM.Unsupported("method visibility"); err != nil {
				return nil, err
			}
			return Nil, nil
		})
	}

	// Constants

	m.AddVarMethod(sel, "const_get", 1, func(c *Call) (Value, error) {
		name, err := c.VM.nameArg(c.Args[0])
		if err != nil {
			return nil, err
		}
		inherit := len(c.Args) < 2 || Truthy(c.Args[1])
		return c.VM.constGetPath(c.Self.(*Module), name, inherit)
	})

	m.AddMethod2(sel, "const_set", func(c *Call, name, v Value) (Value, error) {
		n, err := c.VM.nameArg(name)
		if err != nil {
			return nil, err
		}
		if !validConstName(n) {
			exc := c.VM.NewException(c.VM.NameErrorClass, "wrong constant name "+n)
			exc.name = Symbol(n)
			return nil, c.VM.raise(exc)
		}
		return c.VM.ConstSet(c.Self.(*Module), n, v)
	})

	m.AddVarMethod(sel, "const_defined?", 1, func(c *Call) (Value, error) {
		name, err := c.VM.nameArg(c.Args[0])
		if err != nil {
			return nil, err
		}
		inherit := len(c.Args) < 2 || Truthy(c.Args[1])
		v, err := c.VM.constLookupPath(c.Self.(*Module), name, inherit)
		if err != nil {
			return nil, err
		}
		return FromBool(v), nil
	})

	m.AddVarMethod(sel, "constants", 0, func(c *Call) (Value, error) {
		inherit := len(c.Args) == 0 || Truthy(c.Args[0])
		return c.VM.symbolArray(c.VM.Constants(c.Self.(*Module), inherit)), nil
	})

	m.AddMethod1(sel, "remove_const", func(c *Call, name Value) (Value, error) {
		n, err := c.VM.nameArg(name)
		if err != nil {
			return nil, err
		}
		return c.VM.ConstRemove(c.Self.(*Module), n)
	})

	m.AddMethod2(sel, "autoload", func(c *Call, name, path Value) (Value, error) {
		n, err := c.VM.nameArg(name)
		if err != nil {
			return nil, err
		}
		p, err := c.VM.pathArg(path)
		if err != nil {
			return nil, err
		}
		return Nil, c.VM.Autoload(c.Self.(*Module), n, p)
	})

	m.AddMethod1(sel, "autoload?", func(c *Call, name Value) (Value, error) {
		n, err := c.VM.nameArg(name)
		if err != nil {
			return nil, err
		}
		if p := c.VM.AutoloadPath(c.Self.(*Module), n); p != "" {
			return c.VM.Str(p), nil
		}
		return Nil, nil
	})

	// Class variables

	m.AddMethod1(sel, "class_variable_get", func(c *Call, name Value) (Value, error) {
		n, err := c.VM.nameArg(name)
		if err != nil {
			return nil, err
		}
		return c.VM.ClassVarGet(c.Self.(*Module), n)
	})

	m.AddMethod2(sel, "class_variable_set", func(c *Call, name, v Value) (Value, error) {
		n, err := c.VM.nameArg(name)
		if err != nil {
			return nil, err
		}
		return v, c.VM.ClassVarSet(c.Self.(*Module), n, v)
	})

	m.AddMethod1(sel, "class_variable_defined?", func(c *Call, name Value) (Value, error) {
		n, err := c.VM.nameArg(name)
		if err != nil {
			return nil, err
		}
		return FromBool(c.VM.ClassVarDefined(c.Self.(*Module), n)), nil
	})

	m.AddMethod0(sel, "class_variables", func(c *Call) (Value, error) {
		return c.VM.symbolArray(c.VM.ClassVars(c.Self.(*Module))), nil
	})

	// Evaluation

	eval := func(c *Call) (Value, error) {
		if c.Block == nil {
			if len(c.Args) > 0 {
				return nil, c.VM.Unsupported("module_eval with a string")
			}
			return nil, c.VM.Errorf(c.VM.ArgumentErrorClass, "wrong number of arguments (given 0, expected 1..3)")
		}
		return c.VM.ModuleEval(c.Self.(*Module), c.Block, c.Self)
	}
	m.AddVarMethod(sel, "module_eval", 0, eval)
	m.AddVarMethod(sel, "class_eval", 0, eval)

	exec := func(c *Call) (Value, error) {
		if c.Block == nil {
			return nil, c.VM.Errorf(c.VM.LocalJumpErrorClass, "no block given (yield)")
		}
		return c.VM.ModuleEval(c.Self.(*Module), c.Block, c.Args...)
	}
	m.AddVarMethod(sel, "module_exec", 0, exec)
	m.AddVarMethod(sel, "class_exec", 0, exec)

	// Refinements

	m.AddMethod1(sel, "refine", func(c *Call, target Value) (Value, error) {
		t, err := c.VM.moduleArg(target, "wrong argument type "+c.VM.ClassOf(target).Name()+" (expected Class or Module)")
		if err != nil {
			return nil, err
		}
		if c.Block == nil {
			return nil, c.VM.Errorf(c.VM.ArgumentErrorClass, "no block given")
		}
		r, err := c.VM.Refine(c.Self.(*Module), t)
		if err != nil {
			return nil, err
		}
		if _, err := c.VM.ModuleEval(r, c.Block, r); err != nil {
			return nil, err
		}
		return r, nil
	})

	m.AddMethod0(sel, "refinements", func(c *Call) (Value, error) {
		owner := c.Self.(*Module)
		mods := make([]*Module, 0, len(owner.refinementOrder))
		for _, target := range owner.refinementOrder {
			mods = append(mods, owner.refinements[target])
		}
		return c.VM.moduleArray(mods), nil
	})

	m.AddMethod0(sel, "target", func(c *Call) (Value, error) {
		if t := c.Self.(*Module).refinedClass; t != nil {
			return t, nil
		}
		return nil, c.VM.noMethodError(c.Self, "target", nil)
	})

	// Module.new - singleton method on Module itself.
	meta, _ := vm.SingletonClass(vm.ModuleClass)
	meta.AddMethod0(sel, "new", func(c *Call) (Value, error) {
		mod := c.VM.AllocateModule("")
		if c.Block != nil {
			if _, err := c.VM.ModuleEval(mod, c.Block, mod); err != nil {
				return nil, err
			}
		}
		return mod, nil
	})
}

// compareModules implements Module#< (strict) and Module#<=: true when a
// descends from b, false when b descends from a, nil when unrelated.
func (vm *VM) compareModules(a *Module, b Value, strict bool) (Value, error) {
	other, err := vm.moduleArg(b, "compared with non class/module")
	if err != nil {
		return nil, err
	}
	if a == other {
		return FromBool(!strict), nil
	}
	if vm.IsSubclassOf(a, other) {
		return True, nil
	}
	if vm.IsSubclassOf(other, a) {
		return False, nil
	}
	return Nil, nil
}

// constGetPath is Module#const_get: "A::B" paths are resolved one segment
// at a time. Modules fall back to Object when inherit is set.
func (vm *VM) constGetPath(scope *Module, path string, inherit bool) (Value, error) {
	parts := splitConstPath(path)
	var cur Value = scope
	if parts[0] == "" {
		cur = vm.ObjectClass
		parts = parts[1:]
	}
	for _, p := range parts {
		if !validConstName(p) {
			exc := vm.NewException(vm.NameErrorClass, "wrong constant name "+path)
			exc.name = Symbol(path)
			return nil, vm.raise(exc)
		}
		mod, err := vm.constScope(cur)
		if err != nil {
			return nil, err
		}
		var v Value
		if inherit {
			v, err = vm.ConstGetQualified(mod, p, true)
			if err == nil && v == nil && mod.kind == kindModule {
				v, err = vm.ConstGetQualified(vm.ObjectClass, p, true)
			}
		} else {
			v, err = vm.ConstGetLocal(mod, p, true)
		}
		if err != nil {
			return nil, err
		}
		if v == nil {
			if v, err = vm.constMissing(mod, p); err != nil {
				return nil, err
			}
		}
		cur = v
	}
	return cur, nil
}

// constLookupPath is Module#const_defined? for a possibly qualified name.
func (vm *VM) constLookupPath(scope *Module, path string, inherit bool) (bool, error) {
	parts := splitConstPath(path)
	cur := scope
	if parts[0] == "" {
		cur = vm.ObjectClass
		parts = parts[1:]
	}
	for i, p := range parts {
		if !validConstName(p) {
			exc := vm.NewException(vm.NameErrorClass, "wrong constant name "+path)
			exc.name = Symbol(path)
			return false, vm.raise(exc)
		}
		if !vm.ConstDefined(cur, p, inherit) {
			return false, nil
		}
		if i == len(parts)-1 {
			break
		}
		v, err := vm.constGetPath(cur, p, inherit)
		if err != nil {
			return false, err
		}
		next, ok := v.(*Module)
		if !ok {
			return false, nil
		}
		cur = next
	}
	return true, nil
}

// ---------------------------------------------------------------------------
// Class Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerClassPrimitives() {
	c := vm.ClassClass
	sel := vm.Selectors

	c.AddMethod0(sel, "allocate", func(c *Call) (Value, error) {
		obj, err := c.VM.Allocate(c.Self.(*Module))
		if err != nil {
			return nil, err
		}
		return obj, nil
	})

	c.AddVarMethod(sel, "new", 0, func(c *Call) (Value, error) {
		return c.VM.New(c.Self.(*Module), c.Block, c.Args...)
	})

	c.AddMethod0(sel, "superclass", func(c *Call) (Value, error) {
		if s := c.Self.(*Module).superclass; s != nil {
			return s, nil
		}
		return Nil, nil
	})

	c.AddMethod0(sel, "subclasses", func(c *Call) (Value, error) {
		return c.VM.moduleArray(c.VM.Subclasses(c.Self.(*Module))), nil
	})

	c.AddMethod0(sel, "attached_object", func(c *Call) (Value, error) {
		m := c.Self.(*Module)
		if !m.IsSingleton() {
			return nil, c.VM.Errorf(c.VM.TypeErrorClass, "'%s' is not a singleton class", c.VM.Inspect(m))
		}
		return m.singletonOf, nil
	})

	c.AddMethod1(sel, "inherited", func(c *Call, _ Value) (Value, error) {
		return Nil, nil
	})

	// Class.new - singleton method on Class itself.
	meta, _ := vm.SingletonClass(vm.ClassClass)
	meta.AddVarMethod(sel, "new", 0, func(c *Call) (Value, error) {
		var super Value = Nil
		if len(c.Args) > 0 {
			super = c.Args[0]
		}
		klass, err := c.VM.NewClass(super)
		if err != nil {
			return nil, err
		}
		if c.Block != nil {
			if _, err := c.VM.ModuleEval(klass, c.Block, klass); err != nil {
				return nil, err
			}
		}
		return klass, nil
	})
}
