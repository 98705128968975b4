package vm

import (
	"fmt"
	"io"
	"sort"
)

// ---------------------------------------------------------------------------
// BasicObject Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerBasicObjectPrimitives() {
	c := vm.BasicObjectClass
	sel := vm.Selectors

	c.AddMethod0(sel, "initialize", func(c *Call) (Value, error) {
		return Nil, nil
	})

	identical := func(c *Call, other Value) (Value, error) {
		return FromBool(c.Self == other), nil
	}
	c.AddMethod1(sel, "==", identical)
	c.AddMethod1(sel, "equal?", identical)

	c.AddMethod0(sel, "!", func(c *Call) (Value, error) {
		return FromBool(!Truthy(c.Self)), nil
	})

	c.AddMethod1(sel, "!=", func(c *Call, other Value) (Value, error) {
		eq, err := c.VM.Send(c.Self, "==", other)
		if err != nil {
			return nil, err
		}
		return FromBool(!Truthy(eq)), nil
	})

	c.AddMethod0(sel, "__id__", func(c *Call) (Value, error) {
		return Int(c.VM.ObjectID(c.Self)), nil
	})

	c.AddVarMethod(sel, "__send__", 1, primSend)

	c.AddVarMethod(sel, "instance_eval", 0, func(c *Call) (Value, error) {
		if c.Block == nil {
			if len(c.Args) > 0 {
				return nil, c.VM.Unsupported("instance_eval with a string")
			}
			return nil, c.VM.Errorf(c.VM.ArgumentErrorClass, "wrong number of arguments (given 0, expected 1..3)")
		}
		return c.VM.InstanceEval(c.Self, c.Block, c.Self)
	})

	c.AddVarMethod(sel, "instance_exec", 0, func(c *Call) (Value, error) {
		if c.Block == nil {
			return nil, c.VM.Errorf(c.VM.LocalJumpErrorClass, "no block given (yield)")
		}
		return c.VM.InstanceEval(c.Self, c.Block, c.Args...)
	})

	// method_missing - reached only through an explicit send; dispatch
	// skips the built-in version and raises directly.
	c.AddVarMethod(sel, "method_missing", 1, func(c *Call) (Value, error) {
		name, err := c.VM.nameArg(c.Args[0])
		if err != nil {
			return nil, err
		}
		return nil, c.VM.noMethodError(c.Self, name, c.Args[1:])
	})

	// Hooks. Pristine no-ops that definition and removal fire.
	for _, hook := range []string{"singleton_method_added", "singleton_method_removed", "singleton_method_undefined"} {
		c.AddMethod1(sel, hook, func(c *Call, _ Value) (Value, error) { return Nil, nil })
	}
}

// primSend implements send and __send__.
func primSend(c *Call) (Value, error) {
	name, err := c.VM.nameArg(c.Args[0])
	if err != nil {
		return nil, err
	}
	return c.VM.SendBlock(c.Self, name, c.Block, c.Args[1:]...)
}

// ---------------------------------------------------------------------------
// Kernel Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerKernelPrimitives() {
	k := vm.KernelModule
	sel := vm.Selectors

	// Identity and classification

	k.AddMethod0(sel, "class", func(c *Call) (Value, error) {
		return c.VM.ClassOf(c.Self), nil
	})

	k.AddMethod0(sel, "singleton_class", func(c *Call) (Value, error) {
		meta, err := c.VM.SingletonClass(c.Self)
		if err != nil {
			return nil, err
		}
		return meta, nil
	})

	k.AddMethod0(sel, "object_id", func(c *Call) (Value, error) {
		return Int(c.VM.ObjectID(c.Self)), nil
	})

	k.AddMethod0(sel, "hash", func(c *Call) (Value, error) {
		return Int(c.VM.ObjectID(c.Self)), nil
	})

	k.AddMethod1(sel, "eql?", func(c *Call, other Value) (Value, error) {
		return FromBool(c.Self == other), nil
	})

	k.AddMethod1(sel, "===", func(c *Call, other Value) (Value, error) {
		if c.Self == other {
			return True, nil
		}
		eq, err := c.VM.Send(c.Self, "==", other)
		if err != nil {
			return nil, err
		}
		return FromBool(Truthy(eq)), nil
	})

	k.AddMethod0(sel, "nil?", func(c *Call) (Value, error) {
		return False, nil
	})

	isA := func(c *Call, arg Value) (Value, error) {
		mod, err := c.VM.moduleArg(arg, "class or module required")
		if err != nil {
			return nil, err
		}
		return FromBool(c.VM.IsA(c.Self, mod)), nil
	}
	k.AddMethod1(sel, "is_a?", isA)
	k.AddMethod1(sel, "kind_of?", isA)

	k.AddMethod1(sel, "instance_of?", func(c *Call, arg Value) (Value, error) {
		mod, err := c.VM.moduleArg(arg, "class or module required")
		if err != nil {
			return nil, err
		}
		return FromBool(c.VM.ClassOf(c.Self) == mod), nil
	})

	k.AddVarMethod(sel, "respond_to?", 1, func(c *Call) (Value, error) {
		name, err := c.VM.nameArg(c.Args[0])
		if err != nil {
			return nil, err
		}
		ok, err := c.VM.RespondTo(c.Self, name, Truthy(c.Arg(1)))
		if err != nil {
			return nil, err
		}
		return FromBool(ok), nil
	})

	k.AddMethod2(sel, "respond_to_missing?", func(c *Call, _, _ Value) (Value, error) {
		return False, nil
	})

	k.AddVarMethod(sel, "send", 1, primSend)
	k.AddVarMethod(sel, "public_send", 1, primSend)

	k.AddMethod0(sel, "itself", func(c *Call) (Value, error) {
		return c.Self, nil
	})

	// Freezing

	k.AddMethod0(sel, "freeze", func(c *Call) (Value, error) {
		return c.VM.Freeze(c.Self), nil
	})

	k.AddMethod0(sel, "frozen?", func(c *Call) (Value, error) {
		return FromBool(Frozen(c.Self)), nil
	})

	k.AddMethod0(sel, "dup", func(c *Call) (Value, error) {
		return c.VM.dup(c.Self)
	})

	k.AddMethod1(sel, "initialize_copy", func(c *Call, _ Value) (Value, error) {
		return c.Self, nil
	})

	// Rendering

	k.AddMethod0(sel, "inspect", func(c *Call) (Value, error) {
		if _, ok := c.Self.(*Object); ok {
			s, err := c.VM.inspectObject(c.Self)
			if err != nil {
				return nil, err
			}
			return c.VM.Str(s), nil
		}
		return c.VM.Str(c.VM.defaultInspect(c.Self)), nil
	})

	k.AddMethod0(sel, "to_s", func(c *Call) (Value, error) {
		cls := c.VM.ClassOf(c.Self)
		name := cls.Name()
		if name == "" {
			name = c.VM.Inspect(cls)
		}
		return c.VM.Str(fmt.Sprintf("#<%s:0x%016x>", name, uint64(c.VM.ObjectID(c.Self)))), nil
	})

	// Instance variables

	k.AddMethod1(sel, "instance_variable_get", func(c *Call, arg Value) (Value, error) {
		name, err := c.VM.ivarArg(arg)
		if err != nil {
			return nil, err
		}
		return c.VM.IvarGet(c.Self, name), nil
	})

	k.AddMethod2(sel, "instance_variable_set", func(c *Call, arg, v Value) (Value, error) {
		name, err := c.VM.ivarArg(arg)
		if err != nil {
			return nil, err
		}
		if err := c.VM.IvarSet(c.Self, name, v); err != nil {
			return nil, err
		}
		return v, nil
	})

	k.AddMethod1(sel, "instance_variable_defined?", func(c *Call, arg Value) (Value, error) {
		name, err := c.VM.ivarArg(arg)
		if err != nil {
			return nil, err
		}
		return FromBool(c.VM.IvarDefined(c.Self, name)), nil
	})

	k.AddMethod1(sel, "remove_instance_variable", func(c *Call, arg Value) (Value, error) {
		name, err := c.VM.ivarArg(arg)
		if err != nil {
			return nil, err
		}
		return c.VM.IvarRemove(c.Self, name)
	})

	k.AddMethod0(sel, "instance_variables", func(c *Call) (Value, error) {
		return c.VM.symbolArray(c.VM.Ivars(c.Self)), nil
	})

	// Singleton behavior

	k.AddVarMethod(sel, "extend", 1, func(c *Call) (Value, error) {
		mods, err := c.VM.moduleArgs(c.Args)
		if err != nil {
			return nil, err
		}
		if err := c.VM.Extend(c.Self, mods...); err != nil {
			return nil, err
		}
		return c.Self, nil
	})

	k.AddMethod1(sel, "define_singleton_method", func(c *Call, arg Value) (Value, error) {
		name, err := c.VM.nameArg(arg)
		if err != nil {
			return nil, err
		}
		if c.Block == nil {
			return nil, c.VM.Errorf(c.VM.ArgumentErrorClass, "tried to create Proc object without a block")
		}
		meta, err := c.VM.SingletonClass(c.Self)
		if err != nil {
			return nil, err
		}
		if err := c.VM.CheckFrozen(c.Self); err != nil {
			return nil, err
		}
		if err := c.VM.DefineBlockMethod(meta, name, c.Block); err != nil {
			return nil, err
		}
		return Symbol(name), nil
	})

	k.AddMethod0(sel, "singleton_methods", func(c *Call) (Value, error) {
		meta := c.VM.SingletonClassIfExists(c.Self)
		if meta == nil {
			return c.VM.NewArray(), nil
		}
		return c.VM.symbolArray(c.VM.ownMethodNames(meta)), nil
	})

	k.AddMethod0(sel, "methods", func(c *Call) (Value, error) {
		return c.VM.symbolArray(c.VM.methodNames(c.VM.dispatchClass(c.Self))), nil
	})

	// Blocks

	k.AddMethod0(sel, "tap", func(c *Call) (Value, error) {
		if _, err := c.Yield(c.Self); err != nil {
			return nil, err
		}
		return c.Self, nil
	})

	k.AddMethod0(sel, "then", func(c *Call) (Value, error) {
		return c.Yield(c.Self)
	})

	k.AddMethod0(sel, "proc", func(c *Call) (Value, error) {
		if c.Block == nil {
			return nil, c.VM.Errorf(c.VM.ArgumentErrorClass, "tried to create Proc object without a block")
		}
		return c.Block, nil
	})

	k.AddMethod0(sel, "lambda", func(c *Call) (Value, error) {
		if c.Block == nil {
			return nil, c.VM.Errorf(c.VM.ArgumentErrorClass, "tried to create Proc object without a block")
		}
		l := *c.Block
		l.lambda = true
		l.Header = Header{class: c.VM.ProcClass}
		return &l, nil
	})

	// loop - runs the block until it raises StopIteration, whose result
	// becomes the return value.
	k.AddMethod0(sel, "loop", func(c *Call) (Value, error) {
		if c.Block == nil {
			return nil, c.VM.Errorf(c.VM.LocalJumpErrorClass, "no block given (yield)")
		}
		for {
			_, err := c.Yield()
			if err == nil {
				continue
			}
			return c.VM.Rescue(err, []Value{c.VM.StopIterationClass}, func(exc *Exception) (Value, error) {
				if exc.value != nil {
					return exc.value, nil
				}
				return Nil, nil
			})
		}
	})

	// Exceptions and non-local exits

	raise := func(c *Call) (Value, error) {
		return nil, c.VM.Raise(c.Args...)
	}
	k.AddVarMethod(sel, "raise", 0, raise)
	k.AddVarMethod(sel, "fail", 0, raise)

	k.AddVarMethod(sel, "catch", 0, func(c *Call) (Value, error) {
		var tag Value
		if len(c.Args) > 0 {
			tag = c.Args[0]
		}
		return c.VM.Catch(tag, func(tag Value) (Value, error) {
			return c.Yield(tag)
		})
	})

	k.AddVarMethod(sel, "throw", 1, func(c *Call) (Value, error) {
		return nil, c.VM.Throw(c.Args[0], c.Arg(1))
	})

	// Loading

	k.AddMethod1(sel, "require", func(c *Call, arg Value) (Value, error) {
		p, err := c.VM.pathArg(arg)
		if err != nil {
			return nil, err
		}
		ran, err := c.VM.Require(p)
		if err != nil {
			return nil, err
		}
		return FromBool(ran), nil
	})

	k.AddMethod1(sel, "load", func(c *Call, arg Value) (Value, error) {
		p, err := c.VM.pathArg(arg)
		if err != nil {
			return nil, err
		}
		if err := c.VM.Load(p); err != nil {
			return nil, err
		}
		return True, nil
	})

	k.AddMethod2(sel, "autoload", func(c *Call, name, path Value) (Value, error) {
		n, err := c.VM.nameArg(name)
		if err != nil {
			return nil, err
		}
		p, err := c.VM.pathArg(path)
		if err != nil {
			return nil, err
		}
		return Nil, c.VM.Autoload(c.VM.ObjectClass, n, p)
	})

	// Process

	k.AddMethod0(sel, "at_exit", func(c *Call) (Value, error) {
		if c.Block == nil {
			return nil, c.VM.Errorf(c.VM.ArgumentErrorClass, "called without a block")
		}
		c.VM.AtExit(c.Block)
		return c.Block, nil
	})

	k.AddVarMethod(sel, "exit", 0, func(c *Call) (Value, error) {
		status := 0
		switch s := c.Arg(0).(type) {
		case Int:
			status = int(s)
		case Bool:
			if !s {
				status = 1
			}
		}
		return nil, c.VM.Exit(status)
	})

	// Output

	k.AddVarMethod(sel, "puts", 0, func(c *Call) (Value, error) {
		return Nil, c.VM.puts(c.VM.Stdout(), c.Args)
	})

	k.AddVarMethod(sel, "print", 0, func(c *Call) (Value, error) {
		return Nil, c.VM.print(c.VM.Stdout(), c.Args)
	})

	k.AddVarMethod(sel, "p", 0, func(c *Call) (Value, error) {
		return c.VM.p(c.VM.Stdout(), c.Args)
	})

	k.AddVarMethod(sel, "warn", 0, func(c *Call) (Value, error) {
		stderr, ok := c.VM.GlobalGet("$stderr").(*IO)
		if !ok || stderr.w == nil {
			return Nil, nil
		}
		return Nil, c.VM.puts(stderr, c.Args)
	})
}

// puts writes each argument followed by a newline. Arrays are flattened and
// an empty argument list writes a blank line.
func (vm *VM) puts(w io.Writer, args []Value) error {
	if w == nil {
		return nil
	}
	if len(args) == 0 {
		_, err := io.WriteString(w, "\n")
		return err
	}
	for _, a := range args {
		if arr, ok := a.(*Array); ok {
			if err := vm.puts(w, arr.elems); err != nil {
				return err
			}
			continue
		}
		s, err := vm.ToS(a)
		if err != nil {
			return err
		}
		if len(s) == 0 || s[len(s)-1] != '\n' {
			s += "\n"
		}
		if _, err := io.WriteString(w, s); err != nil {
			return err
		}
	}
	return nil
}

// dup makes a shallow copy of v that is not frozen and has no singleton
// class. Immediates are returned as they are.
func (vm *VM) dup(v Value) (Value, error) {
	var out HeapValue
	switch x := v.(type) {
	case *Object:
		out = &Object{}
	case *String:
		out = &String{str: x.str}
	case *Array:
		out = &Array{elems: append([]Value(nil), x.elems...)}
	case *Exception:
		e := *x
		e.Header = Header{}
		out = &e
	case *Module:
		if err := vm.Unsupported("dup of a module"); err != nil {
			return nil, err
		}
		return v, nil
	case HeapValue:
		return nil, vm.Errorf(vm.TypeErrorClass, "can't dup %s", vm.ClassOf(v).Name())
	default:
		return v, nil
	}
	src := v.(HeapValue).hdr()
	h := out.hdr()
	h.class = src.class
	h.ivars = append([]ivar(nil), src.ivars...)
	if _, err := vm.Send(out, "initialize_copy", v); err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Argument helpers shared by the primitives
// ---------------------------------------------------------------------------

// nameArg accepts a Symbol or String naming a method or constant.
func (vm *VM) nameArg(v Value) (string, error) {
	switch x := v.(type) {
	case Symbol:
		return string(x), nil
	case *String:
		return x.str, nil
	}
	return "", vm.Errorf(vm.TypeErrorClass, "%s is not a symbol nor a string", vm.Inspect(v))
}

func (vm *VM) ivarArg(v Value) (string, error) {
	name, err := vm.nameArg(v)
	if err != nil {
		return "", err
	}
	if !validIvarName(name) {
		exc := vm.NewException(vm.NameErrorClass, "'"+name+"' is not allowed as an instance variable name")
		exc.name = Symbol(name)
		return "", vm.raise(exc)
	}
	return name, nil
}

func (vm *VM) pathArg(v Value) (string, error) {
	if s, ok := v.(*String); ok {
		return s.str, nil
	}
	return "", vm.Errorf(vm.TypeErrorClass, "no implicit conversion of %s into String", vm.ClassOf(v).Name())
}

func (vm *VM) moduleArg(v Value, msg string) (*Module, error) {
	if m, ok := v.(*Module); ok {
		return m, nil
	}
	return nil, vm.Errorf(vm.TypeErrorClass, "%s", msg)
}

func (vm *VM) moduleArgs(args []Value) ([]*Module, error) {
	mods := make([]*Module, len(args))
	for i, a := range args {
		m, ok := a.(*Module)
		if !ok {
			return nil, vm.Errorf(vm.TypeErrorClass, "wrong argument type %s (expected Module)", vm.ClassOf(a).Name())
		}
		mods[i] = m
	}
	return mods, nil
}

// ownMethodNames lists the callable methods m defines itself, sorted.
func (vm *VM) ownMethodNames(m *Module) []string {
	var names []string
	m.vtable.Each(func(sel int, meth *Method) {
		if !meth.Stub {
			names = append(names, vm.Selectors.Name(sel))
		}
	})
	sort.Strings(names)
	return names
}

// methodNames lists the methods instances of cls respond to, nearest
// definitions first. Names undefined or stubbed closer to cls are left out.
func (vm *VM) methodNames(cls *Module) []string {
	var names []string
	seen := make(map[int]bool)
	for _, anc := range vm.Ancestors(cls) {
		var local []string
		anc.vtable.Each(func(sel int, meth *Method) {
			if seen[sel] {
				return
			}
			seen[sel] = true
			if !meth.Stub {
				local = append(local, vm.Selectors.Name(sel))
			}
		})
		sort.Strings(local)
		names = append(names, local...)
	}
	return names
}
