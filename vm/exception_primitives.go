package vm

import "slices"

// ---------------------------------------------------------------------------
// Exception Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerExceptionPrimitives() {
	c := vm.ExceptionClass
	sel := vm.Selectors

	meta, _ := vm.SingletonClass(c)
	meta.AddVarMethod(sel, "exception", 0, func(c *Call) (Value, error) {
		return c.VM.New(c.Self.(*Module), c.Block, c.Args...)
	})

	c.AddVarMethod(sel, "initialize", 0, func(c *Call) (Value, error) {
		if len(c.Args) > 1 {
			return nil, c.VM.Errorf(c.VM.ArgumentErrorClass, "wrong number of arguments (given %d, expected 0..1)", len(c.Args))
		}
		return Nil, c.VM.setMessage(c.Self.(*Exception), c.Arg(0))
	})

	c.AddMethod1(sel, "initialize_copy", func(c *Call, orig Value) (Value, error) {
		src, ok := orig.(*Exception)
		if !ok {
			return nil, c.VM.Errorf(c.VM.TypeErrorClass, "initialize_copy should take same class object")
		}
		dst := c.Self.(*Exception)
		hdr := dst.Header
		*dst = *src
		dst.Header = hdr
		dst.backtrace = append([]string(nil), src.backtrace...)
		return dst, nil
	})

	c.AddMethod0(sel, "to_s", func(c *Call) (Value, error) {
		return c.VM.Str(c.VM.exceptionText(c.Self.(*Exception))), nil
	})

	c.AddMethod0(sel, "message", func(c *Call) (Value, error) {
		return c.VM.Send(c.Self, "to_s")
	})

	c.AddMethod0(sel, "detailed_message", func(c *Call) (Value, error) {
		msg, err := c.VM.ToS(c.Self)
		if err != nil {
			return nil, err
		}
		return c.VM.Str(msg + " (" + c.VM.ClassOf(c.Self).Name() + ")"), nil
	})

	c.AddMethod0(sel, "inspect", func(c *Call) (Value, error) {
		return c.VM.Str(c.VM.inspectException(c.Self.(*Exception))), nil
	})

	c.AddVarMethod(sel, "full_message", 0, func(c *Call) (Value, error) {
		return c.VM.Str(c.VM.FormatUncaught(c.Self.(*Exception))), nil
	})

	// exception with no argument, or with self, returns self; otherwise a
	// copy carrying the new message.
	c.AddVarMethod(sel, "exception", 0, func(c *Call) (Value, error) {
		exc := c.Self.(*Exception)
		if len(c.Args) == 0 || c.Args[0] == Value(exc) {
			return exc, nil
		}
		v, err := c.VM.dup(exc)
		if err != nil {
			return nil, err
		}
		cp := v.(*Exception)
		if err := c.VM.setMessage(cp, c.Args[0]); err != nil {
			return nil, err
		}
		return cp, nil
	})

	c.AddMethod0(sel, "backtrace", func(c *Call) (Value, error) {
		exc := c.Self.(*Exception)
		if !exc.btSet {
			return Nil, nil
		}
		return c.VM.stringArray(exc.backtrace), nil
	})

	c.AddMethod1(sel, "set_backtrace", func(c *Call, bt Value) (Value, error) {
		exc := c.Self.(*Exception)
		if err := c.VM.setBacktrace(exc, bt); err != nil {
			return nil, err
		}
		if !exc.btSet || exc.backtrace == nil {
			return Nil, nil
		}
		return c.VM.stringArray(exc.backtrace), nil
	})

	c.AddMethod0(sel, "cause", func(c *Call) (Value, error) {
		if cause, ok := c.Self.(*Exception).cause.(*Exception); ok {
			return cause, nil
		}
		return Nil, nil
	})

	c.AddMethod1(sel, "==", func(c *Call, other Value) (Value, error) {
		a := c.Self.(*Exception)
		b, ok := other.(*Exception)
		if !ok || c.VM.ClassOf(a) != c.VM.ClassOf(b) {
			return False, nil
		}
		if a == b {
			return True, nil
		}
		return FromBool(c.VM.exceptionText(a) == c.VM.exceptionText(b) && slices.Equal(a.backtrace, b.backtrace)), nil
	})

	vm.registerExceptionDetails()
}

// registerExceptionDetails defines the readers specific exception classes
// add on top of Exception.
func (vm *VM) registerExceptionDetails() {
	sel := vm.Selectors

	detail := func(cls *Module, name string, get func(e *Exception) Value) {
		cls.AddMethod0(sel, name, func(c *Call) (Value, error) {
			if v := get(c.Self.(*Exception)); v != nil {
				return v, nil
			}
			return Nil, nil
		})
	}

	// NameError.new(msg = nil, name = nil, receiver = nil)
	vm.NameErrorClass.AddVarMethod(sel, "initialize", 0, func(c *Call) (Value, error) {
		exc := c.Self.(*Exception)
		if err := c.VM.setMessage(exc, c.Arg(0)); err != nil {
			return nil, err
		}
		exc.name = c.Arg(1)
		if len(c.Args) > 2 {
			exc.receiver = c.Args[2]
		}
		return Nil, nil
	})
	detail(vm.NameErrorClass, "name", func(e *Exception) Value { return e.name })
	vm.NameErrorClass.AddMethod0(sel, "receiver", func(c *Call) (Value, error) {
		exc := c.Self.(*Exception)
		if exc.receiver == nil {
			return nil, c.VM.Errorf(c.VM.ArgumentErrorClass, "no receiver is available")
		}
		return exc.receiver, nil
	})

	// NoMethodError.new(msg = nil, name = nil, args = [])
	vm.NoMethodErrorClass.AddVarMethod(sel, "initialize", 0, func(c *Call) (Value, error) {
		exc := c.Self.(*Exception)
		if err := c.VM.setMessage(exc, c.Arg(0)); err != nil {
			return nil, err
		}
		exc.name = c.Arg(1)
		exc.value = c.VM.NewArray()
		if len(c.Args) > 2 {
			exc.value = c.Args[2]
		}
		return Nil, nil
	})
	detail(vm.NoMethodErrorClass, "args", func(e *Exception) Value { return e.value })

	// FrozenError.new(msg = nil, receiver = nil)
	vm.FrozenErrorClass.AddVarMethod(sel, "initialize", 0, func(c *Call) (Value, error) {
		exc := c.Self.(*Exception)
		if err := c.VM.setMessage(exc, c.Arg(0)); err != nil {
			return nil, err
		}
		if len(c.Args) > 1 {
			exc.receiver = c.Args[1]
		}
		return Nil, nil
	})
	detail(vm.FrozenErrorClass, "receiver", func(e *Exception) Value { return e.receiver })

	// KeyError.new(msg = nil, receiver = nil, key = nil)
	vm.KeyErrorClass.AddVarMethod(sel, "initialize", 0, func(c *Call) (Value, error) {
		exc := c.Self.(*Exception)
		if err := c.VM.setMessage(exc, c.Arg(0)); err != nil {
			return nil, err
		}
		exc.receiver = c.Arg(1)
		exc.value = c.Arg(2)
		return Nil, nil
	})
	detail(vm.KeyErrorClass, "receiver", func(e *Exception) Value { return e.receiver })
	detail(vm.KeyErrorClass, "key", func(e *Exception) Value { return e.value })

	// UncaughtThrowError.new(tag, value, msg = "uncaught throw %p")
	vm.UncaughtThrowErrorClass.AddVarMethod(sel, "initialize", 2, func(c *Call) (Value, error) {
		exc := c.Self.(*Exception)
		exc.tag = c.Args[0]
		exc.value = c.Args[1]
		if len(c.Args) > 2 {
			return Nil, c.VM.setMessage(exc, c.Args[2])
		}
		exc.message = "uncaught throw " + c.VM.Inspect(exc.tag)
		return Nil, nil
	})
	detail(vm.UncaughtThrowErrorClass, "tag", func(e *Exception) Value { return e.tag })
	detail(vm.UncaughtThrowErrorClass, "value", func(e *Exception) Value { return e.value })

	// LocalJumpError is raised by the runtime only.
	vm.LocalJumpErrorClass.AddMethod0(sel, "reason", func(c *Call) (Value, error) {
		if r := c.Self.(*Exception).reason; r != "" {
			return Symbol(r), nil
		}
		return Nil, nil
	})
	detail(vm.LocalJumpErrorClass, "exit_value", func(e *Exception) Value { return e.value })

	detail(vm.StopIterationClass, "result", func(e *Exception) Value { return e.value })

	// SystemExit.new(status = 0, msg = "exit")
	vm.SystemExitClass.AddVarMethod(sel, "initialize", 0, func(c *Call) (Value, error) {
		exc := c.Self.(*Exception)
		exc.value = Int(0)
		args := c.Args
		if len(args) > 0 {
			switch s := args[0].(type) {
			case Int:
				exc.value = s
				args = args[1:]
			case Bool:
				if !s {
					exc.value = Int(1)
				}
				args = args[1:]
			}
		}
		if len(args) > 0 {
			return Nil, c.VM.setMessage(exc, args[0])
		}
		exc.message = "exit"
		return Nil, nil
	})
	detail(vm.SystemExitClass, "status", func(e *Exception) Value { return e.value })
	vm.SystemExitClass.AddMethod0(sel, "success?", func(c *Call) (Value, error) {
		n, _ := c.Self.(*Exception).value.(Int)
		return FromBool(n == 0), nil
	})
}

// setMessage stores msg as the exception text. nil leaves the default,
// which renders as the class name.
func (vm *VM) setMessage(exc *Exception, msg Value) error {
	if msg == nil || IsNil(msg) {
		exc.message = ""
		return nil
	}
	s, err := vm.ToS(msg)
	if err != nil {
		return err
	}
	exc.message = s
	return nil
}

// exceptionText is the to_s of an exception: its message, or the class
// name when no message was given.
func (vm *VM) exceptionText(exc *Exception) string {
	if exc.message == "" {
		return vm.ClassOf(exc).Name()
	}
	return exc.message
}
