package vm

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// Call is the activation passed to a method or block body.
type Call struct {
	VM     *VM
	Self   Value
	Args   []Value
	Block  *Proc
	Method *Method
	Name   string
}

// Arg returns argument i, or Nil when absent.
func (c *Call) Arg(i int) Value {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return Nil
}

// BlockGiven reports whether the call carries a block.
func (c *Call) BlockGiven() bool { return c.Block != nil }

// Yield calls the block passed to this call.
func (c *Call) Yield(args ...Value) (Value, error) {
	if c.Block == nil {
		return nil, c.VM.Errorf(c.VM.LocalJumpErrorClass, "no block given (yield)")
	}
	return c.VM.CallProc(c.Block, args...)
}

// Super calls the next definition of the current method in the
// receiver's ancestors with args.
func (c *Call) Super(args ...Value) (Value, error) {
	return c.superWith(args, c.Block)
}

// SuperBlock is Super with an explicit block in place of the current one.
func (c *Call) SuperBlock(blk *Proc, args ...Value) (Value, error) {
	return c.superWith(args, blk)
}

// ZSuper calls the next definition with the current arguments, the way a
// bare super does.
func (c *Call) ZSuper() (Value, error) {
	if c.Method != nil && c.Method.Dynamic {
		return nil, c.VM.Errorf(c.VM.RuntimeErrorClass,
			"implicit argument passing of super from method defined by define_method() is not supported. Specify all arguments explicitly.")
	}
	return c.superWith(c.Args, c.Block)
}

// SuperDefined reports whether a super call would find a method.
func (c *Call) SuperDefined() bool {
	if c.Method == nil {
		return false
	}
	m, err := c.VM.FindSuper(c.Self, c.Method.Name, c.Method, true, false)
	return err == nil && m != nil
}

func (c *Call) superWith(args []Value, blk *Proc) (Value, error) {
	vm := c.VM
	if c.Method == nil {
		return nil, vm.Errorf(vm.RuntimeErrorClass, "super called outside of method")
	}
	m, err := vm.FindSuper(c.Self, c.Method.Name, c.Method, false, true)
	if err != nil {
		return nil, err
	}
	if m.Stub {
		return vm.methodMissing(c.Self, c.Method.Name, args, blk)
	}
	return vm.invoke(m, c.Self, c.Method.Name, args, blk)
}

// NewBlock creates a block that captures the call's self and method.
func (c *Call) NewBlock(arity int, fn Func) *Proc {
	p := c.VM.NewProc(c.Self, arity, fn)
	p.home = c.Method
	return p
}

// ---------------------------------------------------------------------------
// Method lookup
// ---------------------------------------------------------------------------

// FindMethod returns the method name resolves to for instances of cls,
// stubs included, or nil.
func (vm *VM) FindMethod(cls *Module, name string) *Method {
	sel := vm.Selectors.Lookup(name)
	if sel < 0 {
		return nil
	}
	return vm.findMethodBySelector(cls, sel)
}

func (vm *VM) findMethodBySelector(cls *Module, sel int) *Method {
	if e, ok := cls.methodCache[sel]; ok && e.epoch == vm.epoch && e.serial == vm.methodSerial {
		return e.method
	}
	var found *Method
	for _, anc := range vm.Ancestors(cls) {
		if m := anc.vtable.LookupLocal(sel); m != nil {
			found = m
			break
		}
	}
	if cls.methodCache == nil {
		cls.methodCache = make(map[int]methodCacheEntry)
	}
	cls.methodCache[sel] = methodCacheEntry{epoch: vm.epoch, serial: vm.methodSerial, method: found}
	return found
}

// MethodFor returns the method a send of name to recv would run, or nil
// when it would fall through to method_missing.
func (vm *VM) MethodFor(recv Value, name string) *Method {
	m := vm.FindMethod(vm.dispatchClass(recv), name)
	if m == nil || m.Stub {
		return nil
	}
	return m
}

// ---------------------------------------------------------------------------
// Sending
// ---------------------------------------------------------------------------

// Send calls name on recv.
func (vm *VM) Send(recv Value, name string, args ...Value) (Value, error) {
	return vm.SendBlock(recv, name, nil, args...)
}

// SendBlock calls name on recv with a block. Missing methods go to
// method_missing.
func (vm *VM) SendBlock(recv Value, name string, blk *Proc, args ...Value) (Value, error) {
	if recv == nil {
		recv = Nil
	}
	m := vm.FindMethod(vm.dispatchClass(recv), name)
	if m == nil || m.Stub {
		return vm.methodMissing(recv, name, args, blk)
	}
	return vm.invoke(m, recv, name, args, blk)
}

// Invoke runs m directly with recv as self. Stubs route to method_missing.
func (vm *VM) Invoke(recv Value, m *Method, blk *Proc, args ...Value) (Value, error) {
	if m == nil {
		return nil, vm.Errorf(vm.ArgumentErrorClass, "no method to invoke")
	}
	return vm.invoke(m, recv, m.Name, args, blk)
}

func (vm *VM) invoke(m *Method, self Value, name string, args []Value, blk *Proc) (Value, error) {
	target := m.Original()
	if target.Stub || target.body == nil {
		return vm.methodMissing(self, name, args, blk)
	}
	if err := vm.checkArity(target, len(args)); err != nil {
		return nil, err
	}
	if len(vm.frames) >= vm.cfg.MaxCallDepth {
		return nil, vm.Errorf(vm.SystemStackErrorClass, "stack level too deep")
	}
	vm.frames = append(vm.frames, Frame{Method: m, Name: name, Self: self})
	defer vm.popFrame()
	return target.body(&Call{VM: vm, Self: self, Args: args, Block: blk, Method: target, Name: name})
}

// methodMissing sends method_missing when the receiver overrides it and
// raises NoMethodError otherwise.
func (vm *VM) methodMissing(recv Value, name string, args []Value, blk *Proc) (Value, error) {
	mm := vm.FindMethod(vm.dispatchClass(recv), "method_missing")
	if mm != nil && !mm.Stub && !mm.Pristine {
		margs := make([]Value, 0, len(args)+1)
		margs = append(margs, Symbol(name))
		margs = append(margs, args...)
		return vm.invoke(mm, recv, "method_missing", margs, blk)
	}
	return nil, vm.noMethodError(recv, name, args)
}

func (vm *VM) hasCustomMethodMissing(recv Value) bool {
	mm := vm.FindMethod(vm.dispatchClass(recv), "method_missing")
	return mm != nil && !mm.Stub && !mm.Pristine
}

func (vm *VM) noMethodError(recv Value, name string, args []Value) error {
	exc := vm.NewException(vm.NoMethodErrorClass, "undefined method '"+name+"' for "+vm.describeReceiver(recv))
	exc.name = Symbol(name)
	exc.receiver = recv
	exc.value = vm.NewArray(args...)
	return vm.raise(exc)
}

func (vm *VM) describeReceiver(recv Value) string {
	switch x := recv.(type) {
	case nil, nilValue:
		return "nil"
	case Bool:
		if x {
			return "true"
		}
		return "false"
	case *Module:
		return x.kindName() + " " + vm.Inspect(x)
	case *Object:
		if x == vm.Main {
			return "main:Object"
		}
	}
	return "an instance of " + vm.ClassOf(recv).Name()
}

// RespondTo reports whether recv has a real method for name, consulting
// respond_to_missing? when it is overridden.
func (vm *VM) RespondTo(recv Value, name string, includeAll bool) (bool, error) {
	if vm.MethodFor(recv, name) != nil {
		return true, nil
	}
	rm := vm.FindMethod(vm.dispatchClass(recv), "respond_to_missing?")
	if rm == nil || rm.Stub || rm.Pristine {
		return false, nil
	}
	v, err := vm.invoke(rm, recv, "respond_to_missing?", []Value{Symbol(name), FromBool(includeAll)}, nil)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

// ---------------------------------------------------------------------------
// Super
// ---------------------------------------------------------------------------

// FindSuper finds the method super from current resolves to: the next
// definition of name after current's owner in the receiver's ancestors
// (its singleton class's ancestors when it has one).
//
// defCheck suppresses the NoMethodError raised when nothing is found so
// the caller can answer defined?(super). allowStubs returns a stub rather
// than nil when only a stub is found.
func (vm *VM) FindSuper(recv Value, name string, current *Method, defCheck, allowStubs bool) (*Method, error) {
	if current == nil {
		return nil, vm.Errorf(vm.RuntimeErrorClass, "super called outside of method")
	}
	ancestors := vm.Ancestors(vm.dispatchClass(recv))
	owner := current.Original().Owner

	// A refined method continues with the refined class's own method.
	// An owner outside the ancestors has no super method.
	start := -1
	for i, anc := range ancestors {
		if anc == owner {
			start = i + 1
			break
		}
		if owner != nil && owner.refinedClass == anc {
			start = i
			break
		}
	}

	var found *Method
	if sel := vm.Selectors.Lookup(name); sel >= 0 && start >= 0 {
		for _, anc := range ancestors[start:] {
			if m := anc.vtable.LookupLocal(sel); m != nil {
				found = m
				break
			}
		}
	}

	if found == nil || found.Stub {
		if !defCheck && !vm.hasCustomMethodMissing(recv) {
			exc := vm.NewException(vm.NoMethodErrorClass,
				"super: no superclass method '"+name+"' for "+vm.describeReceiver(recv))
			exc.name = Symbol(name)
			exc.receiver = recv
			return nil, vm.raise(exc)
		}
		if !allowStubs {
			return nil, nil
		}
		if found == nil {
			found = newStub(name)
		}
	}
	return found, nil
}

// ---------------------------------------------------------------------------
// Hooks
// ---------------------------------------------------------------------------

// callHook sends name to recv unless the method it resolves to is a
// built-in no-op.
func (vm *VM) callHook(recv Value, name string, args ...Value) error {
	if recv == nil {
		return nil
	}
	m := vm.FindMethod(vm.dispatchClass(recv), name)
	if m == nil || m.Stub || m.Pristine {
		return nil
	}
	_, err := vm.invoke(m, recv, name, args, nil)
	return err
}

// sendHookable sends a protocol message (append_features and friends)
// that has a built-in implementation users may override.
func (vm *VM) sendHookable(recv Value, name string, args ...Value) error {
	_, err := vm.Send(recv, name, args...)
	return err
}
