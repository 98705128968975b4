package vm

// NewProc creates a block with self captured. arity is the declared
// parameter count; -1 accepts anything.
func (vm *VM) NewProc(self Value, arity int, fn Func) *Proc {
	p := &Proc{fn: fn, self: self, arity: arity}
	p.class = vm.ProcClass
	return p
}

// NewLambda creates a block that checks its argument count strictly.
func (vm *VM) NewLambda(self Value, arity int, fn Func) *Proc {
	p := vm.NewProc(self, arity, fn)
	p.lambda = true
	return p
}

// Block is a convenience for Go callers that do not care about self.
func (vm *VM) Block(fn func(args ...Value) (Value, error)) *Proc {
	return vm.NewProc(Nil, -1, func(c *Call) (Value, error) {
		return fn(c.Args...)
	})
}

// CallProc calls p with its captured self.
func (vm *VM) CallProc(p *Proc, args ...Value) (Value, error) {
	return vm.callProc(p, p.self, args, nil)
}

// CallProcWithBlock calls p passing blk along.
func (vm *VM) CallProcWithBlock(p *Proc, blk *Proc, args ...Value) (Value, error) {
	return vm.callProc(p, p.self, args, blk)
}

func (vm *VM) callProc(p *Proc, self Value, args []Value, blk *Proc) (Value, error) {
	if p.fn == nil {
		return nil, vm.Errorf(vm.ArgumentErrorClass, "tried to call a proc without a body")
	}
	if p.lambda {
		if p.arity >= 0 && len(args) != p.arity {
			return nil, vm.Errorf(vm.ArgumentErrorClass, "wrong number of arguments (given %d, expected %d)", len(args), p.arity)
		}
		if p.arity < 0 && len(args) < -p.arity-1 {
			return nil, vm.Errorf(vm.ArgumentErrorClass, "wrong number of arguments (given %d, expected %d+)", len(args), -p.arity-1)
		}
	} else if p.arity >= 0 {
		args = fitArgs(args, p.arity)
	}
	name := ""
	if p.home != nil {
		name = p.home.Name
	}
	return p.fn(&Call{VM: vm, Self: self, Args: args, Block: blk, Method: p.home, Name: name})
}

// fitArgs adapts an argument list to a non-lambda block: a single array
// argument is spread over several parameters, missing ones are nil and
// extras are dropped.
func fitArgs(args []Value, arity int) []Value {
	if arity > 1 && len(args) == 1 {
		if arr, ok := args[0].(*Array); ok {
			args = arr.elems
		}
	}
	if len(args) == arity {
		return args
	}
	out := make([]Value, arity)
	n := copy(out, args)
	for i := n; i < arity; i++ {
		out[i] = Nil
	}
	return out
}
