package vm

import "fmt"

// ---------------------------------------------------------------------------
// Proc Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerProcPrimitives() {
	c := vm.ProcClass
	sel := vm.Selectors

	// Procs are created by the runtime, never with Proc.new and no block.
	meta, _ := vm.SingletonClass(c)
	meta.AddVarMethod(sel, "new", 0, func(c *Call) (Value, error) {
		if c.Block == nil {
			return nil, c.VM.Errorf(c.VM.ArgumentErrorClass, "tried to create Proc object without a block")
		}
		return c.Block, nil
	})

	call := func(c *Call) (Value, error) {
		p := c.Self.(*Proc)
		return c.VM.callProc(p, p.self, c.Args, c.Block)
	}
	c.AddVarMethod(sel, "call", 0, call)
	c.AddVarMethod(sel, "()", 0, call)
	c.AddVarMethod(sel, "yield", 0, call)
	c.AddVarMethod(sel, "[]", 0, call)
	c.AddVarMethod(sel, "===", 0, call)

	c.AddMethod0(sel, "arity", func(c *Call) (Value, error) {
		p := c.Self.(*Proc)
		// A plain proc with optional trailing parameters reports -1 like
		// an untyped block does.
		if !p.lambda && p.arity < -1 {
			return Int(-1), nil
		}
		return Int(p.arity), nil
	})

	c.AddMethod0(sel, "lambda?", func(c *Call) (Value, error) {
		return FromBool(c.Self.(*Proc).lambda), nil
	})

	c.AddMethod0(sel, "to_proc", func(c *Call) (Value, error) { return c.Self, nil })

	c.AddMethod0(sel, "binding_self", func(c *Call) (Value, error) {
		if s := c.Self.(*Proc).self; s != nil {
			return s, nil
		}
		return Nil, nil
	})

	c.AddMethod1(sel, "curry", func(c *Call, n Value) (Value, error) {
		want, ok := n.(Int)
		if !ok || want < 0 {
			return nil, c.VM.Errorf(c.VM.ArgumentErrorClass, "wrong number of arguments")
		}
		return c.VM.curry(c.Self.(*Proc), int(want), nil), nil
	})

	render := func(c *Call) (Value, error) {
		p := c.Self.(*Proc)
		s := fmt.Sprintf("#<Proc:0x%016x", uint64(c.VM.ObjectID(p)))
		if p.lambda {
			s += " (lambda)"
		}
		return c.VM.Str(s + ">"), nil
	}
	c.AddMethod0(sel, "inspect", render)
	c.AddMethod0(sel, "to_s", render)
}

// curry collects arguments until want have been given, then calls p.
func (vm *VM) curry(p *Proc, want int, got []Value) *Proc {
	return vm.NewLambda(p.self, -1, func(c *Call) (Value, error) {
		args := append(append([]Value(nil), got...), c.Args...)
		if len(args) >= want {
			return c.VM.callProc(p, p.self, args, c.Block)
		}
		return c.VM.curry(p, want, args), nil
	})
}
