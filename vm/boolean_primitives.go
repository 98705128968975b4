package vm

// ---------------------------------------------------------------------------
// NilClass, TrueClass and FalseClass Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerNilBooleanPrimitives() {
	sel := vm.Selectors

	n := vm.NilClass
	n.AddMethod0(sel, "nil?", func(c *Call) (Value, error) { return True, nil })
	n.AddMethod0(sel, "to_s", func(c *Call) (Value, error) { return c.VM.Str(""), nil })
	n.AddMethod0(sel, "inspect", func(c *Call) (Value, error) { return c.VM.Str("nil"), nil })
	n.AddMethod0(sel, "to_a", func(c *Call) (Value, error) { return c.VM.NewArray(), nil })
	n.AddMethod1(sel, "&", func(c *Call, _ Value) (Value, error) { return False, nil })
	n.AddMethod1(sel, "|", func(c *Call, v Value) (Value, error) { return FromBool(Truthy(v)), nil })

	t := vm.TrueClass
	t.AddMethod0(sel, "to_s", func(c *Call) (Value, error) { return c.VM.Str("true"), nil })
	t.AddMethod0(sel, "inspect", func(c *Call) (Value, error) { return c.VM.Str("true"), nil })
	t.AddMethod1(sel, "&", func(c *Call, v Value) (Value, error) { return FromBool(Truthy(v)), nil })
	t.AddMethod1(sel, "|", func(c *Call, _ Value) (Value, error) { return True, nil })
	t.AddMethod1(sel, "^", func(c *Call, v Value) (Value, error) { return FromBool(!Truthy(v)), nil })

	f := vm.FalseClass
	f.AddMethod0(sel, "to_s", func(c *Call) (Value, error) { return c.VM.Str("false"), nil })
	f.AddMethod0(sel, "inspect", func(c *Call) (Value, error) { return c.VM.Str("false"), nil })
	f.AddMethod1(sel, "&", func(c *Call, _ Value) (Value, error) { return False, nil })
	f.AddMethod1(sel, "|", func(c *Call, v Value) (Value, error) { return FromBool(Truthy(v)), nil })
	f.AddMethod1(sel, "^", func(c *Call, v Value) (Value, error) { return FromBool(Truthy(v)), nil })
}
