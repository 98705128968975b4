package vm

import "strings"

// ---------------------------------------------------------------------------
// Symbol Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerSymbolPrimitives() {
	c := vm.SymbolClass
	sel := vm.Selectors

	toS := func(c *Call) (Value, error) {
		return c.VM.Str(string(c.Self.(Symbol))), nil
	}
	c.AddMethod0(sel, "to_s", toS)
	c.AddMethod0(sel, "id2name", toS)
	c.AddMethod0(sel, "name", func(c *Call) (Value, error) {
		return c.VM.Freeze(c.VM.Str(string(c.Self.(Symbol)))), nil
	})

	c.AddMethod0(sel, "to_sym", func(c *Call) (Value, error) { return c.Self, nil })

	c.AddMethod0(sel, "inspect", func(c *Call) (Value, error) {
		return c.VM.Str(inspectSymbol(c.Self.(Symbol))), nil
	})

	c.AddMethod0(sel, "length", func(c *Call) (Value, error) {
		return Int(len([]rune(string(c.Self.(Symbol))))), nil
	})

	c.AddMethod1(sel, "<=>", func(c *Call, other Value) (Value, error) {
		o, ok := other.(Symbol)
		if !ok {
			return Nil, nil
		}
		return Int(strings.Compare(string(c.Self.(Symbol)), string(o))), nil
	})

	c.AddMethod0(sel, "hash", func(c *Call) (Value, error) { return Int(c.VM.ObjectID(c.Self)), nil })

	// to_proc - a block that sends the symbol to its first argument.
	c.AddMethod0(sel, "to_proc", func(c *Call) (Value, error) {
		name := string(c.Self.(Symbol))
		p := c.VM.NewLambda(Nil, -2, func(pc *Call) (Value, error) {
			return pc.VM.SendBlock(pc.Args[0], name, pc.Block, pc.Args[1:]...)
		})
		return p, nil
	})
}
