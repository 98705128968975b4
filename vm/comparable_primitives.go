package vm

// ---------------------------------------------------------------------------
// Comparable Primitives
// ---------------------------------------------------------------------------

// Comparable builds every relation on the includer's <=>.
func (vm *VM) registerComparablePrimitives() {
	c := vm.ComparableModule
	sel := vm.Selectors

	c.AddMethod1(sel, "==", func(c *Call, other Value) (Value, error) {
		if c.Self == other {
			return True, nil
		}
		r, err := c.VM.Send(c.Self, "<=>", other)
		if err != nil {
			return nil, err
		}
		n, ok := r.(Int)
		return FromBool(ok && n == 0), nil
	})

	relation := func(name string, test func(int) bool) {
		c.AddMethod1(sel, name, func(c *Call, other Value) (Value, error) {
			n, err := c.VM.compare(c.Self, other)
			if err != nil {
				return nil, err
			}
			return FromBool(test(n)), nil
		})
	}
	relation("<", func(n int) bool { return n < 0 })
	relation("<=", func(n int) bool { return n <= 0 })
	relation(">", func(n int) bool { return n > 0 })
	relation(">=", func(n int) bool { return n >= 0 })

	c.AddMethod2(sel, "between?", func(c *Call, lo, hi Value) (Value, error) {
		n, err := c.VM.compare(c.Self, lo)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return False, nil
		}
		if n, err = c.VM.compare(c.Self, hi); err != nil {
			return nil, err
		}
		return FromBool(n <= 0), nil
	})

	c.AddMethod2(sel, "clamp", func(c *Call, lo, hi Value) (Value, error) {
		n, err := c.VM.compare(lo, hi)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, c.VM.Errorf(c.VM.ArgumentErrorClass, "min argument must be less than or equal to max argument")
		}
		if n, err = c.VM.compare(c.Self, lo); err != nil {
			return nil, err
		}
		if n < 0 {
			return lo, nil
		}
		if n, err = c.VM.compare(c.Self, hi); err != nil {
			return nil, err
		}
		if n > 0 {
			return hi, nil
		}
		return c.Self, nil
	})
}

// compare sends <=> and reduces the answer to its sign. A nil answer
// means the values are not comparable.
func (vm *VM) compare(a, b Value) (int, error) {
	r, err := vm.Send(a, "<=>", b)
	if err != nil {
		return 0, err
	}
	n, ok := r.(Int)
	if !ok {
		if f, isFloat := r.(Float); isFloat {
			n, ok = Int(f), true
		}
	}
	if !ok {
		return 0, vm.comparisonFailed(a, b)
	}
	switch {
	case n < 0:
		return -1, nil
	case n > 0:
		return 1, nil
	}
	return 0, nil
}
