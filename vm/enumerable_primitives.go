package vm

// ---------------------------------------------------------------------------
// Enumerable Primitives
// ---------------------------------------------------------------------------

// Enumerable is written against the includer's each. Methods that stop
// early leave the iteration through a break thrower.
func (vm *VM) registerEnumerablePrimitives() {
	c := vm.EnumerableModule
	sel := vm.Selectors

	toA := func(c *Call) (Value, error) {
		var out []Value
		err := c.VM.each(c.Self, func(args []Value) error {
			out = append(out, enumValue(args))
			return nil
		})
		if err != nil {
			return nil, err
		}
		return c.VM.NewArray(out...), nil
	}
	c.AddMethod0(sel, "to_a", toA)
	c.AddMethod0(sel, "entries", toA)

	mapper := func(c *Call) (Value, error) {
		var out []Value
		err := c.VM.each(c.Self, func(args []Value) error {
			v, err := c.Yield(args...)
			if err != nil {
				return err
			}
			out = append(out, v)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return c.VM.NewArray(out...), nil
	}
	c.AddMethod0(sel, "map", mapper)
	c.AddMethod0(sel, "collect", mapper)

	filter := func(keep bool) Method0Func {
		return func(c *Call) (Value, error) {
			var out []Value
			err := c.VM.each(c.Self, func(args []Value) error {
				v, err := c.Yield(args...)
				if err != nil {
					return err
				}
				if Truthy(v) == keep {
					out = append(out, enumValue(args))
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			return c.VM.NewArray(out...), nil
		}
	}
	c.AddMethod0(sel, "select", filter(true))
	c.AddMethod0(sel, "filter", filter(true))
	c.AddMethod0(sel, "reject", filter(false))

	detect := func(c *Call) (Value, error) {
		return c.VM.WithThrower("break", func(t *Thrower) (Value, error) {
			err := c.VM.each(c.Self, func(args []Value) error {
				v, err := c.Yield(args...)
				if err != nil {
					return err
				}
				if Truthy(v) {
					return t.Throw(enumValue(args))
				}
				return nil
			})
			return Nil, err
		})
	}
	c.AddMethod0(sel, "detect", detect)
	c.AddMethod0(sel, "find", detect)

	c.AddMethod0(sel, "find_index", func(c *Call) (Value, error) {
		return c.VM.WithThrower("break", func(t *Thrower) (Value, error) {
			i := 0
			err := c.VM.each(c.Self, func(args []Value) error {
				v, err := c.Yield(args...)
				if err != nil {
					return err
				}
				if Truthy(v) {
					return t.Throw(Int(i))
				}
				i++
				return nil
			})
			return Nil, err
		})
	})

	// any?, all? and none? test the element itself without a block.
	quantifier := func(name string, stopOn bool, whenStopped bool) {
		c.AddMethod0(sel, name, func(c *Call) (Value, error) {
			return c.VM.WithThrower("break", func(t *Thrower) (Value, error) {
				err := c.VM.each(c.Self, func(args []Value) error {
					v := enumValue(args)
					if c.Block != nil {
						var err error
						if v, err = c.Yield(args...); err != nil {
							return err
						}
					}
					if Truthy(v) == stopOn {
						return t.Throw(FromBool(whenStopped))
					}
					return nil
				})
				return FromBool(!whenStopped), err
			})
		})
	}
	quantifier("any?", true, true)
	quantifier("all?", false, false)
	quantifier("none?", true, false)

	member := func(c *Call) (Value, error) {
		want := c.Arg(0)
		return c.VM.WithThrower("break", func(t *Thrower) (Value, error) {
			err := c.VM.each(c.Self, func(args []Value) error {
				eq, err := c.VM.Send(enumValue(args), "==", want)
				if err != nil {
					return err
				}
				if Truthy(eq) {
					return t.Throw(True)
				}
				return nil
			})
			return False, err
		})
	}
	c.AddVarMethod(sel, "include?", 1, member)
	c.AddVarMethod(sel, "member?", 1, member)

	c.AddVarMethod(sel, "first", 0, func(c *Call) (Value, error) {
		if len(c.Args) == 0 {
			return c.VM.WithThrower("break", func(t *Thrower) (Value, error) {
				err := c.VM.each(c.Self, func(args []Value) error {
					return t.Throw(enumValue(args))
				})
				return Nil, err
			})
		}
		n, ok := c.Args[0].(Int)
		if !ok || n < 0 {
			return nil, c.VM.Errorf(c.VM.ArgumentErrorClass, "attempt to take negative size")
		}
		var out []Value
		if n == 0 {
			return c.VM.NewArray(), nil
		}
		_, err := c.VM.WithThrower("break", func(t *Thrower) (Value, error) {
			return Nil, c.VM.each(c.Self, func(args []Value) error {
				out = append(out, enumValue(args))
				if len(out) == int(n) {
					return t.Throw(Nil)
				}
				return nil
			})
		})
		if err != nil {
			return nil, err
		}
		return c.VM.NewArray(out...), nil
	})

	c.AddVarMethod(sel, "count", 0, func(c *Call) (Value, error) {
		n := 0
		err := c.VM.each(c.Self, func(args []Value) error {
			switch {
			case len(c.Args) > 0:
				eq, err := c.VM.Send(enumValue(args), "==", c.Args[0])
				if err != nil {
					return err
				}
				if Truthy(eq) {
					n++
				}
			case c.Block != nil:
				v, err := c.Yield(args...)
				if err != nil {
					return err
				}
				if Truthy(v) {
					n++
				}
			default:
				n++
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return Int(n), nil
	})

	c.AddMethod0(sel, "each_with_index", func(c *Call) (Value, error) {
		i := 0
		err := c.VM.each(c.Self, func(args []Value) error {
			_, err := c.Yield(enumValue(args), Int(i))
			i++
			return err
		})
		if err != nil {
			return nil, err
		}
		return c.Self, nil
	})

	c.AddMethod1(sel, "each_with_object", func(c *Call, memo Value) (Value, error) {
		err := c.VM.each(c.Self, func(args []Value) error {
			_, err := c.Yield(enumValue(args), memo)
			return err
		})
		if err != nil {
			return nil, err
		}
		return memo, nil
	})

	// inject(initial) { |acc, x| }, inject(:sym), inject(initial, :sym)
	inject := func(c *Call) (Value, error) {
		var acc Value
		op := ""
		switch len(c.Args) {
		case 1:
			if s, ok := c.Args[0].(Symbol); ok && c.Block == nil {
				op = string(s)
			} else {
				acc = c.Args[0]
			}
		case 2:
			acc = c.Args[0]
			name, err := c.VM.nameArg(c.Args[1])
			if err != nil {
				return nil, err
			}
			op = name
		}
		err := c.VM.each(c.Self, func(args []Value) error {
			v := enumValue(args)
			if acc == nil {
				acc = v
				return nil
			}
			var err error
			if op != "" {
				acc, err = c.VM.Send(acc, op, v)
			} else {
				acc, err = c.Yield(acc, v)
			}
			return err
		})
		if err != nil {
			return nil, err
		}
		if acc == nil {
			return Nil, nil
		}
		return acc, nil
	}
	c.AddVarMethod(sel, "inject", 0, inject)
	c.AddVarMethod(sel, "reduce", 0, inject)

	c.AddVarMethod(sel, "sum", 0, func(c *Call) (Value, error) {
		var acc Value = Int(0)
		if len(c.Args) > 0 {
			acc = c.Args[0]
		}
		err := c.VM.each(c.Self, func(args []Value) error {
			v := enumValue(args)
			if c.Block != nil {
				var err error
				if v, err = c.Yield(args...); err != nil {
					return err
				}
			}
			var err error
			acc, err = c.VM.Send(acc, "+", v)
			return err
		})
		if err != nil {
			return nil, err
		}
		return acc, nil
	})

	extreme := func(name string, want int) {
		c.AddMethod0(sel, name, func(c *Call) (Value, error) {
			var best Value
			err := c.VM.each(c.Self, func(args []Value) error {
				v := enumValue(args)
				if best == nil {
					best = v
					return nil
				}
				var n int
				if c.Block != nil {
					r, err := c.Yield(v, best)
					if err != nil {
						return err
					}
					ri, ok := r.(Int)
					if !ok {
						return c.VM.comparisonFailed(v, best)
					}
					n = int(ri)
				} else {
					var err error
					if n, err = c.VM.compare(v, best); err != nil {
						return err
					}
				}
				if n*want > 0 {
					best = v
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			if best == nil {
				return Nil, nil
			}
			return best, nil
		})
	}
	extreme("min", -1)
	extreme("max", 1)
}

// each sends each to recv with a block that hands the yielded values to
// fn. An error from fn propagates out of each unchanged.
func (vm *VM) each(recv Value, fn func(args []Value) error) error {
	blk := vm.NewProc(Nil, -1, func(c *Call) (Value, error) {
		return Nil, fn(c.Args)
	})
	_, err := vm.SendBlock(recv, "each", blk)
	return err
}

// enumValue packs the values of one yield into a single element: nothing
// is nil, several become an Array.
func enumValue(args []Value) Value {
	switch len(args) {
	case 0:
		return Nil
	case 1:
		return args[0]
	}
	return &Array{elems: append([]Value(nil), args...)}
}
