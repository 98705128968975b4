package vm

import "math"

// ---------------------------------------------------------------------------
// Float Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerFloatPrimitives() {
	c := vm.FloatClass
	sel := vm.Selectors

	for _, op := range []string{"+", "-", "*", "/", "%", "**"} {
		c.AddMethod1(sel, op, func(c *Call, arg Value) (Value, error) {
			return c.VM.floatArith(op, c.Self.(Float), arg)
		})
	}

	c.AddMethod0(sel, "-@", func(c *Call) (Value, error) { return -c.Self.(Float), nil })
	c.AddMethod0(sel, "abs", func(c *Call) (Value, error) { return Float(math.Abs(float64(c.Self.(Float)))), nil })

	c.AddMethod1(sel, "<=>", func(c *Call, arg Value) (Value, error) {
		return numericCompare(c.Self, arg), nil
	})
	c.AddMethod1(sel, "==", func(c *Call, arg Value) (Value, error) {
		return FromBool(numericCompare(c.Self, arg) == Int(0)), nil
	})
	for _, op := range []string{"<", "<=", ">", ">="} {
		c.AddMethod1(sel, op, func(c *Call, arg Value) (Value, error) {
			return c.VM.numericRelation(op, c.Self, arg)
		})
	}

	c.AddMethod0(sel, "zero?", func(c *Call) (Value, error) { return FromBool(c.Self.(Float) == 0), nil })
	c.AddMethod0(sel, "nan?", func(c *Call) (Value, error) { return FromBool(math.IsNaN(float64(c.Self.(Float)))), nil })
	c.AddMethod0(sel, "infinite?", func(c *Call) (Value, error) {
		f := float64(c.Self.(Float))
		switch {
		case math.IsInf(f, 1):
			return Int(1), nil
		case math.IsInf(f, -1):
			return Int(-1), nil
		}
		return Nil, nil
	})
	c.AddMethod0(sel, "hash", func(c *Call) (Value, error) { return Int(c.VM.ObjectID(c.Self)), nil })

	toInt := func(name string, fn func(float64) float64) {
		c.AddMethod0(sel, name, func(c *Call) (Value, error) {
			f := float64(c.Self.(Float))
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, c.VM.Errorf(c.VM.FloatDomainErrorClass, "%s", formatFloat(f))
			}
			return Int(fn(f)), nil
		})
	}
	toInt("to_i", math.Trunc)
	toInt("floor", math.Floor)
	toInt("ceil", math.Ceil)
	toInt("round", math.Round)

	c.AddMethod0(sel, "to_f", func(c *Call) (Value, error) { return c.Self, nil })

	render := func(c *Call) (Value, error) {
		return c.VM.Str(formatFloat(float64(c.Self.(Float)))), nil
	}
	c.AddMethod0(sel, "to_s", render)
	c.AddMethod0(sel, "inspect", render)
}

func (vm *VM) floatArith(op string, a Float, arg Value) (Value, error) {
	y, ok := toFloat(arg)
	if !ok {
		return nil, vm.coercionFailed(arg, "Float")
	}
	x := float64(a)
	switch op {
	case "+":
		return Float(x + y), nil
	case "-":
		return Float(x - y), nil
	case "*":
		return Float(x * y), nil
	case "/":
		return Float(x / y), nil
	case "%":
		if y == 0 {
			return Float(math.NaN()), nil
		}
		m := math.Mod(x, y)
		if m != 0 && (m < 0) != (y < 0) {
			m += y
		}
		return Float(m), nil
	case "**":
		return Float(math.Pow(x, y)), nil
	}
	return nil, vm.Errorf(vm.ArgumentErrorClass, "unknown operator %s", op)
}
