package vm

import (
	"math"
	"strconv"
)

// ---------------------------------------------------------------------------
// Integer Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerIntegerPrimitives() {
	c := vm.IntegerClass
	sel := vm.Selectors

	// Arithmetic. A Float operand promotes the result to Float.
	for _, op := range []string{"+", "-", "*", "/", "%", "**"} {
		c.AddMethod1(sel, op, func(c *Call, arg Value) (Value, error) {
			return c.VM.intArith(op, c.Self.(Int), arg)
		})
	}
	c.AddMethod1(sel, "modulo", func(c *Call, arg Value) (Value, error) {
		return c.VM.intArith("%", c.Self.(Int), arg)
	})
	c.AddMethod1(sel, "div", func(c *Call, arg Value) (Value, error) {
		r, err := c.VM.intArith("/", c.Self.(Int), arg)
		if err != nil {
			return nil, err
		}
		if f, ok := r.(Float); ok {
			return Int(math.Floor(float64(f))), nil
		}
		return r, nil
	})

	c.AddMethod0(sel, "-@", func(c *Call) (Value, error) { return -c.Self.(Int), nil })

	c.AddMethod0(sel, "abs", func(c *Call) (Value, error) {
		if n := c.Self.(Int); n < 0 {
			return -n, nil
		}
		return c.Self, nil
	})

	c.AddMethod0(sel, "succ", func(c *Call) (Value, error) { return c.Self.(Int) + 1, nil })
	c.AddMethod0(sel, "pred", func(c *Call) (Value, error) { return c.Self.(Int) - 1, nil })

	// Comparison
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

	c.AddMethod0(sel, "zero?", func(c *Call) (Value, error) { return FromBool(c.Self.(Int) == 0), nil })
	c.AddMethod0(sel, "even?", func(c *Call) (Value, error) { return FromBool(c.Self.(Int)%2 == 0), nil })
	c.AddMethod0(sel, "odd?", func(c *Call) (Value, error) { return FromBool(c.Self.(Int)%2 != 0), nil })
	c.AddMethod0(sel, "hash", func(c *Call) (Value, error) { return Int(c.VM.ObjectID(c.Self)), nil })

	// Conversion
	c.AddMethod0(sel, "to_i", func(c *Call) (Value, error) { return c.Self, nil })
	c.AddMethod0(sel, "to_f", func(c *Call) (Value, error) { return Float(c.Self.(Int)), nil })

	c.AddVarMethod(sel, "to_s", 0, func(c *Call) (Value, error) {
		base := 10
		if b, ok := c.Arg(0).(Int); ok {
			if b < 2 || b > 36 {
				return nil, c.VM.Errorf(c.VM.ArgumentErrorClass, "invalid radix %d", b)
			}
			base = int(b)
		}
		return c.VM.Str(strconv.FormatInt(int64(c.Self.(Int)), base)), nil
	})
	c.AddMethod0(sel, "inspect", func(c *Call) (Value, error) {
		return c.VM.Str(strconv.FormatInt(int64(c.Self.(Int)), 10)), nil
	})

	// Iteration
	c.AddMethod0(sel, "times", func(c *Call) (Value, error) {
		n := c.Self.(Int)
		for i := Int(0); i < n; i++ {
			if _, err := c.Yield(i); err != nil {
				return nil, err
			}
		}
		return c.Self, nil
	})

	c.AddMethod1(sel, "upto", func(c *Call, limit Value) (Value, error) {
		to, ok := limit.(Int)
		if !ok {
			return nil, c.VM.comparisonFailed(c.Self, limit)
		}
		for i := c.Self.(Int); i <= to; i++ {
			if _, err := c.Yield(i); err != nil {
				return nil, err
			}
		}
		return c.Self, nil
	})
}

// intArith applies op to an Int receiver. Integer division and modulo
// floor toward negative infinity.
func (vm *VM) intArith(op string, a Int, arg Value) (Value, error) {
	switch b := arg.(type) {
	case Int:
		switch op {
		case "+":
			return a + b, nil
		case "-":
			return a - b, nil
		case "*":
			return a * b, nil
		case "/":
			if b == 0 {
				return nil, vm.Errorf(vm.ZeroDivisionErrorClass, "divided by 0")
			}
			return floorDiv(a, b), nil
		case "%":
			if b == 0 {
				return nil, vm.Errorf(vm.ZeroDivisionErrorClass, "divided by 0")
			}
			return a - floorDiv(a, b)*b, nil
		case "**":
			if b < 0 {
				return Float(math.Pow(float64(a), float64(b))), nil
			}
			r := Int(1)
			for i := Int(0); i < b; i++ {
				r *= a
			}
			return r, nil
		}
	case Float:
		return vm.floatArith(op, Float(a), b)
	}
	return nil, vm.coercionFailed(arg, "Integer")
}

func floorDiv(a, b Int) Int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// numericCompare returns -1, 0 or 1 as an Int, or Nil when b is not a
// number or either side is NaN.
func numericCompare(a, b Value) Value {
	x, ok1 := toFloat(a)
	y, ok2 := toFloat(b)
	if !ok1 || !ok2 {
		return Nil
	}
	if ai, ok := a.(Int); ok {
		if bi, ok := b.(Int); ok {
			switch {
			case ai < bi:
				return Int(-1)
			case ai > bi:
				return Int(1)
			}
			return Int(0)
		}
	}
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return Nil
	case x < y:
		return Int(-1)
	case x > y:
		return Int(1)
	}
	return Int(0)
}

func (vm *VM) numericRelation(op string, a, b Value) (Value, error) {
	if _, ok := toFloat(b); !ok {
		return nil, vm.comparisonFailed(a, b)
	}
	cmp, ok := numericCompare(a, b).(Int)
	if !ok {
		return False, nil
	}
	switch op {
	case "<":
		return FromBool(cmp < 0), nil
	case "<=":
		return FromBool(cmp <= 0), nil
	case ">":
		return FromBool(cmp > 0), nil
	}
	return FromBool(cmp >= 0), nil
}

func toFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case Int:
		return float64(x), true
	case Float:
		return float64(x), true
	}
	return 0, false
}

func (vm *VM) comparisonFailed(a, b Value) error {
	other := vm.ClassOf(b).Name()
	switch b.(type) {
	case nilValue, Bool, Int, Float:
		other = vm.Inspect(b)
	}
	return vm.Errorf(vm.ArgumentErrorClass, "comparison of %s with %s failed", vm.ClassOf(a).Name(), other)
}

func (vm *VM) coercionFailed(arg Value, into string) error {
	what := vm.ClassOf(arg).Name()
	if IsNil(arg) {
		what = "nil"
	}
	return vm.Errorf(vm.TypeErrorClass, "%s can't be coerced into %s", what, into)
}
