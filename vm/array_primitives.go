package vm

import "strings"

// ---------------------------------------------------------------------------
// Array Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerArrayPrimitives() {
	c := vm.ArrayClass
	sel := vm.Selectors

	c.AddVarMethod(sel, "initialize", 0, func(c *Call) (Value, error) {
		a := c.Self.(*Array)
		if len(c.Args) == 0 {
			return Nil, nil
		}
		n, ok := c.Args[0].(Int)
		if !ok {
			return nil, c.VM.Errorf(c.VM.TypeErrorClass, "no implicit conversion of %s into Integer", c.VM.ClassOf(c.Args[0]).Name())
		}
		if n < 0 {
			return nil, c.VM.Errorf(c.VM.ArgumentErrorClass, "negative array size")
		}
		a.elems = make([]Value, n)
		for i := range a.elems {
			if c.Block != nil {
				v, err := c.Yield(Int(i))
				if err != nil {
					return nil, err
				}
				a.elems[i] = v
			} else {
				a.elems[i] = c.Arg(1)
			}
		}
		return Nil, nil
	})

	c.AddMethod1(sel, "initialize_copy", func(c *Call, orig Value) (Value, error) {
		src, ok := orig.(*Array)
		if !ok {
			return nil, c.VM.Errorf(c.VM.TypeErrorClass, "no implicit conversion of %s into Array", c.VM.ClassOf(orig).Name())
		}
		c.Self.(*Array).elems = append([]Value(nil), src.elems...)
		return c.Self, nil
	})

	// Access

	length := func(c *Call) (Value, error) { return Int(len(c.Self.(*Array).elems)), nil }
	c.AddMethod0(sel, "length", length)
	c.AddMethod0(sel, "size", length)

	c.AddMethod0(sel, "empty?", func(c *Call) (Value, error) {
		return FromBool(len(c.Self.(*Array).elems) == 0), nil
	})

	c.AddVarMethod(sel, "[]", 1, func(c *Call) (Value, error) {
		a := c.Self.(*Array)
		i, ok := c.Args[0].(Int)
		if !ok {
			return nil, c.VM.Errorf(c.VM.TypeErrorClass, "no implicit conversion of %s into Integer", c.VM.ClassOf(c.Args[0]).Name())
		}
		if len(c.Args) == 1 {
			return a.At(int(i)), nil
		}
		n, ok := c.Args[1].(Int)
		if !ok {
			return nil, c.VM.Errorf(c.VM.TypeErrorClass, "no implicit conversion of %s into Integer", c.VM.ClassOf(c.Args[1]).Name())
		}
		start := int(i)
		if start < 0 {
			start += len(a.elems)
		}
		if start < 0 || start > len(a.elems) || n < 0 {
			return Nil, nil
		}
		end := min(start+int(n), len(a.elems))
		return c.VM.NewArray(a.elems[start:end]...), nil
	})

	c.AddMethod2(sel, "[]=", func(c *Call, idx, v Value) (Value, error) {
		if err := c.VM.CheckFrozen(c.Self); err != nil {
			return nil, err
		}
		a := c.Self.(*Array)
		i, ok := idx.(Int)
		if !ok {
			return nil, c.VM.Errorf(c.VM.TypeErrorClass, "no implicit conversion of %s into Integer", c.VM.ClassOf(idx).Name())
		}
		n := int(i)
		if n < 0 {
			n += len(a.elems)
			if n < 0 {
				return nil, c.VM.Errorf(c.VM.IndexErrorClass, "index %d too small for array; minimum: -%d", i, len(a.elems))
			}
		}
		for len(a.elems) <= n {
			a.elems = append(a.elems, Nil)
		}
		a.elems[n] = v
		return v, nil
	})

	c.AddVarMethod(sel, "first", 0, func(c *Call) (Value, error) {
		a := c.Self.(*Array)
		if len(c.Args) == 0 {
			return a.At(0), nil
		}
		n, ok := c.Args[0].(Int)
		if !ok || n < 0 {
			return nil, c.VM.Errorf(c.VM.ArgumentErrorClass, "negative array size")
		}
		return c.VM.NewArray(a.elems[:min(int(n), len(a.elems))]...), nil
	})

	c.AddMethod0(sel, "last", func(c *Call) (Value, error) {
		return c.Self.(*Array).At(-1), nil
	})

	c.AddMethod1(sel, "index", func(c *Call, v Value) (Value, error) {
		for i, e := range c.Self.(*Array).elems {
			eq, err := c.VM.Send(e, "==", v)
			if err != nil {
				return nil, err
			}
			if Truthy(eq) {
				return Int(i), nil
			}
		}
		return Nil, nil
	})

	// Mutation

	push := func(c *Call) (Value, error) {
		if err := c.VM.CheckFrozen(c.Self); err != nil {
			return nil, err
		}
		a := c.Self.(*Array)
		a.elems = append(a.elems, c.Args...)
		return a, nil
	}
	c.AddMethod(sel, "<<", NewMethod("<<", 1, push))
	c.AddVarMethod(sel, "push", 0, push)
	c.AddVarMethod(sel, "append", 0, push)

	c.AddMethod0(sel, "pop", func(c *Call) (Value, error) {
		if err := c.VM.CheckFrozen(c.Self); err != nil {
			return nil, err
		}
		a := c.Self.(*Array)
		if len(a.elems) == 0 {
			return Nil, nil
		}
		v := a.elems[len(a.elems)-1]
		a.elems = a.elems[:len(a.elems)-1]
		return v, nil
	})

	c.AddMethod0(sel, "shift", func(c *Call) (Value, error) {
		if err := c.VM.CheckFrozen(c.Self); err != nil {
			return nil, err
		}
		a := c.Self.(*Array)
		if len(a.elems) == 0 {
			return Nil, nil
		}
		v := a.elems[0]
		a.elems = append([]Value(nil), a.elems[1:]...)
		return v, nil
	})

	c.AddVarMethod(sel, "unshift", 0, func(c *Call) (Value, error) {
		if err := c.VM.CheckFrozen(c.Self); err != nil {
			return nil, err
		}
		a := c.Self.(*Array)
		a.elems = append(append([]Value(nil), c.Args...), a.elems...)
		return a, nil
	})

	c.AddMethod1(sel, "concat", func(c *Call, other Value) (Value, error) {
		if err := c.VM.CheckFrozen(c.Self); err != nil {
			return nil, err
		}
		o, ok := other.(*Array)
		if !ok {
			return nil, c.VM.Errorf(c.VM.TypeErrorClass, "no implicit conversion of %s into Array", c.VM.ClassOf(other).Name())
		}
		a := c.Self.(*Array)
		a.elems = append(a.elems, o.elems...)
		return a, nil
	})

	c.AddMethod0(sel, "clear", func(c *Call) (Value, error) {
		if err := c.VM.CheckFrozen(c.Self); err != nil {
			return nil, err
		}
		c.Self.(*Array).elems = nil
		return c.Self, nil
	})

	// Derived arrays

	c.AddMethod1(sel, "+", func(c *Call, other Value) (Value, error) {
		o, ok := other.(*Array)
		if !ok {
			return nil, c.VM.Errorf(c.VM.TypeErrorClass, "no implicit conversion of %s into Array", c.VM.ClassOf(other).Name())
		}
		a := c.Self.(*Array)
		out := make([]Value, 0, len(a.elems)+len(o.elems))
		return c.VM.NewArray(append(append(out, a.elems...), o.elems...)...), nil
	})

	c.AddMethod0(sel, "reverse", func(c *Call) (Value, error) {
		src := c.Self.(*Array).elems
		out := make([]Value, len(src))
		for i, v := range src {
			out[len(src)-1-i] = v
		}
		return c.VM.NewArray(out...), nil
	})

	c.AddMethod0(sel, "compact", func(c *Call) (Value, error) {
		var out []Value
		for _, v := range c.Self.(*Array).elems {
			if !IsNil(v) {
				out = append(out, v)
			}
		}
		return c.VM.NewArray(out...), nil
	})

	c.AddMethod0(sel, "to_a", func(c *Call) (Value, error) { return c.Self, nil })

	c.AddVarMethod(sel, "join", 0, func(c *Call) (Value, error) {
		sep := ""
		if len(c.Args) > 0 && !IsNil(c.Args[0]) {
			s, err := c.VM.stringArg(c.Args[0])
			if err != nil {
				return nil, err
			}
			sep = s
		}
		s, err := c.VM.joinArray(c.Self.(*Array), sep)
		if err != nil {
			return nil, err
		}
		return c.VM.Str(s), nil
	})

	// Iteration. each re-reads the length so blocks may append.

	c.AddMethod0(sel, "each", func(c *Call) (Value, error) {
		a := c.Self.(*Array)
		for i := 0; i < len(a.elems); i++ {
			if _, err := c.Yield(a.elems[i]); err != nil {
				return nil, err
			}
		}
		return a, nil
	})

	c.AddMethod0(sel, "map", func(c *Call) (Value, error) {
		a := c.Self.(*Array)
		out := make([]Value, 0, len(a.elems))
		for i := 0; i < len(a.elems); i++ {
			v, err := c.Yield(a.elems[i])
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return c.VM.NewArray(out...), nil
	})

	// Equality and rendering

	c.AddMethod1(sel, "==", func(c *Call, other Value) (Value, error) {
		o, ok := other.(*Array)
		if !ok {
			return False, nil
		}
		eq, err := c.VM.arrayEqual(c.Self.(*Array), o)
		if err != nil {
			return nil, err
		}
		return FromBool(eq), nil
	})

	c.AddMethod0(sel, "hash", func(c *Call) (Value, error) {
		h, err := c.VM.arrayHash(c.Self.(*Array))
		if err != nil {
			return nil, err
		}
		return Int(h), nil
	})

	render := func(c *Call) (Value, error) {
		s, err := c.VM.inspectArray(c.Self.(*Array))
		if err != nil {
			return nil, err
		}
		return c.VM.Str(s), nil
	}
	c.AddMethod0(sel, "inspect", render)
	c.AddMethod0(sel, "to_s", render)
}

// arrayEqual compares element-wise with ==. Comparing an array that
// contains itself terminates.
func (vm *VM) arrayEqual(a, b *Array) (bool, error) {
	if a == b {
		return true, nil
	}
	if len(a.elems) != len(b.elems) {
		return false, nil
	}
	result := true
	_, err := vm.withInspectGuard(a, "", func() (string, error) {
		for i := range a.elems {
			eq, err := vm.Send(a.elems[i], "==", b.elems[i])
			if err != nil {
				return "", err
			}
			if !Truthy(eq) {
				result = false
				return "", nil
			}
		}
		return "", nil
	})
	return result, err
}

// arrayHash combines element hashes; a recursive reference hashes as a
// fixed marker.
func (vm *VM) arrayHash(a *Array) (int64, error) {
	var h int64 = 7
	_, err := vm.withInspectGuard(a, "", func() (string, error) {
		for _, e := range a.elems {
			eh := int64(0x2f)
			if inner, ok := e.(*Array); ok && vm.inspecting[vm.ObjectID(inner)] {
				h = h*31 + eh
				continue
			}
			v, err := vm.Send(e, "hash")
			if err != nil {
				return "", err
			}
			if n, ok := v.(Int); ok {
				eh = int64(n)
			}
			h = h*31 + eh
		}
		return "", nil
	})
	return h, err
}

func (vm *VM) joinArray(a *Array, sep string) (string, error) {
	out, err := vm.withInspectGuard(a, "", func() (string, error) {
		parts := make([]string, len(a.elems))
		for i, e := range a.elems {
			if inner, ok := e.(*Array); ok {
				if vm.inspecting[vm.ObjectID(inner)] {
					return "", vm.Errorf(vm.ArgumentErrorClass, "recursive array join")
				}
				s, err := vm.joinArray(inner, sep)
				if err != nil {
					return "", err
				}
				parts[i] = s
				continue
			}
			s, err := vm.ToS(e)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, sep), nil
	})
	return out, err
}
