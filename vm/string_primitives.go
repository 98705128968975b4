package vm

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// String Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerStringPrimitives() {
	c := vm.StringClass
	sel := vm.Selectors

	c.AddVarMethod(sel, "initialize", 0, func(c *Call) (Value, error) {
		s := c.Self.(*String)
		if len(c.Args) > 0 {
			src, err := c.VM.stringArg(c.Args[0])
			if err != nil {
				return nil, err
			}
			s.str = src
		}
		return Nil, nil
	})

	c.AddMethod1(sel, "initialize_copy", func(c *Call, orig Value) (Value, error) {
		src, err := c.VM.stringArg(orig)
		if err != nil {
			return nil, err
		}
		c.Self.(*String).str = src
		return c.Self, nil
	})

	// Conversion

	self := func(c *Call) (Value, error) { return c.Self, nil }
	c.AddMethod0(sel, "to_s", self)
	c.AddMethod0(sel, "to_str", self)

	c.AddMethod0(sel, "to_sym", func(c *Call) (Value, error) {
		return Symbol(c.Self.(*String).str), nil
	})

	c.AddMethod0(sel, "to_i", func(c *Call) (Value, error) {
		s := strings.TrimSpace(c.Self.(*String).str)
		end := 0
		for end < len(s) && (s[end] >= '0' && s[end] <= '9' || end == 0 && (s[end] == '-' || s[end] == '+')) {
			end++
		}
		n, err := strconv.ParseInt(s[:end], 10, 64)
		if err != nil {
			return Int(0), nil
		}
		return Int(n), nil
	})

	c.AddMethod0(sel, "inspect", func(c *Call) (Value, error) {
		return c.VM.Str(strconv.Quote(c.Self.(*String).str)), nil
	})

	// Comparison

	c.AddMethod1(sel, "==", func(c *Call, other Value) (Value, error) {
		o, ok := other.(*String)
		return FromBool(ok && o.str == c.Self.(*String).str), nil
	})
	c.AddMethod1(sel, "eql?", func(c *Call, other Value) (Value, error) {
		o, ok := other.(*String)
		return FromBool(ok && o.str == c.Self.(*String).str), nil
	})

	c.AddMethod1(sel, "<=>", func(c *Call, other Value) (Value, error) {
		o, ok := other.(*String)
		if !ok {
			return Nil, nil
		}
		return Int(strings.Compare(c.Self.(*String).str, o.str)), nil
	})

	c.AddMethod0(sel, "hash", func(c *Call) (Value, error) {
		return Int(hashString(c.Self.(*String).str)), nil
	})

	// Queries

	length := func(c *Call) (Value, error) {
		return Int(len([]rune(c.Self.(*String).str))), nil
	}
	c.AddMethod0(sel, "length", length)
	c.AddMethod0(sel, "size", length)

	c.AddMethod0(sel, "bytesize", func(c *Call) (Value, error) {
		return Int(len(c.Self.(*String).str)), nil
	})

	c.AddMethod0(sel, "empty?", func(c *Call) (Value, error) {
		return FromBool(c.Self.(*String).str == ""), nil
	})

	c.AddMethod1(sel, "include?", func(c *Call, arg Value) (Value, error) {
		sub, err := c.VM.stringArg(arg)
		if err != nil {
			return nil, err
		}
		return FromBool(strings.Contains(c.Self.(*String).str, sub)), nil
	})

	c.AddMethod1(sel, "start_with?", func(c *Call, arg Value) (Value, error) {
		sub, err := c.VM.stringArg(arg)
		if err != nil {
			return nil, err
		}
		return FromBool(strings.HasPrefix(c.Self.(*String).str, sub)), nil
	})

	c.AddMethod1(sel, "end_with?", func(c *Call, arg Value) (Value, error) {
		sub, err := c.VM.stringArg(arg)
		if err != nil {
			return nil, err
		}
		return FromBool(strings.HasSuffix(c.Self.(*String).str, sub)), nil
	})

	// Derived strings

	c.AddMethod1(sel, "+", func(c *Call, arg Value) (Value, error) {
		s, err := c.VM.stringArg(arg)
		if err != nil {
			return nil, err
		}
		return c.VM.Str(c.Self.(*String).str + s), nil
	})

	c.AddMethod1(sel, "*", func(c *Call, arg Value) (Value, error) {
		n, ok := arg.(Int)
		if !ok {
			return nil, c.VM.Errorf(c.VM.TypeErrorClass, "no implicit conversion of %s into Integer", c.VM.ClassOf(arg).Name())
		}
		if n < 0 {
			return nil, c.VM.Errorf(c.VM.ArgumentErrorClass, "negative argument")
		}
		return c.VM.Str(strings.Repeat(c.Self.(*String).str, int(n))), nil
	})

	transform := func(name string, fn func(string) string) {
		c.AddMethod0(sel, name, func(c *Call) (Value, error) {
			return c.VM.Str(fn(c.Self.(*String).str)), nil
		})
	}
	transform("upcase", strings.ToUpper)
	transform("downcase", strings.ToLower)
	transform("strip", strings.TrimSpace)
	transform("reverse", func(s string) string {
		r := []rune(s)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return string(r)
	})
	transform("capitalize", func(s string) string {
		if s == "" {
			return s
		}
		r := []rune(strings.ToLower(s))
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		return string(r)
	})

	c.AddVarMethod(sel, "split", 0, func(c *Call) (Value, error) {
		s := c.Self.(*String).str
		var parts []string
		if len(c.Args) == 0 || IsNil(c.Args[0]) {
			parts = strings.Fields(s)
		} else {
			sep, err := c.VM.stringArg(c.Args[0])
			if err != nil {
				return nil, err
			}
			parts = strings.Split(s, sep)
			for len(parts) > 0 && parts[len(parts)-1] == "" {
				parts = parts[:len(parts)-1]
			}
		}
		return c.VM.stringArray(parts), nil
	})

	// Mutation

	c.AddMethod1(sel, "<<", func(c *Call, arg Value) (Value, error) {
		if err := c.VM.CheckFrozen(c.Self); err != nil {
			return nil, err
		}
		var tail string
		if n, ok := arg.(Int); ok {
			tail = string(rune(n))
		} else {
			s, err := c.VM.stringArg(arg)
			if err != nil {
				return nil, err
			}
			tail = s
		}
		c.Self.(*String).str += tail
		return c.Self, nil
	})

	c.AddVarMethod(sel, "concat", 0, func(c *Call) (Value, error) {
		if err := c.VM.CheckFrozen(c.Self); err != nil {
			return nil, err
		}
		var sb strings.Builder
		for _, a := range c.Args {
			s, err := c.VM.stringArg(a)
			if err != nil {
				return nil, err
			}
			sb.WriteString(s)
		}
		c.Self.(*String).str += sb.String()
		return c.Self, nil
	})

	c.AddMethod1(sel, "replace", func(c *Call, arg Value) (Value, error) {
		if err := c.VM.CheckFrozen(c.Self); err != nil {
			return nil, err
		}
		s, err := c.VM.stringArg(arg)
		if err != nil {
			return nil, err
		}
		c.Self.(*String).str = s
		return c.Self, nil
	})

	bang := func(name string, fn func(string) string) {
		c.AddMethod0(sel, name, func(c *Call) (Value, error) {
			if err := c.VM.CheckFrozen(c.Self); err != nil {
				return nil, err
			}
			s := c.Self.(*String)
			out := fn(s.str)
			if out == s.str {
				return Nil, nil
			}
			s.str = out
			return s, nil
		})
	}
	bang("upcase!", strings.ToUpper)
	bang("downcase!", strings.ToLower)
	bang("strip!", strings.TrimSpace)
}

func (vm *VM) stringArg(v Value) (string, error) {
	if s, ok := v.(*String); ok {
		return s.str, nil
	}
	what := vm.ClassOf(v).Name()
	if IsNil(v) {
		what = "nil"
	}
	return "", vm.Errorf(vm.TypeErrorClass, "no implicit conversion of %s into String", what)
}

func hashString(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() >> 1)
}
