package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// ---------------------------------------------------------------------------
// IO
// ---------------------------------------------------------------------------

// IO wraps a host reader or writer as a Garnet object. The standard
// streams are IO objects; programs cannot open files.
type IO struct {
	Header
	vm     *VM
	name   string
	r      *bufio.Reader
	w      io.Writer
	fd     *os.File
	closed bool
}

func (*IO) isValue() {}

// NewIO creates an IO reading from r and writing to w. Either may be nil.
func (vm *VM) NewIO(name string, r io.Reader, w io.Writer) *IO {
	s := &IO{vm: vm, name: name, w: w}
	if r != nil {
		s.r = bufio.NewReader(r)
	}
	if f, ok := w.(*os.File); ok {
		s.fd = f
	} else if f, ok := r.(*os.File); ok {
		s.fd = f
	}
	s.class = vm.IOClass
	return s
}

// Name returns the stream's display name, for example "<STDOUT>".
func (s *IO) Name() string { return s.name }

// Write implements io.Writer. Writing to a closed or read-only stream
// raises IOError.
func (s *IO) Write(p []byte) (int, error) {
	if s.closed {
		return 0, s.vm.Errorf(s.vm.IOErrorClass, "closed stream")
	}
	if s.w == nil {
		return 0, s.vm.Errorf(s.vm.IOErrorClass, "not opened for writing")
	}
	return s.w.Write(p)
}

func (s *IO) reader() (*bufio.Reader, error) {
	if s.closed {
		return nil, s.vm.Errorf(s.vm.IOErrorClass, "closed stream")
	}
	if s.r == nil {
		return nil, s.vm.Errorf(s.vm.IOErrorClass, "not opened for reading")
	}
	return s.r, nil
}

// IsTerminal reports whether the stream is attached to a terminal.
func (s *IO) IsTerminal() bool {
	if s.fd == nil {
		return false
	}
	return isatty.IsTerminal(s.fd.Fd()) || isatty.IsCygwinTerminal(s.fd.Fd())
}

func (vm *VM) registerIOPrimitives() {
	c := vm.IOClass
	sel := vm.Selectors

	self := func(c *Call) *IO { return c.Self.(*IO) }

	c.AddVarMethod(sel, "puts", 0, func(c *Call) (Value, error) {
		return Nil, c.VM.puts(self(c), c.Args)
	})

	c.AddVarMethod(sel, "print", 0, func(c *Call) (Value, error) {
		return Nil, c.VM.print(self(c), c.Args)
	})

	c.AddVarMethod(sel, "write", 0, func(c *Call) (Value, error) {
		n := 0
		for _, a := range c.Args {
			s, err := c.VM.ToS(a)
			if err != nil {
				return nil, err
			}
			if _, err := io.WriteString(self(c), s); err != nil {
				return nil, err
			}
			n += len(s)
		}
		return Int(n), nil
	})

	c.AddMethod1(sel, "<<", func(c *Call, arg Value) (Value, error) {
		s, err := c.VM.ToS(arg)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(self(c), s); err != nil {
			return nil, err
		}
		return c.Self, nil
	})

	c.AddVarMethod(sel, "p", 0, func(c *Call) (Value, error) {
		return c.VM.p(self(c), c.Args)
	})

	c.AddMethod0(sel, "flush", func(c *Call) (Value, error) {
		if f, ok := self(c).w.(interface{ Flush() error }); ok {
			if err := f.Flush(); err != nil {
				return nil, c.VM.AsException(err)
			}
		}
		return c.Self, nil
	})

	c.AddMethod0(sel, "sync", func(c *Call) (Value, error) { return True, nil })
	c.AddMethod1(sel, "sync=", func(c *Call, v Value) (Value, error) { return v, nil })

	c.AddVarMethod(sel, "gets", 0, func(c *Call) (Value, error) {
		r, err := self(c).reader()
		if err != nil {
			return nil, err
		}
		line, rerr := r.ReadString('\n')
		if rerr != nil && rerr != io.EOF {
			return nil, c.VM.AsException(rerr)
		}
		if line == "" {
			return Nil, nil
		}
		return c.VM.Str(line), nil
	})

	c.AddMethod0(sel, "read", func(c *Call) (Value, error) {
		r, err := self(c).reader()
		if err != nil {
			return nil, err
		}
		data, rerr := io.ReadAll(r)
		if rerr != nil {
			return nil, c.VM.AsException(rerr)
		}
		return c.VM.Str(string(data)), nil
	})

	tty := func(c *Call) (Value, error) { return FromBool(self(c).IsTerminal()), nil }
	c.AddMethod0(sel, "tty?", tty)
	c.AddMethod0(sel, "isatty", tty)

	c.AddMethod0(sel, "close", func(c *Call) (Value, error) {
		self(c).closed = true
		return Nil, nil
	})
	c.AddMethod0(sel, "closed?", func(c *Call) (Value, error) {
		return FromBool(self(c).closed), nil
	})

	c.AddMethod0(sel, "inspect", func(c *Call) (Value, error) {
		s := self(c)
		if s.name == "" {
			return c.VM.Str(fmt.Sprintf("#<IO:0x%016x>", uint64(c.VM.ObjectID(s)))), nil
		}
		return c.VM.Str("#<IO:" + s.name + ">"), nil
	})
}

// print writes the to_s of each argument with no separator.
func (vm *VM) print(w io.Writer, args []Value) error {
	for _, a := range args {
		s, err := vm.ToS(a)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, s); err != nil {
			return err
		}
	}
	return nil
}

// p writes the inspect of each argument on its own line and returns what
// Kernel#p returns: nil, the argument, or all arguments as an Array.
func (vm *VM) p(w io.Writer, args []Value) (Value, error) {
	for _, a := range args {
		s, err := vm.InspectValue(a)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(w, s+"\n"); err != nil {
			return nil, err
		}
	}
	switch len(args) {
	case 0:
		return Nil, nil
	case 1:
		return args[0], nil
	}
	return vm.NewArray(args...), nil
}
