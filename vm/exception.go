package vm

import (
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Exceptions as Go errors
// ---------------------------------------------------------------------------

// Exception is a Garnet exception object. It implements error so raised
// exceptions travel up Go call stacks as ordinary error returns.
type Exception struct {
	Header
	message   string
	backtrace []string
	btSet     bool
	cause     error

	// Details carried by specific exception classes.
	name     Value
	receiver Value
	tag      Value
	value    Value
	reason   string
}

func (*Exception) isValue() {}

// Error returns "message (ClassName)".
func (e *Exception) Error() string {
	if e.class == nil {
		return e.message
	}
	return fmt.Sprintf("%s (%s)", e.message, e.class.Name())
}

// Unwrap returns the wrapped cause, which is the host error for HostError
// exceptions and the exception being handled when e was raised otherwise.
func (e *Exception) Unwrap() error { return e.cause }

// Message returns the message text.
func (e *Exception) Message() string { return e.message }

// Class returns the exception's class.
func (e *Exception) Class() *Module { return e.class }

// Backtrace returns the captured backtrace, innermost first.
func (e *Exception) Backtrace() []string { return e.backtrace }

// Receiver returns the receiver for NameError-like exceptions.
func (e *Exception) Receiver() Value { return e.receiver }

// NameValue returns the missing name for NameError-like exceptions.
func (e *Exception) NameValue() Value { return e.name }

// NewException allocates an exception of cls with msg without raising it.
func (vm *VM) NewException(cls *Module, msg string) *Exception {
	obj, err := vm.Allocate(cls)
	exc, ok := obj.(*Exception)
	if err != nil || !ok {
		exc = &Exception{}
		exc.class = vm.RuntimeErrorClass
	}
	exc.message = msg
	return exc
}

// Errorf creates an exception of cls and raises it.
func (vm *VM) Errorf(cls *Module, format string, args ...any) error {
	return vm.raise(vm.NewException(cls, fmt.Sprintf(format, args...)))
}

// raise captures the backtrace and cause and returns exc as an error.
func (vm *VM) raise(exc *Exception) error {
	if !exc.btSet && vm.cfg.StackTrace {
		exc.backtrace = vm.Backtrace()
		exc.btSet = true
	}
	if exc.cause == nil && vm.currentExc != nil && vm.currentExc != exc {
		exc.cause = vm.currentExc
	}
	return exc
}

// Raise implements Kernel#raise. With no exception it re-raises $!; a
// string becomes a RuntimeError; a class or exception is asked for an
// exception via its exception method. The raised exception becomes $!.
func (vm *VM) Raise(args ...Value) error {
	if len(args) == 0 || IsNil(args[0]) {
		if vm.currentExc != nil {
			return vm.currentExc
		}
		return vm.Raise(vm.Str("unhandled exception"))
	}
	if len(args) > 3 {
		return vm.Errorf(vm.ArgumentErrorClass, "wrong number of arguments (given %d, expected 0..3)", len(args))
	}

	var exc *Exception
	switch x := args[0].(type) {
	case *String:
		exc = vm.NewException(vm.RuntimeErrorClass, x.str)
	default:
		if vm.MethodFor(x, "exception") == nil {
			return vm.Errorf(vm.TypeErrorClass, "exception class/object expected")
		}
		var eargs []Value
		if len(args) > 1 {
			eargs = args[1:2]
		}
		v, err := vm.Send(x, "exception", eargs...)
		if err != nil {
			return err
		}
		e, ok := v.(*Exception)
		if !ok {
			return vm.Errorf(vm.TypeErrorClass, "exception object expected")
		}
		exc = e
	}
	if len(args) > 2 {
		if err := vm.setBacktrace(exc, args[2]); err != nil {
			return err
		}
	}

	vm.raise(exc)
	if vm.currentExc != nil && vm.currentExc != exc {
		vm.excStack = append(vm.excStack, vm.currentExc)
	}
	vm.setCurrentException(exc)
	return exc
}

func (vm *VM) setBacktrace(exc *Exception, bt Value) error {
	switch b := bt.(type) {
	case nilValue:
		exc.backtrace, exc.btSet = nil, true
	case *String:
		exc.backtrace, exc.btSet = []string{b.str}, true
	case *Array:
		lines := make([]string, 0, len(b.elems))
		for _, e := range b.elems {
			s, ok := e.(*String)
			if !ok {
				return vm.Errorf(vm.TypeErrorClass, "backtrace must be an Array of String or an Array of Thread::Backtrace::Location")
			}
			lines = append(lines, s.str)
		}
		exc.backtrace, exc.btSet = lines, true
	default:
		return vm.Errorf(vm.TypeErrorClass, "backtrace must be an Array of String or an Array of Thread::Backtrace::Location")
	}
	return nil
}

// CurrentException returns $!, or nil.
func (vm *VM) CurrentException() *Exception { return vm.currentExc }

func (vm *VM) setCurrentException(exc *Exception) {
	vm.currentExc = exc
	if exc == nil {
		vm.globals["$!"] = Nil
		vm.globals["$@"] = Nil
		return
	}
	vm.globals["$!"] = exc
	if exc.btSet {
		vm.globals["$@"] = vm.stringArray(exc.backtrace)
	} else {
		vm.globals["$@"] = Nil
	}
}

// AsException converts any error into an exception. Runtime exceptions
// are returned as they are; other Go errors are wrapped in HostError.
// Control-flow signals are not exceptions and return nil.
func (vm *VM) AsException(err error) *Exception {
	if err == nil || IsSignal(err) {
		return nil
	}
	var exc *Exception
	if errors.As(err, &exc) {
		return exc
	}
	exc = vm.NewException(vm.HostErrorClass, err.Error())
	exc.cause = err
	vm.raise(exc)
	return exc
}

// RescueMatch reports which of candidates matches err, the way a rescue
// clause chooses. Arrays of candidates are searched recursively. HostError
// matches any exception. Other candidates are asked with ===. Returns nil
// when nothing matches; control-flow signals never match.
func (vm *VM) RescueMatch(err error, candidates ...Value) (Value, error) {
	exc := vm.AsException(err)
	if exc == nil {
		return nil, nil
	}
	return vm.rescueMatch(exc, candidates)
}

func (vm *VM) rescueMatch(exc *Exception, candidates []Value) (Value, error) {
	for _, c := range candidates {
		if arr, ok := c.(*Array); ok {
			m, err := vm.rescueMatch(exc, arr.elems)
			if err != nil || m != nil {
				return m, err
			}
			continue
		}
		if c == Value(vm.HostErrorClass) {
			return c, nil
		}
		if mod, ok := c.(*Module); ok && vm.MethodFor(mod, "===") == vm.moduleCaseEq {
			if vm.IsA(exc, mod) {
				return c, nil
			}
			continue
		}
		v, err := vm.Send(c, "===", exc)
		if err != nil {
			return nil, err
		}
		if Truthy(v) {
			return c, nil
		}
	}
	return nil, nil
}

// Rescue runs handler when err matches one of candidates (StandardError
// when none are given). $! is the exception while handler runs and is
// restored afterwards. Non-matching errors are returned unchanged.
func (vm *VM) Rescue(err error, candidates []Value, handler func(exc *Exception) (Value, error)) (Value, error) {
	if err == nil {
		return nil, nil
	}
	if len(candidates) == 0 {
		candidates = []Value{vm.StandardErrorClass}
	}
	exc := vm.AsException(err)
	if exc == nil {
		return nil, err
	}
	match, merr := vm.rescueMatch(exc, candidates)
	if merr != nil {
		return nil, merr
	}
	if match == nil {
		return nil, err
	}
	if vm.currentExc != nil && vm.currentExc != exc {
		vm.excStack = append(vm.excStack, vm.currentExc)
	}
	vm.setCurrentException(exc)
	defer vm.PopException(exc)
	return handler(exc)
}

// PopException leaves a rescue clause for rescued. If the saved exception
// is rescued itself, $! stays as it is; otherwise $! goes back to the
// saved exception, or to nil when nothing was saved.
func (vm *VM) PopException(rescued *Exception) {
	var popped *Exception
	if n := len(vm.excStack); n > 0 {
		popped = vm.excStack[n-1]
		vm.excStack = vm.excStack[:n-1]
	}
	switch {
	case popped != nil && popped == rescued:
	case popped != nil:
		vm.setCurrentException(popped)
	default:
		vm.setCurrentException(nil)
	}
}

// ClearException drops $! and any saved exceptions. Callers at the top
// level use it once an uncaught error has been reported.
func (vm *VM) ClearException() {
	vm.excStack = nil
	vm.setCurrentException(nil)
}

// Ensure runs body and then cleanup, the way begin/ensure does. An error
// from cleanup replaces the body's result.
func (vm *VM) Ensure(body func() (Value, error), cleanup func() error) (Value, error) {
	v, err := body()
	if cerr := cleanup(); cerr != nil {
		return nil, cerr
	}
	return v, err
}

// IsA reports whether v is an instance of mod or of something that has mod
// in its ancestors.
func (vm *VM) IsA(v Value, mod *Module) bool {
	return containsModule(vm.Ancestors(vm.dispatchClass(v)), mod)
}

// ---------------------------------------------------------------------------
// Uncaught errors and exit
// ---------------------------------------------------------------------------

// Exit returns a SystemExit carrying status.
func (vm *VM) Exit(status int) error {
	exc := vm.NewException(vm.SystemExitClass, "exit")
	exc.value = Int(status)
	return vm.raise(exc)
}

// ExitStatus reports the process status an error should produce: the
// status of a SystemExit, 1 for anything else, 0 for nil.
func (vm *VM) ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exc *Exception
	if errors.As(err, &exc) && vm.IsA(exc, vm.SystemExitClass) {
		if n, ok := exc.value.(Int); ok {
			return int(n)
		}
		return 0
	}
	return 1
}

// FormatUncaught renders an error that reached the top level the way the
// interpreter prints it.
func (vm *VM) FormatUncaught(err error) string {
	var sb strings.Builder
	if IsSignal(err) {
		err = vm.orphanedSignal(err)
	}
	exc := vm.AsException(err)
	if exc == nil {
		return err.Error()
	}
	where := "<main>"
	bt := exc.backtrace
	if len(bt) > 0 {
		where = bt[0]
		bt = bt[1:]
	}
	msg := exc.message
	if m, e := vm.Send(exc, "message"); e == nil {
		if s, ok := m.(*String); ok {
			msg = s.str
		}
	}
	fmt.Fprintf(&sb, "%s: %s (%s)", where, msg, exc.class.Name())
	for _, line := range bt {
		sb.WriteString("\n\tfrom ")
		sb.WriteString(line)
	}
	for cause := exc.cause; cause != nil; {
		var c *Exception
		if !errors.As(cause, &c) {
			fmt.Fprintf(&sb, "\n%s", cause.Error())
			break
		}
		fmt.Fprintf(&sb, "\n%s (%s)", c.message, c.class.Name())
		cause = c.cause
	}
	return sb.String()
}

// AtExit registers blk to run at shutdown. Handlers run last registered
// first.
func (vm *VM) AtExit(blk *Proc) {
	vm.exitHandlers = append(vm.exitHandlers, blk)
}

// RunExitHandlers runs the at_exit handlers. A handler that raises is
// reported and the rest still run; the last such error is returned.
func (vm *VM) RunExitHandlers() error {
	var last error
	for len(vm.exitHandlers) > 0 {
		n := len(vm.exitHandlers) - 1
		blk := vm.exitHandlers[n]
		vm.exitHandlers = vm.exitHandlers[:n]
		if _, err := vm.CallProc(blk); err != nil {
			vm.log.Errorf("at_exit handler failed: %s", err)
			last = err
		}
	}
	return last
}
