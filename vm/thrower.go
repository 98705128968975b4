package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Non-local exits
// ---------------------------------------------------------------------------

// Thrower is a token for one non-local exit kind (break, next, return
// from a block). A BreakSignal carrying the token unwinds Go frames as an
// error until the function that created the token catches it. Once that
// function returns, the token is orphaned and throwing it raises
// LocalJumpError.
type Thrower struct {
	vm     *VM
	kind   string
	id     uint64
	orphan bool
}

// BreakSignal is the error a Thrower produces. It is not an exception:
// rescue clauses never match it.
type BreakSignal struct {
	thrower *Thrower
	Value   Value
}

func (s *BreakSignal) Error() string {
	return fmt.Sprintf("unexpected %s", s.thrower.kind)
}

// Kind returns the exit kind of the token that produced s.
func (s *BreakSignal) Kind() string { return s.thrower.kind }

// ThrowSignal is the error Kernel#throw produces while unwinding to the
// matching catch.
type ThrowSignal struct {
	Tag   Value
	Value Value
}

func (s *ThrowSignal) Error() string { return "throw" }

// IsSignal reports whether err is a control-flow signal rather than an
// exception.
func IsSignal(err error) bool {
	var b *BreakSignal
	var t *ThrowSignal
	return errors.As(err, &b) || errors.As(err, &t)
}

// NewThrower creates a fresh token of kind.
func (vm *VM) NewThrower(kind string) *Thrower {
	vm.throwerSeq++
	return &Thrower{vm: vm, kind: kind, id: vm.throwerSeq}
}

// Kind returns the exit kind, for example "break".
func (t *Thrower) Kind() string { return t.kind }

// Throw returns the signal that unwinds to the token's owner with v. An
// orphaned token raises LocalJumpError instead.
func (t *Thrower) Throw(v Value) error {
	if v == nil {
		v = Nil
	}
	if t.orphan {
		exc := t.vm.NewException(t.vm.LocalJumpErrorClass, "unexpected "+t.kind)
		exc.reason = t.kind
		exc.value = v
		return t.vm.raise(exc)
	}
	return &BreakSignal{thrower: t, Value: v}
}

// WithThrower runs fn with a new token of kind and catches the signal for
// that token only. Signals for other tokens and all exceptions pass
// through.
func (vm *VM) WithThrower(kind string, fn func(t *Thrower) (Value, error)) (Value, error) {
	t := vm.NewThrower(kind)
	v, err := fn(t)
	t.orphan = true
	var sig *BreakSignal
	if errors.As(err, &sig) && sig.thrower == t {
		return sig.Value, nil
	}
	return v, err
}

// Catch runs fn with tag active. A throw of tag inside returns its value
// from Catch. A nil tag is replaced with a fresh object.
func (vm *VM) Catch(tag Value, fn func(tag Value) (Value, error)) (Value, error) {
	if tag == nil {
		tag = vm.newPlainObject()
	}
	vm.catchTags = append(vm.catchTags, tag)
	v, err := func() (Value, error) {
		defer func() { vm.catchTags = vm.catchTags[:len(vm.catchTags)-1] }()
		return fn(tag)
	}()
	var sig *ThrowSignal
	if errors.As(err, &sig) && sig.Tag == tag {
		return sig.Value, nil
	}
	return v, err
}

// Throw unwinds to the innermost active catch of tag. Without one it
// raises UncaughtThrowError.
func (vm *VM) Throw(tag, value Value) error {
	if value == nil {
		value = Nil
	}
	for i := len(vm.catchTags) - 1; i >= 0; i-- {
		if vm.catchTags[i] == tag {
			return &ThrowSignal{Tag: tag, Value: value}
		}
	}
	exc := vm.NewException(vm.UncaughtThrowErrorClass, "uncaught throw "+vm.Inspect(tag))
	exc.tag = tag
	exc.value = value
	return vm.raise(exc)
}

// orphanedSignal turns a signal that escaped to the top level into the
// exception it stands for.
func (vm *VM) orphanedSignal(err error) error {
	var b *BreakSignal
	if errors.As(err, &b) {
		exc := vm.NewException(vm.LocalJumpErrorClass, "unexpected "+b.thrower.kind)
		exc.reason = b.thrower.kind
		exc.value = b.Value
		return vm.raise(exc)
	}
	var t *ThrowSignal
	if errors.As(err, &t) {
		exc := vm.NewException(vm.UncaughtThrowErrorClass, "uncaught throw "+vm.Inspect(t.Tag))
		exc.tag = t.Tag
		exc.value = t.Value
		return vm.raise(exc)
	}
	return err
}
