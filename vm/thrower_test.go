package vm

import (
	"testing"
)

func TestWithThrower(t *testing.T) {
	vm, _ := newTestVM(t)

	v, err := vm.WithThrower("break", func(th *Thrower) (Value, error) {
		return nil, th.Throw(Int(5))
	})
	if err != nil || v != Int(5) {
		t.Errorf("WithThrower = %v, %v; want 5", v, err)
	}

	// Normal completion passes the result through.
	v, err = vm.WithThrower("break", func(*Thrower) (Value, error) { return Int(1), nil })
	if err != nil || v != Int(1) {
		t.Errorf("WithThrower = %v, %v; want 1", v, err)
	}
}

func TestThrowerOnlyCatchesItsOwnToken(t *testing.T) {
	vm, _ := newTestVM(t)

	v, err := vm.WithThrower("break", func(outer *Thrower) (Value, error) {
		inner, err := vm.WithThrower("next", func(*Thrower) (Value, error) {
			return nil, outer.Throw(Int(9))
		})
		if err == nil {
			t.Error("inner thrower swallowed the outer signal")
		}
		return inner, err
	})
	if err != nil || v != Int(9) {
		t.Errorf("outer WithThrower = %v, %v; want 9", v, err)
	}

	boom := vm.Errorf(vm.RuntimeErrorClass, "boom")
	if _, err := vm.WithThrower("break", func(*Thrower) (Value, error) { return nil, boom }); err != boom {
		t.Errorf("exception err = %v, want it to pass through", err)
	}
}

func TestOrphanedThrower(t *testing.T) {
	vm, _ := newTestVM(t)
	var saved *Thrower
	if _, err := vm.WithThrower("break", func(th *Thrower) (Value, error) {
		saved = th
		return Nil, nil
	}); err != nil {
		t.Fatal(err)
	}

	err := saved.Throw(Int(1))
	expectError(t, vm, err, vm.LocalJumpErrorClass, "unexpected break")
	if IsSignal(err) {
		t.Error("an orphaned throw should raise, not signal")
	}
	if saved.Kind() != "break" {
		t.Errorf("Kind = %q, want break", saved.Kind())
	}
}

func TestSignalsAreNotRescued(t *testing.T) {
	vm, _ := newTestVM(t)
	sig := vm.NewThrower("return").Throw(Int(1))
	if !IsSignal(sig) {
		t.Fatalf("Throw = %v, want a signal", sig)
	}

	if vm.AsException(sig) != nil {
		t.Error("a signal should not convert to an exception")
	}
	m, err := vm.RescueMatch(sig, vm.ExceptionClass, vm.HostErrorClass)
	if m != nil || err != nil {
		t.Errorf("RescueMatch(signal) = %v, %v; want no match", m, err)
	}
	if _, err := vm.Rescue(sig, []Value{vm.ExceptionClass}, func(*Exception) (Value, error) {
		t.Error("handler ran for a signal")
		return Nil, nil
	}); err != sig {
		t.Errorf("Rescue err = %v, want the signal unchanged", err)
	}

	// At the top level an escaped signal reports as LocalJumpError.
	if got := vm.FormatUncaught(sig); got != "<main>: unexpected return (LocalJumpError)" {
		t.Errorf("FormatUncaught = %q", got)
	}
}

func TestCatchThrow(t *testing.T) {
	vm, _ := newTestVM(t)

	v, err := vm.Catch(Symbol("done"), func(tag Value) (Value, error) {
		return nil, vm.Throw(Symbol("done"), Int(7))
	})
	if err != nil || v != Int(7) {
		t.Errorf("catch(:done) = %v, %v; want 7", v, err)
	}

	// An inner catch lets other tags through to the outer one.
	v, err = vm.Catch(Symbol("outer"), func(Value) (Value, error) {
		return vm.Catch(Symbol("inner"), func(Value) (Value, error) {
			return nil, vm.Throw(Symbol("outer"), vm.Str("escaped"))
		})
	})
	if err != nil || goString(v) != "escaped" {
		t.Errorf("nested catch = %v, %v; want escaped", v, err)
	}

	// A nil tag gets a fresh object.
	v, err = vm.Catch(nil, func(tag Value) (Value, error) {
		return nil, vm.Throw(tag, nil)
	})
	if err != nil || v != Nil {
		t.Errorf("catch with fresh tag = %v, %v; want nil", v, err)
	}
}

func TestUncaughtThrow(t *testing.T) {
	vm, _ := newTestVM(t)
	err := vm.Throw(Symbol("nowhere"), Int(1))
	expectError(t, vm, err, vm.UncaughtThrowErrorClass, "uncaught throw :nowhere")
	if !vm.IsA(vm.AsException(err), vm.ArgumentErrorClass) {
		t.Error("UncaughtThrowError should be an ArgumentError")
	}

	// The tag is no longer active once its catch returns.
	if _, err := vm.Catch(Symbol("once"), func(Value) (Value, error) { return Nil, nil }); err != nil {
		t.Fatal(err)
	}
	err = vm.Throw(Symbol("once"), Nil)
	expectError(t, vm, err, vm.UncaughtThrowErrorClass, "uncaught throw :once")
}
