package vm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"foo", "foo"},
		{"./foo.rb", "foo"},
		{"lib/bar.gunit", "lib/bar"},
		{"lib/../lib/baz.toml", "lib/baz"},
		{`win\style.rb`, "win/style"},
		{"notes.txt", "notes.txt"},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRequireRunsOnce(t *testing.T) {
	vm, _ := newTestVM(t)
	runs := 0
	vm.RegisterUnit("lib/feature.rb", func(*VM) (Deferred, error) {
		runs++
		return nil, nil
	})

	if !vm.HasUnit("./lib/feature") {
		t.Error("HasUnit should normalize its argument")
	}
	if units := vm.Units(); len(units) != 1 || units[0] != "lib/feature" {
		t.Errorf("Units = %v, want [lib/feature]", units)
	}

	ran, err := vm.Require("lib/feature")
	if err != nil || !ran {
		t.Fatalf("first require = %v, %v; want true", ran, err)
	}
	ran, err = vm.Require("./lib/feature.rb")
	if err != nil || ran {
		t.Errorf("second require = %v, %v; want false", ran, err)
	}
	if runs != 1 {
		t.Errorf("unit ran %d times, want 1", runs)
	}

	// load always runs.
	if err := vm.Load("lib/feature"); err != nil {
		t.Fatal(err)
	}
	if runs != 2 {
		t.Errorf("unit ran %d times after load, want 2", runs)
	}
	if f := vm.LoadedFeatures(); len(f) != 1 {
		t.Errorf("LoadedFeatures = %v, want one entry", f)
	}
}

func TestCircularRequireTerminates(t *testing.T) {
	vm, _ := newTestVM(t)
	var order []string
	vm.RegisterUnit("a", func(vm *VM) (Deferred, error) {
		order = append(order, "a")
		_, err := vm.Require("b")
		return nil, err
	})
	vm.RegisterUnit("b", func(vm *VM) (Deferred, error) {
		order = append(order, "b")
		_, err := vm.Require("a")
		return nil, err
	})

	if _, err := vm.Require("a"); err != nil {
		t.Fatal(err)
	}
	if strings.Join(order, ",") != "a,b" {
		t.Errorf("order = %v, want [a b]", order)
	}
}

func TestMissingRequireSeverity(t *testing.T) {
	var out strings.Builder
	cfg := DefaultConfig()
	cfg.Stderr = &out

	vm := NewVM(cfg)
	_, err := vm.Require("nowhere")
	expectError(t, vm, err, vm.LoadErrorClass, "cannot load such file -- nowhere")
	expectError(t, vm, vm.Load("nowhere"), vm.LoadErrorClass, "cannot load such file -- nowhere")

	cfg.MissingRequire = SeverityWarning
	vm = NewVM(cfg)
	if _, err := vm.Require("nowhere"); err != nil {
		t.Errorf("warning severity: %v", err)
	}
	if !strings.Contains(out.String(), "warning: cannot load such file -- nowhere") {
		t.Errorf("output = %q, want a warning", out.String())
	}

	out.Reset()
	cfg.MissingRequire = SeverityIgnore
	vm = NewVM(cfg)
	if _, err := vm.Require("nowhere"); err != nil || out.Len() != 0 {
		t.Errorf("ignore severity: err = %v, output %q", err, out.String())
	}
}

func TestRequireDeferred(t *testing.T) {
	vm, _ := newTestVM(t)
	finished := false
	vm.RegisterUnit("async", func(*VM) (Deferred, error) {
		return DeferredFunc(func(context.Context) error {
			finished = true
			return nil
		}), nil
	})
	if _, err := vm.Require("async"); err != nil {
		t.Fatal(err)
	}
	if !finished {
		t.Error("require should wait for the deferred part")
	}
}

// ---------------------------------------------------------------------------
// Load queue
// ---------------------------------------------------------------------------

func TestLoadQueueOrder(t *testing.T) {
	vm, _ := newTestVM(t)
	q := vm.Queue()
	var events []string

	unit := func(name string) LoadFunc {
		return func(*VM) (Deferred, error) {
			events = append(events, "start "+name)
			return DeferredFunc(func(context.Context) error {
				events = append(events, "finish "+name)
				return nil
			}), nil
		}
	}

	for _, name := range []string{"one", "two", "three"} {
		if err := q.Enqueue(name, unit(name)); err != nil {
			t.Fatal(err)
		}
	}
	// Only the first unit starts before draining.
	if q.Pending() != 2 || strings.Join(events, ",") != "start one" {
		t.Fatalf("pending = %d, events = %v", q.Pending(), events)
	}

	if err := q.Drain(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := "start one,finish one,start two,finish two,start three,finish three"
	if got := strings.Join(events, ","); got != want {
		t.Errorf("events = %s\nwant %s", got, want)
	}
	if f := vm.LoadedFeatures(); len(f) != 3 {
		t.Errorf("LoadedFeatures = %v, want three", f)
	}
}

func TestLoadQueueAbort(t *testing.T) {
	vm, _ := newTestVM(t)
	q := vm.Queue()
	boom := errors.New("unit failed")
	var ran []string

	if err := q.Enqueue("first", func(*VM) (Deferred, error) {
		ran = append(ran, "first")
		return DeferredFunc(func(context.Context) error { return boom }), nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue("second", func(*VM) (Deferred, error) {
		ran = append(ran, "second")
		return nil, nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := q.Drain(context.Background()); err != boom {
		t.Fatalf("Drain = %v, want the unit failure", err)
	}
	if len(ran) != 1 {
		t.Errorf("ran = %v, want only first", ran)
	}
	if q.Err() != boom || q.Pending() != 0 {
		t.Errorf("Err = %v, Pending = %d", q.Err(), q.Pending())
	}

	// The failure is sticky.
	if err := q.Enqueue("third", func(*VM) (Deferred, error) {
		ran = append(ran, "third")
		return nil, nil
	}); err != boom {
		t.Errorf("Enqueue after abort = %v, want the original failure", err)
	}
	if err := q.Drain(context.Background()); err != boom {
		t.Errorf("Drain after abort = %v", err)
	}
	if len(ran) != 1 {
		t.Errorf("ran = %v after abort, want only first", ran)
	}
}

func TestLoadQueueCancelled(t *testing.T) {
	vm, _ := newTestVM(t)
	q := vm.Queue()
	noop := func(*VM) (Deferred, error) { return DeferredFunc(func(context.Context) error { return nil }), nil }
	if err := q.Enqueue("a", noop); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue("b", noop); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Drain(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Drain = %v, want context.Canceled", err)
	}
}
