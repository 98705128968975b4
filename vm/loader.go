package vm

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Units, require and load
// ---------------------------------------------------------------------------

// Deferred is the pending part of a unit whose body finishes later.
type Deferred interface {
	Wait(ctx context.Context) error
}

// DeferredFunc adapts a function to Deferred.
type DeferredFunc func(ctx context.Context) error

// Wait calls f.
func (f DeferredFunc) Wait(ctx context.Context) error { return f(ctx) }

// LoadFunc is the body of a registered unit. It may return a Deferred for
// work that completes asynchronously.
type LoadFunc func(vm *VM) (Deferred, error)

// NormalizePath maps a require argument to a unit key: cleaned, without a
// leading "./" and without a known extension.
func NormalizePath(p string) string {
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimPrefix(p, "./")
	for _, ext := range []string{".rb", ".gunit", ".toml"} {
		if strings.HasSuffix(p, ext) {
			p = strings.TrimSuffix(p, ext)
			break
		}
	}
	return p
}

// RegisterUnit makes fn available to require and load under path.
func (vm *VM) RegisterUnit(p string, fn LoadFunc) {
	vm.units[NormalizePath(p)] = fn
}

// HasUnit reports whether a unit is registered under path.
func (vm *VM) HasUnit(p string) bool {
	_, ok := vm.units[NormalizePath(p)]
	return ok
}

// Units returns the registered unit keys in sorted order.
func (vm *VM) Units() []string {
	return sortedKeys(vm.units)
}

// Require runs the unit registered under path unless it already ran. It
// returns true when the unit was run now. The unit is marked loaded before
// it runs, so circular requires terminate.
func (vm *VM) Require(p string) (bool, error) {
	key := NormalizePath(p)
	if vm.loaded[key] {
		return false, nil
	}
	fn, ok := vm.units[key]
	if !ok {
		return false, vm.missingUnit(p)
	}
	vm.loaded[key] = true
	vm.features = append(vm.features, key)
	vm.log.Debugf("require %s", key)
	return true, vm.runUnit(context.Background(), fn)
}

// Load runs the unit registered under path even if it ran before.
func (vm *VM) Load(p string) error {
	key := NormalizePath(p)
	fn, ok := vm.units[key]
	if !ok {
		return vm.missingUnit(p)
	}
	if !vm.loaded[key] {
		vm.loaded[key] = true
		vm.features = append(vm.features, key)
	}
	vm.log.Debugf("load %s", key)
	return vm.runUnit(context.Background(), fn)
}

// LoadedFeatures lists the units required so far, in order.
func (vm *VM) LoadedFeatures() []string {
	return append([]string(nil), vm.features...)
}

func (vm *VM) runUnit(ctx context.Context, fn LoadFunc) error {
	d, err := fn(vm)
	if err != nil {
		return err
	}
	if d != nil {
		return d.Wait(ctx)
	}
	return nil
}

func (vm *VM) missingUnit(p string) error {
	msg := "cannot load such file -- " + p
	switch vm.cfg.MissingRequire {
	case SeverityError:
		exc := vm.NewException(vm.LoadErrorClass, msg)
		exc.value = vm.Str(p)
		return vm.raise(exc)
	case SeverityWarning:
		vm.warnOnce("require:"+p, msg)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Load queue
// ---------------------------------------------------------------------------

type queuedUnit struct {
	id   uuid.UUID
	path string
	fn   LoadFunc
}

// LoadQueue runs units in order, waiting for each unit's deferred part
// before starting the next. After a failure every later unit is skipped.
type LoadQueue struct {
	vm       *VM
	pending  []queuedUnit
	inflight Deferred
	failed   error
}

// Queue returns the VM's load queue.
func (vm *VM) Queue() *LoadQueue { return vm.queue }

// Enqueue schedules the unit at path. With nothing in flight it runs at
// once; otherwise it waits for Drain.
func (q *LoadQueue) Enqueue(p string, fn LoadFunc) error {
	item := queuedUnit{id: uuid.New(), path: NormalizePath(p), fn: fn}
	if q.failed != nil {
		q.vm.log.Warningf("skipping %s (%s): load queue aborted", item.path, item.id)
		return q.failed
	}
	if q.inflight != nil || len(q.pending) > 0 {
		q.pending = append(q.pending, item)
		return nil
	}
	return q.start(item)
}

func (q *LoadQueue) start(item queuedUnit) error {
	q.vm.log.Debugf("running %s (%s)", item.path, item.id)
	q.vm.loaded[item.path] = true
	q.vm.features = append(q.vm.features, item.path)
	d, err := item.fn(q.vm)
	if err != nil {
		q.abort(err)
		return err
	}
	q.inflight = d
	return nil
}

func (q *LoadQueue) abort(err error) {
	q.failed = err
	for _, item := range q.pending {
		q.vm.log.Warningf("skipping %s (%s): earlier unit failed", item.path, item.id)
	}
	q.pending = nil
	q.inflight = nil
}

// Drain waits for the unit in flight and runs everything pending. It
// returns the first failure, which stays sticky for later calls.
func (q *LoadQueue) Drain(ctx context.Context) error {
	for {
		if q.failed != nil {
			return q.failed
		}
		if q.inflight != nil {
			d := q.inflight
			q.inflight = nil
			if err := d.Wait(ctx); err != nil {
				q.abort(err)
				return err
			}
		}
		if len(q.pending) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			q.abort(err)
			return err
		}
		next := q.pending[0]
		q.pending = q.pending[1:]
		if err := q.start(next); err != nil {
			return err
		}
	}
}

// Pending returns the number of queued units not yet started.
func (q *LoadQueue) Pending() int { return len(q.pending) }

// Err returns the failure that aborted the queue, if any.
func (q *LoadQueue) Err() error { return q.failed }
