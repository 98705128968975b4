package vm

import (
	"testing"
)

func TestCollectGarbageSweepsAnonymousClasses(t *testing.T) {
	vm, _ := newTestVM(t)
	base := defClass(t, vm, "Base", nil)
	named := defClass(t, vm, "Named", base)

	anon, err := vm.NewClass(base)
	if err != nil {
		t.Fatal(err)
	}
	if len(vm.Subclasses(base)) != 2 {
		t.Fatalf("Subclasses = %s, want two", moduleNames(vm.Subclasses(base)))
	}
	before := vm.Arena().Len()

	stats := vm.CollectGarbage()
	if stats.Swept < 1 {
		t.Errorf("Swept = %d, want at least 1", stats.Swept)
	}
	if stats.Live != vm.Arena().Len() || stats.Live >= before {
		t.Errorf("Live = %d (arena %d, before %d)", stats.Live, vm.Arena().Len(), before)
	}
	if stats.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
	if !anon.IsDead() {
		t.Error("unreachable anonymous class should be swept")
	}
	if named.IsDead() || base.IsDead() {
		t.Error("named classes should survive")
	}
	if subs := vm.Subclasses(base); len(subs) != 1 || subs[0] != named {
		t.Errorf("Subclasses after gc = %s, want Named", moduleNames(subs))
	}
}

func TestCollectGarbageRoots(t *testing.T) {
	vm, _ := newTestVM(t)

	newAnon := func() *Module {
		t.Helper()
		m, err := vm.NewClass(nil)
		if err != nil {
			t.Fatal(err)
		}
		return m
	}
	pinned := newAnon()
	global := newAnon()
	instance := newAnon()
	ivar := newAnon()

	vm.Pin(pinned)
	vm.Pin(pinned)
	vm.GlobalSet("$kept", global)
	obj := newInstance(t, vm, instance)
	if err := vm.IvarSet(obj, "@klass", ivar); err != nil {
		t.Fatal(err)
	}
	vm.Pin(obj)

	vm.CollectGarbage()
	for name, m := range map[string]*Module{"pinned": pinned, "global": global, "instance": instance, "ivar": ivar} {
		if m.IsDead() {
			t.Errorf("%s class was swept", name)
		}
	}

	// Pins nest.
	vm.Unpin(pinned)
	vm.CollectGarbage()
	if pinned.IsDead() {
		t.Error("class swept while still pinned once")
	}
	vm.Unpin(pinned)
	vm.CollectGarbage()
	if !pinned.IsDead() {
		t.Error("class should be swept after the last unpin")
	}
}

func TestCollectGarbageDropsIncludeProxies(t *testing.T) {
	vm, _ := newTestVM(t)
	mixin := defModule(t, vm, "Mixin")
	anon, err := vm.NewClass(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := vm.Include(anon, mixin); err != nil {
		t.Fatal(err)
	}
	if len(mixin.proxies) != 1 {
		t.Fatalf("len(proxies) = %d, want 1", len(mixin.proxies))
	}

	stats := vm.CollectGarbage()
	if len(mixin.proxies) != 0 {
		t.Errorf("len(proxies) = %d after gc, want 0", len(mixin.proxies))
	}
	if stats.WeakCleared == 0 {
		t.Error("weak references to the swept class should be cleared")
	}
}

func TestModuleArena(t *testing.T) {
	vm, _ := newTestVM(t)
	arena := vm.Arena()
	n := arena.Len()

	m := vm.AllocateModule("")
	if arena.Len() != n+1 {
		t.Errorf("Len = %d, want %d", arena.Len(), n+1)
	}
	if arena.Get(m.arenaID) != m {
		t.Error("Get should return the record at its id")
	}
	if arena.Get(-1) != nil || arena.Get(1<<20) != nil {
		t.Error("Get out of range should return nil")
	}

	seen := 0
	arena.Each(func(*Module) { seen++ })
	if seen != arena.Len() {
		t.Errorf("Each visited %d records, want %d", seen, arena.Len())
	}

	// Swept slots are reused.
	id := m.arenaID
	vm.CollectGarbage()
	if arena.Get(id) != nil {
		t.Fatal("swept slot should be empty")
	}
	reused := vm.AllocateModule("")
	if reused.arenaID != id {
		t.Errorf("arenaID = %d, want reused slot %d", reused.arenaID, id)
	}
}
