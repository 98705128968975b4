package vm

import "time"

// ---------------------------------------------------------------------------
// ModuleArena: the table of live module records
// ---------------------------------------------------------------------------

// ModuleArena owns every module record a VM allocates. Reflection that
// enumerates modules (subclass lists, include-proxy owners) filters
// against the arena, and CollectGarbage sweeps unreachable records.
type ModuleArena struct {
	records []*Module
	free    []int
	live    int
}

func (a *ModuleArena) add(m *Module) {
	if n := len(a.free); n > 0 {
		m.arenaID = a.free[n-1]
		a.free = a.free[:n-1]
		a.records[m.arenaID] = m
	} else {
		m.arenaID = len(a.records)
		a.records = append(a.records, m)
	}
	a.live++
}

func (a *ModuleArena) remove(m *Module) {
	if m.arenaID < 0 || m.arenaID >= len(a.records) || a.records[m.arenaID] != m {
		return
	}
	a.records[m.arenaID] = nil
	a.free = append(a.free, m.arenaID)
	m.arenaID = -1
	m.dead = true
	a.live--
}

// Get returns the record at id, or nil.
func (a *ModuleArena) Get(id int) *Module {
	if id < 0 || id >= len(a.records) {
		return nil
	}
	return a.records[id]
}

// Len returns the number of live records.
func (a *ModuleArena) Len() int { return a.live }

// Each calls fn for every live record.
func (a *ModuleArena) Each(fn func(*Module)) {
	for _, m := range a.records {
		if m != nil {
			fn(m)
		}
	}
}

// ---------------------------------------------------------------------------
// Collection
// ---------------------------------------------------------------------------

// GCStats describes one collection.
type GCStats struct {
	Live          int
	Swept         int
	WeakCleared   int
	SweepDuration time.Duration
	Timestamp     time.Time
}

// Pin keeps v (and everything reachable from it) alive across
// collections. Pins nest.
func (vm *VM) Pin(v Value) {
	vm.pinned[v]++
}

// Unpin releases one Pin.
func (vm *VM) Unpin(v Value) {
	if n := vm.pinned[v]; n > 1 {
		vm.pinned[v] = n - 1
	} else {
		delete(vm.pinned, v)
	}
}

// CollectGarbage marks modules reachable from the root namespace, globals,
// pinned values and active frames, then sweeps the rest from the arena.
// Weak references to swept modules are cleared.
func (vm *VM) CollectGarbage() GCStats {
	start := time.Now()
	marked := make(map[*Module]struct{})
	visited := make(map[Value]struct{})

	var mark func(v Value)
	markModule := func(m *Module) {
		if m != nil {
			mark(m)
		}
	}
	mark = func(v Value) {
		h, ok := v.(HeapValue)
		if !ok {
			return
		}
		if _, seen := visited[v]; seen {
			return
		}
		visited[v] = struct{}{}
		hd := h.hdr()
		markModule(hd.class)
		markModule(hd.meta)
		for _, iv := range hd.ivars {
			mark(iv.value)
		}
		switch x := v.(type) {
		case *Module:
			marked[x] = struct{}{}
			markModule(x.superclass)
			markModule(x.refinedClass)
			if x.singletonOf != nil {
				mark(x.singletonOf)
			}
			for _, c := range x.consts {
				mark(c)
			}
			for _, c := range x.cvars {
				mark(c)
			}
			for _, p := range x.prepends {
				markModule(p.Module)
			}
			for _, p := range x.chain {
				markModule(p.Module)
			}
			for _, r := range x.refinementOrder {
				markModule(r)
				markModule(x.refinements[r])
			}
		case *Array:
			for _, e := range x.elems {
				mark(e)
			}
		case *Proc:
			mark(x.self)
			if x.home != nil {
				markModule(x.home.Owner)
			}
		case *Exception:
			mark(x.name)
			mark(x.receiver)
			mark(x.tag)
			mark(x.value)
			if cause, ok := x.cause.(*Exception); ok {
				mark(cause)
			}
		case *MethodObject:
			mark(x.recv)
			markModule(x.origin)
			if x.method != nil {
				markModule(x.method.Owner)
			}
		}
	}

	mark(vm.ObjectClass)
	mark(vm.Main)
	for _, g := range vm.globals {
		mark(g)
	}
	for v := range vm.pinned {
		mark(v)
	}
	for _, f := range vm.frames {
		mark(f.Self)
	}
	for _, e := range vm.excStack {
		mark(e)
	}
	if vm.currentExc != nil {
		mark(vm.currentExc)
	}
	for _, t := range vm.catchTags {
		mark(t)
	}
	for _, p := range vm.exitHandlers {
		mark(p)
	}
	for _, klass := range vm.bridges {
		markModule(klass)
	}

	var swept []*Module
	vm.arena.Each(func(m *Module) {
		if _, ok := marked[m]; !ok {
			swept = append(swept, m)
		}
	})
	for _, m := range swept {
		vm.arena.remove(m)
		for _, p := range m.chain {
			p.Module.dropProxy(p)
		}
		for _, p := range m.prepends {
			p.Module.dropProxy(p)
		}
	}
	cleared := vm.weakRefs.ProcessGC(marked)
	if len(swept) > 0 {
		vm.bump()
	}

	stats := GCStats{
		Live:          vm.arena.Len(),
		Swept:         len(swept),
		WeakCleared:   cleared,
		SweepDuration: time.Since(start),
		Timestamp:     start,
	}
	vm.log.Debugf("vm %s gc: %d live, %d swept, %d weak refs cleared", vm.ID, stats.Live, stats.Swept, stats.WeakCleared)
	return stats
}
