package vm

// Inline caching for call sites.
//
// Most sends see one receiver class, some see a handful, a few see many.
// A CallSite remembers the (class, method) pairs it has resolved and
// skips the ancestor walk while the VM's epoch and method serial are
// unchanged. Any change to a method table or ancestor chain empties every
// cache lazily.

// CacheState represents the current state of an inline cache.
type CacheState uint8

const (
	CacheEmpty       CacheState = iota // No cached lookup yet
	CacheMonomorphic                   // Single (class, method) cached
	CachePolymorphic                   // 2-6 entries
	CacheMegamorphic                   // Too many classes, use full lookup
)

func (s CacheState) String() string {
	switch s {
	case CacheEmpty:
		return "empty"
	case CacheMonomorphic:
		return "monomorphic"
	case CachePolymorphic:
		return "polymorphic"
	case CacheMegamorphic:
		return "megamorphic"
	}
	return "unknown"
}

// MaxPICEntries is the maximum number of entries in a polymorphic cache.
const MaxPICEntries = 6

// InlineCacheEntry holds a single cached method lookup result.
type InlineCacheEntry struct {
	Class  *Module
	Method *Method
}

// InlineCache is the cache state for one call site.
type InlineCache struct {
	State   CacheState
	Entries [MaxPICEntries]InlineCacheEntry
	Count   int

	epoch  uint64
	serial uint64

	Hits   uint64
	Misses uint64
}

// Lookup checks the cache for class. Returns nil on miss.
func (ic *InlineCache) Lookup(class *Module) *Method {
	switch ic.State {
	case CacheMonomorphic, CachePolymorphic:
		for i := 0; i < ic.Count; i++ {
			if ic.Entries[i].Class == class {
				ic.Hits++
				return ic.Entries[i].Method
			}
		}
	}
	ic.Misses++
	return nil
}

// Update records a (class, method) pair, upgrading the state as needed.
func (ic *InlineCache) Update(class *Module, method *Method) {
	if method == nil {
		return
	}
	switch ic.State {
	case CacheEmpty:
		ic.State = CacheMonomorphic
		ic.Entries[0] = InlineCacheEntry{Class: class, Method: method}
		ic.Count = 1

	case CacheMonomorphic, CachePolymorphic:
		for i := 0; i < ic.Count; i++ {
			if ic.Entries[i].Class == class {
				ic.Entries[i].Method = method
				return
			}
		}
		if ic.Count < MaxPICEntries {
			ic.Entries[ic.Count] = InlineCacheEntry{Class: class, Method: method}
			ic.Count++
			ic.State = CachePolymorphic
			return
		}
		ic.State = CacheMegamorphic
		ic.Entries = [MaxPICEntries]InlineCacheEntry{}
		ic.Count = 0

	case CacheMegamorphic:
	}
}

// HitRate returns the cache hit rate as a percentage (0-100).
func (ic *InlineCache) HitRate() float64 {
	total := ic.Hits + ic.Misses
	if total == 0 {
		return 0
	}
	return float64(ic.Hits) * 100 / float64(total)
}

// Reset clears the cache back to empty state, keeping statistics.
func (ic *InlineCache) Reset() {
	ic.State = CacheEmpty
	ic.Count = 0
	ic.Entries = [MaxPICEntries]InlineCacheEntry{}
}

// CallSite is a reusable send of one method name with its own inline
// cache. Compiled units keep one per send expression.
type CallSite struct {
	Name  string
	Cache InlineCache

	sel int
}

// NewCallSite creates a call site for name.
func NewCallSite(name string) *CallSite {
	return &CallSite{Name: name, sel: -1}
}

// Send dispatches through the site's cache.
func (cs *CallSite) Send(vm *VM, recv Value, blk *Proc, args ...Value) (Value, error) {
	if recv == nil {
		recv = Nil
	}
	m := cs.resolve(vm, vm.dispatchClass(recv))
	if m == nil || m.Stub {
		return vm.methodMissing(recv, cs.Name, args, blk)
	}
	return vm.invoke(m, recv, cs.Name, args, blk)
}

func (cs *CallSite) resolve(vm *VM, cls *Module) *Method {
	ic := &cs.Cache
	if ic.epoch != vm.epoch || ic.serial != vm.methodSerial {
		ic.Reset()
		ic.epoch, ic.serial = vm.epoch, vm.methodSerial
	}
	if m := ic.Lookup(cls); m != nil {
		return m
	}
	if cs.sel < 0 {
		cs.sel = vm.Selectors.Lookup(cs.Name)
		if cs.sel < 0 {
			return nil
		}
	}
	m := vm.findMethodBySelector(cls, cs.sel)
	ic.Update(cls, m)
	return m
}
