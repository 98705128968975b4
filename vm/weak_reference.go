package vm

// ---------------------------------------------------------------------------
// WeakReference: a module reference that does not keep its target alive
// ---------------------------------------------------------------------------

// WeakReference points at a module without marking it during collection.
// When the arena sweeps the target, the reference is cleared. Subclass
// lists and include-proxy back pointers use weak references so that a
// superclass or an included module never keeps its users alive.
type WeakReference struct {
	id        uint32
	target    *Module
	finalizer func(*Module)
}

// ID returns the unique identifier for this weak reference.
func (wr *WeakReference) ID() uint32 {
	return wr.id
}

// Get returns the target, or nil once it has been collected.
func (wr *WeakReference) Get() *Module {
	if wr == nil {
		return nil
	}
	return wr.target
}

// IsAlive returns true if the target has not been collected.
func (wr *WeakReference) IsAlive() bool {
	return wr.Get() != nil
}

// Clear drops the target and returns it.
func (wr *WeakReference) Clear() *Module {
	old := wr.target
	wr.target = nil
	return old
}

// SetFinalizer sets a callback run after the target is swept.
func (wr *WeakReference) SetFinalizer(fn func(*Module)) {
	wr.finalizer = fn
}

// ---------------------------------------------------------------------------
// WeakRegistry: tracks every weak reference handed out by a VM
// ---------------------------------------------------------------------------

// WeakRegistry owns the weak references of one VM.
type WeakRegistry struct {
	refs   map[uint32]*WeakReference
	nextID uint32
}

// NewWeakRegistry creates an empty registry.
func NewWeakRegistry() *WeakRegistry {
	return &WeakRegistry{refs: make(map[uint32]*WeakReference)}
}

// New creates and registers a weak reference to target.
func (r *WeakRegistry) New(target *Module) *WeakReference {
	r.nextID++
	wr := &WeakReference{id: r.nextID, target: target}
	r.refs[wr.id] = wr
	return wr
}

// Unregister forgets wr.
func (r *WeakRegistry) Unregister(wr *WeakReference) {
	delete(r.refs, wr.id)
}

// Lookup finds a weak reference by ID.
func (r *WeakRegistry) Lookup(id uint32) *WeakReference {
	return r.refs[id]
}

// ProcessGC clears references whose targets were not marked and runs
// their finalizers. Cleared references are unregistered. Returns the
// number cleared.
func (r *WeakRegistry) ProcessGC(marked map[*Module]struct{}) int {
	var cleared []*WeakReference
	for id, wr := range r.refs {
		if wr.target == nil {
			delete(r.refs, id)
			continue
		}
		if _, ok := marked[wr.target]; !ok {
			cleared = append(cleared, wr)
		}
	}
	for _, wr := range cleared {
		target := wr.Clear()
		delete(r.refs, wr.id)
		if wr.finalizer != nil {
			wr.finalizer(target)
		}
	}
	return len(cleared)
}

// Count returns the number of registered weak references.
func (r *WeakRegistry) Count() int {
	return len(r.refs)
}
