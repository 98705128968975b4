package vm

// VTable holds the methods a single module defines itself.
//
// Methods are stored in an array indexed by selector ID. Inheritance is
// not handled here: lookup walks the owner's ancestors and asks each
// table with LookupLocal. Every mutation bumps the VM's method serial so
// per-class lookup caches notice.
type VTable struct {
	methods []*Method
	count   int
	serial  *uint64
}

// NewVTable creates an empty table that bumps serial on mutation.
func NewVTable(serial *uint64) *VTable {
	if serial == nil {
		serial = new(uint64)
	}
	return &VTable{
		methods: make([]*Method, 0, 16),
		serial:  serial,
	}
}

// LookupLocal finds a method by selector ID in this table only.
func (vt *VTable) LookupLocal(selector int) *Method {
	if selector >= 0 && selector < len(vt.methods) {
		return vt.methods[selector]
	}
	return nil
}

// AddMethod adds or replaces the method at selector.
func (vt *VTable) AddMethod(selector int, method *Method) {
	if selector >= len(vt.methods) {
		grown := make([]*Method, selector+1, max(selector+1, 2*len(vt.methods)))
		copy(grown, vt.methods)
		vt.methods = grown
	}
	if vt.methods[selector] == nil {
		vt.count++
	}
	vt.methods[selector] = method
	*vt.serial++
}

// RemoveMethod removes the method at selector and returns it.
func (vt *VTable) RemoveMethod(selector int) *Method {
	m := vt.LookupLocal(selector)
	if m == nil {
		return nil
	}
	vt.methods[selector] = nil
	vt.count--
	*vt.serial++
	return m
}

// HasMethod returns true if this table has an entry (stubs included) for
// selector.
func (vt *VTable) HasMethod(selector int) bool {
	return vt.LookupLocal(selector) != nil
}

// MethodCount returns the number of entries.
func (vt *VTable) MethodCount() int {
	return vt.count
}

// Each calls fn for each entry in selector order.
func (vt *VTable) Each(fn func(selector int, m *Method)) {
	for i, m := range vt.methods {
		if m != nil {
			fn(i, m)
		}
	}
}
