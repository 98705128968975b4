package vm

// SelectorTable interns method names to numeric IDs.
//
// Method tables are arrays indexed by selector ID, so lookup in a single
// table is an index operation rather than a string hash. Selectors are
// interned when a method is defined; lookups of names that were never
// defined anywhere miss without allocating an ID.
//
// The table is append-only and owned by one VM.
type SelectorTable struct {
	byName map[string]int
	byID   []string
}

// NewSelectorTable creates a new empty selector table.
func NewSelectorTable() *SelectorTable {
	return &SelectorTable{
		byName: make(map[string]int),
		byID:   make([]string, 0, 512),
	}
}

// Intern returns the ID for a selector name, creating a new ID if needed.
func (st *SelectorTable) Intern(name string) int {
	if id, ok := st.byName[name]; ok {
		return id
	}
	id := len(st.byID)
	st.byName[name] = id
	st.byID = append(st.byID, name)
	return id
}

// Lookup returns the ID for a selector name, or -1 if not found.
func (st *SelectorTable) Lookup(name string) int {
	if id, ok := st.byName[name]; ok {
		return id
	}
	return -1
}

// Name returns the selector name for an ID, or "" if invalid.
func (st *SelectorTable) Name(id int) string {
	if id < 0 || id >= len(st.byID) {
		return ""
	}
	return st.byID[id]
}

// Len returns the number of interned selectors.
func (st *SelectorTable) Len() int {
	return len(st.byID)
}

// InternAll interns multiple selectors and returns their IDs.
func (st *SelectorTable) InternAll(names ...string) []int {
	ids := make([]int, len(names))
	for i, name := range names {
		ids[i] = st.Intern(name)
	}
	return ids
}
