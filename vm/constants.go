package vm

import "sort"

// ---------------------------------------------------------------------------
// Constant tables
// ---------------------------------------------------------------------------

type constCacheEntry struct {
	epoch uint64
	value Value
}

// Autoload records a constant whose value comes from requiring a path on
// first reference.
type Autoload struct {
	Path      string
	loaded    bool
	required  bool
	success   bool
	exception error
}

// Nesting is the lexical module nesting a relative constant reference is
// resolved against, innermost first. A Nesting owns the lookup cache for
// the references made through it, so callers should keep one per lexical
// site.
type Nesting struct {
	scopes []*Module
	cache  map[string]constCacheEntry
}

// NewNesting builds a nesting, innermost module first.
func NewNesting(scopes ...*Module) *Nesting {
	return &Nesting{scopes: scopes}
}

// Push returns a nesting with m as the new innermost scope.
func (n *Nesting) Push(m *Module) *Nesting {
	scopes := make([]*Module, 0, len(n.scopes)+1)
	scopes = append(scopes, m)
	scopes = append(scopes, n.scopes...)
	return &Nesting{scopes: scopes}
}

// Cref returns the innermost scope, or nil at top level.
func (n *Nesting) Cref() *Module {
	if n == nil || len(n.scopes) == 0 {
		return nil
	}
	return n.scopes[0]
}

// Scopes returns the nesting, innermost first.
func (n *Nesting) Scopes() []*Module {
	if n == nil {
		return nil
	}
	return n.scopes
}

// ConstSet binds name in scope (Object when scope is nil). An anonymous
// module assigned to a constant takes the constant's name.
func (vm *VM) ConstSet(scope *Module, name string, value Value) (Value, error) {
	if scope == nil {
		scope = vm.ObjectClass
	}
	if err := vm.CheckFrozen(scope); err != nil {
		return nil, err
	}
	if m, ok := value.(*Module); ok && m.name == "" && !m.IsSingleton() && m.refinedClass == nil {
		m.name = name
		if !scope.root {
			m.base = scope
		}
	}

	_, existed := scope.consts[name]
	_, pending := scope.autoloads[name]
	isNew := !existed && !pending
	if isNew {
		scope.constOrder = append(scope.constOrder, name)
	}
	scope.consts[name] = value
	if pending {
		delete(scope.autoloads, name)
	}
	vm.bump()

	if isNew {
		if err := vm.callHook(scope, "const_added", Symbol(name)); err != nil {
			return nil, err
		}
	}
	return value, nil
}

// ConstGetLocal looks name up in scope's own table only, falling back to
// const_missing unless skipMissing is set. A missing constant with
// skipMissing returns a Go nil.
func (vm *VM) ConstGetLocal(scope Value, name string, skipMissing bool) (Value, error) {
	m, err := vm.constScope(scope)
	if err != nil {
		return nil, err
	}
	v, err := vm.ownConst(m, name)
	if err != nil || v != nil {
		return v, err
	}
	if skipMissing {
		return nil, nil
	}
	return vm.constMissing(m, name)
}

// ConstGetQualified resolves scope::name: scope's own table, then its
// ancestors. Results are cached per scope until the next epoch bump.
func (vm *VM) ConstGetQualified(scope Value, name string, skipMissing bool) (Value, error) {
	m, err := vm.constScope(scope)
	if err != nil {
		return nil, err
	}
	if m.constCache == nil {
		m.constCache = make(map[string]constCacheEntry)
	}
	if e, ok := m.constCache[name]; ok && e.epoch == vm.epoch && e.value != nil {
		return e.value, nil
	}

	v, err := vm.ownConst(m, name)
	if err != nil {
		return nil, err
	}
	if v == nil {
		v, err = vm.constFromAncestors(m, name)
		if err != nil {
			return nil, err
		}
	}
	if v != nil {
		m.constCache[name] = constCacheEntry{epoch: vm.epoch, value: v}
		return v, nil
	}
	if skipMissing {
		return nil, nil
	}
	return vm.constMissing(m, name)
}

// ConstGetRelative resolves a bare constant reference made inside nesting:
// the cref's own table, then each enclosing scope's own table, then the
// cref's ancestors, then Object's ancestors when the cref is a module.
func (vm *VM) ConstGetRelative(nesting *Nesting, name string, skipMissing bool) (Value, error) {
	if nesting == nil {
		nesting = &Nesting{}
	}
	if nesting.cache == nil {
		nesting.cache = make(map[string]constCacheEntry)
	}
	if e, ok := nesting.cache[name]; ok && e.epoch == vm.epoch && e.value != nil {
		return e.value, nil
	}

	cref := nesting.Cref()
	lookup := func() (Value, error) {
		if cref != nil {
			if v, err := vm.ownConst(cref, name); err != nil || v != nil {
				return v, err
			}
		}
		for _, scope := range nesting.scopes {
			if v, err := vm.ownConst(scope, name); err != nil || v != nil {
				return v, err
			}
		}
		if cref != nil {
			if v, err := vm.constFromAncestors(cref, name); err != nil || v != nil {
				return v, err
			}
		}
		if cref == nil || cref.kind == kindModule {
			return vm.constFromAncestors(vm.ObjectClass, name)
		}
		return nil, nil
	}

	v, err := lookup()
	if err != nil {
		return nil, err
	}
	if v != nil {
		nesting.cache[name] = constCacheEntry{epoch: vm.epoch, value: v}
		return v, nil
	}
	if skipMissing {
		return nil, nil
	}
	missingScope := cref
	if missingScope == nil {
		missingScope = vm.ObjectClass
	}
	return vm.constMissing(missingScope, name)
}

// ConstGetPath resolves "A::B::C" relative to nesting for the first
// segment and qualified for the rest. A leading "::" starts at Object.
func (vm *VM) ConstGetPath(nesting *Nesting, path string) (Value, error) {
	parts := splitConstPath(path)
	if len(parts) == 0 {
		return nil, vm.Errorf(vm.NameErrorClass, "wrong constant name %s", path)
	}
	var cur Value
	var err error
	if parts[0] == "" {
		cur = vm.ObjectClass
		parts = parts[1:]
	} else {
		cur, err = vm.ConstGetRelative(nesting, parts[0], false)
		if err != nil {
			return nil, err
		}
		parts = parts[1:]
	}
	for _, p := range parts {
		cur, err = vm.ConstGetQualified(cur, p, false)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func splitConstPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i+1 < len(path); i++ {
		if path[i] == ':' && path[i+1] == ':' {
			parts = append(parts, path[start:i])
			start = i + 2
			i++
		}
	}
	return append(parts, path[start:])
}

// constFromAncestors searches the own tables (and autoloads) of each
// ancestor of m, excluding m itself.
func (vm *VM) constFromAncestors(m *Module, name string) (Value, error) {
	for _, anc := range vm.Ancestors(m) {
		if anc == m && m != vm.ObjectClass {
			continue
		}
		if v, err := vm.ownConst(anc, name); err != nil || v != nil {
			return v, err
		}
	}
	return nil, nil
}

// constScope validates the receiver of a qualified lookup.
func (vm *VM) constScope(scope Value) (*Module, error) {
	switch s := scope.(type) {
	case nil, nilValue:
		return vm.ObjectClass, nil
	case *Module:
		return s, nil
	}
	return nil, vm.Errorf(vm.TypeErrorClass, "%s is not a class/module", vm.Inspect(scope))
}

func (vm *VM) constMissing(scope *Module, name string) (Value, error) {
	m := vm.FindMethod(vm.dispatchClass(scope), "const_missing")
	if m != nil && !m.Stub && !m.Pristine {
		return vm.invoke(m, scope, "const_missing", []Value{Symbol(name)}, nil)
	}
	return nil, vm.uninitializedConstant(scope, name)
}

func (vm *VM) uninitializedConstant(scope *Module, name string) error {
	full := name
	if scope != nil && !scope.root {
		full = vm.Inspect(scope) + "::" + name
	}
	exc := vm.NewException(vm.NameErrorClass, "uninitialized constant "+full)
	exc.name = Symbol(name)
	exc.receiver = scope
	return vm.raise(exc)
}

// ConstDefined reports whether name resolves from scope, optionally
// through its ancestors. Autoloads count as defined without being loaded.
func (vm *VM) ConstDefined(scope *Module, name string, inherit bool) bool {
	check := func(m *Module) bool {
		if _, ok := m.consts[name]; ok {
			return true
		}
		_, ok := m.autoloads[name]
		return ok
	}
	if !inherit {
		return check(scope)
	}
	for _, anc := range vm.Ancestors(scope) {
		if check(anc) {
			return true
		}
	}
	if scope.kind == kindModule {
		return check(vm.ObjectClass)
	}
	return false
}

// ConstRemove deletes name from scope's own table. Removing a pending
// autoload returns Nil.
func (vm *VM) ConstRemove(scope *Module, name string) (Value, error) {
	if err := vm.CheckFrozen(scope); err != nil {
		return nil, err
	}
	vm.bump()
	if v, ok := scope.consts[name]; ok {
		delete(scope.consts, name)
		scope.constOrder = removeString(scope.constOrder, name)
		return v, nil
	}
	if _, ok := scope.autoloads[name]; ok {
		delete(scope.autoloads, name)
		scope.constOrder = removeString(scope.constOrder, name)
		return Nil, nil
	}
	exc := vm.NewException(vm.NameErrorClass, "constant "+vm.constPrefix(scope)+name+" not defined")
	exc.name = Symbol(name)
	exc.receiver = scope
	return nil, vm.raise(exc)
}

func (vm *VM) constPrefix(scope *Module) string {
	if scope.root {
		return "Object::"
	}
	return vm.Inspect(scope) + "::"
}

// Constants lists constant names visible from scope in definition order.
// With inherit, ancestors other than Object contribute too.
func (vm *VM) Constants(scope *Module, inherit bool) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(m *Module) {
		for _, n := range m.constOrder {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	if !inherit {
		add(scope)
		return names
	}
	for _, anc := range vm.Ancestors(scope) {
		if anc == vm.ObjectClass && scope != vm.ObjectClass {
			break
		}
		add(anc)
	}
	return names
}

// ---------------------------------------------------------------------------
// Autoload
// ---------------------------------------------------------------------------

// Autoload registers path as the source of scope::name.
func (vm *VM) Autoload(scope *Module, name, path string) error {
	if scope == nil {
		scope = vm.ObjectClass
	}
	if !validConstName(name) {
		return vm.Errorf(vm.NameErrorClass, "autoload must be constant name: %s", name)
	}
	if path == "" {
		return vm.Errorf(vm.ArgumentErrorClass, "empty file name")
	}
	if _, ok := scope.consts[name]; ok {
		return nil
	}
	if scope.autoloads == nil {
		scope.autoloads = make(map[string]*Autoload)
	}
	if _, ok := scope.autoloads[name]; !ok {
		scope.constOrder = append(scope.constOrder, name)
	}
	scope.autoloads[name] = &Autoload{Path: path}
	vm.bump()
	return nil
}

// AutoloadPath returns the pending autoload path for name, or "".
func (vm *VM) AutoloadPath(scope *Module, name string) string {
	if a := scope.autoloads[name]; a != nil && !a.required {
		return a.Path
	}
	return ""
}

// handleAutoload requires the registered path the first time name is
// referenced and returns the constant's value afterwards. A failed load is
// replayed on later references.
func (vm *VM) handleAutoload(scope *Module, name string) (Value, error) {
	a := scope.autoloads[name]
	if !a.loaded {
		a.loaded = true
		if _, err := vm.Require(a.Path); err != nil {
			a.exception = err
			return nil, err
		}
		a.required = true
		if v, ok := scope.consts[name]; ok {
			a.success = true
			return v, nil
		}
		return nil, nil
	}
	if !a.required && a.exception != nil {
		return nil, a.exception
	}
	return nil, nil
}

func removeString(list []string, s string) []string {
	for i, x := range list {
		if x == s {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
