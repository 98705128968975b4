package vm

// ---------------------------------------------------------------------------
// Include proxies and the ancestor chain
// ---------------------------------------------------------------------------

// IncludeProxy is one entry in a module's include or prepend chain. It
// stands for Module inside the includer's method resolution order. The
// first proxy created by a single include or prepend is the root; the rest
// carry the included module's own ancestors.
type IncludeProxy struct {
	Module    *Module
	Root      bool
	Prepended bool

	// source is the module whose include created this proxy.
	source   *Module
	includer *WeakReference
}

// Includer returns the module whose chain holds p, or nil once it has been
// collected.
func (p *IncludeProxy) Includer() *Module {
	return p.includer.Get()
}

// Source returns the module passed to the include or prepend that created
// p.
func (p *IncludeProxy) Source() *Module { return p.source }

func (m *Module) dropProxy(p *IncludeProxy) {
	for i, q := range m.proxies {
		if q == p {
			m.proxies = append(m.proxies[:i], m.proxies[i+1:]...)
			return
		}
	}
}

// bump invalidates every ancestor, method and constant cache.
func (vm *VM) bump() {
	vm.epoch++
}

// Epoch returns the current cache version.
func (vm *VM) Epoch() uint64 { return vm.epoch }

// Ancestors returns m's method resolution order: prepended modules, m,
// included modules, then the ancestors of the superclass. The slice is
// memoized until the next epoch bump and must not be modified.
func (vm *VM) Ancestors(m *Module) []*Module {
	if m.ancestorsEpoch == vm.epoch && m.ancestors != nil {
		return m.ancestors
	}
	result := make([]*Module, 0, len(m.prepends)+len(m.chain)+8)
	for _, p := range m.prepends {
		result = append(result, p.Module)
	}
	result = append(result, m)
	for _, p := range m.chain {
		result = append(result, p.Module)
	}
	if m.superclass != nil {
		result = append(result, vm.Ancestors(m.superclass)...)
	}
	m.ancestors = result
	m.ancestorsEpoch = vm.epoch
	return result
}

// IncludeChain returns the proxies included directly into m, in order.
func (m *Module) IncludeChain() []*IncludeProxy {
	return append([]*IncludeProxy(nil), m.chain...)
}

// PrependChain returns the proxies prepended to m, in order.
func (m *Module) PrependChain() []*IncludeProxy {
	return append([]*IncludeProxy(nil), m.prepends...)
}

// HasOrigin reports whether m has been given an origin marker by a
// prepend.
func (m *Module) HasOrigin() bool { return m.origin != nil }

// OwnIncludedModules lists the modules in m's include chain.
func (m *Module) OwnIncludedModules() []*Module {
	out := make([]*Module, len(m.chain))
	for i, p := range m.chain {
		out[i] = p.Module
	}
	return out
}

// OwnPrependedModules lists the modules in m's prepend chain.
func (m *Module) OwnPrependedModules() []*Module {
	out := make([]*Module, len(m.prepends))
	for i, p := range m.prepends {
		out[i] = p.Module
	}
	return out
}

// IncludedModules lists every module (not class) in m's ancestors.
func (vm *VM) IncludedModules(m *Module) []*Module {
	var out []*Module
	for _, anc := range vm.Ancestors(m) {
		if anc.kind == kindModule {
			out = append(out, anc)
		}
	}
	return out
}

// Includes reports whether mod is mixed into m somewhere in its ancestors.
func (vm *VM) Includes(m, mod *Module) bool {
	return mod != m && mod.kind == kindModule && containsModule(vm.Ancestors(m), mod)
}

func containsModule(list []*Module, m *Module) bool {
	for _, x := range list {
		if x == m {
			return true
		}
	}
	return false
}

// buildProxies creates one proxy per ancestor of mod, for insertion into
// target's chain. A proxy in reuse for the same module is kept in place of
// a new one.
func (vm *VM) buildProxies(mod, target *Module, prepended bool, reuse []*IncludeProxy) []*IncludeProxy {
	ancestors := vm.Ancestors(mod)
	chain := make([]*IncludeProxy, len(ancestors))
	for i, anc := range ancestors {
		if p := findProxy(reuse, anc); p != nil {
			chain[i] = p
			continue
		}
		p := &IncludeProxy{
			Module:    anc,
			Root:      i == 0,
			Prepended: prepended,
			source:    mod,
			includer:  vm.weakRefs.New(target),
		}
		anc.proxies = append(anc.proxies, p)
		chain[i] = p
	}
	return chain
}

func findProxy(list []*IncludeProxy, m *Module) *IncludeProxy {
	for _, p := range list {
		if p.Module == m {
			return p
		}
	}
	return nil
}

// AppendFeatures splices mod (and its own ancestors) into includer's
// chain. Including a module that is already directly included refreshes
// that segment in place: modules added to mod since are spliced in and
// the proxies already there are kept.
func (vm *VM) AppendFeatures(mod, includer *Module) error {
	if mod.kind != kindModule {
		return vm.Errorf(vm.TypeErrorClass, "wrong argument type %s (expected Module)", titleKind(mod))
	}
	if err := vm.CheckFrozen(includer); err != nil {
		return err
	}
	if containsModule(vm.Ancestors(mod), includer) {
		return vm.Errorf(vm.ArgumentErrorClass, "cyclic include detected")
	}

	existing := includer.chain
	start, end := 0, 0
	if containsModule(vm.Ancestors(includer), mod) {
		for i, p := range existing {
			if p.Root && p.source == mod {
				j := i + 1
				for j < len(existing) && !existing[j].Root {
					j++
				}
				start, end = i, j
				break
			}
		}
	}

	segment := existing[start:end]
	chain := vm.buildProxies(mod, includer, false, segment)
	for _, p := range segment {
		if findProxy(chain, p.Module) != p {
			p.Module.dropProxy(p)
			vm.weakRefs.Unregister(p.includer)
		}
	}
	next := make([]*IncludeProxy, 0, len(existing)-(end-start)+len(chain))
	next = append(next, existing[:start]...)
	next = append(next, chain...)
	next = append(next, existing[end:]...)
	includer.chain = next

	vm.bump()
	vm.log.Debugf("include %s into %s", mod.Name(), vm.Inspect(includer))
	return nil
}

// PrependFeatures places mod (and its own ancestors) in front of
// prepender in its ancestors. Prepending the same module twice is an
// error.
func (vm *VM) PrependFeatures(mod, prepender *Module) error {
	if mod.kind != kindModule {
		return vm.Errorf(vm.TypeErrorClass, "wrong argument type %s (expected Module)", titleKind(mod))
	}
	if err := vm.CheckFrozen(prepender); err != nil {
		return err
	}
	if containsModule(vm.Ancestors(mod), prepender) {
		return vm.Errorf(vm.ArgumentErrorClass, "cyclic prepend detected")
	}
	if containsModule(vm.Ancestors(prepender), mod) {
		return vm.Errorf(vm.RuntimeErrorClass, "Prepending a module multiple times is not supported")
	}
	if prepender.origin == nil {
		prepender.origin = &IncludeProxy{Module: prepender, source: prepender, includer: vm.weakRefs.New(prepender)}
	}

	chain := vm.buildProxies(mod, prepender, true, nil)
	next := make([]*IncludeProxy, 0, len(chain)+len(prepender.prepends))
	next = append(next, chain...)
	next = append(next, prepender.prepends...)
	prepender.prepends = next

	vm.bump()
	vm.log.Debugf("prepend %s to %s", mod.Name(), vm.Inspect(prepender))
	return nil
}

// Include mixes mods into m through append_features and fires included,
// last argument first.
func (vm *VM) Include(m *Module, mods ...*Module) error {
	for i := len(mods) - 1; i >= 0; i-- {
		mod := mods[i]
		if mod.kind != kindModule {
			return vm.Errorf(vm.TypeErrorClass, "wrong argument type %s (expected Module)", titleKind(mod))
		}
		if err := vm.sendHookable(mod, "append_features", m); err != nil {
			return err
		}
		if err := vm.callHook(mod, "included", m); err != nil {
			return err
		}
	}
	return nil
}

// Prepend mixes mods in front of m through prepend_features and fires
// prepended, last argument first.
func (vm *VM) Prepend(m *Module, mods ...*Module) error {
	for i := len(mods) - 1; i >= 0; i-- {
		mod := mods[i]
		if mod.kind != kindModule {
			return vm.Errorf(vm.TypeErrorClass, "wrong argument type %s (expected Module)", titleKind(mod))
		}
		if err := vm.sendHookable(mod, "prepend_features", m); err != nil {
			return err
		}
		if err := vm.callHook(mod, "prepended", m); err != nil {
			return err
		}
	}
	return nil
}

// Extend mixes mods into obj's singleton class through extend_object and
// fires extended.
func (vm *VM) Extend(obj Value, mods ...*Module) error {
	if err := vm.CheckFrozen(obj); err != nil {
		return err
	}
	for i := len(mods) - 1; i >= 0; i-- {
		mod := mods[i]
		if mod.kind != kindModule {
			return vm.Errorf(vm.TypeErrorClass, "wrong argument type %s (expected Module)", titleKind(mod))
		}
		if err := vm.sendHookable(mod, "extend_object", obj); err != nil {
			return err
		}
		if err := vm.callHook(mod, "extended", obj); err != nil {
			return err
		}
	}
	return nil
}

// ExtendObject includes mod into obj's singleton class.
func (vm *VM) ExtendObject(mod *Module, obj Value) error {
	meta, err := vm.SingletonClass(obj)
	if err != nil {
		return err
	}
	return vm.AppendFeatures(mod, meta)
}
