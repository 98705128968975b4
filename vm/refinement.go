package vm

// ---------------------------------------------------------------------------
// Refinements
// ---------------------------------------------------------------------------

// RefinementScope is one lexical scope's list of activated refinement
// modules, in activation order. Callers pass the scopes enclosing a call
// site to RefinedSend, innermost first.
type RefinementScope struct {
	usings []*Module
}

// NewRefinementScope creates an empty scope.
func NewRefinementScope() *RefinementScope {
	return &RefinementScope{}
}

// Usings returns the activated modules in activation order.
func (s *RefinementScope) Usings() []*Module {
	return append([]*Module(nil), s.usings...)
}

// Refine returns the refinement of target that owner defines, creating it
// on first use. Methods defined on the returned module are only visible
// through RefinedSend in scopes that activated owner.
func (vm *VM) Refine(owner *Module, target *Module) (*Module, error) {
	if owner.kind != kindModule {
		return nil, vm.Errorf(vm.NoMethodErrorClass, "undefined method 'refine' for %s", vm.describeReceiver(owner))
	}
	if target.kind == kindModule {
		if err := vm.Unsupported("refining modules"); err != nil {
			return nil, err
		}
	}
	if r := owner.refinements[target]; r != nil {
		return r, nil
	}
	r := vm.AllocateModule("")
	r.refinedClass = target
	if owner.refinements == nil {
		owner.refinements = make(map[*Module]*Module)
	}
	owner.refinements[target] = r
	owner.refinementOrder = append(owner.refinementOrder, target)
	vm.bump()
	return r, nil
}

// Refinements returns the refinement modules owner defines, keyed by the
// refined class.
func (vm *VM) Refinements(owner *Module) map[*Module]*Module {
	out := make(map[*Module]*Module, len(owner.refinements))
	for k, v := range owner.refinements {
		out[k] = v
	}
	return out
}

// Using activates owner's refinements in scope.
func (vm *VM) Using(scope *RefinementScope, owner *Module) error {
	if owner.kind != kindModule {
		return vm.Errorf(vm.TypeErrorClass, "wrong argument type %s (expected Module)", titleKind(owner))
	}
	vm.Experimental("refinements")
	for _, m := range scope.usings {
		if m == owner {
			return nil
		}
	}
	scope.usings = append(scope.usings, owner)
	vm.bump()
	return nil
}

// RefinedSend sends name to recv, letting activated refinements win. For
// each ancestor of the receiver, scopes are checked innermost first and,
// within a scope, the most recently activated refinement first.
func (vm *VM) RefinedSend(scopes []*RefinementScope, recv Value, name string, blk *Proc, args ...Value) (Value, error) {
	if m := vm.findRefined(scopes, recv, name); m != nil {
		return vm.invoke(m, recv, name, args, blk)
	}
	return vm.SendBlock(recv, name, blk, args...)
}

func (vm *VM) findRefined(scopes []*RefinementScope, recv Value, name string) *Method {
	if len(scopes) == 0 {
		return nil
	}
	sel := vm.Selectors.Lookup(name)
	if sel < 0 {
		return nil
	}
	for _, anc := range vm.Ancestors(vm.dispatchClass(recv)) {
		for _, scope := range scopes {
			for i := len(scope.usings) - 1; i >= 0; i-- {
				r := scope.usings[i].refinements[anc]
				if r == nil {
					continue
				}
				if m := vm.findMethodBySelector(r, sel); m != nil && !m.Stub {
					return m
				}
			}
		}
	}
	return nil
}
