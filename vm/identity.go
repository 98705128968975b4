package vm

// Reserved identities. Heap ids start above these and stay even; integer n
// has identity 2n+1 so ids never collide with heap ids.
const (
	falseID int64 = 0
	trueID  int64 = 2
	nilID   int64 = 4
	firstID int64 = 6
)

// nextObjectID hands out the next heap identity.
func (vm *VM) nextObjectID() int64 {
	id := vm.nextID
	vm.nextID += 2
	return id
}

// ObjectID returns the stable identity of v. Heap values are given an id
// lazily on first request; immediates map to reserved or derived ids.
func (vm *VM) ObjectID(v Value) int64 {
	switch x := v.(type) {
	case nil, nilValue:
		return nilID
	case Bool:
		if x {
			return trueID
		}
		return falseID
	case Int:
		return 2*int64(x) + 1
	case Float, Symbol:
		return vm.immediateID(x)
	case HeapValue:
		h := x.hdr()
		if h.id == 0 {
			h.id = vm.nextObjectID()
		}
		return h.id
	}
	return vm.immediateID(v)
}

func (vm *VM) immediateID(v Value) int64 {
	if id, ok := vm.immediateIDs[v]; ok {
		return id
	}
	id := vm.nextObjectID()
	vm.immediateIDs[v] = id
	return id
}

// ---------------------------------------------------------------------------
// Hidden properties
// ---------------------------------------------------------------------------

// DefineHiddenProperty attaches runtime bookkeeping to v. Hidden properties
// are never visible as instance variables or through reflection.
func (vm *VM) DefineHiddenProperty(v Value, name string, value any) {
	if h, ok := v.(HeapValue); ok {
		hd := h.hdr()
		if hd.hidden == nil {
			hd.hidden = make(map[string]any)
		}
		hd.hidden[name] = value
		return
	}
	props := vm.immediateProps[v]
	if props == nil {
		props = make(map[string]any)
		vm.immediateProps[v] = props
	}
	props[name] = value
}

// HiddenProperty returns the hidden property name of v.
func (vm *VM) HiddenProperty(v Value, name string) (any, bool) {
	if h, ok := v.(HeapValue); ok {
		val, ok := h.hdr().hidden[name]
		return val, ok
	}
	val, ok := vm.immediateProps[v][name]
	return val, ok
}

// DeleteHiddenProperty removes a hidden property.
func (vm *VM) DeleteHiddenProperty(v Value, name string) {
	if h, ok := v.(HeapValue); ok {
		delete(h.hdr().hidden, name)
		return
	}
	delete(vm.immediateProps[v], name)
}

// ---------------------------------------------------------------------------
// Instance variables
// ---------------------------------------------------------------------------

// validIvarName reports whether name is "@" followed by an identifier.
func validIvarName(name string) bool {
	if len(name) < 2 || name[0] != '@' || name[1] == '@' {
		return false
	}
	return validIdentifier(name[1:])
}

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// validConstName reports whether name can name a constant.
func validConstName(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z' && validIdentifier(name)
}

// IvarGet returns the instance variable name of v, or Nil when unset.
func (vm *VM) IvarGet(v Value, name string) Value {
	h, ok := v.(HeapValue)
	if !ok {
		return Nil
	}
	for _, iv := range h.hdr().ivars {
		if iv.name == name {
			return iv.value
		}
	}
	return Nil
}

// IvarDefined reports whether v has the instance variable name.
func (vm *VM) IvarDefined(v Value, name string) bool {
	h, ok := v.(HeapValue)
	if !ok {
		return false
	}
	for _, iv := range h.hdr().ivars {
		if iv.name == name {
			return true
		}
	}
	return false
}

// IvarSet assigns an instance variable. Frozen receivers and immediates
// raise FrozenError.
func (vm *VM) IvarSet(v Value, name string, value Value) error {
	if err := vm.CheckFrozen(v); err != nil {
		return err
	}
	h := v.(HeapValue).hdr()
	for i := range h.ivars {
		if h.ivars[i].name == name {
			h.ivars[i].value = value
			return nil
		}
	}
	h.ivars = append(h.ivars, ivar{name: name, value: value})
	return nil
}

// IvarRemove deletes an instance variable and returns its old value.
func (vm *VM) IvarRemove(v Value, name string) (Value, error) {
	if err := vm.CheckFrozen(v); err != nil {
		return nil, err
	}
	h := v.(HeapValue).hdr()
	for i, iv := range h.ivars {
		if iv.name == name {
			h.ivars = append(h.ivars[:i], h.ivars[i+1:]...)
			return iv.value, nil
		}
	}
	return nil, vm.Errorf(vm.NameErrorClass, "instance variable %s not defined", name)
}

// Ivars returns the instance variable names of v in assignment order.
func (vm *VM) Ivars(v Value) []string {
	h, ok := v.(HeapValue)
	if !ok {
		return nil
	}
	names := make([]string, len(h.hdr().ivars))
	for i, iv := range h.hdr().ivars {
		names[i] = iv.name
	}
	return names
}

// ---------------------------------------------------------------------------
// Freezing
// ---------------------------------------------------------------------------

// Freeze marks v frozen. Freezing an object also freezes its singleton
// class if it has one.
func (vm *VM) Freeze(v Value) Value {
	if h, ok := v.(HeapValue); ok {
		hd := h.hdr()
		hd.frozen = true
		if hd.meta != nil {
			hd.meta.frozen = true
		}
	}
	return v
}

// CheckFrozen returns a FrozenError when v cannot be mutated.
func (vm *VM) CheckFrozen(v Value) error {
	if !Frozen(v) {
		return nil
	}
	var msg string
	switch m := v.(type) {
	case *Module:
		if m.IsSingleton() {
			msg = "can't modify frozen object: " + vm.Inspect(m.singletonOf)
		} else {
			msg = "can't modify frozen " + m.kindName() + ": " + vm.Inspect(m)
		}
	default:
		msg = "can't modify frozen " + vm.ClassOf(v).Name() + ": " + vm.Inspect(v)
	}
	exc := vm.NewException(vm.FrozenErrorClass, msg)
	exc.receiver = v
	return vm.raise(exc)
}
