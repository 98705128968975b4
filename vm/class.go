package vm

import "fmt"

// ---------------------------------------------------------------------------
// Module: the shared record behind modules, classes and singleton classes
// ---------------------------------------------------------------------------

type moduleKind uint8

const (
	kindModule moduleKind = iota
	kindClass
)

// Module is a named container of methods and constants. Classes are
// modules that can be instantiated and have a superclass. Singleton classes
// are classes attached to exactly one object.
type Module struct {
	Header

	kind    moduleKind
	arenaID int
	name    string
	base    *Module
	root    bool
	dead    bool
	noAlloc bool
	bridged *NativeType

	superclass  *Module
	singletonOf Value

	vtable *VTable

	consts     map[string]Value
	constOrder []string
	autoloads  map[string]*Autoload
	constCache map[string]constCacheEntry

	// Inclusion bookkeeping. prepends come before the module itself in its
	// ancestors, chain comes right after it.
	prepends []*IncludeProxy
	origin   *IncludeProxy
	chain    []*IncludeProxy
	proxies  []*IncludeProxy

	ancestors      []*Module
	ancestorsEpoch uint64

	methodCache map[int]methodCacheEntry

	cvars      map[string]Value
	subclasses []*WeakReference

	refinements     map[*Module]*Module
	refinementOrder []*Module
	refinedClass    *Module

	moduleFunction bool
}

func (*Module) isValue() {}

type methodCacheEntry struct {
	epoch  uint64
	serial uint64
	method *Method
}

// IsClass reports whether m is a class (including singleton classes).
func (m *Module) IsClass() bool { return m.kind == kindClass }

// IsSingleton reports whether m is a singleton class.
func (m *Module) IsSingleton() bool { return m.singletonOf != nil }

// Attached returns the object a singleton class belongs to, or nil.
func (m *Module) Attached() Value { return m.singletonOf }

// Superclass returns the direct superclass, skipping nothing. It is nil for
// modules and for the root class.
func (m *Module) Superclass() *Module { return m.superclass }

// VTable returns the method table owned by m.
func (m *Module) VTable() *VTable { return m.vtable }

// RefinedClass returns the class a refinement module refines, or nil.
func (m *Module) RefinedClass() *Module { return m.refinedClass }

// IsDead reports whether the arena has collected m.
func (m *Module) IsDead() bool { return m.dead }

func (m *Module) kindName() string {
	if m.kind == kindClass {
		return "class"
	}
	return "module"
}

// BaseName returns the unqualified name, or "" for anonymous modules.
func (m *Module) BaseName() string { return m.name }

// Name returns the fully qualified name, or "" for anonymous modules.
// Modules nested in an anonymous module are qualified with its inspect
// form.
func (m *Module) Name() string {
	if m.name == "" {
		return ""
	}
	path := m.name
	seen := 0
	for b := m.base; b != nil && !b.root; b = b.base {
		if b.name == "" {
			return fmt.Sprintf("#<%s:0x%016x>::%s", titleKind(b), uint64(b.id), path)
		}
		path = b.name + "::" + path
		if seen++; seen > 64 {
			break
		}
	}
	return path
}

func titleKind(m *Module) string {
	if m.kind == kindClass {
		return "Class"
	}
	return "Module"
}

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

func (vm *VM) newModuleRecord(kind moduleKind, name string) *Module {
	m := &Module{
		kind:        kind,
		name:        name,
		vtable:      NewVTable(&vm.methodSerial),
		consts:      make(map[string]Value),
		methodCache: make(map[int]methodCacheEntry),
	}
	m.id = vm.nextObjectID()
	if kind == kindClass {
		m.class = vm.ClassClass
	} else {
		m.class = vm.ModuleClass
	}
	vm.arena.add(m)
	return m
}

// allocateClass creates a class record below superclass. Singleton classes
// are not registered as subclasses.
func (vm *VM) allocateClass(name string, superclass *Module, singleton bool) *Module {
	m := vm.newModuleRecord(kindClass, name)
	m.superclass = superclass
	if superclass != nil && !singleton {
		superclass.subclasses = append(superclass.subclasses, vm.weakRefs.New(m))
	}
	vm.bump()
	return m
}

// AllocateClass creates a new class. superclass may be a class, a
// NativeType to bridge the new class onto, or nil/Nil for Object.
func (vm *VM) AllocateClass(name string, superclass Value) (*Module, error) {
	var native *NativeType
	var super *Module
	switch s := superclass.(type) {
	case nil, nilValue:
		super = vm.ObjectClass
	case *NativeType:
		native = s
		super = vm.ObjectClass
	case *Module:
		if s.kind != kindClass {
			return nil, vm.Errorf(vm.TypeErrorClass, "superclass must be a Class (%s given)", vm.ClassOf(s).Name())
		}
		if s.IsSingleton() {
			return nil, vm.Errorf(vm.TypeErrorClass, "can't make subclass of singleton class")
		}
		if s == vm.ClassClass {
			return nil, vm.Errorf(vm.TypeErrorClass, "can't make subclass of Class")
		}
		super = s
	default:
		return nil, vm.Errorf(vm.TypeErrorClass, "superclass must be a Class (%s given)", vm.ClassOf(superclass).Name())
	}
	m := vm.allocateClass(name, super, false)
	if native != nil {
		if err := vm.Bridge(native, m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// AllocateModule creates a new module.
func (vm *VM) AllocateModule(name string) *Module {
	m := vm.newModuleRecord(kindModule, name)
	vm.bump()
	return m
}

// NewClass is AllocateClass followed by the superclass's inherited hook,
// the way Class.new behaves.
func (vm *VM) NewClass(superclass Value) (*Module, error) {
	m, err := vm.AllocateClass("", superclass)
	if err != nil {
		return nil, err
	}
	if err := vm.callHook(m.superclass, "inherited", m); err != nil {
		return nil, err
	}
	return m, nil
}

// DefineClass opens or creates the class name inside scope. scope may be
// nil/Nil for top level; a non-module scope means its class. superclass
// may be nil/Nil (inherit from Object or keep the existing superclass), a
// class, or a NativeType to bridge.
func (vm *VM) DefineClass(scope Value, superclass Value, name string) (*Module, error) {
	owner := vm.scopeModule(scope)

	var native *NativeType
	switch s := superclass.(type) {
	case nil, nilValue, *Module:
	case *NativeType:
		native = s
		superclass = vm.ObjectClass
	default:
		return nil, vm.Errorf(vm.TypeErrorClass, "superclass must be a Class (%s given)", vm.ClassOf(superclass).Name())
	}
	if s, ok := superclass.(*Module); ok && s.kind != kindClass {
		return nil, vm.Errorf(vm.TypeErrorClass, "superclass must be a Class (%s given)", vm.ClassOf(s).Name())
	}

	existing, err := vm.ownConst(owner, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		klass, ok := existing.(*Module)
		if !ok || klass.kind != kindClass {
			return nil, vm.Errorf(vm.TypeErrorClass, "%s is not a class", name)
		}
		if s, ok := superclass.(*Module); ok && klass.superclass != s {
			return nil, vm.Errorf(vm.TypeErrorClass, "superclass mismatch for class %s", name)
		}
		return klass, nil
	}

	var super Value = superclass
	if IsNil(super) {
		super = vm.ObjectClass
	}
	// Allocated anonymous so the constant assignment names it within owner.
	klass, err := vm.AllocateClass("", super)
	if err != nil {
		return nil, err
	}
	if _, err := vm.ConstSet(owner, name, klass); err != nil {
		return nil, err
	}
	if err := vm.callHook(klass.superclass, "inherited", klass); err != nil {
		return nil, err
	}
	if native != nil {
		if err := vm.Bridge(native, klass); err != nil {
			return nil, err
		}
	}
	return klass, nil
}

// DefineModule opens or creates the module name inside scope.
func (vm *VM) DefineModule(scope Value, name string) (*Module, error) {
	owner := vm.scopeModule(scope)
	existing, err := vm.ownConst(owner, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		mod, ok := existing.(*Module)
		if !ok || mod.kind != kindModule {
			return nil, vm.Errorf(vm.TypeErrorClass, "%s is not a module", name)
		}
		return mod, nil
	}
	mod := vm.AllocateModule("")
	if _, err := vm.ConstSet(owner, name, mod); err != nil {
		return nil, err
	}
	return mod, nil
}

// scopeModule resolves a definition scope: nil means Object, a module is
// itself, anything else is its class.
func (vm *VM) scopeModule(scope Value) *Module {
	switch s := scope.(type) {
	case nil, nilValue:
		return vm.ObjectClass
	case *Module:
		return s
	}
	return vm.ClassOf(scope)
}

// ownConst reads a constant from scope's own table, triggering autoload.
func (vm *VM) ownConst(scope *Module, name string) (Value, error) {
	if v, ok := scope.consts[name]; ok {
		return v, nil
	}
	if _, ok := scope.autoloads[name]; ok {
		return vm.handleAutoload(scope, name)
	}
	return nil, nil
}

// ---------------------------------------------------------------------------
// Native bridging
// ---------------------------------------------------------------------------

// NativeType describes a Go-backed value representation that a class can
// be bridged onto. Instances of a bridged class (and its subclasses) are
// allocated with the native constructor so primitives can work on them.
type NativeType struct {
	Name  string
	alloc func() HeapValue
}

func (*NativeType) isValue() {}

// NewNativeType declares a host representation.
func NewNativeType(name string, alloc func() HeapValue) *NativeType {
	return &NativeType{Name: name, alloc: alloc}
}

// Core native representations.
var (
	NativeString    = NewNativeType("String", func() HeapValue { return &String{} })
	NativeArray     = NewNativeType("Array", func() HeapValue { return &Array{} })
	NativeProc      = NewNativeType("Proc", func() HeapValue { return &Proc{} })
	NativeException = NewNativeType("Exception", func() HeapValue { return &Exception{} })
	NativeIO        = NewNativeType("IO", func() HeapValue { return &IO{} })
)

// Bridge makes klass the class of values created by native. A native type
// can be bridged at most once.
func (vm *VM) Bridge(native *NativeType, klass *Module) error {
	if native == nil {
		return vm.Errorf(vm.ArgumentErrorClass, "no native type given")
	}
	if existing := vm.bridges[native]; existing != nil {
		return vm.Errorf(vm.ArgumentErrorClass, "already bridged: %s is bridged to %s", native.Name, existing.Name())
	}
	if klass.kind != kindClass {
		return vm.Errorf(vm.TypeErrorClass, "%s is not a class", vm.Inspect(klass))
	}
	vm.bridges[native] = klass
	klass.bridged = native
	vm.bump()
	return nil
}

// BridgedClass returns the class bridged to native, or nil.
func (vm *VM) BridgedClass(native *NativeType) *Module {
	return vm.bridges[native]
}

// nativeFor finds the native representation instances of klass use.
func nativeFor(klass *Module) *NativeType {
	for c := klass; c != nil; c = c.superclass {
		if c.bridged != nil {
			return c.bridged
		}
	}
	return nil
}

// Allocate creates an uninitialized instance of klass.
func (vm *VM) Allocate(klass *Module) (HeapValue, error) {
	if klass.kind != kindClass {
		return nil, vm.Errorf(vm.NoMethodErrorClass, "undefined method 'new' for module %s", vm.Inspect(klass))
	}
	if klass.IsSingleton() {
		return nil, vm.Errorf(vm.TypeErrorClass, "can't create instance of singleton class")
	}
	for k := klass; k != nil; k = k.superclass {
		if k.noAlloc {
			return nil, vm.Errorf(vm.TypeErrorClass, "allocator undefined for %s", vm.Inspect(klass))
		}
	}
	var obj HeapValue
	if native := nativeFor(klass); native != nil {
		obj = native.alloc()
	} else {
		obj = &Object{}
	}
	obj.hdr().class = klass
	return obj, nil
}

// New allocates an instance of klass and sends it initialize.
func (vm *VM) New(klass *Module, blk *Proc, args ...Value) (Value, error) {
	obj, err := vm.Allocate(klass)
	if err != nil {
		return nil, err
	}
	if _, err := vm.SendBlock(obj, "initialize", blk, args...); err != nil {
		return nil, err
	}
	return obj, nil
}

// ---------------------------------------------------------------------------
// Hierarchy queries
// ---------------------------------------------------------------------------

// IsSubclassOf reports whether other appears in c's ancestors.
func (vm *VM) IsSubclassOf(c, other *Module) bool {
	return containsModule(vm.Ancestors(c), other)
}

// Subclasses returns the live direct subclasses of klass.
func (vm *VM) Subclasses(klass *Module) []*Module {
	var out []*Module
	live := klass.subclasses[:0]
	for _, ref := range klass.subclasses {
		if target := ref.Get(); target != nil && !target.dead {
			out = append(out, target)
			live = append(live, ref)
		}
	}
	klass.subclasses = live
	return out
}

// ---------------------------------------------------------------------------
// Class variables
// ---------------------------------------------------------------------------

func validCvarName(name string) bool {
	return len(name) > 2 && name[0] == '@' && name[1] == '@' && validIdentifier(name[2:])
}

// cvarOwner finds the first ancestor that holds the class variable.
func (vm *VM) cvarOwner(m *Module, name string) *Module {
	if m.IsSingleton() {
		if attached, ok := m.singletonOf.(*Module); ok {
			m = attached
		}
	}
	for _, anc := range vm.Ancestors(m) {
		if _, ok := anc.cvars[name]; ok {
			return anc
		}
	}
	return nil
}

// ClassVarGet reads @@name as seen from m.
func (vm *VM) ClassVarGet(m *Module, name string) (Value, error) {
	if !validCvarName(name) {
		return nil, vm.Errorf(vm.NameErrorClass, "'%s' is not allowed as a class variable name", name)
	}
	owner := vm.cvarOwner(m, name)
	if owner == nil {
		return nil, vm.Errorf(vm.NameErrorClass, "uninitialized class variable %s in %s", name, vm.Inspect(m))
	}
	return owner.cvars[name], nil
}

// ClassVarSet assigns @@name, updating the ancestor that already holds it.
func (vm *VM) ClassVarSet(m *Module, name string, value Value) error {
	if !validCvarName(name) {
		return vm.Errorf(vm.NameErrorClass, "'%s' is not allowed as a class variable name", name)
	}
	owner := vm.cvarOwner(m, name)
	if owner == nil {
		owner = m
	}
	if err := vm.CheckFrozen(owner); err != nil {
		return err
	}
	if owner.cvars == nil {
		owner.cvars = make(map[string]Value)
	}
	owner.cvars[name] = value
	return nil
}

// ClassVarDefined reports whether @@name is visible from m.
func (vm *VM) ClassVarDefined(m *Module, name string) bool {
	return vm.cvarOwner(m, name) != nil
}

// ClassVars lists the class variables visible from m.
func (vm *VM) ClassVars(m *Module) []string {
	var names []string
	seen := make(map[string]bool)
	for _, anc := range vm.Ancestors(m) {
		for _, name := range sortedKeys(anc.cvars) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}
