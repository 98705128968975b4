package vm

import (
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// VM: one Garnet runtime instance
// ---------------------------------------------------------------------------

// VM owns every piece of runtime state: the module arena, selector table,
// caches, globals, the exception and frame stacks and the unit registry.
// Nothing is global, so independent VMs can coexist in one process. A VM
// is not safe for concurrent use.
type VM struct {
	ID uuid.UUID

	Selectors *SelectorTable

	cfg Config
	log commonlog.Logger

	arena    *ModuleArena
	weakRefs *WeakRegistry

	// epoch versions ancestor lists and constant caches; methodSerial
	// versions method tables.
	epoch        uint64
	methodSerial uint64

	nextID         int64
	immediateIDs   map[Value]int64
	immediateProps map[Value]map[string]any

	bridges map[*NativeType]*Module

	globals map[string]Value
	pinned  map[Value]int

	frames        []Frame
	excStack      []*Exception
	currentExc    *Exception
	catchTags     []Value
	throwerSeq    uint64
	instanceEvals map[*Module]int
	inspecting    map[int64]bool
	exitHandlers  []*Proc
	warned        map[string]bool

	units    map[string]LoadFunc
	loaded   map[string]bool
	features []string
	queue    *LoadQueue

	moduleCaseEq *Method

	// Main is the top-level self.
	Main *Object

	// Core classes and modules
	BasicObjectClass *Module
	ObjectClass      *Module
	ModuleClass      *Module
	ClassClass       *Module
	KernelModule     *Module
	ComparableModule *Module
	EnumerableModule *Module
	NilClass         *Module
	TrueClass        *Module
	FalseClass       *Module
	NumericClass     *Module
	IntegerClass     *Module
	FloatClass       *Module
	SymbolClass      *Module
	StringClass      *Module
	ArrayClass       *Module
	ProcClass        *Module
	IOClass          *Module

	MethodClass        *Module
	UnboundMethodClass *Module

	// Exception hierarchy
	ExceptionClass           *Module
	ScriptErrorClass         *Module
	LoadErrorClass           *Module
	NotImplementedErrorClass *Module
	StandardErrorClass       *Module
	ArgumentErrorClass       *Module
	UncaughtThrowErrorClass  *Module
	NameErrorClass           *Module
	NoMethodErrorClass       *Module
	RuntimeErrorClass        *Module
	FrozenErrorClass         *Module
	TypeErrorClass           *Module
	LocalJumpErrorClass      *Module
	IndexErrorClass          *Module
	IOErrorClass             *Module
	StopIterationClass       *Module
	KeyErrorClass            *Module
	ZeroDivisionErrorClass   *Module
	RangeErrorClass          *Module
	FloatDomainErrorClass    *Module
	HostErrorClass           *Module
	SystemStackErrorClass    *Module
	SystemExitClass          *Module
}

// NewVM creates and bootstraps a VM.
func NewVM(cfg Config) *VM {
	vm := &VM{
		ID:             uuid.New(),
		Selectors:      NewSelectorTable(),
		cfg:            cfg.withDefaults(),
		log:            commonlog.GetLogger("garnet.vm"),
		arena:          &ModuleArena{},
		weakRefs:       NewWeakRegistry(),
		epoch:          1,
		nextID:         firstID,
		immediateIDs:   make(map[Value]int64),
		immediateProps: make(map[Value]map[string]any),
		bridges:        make(map[*NativeType]*Module),
		globals:        make(map[string]Value),
		pinned:         make(map[Value]int),
		instanceEvals:  make(map[*Module]int),
		inspecting:     make(map[int64]bool),
		warned:         make(map[string]bool),
		units:          make(map[string]LoadFunc),
		loaded:         make(map[string]bool),
	}
	vm.queue = &LoadQueue{vm: vm}
	vm.bootstrap()
	vm.log.Debugf("vm %s ready: %d modules, %d selectors", vm.ID, vm.arena.Len(), vm.Selectors.Len())
	return vm
}

// Arena returns the module arena.
func (vm *VM) Arena() *ModuleArena { return vm.arena }

// WeakRefs returns the weak reference registry.
func (vm *VM) WeakRefs() *WeakRegistry { return vm.weakRefs }

// ---------------------------------------------------------------------------
// Bootstrap
// ---------------------------------------------------------------------------

func (vm *VM) bootstrap() {
	// Phase 1: the class tree roots. Class does not exist until the end of
	// this phase, so class pointers are patched afterwards.
	vm.BasicObjectClass = vm.allocateClass("BasicObject", nil, false)
	vm.ObjectClass = vm.allocateClass("Object", vm.BasicObjectClass, false)
	vm.ModuleClass = vm.allocateClass("Module", vm.ObjectClass, false)
	vm.ClassClass = vm.allocateClass("Class", vm.ModuleClass, false)
	for _, c := range []*Module{vm.BasicObjectClass, vm.ObjectClass, vm.ModuleClass, vm.ClassClass} {
		c.class = vm.ClassClass
	}
	vm.ObjectClass.root = true
	for _, c := range []*Module{vm.BasicObjectClass, vm.ObjectClass, vm.ModuleClass, vm.ClassClass} {
		vm.ConstSet(vm.ObjectClass, c.name, c)
	}

	// Phase 2: mixins
	vm.KernelModule = vm.bootModule("Kernel")
	vm.ComparableModule = vm.bootModule("Comparable")
	vm.EnumerableModule = vm.bootModule("Enumerable")
	vm.AppendFeatures(vm.KernelModule, vm.ObjectClass)

	// Phase 3: value classes
	vm.NilClass = vm.bootClass("NilClass", vm.ObjectClass)
	vm.TrueClass = vm.bootClass("TrueClass", vm.ObjectClass)
	vm.FalseClass = vm.bootClass("FalseClass", vm.ObjectClass)
	vm.NumericClass = vm.bootClass("Numeric", vm.ObjectClass)
	vm.IntegerClass = vm.bootClass("Integer", vm.NumericClass)
	vm.FloatClass = vm.bootClass("Float", vm.NumericClass)
	vm.SymbolClass = vm.bootClass("Symbol", vm.ObjectClass)
	vm.StringClass = vm.bootClass("String", vm.ObjectClass)
	vm.ArrayClass = vm.bootClass("Array", vm.ObjectClass)
	vm.ProcClass = vm.bootClass("Proc", vm.ObjectClass)
	vm.IOClass = vm.bootClass("IO", vm.ObjectClass)
	vm.MethodClass = vm.bootClass("Method", vm.ObjectClass)
	vm.UnboundMethodClass = vm.bootClass("UnboundMethod", vm.ObjectClass)
	vm.AppendFeatures(vm.ComparableModule, vm.NumericClass)
	vm.AppendFeatures(vm.ComparableModule, vm.StringClass)
	vm.AppendFeatures(vm.EnumerableModule, vm.ArrayClass)

	// Phase 4: exceptions
	vm.ExceptionClass = vm.bootClass("Exception", vm.ObjectClass)
	vm.ScriptErrorClass = vm.bootClass("ScriptError", vm.ExceptionClass)
	vm.LoadErrorClass = vm.bootClass("LoadError", vm.ScriptErrorClass)
	vm.NotImplementedErrorClass = vm.bootClass("NotImplementedError", vm.ScriptErrorClass)
	vm.StandardErrorClass = vm.bootClass("StandardError", vm.ExceptionClass)
	vm.ArgumentErrorClass = vm.bootClass("ArgumentError", vm.StandardErrorClass)
	vm.UncaughtThrowErrorClass = vm.bootClass("UncaughtThrowError", vm.ArgumentErrorClass)
	vm.NameErrorClass = vm.bootClass("NameError", vm.StandardErrorClass)
	vm.NoMethodErrorClass = vm.bootClass("NoMethodError", vm.NameErrorClass)
	vm.RuntimeErrorClass = vm.bootClass("RuntimeError", vm.StandardErrorClass)
	vm.FrozenErrorClass = vm.bootClass("FrozenError", vm.RuntimeErrorClass)
	vm.TypeErrorClass = vm.bootClass("TypeError", vm.StandardErrorClass)
	vm.LocalJumpErrorClass = vm.bootClass("LocalJumpError", vm.StandardErrorClass)
	vm.IndexErrorClass = vm.bootClass("IndexError", vm.StandardErrorClass)
	vm.IOErrorClass = vm.bootClass("IOError", vm.StandardErrorClass)
	vm.StopIterationClass = vm.bootClass("StopIteration", vm.IndexErrorClass)
	vm.KeyErrorClass = vm.bootClass("KeyError", vm.IndexErrorClass)
	vm.ZeroDivisionErrorClass = vm.bootClass("ZeroDivisionError", vm.StandardErrorClass)
	vm.RangeErrorClass = vm.bootClass("RangeError", vm.StandardErrorClass)
	vm.FloatDomainErrorClass = vm.bootClass("FloatDomainError", vm.RangeErrorClass)
	vm.HostErrorClass = vm.bootClass("HostError", vm.StandardErrorClass)
	vm.SystemStackErrorClass = vm.bootClass("SystemStackError", vm.ExceptionClass)
	vm.SystemExitClass = vm.bootClass("SystemExit", vm.ExceptionClass)

	// Values of these classes are immediates or made by the runtime only.
	for _, c := range []*Module{
		vm.ModuleClass, vm.NilClass, vm.TrueClass, vm.FalseClass, vm.IntegerClass,
		vm.FloatClass, vm.SymbolClass, vm.MethodClass, vm.UnboundMethodClass, vm.IOClass,
	} {
		c.noAlloc = true
	}

	// Phase 5: native representations
	vm.Bridge(NativeString, vm.StringClass)
	vm.Bridge(NativeArray, vm.ArrayClass)
	vm.Bridge(NativeProc, vm.ProcClass)
	vm.Bridge(NativeException, vm.ExceptionClass)
	vm.Bridge(NativeIO, vm.IOClass)

	// Phase 6: primitives
	vm.registerBasicObjectPrimitives()
	vm.registerKernelPrimitives()
	vm.registerModulePrimitives()
	vm.registerClassPrimitives()
	vm.registerNilBooleanPrimitives()
	vm.registerComparablePrimitives()
	vm.registerEnumerablePrimitives()
	vm.registerIntegerPrimitives()
	vm.registerFloatPrimitives()
	vm.registerSymbolPrimitives()
	vm.registerStringPrimitives()
	vm.registerArrayPrimitives()
	vm.registerProcPrimitives()
	vm.registerExceptionPrimitives()
	vm.registerMethodObjectPrimitives()
	vm.registerIOPrimitives()
	vm.moduleCaseEq = vm.ModuleClass.LocalMethod(vm.Selectors, "===")

	// Phase 7: the top-level object and globals
	vm.Main = vm.newPlainObject()
	mainName := func(c *Call) (Value, error) { return c.VM.Str("main"), nil }
	meta, _ := vm.SingletonClass(vm.Main)
	meta.AddMethod0(vm.Selectors, "to_s", mainName)
	meta.AddMethod0(vm.Selectors, "inspect", mainName)

	vm.globals["$!"] = Nil
	vm.globals["$@"] = Nil
	vm.globals["$stdout"] = vm.NewIO("<STDOUT>", nil, vm.cfg.Stdout)
	vm.globals["$stderr"] = vm.NewIO("<STDERR>", nil, vm.cfg.Stderr)
	vm.globals["$stdin"] = vm.NewIO("<STDIN>", vm.cfg.Stdin, nil)
	vm.ConstSet(vm.ObjectClass, "STDOUT", vm.globals["$stdout"])
	vm.ConstSet(vm.ObjectClass, "STDERR", vm.globals["$stderr"])
	vm.ConstSet(vm.ObjectClass, "STDIN", vm.globals["$stdin"])

	// Everything defined so far is built in.
	vm.arena.Each(func(m *Module) {
		m.vtable.Each(func(_ int, meth *Method) { meth.Pristine = true })
	})
}

func (vm *VM) bootClass(name string, super *Module) *Module {
	c := vm.allocateClass(name, super, false)
	vm.ConstSet(vm.ObjectClass, name, c)
	return c
}

func (vm *VM) bootModule(name string) *Module {
	m := vm.AllocateModule(name)
	vm.ConstSet(vm.ObjectClass, name, m)
	return m
}

// ---------------------------------------------------------------------------
// Value constructors and globals
// ---------------------------------------------------------------------------

// Str creates a String.
func (vm *VM) Str(s string) *String {
	str := &String{str: s}
	str.class = vm.StringClass
	return str
}

// NewArray creates an Array holding a copy of elems.
func (vm *VM) NewArray(elems ...Value) *Array {
	a := &Array{elems: append([]Value(nil), elems...)}
	a.class = vm.ArrayClass
	return a
}

func (vm *VM) stringArray(lines []string) *Array {
	a := &Array{elems: make([]Value, len(lines))}
	a.class = vm.ArrayClass
	for i, l := range lines {
		a.elems[i] = vm.Str(l)
	}
	return a
}

func (vm *VM) symbolArray(names []string) *Array {
	a := &Array{elems: make([]Value, len(names))}
	a.class = vm.ArrayClass
	for i, n := range names {
		a.elems[i] = Symbol(n)
	}
	return a
}

func (vm *VM) moduleArray(mods []*Module) *Array {
	a := &Array{elems: make([]Value, len(mods))}
	a.class = vm.ArrayClass
	for i, m := range mods {
		a.elems[i] = m
	}
	return a
}

func (vm *VM) newPlainObject() *Object {
	o := &Object{}
	o.class = vm.ObjectClass
	return o
}

// GlobalGet reads a global variable; unset globals are Nil.
func (vm *VM) GlobalGet(name string) Value {
	if v, ok := vm.globals[name]; ok {
		return v
	}
	return Nil
}

// GlobalSet assigns a global variable.
func (vm *VM) GlobalSet(name string, v Value) {
	vm.globals[name] = v
}

// Stdout returns the writer behind $stdout.
func (vm *VM) Stdout() *IO {
	if io, ok := vm.globals["$stdout"].(*IO); ok {
		return io
	}
	return vm.NewIO("<STDOUT>", nil, vm.cfg.Stdout)
}
