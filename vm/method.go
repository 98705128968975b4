package vm

import "fmt"

// Func is the body of a method or block.
type Func func(c *Call) (Value, error)

// Method0Func is a body taking no arguments.
type Method0Func func(c *Call) (Value, error)

// Method1Func is a body taking one argument.
type Method1Func func(c *Call, a Value) (Value, error)

// Method2Func is a body taking two arguments.
type Method2Func func(c *Call, a, b Value) (Value, error)

// Method3Func is a body taking three arguments.
type Method3Func func(c *Call, a, b, d Value) (Value, error)

// ParamKind classifies one declared parameter.
type ParamKind uint8

const (
	ParamReq ParamKind = iota
	ParamOpt
	ParamRest
	ParamBlock
)

func (k ParamKind) String() string {
	switch k {
	case ParamReq:
		return "req"
	case ParamOpt:
		return "opt"
	case ParamRest:
		return "rest"
	case ParamBlock:
		return "block"
	}
	return fmt.Sprintf("ParamKind(%d)", k)
}

// Param describes one declared parameter.
type Param struct {
	Kind ParamKind
	Name string
}

// SourceLocation is where a method was defined.
type SourceLocation struct {
	File string
	Line int
}

func (s *SourceLocation) String() string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d", s.File, s.Line)
}

// Method is a callable entry in a method table.
//
// Arity follows the usual convention: n for exactly n arguments, -(n+1)
// for at least n.
type Method struct {
	Name   string
	Owner  *Module
	Arity  int
	Params []Param
	Source *SourceLocation

	// AliasOf is the method this one was aliased from, always collapsed to
	// the original definition.
	AliasOf *Method

	// Stub marks a placeholder that routes to method_missing. Undefined
	// is set on stubs installed by undef_method.
	Stub      bool
	Undefined bool

	// Pristine marks built-in hook and fallback methods that the runtime
	// may skip calling.
	Pristine bool

	// Dynamic marks methods created by define_method.
	Dynamic bool

	body Func
}

// NewMethod wraps fn as a method of the given arity.
func NewMethod(name string, arity int, fn Func) *Method {
	return &Method{Name: name, Arity: arity, body: fn}
}

// NewVarMethod wraps fn as a method taking at least required arguments.
func NewVarMethod(name string, required int, fn Func) *Method {
	return &Method{Name: name, Arity: -(required + 1), body: fn}
}

// NewMethod0 creates a zero-argument method.
func NewMethod0(name string, fn Method0Func) *Method {
	return &Method{Name: name, Arity: 0, body: func(c *Call) (Value, error) { return fn(c) }}
}

// NewMethod1 creates a one-argument method.
func NewMethod1(name string, fn Method1Func) *Method {
	return &Method{Name: name, Arity: 1, body: func(c *Call) (Value, error) { return fn(c, c.Args[0]) }}
}

// NewMethod2 creates a two-argument method.
func NewMethod2(name string, fn Method2Func) *Method {
	return &Method{Name: name, Arity: 2, body: func(c *Call) (Value, error) { return fn(c, c.Args[0], c.Args[1]) }}
}

// NewMethod3 creates a three-argument method.
func NewMethod3(name string, fn Method3Func) *Method {
	return &Method{Name: name, Arity: 3, body: func(c *Call) (Value, error) {
		return fn(c, c.Args[0], c.Args[1], c.Args[2])
	}}
}

// newStub creates a method_missing placeholder.
func newStub(name string) *Method {
	return &Method{Name: name, Arity: -1, Stub: true}
}

// Body returns the Go function behind m.
func (m *Method) Body() Func { return m.body }

// Original follows an alias to the method it was made from.
func (m *Method) Original() *Method {
	if m.AliasOf != nil {
		return m.AliasOf
	}
	return m
}

// RequiredArgs is the minimum argument count.
func (m *Method) RequiredArgs() int {
	if m.Arity < 0 {
		return -m.Arity - 1
	}
	return m.Arity
}

// clone copies m for installation under a different owner.
func (m *Method) clone() *Method {
	c := *m
	return &c
}

func (vm *VM) checkArity(m *Method, given int) error {
	switch {
	case m.Arity >= 0 && given != m.Arity:
		return vm.Errorf(vm.ArgumentErrorClass, "wrong number of arguments (given %d, expected %d)", given, m.Arity)
	case m.Arity < 0 && given < -m.Arity-1:
		return vm.Errorf(vm.ArgumentErrorClass, "wrong number of arguments (given %d, expected %d+)", given, -m.Arity-1)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Bootstrap helpers on Module
// ---------------------------------------------------------------------------

// AddMethod installs method under name without firing hooks or checking
// frozen state. It is meant for building core classes.
func (m *Module) AddMethod(selectors *SelectorTable, name string, method *Method) {
	method.Name = name
	method.Owner = m
	m.vtable.AddMethod(selectors.Intern(name), method)
}

// AddMethod0 installs a zero-argument primitive.
func (m *Module) AddMethod0(selectors *SelectorTable, name string, fn Method0Func) {
	m.AddMethod(selectors, name, NewMethod0(name, fn))
}

// AddMethod1 installs a one-argument primitive.
func (m *Module) AddMethod1(selectors *SelectorTable, name string, fn Method1Func) {
	m.AddMethod(selectors, name, NewMethod1(name, fn))
}

// AddMethod2 installs a two-argument primitive.
func (m *Module) AddMethod2(selectors *SelectorTable, name string, fn Method2Func) {
	m.AddMethod(selectors, name, NewMethod2(name, fn))
}

// AddVarMethod installs a primitive taking at least required arguments.
func (m *Module) AddVarMethod(selectors *SelectorTable, name string, required int, fn Func) {
	m.AddMethod(selectors, name, NewVarMethod(name, required, fn))
}

// AddStubs installs method_missing stubs for names on m, skipping names
// that already have an entry.
func (m *Module) AddStubs(selectors *SelectorTable, names ...string) {
	for _, name := range names {
		sel := selectors.Intern(name)
		if !m.vtable.HasMethod(sel) {
			stub := newStub(name)
			stub.Owner = m
			m.vtable.AddMethod(sel, stub)
		}
	}
}

// LocalMethod returns the entry m defines itself for name, stubs
// included.
func (m *Module) LocalMethod(selectors *SelectorTable, name string) *Method {
	return m.vtable.LookupLocal(selectors.Lookup(name))
}
