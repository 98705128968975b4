// Package unit describes compiled program units for the garnet runtime.
//
// A unit says what a piece of a program does to the object model: which
// classes and modules it opens, what it includes, prepends and extends,
// the constants and methods it defines, and the code it runs at load
// time. Method bodies are small expression trees. Units are written as
// TOML sources and compiled to content-hashed CBOR files; Register turns
// either form into a loader in a VM's unit table.
package unit

import (
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
)

// ---------------------------------------------------------------------------
// Source form (TOML)
// ---------------------------------------------------------------------------

// Source is a unit as written by hand.
type Source struct {
	Path     string           `toml:"path"`
	Requires []string         `toml:"requires"`
	Using    []string         `toml:"using"`
	Stubs    []string         `toml:"stubs"`
	Autoload []AutoloadSource `toml:"autoload"`
	Defs     []DefSource      `toml:"defs"`
	Main     string           `toml:"main"`
	Deferred bool             `toml:"deferred"`
	Entry    string           `toml:"entry"`
}

// AutoloadSource registers a constant to be loaded on first reference.
type AutoloadSource struct {
	Scope string `toml:"scope"`
	Name  string `toml:"name"`
	Path  string `toml:"path"`
}

// DefSource opens a class, module or refinement and defines things in it.
type DefSource struct {
	Kind       string `toml:"kind"` // class, module or refine
	Name       string `toml:"name"`
	Scope      string `toml:"scope"`
	Superclass string `toml:"superclass"`

	Include []string `toml:"include"`
	Prepend []string `toml:"prepend"`
	Extend  []string `toml:"extend"`

	Constants  map[string]string `toml:"constants"`
	ClassVars  map[string]string `toml:"class_vars"`
	Methods    []MethodSource    `toml:"methods"`
	Aliases    [][2]string       `toml:"aliases"`
	AttrReader []string          `toml:"attr_reader"`
	AttrWriter []string          `toml:"attr_writer"`
	AttrAccess []string          `toml:"attr_accessor"`
	ModuleFunc []string          `toml:"module_function"`
	Undef      []string          `toml:"undef"`
	Remove     []string          `toml:"remove"`
	Body       string            `toml:"body"`
}

// MethodSource is one method definition.
type MethodSource struct {
	Name      string   `toml:"name"`
	Params    []string `toml:"params"`
	Body      string   `toml:"body"`
	Singleton bool     `toml:"singleton"`
	Line      int      `toml:"line"`
}

// ParseSource decodes a TOML unit source.
func ParseSource(data []byte) (*Source, error) {
	var s Source
	md, err := toml.Decode(string(data), &s)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %s", undecoded[0])
	}
	return &s, nil
}

// LoadSource reads and parses a TOML unit source file.
func LoadSource(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	s, err := ParseSource(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return s, nil
}

// ---------------------------------------------------------------------------
// Compiled form
// ---------------------------------------------------------------------------

// DefKind is what a definition opens.
type DefKind uint8

const (
	DefClass DefKind = iota + 1
	DefModule
	DefRefine
)

func (k DefKind) String() string {
	switch k {
	case DefClass:
		return "class"
	case DefModule:
		return "module"
	case DefRefine:
		return "refine"
	}
	return fmt.Sprintf("DefKind(%d)", k)
}

// Unit is a compiled unit.
type Unit struct {
	Path     string     `cbor:"1,keyasint"`
	Requires []string   `cbor:"2,keyasint,omitempty"`
	Using    []string   `cbor:"3,keyasint,omitempty"`
	Stubs    []string   `cbor:"4,keyasint,omitempty"`
	Autoload []Autoload `cbor:"5,keyasint,omitempty"`
	Defs     []*Def     `cbor:"6,keyasint,omitempty"`
	Main     *Expr      `cbor:"7,keyasint,omitempty"`
	Deferred bool       `cbor:"8,keyasint,omitempty"`
	Entry    string     `cbor:"9,keyasint,omitempty"`
}

// Autoload is a compiled autoload registration.
type Autoload struct {
	Scope string `cbor:"1,keyasint,omitempty"`
	Name  string `cbor:"2,keyasint"`
	Path  string `cbor:"3,keyasint"`
}

// Def is a compiled definition. Constants and class variables keep the
// source order by name.
type Def struct {
	Kind       DefKind     `cbor:"1,keyasint"`
	Name       string      `cbor:"2,keyasint"`
	Scope      string      `cbor:"3,keyasint,omitempty"`
	Superclass string      `cbor:"4,keyasint,omitempty"`
	Include    []string    `cbor:"5,keyasint,omitempty"`
	Prepend    []string    `cbor:"6,keyasint,omitempty"`
	Extend     []string    `cbor:"7,keyasint,omitempty"`
	Constants  []Binding   `cbor:"8,keyasint,omitempty"`
	ClassVars  []Binding   `cbor:"9,keyasint,omitempty"`
	Methods    []*Method   `cbor:"10,keyasint,omitempty"`
	Aliases    [][2]string `cbor:"11,keyasint,omitempty"`
	AttrReader []string    `cbor:"12,keyasint,omitempty"`
	AttrWriter []string    `cbor:"13,keyasint,omitempty"`
	AttrAccess []string    `cbor:"14,keyasint,omitempty"`
	ModuleFunc []string    `cbor:"15,keyasint,omitempty"`
	Undef      []string    `cbor:"16,keyasint,omitempty"`
	Remove     []string    `cbor:"17,keyasint,omitempty"`
	Body       *Expr       `cbor:"18,keyasint,omitempty"`
}

// Binding is a named value expression.
type Binding struct {
	Name  string `cbor:"1,keyasint"`
	Value *Expr  `cbor:"2,keyasint"`
}

// Method is a compiled method definition.
type Method struct {
	Name      string  `cbor:"1,keyasint"`
	Params    []Param `cbor:"2,keyasint,omitempty"`
	Body      *Expr   `cbor:"3,keyasint,omitempty"`
	Singleton bool    `cbor:"4,keyasint,omitempty"`
	Line      int     `cbor:"5,keyasint,omitempty"`
}

// Compile checks a source and parses its bodies.
func Compile(src *Source) (*Unit, error) {
	if src.Path == "" {
		return nil, fmt.Errorf("unit: missing path")
	}
	u := &Unit{
		Path:     src.Path,
		Requires: src.Requires,
		Using:    src.Using,
		Stubs:    src.Stubs,
		Deferred: src.Deferred,
		Entry:    src.Entry,
	}
	for _, a := range src.Autoload {
		if a.Name == "" || a.Path == "" {
			return nil, fmt.Errorf("unit %s: autoload needs a name and a path", src.Path)
		}
		u.Autoload = append(u.Autoload, Autoload(a))
	}
	for i, ds := range src.Defs {
		d, err := compileDef(ds)
		if err != nil {
			return nil, fmt.Errorf("unit %s: defs[%d] %s: %w", src.Path, i, ds.Name, err)
		}
		u.Defs = append(u.Defs, d)
	}
	if src.Main != "" {
		main, err := ParseExpr(src.Main)
		if err != nil {
			return nil, fmt.Errorf("unit %s: main: %w", src.Path, err)
		}
		u.Main = main
	}
	return u, nil
}

func compileDef(ds DefSource) (*Def, error) {
	d := &Def{
		Name:       ds.Name,
		Scope:      ds.Scope,
		Superclass: ds.Superclass,
		Include:    ds.Include,
		Prepend:    ds.Prepend,
		Extend:     ds.Extend,
		Aliases:    ds.Aliases,
		AttrReader: ds.AttrReader,
		AttrWriter: ds.AttrWriter,
		AttrAccess: ds.AttrAccess,
		ModuleFunc: ds.ModuleFunc,
		Undef:      ds.Undef,
		Remove:     ds.Remove,
	}
	switch ds.Kind {
	case "", "class":
		d.Kind = DefClass
	case "module":
		d.Kind = DefModule
		if ds.Superclass != "" {
			return nil, fmt.Errorf("a module cannot have a superclass")
		}
	case "refine":
		d.Kind = DefRefine
		if ds.Scope == "" {
			return nil, fmt.Errorf("refine needs the refining module as scope")
		}
	default:
		return nil, fmt.Errorf("unknown kind %q", ds.Kind)
	}
	if d.Name == "" {
		return nil, fmt.Errorf("missing name")
	}

	var err error
	if d.Constants, err = compileBindings(ds.Constants); err != nil {
		return nil, err
	}
	if d.ClassVars, err = compileBindings(ds.ClassVars); err != nil {
		return nil, err
	}
	for _, ms := range ds.Methods {
		m, err := compileMethod(ms)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", ms.Name, err)
		}
		d.Methods = append(d.Methods, m)
	}
	if ds.Body != "" {
		if d.Body, err = ParseExpr(ds.Body); err != nil {
			return nil, fmt.Errorf("body: %w", err)
		}
	}
	return d, nil
}

func compileBindings(src map[string]string) ([]Binding, error) {
	names := make([]string, 0, len(src))
	for name := range src {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Binding, 0, len(names))
	for _, name := range names {
		e, err := ParseExpr(src[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, Binding{Name: name, Value: e})
	}
	return out, nil
}

func compileMethod(ms MethodSource) (*Method, error) {
	if ms.Name == "" {
		return nil, fmt.Errorf("missing name")
	}
	params, err := ParseParams(ms.Params)
	if err != nil {
		return nil, err
	}
	m := &Method{Name: ms.Name, Params: params, Singleton: ms.Singleton, Line: ms.Line}
	if ms.Body != "" {
		if m.Body, err = ParseBody(ms.Body, params); err != nil {
			return nil, err
		}
	}
	return m, nil
}
