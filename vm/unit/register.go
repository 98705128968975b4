package unit

import (
	"context"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/garnet/vm"
)

var log = commonlog.GetLogger("garnet.unit")

// Register makes u available to require and load in machine. Running the
// unit applies, in order: its requires, its definitions, autoloads, stubs,
// using activations and finally its main body. A deferred unit runs its
// main body when the loader waits on it.
func Register(machine *vm.VM, u *Unit) {
	machine.RegisterUnit(u.Path, func(machine *vm.VM) (vm.Deferred, error) {
		return run(machine, u)
	})
}

// RegisterFile opens a unit in either form and registers it.
func RegisterFile(machine *vm.VM, path string) (*Unit, error) {
	u, err := Open(path)
	if err != nil {
		return nil, err
	}
	Register(machine, u)
	log.Debugf("registered %s from %s", u.Path, path)
	return u, nil
}

func run(machine *vm.VM, u *Unit) (vm.Deferred, error) {
	scope := vm.NewRefinementScope()
	top := &env{vm: machine, nesting: vm.NewNesting()}
	if len(u.Using) > 0 {
		top.scopes = []*vm.RefinementScope{scope}
	}

	for _, r := range u.Requires {
		if _, err := machine.Require(r); err != nil {
			return nil, err
		}
	}
	for _, d := range u.Defs {
		if err := define(machine, top, u.Path, d); err != nil {
			return nil, err
		}
	}
	for _, a := range u.Autoload {
		mod := machine.ObjectClass
		if a.Scope != "" {
			var err error
			if mod, err = resolveModule(machine, top.nesting, a.Scope); err != nil {
				return nil, err
			}
		}
		if err := machine.Autoload(mod, a.Name, a.Path); err != nil {
			return nil, err
		}
	}
	machine.AddStubs(u.Stubs...)
	for _, name := range u.Using {
		owner, err := resolveModule(machine, top.nesting, name)
		if err != nil {
			return nil, err
		}
		if err := machine.Using(scope, owner); err != nil {
			return nil, err
		}
	}

	if u.Main == nil {
		return nil, nil
	}
	main := compile(u.Main)
	if u.Deferred {
		log.Debugf("unit %s: main deferred", u.Path)
		return vm.DeferredFunc(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := top.run(main, machine.Main)
			return err
		}), nil
	}
	_, err := top.run(main, machine.Main)
	return nil, err
}

func resolveModule(machine *vm.VM, nesting *vm.Nesting, path string) (*vm.Module, error) {
	v, err := machine.ConstGetPath(nesting, path)
	if err != nil {
		return nil, err
	}
	mod, ok := v.(*vm.Module)
	if !ok {
		return nil, machine.Errorf(machine.TypeErrorClass, "%s is not a class/module", path)
	}
	return mod, nil
}

// open creates or reopens the module a definition applies to and returns
// the environment its bodies run in.
func open(machine *vm.VM, top *env, d *Def) (*vm.Module, *env, error) {
	var scope vm.Value = vm.Nil
	var owner *vm.Module
	if d.Scope != "" {
		var err error
		if owner, err = resolveModule(machine, top.nesting, d.Scope); err != nil {
			return nil, nil, err
		}
		scope = owner
	}

	var mod *vm.Module
	var err error
	nesting := top.nesting
	switch d.Kind {
	case DefClass:
		var super vm.Value = vm.Nil
		if d.Superclass != "" {
			if super, err = machine.ConstGetPath(top.nesting, d.Superclass); err != nil {
				return nil, nil, err
			}
		}
		mod, err = machine.DefineClass(scope, super, d.Name)
	case DefModule:
		mod, err = machine.DefineModule(scope, d.Name)
	case DefRefine:
		var target *vm.Module
		if target, err = resolveModule(machine, top.nesting, d.Name); err != nil {
			return nil, nil, err
		}
		nesting = nesting.Push(owner)
		mod, err = machine.Refine(owner, target)
	default:
		err = fmt.Errorf("unit: unknown definition kind %s", d.Kind)
	}
	if err != nil {
		return nil, nil, err
	}
	return mod, &env{vm: machine, nesting: nesting.Push(mod), scopes: top.scopes}, nil
}

func define(machine *vm.VM, top *env, file string, d *Def) error {
	mod, e, err := open(machine, top, d)
	if err != nil {
		return err
	}

	modules := func(names []string) ([]*vm.Module, error) {
		out := make([]*vm.Module, 0, len(names))
		for _, name := range names {
			m, err := resolveModule(machine, e.nesting, name)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	}
	if mods, err := modules(d.Include); err != nil {
		return err
	} else if err := machine.Include(mod, mods...); err != nil {
		return err
	}
	if mods, err := modules(d.Prepend); err != nil {
		return err
	} else if err := machine.Prepend(mod, mods...); err != nil {
		return err
	}
	if mods, err := modules(d.Extend); err != nil {
		return err
	} else if err := machine.Extend(mod, mods...); err != nil {
		return err
	}

	for _, b := range d.Constants {
		v, err := e.run(compile(b.Value), mod)
		if err != nil {
			return err
		}
		if _, err := machine.ConstSet(mod, b.Name, v); err != nil {
			return err
		}
	}
	for _, b := range d.ClassVars {
		v, err := e.run(compile(b.Value), mod)
		if err != nil {
			return err
		}
		if err := machine.ClassVarSet(mod, b.Name, v); err != nil {
			return err
		}
	}

	if err := machine.AttrReader(mod, d.AttrReader...); err != nil {
		return err
	}
	if err := machine.AttrWriter(mod, d.AttrWriter...); err != nil {
		return err
	}
	if err := machine.AttrAccessor(mod, d.AttrAccess...); err != nil {
		return err
	}

	for _, ms := range d.Methods {
		m := vm.NewMethod(ms.Name, Arity(ms.Params), e.methodBody(ms))
		m.Params = vmParams(ms.Params)
		if ms.Line > 0 {
			m.Source = &vm.SourceLocation{File: file, Line: ms.Line}
		}
		if ms.Singleton {
			err = machine.DefineSingletonMethod(mod, ms.Name, m)
		} else {
			err = machine.DefineMethod(mod, ms.Name, m)
		}
		if err != nil {
			return err
		}
	}

	for _, a := range d.Aliases {
		if err := machine.Alias(mod, a[0], a[1]); err != nil {
			return err
		}
	}
	if len(d.ModuleFunc) > 0 {
		if err := machine.ModuleFunction(mod, d.ModuleFunc...); err != nil {
			return err
		}
	}
	for _, name := range d.Undef {
		if err := machine.UndefMethod(mod, name); err != nil {
			return err
		}
	}
	for _, name := range d.Remove {
		if err := machine.RemoveMethod(mod, name); err != nil {
			return err
		}
	}

	if d.Body != nil {
		if _, err := e.run(compile(d.Body), mod); err != nil {
			return err
		}
	}
	return nil
}

// Invoke runs an entry point: "Const.method" sends method to the named
// class or module, a bare "method" sends it to main.
func Invoke(machine *vm.VM, target string, args ...vm.Value) (vm.Value, error) {
	var recv vm.Value = machine.Main
	name := target
	if i := strings.LastIndex(target, "."); i >= 0 {
		mod, err := resolveModule(machine, vm.NewNesting(), target[:i])
		if err != nil {
			return nil, err
		}
		recv, name = mod, target[i+1:]
	}
	if name == "" {
		return nil, machine.Errorf(machine.ArgumentErrorClass, "invalid entry point %q", target)
	}
	return machine.Send(recv, name, args...)
}

// Eval parses src as an expression sequence and runs it at the top level
// with self set to main.
func Eval(machine *vm.VM, src string) (vm.Value, error) {
	ex, err := ParseExpr(src)
	if err != nil {
		return nil, err
	}
	top := &env{vm: machine, nesting: vm.NewNesting()}
	return top.run(compile(ex), machine.Main)
}
