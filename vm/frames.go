package vm

import "fmt"

// Frame is one active method call.
type Frame struct {
	Method *Method
	Name   string
	Self   Value
}

func (vm *VM) popFrame() {
	vm.frames = vm.frames[:len(vm.frames)-1]
}

// Depth returns the number of active method frames.
func (vm *VM) Depth() int { return len(vm.frames) }

// Label renders the frame as "Owner#name" or "Owner.name" for singleton
// methods.
func (f Frame) Label() string {
	if f.Method == nil || f.Method.Owner == nil {
		return f.Name
	}
	owner := f.Method.Original().Owner
	if owner.IsSingleton() {
		if m, ok := owner.singletonOf.(*Module); ok && m.Name() != "" {
			return m.Name() + "." + f.Name
		}
		return f.Name
	}
	if owner.Name() == "" {
		return f.Name
	}
	return owner.Name() + "#" + f.Name
}

// Backtrace renders the active frames, innermost first, ending with
// "<main>".
func (vm *VM) Backtrace() []string {
	lines := make([]string, 0, len(vm.frames)+1)
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := vm.frames[i]
		src := "(garnet)"
		if s := f.Method.Original().Source; s != nil {
			src = s.String()
		}
		lines = append(lines, fmt.Sprintf("%s:in '%s'", src, f.Label()))
	}
	return append(lines, "<main>")
}
