package unit

import (
	"strconv"
	"strings"

	"github.com/chazu/garnet/vm"
)

// ---------------------------------------------------------------------------
// Evaluation
// ---------------------------------------------------------------------------

// Expression trees are compiled once into closures. Each send keeps its
// own call site, so repeated calls hit the inline cache.

type node func(f *frame) (vm.Value, error)

// env is what every body compiled from one definition shares.
type env struct {
	vm      *vm.VM
	nesting *vm.Nesting
	scopes  []*vm.RefinementScope
}

// frame is one activation of a method body, block or top-level body.
// Blocks chain to the frame they were created in.
type frame struct {
	env    *env
	self   vm.Value
	call   *vm.Call
	block  *vm.Proc
	locals map[string]vm.Value
	parent *frame

	ret *vm.Thrower
	brk *vm.Thrower
	nxt *vm.Thrower
}

func (f *frame) lookup(name string) (vm.Value, bool) {
	for fr := f; fr != nil; fr = fr.parent {
		if v, ok := fr.locals[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// assign updates name where it is already bound, or binds it here.
func (f *frame) assign(name string, v vm.Value) {
	for fr := f; fr != nil; fr = fr.parent {
		if _, ok := fr.locals[name]; ok {
			fr.locals[name] = v
			return
		}
	}
	f.locals[name] = v
}

// cref is the module class variables and constant assignments refer to.
func (f *frame) cref() *vm.Module {
	if m := f.env.nesting.Cref(); m != nil {
		return m
	}
	return f.env.vm.ObjectClass
}

func (f *frame) send(site *vm.CallSite, recv vm.Value, blk *vm.Proc, args []vm.Value) (vm.Value, error) {
	if len(f.env.scopes) > 0 {
		return f.env.vm.RefinedSend(f.env.scopes, recv, site.Name, blk, args...)
	}
	return site.Send(f.env.vm, recv, blk, args...)
}

// run evaluates a compiled top-level body with self.
func (e *env) run(n node, self vm.Value) (vm.Value, error) {
	f := &frame{env: e, self: self, locals: make(map[string]vm.Value)}
	return n(f)
}

// ---------------------------------------------------------------------------
// Compiler
// ---------------------------------------------------------------------------

func compile(e *Expr) node {
	if e == nil {
		return func(*frame) (vm.Value, error) { return vm.Nil, nil }
	}
	switch e.Kind {
	case KindNil:
		return constant(vm.Nil)
	case KindTrue:
		return constant(vm.True)
	case KindFalse:
		return constant(vm.False)
	case KindInt:
		return constant(vm.Int(e.Int))
	case KindFloat:
		return constant(vm.Float(e.Float))
	case KindSymbol:
		return constant(vm.Symbol(e.Text))
	case KindSelf:
		return func(f *frame) (vm.Value, error) { return f.self, nil }
	case KindString:
		text := e.Text
		return func(f *frame) (vm.Value, error) { return f.env.vm.Str(text), nil }
	case KindLocal:
		name := e.Text
		return func(f *frame) (vm.Value, error) {
			if v, ok := f.lookup(name); ok {
				return v, nil
			}
			return vm.Nil, nil
		}
	case KindIvar:
		return compileIvar(e.Text)
	case KindGvar:
		name := e.Text
		return func(f *frame) (vm.Value, error) { return f.env.vm.GlobalGet(name), nil }
	case KindConst:
		path := e.Text
		return func(f *frame) (vm.Value, error) { return f.env.vm.ConstGetPath(f.env.nesting, path) }
	case KindSend:
		return compileSend(e.Text, compile(e.Args[0]), compileAll(e.Args[1:]), e.Block)
	case KindCall:
		self := func(f *frame) (vm.Value, error) { return f.self, nil }
		return compileSend(e.Text, self, compileAll(e.Args), e.Block)
	case KindSuper:
		return compileSuper(compileAll(e.Args), e.Block, false)
	case KindZSuper:
		return compileSuper(nil, e.Block, true)
	case KindYield:
		return compileYield(compileAll(e.Args))
	case KindBlockGiven:
		return func(f *frame) (vm.Value, error) { return vm.FromBool(f.block != nil), nil }
	case KindAssign:
		return compileAssign(e.Text, compile(e.Args[0]))
	case KindConstSet:
		name, value := e.Text, compile(e.Args[0])
		return func(f *frame) (vm.Value, error) {
			v, err := value(f)
			if err != nil {
				return nil, err
			}
			return f.env.vm.ConstSet(f.cref(), name, v)
		}
	case KindIf:
		return compileIf(compile(e.Args[0]), compile(e.Args[1]), compile(e.Args[2]))
	case KindWhile:
		return compileWhile(compile(e.Args[0]), compileSeq(e.Args[1:]))
	case KindSeq:
		return compileSeq(e.Args)
	case KindArray:
		elems := compileAll(e.Args)
		return func(f *frame) (vm.Value, error) {
			vals, err := evalAll(f, elems)
			if err != nil {
				return nil, err
			}
			return f.env.vm.NewArray(vals...), nil
		}
	case KindBlock, KindLambda:
		lit := compileBlock(e)
		return func(f *frame) (vm.Value, error) { return lit(f, nil), nil }
	case KindBlockPass:
		value := compile(e.Args[0])
		return func(f *frame) (vm.Value, error) {
			p, err := blockArg(f, value)
			if err != nil || p == nil {
				return vm.Nil, err
			}
			return p, nil
		}
	case KindAnd:
		return compileLogic(compileAll(e.Args), true)
	case KindOr:
		return compileLogic(compileAll(e.Args), false)
	case KindNot:
		operand := compile(e.Args[0])
		return func(f *frame) (vm.Value, error) {
			v, err := operand(f)
			if err != nil {
				return nil, err
			}
			return vm.FromBool(!vm.Truthy(v)), nil
		}
	case KindRescue:
		return compileRescue(e)
	case KindEnsure:
		return compileEnsure(compile(e.Args[0]), compileSeq(e.Args[1:]))
	case KindBreak, KindNext, KindReturn:
		return compileJump(e.Kind, compileAll(e.Args))
	}
	kind := e.Kind
	return func(f *frame) (vm.Value, error) {
		return nil, f.env.vm.Errorf(f.env.vm.RuntimeErrorClass, "cannot evaluate %s", kind)
	}
}

func constant(v vm.Value) node {
	return func(*frame) (vm.Value, error) { return v, nil }
}

func compileAll(exprs []*Expr) []node {
	out := make([]node, len(exprs))
	for i, e := range exprs {
		out[i] = compile(e)
	}
	return out
}

func evalAll(f *frame, nodes []node) ([]vm.Value, error) {
	vals := make([]vm.Value, len(nodes))
	for i, n := range nodes {
		v, err := n(f)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func compileSeq(exprs []*Expr) node {
	nodes := compileAll(exprs)
	return func(f *frame) (vm.Value, error) {
		var result vm.Value = vm.Nil
		for _, n := range nodes {
			v, err := n(f)
			if err != nil {
				return nil, err
			}
			result = v
		}
		return result, nil
	}
}

func compileIvar(name string) node {
	if strings.HasPrefix(name, "@@") {
		return func(f *frame) (vm.Value, error) { return f.env.vm.ClassVarGet(f.cref(), name) }
	}
	return func(f *frame) (vm.Value, error) { return f.env.vm.IvarGet(f.self, name), nil }
}

func compileAssign(name string, value node) node {
	return func(f *frame) (vm.Value, error) {
		v, err := value(f)
		if err != nil {
			return nil, err
		}
		machine := f.env.vm
		switch {
		case strings.HasPrefix(name, "@@"):
			err = machine.ClassVarSet(f.cref(), name, v)
		case strings.HasPrefix(name, "@"):
			err = machine.IvarSet(f.self, name, v)
		case strings.HasPrefix(name, "$"):
			machine.GlobalSet(name, v)
		default:
			f.assign(name, v)
		}
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

func compileIf(cond, then, els node) node {
	return func(f *frame) (vm.Value, error) {
		c, err := cond(f)
		if err != nil {
			return nil, err
		}
		if vm.Truthy(c) {
			return then(f)
		}
		return els(f)
	}
}

func compileWhile(cond, body node) node {
	return func(f *frame) (vm.Value, error) {
		for {
			c, err := cond(f)
			if err != nil {
				return nil, err
			}
			if !vm.Truthy(c) {
				return vm.Nil, nil
			}
			if _, err := body(f); err != nil {
				return nil, err
			}
		}
	}
}

// compileLogic builds and/or. Both return the last value they looked at.
func compileLogic(operands []node, and bool) node {
	return func(f *frame) (vm.Value, error) {
		var result vm.Value = vm.FromBool(and)
		if !and {
			result = vm.Nil
		}
		for _, n := range operands {
			v, err := n(f)
			if err != nil {
				return nil, err
			}
			result = v
			if vm.Truthy(v) != and {
				break
			}
		}
		return result, nil
	}
}

// ---------------------------------------------------------------------------
// Sends, super and yield
// ---------------------------------------------------------------------------

// withBlock evaluates a send's block argument and runs send with it. A
// literal block gets a break token scoped to the send.
func withBlock(blockExpr *Expr) func(f *frame, send func(blk *vm.Proc) (vm.Value, error)) (vm.Value, error) {
	if blockExpr == nil {
		return func(f *frame, send func(*vm.Proc) (vm.Value, error)) (vm.Value, error) {
			return send(nil)
		}
	}
	if blockExpr.Kind == KindBlockPass {
		value := compile(blockExpr.Args[0])
		return func(f *frame, send func(*vm.Proc) (vm.Value, error)) (vm.Value, error) {
			p, err := blockArg(f, value)
			if err != nil {
				return nil, err
			}
			return send(p)
		}
	}
	lit := compileBlock(blockExpr)
	return func(f *frame, send func(*vm.Proc) (vm.Value, error)) (vm.Value, error) {
		return f.env.vm.WithThrower("break", func(t *vm.Thrower) (vm.Value, error) {
			return send(lit(f, t))
		})
	}
}

// blockArg converts the operand of & into a block. nil passes no block;
// anything else must answer to_proc with a Proc.
func blockArg(f *frame, value node) (*vm.Proc, error) {
	v, err := value(f)
	if err != nil {
		return nil, err
	}
	machine := f.env.vm
	switch x := v.(type) {
	case *vm.Proc:
		return x, nil
	}
	if vm.IsNil(v) {
		return nil, nil
	}
	if ok, err := machine.RespondTo(v, "to_proc", true); err != nil {
		return nil, err
	} else if ok {
		converted, err := machine.Send(v, "to_proc")
		if err != nil {
			return nil, err
		}
		if p, ok := converted.(*vm.Proc); ok {
			return p, nil
		}
	}
	return nil, machine.Errorf(machine.TypeErrorClass, "wrong argument type %s (expected Proc)", machine.ClassOf(v).Name())
}

func compileSend(name string, recv node, args []node, blockExpr *Expr) node {
	site := vm.NewCallSite(name)
	block := withBlock(blockExpr)
	return func(f *frame) (vm.Value, error) {
		r, err := recv(f)
		if err != nil {
			return nil, err
		}
		vals, err := evalAll(f, args)
		if err != nil {
			return nil, err
		}
		return block(f, func(blk *vm.Proc) (vm.Value, error) {
			return f.send(site, r, blk, vals)
		})
	}
}

// compileSuper builds super and zsuper. Without an explicit block the
// current block is passed along.
func compileSuper(args []node, blockExpr *Expr, implicit bool) node {
	block := withBlock(blockExpr)
	return func(f *frame) (vm.Value, error) {
		machine := f.env.vm
		if f.call == nil || f.call.Method == nil {
			return nil, machine.Errorf(machine.RuntimeErrorClass, "super called outside of method")
		}
		vals := f.call.Args
		if !implicit {
			var err error
			if vals, err = evalAll(f, args); err != nil {
				return nil, err
			}
		}
		call := f.call
		if blockExpr == nil {
			return call.SuperBlock(f.block, vals...)
		}
		return block(f, func(blk *vm.Proc) (vm.Value, error) {
			return call.SuperBlock(blk, vals...)
		})
	}
}

func compileYield(args []node) node {
	return func(f *frame) (vm.Value, error) {
		machine := f.env.vm
		if f.block == nil {
			return nil, machine.Errorf(machine.LocalJumpErrorClass, "no block given (yield)")
		}
		vals, err := evalAll(f, args)
		if err != nil {
			return nil, err
		}
		return machine.CallProc(f.block, vals...)
	}
}

// ---------------------------------------------------------------------------
// Blocks and parameters
// ---------------------------------------------------------------------------

type param struct {
	kind vm.ParamKind
	name string
	def  node
}

func compileParams(params []Param) []param {
	out := make([]param, len(params))
	for i, p := range params {
		out[i] = param{kind: p.Kind, name: p.Name}
		if p.Default != nil {
			out[i].def = compile(p.Default)
		}
	}
	return out
}

// bind assigns arguments to parameters in f. Strict binding (methods and
// lambdas) rejects a wrong argument count; loose binding (procs) spreads a
// lone array, pads with nil and drops extras.
func (f *frame) bind(params []param, args []vm.Value, blk *vm.Proc, strict bool) error {
	machine := f.env.vm
	req, opt, rest := 0, 0, false
	for _, p := range params {
		switch p.kind {
		case vm.ParamReq:
			req++
		case vm.ParamOpt:
			opt++
		case vm.ParamRest:
			rest = true
		}
	}
	if strict {
		if len(args) < req || !rest && len(args) > req+opt {
			return machine.Errorf(machine.ArgumentErrorClass, "wrong number of arguments (given %d, expected %s)",
				len(args), expectedArgs(req, opt, rest))
		}
	} else if len(args) == 1 && (req+opt > 1 || rest && req+opt > 0) {
		if arr, ok := args[0].(*vm.Array); ok {
			args = arr.Elems()
		}
	}

	optFill := min(opt, max(0, len(args)-req))
	restCount := max(0, len(args)-req-optFill)
	i := 0
	next := func() vm.Value {
		if i < len(args) {
			i++
			return args[i-1]
		}
		return vm.Nil
	}
	for _, p := range params {
		var v vm.Value
		switch p.kind {
		case vm.ParamReq:
			v = next()
		case vm.ParamOpt:
			if optFill > 0 {
				optFill--
				v = next()
			} else if p.def != nil {
				var err error
				if v, err = p.def(f); err != nil {
					return err
				}
			} else {
				v = vm.Nil
			}
		case vm.ParamRest:
			end := min(i+restCount, len(args))
			v = machine.NewArray(args[i:end]...)
			i = end
		case vm.ParamBlock:
			if blk != nil {
				v = blk
			} else {
				v = vm.Nil
			}
		}
		f.locals[p.name] = v
	}
	return nil
}

func expectedArgs(req, opt int, rest bool) string {
	switch {
	case rest:
		return strconv.Itoa(req) + "+"
	case opt > 0:
		return strconv.Itoa(req) + ".." + strconv.Itoa(req+opt)
	}
	return strconv.Itoa(req)
}

// compileBlock compiles a block or lambda literal. The result creates the
// Proc in a frame; brk is the break token of the send the block was
// passed to, or nil for a block used as a value.
func compileBlock(e *Expr) func(f *frame, brk *vm.Thrower) *vm.Proc {
	params := compileParams(e.Params)
	arity := Arity(e.Params)
	body := compileSeq(e.Args)
	lambda := e.Kind == KindLambda
	return func(f *frame, brk *vm.Thrower) *vm.Proc {
		fn := func(c *vm.Call) (vm.Value, error) {
			// A block run by define_method belongs to that method.
			call := f.call
			if c.Method != nil && (call == nil || c.Method != call.Method) {
				call = c
			}
			bf := &frame{
				env:    f.env,
				self:   c.Self,
				call:   call,
				block:  f.block,
				locals: make(map[string]vm.Value),
				parent: f,
				ret:    f.ret,
				brk:    brk,
			}
			if lambda {
				return c.VM.WithThrower("return", func(t *vm.Thrower) (vm.Value, error) {
					bf.ret, bf.brk = t, t
					return bf.runBlock(params, body, c, true)
				})
			}
			return bf.runBlock(params, body, c, false)
		}
		if lambda {
			return f.env.vm.NewLambda(f.self, arity, fn)
		}
		if f.call != nil {
			return f.call.NewBlock(arity, fn)
		}
		return f.env.vm.NewProc(f.self, arity, fn)
	}
}

func (f *frame) runBlock(params []param, body node, c *vm.Call, strict bool) (vm.Value, error) {
	return c.VM.WithThrower("next", func(t *vm.Thrower) (vm.Value, error) {
		f.nxt = t
		if err := f.bind(params, c.Args, c.Block, strict); err != nil {
			return nil, err
		}
		return body(f)
	})
}

// methodBody turns a compiled method into a runtime method body.
func (e *env) methodBody(m *Method) vm.Func {
	params := compileParams(m.Params)
	body := compile(m.Body)
	return func(c *vm.Call) (vm.Value, error) {
		return c.VM.WithThrower("return", func(t *vm.Thrower) (vm.Value, error) {
			f := &frame{
				env:    e,
				self:   c.Self,
				call:   c,
				block:  c.Block,
				locals: make(map[string]vm.Value),
				ret:    t,
			}
			if err := f.bind(params, c.Args, c.Block, true); err != nil {
				return nil, err
			}
			return body(f)
		})
	}
}

// ---------------------------------------------------------------------------
// Exceptions and jumps
// ---------------------------------------------------------------------------

func compileRescue(e *Expr) node {
	body := compile(e.Args[0])
	classes := compileAll(e.Args[1].Args)
	handler := compileSeq(e.Args[2:])
	name := e.Text
	return func(f *frame) (vm.Value, error) {
		v, err := body(f)
		if err == nil {
			return v, nil
		}
		if vm.IsSignal(err) {
			return nil, err
		}
		machine := f.env.vm
		candidates, cerr := evalAll(f, classes)
		if cerr != nil {
			return nil, cerr
		}
		return machine.Rescue(err, candidates, func(exc *vm.Exception) (vm.Value, error) {
			if name != "" {
				f.assign(name, exc)
			}
			return handler(f)
		})
	}
}

func compileEnsure(body, cleanup node) node {
	return func(f *frame) (vm.Value, error) {
		return f.env.vm.Ensure(
			func() (vm.Value, error) { return body(f) },
			func() error {
				_, err := cleanup(f)
				return err
			})
	}
}

func compileJump(kind Kind, args []node) node {
	return func(f *frame) (vm.Value, error) {
		vals, err := evalAll(f, args)
		if err != nil {
			return nil, err
		}
		var v vm.Value = vm.Nil
		switch len(vals) {
		case 0:
		case 1:
			v = vals[0]
		default:
			v = f.env.vm.NewArray(vals...)
		}
		machine := f.env.vm
		var t *vm.Thrower
		switch kind {
		case KindBreak:
			if t = f.brk; t == nil {
				return nil, machine.Errorf(machine.LocalJumpErrorClass, "break from proc-closure")
			}
		case KindNext:
			t = f.nxt
		case KindReturn:
			if t = f.ret; t == nil {
				return nil, machine.Errorf(machine.LocalJumpErrorClass, "unexpected return")
			}
		}
		return nil, t.Throw(v)
	}
}
