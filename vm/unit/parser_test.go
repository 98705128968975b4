package unit

import (
	"strings"
	"testing"

	"github.com/chazu/garnet/vm"
)

func TestParseLiterals(t *testing.T) {
	tests := []struct {
		input string
		kind  Kind
	}{
		{"nil", KindNil},
		{"true", KindTrue},
		{"false", KindFalse},
		{"self", KindSelf},
		{"42", KindInt},
		{"1.5", KindFloat},
		{`"s"`, KindString},
		{":sym", KindSymbol},
		{"@x", KindIvar},
		{"$x", KindGvar},
		{"Foo::Bar", KindConst},
		{"::Foo", KindConst},
		{"helper", KindCall},
	}

	for _, tc := range tests {
		e, err := ParseExpr(tc.input)
		if err != nil {
			t.Errorf("ParseExpr(%q) error: %v", tc.input, err)
			continue
		}
		if e.Kind != tc.kind {
			t.Errorf("ParseExpr(%q).Kind = %v, want %v", tc.input, e.Kind, tc.kind)
		}
	}
}

func TestParseLocalsVersusCalls(t *testing.T) {
	params, err := ParseParams([]string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	e, err := ParseBody("(set y 1) x y z", params)
	if err != nil {
		t.Fatal(err)
	}
	if e.Kind != KindSeq || len(e.Args) != 4 {
		t.Fatalf("body = %v with %d forms, want do with 4", e.Kind, len(e.Args))
	}
	kinds := []Kind{KindAssign, KindLocal, KindLocal, KindCall}
	for i, want := range kinds {
		if got := e.Args[i].Kind; got != want {
			t.Errorf("form[%d].Kind = %v, want %v", i, got, want)
		}
	}
}

func TestParseSendWithBlock(t *testing.T) {
	e, err := ParseExpr(`(send (array 1 2) :map (block (x) (send x :* 2)))`)
	if err != nil {
		t.Fatal(err)
	}
	if e.Kind != KindSend || e.Text != "map" {
		t.Fatalf("got %v %q, want send map", e.Kind, e.Text)
	}
	if len(e.Args) != 1 {
		t.Errorf("args = %d, want receiver only", len(e.Args))
	}
	if e.Block == nil || e.Block.Kind != KindBlock {
		t.Fatalf("block = %v, want a block literal", e.Block)
	}
	if len(e.Block.Params) != 1 || e.Block.Params[0].Name != "x" {
		t.Errorf("block params = %v, want [x]", e.Block.Params)
	}
	inner := e.Block.Args[0]
	if inner.Args[0].Kind != KindLocal {
		t.Errorf("x inside block = %v, want local", inner.Args[0].Kind)
	}
}

func TestParseBlockPass(t *testing.T) {
	e, err := ParseExpr(`(call each (& :to_s))`)
	if err != nil {
		t.Fatal(err)
	}
	if e.Block == nil || e.Block.Kind != KindBlockPass {
		t.Errorf("block = %v, want &", e.Block)
	}
}

func TestParseBlockDefaultParam(t *testing.T) {
	e, err := ParseExpr(`(lambda (a (b 10)) (send a :+ b))`)
	if err != nil {
		t.Fatal(err)
	}
	if e.Kind != KindLambda {
		t.Fatalf("Kind = %v, want lambda", e.Kind)
	}
	if got := e.Params[1].Kind; got != vm.ParamOpt {
		t.Errorf("b kind = %v, want opt", got)
	}
	if Arity(e.Params) != -2 {
		t.Errorf("Arity = %d, want -2", Arity(e.Params))
	}
}

func TestParseIfDefaultsElse(t *testing.T) {
	e, err := ParseExpr(`(if true 1)`)
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Args) != 3 || e.Args[2].Kind != KindNil {
		t.Errorf("if = %v, want an implicit nil else", e.Args)
	}
}

func TestParseRescue(t *testing.T) {
	e, err := ParseExpr(`(rescue (call boom) (ArgumentError TypeError) err (send err :message))`)
	if err != nil {
		t.Fatal(err)
	}
	if e.Kind != KindRescue || e.Text != "err" {
		t.Fatalf("got %v binding %q", e.Kind, e.Text)
	}
	if n := len(e.Args[1].Args); n != 2 {
		t.Errorf("classes = %d, want 2", n)
	}
	if e.Args[2].Args[0].Kind != KindLocal {
		t.Errorf("err in handler = %v, want local", e.Args[2].Args[0].Kind)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"(send 1 :x", "unexpected end of input"},
		{"(send 1", "expected method name"},
		{")", "unexpected )"},
		{"(frob 1)", "unknown form frob"},
		{"(break)", "Invalid break"},
		{"(next 1)", "Invalid next"},
		{"(if)", "if takes a condition"},
		{"(set Foo 1)", "cannot assign to Foo"},
		{"(const-set foo 1)", "expected constant name"},
		{`"open`, "unterminated string"},
	}

	for _, tc := range tests {
		_, err := ParseExpr(tc.input)
		if err == nil {
			t.Errorf("ParseExpr(%q) succeeded, want error containing %q", tc.input, tc.want)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("ParseExpr(%q) error = %q, want it to contain %q", tc.input, err, tc.want)
		}
	}
}

func TestParseBreakInsideBlock(t *testing.T) {
	if _, err := ParseExpr(`(call each (block (x) (break x)))`); err != nil {
		t.Errorf("break inside block: %v", err)
	}
	if _, err := ParseExpr(`(lambda (x) (break x))`); err == nil {
		t.Error("break inside lambda body parsed, want Invalid break")
	}
}

func TestParseParams(t *testing.T) {
	params, err := ParseParams([]string{"a", "b=2", "*rest", "&blk"})
	if err != nil {
		t.Fatal(err)
	}
	kinds := []vm.ParamKind{vm.ParamReq, vm.ParamOpt, vm.ParamRest, vm.ParamBlock}
	for i, want := range kinds {
		if params[i].Kind != want {
			t.Errorf("params[%d].Kind = %v, want %v", i, params[i].Kind, want)
		}
	}
	if params[1].Default == nil || params[1].Default.Int != 2 {
		t.Errorf("default of b = %v, want 2", params[1].Default)
	}
	if got := Arity(params); got != -2 {
		t.Errorf("Arity = %d, want -2", got)
	}
}

func TestParseParamsErrors(t *testing.T) {
	bad := [][]string{
		{"a", "a"},
		{"*a", "*b"},
		{"*a", "b"},
		{"&blk", "b"},
		{"Bad"},
		{""},
	}
	for _, specs := range bad {
		if _, err := ParseParams(specs); err == nil {
			t.Errorf("ParseParams(%q) succeeded, want error", specs)
		}
	}
}
