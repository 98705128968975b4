package unit

import (
	"fmt"

	"github.com/chazu/garnet/vm"
)

// Kind identifies an expression node.
type Kind uint8

const (
	KindNil Kind = iota
	KindTrue
	KindFalse
	KindSelf
	KindInt
	KindFloat
	KindString
	KindSymbol
	KindLocal
	KindIvar
	KindGvar
	KindConst
	KindSend       // Args[0] receiver, Args[1:] arguments
	KindCall       // send to self
	KindSuper      // explicit arguments
	KindZSuper     // the current method's arguments
	KindYield      //
	KindBlockGiven //
	KindAssign     // Text names an ivar, gvar or local
	KindConstSet   //
	KindIf         // cond, then, else
	KindWhile      // Args[0] cond, Args[1:] body
	KindSeq        //
	KindArray      //
	KindBlock      // Params, Args body
	KindLambda     //
	KindBlockPass  // Args[0] converted with to_proc
	KindAnd        //
	KindOr         //
	KindNot        //
	KindRescue     // Args[0] body, Args[1] array of classes, Args[2:] handler; Text binds $!
	KindEnsure     // Args[0] body, Args[1:] cleanup
	KindBreak      //
	KindNext       //
	KindReturn     //
)

var kindNames = [...]string{
	KindNil:        "nil",
	KindTrue:       "true",
	KindFalse:      "false",
	KindSelf:       "self",
	KindInt:        "int",
	KindFloat:      "float",
	KindString:     "string",
	KindSymbol:     "symbol",
	KindLocal:      "local",
	KindIvar:       "ivar",
	KindGvar:       "gvar",
	KindConst:      "const",
	KindSend:       "send",
	KindCall:       "call",
	KindSuper:      "super",
	KindZSuper:     "zsuper",
	KindYield:      "yield",
	KindBlockGiven: "block-given?",
	KindAssign:     "set",
	KindConstSet:   "const-set",
	KindIf:         "if",
	KindWhile:      "while",
	KindSeq:        "do",
	KindArray:      "array",
	KindBlock:      "block",
	KindLambda:     "lambda",
	KindBlockPass:  "&",
	KindAnd:        "and",
	KindOr:         "or",
	KindNot:        "not",
	KindRescue:     "rescue",
	KindEnsure:     "ensure",
	KindBreak:      "break",
	KindNext:       "next",
	KindReturn:     "return",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Expr is one node of a method body.
type Expr struct {
	Kind   Kind    `cbor:"1,keyasint"`
	Int    int64   `cbor:"2,keyasint,omitempty"`
	Float  float64 `cbor:"3,keyasint,omitempty"`
	Text   string  `cbor:"4,keyasint,omitempty"`
	Args   []*Expr `cbor:"5,keyasint,omitempty"`
	Params []Param `cbor:"6,keyasint,omitempty"`
	Block  *Expr   `cbor:"7,keyasint,omitempty"`
	Line   int     `cbor:"8,keyasint,omitempty"`
}

// Param is a declared method or block parameter.
type Param struct {
	Kind    vm.ParamKind `cbor:"1,keyasint"`
	Name    string       `cbor:"2,keyasint"`
	Default *Expr        `cbor:"3,keyasint,omitempty"`
}

// Arity computes the arity of a parameter list: n for exactly n
// arguments, -(n+1) when optional or rest parameters follow n required
// ones.
func Arity(params []Param) int {
	req, variadic := 0, false
	for _, p := range params {
		switch p.Kind {
		case vm.ParamReq:
			req++
		case vm.ParamOpt, vm.ParamRest:
			variadic = true
		}
	}
	if variadic {
		return -(req + 1)
	}
	return req
}

func vmParams(params []Param) []vm.Param {
	out := make([]vm.Param, len(params))
	for i, p := range params {
		out[i] = vm.Param{Kind: p.Kind, Name: p.Name}
	}
	return out
}
