package unit

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/chazu/garnet/vm"
)

// ---------------------------------------------------------------------------
// Parser: method bodies
// ---------------------------------------------------------------------------

// ParseError is a syntax error in a body.
type ParseError struct {
	Pos Position
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// scope tracks the locals visible while parsing. Blocks see the locals of
// the scopes around them.
type scope struct {
	names  map[string]bool
	parent *scope
	block  bool
}

func newScope(parent *scope, block bool) *scope {
	return &scope{names: make(map[string]bool), parent: parent, block: block}
}

func (s *scope) declare(name string) { s.names[name] = true }

func (s *scope) has(name string) bool {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.names[name] {
			return true
		}
	}
	return false
}

// Parser turns body text into expression trees.
type Parser struct {
	lexer   *Lexer
	cur     Token
	peek    Token
	scope   *scope
	lambdas int
}

// NewParser creates a parser over input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input), scope: newScope(nil, false)}
	p.next()
	p.next()
	return p
}

func (p *Parser) next() {
	p.cur = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) errorf(pos Position, format string, args ...any) error {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// ParseBody parses a method body whose parameters are params. Several
// top-level forms are evaluated in order.
func ParseBody(src string, params []Param) (*Expr, error) {
	p := NewParser(src)
	for _, prm := range params {
		p.scope.declare(prm.Name)
	}
	return p.parseSeq()
}

// ParseExpr parses a standalone expression such as a constant value.
func ParseExpr(src string) (*Expr, error) {
	return NewParser(src).parseSeq()
}

// ParseParams parses parameter specs: "x", "x=default", "*rest", "&blk".
func ParseParams(specs []string) ([]Param, error) {
	params := make([]Param, 0, len(specs))
	seen := make(map[string]bool)
	sawRest, sawBlock := false, false
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		prm := Param{Kind: vm.ParamReq, Name: spec}
		switch {
		case strings.HasPrefix(spec, "*"):
			prm.Kind, prm.Name = vm.ParamRest, spec[1:]
			if sawRest {
				return nil, fmt.Errorf("unit: more than one rest parameter")
			}
			sawRest = true
		case strings.HasPrefix(spec, "&"):
			prm.Kind, prm.Name = vm.ParamBlock, spec[1:]
			sawBlock = true
		case strings.Contains(spec, "="):
			name, def, _ := strings.Cut(spec, "=")
			expr, err := ParseExpr(def)
			if err != nil {
				return nil, fmt.Errorf("unit: default for %s: %w", name, err)
			}
			prm.Kind, prm.Name, prm.Default = vm.ParamOpt, strings.TrimSpace(name), expr
		default:
			if sawRest || sawBlock {
				return nil, fmt.Errorf("unit: required parameter %s after rest or block parameter", spec)
			}
		}
		if !validLocal(prm.Name) {
			return nil, fmt.Errorf("unit: invalid parameter name %q", prm.Name)
		}
		if seen[prm.Name] {
			return nil, fmt.Errorf("unit: duplicated parameter name %s", prm.Name)
		}
		seen[prm.Name] = true
		params = append(params, prm)
	}
	return params, nil
}

func validLocal(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) && (i > 0 || unicode.IsLower(r)) || i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

func (p *Parser) parseSeq() (*Expr, error) {
	seq := &Expr{Kind: KindSeq, Line: p.cur.Pos.Line}
	for p.cur.Type != TokenEOF {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		seq.Args = append(seq.Args, e)
	}
	if len(seq.Args) == 1 {
		return seq.Args[0], nil
	}
	return seq, nil
}

func (p *Parser) parseExpr() (*Expr, error) {
	tok := p.cur
	switch tok.Type {
	case TokenError:
		return nil, p.errorf(tok.Pos, "%s", tok.Literal)
	case TokenEOF:
		return nil, p.errorf(tok.Pos, "unexpected end of input")
	case TokenRParen:
		return nil, p.errorf(tok.Pos, "unexpected )")
	case TokenInteger:
		p.next()
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return nil, p.errorf(tok.Pos, "integer out of range: %s", tok.Literal)
		}
		return &Expr{Kind: KindInt, Int: n, Line: tok.Pos.Line}, nil
	case TokenFloat:
		p.next()
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, p.errorf(tok.Pos, "malformed float: %s", tok.Literal)
		}
		return &Expr{Kind: KindFloat, Float: f, Line: tok.Pos.Line}, nil
	case TokenString:
		p.next()
		return &Expr{Kind: KindString, Text: tok.Literal, Line: tok.Pos.Line}, nil
	case TokenSymbol:
		p.next()
		return &Expr{Kind: KindSymbol, Text: tok.Literal, Line: tok.Pos.Line}, nil
	case TokenIdent:
		p.next()
		return p.identifier(tok)
	}
	return p.parseForm()
}

// identifier classifies a bare word.
func (p *Parser) identifier(tok Token) (*Expr, error) {
	name := tok.Literal
	line := tok.Pos.Line
	switch {
	case name == "nil":
		return &Expr{Kind: KindNil, Line: line}, nil
	case name == "true":
		return &Expr{Kind: KindTrue, Line: line}, nil
	case name == "false":
		return &Expr{Kind: KindFalse, Line: line}, nil
	case name == "self":
		return &Expr{Kind: KindSelf, Line: line}, nil
	case strings.HasPrefix(name, "@"):
		return &Expr{Kind: KindIvar, Text: name, Line: line}, nil
	case strings.HasPrefix(name, "$"):
		return &Expr{Kind: KindGvar, Text: name, Line: line}, nil
	case isConstPath(name):
		return &Expr{Kind: KindConst, Text: name, Line: line}, nil
	case p.scope.has(name):
		return &Expr{Kind: KindLocal, Text: name, Line: line}, nil
	}
	// An unknown lowercase word is a call to self with no arguments.
	return &Expr{Kind: KindCall, Text: name, Line: line}, nil
}

func isConstPath(name string) bool {
	name = strings.TrimPrefix(name, "::")
	return name != "" && unicode.IsUpper([]rune(name)[0])
}

// parseForm parses a parenthesized form. The head word picks the form.
func (p *Parser) parseForm() (*Expr, error) {
	open := p.cur
	p.next()
	if p.cur.Type != TokenIdent {
		return nil, p.errorf(p.cur.Pos, "expected form name, got %s", p.cur.Type)
	}
	head := p.cur.Literal
	p.next()
	line := open.Pos.Line

	var e *Expr
	var err error
	switch head {
	case "send":
		e, err = p.parseSend(line)
	case "call":
		e, err = p.parseCall(line)
	case "super":
		e = &Expr{Kind: KindSuper, Line: line}
		e.Args, e.Block, err = p.parseArgs()
	case "zsuper":
		e = &Expr{Kind: KindZSuper, Line: line}
		_, e.Block, err = p.parseArgs()
	case "yield":
		e = &Expr{Kind: KindYield, Line: line}
		e.Args, err = p.parseRest()
	case "block-given?":
		e = &Expr{Kind: KindBlockGiven, Line: line}
	case "set":
		e, err = p.parseAssign(line)
	case "const-set":
		e, err = p.parseConstSet(line)
	case "if":
		e, err = p.parseIf(line)
	case "while":
		e = &Expr{Kind: KindWhile, Line: line}
		e.Args, err = p.parseRest()
		if err == nil && len(e.Args) == 0 {
			err = p.errorf(open.Pos, "while needs a condition")
		}
	case "do":
		e = &Expr{Kind: KindSeq, Line: line}
		e.Args, err = p.parseRest()
	case "array":
		e = &Expr{Kind: KindArray, Line: line}
		e.Args, err = p.parseRest()
	case "block", "lambda":
		e, err = p.parseBlock(head, line)
	case "&":
		e = &Expr{Kind: KindBlockPass, Line: line}
		e.Args, err = p.parseRest()
		if err == nil && len(e.Args) != 1 {
			err = p.errorf(open.Pos, "& takes one expression")
		}
	case "and", "or":
		kind := KindAnd
		if head == "or" {
			kind = KindOr
		}
		e = &Expr{Kind: kind, Line: line}
		e.Args, err = p.parseRest()
	case "not":
		e = &Expr{Kind: KindNot, Line: line}
		e.Args, err = p.parseRest()
		if err == nil && len(e.Args) != 1 {
			err = p.errorf(open.Pos, "not takes one expression")
		}
	case "rescue":
		e, err = p.parseRescue(line)
	case "ensure":
		e = &Expr{Kind: KindEnsure, Line: line}
		e.Args, err = p.parseRest()
		if err == nil && len(e.Args) < 1 {
			err = p.errorf(open.Pos, "ensure needs a body")
		}
	case "break", "next":
		if !p.scope.block {
			return nil, p.errorf(open.Pos, "Invalid %s", head)
		}
		kind := KindBreak
		if head == "next" {
			kind = KindNext
		}
		e = &Expr{Kind: kind, Line: line}
		e.Args, err = p.parseRest()
	case "return":
		e = &Expr{Kind: KindReturn, Line: line}
		e.Args, err = p.parseRest()
	default:
		return nil, p.errorf(open.Pos, "unknown form %s", head)
	}
	if err != nil {
		return nil, err
	}
	if e.Kind != KindBlock && e.Kind != KindLambda {
		if p.cur.Type != TokenRParen {
			return nil, p.errorf(p.cur.Pos, "expected ) to close %s", head)
		}
		p.next()
	}
	return e, nil
}

// parseRest parses expressions up to the closing paren, which it leaves.
func (p *Parser) parseRest() ([]*Expr, error) {
	var out []*Expr
	for p.cur.Type != TokenRParen {
		if p.cur.Type == TokenEOF {
			return nil, p.errorf(p.cur.Pos, "unexpected end of input, expected )")
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// parseArgs parses call arguments. A trailing block or & form becomes the
// call's block.
func (p *Parser) parseArgs() ([]*Expr, *Expr, error) {
	args, err := p.parseRest()
	if err != nil {
		return nil, nil, err
	}
	if n := len(args); n > 0 {
		switch args[n-1].Kind {
		case KindBlock, KindBlockPass:
			return args[:n-1], args[n-1], nil
		}
	}
	return args, nil, nil
}

func (p *Parser) methodName() (string, error) {
	tok := p.cur
	switch tok.Type {
	case TokenSymbol, TokenIdent:
		p.next()
		return tok.Literal, nil
	}
	return "", p.errorf(tok.Pos, "expected method name, got %s", tok.Type)
}

func (p *Parser) parseSend(line int) (*Expr, error) {
	recv, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	name, err := p.methodName()
	if err != nil {
		return nil, err
	}
	args, blk, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: KindSend, Text: name, Args: append([]*Expr{recv}, args...), Block: blk, Line: line}, nil
}

func (p *Parser) parseCall(line int) (*Expr, error) {
	name, err := p.methodName()
	if err != nil {
		return nil, err
	}
	args, blk, err := p.parseArgs()
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: KindCall, Text: name, Args: args, Block: blk, Line: line}, nil
}

func (p *Parser) parseAssign(line int) (*Expr, error) {
	tok := p.cur
	if tok.Type != TokenIdent {
		return nil, p.errorf(tok.Pos, "expected variable name, got %s", tok.Type)
	}
	name := tok.Literal
	p.next()
	switch {
	case strings.HasPrefix(name, "@"), strings.HasPrefix(name, "$"):
	case validLocal(name):
		p.scope.declare(name)
	default:
		return nil, p.errorf(tok.Pos, "cannot assign to %s", name)
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: KindAssign, Text: name, Args: []*Expr{value}, Line: line}, nil
}

func (p *Parser) parseConstSet(line int) (*Expr, error) {
	tok := p.cur
	if tok.Type != TokenIdent || !isConstPath(tok.Literal) || strings.Contains(tok.Literal, "::") {
		return nil, p.errorf(tok.Pos, "expected constant name")
	}
	p.next()
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: KindConstSet, Text: tok.Literal, Args: []*Expr{value}, Line: line}, nil
}

func (p *Parser) parseIf(line int) (*Expr, error) {
	args, err := p.parseRest()
	if err != nil {
		return nil, err
	}
	switch len(args) {
	case 2:
		args = append(args, &Expr{Kind: KindNil, Line: line})
	case 3:
	default:
		return nil, p.errorf(p.cur.Pos, "if takes a condition, a branch and an optional else branch")
	}
	return &Expr{Kind: KindIf, Args: args, Line: line}, nil
}

// parseBlock parses "(block (params...) body...)". Blocks open a scope
// that sees the enclosing locals. The closing paren is consumed here.
func (p *Parser) parseBlock(head string, line int) (*Expr, error) {
	if p.cur.Type != TokenLParen {
		return nil, p.errorf(p.cur.Pos, "%s needs a parameter list", head)
	}
	p.next()
	var specs []string
	var defaults []*Expr
	for p.cur.Type != TokenRParen {
		switch p.cur.Type {
		case TokenIdent:
			specs = append(specs, p.cur.Literal)
			defaults = append(defaults, nil)
			p.next()
		case TokenLParen:
			// (name default)
			p.next()
			if p.cur.Type != TokenIdent {
				return nil, p.errorf(p.cur.Pos, "expected parameter name")
			}
			name := p.cur.Literal
			p.next()
			def, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if p.cur.Type != TokenRParen {
				return nil, p.errorf(p.cur.Pos, "expected ) after default value")
			}
			p.next()
			specs = append(specs, name)
			defaults = append(defaults, def)
		default:
			return nil, p.errorf(p.cur.Pos, "unexpected %s in parameter list", p.cur.Type)
		}
	}
	p.next()
	params, err := ParseParams(specs)
	if err != nil {
		return nil, err
	}
	for i, d := range defaults {
		if d != nil {
			params[i].Kind, params[i].Default = vm.ParamOpt, d
		}
	}

	outer := p.scope
	p.scope = newScope(outer, head == "block")
	defer func() { p.scope = outer }()
	for _, prm := range params {
		p.scope.declare(prm.Name)
	}
	body, err := p.parseRest()
	if err != nil {
		return nil, err
	}
	p.next()
	kind := KindBlock
	if head == "lambda" {
		kind = KindLambda
	}
	return &Expr{Kind: kind, Params: params, Args: body, Line: line}, nil
}

// parseRescue parses "(rescue body (Class...) var handler...)". var may
// be _ to leave the exception unbound.
func (p *Parser) parseRescue(line int) (*Expr, error) {
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur.Type != TokenLParen {
		return nil, p.errorf(p.cur.Pos, "rescue needs a class list")
	}
	p.next()
	classes := &Expr{Kind: KindArray, Line: line}
	if classes.Args, err = p.parseRest(); err != nil {
		return nil, err
	}
	p.next()
	if p.cur.Type != TokenIdent {
		return nil, p.errorf(p.cur.Pos, "rescue needs a variable name or _")
	}
	name := p.cur.Literal
	p.next()
	if name != "_" {
		if !validLocal(name) {
			return nil, p.errorf(p.cur.Pos, "invalid rescue variable %s", name)
		}
		p.scope.declare(name)
	} else {
		name = ""
	}
	handler, err := p.parseRest()
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: KindRescue, Text: name, Args: append([]*Expr{body, classes}, handler...), Line: line}, nil
}
