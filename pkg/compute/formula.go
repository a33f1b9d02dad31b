package compute

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/integrid/integrid/pkg/types"
)

// Formula is a compiled arithmetic expression in one variable x.
//
// The accepted language is deliberately tiny: numeric literals, the variable
// x, the operators + - * / ^, unary minus, parentheses, and calls to a fixed
// set of allowed functions. There is no way to express anything else, so a
// formula received off the wire can never execute code.
type Formula struct {
	src  string
	root node
}

// allowedFuncs is the complete call whitelist. Every function reports a
// domain fault through types.ErrMathDomain instead of returning NaN.
var allowedFuncs = map[string]func(float64) (float64, error){
	"sqrt": func(v float64) (float64, error) {
		if v < 0 {
			return 0, fmt.Errorf("sqrt of negative %g: %w", v, types.ErrMathDomain)
		}
		return math.Sqrt(v), nil
	},
}

// Compile parses src into a Formula. Anything outside the whitelisted
// grammar is a *ParseError.
func Compile(src string) (*Formula, error) {
	p := &parser{src: src}
	p.next()
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errorf("unexpected %q", p.tok.text)
	}
	return &Formula{src: src, root: root}, nil
}

// Source returns the original formula text.
func (f *Formula) Source() string { return f.src }

// Eval computes the formula at x. A division by zero, a whitelisted function
// applied outside its domain, or a non-finite intermediate result is
// reported as a types.ErrMathDomain fault.
func (f *Formula) Eval(x float64) (float64, error) {
	v, err := f.root.eval(x)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("formula is not finite at x=%g: %w", x, types.ErrMathDomain)
	}
	return v, nil
}

// ParseError reports where a formula stopped being parseable.
type ParseError struct {
	Src    string
	Pos    int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse formula %q at position %d: %s", e.Src, e.Pos, e.Reason)
}

// ---- AST ----

type node interface {
	eval(x float64) (float64, error)
}

type numNode float64

func (n numNode) eval(float64) (float64, error) { return float64(n), nil }

type varNode struct{}

func (varNode) eval(x float64) (float64, error) { return x, nil }

type negNode struct{ child node }

func (n negNode) eval(x float64) (float64, error) {
	v, err := n.child.eval(x)
	return -v, err
}

type binNode struct {
	op    byte // one of + - * / ^
	left  node
	right node
}

func (n binNode) eval(x float64) (float64, error) {
	l, err := n.left.eval(x)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(x)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		if r == 0 {
			return 0, fmt.Errorf("division by zero at x=%g: %w", x, types.ErrMathDomain)
		}
		return l / r, nil
	case '^':
		v := math.Pow(l, r)
		if math.IsNaN(v) {
			return 0, fmt.Errorf("%g^%g undefined: %w", l, r, types.ErrMathDomain)
		}
		return v, nil
	}
	return 0, fmt.Errorf("unknown operator %q", n.op)
}

type callNode struct {
	name string
	fn   func(float64) (float64, error)
	arg  node
}

func (n callNode) eval(x float64) (float64, error) {
	v, err := n.arg.eval(x)
	if err != nil {
		return 0, err
	}
	return n.fn(v)
}

// ---- lexer ----

type tokKind int

const (
	tokEOF tokKind = iota
	tokNumber
	tokIdent
	tokOp // + - * / ^ ( )
)

type token struct {
	kind tokKind
	text string
	pos  int
	num  float64
}

// ---- parser ----
//
// Grammar, lowest to highest precedence, with ^ right-associative and
// binding tighter than unary minus (so -x^2 is -(x^2)):
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = "-" unary | power
//	power   = primary [ "^" unary ]
//	primary = number | "x" | ident "(" expr ")" | "(" expr ")"
type parser struct {
	src string
	off int
	tok token
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Src: p.src, Pos: p.tok.pos, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) next() {
	for p.off < len(p.src) && (p.src[p.off] == ' ' || p.src[p.off] == '\t') {
		p.off++
	}
	if p.off >= len(p.src) {
		p.tok = token{kind: tokEOF, pos: p.off}
		return
	}

	start := p.off
	ch := p.src[p.off]
	switch {
	case strings.IndexByte("+-*/^()", ch) >= 0:
		p.off++
		p.tok = token{kind: tokOp, text: string(ch), pos: start}
	case ch >= '0' && ch <= '9' || ch == '.':
		for p.off < len(p.src) && (p.src[p.off] >= '0' && p.src[p.off] <= '9' || p.src[p.off] == '.') {
			p.off++
		}
		text := p.src[start:p.off]
		num, err := strconv.ParseFloat(text, 64)
		if err != nil {
			p.tok = token{kind: tokEOF, text: text, pos: start}
			p.tok.kind = tokOp // force a parse error at this token
			return
		}
		p.tok = token{kind: tokNumber, text: text, pos: start, num: num}
	case unicode.IsLetter(rune(ch)):
		for p.off < len(p.src) && unicode.IsLetter(rune(p.src[p.off])) {
			p.off++
		}
		p.tok = token{kind: tokIdent, text: p.src[start:p.off], pos: start}
	default:
		p.off++
		p.tok = token{kind: tokOp, text: string(ch), pos: start}
	}
}

func (p *parser) accept(op string) bool {
	if p.tok.kind == tokOp && p.tok.text == op {
		p.next()
		return true
	}
	return false
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		var op byte
		switch {
		case p.accept("+"):
			op = '+'
		case p.accept("-"):
			op = '-'
		default:
			return left, nil
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op byte
		switch {
		case p.accept("*"):
			op = '*'
		case p.accept("/"):
			op = '/'
		default:
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.accept("-") {
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negNode{child: child}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.accept("^") {
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return binNode{op: '^', left: base, right: exp}, nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (node, error) {
	switch p.tok.kind {
	case tokNumber:
		n := numNode(p.tok.num)
		p.next()
		return n, nil

	case tokIdent:
		name := p.tok.text
		p.next()
		if name == "x" {
			return varNode{}, nil
		}
		fn, ok := allowedFuncs[name]
		if !ok {
			return nil, p.errorf("unknown identifier %q", name)
		}
		if !p.accept("(") {
			return nil, p.errorf("expected ( after %q", name)
		}
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if !p.accept(")") {
			return nil, p.errorf("expected ) to close %s call", name)
		}
		return callNode{name: name, fn: fn, arg: arg}, nil

	case tokOp:
		if p.accept("(") {
			inner, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if !p.accept(")") {
				return nil, p.errorf("expected )")
			}
			return inner, nil
		}
	}
	return nil, p.errorf("expected number, x, function call or parenthesized expression")
}
