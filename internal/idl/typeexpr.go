package idl

import (
	"fmt"
	"strconv"
	"unicode"

	"github.com/roach88/cdrgen/descriptor"
)

// ExprReason classifies a type-expression error.
type ExprReason int

const (
	ReasonSyntax ExprReason = iota
	ReasonUnknownPrimitive
)

// ExprError reports a malformed type expression.
type ExprError struct {
	Expr    string
	Offset  int
	Reason  ExprReason
	Message string
}

func (e *ExprError) Error() string {
	return fmt.Sprintf("type %q at offset %d: %s", e.Expr, e.Offset, e.Message)
}

var keywordPrimitives = map[string]descriptor.Kind{
	"boolean": descriptor.KindBool,
	"char":    descriptor.KindChar,
	"octet":   descriptor.KindOctet,
	"int8":    descriptor.KindInt8,
	"uint8":   descriptor.KindUint8,
	"short":   descriptor.KindInt16,
	"int16":   descriptor.KindInt16,
	"uint16":  descriptor.KindUint16,
	"int32":   descriptor.KindInt32,
	"uint32":  descriptor.KindUint32,
	"int64":   descriptor.KindInt64,
	"uint64":  descriptor.KindUint64,
	"float":   descriptor.KindFloat32,
	"double":  descriptor.KindFloat64,
}

// IDL primitives the backend has no wire mapping for.
var unsupportedPrimitives = map[string]bool{
	"wchar":     true,
	"wstring":   true,
	"fixed":     true,
	"any":       true,
	"Object":    true,
	"ValueBase": true,
}

type exprToken struct {
	text string
	off  int
}

// ParseTypeExpr parses an IDL type expression such as "unsigned long",
// "string<128>", "sequence<a::P, 10>" or "::a::b::T". Scoped names become
// unresolved Ref nodes.
func ParseTypeExpr(expr string) (*TypeNode, error) {
	toks, err := scanExpr(expr)
	if err != nil {
		return nil, err
	}
	p := &exprParser{expr: expr, toks: toks}
	n, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, p.errorf(ReasonSyntax, "unexpected %q", p.peek().text)
	}
	return n, nil
}

func scanExpr(expr string) ([]exprToken, error) {
	var toks []exprToken
	for i := 0; i < len(expr); {
		c := rune(expr[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '<' || c == '>' || c == ',':
			toks = append(toks, exprToken{string(c), i})
			i++
		case c == ':':
			if i+1 >= len(expr) || expr[i+1] != ':' {
				return nil, &ExprError{Expr: expr, Offset: i, Message: "expected \"::\""}
			}
			toks = append(toks, exprToken{"::", i})
			i += 2
		case c == '-' || (c >= '0' && c <= '9'):
			j := i + 1
			for j < len(expr) && expr[j] >= '0' && expr[j] <= '9' {
				j++
			}
			toks = append(toks, exprToken{expr[i:j], i})
			i = j
		case c == '_' || unicode.IsLetter(c):
			j := i + 1
			for j < len(expr) && (expr[j] == '_' || unicode.IsLetter(rune(expr[j])) || unicode.IsDigit(rune(expr[j]))) {
				j++
			}
			toks = append(toks, exprToken{expr[i:j], i})
			i = j
		default:
			return nil, &ExprError{Expr: expr, Offset: i, Message: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	if len(toks) == 0 {
		return nil, &ExprError{Expr: expr, Message: "empty type"}
	}
	return toks, nil
}

type exprParser struct {
	expr string
	toks []exprToken
	i    int
}

func (p *exprParser) done() bool { return p.i >= len(p.toks) }

func (p *exprParser) peek() exprToken {
	if p.done() {
		return exprToken{off: len(p.expr)}
	}
	return p.toks[p.i]
}

func (p *exprParser) next() exprToken {
	t := p.peek()
	p.i++
	return t
}

func (p *exprParser) accept(text string) bool {
	if !p.done() && p.toks[p.i].text == text {
		p.i++
		return true
	}
	return false
}

func (p *exprParser) expect(text string) error {
	if !p.accept(text) {
		return p.errorf(ReasonSyntax, "expected %q", text)
	}
	return nil
}

func (p *exprParser) errorf(reason ExprReason, format string, args ...any) error {
	return &ExprError{Expr: p.expr, Offset: p.peek().off, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func (p *exprParser) parseType() (*TypeNode, error) {
	if p.done() {
		return nil, p.errorf(ReasonSyntax, "expected a type")
	}
	tok := p.peek()
	switch tok.text {
	case "::":
		return p.parseScoped()
	case "sequence":
		p.next()
		return p.parseSequence()
	case "string":
		p.next()
		n := &TypeNode{Kind: KindString}
		if p.accept("<") {
			b, err := p.parseInt()
			if err != nil {
				return nil, err
			}
			n.Bounded, n.Bound = true, b
			if err := p.expect(">"); err != nil {
				return nil, err
			}
		}
		return n, nil
	case "unsigned":
		p.next()
		switch {
		case p.accept("short"):
			return prim(descriptor.KindUint16), nil
		case p.accept("long"):
			if p.accept("long") {
				return prim(descriptor.KindUint64), nil
			}
			return prim(descriptor.KindUint32), nil
		}
		return nil, p.errorf(ReasonUnknownPrimitive, "unknown primitive \"unsigned %s\"", p.peek().text)
	case "long":
		p.next()
		switch {
		case p.accept("long"):
			return prim(descriptor.KindInt64), nil
		case p.accept("double"):
			return nil, &ExprError{Expr: p.expr, Offset: tok.off, Reason: ReasonUnknownPrimitive, Message: "unknown primitive \"long double\""}
		}
		return prim(descriptor.KindInt32), nil
	}
	if k, ok := keywordPrimitives[tok.text]; ok {
		p.next()
		return prim(k), nil
	}
	if unsupportedPrimitives[tok.text] {
		return nil, p.errorf(ReasonUnknownPrimitive, "unknown primitive %q", tok.text)
	}
	return p.parseScoped()
}

func prim(k descriptor.Kind) *TypeNode {
	return &TypeNode{Kind: KindPrimitive, Prim: k}
}

func (p *exprParser) parseSequence() (*TypeNode, error) {
	if err := p.expect("<"); err != nil {
		return nil, err
	}
	elem, err := p.parseType()
	if err != nil {
		return nil, err
	}
	n := &TypeNode{Kind: KindSequence, Elem: elem}
	if p.accept(",") {
		b, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		n.Bounded, n.Bound = true, b
	}
	if err := p.expect(">"); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *exprParser) parseInt() (int64, error) {
	tok := p.peek()
	v, err := strconv.ParseInt(tok.text, 10, 64)
	if err != nil {
		return 0, p.errorf(ReasonSyntax, "expected an integer bound, got %q", tok.text)
	}
	p.next()
	return v, nil
}

func (p *exprParser) parseScoped() (*TypeNode, error) {
	var parts []string
	absolute := p.accept("::")
	for {
		tok := p.peek()
		if !isIdent(tok.text) {
			return nil, p.errorf(ReasonSyntax, "expected an identifier")
		}
		p.next()
		parts = append(parts, tok.text)
		if !p.accept("::") {
			break
		}
	}
	name := JoinScoped(parts...)
	if absolute {
		name = "::" + name
	}
	return &TypeNode{Kind: KindRef, Name: name}, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
