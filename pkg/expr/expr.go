// Package expr implements the restricted boolean expression language used
// by edge conditions, e.g. `{context.cpf_valid} === true`. Expressions are
// parsed and evaluated by a small interpreter; no host-language eval is
// involved and no code outside the grammar below can run.
//
// Grammar:
//
//	expr    := or
//	or      := and ( "||" and )*
//	and     := unary ( "&&" unary )*
//	unary   := "!" unary | compare
//	compare := term ( ("===" | "!==" | "==" | "!=" | ">=" | "<=" | ">" | "<") term )?
//	term    := number | string | "true" | "false" | "null"
//	         | "{context." path "}" | "(" expr ")"
package expr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnresolvedReference is returned when a context reference names a key
// absent from the execution context. Callers treat this as a failure of the
// condition step, never as a silent false.
var ErrUnresolvedReference = errors.New("unresolved context reference")

// Evaluator evaluates a condition string against an execution context
// snapshot. Implementations must be side-effect free.
type Evaluator interface {
	Evaluate(expression string, context map[string]any) (bool, error)
}

// Interpreter is the default Evaluator. The zero value is ready to use.
type Interpreter struct{}

// NewInterpreter returns the default restricted interpreter.
func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

// Evaluate parses and evaluates expression. An empty expression is true,
// matching unconditional edges.
func (i *Interpreter) Evaluate(expression string, context map[string]any) (bool, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return true, nil
	}

	tokens, err := tokenize(expression)
	if err != nil {
		return false, fmt.Errorf("tokenize %q: %w", expression, err)
	}

	parser := &parser{tokens: tokens, context: context}

	value, err := parser.parseOr()
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", expression, err)
	}

	if !parser.atEnd() {
		return false, fmt.Errorf("evaluate %q: unexpected trailing input at %q", expression, parser.peek().text)
	}

	return truthy(value), nil
}

type parser struct {
	tokens  []token
	pos     int
	context map[string]any
}

func (p *parser) atEnd() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) peek() token {
	if p.atEnd() {
		return token{kind: tokenEOF}
	}

	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.peek()
	p.pos++

	return tok
}

func (p *parser) parseOr() (any, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.peek().kind == tokenOr {
		p.next()

		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		left = truthy(left) || truthy(right)
	}

	return left, nil
}

func (p *parser) parseAnd() (any, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.peek().kind == tokenAnd {
		p.next()

		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		left = truthy(left) && truthy(right)
	}

	return left, nil
}

func (p *parser) parseUnary() (any, error) {
	if p.peek().kind == tokenNot {
		p.next()

		value, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		return !truthy(value), nil
	}

	return p.parseCompare()
}

func (p *parser) parseCompare() (any, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	op := p.peek()
	if op.kind != tokenOperator {
		return left, nil
	}

	p.next()

	right, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	return compare(op.text, left, right)
}

func (p *parser) parseTerm() (any, error) {
	tok := p.next()

	switch tok.kind {
	case tokenNumber:
		return tok.number, nil
	case tokenString:
		return tok.text, nil
	case tokenBool:
		return tok.text == "true", nil
	case tokenNull:
		return nil, nil
	case tokenReference:
		return p.resolve(tok.text)
	case tokenLeftParen:
		value, err := p.parseOr()
		if err != nil {
			return nil, err
		}

		if p.next().kind != tokenRightParen {
			return nil, errors.New("missing closing parenthesis")
		}

		return value, nil
	default:
		return nil, fmt.Errorf("unexpected token %q", tok.text)
	}
}

// resolve walks a dotted path into the context map.
func (p *parser) resolve(path string) (any, error) {
	var current any = p.context

	for _, part := range strings.Split(path, ".") {
		object, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: context.%s", ErrUnresolvedReference, path)
		}

		current, ok = object[part]
		if !ok {
			return nil, fmt.Errorf("%w: context.%s", ErrUnresolvedReference, path)
		}
	}

	return current, nil
}

func compare(op string, left, right any) (any, error) {
	switch op {
	case "===":
		return strictEqual(left, right), nil
	case "!==":
		return !strictEqual(left, right), nil
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	}

	lnum, lok := asNumber(left)
	rnum, rok := asNumber(right)

	if !lok || !rok {
		return nil, fmt.Errorf("operator %q requires numeric operands, got %T and %T", op, left, right)
	}

	switch op {
	case ">":
		return lnum > rnum, nil
	case ">=":
		return lnum >= rnum, nil
	case "<":
		return lnum < rnum, nil
	case "<=":
		return lnum <= rnum, nil
	default:
		return nil, fmt.Errorf("unknown operator %q", op)
	}
}

// strictEqual requires matching types after normalizing numerics.
func strictEqual(left, right any) bool {
	lnum, lok := asNumber(left)
	rnum, rok := asNumber(right)

	if lok != rok {
		return false
	}

	if lok {
		return lnum == rnum
	}

	return left == right
}

// looseEqual additionally matches numbers against their string forms and
// booleans against 0/1, mirroring how form inputs arrive as strings.
func looseEqual(left, right any) bool {
	if strictEqual(left, right) {
		return true
	}

	lnum, lok := coerceNumber(left)
	rnum, rok := coerceNumber(right)

	if lok && rok {
		return lnum == rnum
	}

	return fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right)
}

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case nil:
		return false
	default:
		if num, ok := asNumber(value); ok {
			return num != 0
		}

		return true
	}
}
