// Package formula implements the small arithmetic evaluator and
// %-specifier substitution behind imgplace's --print option and
// formula-valued dimension flags.
package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/kittyplace/imgplace/pkg/ikerr"
)

// Vars resolves a bare identifier (e.g. "cx", "cy") to a numeric value
// during formula evaluation.
type Vars func(name string) (float64, bool)

// Evaluate parses and evaluates a single arithmetic expression over +,
// -, *, /, unary +/-, parentheses, the min/max/ceil/floor functions, the
// `inf` constant, and identifiers resolved via vars. It returns
// FormulaError on any syntax or evaluation problem.
func Evaluate(expr string, vars Vars) (float64, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return 0, ikerr.New(ikerr.FormulaError, "formula.Evaluate")
	}
	// Shortcut for a bare numeric literal.
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	p := &parser{input: s, vars: vars}
	p.next()
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return 0, ikerr.New(ikerr.FormulaError, "formula.Evaluate: trailing input")
	}
	return v, nil
}

type parser struct {
	input string
	pos   int
	vars  Vars
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *parser) next() { p.skipSpace() }

func (p *parser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

// parseExpr handles + and - at the lowest precedence.
func (p *parser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.next()
		switch p.peek() {
		case '+':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v += rhs
		case '-':
			p.pos++
			rhs, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v -= rhs
		default:
			return v, nil
		}
	}
}

// parseTerm handles * and /.
func (p *parser) parseTerm() (float64, error) {
	v, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		p.next()
		switch p.peek() {
		case '*':
			p.pos++
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			v *= rhs
		case '/':
			p.pos++
			rhs, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if rhs == 0 {
				return 0, ikerr.New(ikerr.FormulaError, "formula: division by zero")
			}
			v /= rhs
		default:
			return v, nil
		}
	}
}

func (p *parser) parseUnary() (float64, error) {
	p.next()
	switch p.peek() {
	case '+':
		p.pos++
		return p.parseUnary()
	case '-':
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	default:
		return p.parseAtom()
	}
}

func (p *parser) parseAtom() (float64, error) {
	p.next()
	if p.peek() == '(' {
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.next()
		if p.peek() != ')' {
			return 0, ikerr.New(ikerr.FormulaError, "formula: expected ')'")
		}
		p.pos++
		return v, nil
	}
	if isIdentStart(p.peek()) {
		return p.parseIdentOrCall()
	}
	return p.parseNumber()
}

func isIdentStart(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c))
}

func isIdentPart(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}

func (p *parser) parseIdentOrCall() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && isIdentPart(p.input[p.pos]) {
		p.pos++
	}
	name := p.input[start:p.pos]
	p.next()
	if p.peek() == '(' {
		p.pos++
		var args []float64
		p.next()
		if p.peek() != ')' {
			for {
				v, err := p.parseExpr()
				if err != nil {
					return 0, err
				}
				args = append(args, v)
				p.next()
				if p.peek() == ',' {
					p.pos++
					continue
				}
				break
			}
		}
		p.next()
		if p.peek() != ')' {
			return 0, ikerr.New(ikerr.FormulaError, "formula: expected ')' after call arguments")
		}
		p.pos++
		return callFunction(name, args)
	}
	if name == "inf" {
		return math.Inf(1), nil
	}
	if p.vars == nil {
		return 0, ikerr.New(ikerr.FormulaError, fmt.Sprintf("formula: unknown identifier %q", name))
	}
	v, ok := p.vars(name)
	if !ok {
		return 0, ikerr.New(ikerr.FormulaError, fmt.Sprintf("formula: unknown identifier %q", name))
	}
	return v, nil
}

func callFunction(name string, args []float64) (float64, error) {
	switch name {
	case "min", "max":
		if len(args) == 0 {
			return 0, ikerr.New(ikerr.FormulaError, fmt.Sprintf("formula: %s() requires at least one argument", name))
		}
		best := args[0]
		for _, a := range args[1:] {
			if (name == "min" && a < best) || (name == "max" && a > best) {
				best = a
			}
		}
		return best, nil
	case "ceil", "floor":
		if len(args) != 1 {
			return 0, ikerr.New(ikerr.FormulaError, fmt.Sprintf("formula: %s() requires exactly one argument", name))
		}
		if math.IsInf(args[0], 0) {
			return args[0], nil
		}
		if name == "ceil" {
			return math.Ceil(args[0]), nil
		}
		return math.Floor(args[0]), nil
	default:
		return 0, ikerr.New(ikerr.FormulaError, fmt.Sprintf("formula: unsupported function %q", name))
	}
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && (unicode.IsDigit(rune(p.input[p.pos])) || p.input[p.pos] == '.') {
		p.pos++
	}
	if p.pos == start {
		return 0, ikerr.New(ikerr.FormulaError, "formula: expected number")
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, ikerr.Wrap(ikerr.FormulaError, "formula.parseNumber", err)
	}
	return v, nil
}
