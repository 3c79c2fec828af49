// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"errors"
	"strconv"
)

var (
	errExprParse     = errors.New("expression syntax error")
	errDivideByZero  = errors.New("division by zero")
	errUnknownSymbol = errors.New("identifier not found")
)

type resolver interface {
	resolveIdentifier(s string) (int64, error)
}

// Binary operators, by precedence. Higher binds tighter. All are left
// associative.
var binaryOps = map[string]struct {
	precedence int
	eval       func(a, b int64) (int64, error)
}{
	"|":  {1, func(a, b int64) (int64, error) { return a | b, nil }},
	"^":  {2, func(a, b int64) (int64, error) { return a ^ b, nil }},
	"&":  {3, func(a, b int64) (int64, error) { return a & b, nil }},
	"<<": {4, func(a, b int64) (int64, error) { return a << uint64(b&63), nil }},
	">>": {4, func(a, b int64) (int64, error) { return a >> uint64(b&63), nil }},
	"+":  {5, func(a, b int64) (int64, error) { return a + b, nil }},
	"-":  {5, func(a, b int64) (int64, error) { return a - b, nil }},
	"*":  {6, func(a, b int64) (int64, error) { return a * b, nil }},
	"/":  {6, divide},
	"%":  {6, modulo},
}

func divide(a, b int64) (int64, error) {
	if b == 0 {
		return 0, errDivideByZero
	}
	return a / b, nil
}

func modulo(a, b int64) (int64, error) {
	if b == 0 {
		return 0, errDivideByZero
	}
	return a % b, nil
}

// An exprParser evaluates integer expressions typed at the host prompt.
// Numbers use the assembler's prefixes ($hex, @octal, %binary) as well as
// 0x, 0b and 0d. In hex mode, bare numbers and identifiers made only of
// hex digits are read as hexadecimal. The unary operators < and > select
// the low and high byte of their operand.
type exprParser struct {
	hexMode bool
	s       string
	pos     int
	r       resolver
}

func newExprParser() *exprParser {
	return &exprParser{}
}

func (p *exprParser) Parse(expr string, r resolver) (int64, error) {
	p.s, p.pos, p.r = expr, 0, r
	defer func() { p.s, p.r = "", nil }()

	v, err := p.parseBinary(1)
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.s) {
		return 0, errExprParse
	}
	return v, nil
}

func (p *exprParser) parseBinary(minPrec int) (int64, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		sym := p.peekOp()
		op, ok := binaryOps[sym]
		if !ok || op.precedence < minPrec {
			return lhs, nil
		}
		p.pos += len(sym)

		rhs, err := p.parseBinary(op.precedence + 1)
		if err != nil {
			return 0, err
		}
		if lhs, err = op.eval(lhs, rhs); err != nil {
			return 0, err
		}
	}
}

func (p *exprParser) peekOp() string {
	if p.pos >= len(p.s) {
		return ""
	}
	if p.pos+1 < len(p.s) {
		if two := p.s[p.pos : p.pos+2]; two == "<<" || two == ">>" {
			return two
		}
	}
	return p.s[p.pos : p.pos+1]
}

func (p *exprParser) parseUnary() (int64, error) {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return 0, errExprParse
	}

	var fn func(int64) int64
	switch p.s[p.pos] {
	case '-':
		fn = func(v int64) int64 { return -v }
	case '+':
		fn = func(v int64) int64 { return v }
	case '~':
		fn = func(v int64) int64 { return ^v }
	case '<':
		fn = func(v int64) int64 { return v & 0xff }
	case '>':
		fn = func(v int64) int64 { return (v >> 8) & 0xff }
	default:
		return p.parsePrimary()
	}

	p.pos++
	v, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	return fn(v), nil
}

func (p *exprParser) parsePrimary() (int64, error) {
	c := p.s[p.pos]
	switch {
	case c == '(':
		p.pos++
		v, err := p.parseBinary(1)
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.pos >= len(p.s) || p.s[p.pos] != ')' {
			return 0, errExprParse
		}
		p.pos++
		return v, nil

	case c == '\'':
		if p.pos+2 >= len(p.s) || p.s[p.pos+2] != '\'' {
			return 0, errExprParse
		}
		v := int64(p.s[p.pos+1])
		p.pos += 3
		return v, nil

	case c == '$':
		p.pos++
		return p.parseDigits(16, hexadecimal)

	case c == '@':
		p.pos++
		return p.parseDigits(8, octal)

	case c == '%':
		p.pos++
		return p.parseDigits(2, binary)

	case decimal(c):
		if c == '0' && p.pos+2 < len(p.s) {
			switch p.s[p.pos+1] {
			case 'x':
				p.pos += 2
				return p.parseDigits(16, hexadecimal)
			case 'b':
				p.pos += 2
				return p.parseDigits(2, binary)
			case 'd':
				p.pos += 2
				return p.parseDigits(10, decimal)
			}
		}
		if p.hexMode {
			return p.parseDigits(16, hexadecimal)
		}
		return p.parseDigits(10, decimal)

	case identifier(c):
		id := p.scan(identifier)
		if p.hexMode && isAll(id, hexadecimal) {
			v, err := strconv.ParseInt(id, 16, 64)
			if err != nil {
				return 0, errExprParse
			}
			return v, nil
		}
		return p.r.resolveIdentifier(id)
	}
	return 0, errExprParse
}

func (p *exprParser) parseDigits(base int, fn func(c byte) bool) (int64, error) {
	num := p.scan(fn)
	if num == "" {
		return 0, errExprParse
	}
	v, err := strconv.ParseInt(num, base, 64)
	if err != nil {
		return 0, errExprParse
	}
	return v, nil
}

func (p *exprParser) scan(fn func(c byte) bool) string {
	start := p.pos
	for p.pos < len(p.s) && fn(p.s[p.pos]) {
		p.pos++
	}
	return p.s[start:p.pos]
}

func (p *exprParser) skipSpace() {
	p.scan(whitespace)
}

func isAll(s string, fn func(c byte) bool) bool {
	for i := 0; i < len(s); i++ {
		if !fn(s[i]) {
			return false
		}
	}
	return true
}

func whitespace(c byte) bool {
	return c == ' ' || c == '\t'
}

func decimal(c byte) bool {
	return c >= '0' && c <= '9'
}

func octal(c byte) bool {
	return c >= '0' && c <= '7'
}

func hexadecimal(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

func binary(c byte) bool {
	return c == '0' || c == '1'
}

func identifier(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '.'
}
