// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import "strconv"

// States of the data operand scanner.
type dataState byte

const (
	dsIdle dataState = iota
	dsDelim
	dsString
	dsHex
	dsOct
	dsBin
	dsDec
	dsLabel
)

var dataStateNames = []string{
	"IDLE", "DELIM", "STRING", "HEX", "OCT", "BIN", "DEC", "LABEL",
}

func (s dataState) String() string {
	return dataStateNames[s]
}

type numberBase struct {
	base  int
	name  string
	digit func(c byte) bool
}

var numberBases = map[dataState]numberBase{
	dsHex: {16, "hex", hexadecimal},
	dsOct: {8, "octal", octal},
	dsBin: {2, "binary", binarynum},
	dsDec: {10, "decimal", decimal},
}

// A dataScanner splits the operand of a db/dw/ddw/dqw line into values.
// Values are separated by spaces or commas; quoted strings contribute one
// value per character and &name references a symbol.
type dataScanner struct {
	a      *Assembler
	r      *Record
	report bool // emit diagnostics and resolve symbols
	state  dataState
	token  []byte
	values []uint64
}

// Decode the operand of a data record. In count mode only the number of
// bytes the record will occupy is computed and no diagnostics are
// reported. Otherwise the record's Extra bytes are filled in using the
// record's byte order, and the byte count is returned.
func (a *Assembler) decodeData(r *Record, countOnly bool) int {
	width := dataWidth[r.Opcode]
	s := &dataScanner{a: a, r: r, report: !countOnly}
	values := s.scan(r.Operand)
	if countOnly {
		return len(values) * width
	}

	r.Extra = make([]byte, 0, len(values)*width)
	for _, v := range values {
		b, truncated := toBytes(width, v)
		if truncated {
			a.warning(r, "Truncating number %d", v)
		}
		if !r.LittleEndian {
			reverse(b)
		}
		r.Extra = append(r.Extra, b...)
	}
	return len(r.Extra)
}

func (s *dataScanner) scan(text string) []uint64 {
	for i := 0; i < len(text); i++ {
		s.step(text[i])
	}

	switch s.state {
	case dsString:
		s.warning("Unterminated string")
	case dsHex, dsOct, dsBin, dsDec:
		s.endNumber()
	case dsLabel:
		s.endLabel()
	case dsDelim:
		s.warning("Trailing delimiter")
	}
	return s.values
}

func (s *dataScanner) step(c byte) {
	switch s.state {
	case dsIdle, dsDelim:
		s.start(c)

	case dsString:
		if c == '"' {
			s.state = dsIdle
		} else {
			s.values = append(s.values, uint64(c))
		}

	case dsHex, dsOct, dsBin, dsDec:
		nb := numberBases[s.state]
		switch {
		case c == ' ':
			s.endNumber()
			s.state = dsIdle
		case c == ',':
			s.endNumber()
			s.state = dsDelim
		case nb.digit(c):
			s.token = append(s.token, c)
		default:
			s.error("Unexpected character in %s", nb.name)
		}

	case dsLabel:
		switch {
		case c == ' ':
			s.endLabel()
			s.state = dsIdle
		case c == ',':
			s.endLabel()
			s.state = dsDelim
		case labelChar(c):
			s.token = append(s.token, c)
		default:
			s.warning("Unexpected character in label")
		}
	}
}

// Begin a new value from the IDLE or DELIM state.
func (s *dataScanner) start(c byte) {
	s.token = s.token[:0]
	switch {
	case c == ' ':
		s.state = dsIdle
	case c == '"':
		s.state = dsString
	case c == '$':
		s.state = dsHex
	case c == '@':
		s.state = dsOct
	case c == '%':
		s.state = dsBin
	case decimal(c):
		s.state = dsDec
		s.token = append(s.token, c)
	case c == '&':
		s.state = dsLabel
	case c == ',' && s.state == dsIdle:
		s.state = dsDelim
	default:
		s.warning("Unexpected character FSM=%s", s.state)
	}
}

func (s *dataScanner) endNumber() {
	nb := numberBases[s.state]
	if len(s.token) == 0 {
		s.warning("Missing digits in %s number", nb.name)
		return
	}
	v, err := strconv.ParseUint(string(s.token), nb.base, 64)
	if err != nil {
		s.warning("Can't make sense of %s number %s", nb.name, s.token)
		return
	}
	s.values = append(s.values, v)
}

func (s *dataScanner) endLabel() {
	if !s.report {
		s.values = append(s.values, 0)
		return
	}

	name := string(s.token)
	addr, ok := s.a.symbols.Lookup(name)
	if !ok {
		s.error("Undefined symbol %s", name)
	}
	s.values = append(s.values, uint64(addr))
}

func (s *dataScanner) warning(format string, args ...any) {
	if s.report {
		s.a.warning(s.r, format, args...)
	}
}

func (s *dataScanner) error(format string, args ...any) {
	if s.report {
		s.a.error(s.r, format, args...)
	}
}
