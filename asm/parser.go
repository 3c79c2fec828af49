// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/beevik/go65c02/cpu"
)

// An OperandByte is one operand byte of an instruction record. It is
// either absent (the mode has no such byte), unresolved (it depends on a
// symbol not yet bound) or a known byte value.
type OperandByte struct {
	state byteState
	v     byte
}

type byteState byte

const (
	stateAbsent byteState = iota
	stateUnresolved
	stateKnown
)

// Absent and Unresolved operand bytes.
var (
	Absent     = OperandByte{}
	Unresolved = OperandByte{state: stateUnresolved}
)

// ByteValue returns a known operand byte.
func ByteValue(v byte) OperandByte {
	return OperandByte{state: stateKnown, v: v}
}

// Present reports whether the byte occupies space in the object code.
func (b OperandByte) Present() bool { return b.state != stateAbsent }

// Resolved reports whether the byte holds a known value.
func (b OperandByte) Resolved() bool { return b.state == stateKnown }

// Value returns the byte's value, or 0 if it is not known.
func (b OperandByte) Value() byte { return b.v }

// String returns the 3-column listing form of the byte.
func (b OperandByte) String() string {
	switch b.state {
	case stateKnown:
		return fmt.Sprintf("%02X ", b.v)
	case stateUnresolved:
		return "?? "
	default:
		return "   "
	}
}

// The kind of thing an opcode token names.
type opKind byte

const (
	opNone opKind = iota
	opInstruction
	opData
	opDirective
)

// Bytes per value of each data pseudo-op.
var dataWidth = map[string]int{
	"db":  1,
	"dw":  2,
	"ddw": 4,
	"dqw": 8,
}

var directives = map[string]bool{
	"org": true,
	"le":  true,
	"be":  true,
}

// A Record is the parsed form of a single source line.
type Record struct {
	Line         int              // 1-based source line number
	Text         string           // the source line as read
	Label        string           // label defined on the line, if any
	Opcode       string           // lowercase opcode token; empty if none or unknown
	Inst         *cpu.Instruction // encoded instruction; nil if none was decided
	Mode         cpu.Mode         // addressing mode; UND for non-instructions
	Operand      string           // operand text as written
	Value        string           // operand value with mode syntax removed
	Comment      string           // trailing comment including its ';'
	Address      uint16           // address assigned in the layout pass
	Low, High    OperandByte      // instruction operand bytes
	Extra        []byte           // data bytes emitted by db/dw/ddw/dqw
	ExtraCount   int              // number of data bytes reserved at parse time
	LittleEndian bool             // byte order in effect when the line was parsed
	kind         opKind
	pm           premode
}

// Size returns the number of object code bytes the record occupies.
func (r *Record) Size() int {
	n := r.ExtraCount
	if r.Inst != nil {
		n++
	}
	if r.Low.Present() {
		n++
	}
	if r.High.Present() {
		n++
	}
	return n
}

// The syntactic shape of an operand, before it is matched against the
// modes an instruction supports.
type premode byte

const (
	pmNothing premode = iota
	pmImmediate
	pmAccumulator
	pmBracketedIndexedX
	pmBracketedCommaY
	pmNumberCommaX
	pmNumberCommaY
	pmNumber
	pmOffset
	pmBracketed
	pmName
	pmQString
)

var premodeNames = []string{
	"nothing", "immediate", "accumulator", "bracketedindexedx",
	"bracketedcommay", "numbercommax", "numbercommay", "number", "offset",
	"bracketed", "name", "qstring",
}

func (p premode) String() string {
	return premodeNames[p]
}

var (
	reBracketedIndexedX = regexp.MustCompile(`^\((.*),[xX]\)$`)
	reBracketedCommaY   = regexp.MustCompile(`^\((.*)\),[yY]$`)
	reNumberCommaX      = regexp.MustCompile(`^(.*),[xX]$`)
	reNumberCommaY      = regexp.MustCompile(`^(.*),[yY]$`)
	reBracketed         = regexp.MustCompile(`^\((.*)\)$`)
)

// ParseLine parses a single line of source into a record. Problems are
// reported as diagnostics; parsing never fails. The byte order set by a
// previous le or be line is captured in the record.
func (a *Assembler) ParseLine(text string, lineNumber int) *Record {
	r := &Record{Line: lineNumber, Text: text, Mode: cpu.UND}
	line := newFstring(lineNumber, text)

	code, comment := line.stripComment()
	r.Comment = comment

	code = a.stripLabel(r, code)

	opcode, operand := code.trimSpace().consumeUntil(whitespace)
	r.Operand = operand.trimSpace().str
	a.checkOpcode(r, opcode)

	r.pm, r.Value = a.identifyPremode(r, r.Operand)
	switch r.kind {
	case opInstruction:
		a.identifyMode(r)
		a.assignBytes(r)
	case opData:
		r.ExtraCount = a.decodeData(r, true)
	case opDirective:
		switch r.Opcode {
		case "le":
			a.littleEndian = true
		case "be":
			a.littleEndian = false
		}
	}
	r.LittleEndian = a.littleEndian

	a.logger.Debugf("line %-4d label=%q opcode=%q premode=%s value=%q mode=%s",
		lineNumber, r.Label, r.Opcode, r.pm, r.Value, r.Mode)
	return r
}

// Strip a leading "label:" from the line. Only a colon appearing before
// any quoted string counts.
func (a *Assembler) stripLabel(r *Record, code fstring) fstring {
	i := code.indexUnquoted(':')
	if i < 0 || strings.ContainsAny(code.str[:i], `"'`) {
		return code
	}

	label := code.trunc(i).trimSpace()
	if j := label.scanUntil(whitespace); j < len(label.str) {
		a.warning(r, "More than one thing in the label field. Ignoring everything between the first space and the colon")
		label = label.trunc(j)
	}
	r.Label = label.str
	return code.consume(i + 1)
}

// Classify the opcode token against instructions, data pseudo-ops and
// directives.
func (a *Assembler) checkOpcode(r *Record, token fstring) {
	if token.isEmpty() {
		return
	}

	op := strings.ToLower(token.str)
	switch {
	case a.instSet.IsMnemonic(op):
		r.kind = opInstruction
	case dataWidth[op] != 0:
		r.kind = opData
	case directives[op]:
		r.kind = opDirective
	default:
		a.warning(r, "unknown opcode %s", op)
		return
	}
	r.Opcode = op
}

// Classify the operand's syntactic shape. The cascade order is
// significant: the first matching rule wins.
func (a *Assembler) identifyPremode(r *Record, operand string) (premode, string) {
	s := strings.Map(func(c rune) rune {
		if c == ' ' || c == '\t' {
			return -1
		}
		return c
	}, operand)

	if s == "" {
		return pmNothing, ""
	}

	switch {
	case s[0] == '#':
		return pmImmediate, s[1:]
	case s == "a" || s == "A":
		return pmAccumulator, ""
	}

	if m := reBracketedIndexedX.FindStringSubmatch(s); m != nil {
		return pmBracketedIndexedX, m[1]
	}
	if m := reBracketedCommaY.FindStringSubmatch(s); m != nil {
		return pmBracketedCommaY, m[1]
	}
	if m := reNumberCommaX.FindStringSubmatch(s); m != nil {
		return pmNumberCommaX, m[1]
	}
	if m := reNumberCommaY.FindStringSubmatch(s); m != nil {
		return pmNumberCommaY, m[1]
	}

	switch c := s[0]; {
	case c == '$' || c == '@' || c == '%' || c == '&' || decimal(c):
		return pmNumber, s
	case letter(c):
		return pmNumber, s
	case c == '+' || c == '-':
		return pmOffset, s
	}

	if m := reBracketed.FindStringSubmatch(s); m != nil {
		return pmBracketed, m[1]
	}
	switch {
	case nameStartChar(s[0]):
		return pmName, s
	case len(s) > 1 && s[0] == '"' && s[len(s)-1] == '"':
		return pmQString, s
	}

	if r.kind == opInstruction {
		a.warning(r, "Can't make sense of address mode %s", operand)
	}
	return pmNothing, ""
}

// Derive the addressing mode from the premode and the modes the
// instruction supports. Symbolic values, whose size is unknown until
// layout, prefer the two-byte form of an instruction when one exists.
func (a *Assembler) identifyMode(r *Record) {
	name, pm := r.Opcode, r.pm
	has := func(m cpu.Mode) bool { return a.instSet.HasMode(name, m) }

	v, kind := decodeValue(operandValue(r.Value))
	known := kind == valNumber
	small := known && v < 0x100

	mode := cpu.UND
	switch {
	case pm == pmNothing && has(cpu.IMP):
		mode = cpu.IMP
	case pm == pmImmediate && has(cpu.IMM):
		mode = cpu.IMM
	case (pm == pmAccumulator || pm == pmNothing) && has(cpu.ACC):
		mode = cpu.ACC
	case name == "jmp":
		switch pm {
		case pmBracketed:
			mode = cpu.IND
		case pmBracketedIndexedX:
			mode = cpu.IAX
		case pmNumber:
			mode = cpu.ABS
		}
	case pm == pmNumber && small && has(cpu.ZPG):
		mode = cpu.ZPG
	case (pm == pmNumber || pm == pmOffset) && a.instSet.IsBranch(name):
		mode = cpu.REL
	case pm == pmNumber && has(cpu.ABS):
		mode = cpu.ABS
	case pm == pmNumber && !known && has(cpu.ZPG):
		mode = cpu.ZPG
	case pm == pmNumberCommaX && small && has(cpu.ZPX):
		mode = cpu.ZPX
	case pm == pmNumberCommaY && small && has(cpu.ZPY):
		mode = cpu.ZPY
	case pm == pmNumberCommaX && has(cpu.ABX):
		mode = cpu.ABX
	case pm == pmNumberCommaY && has(cpu.ABY):
		mode = cpu.ABY
	case pm == pmNumberCommaX && has(cpu.ZPX):
		mode = cpu.ZPX
	case pm == pmNumberCommaY && has(cpu.ZPY):
		mode = cpu.ZPY
	case pm == pmBracketedIndexedX && has(cpu.IDX):
		mode = cpu.IDX
	case pm == pmBracketedCommaY && has(cpu.IDY):
		mode = cpu.IDY
	case pm == pmBracketed && (!known || small) && has(cpu.ZPI):
		mode = cpu.ZPI
	}

	if mode == cpu.UND {
		a.warning(r, "no addressing mode of %s accepts operand %s", name, r.Operand)
		return
	}
	r.Mode = mode
	r.Inst, _ = a.instSet.Find(name, mode)
}

// Strip the '&' that may mark a symbol reference.
func operandValue(s string) string {
	return strings.TrimPrefix(s, "&")
}

// Fill in the operand bytes that can be known at parse time. Branch
// targets and symbols stay unresolved until the final pass; an explicit
// +n/-n offset is the raw branch displacement.
func (a *Assembler) assignBytes(r *Record) {
	if r.Inst == nil {
		return
	}

	n := r.Mode.Operands()
	if n == 0 {
		return
	}

	r.Low = Unresolved
	if n > 1 {
		r.High = Unresolved
	}

	if r.Mode == cpu.REL {
		if r.pm == pmOffset {
			d, ok := parseOffset(r.Value)
			if !ok {
				a.warning(r, "Can't make sense of address mode %s", r.Operand)
			}
			if d < -128 || d > 127 {
				a.warning(r, "branch can't reach destination, delta is %d", d)
			}
			r.Low = ByteValue(byte(d))
		}
		return
	}

	v, kind := decodeValue(operandValue(r.Value))
	switch kind {
	case valSymbol:
		return
	case valInvalid:
		a.warning(r, "Can't make sense of value %s", r.Value)
		v = 0
	}
	a.setOperand(r, v)
}

// Store a resolved operand value into the record's operand bytes.
func (a *Assembler) setOperand(r *Record, v int) {
	switch {
	case r.High.Present():
		if v > 0xffff {
			a.warning(r, "Truncating number %d", v)
		}
		r.Low, r.High = ByteValue(byte(v)), ByteValue(byte(v>>8))
	case r.Low.Present():
		if v > 0xff && r.Mode != cpu.IMM {
			a.warning(r, "Truncating number %d", v)
		}
		r.Low = ByteValue(byte(v))
	}
}

// Parse a signed decimal or $hex branch displacement such as +5 or -$10.
func parseOffset(s string) (int, bool) {
	if len(s) < 2 {
		return 0, false
	}
	v, kind := decodeValue(s[1:])
	if kind != valNumber {
		return 0, false
	}
	if s[0] == '-' {
		v = -v
	}
	return v, true
}
