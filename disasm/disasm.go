// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm implements a 65C02 instruction set disassembler.
package disasm

import (
	"fmt"
	"iter"
	"strings"

	"github.com/beevik/go65c02/cpu"
	"github.com/beevik/go65c02/log"
)

// Operand size class of an addressing mode, used to pick a formatter.
type operandKind byte

const (
	opNone operandKind = iota // no operand value
	opImm                     // 8-bit literal, never a label
	op8                       // 8-bit address, may be a label
	op16                      // 16-bit address, may be a label
	opRel                     // relative branch displacement
)

// Disassembler formatting for addressing modes
var modeFormat = []struct {
	format string
	kind   operandKind
}{
	cpu.IMP: {"", opNone},
	cpu.IMM: {"#%s", opImm},
	cpu.ACC: {"a", opNone},
	cpu.ABS: {"%s", op16},
	cpu.ZPG: {"%s", op8},
	cpu.ABX: {"%s,x", op16},
	cpu.ABY: {"%s,y", op16},
	cpu.ZPX: {"%s,x", op8},
	cpu.ZPY: {"%s,y", op8},
	cpu.REL: {"%s", opRel},
	cpu.IDX: {"(%s,x)", op8},
	cpu.IDY: {"(%s),y", op8},
	cpu.ZPI: {"(%s)", op8},
	cpu.IND: {"(%s)", op16},
	cpu.IAX: {"(%s,x)", op16},
	cpu.UND: {"", opNone},
}

// A Disassembler converts object code back into assembly text. It works
// on its own copy of a 64K image, in which unpopulated cells read as 0.
type Disassembler struct {
	mem     [0x10000]byte
	instSet *cpu.InstructionSet
	symbols map[string]uint16
	labels  map[uint16]string
}

// New creates a disassembler for the image. Symbols, which may be nil,
// are used to print labels in place of addresses.
func New(image []cpu.Cell, symbols map[string]uint16) *Disassembler {
	d := &Disassembler{
		instSet: cpu.Instructions(),
		symbols: make(map[string]uint16, len(symbols)),
	}
	for i, c := range image {
		if i >= len(d.mem) {
			break
		}
		d.mem[i] = c.Byte()
	}
	for name, addr := range symbols {
		d.symbols[name] = addr
	}
	d.buildLabels()
	return d
}

// Rebuild the address -> label cross reference. When several names share
// an address, the lexically smallest one is used.
func (d *Disassembler) buildLabels() {
	d.labels = make(map[uint16]string, len(d.symbols))
	for name, addr := range d.symbols {
		if prev, ok := d.labels[addr]; !ok || name < prev {
			d.labels[addr] = name
		}
	}
}

// Symbols returns a copy of the disassembler's symbol table.
func (d *Disassembler) Symbols() map[string]uint16 {
	m := make(map[string]uint16, len(d.symbols))
	for name, addr := range d.symbols {
		m[name] = addr
	}
	return m
}

// Label returns the label assigned to addr, if any.
func (d *Disassembler) Label(addr uint16) (string, bool) {
	name, ok := d.labels[addr]
	return name, ok
}

// Line disassembles the instruction at addr. It returns the text of the
// line and the number of bytes the instruction occupies.
func (d *Disassembler) Line(addr uint16) (text string, length int) {
	opcode := d.mem[addr]
	lo, hi := d.mem[addr+1], d.mem[addr+2]
	inst := d.instSet.Lookup(opcode)

	var mnemonic, operand string
	switch {
	case !inst.Defined():
		length = 1
		if opcode > 32 && opcode < 127 {
			mnemonic = fmt.Sprintf(`db   $%02X ;"%c"`, opcode, opcode)
		} else {
			mnemonic = fmt.Sprintf("db   $%02X", opcode)
		}
	default:
		length = int(inst.Length)
		mnemonic = inst.Name
		operand = d.operandString(addr, inst.Mode, lo, hi)
	}

	label, _ := d.Label(addr)
	if label != "" {
		label += ":"
	}

	var operands string
	switch length {
	case 1:
		operands = "     "
	case 2:
		operands = fmt.Sprintf("%02x   ", lo)
	default:
		operands = fmt.Sprintf("%02x %02x", lo, hi)
	}

	text = fmt.Sprintf("%-11s%04x %02x %s %-5s%s", label, addr, opcode, operands, mnemonic, operand)
	return text, length
}

func (d *Disassembler) operandString(addr uint16, mode cpu.Mode, lo, hi byte) string {
	f := modeFormat[mode]
	switch f.kind {
	case opImm:
		return fmt.Sprintf(f.format, fmt.Sprintf("$%02x", lo))
	case op8:
		return fmt.Sprintf(f.format, d.labelOr(uint16(lo), fmt.Sprintf("$%02x", lo)))
	case op16:
		v := uint16(lo) | uint16(hi)<<8
		return fmt.Sprintf(f.format, d.labelOr(v, fmt.Sprintf("$%04x", v)))
	case opRel:
		dest := branchTarget(addr, lo)
		return fmt.Sprintf("%s ; $%04x", d.labelOr(dest, fmt.Sprintf("$%02x", lo)), dest)
	default:
		return f.format
	}
}

func (d *Disassembler) labelOr(addr uint16, s string) string {
	if name, ok := d.labels[addr]; ok {
		return name
	}
	return s
}

// Return the destination of a 2-byte relative branch at addr.
func branchTarget(addr uint16, offset byte) uint16 {
	return addr + 2 + uint16(int8(offset))
}

// Region returns an iterator over the disassembled lines of the region
// starting at addr. Iteration stops once length bytes are consumed. The
// iterator may be ranged over more than once.
func (d *Disassembler) Region(addr uint16, length int) iter.Seq[string] {
	return func(yield func(string) bool) {
		a := addr
		for consumed := 0; consumed < length; {
			line, n := d.Line(a)
			if !yield(line) {
				return
			}
			a += uint16(n)
			consumed += n
		}
	}
}

// GenerateSymbols walks the region starting at addr and assigns a label of
// the form Lxxxx to every branch, jump and call target that does not
// already have one. It returns the number of labels added.
func (d *Disassembler) GenerateSymbols(addr uint16, length int) int {
	added := 0
	for consumed := 0; consumed < length; {
		inst := d.instSet.Lookup(d.mem[addr])
		n := int(inst.Length)

		if target, ok := d.target(addr, inst); ok {
			if _, labeled := d.labels[target]; !labeled {
				name := fmt.Sprintf("L%04X", target)
				d.symbols[name] = target
				d.labels[target] = name
				added++
				log.ModDis.Debugf("label %s for target of %s at $%04X", name, inst.Name, addr)
			}
		}

		addr += uint16(n)
		consumed += n
	}

	d.buildLabels()
	return added
}

// Return the code address an instruction transfers control to, if any.
func (d *Disassembler) target(addr uint16, inst *cpu.Instruction) (uint16, bool) {
	if !inst.Defined() {
		return 0, false
	}
	lo, hi := d.mem[addr+1], d.mem[addr+2]
	switch {
	case inst.Mode == cpu.REL:
		return branchTarget(addr, lo), true
	case inst.Mode == cpu.ABS && (inst.Name == "jmp" || inst.Name == "jsr"):
		return uint16(lo) | uint16(hi)<<8, true
	}
	return 0, false
}

// Text disassembles the whole region as a block of text, one line per
// instruction.
func (d *Disassembler) Text(addr uint16, length int) string {
	var b strings.Builder
	for line := range d.Region(addr, length) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
