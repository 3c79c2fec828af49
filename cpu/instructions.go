// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import (
	"strings"
	"sync"
)

// An opsym is an internal symbol used to associate an opcode's data
// with its instructions.
type opsym byte

const (
	symADC opsym = iota
	symAND
	symASL
	symBCC
	symBCS
	symBEQ
	symBIT
	symBMI
	symBNE
	symBPL
	symBRA
	symBRK
	symBVC
	symBVS
	symCLC
	symCLD
	symCLI
	symCLV
	symCMP
	symCPX
	symCPY
	symDEA
	symDEC
	symDEX
	symDEY
	symEOR
	symINA
	symINC
	symINX
	symINY
	symJMP
	symJSR
	symLDA
	symLDX
	symLDY
	symLSR
	symNOP
	symORA
	symPHA
	symPHP
	symPHX
	symPHY
	symPLA
	symPLP
	symPLX
	symPLY
	symROL
	symROR
	symRTI
	symRTS
	symSBC
	symSEC
	symSED
	symSEI
	symSTA
	symSTZ
	symSTX
	symSTY
	symTAX
	symTAY
	symTRB
	symTSB
	symTSX
	symTXA
	symTXS
	symTYA
)

type instfunc func(c *CPU, inst *Instruction, operand []byte) (Effect, error)

// Emulator implementation for each mnemonic
type opcodeImpl struct {
	sym  opsym
	name string
	fn   instfunc
}

var impl = []opcodeImpl{
	{symADC, "adc", (*CPU).adc},
	{symAND, "and", (*CPU).and},
	{symASL, "asl", (*CPU).asl},
	{symBCC, "bcc", (*CPU).bcc},
	{symBCS, "bcs", (*CPU).bcs},
	{symBEQ, "beq", (*CPU).beq},
	{symBIT, "bit", (*CPU).bit},
	{symBMI, "bmi", (*CPU).bmi},
	{symBNE, "bne", (*CPU).bne},
	{symBPL, "bpl", (*CPU).bpl},
	{symBRA, "bra", (*CPU).bra},
	{symBRK, "brk", (*CPU).brk},
	{symBVC, "bvc", (*CPU).bvc},
	{symBVS, "bvs", (*CPU).bvs},
	{symCLC, "clc", (*CPU).clc},
	{symCLD, "cld", (*CPU).cld},
	{symCLI, "cli", (*CPU).cli},
	{symCLV, "clv", (*CPU).clv},
	{symCMP, "cmp", (*CPU).cmp},
	{symCPX, "cpx", (*CPU).cpx},
	{symCPY, "cpy", (*CPU).cpy},
	{symDEA, "dea", (*CPU).dec},
	{symDEC, "dec", (*CPU).dec},
	{symDEX, "dex", (*CPU).dex},
	{symDEY, "dey", (*CPU).dey},
	{symEOR, "eor", (*CPU).eor},
	{symINA, "ina", (*CPU).inc},
	{symINC, "inc", (*CPU).inc},
	{symINX, "inx", (*CPU).inx},
	{symINY, "iny", (*CPU).iny},
	{symJMP, "jmp", (*CPU).jmp},
	{symJSR, "jsr", (*CPU).jsr},
	{symLDA, "lda", (*CPU).lda},
	{symLDX, "ldx", (*CPU).ldx},
	{symLDY, "ldy", (*CPU).ldy},
	{symLSR, "lsr", (*CPU).lsr},
	{symNOP, "nop", (*CPU).nop},
	{symORA, "ora", (*CPU).ora},
	{symPHA, "pha", (*CPU).pha},
	{symPHP, "php", (*CPU).php},
	{symPHX, "phx", (*CPU).phx},
	{symPHY, "phy", (*CPU).phy},
	{symPLA, "pla", (*CPU).pla},
	{symPLP, "plp", (*CPU).plp},
	{symPLX, "plx", (*CPU).plx},
	{symPLY, "ply", (*CPU).ply},
	{symROL, "rol", (*CPU).rol},
	{symROR, "ror", (*CPU).ror},
	{symRTI, "rti", (*CPU).rti},
	{symRTS, "rts", (*CPU).rts},
	{symSBC, "sbc", (*CPU).sbc},
	{symSEC, "sec", (*CPU).sec},
	{symSED, "sed", (*CPU).sed},
	{symSEI, "sei", (*CPU).sei},
	{symSTA, "sta", (*CPU).sta},
	{symSTX, "stx", (*CPU).stx},
	{symSTY, "sty", (*CPU).sty},
	{symSTZ, "stz", (*CPU).stz},
	{symTAX, "tax", (*CPU).tax},
	{symTAY, "tay", (*CPU).tay},
	{symTRB, "trb", (*CPU).trb},
	{symTSB, "tsb", (*CPU).tsb},
	{symTSX, "tsx", (*CPU).tsx},
	{symTXA, "txa", (*CPU).txa},
	{symTXS, "txs", (*CPU).txs},
	{symTYA, "tya", (*CPU).tya},
}

// Mode describes a memory addressing mode.
type Mode byte

// All possible memory addressing modes
const (
	IMP Mode = iota // Implicit (no operand)
	IMM             // Immediate
	ACC             // Accumulator (no operand)
	ABS             // Absolute
	ZPG             // Zero Page
	ABX             // Absolute,X
	ABY             // Absolute,Y
	ZPX             // Zero Page,X
	ZPY             // Zero Page,Y
	REL             // Relative
	IDX             // (Zero Page,X)
	IDY             // (Zero Page),Y
	ZPI             // (Zero Page)
	IND             // (Absolute), JMP only
	IAX             // (Absolute,X), JMP only
	UND             // Undecided; used by the assembler before a mode is known
)

var modeInfo = []struct {
	name     string
	operands byte
}{
	{"implicit", 0},
	{"immediate", 1},
	{"accumulator", 0},
	{"absolute", 2},
	{"zeropage", 1},
	{"absolutex", 2},
	{"absolutey", 2},
	{"zeropagex", 1},
	{"zeropagey", 1},
	{"relative", 1},
	{"zeropageindexedindirectx", 1},
	{"zeropageindexedindirecty", 1},
	{"zeropageindirect", 1},
	{"absoluteindirect", 2},
	{"absoluteindexedindirect", 2},
	{"undecided", 0},
}

// String returns the long name of the addressing mode.
func (m Mode) String() string {
	if int(m) < len(modeInfo) {
		return modeInfo[m].name
	}
	return "invalid"
}

// Operands returns the number of operand bytes following the opcode.
func (m Mode) Operands() int {
	if int(m) < len(modeInfo) {
		return int(modeInfo[m].operands)
	}
	return 0
}

// Length returns the combined length of opcode and operand in bytes.
func (m Mode) Length() int {
	return 1 + m.Operands()
}

// HasLow reports whether the mode carries a low operand byte.
func (m Mode) HasLow() bool {
	return m.Operands() > 0
}

// HasHigh reports whether the mode carries a high operand byte.
func (m Mode) HasHigh() bool {
	return m.Operands() > 1
}

// Opcode data for a (mnemonic, mode) pair
type opcodeData struct {
	sym    opsym // internal opcode symbol
	mode   Mode  // addressing mode
	opcode byte  // opcode hex value
}

// All valid (opcode, mode) pairs of the 65C02
var data = []opcodeData{
	{symLDA, IMM, 0xa9},
	{symLDA, ZPG, 0xa5},
	{symLDA, ZPX, 0xb5},
	{symLDA, ABS, 0xad},
	{symLDA, ABX, 0xbd},
	{symLDA, ABY, 0xb9},
	{symLDA, IDX, 0xa1},
	{symLDA, IDY, 0xb1},
	{symLDA, ZPI, 0xb2},

	{symLDX, IMM, 0xa2},
	{symLDX, ZPG, 0xa6},
	{symLDX, ZPY, 0xb6},
	{symLDX, ABS, 0xae},
	{symLDX, ABY, 0xbe},

	{symLDY, IMM, 0xa0},
	{symLDY, ZPG, 0xa4},
	{symLDY, ZPX, 0xb4},
	{symLDY, ABS, 0xac},
	{symLDY, ABX, 0xbc},

	{symSTA, ZPG, 0x85},
	{symSTA, ZPX, 0x95},
	{symSTA, ABS, 0x8d},
	{symSTA, ABX, 0x9d},
	{symSTA, ABY, 0x99},
	{symSTA, IDX, 0x81},
	{symSTA, IDY, 0x91},
	{symSTA, ZPI, 0x92},

	{symSTX, ZPG, 0x86},
	{symSTX, ZPY, 0x96},
	{symSTX, ABS, 0x8e},

	{symSTY, ZPG, 0x84},
	{symSTY, ZPX, 0x94},
	{symSTY, ABS, 0x8c},

	{symSTZ, ZPG, 0x64},
	{symSTZ, ZPX, 0x74},
	{symSTZ, ABS, 0x9c},
	{symSTZ, ABX, 0x9e},

	{symADC, IMM, 0x69},
	{symADC, ZPG, 0x65},
	{symADC, ZPX, 0x75},
	{symADC, ABS, 0x6d},
	{symADC, ABX, 0x7d},
	{symADC, ABY, 0x79},
	{symADC, IDX, 0x61},
	{symADC, IDY, 0x71},
	{symADC, ZPI, 0x72},

	{symSBC, IMM, 0xe9},
	{symSBC, ZPG, 0xe5},
	{symSBC, ZPX, 0xf5},
	{symSBC, ABS, 0xed},
	{symSBC, ABX, 0xfd},
	{symSBC, ABY, 0xf9},
	{symSBC, IDX, 0xe1},
	{symSBC, IDY, 0xf1},
	{symSBC, ZPI, 0xf2},

	{symCMP, IMM, 0xc9},
	{symCMP, ZPG, 0xc5},
	{symCMP, ZPX, 0xd5},
	{symCMP, ABS, 0xcd},
	{symCMP, ABX, 0xdd},
	{symCMP, ABY, 0xd9},
	{symCMP, IDX, 0xc1},
	{symCMP, IDY, 0xd1},
	{symCMP, ZPI, 0xd2},

	{symCPX, IMM, 0xe0},
	{symCPX, ZPG, 0xe4},
	{symCPX, ABS, 0xec},

	{symCPY, IMM, 0xc0},
	{symCPY, ZPG, 0xc4},
	{symCPY, ABS, 0xcc},

	{symBIT, IMM, 0x89},
	{symBIT, ZPG, 0x24},
	{symBIT, ZPX, 0x34},
	{symBIT, ABS, 0x2c},
	{symBIT, ABX, 0x3c},

	{symCLC, IMP, 0x18},
	{symSEC, IMP, 0x38},
	{symCLI, IMP, 0x58},
	{symSEI, IMP, 0x78},
	{symCLD, IMP, 0xd8},
	{symSED, IMP, 0xf8},
	{symCLV, IMP, 0xb8},

	{symBCC, REL, 0x90},
	{symBCS, REL, 0xb0},
	{symBEQ, REL, 0xf0},
	{symBNE, REL, 0xd0},
	{symBMI, REL, 0x30},
	{symBPL, REL, 0x10},
	{symBVC, REL, 0x50},
	{symBVS, REL, 0x70},
	{symBRA, REL, 0x80},

	{symBRK, IMP, 0x00},

	{symAND, IMM, 0x29},
	{symAND, ZPG, 0x25},
	{symAND, ZPX, 0x35},
	{symAND, ABS, 0x2d},
	{symAND, ABX, 0x3d},
	{symAND, ABY, 0x39},
	{symAND, IDX, 0x21},
	{symAND, IDY, 0x31},
	{symAND, ZPI, 0x32},

	{symORA, IMM, 0x09},
	{symORA, ZPG, 0x05},
	{symORA, ZPX, 0x15},
	{symORA, ABS, 0x0d},
	{symORA, ABX, 0x1d},
	{symORA, ABY, 0x19},
	{symORA, IDX, 0x01},
	{symORA, IDY, 0x11},
	{symORA, ZPI, 0x12},

	{symEOR, IMM, 0x49},
	{symEOR, ZPG, 0x45},
	{symEOR, ZPX, 0x55},
	{symEOR, ABS, 0x4d},
	{symEOR, ABX, 0x5d},
	{symEOR, ABY, 0x59},
	{symEOR, IDX, 0x41},
	{symEOR, IDY, 0x51},
	{symEOR, ZPI, 0x52},

	{symINA, ACC, 0x1a},
	{symINC, ZPG, 0xe6},
	{symINC, ZPX, 0xf6},
	{symINC, ABS, 0xee},
	{symINC, ABX, 0xfe},

	{symDEA, ACC, 0x3a},
	{symDEC, ZPG, 0xc6},
	{symDEC, ZPX, 0xd6},
	{symDEC, ABS, 0xce},
	{symDEC, ABX, 0xde},

	{symINX, IMP, 0xe8},
	{symINY, IMP, 0xc8},

	{symDEX, IMP, 0xca},
	{symDEY, IMP, 0x88},

	{symJMP, ABS, 0x4c},
	{symJMP, IND, 0x6c},
	{symJMP, IAX, 0x7c},

	{symJSR, ABS, 0x20},

	{symRTS, IMP, 0x60},
	{symRTI, IMP, 0x40},

	{symNOP, IMP, 0xea},

	{symTAX, IMP, 0xaa},
	{symTXA, IMP, 0x8a},
	{symTAY, IMP, 0xa8},
	{symTYA, IMP, 0x98},
	{symTXS, IMP, 0x9a},
	{symTSX, IMP, 0xba},

	{symTRB, ZPG, 0x14},
	{symTRB, ABS, 0x1c},
	{symTSB, ZPG, 0x04},
	{symTSB, ABS, 0x0c},

	{symPHA, IMP, 0x48},
	{symPLA, IMP, 0x68},
	{symPHP, IMP, 0x08},
	{symPLP, IMP, 0x28},
	{symPHX, IMP, 0xda},
	{symPLX, IMP, 0xfa},
	{symPHY, IMP, 0x5a},
	{symPLY, IMP, 0x7a},

	{symASL, ACC, 0x0a},
	{symASL, ZPG, 0x06},
	{symASL, ZPX, 0x16},
	{symASL, ABS, 0x0e},
	{symASL, ABX, 0x1e},

	{symLSR, ACC, 0x4a},
	{symLSR, ZPG, 0x46},
	{symLSR, ZPX, 0x56},
	{symLSR, ABS, 0x4e},
	{symLSR, ABX, 0x5e},

	{symROL, ACC, 0x2a},
	{symROL, ZPG, 0x26},
	{symROL, ZPX, 0x36},
	{symROL, ABS, 0x2e},
	{symROL, ABX, 0x3e},

	{symROR, ACC, 0x6a},
	{symROR, ZPG, 0x66},
	{symROR, ZPX, 0x76},
	{symROR, ABS, 0x6e},
	{symROR, ABX, 0x7e},
}

// Alternate mnemonics for opcodes already assigned in the table above. They
// are accepted by Find but never returned by Lookup.
var synonyms = []struct {
	name   string
	mode   Mode
	opcode byte
}{
	{"inc", ACC, 0x1a},
	{"dec", ACC, 0x3a},
	{"blt", REL, 0x90},
	{"bge", REL, 0xb0},
}

// An Instruction describes a CPU instruction, including its name,
// its addressing mode, its opcode value and its length.
type Instruction struct {
	Name   string   // lowercase mnemonic; empty for undefined opcodes
	Mode   Mode     // addressing mode
	Opcode byte     // hexadecimal opcode value
	Length byte     // combined size of opcode and operand, in bytes
	fn     instfunc // emulator implementation of the instruction
}

// Defined reports whether the opcode has an assigned instruction.
func (i *Instruction) Defined() bool {
	return i.Name != ""
}

// An InstructionSet defines the set of all possible instructions that
// can run on the emulated CPU.
type InstructionSet struct {
	instructions [256]Instruction                 // all instructions by opcode
	variants     map[string]map[Mode]*Instruction // variants of each mnemonic
	branches     map[string]bool                  // mnemonics with a relative mode
}

// Lookup retrieves a CPU instruction corresponding to the requested opcode.
// Undefined opcodes return an instruction whose Defined method reports
// false.
func (s *InstructionSet) Lookup(opcode byte) *Instruction {
	return &s.instructions[opcode]
}

// Find returns the instruction encoding a mnemonic in the requested
// addressing mode. Mnemonic synonyms are accepted.
func (s *InstructionSet) Find(name string, mode Mode) (*Instruction, bool) {
	inst, ok := s.variants[strings.ToLower(name)][mode]
	return inst, ok
}

// HasMode reports whether the mnemonic can be encoded in the mode.
func (s *InstructionSet) HasMode(name string, mode Mode) bool {
	_, ok := s.Find(name, mode)
	return ok
}

// IsMnemonic reports whether name is a known instruction mnemonic.
func (s *InstructionSet) IsMnemonic(name string) bool {
	_, ok := s.variants[strings.ToLower(name)]
	return ok
}

// IsBranch reports whether the mnemonic is a relative branch.
func (s *InstructionSet) IsBranch(name string) bool {
	return s.branches[strings.ToLower(name)]
}

// GetInstructions returns all variants of a mnemonic, ordered by opcode.
func (s *InstructionSet) GetInstructions(name string) []*Instruction {
	var insts []*Instruction
	for i := range s.instructions {
		inst := &s.instructions[i]
		if variant, ok := s.Find(name, inst.Mode); ok && variant == inst {
			insts = append(insts, inst)
		}
	}
	return insts
}

func (s *InstructionSet) addVariant(name string, inst *Instruction) {
	m, ok := s.variants[name]
	if !ok {
		m = make(map[Mode]*Instruction)
		s.variants[name] = m
	}
	m[inst.Mode] = inst
	if inst.Mode == REL {
		s.branches[name] = true
	}
}

// Create the 65C02 instruction set.
func newInstructionSet() *InstructionSet {
	set := &InstructionSet{
		variants: make(map[string]map[Mode]*Instruction),
		branches: make(map[string]bool),
	}

	// Create a map from symbol to implementation for fast lookups.
	symToImpl := make(map[opsym]*opcodeImpl, len(impl))
	for i := range impl {
		symToImpl[impl[i].sym] = &impl[i]
	}

	for _, d := range data {
		inst := &set.instructions[d.opcode]
		if inst.Defined() {
			panic("duplicate opcode")
		}
		impl := symToImpl[d.sym]
		inst.Name = impl.name
		inst.Mode = d.mode
		inst.Opcode = d.opcode
		inst.Length = byte(d.mode.Length())
		inst.fn = impl.fn
		set.addVariant(inst.Name, inst)
	}

	// Undefined opcodes occupy a single byte.
	for i := range set.instructions {
		inst := &set.instructions[i]
		if !inst.Defined() {
			inst.Opcode = byte(i)
			inst.Mode = IMP
			inst.Length = 1
		}
	}

	for _, syn := range synonyms {
		set.addVariant(syn.name, &set.instructions[syn.opcode])
	}
	return set
}

var (
	instructionSet     *InstructionSet
	instructionSetOnce sync.Once
)

// Instructions returns the shared, immutable 65C02 instruction set. It is
// created on first use.
func Instructions() *InstructionSet {
	instructionSetOnce.Do(func() {
		instructionSet = newInstructionSet()
	})
	return instructionSet
}
