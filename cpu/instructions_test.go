// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import "testing"

func TestOpcodeLookup(t *testing.T) {
	set := Instructions()

	tests := []struct {
		opcode byte
		name   string
		mode   Mode
		length byte
	}{
		{0x00, "brk", IMP, 1},
		{0x1a, "ina", ACC, 1},
		{0x3a, "dea", ACC, 1},
		{0x6c, "jmp", IND, 3},
		{0x7c, "jmp", IAX, 3},
		{0x89, "bit", IMM, 2},
		{0x80, "bra", REL, 2},
		{0x9d, "sta", ABX, 3},
		{0xb2, "lda", ZPI, 2},
		{0xb6, "ldx", ZPY, 2},
	}

	for _, test := range tests {
		inst := set.Lookup(test.opcode)
		if inst.Name != test.name || inst.Mode != test.mode || inst.Length != test.length {
			t.Errorf("opcode $%02X incorrect. exp: %s %s %d, got: %s %s %d",
				test.opcode, test.name, test.mode, test.length, inst.Name, inst.Mode, inst.Length)
		}
	}

	if inst := set.Lookup(0x03); inst.Defined() || inst.Length != 1 {
		t.Errorf("opcode $03 should be undefined with length 1, got %q length %d", inst.Name, inst.Length)
	}
}

func TestOpcodeFind(t *testing.T) {
	set := Instructions()

	tests := []struct {
		name   string
		mode   Mode
		opcode byte
	}{
		{"LDA", IMM, 0xa9},
		{"inc", ACC, 0x1a},
		{"INA", ACC, 0x1a},
		{"dec", ACC, 0x3a},
		{"blt", REL, 0x90},
		{"BGE", REL, 0xb0},
		{"stz", ABX, 0x9e},
	}
	for _, test := range tests {
		inst, ok := set.Find(test.name, test.mode)
		if !ok || inst.Opcode != test.opcode {
			t.Errorf("Find(%s, %s) incorrect. exp: $%02X", test.name, test.mode, test.opcode)
		}
	}

	if set.HasMode("stx", ABY) {
		t.Error("stx has no absolute,Y form")
	}
	if !set.IsMnemonic("Trb") || set.IsMnemonic("foo") {
		t.Error("IsMnemonic incorrect")
	}
	if !set.IsBranch("bge") || set.IsBranch("jmp") {
		t.Error("IsBranch incorrect")
	}
	if n := len(set.GetInstructions("lda")); n != 9 {
		t.Errorf("lda variants incorrect. exp: 9, got: %d", n)
	}
}

func TestOpcodeTableConsistency(t *testing.T) {
	set := Instructions()
	defined := 0
	for i := 0; i < 256; i++ {
		inst := set.Lookup(byte(i))
		if inst.Opcode != byte(i) {
			t.Errorf("opcode $%02X stored at wrong index", i)
		}
		if !inst.Defined() {
			continue
		}
		defined++
		if int(inst.Length) != inst.Mode.Length() {
			t.Errorf("opcode $%02X length %d does not match mode %s", i, inst.Length, inst.Mode)
		}
		if got, ok := set.Find(inst.Name, inst.Mode); !ok || got != inst {
			t.Errorf("opcode $%02X not found by name and mode", i)
		}
	}
	if defined == 0 {
		t.Fatal("no opcodes defined")
	}
}

func TestModeLengths(t *testing.T) {
	tests := []struct {
		mode     Mode
		length   int
		low, high bool
	}{
		{IMP, 1, false, false},
		{ACC, 1, false, false},
		{IMM, 2, true, false},
		{REL, 2, true, false},
		{ZPI, 2, true, false},
		{ABS, 3, true, true},
		{IAX, 3, true, true},
	}
	for _, test := range tests {
		if test.mode.Length() != test.length || test.mode.HasLow() != test.low || test.mode.HasHigh() != test.high {
			t.Errorf("mode %s incorrect", test.mode)
		}
	}
}

func TestRegistersString(t *testing.T) {
	var r Registers
	r.Init()
	r.Carry = true
	r.Sign = true
	r.PC = 0x1234

	exp := "A=00 X=00 Y=00 PS=[Nv-BdizC] SP=FF PC=1234"
	if got := r.String(); got != exp {
		t.Errorf("registers string incorrect.\nexp: %s\ngot: %s", exp, got)
	}
}
