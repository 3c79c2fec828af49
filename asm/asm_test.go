// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/beevik/go65c02/cpu"
	"github.com/google/go-cmp/cmp"
)

func assemble(t *testing.T, code string) *Result {
	t.Helper()
	a := New(Quiet())
	result, _ := a.AssembleReader(strings.NewReader(code), DefaultPreserve)
	return result
}

// Return the object code bytes of every record, in source order.
func codeBytes(result *Result) []byte {
	var b []byte
	for _, r := range result.Records {
		for i := 0; i < r.Size(); i++ {
			b = append(b, result.Image[r.Address+uint16(i)].Byte())
		}
	}
	return b
}

func hexString(code []byte) string {
	b := make([]byte, len(code)*2)
	for i, j := 0, 0; i < len(code); i, j = i+1, j+2 {
		v := code[i]
		b[j+0] = hex[v>>4]
		b[j+1] = hex[v&0x0f]
	}
	return string(b)
}

func checkASM(t *testing.T, asm string, expected string) {
	t.Helper()
	result := assemble(t, asm)
	if err := result.Err(); err != nil {
		t.Error(err)
		for _, d := range result.Diagnostics {
			t.Log(d)
		}
		return
	}

	s := hexString(codeBytes(result))
	if s != expected {
		t.Error("code doesn't match expected")
		t.Errorf("got: %s\n", s)
		t.Errorf("exp: %s\n", expected)
	}
}

func messages(result *Result) []string {
	var msgs []string
	for _, d := range result.Diagnostics {
		msgs = append(msgs, d.String())
	}
	return msgs
}

func checkDiagnostics(t *testing.T, asm string, expected []string) *Result {
	t.Helper()
	result := assemble(t, asm)
	if diff := cmp.Diff(expected, messages(result)); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
	return result
}

var exampleProgram = []string{
	"        ORG $100",
	"        LDA #$10",
	"        LDX #$00",
	"loop:   STA $1000,X",
	"        INX",
	"        SBC #$01",
	"        BPL loop",
	"        RTS        ; done",
}

func TestExampleProgram(t *testing.T) {
	result, err := New(Quiet()).Assemble(exampleProgram, DefaultPreserve)
	if err != nil {
		t.Fatal(err)
	}

	got := codeBytes(result)
	exp := []byte{0xa9, 0x10, 0xa2, 0x00, 0x9d, 0x00, 0x10, 0xe8, 0xe9, 0x01, 0x10, 0xf8, 0x60}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Errorf("object code mismatch (-want +got):\n%s", diff)
	}

	if result.Image[0x100] != cpu.Value(0xa9) {
		t.Errorf("image[$0100] incorrect. exp: A9, got: %s", result.Image[0x100])
	}
	if result.Image[0xff].Populated() || result.Image[0x10d].Populated() {
		t.Error("cells outside the program are populated")
	}

	addr, ok := result.Symbols.Lookup("loop")
	if !ok || addr != 0x0104 {
		t.Errorf("loop incorrect. exp: $0104, got: $%04X", addr)
	}

	if len(result.Diagnostics) != 0 {
		t.Errorf("unexpected diagnostics: %v", messages(result))
	}
}

func TestListing(t *testing.T) {
	result, _ := New(Quiet()).Assemble(exampleProgram, DefaultPreserve)

	exp := []string{
		"LISTING",
		"1    0100 :                  org $100      ",
		"2    0100 :         A9 10    lda #$10      ",
		"3    0102 :         A2 00    ldx #$00      ",
		"4    0104 : loop:   9D 00 10 sta $1000,X   ",
		"5    0107 :         E8       inx           ",
		"6    0108 :         E9 01    sbc #$01      ",
		"7    010A :         10 F8    bpl loop      ",
		"8    010C :         60       rts           ; done",
	}
	if diff := cmp.Diff(exp, result.Listing); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}

	expSym := []string{
		"SYMBOL TABLE",
		"loop       = $0104",
	}
	if diff := cmp.Diff(expSym, result.SymbolText); diff != "" {
		t.Errorf("symbol text mismatch (-want +got):\n%s", diff)
	}
}

func TestListingDataContinuation(t *testing.T) {
	result := assemble(t, "tbl: db @10,$aa,8,$cc,$dd")
	exp := []string{
		"LISTING",
		"1    0000 : tbl:             db  @10,$aa,8,$cc,$dd",
		"1    0000 :         08 AA 08 CC DD",
	}
	if diff := cmp.Diff(exp, result.Listing); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestInstructionMap(t *testing.T) {
	result, _ := New(Quiet()).Assemble(exampleProgram, DefaultPreserve)

	exp := map[uint16]MapEntry{
		0x00ff: {Kind: NotInstruction},
		0x0100: {Kind: Opcode, Opcode: 0xa9},
		0x0101: {Kind: FirstOperand},
		0x0104: {Kind: Opcode, Opcode: 0x9d},
		0x0105: {Kind: FirstOperand},
		0x0106: {Kind: SecondOperand},
		0x0107: {Kind: Opcode, Opcode: 0xe8},
		0x010c: {Kind: Opcode, Opcode: 0x60},
		0x010d: {Kind: NotInstruction},
	}
	for addr, e := range exp {
		if got := result.Map[addr]; got != e {
			t.Errorf("map[$%04X] incorrect. exp: %+v, got: %+v", addr, e, got)
		}
	}
	if !result.Map.IsOpcode(0x010a) {
		t.Error("expected opcode at $010A")
	}
}

func TestSourceMap(t *testing.T) {
	result, _ := New(Quiet(), WithFilename("loop.asm")).Assemble(exampleProgram, DefaultPreserve)

	file, line := result.SourceMap.Search(0x0104)
	if file != "loop.asm" || line != 4 {
		t.Errorf("source map search incorrect. exp: loop.asm:4, got: %s:%d", file, line)
	}
	if _, line := result.SourceMap.Search(0x0105); line != -1 {
		t.Errorf("expected no mapping for $0105, got line %d", line)
	}

	var buf bytes.Buffer
	if _, err := result.SourceMap.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	var s SourceMap
	if _, err := s.ReadFrom(&buf); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(result.SourceMap, &s); diff != "" {
		t.Errorf("source map mismatch (-want +got):\n%s", diff)
	}
}

func TestAddressingIMM(t *testing.T) {
	asm := `
	LDA #$20
	LDX #$20
	LDY #$20
	ADC #$20
	SBC #$20
	CMP #$20
	CPX #$20
	CPY #$20
	AND #$20
	ORA #$20
	EOR #$20
	BIT #$20`

	checkASM(t, asm, "A920A220A0206920E920C920E020C0202920092049208920")
}

func TestAddressingABS(t *testing.T) {
	asm := `
	LDA $2000
	LDX $2000
	LDY $2000
	STA $2000
	STX $2000
	STY $2000
	ADC $2000
	SBC $2000
	CMP $2000
	CPX $2000
	CPY $2000
	BIT $2000
	AND $2000
	ORA $2000
	EOR $2000
	INC $2000
	DEC $2000
	JMP $2000
	JSR $2000
	ASL $2000
	LSR $2000
	ROL $2000
	ROR $2000`

	checkASM(t, asm, "AD0020AE0020AC00208D00208E00208C00206D0020ED0020CD0020"+
		"EC0020CC00202C00202D00200D00204D0020EE0020CE00204C00202000200E0020"+
		"4E00202E00206E0020")
}

func TestAddressingABX(t *testing.T) {
	asm := `
	LDA $2000,X
	LDY $2000,X
	STA $2000,X
	ADC $2000,X
	SBC $2000,X
	CMP $2000,X
	AND $2000,X
	ORA $2000,X
	EOR $2000,X
	INC $2000,X
	DEC $2000,X
	ASL $2000,X
	LSR $2000,X
	ROL $2000,X
	ROR $2000,x`

	checkASM(t, asm, "BD0020BC00209D00207D0020FD0020DD00203D00201D00205D0020"+
		"FE0020DE00201E00205E00203E00207E0020")
}

func TestAddressingABY(t *testing.T) {
	asm := `
	LDA $2000,Y
	LDX $2000,Y
	STA $2000,Y
	ADC $2000,Y
	SBC $2000,Y
	CMP $2000,Y
	AND $2000,Y
	ORA $2000,Y
	EOR $2000,y`

	checkASM(t, asm, "B90020BE0020990020790020F90020D90020390020190020590020")
}

func TestAddressingZPG(t *testing.T) {
	asm := `
	LDA $20
	LDX $20
	LDY $20
	STA $20
	STX $20
	STY $20
	ADC $20
	SBC $20
	CMP $20
	CPX $20
	CPY $20
	BIT $20
	AND $20
	ORA $20
	EOR $20
	INC $20
	DEC $20
	ASL $20
	LSR $20
	ROL $20
	ROR $20`

	checkASM(t, asm, "A520A620A4208520862084206520E520C520E420C42024202520"+
		"05204520E620C6200620462026206620")
}

func TestAddressingZeroPageIndexed(t *testing.T) {
	asm := `
	LDA $20,X
	STY $20,X
	LDX $20,Y
	STX $20,Y
	LDA ($20,X)
	STA ($20),Y
	LDA ($20)`

	checkASM(t, asm, "B5209420B6209620A1209120B220")
}

func TestAddressingIND(t *testing.T) {
	asm := `
	JMP ($20)
	JMP ($2000)
	JMP ($2000,X)`

	checkASM(t, asm, "6C20006C00207C0020")
}

func TestAddressingAccumulator(t *testing.T) {
	asm := `
	ASL A
	LSR
	ROL a
	ROR
	INC
	DEC A
	INA
	DEA`

	checkASM(t, asm, "0A4A2A6A1A3A1A3A")
}

func TestNumberFormats(t *testing.T) {
	asm := `
	LDA #255
	LDA #@17
	LDA #%1010
	LDA #$7f`

	checkASM(t, asm, "A9FFA90FA90AA97F")
}

func TestBranches(t *testing.T) {
	asm := `
	ORG $1000
start:	BNE start
	BEQ $1000
	BCC +4
	BCS -$10
	BLT fwd
	BGE fwd
fwd:	BRA start`

	checkASM(t, asm, "D0FEF0FC9004B0F09002B00080F2")
}

func Test65c02(t *testing.T) {
	asm := `
	ORG $1000
	PHX
	PHY
	PLX
	PLY
	BRA $1000
	STZ $01
	STZ $1234
	STZ $01,X
	STZ $1234,X
	BIT $12,X
	BIT $1234,X
	TRB $01
	TRB $1234
	TSB $01
	TSB $1234
	ADC ($01)
	SBC ($01)
	CMP ($01)
	AND ($01)
	ORA ($01)
	EOR ($01)
	LDA ($01)
	STA ($01)`

	checkASM(t, asm, "DA5AFA7A80FA64019C341274019E3412"+
		"34123C3412"+"14011C341204010C3412"+
		"7201F201D201320112015201B2019201")
}

func TestSymbolPrefersTwoByteForm(t *testing.T) {
	asm := `
	ORG $10
zp:	DB 0
	ORG $1000
	LDA zp
	LDA &zp
	LDA zp,X
	STX zp,Y
	LDA #zp`

	// zp is unknown when its users are parsed, so the absolute forms are
	// chosen. STX has no absolute,Y form and falls back to zero page,Y.
	checkASM(t, asm, "00AD1000AD1000BD10009610A910")
}

func TestDataBytes(t *testing.T) {
	asm := `
	DB @10,$aa,8,$cc,$dd
	DB "AB", $00
	DB %0101 1
	DB 300`

	result := assemble(t, asm)
	got := hexString(codeBytes(result))
	if exp := "08AA08CCDD41420005012C"; got != exp {
		t.Errorf("code incorrect. exp: %s, got: %s", exp, got)
	}

	if diff := cmp.Diff([]string{"warning: line 5: Truncating number 300"}, messages(result)); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestDataWidths(t *testing.T) {
	asm := `
	DW $1234, 5
	DDW $01020304
	DQW 1
	BE
	DW $1234
	DDW $01020304
	LE
	DW $1234`

	checkASM(t, asm, "34120500"+"04030201"+"0100000000000000"+
		"1234"+"01020304"+"3412")
}

func TestDataLabels(t *testing.T) {
	asm := `
	ORG $1234
start:	NOP
	DB &start
	DW &start, &end
end:	DDW &start`

	checkASM(t, asm, "EA"+"34"+"34123A12"+"34120000")
}

func TestDataDiagnostics(t *testing.T) {
	tests := []struct {
		asm  string
		code string
		msgs []string
	}{
		{`	DB "abc`, "616263", []string{"warning: line 1: Unterminated string"}},
		{`	DB 1,`, "01", []string{"warning: line 1: Trailing delimiter"}},
		{`	DB $1g`, "01", []string{"error: line 1: Unexpected character in hex"}},
		{`	DB 12a`, "0C", []string{"error: line 1: Unexpected character in decimal"}},
		{`	DB @19`, "01", []string{"error: line 1: Unexpected character in octal"}},
		{`	DB %102`, "02", []string{"error: line 1: Unexpected character in binary"}},
		{`	DB #`, "", []string{"warning: line 1: Unexpected character FSM=IDLE"}},
		{`	DB 1,,2`, "0102", []string{"warning: line 1: Unexpected character FSM=DELIM"}},
		{`	DB &a-b`, "00", []string{
			"warning: line 1: Unexpected character in label",
			"error: line 1: Undefined symbol ab",
		}},
		{`	DB &missing`, "00", []string{"error: line 1: Undefined symbol missing"}},
	}

	for _, test := range tests {
		result := assemble(t, test.asm)
		if got := hexString(codeBytes(result)); got != test.code {
			t.Errorf("%q: code incorrect. exp: %s, got: %s", test.asm, test.code, got)
		}
		if diff := cmp.Diff(test.msgs, messages(result)); diff != "" {
			t.Errorf("%q: diagnostics mismatch (-want +got):\n%s", test.asm, diff)
		}
	}
}

func TestParserDiagnostics(t *testing.T) {
	tests := []struct {
		asm  string
		msgs []string
	}{
		{"my label: nop", []string{
			"warning: line 1: More than one thing in the label field. Ignoring everything between the first space and the colon",
		}},
		{"	foo $10", []string{"warning: line 1: unknown opcode foo"}},
		{"	lda [1]", []string{
			"warning: line 1: Can't make sense of address mode [1]",
			"warning: line 1: no addressing mode of lda accepts operand [1]",
		}},
		{"	jmp $1234,x", []string{"warning: line 1: no addressing mode of jmp accepts operand $1234,x"}},
		{"	stx $1234,y", []string{"warning: line 1: Truncating number 4660"}},
		{"	lda $12345", []string{"warning: line 1: Truncating number 74565"}},
		{"	jmp $10000", []string{"warning: line 1: Truncating number 65536"}},
		{"	lda $ffff", nil},
		{"	jmp nowhere", []string{"error: line 1: Undefined symbol nowhere"}},
		{"	org start", []string{"warning: line 1: org needs a numeric address, got start"}},
		{"	lda $12g4", []string{"warning: line 1: Can't make sense of value $12g4"}},
	}

	for _, test := range tests {
		checkDiagnostics(t, test.asm, test.msgs)
	}
}

func TestWideOperandTruncated(t *testing.T) {
	result := checkDiagnostics(t, "	lda $12345",
		[]string{"warning: line 1: Truncating number 74565"})
	if diff := cmp.Diff([]byte{0xad, 0x45, 0x23}, codeBytes(result)); diff != "" {
		t.Errorf("object code mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLine(t *testing.T) {
	type fields struct {
		Label, Opcode, Operand, Value, Comment string
		Mode                                   cpu.Mode
		Low, High                              string
		ExtraCount                             int
	}

	tests := []struct {
		line string
		exp  fields
	}{
		{"start: LDA #$10 ; load", fields{"start", "lda", "#$10", "$10", "; load", cpu.IMM, "10 ", "   ", 0}},
		{"  sta ( ptr ) , y", fields{"", "sta", "( ptr ) , y", "ptr", "", cpu.IDY, "?? ", "   ", 0}},
		{"  jmp (vec)", fields{"", "jmp", "(vec)", "vec", "", cpu.IND, "?? ", "?? ", 0}},
		{"  bne loop", fields{"", "bne", "loop", "loop", "", cpu.REL, "?? ", "   ", 0}},
		{`msg: db "a;b", 0 ; text`, fields{"msg", "db", `"a;b", 0`, "", "; text", cpu.UND, "   ", "   ", 4}},
		{"  dw 1 2 3", fields{"", "dw", "1 2 3", "123", "", cpu.UND, "   ", "   ", 6}},
		{"; just a comment", fields{"", "", "", "", "; just a comment", cpu.UND, "   ", "   ", 0}},
		{"label:", fields{"label", "", "", "", "", cpu.UND, "   ", "   ", 0}},
	}

	for _, test := range tests {
		a := New(Quiet())
		r := a.ParseLine(test.line, 1)
		got := fields{
			r.Label, r.Opcode, r.Operand, r.Value, r.Comment,
			r.Mode, r.Low.String(), r.High.String(), r.ExtraCount,
		}
		if diff := cmp.Diff(test.exp, got); diff != "" {
			t.Errorf("%q: record mismatch (-want +got):\n%s", test.line, diff)
		}
	}
}

func TestBranchOutOfRange(t *testing.T) {
	asm := `
	ORG $1000
	BEQ target
	ORG $1100
target:	RTS`

	result := checkDiagnostics(t, asm, []string{
		"warning: line 3: branch can't reach destination, delta is 254",
	})
	if got := hexString(codeBytes(result)); got != "F0FE60" {
		t.Errorf("code incorrect. exp: F0FE60, got: %s", got)
	}
}

func TestUndefinedSymbolError(t *testing.T) {
	result := assemble(t, "\tjmp nowhere")
	err := result.Err()
	if !errors.Is(err, ErrAssembly) {
		t.Fatalf("expected ErrAssembly, got %v", err)
	}
	if got := hexString(codeBytes(result)); got != "4C0000" {
		t.Errorf("code incorrect. exp: 4C0000, got: %s", got)
	}
}

var relocatable = []string{
	"start:  ldx #$05",
	"loop:   dex",
	"        bne loop",
	"        beq done",
	"        nop",
	"done:   rts",
}

func TestReentrantAtTwoOrigins(t *testing.T) {
	a := New(Quiet())
	r1, err := a.Assemble(append([]string{"\torg $1000"}, relocatable...), DefaultPreserve)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := a.Assemble(append([]string{"\torg $2000"}, relocatable...), DefaultPreserve)
	if err != nil {
		t.Fatal(err)
	}

	// Object code is kept by default, so both copies are in the image.
	for i := uint16(0); i < 9; i++ {
		c1, c2 := r2.Image[0x1000+i], r2.Image[0x2000+i]
		if !c1.Populated() || c1 != c2 {
			t.Errorf("image mismatch at offset %d: $%s vs $%s", i, c1, c2)
		}
	}

	// Symbols are cleared by default and shifted by the origin delta.
	if r1.Symbols.Len() != r2.Symbols.Len() {
		t.Fatalf("symbol count mismatch: %d vs %d", r1.Symbols.Len(), r2.Symbols.Len())
	}
	for name, addr := range r1.Symbols.All() {
		addr2, _ := r2.Symbols.Lookup(name)
		if addr2-addr != 0x1000 {
			t.Errorf("symbol %s not shifted. got: $%04X and $%04X", name, addr, addr2)
		}
	}

	// The listing restarts with each call.
	if len(r2.Listing) != len(relocatable)+2 {
		t.Errorf("listing length incorrect. exp: %d, got: %d", len(relocatable)+2, len(r2.Listing))
	}
}

func TestPreserveFlags(t *testing.T) {
	a := New(Quiet())
	a.Assemble([]string{"\torg $1000", "one: nop"}, 0)
	r, _ := a.Assemble([]string{"\torg $2000", "two: jmp one"}, KeepListing|KeepSymbols)

	if r.Err() != nil {
		t.Fatalf("unexpected error: %v", r.Err())
	}
	if diff := cmp.Diff([]string{"one", "two"}, r.Symbols.Names()); diff != "" {
		t.Errorf("symbols mismatch (-want +got):\n%s", diff)
	}
	if r.Image[0x1000].Populated() {
		t.Error("object code was kept without KeepObject")
	}
	if len(r.Listing) != 5 {
		t.Errorf("listing length incorrect. exp: 5, got: %d", len(r.Listing))
	}
	if r.Image[0x2001] != cpu.Value(0x00) || r.Image[0x2002] != cpu.Value(0x10) {
		t.Errorf("jmp operand incorrect. got: %s %s", r.Image[0x2001], r.Image[0x2002])
	}
}

func TestSymbolTableOrder(t *testing.T) {
	s := NewSymbolTable()
	s.Set("b", 2)
	s.Set("a", 1)
	s.Set("b", 3)

	if diff := cmp.Diff([]string{"b", "a"}, s.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]uint16{"a": 1, "b": 3}, s.Map()); diff != "" {
		t.Errorf("map mismatch (-want +got):\n%s", diff)
	}
}
