// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/beevik/go65c02/asm"
	"github.com/beevik/go65c02/cpu"
)

func loadCPU(t *testing.T, asmString string) *cpu.CPU {
	t.Helper()
	a := asm.New(asm.Quiet())
	r, err := a.AssembleReader(strings.NewReader(asmString), asm.DefaultPreserve)
	if err != nil {
		t.Error(err)
		return nil
	}

	mem := cpu.NewMemoryMap(r.Image)
	c := cpu.NewCPU(mem)
	c.SetPC(0x1000)
	return c
}

func stepCPU(t *testing.T, c *cpu.CPU, steps int) {
	t.Helper()
	for i := 0; i < steps; i++ {
		if _, err := c.Step(); err != nil {
			t.Errorf("step %d at $%04X: %v", i, c.LastPC, err)
			return
		}
	}
}

func runCPU(t *testing.T, asmString string, steps int) *cpu.CPU {
	t.Helper()
	c := loadCPU(t, asmString)
	if c != nil {
		stepCPU(t, c, steps)
	}
	return c
}

func expectPC(t *testing.T, c *cpu.CPU, pc uint16) {
	t.Helper()
	if c.Reg.PC != pc {
		t.Errorf("PC incorrect. exp: $%04X, got: $%04X", pc, c.Reg.PC)
	}
}

func expectACC(t *testing.T, c *cpu.CPU, acc byte) {
	t.Helper()
	if c.Reg.A != acc {
		t.Errorf("Accumulator incorrect. exp: $%02X, got: $%02X", acc, c.Reg.A)
	}
}

func expectSP(t *testing.T, c *cpu.CPU, sp byte) {
	t.Helper()
	if c.Reg.SP != sp {
		t.Errorf("stack pointer incorrect. exp: %02X, got $%02X", sp, c.Reg.SP)
	}
}

func expectPS(t *testing.T, c *cpu.CPU, ps byte) {
	t.Helper()
	if got := c.Reg.PS(); got != ps {
		t.Errorf("status incorrect. exp: $%02X, got: $%02X (%s)", ps, got, c.Reg.String())
	}
}

func expectMem(t *testing.T, c *cpu.CPU, addr uint16, v byte) {
	t.Helper()
	got := c.Mem.Cell(addr)
	if got != cpu.Value(v) {
		t.Errorf("Memory at $%04X incorrect. exp: $%02X, got: $%s", addr, v, got)
	}
}

func expectEffect(t *testing.T, got, exp cpu.Effect) {
	t.Helper()
	if got != exp {
		t.Errorf("effect incorrect. exp: %s, got: %s", exp, got)
	}
}

func TestAccumulator(t *testing.T) {
	asm := `
	ORG $1000
	LDA #$5E
	STA $15
	STA $1500`

	c := runCPU(t, asm, 3)
	if c == nil {
		return
	}

	expectPC(t, c, 0x1007)
	expectACC(t, c, 0x5e)
	expectMem(t, c, 0x15, 0x5e)
	expectMem(t, c, 0x1500, 0x5e)
}

func TestStack(t *testing.T) {
	asm := `
	ORG $1000
	LDA #$11
	PHA
	LDA #$12
	PHA
	LDA #$13
	PHA

	PLA
	STA $2000
	PLA
	STA $2001
	PLA
	STA $2002`

	c := loadCPU(t, asm)
	stepCPU(t, c, 6)

	expectSP(t, c, 0xfc)
	expectACC(t, c, 0x13)
	expectMem(t, c, 0x1ff, 0x11)
	expectMem(t, c, 0x1fe, 0x12)
	expectMem(t, c, 0x1fd, 0x13)

	stepCPU(t, c, 6)
	expectACC(t, c, 0x11)
	expectSP(t, c, 0xff)
	expectMem(t, c, 0x2000, 0x13)
	expectMem(t, c, 0x2001, 0x12)
	expectMem(t, c, 0x2002, 0x11)
}

func TestIndirect(t *testing.T) {
	asm := `
	ORG $1000
	LDX #$80
	LDY #$40
	LDA #$EE
	STA $2000,X
	STA $2000,Y

	LDA #$11
	STA $06
	LDA #$05
	STA $07
	LDX #$01
	LDY #$01
	LDA #$BB
	STA ($05,X)
	STA ($06),Y
	`

	c := runCPU(t, asm, 14)
	expectMem(t, c, 0x2080, 0xee)
	expectMem(t, c, 0x2040, 0xee)
	expectMem(t, c, 0x0511, 0xbb)
	expectMem(t, c, 0x0512, 0xbb)
}

func TestZeroPageWrap(t *testing.T) {
	asm := `
	ORG $1000
	LDX #$10
	LDA #$77
	STA $F8,X
	LDA #$34
	STA $FF
	LDA #$12
	STA $00
	LDA #$99
	STA ($FF)`

	c := runCPU(t, asm, 9)
	expectMem(t, c, 0x0008, 0x77)
	expectMem(t, c, 0x1234, 0x99)
}

func TestIndirectJump(t *testing.T) {
	asm := `
	ORG $1000
	JMP ($20FF)
	ORG $20FF
	DW $3456`

	c := runCPU(t, asm, 1)
	expectPC(t, c, 0x3456)
}

func TestSubroutine(t *testing.T) {
	asm := `
	ORG $1000
	JSR sub
	LDA #$01
sub:	RTS`

	c := runCPU(t, asm, 1)
	expectPC(t, c, 0x1005)
	expectSP(t, c, 0xfd)
	expectMem(t, c, 0x1ff, 0x10)
	expectMem(t, c, 0x1fe, 0x02)

	stepCPU(t, c, 1)
	expectPC(t, c, 0x1003)
	expectSP(t, c, 0xff)
}

func TestLoop(t *testing.T) {
	asm := `
	ORG $1000
	LDX #$00
	LDY #$05
loop:	INX
	DEY
	BNE loop
	BRK`

	c := runCPU(t, asm, 2+3*5)
	expectPC(t, c, 0x1008)
	if c.Reg.X != 5 || c.Reg.Y != 0 {
		t.Errorf("registers incorrect: %s", c.Reg.String())
	}
	if !c.Reg.Zero {
		t.Error("zero flag not set")
	}
}

func TestBinaryArithmetic(t *testing.T) {
	asm := `
	ORG $1000
	CLC
	LDA #$7F
	ADC #$01
	LDA #$FF
	ADC #$01
	SEC
	LDA #$00
	SBC #$01`

	c := runCPU(t, asm, 3)
	expectACC(t, c, 0x80)
	expectPS(t, c, cpu.SignBit|cpu.OverflowBit|cpu.BreakBit|cpu.ReservedBit)

	stepCPU(t, c, 2)
	expectACC(t, c, 0x00)
	expectPS(t, c, cpu.ZeroBit|cpu.CarryBit|cpu.BreakBit|cpu.ReservedBit)

	stepCPU(t, c, 3)
	expectACC(t, c, 0xff)
	expectPS(t, c, cpu.SignBit|cpu.BreakBit|cpu.ReservedBit)
}

func TestDecimalArithmetic(t *testing.T) {
	asm := `
	ORG $1000
	SED
	CLC
	LDA #$58
	ADC #$46
	SEC
	LDA #$46
	SBC #$12
	SEC
	LDA #$10
	SBC #$01`

	c := runCPU(t, asm, 4)
	expectACC(t, c, 0x04)
	if !c.Reg.Carry {
		t.Error("carry not set after decimal adc")
	}

	stepCPU(t, c, 3)
	expectACC(t, c, 0x34)
	if !c.Reg.Carry {
		t.Error("carry cleared after decimal sbc without borrow")
	}

	stepCPU(t, c, 3)
	expectACC(t, c, 0x09)
}

func TestInvalidBCD(t *testing.T) {
	asm := `
	ORG $1000
	SED
	LDA #$5A
	ADC #$01
	SBC #$0F`

	c := runCPU(t, asm, 2)
	_, err := c.Step()
	if !errors.Is(err, cpu.ErrInvalidBCD) {
		t.Errorf("expected ErrInvalidBCD, got %v", err)
	}

	c.Reg.A = 0x50
	_, err = c.Step()
	if !errors.Is(err, cpu.ErrInvalidBCD) {
		t.Errorf("expected ErrInvalidBCD, got %v", err)
	}
}

func TestBitImmediate(t *testing.T) {
	asm := `
	ORG $1000
	LDA #$01
	BIT #$C0`

	c := runCPU(t, asm, 2)
	if !c.Reg.Zero || c.Reg.Sign || c.Reg.Overflow {
		t.Errorf("bit immediate flags incorrect: %s", c.Reg.String())
	}
}

func TestTestAndSetBits(t *testing.T) {
	asm := `
	ORG $1000
	LDA #$F0
	STA $10
	LDA #$3C
	TRB $10
	TSB $10`

	c := runCPU(t, asm, 4)
	expectMem(t, c, 0x10, 0xc0)
	if c.Reg.Zero {
		t.Error("trb zero flag incorrect")
	}

	stepCPU(t, c, 1)
	expectMem(t, c, 0x10, 0xfc)
	if !c.Reg.Zero {
		t.Error("tsb zero flag incorrect")
	}
}

func TestEffects(t *testing.T) {
	asm := `
	ORG $1000
	LDA #$42
	STA $1500
	PHA
	PLA
	DB $03`

	c := loadCPU(t, asm)

	tests := []cpu.Effect{
		{Kind: cpu.EffectNone},
		{Kind: cpu.EffectWrite, Addr: 0x1500},
		{Kind: cpu.EffectStack, Addr: 0xfe},
		{Kind: cpu.EffectStack, Addr: 0xff},
		{Kind: cpu.EffectNotInstruction, Addr: 0x1007},
		{Kind: cpu.EffectWeeds, Addr: 0x1008},
	}
	for _, exp := range tests {
		got, err := c.Step()
		if err != nil {
			t.Fatal(err)
		}
		expectEffect(t, got, exp)
	}
	expectPC(t, c, 0x1009)
}

func TestReset(t *testing.T) {
	asm := `
	ORG $FFFC
	DW $1000`

	c := loadCPU(t, asm)
	c.Reg.A = 0x12
	c.Reg.Carry = true
	if err := c.Reset(); err != nil {
		t.Fatal(err)
	}

	expectPC(t, c, 0x1000)
	expectACC(t, c, 0x00)
	expectSP(t, c, 0xff)
	expectPS(t, c, 0x30)
}

func TestResetBadVector(t *testing.T) {
	mem := cpu.NewMemoryMap(nil)
	mem.InitializeMemory(0xfffc, []int{0x00}, nil)

	c := cpu.NewCPU(mem)
	c.Reg.X = 0x55
	err := c.Reset()
	if !errors.Is(err, cpu.ErrBadVector) {
		t.Fatalf("expected ErrBadVector, got %v", err)
	}
	expectPC(t, c, 0x0000)
	if c.Reg.X != 0 {
		t.Errorf("registers not zeroed: %s", c.Reg.String())
	}
}

func TestBreak(t *testing.T) {
	asm := `
	ORG $1000
	BRK
	DB $EA
	ORG $2000
	RTI
	ORG $FFFE
	DW $2000`

	c := loadCPU(t, asm)
	c.Reg.Decimal = true

	effect, err := c.Step()
	if err != nil {
		t.Fatal(err)
	}
	expectEffect(t, effect, cpu.Effect{Kind: cpu.EffectStack, Addr: 0xfc})
	expectPC(t, c, 0x2000)
	expectMem(t, c, 0x1ff, 0x10)
	expectMem(t, c, 0x1fe, 0x02)
	expectMem(t, c, 0x1fd, cpu.BreakBit|cpu.ReservedBit|cpu.DecimalBit)
	if !c.Reg.InterruptDisable || c.Reg.Decimal {
		t.Errorf("brk flags incorrect: %s", c.Reg.String())
	}

	stepCPU(t, c, 1)
	expectPC(t, c, 0x1002)
	expectSP(t, c, 0xff)
	if !c.Reg.Decimal || c.Reg.InterruptDisable {
		t.Errorf("rti flags incorrect: %s", c.Reg.String())
	}
}

func TestInterrupts(t *testing.T) {
	asm := `
	ORG $1000
	NOP
	ORG $FFFA
	DW $3000
	DW $1000
	DW $4000`

	c := loadCPU(t, asm)
	c.Reg.Carry = true

	// IRQ shares the NMI vector at $FFFA.
	if err := c.IRQ(); err != nil {
		t.Fatal(err)
	}
	expectPC(t, c, 0x3000)
	expectSP(t, c, 0xfc)
	expectMem(t, c, 0x1ff, 0x10)
	expectMem(t, c, 0x1fe, 0x00)
	expectMem(t, c, 0x1fd, cpu.ReservedBit|cpu.CarryBit)

	// The interrupt disable flag does not mask IRQ.
	if !c.Reg.InterruptDisable {
		t.Fatal("IRQ did not set the interrupt disable flag")
	}
	if err := c.IRQ(); err != nil {
		t.Fatal(err)
	}
	expectPC(t, c, 0x3000)
	expectSP(t, c, 0xf9)
	expectMem(t, c, 0x1fc, 0x30)
	expectMem(t, c, 0x1fb, 0x00)
	expectMem(t, c, 0x1fa, cpu.ReservedBit|cpu.CarryBit|cpu.InterruptDisableBit)

	c.SetPC(0x1000)
	if err := c.NMI(); err != nil {
		t.Fatal(err)
	}
	expectPC(t, c, 0x3000)
	expectSP(t, c, 0xf6)
	expectMem(t, c, 0x1f9, 0x10)
	expectMem(t, c, 0x1f8, 0x00)
}

func TestIRQVector(t *testing.T) {
	asm := `
	ORG $1000
	NOP
	ORG $FFFC
	DW $1000
	DW $4000`

	// Only the reset and BRK vectors are populated.
	c := loadCPU(t, asm)
	if err := c.IRQ(); !errors.Is(err, cpu.ErrBadVector) {
		t.Fatalf("expected ErrBadVector, got %v", err)
	}
	if err := c.IRQ(); err == nil || !strings.Contains(err.Error(), "$FFFA") {
		t.Errorf("IRQ error names the wrong vector: %v", err)
	}
	expectPC(t, c, 0x1000)
	expectSP(t, c, 0xff)

	c.Mem.InitializeMemory(0xfffa, []int{0x00, 0x20}, nil)
	if err := c.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := c.IRQ(); err != nil {
		t.Fatal(err)
	}
	expectPC(t, c, 0x2000)
	expectSP(t, c, 0xfc)
}

func TestInterruptBadVector(t *testing.T) {
	c := cpu.NewCPU(cpu.NewMemoryMap(nil))
	if err := c.NMI(); !errors.Is(err, cpu.ErrBadVector) {
		t.Errorf("expected ErrBadVector, got %v", err)
	}
	expectSP(t, c, 0xff)
}

func TestTrapOnExecute(t *testing.T) {
	asm := `
	ORG $1000
	LDA $2000`

	c := loadCPU(t, asm)
	c.Mem.SetDefaultInterceptor(cpu.Trap)

	_, err := c.Step()
	var trap *cpu.TrapError
	if !errors.As(err, &trap) {
		t.Fatalf("expected a trap, got %v", err)
	}
	if trap.Addr != 0x2000 || trap.Access != cpu.Read {
		t.Errorf("trap incorrect: %v", trap)
	}

	_, err = c.Execute(0x3000)
	if !errors.As(err, &trap) || trap.Access != cpu.Execute {
		t.Errorf("expected an execute trap, got %v", err)
	}
}

type breakHandler struct {
	breakpoints     []uint16
	dataBreakpoints []uint16
}

func (h *breakHandler) OnBreakpoint(c *cpu.CPU, b *cpu.Breakpoint) {
	h.breakpoints = append(h.breakpoints, b.Address)
}

func (h *breakHandler) OnDataBreakpoint(c *cpu.CPU, b *cpu.DataBreakpoint) {
	h.dataBreakpoints = append(h.dataBreakpoints, b.Address)
}

func TestDebugger(t *testing.T) {
	asm := `
	ORG $1000
	LDA #$01
	STA $20
	LDA #$02
	STA $20
	STA $21
	NOP`

	c := loadCPU(t, asm)
	h := &breakHandler{}
	d := cpu.NewDebugger(h)
	c.AttachDebugger(d)

	d.AddBreakpoint(0x1004)
	d.AddBreakpoint(0x100a).Disabled = true
	d.AddConditionalDataBreakpoint(0x20, 0x02)
	d.AddDataBreakpoint(0x21)

	stepCPU(t, c, 6)

	if len(h.breakpoints) != 1 || h.breakpoints[0] != 0x1004 {
		t.Errorf("breakpoints incorrect: %v", h.breakpoints)
	}
	if len(h.dataBreakpoints) != 2 || h.dataBreakpoints[0] != 0x20 || h.dataBreakpoints[1] != 0x21 {
		t.Errorf("data breakpoints incorrect: %v", h.dataBreakpoints)
	}

	bps := d.GetBreakpoints()
	if len(bps) != 2 || bps[0].Address != 0x1004 || bps[1].Address != 0x100a {
		t.Errorf("GetBreakpoints incorrect: %v", bps)
	}
}
