// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpu implements the 65C02 instruction set, a sparse 64K memory
// map and an instruction simulator.
package cpu

import (
	"errors"
	"fmt"

	"github.com/beevik/go65c02/log"
)

// Errors
var (
	ErrBadVector  = errors.New("bad vector")
	ErrInvalidBCD = errors.New("invalid BCD operand")
)

// EffectKind classifies the side effect of an executed instruction.
type EffectKind byte

// Instruction side effects
const (
	EffectNone           EffectKind = iota // registers only
	EffectWrite                            // a single memory cell was written
	EffectStack                            // the stack was pushed or pulled
	EffectNotInstruction                   // the opcode is undefined
	EffectWeeds                            // the opcode cell was never populated
)

var effectNames = []string{"none", "write", "stack", "not_instruction", "weeds"}

func (k EffectKind) String() string {
	if int(k) < len(effectNames) {
		return effectNames[k]
	}
	return "invalid"
}

// An Effect describes what executing a single instruction did. For
// EffectWrite, Addr is the written address. For EffectStack, Addr is the
// stack pointer after the operation. For EffectNotInstruction and
// EffectWeeds, Addr is the address of the offending opcode.
type Effect struct {
	Kind EffectKind
	Addr uint16
}

func (e Effect) String() string {
	switch e.Kind {
	case EffectNone:
		return "none"
	case EffectStack:
		return fmt.Sprintf("stack $%02X", e.Addr)
	default:
		return fmt.Sprintf("%s $%04X", e.Kind, e.Addr)
	}
}

// CPU represents a single 65C02 CPU attached to a memory map.
type CPU struct {
	Reg      Registers         // CPU registers
	Mem      *MemoryMap        // assigned memory
	InstSet  *InstructionSet   // instruction set used by the CPU
	Symbols  map[string]uint16 // optional symbols, used for display only
	LastPC   uint16            // address of the most recently fetched opcode
	debugger *Debugger
}

// Interrupt vectors
const (
	vectorNMI   = 0xfffa
	vectorReset = 0xfffc
	vectorIRQ   = 0xfffa
	vectorBRK   = 0xfffe
)

// NewCPU creates an emulated 65C02 CPU bound to the specified memory.
func NewCPU(m *MemoryMap) *CPU {
	cpu := &CPU{
		Mem:     m,
		InstSet: Instructions(),
	}
	cpu.Reg.Init()
	return cpu
}

// SetPC updates the CPU program counter to 'addr'.
func (cpu *CPU) SetPC(addr uint16) {
	cpu.Reg.PC = addr
}

// GetInstruction returns the instruction whose opcode is stored at addr.
// No interceptors fire.
func (cpu *CPU) GetInstruction(addr uint16) *Instruction {
	return cpu.InstSet.Lookup(cpu.Mem.Cell(addr).Byte())
}

// NextAddr returns the address of the next instruction following the
// instruction at addr.
func (cpu *CPU) NextAddr(addr uint16) uint16 {
	return addr + uint16(cpu.GetInstruction(addr).Length)
}

// AttachDebugger attaches a debugger to the CPU. The debugger is notified
// after every instruction executed by Step.
func (cpu *CPU) AttachDebugger(debugger *Debugger) {
	cpu.debugger = debugger
}

// DetachDebugger detaches the current debugger from the CPU.
func (cpu *CPU) DetachDebugger() {
	cpu.debugger = nil
}

// Reset puts the registers in their power-on state and loads the program
// counter from the reset vector at $FFFC. ErrBadVector is returned if
// either vector byte is unpopulated.
func (cpu *CPU) Reset() error {
	cpu.Reg.Init()
	addr, err := cpu.loadVector(vectorReset)
	if err != nil {
		log.ModCPU.Errorf("reset: %v", err)
		return err
	}
	cpu.Reg.PC = addr
	return nil
}

// IRQ raises an interrupt through the vector at $FFFA, the same vector
// NMI uses. The interrupt disable flag does not mask it. ErrBadVector is
// returned if either vector byte is unpopulated.
func (cpu *CPU) IRQ() error {
	return cpu.interrupt(vectorIRQ)
}

// NMI raises a non-maskable interrupt.
func (cpu *CPU) NMI() error {
	return cpu.interrupt(vectorNMI)
}

// Step executes the instruction at the program counter.
func (cpu *CPU) Step() (Effect, error) {
	addr := cpu.Reg.PC
	cpu.LastPC = addr

	// Pre-increment the PC on opcode fetch.
	populated := cpu.Mem.Populated(addr)
	opcode, err := cpu.Mem.Execute(addr)
	cpu.Reg.PC++
	if err != nil {
		return Effect{}, err
	}
	if !populated {
		log.ModCPU.Debugf("weeds at $%04X", addr)
		return Effect{Kind: EffectWeeds, Addr: addr}, nil
	}

	inst := cpu.InstSet.Lookup(opcode)
	if !inst.Defined() {
		log.ModCPU.Debugf("undefined opcode $%02X at $%04X", opcode, addr)
		return Effect{Kind: EffectNotInstruction, Addr: addr}, nil
	}

	// Fetch only the operand bytes the addressing mode needs.
	var buf [2]byte
	operand := buf[:inst.Length-1]
	for i := range operand {
		if operand[i], err = cpu.Mem.Execute(cpu.Reg.PC + uint16(i)); err != nil {
			return Effect{}, err
		}
	}
	cpu.Reg.PC += uint16(len(operand))

	effect, err := inst.fn(cpu, inst, operand)
	if err != nil {
		return effect, err
	}

	if cpu.debugger != nil {
		if effect.Kind == EffectWrite {
			cpu.debugger.onDataStore(cpu, effect.Addr, cpu.Mem.Cell(effect.Addr).Byte())
		}
		cpu.debugger.onUpdatePC(cpu, cpu.Reg.PC)
	}
	return effect, nil
}

// Execute moves the program counter to addr and executes the instruction
// found there.
func (cpu *CPU) Execute(addr uint16) (Effect, error) {
	cpu.Reg.PC = addr
	return cpu.Step()
}

// Load a 16-bit vector, failing if either byte was never populated.
func (cpu *CPU) loadVector(vector uint16) (uint16, error) {
	if !cpu.Mem.Populated(vector) || !cpu.Mem.Populated(vector+1) {
		return 0, fmt.Errorf("%w at $%04X", ErrBadVector, vector)
	}
	return cpu.readAddress(vector, vector+1)
}

// Read a little-endian address whose bytes live at lo and hi.
func (cpu *CPU) readAddress(lo, hi uint16) (uint16, error) {
	l, err := cpu.Mem.Read(lo)
	if err != nil {
		return 0, err
	}
	h, err := cpu.Mem.Read(hi)
	if err != nil {
		return 0, err
	}
	return uint16(l) | uint16(h)<<8, nil
}

// Compute the effective address of a memory operand.
func (cpu *CPU) address(mode Mode, operand []byte) (uint16, error) {
	switch mode {
	case ZPG, ABS:
		return operandToAddress(operand), nil
	case ZPX:
		return offsetZeroPage(operandToAddress(operand), cpu.Reg.X), nil
	case ZPY:
		return offsetZeroPage(operandToAddress(operand), cpu.Reg.Y), nil
	case ABX:
		return offsetAddress(operandToAddress(operand), cpu.Reg.X), nil
	case ABY:
		return offsetAddress(operandToAddress(operand), cpu.Reg.Y), nil
	case IDX:
		zp := offsetZeroPage(operandToAddress(operand), cpu.Reg.X)
		return cpu.readAddress(zp, offsetZeroPage(zp, 1))
	case IDY:
		zp := operandToAddress(operand)
		addr, err := cpu.readAddress(zp, offsetZeroPage(zp, 1))
		return offsetAddress(addr, cpu.Reg.Y), err
	case ZPI:
		zp := operandToAddress(operand)
		return cpu.readAddress(zp, offsetZeroPage(zp, 1))
	case IND:
		// The 65C02 fixed the NMOS page-wrap bug on JMP ($xxFF).
		ptr := operandToAddress(operand)
		return cpu.readAddress(ptr, ptr+1)
	case IAX:
		ptr := offsetAddress(operandToAddress(operand), cpu.Reg.X)
		return cpu.readAddress(ptr, ptr+1)
	default:
		return 0, fmt.Errorf("addressing mode %s has no effective address", mode)
	}
}

// Load a byte value using the requested addressing mode and the operand
// to determine where to load it from.
func (cpu *CPU) load(mode Mode, operand []byte) (byte, error) {
	switch mode {
	case IMM:
		return operand[0], nil
	case ACC:
		return cpu.Reg.A, nil
	}
	addr, err := cpu.address(mode, operand)
	if err != nil {
		return 0, err
	}
	return cpu.Mem.Read(addr)
}

// Store a byte value using the specified addressing mode and the
// instruction operand to determine where to store it.
func (cpu *CPU) store(mode Mode, operand []byte, v byte) (Effect, error) {
	if mode == ACC {
		cpu.Reg.A = v
		return Effect{}, nil
	}
	addr, err := cpu.address(mode, operand)
	if err != nil {
		return Effect{}, err
	}
	return Effect{Kind: EffectWrite, Addr: addr}, cpu.Mem.Write(addr, v)
}

// Load, modify and store back a value.
func (cpu *CPU) modify(inst *Instruction, operand []byte, fn func(v byte) byte) (Effect, error) {
	v, err := cpu.load(inst.Mode, operand)
	if err != nil {
		return Effect{}, err
	}
	v = fn(v)
	cpu.updateNZ(v)
	return cpu.store(inst.Mode, operand, v)
}

// Execute a branch using the instruction operand.
func (cpu *CPU) branch(operand []byte) (Effect, error) {
	cpu.Reg.PC += uint16(int8(operand[0]))
	return Effect{}, nil
}

func (cpu *CPU) stackEffect() Effect {
	return Effect{Kind: EffectStack, Addr: uint16(cpu.Reg.SP)}
}

// Push a value 'v' onto the stack.
func (cpu *CPU) push(v byte) error {
	err := cpu.Mem.Write(stackAddress(cpu.Reg.SP), v)
	cpu.Reg.SP--
	return err
}

// Push the address 'addr' onto the stack.
func (cpu *CPU) pushAddress(addr uint16) error {
	if err := cpu.push(byte(addr >> 8)); err != nil {
		return err
	}
	return cpu.push(byte(addr))
}

// Pop a value from the stack and return it.
func (cpu *CPU) pop() (byte, error) {
	cpu.Reg.SP++
	return cpu.Mem.Read(stackAddress(cpu.Reg.SP))
}

// Pop a 16-bit address off the stack.
func (cpu *CPU) popAddress() (uint16, error) {
	lo, err := cpu.pop()
	if err != nil {
		return 0, err
	}
	hi, err := cpu.pop()
	return uint16(lo) | uint16(hi)<<8, err
}

// Update the Zero and Negative flags based on the value of 'v'.
func (cpu *CPU) updateNZ(v byte) {
	cpu.Reg.Zero = (v == 0)
	cpu.Reg.Sign = ((v & 0x80) != 0)
}

// Push the program counter and status flags onto the stack, then switch
// the program counter to the address held in the vector.
func (cpu *CPU) handleInterrupt(brk bool, vector uint16) error {
	if err := cpu.pushAddress(cpu.Reg.PC); err != nil {
		return err
	}
	if err := cpu.push(cpu.Reg.SavePS(brk)); err != nil {
		return err
	}
	cpu.Reg.InterruptDisable = true
	cpu.Reg.Decimal = false

	addr, err := cpu.readAddress(vector, vector+1)
	if err != nil {
		return err
	}
	cpu.Reg.PC = addr
	return nil
}

// Raise a hardware interrupt through the vector.
func (cpu *CPU) interrupt(vector uint16) error {
	if _, err := cpu.loadVector(vector); err != nil {
		return err
	}
	return cpu.handleInterrupt(false, vector)
}

// Report whether both nibbles of v are decimal digits.
func validBCD(v byte) bool {
	return v&0x0f <= 9 && v>>4 <= 9
}

// Add with carry
func (cpu *CPU) adc(inst *Instruction, operand []byte) (Effect, error) {
	add, err := cpu.load(inst.Mode, operand)
	if err != nil {
		return Effect{}, err
	}

	acc := uint32(cpu.Reg.A)
	carry := boolToUint32(cpu.Reg.Carry)
	bin := acc + uint32(add) + carry
	cpu.Reg.Overflow = ((acc^bin)&(uint32(add)^bin)&0x80 != 0)

	var v uint32
	switch cpu.Reg.Decimal {
	case true:
		if !validBCD(cpu.Reg.A) || !validBCD(add) {
			return Effect{}, fmt.Errorf("%w: adc $%02X with A=$%02X", ErrInvalidBCD, add, cpu.Reg.A)
		}

		lo := (acc & 0x0f) + uint32(add&0x0f) + carry
		var carrylo uint32
		if lo >= 0x0a {
			carrylo = 0x10
			lo -= 0x0a
		}

		hi := (acc & 0xf0) + uint32(add&0xf0) + carrylo
		cpu.Reg.Carry = hi >= 0xa0
		if cpu.Reg.Carry {
			hi -= 0xa0
		}
		v = hi | lo

	case false:
		v = bin
		cpu.Reg.Carry = v >= 0x100
	}

	cpu.Reg.A = byte(v)
	cpu.updateNZ(cpu.Reg.A)
	return Effect{}, nil
}

// Boolean AND
func (cpu *CPU) and(inst *Instruction, operand []byte) (Effect, error) {
	v, err := cpu.load(inst.Mode, operand)
	if err != nil {
		return Effect{}, err
	}
	cpu.Reg.A &= v
	cpu.updateNZ(cpu.Reg.A)
	return Effect{}, nil
}

// Arithmetic Shift Left
func (cpu *CPU) asl(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.modify(inst, operand, func(v byte) byte {
		cpu.Reg.Carry = ((v & 0x80) == 0x80)
		return v << 1
	})
}

// Branch if Carry Clear
func (cpu *CPU) bcc(inst *Instruction, operand []byte) (Effect, error) {
	if !cpu.Reg.Carry {
		return cpu.branch(operand)
	}
	return Effect{}, nil
}

// Branch if Carry Set
func (cpu *CPU) bcs(inst *Instruction, operand []byte) (Effect, error) {
	if cpu.Reg.Carry {
		return cpu.branch(operand)
	}
	return Effect{}, nil
}

// Branch if EQual (to zero)
func (cpu *CPU) beq(inst *Instruction, operand []byte) (Effect, error) {
	if cpu.Reg.Zero {
		return cpu.branch(operand)
	}
	return Effect{}, nil
}

// Bit Test. The immediate form affects only the Zero flag.
func (cpu *CPU) bit(inst *Instruction, operand []byte) (Effect, error) {
	v, err := cpu.load(inst.Mode, operand)
	if err != nil {
		return Effect{}, err
	}
	cpu.Reg.Zero = ((v & cpu.Reg.A) == 0)
	if inst.Mode != IMM {
		cpu.Reg.Sign = ((v & 0x80) != 0)
		cpu.Reg.Overflow = ((v & 0x40) != 0)
	}
	return Effect{}, nil
}

// Branch if MInus (negative)
func (cpu *CPU) bmi(inst *Instruction, operand []byte) (Effect, error) {
	if cpu.Reg.Sign {
		return cpu.branch(operand)
	}
	return Effect{}, nil
}

// Branch if Not Equal (not zero)
func (cpu *CPU) bne(inst *Instruction, operand []byte) (Effect, error) {
	if !cpu.Reg.Zero {
		return cpu.branch(operand)
	}
	return Effect{}, nil
}

// Branch if PLus (positive)
func (cpu *CPU) bpl(inst *Instruction, operand []byte) (Effect, error) {
	if !cpu.Reg.Sign {
		return cpu.branch(operand)
	}
	return Effect{}, nil
}

// Branch always
func (cpu *CPU) bra(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.branch(operand)
}

// Break. The pushed return address skips the signature byte after the
// opcode.
func (cpu *CPU) brk(inst *Instruction, operand []byte) (Effect, error) {
	cpu.Reg.PC++
	if err := cpu.handleInterrupt(true, vectorBRK); err != nil {
		return Effect{}, err
	}
	return cpu.stackEffect(), nil
}

// Branch if oVerflow Clear
func (cpu *CPU) bvc(inst *Instruction, operand []byte) (Effect, error) {
	if !cpu.Reg.Overflow {
		return cpu.branch(operand)
	}
	return Effect{}, nil
}

// Branch if oVerflow Set
func (cpu *CPU) bvs(inst *Instruction, operand []byte) (Effect, error) {
	if cpu.Reg.Overflow {
		return cpu.branch(operand)
	}
	return Effect{}, nil
}

// Clear Carry flag
func (cpu *CPU) clc(inst *Instruction, operand []byte) (Effect, error) {
	cpu.Reg.Carry = false
	return Effect{}, nil
}

// Clear Decimal flag
func (cpu *CPU) cld(inst *Instruction, operand []byte) (Effect, error) {
	cpu.Reg.Decimal = false
	return Effect{}, nil
}

// Clear InterruptDisable flag
func (cpu *CPU) cli(inst *Instruction, operand []byte) (Effect, error) {
	cpu.Reg.InterruptDisable = false
	return Effect{}, nil
}

// Clear oVerflow flag
func (cpu *CPU) clv(inst *Instruction, operand []byte) (Effect, error) {
	cpu.Reg.Overflow = false
	return Effect{}, nil
}

// Compare a register against a loaded value.
func (cpu *CPU) compare(reg byte, inst *Instruction, operand []byte) (Effect, error) {
	v, err := cpu.load(inst.Mode, operand)
	if err != nil {
		return Effect{}, err
	}
	cpu.Reg.Carry = (reg >= v)
	cpu.updateNZ(reg - v)
	return Effect{}, nil
}

// Compare to accumulator
func (cpu *CPU) cmp(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.compare(cpu.Reg.A, inst, operand)
}

// Compare to X register
func (cpu *CPU) cpx(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.compare(cpu.Reg.X, inst, operand)
}

// Compare to Y register
func (cpu *CPU) cpy(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.compare(cpu.Reg.Y, inst, operand)
}

// Decrement memory value or accumulator
func (cpu *CPU) dec(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.modify(inst, operand, func(v byte) byte { return v - 1 })
}

// Decrement X register
func (cpu *CPU) dex(inst *Instruction, operand []byte) (Effect, error) {
	cpu.Reg.X--
	cpu.updateNZ(cpu.Reg.X)
	return Effect{}, nil
}

// Decrement Y register
func (cpu *CPU) dey(inst *Instruction, operand []byte) (Effect, error) {
	cpu.Reg.Y--
	cpu.updateNZ(cpu.Reg.Y)
	return Effect{}, nil
}

// Boolean XOR
func (cpu *CPU) eor(inst *Instruction, operand []byte) (Effect, error) {
	v, err := cpu.load(inst.Mode, operand)
	if err != nil {
		return Effect{}, err
	}
	cpu.Reg.A ^= v
	cpu.updateNZ(cpu.Reg.A)
	return Effect{}, nil
}

// Increment memory value or accumulator
func (cpu *CPU) inc(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.modify(inst, operand, func(v byte) byte { return v + 1 })
}

// Increment X register
func (cpu *CPU) inx(inst *Instruction, operand []byte) (Effect, error) {
	cpu.Reg.X++
	cpu.updateNZ(cpu.Reg.X)
	return Effect{}, nil
}

// Increment Y register
func (cpu *CPU) iny(inst *Instruction, operand []byte) (Effect, error) {
	cpu.Reg.Y++
	cpu.updateNZ(cpu.Reg.Y)
	return Effect{}, nil
}

// Jump to memory address
func (cpu *CPU) jmp(inst *Instruction, operand []byte) (Effect, error) {
	addr, err := cpu.address(inst.Mode, operand)
	if err != nil {
		return Effect{}, err
	}
	cpu.Reg.PC = addr
	return Effect{}, nil
}

// Jump to subroutine
func (cpu *CPU) jsr(inst *Instruction, operand []byte) (Effect, error) {
	addr := operandToAddress(operand)
	if err := cpu.pushAddress(cpu.Reg.PC - 1); err != nil {
		return Effect{}, err
	}
	cpu.Reg.PC = addr
	return cpu.stackEffect(), nil
}

// load Accumulator
func (cpu *CPU) lda(inst *Instruction, operand []byte) (Effect, error) {
	v, err := cpu.load(inst.Mode, operand)
	if err != nil {
		return Effect{}, err
	}
	cpu.Reg.A = v
	cpu.updateNZ(cpu.Reg.A)
	return Effect{}, nil
}

// load the X register
func (cpu *CPU) ldx(inst *Instruction, operand []byte) (Effect, error) {
	v, err := cpu.load(inst.Mode, operand)
	if err != nil {
		return Effect{}, err
	}
	cpu.Reg.X = v
	cpu.updateNZ(cpu.Reg.X)
	return Effect{}, nil
}

// load the Y register
func (cpu *CPU) ldy(inst *Instruction, operand []byte) (Effect, error) {
	v, err := cpu.load(inst.Mode, operand)
	if err != nil {
		return Effect{}, err
	}
	cpu.Reg.Y = v
	cpu.updateNZ(cpu.Reg.Y)
	return Effect{}, nil
}

// Logical Shift Right
func (cpu *CPU) lsr(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.modify(inst, operand, func(v byte) byte {
		cpu.Reg.Carry = ((v & 1) == 1)
		return v >> 1
	})
}

// No-operation
func (cpu *CPU) nop(inst *Instruction, operand []byte) (Effect, error) {
	return Effect{}, nil
}

// Boolean OR
func (cpu *CPU) ora(inst *Instruction, operand []byte) (Effect, error) {
	v, err := cpu.load(inst.Mode, operand)
	if err != nil {
		return Effect{}, err
	}
	cpu.Reg.A |= v
	cpu.updateNZ(cpu.Reg.A)
	return Effect{}, nil
}

func (cpu *CPU) pushReg(v byte) (Effect, error) {
	if err := cpu.push(v); err != nil {
		return Effect{}, err
	}
	return cpu.stackEffect(), nil
}

// Push Accumulator
func (cpu *CPU) pha(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.pushReg(cpu.Reg.A)
}

// Push Processor flags
func (cpu *CPU) php(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.pushReg(cpu.Reg.SavePS(true))
}

// Push X register
func (cpu *CPU) phx(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.pushReg(cpu.Reg.X)
}

// Push Y register
func (cpu *CPU) phy(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.pushReg(cpu.Reg.Y)
}

func (cpu *CPU) pullReg(reg *byte) (Effect, error) {
	v, err := cpu.pop()
	if err != nil {
		return Effect{}, err
	}
	*reg = v
	cpu.updateNZ(v)
	return cpu.stackEffect(), nil
}

// Pull (pop) Accumulator
func (cpu *CPU) pla(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.pullReg(&cpu.Reg.A)
}

// Pull (pop) Processor flags
func (cpu *CPU) plp(inst *Instruction, operand []byte) (Effect, error) {
	v, err := cpu.pop()
	if err != nil {
		return Effect{}, err
	}
	cpu.Reg.RestorePS(v)
	return cpu.stackEffect(), nil
}

// Pull (pop) X register
func (cpu *CPU) plx(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.pullReg(&cpu.Reg.X)
}

// Pull (pop) Y register
func (cpu *CPU) ply(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.pullReg(&cpu.Reg.Y)
}

// Rotate Left
func (cpu *CPU) rol(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.modify(inst, operand, func(v byte) byte {
		r := (v << 1) | boolToByte(cpu.Reg.Carry)
		cpu.Reg.Carry = ((v & 0x80) != 0)
		return r
	})
}

// Rotate Right
func (cpu *CPU) ror(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.modify(inst, operand, func(v byte) byte {
		r := (v >> 1) | (boolToByte(cpu.Reg.Carry) << 7)
		cpu.Reg.Carry = ((v & 1) != 0)
		return r
	})
}

// Return from Interrupt
func (cpu *CPU) rti(inst *Instruction, operand []byte) (Effect, error) {
	v, err := cpu.pop()
	if err != nil {
		return Effect{}, err
	}
	cpu.Reg.RestorePS(v)
	if cpu.Reg.PC, err = cpu.popAddress(); err != nil {
		return Effect{}, err
	}
	return cpu.stackEffect(), nil
}

// Return from Subroutine
func (cpu *CPU) rts(inst *Instruction, operand []byte) (Effect, error) {
	addr, err := cpu.popAddress()
	if err != nil {
		return Effect{}, err
	}
	cpu.Reg.PC = addr + 1
	return cpu.stackEffect(), nil
}

// Subtract with Carry
func (cpu *CPU) sbc(inst *Instruction, operand []byte) (Effect, error) {
	sub, err := cpu.load(inst.Mode, operand)
	if err != nil {
		return Effect{}, err
	}

	acc := uint32(cpu.Reg.A)
	carry := boolToUint32(cpu.Reg.Carry)
	bin := 0xff + acc - uint32(sub) + carry
	cpu.Reg.Overflow = ((acc^uint32(sub))&(acc^bin)&0x80 != 0)

	var v uint32
	switch cpu.Reg.Decimal {
	case true:
		if !validBCD(cpu.Reg.A) || !validBCD(sub) {
			return Effect{}, fmt.Errorf("%w: sbc $%02X with A=$%02X", ErrInvalidBCD, sub, cpu.Reg.A)
		}

		lo := 0x0f + (acc & 0x0f) - uint32(sub&0x0f) + carry
		var carrylo uint32
		if lo < 0x10 {
			lo -= 0x06
		} else {
			lo -= 0x10
			carrylo = 0x10
		}

		hi := 0xf0 + (acc & 0xf0) - uint32(sub&0xf0) + carrylo
		cpu.Reg.Carry = hi >= 0x100
		if cpu.Reg.Carry {
			hi -= 0x100
		} else {
			hi -= 0x60
		}
		v = (hi & 0xf0) | (lo & 0x0f)

	case false:
		v = bin
		cpu.Reg.Carry = v >= 0x100
	}

	cpu.Reg.A = byte(v)
	cpu.updateNZ(cpu.Reg.A)
	return Effect{}, nil
}

// Set Carry flag
func (cpu *CPU) sec(inst *Instruction, operand []byte) (Effect, error) {
	cpu.Reg.Carry = true
	return Effect{}, nil
}

// Set Decimal flag
func (cpu *CPU) sed(inst *Instruction, operand []byte) (Effect, error) {
	cpu.Reg.Decimal = true
	return Effect{}, nil
}

// Set InterruptDisable flag
func (cpu *CPU) sei(inst *Instruction, operand []byte) (Effect, error) {
	cpu.Reg.InterruptDisable = true
	return Effect{}, nil
}

// Store Accumulator
func (cpu *CPU) sta(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.store(inst.Mode, operand, cpu.Reg.A)
}

// Store X register
func (cpu *CPU) stx(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.store(inst.Mode, operand, cpu.Reg.X)
}

// Store Y register
func (cpu *CPU) sty(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.store(inst.Mode, operand, cpu.Reg.Y)
}

// Store Zero
func (cpu *CPU) stz(inst *Instruction, operand []byte) (Effect, error) {
	return cpu.store(inst.Mode, operand, 0)
}

// Transfer Accumulator to X register
func (cpu *CPU) tax(inst *Instruction, operand []byte) (Effect, error) {
	cpu.Reg.X = cpu.Reg.A
	cpu.updateNZ(cpu.Reg.X)
	return Effect{}, nil
}

// Transfer Accumulator to Y register
func (cpu *CPU) tay(inst *Instruction, operand []byte) (Effect, error) {
	cpu.Reg.Y = cpu.Reg.A
	cpu.updateNZ(cpu.Reg.Y)
	return Effect{}, nil
}

// Test and Reset Bits
func (cpu *CPU) trb(inst *Instruction, operand []byte) (Effect, error) {
	v, err := cpu.load(inst.Mode, operand)
	if err != nil {
		return Effect{}, err
	}
	cpu.Reg.Zero = ((v & cpu.Reg.A) == 0)
	return cpu.store(inst.Mode, operand, v&^cpu.Reg.A)
}

// Test and Set Bits
func (cpu *CPU) tsb(inst *Instruction, operand []byte) (Effect, error) {
	v, err := cpu.load(inst.Mode, operand)
	if err != nil {
		return Effect{}, err
	}
	cpu.Reg.Zero = ((v & cpu.Reg.A) == 0)
	return cpu.store(inst.Mode, operand, v|cpu.Reg.A)
}

// Transfer stack pointer to X register
func (cpu *CPU) tsx(inst *Instruction, operand []byte) (Effect, error) {
	cpu.Reg.X = cpu.Reg.SP
	cpu.updateNZ(cpu.Reg.X)
	return Effect{}, nil
}

// Transfer X register to Accumulator
func (cpu *CPU) txa(inst *Instruction, operand []byte) (Effect, error) {
	cpu.Reg.A = cpu.Reg.X
	cpu.updateNZ(cpu.Reg.A)
	return Effect{}, nil
}

// Transfer X register to the stack pointer
func (cpu *CPU) txs(inst *Instruction, operand []byte) (Effect, error) {
	cpu.Reg.SP = cpu.Reg.X
	return Effect{}, nil
}

// Transfer Y register to the Accumulator
func (cpu *CPU) tya(inst *Instruction, operand []byte) (Effect, error) {
	cpu.Reg.A = cpu.Reg.Y
	cpu.updateNZ(cpu.Reg.A)
	return Effect{}, nil
}
