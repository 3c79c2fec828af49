// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/beevik/go65c02/log"
)

// Errors
var (
	ErrUninitialized = errors.New("access to uninitialized memory")
)

// A Cell holds the contents of a single memory location. The zero value
// is Empty, an unpopulated location.
type Cell struct {
	v   byte
	set bool
}

// Empty is the unpopulated cell.
var Empty = Cell{}

// Value returns a populated cell holding v.
func Value(v byte) Cell {
	return Cell{v: v, set: true}
}

// Populated reports whether the cell holds a value.
func (c Cell) Populated() bool {
	return c.set
}

// Byte returns the value held by the cell, or 0 if the cell is empty.
func (c Cell) Byte() byte {
	return c.v
}

func (c Cell) String() string {
	if !c.set {
		return "--"
	}
	return fmt.Sprintf("%02X", c.v)
}

// NewImage returns a 64K image with every cell unpopulated.
func NewImage() []Cell {
	return make([]Cell, 0x10000)
}

// Access identifies the kind of memory access passed to an interceptor.
type Access byte

// Memory access kinds
const (
	Read Access = iota
	Write
	Execute
)

func (a Access) String() string {
	switch a {
	case Read:
		return "read"
	case Write:
		return "write"
	case Execute:
		return "execute"
	default:
		return "invalid"
	}
}

// An Interceptor is notified of accesses to the memory locations it is
// installed on. On Read and Execute accesses the value passed is Empty; on
// Write it is the value just stored. A non-nil error aborts the access.
type Interceptor interface {
	Intercept(m *MemoryMap, addr uint16, access Access, v Cell) error
}

// InterceptorFunc adapts an ordinary function to the Interceptor
// interface.
type InterceptorFunc func(m *MemoryMap, addr uint16, access Access, v Cell) error

// Intercept calls f(m, addr, access, v).
func (f InterceptorFunc) Intercept(m *MemoryMap, addr uint16, access Access, v Cell) error {
	return f(m, addr, access, v)
}

// Trap is an interceptor that fails any read or execute access to an
// unpopulated memory location.
var Trap Interceptor = InterceptorFunc(trap)

func trap(m *MemoryMap, addr uint16, access Access, v Cell) error {
	if access != Write && !m.cells[addr].set {
		return &TrapError{Addr: addr, Access: access}
	}
	return nil
}

// A TrapError is returned when the Trap interceptor fires.
type TrapError struct {
	Addr   uint16
	Access Access
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("trap when accessing memory location $%04X with mode %s", e.Addr, e.Access)
}

// Unwrap allows errors.Is(err, ErrUninitialized).
func (e *TrapError) Unwrap() error {
	return ErrUninitialized
}

// MemoryMap represents the entire 16-bit address space as 64K sparse
// cells, with optional interceptors on individual addresses.
type MemoryMap struct {
	cells        [0x10000]Cell
	interceptors map[uint16]Interceptor
	def          Interceptor
}

// NewMemoryMap creates a memory map. If image is non-nil, its cells are
// copied into the map starting at address 0.
func NewMemoryMap(image []Cell) *MemoryMap {
	m := &MemoryMap{interceptors: make(map[uint16]Interceptor)}
	copy(m.cells[:], image)
	return m
}

// SetDefaultInterceptor installs the interceptor used for addresses that
// have none of their own. Pass nil to remove it.
func (m *MemoryMap) SetDefaultInterceptor(i Interceptor) {
	m.def = i
}

// SetInterceptor installs an interceptor on a single address.
func (m *MemoryMap) SetInterceptor(addr uint16, i Interceptor) {
	m.interceptors[addr] = i
}

// RemoveInterceptor removes the interceptor installed on addr, if any.
func (m *MemoryMap) RemoveInterceptor(addr uint16) {
	delete(m.interceptors, addr)
}

func (m *MemoryMap) intercept(addr uint16, access Access, v Cell) error {
	i, ok := m.interceptors[addr]
	if !ok {
		i = m.def
	}
	if i == nil {
		return nil
	}
	err := i.Intercept(m, addr, access, v)
	if err != nil {
		log.ModMem.WithFields(log.Fields{"addr": fmt.Sprintf("$%04X", addr), "access": access}).
			Debugf("interceptor failed: %v", err)
	}
	return err
}

// Read returns the byte at addr. Unpopulated cells read as 0 unless an
// interceptor fails the access.
func (m *MemoryMap) Read(addr uint16) (byte, error) {
	if err := m.intercept(addr, Read, Empty); err != nil {
		return 0, err
	}
	return m.cells[addr].v, nil
}

// Execute returns the byte at addr as an instruction fetch.
func (m *MemoryMap) Execute(addr uint16) (byte, error) {
	if err := m.intercept(addr, Execute, Empty); err != nil {
		return 0, err
	}
	return m.cells[addr].v, nil
}

// Write stores v at addr and then notifies the interceptor.
func (m *MemoryMap) Write(addr uint16, v byte) error {
	m.cells[addr] = Value(v)
	return m.intercept(addr, Write, m.cells[addr])
}

// InitializeMemory stores data starting at addr, wrapping at the top of
// memory. Values outside 0..255 are skipped and leave their cell as it
// was. If interceptor is non-nil it is installed on every address the
// data spans.
func (m *MemoryMap) InitializeMemory(addr uint16, data []int, interceptor Interceptor) {
	for i, v := range data {
		a := addr + uint16(i)
		if v >= 0 && v < 256 {
			m.cells[a] = Value(byte(v))
		}
		if interceptor != nil {
			m.interceptors[a] = interceptor
		}
	}
}

// Load copies the populated cells of image into memory. Unpopulated
// cells in the image leave memory unchanged.
func (m *MemoryMap) Load(image []Cell) {
	for i, c := range image {
		if i >= len(m.cells) {
			break
		}
		if c.set {
			m.cells[i] = c
		}
	}
}

// Cell returns the raw contents of addr without firing any interceptor.
func (m *MemoryMap) Cell(addr uint16) Cell {
	return m.cells[addr]
}

// Populated reports whether addr holds a value.
func (m *MemoryMap) Populated(addr uint16) bool {
	return m.cells[addr].set
}

// Image returns a copy of the entire address space.
func (m *MemoryMap) Image() []Cell {
	img := make([]Cell, len(m.cells))
	copy(img, m.cells[:])
	return img
}

// Dump writes length cells starting at addr, 16 per line, in the form
// "$XXXX : bb bb ...". Unpopulated cells print as "--".
func (m *MemoryMap) Dump(w io.Writer, addr uint16, length int) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < length; i++ {
		a := addr + uint16(i)
		switch {
		case i%16 == 0:
			if i > 0 {
				bw.WriteByte('\n')
			}
			fmt.Fprintf(bw, "$%04X : %s", a, m.cells[a])
		default:
			fmt.Fprintf(bw, " %s", m.cells[a])
		}
	}
	if length > 0 {
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// Return the offset address 'addr' + 'offset'.
func offsetAddress(addr uint16, offset byte) uint16 {
	return addr + uint16(offset)
}

// Offset a zero-page address 'addr' by 'offset'. If the address
// exceeds the zero-page address space, wrap it.
func offsetZeroPage(addr uint16, offset byte) uint16 {
	return (addr + uint16(offset)) & 0xff
}

// Convert a 1- or 2-byte operand into an address.
func operandToAddress(operand []byte) uint16 {
	switch {
	case len(operand) == 1:
		return uint16(operand[0])
	case len(operand) == 2:
		return uint16(operand[0]) | uint16(operand[1])<<8
	}
	return 0
}

// Given a 1-byte stack pointer register, return the stack
// corresponding memory address.
func stackAddress(offset byte) uint16 {
	return uint16(0x100) + uint16(offset)
}
