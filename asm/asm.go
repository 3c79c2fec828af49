// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asm implements a three-pass 65C02 assembler producing a sparse
// 64K object code image, a listing, a symbol table and an instruction map.
package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/beevik/go65c02/cpu"
	"github.com/beevik/go65c02/log"
)

// ErrAssembly is returned when assembly produced error diagnostics.
var ErrAssembly = errors.New("assembly failed")

// Severity of a diagnostic.
type Severity byte

// Severities
const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// A Diagnostic is a warning or error reported against a source line.
type Diagnostic struct {
	Severity Severity
	Line     int    // 1-based source line number
	Text     string // the source line
	Msg      string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: line %d: %s", d.Severity, d.Line, d.Msg)
}

// MapKind describes the role of a byte in the object code.
type MapKind byte

// Instruction map entry kinds
const (
	NotInstruction MapKind = iota // data or unpopulated
	Opcode                        // the first byte of an instruction
	FirstOperand                  // the first operand byte of an instruction
	SecondOperand                 // the second operand byte of an instruction
)

// A MapEntry records the role of a single byte in the object code. For
// Opcode entries, Opcode holds the opcode byte.
type MapEntry struct {
	Kind   MapKind
	Opcode byte
}

// An InstructionMap has one entry for each address in the 64K space.
type InstructionMap []MapEntry

// IsOpcode reports whether addr holds the first byte of an instruction.
func (m InstructionMap) IsOpcode(addr uint16) bool {
	return m[addr].Kind == Opcode
}

// Preserve selects which accumulated state survives into the next call to
// Assemble.
type Preserve uint

// Preserve flags
const (
	KeepListing Preserve = 1 << iota // append to the previous listing
	KeepSymbols                      // keep previously defined symbols
	KeepObject                       // keep previously emitted object code

	DefaultPreserve = KeepObject
)

// An Option configures an Assembler.
type Option func(a *Assembler)

// WithFilename names the source in log entries and the source map.
func WithFilename(name string) Option {
	return func(a *Assembler) { a.filename = name }
}

// Quiet suppresses logging of diagnostics. They are still collected.
func Quiet() Option {
	return func(a *Assembler) { a.quiet = true }
}

// An Assembler converts 65C02 assembly source into object code. The
// assembler keeps its listing, symbols and object code between calls to
// Assemble, subject to the Preserve flags passed to each call.
type Assembler struct {
	instSet  *cpu.InstructionSet
	filename string
	quiet    bool
	logger   log.Entry

	listing []string
	symbols *SymbolTable
	image   []cpu.Cell
	imap    InstructionMap

	// per-call state
	littleEndian bool
	addr         uint16
	records      []*Record
	diags        []Diagnostic
}

// New creates an assembler.
func New(opts ...Option) *Assembler {
	a := &Assembler{
		instSet:  cpu.Instructions(),
		filename: "<input>",
		symbols:  NewSymbolTable(),
		image:    cpu.NewImage(),
		imap:     make(InstructionMap, 0x10000),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = log.ModAsm.WithField("file", a.filename)
	return a
}

// A Result holds the artifacts of one call to Assemble. All of its fields
// are copies owned by the caller.
type Result struct {
	Listing     []string       // listing text, starting with ListingHeader
	SymbolText  []string       // symbol table text, starting with SymbolHeader
	Symbols     *SymbolTable   // label -> address
	Image       []cpu.Cell     // 64K object code image
	Map         InstructionMap // role of each byte in the image
	Records     []*Record      // parsed source lines
	Diagnostics []Diagnostic   // warnings and errors, in source order
	SourceMap   *SourceMap     // address -> source line mapping
}

// Err returns an error wrapping ErrAssembly if any diagnostic has error
// severity.
func (r *Result) Err() error {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == Error {
			n++
		}
	}
	if n > 0 {
		return fmt.Errorf("%w: %d error(s)", ErrAssembly, n)
	}
	return nil
}

// Warnings returns the number of warning diagnostics.
func (r *Result) Warnings() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == Warning {
			n++
		}
	}
	return n
}

// Assemble assembles the source lines. The returned result is always
// non-nil; the error is the result's Err.
func (a *Assembler) Assemble(lines []string, preserve Preserve) (*Result, error) {
	a.clear(preserve)

	// Assembly consists of the following steps
	steps := []func(a *Assembler, lines []string){
		(*Assembler).parse,     // Parse each line into a record
		(*Assembler).layout,    // Assign addresses and bind labels
		(*Assembler).backpatch, // Resolve operands and emit object code
	}
	for _, step := range steps {
		step(a, lines)
	}

	result := a.report()
	return result, result.Err()
}

// AssembleReader reads source lines from r and assembles them.
func (a *Assembler) AssembleReader(r io.Reader, preserve Preserve) (*Result, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return a.Assemble(lines, preserve)
}

// Symbols returns the assembler's current symbol table.
func (a *Assembler) Symbols() *SymbolTable {
	return a.symbols
}

func (a *Assembler) clear(preserve Preserve) {
	if preserve&KeepListing == 0 {
		a.listing = nil
	}
	if preserve&KeepSymbols == 0 {
		a.symbols = NewSymbolTable()
	}
	if preserve&KeepObject == 0 {
		clear(a.image)
	}
	clear(a.imap)

	a.littleEndian = true
	a.addr = 0
	a.records = nil
	a.diags = nil
}

// First pass: parse every line into a record.
func (a *Assembler) parse(lines []string) {
	a.logger.Debugf("first pass")
	for i, text := range lines {
		a.records = append(a.records, a.ParseLine(text, i+1))
	}
}

// Second pass: assign an address to every record and bind labels.
func (a *Assembler) layout([]string) {
	a.logger.Debugf("second pass")
	for _, r := range a.records {
		if r.Opcode == "org" {
			v, kind := decodeValue(r.Value)
			if kind == valNumber {
				a.addr = uint16(v & 0xffff)
			} else {
				a.warning(r, "org needs a numeric address, got %s", r.Operand)
			}
		}

		r.Address = a.addr
		a.addr += uint16(r.Size())

		if r.Label != "" {
			a.symbols.Set(r.Label, r.Address)
		}
	}

	for name, addr := range a.symbols.All() {
		a.logger.Debugf("%-10s = $%04X", name, addr)
	}
}

// Third pass: fill in operand bytes that depend on symbols, decode data
// operands, then commit everything to the image and instruction map.
func (a *Assembler) backpatch([]string) {
	a.logger.Debugf("third pass")
	for _, r := range a.records {
		switch {
		case r.Inst != nil && r.Mode == cpu.REL && !r.Low.Resolved():
			a.resolveBranch(r)
		case r.Inst != nil && r.Low.Present() && !r.Low.Resolved():
			a.setOperand(r, a.resolveSymbol(r, operandValue(r.Value)))
		case r.kind == opData && r.Operand != "":
			a.decodeData(r, false)
		}

		a.listing = append(a.listing, listingLines(r)...)
		a.emit(r)
	}
}

// Compute the displacement of a branch whose target is a symbol or an
// absolute address.
func (a *Assembler) resolveBranch(r *Record) {
	value := operandValue(r.Value)
	target, kind := decodeValue(value)
	switch kind {
	case valSymbol:
		target = a.resolveSymbol(r, value)
	case valInvalid:
		a.warning(r, "Can't make sense of value %s", r.Value)
		target = 0
	}

	delta := target - (int(r.Address) + 2)
	if delta < -128 || delta > 127 {
		a.warning(r, "branch can't reach destination, delta is %d", delta)
	}
	r.Low = ByteValue(byte(delta))
}

func (a *Assembler) resolveSymbol(r *Record, name string) int {
	addr, ok := a.symbols.Lookup(name)
	if !ok {
		a.error(r, "Undefined symbol %s", name)
		return 0
	}
	return int(addr)
}

// Commit a record's bytes to the object code image.
func (a *Assembler) emit(r *Record) {
	addr := r.Address
	put := func(v byte, kind MapKind) {
		a.image[addr] = cpu.Value(v)
		a.imap[addr] = MapEntry{Kind: kind}
		addr++
	}

	if r.Inst != nil {
		put(r.Inst.Opcode, Opcode)
		a.imap[r.Address].Opcode = r.Inst.Opcode
	}
	if r.Low.Present() {
		put(r.Low.Value(), FirstOperand)
	}
	if r.High.Present() {
		put(r.High.Value(), SecondOperand)
	}
	for _, b := range r.Extra {
		put(b, NotInstruction)
	}
}

// Produce the result of the call from the accumulated state.
func (a *Assembler) report() *Result {
	listing := make([]string, 0, len(a.listing)+1)
	listing = append(listing, ListingHeader)
	listing = append(listing, a.listing...)

	return &Result{
		Listing:     listing,
		SymbolText:  symbolText(a.symbols),
		Symbols:     a.symbols.Clone(),
		Image:       slices.Clone(a.image),
		Map:         slices.Clone(a.imap),
		Records:     a.records,
		Diagnostics: slices.Clone(a.diags),
		SourceMap:   a.sourceMap(),
	}
}

func (a *Assembler) warning(r *Record, format string, args ...any) {
	a.diagnose(Warning, r, format, args...)
}

func (a *Assembler) error(r *Record, format string, args ...any) {
	a.diagnose(Error, r, format, args...)
}

func (a *Assembler) diagnose(sev Severity, r *Record, format string, args ...any) {
	d := Diagnostic{
		Severity: sev,
		Line:     r.Line,
		Text:     r.Text,
		Msg:      fmt.Sprintf(format, args...),
	}
	a.diags = append(a.diags, d)

	if a.quiet {
		return
	}
	entry := a.logger.WithFields(log.Fields{"line": d.Line, "text": d.Text})
	if sev == Error {
		entry.Errorf("%s", d.Msg)
	} else {
		entry.Warnf("%s", d.Msg)
	}
}
