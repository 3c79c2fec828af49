// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package host allows you to create a "host" that emulates a computer system
// with a 65C02 CPU, 64K of sparse memory, a built-in assembler, a built-in
// debugger, and other useful tools.
//
// Within the host it is possible to assemble and load machine code into
// memory, debug and step through machine code, raise interrupts, set
// address and data breakpoints, dump the contents of memory, disassemble
// the contents of memory, manipulate CPU registers and memory, export
// object code, and evaluate arbitrary expressions.
package host

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/beevik/cmd"
	"github.com/beevik/go65c02/asm"
	"github.com/beevik/go65c02/cpu"
	"github.com/beevik/go65c02/disasm"
	"github.com/beevik/go65c02/export"
	"github.com/beevik/go65c02/log"
)

// ErrQuit is returned by Exec when the quit command runs.
var ErrQuit = errors.New("exiting program")

type state byte

const (
	stateProcessingCommands state = iota
	stateRunning
	stateBreakpoint
	stateStepOverBreakpoint
	stateHalted
)

// A Host represents a fully emulated 65C02 system, 64K of memory, a
// built-in assembler, a built-in debugger, and other useful tools.
type Host struct {
	output      *bufio.Writer
	interactive bool
	mem         *cpu.MemoryMap
	cpu         *cpu.CPU
	debugger    *cpu.Debugger
	listing     []string
	symbols     map[string]uint16
	sourceMap   *asm.SourceMap
	lastCmd     *cmd.Selection
	state       state
	interrupted atomic.Bool
	exprParser  *exprParser
	settings    *settings
	configPath  string
	annotations map[uint16]string
}

// An Option configures a Host.
type Option func(h *Host)

// WithOutput directs command output to w instead of standard output.
func WithOutput(w io.Writer) Option {
	return func(h *Host) { h.output = bufio.NewWriter(w) }
}

// WithConfig loads settings from the TOML file at path. The save command
// writes them back to the same file.
func WithConfig(path string) Option {
	return func(h *Host) { h.configPath = path }
}

// New creates a new 65C02 host environment.
func New(opts ...Option) *Host {
	h := &Host{
		output:      bufio.NewWriter(os.Stdout),
		state:       stateProcessingCommands,
		exprParser:  newExprParser(),
		settings:    newSettings(),
		symbols:     make(map[string]uint16),
		annotations: make(map[uint16]string),
	}
	for _, opt := range opts {
		opt(h)
	}

	// Create the emulated CPU and memory.
	h.mem = cpu.NewMemoryMap(nil)
	h.cpu = cpu.NewCPU(h.mem)
	h.cpu.Symbols = h.symbols

	// Create a CPU debugger and attach it to the CPU.
	h.debugger = cpu.NewDebugger(newDebugHandler(h))
	h.cpu.AttachDebugger(h.debugger)

	if h.configPath != "" {
		if err := h.settings.load(h.configPath); err != nil {
			log.ModHost.WithField("file", h.configPath).Warnf("settings not loaded: %v", err)
		}
	}
	h.onSettingsUpdate()
	return h
}

// RunCommands accepts host commands from a reader and outputs the results
// to a writer. If the commands are interactive, a prompt is displayed while
// the host waits for the the next command to be entered.
func (h *Host) RunCommands(r io.Reader, w io.Writer, interactive bool) {
	h.output = bufio.NewWriter(w)
	h.interactive = interactive

	if interactive {
		h.println()
	}
	h.displayPC()

	err := h.runScanner(bufio.NewScanner(r))
	if err != nil && err != ErrQuit {
		h.printf("ERROR: %v.\n", err)
	}
	h.flush()
}

func (h *Host) runScanner(s *bufio.Scanner) error {
	for {
		h.prompt()
		if !s.Scan() {
			return s.Err()
		}
		if err := h.Exec(s.Text()); err != nil {
			return err
		}
	}
}

// Exec runs a single command line. In interactive mode an empty line
// repeats the previous command. Lines starting with '#' or ';' are
// ignored. The only error returned is ErrQuit.
func (h *Host) Exec(line string) error {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
		return nil
	}

	var c cmd.Selection
	switch {
	case line != "":
		var err error
		c, err = cmds.Lookup(line)
		switch {
		case errors.Is(err, cmd.ErrNotFound):
			h.println("Command not found.")
			return nil
		case errors.Is(err, cmd.ErrAmbiguous):
			h.println("Command is ambiguous.")
			return nil
		case err != nil:
			h.printf("ERROR: %v.\n", err)
			return nil
		}
	case h.interactive && h.lastCmd != nil:
		c = *h.lastCmd
	}

	if c.Command == nil {
		if line != "" {
			h.displayCommands(line)
		}
		return nil
	}
	h.lastCmd = &c

	cc, ok := c.Command.Data.(*command)
	if !ok {
		return nil
	}
	log.ModHost.WithField("cmd", cc.path).Debugf("args %v", c.Args)
	return cc.run(h, c)
}

// Break interrupts a running CPU. It may be called from another
// goroutine, such as a signal handler.
func (h *Host) Break() {
	h.interrupted.Store(true)
}

// CPU returns the host's emulated CPU.
func (h *Host) CPU() *cpu.CPU {
	return h.cpu
}

func (h *Host) print(args ...any) {
	fmt.Fprint(h.output, args...)
}

func (h *Host) printf(format string, args ...any) {
	fmt.Fprintf(h.output, format, args...)
	h.flush()
}

func (h *Host) println(args ...any) {
	fmt.Fprintln(h.output, args...)
	h.flush()
}

func (h *Host) flush() {
	h.output.Flush()
}

func (h *Host) prompt() {
	if h.interactive {
		h.print("* ")
		h.flush()
	}
}

func (h *Host) displayPC() {
	if h.interactive {
		h.println(h.pcLine())
	}
}

// Return the disassembly of the instruction at the PC followed by the
// register contents.
func (h *Host) pcLine() string {
	line, _ := h.disassembler().Line(h.cpu.Reg.PC)
	return fmt.Sprintf("%-45s %s", line, h.cpu.Reg.String())
}

func (h *Host) disassembler() *disasm.Disassembler {
	return disasm.New(h.mem.Image(), h.symbols)
}

func (h *Host) cmdAnnotate(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c)
		return nil
	}

	addr, err := h.parseExpr(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	var annotation string
	if len(c.Args) >= 2 {
		annotation = strings.Join(c.Args[1:], " ")
	}

	if annotation == "" {
		delete(h.annotations, addr)
		h.printf("Annotation removed at $%04X.\n", addr)
	} else {
		h.annotations[addr] = annotation
		h.printf("Annotation added at $%04X.\n", addr)
	}

	return nil
}

func (h *Host) cmdAssemble(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c)
		return nil
	}

	filename := c.Args[0]
	if filepath.Ext(filename) == "" {
		filename += ".asm"
	}
	h.assembleFile(filename)
	return nil
}

// Assemble a source file and load its object code into memory. Returns
// true on success.
func (h *Host) assembleFile(filename string) bool {
	base := filepath.Base(filename)

	file, err := os.Open(filename)
	if err != nil {
		h.printf("Failed to open '%s': %v\n", base, err)
		return false
	}
	defer file.Close()

	a := asm.New(asm.WithFilename(base), asm.Quiet())
	r, err := a.AssembleReader(file, asm.DefaultPreserve)
	if r == nil {
		h.printf("Failed to read '%s': %v\n", base, err)
		return false
	}
	for _, d := range r.Diagnostics {
		h.println(d)
	}
	if err != nil {
		h.printf("Failed to assemble '%s'.\n", base)
		return false
	}

	h.mem.Load(r.Image)
	h.listing = slices.Concat(r.Listing, r.SymbolText)
	h.sourceMap = r.SourceMap
	for name, addr := range r.Symbols.All() {
		h.symbols[name] = addr
	}

	lo, hi, n := extent(r.Image)
	if n == 0 {
		h.printf("Assembled '%s': no object code.\n", base)
		return true
	}
	log.ModHost.WithField("file", base).Infof("assembled %d bytes at $%04X", n, lo)
	h.printf("Assembled '%s': %d bytes at $%04X-$%04X.\n", base, n, lo, hi)
	h.cpu.SetPC(lo)
	return true
}

// Return the lowest and highest populated addresses of an image and the
// number of populated cells.
func extent(image []cpu.Cell) (lo, hi uint16, n int) {
	for i, c := range image {
		if !c.Populated() {
			continue
		}
		if n == 0 {
			lo = uint16(i)
		}
		hi = uint16(i)
		n++
	}
	return lo, hi, n
}

func (h *Host) cmdBreakpointList(c cmd.Selection) error {
	h.println("Addr  Enabled")
	h.println("----- -------")
	for _, b := range h.debugger.GetBreakpoints() {
		h.printf("$%04X %v\n", b.Address, !b.Disabled)
	}
	return nil
}

func (h *Host) cmdBreakpointAdd(c cmd.Selection) error {
	addr, ok := h.addressArg(c)
	if !ok {
		return nil
	}

	h.debugger.AddBreakpoint(addr)
	h.printf("Breakpoint added at $%04X.\n", addr)
	return nil
}

func (h *Host) cmdBreakpointRemove(c cmd.Selection) error {
	addr, ok := h.addressArg(c)
	if !ok {
		return nil
	}

	if h.debugger.GetBreakpoint(addr) == nil {
		h.printf("No breakpoint was set on $%04X.\n", addr)
		return nil
	}

	h.debugger.RemoveBreakpoint(addr)
	h.printf("Breakpoint at $%04X removed.\n", addr)
	return nil
}

func (h *Host) cmdBreakpointEnable(c cmd.Selection) error {
	return h.enableBreakpoint(c, true)
}

func (h *Host) cmdBreakpointDisable(c cmd.Selection) error {
	return h.enableBreakpoint(c, false)
}

func (h *Host) enableBreakpoint(c cmd.Selection, enable bool) error {
	addr, ok := h.addressArg(c)
	if !ok {
		return nil
	}

	b := h.debugger.GetBreakpoint(addr)
	if b == nil {
		h.printf("No breakpoint was set on $%04X.\n", addr)
		return nil
	}

	b.Disabled = !enable
	h.printf("Breakpoint at $%04X %s.\n", addr, enabledString(enable))
	return nil
}

func (h *Host) cmdDataBreakpointList(c cmd.Selection) error {
	h.println("Addr  Enabled  Value")
	h.println("----- -------  -----")
	for _, b := range h.debugger.GetDataBreakpoints() {
		if b.Conditional {
			h.printf("$%04X %-5v    $%02X\n", b.Address, !b.Disabled, b.Value)
		} else {
			h.printf("$%04X %-5v    <none>\n", b.Address, !b.Disabled)
		}
	}
	return nil
}

func (h *Host) cmdDataBreakpointAdd(c cmd.Selection) error {
	addr, ok := h.addressArg(c)
	if !ok {
		return nil
	}

	if len(c.Args) > 1 {
		value, err := h.parseExpr(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		h.debugger.AddConditionalDataBreakpoint(addr, byte(value))
		h.printf("Conditional data breakpoint added at $%04X for value $%02X.\n", addr, byte(value))
	} else {
		h.debugger.AddDataBreakpoint(addr)
		h.printf("Data breakpoint added at $%04X.\n", addr)
	}

	return nil
}

func (h *Host) cmdDataBreakpointRemove(c cmd.Selection) error {
	addr, ok := h.addressArg(c)
	if !ok {
		return nil
	}

	if h.debugger.GetDataBreakpoint(addr) == nil {
		h.printf("No data breakpoint was set on $%04X.\n", addr)
		return nil
	}

	h.debugger.RemoveDataBreakpoint(addr)
	h.printf("Data breakpoint at $%04X removed.\n", addr)
	return nil
}

func (h *Host) cmdDataBreakpointEnable(c cmd.Selection) error {
	return h.enableDataBreakpoint(c, true)
}

func (h *Host) cmdDataBreakpointDisable(c cmd.Selection) error {
	return h.enableDataBreakpoint(c, false)
}

func (h *Host) enableDataBreakpoint(c cmd.Selection, enable bool) error {
	addr, ok := h.addressArg(c)
	if !ok {
		return nil
	}

	b := h.debugger.GetDataBreakpoint(addr)
	if b == nil {
		h.printf("No data breakpoint was set on $%04X.\n", addr)
		return nil
	}

	b.Disabled = !enable
	h.printf("Data breakpoint at $%04X %s.\n", addr, enabledString(enable))
	return nil
}

func enabledString(enable bool) string {
	if enable {
		return "enabled"
	}
	return "disabled"
}

func (h *Host) cmdDisassemble(c cmd.Selection) error {
	if len(c.Args) == 0 {
		c.Args = []string{"$"}
	}

	addr, ok := h.continuationArg(c.Args[0], h.settings.NextDisasmAddr)
	if !ok {
		return nil
	}

	lines := h.settings.DisasmLines
	if len(c.Args) > 1 {
		l, err := h.parseExpr(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		lines = int(l)
	}

	d := h.disassembler()
	for i := 0; i < lines; i++ {
		line, n := d.Line(addr)
		if anno, ok := h.annotations[addr]; ok {
			line = fmt.Sprintf("%-45s ; %s", line, anno)
		}
		h.println(line)
		addr += uint16(n)
	}

	h.settings.NextDisasmAddr = addr
	h.lastCmd.Args = []string{"$", fmt.Sprintf("%d", lines)}
	return nil
}

func (h *Host) cmdEvaluate(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c)
		return nil
	}

	expr := strings.Join(c.Args, " ")
	v, err := h.exprParser.Parse(expr, h)
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	h.printf("$%04X (%d)\n", uint16(v), v)
	return nil
}

func (h *Host) cmdExecute(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c)
		return nil
	}

	file, err := os.Open(c.Args[0])
	if err != nil {
		h.printf("Failed to open '%s': %v\n", filepath.Base(c.Args[0]), err)
		return nil
	}
	defer file.Close()

	interactive := h.interactive
	h.interactive = false
	defer func() { h.interactive = interactive }()

	err = h.runScanner(bufio.NewScanner(file))
	if err == ErrQuit {
		return err
	}
	if err != nil {
		h.printf("Failed to read '%s': %v\n", filepath.Base(c.Args[0]), err)
	}
	return nil
}

func (h *Host) cmdExports(c cmd.Selection) error {
	if h.sourceMap == nil || len(h.sourceMap.Exports) == 0 {
		h.println("No active exports.")
		return nil
	}
	for _, e := range h.sourceMap.Exports {
		h.printf("%-16s $%04X\n", e.Label, e.Address)
	}
	return nil
}

// Create the named export file, or use the host output if the name is
// "-". The returned function finishes the write.
func (h *Host) createOutput(name string) (io.Writer, func() error, error) {
	if name == "-" {
		return h.output, h.output.Flush, nil
	}
	file, err := os.Create(name)
	if err != nil {
		return nil, nil, err
	}
	return file, file.Close, nil
}

func (h *Host) export(c cmd.Selection, fn func(w io.Writer) error) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c)
		return nil
	}

	w, done, err := h.createOutput(c.Args[0])
	if err != nil {
		h.printf("Failed to create '%s': %v\n", filepath.Base(c.Args[0]), err)
		return nil
	}
	err = fn(w)
	if cerr := done(); err == nil {
		err = cerr
	}
	if err != nil {
		h.printf("Failed to write '%s': %v\n", filepath.Base(c.Args[0]), err)
		return nil
	}
	if c.Args[0] != "-" {
		h.printf("Exported to '%s'.\n", filepath.Base(c.Args[0]))
	}
	return nil
}

func (h *Host) cmdExportDump(c cmd.Selection) error {
	canonical := len(c.Args) > 1 && strings.EqualFold(c.Args[1], "canonical")

	var offset uint32
	if len(c.Args) > 2 {
		v, err := h.exprParser.Parse(c.Args[2], h)
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		offset = uint32(v)
	}

	return h.export(c, func(w io.Writer) error {
		return export.WriteDump(w, h.mem.Image(), canonical, offset)
	})
}

func (h *Host) cmdExportSRecord(c cmd.Selection) error {
	var module, comment string
	if len(c.Args) > 0 {
		base := filepath.Base(c.Args[0])
		module = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if len(c.Args) > 1 {
		module = c.Args[1]
	}
	if len(c.Args) > 2 {
		comment = strings.Join(c.Args[2:], " ")
	}

	return h.export(c, func(w io.Writer) error {
		return export.WriteLines(w, export.SRecords(h.mem.Image(), 1, 0, module, comment))
	})
}

func (h *Host) cmdExportIntelHex(c cmd.Selection) error {
	return h.export(c, func(w io.Writer) error {
		return export.WriteLines(w, export.IntelHex(h.mem.Image()))
	})
}

func (h *Host) cmdExportHex(c cmd.Selection) error {
	noAddress := len(c.Args) > 1 && strings.EqualFold(c.Args[1], "noaddress")
	return h.export(c, func(w io.Writer) error {
		return export.WriteLines(w, export.HexBlock(h.mem.Image(), noAddress))
	})
}

func (h *Host) cmdHelp(c cmd.Selection) error {
	if len(c.Args) == 0 {
		h.displayCommands("")
		return nil
	}

	prefix := strings.Join(c.Args, " ")
	s, err := cmds.Lookup(prefix)
	if err == nil && s.Command != nil {
		if cc, ok := s.Command.Data.(*command); ok {
			h.printf("Syntax: %s\n\n", cc.usage)
			h.printf("Description:\n%s\n\n", indentWrap(3, cc.description))
			return nil
		}
	}

	// Not a single command; list the matching group.
	if !h.displayCommands(prefix) {
		h.println("Command not found.")
	}
	return nil
}

func (h *Host) cmdIRQ(c cmd.Selection) error {
	if err := h.cpu.IRQ(); err != nil {
		h.printf("IRQ failed: %v.\n", err)
		return nil
	}
	h.printf("IRQ raised. PC=$%04X.\n", h.cpu.Reg.PC)
	h.displayPC()
	return nil
}

func (h *Host) cmdListing(c cmd.Selection) error {
	if len(h.listing) == 0 {
		h.println("No assembly listing.")
		return nil
	}
	for _, l := range h.listing {
		h.println(l)
	}
	return nil
}

func (h *Host) cmdLoad(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c)
		return nil
	}

	var offset uint16
	if len(c.Args) >= 2 {
		v, err := h.parseExpr(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		offset = v
	}

	base := filepath.Base(c.Args[0])
	file, err := os.Open(c.Args[0])
	if err != nil {
		h.printf("Failed to open '%s': %v\n", base, err)
		return nil
	}
	defer file.Close()

	image, err := export.ReadDump(file, offset)
	if err != nil {
		h.printf("Failed to read '%s': %v\n", base, err)
		return nil
	}

	h.mem.Load(image)
	lo, hi, n := extent(image)
	if n == 0 {
		h.printf("Loaded '%s': no data.\n", base)
		return nil
	}
	h.printf("Loaded '%s': %d bytes at $%04X-$%04X.\n", base, n, lo, hi)
	return nil
}

func (h *Host) cmdMemoryDump(c cmd.Selection) error {
	if len(c.Args) == 0 {
		c.Args = []string{"$"}
	}

	addr, ok := h.continuationArg(c.Args[0], h.settings.NextMemDumpAddr)
	if !ok {
		return nil
	}

	bytes := uint16(h.settings.MemDumpBytes)
	if len(c.Args) >= 2 {
		var err error
		bytes, err = h.parseExpr(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
	}

	h.mem.Dump(h.output, addr, int(bytes))
	h.flush()

	h.settings.NextMemDumpAddr = addr + bytes
	h.lastCmd.Args = []string{"$", fmt.Sprintf("%d", bytes)}
	return nil
}

func (h *Host) cmdMemorySet(c cmd.Selection) error {
	if len(c.Args) < 2 {
		h.displayHelpText(c)
		return nil
	}

	addr, err := h.parseExpr(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	for i, arg := range c.Args[1:] {
		v, err := h.parseExpr(arg)
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		if err := h.mem.Write(addr+uint16(i), byte(v)); err != nil {
			h.printf("%v\n", err)
			return nil
		}
	}

	h.printf("Set %d byte(s) at $%04X.\n", len(c.Args)-1, addr)
	return nil
}

func (h *Host) cmdMemoryCopy(c cmd.Selection) error {
	if len(c.Args) < 3 {
		h.displayHelpText(c)
		return nil
	}

	var a [3]uint16
	for i := range a {
		v, err := h.parseExpr(c.Args[i])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		a[i] = v
	}
	dst, begin, end := a[0], a[1], a[2]
	if end < begin {
		h.println("Invalid source range.")
		return nil
	}

	// Copy through a buffer so overlapping ranges work.
	cells := make([]cpu.Cell, int(end-begin)+1)
	for i := range cells {
		cells[i] = h.mem.Cell(begin + uint16(i))
	}
	for i, cell := range cells {
		if !cell.Populated() {
			continue
		}
		if err := h.mem.Write(dst+uint16(i), cell.Byte()); err != nil {
			h.printf("%v\n", err)
			return nil
		}
	}

	h.printf("Copied $%04X-$%04X to $%04X.\n", begin, end, dst)
	return nil
}

func (h *Host) cmdNMI(c cmd.Selection) error {
	if err := h.cpu.NMI(); err != nil {
		h.printf("NMI failed: %v.\n", err)
		return nil
	}
	h.printf("NMI raised. PC=$%04X.\n", h.cpu.Reg.PC)
	h.displayPC()
	return nil
}

func (h *Host) cmdQuit(c cmd.Selection) error {
	return ErrQuit
}

func (h *Host) cmdRegister(c cmd.Selection) error {
	if len(c.Args) == 0 {
		h.println(h.pcLine())
		return nil
	}
	if len(c.Args) < 2 {
		h.displayHelpText(c)
		return nil
	}

	key := strings.ToLower(c.Args[0])
	v, err := h.exprParser.Parse(strings.Join(c.Args[1:], " "), h)
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	r := &h.cpu.Reg
	var flag *bool
	switch key {
	case "a":
		r.A = byte(v)
	case "x":
		r.X = byte(v)
	case "y":
		r.Y = byte(v)
	case "sp":
		r.SP = byte(v)
	case "pc", ".":
		key = "pc"
		r.PC = uint16(v)
	case "n", "sign":
		flag = &r.Sign
	case "z", "zero":
		flag = &r.Zero
	case "c", "carry":
		flag = &r.Carry
	case "i", "interruptdisable":
		flag = &r.InterruptDisable
	case "d", "decimal":
		flag = &r.Decimal
	case "v", "overflow":
		flag = &r.Overflow
	default:
		h.printf("Unknown register '%s'.\n", c.Args[0])
		return nil
	}

	switch {
	case flag != nil:
		*flag = intToBool(int(v))
		h.printf("Register %s set to %v.\n", strings.ToUpper(key), *flag)
	case key == "pc":
		h.printf("Register PC set to $%04X.\n", r.PC)
	default:
		h.printf("Register %s set to $%02X.\n", strings.ToUpper(key), byte(v))
	}
	return nil
}

func (h *Host) cmdReset(c cmd.Selection) error {
	if err := h.cpu.Reset(); err != nil {
		h.printf("Reset failed: %v.\n", err)
		return nil
	}
	h.printf("CPU reset. PC=$%04X.\n", h.cpu.Reg.PC)
	h.displayPC()
	return nil
}

func (h *Host) cmdRun(c cmd.Selection) error {
	if len(c.Args) > 0 {
		pc, err := h.parseExpr(c.Args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		h.cpu.SetPC(pc)
	}

	h.printf("Running from $%04X. Press ctrl-C to break.\n", h.cpu.Reg.PC)

	limit := h.settings.RunLimit
	h.state = stateRunning
	for n := 0; h.state == stateRunning; n++ {
		if limit > 0 && n >= limit {
			h.printf("Stopped after %d instructions at $%04X.\n", n, h.cpu.Reg.PC)
			break
		}
		h.step()
	}
	h.state = stateProcessingCommands

	h.settings.NextDisasmAddr = h.cpu.Reg.PC
	return nil
}

func (h *Host) cmdSave(c cmd.Selection) error {
	if h.configPath == "" {
		h.println("No settings file configured.")
		return nil
	}
	if err := h.settings.save(h.configPath); err != nil {
		h.printf("Failed to save settings: %v\n", err)
		return nil
	}
	h.printf("Settings saved to '%s'.\n", h.configPath)
	return nil
}

func (h *Host) cmdSet(c cmd.Selection) error {
	switch len(c.Args) {
	case 0:
		h.println("Variables:")
		h.settings.Display(h.output)
		h.flush()

	case 1:
		h.displayHelpText(c)

	default:
		key, value := strings.ToLower(c.Args[0]), strings.Join(c.Args[1:], " ")

		var err error
		switch h.settings.Kind(key) {
		case reflect.Invalid:
			err = fmt.Errorf("setting '%s' not found", key)
		case reflect.String:
			err = h.settings.Set(key, value)
		case reflect.Bool:
			var v bool
			v, err = stringToBool(value)
			if err == nil {
				err = h.settings.Set(key, v)
			}
		default:
			var v int64
			v, err = h.exprParser.Parse(value, h)
			if err == nil {
				err = h.settings.Set(key, v)
			}
		}

		if err == nil {
			h.println("Setting updated.")
		} else {
			h.printf("%v\n", err)
		}

		h.onSettingsUpdate()
	}

	return nil
}

func (h *Host) cmdStepIn(c cmd.Selection) error {
	return h.stepCount(c, h.step)
}

func (h *Host) cmdStepOver(c cmd.Selection) error {
	return h.stepCount(c, h.stepOver)
}

// Run a stepping function the number of times requested by the command's
// optional count argument, displaying the last few instructions.
func (h *Host) stepCount(c cmd.Selection, fn func()) error {
	count := 1
	if len(c.Args) > 0 {
		n, err := h.parseExpr(c.Args[0])
		if err == nil {
			count = int(n)
		}
	}

	h.state = stateRunning
	for i := count - 1; i >= 0 && h.state == stateRunning; i-- {
		fn()
		switch {
		case i == h.settings.MaxStepLines:
			h.println("...")
		case i < h.settings.MaxStepLines:
			h.displayPC()
		}
	}
	h.state = stateProcessingCommands

	h.settings.NextDisasmAddr = h.cpu.Reg.PC
	return nil
}

func (h *Host) cmdStepOut(c cmd.Selection) error {
	sp := h.cpu.Reg.SP

	h.state = stateRunning
	for h.state == stateRunning {
		inst := h.cpu.GetInstruction(h.cpu.Reg.PC)
		h.step()
		if (inst.Name == "rts" || inst.Name == "rti") && h.cpu.Reg.SP > sp {
			break
		}
	}
	h.state = stateProcessingCommands

	h.displayPC()
	h.settings.NextDisasmAddr = h.cpu.Reg.PC
	return nil
}

func (h *Host) cmdSymbolsList(c cmd.Selection) error {
	if len(h.symbols) == 0 {
		h.println("No symbols.")
		return nil
	}

	names := make([]string, 0, len(h.symbols))
	for name := range h.symbols {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if h.symbols[a] != h.symbols[b] {
			return int(h.symbols[a]) - int(h.symbols[b])
		}
		return strings.Compare(a, b)
	})

	h.println(asm.SymbolHeader)
	for _, name := range names {
		h.printf("%-10s = $%04X\n", name, h.symbols[name])
	}
	return nil
}

func (h *Host) cmdSymbolsGenerate(c cmd.Selection) error {
	if len(c.Args) < 2 {
		h.displayHelpText(c)
		return nil
	}

	addr, err := h.parseExpr(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}
	length, err := h.parseExpr(c.Args[1])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	d := h.disassembler()
	n := d.GenerateSymbols(addr, int(length))
	for name, a := range d.Symbols() {
		h.symbols[name] = a
	}
	h.printf("Generated %d label(s).\n", n)
	return nil
}

// Execute a single instruction and report anything that stops the CPU.
func (h *Host) step() {
	effect, err := h.cpu.Step()
	switch {
	case err != nil:
		h.printf("Execution stopped: %v.\n", err)
		h.state = stateHalted
	case effect.Kind == cpu.EffectWeeds:
		h.cpu.SetPC(effect.Addr)
		h.printf("CPU in the weeds at $%04X.\n", effect.Addr)
		h.state = stateHalted
	case effect.Kind == cpu.EffectNotInstruction:
		h.cpu.SetPC(effect.Addr)
		h.printf("Undefined opcode $%02X at $%04X.\n", h.mem.Cell(effect.Addr).Byte(), effect.Addr)
		h.state = stateHalted
	case h.settings.ShowEffects && effect.Kind != cpu.EffectNone:
		h.printf("Effect: %s\n", effect)
	}

	if h.interrupted.Swap(false) && h.state == stateRunning {
		h.println("Interrupted.")
		h.state = stateBreakpoint
		h.displayPC()
	}
}

func (h *Host) stepOver() {
	c := h.cpu

	// JSR instructions need to be handled specially.
	inst := c.GetInstruction(c.Reg.PC)
	if inst.Name != "jsr" {
		h.step()
		return
	}

	// Place a step-over breakpoint on the instruction following the JSR.
	// Either modify an already existing breakpoint on that instruction, or
	// create a temporary one.
	next := c.Reg.PC + uint16(inst.Length)
	tmpBreakpointCreated := false
	b := h.debugger.GetBreakpoint(next)
	if b == nil {
		b = h.debugger.AddBreakpoint(next)
		tmpBreakpointCreated = true
	}
	b.StepOver = true

	// Run until interrupted.
	for h.state == stateRunning {
		h.step()
	}
	b.StepOver = false

	// If we were interrupted by the temporary step-over breakpoint,
	// then continue as normal.
	if h.state == stateStepOverBreakpoint {
		h.state = stateRunning
	}

	// Remove the temporarily created breakpoint.
	if tmpBreakpointCreated {
		h.debugger.RemoveBreakpoint(next)
	}
}

func (h *Host) onSettingsUpdate() {
	h.exprParser.hexMode = h.settings.HexMode
	if h.settings.TrapMemory {
		h.mem.SetDefaultInterceptor(cpu.Trap)
	} else {
		h.mem.SetDefaultInterceptor(nil)
	}
}

// Parse the command's first argument as an address. Displays the help
// text or the parse error and returns false on failure.
func (h *Host) addressArg(c cmd.Selection) (uint16, bool) {
	if len(c.Args) < 1 {
		h.displayHelpText(c)
		return 0, false
	}
	addr, err := h.parseExpr(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return 0, false
	}
	return addr, true
}

// Parse an address argument that may be "$" to continue from next, or
// "." for the current PC.
func (h *Host) continuationArg(arg string, next uint16) (uint16, bool) {
	switch arg {
	case "$":
		if next == 0 {
			return h.cpu.Reg.PC, true
		}
		return next, true
	case ".":
		return h.cpu.Reg.PC, true
	}
	addr, err := h.parseExpr(arg)
	if err != nil {
		h.printf("%v\n", err)
		return 0, false
	}
	return addr, true
}

func (h *Host) parseExpr(expr string) (uint16, error) {
	v, err := h.exprParser.Parse(expr, h)
	if err != nil {
		return 0, err
	}

	if v < 0 {
		v = 0x10000 + v
	}
	return uint16(v), nil
}

func (h *Host) displayHelpText(c cmd.Selection) {
	if cc, ok := c.Command.Data.(*command); ok && cc.usage != "" {
		h.printf("Syntax: %s\n", cc.usage)
	} else {
		h.println("<no help text>")
	}
}

// Display the commands whose path begins with prefix. Returns false if
// there are none.
func (h *Host) displayCommands(prefix string) bool {
	found := false
	for _, c := range commands {
		if c.brief == "" || (prefix != "" && !strings.HasPrefix(c.path, prefix+" ")) {
			continue
		}
		if !found {
			h.println("Commands:")
			found = true
		}
		h.printf("    %-24s %s\n", c.path, c.brief)
	}
	return found
}

func (h *Host) resolveIdentifier(s string) (int64, error) {
	switch strings.ToLower(s) {
	case "a":
		return int64(h.cpu.Reg.A), nil
	case "x":
		return int64(h.cpu.Reg.X), nil
	case "y":
		return int64(h.cpu.Reg.Y), nil
	case "sp":
		return int64(h.cpu.Reg.SP) | 0x0100, nil
	case ".", "pc":
		return int64(h.cpu.Reg.PC), nil
	}

	if addr, ok := h.symbols[s]; ok {
		return int64(addr), nil
	}
	for name, addr := range h.symbols {
		if strings.EqualFold(name, s) {
			return int64(addr), nil
		}
	}

	return 0, fmt.Errorf("%w: '%s'", errUnknownSymbol, s)
}

func (h *Host) onBreakpoint(c *cpu.CPU, b *cpu.Breakpoint) {
	if b.StepOver {
		h.state = stateStepOverBreakpoint
	} else {
		h.state = stateBreakpoint
		h.printf("Breakpoint hit at $%04X.\n", b.Address)
		h.displayPC()
	}
}

func (h *Host) onDataBreakpoint(c *cpu.CPU, b *cpu.DataBreakpoint) {
	h.printf("Data breakpoint hit on address $%04X.\n", b.Address)

	h.state = stateBreakpoint

	if c.LastPC != c.Reg.PC && h.interactive {
		line, _ := h.disassembler().Line(c.LastPC)
		h.println(line)
	}

	h.displayPC()
}
