// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"strings"

	"github.com/beevik/cmd"
)

// A command holds the help text and handler for one host command. It is
// stored as the Data of its entry in the command tree.
type command struct {
	path        string
	brief       string
	description string
	usage       string
	run         func(*Host, cmd.Selection) error
}

var (
	cmds     *cmd.Tree
	commands []*command // in registration order, for help
)

func addCommand(t *cmd.Tree, prefix string, c *command) {
	name := c.path
	c.path = strings.TrimSpace(prefix + " " + name)
	t.AddCommand(cmd.CommandDescriptor{
		Name:        name,
		Brief:       c.brief,
		Description: c.description,
		Usage:       c.usage,
		Data:        c,
	})
	commands = append(commands, c)
}

func init() {
	root := cmd.NewTree(cmd.TreeDescriptor{Name: "go65c02"})
	addCommand(root, "", &command{
		path:        "help",
		description: "Display help for a command.",
		usage:       "help [<command>]",
		run:         (*Host).cmdHelp,
	})
	addCommand(root, "", &command{
		path:  "annotate",
		brief: "Annotate an address",
		description: "Provide a code annotation at a memory address." +
			" When disassembling code at this address, the annotation will" +
			" be displayed. Omit the string to remove the annotation.",
		usage: "annotate <address> [<string>]",
		run:   (*Host).cmdAnnotate,
	})
	addCommand(root, "", &command{
		path:  "assemble",
		brief: "Assemble a file into memory",
		description: "Run the assembler on the specified source file and" +
			" load the resulting object code into memory. Symbols defined by" +
			" the source become available to expressions and disassembly.",
		usage: "assemble <filename>",
		run:   (*Host).cmdAssemble,
	})

	// Breakpoint commands
	bp := root.AddSubtree(cmd.TreeDescriptor{Name: "breakpoint", Brief: "Breakpoint commands"})
	addCommand(bp, "breakpoint", &command{
		path:        "list",
		brief:       "List breakpoints",
		description: "List all current breakpoints.",
		usage:       "breakpoint list",
		run:         (*Host).cmdBreakpointList,
	})
	addCommand(bp, "breakpoint", &command{
		path:  "add",
		brief: "Add a breakpoint",
		description: "Add a breakpoint at the specified address." +
			" The breakpoint starts enabled.",
		usage: "breakpoint add <address>",
		run:   (*Host).cmdBreakpointAdd,
	})
	addCommand(bp, "breakpoint", &command{
		path:        "remove",
		brief:       "Remove a breakpoint",
		description: "Remove a breakpoint at the specified address.",
		usage:       "breakpoint remove <address>",
		run:         (*Host).cmdBreakpointRemove,
	})
	addCommand(bp, "breakpoint", &command{
		path:        "enable",
		brief:       "Enable a breakpoint",
		description: "Enable a previously added breakpoint.",
		usage:       "breakpoint enable <address>",
		run:         (*Host).cmdBreakpointEnable,
	})
	addCommand(bp, "breakpoint", &command{
		path:  "disable",
		brief: "Disable a breakpoint",
		description: "Disable a previously added breakpoint. This" +
			" prevents the breakpoint from being hit when running the" +
			" CPU.",
		usage: "breakpoint disable <address>",
		run:   (*Host).cmdBreakpointDisable,
	})

	// Data breakpoint commands
	db := root.AddSubtree(cmd.TreeDescriptor{Name: "databreakpoint", Brief: "Data breakpoint commands"})
	addCommand(db, "databreakpoint", &command{
		path:        "list",
		brief:       "List data breakpoints",
		description: "List all current data breakpoints.",
		usage:       "databreakpoint list",
		run:         (*Host).cmdDataBreakpointList,
	})
	addCommand(db, "databreakpoint", &command{
		path:  "add",
		brief: "Add a data breakpoint",
		description: "Add a new data breakpoint at the specified" +
			" memory address. When the CPU stores data at this address, the" +
			" breakpoint will stop the CPU. Optionally, a byte" +
			" value may be specified, and the CPU will stop only" +
			" when this value is stored. The data breakpoint starts" +
			" enabled.",
		usage: "databreakpoint add <address> [<value>]",
		run:   (*Host).cmdDataBreakpointAdd,
	})
	addCommand(db, "databreakpoint", &command{
		path:  "remove",
		brief: "Remove a data breakpoint",
		description: "Remove a previously added data breakpoint at" +
			" the specified memory address.",
		usage: "databreakpoint remove <address>",
		run:   (*Host).cmdDataBreakpointRemove,
	})
	addCommand(db, "databreakpoint", &command{
		path:        "enable",
		brief:       "Enable a data breakpoint",
		description: "Enable a previously added data breakpoint.",
		usage:       "databreakpoint enable <address>",
		run:         (*Host).cmdDataBreakpointEnable,
	})
	addCommand(db, "databreakpoint", &command{
		path:        "disable",
		brief:       "Disable a data breakpoint",
		description: "Disable a previously added data breakpoint.",
		usage:       "databreakpoint disable <address>",
		run:         (*Host).cmdDataBreakpointDisable,
	})

	addCommand(root, "", &command{
		path:  "disassemble",
		brief: "Disassemble code",
		description: "Disassemble machine code starting at the requested" +
			" address. The number of instruction lines to disassemble may be" +
			" specified as an option. If no address is specified, the" +
			" disassembly continues from where the last disassembly left off.",
		usage: "disassemble [<address>] [<lines>]",
		run:   (*Host).cmdDisassemble,
	})
	addCommand(root, "", &command{
		path:        "evaluate",
		brief:       "Evaluate an expression",
		description: "Evaluate a mathematical expression.",
		usage:       "evaluate <expression>",
		run:         (*Host).cmdEvaluate,
	})
	addCommand(root, "", &command{
		path:  "execute",
		brief: "Execute a script file",
		description: "Load a script file from disk and execute the" +
			" commands it contains.",
		usage: "execute <filename>",
		run:   (*Host).cmdExecute,
	})
	addCommand(root, "", &command{
		path:  "exports",
		brief: "List exported addresses",
		description: "Display a list of all labeled addresses defined by" +
			" the most recent assembly.",
		usage: "exports",
		run:   (*Host).cmdExports,
	})

	// Export commands
	ex := root.AddSubtree(cmd.TreeDescriptor{Name: "export", Brief: "Object code export commands"})
	addCommand(ex, "export", &command{
		path:  "dump",
		brief: "Write a hexdump of memory",
		description: "Write the populated memory cells as a hexdump. Pass" +
			" canonical as the format to produce output matching hexdump -C." +
			" The offset is added to every address written.",
		usage: "export dump <filename> [simple|canonical] [<offset>]",
		run:   (*Host).cmdExportDump,
	})
	addCommand(ex, "export", &command{
		path:  "srecord",
		brief: "Write Motorola S-records",
		description: "Write the populated memory cells as Motorola S19" +
			" records. The module name and comment are stored in the" +
			" header record.",
		usage: "export srecord <filename> [<module> [<comment>]]",
		run:   (*Host).cmdExportSRecord,
	})
	addCommand(ex, "export", &command{
		path:        "intelhex",
		brief:       "Write Intel HEX records",
		description: "Write the populated memory cells as Intel HEX records.",
		usage:       "export intelhex <filename>",
		run:         (*Host).cmdExportIntelHex,
	})
	addCommand(ex, "export", &command{
		path:  "hex",
		brief: "Write all memory as a hex block",
		description: "Write the entire 64K address space as lines of 64" +
			" hex bytes. Unpopulated cells are written as 00. Pass noaddress" +
			" to omit the address field.",
		usage: "export hex <filename> [noaddress]",
		run:   (*Host).cmdExportHex,
	})

	// Interrupt commands
	addCommand(root, "", &command{
		path:        "reset",
		brief:       "Reset the CPU",
		description: "Reset the CPU registers and load the program counter from the reset vector.",
		usage:       "reset",
		run:         (*Host).cmdReset,
	})
	addCommand(root, "", &command{
		path:  "irq",
		brief: "Raise an interrupt request",
		description: "Raise an interrupt through the vector at $FFFA. The" +
			" interrupt disable flag is ignored.",
		usage: "irq",
		run:   (*Host).cmdIRQ,
	})
	addCommand(root, "", &command{
		path:        "nmi",
		brief:       "Raise a non-maskable interrupt",
		description: "Raise a non-maskable interrupt.",
		usage:       "nmi",
		run:         (*Host).cmdNMI,
	})

	addCommand(root, "", &command{
		path:        "listing",
		brief:       "Display the assembly listing",
		description: "Display the listing produced by the most recent assembly.",
		usage:       "listing",
		run:         (*Host).cmdListing,
	})
	addCommand(root, "", &command{
		path:  "load",
		brief: "Load a hexdump file",
		description: "Load a hexdump file into the emulated system's memory." +
			" Both the simple and canonical hexdump formats are accepted." +
			" The offset is added to every address in the file.",
		usage: "load <filename> [<offset>]",
		run:   (*Host).cmdLoad,
	})

	// Memory commands
	me := root.AddSubtree(cmd.TreeDescriptor{Name: "memory", Brief: "Memory commands"})
	addCommand(me, "memory", &command{
		path:  "dump",
		brief: "Dump memory at address",
		description: "Dump the contents of memory starting from the" +
			" specified address. The number of bytes to dump may be" +
			" specified as an option. If no address is specified, the" +
			" memory dump continues from where the last dump left off.",
		usage: "memory dump [<address>] [<bytes>]",
		run:   (*Host).cmdMemoryDump,
	})
	addCommand(me, "memory", &command{
		path:  "set",
		brief: "Set memory at address",
		description: "Set the contents of memory starting from the specified" +
			" address. The values to assign should be a series of" +
			" space-separated byte values. You may use an expression for each" +
			" byte value.",
		usage: "memory set <address> <byte> [<byte> ...]",
		run:   (*Host).cmdMemorySet,
	})
	addCommand(me, "memory", &command{
		path:  "copy",
		brief: "Copy memory",
		description: "Copy memory from one range of addresses to another. You" +
			" must specify the destination address, the first byte of the source" +
			" address, and the last byte of the source address.",
		usage: "memory copy <dst addr> <src addr begin> <src addr end>",
		run:   (*Host).cmdMemoryCopy,
	})

	addCommand(root, "", &command{
		path:        "quit",
		brief:       "Quit the program",
		description: "Quit the program.",
		usage:       "quit",
		run:         (*Host).cmdQuit,
	})
	addCommand(root, "", &command{
		path:  "register",
		brief: "View or change register values",
		description: "When used without arguments, this command displays the current" +
			" contents of the CPU registers.  When used with arguments, this" +
			" command changes the value of a register or one of the CPU's status" +
			" flags. Allowed register names include A, X, Y, PC and SP. Allowed status" +
			" flag names include N (Sign), Z (Zero), C (Carry), I (InterruptDisable)," +
			" D (Decimal) and V (Overflow).",
		usage: "register [<name> <value>]",
		run:   (*Host).cmdRegister,
	})
	addCommand(root, "", &command{
		path:  "run",
		brief: "Run the CPU",
		description: "Run the CPU until a breakpoint is hit, the CPU wanders" +
			" into unpopulated memory, or the user types Ctrl-C.",
		usage: "run [<address>]",
		run:   (*Host).cmdRun,
	})
	addCommand(root, "", &command{
		path:  "save",
		brief: "Save settings",
		description: "Save the current configuration variables to the" +
			" settings file so they are restored on the next start.",
		usage: "save",
		run:   (*Host).cmdSave,
	})
	addCommand(root, "", &command{
		path:  "set",
		brief: "Set a configuration variable",
		description: "Set the value of a configuration variable. To see the" +
			" current values of all configuration variables, type set" +
			" without any arguments.",
		usage: "set [<var> <value>]",
		run:   (*Host).cmdSet,
	})

	// Step commands
	st := root.AddSubtree(cmd.TreeDescriptor{Name: "step", Brief: "Step the debugger"})
	addCommand(st, "step", &command{
		path:  "in",
		brief: "Step into next instruction",
		description: "Step the CPU by a single instruction. If the" +
			" instruction is a subroutine call, step into the subroutine." +
			" The number of steps may be specified as an option.",
		usage: "step in [<count>]",
		run:   (*Host).cmdStepIn,
	})
	addCommand(st, "step", &command{
		path:  "over",
		brief: "Step over next instruction",
		description: "Step the CPU by a single instruction. If the" +
			" instruction is a subroutine call, step over the subroutine." +
			" The number of steps may be specified as an option.",
		usage: "step over [<count>]",
		run:   (*Host).cmdStepOver,
	})
	addCommand(st, "step", &command{
		path:  "out",
		brief: "Step out of the current subroutine",
		description: "Step the CPU until it executes an RTS or RTI" +
			" instruction. This has the effect of stepping until the" +
			" currently running subroutine has returned.",
		usage: "step out",
		run:   (*Host).cmdStepOut,
	})

	// Symbol commands
	sy := root.AddSubtree(cmd.TreeDescriptor{Name: "symbols", Brief: "Symbol commands"})
	addCommand(sy, "symbols", &command{
		path:        "list",
		brief:       "List symbols",
		description: "Display the symbol table, in definition order.",
		usage:       "symbols list",
		run:         (*Host).cmdSymbolsList,
	})
	addCommand(sy, "symbols", &command{
		path:  "generate",
		brief: "Generate labels for branch targets",
		description: "Scan the code in the specified region and create an" +
			" Lxxxx label for every branch, jump and call target that does" +
			" not already have one.",
		usage: "symbols generate <address> <bytes>",
		run:   (*Host).cmdSymbolsGenerate,
	})

	// Add command shortcuts.
	root.AddShortcut("a", "assemble")
	root.AddShortcut("ba", "breakpoint add")
	root.AddShortcut("br", "breakpoint remove")
	root.AddShortcut("bl", "breakpoint list")
	root.AddShortcut("be", "breakpoint enable")
	root.AddShortcut("bd", "breakpoint disable")
	root.AddShortcut("d", "disassemble")
	root.AddShortcut("dbl", "databreakpoint list")
	root.AddShortcut("dba", "databreakpoint add")
	root.AddShortcut("dbr", "databreakpoint remove")
	root.AddShortcut("dbe", "databreakpoint enable")
	root.AddShortcut("dbd", "databreakpoint disable")
	root.AddShortcut("e", "evaluate")
	root.AddShortcut("m", "memory dump")
	root.AddShortcut("mc", "memory copy")
	root.AddShortcut("ms", "memory set")
	root.AddShortcut("r", "register")
	root.AddShortcut("s", "step over")
	root.AddShortcut("si", "step in")
	root.AddShortcut("so", "step out")
	root.AddShortcut("sym", "symbols list")
	root.AddShortcut("?", "help")
	root.AddShortcut(".", "register")

	cmds = root
}
