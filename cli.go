// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/beevik/go65c02/log"
)

type (
	CLI struct {
		Asm    asmCmd    `cmd:"" help:"Assemble source files."`
		Disasm disasmCmd `cmd:"" help:"Disassemble a hexdump file."`
		Run    runCmd    `cmd:"" help:"Assemble a source file and run it."`
		Shell  shellCmd  `cmd:"" help:"Start the interactive debugger shell. (default command)" default:"withargs"`

		Log logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`
	}

	asmCmd struct {
		Files     []string `arg:"" name:"file" help:"Source files to assemble." type:"existingfile"`
		Format    string   `name:"format" short:"f" help:"${format_help}" enum:"dump,canonical,srecord,intelhex,hex,none" default:"dump"`
		Listing   bool     `name:"listing" short:"l" help:"Write a listing file for each source."`
		SourceMap bool     `name:"sourcemap" help:"Write a JSON source map for each source."`
		Out       string   `name:"out" short:"o" help:"Output directory. Defaults to the directory of each source." type:"existingdir"`
	}

	disasmCmd struct {
		File   string  `arg:"" name:"file" help:"Hexdump file, as written by 'asm --format=dump'." type:"existingfile"`
		Offset address `name:"offset" help:"Value added to each address read from the file." default:"0"`
		Start  string  `name:"start" help:"First address to disassemble. Defaults to the lowest loaded address." placeholder:"ADDR"`
		Length int     `name:"length" short:"n" help:"Number of bytes to disassemble. Defaults to the loaded extent."`
		Labels bool    `name:"labels" help:"Generate labels for branch and jump targets."`
	}

	runCmd struct {
		File  string `arg:"" name:"file" help:"Source file to assemble and run." type:"existingfile"`
		Start string `name:"start" help:"Start address. Defaults to the lowest assembled address." placeholder:"ADDR"`
		Limit int    `name:"limit" help:"Stop after this many instructions. 0 means no limit." default:"0"`
		Trap  bool   `name:"trap" help:"Stop on access to uninitialized memory."`
	}

	shellCmd struct {
		Scripts []string `arg:"" optional:"" name:"script" help:"Command scripts to run before the interactive session." type:"existingfile"`
		Config  string   `name:"config" help:"Settings file. Defaults to the user configuration directory." type:"path"`
	}
)

var vars = kong.Vars{
	"log_help":    "Enable debug logging for specified modules.",
	"format_help": "Object code format: dump, canonical, srecord, intelhex, hex or none.",
}

func parseArgs(args []string) (*CLI, *kong.Context) {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("go65c02"),
		kong.Description("65C02 assembler, disassembler and simulator."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	return &cfg, ctx
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	loggingHelp := `
Log modules:
  The --log flag accepts a comma-separated list of modules.

  Valid log modules are:
%s

  As a special case, the following values are accepted:
    - no                     Disable all debug logs.
    - all                    Enable all debug logs.
`
	var strs []string
	for _, m := range log.ModuleNames() {
		strs = append(strs, "    - "+m)
	}
	fmt.Fprintf(os.Stderr, loggingHelp, strings.Join(strs, "\n"))
	return nil
}

type logModMask log.ModuleMask

// Decode decodes a comma-separated list of module names into a module mask
// and enables debug logging for those modules.
//
// Implements kong.MapperValue interface.
func (lm *logModMask) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	s, ok := tok.Value.(string)
	if !ok {
		return fmt.Errorf("expected a list of log modules, got %v", tok.Value)
	}
	mask, err := log.ParseModuleMask(s)
	if err != nil {
		return err
	}
	*lm = logModMask(mask)
	log.EnableDebugModules(mask)
	return nil
}

// An address is a 16-bit value written in decimal, $hex or 0x hex.
type address uint16

// Decode implements kong.MapperValue interface.
func (a *address) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	s := fmt.Sprint(tok.Value)
	v, err := parseAddress(s)
	if err != nil {
		return err
	}
	*a = address(v)
	return nil
}

func parseAddress(s string) (uint16, error) {
	base := 0
	if strings.HasPrefix(s, "$") {
		s, base = s[1:], 16
	}
	v, err := strconv.ParseUint(s, base, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address '%s'", s)
	}
	return uint16(v), nil
}

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "ERROR: %s: %v\n", fmt.Sprintf(format, args...), err)
	os.Exit(1)
}
