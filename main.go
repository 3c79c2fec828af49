// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/beevik/term"
	"golang.org/x/sync/errgroup"

	"github.com/beevik/go65c02/asm"
	"github.com/beevik/go65c02/cpu"
	"github.com/beevik/go65c02/disasm"
	"github.com/beevik/go65c02/export"
	"github.com/beevik/go65c02/host"
	"github.com/beevik/go65c02/log"
)

func main() {
	_, ctx := parseArgs(os.Args[1:])
	checkf(ctx.Run(), "%s", ctx.Command())
}

// Object code file extension for each output format.
var formatExt = map[string]string{
	"dump":      ".hex",
	"canonical": ".hd",
	"srecord":   ".s19",
	"intelhex":  ".ihx",
	"hex":       ".blk",
}

// Run assembles every file on the command line. Files are independent, so
// each gets its own assembler and they run concurrently. Reports are
// printed in command line order once all files are done.
func (c *asmCmd) Run() error {
	reports := make([]bytes.Buffer, len(c.Files))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, path := range c.Files {
		g.Go(func() error {
			return c.assemble(path, &reports[i])
		})
	}
	err := g.Wait()

	for i := range reports {
		os.Stdout.Write(reports[i].Bytes())
	}
	return err
}

func (c *asmCmd) assemble(path string, report *bytes.Buffer) error {
	base := filepath.Base(path)

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	a := asm.New(asm.WithFilename(base), asm.Quiet())
	r, err := a.AssembleReader(file, asm.DefaultPreserve)
	if r == nil {
		return err
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(report, "%s: %s\n", base, d)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", base, err)
	}

	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dir := c.Out
	if dir == "" {
		dir = filepath.Dir(path)
	}
	out := func(ext string) string { return filepath.Join(dir, stem+ext) }

	if ext, ok := formatExt[c.Format]; ok {
		if err := writeObject(out(ext), c.Format, stem, r.Image); err != nil {
			return err
		}
		fmt.Fprintf(report, "Wrote '%s'.\n", out(ext))
	}
	if c.Listing {
		err := writeFile(out(".lst"), func(f *os.File) error {
			return export.WriteLines(f, slices.Concat(r.Listing, r.SymbolText))
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(report, "Wrote '%s'.\n", out(".lst"))
	}
	if c.SourceMap {
		err := writeFile(out(".map"), func(f *os.File) error {
			_, err := r.SourceMap.WriteTo(f)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(report, "Wrote '%s'.\n", out(".map"))
	}

	log.ModAsm.WithFields(log.Fields{"file": base, "warnings": r.Warnings()}).Infof("assembled")
	return nil
}

func writeObject(path, format, module string, image []cpu.Cell) error {
	return writeFile(path, func(f *os.File) error {
		switch format {
		case "dump":
			return export.WriteDump(f, image, false, 0)
		case "canonical":
			return export.WriteDump(f, image, true, 0)
		case "srecord":
			return export.WriteLines(f, export.SRecords(image, 1, 0, module, ""))
		case "intelhex":
			return export.WriteLines(f, export.IntelHex(image))
		default:
			return export.WriteLines(f, export.HexBlock(image, false))
		}
	})
}

func writeFile(path string, fn func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Run loads a hexdump and disassembles it.
func (c *disasmCmd) Run() error {
	file, err := os.Open(c.File)
	if err != nil {
		return err
	}
	image, err := export.ReadDump(file, uint16(c.Offset))
	file.Close()
	if err != nil {
		return err
	}

	lo, hi, ok := extent(image)
	if !ok {
		return fmt.Errorf("no object code in '%s'", c.File)
	}
	if c.Start != "" {
		if lo, err = parseAddress(c.Start); err != nil {
			return err
		}
	}
	length := c.Length
	if length <= 0 {
		length = int(hi) - int(lo) + 1
	}
	if length <= 0 {
		return fmt.Errorf("start address $%04X is past the loaded code", lo)
	}

	d := disasm.New(image, nil)
	if c.Labels {
		n := d.GenerateSymbols(lo, length)
		log.ModDis.WithField("file", c.File).Debugf("generated %d labels", n)
	}
	for line := range d.Region(lo, length) {
		fmt.Println(line)
	}
	return nil
}

// Return the lowest and highest populated addresses of an image.
func extent(image []cpu.Cell) (lo, hi uint16, ok bool) {
	first := slices.IndexFunc(image, cpu.Cell.Populated)
	if first < 0 {
		return 0, 0, false
	}
	last := len(image) - 1
	for !image[last].Populated() {
		last--
	}
	return uint16(first), uint16(last), true
}

// Run assembles a source file into a fresh host and runs it until the CPU
// stops, then shows the registers.
func (c *runCmd) Run() error {
	h := host.New()
	breakOnInterrupt(h)

	script := []string{"assemble " + c.File}
	if c.Limit > 0 {
		script = append(script, fmt.Sprintf("set runlimit %d", c.Limit))
	}
	if c.Trap {
		script = append(script, "set trapmemory true")
	}
	if c.Start != "" {
		if _, err := parseAddress(c.Start); err != nil {
			return err
		}
		script = append(script, "run "+c.Start)
	} else {
		script = append(script, "run")
	}
	script = append(script, "register")

	h.RunCommands(strings.NewReader(strings.Join(script, "\n")), os.Stdout, false)
	return nil
}

// Run starts the interactive debugger shell, after running any scripts
// named on the command line.
func (c *shellCmd) Run() error {
	path := c.Config
	if path == "" {
		var err error
		if path, err = host.DefaultConfigPath(); err != nil {
			log.ModHost.Warnf("no settings file: %v", err)
		}
	}
	h := host.New(host.WithConfig(path))

	for _, filename := range c.Scripts {
		file, err := os.Open(filename)
		if err != nil {
			return err
		}
		h.RunCommands(file, os.Stdout, false)
		file.Close()
	}

	breakOnInterrupt(h)
	h.RunCommands(os.Stdin, os.Stdout, term.IsTerminal(int(os.Stdin.Fd())))
	return nil
}

// Break on Ctrl-C.
func breakOnInterrupt(h *host.Host) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		for range c {
			h.Break()
		}
	}()
}
