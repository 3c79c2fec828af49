// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package export converts assembled memory images into the text formats
// used by ROM programmers and other tools: hexdumps, Motorola S-records,
// Intel HEX and raw hex blocks.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/beevik/go65c02/cpu"
)

// Errors
var (
	ErrBadAddress = errors.New("invalid address field")
)

const (
	imageSize = 0x10000
	runLength = 16
)

func cell(image []cpu.Cell, i int) cpu.Cell {
	if i < len(image) {
		return image[i]
	}
	return cpu.Empty
}

// A run is a group of up to 16 consecutive populated cells.
type run struct {
	addr int
	data []byte
}

// Return an iterator over the populated runs of the image. A run ends
// after 16 bytes or at the first unpopulated cell. The gap flag reports
// whether unpopulated cells preceded the run.
func runs(image []cpu.Cell) iter.Seq2[run, bool] {
	return func(yield func(run, bool) bool) {
		gap := false
		for i := 0; i < imageSize; {
			if !cell(image, i).Populated() {
				gap = true
				i++
				continue
			}
			r := run{addr: i}
			for ; i < imageSize && len(r.data) < runLength && cell(image, i).Populated(); i++ {
				r.data = append(r.data, cell(image, i).Byte())
			}
			if !yield(r, gap) {
				return
			}
			gap = false
		}
	}
}

func printable(b byte) byte {
	if b < 32 || b > 126 {
		return '.'
	}
	return b
}

// WriteDump writes the populated cells of the image as a hexdump. The
// simple format prints lines of the form "XXXX: bb bb ...". The canonical
// format matches the output of "hexdump -C", with 32-bit addresses and an
// ASCII column. In both formats a run of unpopulated cells is shown as a
// single "*" line. The offset is added to every printed address.
func WriteDump(w io.Writer, image []cpu.Cell, canonical bool, offset uint32) error {
	bw := bufio.NewWriter(w)
	for r, gap := range runs(image) {
		if gap {
			bw.WriteString("*\n")
		}
		if canonical {
			bw.WriteString(canonicalLine(r, offset))
		} else {
			bw.WriteString(simpleLine(r, offset))
		}
		bw.WriteByte('\n')
	}
	if len(image) < imageSize || !cell(image, imageSize-1).Populated() {
		bw.WriteString("*\n")
	}
	return bw.Flush()
}

func simpleLine(r run, offset uint32) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%04X:", uint16(uint32(r.addr)+offset))
	for _, v := range r.data {
		fmt.Fprintf(&b, " %02X", v)
	}
	return b.String()
}

func canonicalLine(r run, offset uint32) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%08x ", uint32(r.addr)+offset)
	ascii := make([]byte, len(r.data))
	for i, v := range r.data {
		if i == 8 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, " %02x", v)
		ascii[i] = printable(v)
	}
	pad := 3 * (runLength - len(r.data))
	if len(r.data) <= 8 {
		pad++
	}
	b.WriteString(strings.Repeat(" ", pad))
	fmt.Fprintf(&b, "  |%s|", ascii)
	return b.String()
}

// ReadDump parses a hexdump in either of the formats written by WriteDump
// and returns a new image holding its contents. The offset is added to
// each address read. Each line's data ends at the first field that is not
// a two-digit hex value, so the ASCII column of a canonical dump is
// ignored.
func ReadDump(r io.Reader, offset uint16) ([]cpu.Cell, error) {
	image := cpu.NewImage()
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || fields[0] == "*" {
			continue
		}

		a, err := strconv.ParseUint(strings.TrimSuffix(fields[0], ":"), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w %q", line, ErrBadAddress, fields[0])
		}
		addr := uint16(a) + offset

		for _, f := range fields[1:] {
			if len(f) != 2 {
				break
			}
			v, err := strconv.ParseUint(f, 16, 8)
			if err != nil {
				break
			}
			image[addr] = cpu.Value(byte(v))
			addr++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return image, nil
}

// A record accumulates the bytes of one S-record or Intel HEX line along
// with their sum.
type record struct {
	b   strings.Builder
	sum byte
}

func (r *record) put(v ...byte) {
	for _, x := range v {
		fmt.Fprintf(&r.b, "%02X", x)
		r.sum += x
	}
}

// SRecords converts the image into Motorola S19 records. The S0 header
// carries the version and revision bytes, the module name padded or cut
// to 20 characters and a comment of at most 36 characters. Data follows
// in S1 records of up to 16 bytes, then an S5 record holding the number
// of S1 records and an S9 record holding the address of the first data
// byte.
func SRecords(image []cpu.Cell, version, revision byte, module, comment string) []string {
	if len(module) > 20 {
		module = module[:20]
	}
	module = fmt.Sprintf("%-20s", module)
	if len(comment) > 36 {
		comment = comment[:36]
	}

	header := append([]byte{version, revision}, module+comment...)
	lines := []string{srecord('0', 0, header)}

	start, count := -1, 0
	for r := range runs(image) {
		if start < 0 {
			start = r.addr
		}
		lines = append(lines, srecord('1', uint16(r.addr), r.data))
		count++
	}
	if start < 0 {
		start = 0
	}

	lines = append(lines, srecord('5', uint16(count), nil))
	lines = append(lines, srecord('9', uint16(start), nil))
	return lines
}

func srecord(kind byte, addr uint16, data []byte) string {
	var r record
	r.b.WriteByte('S')
	r.b.WriteByte(kind)
	r.put(byte(len(data)+3), byte(addr>>8), byte(addr))
	r.put(data...)
	fmt.Fprintf(&r.b, "%02X", ^r.sum)
	return r.b.String()
}

// IntelEOF is the end-of-file record that terminates Intel HEX output.
const IntelEOF = ":00000001FF"

// IntelHex converts the image into Intel HEX data records of up to 16
// bytes, followed by the end-of-file record.
func IntelHex(image []cpu.Cell) []string {
	var lines []string
	for run := range runs(image) {
		var r record
		r.b.WriteByte(':')
		r.put(byte(len(run.data)), byte(run.addr>>8), byte(run.addr), 0x00)
		r.put(run.data...)
		fmt.Fprintf(&r.b, "%02X", -r.sum)
		lines = append(lines, r.b.String())
	}
	return append(lines, IntelEOF)
}

// HexBlock returns the whole 64K image as 1024 lines of 64 bytes each.
// Unpopulated cells are written as 00. Unless noAddress is set, each line
// begins with its address.
func HexBlock(image []cpu.Cell, noAddress bool) []string {
	const width = 64
	lines := make([]string, 0, imageSize/width)
	var b strings.Builder
	for addr := 0; addr < imageSize; addr += width {
		b.Reset()
		if !noAddress {
			fmt.Fprintf(&b, "%04x:", addr)
		}
		for i := addr; i < addr+width; i++ {
			fmt.Fprintf(&b, "%02x", cell(image, i).Byte())
		}
		lines = append(lines, b.String())
	}
	return lines
}

// WriteLines writes each line followed by a newline.
func WriteLines(w io.Writer, lines []string) error {
	bw := bufio.NewWriter(w)
	for _, l := range lines {
		bw.WriteString(l)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
