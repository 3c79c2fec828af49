// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package export

import (
	"strings"
	"testing"

	"github.com/beevik/go65c02/cpu"
	"github.com/google/go-cmp/cmp"
)

func makeImage(addr int, data ...byte) []cpu.Cell {
	image := cpu.NewImage()
	for i, v := range data {
		image[addr+i] = cpu.Value(v)
	}
	return image
}

var hello = []byte{
	0x1a, 0x27, 0x03, 0x68, 0x65, 0x6c, 0x6c, 0x6f,
	0x08, 0xaa, 0x08, 0xcc, 0xdd, 0x3f, 0x08, 0x2d,
	0x41, 0x42,
}

func TestWriteDumpSimple(t *testing.T) {
	image := makeImage(0x1000, hello...)

	var b strings.Builder
	if err := WriteDump(&b, image, false, 0); err != nil {
		t.Fatal(err)
	}

	exp := "*\n" +
		"1000: 1A 27 03 68 65 6C 6C 6F 08 AA 08 CC DD 3F 08 2D\n" +
		"1010: 41 42\n" +
		"*\n"
	if diff := cmp.Diff(exp, b.String()); diff != "" {
		t.Errorf("dump mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteDumpCanonical(t *testing.T) {
	image := makeImage(0, hello...)

	var b strings.Builder
	if err := WriteDump(&b, image, true, 0xffff0000); err != nil {
		t.Fatal(err)
	}

	exp := "ffff0000  1a 27 03 68 65 6c 6c 6f  08 aa 08 cc dd 3f 08 2d  |.'.hello.....?.-|\n" +
		"ffff0010  41 42                                             |AB|\n" +
		"*\n"
	if diff := cmp.Diff(exp, b.String()); diff != "" {
		t.Errorf("dump mismatch (-want +got):\n%s", diff)
	}
}

func TestReadDump(t *testing.T) {
	src := makeImage(0x0ff8, hello...)
	src[0x2000] = cpu.Value(0x60)

	for _, canonical := range []bool{false, true} {
		var b strings.Builder
		if err := WriteDump(&b, src, canonical, 0); err != nil {
			t.Fatal(err)
		}
		image, err := ReadDump(strings.NewReader(b.String()), 0)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(src, image, cmp.AllowUnexported(cpu.Cell{})); diff != "" {
			t.Errorf("canonical=%v: image mismatch (-want +got):\n%s", canonical, diff)
		}
	}
}

func TestReadDumpOffset(t *testing.T) {
	image, err := ReadDump(strings.NewReader("0000: A9 10 zz 60\n"), 0x8000)
	if err != nil {
		t.Fatal(err)
	}
	if image[0x8000] != cpu.Value(0xa9) || image[0x8001] != cpu.Value(0x10) {
		t.Errorf("offset load incorrect: %s %s", image[0x8000], image[0x8001])
	}
	if image[0x8002].Populated() {
		t.Error("data after a non-hex field was loaded")
	}

	if _, err := ReadDump(strings.NewReader("wxyz: 00\n"), 0); err == nil {
		t.Error("expected an error for a bad address field")
	}
}

func TestSRecords(t *testing.T) {
	image := makeImage(0x1000, 0xa9, 0x10, 0x60)

	got := SRecords(image, 1, 2, "TEST", "hi")
	exp := []string{
		"S01B0000010254455354202020202020202020202020202020206869D0",
		"S1061000A91060D0",
		"S5030001FB",
		"S9031000EC",
	}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Errorf("S-records mismatch (-want +got):\n%s", diff)
	}
}

func TestSRecordsTruncation(t *testing.T) {
	lines := SRecords(cpu.NewImage(), 0, 0, strings.Repeat("m", 30), strings.Repeat("c", 50))
	// count byte: 2 address + 2 version + 20 module + 36 comment + 1 checksum
	if lines[0][2:4] != "3D" {
		t.Errorf("header length incorrect: %s", lines[0])
	}
	if len(lines) != 3 || lines[1] != "S5030000FC" || lines[2] != "S9030000FC" {
		t.Errorf("empty image records incorrect: %v", lines[1:])
	}
}

func TestIntelHex(t *testing.T) {
	image := makeImage(0x0100, 0xa9, 0x10, 0x60)
	for i := 0; i < 17; i++ {
		image[0x2000+i] = cpu.Value(byte(i))
	}

	got := IntelHex(image)
	exp := []string{
		":03010000A91060E3",
		":10200000000102030405060708090A0B0C0D0E0F58",
		":0120100010BF",
		IntelEOF,
	}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Errorf("Intel HEX mismatch (-want +got):\n%s", diff)
	}
}

func TestHexBlock(t *testing.T) {
	image := makeImage(0x0040, 0xde, 0xad)

	lines := HexBlock(image, false)
	if len(lines) != 1024 {
		t.Fatalf("line count incorrect. exp: 1024, got: %d", len(lines))
	}
	exp := "0040:dead" + strings.Repeat("00", 62)
	if lines[1] != exp {
		t.Errorf("line 1 incorrect.\nexp: %s\ngot: %s", exp, lines[1])
	}
	if lines[1023][:5] != "ffc0:" {
		t.Errorf("last line address incorrect: %s", lines[1023][:5])
	}

	bare := HexBlock(image, true)
	if len(bare[0]) != 128 || bare[1][:4] != "dead" {
		t.Errorf("address-less line incorrect: %s", bare[1][:8])
	}
}

func TestWriteLines(t *testing.T) {
	var b strings.Builder
	if err := WriteLines(&b, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	if b.String() != "a\nb\n" {
		t.Errorf("WriteLines incorrect: %q", b.String())
	}
}
