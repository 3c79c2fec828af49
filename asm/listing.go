// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"fmt"
	"strings"
)

// Headers of the listing and symbol table text.
const (
	ListingHeader = "LISTING"
	SymbolHeader  = "SYMBOL TABLE"
)

// Format the listing line for a record. Data records holding more than one
// byte get a second line listing those bytes.
func listingLines(r *Record) []string {
	var b strings.Builder

	prefix := fmt.Sprintf("%-5s%04X ", fmt.Sprintf("%d ", r.Line), r.Address)
	b.WriteString(prefix)

	if r.Label != "" {
		fmt.Fprintf(&b, "%-10s", ": "+r.Label+":")
	} else {
		b.WriteString(":         ")
	}

	switch {
	case r.Inst != nil:
		fmt.Fprintf(&b, "%02X ", r.Inst.Opcode)
	default:
		b.WriteString("   ")
	}
	b.WriteString(r.Low.String())
	b.WriteString(r.High.String())

	fmt.Fprintf(&b, "%-4s", r.Opcode)
	fmt.Fprintf(&b, "%-10s", r.Operand)
	b.WriteString(r.Comment)

	lines := []string{b.String()}
	if len(r.Extra) > 1 {
		lines = append(lines, prefix+":         "+byteString(r.Extra))
	}
	return lines
}

// Format the symbol table as text, in definition order.
func symbolText(t *SymbolTable) []string {
	lines := make([]string, 0, t.Len()+1)
	lines = append(lines, SymbolHeader)
	for name, addr := range t.All() {
		lines = append(lines, fmt.Sprintf("%-10s = $%04X", name, addr))
	}
	return lines
}
