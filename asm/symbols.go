// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import "iter"

// A SymbolTable maps label names to 16-bit addresses and remembers the
// order in which the names were first defined.
type SymbolTable struct {
	names []string
	addrs map[string]uint16
}

// NewSymbolTable returns an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{addrs: make(map[string]uint16)}
}

// Set binds name to addr. Redefining a name replaces its address but
// keeps its original position.
func (t *SymbolTable) Set(name string, addr uint16) {
	if _, ok := t.addrs[name]; !ok {
		t.names = append(t.names, name)
	}
	t.addrs[name] = addr
}

// Lookup returns the address bound to name.
func (t *SymbolTable) Lookup(name string) (uint16, bool) {
	addr, ok := t.addrs[name]
	return addr, ok
}

// Len returns the number of symbols in the table.
func (t *SymbolTable) Len() int {
	return len(t.names)
}

// Names returns the symbol names in definition order.
func (t *SymbolTable) Names() []string {
	return append([]string(nil), t.names...)
}

// All iterates over the symbols in definition order.
func (t *SymbolTable) All() iter.Seq2[string, uint16] {
	return func(yield func(string, uint16) bool) {
		for _, name := range t.names {
			if !yield(name, t.addrs[name]) {
				return
			}
		}
	}
}

// Map returns a copy of the table as an ordinary map.
func (t *SymbolTable) Map() map[string]uint16 {
	m := make(map[string]uint16, len(t.addrs))
	for name, addr := range t.addrs {
		m[name] = addr
	}
	return m
}

// Clone returns an independent copy of the table.
func (t *SymbolTable) Clone() *SymbolTable {
	c := &SymbolTable{names: t.Names(), addrs: t.Map()}
	return c
}
