// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"cmp"
	"encoding/json"
	"io"
	"slices"
	"sort"
)

// A SourceMap describes the mapping between source code line numbers and
// object code addresses.
type SourceMap struct {
	Files   []string
	Lines   []SourceLine
	Exports []Export
}

// A SourceLine represents a mapping between an object code address and
// the source code file and line number used to generate it.
type SourceLine struct {
	Address   int // object code address
	FileIndex int // source code file index
	Line      int // source code line number
}

// An Export describes a labeled address.
type Export struct {
	Label   string
	Address uint16
}

func (a *Assembler) sourceMap() *SourceMap {
	s := &SourceMap{Files: []string{a.filename}}
	for _, r := range a.records {
		if r.Size() > 0 {
			s.Lines = append(s.Lines, SourceLine{Address: int(r.Address), Line: r.Line})
		}
	}
	slices.SortStableFunc(s.Lines, func(a, b SourceLine) int {
		return cmp.Compare(a.Address, b.Address)
	})

	for name, addr := range a.symbols.All() {
		s.Exports = append(s.Exports, Export{Label: name, Address: addr})
	}
	return s
}

// Search searches the source map for a mapping with the requested address.
func (s *SourceMap) Search(addr int) (filename string, line int) {
	i := sort.Search(len(s.Lines), func(i int) bool {
		return s.Lines[i].Address >= addr
	})
	if i < len(s.Lines) && s.Lines[i].Address == addr {
		return s.Files[s.Lines[i].FileIndex], s.Lines[i].Line
	}
	return "", -1
}

// ReadFrom reads the contents of an exported source map file.
func (s *SourceMap) ReadFrom(r io.Reader) (n int64, err error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	err = json.Unmarshal(b, s)
	if err != nil {
		return 0, err
	}
	return int64(len(b)), nil
}

// WriteTo writes the contents of the source map to an output stream.
func (s *SourceMap) WriteTo(w io.Writer) (n int64, err error) {
	b, err := json.Marshal(*s)
	if err != nil {
		return 0, err
	}

	nn, err := w.Write(b)
	return int64(nn), err
}
