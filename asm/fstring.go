// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import "strings"

// An fstring is a string that keeps track of its position within the
// source line from which it was read.
type fstring struct {
	row    int    // 1-based line number of substring
	column int    // 0-based column of start of substring
	str    string // the actual substring of interest
	full   string // the full line as originally read
}

func newFstring(row int, str string) fstring {
	return fstring{row, 0, str, str}
}

func (l fstring) String() string {
	return l.str
}

func (l fstring) consume(n int) fstring {
	return fstring{l.row, l.column + n, l.str[n:], l.full}
}

func (l fstring) trunc(n int) fstring {
	return fstring{l.row, l.column, l.str[:n], l.full}
}

func (l fstring) isEmpty() bool {
	return len(l.str) == 0
}

func (l fstring) startsWithChar(c byte) bool {
	return len(l.str) > 0 && l.str[0] == c
}

func (l fstring) consumeWhitespace() fstring {
	return l.consume(l.scanWhile(whitespace))
}

func (l fstring) trimSpace() fstring {
	l = l.consumeWhitespace()
	return l.trunc(len(strings.TrimRight(l.str, " \t\r\n")))
}

func (l fstring) scanWhile(fn func(c byte) bool) int {
	i := 0
	for ; i < len(l.str) && fn(l.str[i]); i++ {
	}
	return i
}

func (l fstring) scanUntil(fn func(c byte) bool) int {
	i := 0
	for ; i < len(l.str) && !fn(l.str[i]); i++ {
	}
	return i
}

func (l fstring) consumeUntil(fn func(c byte) bool) (consumed, remain fstring) {
	i := l.scanUntil(fn)
	return l.trunc(i), l.consume(i)
}

// Return the index of the first occurrence of c outside a quoted string,
// or -1.
func (l fstring) indexUnquoted(c byte) int {
	var quote byte
	for i := 0; i < len(l.str); i++ {
		switch {
		case quote != 0:
			if l.str[i] == quote {
				quote = 0
			}
		case l.str[i] == c:
			return i
		case stringQuote(l.str[i]):
			quote = l.str[i]
		}
	}
	return -1
}

// Split the line at the first unquoted ';'. The comment keeps its
// leading semicolon; both halves lose trailing whitespace.
func (l fstring) stripComment() (code fstring, comment string) {
	i := l.indexUnquoted(';')
	if i < 0 {
		return l.trunc(len(strings.TrimRight(l.str, " \t\r\n"))), ""
	}
	code = l.trunc(i)
	code = code.trunc(len(strings.TrimRight(code.str, " \t")))
	return code, strings.TrimRight(l.str[i:], " \t\r\n")
}

//
// character helper functions
//

func whitespace(c byte) bool {
	return c == ' ' || c == '\t'
}

func alpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func decimal(c byte) bool {
	return (c >= '0' && c <= '9')
}

func hexadecimal(c byte) bool {
	return decimal(c) || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

func octal(c byte) bool {
	return c >= '0' && c <= '7'
}

func binarynum(c byte) bool {
	return c == '0' || c == '1'
}

func letter(c byte) bool {
	return alpha(c) || c == '_'
}

func labelChar(c byte) bool {
	return letter(c) || decimal(c)
}

func nameStartChar(c byte) bool {
	return letter(c) || c == '.'
}

func stringQuote(c byte) bool {
	return c == '"' || c == '\''
}
