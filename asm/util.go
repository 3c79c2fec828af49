// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import "strconv"

var hex = "0123456789ABCDEF"

// Value classes returned by decodeValue.
type valueKind byte

const (
	valSymbol  valueKind = iota // not a number; a symbol reference
	valNumber                   // a well-formed numeric literal
	valInvalid                  // a numeric prefix followed by bad digits
)

// Decode a numeric literal: $hex, @octal, %binary or plain decimal.
// Anything not starting with one of those is a symbol.
func decodeValue(s string) (int, valueKind) {
	if s == "" {
		return 0, valSymbol
	}

	var base int
	digits := s[1:]
	switch {
	case s[0] == '$':
		base = 16
	case s[0] == '@':
		base = 8
	case s[0] == '%':
		base = 2
	case decimal(s[0]):
		base, digits = 10, s
	default:
		return 0, valSymbol
	}

	v, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		return 0, valInvalid
	}
	return int(v), valNumber
}

// Return a little-endian representation of the value using the requested
// number of bytes, and whether any nonzero bits were lost.
func toBytes(width int, value uint64) (b []byte, truncated bool) {
	b = make([]byte, width)
	for i := range b {
		b[i] = byte(value)
		value >>= 8
	}
	return b, value != 0
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// Return a hexadecimal string representation of a byte slice.
func byteString(b []byte) string {
	if len(b) < 1 {
		return ""
	}

	s := make([]byte, len(b)*3-1)
	i, j := 0, 0
	for n := len(b) - 1; i < n; i, j = i+1, j+3 {
		s[j+0] = hex[(b[i] >> 4)]
		s[j+1] = hex[(b[i] & 0x0f)]
		s[j+2] = ' '
	}
	s[j+0] = hex[(b[i] >> 4)]
	s[j+1] = hex[(b[i] & 0x0f)]
	return string(s)
}
