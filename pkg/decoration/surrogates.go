// Copyright 2024-2026 Aiku AI

package decoration

import (
	"golang.org/x/text/encoding/unicode"
)

// utf16LE mirrors the wire representation entity offsets are measured in.
var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeWide converts text to UTF-16LE code units, two bytes per unit.
// Characters outside the basic multilingual plane take two units.
// No validation is done: invalid UTF-8 comes out as U+FFFD.
func EncodeWide(text string) []byte {
	buf, _ := utf16LE.NewEncoder().Bytes([]byte(text))
	return buf
}

// DecodeWide converts a UTF-16LE buffer back to a string.
// Round-trips are only guaranteed for buffers produced by EncodeWide.
func DecodeWide(buf []byte) string {
	text, _ := utf16LE.NewDecoder().Bytes(buf)
	return string(text)
}

// WideLen returns the length of text in UTF-16 code units.
func WideLen(text string) int {
	return len(EncodeWide(text)) / 2
}

// WideSlice returns the part of text covered by an entity that starts at
// offset and spans length UTF-16 code units. Out-of-range spans are clamped.
func WideSlice(text string, offset, length int) string {
	buf := EncodeWide(text)
	units := len(buf) / 2
	if offset < 0 {
		offset = 0
	}
	end := offset + length
	if end > units {
		end = units
	}
	if length <= 0 || offset >= end {
		return ""
	}
	return DecodeWide(buf[offset*2 : end*2])
}
