// Package designator canonicalizes flight designators and applies static
// codeshare remapping.
package designator

import (
	"strings"
	"unicode"
)

// Normalize strips all whitespace and upper-cases the designator.
// "ua 8839" and " UA 8839 " both become "UA8839". Empty input yields "".
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// Digits returns only the decimal digits of s, in order
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CodeshareMap maps a canonical marketing designator to the operating
// carrier's designator. It is read-only after construction.
type CodeshareMap struct {
	m map[string]string
}

// NewCodeshareMap builds a map from configuration. Keys and values are
// normalized so the configuration may use spaces or lower case.
func NewCodeshareMap(entries map[string]string) *CodeshareMap {
	m := make(map[string]string, len(entries))
	for k, v := range entries {
		nk, nv := Normalize(k), Normalize(v)
		if nk == "" || nv == "" {
			continue
		}
		m[nk] = nv
	}
	return &CodeshareMap{m: m}
}

// Resolve returns the mapped designator, or canonical unchanged when there
// is no entry.
func (c *CodeshareMap) Resolve(canonical string) string {
	if c == nil {
		return canonical
	}
	if mapped, ok := c.m[canonical]; ok {
		return mapped
	}
	return canonical
}

// Len returns the number of entries
func (c *CodeshareMap) Len() int {
	if c == nil {
		return 0
	}
	return len(c.m)
}

// Carrier returns the airline prefix of a canonical designator: three
// letters for an ICAO-style designator ("DLH402"), otherwise the two
// character IATA code ("UA8839", "U21234"). Inputs shorter than three
// characters yield "".
func Carrier(canonical string) string {
	if len(canonical) < 3 {
		return ""
	}
	if isLetter(canonical[0]) && isLetter(canonical[1]) && isLetter(canonical[2]) {
		return canonical[:3]
	}
	return canonical[:2]
}

func isLetter(c byte) bool {
	return c >= 'A' && c <= 'Z'
}
