// Package identifier canonicalizes beneficiary identifiers.
//
// An identifier with exactly 11 digits is treated as a national ID (CPF) and
// stored digit-only; anything else is stored trimmed and upper-cased.
package identifier

import (
	"strings"
	"unicode"
)

// OnlyDigits strips every non-digit character from s.
func OnlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidNationalID reports whether s holds a national ID with valid check digits.
func IsValidNationalID(s string) bool {
	id := OnlyDigits(s)
	if len(id) != 11 {
		return false
	}
	if strings.Count(id, id[:1]) == 11 {
		return false
	}
	for t := 9; t <= 10; t++ {
		sum := 0
		for i := 0; i < t; i++ {
			sum += int(id[i]-'0') * (t + 1 - i)
		}
		d := (sum * 10) % 11
		if d == 10 {
			d = 0
		}
		if d != int(id[t]-'0') {
			return false
		}
	}
	return true
}

// Normalize returns the canonical form of raw. It never fails: a national ID
// with a bad checksum is still normalized to its digits.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	if digits := OnlyDigits(raw); len(digits) == 11 {
		return digits
	}
	return strings.ToUpper(strings.TrimFunc(raw, unicode.IsSpace))
}
