// Package isbn provides normalization and conversion helpers for ISBN-10
// and ISBN-13 identifiers.
package isbn

import (
	"strconv"
	"strings"
)

// Normalize strips hyphens and whitespace and uppercases the check
// character so that differently formatted ISBNs compare equal.
func Normalize(raw string) string {
	var sb strings.Builder
	sb.Grow(len(raw))
	for _, r := range raw {
		switch r {
		case '-', ' ', '\t':
		default:
			sb.WriteRune(r)
		}
	}
	return strings.ToUpper(sb.String())
}

// IsValid10 reports whether s is a well-formed ISBN-10 with a correct
// check digit. The input must already be normalized.
func IsValid10(s string) bool {
	if len(s) != 10 {
		return false
	}
	sum := 0
	for i, c := range s {
		var d int
		switch {
		case c >= '0' && c <= '9':
			d = int(c - '0')
		case c == 'X' && i == 9:
			d = 10
		default:
			return false
		}
		sum += d * (10 - i)
	}
	return sum%11 == 0
}

// IsValid13 reports whether s is a well-formed ISBN-13 with a correct
// check digit. The input must already be normalized.
func IsValid13(s string) bool {
	if len(s) != 13 {
		return false
	}
	sum := 0
	for i, c := range s {
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	return sum%10 == 0
}

// To13 converts an ISBN-10 to ISBN-13 by prepending 978 and recomputing
// the check digit. Returns an empty string if the input is not an ISBN-10.
func To13(isbn10 string) string {
	if len(isbn10) != 10 {
		return ""
	}
	base := "978" + isbn10[:9]
	sum := 0
	for i, c := range base {
		d, err := strconv.Atoi(string(c))
		if err != nil {
			return ""
		}
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	check := (10 - sum%10) % 10
	return base + strconv.Itoa(check)
}

// To10 converts a 978-prefixed ISBN-13 to ISBN-10.
// Returns an empty string if the input is not a convertible ISBN-13.
func To10(isbn13 string) string {
	if len(isbn13) != 13 || !strings.HasPrefix(isbn13, "978") {
		return ""
	}
	base := isbn13[3:12]
	sum := 0
	for i, c := range base {
		d, err := strconv.Atoi(string(c))
		if err != nil {
			return ""
		}
		sum += d * (10 - i)
	}
	check := (11 - sum%11) % 11
	if check == 10 {
		return base + "X"
	}
	return base + strconv.Itoa(check)
}
