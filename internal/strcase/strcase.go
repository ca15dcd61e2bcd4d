// Package strcase splits and re-joins identifiers in different case conventions.
package strcase

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type class int

const (
	classOther class = iota
	classLower
	classUpper
	classDigit
)

func classify(r rune) class {
	switch {
	case unicode.IsLower(r):
		return classLower
	case unicode.IsUpper(r):
		return classUpper
	case unicode.IsDigit(r):
		return classDigit
	default:
		return classOther
	}
}

// Split an identifier into its component words.
//
// Runs of upper case letters are treated as acronyms, except for the final upper case letter when it is followed by
// lower case letters. Non-alphanumeric runes are returned as their own parts.
//
//	UpperCamelAPI -> [Upper Camel API]
//	snake_case    -> [snake _ case]
func Split(s string) []string {
	if !utf8.ValidString(s) {
		return []string{s}
	}
	var runs [][]rune
	last := classOther
	for i, r := range s {
		c := classify(r)
		if i == 0 || c != last || c == classOther {
			runs = append(runs, []rune{r})
		} else {
			runs[len(runs)-1] = append(runs[len(runs)-1], r)
		}
		last = c
	}
	// Move the last upper case letter of an acronym to the following lower case run.
	for i := 0; i < len(runs)-1; i++ {
		if classify(runs[i][0]) == classUpper && classify(runs[i+1][0]) == classLower {
			runs[i+1] = append([]rune{runs[i][len(runs[i])-1]}, runs[i+1]...)
			runs[i] = runs[i][:len(runs[i])-1]
		}
	}
	out := make([]string, 0, len(runs))
	for _, run := range runs {
		if len(run) > 0 {
			out = append(out, string(run))
		}
	}
	return out
}

func words(s string) []string {
	var out []string
	for _, part := range Split(s) {
		if r, _ := utf8.DecodeRuneInString(part); classify(r) == classOther {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ToLowerSnake converts an identifier to lower_snake_case.
func ToLowerSnake(s string) string {
	parts := words(s)
	for i, part := range parts {
		parts[i] = strings.ToLower(part)
	}
	return strings.Join(parts, "_")
}

// ToUpperCamel converts an identifier to UpperCamelCase, preserving acronyms.
func ToUpperCamel(s string) string {
	parts := words(s)
	for i, part := range parts {
		parts[i] = UpperFirst(part)
	}
	return strings.Join(parts, "")
}

// ToLowerCamel converts an identifier to lowerCamelCase.
func ToLowerCamel(s string) string {
	parts := words(s)
	if len(parts) == 0 {
		return ""
	}
	parts[0] = strings.ToLower(parts[0])
	for i := 1; i < len(parts); i++ {
		parts[i] = UpperFirst(parts[i])
	}
	return strings.Join(parts, "")
}

// UpperFirst upper cases the first rune of s.
func UpperFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
