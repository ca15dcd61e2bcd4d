package model

import (
	"go/token"
	"strings"

	"github.com/alecthomas/errors"
)

var (
	// ErrUnresolved is returned when no producible type can supply a field.
	ErrUnresolved = errors.New("no injectable provider")
	// ErrConflictingInjection is returned when a field's declared type and its injected type disagree.
	ErrConflictingInjection = errors.New("conflicting injection")
)

// Diagnostic is a generation failure attributed to a declaration in the source.
type Diagnostic struct {
	Pos token.Position
	// Decl describes the declaration, eg. "injectable Foo" or "container Services".
	Decl string
	// Field is the offending field, if any.
	Field string
	Err   error
}

func (d *Diagnostic) Error() string {
	parts := []string{}
	if d.Pos.IsValid() || d.Pos.Filename != "" {
		parts = append(parts, d.Pos.String())
	}
	if d.Decl != "" {
		parts = append(parts, d.Decl)
	}
	if d.Field != "" {
		parts = append(parts, "field "+d.Field)
	}
	parts = append(parts, d.Err.Error())
	return strings.Join(parts, ": ")
}

func (d *Diagnostic) Unwrap() error { return d.Err }

// Diagnostics is a list of diagnostics that is itself an error.
type Diagnostics []*Diagnostic

func (d Diagnostics) Error() string {
	lines := make([]string, 0, len(d))
	for _, diag := range d {
		lines = append(lines, diag.Error())
	}
	return strings.Join(lines, "\n")
}

// Unwrap allows errors.Is and errors.As to match any contained diagnostic.
func (d Diagnostics) Unwrap() []error {
	out := make([]error, 0, len(d))
	for _, diag := range d {
		out = append(out, diag)
	}
	return out
}

// Err returns d as an error, or nil if d is empty.
func (d Diagnostics) Err() error {
	if len(d) == 0 {
		return nil
	}
	return d
}
