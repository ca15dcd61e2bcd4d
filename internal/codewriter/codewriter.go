// Package codewriter is a small helper for emitting indented Go source.
package codewriter

import (
	"cmp"
	"fmt"
	"maps"
	"path"
	"slices"
	"strconv"
	"strings"
)

// Writer accumulates a Go source file.
type Writer struct {
	pkg     string
	header  []string
	tags    []string
	imports map[string]string // name -> path
	body    *strings.Builder
	indent  int
}

// New creates a Writer for a file in package pkg.
func New(pkg string) *Writer {
	return &Writer{
		pkg:     pkg,
		imports: map[string]string{},
		body:    &strings.Builder{},
	}
}

// Header adds a comment line above the package clause.
func (w *Writer) Header(format string, args ...any) {
	w.header = append(w.header, fmt.Sprintf(format, args...))
}

// Tags adds a build constraint to the file.
func (w *Writer) Tags(tags ...string) {
	w.tags = append(w.tags, tags...)
}

// Import a package by path.
func (w *Writer) Import(imp string) {
	w.ImportAs(path.Base(imp), imp)
}

// ImportAs imports a package under name.
//
// A package may be imported under several names. If name is already taken the first import wins and false is
// returned.
func (w *Writer) ImportAs(name, imp string) bool {
	if existing, ok := w.imports[name]; ok {
		return existing == imp
	}
	w.imports[name] = imp
	return true
}

// L writes a formatted line at the current indentation level.
func (w *Writer) L(format string, args ...any) {
	if format == "" {
		w.body.WriteString("\n")
		return
	}
	w.Indent()
	if len(args) == 0 {
		w.body.WriteString(format)
	} else {
		fmt.Fprintf(w.body, format, args...)
	}
	w.body.WriteString("\n")
}

// W writes formatted text without indentation or a trailing newline.
func (w *Writer) W(format string, args ...any) {
	if len(args) == 0 {
		w.body.WriteString(format)
		return
	}
	fmt.Fprintf(w.body, format, args...)
}

// Indent writes the current indentation.
func (w *Writer) Indent() {
	w.body.WriteString(strings.Repeat("\t", w.indent))
}

// In calls fn with the indentation level increased by one.
func (w *Writer) In(fn func(w *Writer)) {
	w.indent++
	fn(w)
	w.indent--
}

// Bytes returns the complete, unformatted source file.
func (w *Writer) Bytes() []byte {
	out := &strings.Builder{}
	for _, line := range w.header {
		fmt.Fprintf(out, "// %s\n", line)
	}
	if len(w.header) > 0 {
		out.WriteString("\n")
	}
	if len(w.tags) > 0 {
		fmt.Fprintf(out, "//go:build %s\n\n", strings.Join(w.tags, " && "))
	}
	fmt.Fprintf(out, "package %s\n\n", w.pkg)
	if len(w.imports) > 0 {
		names := slices.SortedFunc(maps.Keys(w.imports), func(a, b string) int {
			return cmp.Or(strings.Compare(w.imports[a], w.imports[b]), strings.Compare(a, b))
		})
		out.WriteString("import (\n")
		for _, name := range names {
			imp := w.imports[name]
			// The alias is redundant when it matches the last element of the import path.
			if name == path.Base(imp) {
				fmt.Fprintf(out, "\t%s\n", strconv.Quote(imp))
			} else {
				fmt.Fprintf(out, "\t%s %s\n", name, strconv.Quote(imp))
			}
		}
		out.WriteString(")\n\n")
	}
	out.WriteString(w.body.String())
	return []byte(out.String())
}
