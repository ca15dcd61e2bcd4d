package codewriter

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestWriter(t *testing.T) {
	w := New("example")
	w.Header("Code generated by test. DO NOT EDIT.")
	w.Tags("linux", "!race")
	w.Import("io")
	w.ImportAs("bee", "example.com/b")
	w.ImportAs("yaml", "gopkg.in/yaml.v3")
	w.ImportAs("b", "example.com/b")
	assert.False(t, w.ImportAs("bee", "example.com/other"))
	assert.True(t, w.ImportAs("bee", "example.com/b"))
	w.L("func f() {")
	w.In(func(w *Writer) {
		w.L("if true {")
		w.In(func(w *Writer) {
			w.L("return")
		})
		w.L("}")
		w.Indent()
		w.W("x := %d", 1)
		w.W("\n")
	})
	w.L("}")
	w.L("")
	expected := `// Code generated by test. DO NOT EDIT.

//go:build linux && !race

package example

import (
	"example.com/b"
	bee "example.com/b"
	yaml "gopkg.in/yaml.v3"
	"io"
)

func f() {
	if true {
		return
	}
	x := 1
}

`
	assert.Equal(t, expected, string(w.Bytes()))
}

func TestWriterNoImports(t *testing.T) {
	w := New("example")
	w.L("var x = %q", "%d")
	assert.Equal(t, "package example\n\nvar x = \"%d\"\n", string(w.Bytes()))
}
