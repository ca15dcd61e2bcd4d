package analyser

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/alecthomas/digen/internal/buildtesting"
	"github.com/alecthomas/digen/internal/model"
	"github.com/alecthomas/errors"
	"github.com/alecthomas/repr"
)

func analyseModule(t *testing.T, files map[string]string) *Result {
	t.Helper()
	buildtesting.Module(t, "example.com/app", files)
	result, err := Analyse([]string{"./..."})
	assert.NoError(t, err)
	return result
}

func TestAnalyseProducibles(t *testing.T) {
	result := analyseModule(t, map[string]string{
		"app.go": `
package app

//di:injectable
type Foo struct{ inner string }

//di:injectable
type Level int

//di:injectable factory => Bar{inner: "test"}
type Bar struct{ inner string }

//di:injectable factory => newBaz()
type Baz struct{}

func newBaz() Baz { return Baz{} }

//di:injectable
type Client struct{}

func NewClient() Client { return Client{} }

//di:injectable
type Box[T any] struct{ value T }
`,
	})
	assert.Equal(t, 0, len(result.Diagnostics), "%s", result.Diagnostics)
	assert.Equal(t, "example.com/app", result.Module)

	strategies := map[string]model.Strategy{}
	for _, typ := range result.Registry.All() {
		strategies[typ.String()] = typ.Strategy
	}
	assert.Equal(t, map[string]model.Strategy{
		"Foo":    model.DefaultConstruct{Composite: true},
		"Level":  model.DefaultConstruct{},
		"Bar":    model.LiteralExpression{Expr: `Bar{inner: "test"}`},
		"Baz":    model.FunctionCall{Expr: "newBaz()"},
		"Client": model.DefaultConstruct{Constructor: "NewClient", Composite: true},
		"Box[T]": model.DefaultConstruct{Composite: true},
	}, strategies, repr.String(strategies))
}

func TestAnalyseContainer(t *testing.T) {
	result := analyseModule(t, map[string]string{
		"store/store.go": `
package store

//di:injectable
type Store struct{}
`,
		"app.go": `
package app

import (
	"io"

	db "example.com/app/store"
)

type Greeter interface{ Greet() string }

//di:injectable
type English struct{}

func (English) Greet() string { return "hello" }

//di:injectable
type Writer struct{}

func (*Writer) Write(p []byte) (int, error) { return len(p), nil }

//di:container constructor=build
type Services struct {
	store db.Store
	cache *db.Store
	//di:inject(English)
	greeter Greeter
	writer  io.Writer //di:inject(*Writer)
	a, b    English
	English
}
`,
	})
	assert.Equal(t, 0, len(result.Diagnostics), "%s", result.Diagnostics)
	containers := result.Containers()
	assert.Equal(t, 1, len(containers))
	services := containers[0]
	assert.Equal(t, "build", services.Constructor)

	names := []string{}
	for _, field := range services.Fields {
		names = append(names, field.Name)
	}
	assert.Equal(t, []string{"store", "cache", "greeter", "writer", "a", "b", "English"}, names)

	store := services.Fields[0]
	assert.Equal(t, &model.TypeRef{Path: "example.com/app/store", Qualifier: "db", Name: "Store"}, store.Ref)
	cache := services.Fields[1]
	assert.True(t, cache.Ref.Pointer)

	greeter := services.Fields[2]
	assert.Equal(t, &model.InjectionOverride{
		Interface: "Greeter",
		Concrete:  model.TypeRef{Path: "example.com/app", Name: "English"},
	}, greeter.Inject)

	writer := services.Fields[3]
	assert.Equal(t, "io.Writer", writer.Inject.Interface)
	assert.True(t, writer.Inject.Concrete.Pointer)

	// Only the file declaring directives is recorded, with its imports.
	var app *Package
	for _, pkg := range result.Packages {
		if pkg.Path == "example.com/app" {
			app = pkg
		}
	}
	assert.NotZero(t, app)
	assert.Equal(t, 1, len(app.Files))
	assert.Equal(t, []Import{
		{Name: "io", Path: "io"},
		{Name: "db", Path: "example.com/app/store", Explicit: true},
	}, app.Files[0].Imports)
}

func TestAnalyseDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{
			name: "ContainerNotStruct",
			code: "//di:container\ntype Services int\n",
			want: "container Services: containers must be structs",
		},
		{
			name: "InvalidFactory",
			code: "//di:injectable factory => Other{}\ntype Foo struct{}\ntype Other struct{}\n",
			want: "composite literal constructs Other, not Foo",
		},
		{
			name: "DirectiveOnFunc",
			code: "//di:injectable\nfunc foo() {}\n",
			want: "only valid on type declarations",
		},
		{
			name: "PointerReceiver",
			code: `
type Greeter interface{ Greet() string }

//di:injectable
type English struct{}

func (*English) Greet() string { return "hello" }

//di:container
type Services struct {
	greeter Greeter //di:inject(English)
}
`,
			want: "English does not implement Greeter (method has pointer receiver, use di:inject(*English))",
		},
		{
			name: "NonInterfaceField",
			code: `
//di:injectable
type English struct{}

//di:injectable
type French struct{}

//di:container
type Services struct {
	greeter French //di:inject(English)
}
`,
			want: "cannot inject English into field of non-interface type French",
		},
		{
			name: "DuplicateInject",
			code: `
//di:injectable
type English struct{}

//di:container
type Services struct {
	//di:inject(English)
	greeter any //di:inject(English)
}
`,
			want: "field greeter: duplicate",
		},
		{
			name: "UnknownPackage",
			code: `
//di:container
type Services struct {
	greeter any //di:inject(nope.English)
}
`,
			want: "no injectable provider for nope.English",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := analyseModule(t, map[string]string{"app.go": "package app\n" + tt.code})
			assert.Equal(t, 1, len(result.Diagnostics), "%s", result.Diagnostics)
			assert.Contains(t, result.Diagnostics.Error(), tt.want)
			assert.Equal(t, 0, len(result.Containers()))
			assert.True(t, result.Packages[0].Failed)
		})
	}
}

func TestAnalyseFailedProducibleResolves(t *testing.T) {
	result := analyseModule(t, map[string]string{
		"app.go": `
package app

//di:injectable factory => func(x int) Foo { return Foo{} }
type Foo struct{}
`,
	})
	assert.Equal(t, 1, len(result.Diagnostics))
	_, err := result.Registry.Lookup(model.TypeRef{Path: "example.com/app", Name: "Foo"})
	assert.True(t, errors.Is(err, model.ErrUnresolved))
	assert.True(t, errors.Is(err, model.ErrInvalidFactory))
}

func TestAnalyseBeforeFirstGeneration(t *testing.T) {
	buildtesting.Module(t, "example.com/app", map[string]string{
		"main.go": `
package main

import "fmt"

//di:injectable
type Foo struct{}

//di:container
type Services struct {
	foo Foo
}

func main() {
	services := NewServices()
	fmt.Println(services.get_foo())
}
`,
	})
	result, err := Analyse([]string{"."})
	assert.NoError(t, err)
	assert.Equal(t, 0, len(result.Diagnostics), "%s", result.Diagnostics)
	assert.Equal(t, 1, len(result.Containers()))
	assert.False(t, result.Packages[0].Failed)
}

func TestAnalyseImportedInjectables(t *testing.T) {
	buildtesting.Module(t, "example.com/app", map[string]string{
		"store/store.go": `
package store

//di:injectable
type Users map[string]int

//di:injectable factory => func(n int) Broken { return Broken{} }
type Broken struct{}

//di:container
type Ignored struct{ users Users }
`,
		"app.go": `
package app

import "example.com/app/store"

//di:container
type Services struct {
	users store.Users
}
`,
	})
	result, err := Analyse([]string{"."})
	assert.NoError(t, err)
	// Imported packages are not generated, so their problems are not reported.
	assert.Equal(t, 0, len(result.Diagnostics), "%s", result.Diagnostics)
	assert.Equal(t, 1, len(result.Packages))
	assert.Equal(t, "example.com/app", result.Packages[0].Path)
	assert.Equal(t, 1, len(result.Containers()))

	users, err := result.Registry.Lookup(model.TypeRef{Path: "example.com/app/store", Name: "Users"})
	assert.NoError(t, err)
	assert.Equal(t, model.Strategy(model.DefaultConstruct{Composite: true}), users.Strategy)

	_, err = result.Registry.Lookup(model.TypeRef{Path: "example.com/app/store", Name: "Broken"})
	assert.True(t, errors.Is(err, model.ErrInvalidFactory))
}

func TestAnalyseBlankFields(t *testing.T) {
	result := analyseModule(t, map[string]string{
		"app.go": `
package app

//di:injectable
type Foo struct{}

//di:container
type Services struct {
	_    Foo
	a, _ Foo
}
`,
	})
	assert.Equal(t, 0, len(result.Diagnostics), "%s", result.Diagnostics)
	fields := result.Containers()[0].Fields
	assert.Equal(t, 1, len(fields))
	assert.Equal(t, "a", fields[0].Name)
}

func TestAnalyseSkipsGeneratedFiles(t *testing.T) {
	result := analyseModule(t, map[string]string{
		"app.go": "package app\n\n//di:injectable\ntype Foo struct{}\n",
		"app_di.go": `// Code generated by digen. DO NOT EDIT.

package app

//di:injectable
type Bar struct{}
`,
	})
	assert.Equal(t, 1, len(result.Registry.All()))
}

func TestGuessPackageName(t *testing.T) {
	tests := map[string]string{
		"github.com/alecthomas/kong":        "kong",
		"gopkg.in/yaml.v3":                  "yaml",
		"github.com/alecthomas/go-check/v2": "check",
		"example.com/foo-bar":               "foo_bar",
	}
	for importPath, want := range tests {
		assert.Equal(t, want, guessPackageName(importPath), importPath)
	}
}
