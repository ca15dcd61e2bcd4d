package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/alecthomas/digen/internal/analyser"
	"github.com/alecthomas/digen/internal/model"
	"github.com/alecthomas/digen/internal/registry"
)

func TestParseGoTags(t *testing.T) {
	tests := []struct {
		goFlags string
		want    []string
	}{
		{"", []string{}},
		{"-mod=mod", []string{}},
		{"-tags=integration", []string{"integration"}},
		{"-mod=mod --tags=a,b -v", []string{"a", "b"}},
		{`-tags="unterminated`, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseGoTags(tt.goFlags), tt.goFlags)
	}
}

func TestAnalysisTags(t *testing.T) {
	backing := []string{"a", "spare"}
	explicit := backing[:1]
	tags := analysisTags(explicit, "-tags=b")
	assert.Equal(t, []string{"a", "b"}, tags)
	assert.Equal(t, []string{"a", "spare"}, backing)
}

func TestLockPath(t *testing.T) {
	assert.Equal(t, lockPath("/src/a"), lockPath("/src/a"))
	assert.NotEqual(t, lockPath("/src/a"), lockPath("/src/b"))
}

func TestStaleDirs(t *testing.T) {
	root := filepath.Join(t.TempDir(), "app")
	result := &analyser.Result{
		Root: root,
		Packages: []*analyser.Package{
			{Path: "example.com/app", Dir: root, Files: []*analyser.File{{}}},
			{Path: "example.com/app/empty", Dir: filepath.Join(root, "empty")},
			{Path: "example.com/app/broken", Dir: filepath.Join(root, "broken"), Failed: true},
		},
	}
	dirs, err := staleDirs(result)
	assert.NoError(t, err)
	assert.Equal(t, []string{"empty"}, dirs)
}

func TestList(t *testing.T) {
	reg, err := registry.New(&model.ProducibleType{
		Ref:      model.TypeRef{Path: "example.com/app", Name: "English"},
		Strategy: model.LiteralExpression{Expr: `English{greeting: "Hello"}`},
	})
	assert.NoError(t, err)
	greeter := &model.Field{
		Name:   "greeter",
		Type:   "Greeter",
		Inject: &model.InjectionOverride{Interface: "Greeter", Concrete: model.TypeRef{Path: "example.com/app", Name: "English"}},
	}
	result := &analyser.Result{
		Registry: reg,
		Packages: []*analyser.Package{{
			Path: "example.com/app",
			Files: []*analyser.File{{
				Containers: []*model.ContainerType{{Name: "Services", Fields: []*model.Field{greeter}}},
			}},
		}},
	}
	w := &strings.Builder{}
	list(w, result)
	assert.Equal(t, `example.com/app.English: literal English{greeting: "Hello"}
example.com/app.Services:
  greeter Greeter <- English
`, w.String())
}
