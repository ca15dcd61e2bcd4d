// Package generator emits providers, accessors and constructors for analysed packages.
package generator

import (
	"fmt"
	"go/token"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alecthomas/digen/internal/analyser"
	"github.com/alecthomas/digen/internal/codewriter"
	"github.com/alecthomas/digen/internal/model"
	"github.com/alecthomas/digen/internal/output"
	"github.com/alecthomas/digen/internal/registry"
	"github.com/alecthomas/digen/internal/strcase"
	"github.com/alecthomas/errors"
	"golang.org/x/tools/imports"
)

// DefaultOutput is the name of the file generated in each package.
const DefaultOutput = "di_gen.go"

// Naming style of container accessors.
type Naming string

const (
	// NamingLower emits get_<field>, get_mut_<field> and set_<field> with the field name lowercased.
	NamingLower Naming = "lower"
	// NamingSnake is like NamingLower, with the field name converted to snake case.
	NamingSnake Naming = "snake"
	// NamingGo emits <Field>, <Field>Ptr and Set<Field>.
	NamingGo Naming = "go"
)

type accessors struct {
	get, getMut, set string
}

func (n Naming) accessors(field string) accessors {
	if n == NamingGo {
		name := strcase.ToUpperCamel(field)
		return accessors{get: name, getMut: name + "Ptr", set: "Set" + name}
	}
	name := strings.ToLower(field)
	if n == NamingSnake {
		name = strcase.ToLowerSnake(field)
	}
	return accessors{get: "get_" + name, getMut: "get_mut_" + name, set: "set_" + name}
}

type generateOptions struct {
	tags   []string
	naming Naming
	output string
	logger *slog.Logger
}

type Option func(*generateOptions) error

// WithTags adds build constraints to generated files.
func WithTags(tags ...string) Option {
	return func(o *generateOptions) error {
		o.tags = append(o.tags, tags...)
		return nil
	}
}

// WithNaming sets the accessor naming style.
func WithNaming(naming Naming) Option {
	return func(o *generateOptions) error {
		switch naming {
		case NamingLower, NamingSnake, NamingGo:
			o.naming = naming
			return nil
		default:
			return errors.Errorf("unsupported naming style %q", naming)
		}
	}
}

// WithOutput sets the name of the file generated in each package.
func WithOutput(name string) Option {
	return func(o *generateOptions) error {
		if filepath.Base(name) != name || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			return errors.Errorf("output %q must be a non-test .go file name without a directory", name)
		}
		o.output = name
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *generateOptions) error {
		o.logger = logger
		return nil
	}
}

// Output returns the name of the generated file for the given options.
func Output(options ...Option) (string, error) {
	opts, err := newOptions(options)
	if err != nil {
		return "", err
	}
	return opts.output, nil
}

func newOptions(options []Option) (*generateOptions, error) {
	opts := &generateOptions{naming: NamingLower, output: DefaultOutput, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range options {
		if err := opt(opts); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

// Generate a file for every analysed package containing directives.
//
// Declarations fail independently. Files are returned for everything that could be generated, along with a
// [model.Diagnostics] error that includes the analyser's diagnostics.
func Generate(result *analyser.Result, options ...Option) ([]output.File, error) {
	opts, err := newOptions(options)
	if err != nil {
		return nil, err
	}
	diags := slices.Clone(result.Diagnostics)
	var files []output.File
	for _, pkg := range result.Packages {
		if len(pkg.Files) == 0 {
			continue
		}
		g := &packageGenerator{
			pkg:      pkg,
			registry: result.Registry,
			opts:     opts,
			w:        codewriter.New(pkg.Name),
			names:    map[string]string{},
		}
		content, err := g.generate()
		diags = append(diags, g.diags...)
		if err != nil {
			diags = append(diags, &model.Diagnostic{
				Pos:  token.Position{Filename: filepath.Join(pkg.Dir, opts.output)},
				Decl: "package " + pkg.Path,
				Err:  err,
			})
			continue
		}
		rel, err := filepath.Rel(result.Root, filepath.Join(pkg.Dir, opts.output))
		if err != nil {
			return nil, errors.WithStack(err)
		}
		opts.logger.Debug("Generated", "package", pkg.Path, "file", rel)
		files = append(files, output.File{Path: filepath.ToSlash(rel), Content: content})
	}
	return files, diags.Err()
}

// Format generated source, pruning unused imports.
func Format(filename string, src []byte) ([]byte, error) {
	out, err := imports.Process(filename, src, &imports.Options{
		Comments:  true,
		TabIndent: true,
		TabWidth:  8,
	})
	if err != nil {
		return nil, errors.Errorf("failed to format generated code: %w", err)
	}
	return out, nil
}

type packageGenerator struct {
	pkg      *analyser.Package
	registry *registry.Registry
	opts     *generateOptions
	w        *codewriter.Writer
	// Import names in use, mapped to their path.
	names map[string]string
	diags model.Diagnostics
}

func (g *packageGenerator) diagnose(pos token.Position, decl, field string, err error) {
	g.diags = append(g.diags, &model.Diagnostic{Pos: pos, Decl: decl, Field: field, Err: err})
}

func (g *packageGenerator) generate() ([]byte, error) {
	w := g.w
	w.Header("%s", strings.TrimPrefix(output.Marker, "// "))
	w.Tags(g.opts.tags...)
	for _, file := range g.pkg.Files {
		if !g.importFile(file) {
			continue
		}
		for _, producible := range file.Producibles {
			g.writeProvider(producible)
		}
		for _, container := range file.Containers {
			g.writeContainer(container)
		}
	}
	filename := filepath.Join(g.pkg.Dir, g.opts.output)
	src := w.Bytes()
	out, err := Format(filename, src)
	if err != nil {
		g.opts.logger.Debug("Unformatted source", "file", filename, "source", string(src))
		return nil, err
	}
	return out, nil
}

// Generated declarations share one file per package, so a name must refer to the same package in every source file.
func (g *packageGenerator) importFile(file *analyser.File) bool {
	for _, imp := range file.Imports {
		if existing, ok := g.names[imp.Name]; ok && existing != imp.Path {
			g.diagnose(token.Position{Filename: file.Path}, "import "+imp.Name, "",
				errors.Errorf("%s refers to %q but is also used for %q in package %s, use a consistent import name", imp.Name, imp.Path, existing, g.pkg.Path))
			return false
		}
	}
	for _, imp := range file.Imports {
		g.names[imp.Name] = imp.Path
		g.w.ImportAs(imp.Name, imp.Path)
	}
	return true
}

func (g *packageGenerator) writeProvider(producible *model.ProducibleType) {
	w := g.w
	name := registry.ProviderName(producible)
	w.L("// %s constructs a %s.", name, producible.Ref.Name)
	w.L("func %s%s() %s {", name, producible.TypeParams.Decl(), producible)
	w.In(func(w *codewriter.Writer) {
		w.L("return %s", registry.Expression(producible))
	})
	w.L("}")
	w.L("")
}

type fieldInit struct {
	field *model.Field
	// Local is a variable declared before the composite literal, if any.
	local string
	call  string
	value string
}

func (g *packageGenerator) writeContainer(container *model.ContainerType) {
	decl := "container " + container.Name
	inits := make([]fieldInit, 0, len(container.Fields))
	failed := false
	locals := 0
	for _, field := range container.Fields {
		fi, err := g.resolveField(field)
		if err != nil {
			g.diagnose(field.Pos, decl, field.Name, err)
			failed = true
			continue
		}
		if fi.local != "" {
			fi.local = fmt.Sprintf("injected%d", locals)
			fi.value = strings.ReplaceAll(fi.value, "$", fi.local)
			locals++
		}
		inits = append(inits, fi)
	}
	if err := g.checkAccessors(container); err != nil {
		g.diagnose(container.Pos, decl, "", err)
		failed = true
	}
	if failed {
		return
	}

	w := g.w
	self := container.Name + container.TypeParams.Args()
	ctor := container.Constructor
	if ctor == "" {
		ctor = "new" + strcase.UpperFirst(container.Name)
		if token.IsExported(container.Name) {
			ctor = "New" + strcase.UpperFirst(container.Name)
		}
	}
	w.L("// %s constructs a %s with every field injected.", ctor, container.Name)
	w.L("func %s%s() *%s {", ctor, container.TypeParams.Decl(), self)
	w.In(func(w *codewriter.Writer) {
		for _, fi := range inits {
			if fi.local != "" {
				w.L("%s := %s", fi.local, fi.call)
			}
		}
		w.L("return &%s{", self)
		w.In(func(w *codewriter.Writer) {
			for _, fi := range inits {
				w.L("%s: %s,", fi.field.Name, fi.value)
			}
		})
		w.L("}")
	})
	w.L("}")
	w.L("")

	recv := g.freeName(container.TypeParams, strings.ToLower(container.Name[:1]), "c", "self")
	param := g.freeName(container.TypeParams, "v", "value", "newValue")
	for _, field := range container.Fields {
		names := g.opts.naming.accessors(field.Name)
		w.L("func (%s *%s) %s() %s { return %s.%s }", recv, self, names.get, field.Type, recv, field.Name)
		w.L("func (%s *%s) %s() *%s { return &%s.%s }", recv, self, names.getMut, field.Type, recv, field.Name)
		w.L("func (%s *%s) %s(%s %s) { %s.%s = %s }", recv, self, names.set, param, field.Type, recv, field.Name, param)
		w.L("")
	}
}

// Resolve the value assigned to a field. If the value is taken by address, "$" in value is the local variable.
func (g *packageGenerator) resolveField(field *model.Field) (fieldInit, error) {
	if inject := field.Inject; inject != nil {
		concrete := inject.Concrete
		sameType := field.Ref != nil && field.Ref.Key() == concrete.Key() && field.Ref.Pointer == concrete.Pointer
		if !sameType {
			if field.Ref != nil && field.Ref.Key() != concrete.Key() {
				if _, err := g.registry.Lookup(*field.Ref); err == nil {
					return fieldInit{}, errors.Errorf("%w: %s is itself injectable, remove di:inject(%s) or change the field type", model.ErrConflictingInjection, field.Type, concrete)
				}
			}
			call, err := g.registry.ProviderCall(concrete)
			if err != nil {
				return fieldInit{}, err
			}
			if concrete.Pointer {
				return fieldInit{field: field, local: "$", call: call, value: convert(inject.Interface, "&$")}, nil
			}
			return fieldInit{field: field, value: convert(inject.Interface, call)}, nil
		}
	}
	if field.Ref == nil {
		return fieldInit{}, errors.Errorf("%w for %s", model.ErrUnresolved, field.Type)
	}
	call, err := g.registry.ProviderCall(*field.Ref)
	if err != nil {
		return fieldInit{}, err
	}
	if field.Ref.Pointer {
		return fieldInit{field: field, local: "$", call: call, value: "&$"}, nil
	}
	return fieldInit{field: field, value: call}, nil
}

// Accessor names must not collide with fields or with each other.
func (g *packageGenerator) checkAccessors(container *model.ContainerType) error {
	owners := map[string]string{}
	for _, field := range container.Fields {
		owners[field.Name] = "field " + field.Name
	}
	var errs []error
	for _, field := range container.Fields {
		names := g.opts.naming.accessors(field.Name)
		for _, name := range []string{names.get, names.getMut, names.set} {
			if owner, ok := owners[name]; ok {
				errs = append(errs, errors.Errorf("accessor %s for field %s collides with %s", name, field.Name, owner))
				continue
			}
			owners[name] = "accessor of field " + field.Name
		}
	}
	return errors.Join(errs...)
}

// Return the first candidate that does not shadow an import or type parameter.
func (g *packageGenerator) freeName(params model.TypeParams, candidates ...string) string {
	for _, candidate := range candidates {
		_, imported := g.names[candidate]
		shadowed := slices.ContainsFunc(params, func(p model.TypeParam) bool { return p.Name == candidate })
		if !imported && !shadowed {
			return candidate
		}
	}
	return "_" + candidates[0]
}

// Convert expr to typ, parenthesising types that would otherwise bind incorrectly.
func convert(typ, expr string) string {
	if strings.HasPrefix(typ, "*") || strings.HasPrefix(typ, "<-") || strings.HasPrefix(typ, "func") {
		return "(" + typ + ")(" + expr + ")"
	}
	return typ + "(" + expr + ")"
}
