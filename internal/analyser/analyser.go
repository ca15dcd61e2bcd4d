// Package analyser statically loads Go packages and collects their //di:... directives into the descriptors consumed
// by the generator.
package analyser

import (
	"go/ast"
	"go/token"
	"go/types"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/digen/internal/directiveparser"
	"github.com/alecthomas/digen/internal/logging"
	"github.com/alecthomas/digen/internal/model"
	"github.com/alecthomas/digen/internal/registry"
	"github.com/alecthomas/errors"
	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/packages"
)

// Result of analysing a set of packages.
type Result struct {
	// Root is the directory containing the main module's go.mod.
	Root string
	// Module is the main module's path.
	Module string
	// Packages in the main module, ordered by import path.
	Packages    []*Package
	Registry    *registry.Registry
	Diagnostics model.Diagnostics
}

// Containers returns every container in the result, in package and file order.
func (r *Result) Containers() []*model.ContainerType {
	var out []*model.ContainerType
	for _, pkg := range r.Packages {
		for _, file := range pkg.Files {
			out = append(out, file.Containers...)
		}
	}
	return out
}

// Package is a loaded Go package.
type Package struct {
	Path string
	Name string
	Dir  string
	// Files containing directives, ordered by path.
	Files []*File
	// Failed is true if any declaration in the package was diagnosed.
	Failed bool
}

// File is a source file containing at least one directive.
type File struct {
	Path        string
	Imports     []Import
	Producibles []*model.ProducibleType
	Containers  []*model.ContainerType
}

// Import is an import declaration of a source file.
type Import struct {
	// Name is the identifier the file refers to the package by.
	Name string
	Path string
	// Explicit is true if the import was renamed.
	Explicit bool
}

type analyseOptions struct {
	tags   []string
	logger *slog.Logger
}

type Option func(*analyseOptions) error

// WithTags sets the build tags used while loading packages.
func WithTags(tags ...string) Option {
	return func(o *analyseOptions) error {
		o.tags = append(o.tags, tags...)
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *analyseOptions) error {
		o.logger = logger
		return nil
	}
}

// Analyse loads the packages matching patterns and collects their directives.
//
// Malformed directives and declarations do not abort the analysis. They are reported in [Result.Diagnostics] and
// the affected declaration is omitted from the result.
func Analyse(patterns []string, options ...Option) (*Result, error) {
	opts := &analyseOptions{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range options {
		if err := opt(opts); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	root, module, err := findModule(cwd)
	if err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	cfg := &packages.Config{
		Logf: logging.Legacy(opts.logger, slog.LevelDebug).Printf,
		Fset: fset,
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedTypes | packages.NeedSyntax |
			packages.NeedTypesInfo,
	}
	if len(opts.tags) > 0 {
		cfg.BuildFlags = []string{"-tags=" + strings.Join(opts.tags, ",")}
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, errors.Errorf("failed to load packages: %w", err)
	}
	slices.SortFunc(pkgs, func(a, b *packages.Package) int { return strings.Compare(a.PkgPath, b.PkgPath) })

	reg, err := registry.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	result := &Result{Root: root, Module: module, Registry: reg}
	var loadErrors []error
	roots := map[string]bool{}
	for _, pkg := range pkgs {
		roots[pkg.PkgPath] = true
		loadErrors = append(loadErrors, packageErrors(pkg, opts.logger)...)
		if !inModule(pkg.PkgPath, module) {
			opts.logger.Warn("Skipping package outside the main module", "package", pkg.PkgPath, "module", module)
			continue
		}
		a := &packageAnalyser{pkg: pkg, fset: fset, result: result}
		out := a.analyse()
		if out != nil {
			opts.logger.Debug("Analysed package", "package", pkg.PkgPath, "files", len(out.Files))
			result.Packages = append(result.Packages, out)
		}
	}
	if len(loadErrors) > 0 {
		return nil, errors.Errorf("failed to load packages: %w", errors.Join(loadErrors...))
	}

	// Containers may use injectable types from other packages in the module that were not matched by patterns.
	deps := map[string]bool{}
	for _, pkg := range pkgs {
		if !inModule(pkg.PkgPath, module) {
			continue
		}
		for importPath := range pkg.Imports {
			if inModule(importPath, module) && !roots[importPath] {
				deps[importPath] = true
			}
		}
	}
	if len(deps) == 0 {
		return result, nil
	}
	depPkgs, err := packages.Load(cfg, slices.Sorted(maps.Keys(deps))...)
	if err != nil {
		return nil, errors.Errorf("failed to load imported packages: %w", err)
	}
	for _, pkg := range depPkgs {
		for _, perr := range pkg.Errors {
			opts.logger.Debug("Error in imported package", "package", pkg.PkgPath, "error", perr)
		}
		a := &packageAnalyser{pkg: pkg, fset: fset, result: result, registerOnly: true}
		a.analyse()
		opts.logger.Debug("Registered injectables of imported package", "package", pkg.PkgPath)
	}
	return result, nil
}

// Returns the errors that prevent a package from being analysed.
//
// Type errors, including compile errors reported by go list, are expected while generated code is missing or stale.
func packageErrors(pkg *packages.Package, logger *slog.Logger) []error {
	var out []error
	for _, perr := range pkg.Errors {
		switch {
		case perr.Kind == packages.ParseError,
			perr.Kind == packages.ListError && len(pkg.Syntax) == 0:
			out = append(out, perr)
		default:
			logger.Debug("Type error", "package", pkg.PkgPath, "error", perr)
		}
	}
	return out
}

func inModule(pkgPath, module string) bool {
	return pkgPath == module || strings.HasPrefix(pkgPath, module+"/")
}

type packageAnalyser struct {
	pkg    *packages.Package
	fset   *token.FileSet
	result *Result
	out    *Package

	// Only register injectable types, the package is not generated.
	registerOnly bool
}

func (a *packageAnalyser) diagnose(pos token.Pos, decl, field string, err error) {
	if a.registerOnly {
		return
	}
	a.out.Failed = true
	a.result.Diagnostics = append(a.result.Diagnostics, &model.Diagnostic{
		Pos:   a.fset.Position(pos),
		Decl:  decl,
		Field: field,
		Err:   err,
	})
}

func (a *packageAnalyser) analyse() *Package {
	if len(a.pkg.GoFiles) == 0 {
		return nil
	}
	out := &Package{
		Path: a.pkg.PkgPath,
		Name: a.pkg.Name,
		Dir:  filepath.Dir(a.pkg.GoFiles[0]),
	}
	a.out = out
	constructors := a.defaultConstructors()
	for _, file := range a.pkg.Syntax {
		if ast.IsGenerated(file) {
			continue
		}
		f := &File{
			Path:    a.fset.Position(file.Package).Filename,
			Imports: a.fileImports(file),
		}
		imports := map[string]Import{}
		for _, imp := range f.Imports {
			imports[imp.Name] = imp
		}
		for _, decl := range file.Decls {
			switch decl := decl.(type) {
			case *ast.FuncDecl:
				directives, err := directiveparser.ParseComments(decl.Doc)
				if err == nil && len(directives) > 0 {
					err = errors.Errorf("%s is only valid on type declarations", directives[0])
				}
				if err != nil {
					a.diagnose(decl.Pos(), "func "+decl.Name.Name, "", err)
				}

			case *ast.GenDecl:
				for _, spec := range decl.Specs {
					typeSpec, ok := spec.(*ast.TypeSpec)
					if !ok {
						continue
					}
					doc := typeSpec.Doc
					if doc == nil && len(decl.Specs) == 1 {
						doc = decl.Doc
					}
					a.analyseType(f, typeSpec, doc, imports, constructors)
				}
			}
		}
		if len(f.Producibles) > 0 || len(f.Containers) > 0 {
			out.Files = append(out.Files, f)
		}
	}
	slices.SortFunc(out.Files, func(a, b *File) int { return strings.Compare(a.Path, b.Path) })
	return out
}

func (a *packageAnalyser) analyseType(file *File, spec *ast.TypeSpec, doc *ast.CommentGroup, imports map[string]Import, constructors map[string]constructor) {
	name := spec.Name.Name
	ref := model.TypeRef{Path: a.pkg.PkgPath, Name: name}
	directives, err := directiveparser.ParseComments(doc)
	if err != nil {
		a.diagnose(spec.Pos(), "type "+name, "", err)
		a.result.Registry.Fail(ref, err)
		return
	}
	injectables := 0
	for _, directive := range directives {
		switch directive := directive.(type) {
		case *directiveparser.DirectiveInjectable:
			injectables++
			if injectables > 1 {
				a.diagnose(spec.Pos(), "injectable "+name, "", errors.Errorf("duplicate %s", directive))
				continue
			}
			producible, err := a.createProducible(spec, directive, constructors)
			if err != nil {
				a.diagnose(spec.Pos(), "injectable "+name, "", err)
				a.result.Registry.Fail(ref, err)
				continue
			}
			if err := a.result.Registry.Add(producible); err != nil {
				a.diagnose(spec.Pos(), "injectable "+name, "", err)
				continue
			}
			file.Producibles = append(file.Producibles, producible)

		case *directiveparser.DirectiveContainer:
			if a.registerOnly {
				continue
			}
			container, ok := a.createContainer(spec, directive, imports)
			if ok {
				file.Containers = append(file.Containers, container)
			}

		case *directiveparser.DirectiveInject:
			a.diagnose(spec.Pos(), "type "+name, "", errors.Errorf("%s is only valid on container fields", directive))
		}
	}
}

func (a *packageAnalyser) createProducible(spec *ast.TypeSpec, directive *directiveparser.DirectiveInjectable, constructors map[string]constructor) (*model.ProducibleType, error) {
	name := spec.Name.Name
	params := typeParams(spec.TypeParams)
	def := model.DefaultConstruct{Composite: a.isComposite(spec)}
	if ctor, ok := constructors[name]; ok && ctor.typeParams == len(params) {
		def.Constructor = ctor.name
	}
	strategy, err := model.ParseStrategy(name, directive.Factory, def)
	if err != nil {
		return nil, err
	}
	return &model.ProducibleType{
		Pos:        a.fset.Position(spec.Pos()),
		Ref:        model.TypeRef{Path: a.pkg.PkgPath, Name: name},
		TypeParams: params,
		Strategy:   strategy,
	}, nil
}

// Returns true if the zero value of the type can be written as a composite literal.
func (a *packageAnalyser) isComposite(spec *ast.TypeSpec) bool {
	if a.pkg.TypesInfo != nil {
		if obj := a.pkg.TypesInfo.Defs[spec.Name]; obj != nil && obj.Type() != nil {
			switch obj.Type().Underlying().(type) {
			case *types.Struct, *types.Array, *types.Slice, *types.Map:
				return true
			case *types.Basic:
				// Invalid types fall through to the syntactic check.
				if obj.Type().Underlying() != types.Typ[types.Invalid] {
					return false
				}
			default:
				return false
			}
		}
	}
	if spec.Assign.IsValid() {
		return false
	}
	switch spec.Type.(type) {
	case *ast.StructType, *ast.ArrayType, *ast.MapType:
		return true
	default:
		return false
	}
}

func (a *packageAnalyser) createContainer(spec *ast.TypeSpec, directive *directiveparser.DirectiveContainer, imports map[string]Import) (*model.ContainerType, bool) {
	name := spec.Name.Name
	decl := "container " + name
	structType, ok := spec.Type.(*ast.StructType)
	if !ok {
		a.diagnose(spec.Pos(), decl, "", errors.Errorf("containers must be structs"))
		return nil, false
	}
	container := &model.ContainerType{
		Pos:         a.fset.Position(spec.Pos()),
		Name:        name,
		TypeParams:  typeParams(spec.TypeParams),
		Constructor: directive.Constructor,
	}
	valid := true
	for _, field := range structType.Fields.List {
		names := []string{}
		for _, ident := range field.Names {
			// Blank fields can be neither assigned nor accessed.
			if ident.Name != "_" {
				names = append(names, ident.Name)
			}
		}
		if len(field.Names) > 0 && len(names) == 0 {
			continue
		}
		if len(names) == 0 {
			embedded, ok := embeddedName(field.Type)
			if !ok {
				a.diagnose(field.Pos(), decl, "", errors.Errorf("unsupported embedded field %s", types.ExprString(field.Type)))
				valid = false
				continue
			}
			names = append(names, embedded)
		}
		inject, err := fieldInjection(field)
		if err != nil {
			a.diagnose(field.Pos(), decl, names[0], err)
			valid = false
			continue
		}
		typeText := types.ExprString(field.Type)
		var declared *model.TypeRef
		if ref, ok := resolveTypeRef(field.Type, a.pkg.PkgPath, imports); ok {
			declared = &ref
		}
		var override *model.InjectionOverride
		if inject != nil {
			concrete, ok := resolveTypeRef(inject.Expr, a.pkg.PkgPath, imports)
			if !ok {
				a.diagnose(field.Pos(), decl, names[0], errors.Errorf("%w for %s: unknown package", model.ErrUnresolved, inject.Type))
				valid = false
				continue
			}
			if err := a.checkInjection(field.Type, concrete); err != nil {
				a.diagnose(field.Pos(), decl, names[0], err)
				valid = false
				continue
			}
			override = &model.InjectionOverride{Interface: typeText, Concrete: concrete}
		}
		for _, fieldName := range names {
			container.Fields = append(container.Fields, &model.Field{
				Pos:    a.fset.Position(field.Pos()),
				Name:   fieldName,
				Type:   typeText,
				Ref:    declared,
				Inject: override,
			})
		}
	}
	return container, valid
}

func fieldInjection(field *ast.Field) (*directiveparser.DirectiveInject, error) {
	var out *directiveparser.DirectiveInject
	for _, group := range []*ast.CommentGroup{field.Doc, field.Comment} {
		directives, err := directiveparser.ParseComments(group)
		if err != nil {
			return nil, err
		}
		for _, directive := range directives {
			inject, ok := directive.(*directiveparser.DirectiveInject)
			if !ok {
				return nil, errors.Errorf("%s is not valid on a field", directive)
			}
			if out != nil {
				return nil, errors.Errorf("duplicate %s", directive)
			}
			out = inject
		}
	}
	return out, nil
}

// Check that the injected type can be assigned to the field, if type information is available.
func (a *packageAnalyser) checkInjection(fieldType ast.Expr, concrete model.TypeRef) error {
	if a.pkg.Types == nil || a.pkg.TypesInfo == nil || len(concrete.Args) > 0 {
		return nil
	}
	declared := a.pkg.TypesInfo.TypeOf(fieldType)
	if declared == nil || declared == types.Typ[types.Invalid] {
		return nil
	}
	named := a.lookupType(concrete)
	if named == nil {
		return nil
	}
	concreteType := named
	if concrete.Pointer {
		concreteType = types.NewPointer(named)
	}
	declaredText := types.ExprString(fieldType)
	iface, ok := declared.Underlying().(*types.Interface)
	if !ok || types.IsInterface(concreteType) {
		if types.Identical(declared, concreteType) {
			return nil
		}
		return errors.Errorf("%w: cannot inject %s into field of non-interface type %s", model.ErrConflictingInjection, concrete, declaredText)
	}
	if types.Implements(concreteType, iface) {
		return nil
	}
	if !concrete.Pointer && types.Implements(types.NewPointer(named), iface) {
		return errors.Errorf("%s does not implement %s (method has pointer receiver, use di:inject(*%s))", concrete, declaredText, concrete)
	}
	return errors.Errorf("%s does not implement %s", concrete, declaredText)
}

func (a *packageAnalyser) lookupType(ref model.TypeRef) types.Type {
	var scope *types.Scope
	if ref.Path == a.pkg.Types.Path() {
		scope = a.pkg.Types.Scope()
	} else {
		for _, imp := range a.pkg.Types.Imports() {
			if imp.Path() == ref.Path {
				scope = imp.Scope()
				break
			}
		}
	}
	if scope == nil {
		return nil
	}
	obj, ok := scope.Lookup(ref.Name).(*types.TypeName)
	if !ok {
		return nil
	}
	if named, ok := obj.Type().(*types.Named); ok && named.TypeParams().Len() > 0 {
		return nil
	}
	return obj.Type()
}

type constructor struct {
	name       string
	typeParams int
}

// Find zero-argument New<Type>() functions returning <Type>, keyed by type name.
func (a *packageAnalyser) defaultConstructors() map[string]constructor {
	out := map[string]constructor{}
	for _, file := range a.pkg.Syntax {
		if ast.IsGenerated(file) {
			continue
		}
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil || !strings.HasPrefix(fn.Name.Name, "New") {
				continue
			}
			if fn.Type.Params.NumFields() != 0 || fn.Type.Results.NumFields() != 1 {
				continue
			}
			typeName := strings.TrimPrefix(fn.Name.Name, "New")
			result := fn.Type.Results.List[0].Type
			switch expr := result.(type) {
			case *ast.IndexExpr:
				result = expr.X
			case *ast.IndexListExpr:
				result = expr.X
			}
			if ident, ok := result.(*ast.Ident); ok && ident.Name == typeName {
				out[typeName] = constructor{name: fn.Name.Name, typeParams: len(typeParams(fn.Type.TypeParams))}
			}
		}
	}
	return out
}

func (a *packageAnalyser) fileImports(file *ast.File) []Import {
	out := make([]Import, 0, len(file.Imports))
	for _, spec := range file.Imports {
		importPath, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		imp := Import{Path: importPath}
		if spec.Name != nil {
			if spec.Name.Name == "_" || spec.Name.Name == "." {
				continue
			}
			imp.Name = spec.Name.Name
			imp.Explicit = true
		} else {
			imp.Name = a.importName(spec, importPath)
		}
		out = append(out, imp)
	}
	return out
}

func (a *packageAnalyser) importName(spec *ast.ImportSpec, importPath string) string {
	if a.pkg.TypesInfo != nil {
		if pkgName, ok := a.pkg.TypesInfo.Implicits[spec].(*types.PkgName); ok {
			return pkgName.Imported().Name()
		}
	}
	if imported, ok := a.pkg.Imports[importPath]; ok && imported.Name != "" {
		return imported.Name
	}
	return guessPackageName(importPath)
}

// Guess a package name from its import path, eg. gopkg.in/yaml.v3 -> yaml, github.com/a/go-foo/v2 -> foo.
func guessPackageName(importPath string) string {
	base := path.Base(importPath)
	if isMajorVersion(base) && strings.Contains(importPath, "/") {
		base = path.Base(path.Dir(importPath))
	}
	base = strings.TrimPrefix(base, "go-")
	if before, _, ok := strings.Cut(base, "."); ok {
		base = before
	}
	return strings.ReplaceAll(base, "-", "_")
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}

func typeParams(list *ast.FieldList) model.TypeParams {
	if list == nil {
		return nil
	}
	var out model.TypeParams
	for _, field := range list.List {
		for _, name := range field.Names {
			out = append(out, model.TypeParam{Name: name.Name, Constraint: types.ExprString(field.Type)})
		}
	}
	return out
}

func embeddedName(expr ast.Expr) (string, bool) {
	switch expr := expr.(type) {
	case *ast.Ident:
		return expr.Name, true
	case *ast.SelectorExpr:
		return expr.Sel.Name, true
	case *ast.StarExpr:
		return embeddedName(expr.X)
	case *ast.IndexExpr:
		return embeddedName(expr.X)
	case *ast.IndexListExpr:
		return embeddedName(expr.X)
	default:
		return "", false
	}
}

// Resolve a type expression to a named type reference.
func resolveTypeRef(expr ast.Expr, pkgPath string, imports map[string]Import) (model.TypeRef, bool) {
	switch expr := expr.(type) {
	case *ast.Ident:
		return model.TypeRef{Path: pkgPath, Name: expr.Name}, true

	case *ast.SelectorExpr:
		x, ok := expr.X.(*ast.Ident)
		if !ok {
			return model.TypeRef{}, false
		}
		imp, ok := imports[x.Name]
		if !ok {
			return model.TypeRef{}, false
		}
		return model.TypeRef{Path: imp.Path, Qualifier: x.Name, Name: expr.Sel.Name}, true

	case *ast.StarExpr:
		ref, ok := resolveTypeRef(expr.X, pkgPath, imports)
		if !ok || ref.Pointer {
			return model.TypeRef{}, false
		}
		ref.Pointer = true
		return ref, true

	case *ast.IndexExpr:
		ref, ok := resolveTypeRef(expr.X, pkgPath, imports)
		if !ok || ref.Pointer || len(ref.Args) > 0 {
			return model.TypeRef{}, false
		}
		ref.Args = []string{types.ExprString(expr.Index)}
		return ref, true

	case *ast.IndexListExpr:
		ref, ok := resolveTypeRef(expr.X, pkgPath, imports)
		if !ok || ref.Pointer || len(ref.Args) > 0 {
			return model.TypeRef{}, false
		}
		for _, index := range expr.Indices {
			ref.Args = append(ref.Args, types.ExprString(index))
		}
		return ref, true

	case *ast.ParenExpr:
		return resolveTypeRef(expr.X, pkgPath, imports)

	default:
		return model.TypeRef{}, false
	}
}

// Find the main module by searching up from dir for a go.mod file.
func findModule(dir string) (root, module string, err error) {
	root, err = filepath.Abs(dir)
	if err != nil {
		return "", "", errors.Errorf("failed to get absolute path for directory %s: %w", dir, err)
	}
	for {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(root)
		if parent == root {
			return "", "", errors.Errorf("couldn't find a go.mod file above %s", dir)
		}
		root = parent
	}
	goModPath := filepath.Join(root, "go.mod")
	data, err := os.ReadFile(goModPath) //nolint
	if err != nil {
		return "", "", errors.Errorf("failed to read go.mod file at %s: %w", goModPath, err)
	}
	mod, err := modfile.ParseLax(goModPath, data, nil)
	if err != nil {
		return "", "", errors.Errorf("failed to parse go.mod file at %s: %w", goModPath, err)
	}
	if mod.Module == nil {
		return "", "", errors.Errorf("%s does not declare a module", goModPath)
	}
	return root, mod.Module.Mod.Path, nil
}
