// Package model contains the descriptors passed from the analyser, through the registry, to the generator.
//
// Descriptors are built for a single generator run and are never persisted.
package model

import (
	"go/token"
	"strings"
)

// TypeRef is a reference to a named type from a specific source file.
type TypeRef struct {
	// Path is the import path of the package declaring the type.
	Path string
	// Qualifier is the package identifier used at the reference site, or "" if the type is local.
	Qualifier string
	Name      string
	// Args are the type arguments, as Go source.
	Args []string
	// Pointer is true if the reference is to *T.
	Pointer bool
}

// Key uniquely identifies the referenced type, ignoring type arguments and pointers.
func (t TypeRef) Key() string { return t.Path + "." + t.Name }

// Elem returns the reference without the pointer.
func (t TypeRef) Elem() TypeRef {
	t.Pointer = false
	return t
}

// Qualify prefixes name with the reference's qualifier, if any.
func (t TypeRef) Qualify(name string) string {
	if t.Qualifier == "" {
		return name
	}
	return t.Qualifier + "." + name
}

// Instantiate appends the reference's type arguments to name.
func (t TypeRef) Instantiate(name string) string {
	if len(t.Args) == 0 {
		return name
	}
	return name + "[" + strings.Join(t.Args, ", ") + "]"
}

// String returns the Go source for the type as written at the reference site.
func (t TypeRef) String() string {
	out := t.Instantiate(t.Qualify(t.Name))
	if t.Pointer {
		return "*" + out
	}
	return out
}

// TypeParam is a type parameter declared on a generic type.
type TypeParam struct {
	Name       string
	Constraint string
}

// TypeParams is an ordered list of type parameters.
type TypeParams []TypeParam

// Decl returns the type parameter declaration, eg. "[K comparable, V any]".
func (p TypeParams) Decl() string {
	if len(p) == 0 {
		return ""
	}
	parts := make([]string, 0, len(p))
	for _, param := range p {
		parts = append(parts, param.Name+" "+param.Constraint)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Args returns the type parameters as type arguments, eg. "[K, V]".
func (p TypeParams) Args() string {
	if len(p) == 0 {
		return ""
	}
	parts := make([]string, 0, len(p))
	for _, param := range p {
		parts = append(parts, param.Name)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ProducibleType is a type annotated with //di:injectable.
type ProducibleType struct {
	Pos        token.Position
	Ref        TypeRef
	TypeParams TypeParams
	Strategy   Strategy
}

// Exported reports whether the producible type is exported from its package.
func (p *ProducibleType) Exported() bool { return token.IsExported(p.Ref.Name) }

func (p *ProducibleType) String() string { return p.Ref.Name + p.TypeParams.Args() }

// ContainerType is a struct annotated with //di:container.
type ContainerType struct {
	Pos        token.Position
	Name       string
	TypeParams TypeParams
	// Constructor overrides the name of the construction routine.
	Constructor string
	Fields      []*Field
}

func (c *ContainerType) String() string { return c.Name + c.TypeParams.Args() }

// Field of a container.
type Field struct {
	Pos  token.Position
	Name string
	// Type is the declared type as Go source.
	Type string
	// Ref is the declared type, or nil if it is not a (pointer to a) named type.
	Ref *TypeRef
	// Inject is the injection override, if the field has a //di:inject directive.
	Inject *InjectionOverride
}

// InjectionOverride routes a concrete producible type into a field declared with an interface type.
type InjectionOverride struct {
	// Interface is the field's declared type as Go source.
	Interface string
	// Concrete is the producible type supplying the value. If Concrete.Pointer is true, the value is lifted into
	// the interface by address.
	Concrete TypeRef
}
