// Package directiveparser implements a parser for digen's compiler directives.
//
// Three directives are recognised:
//
//	//di:injectable [factory => <expr>]
//	//di:container [constructor=<name>]
//	//di:inject(<type>)
package directiveparser

import (
	"go/ast"
	"go/parser"
	"strings"

	"github.com/alecthomas/errors"
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Prefix that all directive comments start with.
const Prefix = "//di:"

var (
	directiveParser = participle.MustBuild[annotation](
		participle.Lexer(directiveLexer),
		participle.Union[Directive](&DirectiveInjectable{}, &DirectiveContainer{}, &DirectiveInject{}),
		participle.Elide("Whitespace"),
	)
	directiveLexer = lexer.MustStateful(lexer.Rules{
		"Root": {
			{Name: "Arrow", Pattern: `=>`, Action: lexer.Push("Expr")},
			{Name: "Open", Pattern: `\(`, Action: lexer.Push("Type")},
			{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
			{Name: "Punct", Pattern: `[:=]`},
			{Name: "Whitespace", Pattern: `[ \t]+`},
		},
		// Everything after "=>" is a Go expression.
		"Expr": {
			{Name: "Expr", Pattern: `[^\n]+`},
		},
		"Type": {
			{Name: "Type", Pattern: `[^()\n]+`},
			{Name: "Close", Pattern: `\)`, Action: lexer.Pop()},
		},
	})
)

type annotation struct {
	Directive Directive `parser:"'di' ':' @@"`
}

// Directive is one of [DirectiveInjectable], [DirectiveContainer] or [DirectiveInject].
//
//sumtype:decl
type Directive interface {
	directive()
	// Validate the directive.
	Validate() error
	String() string
}

// DirectiveInjectable marks a type as producible.
type DirectiveInjectable struct {
	// Option is only populated while parsing.
	Option *InjectableOption `parser:"'injectable' @@?"`
	// Factory is the Go source of the factory expression, or "" if absent.
	Factory string
}

// InjectableOption is a "<key> => <expr>" option of an injectable directive. "factory" is the only key.
type InjectableOption struct {
	Key  string `parser:"@Ident '=>'"`
	Expr string `parser:"@Expr"`
}

func (d *DirectiveInjectable) directive() {}
func (d *DirectiveInjectable) String() string {
	if d.Factory == "" {
		return "di:injectable"
	}
	return "di:injectable factory => " + d.Factory
}
func (d *DirectiveInjectable) Validate() error {
	if d.Option != nil {
		if d.Option.Key != "factory" {
			return errors.Errorf("unknown injectable option %q", d.Option.Key)
		}
		d.Factory = strings.TrimSpace(d.Option.Expr)
		d.Option = nil
		if d.Factory == "" {
			return errors.Errorf("factory expression is empty")
		}
	}
	return nil
}

// DirectiveContainer marks a struct as a dependency injection container.
type DirectiveContainer struct {
	// Constructor overrides the name of the generated construction function.
	Constructor string `parser:"'container' ('constructor' '=' @Ident)?"`
}

func (d *DirectiveContainer) directive() {}
func (d *DirectiveContainer) String() string {
	if d.Constructor == "" {
		return "di:container"
	}
	return "di:container constructor=" + d.Constructor
}
func (d *DirectiveContainer) Validate() error { return nil }

// DirectiveInject routes a concrete producible type into a container field.
type DirectiveInject struct {
	Type string `parser:"'inject' '(' @Type ')'"`
	// Expr is the parsed type expression.
	Expr ast.Expr
}

func (d *DirectiveInject) directive()     {}
func (d *DirectiveInject) String() string { return "di:inject(" + d.Type + ")" }
func (d *DirectiveInject) Validate() error {
	d.Type = strings.TrimSpace(d.Type)
	expr, err := parser.ParseExpr(d.Type)
	if err != nil {
		return errors.Errorf("invalid injected type %q: %w", d.Type, err)
	}
	if !isTypeExpr(expr) {
		return errors.Errorf("invalid injected type %q: expected a named type", d.Type)
	}
	d.Expr = expr
	return nil
}

func isTypeExpr(expr ast.Expr) bool {
	switch expr := expr.(type) {
	case *ast.Ident:
		return true
	case *ast.SelectorExpr:
		_, ok := expr.X.(*ast.Ident)
		return ok
	case *ast.StarExpr:
		_, double := expr.X.(*ast.StarExpr)
		return !double && isTypeExpr(expr.X)
	case *ast.IndexExpr:
		return isTypeExpr(expr.X)
	case *ast.IndexListExpr:
		return isTypeExpr(expr.X)
	case *ast.ParenExpr:
		return isTypeExpr(expr.X)
	default:
		return false
	}
}

// Parse a digen directive, without the leading "//".
func Parse(text string) (Directive, error) {
	if text == "" {
		return nil, errors.Errorf("empty directive")
	}
	result, err := directiveParser.ParseString("", text)
	if err != nil {
		return nil, errors.Errorf("failed to parse directive: %w", err)
	}
	directive := result.Directive
	if err := directive.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}
	return directive, nil
}

// ParseComments returns every directive in a comment group. It returns nil if doc is nil or contains no directives.
func ParseComments(doc *ast.CommentGroup) ([]Directive, error) {
	if doc == nil {
		return nil, nil
	}
	var out []Directive
	for _, comment := range doc.List {
		if !strings.HasPrefix(comment.Text, Prefix) {
			continue
		}
		directive, err := Parse(comment.Text[2:])
		if err != nil {
			return nil, errors.Errorf("%s: %w", strings.TrimSpace(comment.Text), err)
		}
		out = append(out, directive)
	}
	return out, nil
}
