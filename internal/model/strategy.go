package model

import (
	"fmt"
	"go/ast"
	"go/parser"

	"github.com/alecthomas/errors"
)

// Strategy is how a producible type is constructed.
//
//sumtype:decl
type Strategy interface {
	strategy()
	String() string
}

// DefaultConstruct constructs a type without an explicit factory.
type DefaultConstruct struct {
	// Constructor is the name of a zero-argument New<Type> function declared alongside the type, if any.
	Constructor string
	// Composite is true if the type's zero value can be written as a composite literal, eg. T{}.
	Composite bool
}

func (DefaultConstruct) strategy() {}
func (d DefaultConstruct) String() string {
	switch {
	case d.Constructor != "":
		return "default (" + d.Constructor + ")"
	case d.Composite:
		return "default (composite literal)"
	default:
		return "default (zero value)"
	}
}

// LiteralExpression constructs a type from a composite literal, eg. Foo{Name: "foo"}.
type LiteralExpression struct{ Expr string }

func (LiteralExpression) strategy()        {}
func (l LiteralExpression) String() string { return "literal " + l.Expr }

// FunctionCall constructs a type by calling a zero-argument function, eg. newFoo().
type FunctionCall struct{ Expr string }

func (FunctionCall) strategy()        {}
func (f FunctionCall) String() string { return "call " + f.Expr }

// ClosureInvocation constructs a type by immediately invoking a zero-argument closure.
type ClosureInvocation struct{ Expr string }

func (ClosureInvocation) strategy()        {}
func (c ClosureInvocation) String() string { return "closure " + c.Expr }

// ErrInvalidFactory is returned when a factory expression is not one of the recognised shapes.
var ErrInvalidFactory = errors.New("invalid factory")

// ParseStrategy classifies the factory expression of the producible type typeName.
//
// An empty expression selects [DefaultConstruct], with def describing how the type constructs itself.
func ParseStrategy(typeName, expr string, def DefaultConstruct) (Strategy, error) {
	if expr == "" {
		return def, nil
	}
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return nil, errors.Errorf("%w %s: %w", ErrInvalidFactory, expr, err)
	}
	for {
		paren, ok := node.(*ast.ParenExpr)
		if !ok {
			break
		}
		node = paren.X
	}
	switch node := node.(type) {
	case *ast.CompositeLit:
		name := compositeTypeName(node.Type)
		if name == "" {
			return nil, invalidFactory(expr, "composite literal must name its type")
		}
		if name != typeName {
			return nil, invalidFactory(expr, fmt.Sprintf("composite literal constructs %s, not %s", name, typeName))
		}
		return LiteralExpression{Expr: expr}, nil

	case *ast.CallExpr:
		if len(node.Args) > 0 {
			return nil, invalidFactory(expr, "factory function must not take arguments")
		}
		return FunctionCall{Expr: expr}, nil

	case *ast.FuncLit:
		if node.Type.Params.NumFields() > 0 {
			return nil, invalidFactory(expr, "factory closure must not take arguments")
		}
		if node.Type.Results.NumFields() != 1 {
			return nil, invalidFactory(expr, "factory closure must return exactly one value")
		}
		return ClosureInvocation{Expr: expr}, nil

	default:
		return nil, invalidFactory(expr, "expected a composite literal, a function call or a closure")
	}
}

func invalidFactory(expr, reason string) error {
	return errors.Errorf("%w %s: %s", ErrInvalidFactory, expr, reason)
}

func compositeTypeName(expr ast.Expr) string {
	switch expr := expr.(type) {
	case *ast.Ident:
		return expr.Name
	case *ast.IndexExpr:
		return compositeTypeName(expr.X)
	case *ast.IndexListExpr:
		return compositeTypeName(expr.X)
	default:
		return ""
	}
}
