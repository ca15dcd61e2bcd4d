// Package registry resolves producible types to the Go expressions that construct them.
//
// A Registry only lives for a single generator run.
package registry

import (
	"maps"
	"slices"

	"github.com/alecthomas/digen/internal/model"
	"github.com/alecthomas/digen/internal/strcase"
	"github.com/alecthomas/errors"
)

// Registry indexes the producible types of one generator run.
type Registry struct {
	types  map[string]*model.ProducibleType
	failed map[string]error
}

// New creates a Registry from a set of producible types.
func New(types ...*model.ProducibleType) (*Registry, error) {
	r := &Registry{
		types:  map[string]*model.ProducibleType{},
		failed: map[string]error{},
	}
	for _, typ := range types {
		if err := r.Add(typ); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add a producible type.
func (r *Registry) Add(typ *model.ProducibleType) error {
	key := typ.Ref.Key()
	if existing, ok := r.types[key]; ok {
		return errors.Errorf("%s: %s is already injectable at %s", typ.Pos, typ, existing.Pos)
	}
	r.types[key] = typ
	return nil
}

// Fail records that the producible type ref could not be parsed.
//
// References to it will resolve to an error wrapping err.
func (r *Registry) Fail(ref model.TypeRef, err error) {
	r.failed[ref.Key()] = err
}

// Lookup returns the producible type referenced by ref.
func (r *Registry) Lookup(ref model.TypeRef) (*model.ProducibleType, error) {
	if err, ok := r.failed[ref.Key()]; ok {
		return nil, errors.Errorf("%w for %s: %w", model.ErrUnresolved, ref, err)
	}
	typ, ok := r.types[ref.Key()]
	if !ok {
		return nil, errors.Errorf("%w for %s", model.ErrUnresolved, ref)
	}
	if len(ref.Args) != len(typ.TypeParams) {
		return nil, errors.Errorf("%w for %s: expected %d type arguments", model.ErrUnresolved, ref, len(typ.TypeParams))
	}
	return typ, nil
}

// All returns every producible type ordered by key.
func (r *Registry) All() []*model.ProducibleType {
	keys := slices.Sorted(maps.Keys(r.types))
	out := make([]*model.ProducibleType, 0, len(keys))
	for _, key := range keys {
		out = append(out, r.types[key])
	}
	return out
}

// ProviderName returns the name of the generated provider function for a producible type.
//
// Exported types get an exported provider so that containers in other packages can use them.
func ProviderName(typ *model.ProducibleType) string {
	if typ.Exported() {
		return "Provide" + strcase.UpperFirst(typ.Ref.Name)
	}
	return "provide" + strcase.UpperFirst(typ.Ref.Name)
}

// ProviderCall returns the call expression that produces a value of the type referenced by ref, from the file ref
// was resolved in.
//
// The pointer flag of ref is ignored. The provider always returns a value.
func (r *Registry) ProviderCall(ref model.TypeRef) (string, error) {
	typ, err := r.Lookup(ref)
	if err != nil {
		return "", err
	}
	if ref.Qualifier != "" && !typ.Exported() {
		return "", errors.Errorf("%w for %s: %s is not exported", model.ErrUnresolved, ref, typ.Ref.Name)
	}
	return ref.Instantiate(ref.Qualify(ProviderName(typ))) + "()", nil
}

// Expression returns the Go expression that constructs a producible type in its own package.
func Expression(typ *model.ProducibleType) string {
	switch strategy := typ.Strategy.(type) {
	case model.DefaultConstruct:
		self := typ.Ref.Name + typ.TypeParams.Args()
		switch {
		case strategy.Constructor != "":
			return strategy.Constructor + typ.TypeParams.Args() + "()"
		case strategy.Composite:
			return self + "{}"
		default:
			return "*new(" + self + ")"
		}

	case model.LiteralExpression:
		return strategy.Expr

	case model.FunctionCall:
		return strategy.Expr

	case model.ClosureInvocation:
		return "(" + strategy.Expr + ")()"

	default:
		panic(errors.Errorf("unsupported strategy %T", strategy))
	}
}
