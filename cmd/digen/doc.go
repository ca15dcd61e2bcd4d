// Command digen generates dependency injection code from //di: directives, and is intended to be run via
// "go generate".
//
//	//go:generate go run github.com/alecthomas/digen/cmd/digen
//
// Types are made injectable with:
//
//	//di:injectable [factory => <expr>]
//	type Foo struct { ... }
//
// Each injectable type T gets a zero-argument provider function ProvideT (provideT if T is unexported). Structs
// annotated with:
//
//	//di:container [constructor=<name>]
//	type Services struct { ... }
//
// get a constructor, NewServices by default, that assigns every field from a provider, plus a getter, a mutable getter
// and a setter per field: get_<field>, get_mut_<field> and set_<field> with the field name lowercased. Use
// --naming=snake or --naming=go for other styles. Blank fields are left alone.
//
// Injectable types declared in other packages of the module can be used by containers. Their providers are
// generated when digen runs in those packages.
//
// The rules that are applied when resolving the value of a provider or a field are:
//
//  1. Without a factory, a provider calls a zero-argument New<T>() function returning T declared alongside T if there
//     is one, otherwise it returns T{} for struct, array, slice and map types, and the zero value of T for anything
//     else.
//  2. A factory must be a composite literal of T, a zero-argument function call, or a zero-argument closure returning
//     one value. The closure is invoked immediately.
//  3. A field of type T or *T is assigned from T's provider. Pointer fields point to a fresh value.
//  4. A field annotated with //di:inject(U) or //di:inject(*U) is assigned from U's provider, converted to the field's
//     declared type. Use the pointer form when U's methods have pointer receivers.
//  5. //di:inject(U) on a field whose declared type is itself injectable, and not U, is an error.
//  6. A field that cannot be resolved fails its container. Other declarations are still generated.
package main
