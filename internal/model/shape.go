// Package model declares entity types, their field structures, and the
// recursive conversion between records and plain nested data.
package model

import (
	"github.com/simp-lee/goboot/internal/cast"
)

// Shape is the declared type of an entity field. The set of shapes is
// closed: Primitive, EntityRef, ListOf and DictOf.
type Shape interface {
	isShape()
}

// Structure maps field names to their declared shapes.
type Structure map[string]Shape

// Primitive is a leaf value of a cast.Kind.
type Primitive struct {
	Kind cast.Kind
}

// EntityRef is a nested entity. Exactly one of Type and Name is set; a ref
// with neither is the abstract base and matches any record.
type EntityRef struct {
	Type *Type
	Name string
}

// ListOf is a list whose elements all have shape Elem.
type ListOf struct {
	Elem Shape
}

// DictOf is a keyed sub-structure.
type DictOf struct {
	Fields Structure
}

func (Primitive) isShape() {}
func (EntityRef) isShape() {}
func (ListOf) isShape()    {}
func (DictOf) isShape()    {}

// Primitive shapes.
var (
	String   Shape = Primitive{Kind: cast.String}
	Int      Shape = Primitive{Kind: cast.Int}
	Float    Shape = Primitive{Kind: cast.Float}
	Bool     Shape = Primitive{Kind: cast.Bool}
	Date     Shape = Primitive{Kind: cast.Date}
	DateTime Shape = Primitive{Kind: cast.DateTime}
	Unknown  Shape = Primitive{Kind: cast.Unknown}
)

// AnyEntity is the abstract entity base.
var AnyEntity Shape = EntityRef{}

// Entity returns the shape of a nested entity of type t.
func Entity(t *Type) Shape {
	return EntityRef{Type: t}
}

// EntityNamed returns the shape of a nested entity whose type is resolved by
// name in the declaring type's registry. It allows self and mutual references.
func EntityNamed(name string) Shape {
	return EntityRef{Name: name}
}

// List returns a ListOf shape.
func List(elem Shape) Shape {
	return ListOf{Elem: elem}
}

// Dict returns a DictOf shape.
func Dict(fields Structure) Shape {
	return DictOf{Fields: fields}
}

// IsBase reports whether the ref is the abstract entity base.
func (r EntityRef) IsBase() bool {
	return r.Type == nil && r.Name == ""
}
