package model

import (
	"sort"

	"github.com/simp-lee/goboot/internal/cast"
)

// Record is an entity instance: a type plus the fields that have been set.
type Record struct {
	typ    *Type
	values map[string]any
}

// Type returns the record's entity type.
func (r *Record) Type() *Type { return r.typ }

// Get returns the value of a field and whether it is set.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Set assigns a field and returns the record for chaining.
func (r *Record) Set(name string, value any) *Record {
	r.values[name] = value
	return r
}

// Unset removes a field.
func (r *Record) Unset(name string) {
	delete(r.values, name)
}

// Fields returns the names of set fields in sorted order.
func (r *Record) Fields() []string {
	names := make([]string, 0, len(r.values))
	for name := range r.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ID returns the record id when it is set and castable to an integer.
func (r *Record) ID() (int64, bool) {
	v, ok := r.values["id"]
	if !ok {
		return 0, false
	}
	id, err := cast.To(v, cast.Int)
	if err != nil || id == nil {
		return 0, false
	}
	return id.(int64), true
}
