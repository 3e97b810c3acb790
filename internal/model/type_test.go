package model

import (
	"reflect"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/simp-lee/goboot/internal/domain"
)

func TestRegistry_Define(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Define("", nil); !domain.IsValidation(err) {
		t.Errorf("empty name: expected validation error, got %v", err)
	}

	first, err := reg.Define("city", nil)
	if err != nil {
		t.Fatalf("Define error: %v", err)
	}
	if _, err := reg.Define("city", nil); !domain.IsAlreadyExists(err) {
		t.Errorf("duplicate: expected AlreadyExists, got %v", err)
	}

	got, ok := reg.Lookup("city")
	if !ok || got != first {
		t.Errorf("Lookup(city) = %v, %v", got, ok)
	}
	if _, ok := reg.Lookup("state"); ok {
		t.Error("Lookup(state) should miss")
	}
	if got.Registry() != reg {
		t.Error("type should remember its registry")
	}
}

func TestRegistry_MustDefinePanics(t *testing.T) {
	reg := NewRegistry()
	reg.MustDefine("city", nil)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate MustDefine")
		}
	}()
	reg.MustDefine("city", nil)
}

func TestRegistry_TypesSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zone", "city", "state"} {
		reg.MustDefine(name, nil)
	}

	var names []string
	for _, typ := range reg.Types() {
		names = append(names, typ.Name())
	}
	if want := []string{"city", "state", "zone"}; !reflect.DeepEqual(names, want) {
		t.Errorf("Types() = %v; want %v", names, want)
	}
}

func TestType_StructureMemoized(t *testing.T) {
	calls := 0
	typ := NewRegistry().MustDefine("city", func() Structure {
		calls++
		return Structure{"name": String}
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = typ.Structure()
		}()
	}
	wg.Wait()

	s1, s2 := typ.Structure(), typ.Structure()
	if calls != 1 {
		t.Errorf("declare called %d times; want 1", calls)
	}
	if reflect.ValueOf(s1).Pointer() != reflect.ValueOf(s2).Pointer() {
		t.Error("Structure should return the same map on every call")
	}
}

func TestType_EmptyStructure(t *testing.T) {
	reg := NewRegistry()
	tests := []struct {
		name    string
		declare func() Structure
	}{
		{"no declaration", nil},
		{"empty declaration", func() Structure { return Structure{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ := reg.MustDefine(tt.name, tt.declare)
			if s := typ.Structure(); s != nil {
				t.Errorf("Structure() = %v; want nil", s)
			}
		})
	}
}

func TestType_Columns(t *testing.T) {
	reg := NewRegistry()
	reg.MustDefine("states", nil, WithTable("states"))
	city := reg.MustDefine("cities", func() Structure {
		return Structure{
			"name":     String,
			"state_id": Int,
			"state":    EntityNamed("states"),
			"tags":     List(String),
		}
	}, WithTable("cities"))

	if want := []string{"id", "name", "state_id"}; !reflect.DeepEqual(city.Columns(), want) {
		t.Errorf("Columns() = %v; want %v", city.Columns(), want)
	}
	if !city.DBBacked() || city.Table() != "cities" {
		t.Errorf("DBBacked/Table = %v/%q", city.DBBacked(), city.Table())
	}

	plain := reg.MustDefine("point", func() Structure { return Structure{"x": Float} })
	if want := []string{"x"}; !reflect.DeepEqual(plain.Columns(), want) {
		t.Errorf("plain Columns() = %v; want %v", plain.Columns(), want)
	}
}

func TestType_Join(t *testing.T) {
	var seen []string
	typ := NewRegistry().MustDefine("cities", nil,
		WithTable("cities"),
		WithJoin(func(db *gorm.DB, include []string) *gorm.DB {
			seen = include
			return db
		}),
	)

	typ.Join(nil, nil)
	if seen != nil {
		t.Error("join hook should not run without includes")
	}
	typ.Join(nil, []string{"state"})
	if !reflect.DeepEqual(seen, []string{"state"}) {
		t.Errorf("join hook got %v", seen)
	}

	bare := NewRegistry().MustDefine("bare", nil)
	if got := bare.Join(nil, []string{"x"}); got != nil {
		t.Error("Join without hook should return the query unchanged")
	}
}

func TestRecord_Accessors(t *testing.T) {
	typ := NewRegistry().MustDefine("cities", nil, WithTable("cities"))
	rec := typ.New().Set("name", "Pune").Set("id", "12")

	if rec.Type() != typ {
		t.Error("Type() mismatch")
	}
	if v, ok := rec.Get("name"); !ok || v != "Pune" {
		t.Errorf("Get(name) = %v, %v", v, ok)
	}
	if id, ok := rec.ID(); !ok || id != 12 {
		t.Errorf("ID() = %d, %v; want 12, true", id, ok)
	}
	if !reflect.DeepEqual(rec.Fields(), []string{"id", "name"}) {
		t.Errorf("Fields() = %v", rec.Fields())
	}

	rec.Unset("id")
	if _, ok := rec.ID(); ok {
		t.Error("ID() should report unset after Unset")
	}
	rec.Set("id", "abc")
	if _, ok := rec.ID(); ok {
		t.Error("ID() should reject a non-integer id")
	}
}
