package model

import (
	"sort"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm/schema"

	"github.com/simp-lee/goboot/internal/cast"
)

type testPerson struct {
	ID       uint
	Name     string
	Score    float64
	Active   bool
	Birthday time.Time `gorm:"type:date"`
	JoinedAt time.Time
	Clients  []testClient `gorm:"foreignKey:PersonID"`
}

func (testPerson) TableName() string { return "people" }

type testClient struct {
	ID       uint
	Code     string
	PersonID uint
	Person   testPerson
}

func (testClient) TableName() string { return "clients" }

func TestDefineFromGorm(t *testing.T) {
	reg := NewRegistry()

	person, err := reg.DefineFromGorm(&testPerson{}, nil)
	if err != nil {
		t.Fatalf("DefineFromGorm(person) error: %v", err)
	}
	client, err := reg.DefineFromGorm(&testClient{}, schema.NamingStrategy{})
	if err != nil {
		t.Fatalf("DefineFromGorm(client) error: %v", err)
	}

	if person.Name() != "people" || person.Table() != "people" {
		t.Errorf("person name/table = %q/%q", person.Name(), person.Table())
	}

	ps := person.Structure()
	wantKinds := map[string]cast.Kind{
		"id":        cast.Int,
		"name":      cast.String,
		"score":     cast.Float,
		"active":    cast.Bool,
		"birthday":  cast.Date,
		"joined_at": cast.DateTime,
	}
	for col, kind := range wantKinds {
		p, ok := ps[col].(Primitive)
		if !ok || p.Kind != kind {
			t.Errorf("person.%s = %#v; want %s", col, ps[col], kind)
		}
	}
	clients, ok := ps["clients"].(ListOf)
	if !ok {
		t.Fatalf("person.clients = %#v; want list", ps["clients"])
	}
	if ref, ok := clients.Elem.(EntityRef); !ok || ref.Name != "clients" {
		t.Errorf("person.clients element = %#v", clients.Elem)
	}

	cs := client.Structure()
	if ref, ok := cs["person"].(EntityRef); !ok || ref.Name != "people" {
		t.Errorf("client.person = %#v; want entity people", cs["person"])
	}
	if p, ok := cs["person_id"].(Primitive); !ok || p.Kind != cast.Int {
		t.Errorf("client.person_id = %#v", cs["person_id"])
	}
}

func TestDefineFromGorm_RoundTrip(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.DefineFromGorm(&testPerson{}, nil); err != nil {
		t.Fatal(err)
	}
	client, err := reg.DefineFromGorm(&testClient{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	rec, err := Deserialize(map[string]any{
		"id":        1,
		"code":      "C-1",
		"person_id": 2,
		"person":    map[string]any{"id": 2, "name": "Sharma", "birthday": "1990-05-06"},
	}, client)
	if err != nil {
		t.Fatalf("Deserialize error: %v", err)
	}
	out, err := Serialize(rec)
	if err != nil {
		t.Fatalf("Serialize error: %v", err)
	}
	person, ok := out["person"].(map[string]any)
	if !ok {
		t.Fatalf("person = %#v", out["person"])
	}
	if person["birthday"] != "1990-05-06" || person["id"] != int64(2) {
		t.Errorf("person = %#v", person)
	}
}

func TestDefineFromGorm_InvalidModel(t *testing.T) {
	if _, err := NewRegistry().DefineFromGorm(42, nil); err == nil {
		t.Error("expected error for non-struct model")
	}
}

func TestDefineFromGorm_BackReferencesAreNotFields(t *testing.T) {
	reg := NewRegistry()
	// Parsing people first registers a back reference in the clients schema.
	person, err := reg.DefineFromGorm(&testPerson{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	client, err := reg.DefineFromGorm(&testClient{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	want := map[*Type][]string{
		person: {"active", "birthday", "clients", "id", "joined_at", "name", "score"},
		client: {"code", "id", "person", "person_id"},
	}
	for typ, fields := range want {
		st := typ.Structure()
		if len(st) != len(fields) {
			t.Errorf("%s fields = %v; want %v", typ.Name(), keysOf(st), fields)
		}
		for _, f := range fields {
			if _, ok := st[f]; !ok {
				t.Errorf("%s missing field %q", typ.Name(), f)
			}
		}
	}
	if _, ok := client.Structure()["clients"]; ok {
		t.Errorf("clients.clients = %#v; want no such field", client.Structure()["clients"])
	}
}

func TestRelations_SkipsBackReferences(t *testing.T) {
	var cache sync.Map
	if _, err := schema.Parse(&testPerson{}, &cache, schema.NamingStrategy{}); err != nil {
		t.Fatal(err)
	}
	sch, err := schema.Parse(&testClient{}, &cache, schema.NamingStrategy{})
	if err != nil {
		t.Fatal(err)
	}

	rels := Relations(sch)
	if len(rels) != 1 || rels[0].Name != "Person" || rels[0].Type != schema.BelongsTo {
		names := make([]string, 0, len(rels))
		for _, r := range rels {
			names = append(names, r.Name)
		}
		t.Fatalf("relations = %v; want [Person]", names)
	}
}

func keysOf(st Structure) []string {
	keys := make([]string, 0, len(st))
	for k := range st {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
