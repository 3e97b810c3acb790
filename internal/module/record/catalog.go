package record

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm/schema"

	"github.com/simp-lee/goboot/internal/model"
)

// Person is a sample entity owning clients.
type Person struct {
	ID      uint     `gorm:"primaryKey"`
	Name    string   `gorm:"size:128;not null"`
	Clients []Client `gorm:"foreignKey:PersonID"`
}

func (Person) TableName() string { return "persons" }

// Client belongs to an optional person.
type Client struct {
	ID       uint    `gorm:"primaryKey"`
	Name     string  `gorm:"size:128;not null"`
	PersonID *uint   `gorm:"index"`
	Person   *Person `gorm:"foreignKey:PersonID"`
}

func (Client) TableName() string { return "clients" }

// City is a sample flat entity with audit columns.
type City struct {
	ID          uint       `gorm:"primaryKey"`
	Code        string     `gorm:"size:64;not null;uniqueIndex"`
	DisplayName string     `gorm:"size:64;not null"`
	StateID     int64      `gorm:"not null;index"`
	Founded     *time.Time `gorm:"type:date"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CreatedByID int64
	UpdatedByID int64
}

func (City) TableName() string { return "cities" }

// Models returns the GORM models served by the record API.
func Models() []any {
	return []any{&Person{}, &Client{}, &City{}}
}

// relation describes how to load a related entity field: rows of target
// whose targetKey equals the owner's ownerKey.
type relation struct {
	many      bool
	target    string
	ownerKey  string
	targetKey string
}

// Catalog is the set of entity types exposed by the record API together
// with the relation keys needed to expand includes.
type Catalog struct {
	registry  *model.Registry
	relations map[string]map[string]relation
}

// NewCatalog defines a type per GORM model in a fresh registry.
func NewCatalog(namer schema.Namer, models ...any) (*Catalog, error) {
	if namer == nil {
		namer = schema.NamingStrategy{}
	}
	c := &Catalog{
		registry:  model.NewRegistry(),
		relations: make(map[string]map[string]relation),
	}

	var cache sync.Map
	for _, m := range models {
		t, err := c.registry.DefineFromGorm(m, namer)
		if err != nil {
			return nil, err
		}
		sch, err := schema.Parse(m, &cache, namer)
		if err != nil {
			return nil, fmt.Errorf("parse schema of %T: %w", m, err)
		}
		c.relations[t.Name()] = relationsOf(sch, namer)
	}
	return c, nil
}

func relationsOf(sch *schema.Schema, namer schema.Namer) map[string]relation {
	out := make(map[string]relation)
	for _, rel := range model.Relations(sch) {
		if rel.FieldSchema == nil || len(rel.References) != 1 {
			continue
		}
		ref := rel.References[0]
		if ref.PrimaryKey == nil || ref.ForeignKey == nil {
			continue
		}
		r := relation{target: rel.FieldSchema.Table}
		switch rel.Type {
		case schema.BelongsTo:
			r.ownerKey, r.targetKey = ref.ForeignKey.DBName, ref.PrimaryKey.DBName
		case schema.HasOne:
			r.ownerKey, r.targetKey = ref.PrimaryKey.DBName, ref.ForeignKey.DBName
		case schema.HasMany:
			r.ownerKey, r.targetKey = ref.PrimaryKey.DBName, ref.ForeignKey.DBName
			r.many = true
		default:
			continue
		}
		out[namer.ColumnName(sch.Table, rel.Name)] = r
	}
	return out
}

// Lookup returns the type registered under name.
func (c *Catalog) Lookup(name string) (*model.Type, bool) {
	return c.registry.Lookup(name)
}

// Types returns the registered types sorted by name.
func (c *Catalog) Types() []*model.Type {
	return c.registry.Types()
}

// Includes lists the relation fields of t that can be expanded.
func (c *Catalog) Includes(t *model.Type) []string {
	rels := c.relations[t.Name()]
	names := make([]string, 0, len(rels))
	for name := range rels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
