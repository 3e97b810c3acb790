package model

import (
	"fmt"
	"strings"

	"gorm.io/gorm/schema"

	"github.com/simp-lee/goboot/internal/cast"
	"github.com/simp-lee/goboot/internal/domain"
)

// DefineFromGorm registers a database backed type derived from the GORM
// schema of model (a struct pointer). The type is named after its table.
// Columns map to primitives by data type, belongs-to and has-one relations
// to EntityNamed(related table), has-many and many-to-many relations to
// List(EntityNamed(related table)). Related types must be defined in the
// same registry before the structure is first used.
func (r *Registry) DefineFromGorm(model any, namer schema.Namer, opts ...Option) (*Type, error) {
	if namer == nil {
		namer = schema.NamingStrategy{}
	}
	sch, err := schema.Parse(model, &r.schemaCache, namer)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeInternal, fmt.Sprintf("parse gorm schema of %T", model), err)
	}

	structure := make(Structure, len(sch.Fields))
	for _, field := range sch.Fields {
		if field.DBName == "" {
			continue
		}
		structure[field.DBName] = Primitive{Kind: kindFromField(field)}
	}
	for _, rel := range Relations(sch) {
		if rel.FieldSchema == nil {
			continue
		}
		shape := EntityNamed(rel.FieldSchema.Table)
		switch rel.Type {
		case schema.HasMany, schema.Many2Many:
			shape = List(shape)
		}
		structure[namer.ColumnName(sch.Table, rel.Name)] = shape
	}

	opts = append([]Option{WithTable(sch.Table)}, opts...)
	return r.Define(sch.Table, func() Structure { return structure }, opts...)
}

// Relations returns the relations declared by fields of sch. The Relations
// map of a GORM schema also holds back references registered by related
// models under "_"-prefixed names; those are not fields and are left out.
func Relations(sch *schema.Schema) []*schema.Relationship {
	r := &sch.Relationships
	out := make([]*schema.Relationship, 0, len(r.BelongsTo)+len(r.HasOne)+len(r.HasMany)+len(r.Many2Many))
	out = append(out, r.BelongsTo...)
	out = append(out, r.HasOne...)
	out = append(out, r.HasMany...)
	out = append(out, r.Many2Many...)
	return out
}

// DefineFromGorm registers a GORM-derived type in the Default registry.
func DefineFromGorm(model any, namer schema.Namer, opts ...Option) (*Type, error) {
	return Default.DefineFromGorm(model, namer, opts...)
}

func kindFromField(field *schema.Field) cast.Kind {
	switch field.DataType {
	case schema.String:
		return cast.String
	case schema.Int, schema.Uint:
		return cast.Int
	case schema.Float:
		return cast.Float
	case schema.Bool:
		return cast.Bool
	case schema.Time:
		if strings.EqualFold(field.TagSettings["TYPE"], "date") {
			return cast.Date
		}
		return cast.DateTime
	}
	if strings.EqualFold(string(field.DataType), "date") {
		return cast.Date
	}
	return cast.Unknown
}
