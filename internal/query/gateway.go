package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simp-lee/goboot/internal/cast"
	"github.com/simp-lee/goboot/internal/domain"
	"github.com/simp-lee/goboot/internal/model"
)

// DefaultCount is the page size used when the caller asks for none.
const DefaultCount = 25

// Gateway runs filtered, ordered and paginated queries for one database
// backed type and converts rows into records.
type Gateway struct {
	Type  *model.Type
	Codec model.Codec
}

// For returns a gateway for t using the default codec.
func For(t *model.Type) *Gateway {
	return &Gateway{Type: t, Codec: model.DefaultCodec}
}

// baseQuery scopes db to the type's table, applies the join hook and the
// filter predicate. The returned query can be reused for count and fetch.
func (g *Gateway) baseQuery(ctx context.Context, db *gorm.DB, filters []Clause, include []string) (*gorm.DB, error) {
	if !g.Type.DBBacked() {
		return nil, domain.NewAppError(domain.CodeInternal, fmt.Sprintf("type %q is not database backed", g.Type.Name()), nil)
	}
	q := db.WithContext(ctx).Table(g.Type.Table())
	q = g.Type.Join(q, include)
	if expr := BuildFilter(filters, g.Type.Columns()).Expression(); expr != nil {
		q = q.Clauses(clause.Where{Exprs: []clause.Expression{expr}})
	}
	return q.Session(&gorm.Session{}), nil
}

func (g *Gateway) window(q *gorm.DB, start, count int, orderBy OrderBy) *gorm.DB {
	q = orderBy.Apply(q, g.Type.Columns())
	if start > 0 {
		q = q.Offset(start)
	}
	if count > 0 {
		q = q.Limit(count)
	}
	return q
}

func (g *Gateway) fetch(q *gorm.DB) ([]*model.Record, error) {
	var rows []map[string]any
	if err := q.Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	records := make([]*model.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := g.Codec.Deserialize(row, g.Type)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// GetPage returns the window [start, start+count) of matching records with
// navigation metadata. One extra row is fetched to detect a next page.
func (g *Gateway) GetPage(ctx context.Context, db *gorm.DB, filters []Clause, start, count int, orderBy OrderBy, include []string) (*Page[*model.Record], error) {
	if count <= 0 {
		count = DefaultCount
	}
	base, err := g.baseQuery(ctx, db, filters, include)
	if err != nil {
		return nil, err
	}

	items, err := g.fetch(g.window(base, start, count+1, orderBy))
	if err != nil {
		return nil, err
	}
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, mapError(err)
	}

	page := NewPage(items, total)
	page.GenPageData(start, count)
	return page, nil
}

// GetAll returns matching records. Zero start or count means no offset or
// no limit.
func (g *Gateway) GetAll(ctx context.Context, db *gorm.DB, filters []Clause, start, count int, orderBy OrderBy, include []string) ([]*model.Record, error) {
	base, err := g.baseQuery(ctx, db, filters, include)
	if err != nil {
		return nil, err
	}
	return g.fetch(g.window(base, start, count, orderBy))
}

// GetFirst returns the first matching record at offset start.
func (g *Gateway) GetFirst(ctx context.Context, db *gorm.DB, filters []Clause, start int, orderBy OrderBy, include []string) (*model.Record, error) {
	base, err := g.baseQuery(ctx, db, filters, include)
	if err != nil {
		return nil, err
	}
	items, err := g.fetch(g.window(base, start, 1, orderBy))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrNotFound
	}
	return items[0], nil
}

// Get returns the record with the given id.
func (g *Gateway) Get(ctx context.Context, db *gorm.DB, id int64, include []string) (*model.Record, error) {
	base, err := g.baseQuery(ctx, db, []Clause{Equal("id", id)}, include)
	if err != nil {
		return nil, err
	}
	items, err := g.fetch(base.Limit(1))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrNotFound
	}
	return items[0], nil
}

// Delete removes the record with the given id.
func (g *Gateway) Delete(ctx context.Context, db *gorm.DB, id int64) error {
	if !g.Type.DBBacked() {
		return domain.NewAppError(domain.CodeInternal, fmt.Sprintf("type %q is not database backed", g.Type.Name()), nil)
	}
	result := db.WithContext(ctx).Exec("DELETE FROM ? WHERE id = ?", clause.Table{Name: g.Type.Table()}, id)
	if result.Error != nil {
		return mapError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Create inserts the primitive columns of rec and stores the generated id
// back on the record.
func (g *Gateway) Create(ctx context.Context, db *gorm.DB, rec *model.Record) error {
	if rec == nil || rec.Type() != g.Type {
		return domain.TypeMismatchf("create: expected record of type %q", g.Type.Name())
	}
	if !g.Type.DBBacked() {
		return domain.NewAppError(domain.CodeInternal, fmt.Sprintf("type %q is not database backed", g.Type.Name()), nil)
	}

	values := make(map[string]any)
	structure := g.Type.Structure()
	for _, col := range g.Type.Columns() {
		raw, ok := rec.Get(col)
		if !ok || raw == nil {
			continue
		}
		kind := cast.Int
		if p, ok := structure[col].(model.Primitive); ok {
			kind = p.Kind
		}
		v, err := g.Codec.Caster.To(raw, kind)
		if err != nil {
			return fmt.Errorf("%s: %w", col, err)
		}
		if v == nil || (col == "id" && v == int64(0)) {
			continue
		}
		values[col] = v
	}
	if len(values) == 0 {
		return domain.NewAppError(domain.CodeValidation, "create: no column values", nil)
	}

	err := db.WithContext(ctx).
		Table(g.Type.Table()).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}}}).
		Create(values).Error
	if err != nil {
		return mapError(err)
	}
	if id, ok := values["id"]; ok {
		rec.Set("id", id)
	}
	return nil
}

// SelectPage returns a page of plain rows holding id and the requested
// fields. Unknown fields are ignored.
func (g *Gateway) SelectPage(ctx context.Context, db *gorm.DB, fields []string, filters []Clause, start, count int, orderBy OrderBy) (*Page[map[string]any], error) {
	if count <= 0 {
		count = 1000
	}
	base, err := g.baseQuery(ctx, db, filters, nil)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{})
	for _, col := range g.Type.Columns() {
		known[col] = struct{}{}
	}
	selects := []string{"id"}
	for _, f := range fields {
		if _, ok := known[f]; ok && f != "id" {
			selects = append(selects, f)
		}
	}

	var rows []map[string]any
	if err := g.window(base.Select(selects), start, count+1, orderBy).Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, mapError(err)
	}

	page := NewPage(rows, total)
	page.GenPageData(start, count)
	return page, nil
}

// mapError converts GORM errors to domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err) {
		return domain.NewAppError(domain.CodeAlreadyExists, "already exists", err)
	}
	return domain.NewAppError(domain.CodeInternal, "database error", err)
}

// isDuplicateKeyError detects unique constraint violations by message, since
// the pure-Go SQLite driver does not translate them to gorm.ErrDuplicatedKey.
func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
