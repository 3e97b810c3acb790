package query

import (
	"encoding/json"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simp-lee/goboot/internal/domain"
)

// OrderBy is an ordered list of single-key objects {column: "asc"|"desc"}.
type OrderBy []map[string]string

// Asc appends an ascending key.
func (o OrderBy) Asc(column string) OrderBy {
	return append(o, map[string]string{column: "asc"})
}

// Desc appends a descending key.
func (o OrderBy) Desc(column string) OrderBy {
	return append(o, map[string]string{column: "desc"})
}

// ParseOrderBy decodes the JSON wire form of an ordering.
func ParseOrderBy(raw string) (OrderBy, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var order OrderBy
	if err := json.Unmarshal([]byte(raw), &order); err != nil {
		return nil, domain.NewAppError(domain.CodeValidation, "order_by must be a JSON array of {column: direction} objects", err)
	}
	return order, nil
}

// Columns returns the ORDER BY columns restricted to known columns. Any
// direction other than "asc" sorts descending. Keys inside one object are
// taken in sorted order.
func (o OrderBy) Columns(columns []string) []clause.OrderByColumn {
	known := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		known[col] = struct{}{}
	}

	var out []clause.OrderByColumn
	for _, elem := range o {
		keys := make([]string, 0, len(elem))
		for k := range elem {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, ok := known[k]; !ok {
				continue
			}
			out = append(out, clause.OrderByColumn{
				Column: clause.Column{Name: k},
				Desc:   elem[k] != "asc",
			})
		}
	}
	return out
}

// Apply adds the ordering to db.
func (o OrderBy) Apply(db *gorm.DB, columns []string) *gorm.DB {
	for _, col := range o.Columns(columns) {
		db = db.Order(col)
	}
	return db
}
