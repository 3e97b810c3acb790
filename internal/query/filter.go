// Package query builds filtered, ordered and paginated queries for database
// backed entity types on top of GORM.
package query

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"gorm.io/gorm/clause"

	"github.com/simp-lee/goboot/internal/domain"
)

// Op is a filter operation name as it appears on the wire.
type Op string

const (
	OpIn    Op = "in"
	OpEqual Op = "equal"
	OpRange Op = "range"
)

// Clause is one filter entry: either a condition {op, column, value} or an
// OR group {or: [...]}.
type Clause struct {
	Op     Op       `json:"op,omitempty"`
	Column string   `json:"column,omitempty"`
	Value  any      `json:"value,omitempty"`
	Or     []Clause `json:"or,omitempty"`
}

// In returns an IN clause.
func In(column string, values ...any) Clause {
	return Clause{Op: OpIn, Column: column, Value: values}
}

// Equal returns an equality clause.
func Equal(column string, value any) Clause {
	return Clause{Op: OpEqual, Column: column, Value: value}
}

// Range returns a range clause over [lo, hi]. A falsy bound is open.
func Range(column string, lo, hi any) Clause {
	return Clause{Op: OpRange, Column: column, Value: []any{lo, hi}}
}

// AnyOf returns an OR group.
func AnyOf(clauses ...Clause) Clause {
	return Clause{Or: clauses}
}

// ParseFilters decodes the JSON wire form of a filter list. Empty input
// yields no clauses.
func ParseFilters(raw string) ([]Clause, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var clauses []Clause
	if err := json.Unmarshal([]byte(raw), &clauses); err != nil {
		return nil, domain.NewAppError(domain.CodeValidation, "filters must be a JSON array of clauses", err)
	}
	return clauses, nil
}

// CondOp is the comparison a Condition applies.
type CondOp string

const (
	CondEq      CondOp = "="
	CondIn      CondOp = "IN"
	CondGt      CondOp = ">"
	CondLt      CondOp = "<"
	CondBetween CondOp = "BETWEEN"
)

// Condition is a single column comparison. Between uses Values[0] and
// Values[1] as inclusive bounds; the other operators use Values[0], except
// IN which uses all of Values.
type Condition struct {
	Column string
	Op     CondOp
	Values []any
}

// Expression renders the condition as a GORM clause expression.
func (c Condition) Expression() clause.Expression {
	col := clause.Column{Name: c.Column}
	switch c.Op {
	case CondIn:
		return clause.IN{Column: col, Values: c.Values}
	case CondGt:
		return clause.Gt{Column: col, Value: c.Values[0]}
	case CondLt:
		return clause.Lt{Column: col, Value: c.Values[0]}
	case CondBetween:
		return clause.And(
			clause.Gte{Column: col, Value: c.Values[0]},
			clause.Lte{Column: col, Value: c.Values[1]},
		)
	default:
		return clause.Eq{Column: col, Value: c.Values[0]}
	}
}

func (c Condition) String() string {
	switch c.Op {
	case CondIn:
		return c.Column + " IN " + formatValue(c.Values)
	case CondBetween:
		return fmt.Sprintf("%s BETWEEN %s AND %s", c.Column, formatValue(c.Values[0]), formatValue(c.Values[1]))
	default:
		return fmt.Sprintf("%s %s %s", c.Column, c.Op, formatValue(c.Values[0]))
	}
}

// Predicate is the conjunction of And with the disjunction of Or. Every OR
// group in the input is flattened into the single Or list.
type Predicate struct {
	And []Condition
	Or  []Condition
}

// Empty reports whether the predicate matches everything.
func (p Predicate) Empty() bool {
	return len(p.And) == 0 && len(p.Or) == 0
}

// Expression renders the predicate as a GORM clause expression, or nil when
// the predicate is empty.
func (p Predicate) Expression() clause.Expression {
	if p.Empty() {
		return nil
	}
	exprs := make([]clause.Expression, 0, len(p.And)+1)
	for _, c := range p.And {
		exprs = append(exprs, c.Expression())
	}
	if len(p.Or) > 0 {
		or := make([]clause.Expression, 0, len(p.Or))
		for _, c := range p.Or {
			or = append(or, c.Expression())
		}
		exprs = append(exprs, clause.Or(or...))
	}
	return clause.And(exprs...)
}

func (p Predicate) String() string {
	parts := make([]string, 0, len(p.And)+1)
	for _, c := range p.And {
		parts = append(parts, c.String())
	}
	if len(p.Or) > 0 {
		or := make([]string, 0, len(p.Or))
		for _, c := range p.Or {
			or = append(or, c.String())
		}
		group := strings.Join(or, " OR ")
		if len(or) > 1 {
			group = "(" + group + ")"
		}
		parts = append(parts, group)
	}
	return strings.Join(parts, " AND ")
}

// BuildFilter translates clauses into a predicate over the given columns.
// Clauses naming an unknown column, or missing op, column or value, are
// dropped without error.
func BuildFilter(clauses []Clause, columns []string) Predicate {
	known := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		known[col] = struct{}{}
	}

	var p Predicate
	for _, c := range clauses {
		if len(c.Or) > 0 {
			for _, sub := range c.Or {
				if cond, ok := condition(sub, known); ok {
					p.Or = append(p.Or, cond)
				}
			}
			continue
		}
		if cond, ok := condition(c, known); ok {
			p.And = append(p.And, cond)
		}
	}
	return p
}

func condition(c Clause, known map[string]struct{}) (Condition, bool) {
	if c.Op == "" || c.Column == "" || c.Value == nil {
		return Condition{}, false
	}
	if _, ok := known[c.Column]; !ok {
		return Condition{}, false
	}

	switch c.Op {
	case OpIn:
		return Condition{Column: c.Column, Op: CondIn, Values: toValues(c.Value)}, true
	case OpEqual:
		return Condition{Column: c.Column, Op: CondEq, Values: []any{c.Value}}, true
	case OpRange:
		bounds, ok := asSlice(c.Value)
		if !ok || len(bounds) == 0 {
			return Condition{}, false
		}
		lo := bounds[0]
		if len(bounds) == 1 {
			return rangeBound(c.Column, CondGt, lo)
		}
		hi := bounds[1]
		switch {
		case truthy(lo) && truthy(hi):
			return Condition{Column: c.Column, Op: CondBetween, Values: []any{lo, hi}}, true
		case truthy(lo):
			return rangeBound(c.Column, CondGt, lo)
		default:
			return rangeBound(c.Column, CondLt, hi)
		}
	}
	return Condition{}, false
}

func rangeBound(column string, op CondOp, v any) (Condition, bool) {
	if v == nil {
		return Condition{}, false
	}
	return Condition{Column: column, Op: op, Values: []any{v}}, true
}

// toValues spreads a slice value; a scalar becomes a one-element list.
func toValues(v any) []any {
	if items, ok := asSlice(v); ok {
		return items
	}
	return []any{v}
}

func asSlice(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// truthy treats nil, false, zero numbers, empty strings and empty
// collections as false.
func truthy(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = formatValue(item)
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return fmt.Sprint(v)
}
