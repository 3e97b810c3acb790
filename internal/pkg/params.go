package pkg

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/simp-lee/goboot/internal/cast"
	"github.com/simp-lee/goboot/internal/domain"
	"github.com/simp-lee/goboot/internal/query"
)

const defaultCount = query.DefaultCount

// ListParams are the query string parameters accepted by list endpoints.
type ListParams struct {
	Start   int    `form:"start" binding:"gte=0"`
	Count   int    `form:"count" binding:"omitempty,gte=1,lte=1000"`
	Filters string `form:"filters"`
	OrderBy string `form:"order_by"`
	Include string `form:"include"`
}

// ListQuery is a parsed list request.
type ListQuery struct {
	Start   int
	Count   int
	Filters []query.Clause
	OrderBy query.OrderBy
	Include []string
}

// ParseListQuery binds and validates the list parameters of the request.
// filters and order_by accept either their JSON form or the compact
// "key:v1,v2;key2:v" and "col:asc;col2:desc" forms.
func ParseListQuery(c *gin.Context) (ListQuery, error) {
	var p ListParams
	if err := c.ShouldBindQuery(&p); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return ListQuery{}, err
		}
		return ListQuery{}, domain.NewAppError(domain.CodeValidation, "invalid list parameters", err)
	}
	if p.Count == 0 {
		p.Count = defaultCount
	}
	for _, param := range []struct {
		key string
		dst *string
	}{{"filters", &p.Filters}, {"order_by", &p.OrderBy}} {
		v, ok, err := rawQueryValue(c.Request.URL.RawQuery, param.key)
		if err != nil {
			return ListQuery{}, domain.NewAppError(domain.CodeValidation, "invalid "+param.key+" parameter", err)
		}
		if ok {
			*param.dst = v
		}
	}

	q := ListQuery{Start: p.Start, Count: p.Count}

	var err error
	if q.Filters, err = parseFilters(p.Filters); err != nil {
		return ListQuery{}, err
	}
	if q.OrderBy, err = parseOrderBy(p.OrderBy); err != nil {
		return ListQuery{}, err
	}
	if p.Include != "" {
		q.Include = cast.StrCSV(p.Include)
	}
	return q, nil
}

// rawQueryValue returns the first value of key in a raw query string.
// net/url drops every pair holding an unescaped ';', the separator of the
// compact forms, so filters and order_by are read here instead.
func rawQueryValue(rawQuery, key string) (string, bool, error) {
	for _, pair := range strings.Split(rawQuery, "&") {
		k, v, _ := strings.Cut(pair, "=")
		name, err := url.QueryUnescape(k)
		if err != nil || name != key {
			continue
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return "", false, err
		}
		return value, true, nil
	}
	return "", false, nil
}

func parseFilters(raw string) ([]query.Clause, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		return query.ParseFilters(raw)
	}
	f, err := ParseAPIFilters(raw)
	if err != nil {
		return nil, err
	}
	return f.Clauses(), nil
}

func parseOrderBy(raw string) (query.OrderBy, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		return query.ParseOrderBy(raw)
	}
	o, err := ParseAPIOrderBy(raw)
	if err != nil {
		return nil, err
	}
	return o.OrderBy(), nil
}

// APIFilters is the compact filter form "key:v1,v2;key2:v". Keys keep
// their input order.
type APIFilters struct {
	Keys   []string
	values map[string][]string
}

// ParseAPIFilters parses the compact filter form. Segments without values
// are ignored.
func ParseAPIFilters(s string) (*APIFilters, error) {
	f := &APIFilters{values: make(map[string][]string)}
	for _, segment := range strings.Split(s, ";") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		key, values, ok := strings.Cut(segment, ":")
		if !ok || key == "" {
			return nil, domain.InvalidValuef("Invalid filters format")
		}
		if values == "" {
			continue
		}
		if _, seen := f.values[key]; !seen {
			f.Keys = append(f.Keys, key)
		}
		f.values[key] = cast.StrCSV(values)
	}
	return f, nil
}

// Get returns the first value of key.
func (f *APIFilters) Get(key, def string) string {
	if vs, ok := f.values[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return def
}

// GetAll returns every value of key.
func (f *APIFilters) GetAll(key string) []string {
	return f.values[key]
}

// Has reports whether key was given.
func (f *APIFilters) Has(key string) bool {
	_, ok := f.values[key]
	return ok
}

// Clauses converts each key into an IN clause over its values.
func (f *APIFilters) Clauses() []query.Clause {
	if len(f.Keys) == 0 {
		return nil
	}
	clauses := make([]query.Clause, 0, len(f.Keys))
	for _, key := range f.Keys {
		values := make([]any, len(f.values[key]))
		for i, v := range f.values[key] {
			values[i] = v
		}
		clauses = append(clauses, query.In(key, values...))
	}
	return clauses
}

// APIOrderBy is the compact ordering form "col:asc;col2:desc".
type APIOrderBy struct {
	Keys       []string
	directions map[string]string
}

// ParseAPIOrderBy parses the compact ordering form. Directions other than
// asc and desc are rejected.
func ParseAPIOrderBy(s string) (*APIOrderBy, error) {
	o := &APIOrderBy{directions: make(map[string]string)}
	for _, segment := range strings.Split(s, ";") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		key, dir, ok := strings.Cut(segment, ":")
		if !ok || key == "" {
			return nil, domain.InvalidValuef("Invalid order-by format")
		}
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		if dir != "asc" && dir != "desc" {
			return nil, domain.InvalidValuef("Invalid order-by direction '%s'", dir)
		}
		if _, seen := o.directions[key]; !seen {
			o.Keys = append(o.Keys, key)
		}
		o.directions[key] = dir
	}
	return o, nil
}

// Get returns the direction for key, or "".
func (o *APIOrderBy) Get(key string) string {
	return o.directions[key]
}

// Has reports whether key was given.
func (o *APIOrderBy) Has(key string) bool {
	_, ok := o.directions[key]
	return ok
}

// OrderBy converts the keys into an ordering in input order.
func (o *APIOrderBy) OrderBy() query.OrderBy {
	if len(o.Keys) == 0 {
		return nil
	}
	order := make(query.OrderBy, 0, len(o.Keys))
	for _, key := range o.Keys {
		order = append(order, map[string]string{key: o.directions[key]})
	}
	return order
}
