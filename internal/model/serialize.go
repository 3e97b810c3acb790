package model

import (
	"errors"
	"reflect"
	"strconv"
	"time"

	"github.com/simp-lee/goboot/internal/cast"
	"github.com/simp-lee/goboot/internal/domain"
)

// Codec converts records to plain nested data and back. Plain data uses
// map[string]any for entities and dicts, []any for lists, and JSON-ready
// leaves: dates as "2006-01-02", datetimes as RFC 3339 in UTC.
type Codec struct {
	// Caster normalises incoming datetimes; the zero value uses time.Local.
	Caster cast.Caster
}

// DefaultCodec reads datetimes into the local zone.
var DefaultCodec = Codec{}

// Serialize converts rec with DefaultCodec.
func Serialize(rec *Record) (map[string]any, error) {
	return DefaultCodec.Serialize(rec)
}

// Deserialize builds a record of type t from data with DefaultCodec.
func Deserialize(data map[string]any, t *Type) (*Record, error) {
	return DefaultCodec.Deserialize(data, t)
}

// Serialize walks rec's structure and returns its plain representation.
// Unset and nil fields are omitted. A shape violation anywhere fails the
// whole call with TypeMismatch.
func (c Codec) Serialize(rec *Record) (map[string]any, error) {
	if rec == nil {
		return nil, nil
	}
	return c.serializeRecord(rec, rec.typ.name)
}

func (c Codec) serializeRecord(rec *Record, path string) (map[string]any, error) {
	out := make(map[string]any)
	t := rec.typ

	if t.DBBacked() {
		if id, ok := rec.ID(); ok && id != 0 {
			out["id"] = id
		}
	}

	for name, shape := range t.Structure() {
		v, ok := rec.values[name]
		if !ok || v == nil {
			continue
		}
		sv, err := c.serializeValue(t, v, shape, path+"."+name)
		if err != nil {
			return nil, err
		}
		if sv != nil {
			out[name] = sv
		}
	}
	return out, nil
}

func (c Codec) serializeValue(owner *Type, v any, shape Shape, path string) (any, error) {
	switch s := shape.(type) {
	case Primitive:
		casted, err := c.Caster.To(v, s.Kind)
		if err != nil {
			return nil, atPath(path, err)
		}
		return encodeLeaf(casted, s.Kind), nil

	case ListOf:
		items, ok := asList(v)
		if !ok {
			return nil, domain.TypeMismatchf("%s: expected list, got %T", path, v)
		}
		out := make([]any, 0, len(items))
		for i, item := range items {
			if item == nil {
				out = append(out, nil)
				continue
			}
			sv, err := c.serializeValue(owner, item, s.Elem, indexPath(path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, sv)
		}
		return out, nil

	case DictOf:
		m, ok := asDict(v)
		if !ok {
			return nil, domain.TypeMismatchf("%s: expected dict, got %T", path, v)
		}
		out := make(map[string]any, len(s.Fields))
		for key, sub := range s.Fields {
			raw, ok := m[key]
			if !ok || raw == nil {
				continue
			}
			sv, err := c.serializeValue(owner, raw, sub, path+"."+key)
			if err != nil {
				return nil, err
			}
			if sv != nil {
				out[key] = sv
			}
		}
		return out, nil

	case EntityRef:
		rec, ok := v.(*Record)
		if !ok || rec == nil {
			return nil, domain.TypeMismatchf("%s: expected entity, got %T", path, v)
		}
		want, err := owner.resolve(s)
		if err != nil {
			return nil, err
		}
		if want != nil && rec.typ != want {
			return nil, domain.TypeMismatchf("%s: expected entity %q, got %q", path, want.name, rec.typ.name)
		}
		return c.serializeRecord(rec, path)
	}
	return nil, domain.TypeMismatchf("%s: unsupported shape %T", path, shape)
}

// Deserialize allocates a record of type t and fills it from data,
// recursing into nested entities, lists and dicts. Fields of the abstract
// entity base cannot be instantiated and are skipped. Any error aborts the
// call and no record is returned.
func (c Codec) Deserialize(data map[string]any, t *Type) (*Record, error) {
	if t == nil {
		return nil, domain.NewAppError(domain.CodeInternal, "deserialize: nil type", nil)
	}
	return c.deserializeRecord(data, t, t.name)
}

func (c Codec) deserializeRecord(data map[string]any, t *Type, path string) (*Record, error) {
	rec := t.New()
	if data == nil {
		return rec, nil
	}

	if t.DBBacked() {
		if raw, ok := data["id"]; ok && raw != nil {
			id, err := c.Caster.To(raw, cast.Int)
			if err != nil {
				return nil, atPath(path+".id", err)
			}
			if id != nil {
				rec.values["id"] = id
			}
		}
	}

	for name, shape := range t.Structure() {
		raw, ok := data[name]
		if !ok || raw == nil {
			continue
		}
		v, keep, err := c.deserializeValue(t, raw, shape, path+"."+name)
		if err != nil {
			return nil, err
		}
		if keep {
			rec.values[name] = v
		}
	}
	return rec, nil
}

func (c Codec) deserializeValue(owner *Type, raw any, shape Shape, path string) (any, bool, error) {
	switch s := shape.(type) {
	case Primitive:
		v, err := c.Caster.To(raw, s.Kind)
		if err != nil {
			return nil, false, atPath(path, err)
		}
		return v, v != nil, nil

	case ListOf:
		if ref, ok := s.Elem.(EntityRef); ok && ref.IsBase() {
			return nil, false, nil
		}
		items, ok := asList(raw)
		if !ok {
			return nil, false, domain.TypeMismatchf("%s: expected list, got %T", path, raw)
		}
		out := make([]any, 0, len(items))
		for i, item := range items {
			if item == nil {
				out = append(out, nil)
				continue
			}
			v, _, err := c.deserializeValue(owner, item, s.Elem, indexPath(path, i))
			if err != nil {
				return nil, false, err
			}
			out = append(out, v)
		}
		return out, true, nil

	case DictOf:
		m, ok := asDict(raw)
		if !ok {
			return nil, false, domain.TypeMismatchf("%s: expected dict, got %T", path, raw)
		}
		out := make(map[string]any, len(s.Fields))
		for key, sub := range s.Fields {
			item, ok := m[key]
			if !ok || item == nil {
				continue
			}
			v, keep, err := c.deserializeValue(owner, item, sub, path+"."+key)
			if err != nil {
				return nil, false, err
			}
			if keep {
				out[key] = v
			}
		}
		return out, true, nil

	case EntityRef:
		if s.IsBase() {
			return nil, false, nil
		}
		m, ok := asDict(raw)
		if !ok {
			return nil, false, domain.TypeMismatchf("%s: expected object, got %T", path, raw)
		}
		target, err := owner.resolve(s)
		if err != nil {
			return nil, false, err
		}
		rec, err := c.deserializeRecord(m, target, path)
		if err != nil {
			return nil, false, err
		}
		return rec, true, nil
	}
	return nil, false, domain.TypeMismatchf("%s: unsupported shape %T", path, shape)
}

func encodeLeaf(v any, kind cast.Kind) any {
	t, ok := v.(time.Time)
	if !ok {
		return v
	}
	switch kind {
	case cast.Date:
		return cast.DateToISO(t)
	case cast.DateTime:
		return cast.TimeToISO(t)
	}
	return v
}

// asList accepts any slice or array.
func asList(v any) ([]any, bool) {
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

// asDict accepts any map keyed by strings.
func asDict(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	m := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		m[iter.Key().String()] = iter.Value().Interface()
	}
	return m, true
}

// atPath prefixes a leaf error with the field path, keeping its code.
func atPath(path string, err error) error {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return domain.NewAppError(appErr.Code, path+": "+appErr.Message, appErr.Err)
	}
	return domain.NewAppError(domain.CodeInvalidValue, path, err)
}

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
