// Package cast converts raw values (decoded JSON, query parameters, database
// driver values) to the primitive kinds declared in an entity structure.
package cast

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	spfcast "github.com/spf13/cast"

	"github.com/simp-lee/goboot/internal/domain"
)

// Kind is a declared primitive field type.
type Kind int

const (
	Unknown Kind = iota
	String
	Int
	Float
	Bool
	Date
	DateTime
)

var kindNames = map[Kind]string{
	Unknown:  "unknown",
	String:   "string",
	Int:      "int",
	Float:    "float",
	Bool:     "bool",
	Date:     "date",
	DateTime: "datetime",
}

// String returns the lowercase kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Caster converts values to a Kind. Datetime results are normalised to
// Location; a nil Location means time.Local.
type Caster struct {
	Location *time.Location
}

// Local normalises datetimes to the process-local zone.
var Local = Caster{}

// UTC normalises datetimes to UTC.
var UTC = Caster{Location: time.UTC}

// To casts value to kind using the local-zone caster.
func To(value any, kind Kind) (any, error) {
	return Local.To(value, kind)
}

// To casts value to kind.
//
// nil stays nil. An empty string becomes nil for every kind except String.
// Int results are int64, Float results float64, Date and DateTime results
// time.Time.
func (c Caster) To(value any, kind Kind) (any, error) {
	if value == nil {
		return nil, nil
	}
	if s, ok := value.(string); ok && s == "" && kind != String && kind != Unknown {
		return nil, nil
	}

	switch kind {
	case String:
		return toString(value), nil
	case Int:
		if s, ok := value.(string); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return nil, domain.InvalidValuef("invalid int value '%s'", s)
			}
			return n, nil
		}
		n, err := spfcast.ToInt64E(value)
		if err != nil {
			return nil, domain.InvalidValuef("invalid int value '%v'", value)
		}
		return n, nil
	case Float:
		if s, ok := value.(string); ok {
			value = strings.TrimSpace(s)
		}
		f, err := spfcast.ToFloat64E(value)
		if err != nil {
			return nil, domain.InvalidValuef("invalid float value '%v'", value)
		}
		return f, nil
	case Bool:
		return toBool(value)
	case Date:
		return toDate(value)
	case DateTime:
		return c.toDateTime(value)
	default:
		return value, nil
	}
}

func (c Caster) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

func toString(value any) string {
	if s, err := spfcast.ToStringE(value); err == nil {
		return s
	}
	return fmt.Sprint(value)
}

func toBool(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "on", "true":
			return true, nil
		case "no", "off", "false":
			return false, nil
		}
		return nil, domain.InvalidValuef("invalid bool value '%s'", v)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		n, err := spfcast.ToInt64E(v)
		if err != nil {
			return nil, domain.InvalidValuef("invalid bool value '%v'", value)
		}
		return n != 0, nil
	}
	return nil, domain.InvalidValuef("invalid bool value '%v'", value)
}

func toDate(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	case string:
		d, err := ParseDate(v)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, domain.InvalidValuef("value is not a date '%v'", value)
}

func (c Caster) toDateTime(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v.In(c.location()), nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return v.In(c.location()), nil
	case string:
		t, err := ParseISO(v)
		if err != nil {
			return nil, err
		}
		return t.In(c.location()).Truncate(time.Second), nil
	}
	return nil, domain.InvalidValuef("value is not a datetime '%v'", value)
}
