package model

import (
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"

	"github.com/simp-lee/goboot/internal/domain"
)

// JoinFunc extends a base query with the relations named in include.
type JoinFunc func(db *gorm.DB, include []string) *gorm.DB

// Type is an entity type. Its Structure is built from the declaration on
// first use and never changes afterwards.
type Type struct {
	name     string
	table    string
	registry *Registry
	join     JoinFunc

	declare   func() Structure
	once      sync.Once
	structure Structure
}

// Option configures a Type at definition time.
type Option func(*Type)

// WithTable marks the type as database backed by the given table. Database
// backed records always carry an integer id.
func WithTable(table string) Option {
	return func(t *Type) { t.table = table }
}

// WithJoin sets the hook applied to queries with an include list.
func WithJoin(fn JoinFunc) Option {
	return func(t *Type) { t.join = fn }
}

// Name returns the registered type name.
func (t *Type) Name() string { return t.name }

// Table returns the backing table, or "" for a plain type.
func (t *Type) Table() string { return t.table }

// DBBacked reports whether the type is stored in a table.
func (t *Type) DBBacked() bool { return t.table != "" }

// Registry returns the registry the type was defined in.
func (t *Type) Registry() *Registry { return t.registry }

// Structure returns the memoized field structure. It returns nil when the
// type declares no fields.
func (t *Type) Structure() Structure {
	t.once.Do(func() {
		if t.declare == nil {
			return
		}
		s := t.declare()
		if len(s) > 0 {
			t.structure = s
		}
	})
	return t.structure
}

// Columns returns the sorted names of primitive fields, including id for
// database backed types. These are the columns a query may filter and order by.
func (t *Type) Columns() []string {
	seen := make(map[string]struct{})
	if t.DBBacked() {
		seen["id"] = struct{}{}
	}
	for name, shape := range t.Structure() {
		if _, ok := shape.(Primitive); ok {
			seen[name] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for name := range seen {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return cols
}

// Join applies the type's join hook. Without a hook the query is returned as is.
func (t *Type) Join(db *gorm.DB, include []string) *gorm.DB {
	if t.join == nil || len(include) == 0 {
		return db
	}
	return t.join(db, include)
}

// New allocates an empty record of this type.
func (t *Type) New() *Record {
	return &Record{typ: t, values: make(map[string]any)}
}

// resolve returns the concrete type named by ref, or nil for the abstract base.
func (t *Type) resolve(ref EntityRef) (*Type, error) {
	if ref.Type != nil {
		return ref.Type, nil
	}
	if ref.Name == "" {
		return nil, nil
	}
	if t.registry != nil {
		if target, ok := t.registry.Lookup(ref.Name); ok {
			return target, nil
		}
	}
	return nil, domain.NewAppError(domain.CodeInternal, fmt.Sprintf("unknown entity type %q referenced by %q", ref.Name, t.name), nil)
}

// Registry is a process-wide mapping from type name to Type.
type Registry struct {
	mu          sync.RWMutex
	types       map[string]*Type
	schemaCache sync.Map
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*Type)}
}

// Default is the registry used by the package-level Define helpers.
var Default = NewRegistry()

// Define registers a new type. declare is called once, on first access to
// the structure. Defining a name twice fails with AlreadyExists.
func (r *Registry) Define(name string, declare func() Structure, opts ...Option) (*Type, error) {
	if name == "" {
		return nil, domain.NewAppError(domain.CodeValidation, "type name is required", nil)
	}
	t := &Type{name: name, registry: r, declare: declare}
	for _, opt := range opts {
		opt(t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[name]; exists {
		return nil, domain.NewAppError(domain.CodeAlreadyExists, fmt.Sprintf("type %q already defined", name), nil)
	}
	r.types[name] = t
	return t, nil
}

// MustDefine is Define that panics on error. It is meant for package-level
// type declarations.
func (r *Registry) MustDefine(name string, declare func() Structure, opts ...Option) *Type {
	t, err := r.Define(name, declare, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Types returns all registered types sorted by name.
func (r *Registry) Types() []*Type {
	r.mu.RLock()
	types := make([]*Type, 0, len(r.types))
	for _, t := range r.types {
		types = append(types, t)
	}
	r.mu.RUnlock()

	sort.Slice(types, func(i, j int) bool { return types[i].name < types[j].name })
	return types
}

// Define registers a type in the Default registry.
func Define(name string, declare func() Structure, opts ...Option) (*Type, error) {
	return Default.Define(name, declare, opts...)
}

// MustDefine registers a type in the Default registry and panics on error.
func MustDefine(name string, declare func() Structure, opts ...Option) *Type {
	return Default.MustDefine(name, declare, opts...)
}
