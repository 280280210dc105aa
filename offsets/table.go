package offsets

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"memscope/pod"
	"memscope/process"
)

// ErrDuplicateBinding is returned when an (owner, name) pair is registered twice.
var ErrDuplicateBinding = errors.New("binding already registered")

// Kind selects how an accessor interprets the bytes at a field.
type Kind int

const (
	KindScalar Kind = iota
	KindCharArray
	KindCharPtr
	KindPointer
	KindHandle
)

var kindNames = map[Kind]string{
	KindScalar:    "scalar",
	KindCharArray: "char_array",
	KindCharPtr:   "char_ptr",
	KindPointer:   "pointer",
	KindHandle:    "handle",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown accessor kind %q", s)
}

// Binding ties a named accessor on an owner type to a schema field.
type Binding struct {
	Owner string
	Name  string
	Key   Key
	Kind  Kind
	// Size is the byte width read at the field: the scalar size, or the
	// capacity of a char array.
	Size int

	index []int
}

func (b Binding) String() string {
	return fmt.Sprintf("%s.%s -> %s (%s, %d bytes)", b.Owner, b.Name, b.Key.Name(), b.Kind, b.Size)
}

// Table is the registry of bindings. Registration happens once at startup;
// Resolve then validates every binding against the schema.
type Table struct {
	cache *Cache

	mu       sync.Mutex
	bindings []Binding
	index    map[string]int
}

func NewTable(cache *Cache) *Table {
	return &Table{cache: cache, index: make(map[string]int)}
}

func (t *Table) Cache() *Cache { return t.cache }

// Register records one binding.
func (t *Table) Register(owner, name string, key Key, kind Kind, size int) (Binding, error) {
	return t.register(Binding{Owner: owner, Name: name, Key: key, Kind: kind, Size: size})
}

func (t *Table) register(b Binding) (Binding, error) {
	if b.Owner == "" || b.Name == "" || b.Key.Module == "" || b.Key.Class == "" || b.Key.Field == "" {
		return Binding{}, fmt.Errorf("incomplete binding %s", b)
	}
	if b.Size <= 0 {
		switch b.Kind {
		case KindPointer, KindCharPtr:
			b.Size = process.PointerSize
		case KindHandle:
			b.Size = 4
		default:
			return Binding{}, fmt.Errorf("binding %s.%s: size must be positive", b.Owner, b.Name)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	id := b.Owner + "." + b.Name
	if _, ok := t.index[id]; ok {
		return Binding{}, fmt.Errorf("%s: %w", id, ErrDuplicateBinding)
	}
	t.index[id] = len(t.bindings)
	t.bindings = append(t.bindings, b)
	return b, nil
}

// Binding looks a registered binding up by owner and name.
func (t *Table) Binding(owner, name string) (Binding, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.index[owner+"."+name]
	if !ok {
		return Binding{}, false
	}
	return t.bindings[i], true
}

// Bindings returns every binding in registration order.
func (t *Table) Bindings() []Binding {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Binding(nil), t.bindings...)
}

// Resolve resolves every binding now and fails on the first one the schema
// does not know.
func (t *Table) Resolve() error {
	for _, b := range t.Bindings() {
		if _, err := t.cache.Offset(b.Key); err != nil {
			return fmt.Errorf("binding %s.%s: %w", b.Owner, b.Name, err)
		}
	}
	return nil
}

// Offset resolves a single binding through the cache.
func (t *Table) Offset(b Binding) (int32, error) {
	return t.cache.Offset(b.Key)
}

var (
	addressType = reflect.TypeOf(process.ProcessMemoryAddress(0))
	handleType  = reflect.TypeOf(Handle(0))
)

// RegisterStruct registers every field of T tagged `schema:"Class,m_field"`.
// The accessor kind follows the Go field type: [N]byte is a char array,
// string a char pointer, process.ProcessMemoryAddress a raw pointer, Handle
// a weak handle, and any other pointer-free type a scalar.
func RegisterStruct[T any](t *Table, module string) error {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if rt.Kind() != reflect.Struct {
		return fmt.Errorf("RegisterStruct: %s is not a struct", rt)
	}

	var errs []error
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		tag, ok := f.Tag.Lookup("schema")
		if !ok || tag == "-" {
			continue
		}
		if !f.IsExported() {
			errs = append(errs, fmt.Errorf("%s.%s: tagged field is not exported", rt.Name(), f.Name))
			continue
		}

		class, field, ok := strings.Cut(tag, ",")
		if !ok || class == "" || field == "" {
			errs = append(errs, fmt.Errorf("%s.%s: malformed schema tag %q", rt.Name(), f.Name, tag))
			continue
		}

		kind, err := kindOf(f.Type)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", rt.Name(), f.Name, err))
			continue
		}

		_, err = t.register(Binding{
			Owner: rt.Name(),
			Name:  f.Name,
			Key:   Key{Module: module, Class: class, Field: field},
			Kind:  kind,
			Size:  int(f.Type.Size()),
			index: f.Index,
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func kindOf(rt reflect.Type) (Kind, error) {
	switch {
	case rt == addressType:
		return KindPointer, nil
	case rt == handleType:
		return KindHandle, nil
	case rt.Kind() == reflect.String:
		return KindCharPtr, nil
	case rt.Kind() == reflect.Array && rt.Elem().Kind() == reflect.Uint8:
		return KindCharArray, nil
	}
	if err := pod.CheckType(rt); err != nil {
		return 0, err
	}
	return KindScalar, nil
}

// Spec is a binding as written in configuration.
type Spec struct {
	Owner string `mapstructure:"owner"`
	Name  string `mapstructure:"name"`
	Key   `mapstructure:",squash"`
	Kind  string `mapstructure:"kind"`
	Size  int    `mapstructure:"size"`
}

// RegisterSpecs registers every spec, reporting all bad entries together.
func (t *Table) RegisterSpecs(specs []Spec) error {
	var errs []error
	for _, s := range specs {
		kind := KindScalar
		if s.Kind != "" {
			k, err := ParseKind(s.Kind)
			if err != nil {
				errs = append(errs, fmt.Errorf("binding %s.%s: %w", s.Owner, s.Name, err))
				continue
			}
			kind = k
		}
		if _, err := t.Register(s.Owner, s.Name, s.Key, kind, s.Size); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
