package offsets

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"memscope/pod"
	"memscope/process"
)

const maxStringLength = 512

// Handle is a packed weak reference to a live entity. The low 15 bits index
// the host's entity list; the rest is a serial number.
type Handle uint32

// InvalidHandle is what the host stores for "no entity".
const InvalidHandle Handle = 0xFFFFFFFF

const handleIndexMask = 0x7FFF

func (h Handle) Index() uint32 { return uint32(h) & handleIndexMask }
func (h Handle) Valid() bool   { return h != InvalidHandle }

// HandleResolver maps an entity index to the entity's address. The engine
// does not own the entity list; callers supply it.
type HandleResolver interface {
	ResolveHandle(index uint32) (process.ProcessMemoryAddress, error)
}

// HandleResolverFunc adapts a function to HandleResolver.
type HandleResolverFunc func(index uint32) (process.ProcessMemoryAddress, error)

func (f HandleResolverFunc) ResolveHandle(index uint32) (process.ProcessMemoryAddress, error) {
	return f(index)
}

// View is a typed window onto one foreign object. It holds no foreign data;
// every accessor reads live memory.
type View struct {
	r     process.MemoryReader
	addr  process.ProcessMemoryAddress
	table *Table
}

// NewView wraps the object at addr. A null address is rejected.
func NewView(r process.MemoryReader, addr process.ProcessMemoryAddress, table *Table) (View, error) {
	if addr == 0 {
		return View{}, fmt.Errorf("object view: %w", process.ErrNullPointer)
	}
	return View{r: r, addr: addr, table: table}, nil
}

func (v View) Address() process.ProcessMemoryAddress { return v.addr }

// At is a view over another object sharing this view's reader and table.
func (v View) At(addr process.ProcessMemoryAddress) (View, error) {
	return NewView(v.r, addr, v.table)
}

// Field returns the absolute address of b on this object.
func (v View) Field(b Binding) (process.ProcessMemoryAddress, error) {
	off, err := v.table.Offset(b)
	if err != nil {
		return 0, err
	}
	return v.addr.Add(int64(off)), nil
}

// String decodes a char array or char pointer field. Invalid UTF-8 becomes
// U+FFFD; a null char pointer reads as "".
func (v View) String(b Binding) (string, error) {
	at, err := v.Field(b)
	if err != nil {
		return "", err
	}

	switch b.Kind {
	case KindCharArray:
		data, err := v.r.ReadMemory(at, process.ProcessMemorySize(b.Size))
		if err != nil {
			return "", fmt.Errorf("%s.%s: %w", b.Owner, b.Name, err)
		}
		return process.CString(data), nil
	case KindCharPtr:
		ptr, err := process.ReadPointer(v.r, at)
		if err != nil {
			return "", fmt.Errorf("%s.%s: %w", b.Owner, b.Name, err)
		}
		if ptr == 0 {
			return "", nil
		}
		return process.ReadNTS(v.r, ptr, maxStringLength)
	}
	return "", fmt.Errorf("%s.%s is a %s field, not a string", b.Owner, b.Name, b.Kind)
}

// Pointer reads a raw pointer field. ok is false for null.
func (v View) Pointer(b Binding) (process.ProcessMemoryAddress, bool, error) {
	at, err := v.Field(b)
	if err != nil {
		return 0, false, err
	}
	ptr, err := process.ReadPointer(v.r, at)
	if err != nil {
		return 0, false, fmt.Errorf("%s.%s: %w", b.Owner, b.Name, err)
	}
	return ptr, ptr != 0, nil
}

// Handle reads a weak handle field and resolves it through hr. ok is false
// for an invalid handle or an entity that is not live.
func (v View) Handle(b Binding, hr HandleResolver) (process.ProcessMemoryAddress, bool, error) {
	h, err := Scalar[Handle](v, b)
	if err != nil {
		return 0, false, err
	}
	if !h.Valid() {
		return 0, false, nil
	}

	addr, err := hr.ResolveHandle(h.Index())
	if err != nil {
		return 0, false, fmt.Errorf("%s.%s: handle 0x%x: %w", b.Owner, b.Name, uint32(h), err)
	}
	return addr, addr != 0, nil
}

// Scalar copies sizeof(T) bytes at the field into a T.
func Scalar[T any](v View, b Binding) (T, error) {
	at, err := v.Field(b)
	if err != nil {
		return *new(T), err
	}
	val, err := pod.ReadT[T](v.r, at)
	if err != nil {
		return *new(T), fmt.Errorf("%s.%s: %w", b.Owner, b.Name, err)
	}
	return val, nil
}

// Load fills every field of T that RegisterStruct registered.
func Load[T any](v View) (T, error) {
	var out T
	rt := reflect.TypeOf(out)
	rv := reflect.ValueOf(&out).Elem()

	for _, b := range v.table.Bindings() {
		if b.Owner != rt.Name() || b.index == nil {
			continue
		}
		if err := v.load(rv.FieldByIndex(b.index), b); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (v View) load(field reflect.Value, b Binding) error {
	switch b.Kind {
	case KindCharPtr:
		s, err := v.String(b)
		if err != nil {
			return err
		}
		field.SetString(s)
		return nil
	case KindPointer:
		ptr, _, err := v.Pointer(b)
		if err != nil {
			return err
		}
		field.SetUint(uint64(ptr))
		return nil
	}

	at, err := v.Field(b)
	if err != nil {
		return err
	}
	data, err := v.r.ReadMemory(at, process.ProcessMemorySize(b.Size))
	if err != nil {
		return fmt.Errorf("%s.%s: %w", b.Owner, b.Name, err)
	}

	if b.Kind == KindHandle {
		field.SetUint(uint64(binary.LittleEndian.Uint32(data)))
		return nil
	}
	if err := pod.DecodeInto(field, data); err != nil {
		return fmt.Errorf("%s.%s: %w", b.Owner, b.Name, err)
	}
	if b.Kind == KindCharArray {
		pod.TrimCharArray(field)
	}
	return nil
}
