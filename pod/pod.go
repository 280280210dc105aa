// Package pod copies foreign bytes into plain-old-data Go values.
package pod

import (
	"errors"
	"fmt"
	"reflect"
	"unsafe"

	"memscope/process"
)

// ErrNotPOD is returned for types that carry Go pointers.
var ErrNotPOD = errors.New("type contains pointers; not POD-safe")

func SizeOf[T any]() process.ProcessMemorySize {
	var t T
	return process.ProcessMemorySize(unsafe.Sizeof(t))
}

// Check rejects T if it (recursively) contains pointer-like fields.
func Check[T any]() error {
	return CheckType(reflect.TypeOf((*T)(nil)).Elem())
}

func CheckType(rt reflect.Type) error {
	if TypeHasPointers(rt) {
		return fmt.Errorf("%s: %w", rt, ErrNotPOD)
	}
	return nil
}

// TypeHasPointers reports whether rt (recursively) contains any pointer-like fields.
func TypeHasPointers(rt reflect.Type) bool {
	switch rt.Kind() {
	case reflect.Ptr, reflect.UnsafePointer, reflect.Interface, reflect.Func, reflect.Map, reflect.Slice, reflect.String, reflect.Chan:
		return true
	case reflect.Array:
		return TypeHasPointers(rt.Elem())
	case reflect.Struct:
		for i := 0; i < rt.NumField(); i++ {
			if TypeHasPointers(rt.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		// bool, ints, uints, floats, complex, etc.
		return false
	}
}

// Decode copies the first sizeof(T) bytes of data into a new T.
func Decode[T any](data []byte) (T, error) {
	var tmp T
	if err := Check[T](); err != nil {
		return tmp, err
	}

	size := int(unsafe.Sizeof(tmp))
	if len(data) < size {
		return tmp, fmt.Errorf("decode %T: buffer of %d bytes, need %d", tmp, len(data), size)
	}

	dst := unsafe.Slice((*byte)(unsafe.Pointer(&tmp)), size)
	copy(dst, data[:size])
	return tmp, nil
}

// ReadT reads and decodes a T at addr.
func ReadT[T any](r process.MemoryReader, addr process.ProcessMemoryAddress) (T, error) {
	if err := Check[T](); err != nil {
		return *new(T), err
	}

	size := SizeOf[T]()
	if size == 0 {
		return *new(T), nil
	}

	data, err := r.ReadMemory(addr, size)
	if err != nil {
		return *new(T), err
	}
	return Decode[T](data)
}

// DecodeInto copies data into the value rv points at. rv must be settable and POD.
func DecodeInto(rv reflect.Value, data []byte) error {
	if err := CheckType(rv.Type()); err != nil {
		return err
	}
	size := int(rv.Type().Size())
	if len(data) < size {
		return fmt.Errorf("decode %s: buffer of %d bytes, need %d", rv.Type(), len(data), size)
	}
	if !rv.CanAddr() {
		return fmt.Errorf("decode %s: value is not addressable", rv.Type())
	}

	dst := unsafe.Slice((*byte)(rv.Addr().UnsafePointer()), size)
	copy(dst, data[:size])
	return nil
}

// TrimCharArray zeroes every byte of a [N]byte after its first NUL.
func TrimCharArray(field reflect.Value) {
	if field.Kind() != reflect.Array || field.Type().Elem().Kind() != reflect.Uint8 {
		return
	}

	foundNull := false
	for i := 0; i < field.Len(); i++ {
		if foundNull {
			if field.Index(i).CanSet() {
				field.Index(i).SetUint(0)
			}
		} else if field.Index(i).Uint() == 0 {
			foundNull = true
		}
	}
}
