// Package process provides the read-only view of a foreign address space that
// every memscope component works against.
package process

import "errors"

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	// ErrNullPointer is returned when a pointer read from foreign memory is null
	// and the caller needs a real address.
	ErrNullPointer = errors.New("null pointer")

	// ErrModuleNotFound is returned when a target has no loaded module with the requested name.
	ErrModuleNotFound = errors.New("module not found")
)
