package interfaces

import (
	"errors"
	"fmt"
)

// ErrInterfaceNotFound is matched by every *NotFoundError.
var ErrInterfaceNotFound = errors.New("interface not found")

type NotFoundError struct {
	Module string
	Name   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no interface matching %q in %s", e.Name, e.Module)
}

func (e *NotFoundError) Unwrap() error {
	return ErrInterfaceNotFound
}
