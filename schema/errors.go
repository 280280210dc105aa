package schema

import (
	"errors"
	"fmt"

	"memscope/process"
)

// ErrSchemaLookup is matched by every *LookupError.
var ErrSchemaLookup = errors.New("schema lookup failed")

// Stage names the step of a lookup that came up empty.
type Stage string

const (
	StageModule Stage = "type scope"
	StageClass  Stage = "class"
	StageField  Stage = "field"
	StageEnum   Stage = "enum"
)

// LookupError reports that a module, class, field or enum is not present in
// the host's reflection data.
type LookupError struct {
	Stage  Stage
	Module string
	Class  string
	Field  string
}

func (e *LookupError) Error() string {
	switch e.Stage {
	case StageModule:
		return fmt.Sprintf("schema: no type scope for module %q", e.Module)
	case StageClass, StageEnum:
		return fmt.Sprintf("schema: %s %q not declared in %q", e.Stage, e.Class, e.Module)
	}
	return fmt.Sprintf("schema: field %s::%s not declared in %q", e.Class, e.Field, e.Module)
}

func (e *LookupError) Unwrap() error {
	return ErrSchemaLookup
}

// IsNotFound reports whether err means absence rather than a failed read.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSchemaLookup)
}

// ErrMalformed is matched by every *MalformedError.
var ErrMalformed = errors.New("malformed schema data")

// MalformedError reports a header value the host could not have written,
// which usually means the layout no longer matches the host build.
type MalformedError struct {
	At    process.ProcessMemoryAddress
	What  string
	Value int64
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("schema: %s at %s is %d", e.What, e.At.ToString(), e.Value)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformed
}
