package sig

import (
	"errors"
	"fmt"
)

var (
	// ErrPatternCompile is matched by every *PatternCompileError.
	ErrPatternCompile = errors.New("pattern compile error")

	// ErrPatternNotFound is matched by every *PatternNotFoundError.
	ErrPatternNotFound = errors.New("pattern not found")
)

// PatternCompileError reports malformed signature text. No partial pattern is
// produced when it is returned.
type PatternCompileError struct {
	Pattern string
	Token   string
	Index   int
	Reason  string
}

func (e *PatternCompileError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("compile pattern %q: token %d %q: %s", e.Pattern, e.Index, e.Token, e.Reason)
	}
	return fmt.Sprintf("compile pattern %q: %s", e.Pattern, e.Reason)
}

func (e *PatternCompileError) Unwrap() error {
	return ErrPatternCompile
}

// PatternNotFoundError reports a well-formed pattern with no match in a module,
// which usually means the binary changed.
type PatternNotFoundError struct {
	Name    string
	Module  string
	Pattern Pattern
}

func (e *PatternNotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("signature %s (%s) not found in %s", e.Name, e.Pattern, e.Module)
	}
	return fmt.Sprintf("pattern %s not found in %s", e.Pattern, e.Module)
}

func (e *PatternNotFoundError) Unwrap() error {
	return ErrPatternNotFound
}
