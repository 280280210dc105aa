package sig

import (
	"errors"
	"fmt"
)

// Resolve names the follow-up applied to a signature's match address.
type Resolve string

const (
	ResolveNone        Resolve = ""
	ResolveLeaRet      Resolve = "lea_ret"
	ResolveMovIndirect Resolve = "mov_indirect"
)

// Signature is a named pattern as written in configuration.
type Signature struct {
	Name    string  `mapstructure:"name"`
	Module  string  `mapstructure:"module"`
	Pattern string  `mapstructure:"pattern"`
	Offset  int64   `mapstructure:"offset"`
	Resolve Resolve `mapstructure:"resolve"`
}

// Compiled is a signature whose pattern text has been validated.
type Compiled struct {
	Signature
	Compiled Pattern
}

// CompileAll validates every signature up front. All problems are reported together.
func CompileAll(sigs []Signature) ([]Compiled, error) {
	var errs []error
	out := make([]Compiled, 0, len(sigs))
	seen := map[string]bool{}

	for _, s := range sigs {
		if s.Name == "" || s.Module == "" {
			errs = append(errs, fmt.Errorf("signature %q: name and module are required", s.Name))
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("signature %q: duplicate name", s.Name))
			continue
		}
		seen[s.Name] = true

		switch s.Resolve {
		case "none":
			s.Resolve = ResolveNone
		case ResolveNone, ResolveLeaRet, ResolveMovIndirect:
		default:
			errs = append(errs, fmt.Errorf("signature %q: unknown resolve %q", s.Name, s.Resolve))
			continue
		}

		p, err := Compile(s.Pattern)
		if err != nil {
			errs = append(errs, fmt.Errorf("signature %q: %w", s.Name, err))
			continue
		}
		out = append(out, Compiled{Signature: s, Compiled: p})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
