// Package offsets turns (class, field) names into cached field offsets and
// typed accessors over foreign objects.
package offsets

import (
	"fmt"
	"sort"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"memscope/cell"
)

// Key names one schema field.
type Key struct {
	Module string `mapstructure:"module" json:"module"`
	Class  string `mapstructure:"class" json:"class"`
	Field  string `mapstructure:"field" json:"field"`
}

func (k Key) String() string {
	return k.Module + "\x00" + k.Class + "\x00" + k.Field
}

// Name is the human-readable form, Class::field.
func (k Key) Name() string {
	return k.Class + "::" + k.Field
}

// Resolver finds the declared offset of a field. *schema.System implements it.
type Resolver interface {
	FindOffset(module, class, field string) (int32, error)
}

// ResolveError names the field that could not be resolved.
type ResolveError struct {
	Key Key
	Err error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve offset of %s in %s: %v", e.Key.Name(), e.Key.Module, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Cache resolves each key at most once; later readers see the stored offset.
type Cache struct {
	resolver Resolver
	cells    cell.Map[Key, int32]
	log      *logger.Logger
}

func NewCache(resolver Resolver) *Cache {
	return &Cache{
		resolver: resolver,
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "offsets")),
	}
}

// Offset returns the field's offset, walking the schema on first use.
func (c *Cache) Offset(k Key) (int32, error) {
	return c.cells.Get(k, func() (int32, error) {
		off, err := c.resolver.FindOffset(k.Module, k.Class, k.Field)
		if err != nil {
			return 0, &ResolveError{Key: k, Err: err}
		}
		c.log.Debugln(k.Name(), "=", fmt.Sprintf("0x%x", off))
		return off, nil
	})
}

// Resolved lists every stored offset, sorted by module, class and field.
func (c *Cache) Resolved() []Resolved {
	var out []Resolved
	c.cells.Range(func(k Key, off int32) bool {
		out = append(out, Resolved{Key: k, Offset: off})
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

type Resolved struct {
	Key    Key   `json:"key"`
	Offset int32 `json:"offset"`
}
