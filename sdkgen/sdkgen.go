// Package sdkgen renders the classes and enums of one schema type scope as Go
// declarations whose struct tags offsets.RegisterStruct binds directly.
package sdkgen

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"memscope/schema"
)

// File is everything generated for one type scope.
type File struct {
	Package string
	Module  string
	Imports []string
	Enums   []Enum
	Structs []Struct
}

type Enum struct {
	Name     string
	Source   string
	Variants []Variant
}

type Variant struct {
	Name  string
	Value int64
}

// Struct mirrors one class. Fields include those of every ancestor, tagged
// with the class that declares them.
type Struct struct {
	Name    string
	Class   string
	Size    int32
	Fields  []Field
	Skipped []Field
}

type Field struct {
	Name   string
	Type   string
	Class  string
	Field  string
	Offset int32
	// SchemaType is the host's own name for the type.
	SchemaType string
}

type options struct {
	pkg     string
	classes []string
	enums   bool
}

type Option func(*options)

// WithPackage sets the package clause of the generated file.
func WithPackage(name string) Option {
	return func(o *options) {
		if name != "" {
			o.pkg = name
		}
	}
}

// WithClasses limits generation to the named classes. Enums are only
// generated for a whole scope.
func WithClasses(classes ...string) Option {
	return func(o *options) {
		o.classes = append(o.classes, classes...)
	}
}

// WithoutEnums leaves the scope's enums out.
func WithoutEnums() Option {
	return func(o *options) {
		o.enums = false
	}
}

// Generate decodes the scope and lays out its declarations. Classes that
// cannot be read are left out and reported together in the returned error
// alongside the partial file.
func Generate(scope *schema.TypeScope, opts ...Option) (*File, error) {
	o := options{pkg: "sdk", enums: true}
	for _, opt := range opts {
		opt(&o)
	}

	log := logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "sdkgen"))

	f := &File{Package: o.pkg, Module: scope.ModuleName}
	types := names{}
	imports := map[string]bool{}
	var errs []error

	if o.enums && len(o.classes) == 0 {
		enums, err := scope.Enums()
		if err != nil {
			return nil, err
		}
		slices.SortFunc(enums, func(a, b *schema.Enum) int { return strings.Compare(a.Name, b.Name) })
		for _, e := range enums {
			f.Enums = append(f.Enums, buildEnum(e, types))
		}
	}

	var classes []*schema.Class
	if len(o.classes) > 0 {
		for _, name := range o.classes {
			c, err := scope.FindDeclaredClass(name)
			if err != nil {
				return nil, err
			}
			classes = append(classes, c)
		}
	} else {
		all, err := scope.Classes()
		if err != nil {
			return nil, err
		}
		classes = all
		slices.SortFunc(classes, func(a, b *schema.Class) int { return strings.Compare(a.Name, b.Name) })
	}

	for _, c := range classes {
		s, err := buildStruct(c, types, imports)
		if err != nil {
			log.Warn("skipping class", c.Name, err.Error())
			errs = append(errs, fmt.Errorf("class %s: %w", c.Name, err))
			continue
		}
		f.Structs = append(f.Structs, s)
	}

	for imp := range imports {
		f.Imports = append(f.Imports, imp)
	}
	slices.Sort(f.Imports)

	log.Debugln("generated", len(f.Structs), "structs and", len(f.Enums), "enums for", scope.ModuleName)
	return f, errors.Join(errs...)
}

func buildEnum(e *schema.Enum, types names) Enum {
	out := Enum{Name: types.take(enumName(e.Name), exported(e.Name)), Source: e.Name}
	for _, v := range e.Variants {
		out.Variants = append(out.Variants, Variant{
			Name:  types.take(out.Name+exported(v.Name), out.Name+"_"+exported(v.Name)),
			Value: v.Value,
		})
	}
	return out
}

func buildStruct(c *schema.Class, types names, imports map[string]bool) (Struct, error) {
	fields, err := c.InheritedFields()
	if err != nil {
		return Struct{}, err
	}

	s := Struct{Name: types.take(typeName(c.Name), exported(c.Name)), Class: c.Name, Size: c.Size}

	// a redeclared field replaces the ancestor's, as the object itself sees it
	var kept []schema.Field
	index := map[string]int{}
	for _, fld := range fields {
		if i, ok := index[fld.Name]; ok {
			kept[i] = fld
			continue
		}
		index[fld.Name] = len(kept)
		kept = append(kept, fld)
	}

	used := names{}
	for _, fld := range kept {
		out := Field{Class: fld.Class, Field: fld.Name, Offset: fld.Offset, SchemaType: fld.Type}

		typ, imp, ok := goType(fld.Type)
		if !ok {
			s.Skipped = append(s.Skipped, out)
			continue
		}
		out.Type = typ
		out.Name = used.take(fieldName(fld.Name), plainFieldName(fld.Name), exported(fld.Class)+plainFieldName(fld.Name))
		if imp != "" {
			imports[imp] = true
		}
		s.Fields = append(s.Fields, out)
	}
	return s, nil
}
