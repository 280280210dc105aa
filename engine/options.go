package engine

import (
	"runtime"

	"memscope/interfaces"
	"memscope/schema"
)

const (
	DefaultSchemaModule    = "schemasystem.dll"
	DefaultSchemaInterface = "SchemaSystem_001"
)

type options struct {
	layout          schema.Layout
	schemaModule    string
	schemaInterface string
	createExport    string
	maxdop          uint
}

func defaultOptions() options {
	return options{
		layout:          schema.DefaultLayout(),
		schemaModule:    DefaultSchemaModule,
		schemaInterface: DefaultSchemaInterface,
		createExport:    interfaces.DefaultExport,
		maxdop:          uint(runtime.NumCPU()),
	}
}

// Option configures an Engine.
type Option func(*options)

// WithLayout replaces the default schema layout.
func WithLayout(l schema.Layout) Option {
	return func(o *options) {
		o.layout = l
	}
}

// WithSchemaModule names the module whose registry holds the schema system.
func WithSchemaModule(name string) Option {
	return func(o *options) {
		if name != "" {
			o.schemaModule = name
		}
	}
}

// WithSchemaInterface names the schema system interface.
func WithSchemaInterface(name string) Option {
	return func(o *options) {
		if name != "" {
			o.schemaInterface = name
		}
	}
}

// WithCreateInterfaceExport names the export that leads to a module's registry.
func WithCreateInterfaceExport(name string) Option {
	return func(o *options) {
		if name != "" {
			o.createExport = name
		}
	}
}

// WithMaxDOP bounds the number of regions scanned in parallel.
func WithMaxDOP(n uint) Option {
	return func(o *options) {
		if n > 0 {
			o.maxdop = n
		}
	}
}
