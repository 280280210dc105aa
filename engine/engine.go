// Package engine ties the scanner, resolvers, registry and schema walker
// together for one target.
package engine

import (
	"errors"
	"fmt"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"

	"memscope/asm"
	"memscope/cell"
	"memscope/interfaces"
	"memscope/module"
	"memscope/offsets"
	"memscope/process"
	"memscope/schema"
	"memscope/sig"
)

type interfaceKey struct {
	module string
	name   string
}

func (k interfaceKey) String() string { return k.module + "\x00" + k.name }

// Engine is the long-lived registry for one target. Every lookup it performs
// is computed once and shared by later callers.
type Engine struct {
	target process.Target
	opts   options
	log    *logger.Logger

	modules    cell.Map[cell.Name, *module.Module]
	registries cell.Map[cell.Name, *interfaces.Registry]
	objects    cell.Map[interfaceKey, process.ProcessMemoryAddress]
	schema     cell.Map[cell.Name, *schema.System]

	table *offsets.Table
}

func New(target process.Target, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		target: target,
		opts:   o,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "engine")),
	}
	e.table = offsets.NewTable(offsets.NewCache(e))
	return e
}

func (e *Engine) Target() process.Target { return e.target }
func (e *Engine) Table() *offsets.Table   { return e.table }
func (e *Engine) Offsets() *offsets.Cache { return e.table.Cache() }
func (e *Engine) MaxDOP() uint            { return e.opts.maxdop }

// Module returns the named module, looked up once.
func (e *Engine) Module(name string) (*module.Module, error) {
	return e.modules.Get(cell.Name(name), func() (*module.Module, error) {
		mods, err := e.target.Modules()
		if err != nil {
			return nil, fmt.Errorf("list modules: %w", err)
		}
		info, err := process.FindModule(mods, name)
		if err != nil {
			return nil, err
		}
		e.log.Debugln("module", info.String())
		return module.New(info, e.target), nil
	})
}

// Scan compiles pattern and returns its first match inside the module.
func (e *Engine) Scan(moduleName, pattern string) (sig.Match, error) {
	p, err := sig.Compile(pattern)
	if err != nil {
		return sig.Match{}, err
	}
	m, err := e.Module(moduleName)
	if err != nil {
		return sig.Match{}, err
	}
	return m.Scan(p)
}

// ResolveSignature scans for a catalogued signature, applies its offset and
// follows its resolve idiom.
func (e *Engine) ResolveSignature(c sig.Compiled) (process.ProcessMemoryAddress, error) {
	m, err := e.Module(c.Module)
	if err != nil {
		return 0, fmt.Errorf("signature %s: %w", c.Name, err)
	}

	match, err := m.Scan(c.Compiled)
	if err != nil {
		var nf *sig.PatternNotFoundError
		if errors.As(err, &nf) {
			nf.Name = c.Name
		}
		return 0, err
	}
	at := match.Offset(c.Offset).Address

	var addr process.ProcessMemoryAddress
	switch c.Resolve {
	case sig.ResolveNone:
		addr = at
	case sig.ResolveLeaRet:
		addr, err = asm.ResolveLeaRet(e.target, at)
	case sig.ResolveMovIndirect:
		addr, err = asm.ResolveMovIndirect(e.target, at)
	default:
		err = fmt.Errorf("unknown resolve kind %q", c.Resolve)
	}
	if err != nil {
		return 0, fmt.Errorf("signature %s: %w", c.Name, err)
	}

	e.log.Debugln("signature", c.Name, "->", addr.ToString())
	return addr, nil
}

// ResolveSignatures resolves every signature and reports all failures together.
func (e *Engine) ResolveSignatures(cs []sig.Compiled) (map[string]process.ProcessMemoryAddress, error) {
	out := make(map[string]process.ProcessMemoryAddress, len(cs))
	var errs []error
	for _, c := range cs {
		addr, err := e.ResolveSignature(c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[c.Name] = addr
	}
	return out, errors.Join(errs...)
}

// Registry returns the module's interface registry, opened once.
func (e *Engine) Registry(moduleName string) (*interfaces.Registry, error) {
	return e.registries.Get(cell.Name(moduleName), func() (*interfaces.Registry, error) {
		m, err := e.Module(moduleName)
		if err != nil {
			return nil, err
		}
		return interfaces.OpenExport(e.target, m, e.opts.createExport)
	})
}

// Interface creates the named interface of a module once and hands back the
// same object address afterwards.
func (e *Engine) Interface(moduleName, name string) (process.ProcessMemoryAddress, error) {
	return e.objects.Get(interfaceKey{module: moduleName, name: name}, func() (process.ProcessMemoryAddress, error) {
		reg, err := e.Registry(moduleName)
		if err != nil {
			return 0, err
		}
		obj, err := reg.Create(name)
		if err != nil {
			return 0, err
		}
		e.log.Infoln("interface", name, "of", moduleName, "at", obj.ToString())
		return obj, nil
	})
}

// Schema returns the host's schema system.
func (e *Engine) Schema() (*schema.System, error) {
	return e.schema.Get(cell.Name(e.opts.schemaInterface), func() (*schema.System, error) {
		obj, err := e.Interface(e.opts.schemaModule, e.opts.schemaInterface)
		if err != nil {
			return nil, fmt.Errorf("schema system: %w", err)
		}
		return schema.NewSystem(e.target, obj, e.opts.layout)
	})
}

// FindOffset walks the schema. Use Offset for the cached path.
func (e *Engine) FindOffset(moduleName, class, field string) (int32, error) {
	sys, err := e.Schema()
	if err != nil {
		return 0, err
	}
	return sys.FindOffset(moduleName, class, field)
}

// Offset returns the cached offset of class::field in module.
func (e *Engine) Offset(moduleName, class, field string) (int32, error) {
	return e.table.Cache().Offset(offsets.Key{Module: moduleName, Class: class, Field: field})
}

// View wraps a foreign object for binding-based access.
func (e *Engine) View(addr process.ProcessMemoryAddress) (offsets.View, error) {
	return offsets.NewView(e.target, addr, e.table)
}
