package cmd

import (
	"fmt"

	"github.com/spf13/viper"

	"memscope/engine"
	"memscope/offsets"
	"memscope/schema"
	"memscope/sig"
)

// Config is everything memscope.yaml can set. Layout starts from the
// built-in offsets; a config file only needs to name the ones that moved.
type Config struct {
	SchemaModule    string          `mapstructure:"schema-module"`
	SchemaInterface string          `mapstructure:"schema-interface"`
	CreateExport    string          `mapstructure:"create-interface-export"`
	MaxDOP          uint            `mapstructure:"maxdop"`
	Layout          schema.Layout   `mapstructure:"layout"`
	Signatures      []sig.Signature `mapstructure:"signatures"`
	Bindings        []offsets.Spec  `mapstructure:"bindings"`
}

func loadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		SchemaModule:    engine.DefaultSchemaModule,
		SchemaInterface: engine.DefaultSchemaInterface,
		Layout:          schema.DefaultLayout(),
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c Config) engineOptions() []engine.Option {
	return []engine.Option{
		engine.WithLayout(c.Layout),
		engine.WithSchemaModule(c.SchemaModule),
		engine.WithSchemaInterface(c.SchemaInterface),
		engine.WithCreateInterfaceExport(c.CreateExport),
		engine.WithMaxDOP(c.MaxDOP),
	}
}

// compiledSignatures validates the catalog. With names, only those
// signatures are returned and unknown names are an error.
func (c Config) compiledSignatures(names ...string) ([]sig.Compiled, error) {
	all, err := sig.CompileAll(c.Signatures)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]sig.Compiled, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}
	out := make([]sig.Compiled, 0, len(names))
	for _, name := range names {
		s, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("no signature named %q in config", name)
		}
		out = append(out, s)
	}
	return out, nil
}
