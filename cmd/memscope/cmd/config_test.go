package cmd

import (
	"strings"
	"testing"

	"github.com/spf13/viper"

	"memscope/engine"
	"memscope/offsets"
	"memscope/schema"
	"memscope/sig"
)

const sampleConfig = `
schema-interface: SchemaSystem_002
maxdop: 4
layout:
  scope_classes: 0x600
  field_offset: 0x18
signatures:
  - name: dwEntityList
    module: client.dll
    pattern: "48 8B 0D ?? ?? ?? ?? 48 89 7C 24"
    resolve: mov_indirect
  - name: dwViewMatrix
    module: client.dll
    pattern: "48 8D 0D ? ? ? ? 48 C1 E0 06"
    offset: -2
    resolve: none
bindings:
  - owner: Pawn
    name: Health
    module: client.dll
    class: C_BaseEntity
    field: m_iHealth
    kind: scalar
    size: 4
`

func readConfig(t *testing.T, text string) Config {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(text)); err != nil {
		t.Fatalf("ReadConfig returned error: %v", err)
	}
	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig returned error: %v", err)
	}
	return cfg
}

func TestLoadConfig(t *testing.T) {
	cfg := readConfig(t, sampleConfig)

	if cfg.SchemaModule != engine.DefaultSchemaModule || cfg.SchemaInterface != "SchemaSystem_002" || cfg.MaxDOP != 4 {
		t.Fatalf("unexpected config %+v", cfg)
	}

	want := schema.DefaultLayout()
	want.ScopeClasses = 0x600
	want.FieldOffset = 0x18
	if cfg.Layout != want {
		t.Fatalf("layout override not merged over defaults:\n%+v\nwant\n%+v", cfg.Layout, want)
	}

	if len(cfg.Signatures) != 2 || cfg.Signatures[1].Offset != -2 || cfg.Signatures[0].Resolve != sig.ResolveMovIndirect {
		t.Fatalf("unexpected signatures %+v", cfg.Signatures)
	}

	wantBinding := offsets.Spec{
		Owner: "Pawn",
		Name:  "Health",
		Key:   offsets.Key{Module: "client.dll", Class: "C_BaseEntity", Field: "m_iHealth"},
		Kind:  "scalar",
		Size:  4,
	}
	if len(cfg.Bindings) != 1 || cfg.Bindings[0] != wantBinding {
		t.Fatalf("unexpected bindings %+v", cfg.Bindings)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := readConfig(t, "")
	if cfg.Layout != schema.DefaultLayout() || cfg.SchemaInterface != engine.DefaultSchemaInterface {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestCompiledSignatures(t *testing.T) {
	cfg := readConfig(t, sampleConfig)

	all, err := cfg.compiledSignatures()
	if err != nil || len(all) != 2 {
		t.Fatalf("compiledSignatures = %v, %v", all, err)
	}
	if all[1].Resolve != sig.ResolveNone {
		t.Fatalf("resolve none not normalized: %q", all[1].Resolve)
	}

	one, err := cfg.compiledSignatures("dwViewMatrix")
	if err != nil || len(one) != 1 || one[0].Name != "dwViewMatrix" {
		t.Fatalf("compiledSignatures(dwViewMatrix) = %v, %v", one, err)
	}

	if _, err := cfg.compiledSignatures("dwMissing"); err == nil {
		t.Fatalf("expected error for an unknown signature name")
	}
}

func TestHex(t *testing.T) {
	if s := hex(int32(0x344)); s != "0x344" {
		t.Fatalf("hex = %q", s)
	}
	if s := hex(int64(-2)); s != "-0x2" {
		t.Fatalf("hex = %q", s)
	}
	if _, err := parseAddress("0x7FFB00001000"); err != nil {
		t.Fatalf("parseAddress returned error: %v", err)
	}
	if _, err := parseAddress("zz"); err == nil {
		t.Fatalf("expected error for a bad address")
	}
}
