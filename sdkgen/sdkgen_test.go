package sdkgen_test

import (
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"memscope/internal/fixture"
	"memscope/schema"
	"memscope/sdkgen"
)

const arenaBase = 0x7FF700000000

func pawnScope() fixture.Scope {
	return fixture.Scope{
		Module: "client.dll",
		Classes: []fixture.Class{
			{Name: "C_BaseEntity", Size: 0x100, Fields: []fixture.Field{
				{Name: "m_iHealth", Type: "int32", Offset: 0x10},
				{Name: "m_fFlags", Type: "uint32", Offset: 0x14},
				{Name: "m_pGameSceneNode", Type: "CGameSceneNode*", Offset: 0x20},
				{Name: "m_vecOrigin", Type: "Vector", Offset: 0x28},
			}},
			{Name: "C_CSPlayerPawn", Size: 0x200, Parent: "C_BaseEntity", Fields: []fixture.Field{
				{Name: "m_iHealth", Type: "int32", Offset: 0x110},
				{Name: "m_iszPlayerName", Type: "char[16]", Offset: 0x120},
				{Name: "m_hController", Type: "CHandle< CCSPlayerController >", Offset: 0x130},
				{Name: "m_nHealth", Type: "int16", Offset: 0x134},
				{Name: "m_aMatrix", Type: "float32[3][4]", Offset: 0x140},
				{Name: "m_bitsWeird", Type: "CUtlVector< int32 >", Offset: 0x170},
				{Name: "m_szClan", Type: "char*", Offset: 0x188},
			}},
		},
		Enums: []fixture.Enum{
			{Name: "TeamNum_t", Variants: []fixture.Variant{{Name: "None", Value: 0}, {Name: "CT", Value: 3}}},
		},
	}
}

func newSystem(t *testing.T) *schema.System {
	t.Helper()
	a := fixture.New(arenaBase)
	addr := a.Schema(schema.DefaultLayout(), pawnScope())
	sys, err := schema.NewSystem(a.Blob(), addr, schema.DefaultLayout())
	if err != nil {
		t.Fatalf("NewSystem returned error: %v", err)
	}
	return sys
}

func generate(t *testing.T, sys *schema.System, opts ...sdkgen.Option) (*sdkgen.File, string) {
	t.Helper()
	scope, err := sys.FindTypeScope("client.dll")
	if err != nil {
		t.Fatalf("FindTypeScope returned error: %v", err)
	}
	f, err := sdkgen.Generate(scope, opts...)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	src, err := f.Source()
	if err != nil {
		t.Fatalf("Source returned error: %v\n%s", err, src)
	}
	if _, err := parser.ParseFile(token.NewFileSet(), "sdk.go", src, parser.ParseComments); err != nil {
		t.Fatalf("generated source does not parse: %v\n%s", err, src)
	}
	return f, string(src)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func findStruct(t *testing.T, f *sdkgen.File, name string) sdkgen.Struct {
	t.Helper()
	for _, s := range f.Structs {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("no struct %s in %+v", name, f.Structs)
	return sdkgen.Struct{}
}

func TestGenerateScope(t *testing.T) {
	f, src := generate(t, newSystem(t), sdkgen.WithPackage("cs2"))
	got := normalize(src)

	for _, want := range []string{
		"// Code generated by memscope dump. DO NOT EDIT.",
		"package cs2",
		`import ( "memscope/offsets" "memscope/process" )`,
		"type TeamNum int64",
		"TeamNumNone TeamNum = 0",
		"TeamNumCT TeamNum = 3",
		"type BaseEntity struct {",
		"type CSPlayerPawn struct {",
		"Health int32 `schema:\"C_CSPlayerPawn,m_iHealth\"` // 0x110 int32",
		"Flags uint32 `schema:\"C_BaseEntity,m_fFlags\"` // 0x14 uint32",
		"GameSceneNode process.ProcessMemoryAddress `schema:\"C_BaseEntity,m_pGameSceneNode\"`",
		"Origin [3]float32 `schema:\"C_BaseEntity,m_vecOrigin\"`",
		"PlayerName [16]byte `schema:\"C_CSPlayerPawn,m_iszPlayerName\"`",
		"Controller offsets.Handle `schema:\"C_CSPlayerPawn,m_hController\"`",
		"NHealth int16 `schema:\"C_CSPlayerPawn,m_nHealth\"`",
		"Matrix [3][4]float32 `schema:\"C_CSPlayerPawn,m_aMatrix\"`",
		"Clan string `schema:\"C_CSPlayerPawn,m_szClan\"`",
		"// C_CSPlayerPawn::m_bitsWeird CUtlVector< int32 > at 0x170",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("generated source lacks %q:\n%s", want, src)
		}
	}

	if f.Module != "client.dll" || len(f.Enums) != 1 || len(f.Structs) != 2 {
		t.Fatalf("unexpected file %+v", f)
	}
}

func TestGenerateRedeclaredFieldKeepsPosition(t *testing.T) {
	f, _ := generate(t, newSystem(t))

	pawn := findStruct(t, f, "CSPlayerPawn")
	if len(pawn.Fields) != 9 || len(pawn.Skipped) != 1 {
		t.Fatalf("CSPlayerPawn has %d fields and %d skipped", len(pawn.Fields), len(pawn.Skipped))
	}
	first := pawn.Fields[0]
	if first.Name != "Health" || first.Class != "C_CSPlayerPawn" || first.Offset != 0x110 {
		t.Fatalf("first field = %+v", first)
	}
	for _, fld := range pawn.Fields {
		if fld.Field == "m_iHealth" && fld.Class == "C_BaseEntity" {
			t.Fatalf("ancestor declaration of m_iHealth survived: %+v", fld)
		}
	}
}

func TestGeneratedTagsResolve(t *testing.T) {
	sys := newSystem(t)
	f, _ := generate(t, sys)

	for _, s := range f.Structs {
		for _, fld := range s.Fields {
			off, err := sys.FindOffset("client.dll", fld.Class, fld.Field)
			if err != nil {
				t.Fatalf("%s.%s: FindOffset returned error: %v", s.Name, fld.Name, err)
			}
			if off != fld.Offset {
				t.Fatalf("%s.%s: tag resolves to 0x%x, generated 0x%x", s.Name, fld.Name, off, fld.Offset)
			}
		}
	}
}

func TestGenerateSelectedClasses(t *testing.T) {
	f, src := generate(t, newSystem(t), sdkgen.WithClasses("C_BaseEntity"))

	if len(f.Structs) != 1 || f.Structs[0].Class != "C_BaseEntity" {
		t.Fatalf("unexpected structs %+v", f.Structs)
	}
	if len(f.Enums) != 0 || strings.Contains(src, "TeamNum") {
		t.Fatalf("enums generated for a class selection:\n%s", src)
	}
	if strings.Contains(src, "memscope/offsets") {
		t.Fatalf("unused import generated:\n%s", src)
	}

	scope, err := newSystem(t).FindTypeScope("client.dll")
	if err != nil {
		t.Fatalf("FindTypeScope returned error: %v", err)
	}
	if _, err := sdkgen.Generate(scope, sdkgen.WithClasses("C_Missing")); !schema.IsNotFound(err) {
		t.Fatalf("expected a not-found error, got %v", err)
	}
}

func TestGenerateWithoutEnums(t *testing.T) {
	f, _ := generate(t, newSystem(t), sdkgen.WithoutEnums())
	if len(f.Enums) != 0 || len(f.Structs) != 2 {
		t.Fatalf("unexpected file %+v", f)
	}
	if f.Package != "sdk" {
		t.Fatalf("default package = %q", f.Package)
	}
}
