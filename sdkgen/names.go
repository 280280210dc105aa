package sdkgen

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	classPrefix = regexp.MustCompile(`^(C_CSGO_|CCSGO|C_|C)[A-Z]`)
	fieldPrefix = regexp.MustCompile(`^((?:__)?m_(?:p|nCs|n|isz|i|bv|b|h|flCs|fl|str|f|vecCs|vec|v|e|ang|sz|arr|aim|a|clr|c|un|ub|s|C))[A-Z]`)
	fixedArray  = regexp.MustCompile(`^([^\[\]]+?)\s*((?:\[\d+\])+)$`)
	arrayDim    = regexp.MustCompile(`\[(\d+)\]`)
	wordBreak   = regexp.MustCompile(`[^A-Za-z0-9]+`)
)

// exported turns an arbitrary foreign name into an exported Go identifier.
func exported(name string) string {
	// a Caser keeps state between calls
	title := cases.Title(language.Und, cases.NoLower)

	var b strings.Builder
	for _, word := range wordBreak.Split(name, -1) {
		b.WriteString(title.String(word))
	}
	s := b.String()
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "X" + s
	}
	return s
}

func typeName(class string) string {
	if m := classPrefix.FindStringSubmatch(class); m != nil {
		class = class[len(m[1]):]
	}
	class = strings.TrimSuffix(class, "_t")
	return exported(class)
}

func enumName(enum string) string {
	if _, after, ok := strings.Cut(enum, "::"); ok {
		enum = after
	}
	return exported(strings.TrimSuffix(enum, "_t"))
}

// fieldName drops the member prefix and the hungarian type tag.
func fieldName(field string) string {
	if m := fieldPrefix.FindStringSubmatch(field); m != nil {
		field = field[len(m[1]):]
	} else {
		field = strings.TrimPrefix(field, "m_")
	}
	return exported(strings.TrimSuffix(field, "_t"))
}

// plainFieldName keeps the type tag, for fields whose short names collide.
func plainFieldName(field string) string {
	return exported(strings.TrimPrefix(strings.TrimPrefix(field, "__"), "m_"))
}

// names hands out identifiers that are unique within one namespace.
type names map[string]bool

func (n names) take(candidates ...string) string {
	for _, c := range candidates {
		if !n[c] {
			n[c] = true
			return c
		}
	}
	base := candidates[len(candidates)-1]
	for i := 2; ; i++ {
		if c := fmt.Sprintf("%s%d", base, i); !n[c] {
			n[c] = true
			return c
		}
	}
}

const (
	importOffsets = "memscope/offsets"
	importProcess = "memscope/process"
)

var builtins = map[string]string{
	"bool":    "bool",
	"char":    "byte",
	"float32": "float32",
	"float64": "float64",
	"int8":    "int8",
	"int16":   "int16",
	"int32":   "int32",
	"int64":   "int64",
	"uint8":   "uint8",
	"uint16":  "uint16",
	"uint32":  "uint32",
	"uint64":  "uint64",
}

// atomics are the engine value types whose layout is fixed.
var atomics = map[string]string{
	"Vector":          "[3]float32",
	"QAngle":          "[3]float32",
	"Vector2D":        "[2]float32",
	"Vector4D":        "[4]float32",
	"Quaternion":      "[4]float32",
	"Color":           "[4]uint8",
	"GameTime_t":      "float32",
	"GameTick_t":      "int32",
	"CUtlString":      "string",
	"CUtlSymbolLarge": "string",
}

// goType maps a schema type name to a Go type that offsets.RegisterStruct
// accepts, and the import it needs. ok is false when the layout of the type
// is not known.
func goType(schemaType string) (typ, imp string, ok bool) {
	t := strings.TrimSpace(schemaType)

	if g, found := builtins[t]; found {
		return g, "", true
	}
	if g, found := atomics[t]; found {
		return g, "", true
	}
	if t == "CEntityHandle" || strings.HasPrefix(t, "CHandle<") || strings.HasPrefix(t, "CHandle <") {
		return "offsets.Handle", importOffsets, true
	}
	if strings.HasSuffix(t, "*") {
		if strings.TrimSpace(strings.TrimSuffix(t, "*")) == "char" {
			return "string", "", true
		}
		return "process.ProcessMemoryAddress", importProcess, true
	}
	if m := fixedArray.FindStringSubmatch(t); m != nil {
		elem, imp, ok := goType(m[1])
		// arrays of char pointers have no accessor
		if !ok || elem == "string" {
			return "", "", false
		}
		var dims strings.Builder
		for _, d := range arrayDim.FindAllStringSubmatch(m[2], -1) {
			n, err := strconv.Atoi(d[1])
			if err != nil || n <= 0 {
				return "", "", false
			}
			fmt.Fprintf(&dims, "[%d]", n)
		}
		return dims.String() + elem, imp, true
	}
	return "", "", false
}
