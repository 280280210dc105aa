package sdkgen

import (
	"bytes"
	"fmt"
	"go/format"
	"io"
	"text/template"
)

const fileTemplate = `// Code generated by memscope dump. DO NOT EDIT.
// type scope {{ .Module }}

package {{ .Package }}
{{ if .Imports }}
import (
{{- range .Imports }}
	"{{ . }}"
{{- end }}
)
{{ end }}{{ range $e := .Enums }}
// {{ $e.Name }} mirrors {{ $e.Source }}.
type {{ $e.Name }} int64
{{ if $e.Variants }}
const (
{{- range $e.Variants }}
	{{ .Name }} {{ $e.Name }} = {{ .Value }}
{{- end }}
)
{{ end }}
{{ end }}
{{- range .Structs }}
// {{ .Name }} mirrors {{ .Class }} ({{ hex .Size }} bytes).
type {{ .Name }} struct {
{{- range .Fields }}
	{{ .Name }} {{ .Type }} {{ tag . }} // {{ hex .Offset }} {{ .SchemaType }}
{{- end }}
{{- range .Skipped }}
	// {{ .Class }}::{{ .Field }} {{ .SchemaType }} at {{ hex .Offset }}
{{- end }}
}
{{ end }}`

var tmpl = template.Must(template.New("sdk").Funcs(template.FuncMap{
	"hex": func(v int32) string {
		if v < 0 {
			return fmt.Sprintf("-0x%x", -int64(v))
		}
		return fmt.Sprintf("0x%x", v)
	},
	"tag": func(f Field) string {
		return fmt.Sprintf("`schema:\"%s,%s\"`", f.Class, f.Field)
	},
}).Parse(fileTemplate))

// Source renders the file as formatted Go source.
func (f *File) Source() ([]byte, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, f); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return buf.Bytes(), fmt.Errorf("generated source for %s does not parse: %w", f.Module, err)
	}
	return src, nil
}

// WriteTo writes the formatted source to w.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	src, err := f.Source()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(src)
	return int64(n), err
}
