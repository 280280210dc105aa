package pod

import (
	"fmt"
	"io"
	"strings"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

// FormatFunc is a callback to format/colorize cell values
type FormatFunc func(value string) string

// ColumnSpec defines a column's properties
type ColumnSpec struct {
	Header     string
	BlankValue string     // Value to show for empty cells (default: "-")
	FormatFunc FormatFunc // Optional formatter/colorizer
	MinWidth   int
	AlignRight bool
}

// Table is a column-aligned text table for CLI listings.
type Table struct {
	columns   []ColumnSpec
	rows      [][]string
	widths    []int
	separator string
}

func NewTable(cols ...ColumnSpec) *Table {
	t := &Table{
		columns:   cols,
		widths:    make([]int, len(cols)),
		separator: "-",
	}

	for i, col := range cols {
		t.widths[i] = max(col.MinWidth, len(col.Header))
		if t.columns[i].BlankValue == "" {
			t.columns[i].BlankValue = "-"
		}
	}

	return t
}

// AddRow adds a row; missing and empty cells show the column's blank value.
func (t *Table) AddRow(data ...string) {
	row := make([]string, len(t.columns))
	for i := range row {
		if i < len(data) && data[i] != "" {
			row[i] = data[i]
		} else {
			row[i] = t.columns[i].BlankValue
		}
		t.widths[i] = max(t.widths[i], visibleLength(row[i]))
	}
	t.rows = append(t.rows, row)
}

// AddSeparator adds a separator line. It is drawn at render time so it spans
// the final column widths.
func (t *Table) AddSeparator() {
	t.rows = append(t.rows, nil)
}

func (t *Table) Len() int {
	n := 0
	for _, row := range t.rows {
		if row != nil {
			n++
		}
	}
	return n
}

// Render writes the table to the given writer
func (t *Table) Render(w io.Writer) error {
	headers := make([]string, len(t.columns))
	for i, col := range t.columns {
		headers[i] = t.pad(i, col.Header)
	}
	if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(headers, " "), " ")); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, t.separatorLine()); err != nil {
		return err
	}

	for _, row := range t.rows {
		if row == nil {
			if _, err := fmt.Fprintln(w, t.separatorLine()); err != nil {
				return err
			}
			continue
		}

		formatted := make([]string, len(row))
		for i, val := range row {
			padded := t.pad(i, val)
			if f := t.columns[i].FormatFunc; f != nil && val != t.columns[i].BlankValue {
				// pad first so escape codes do not disturb alignment
				trimmed := strings.TrimSpace(padded)
				padded = strings.Replace(padded, trimmed, f(trimmed), 1)
			}
			formatted[i] = padded
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(formatted, " "), " ")); err != nil {
			return err
		}
	}

	return nil
}

func (t *Table) separatorLine() string {
	sep := make([]string, len(t.columns))
	for i := range sep {
		sep[i] = strings.Repeat(t.separator, t.widths[i])
	}
	return strings.Join(sep, " ")
}

func (t *Table) pad(col int, s string) string {
	n := t.widths[col] - visibleLength(s)
	if n <= 0 {
		return s
	}
	if t.columns[col].AlignRight {
		return strings.Repeat(" ", n) + s
	}
	return s + strings.Repeat(" ", n)
}

// visibleLength counts runes outside ANSI escape sequences.
func visibleLength(s string) int {
	length := 0
	inEscape := false
	for _, r := range s {
		if r == '\033' {
			inEscape = true
		} else if inEscape {
			if r == 'm' {
				inEscape = false
			}
		} else {
			length++
		}
	}
	return length
}

func (t *Table) WithSeparator(char string) *Table {
	t.separator = char
	return t
}

func (t *Table) WithRow(data ...string) *Table {
	t.AddRow(data...)
	return t
}

// Colored returns a formatter painting values in fg.
func Colored(fg coloransi.ColorCode) FormatFunc {
	return func(value string) string {
		return coloransi.Foreground(fg, value)
	}
}
