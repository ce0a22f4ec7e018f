package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/oliveagle/jsonpath"
	"github.com/pkg/errors"
	"golang.org/x/term"
	"gopkg.in/yaml.v2"
)

const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	jsonpathPrefix = "jsonpath="
)

// Formatter renders a value for the terminal.
type Formatter interface {
	Format(data any) (string, error)
}

// Tabular values know their own table layout.
type Tabular interface {
	Header() table.Row
	Rows() []table.Row
}

// Documented values expose the structure used for json, yaml and jsonpath.
// Values that don't implement it are encoded as-is.
type Documented interface {
	Document() any
}

// NewFormatter accepts table, json, yaml or jsonpath=<expr>.
func NewFormatter(format string, width int) (Formatter, error) {
	switch f := strings.TrimSpace(format); {
	case f == "" || strings.EqualFold(f, FormatTable):
		return &TableFormatter{Width: width}, nil
	case strings.EqualFold(f, FormatJSON):
		return &JSONFormatter{}, nil
	case strings.EqualFold(f, FormatYAML):
		return &YAMLFormatter{}, nil
	case strings.HasPrefix(f, jsonpathPrefix):
		expr := strings.TrimPrefix(f, jsonpathPrefix)
		if expr == "" {
			return nil, errors.New("jsonpath output requires an expression, e.g. jsonpath=$.items[*].name")
		}
		return &JSONPathFormatter{Expr: expr}, nil
	default:
		return nil, errors.Errorf("unsupported output format '%s' (supported: table, json, yaml, jsonpath=<expr>)", format)
	}
}

// TerminalWidth is the column count of w when it is a terminal, else 0.
func TerminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

func document(data any) any {
	if d, ok := data.(Documented); ok {
		return d.Document()
	}
	return data
}

type TableFormatter struct {
	// Width caps the rendered row length; zero means unlimited.
	Width int
}

func (f *TableFormatter) Format(data any) (string, error) {
	tab, ok := data.(Tabular)
	if !ok {
		// nothing tabular to show, fall back to yaml
		return (&YAMLFormatter{}).Format(data)
	}
	rows := tab.Rows()
	if len(rows) == 0 {
		return "No resources found.\n", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateColumns = false
	if f.Width > 0 {
		t.SetAllowedRowLength(f.Width)
	}
	t.AppendHeader(tab.Header())
	t.AppendRows(rows)
	return t.Render() + "\n", nil
}

type JSONFormatter struct{}

func (f *JSONFormatter) Format(data any) (string, error) {
	out, err := json.MarshalIndent(document(data), "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "unable to encode json")
	}
	return string(out) + "\n", nil
}

type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(data any) (string, error) {
	out, err := yaml.Marshal(document(data))
	if err != nil {
		return "", errors.Wrap(err, "unable to encode yaml")
	}
	return string(out), nil
}

// JSONPathFormatter evaluates Expr against the json form of the value.
type JSONPathFormatter struct {
	Expr string
}

func (f *JSONPathFormatter) Format(data any) (string, error) {
	raw, err := json.Marshal(document(data))
	if err != nil {
		return "", errors.Wrap(err, "unable to encode json")
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", errors.Wrap(err, "unable to decode json")
	}
	expr := f.Expr
	if !strings.HasPrefix(expr, "$") {
		expr = "$" + expr
	}
	result, err := jsonpath.JsonPathLookup(generic, expr)
	if err != nil {
		return "", errors.Wrapf(err, "jsonpath '%s'", f.Expr)
	}
	return renderScalar(result) + "\n", nil
}

func renderScalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, renderScalar(item))
		}
		return strings.Join(parts, " ")
	case map[string]any:
		out, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(out)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
