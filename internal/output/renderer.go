package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/faisal-shah/logmerge/internal/model"
	"github.com/faisal-shah/logmerge/internal/store"
)

// Renderer writes projected rows to an output stream.
type Renderer interface {
	Render(row store.Row) error
}

// New returns the renderer for format ("text" or "json").
func New(format string, w io.Writer, f *Formatter) (Renderer, error) {
	switch format {
	case "", "text":
		return NewTextRenderer(w, f), nil
	case "json":
		return NewJSONRenderer(w, f), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text or json)", format)
	}
}

// ---------------------------------------------------------------------------
// Text Renderer (colorized terminal output)
// ---------------------------------------------------------------------------

var (
	styleInfo  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
	styleDebug = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true)
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))            // yellow
	styleError = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true) // red bold
	styleFatal = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("196")).
			Bold(true) // white on red
	styleSource = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Faint(true) // cyan
	styleNull   = lipgloss.NewStyle().Faint(true)
)

// TextRenderer prints one line per row, coloring enum fields by severity
// and the source column.
type TextRenderer struct {
	w   io.Writer
	fmt *Formatter
}

// NewTextRenderer returns a Renderer that writes colorized text to w.
func NewTextRenderer(w io.Writer, f *Formatter) *TextRenderer {
	return &TextRenderer{w: w, fmt: f}
}

func (r *TextRenderer) Render(row store.Row) error {
	cells := make([]string, len(r.fmt.columns))
	for i, col := range r.fmt.columns {
		v := row.Values[i]
		text := r.fmt.Cell(col, v)
		switch {
		case v.IsNull():
			cells[i] = styleNull.Render(text)
		case col == model.SourceFileColumn:
			cells[i] = styleSource.Render(text)
		case v.Kind() == model.KindEnum:
			cells[i] = styleSeverity(text)
		default:
			cells[i] = text
		}
	}
	_, err := fmt.Fprintln(r.w, strings.Join(cells, " "))
	return err
}

// styleSeverity colors well-known severity names; other enum values render
// in the default info style.
func styleSeverity(name string) string {
	padded := fmt.Sprintf("%-7s", name)
	switch strings.ToUpper(name) {
	case "DEBUG", "TRACE":
		return styleDebug.Render(padded)
	case "WARN", "WARNING", "NOTICE":
		return styleWarn.Render(padded)
	case "ERROR", "ERR":
		return styleError.Render(padded)
	case "FATAL", "CRITICAL", "ALERT", "EMERGENCY":
		return styleFatal.Render(padded)
	default:
		return styleInfo.Render(padded)
	}
}

// ---------------------------------------------------------------------------
// JSON Renderer (structured output for piping)
// ---------------------------------------------------------------------------

// JSONRenderer prints each row as a single JSON object per line, keyed by
// column name. Enum values are replaced by their display names.
type JSONRenderer struct {
	enc *json.Encoder
	fmt *Formatter
}

// NewJSONRenderer returns a Renderer that writes JSON lines to w.
func NewJSONRenderer(w io.Writer, f *Formatter) *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(w), fmt: f}
}

func (r *JSONRenderer) Render(row store.Row) error {
	return r.enc.Encode(r.fmt.Object(row))
}
