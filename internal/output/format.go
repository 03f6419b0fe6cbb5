package output

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/faisal-shah/logmerge/internal/model"
	"github.com/faisal-shah/logmerge/internal/schema"
	"github.com/faisal-shah/logmerge/internal/store"
)

// DefaultTimeLayout renders epoch values with microsecond precision.
const DefaultTimeLayout = "2006-01-02 15:04:05.000000"

// Formatter turns row values into display text for a fixed column list.
type Formatter struct {
	schema   *schema.Schema
	columns  []string
	layout   string
	location *time.Location
}

// NewFormatter creates a Formatter. Empty columns selects every schema
// column; an empty layout selects DefaultTimeLayout.
func NewFormatter(s *schema.Schema, columns []string, layout string) *Formatter {
	if len(columns) == 0 {
		columns = s.Columns()
	}
	if layout == "" {
		layout = DefaultTimeLayout
	}
	return &Formatter{schema: s, columns: columns, layout: layout, location: time.Local}
}

// In sets the time zone used for epoch values.
func (f *Formatter) In(loc *time.Location) *Formatter {
	f.location = loc
	return f
}

// Columns returns the rendered column names.
func (f *Formatter) Columns() []string { return f.columns }

// Cell renders one value. Null values render as "-".
func (f *Formatter) Cell(column string, v model.Value) string {
	if v.IsNull() {
		return "-"
	}
	if t, ok := v.Time(); ok {
		return t.In(f.location).Format(f.layout)
	}
	if fd, ok := f.schema.Field(column); ok {
		return fd.Display(v)
	}
	return v.String()
}

// Object is one row keyed by column name. It encodes as a JSON object whose
// keys follow the configured column order.
type Object struct {
	Columns []string
	Values  []any
}

// Get returns the value for column.
func (o Object) Get(column string) (any, bool) {
	for i, c := range o.Columns {
		if c == column {
			return o.Values[i], true
		}
	}
	return nil, false
}

func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range o.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(o.Values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Object maps each column to a JSON-friendly value: enum display names,
// numbers as numbers, null as null.
func (f *Formatter) Object(row store.Row) Object {
	obj := Object{Columns: f.columns, Values: make([]any, len(f.columns))}
	for i, col := range f.columns {
		v := row.Values[i]
		if fd, ok := f.schema.Field(col); ok && v.Kind() == model.KindEnum {
			obj.Values[i] = fd.Display(v)
			continue
		}
		obj.Values[i] = v
	}
	return obj
}
