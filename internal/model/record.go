package model

// SourceFileColumn is the virtual column carrying a record's originating path.
const SourceFileColumn = "source_file"

// Field is one named, typed value in a Record.
type Field struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Record represents a single accepted log line.
// Records are created by the parser and never mutated afterwards; they are
// passed around by pointer.
type Record struct {
	Source    string    `json:"source"` // originating file path
	Fields    []Field   `json:"fields"` // schema field order
	Timestamp Timestamp `json:"timestamp"`
	Raw       string    `json:"raw"` // original line text
}

// Get returns the value of the named field. The virtual source_file column
// resolves to the record's source path.
func (r *Record) Get(name string) (Value, bool) {
	if name == SourceFileColumn {
		return StringValue(r.Source), true
	}
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Timestamp is the nullable ordering key of a Record, in seconds.
type Timestamp struct {
	Seconds float64
	Valid   bool
}

// At returns a valid Timestamp.
func At(seconds float64) Timestamp {
	return Timestamp{Seconds: seconds, Valid: true}
}

// Less orders timestamps ascending with null sorting after every valid value.
func (t Timestamp) Less(o Timestamp) bool {
	switch {
	case !t.Valid:
		return false
	case !o.Valid:
		return true
	default:
		return t.Seconds < o.Seconds
	}
}

// MarshalJSON encodes a null timestamp as JSON null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return Float(t.Seconds).MarshalJSON()
}
