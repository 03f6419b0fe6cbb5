package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/faisal-shah/logmerge/internal/model"
)

// ErrSchemaLoad is wrapped by every error returned while building a schema.
var ErrSchemaLoad = errors.New("schema load failed")

// FieldType is the declared type of a schema field.
type FieldType int

const (
	TypeInt FieldType = iota
	TypeFloat
	TypeString
	TypeEnum
	TypeEpoch
)

func (t FieldType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeEnum:
		return "enum"
	case TypeEpoch:
		return "epoch"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// ParseType maps the type names accepted in schema files.
func ParseType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int", "integer":
		return TypeInt, nil
	case "float", "float_timestamp":
		return TypeFloat, nil
	case "string", "str":
		return TypeString, nil
	case "enum":
		return TypeEnum, nil
	case "epoch", "epochseconds", "epoch_seconds":
		return TypeEpoch, nil
	default:
		return 0, fmt.Errorf("unknown field type %q", s)
	}
}

// EnumOption maps a raw log value to its display name.
type EnumOption struct {
	Value string `toml:"value"`
	Name  string `toml:"name"`
}

// FieldDef describes one field of a log line.
type FieldDef struct {
	Name     string
	Type     FieldType
	Discrete bool // filtering hint only
	Enum     []EnumOption

	enum map[string]string
}

// HasEnumValue reports whether raw is a declared enum value.
func (f *FieldDef) HasEnumValue(raw string) bool {
	_, ok := f.enum[raw]
	return ok
}

// Display renders a value for presentation, resolving enum display names.
func (f *FieldDef) Display(v model.Value) string {
	if f.Type == TypeEnum && !v.IsNull() {
		if name, ok := f.enum[v.Str()]; ok {
			return name
		}
		return "UNRECOGNIZED_" + v.Str()
	}
	return v.String()
}

// ParseFunc is a custom line parser supplied by a plugin. It returns raw
// field values keyed by field name, or ok=false when the line does not match.
type ParseFunc func(line string) (fields map[string]string, ok bool)

// Schema is an immutable description of how to turn one raw line into typed
// fields.
type Schema struct {
	Name           string
	Fields         []FieldDef
	TimestampField string
	Pattern        *regexp.Regexp
	Parse          ParseFunc

	index map[string]int
}

// Field returns the definition of the named field.
func (s *Schema) Field(name string) (*FieldDef, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return &s.Fields[i], true
}

// Columns lists every field name followed by the virtual source column.
func (s *Schema) Columns() []string {
	cols := make([]string, 0, len(s.Fields)+1)
	for _, f := range s.Fields {
		cols = append(cols, f.Name)
	}
	return append(cols, model.SourceFileColumn)
}

// Definition is the declarative form of a schema as written in a schema file.
type Definition struct {
	Name           string      `toml:"name"`
	Regex          string      `toml:"regex"`
	TimestampField string      `toml:"timestamp_field"`
	Parser         string      `toml:"parser"`
	Fields         []FieldSpec `toml:"fields"`
}

// FieldSpec is the declarative form of a FieldDef.
type FieldSpec struct {
	Name       string       `toml:"name"`
	Type       string       `toml:"type"`
	Discrete   bool         `toml:"is_discrete"`
	EnumValues []EnumOption `toml:"enum_values"`
}

func loadErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchemaLoad, fmt.Sprintf(format, args...))
}

// Build validates a definition and compiles it into a Schema. parse may be
// nil; when set it overrides the regex.
func Build(def Definition, parse ParseFunc) (*Schema, error) {
	if len(def.Fields) == 0 {
		return nil, loadErr("schema %q declares no fields", def.Name)
	}

	s := &Schema{
		Name:           def.Name,
		Fields:         make([]FieldDef, 0, len(def.Fields)),
		TimestampField: strings.TrimSpace(def.TimestampField),
		Parse:          parse,
		index:          make(map[string]int, len(def.Fields)),
	}

	for i, spec := range def.Fields {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, loadErr("field %d has no name", i)
		}
		if name == model.SourceFileColumn {
			return nil, loadErr("field name %q is reserved", name)
		}
		if _, dup := s.index[name]; dup {
			return nil, loadErr("duplicate field %q", name)
		}
		typ, err := ParseType(spec.Type)
		if err != nil {
			return nil, loadErr("field %q: %v", name, err)
		}

		fd := FieldDef{Name: name, Type: typ, Discrete: spec.Discrete}
		if typ == TypeEnum {
			if len(spec.EnumValues) == 0 {
				return nil, loadErr("enum field %q has no enum_values", name)
			}
			fd.enum = make(map[string]string, len(spec.EnumValues))
			for _, opt := range spec.EnumValues {
				if _, dup := fd.enum[opt.Value]; dup {
					return nil, loadErr("enum field %q repeats value %q", name, opt.Value)
				}
				fd.enum[opt.Value] = opt.Name
			}
			fd.Enum = append([]EnumOption(nil), spec.EnumValues...)
		}

		s.index[name] = len(s.Fields)
		s.Fields = append(s.Fields, fd)
	}

	if s.TimestampField != "" {
		fd, ok := s.Field(s.TimestampField)
		if !ok {
			return nil, loadErr("timestamp_field %q is not a declared field", s.TimestampField)
		}
		switch fd.Type {
		case TypeInt, TypeFloat, TypeEpoch:
		default:
			return nil, loadErr("timestamp_field %q must be numeric, got %s", s.TimestampField, fd.Type)
		}
	}

	if def.Regex != "" {
		re, err := regexp.Compile(def.Regex)
		if err != nil {
			return nil, loadErr("invalid regex: %v", err)
		}
		for _, group := range re.SubexpNames() {
			if group == "" {
				continue
			}
			if _, ok := s.index[group]; !ok {
				return nil, loadErr("regex group %q does not name a field", group)
			}
		}
		s.Pattern = re
	}

	if s.Pattern == nil && s.Parse == nil {
		return nil, loadErr("schema %q needs a regex or a parser", def.Name)
	}

	return s, nil
}
