package parser

import (
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/faisal-shah/logmerge/internal/metrics"
	"github.com/faisal-shah/logmerge/internal/model"
	"github.com/faisal-shah/logmerge/internal/schema"
)

// missing is the sentinel an epoch field uses for "no timestamp".
const missing = "-"

// Parser converts a raw log line into a Record, or rejects it.
type Parser interface {
	Parse(raw string, source string) (*model.Record, bool)
}

// LineParser applies a Schema to raw lines. It is safe for concurrent use.
type LineParser struct {
	schema   *schema.Schema
	metrics  *metrics.Metrics
	accepted atomic.Int64
	rejected atomic.Int64
}

// New returns a LineParser for s. m may be nil.
func New(s *schema.Schema, m *metrics.Metrics) *LineParser {
	return &LineParser{schema: s, metrics: m}
}

// Schema returns the schema the parser applies.
func (p *LineParser) Schema() *schema.Schema { return p.schema }

// Accepted returns the number of lines turned into records.
func (p *LineParser) Accepted() int64 { return p.accepted.Load() }

// Rejected returns the number of lines silently dropped.
func (p *LineParser) Rejected() int64 { return p.rejected.Load() }

// Parse extracts typed fields from raw. Non-matching or malformed lines are
// rejected with ok=false; rejection is never an error.
func (p *LineParser) Parse(raw string, source string) (*model.Record, bool) {
	rec, ok := p.parse(raw, source)
	if ok {
		p.accepted.Add(1)
	} else {
		p.rejected.Add(1)
	}
	p.metrics.ObserveLine(ok)
	return rec, ok
}

func (p *LineParser) parse(raw string, source string) (*model.Record, bool) {
	values, ok := p.extract(raw)
	if !ok {
		return nil, false
	}

	rec := &model.Record{
		Source: source,
		Raw:    raw,
		Fields: make([]model.Field, 0, len(p.schema.Fields)),
	}
	for i := range p.schema.Fields {
		fd := &p.schema.Fields[i]
		rawVal, present := values[fd.Name]
		if !present {
			continue
		}
		v, ok := Convert(fd, rawVal)
		if !ok {
			return nil, false
		}
		rec.Fields = append(rec.Fields, model.Field{Name: fd.Name, Value: v})

		if fd.Name == p.schema.TimestampField {
			if sec, ok := v.Numeric(); ok {
				rec.Timestamp = model.At(sec)
			}
		}
	}
	return rec, true
}

// extract yields raw field strings, preferring the custom parse function.
func (p *LineParser) extract(raw string) (map[string]string, bool) {
	if p.schema.Parse != nil {
		return p.schema.Parse(raw)
	}

	re := p.schema.Pattern
	matches := re.FindStringSubmatch(raw)
	if matches == nil {
		return nil, false
	}
	names := re.SubexpNames()
	values := make(map[string]string, len(names))
	for i, name := range names {
		if i == 0 || name == "" {
			continue
		}
		values[name] = matches[i]
	}
	return values, true
}

// Convert turns a raw string into a typed value according to fd.
func Convert(fd *schema.FieldDef, raw string) (model.Value, bool) {
	switch fd.Type {
	case schema.TypeInt:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return model.Value{}, false
		}
		return model.IntValue(n), true

	case schema.TypeFloat:
		f, ok := parseFloat(raw)
		if !ok {
			return model.Value{}, false
		}
		return model.FloatValue(f), true

	case schema.TypeString:
		return model.StringValue(raw), true

	case schema.TypeEnum:
		if !fd.HasEnumValue(raw) {
			return model.Value{}, false
		}
		return model.EnumValue(raw), true

	case schema.TypeEpoch:
		if strings.TrimSpace(raw) == missing {
			return model.NullValue(), true
		}
		f, ok := parseFloat(raw)
		if !ok {
			return model.Value{}, false
		}
		return model.EpochValue(f), true

	default:
		return model.Value{}, false
	}
}

func parseFloat(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
