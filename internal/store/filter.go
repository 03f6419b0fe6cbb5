package store

import (
	"fmt"
	"slices"
	"strings"

	"github.com/faisal-shah/logmerge/internal/model"
)

// FieldEquals matches records whose field renders to one of values.
func FieldEquals(field string, values ...string) Filter {
	return func(rec *model.Record) bool {
		v, ok := rec.Get(field)
		if !ok {
			return false
		}
		return slices.Contains(values, v.String())
	}
}

// SourceIn matches records read from one of paths.
func SourceIn(paths ...string) Filter {
	return FieldEquals(model.SourceFileColumn, paths...)
}

// Since matches records at or after seconds. Records without a timestamp
// never match.
func Since(seconds float64) Filter {
	return func(rec *model.Record) bool {
		return rec.Timestamp.Valid && rec.Timestamp.Seconds >= seconds
	}
}

// And matches when every non-nil filter matches.
func And(filters ...Filter) Filter {
	var active []Filter
	for _, f := range filters {
		if f != nil {
			active = append(active, f)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(rec *model.Record) bool {
		for _, f := range active {
			if !f(rec) {
				return false
			}
		}
		return true
	}
}

// ParseWhere builds a filter from "field=value" expressions. Expressions
// on the same field are alternatives; different fields must all match.
func ParseWhere(exprs []string) (Filter, error) {
	var order []string
	values := make(map[string][]string)
	for _, e := range exprs {
		field, value, ok := strings.Cut(e, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid filter %q (want field=value)", e)
		}
		if _, seen := values[field]; !seen {
			order = append(order, field)
		}
		values[field] = append(values[field], value)
	}

	filters := make([]Filter, 0, len(order))
	for _, field := range order {
		filters = append(filters, FieldEquals(field, values[field]...))
	}
	return And(filters...), nil
}
