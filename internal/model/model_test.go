package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestampOrdering(t *testing.T) {
	null := Timestamp{}
	tests := []struct {
		a, b Timestamp
		want bool
	}{
		{At(1), At(2), true},
		{At(2), At(1), false},
		{At(1), At(1), false},
		{At(1e9), null, true},
		{null, At(0), false},
		{null, null, false},
	}
	for _, tt := range tests {
		if got := tt.a.Less(tt.b); got != tt.want {
			t.Errorf("%v.Less(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRecordGet(t *testing.T) {
	r := &Record{
		Source: "/var/log/a.log",
		Fields: []Field{{Name: "module", Value: StringValue("auth")}},
	}

	if v, ok := r.Get("module"); !ok || v.Str() != "auth" {
		t.Errorf("expected module=auth, got %v %v", v, ok)
	}
	if v, ok := r.Get(SourceFileColumn); !ok || v.Str() != "/var/log/a.log" {
		t.Errorf("expected source_file to resolve to the path, got %v %v", v, ok)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("expected missing field to be absent")
	}
}

func TestValueAccessors(t *testing.T) {
	if f, ok := IntValue(42).Numeric(); !ok || f != 42 {
		t.Errorf("int numeric: got %v %v", f, ok)
	}
	if _, ok := StringValue("x").Numeric(); ok {
		t.Error("string must not be numeric")
	}
	if !NullValue().IsNull() || NullValue().Kind() != KindNull {
		t.Error("expected null value")
	}
	if !EnumValue("3").Equal(EnumValue("3")) || EnumValue("3").Equal(StringValue("3")) {
		t.Error("equality must compare kind and payload")
	}

	tm, ok := EpochValue(1640995200.5).Time()
	if !ok || !tm.Equal(time.Unix(1640995200, 500_000_000)) {
		t.Errorf("unexpected epoch time %v %v", tm, ok)
	}
	if _, ok := FloatValue(1).Time(); ok {
		t.Error("only epoch values convert to time")
	}
}

func TestValueJSON(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{IntValue(-7), `-7`},
		{FloatValue(0.25), `0.25`},
		{EpochValue(1640995200.123456), `1640995200.123456`},
		{StringValue("a \"b\""), `"a \"b\""`},
		{EnumValue("3"), `"3"`},
		{NullValue(), `null`},
	}
	for _, tt := range tests {
		got, err := json.Marshal(tt.v)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != tt.want {
			t.Errorf("marshal %v: got %s, want %s", tt.v, got, tt.want)
		}
	}

	rec, err := json.Marshal(Record{Source: "a.log", Timestamp: Timestamp{}})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(rec, &m); err != nil {
		t.Fatal(err)
	}
	if m["timestamp"] != nil {
		t.Errorf("expected null timestamp, got %v", m["timestamp"])
	}
}
