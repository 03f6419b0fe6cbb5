package schema

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

func init() {
	Register("dbglog", Plugin{Definition: dbglogDefinition, Parse: parseDbglog})
	Register("canking", Plugin{Definition: cankingDefinition, Parse: parseCanKing})
	Register("clf", Plugin{Definition: clfDefinition, Parse: parseCLF})
}

// ---------------------------------------------------------------------------
// dbglog: "<severity> <epoch|-> <module|-> <message>"
// ---------------------------------------------------------------------------

var dbglogDefinition = Definition{
	Name:           "dbglog",
	Regex:          `^(?P<severity>[0-9]) (?P<timestamp>-|[0-9]+\.[0-9]{6}) (?P<module>-|[a-zA-Z][a-zA-Z0-9_]*) (?P<message>.*)$`,
	TimestampField: "timestamp",
	Fields: []FieldSpec{
		{Name: "severity", Type: "enum", EnumValues: []EnumOption{
			{Value: "0", Name: "EMERGENCY"},
			{Value: "1", Name: "ALERT"},
			{Value: "2", Name: "CRITICAL"},
			{Value: "3", Name: "ERROR"},
			{Value: "4", Name: "WARNING"},
			{Value: "5", Name: "NOTICE"},
			{Value: "6", Name: "INFO"},
			{Value: "7", Name: "DEBUG"},
		}},
		{Name: "timestamp", Type: "epoch"},
		{Name: "module", Type: "string", Discrete: true},
		{Name: "message", Type: "string"},
	},
}

var moduleName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

func parseDbglog(line string) (map[string]string, bool) {
	line = strings.TrimSpace(line)
	parts := strings.SplitN(line, " ", 4)
	if len(parts) < 4 {
		return nil, false
	}
	severity, ts, module, message := parts[0], parts[1], parts[2], parts[3]

	if !isDigits(severity) {
		return nil, false
	}
	if ts != "-" {
		if _, err := strconv.ParseFloat(ts, 64); err != nil {
			return nil, false
		}
	}
	if module != "-" && !moduleName.MatchString(module) {
		return nil, false
	}

	return map[string]string{
		"severity":  severity,
		"timestamp": ts,
		"module":    module,
		"message":   message,
	}, true
}

// ---------------------------------------------------------------------------
// canking: CAN King bus dumps
//
//	Chn Identifier Flg   DLC  D0...1...2...3...4...5...6..D7       Time     Dir
//	 0    0000014B         1  00                                1675.570498 T
// ---------------------------------------------------------------------------

var cankingDefinition = Definition{
	Name:           "canking",
	Regex:          `^\s*(?P<channel>\d+)\s+(?P<identifier>[0-9A-Fa-f]+)\s*(?P<flag>[A-Z]?)\s+(?P<dlc>\d+)\s+(?P<data>(?:[0-9A-Fa-f]{2}(?:\s+[0-9A-Fa-f]{2})*)?)\s+(?P<timestamp>\d+\.\d+)\s+(?P<direction>[TR])\s*$`,
	TimestampField: "timestamp",
	Fields: []FieldSpec{
		{Name: "channel", Type: "int"},
		{Name: "identifier", Type: "string", Discrete: true},
		{Name: "flag", Type: "string", Discrete: true},
		{Name: "dlc", Type: "int"},
		{Name: "data", Type: "string"},
		{Name: "timestamp", Type: "float_timestamp"},
		{Name: "direction", Type: "enum", EnumValues: []EnumOption{
			{Value: "T", Name: "TRANSMIT"},
			{Value: "R", Name: "RECEIVE"},
		}},
	},
}

var cankingLine = regexp.MustCompile(cankingDefinition.Regex)

func parseCanKing(line string) (map[string]string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}
	// Header and separator lines.
	if line[0] == 'C' || line[0] == '-' || strings.Contains(line, "Identifier") {
		return nil, false
	}

	m := cankingLine.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	out := make(map[string]string, len(m))
	for i, name := range cankingLine.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		out[name] = m[i]
	}
	out["identifier"] = strings.ToUpper(out["identifier"])
	out["data"] = strings.Join(strings.Fields(strings.ToUpper(out["data"])), " ")
	return out, true
}

// ---------------------------------------------------------------------------
// clf: Apache/Nginx Common Log Format
// Format: host ident authuser [date] "request" status bytes
// ---------------------------------------------------------------------------

var clfDefinition = Definition{
	Name:           "clf",
	TimestampField: "time",
	Fields: []FieldSpec{
		{Name: "host", Type: "string", Discrete: true},
		{Name: "ident", Type: "string"},
		{Name: "user", Type: "string", Discrete: true},
		{Name: "time", Type: "epoch"},
		{Name: "request", Type: "string"},
		{Name: "status", Type: "int"},
		{Name: "bytes", Type: "string"},
		{Name: "level", Type: "enum", EnumValues: []EnumOption{
			{Value: "INFO", Name: "INFO"},
			{Value: "WARN", Name: "WARN"},
			{Value: "ERROR", Name: "ERROR"},
		}},
	},
}

var clfLine = regexp.MustCompile(`^(\S+) (\S+) (\S+) \[([^\]]+)\] "([^"]*)" (\d{3}) (\S+)`)

const clfTimeLayout = "02/Jan/2006:15:04:05 -0700"

func parseCLF(line string) (map[string]string, bool) {
	m := clfLine.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	t, err := time.Parse(clfTimeLayout, m[4])
	if err != nil {
		return nil, false
	}
	return map[string]string{
		"host":    m[1],
		"ident":   m[2],
		"user":    m[3],
		"time":    strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', 6, 64),
		"request": m[5],
		"status":  m[6],
		"bytes":   m[7],
		"level":   statusToLevel(m[6]),
	}, true
}

// statusToLevel maps HTTP status codes to log severity levels.
func statusToLevel(status string) string {
	if len(status) == 0 {
		return "INFO"
	}
	switch status[0] {
	case '5':
		return "ERROR"
	case '4':
		return "WARN"
	default:
		return "INFO"
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
