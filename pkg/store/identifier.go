package store

import (
	"encoding/json"
	"strconv"
	"strings"
)

// reservedKeywords is the subset of the SQL reserved-word list most likely
// to collide with flight-log field names (e.g. "offset", "order", "group").
// Identifiers matching this set (case-insensitively) are always quoted on
// output.
var reservedKeywords = map[string]bool{
	"offset": true, "order": true, "group": true, "select": true, "from": true,
	"where": true, "limit": true, "table": true, "index": true, "value": true,
	"values": true, "default": true, "check": true, "key": true, "primary": true,
	"references": true, "unique": true, "column": true, "type": true, "case": true,
	"when": true, "then": true, "else": true, "end": true, "and": true, "or": true,
	"not": true, "null": true, "is": true, "in": true, "like": true, "between": true,
	"join": true, "left": true, "right": true, "inner": true, "outer": true,
	"on": true, "as": true, "distinct": true, "having": true, "union": true,
	"all": true, "exists": true, "cast": true, "current": true, "transaction": true,
}

// QuoteIdentifier always wraps an identifier in double quotes, doubling any
// embedded quote character. SQLite treats double-quoted identifiers as
// names (not string literals), so this is always safe even for
// non-reserved names — callers needing the "reserved keyword only" nuance
// can check IsReservedKeyword first.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// IsReservedKeyword reports whether name collides with a SQL reserved word.
func IsReservedKeyword(name string) bool {
	return reservedKeywords[strings.ToLower(name)]
}

// NormalizeTableName implements the §3 table-naming rule: lowercase the
// message type, flatten bracket indices (GPS[0] -> gps_0), fold any other
// non-alphanumeric run to a single underscore, and append "_data".
func NormalizeTableName(msgType string) string {
	lower := strings.ToLower(msgType)
	lower = strings.ReplaceAll(lower, "[", "_")
	lower = strings.ReplaceAll(lower, "]", "")

	var b strings.Builder
	prevUnderscore := false
	for _, r := range lower {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isAlnum {
			b.WriteRune(r)
			prevUnderscore = false
		} else if !prevUnderscore {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = "unknown"
	}
	return name + "_data"
}

func formatReal(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func marshalJSONString(s string) []byte {
	b, err := json.Marshal(s)
	if err != nil {
		return []byte(`""`)
	}
	return b
}
