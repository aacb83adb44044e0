package server

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// intParam reads a loosely typed integer field. Numbers are truncated, strings
// are parsed from their leading digits, and anything else yields def.
func intParam(raw json.RawMessage, def int) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return def
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return truncate(n, def)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return leadingInt(s, def)
	}
	return def
}

func truncate(n float64, def int) int {
	if math.IsNaN(n) || math.IsInf(n, 0) || n > math.MaxInt32 || n < math.MinInt32 {
		return def
	}
	return int(n)
}

// leadingInt parses an optional sign and the digits that follow it: "300px" is 300.
func leadingInt(s string, def int) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return def
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return def
	}
	return n
}

// stringParam reads a field that must be a JSON string. ok is false when the
// field is present with another type.
func stringParam(raw json.RawMessage) (value string, present, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false, true
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", true, false
	}
	return value, true, true
}
