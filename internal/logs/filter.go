package logs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Filter selects log records. Zero fields match everything.
type Filter struct {
	MinLevel  string
	Component string
	ContentID string
}

// Record is one decoded JSON log line.
type Record struct {
	Time      string
	Level     string
	Message   string
	Component string
	ContentID string
	Fields    map[string]any
	Raw       string
}

// Decode parses a JSON log line. Lines that are not JSON objects come back
// with only Raw set and ok false.
func Decode(line string) (Record, bool) {
	rec := Record{Raw: line}
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return rec, false
	}
	rec.Time = take(fields, "ts")
	rec.Level = strings.ToLower(take(fields, "level"))
	rec.Message = take(fields, "msg")
	rec.Component = take(fields, "component")
	rec.ContentID = take(fields, "content_id")
	rec.Fields = fields
	return rec, true
}

func take(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	delete(fields, key)
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Match reports whether rec passes f. Undecodable lines only pass an empty
// filter.
func (f Filter) Match(rec Record, decoded bool) bool {
	if !decoded {
		return f == Filter{}
	}
	if floor := strings.ToLower(strings.TrimSpace(f.MinLevel)); floor != "" {
		if levelRank[rec.Level] < levelRank[floor] {
			return false
		}
	}
	if c := strings.TrimSpace(f.Component); c != "" && !strings.EqualFold(c, rec.Component) {
		return false
	}
	if id := strings.TrimSpace(f.ContentID); id != "" && id != rec.ContentID {
		return false
	}
	return true
}

// Format renders rec on one line: time, level, component, message, then the
// remaining fields sorted by key.
func Format(rec Record) string {
	if rec.Fields == nil {
		return rec.Raw
	}
	var b strings.Builder
	b.WriteString(rec.Time)
	b.WriteString(" ")
	b.WriteString(strings.ToUpper(rec.Level))
	if rec.Component != "" {
		b.WriteString(" [")
		b.WriteString(rec.Component)
		b.WriteString("]")
	}
	b.WriteString(" ")
	b.WriteString(rec.Message)
	if rec.ContentID != "" {
		fmt.Fprintf(&b, " content_id=%s", rec.ContentID)
	}
	keys := make([]string, 0, len(rec.Fields))
	for k := range rec.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, rec.Fields[k])
	}
	return b.String()
}
