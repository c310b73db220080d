// Package adapter converts whatever the spreadsheet API returned into
// canonical records. It never fails: unexpected shapes become empty results.
package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	appLog "rostercal/internal/log"
	"rostercal/internal/model"
)

// field enumerates canonical columns in the sheet's default order.
type field int

const (
	fieldID field = iota
	fieldTimestamp
	fieldName
	fieldDate
	fieldDay
	fieldRequest
	fieldStatus
	fieldComment
	fieldCount
)

// aliases lists, per field, the keys probed in order. The first key present
// wins even when its value is empty.
var aliases = [fieldCount][]string{
	fieldID:        {"id", "ID", "Id"},
	fieldTimestamp: {"timestamp", "Timestamp"},
	fieldName:      {"name", "Name"},
	fieldDate:      {"date", "Date"},
	fieldDay:       {"day", "Day"},
	fieldRequest:   {"request", "Request"},
	fieldStatus:    {"status", "Status"},
	fieldComment:   {"comment", "Comment"},
}

var nameAliases = []string{"name", "Name"}

// Requests decodes a raw API body into canonical records.
func Requests(raw []byte) []model.RosterRequest {
	v, ok := decode(raw)
	if !ok {
		return []model.RosterRequest{}
	}
	return RequestsFromValue(v)
}

// RequestsFromValue adapts an already-decoded JSON value. Rows are located
// at the top level, under "rows", or under "values", in that order.
func RequestsFromValue(v any) []model.RosterRequest {
	if canonical, ok := v.([]model.RosterRequest); ok {
		out := make([]model.RosterRequest, len(canonical))
		copy(out, canonical)
		return out
	}

	rows := locateRows(v)
	out := make([]model.RosterRequest, 0, len(rows))

	// Tabular input may start with a header row naming the columns.
	columns := defaultColumns()
	start := 0
	if len(rows) > 0 {
		if header, ok := headerColumns(rows[0]); ok {
			columns = header
			start = 1
		}
	}

	for _, row := range rows[start:] {
		switch r := row.(type) {
		case map[string]any:
			out = append(out, fromObject(r))
		case []any:
			out = append(out, fromTuple(r, columns))
		default:
			appLog.Debug("adapter: skipping scalar row", "type", fmt.Sprintf("%T", row))
		}
	}
	return out
}

// TeamMembers decodes the roster sheet into distinct trimmed names in
// first-seen order. Entries may be plain strings or objects with a name.
func TeamMembers(raw []byte) []string {
	v, ok := decode(raw)
	if !ok {
		return []string{}
	}
	return TeamMembersFromValue(v)
}

// TeamMembersFromValue is TeamMembers for an already-decoded value.
func TeamMembersFromValue(v any) []string {
	rows := locateRows(v)
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0, len(rows))

	for _, row := range rows {
		var name string
		switch r := row.(type) {
		case string:
			name = r
		case map[string]any:
			if val, ok := pick(r, nameAliases); ok {
				if s, isString := val.(string); isString {
					name = s
				}
			}
		case []any:
			if len(r) > 0 {
				if s, isString := r[0].(string); isString {
					name = s
				}
			}
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func decode(raw []byte) (any, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		appLog.Debug("adapter: payload is not JSON", "err", err, "bytes", len(raw))
		return nil, false
	}
	return v, true
}

func locateRows(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case map[string]any:
		for _, key := range []string{"rows", "values"} {
			if rows, ok := x[key].([]any); ok {
				return rows
			}
		}
	}
	return nil
}

func pick(obj map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func fromObject(obj map[string]any) model.RosterRequest {
	var vals [fieldCount]string
	for f := field(0); f < fieldCount; f++ {
		if v, ok := pick(obj, aliases[f]); ok {
			vals[f] = stringify(v)
		}
	}
	return record(vals)
}

func fromTuple(row []any, columns []field) model.RosterRequest {
	var vals [fieldCount]string
	for i, f := range columns {
		if i >= len(row) {
			break
		}
		if f < 0 {
			continue
		}
		vals[f] = stringify(row[i])
	}
	return record(vals)
}

func record(vals [fieldCount]string) model.RosterRequest {
	return model.RosterRequest{
		ID:        vals[fieldID],
		Timestamp: vals[fieldTimestamp],
		Name:      vals[fieldName],
		Date:      vals[fieldDate],
		Day:       vals[fieldDay],
		Request:   vals[fieldRequest],
		Status:    vals[fieldStatus],
		Comment:   vals[fieldComment],
	}
}

func defaultColumns() []field {
	cols := make([]field, fieldCount)
	for i := range cols {
		cols[i] = field(i)
	}
	return cols
}

// headerColumns treats row as a header when every cell is a string and at
// least one names a known column. Unknown header cells map to -1.
func headerColumns(row any) ([]field, bool) {
	cells, ok := row.([]any)
	if !ok || len(cells) == 0 {
		return nil, false
	}
	cols := make([]field, len(cells))
	known := 0
	for i, c := range cells {
		s, isString := c.(string)
		if !isString {
			return nil, false
		}
		cols[i] = lookupField(strings.TrimSpace(s))
		if cols[i] >= 0 {
			known++
		}
	}
	return cols, known > 0
}

func lookupField(key string) field {
	for f := field(0); f < fieldCount; f++ {
		for _, a := range aliases[f] {
			if a == key {
				return f
			}
		}
	}
	return -1
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
