// Package normalize turns loosely formatted dates and names into the keys the
// rest of rostercal compares on. Names and dates are never compared raw;
// everything goes through ToISODate and NormalizeForComparison.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goodsign/monday"
)

// DateOrder decides how the first two parts of a slash-delimited date are read.
type DateOrder int

const (
	// DayFirst reads "15/03/2024" as 15 March 2024.
	DayFirst DateOrder = iota
	// MonthFirst reads "03/15/2024" as 15 March 2024.
	MonthFirst
)

// ParseDateOrder maps "dmy"/"mdy" (any case) to a DateOrder. Anything else is
// DayFirst.
func ParseDateOrder(s string) DateOrder {
	if strings.EqualFold(strings.TrimSpace(s), "mdy") {
		return MonthFirst
	}
	return DayFirst
}

func (o DateOrder) String() string {
	if o == MonthFirst {
		return "mdy"
	}
	return "dmy"
}

// maxYear is the last year the four-digit ISO form can carry.
const maxYear = 9999

// genericLayouts are tried in order for strings without a slash.
var genericLayouts = []string{
	"2006-01-02",
	"2006-1-2",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	"Mon Jan 02 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
}

// Normalizer carries the two policies date parsing depends on.
type Normalizer struct {
	// Order applies to slash-delimited strings only.
	Order DateOrder
	// Location is where calendar dates are read. Zoned timestamps are
	// converted into it before the date is taken. Nil means time.Local.
	Location *time.Location
}

// New returns a Normalizer with the given policies.
func New(order DateOrder, loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{Order: order, Location: loc}
}

var std atomic.Pointer[Normalizer]

func init() {
	std.Store(New(DayFirst, time.Local))
}

// Default returns the Normalizer used by the package-level functions.
func Default() *Normalizer {
	return std.Load()
}

// SetDefault replaces the Normalizer used by the package-level functions.
func SetDefault(n *Normalizer) {
	if n == nil {
		return
	}
	std.Store(n)
}

// ToISODate formats any supported date value as "2006-01-02" using the
// default Normalizer. The empty string means the date is unknown.
func ToISODate(v any) string {
	return Default().ToISODate(v)
}

// ToWeekdayName returns the long weekday name of v in locale using the
// default Normalizer, or "" if v is not a date.
func ToWeekdayName(v any, locale string) string {
	return Default().ToWeekdayName(v, locale)
}

// ParseDate exposes the default Normalizer's parse for callers that need
// the time value, e.g. for sorting.
func ParseDate(v any) (time.Time, bool) {
	return Default().ParseDate(v)
}

// NormalizeForComparison is the identity key for names and status tokens:
// trimmed and lower-cased. Non-strings yield "".
func NormalizeForComparison(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// SameName reports whether a and b refer to the same person.
func SameName(a, b string) bool {
	return NormalizeForComparison(a) == NormalizeForComparison(b)
}

// IsActive reports whether a status token means "active".
func IsActive(status string) bool {
	return NormalizeForComparison(status) == "active"
}

// ToISODate formats v as "2006-01-02", rebuilt from the parsed calendar
// components so equivalent inputs canonicalize identically.
func (n *Normalizer) ToISODate(v any) string {
	t, ok := n.ParseDate(v)
	if !ok || t.Year() < 0 || t.Year() > maxYear {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), int(t.Month()), t.Day())
}

// ToWeekdayName returns the long weekday name in locale ("en-US", "de_DE",
// "fr", ...). Unknown locales get English names.
func (n *Normalizer) ToWeekdayName(v any, locale string) string {
	t, ok := n.ParseDate(v)
	if !ok {
		return ""
	}
	return monday.Format(t, "Monday", mondayLocale(locale))
}

// ParseDate converts v to a time in n.Location. Supported inputs are
// strings, time.Time, *time.Time, json.Number and integer or float epoch
// milliseconds.
func (n *Normalizer) ParseDate(v any) (time.Time, bool) {
	loc := n.location()

	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case string:
		return n.parseString(x)
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return x.In(loc), true
	case *time.Time:
		if x == nil || x.IsZero() {
			return time.Time{}, false
		}
		return x.In(loc), true
	case json.Number:
		ms, err := x.Int64()
		if err != nil {
			f, ferr := x.Float64()
			if ferr != nil {
				return time.Time{}, false
			}
			return n.fromMillisFloat(f)
		}
		return time.UnixMilli(ms).In(loc), true
	case int:
		return time.UnixMilli(int64(x)).In(loc), true
	case int64:
		return time.UnixMilli(x).In(loc), true
	case float64:
		return n.fromMillisFloat(x)
	default:
		return time.Time{}, false
	}
}

func (n *Normalizer) fromMillisFloat(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(f)).In(n.location()), true
}

func (n *Normalizer) parseString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if strings.ContainsAny(s, `/\`) {
		if t, ok := n.parseSlashed(s); ok {
			return t, true
		}
	}
	loc := n.location()
	for _, layout := range genericLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// parseSlashed reads "d/m/y" or "m/d/y" depending on n.Order. A trailing
// time after the year ("15/03/2024 09:30") is ignored. The parts must form a
// real date; 31/02/2024 is rejected rather than rolled over.
func (n *Normalizer) parseSlashed(s string) (time.Time, bool) {
	parts := strings.Split(strings.ReplaceAll(s, `\`, "/"), "/")
	if len(parts) < 3 {
		return time.Time{}, false
	}
	first, second := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	yearPart := strings.TrimSpace(parts[2])
	if i := strings.IndexAny(yearPart, " T"); i >= 0 {
		yearPart = yearPart[:i]
	}
	if first == "" || second == "" || yearPart == "" {
		return time.Time{}, false
	}

	dayStr, monthStr := first, second
	if n.Order == MonthFirst {
		dayStr, monthStr = second, first
	}

	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil || year < 0 || year > maxYear {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, n.location())
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

func (n *Normalizer) location() *time.Location {
	if n == nil || n.Location == nil {
		return time.Local
	}
	return n.Location
}

// languageDefaults maps bare language tags to the regional locale monday knows.
var languageDefaults = map[string]monday.Locale{
	"en": monday.LocaleEnUS,
	"de": monday.LocaleDeDE,
	"fr": monday.LocaleFrFR,
	"es": monday.LocaleEsES,
	"it": monday.LocaleItIT,
	"nl": monday.LocaleNlNL,
	"pt": monday.LocalePtPT,
}

func mondayLocale(locale string) monday.Locale {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return monday.LocaleEnUS
	}
	locale = strings.ReplaceAll(locale, "-", "_")
	if !strings.Contains(locale, "_") {
		if l, ok := languageDefaults[strings.ToLower(locale)]; ok {
			return l
		}
		return monday.LocaleEnUS
	}
	lang, region, _ := strings.Cut(locale, "_")
	return monday.Locale(strings.ToLower(lang) + "_" + strings.ToUpper(region))
}
