package calendar

import (
	"strings"

	"rostercal/internal/normalize"
)

// Display variants for request chips.
const (
	VariantAM      = "am"
	VariantPM      = "pm"
	VariantNight   = "night"
	VariantCourse  = "course"
	VariantOff     = "off"
	VariantHKA     = "hka"
	VariantGHKA    = "ghka"
	VariantDefault = "default"
)

// LegendItem is one entry of the calendar legend.
type LegendItem struct {
	Variant string `json:"variant"`
	Label   string `json:"label"`
}

// Legend lists the variants in display order.
var Legend = []LegendItem{
	{VariantAM, "AM"},
	{VariantPM, "PM"},
	{VariantNight, "Night"},
	{VariantCourse, "Course"},
	{VariantOff, "Off"},
	{VariantHKA, "HKA"},
	{VariantGHKA, "GHKA"},
}

// RequestTypes are the request tokens offered when creating a request.
var RequestTypes = []string{"AM", "PM", "ON", "OFF", "AL", "HKA", "GHKA", "COURSE"}

var exactVariants = map[string]string{
	"am":     VariantAM,
	"pm":     VariantPM,
	"night":  VariantNight,
	"on":     VariantNight,
	"course": VariantCourse,
	"off":    VariantOff,
	"leave":  VariantOff,
	"al":     VariantOff,
	"hka":    VariantHKA,
	"ghka":   VariantGHKA,
}

// Variant classifies a request token ("AM", "Annual leave", ...) into a
// display variant. Free text falls back to substring matches, then default.
func Variant(request string) string {
	token := normalize.NormalizeForComparison(request)
	if token == "" {
		return VariantDefault
	}
	if v, ok := exactVariants[token]; ok {
		return v
	}
	switch {
	case strings.Contains(token, "night"):
		return VariantNight
	case strings.Contains(token, "course"):
		return VariantCourse
	case strings.Contains(token, "off"), strings.Contains(token, "leave"):
		return VariantOff
	}
	return VariantDefault
}
