// Package calendar lays roster requests out on a monthly grid.
//
// Weeks start on Sunday. Padding cells before the first and after the last
// day of the month are nil. Cells are built fresh per month and never
// mutated afterwards.
package calendar

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "rostercal/internal/log"
	"rostercal/internal/model"
	"rostercal/internal/normalize"
)

const isoDate = "2006-01-02"

// Cell is a single day of the displayed month.
type Cell struct {
	// Date is the ISO calendar date ("2006-01-02").
	Date string `json:"date"`
	// Day is the day of the month, 1-based.
	Day int `json:"day"`
	// WeekdayIndex is the column, 0=Sunday .. 6=Saturday.
	WeekdayIndex int `json:"weekday_index"`
	// Requests are the active requests on Date in input order.
	Requests []model.RosterRequest `json:"requests"`
}

// Week is one row of the grid; nil entries are padding.
type Week [7]*Cell

// Month is a fully built month view.
type Month struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	// Title is the English display title, e.g. "March 2024".
	Title string `json:"title"`
	Weeks []Week `json:"weeks"`
}

// Cells returns the number of cells, padding included.
func (m Month) Cells() int {
	return len(m.Weeks) * 7
}

// Days returns the non-padding cells in order.
func (m Month) Days() []*Cell {
	out := make([]*Cell, 0, 31)
	for _, w := range m.Weeks {
		for _, c := range w {
			if c != nil {
				out = append(out, c)
			}
		}
	}
	return out
}

// FirstOfMonth returns midnight on the first day of ref's month, in ref's
// location.
func FirstOfMonth(ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
}

// LastOfMonth returns midnight on the last day of ref's month.
func LastOfMonth(ref time.Time) time.Time {
	// Day 0 of the next month is the last day of this one.
	return time.Date(ref.Year(), ref.Month()+1, 0, 0, 0, 0, 0, ref.Location())
}

// UpcomingMonth returns the first day of the month after now. This is the
// month shown when no reference month is pinned.
func UpcomingMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, now.Location())
}

// Grid returns the empty week grid for the month containing ref.
func Grid(ref time.Time) []Week {
	return grid(ref, nil)
}

// Build returns the month containing ref with every cell holding the
// active requests for its date.
func Build(ref time.Time, reqs []model.RosterRequest) Month {
	return BuildWith(normalize.Default(), ref, reqs)
}

// BuildWith is Build using n for request dates.
func BuildWith(n *normalize.Normalizer, ref time.Time, reqs []model.RosterRequest) Month {
	first := FirstOfMonth(ref)
	return Month{
		Year:  first.Year(),
		Month: first.Month(),
		Title: first.Format("January 2006"),
		Weeks: grid(ref, IndexWith(n, reqs)),
	}
}

func grid(ref time.Time, index map[string][]model.RosterRequest) []Week {
	first := FirstOfMonth(ref)
	last := LastOfMonth(ref)
	leading := int(first.Weekday())

	cells := make([]*Cell, 0, 42)
	for i := 0; i < leading; i++ {
		cells = append(cells, nil)
	}
	for _, d := range monthDays(first, last) {
		key := d.Format(isoDate)
		cells = append(cells, &Cell{
			Date:         key,
			Day:          d.Day(),
			WeekdayIndex: int(d.Weekday()),
			Requests:     index[key],
		})
	}
	for len(cells)%7 != 0 {
		cells = append(cells, nil)
	}

	weeks := make([]Week, 0, len(cells)/7)
	for i := 0; i < len(cells); i += 7 {
		var w Week
		copy(w[:], cells[i:i+7])
		weeks = append(weeks, w)
	}
	return weeks
}

// monthDays enumerates every day from first to last inclusive.
func monthDays(first, last time.Time) []time.Time {
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: first,
		Until:   last,
	})
	if err != nil {
		appLog.Error("calendar: daily rule rejected; stepping manually", err, "month", first.Format("2006-01"))
		var out []time.Time
		for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
			out = append(out, d)
		}
		return out
	}
	return r.All()
}

// IndexWith maps ISO dates to the active requests on that date, preserving
// input order. Requests whose date n cannot read are left out.
func IndexWith(n *normalize.Normalizer, reqs []model.RosterRequest) map[string][]model.RosterRequest {
	out := make(map[string][]model.RosterRequest)
	for _, r := range reqs {
		if !normalize.IsActive(r.Status) {
			continue
		}
		key := n.ToISODate(r.Date)
		if key == "" {
			continue
		}
		out[key] = append(out[key], r)
	}
	return out
}
