package calendar

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"rostercal/internal/model"
	"rostercal/internal/normalize"
)

const icsProductID = "-//rostercal//Roster Requests//EN"

// ICSOptions controls the iCalendar export.
type ICSOptions struct {
	// Name is the calendar display name (X-WR-CALNAME).
	Name string
	// Now stamps events without a usable submission timestamp.
	Now time.Time
	// Normalizer reads request dates; nil uses the package default.
	Normalizer *normalize.Normalizer
}

// WriteICS exports the active requests with a readable date as all-day
// events.
func WriteICS(w io.Writer, reqs []model.RosterRequest, opts ICSOptions) error {
	n := opts.Normalizer
	if n == nil {
		n = normalize.Default()
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, r := range reqs {
		if !normalize.IsActive(r.Status) {
			continue
		}
		day, ok := n.ParseDate(r.Date)
		if !ok {
			continue
		}
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

		ev := cal.AddEvent(eventUID(r))
		stamp := now
		if ts, ok := n.ParseDate(r.Timestamp); ok {
			stamp = ts
		}
		ev.SetDtStampTime(stamp.UTC())
		ev.SetAllDayStartAt(start)
		ev.SetAllDayEndAt(start.AddDate(0, 0, 1))
		ev.SetSummary(eventSummary(r))
		if c := strings.TrimSpace(r.Comment); c != "" {
			ev.SetDescription(c)
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}

func eventSummary(r model.RosterRequest) string {
	label := strings.TrimSpace(r.Request)
	if label == "" {
		label = "N/A"
	}
	if name := strings.TrimSpace(r.Name); name != "" {
		return label + " • " + name
	}
	return label
}

// eventUID is stable across exports so subscribers update rather than
// duplicate events.
func eventUID(r model.RosterRequest) string {
	if r.ID != "" {
		return "rostercal-" + r.ID
	}
	sum := sha256.Sum256([]byte(normalize.NormalizeForComparison(r.Name) + "|" + r.Date + "|" + r.Request))
	return "rostercal-" + hex.EncodeToString(sum[:8])
}
