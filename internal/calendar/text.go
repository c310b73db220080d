package calendar

import (
	"fmt"
	"io"
	"strings"
)

var weekdayHeader = [7]string{"Su", "Mo", "Tu", "We", "Th", "Fr", "Sa"}

// WriteText renders m as a plain-text grid followed by the requests of each
// day. Days carrying requests are marked with "*".
func WriteText(w io.Writer, m Month) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", m.Title)
	b.WriteString(strings.Join(weekdayHeader[:], " "))
	b.WriteString("\n")

	for _, week := range m.Weeks {
		var row strings.Builder
		for _, c := range week {
			switch {
			case c == nil:
				row.WriteString("   ")
			case len(c.Requests) > 0:
				fmt.Fprintf(&row, "%2d*", c.Day)
			default:
				fmt.Fprintf(&row, "%2d ", c.Day)
			}
		}
		b.WriteString(strings.TrimRight(row.String(), " "))
		b.WriteString("\n")
	}

	listed := false
	for _, c := range m.Days() {
		for _, r := range c.Requests {
			if !listed {
				b.WriteString("\n")
				listed = true
			}
			req := r.Request
			if req == "" {
				req = "N/A"
			}
			fmt.Fprintf(&b, "%s  %-6s %s", c.Date, req, strings.TrimSpace(r.Name))
			if cm := strings.TrimSpace(r.Comment); cm != "" {
				fmt.Fprintf(&b, " (%s)", cm)
			}
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
