package roster

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	appLog "rostercal/internal/log"
	"rostercal/internal/model"
	"rostercal/internal/normalize"
)

// Requests returns every request, active or not, in API order.
func (c *Controller) Requests() []model.RosterRequest {
	return c.State().Requests
}

// ActiveRequests returns the requests whose status is "active".
func (c *Controller) ActiveRequests() []model.RosterRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.RosterRequest, 0, len(c.sync.Requests))
	for _, r := range c.sync.Requests {
		if normalize.IsActive(r.Status) {
			out = append(out, r)
		}
	}
	return out
}

// ActiveFor returns name's active requests sorted by date. Requests with an
// unreadable date go last, keeping their relative order.
func (c *Controller) ActiveFor(name string) []model.RosterRequest {
	key := normalize.NormalizeForComparison(name)
	if key == "" {
		return []model.RosterRequest{}
	}

	out := make([]model.RosterRequest, 0)
	for _, r := range c.ActiveRequests() {
		if normalize.NormalizeForComparison(r.Name) == key {
			out = append(out, r)
		}
	}

	slices.SortStableFunc(out, func(a, b model.RosterRequest) int {
		ta, okA := c.norm.ParseDate(a.Date)
		tb, okB := c.norm.ParseDate(b.Date)
		switch {
		case okA && okB:
			return ta.Compare(tb)
		case okA:
			return -1
		case okB:
			return 1
		}
		return 0
	})
	return out
}

// Names returns the selectable names: the team roster when it has loaded
// with at least one member, otherwise the distinct names seen in requests.
func (c *Controller) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.namesLocked()
}

// SortedNames returns Names ordered for display using the configured
// locale's collation.
func (c *Controller) SortedNames() []string {
	names := c.Names()
	coll := collate.New(language.Make(c.opts.Locale), collate.IgnoreCase)
	coll.SortStrings(names)
	return names
}

func (c *Controller) namesLocked() []string {
	if len(c.team.Members) > 0 {
		return slices.Clone(c.team.Members)
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, r := range c.sync.Requests {
		n := strings.TrimSpace(r.Name)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Selected returns the selected person's name, or "".
func (c *Controller) Selected() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selected
}

// Select makes name the selected person. It reports whether the selection
// survived validation against the current roster; an unknown name leaves
// the selection empty.
func (c *Controller) Select(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = name
	c.revalidateSelectionLocked()
	return c.selected != "" || name == ""
}

// Editing returns a copy of the request being edited, or nil.
func (c *Controller) Editing() *model.RosterRequest {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.editing == nil {
		return nil
	}
	e := *c.editing
	return &e
}

// SetEditing marks r as the request being edited; nil clears it.
func (c *Controller) SetEditing(r *model.RosterRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r == nil {
		c.editing = nil
		return
	}
	e := *r
	c.editing = &e
}

// revalidateSelectionLocked clears a selection whose normalized name is no
// longer among the selectable names. Callers hold c.mu.
func (c *Controller) revalidateSelectionLocked() {
	if c.selected == "" {
		return
	}
	for _, n := range c.namesLocked() {
		if normalize.SameName(n, c.selected) {
			return
		}
	}
	appLog.Debug("selection cleared: name left the roster", "name", c.selected)
	c.selected = ""
	c.editing = nil
}
