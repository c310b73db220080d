package roster

import (
	"context"
	"fmt"
	"strings"

	appLog "rostercal/internal/log"
	"rostercal/internal/model"
	"rostercal/internal/normalize"
)

// Submit creates a new request from d, ignoring any ID, then re-fetches.
func (c *Controller) Submit(ctx context.Context, d model.Draft) error {
	d.ID = ""
	return c.save(ctx, d)
}

// Update overwrites the request identified by d.ID, then re-fetches. A
// draft without an ID is created instead. If only the re-fetch fails the
// write stands and the error wraps ErrReloadAfterWrite.
func (c *Controller) Update(ctx context.Context, d model.Draft) error {
	return c.save(ctx, d)
}

func (c *Controller) save(ctx context.Context, d model.Draft) error {
	p := c.payload(d)

	var err error
	if d.ID != "" {
		err = c.remote.Update(ctx, d.ID, p)
	} else {
		err = c.remote.Submit(ctx, p)
	}
	if err != nil {
		appLog.Error("roster save failed", err, "id", d.ID, "date", p.Date)
		c.setMutationError(errorMessage(err, saveFailure))
		return err
	}

	_, refreshErr := c.Refresh(ctx)

	c.mu.Lock()
	c.editing = nil
	c.mutationErr = ""
	if refreshErr != nil {
		c.mutationErr = saveReloadFailure
	}
	c.mu.Unlock()

	if refreshErr != nil {
		appLog.Error("roster refresh after save failed", refreshErr, "id", d.ID)
		return fmt.Errorf("%w: %w", ErrReloadAfterWrite, refreshErr)
	}
	appLog.Info("roster request saved", "id", d.ID, "date", p.Date, "request", p.Request)
	return nil
}

// payload normalizes a draft for the API: the date becomes ISO when it can
// be read (otherwise it is sent as typed), the weekday is derived from it
// and the comment is trimmed.
func (c *Controller) payload(d model.Draft) model.Payload {
	date := c.norm.ToISODate(d.Date)
	if date == "" {
		date = d.Date
	}
	day := ""
	if date != "" {
		day = c.norm.ToWeekdayName(date, c.opts.Locale)
	}
	return model.Payload{
		Name:    d.Name,
		Date:    date,
		Day:     day,
		Request: d.Request,
		Comment: strings.TrimSpace(d.Comment),
	}
}

// Delete removes r remotely and re-fetches. A request without an ID fails
// with ErrMissingID before any remote call. If r's person has no active
// request left and is the selected person, the selection is cleared.
func (c *Controller) Delete(ctx context.Context, r model.RosterRequest) error {
	if !r.HasID() {
		c.setMutationError("Missing request ID for deletion.")
		return ErrMissingID
	}

	if err := c.remote.Delete(ctx, r.ID); err != nil {
		appLog.Error("roster delete failed", err, "id", r.ID)
		c.setMutationError(errorMessage(err, deleteFailure))
		return err
	}

	updated, err := c.Refresh(ctx)
	if err != nil {
		appLog.Error("roster refresh after delete failed", err, "id", r.ID)
		c.mu.Lock()
		if c.editing != nil && c.editing.ID == r.ID {
			c.editing = nil
		}
		c.mutationErr = deleteReloadFailure
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrReloadAfterWrite, err)
	}

	remaining := 0
	for _, u := range updated {
		if normalize.SameName(u.Name, r.Name) && normalize.IsActive(u.Status) {
			remaining++
		}
	}

	c.mu.Lock()
	if remaining == 0 && c.selected != "" && normalize.SameName(c.selected, r.Name) {
		appLog.Info("selection cleared: no active requests left", "name", c.selected)
		c.selected = ""
		c.editing = nil
	}
	if c.editing != nil && c.editing.ID == r.ID {
		c.editing = nil
	}
	c.mutationErr = ""
	c.mu.Unlock()

	appLog.Info("roster request deleted", "id", r.ID, "remaining_active", remaining)
	return nil
}
