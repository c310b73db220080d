package calendar

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	appLog "rostercal/internal/log"
)

// rolloverSpec fires at midnight on the first of every month.
const rolloverSpec = "@monthly"

// Tracker owns the reference month. Unless pinned, it shows the month after
// the current one and moves forward at every month rollover.
type Tracker struct {
	loc *time.Location
	now func() time.Time

	auto   atomic.Pointer[time.Time]
	pinned atomic.Pointer[time.Time]

	mu       sync.Mutex
	cron     *cron.Cron
	onChange func(time.Time)
}

// NewTracker creates a Tracker in loc. now may be nil to use time.Now.
func NewTracker(loc *time.Location, now func() time.Time) *Tracker {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	t := &Tracker{loc: loc, now: now}
	t.advance()
	return t
}

// OnChange registers fn to be called with the new reference month after
// every automatic rollover.
func (t *Tracker) OnChange(fn func(time.Time)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Reference returns the first day of the displayed month.
func (t *Tracker) Reference() time.Time {
	if p := t.pinned.Load(); p != nil {
		return *p
	}
	return *t.auto.Load()
}

// Pinned reports whether the reference month is fixed.
func (t *Tracker) Pinned() bool {
	return t.pinned.Load() != nil
}

// Pin fixes the reference month to the month containing ref.
func (t *Tracker) Pin(ref time.Time) {
	first := FirstOfMonth(ref.In(t.loc))
	t.pinned.Store(&first)
}

// Unpin resumes following the upcoming month.
func (t *Tracker) Unpin() {
	t.pinned.Store(nil)
	t.advance()
}

// Start schedules the monthly rollover. It is a no-op if already started.
func (t *Tracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cron != nil {
		return nil
	}

	c := cron.New(cron.WithLocation(t.loc))
	if _, err := c.AddFunc(rolloverSpec, t.rollover); err != nil {
		return err
	}
	c.Start()
	t.cron = c
	appLog.Info("calendar tracker started", "reference", t.Reference().Format("2006-01"), "pinned", t.Pinned())
	return nil
}

// Stop cancels the rollover schedule and waits for a running job.
func (t *Tracker) Stop() {
	t.mu.Lock()
	c := t.cron
	t.cron = nil
	t.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}

func (t *Tracker) rollover() {
	ref := t.advance()
	appLog.Info("calendar month rollover", "reference", ref.Format("2006-01"))

	t.mu.Lock()
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil && !t.Pinned() {
		fn(ref)
	}
}

// advance recomputes the automatic reference from the clock.
func (t *Tracker) advance() time.Time {
	ref := UpcomingMonth(t.now().In(t.loc))
	t.auto.Store(&ref)
	return ref
}
