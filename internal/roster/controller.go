// Package roster keeps the in-memory view of the remote roster sheet.
//
// The Controller exclusively owns the request list, the team roster and the
// selection. Every state change replaces the whole SyncState or TeamState
// value under the lock, so readers never observe a partial update. Remote
// writes are always followed by a full re-fetch; nothing is patched locally.
package roster

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"rostercal/internal/adapter"
	appLog "rostercal/internal/log"
	"rostercal/internal/model"
	"rostercal/internal/normalize"
)

// DefaultPollInterval is the delay between a settled fetch and the next one.
const DefaultPollInterval = 60 * time.Second

const (
	refreshFailure = "Could not load roster data."
	teamFailure    = "Could not load team members."
	saveFailure    = "Unable to save request."
	deleteFailure  = "Unable to delete request."

	saveReloadFailure   = "Saved, but could not reload roster data."
	deleteReloadFailure = "Deleted, but could not reload roster data."
)

// ErrMissingID is returned when deleting a request that was never persisted.
var ErrMissingID = errors.New("missing request ID for deletion")

// ErrReloadAfterWrite means a remote write succeeded but the re-fetch that
// follows it did not. The write must not be retried.
var ErrReloadAfterWrite = errors.New("write succeeded but roster reload failed")

// Remote is the spreadsheet API as seen by the controller.
type Remote interface {
	FetchRequests(ctx context.Context) ([]byte, error)
	FetchTeamMembers(ctx context.Context) ([]byte, error)
	Submit(ctx context.Context, p model.Payload) error
	Update(ctx context.Context, id string, p model.Payload) error
	Delete(ctx context.Context, id string) error
}

// Phase is the lifecycle position of one remote resource.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	default:
		return "idle"
	}
}

// MarshalText renders the phase by name in JSON views.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText reads a phase name written by MarshalText.
func (p *Phase) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*p = PhaseIdle
	case "loading":
		*p = PhaseLoading
	case "ready":
		*p = PhaseReady
	case "error":
		*p = PhaseError
	default:
		return fmt.Errorf("roster: unknown phase %q", b)
	}
	return nil
}

// SyncState is the requests resource. On error the previous Requests are
// kept and LastError explains the failure until the next successful fetch.
type SyncState struct {
	Requests  []model.RosterRequest `json:"requests"`
	Loading   bool                  `json:"loading"`
	LastError string                `json:"last_error,omitempty"`
	Phase     Phase                 `json:"phase"`
	UpdatedAt time.Time             `json:"updated_at,omitempty"`
}

// TeamState is the team roster resource. Its error is reported separately
// from SyncState because the roster can fall back to request names.
type TeamState struct {
	Members   []string `json:"members"`
	Loading   bool     `json:"loading"`
	LastError string   `json:"last_error,omitempty"`
	Phase     Phase    `json:"phase"`
}

// Options configures a Controller.
type Options struct {
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
	// Locale is used for weekday names in saved requests and for sorting names.
	Locale string
	// Normalizer reads dates; nil uses normalize.Default().
	Normalizer *normalize.Normalizer
	// Now is the clock; nil uses time.Now.
	Now func() time.Time
}

// Controller synchronizes with the remote roster and derives views from it.
type Controller struct {
	remote Remote
	opts   Options
	norm   *normalize.Normalizer

	mu          sync.RWMutex
	sync        SyncState
	team        TeamState
	selected    string
	editing     *model.RosterRequest
	mutationErr string
}

// New creates a Controller. Nothing is fetched until Start or Refresh.
func New(remote Remote, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Locale == "" {
		opts.Locale = "en-US"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	norm := opts.Normalizer
	if norm == nil {
		norm = normalize.Default()
	}
	return &Controller{
		remote: remote,
		opts:   opts,
		norm:   norm,
		sync:   SyncState{Requests: []model.RosterRequest{}},
		team:   TeamState{Members: []string{}},
	}
}

// Session is a running poll loop plus the one-shot team fetch.
type Session struct {
	cancel context.CancelFunc
	eg     *errgroup.Group
	once   sync.Once
}

// Stop cancels the session and waits for its goroutines. Responses that
// arrive afterwards are discarded. Safe to call more than once.
func (s *Session) Stop() {
	s.once.Do(func() {
		s.cancel()
		_ = s.eg.Wait()
	})
}

// Start begins polling requests and loads the team roster once. The
// returned Session must be stopped on teardown; cancelling ctx also stops it.
func (c *Controller) Start(ctx context.Context) *Session {
	ctx, cancel := context.WithCancel(ctx)
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		c.pollLoop(egCtx)
		return nil
	})
	eg.Go(func() error {
		c.loadTeam(egCtx)
		return nil
	})

	appLog.Info("roster sync started", "poll_interval", c.opts.PollInterval.String())
	return &Session{cancel: cancel, eg: eg}
}

// pollLoop fetches immediately, then waits PollInterval after each settled
// fetch, so polls never overlap.
func (c *Controller) pollLoop(ctx context.Context) {
	for {
		c.poll(ctx)

		timer := time.NewTimer(c.opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			appLog.Debug("roster poll loop stopped")
			return
		case <-timer.C:
		}
	}
}

func (c *Controller) poll(ctx context.Context) {
	c.commitSync(ctx, func(s SyncState) SyncState {
		s.Loading = true
		s.Phase = PhaseLoading
		return s
	})

	reqs, err := c.fetchRequests(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		appLog.Error("roster poll failed", err)
		msg := errorMessage(err, refreshFailure)
		c.commitSync(ctx, func(s SyncState) SyncState {
			s.Loading = false
			s.Phase = PhaseError
			s.LastError = msg
			return s
		})
		return
	}

	c.commitSync(ctx, func(SyncState) SyncState {
		return c.readyState(reqs)
	})
	appLog.Debug("roster poll succeeded", "requests", len(reqs))
}

// Refresh re-fetches all requests and replaces the state. Its error is
// returned to the caller rather than recorded as a poll error.
func (c *Controller) Refresh(ctx context.Context) ([]model.RosterRequest, error) {
	reqs, err := c.fetchRequests(ctx)
	if err != nil {
		return nil, err
	}
	if !c.commitSync(ctx, func(SyncState) SyncState {
		return c.readyState(reqs)
	}) {
		return nil, ctx.Err()
	}
	return slices.Clone(reqs), nil
}

func (c *Controller) readyState(reqs []model.RosterRequest) SyncState {
	return SyncState{
		Requests:  reqs,
		Loading:   false,
		LastError: "",
		Phase:     PhaseReady,
		UpdatedAt: c.opts.Now(),
	}
}

func (c *Controller) fetchRequests(ctx context.Context) ([]model.RosterRequest, error) {
	raw, err := c.remote.FetchRequests(ctx)
	if err != nil {
		return nil, err
	}
	return adapter.Requests(raw), nil
}

func (c *Controller) loadTeam(ctx context.Context) {
	c.commitTeam(ctx, func(t TeamState) TeamState {
		t.Loading = true
		t.Phase = PhaseLoading
		t.LastError = ""
		return t
	})

	raw, err := c.remote.FetchTeamMembers(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		appLog.Error("team roster fetch failed; using names from requests", err)
		msg := errorMessage(err, teamFailure)
		c.commitTeam(ctx, func(t TeamState) TeamState {
			t.Loading = false
			t.Phase = PhaseError
			t.LastError = msg
			return t
		})
		return
	}

	members := adapter.TeamMembers(raw)
	c.commitTeam(ctx, func(TeamState) TeamState {
		return TeamState{Members: members, Phase: PhaseReady}
	})
	appLog.Info("team roster loaded", "members", len(members))
}

// commitSync replaces the sync state unless ctx is already cancelled. The
// check happens under the lock so a torn-down session cannot write.
func (c *Controller) commitSync(ctx context.Context, next func(SyncState) SyncState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	c.sync = next(c.sync)
	c.revalidateSelectionLocked()
	return true
}

func (c *Controller) commitTeam(ctx context.Context, next func(TeamState) TeamState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	c.team = next(c.team)
	c.revalidateSelectionLocked()
	return true
}

// State returns a snapshot of the requests resource.
func (c *Controller) State() SyncState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.sync
	s.Requests = slices.Clone(s.Requests)
	return s
}

// Team returns a snapshot of the team roster resource.
func (c *Controller) Team() TeamState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t := c.team
	t.Members = slices.Clone(t.Members)
	return t
}

// MutationError is the message of the last failed submit/update/delete, or
// "" once a later mutation succeeds.
func (c *Controller) MutationError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mutationErr
}

func (c *Controller) setMutationError(msg string) {
	c.mu.Lock()
	c.mutationErr = msg
	c.mu.Unlock()
}

// errorMessage turns err into the text shown to users.
func errorMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fallback
}
