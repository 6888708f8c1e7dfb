// Package reconcile drives the presence sync: on every tick it fetches the
// server's sessions, selects the one to show, derives its activity, and pushes
// it to the presence transport, or clears the presence when nothing plays.
//
// The [Loop] owns the only state carried between ticks, the last pushed
// activity. Failures are classified with the sentinel errors below, returned
// from [Loop.ReconcileOnce], and logged by [Loop.Run] without stopping.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tools.zach/dev/jellycord/internal/jellyfin"
	"tools.zach/dev/jellycord/internal/presence"
	"tools.zach/dev/jellycord/internal/render"
)

// ///////////////////////////////////////////////
// Sentinel Errors
// ///////////////////////////////////////////////

var (
	// ErrSourceUnavailable means the session fetch failed.
	ErrSourceUnavailable = errors.New("session source unavailable")
	// ErrTransportUnavailable means a push or clear failed.
	ErrTransportUnavailable = errors.New("presence transport unavailable")
	// ErrMalformedSession means the selected session lacks the fields needed
	// to describe it.
	ErrMalformedSession = errors.New("malformed session")
)

// ///////////////////////////////////////////////
// Collaborators
// ///////////////////////////////////////////////

// SessionSource lists the server's current playback sessions.
type SessionSource interface {
	ListSessions(ctx context.Context) ([]jellyfin.Session, error)
}

// Transport publishes presence to the display surface.
type Transport interface {
	Push(ctx context.Context, a *presence.Activity) error
	Clear(ctx context.Context) error
}

// Options configures a [Loop]. It can be replaced at runtime with
// [Loop.SetOptions].
type Options struct {
	// UserID is the server user whose sessions are shown.
	UserID string
	// Interval is the time between ticks in [Loop.Run].
	Interval time.Duration
	// Derive is passed to [presence.Derive]; its Now field is overwritten on
	// every tick.
	Derive presence.DeriveOptions
	// Hidden reports sessions that must never be shown. Nil hides nothing.
	Hidden func(jellyfin.Session) bool
	// Now returns the current time. Nil means [time.Now].
	Now func() time.Time
}

// ///////////////////////////////////////////////
// Loop
// ///////////////////////////////////////////////

// Loop reconciles server sessions with the presence surface.
type Loop struct {
	source    SessionSource
	transport Transport

	// mu protects opts, which config reloads replace from another goroutine.
	mu   sync.Mutex
	opts Options

	// last is the activity pushed on the previous tick, nil when nothing is
	// shown. Only the goroutine running ticks touches it.
	last *presence.Activity
	// lastHash is the hash of the last activity that was logged at Info.
	lastHash string
}

// New creates a loop over the given collaborators.
func New(source SessionSource, transport Transport, opts Options) *Loop {
	return &Loop{
		source:    source,
		transport: transport,
		opts:      opts,
	}
}

// SetOptions replaces the loop options. The change applies from the next tick.
func (l *Loop) SetOptions(opts Options) {
	l.mu.Lock()
	l.opts = opts
	l.mu.Unlock()
}

func (l *Loop) options() Options {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opts
}

// Last returns the activity pushed on the previous tick, or nil.
func (l *Loop) Last() *presence.Activity {
	return l.last
}

// ///////////////////////////////////////////////
// Tick
// ///////////////////////////////////////////////

// ReconcileOnce performs one fetch, select, derive, and push-or-clear cycle.
// A fetch failure counts as zero sessions, so an existing presence is cleared.
// The returned error wraps one or more of the sentinel errors; the loop state
// is always consistent afterwards.
func (l *Loop) ReconcileOnce(ctx context.Context) error {
	opts := l.options()

	var errs []error
	sessions, err := l.source.ListSessions(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrSourceUnavailable, err))
		sessions = nil
	}

	s, ok := presence.Select(visible(sessions, opts.Hidden), opts.UserID)
	if !ok {
		if err := l.clear(ctx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}

	if err := l.push(ctx, s, opts); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// clear removes the presence once after a push; it is a no-op otherwise. A
// failed clear keeps the slot so the next tick retries.
func (l *Loop) clear(ctx context.Context) error {
	if l.last == nil {
		return nil
	}
	if err := l.transport.Clear(ctx); err != nil {
		return fmt.Errorf("%w: clear: %w", ErrTransportUnavailable, err)
	}
	slog.Info("presence cleared", "previous", l.last.Details)
	l.last = nil
	l.lastHash = ""
	return nil
}

func (l *Loop) push(ctx context.Context, s jellyfin.Session, opts Options) error {
	item := s.NowPlayingItem
	if item.ID == "" && item.Name == "" {
		return fmt.Errorf("%w: session %s item has neither id nor name", ErrMalformedSession, s.ID)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	dopts := opts.Derive
	dopts.Now = now()

	a := presence.Derive(s, dopts)
	pushErr := l.transport.Push(ctx, a)
	l.last = a
	if pushErr != nil {
		return fmt.Errorf("%w: push: %w", ErrTransportUnavailable, pushErr)
	}

	device := "desktop"
	if presence.IsMobile(s) {
		device = "mobile"
	}
	level := slog.LevelDebug
	if h := a.Hash(); h != l.lastHash {
		level = slog.LevelInfo
		l.lastHash = h
	}
	attrs := []any{
		"details", a.Details,
		"state", a.State,
		"device", device,
	}
	if a.HasCountdown() {
		left := (a.Timestamps.End - dopts.Now.UnixMilli()) / 1000
		attrs = append(attrs, "remaining", render.FormatRemaining(left))
	}
	slog.Log(ctx, level, "presence updated", attrs...)
	return nil
}

// visible drops sessions hidden by the privacy filter.
func visible(sessions []jellyfin.Session, hidden func(jellyfin.Session) bool) []jellyfin.Session {
	if hidden == nil {
		return sessions
	}
	out := make([]jellyfin.Session, 0, len(sessions))
	for _, s := range sessions {
		if !hidden(s) {
			out = append(out, s)
		}
	}
	return out
}

// ///////////////////////////////////////////////
// Driver
// ///////////////////////////////////////////////

// Run ticks immediately and then every Options.Interval until ctx is
// cancelled. A receive on wake runs an extra tick right away. Ticks never
// overlap; errors are logged and the loop continues. An interval changed via
// [Loop.SetOptions] takes effect after the next tick.
func (l *Loop) Run(ctx context.Context, wake <-chan struct{}) {
	interval := l.options().Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tick := func() {
		if err := l.ReconcileOnce(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("reconcile failed", "error", err)
		}
		if next := l.options().Interval; next > 0 && next != interval {
			slog.Info("poll interval changed", "from", interval, "to", next)
			interval = next
			ticker.Reset(interval)
		}
	}

	tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
			tick()
		case <-ticker.C:
			tick()
		}
	}
}
