package reconcile

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"tools.zach/dev/jellycord/internal/jellyfin"
	"tools.zach/dev/jellycord/internal/logger"
	"tools.zach/dev/jellycord/internal/presence"
)

// ///////////////////////////////////////////////
// Fakes
// ///////////////////////////////////////////////

type fakeSource struct {
	sessions []jellyfin.Session
	err      error
	calls    int
}

func (f *fakeSource) ListSessions(context.Context) ([]jellyfin.Session, error) {
	f.calls++
	return f.sessions, f.err
}

type fakeTransport struct {
	mu       sync.Mutex
	pushed   []*presence.Activity
	clears   int
	pushErr  error
	clearErr error
}

func (f *fakeTransport) Push(_ context.Context, a *presence.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, a)
	return f.pushErr
}

func (f *fakeTransport) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return f.clearErr
}

func (f *fakeTransport) counts() (pushes, clears int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushed), f.clears
}

func movieSession(user, device string) jellyfin.Session {
	return jellyfin.Session{
		ID:             "s-" + device,
		UserID:         user,
		DeviceName:     device,
		Client:         "Jellyfin Web",
		NowPlayingItem: &jellyfin.MediaItem{ID: "m1", Name: "Heat", Type: jellyfin.TypeMovie, Path: "/media/movies/heat.mkv"},
		PlayState:      &jellyfin.PlayState{},
	}
}

func ptr[T any](v T) *T { return &v }

func newLoop(src SessionSource, tr Transport) *Loop {
	return New(src, tr, Options{
		UserID: "u1",
		Now:    func() time.Time { return time.UnixMilli(1_700_000_000_000) },
	})
}

// ///////////////////////////////////////////////
// ReconcileOnce
// ///////////////////////////////////////////////

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(logger.NewHandler(&buf, logger.LevelTrace)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestReconcileOnce_LogsTimeRemaining(t *testing.T) {
	tests := []struct {
		name    string
		state   *jellyfin.PlayState
		want    string
		notWant string
	}{
		{"playing", &jellyfin.PlayState{PositionTicks: ptr(int64(600 * jellyfin.TicksPerSecond))}, `remaining="1h 50m left"`, ""},
		{"paused", &jellyfin.PlayState{IsPaused: true, PositionTicks: ptr(int64(600 * jellyfin.TicksPerSecond))}, "presence updated", "remaining="},
		{"unknown position", &jellyfin.PlayState{}, "presence updated", "remaining="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			s := movieSession("u1", "Desktop")
			s.NowPlayingItem.RunTimeTicks = ptr(int64(7200 * jellyfin.TicksPerSecond))
			s.PlayState = tt.state

			l := newLoop(&fakeSource{sessions: []jellyfin.Session{s}}, &fakeTransport{})
			if err := l.ReconcileOnce(context.Background()); err != nil {
				t.Fatalf("ReconcileOnce: %v", err)
			}
			out := buf.String()
			if !strings.Contains(out, tt.want) {
				t.Errorf("log missing %q:\n%s", tt.want, out)
			}
			if tt.notWant != "" && strings.Contains(out, tt.notWant) {
				t.Errorf("log unexpectedly contains %q:\n%s", tt.notWant, out)
			}
		})
	}
}

func TestReconcileOnce_PushesSelectedSession(t *testing.T) {
	src := &fakeSource{sessions: []jellyfin.Session{movieSession("other", "TV"), movieSession("U1", "Desktop")}}
	tr := &fakeTransport{}
	l := newLoop(src, tr)

	if err := l.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("ReconcileOnce: %v", err)
	}
	if len(tr.pushed) != 1 {
		t.Fatalf("pushes = %d, want 1", len(tr.pushed))
	}
	if tr.pushed[0].Details != "Heat" {
		t.Errorf("pushed Details = %q, want Heat", tr.pushed[0].Details)
	}
	if l.Last() != tr.pushed[0] {
		t.Error("last-pushed slot not set to the pushed activity")
	}
}

func TestReconcileOnce_PushesEveryTick(t *testing.T) {
	src := &fakeSource{sessions: []jellyfin.Session{movieSession("u1", "Desktop")}}
	tr := &fakeTransport{}
	l := newLoop(src, tr)

	for range 3 {
		if err := l.ReconcileOnce(context.Background()); err != nil {
			t.Fatalf("ReconcileOnce: %v", err)
		}
	}
	if pushes, clears := tr.counts(); pushes != 3 || clears != 0 {
		t.Errorf("pushes, clears = %d, %d; want 3, 0", pushes, clears)
	}
}

func TestReconcileOnce_ClearsExactlyOnceAfterPush(t *testing.T) {
	src := &fakeSource{sessions: []jellyfin.Session{movieSession("u1", "Desktop")}}
	tr := &fakeTransport{}
	l := newLoop(src, tr)

	if err := l.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("first tick: %v", err)
	}

	src.sessions = nil
	for range 3 {
		if err := l.ReconcileOnce(context.Background()); err != nil {
			t.Fatalf("idle tick: %v", err)
		}
	}
	if tr.clears != 1 {
		t.Errorf("clears = %d, want exactly 1", tr.clears)
	}
	if l.Last() != nil {
		t.Errorf("last-pushed slot = %+v, want nil", l.Last())
	}
}

func TestReconcileOnce_NoClearWithoutPriorPush(t *testing.T) {
	tr := &fakeTransport{}
	l := newLoop(&fakeSource{}, tr)
	if err := l.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("ReconcileOnce: %v", err)
	}
	if pushes, clears := tr.counts(); pushes != 0 || clears != 0 {
		t.Errorf("pushes, clears = %d, %d; want 0, 0", pushes, clears)
	}
}

// ///////////////////////////////////////////////
// Error Classification
// ///////////////////////////////////////////////

func TestReconcileOnce_SourceFailureClearsPresence(t *testing.T) {
	src := &fakeSource{sessions: []jellyfin.Session{movieSession("u1", "Desktop")}}
	tr := &fakeTransport{}
	l := newLoop(src, tr)
	_ = l.ReconcileOnce(context.Background())

	src.sessions, src.err = nil, errors.New("connection refused")
	err := l.ReconcileOnce(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
	if tr.clears != 1 || l.Last() != nil {
		t.Errorf("clears = %d, last = %v; want 1, nil", tr.clears, l.Last())
	}
}

func TestReconcileOnce_PushFailureStillRecordsLast(t *testing.T) {
	src := &fakeSource{sessions: []jellyfin.Session{movieSession("u1", "Desktop")}}
	tr := &fakeTransport{pushErr: errors.New("broken pipe")}
	l := newLoop(src, tr)

	err := l.ReconcileOnce(context.Background())
	if !errors.Is(err, ErrTransportUnavailable) {
		t.Fatalf("err = %v, want ErrTransportUnavailable", err)
	}
	if l.Last() == nil {
		t.Fatal("last-pushed slot empty after failed push")
	}

	// A later idle tick still clears the presence that may have been shown.
	src.sessions = nil
	tr.pushErr = nil
	if err := l.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("idle tick: %v", err)
	}
	if tr.clears != 1 {
		t.Errorf("clears = %d, want 1", tr.clears)
	}
}

func TestReconcileOnce_ClearFailureRetriesNextTick(t *testing.T) {
	src := &fakeSource{sessions: []jellyfin.Session{movieSession("u1", "Desktop")}}
	tr := &fakeTransport{}
	l := newLoop(src, tr)
	_ = l.ReconcileOnce(context.Background())

	src.sessions = nil
	tr.clearErr = errors.New("not connected")
	if err := l.ReconcileOnce(context.Background()); !errors.Is(err, ErrTransportUnavailable) {
		t.Fatalf("err = %v, want ErrTransportUnavailable", err)
	}
	if l.Last() == nil {
		t.Fatal("slot dropped after failed clear")
	}

	tr.clearErr = nil
	if err := l.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("retry tick: %v", err)
	}
	if tr.clears != 2 || l.Last() != nil {
		t.Errorf("clears = %d, last = %v; want 2, nil", tr.clears, l.Last())
	}
}

func TestReconcileOnce_MalformedSession(t *testing.T) {
	s := movieSession("u1", "Desktop")
	s.NowPlayingItem = &jellyfin.MediaItem{Type: jellyfin.TypeMovie}
	tr := &fakeTransport{}
	l := newLoop(&fakeSource{sessions: []jellyfin.Session{s}}, tr)

	if err := l.ReconcileOnce(context.Background()); !errors.Is(err, ErrMalformedSession) {
		t.Fatalf("err = %v, want ErrMalformedSession", err)
	}
	if len(tr.pushed) != 0 {
		t.Errorf("pushed %d activities for malformed session", len(tr.pushed))
	}
}

// ///////////////////////////////////////////////
// Options
// ///////////////////////////////////////////////

func TestReconcileOnce_HiddenSessionsSkipped(t *testing.T) {
	hiddenPhone := movieSession("u1", "Phone")
	hiddenPhone.Client = "Jellyfin Android"
	hiddenPhone.NowPlayingItem.Path = "/media/private/x.mkv"

	src := &fakeSource{sessions: []jellyfin.Session{hiddenPhone, movieSession("u1", "Desktop")}}
	tr := &fakeTransport{}
	l := New(src, tr, Options{
		UserID: "u1",
		Hidden: func(s jellyfin.Session) bool {
			return s.NowPlayingItem != nil && s.NowPlayingItem.Path == "/media/private/x.mkv"
		},
	})

	if err := l.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("ReconcileOnce: %v", err)
	}
	if len(tr.pushed) != 1 {
		t.Fatalf("pushes = %d, want 1", len(tr.pushed))
	}
	if got := tr.pushed[0].State; got != "" {
		t.Errorf("pushed the hidden mobile session (State %q)", got)
	}
}

func TestReconcileOnce_UsesInjectedClock(t *testing.T) {
	s := movieSession("u1", "Desktop")
	s.NowPlayingItem.RunTimeTicks = new(int64)
	*s.NowPlayingItem.RunTimeTicks = 100 * jellyfin.TicksPerSecond
	s.PlayState.PositionTicks = new(int64)
	*s.PlayState.PositionTicks = 40 * jellyfin.TicksPerSecond

	tr := &fakeTransport{}
	l := newLoop(&fakeSource{sessions: []jellyfin.Session{s}}, tr)
	if err := l.ReconcileOnce(context.Background()); err != nil {
		t.Fatalf("ReconcileOnce: %v", err)
	}
	got := tr.pushed[0].Timestamps
	want := presence.Timestamps{Start: 1_700_000_000_000 - 40_000, End: 1_700_000_000_000 + 60_000}
	if got != want {
		t.Errorf("Timestamps = %+v, want %+v", got, want)
	}
}

func TestSetOptions_SwitchesUser(t *testing.T) {
	src := &fakeSource{sessions: []jellyfin.Session{movieSession("u2", "Desktop")}}
	tr := &fakeTransport{}
	l := newLoop(src, tr)

	_ = l.ReconcileOnce(context.Background())
	if len(tr.pushed) != 0 {
		t.Fatal("pushed another user's session")
	}
	l.SetOptions(Options{UserID: "u2"})
	_ = l.ReconcileOnce(context.Background())
	if len(tr.pushed) != 1 {
		t.Errorf("pushes = %d after switching user, want 1", len(tr.pushed))
	}
}

// ///////////////////////////////////////////////
// Run
// ///////////////////////////////////////////////

func TestRun_TicksImmediatelyAndOnWake(t *testing.T) {
	src := &fakeSource{sessions: []jellyfin.Session{movieSession("u1", "Desktop")}}
	tr := &fakeTransport{}
	l := New(src, tr, Options{UserID: "u1", Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	wake := make(chan struct{})
	done := make(chan struct{})
	go func() {
		l.Run(ctx, wake)
		close(done)
	}()

	// The unbuffered send completes only once the first tick has finished.
	wake <- struct{}{}
	wake <- struct{}{}
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if pushes, _ := tr.counts(); pushes < 2 {
		t.Errorf("pushes = %d, want at least 2", pushes)
	}
}

func TestRun_ContinuesAfterErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("down")}
	tr := &fakeTransport{}
	l := New(src, tr, Options{UserID: "u1", Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	l.Run(ctx, nil)

	if src.calls < 2 {
		t.Errorf("source calls = %d, want the loop to keep ticking", src.calls)
	}
}
