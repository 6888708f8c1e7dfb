// Package watch reports changes to a single file, such as config.toml.
//
// The parent directory is watched rather than the file, so editors and
// atomic saves that replace the file through a rename are still seen. When
// fsnotify is unavailable or fails, the watcher falls back to polling the
// file's size and modification time.
package watch

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is the stat interval used in polling mode.
const DefaultPollInterval = 2 * time.Second

// ///////////////////////////////////////////////
// Watcher
// ///////////////////////////////////////////////

// Watcher monitors one file for changes.
type Watcher struct {
	path string
	// events is buffered to 1 so back-to-back writes coalesce.
	events       chan struct{}
	done         chan struct{}
	wg           sync.WaitGroup
	once         sync.Once
	polling      atomic.Bool
	pollInterval time.Duration
}

// Option configures a [Watcher].
type Option func(*Watcher)

// WithPollInterval sets the polling-mode stat interval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// ForcePolling skips fsnotify entirely.
func ForcePolling() Option {
	return func(w *Watcher) { w.polling.Store(true) }
}

// New starts watching path. The file does not need to exist yet; its
// directory does when fsnotify is used, otherwise New falls back to polling.
func New(path string, opts ...Option) *Watcher {
	w := &Watcher{
		path:         filepath.Clean(path),
		events:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}

	// Writes after New returns must differ from this stamp.
	base := w.stat()

	w.wg.Add(1)
	if w.polling.Load() {
		go w.poll(base)
		return w
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Info("fsnotify unavailable, falling back to polling", "error", err)
		w.polling.Store(true)
		go w.poll(base)
		return w
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		slog.Info("cannot watch directory, falling back to polling", "path", filepath.Dir(w.path), "error", err)
		fsw.Close()
		w.polling.Store(true)
		go w.poll(base)
		return w
	}

	go w.watch(fsw, base)
	return w
}

// Events returns a channel that receives a signal when the file changes.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Polling reports whether the watcher is using polling instead of fsnotify.
func (w *Watcher) Polling() bool {
	return w.polling.Load()
}

// Close stops the watcher and waits for its goroutine to exit. It is safe to
// call more than once.
func (w *Watcher) Close() error {
	w.once.Do(func() { close(w.done) })
	w.wg.Wait()
	return nil
}

// ///////////////////////////////////////////////
// Event Loops
// ///////////////////////////////////////////////

// relevant reports whether an fsnotify event changes the watched file.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// watch forwards fsnotify events for the file. On a watcher error it closes
// fsw and continues in polling mode from the last stamp it saw.
func (w *Watcher) watch(fsw *fsnotify.Watcher, last stamp) {
	for {
		select {
		case <-w.done:
			fsw.Close()
			w.wg.Done()
			return
		case event, ok := <-fsw.Events:
			if !ok {
				w.wg.Done()
				return
			}
			if w.relevant(event) {
				last = w.stat()
				w.notify()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				w.wg.Done()
				return
			}
			slog.Info("fsnotify error, switching to polling", "error", err)
			fsw.Close()
			w.polling.Store(true)
			w.poll(last)
			return
		}
	}
}

// stamp identifies one version of the file.
type stamp struct {
	mod  time.Time
	size int64
	ok   bool
}

func (s stamp) same(o stamp) bool {
	return s.ok == o.ok && s.size == o.size && s.mod.Equal(o.mod)
}

func (w *Watcher) stat() stamp {
	info, err := os.Stat(w.path)
	if err != nil {
		return stamp{}
	}
	return stamp{mod: info.ModTime(), size: info.Size(), ok: true}
}

// poll stats the file every pollInterval and signals when it differs from
// last: it appeared, or its size or modification time changed.
func (w *Watcher) poll(last stamp) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			cur := w.stat()
			if !cur.ok {
				last = cur
				continue
			}
			if !cur.same(last) {
				last = cur
				w.notify()
			}
		}
	}
}

// notify sends a single signal to the events channel. If a signal is already
// pending the call is a no-op.
func (w *Watcher) notify() {
	select {
	case w.events <- struct{}{}:
	default:
	}
}
