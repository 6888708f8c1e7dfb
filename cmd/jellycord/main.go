// Package main implements the Jellycord daemon, which polls a Jellyfin server
// for the configured user's playback and mirrors it as Discord Rich Presence.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	rootpkg "tools.zach/dev/jellycord"
	"tools.zach/dev/jellycord/internal/config"
	"tools.zach/dev/jellycord/internal/discord"
	"tools.zach/dev/jellycord/internal/jellyfin"
	"tools.zach/dev/jellycord/internal/logger"
	"tools.zach/dev/jellycord/internal/paths"
	"tools.zach/dev/jellycord/internal/presence"
	"tools.zach/dev/jellycord/internal/reconcile"
	"tools.zach/dev/jellycord/internal/update"
	"tools.zach/dev/jellycord/internal/watch"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//   - goreleaser: -X main.version={{.Version}}  -> "0.1.0"
//   - make build: -X main.version=$(VERSION)    -> "0.0.0-dev+05ffee5"
//
// When ldflags are not set (bare go build), resolveVersion reads the VCS info
// that Go embeds automatically.
var version = "dev"

// resolveVersion returns the build version string. If [version] was set via
// ldflags it is returned as-is; otherwise the embedded VCS revision is used to
// construct a "dev+<hash>" tag.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// PID Management
// ///////////////////////////////////////////////

// pidToken generates a random 16-character hex token used to prove ownership
// of the PID file, so [removePID] only deletes the file if this instance wrote it.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePID creates or opens the PID file, acquires an advisory lock, and
// writes "PID:TOKEN". The returned handle must stay open for the lifetime of
// the daemon to hold the lock; pass it to [removePID] on shutdown.
func writePID(dp DataPaths, token string) (*os.File, error) {
	f, err := os.OpenFile(dp.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	fail := func(step string, err error) (*os.File, error) {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("%s PID file: %w", step, err)
	}
	if err := f.Truncate(0); err != nil {
		return fail("truncate", err)
	}
	if _, err := fmt.Fprintf(f, "%d:%s", os.Getpid(), token); err != nil {
		return fail("write", err)
	}
	return f, nil
}

// removePID releases the lock, closes f, and removes the PID file only if it
// still holds token.
func removePID(dp DataPaths, token string, f *os.File) {
	if f != nil {
		_ = unlockFile(f)
		f.Close()
	}
	data, err := os.ReadFile(dp.PID())
	if err != nil {
		return
	}
	if _, owner, ok := strings.Cut(string(data), ":"); ok && owner == token {
		os.Remove(dp.PID())
	}
}

// checkStalePID reports whether another daemon holds the PID file lock. A
// file left behind by a dead instance is removed.
func checkStalePID(dp DataPaths) (alive bool, pid int) {
	f, err := os.OpenFile(dp.PID(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := lockFile(f); lockErr != nil {
		data, _ := os.ReadFile(dp.PID())
		f.Close()
		head, _, _ := strings.Cut(string(data), ":")
		if p, convErr := strconv.Atoi(head); convErr == nil {
			return true, p
		}
		return true, 0
	}

	_ = unlockFile(f)
	f.Close()
	os.Remove(dp.PID())
	return false, 0
}

// ///////////////////////////////////////////////
// Config Loading
// ///////////////////////////////////////////////

// ensureDefaultConfig writes the embedded example config on first run.
func ensureDefaultConfig(dp DataPaths) error {
	if _, err := os.Stat(dp.Config()); !errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return os.WriteFile(dp.Config(), rootpkg.DefaultConfigTOML, 0o600)
}

// loadConfig loads config.toml and applies environment overrides.
func loadConfig(dp DataPaths, getenv func(string) string) (*config.Config, []string, error) {
	cfg, err := config.Load(dp.Root)
	if err != nil {
		return nil, nil, err
	}
	applied, err := cfg.ApplyEnv(getenv)
	if err != nil {
		return nil, nil, fmt.Errorf("environment: %w", err)
	}
	return cfg, applied, nil
}

// persistDeviceID stores id in config.toml without writing environment
// overrides back to the file.
func persistDeviceID(dp DataPaths, id string) error {
	fileCfg, err := config.Load(dp.Root)
	if err != nil {
		return err
	}
	fileCfg.Jellyfin.DeviceID = id
	return fileCfg.Save(dp.Config())
}

// loopOptions maps the config onto the reconcile loop.
func loopOptions(cfg *config.Config, images presence.ImageResolver) reconcile.Options {
	return reconcile.Options{
		UserID:   cfg.Jellyfin.UserID,
		Interval: cfg.PollInterval(),
		Derive: presence.DeriveOptions{
			Images:      images,
			PlayingIcon: cfg.Display.PlayingIcon,
			PausedIcon:  cfg.Display.PausedIcon,
			LastFMUser:  cfg.Display.LastFMUsername,
			ShowArtwork: cfg.Display.ShowArtwork,
			ShowButtons: cfg.Display.ShowButtons,
		},
		Hidden: func(s jellyfin.Session) bool {
			var path string
			if s.NowPlayingItem != nil {
				path = s.NowPlayingItem.Path
			}
			return cfg.Hidden(path, s.DeviceName)
		},
	}
}

// newJellyfinClient builds the server client from cfg.
func newJellyfinClient(cfg *config.Config, ver string) *jellyfin.Client {
	return jellyfin.NewClient(jellyfin.Options{
		BaseURL:  cfg.Jellyfin.ServerURL,
		APIKey:   cfg.Jellyfin.APIKey,
		DeviceID: cfg.Jellyfin.DeviceID,
		Version:  ver,
		Timeout:  cfg.RequestTimeout(),
		RetryMax: 2,
	})
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	dataDir := flag.String("data-dir", paths.Default().Root, "Data directory for config, PID file, and logs")
	listUsers := flag.Bool("list-users", false, "Print the server's users and active sessions, then exit")
	foreground := flag.Bool("foreground", false, "Also write log output to stderr")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	ver := resolveVersion()
	if *showVersion {
		fmt.Println(paths.BinaryName, ver)
		return
	}

	dp := DataPaths{Root: *dataDir}
	if err := os.MkdirAll(dp.Root, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: create data dir: %v\n", err)
		os.Exit(1)
	}

	if *listUsers {
		if err := runListUsers(dp, ver, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	os.Exit(runDaemon(dp, ver, *foreground))
}

// runDaemon starts the daemon and blocks until a shutdown signal. It returns
// the process exit code.
func runDaemon(dp DataPaths, ver string, foreground bool) int {
	if alive, pid := checkStalePID(dp); alive {
		fmt.Fprintf(os.Stderr, "daemon already running (pid %d)\n", pid)
		return 1
	}

	if err := ensureDefaultConfig(dp); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write default config: %v\n", err)
	}

	cfg, applied, err := loadConfig(dp, os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: load config: %v\n", err)
		return 1
	}

	var level slog.LevelVar
	level.Set(logger.ParseLevel(cfg.Log.Level))
	var console io.Writer
	if foreground {
		console = os.Stderr
	}
	log, logCloser, err := logger.New(logger.Options{
		Path:      dp.Log(),
		Level:     &level,
		MaxSizeMB: cfg.Log.MaxSizeMB,
		Console:   console,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: init logger: %v\n", err)
		return 1
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("jellycord starting", "version", ver, "data_dir", dp.Root)
	if len(applied) > 0 {
		slog.Info("environment overrides applied", "keys", strings.Join(applied, " "))
	}

	if err := cfg.RequireCredentials(); err != nil {
		logger.Fail(log, "configuration incomplete", "error", err, "config", dp.Config())
		fmt.Fprintf(os.Stderr, "fatal: %v\nedit %s or set the environment variables\n", err, dp.Config())
		return 1
	}
	if cfg.EnsureDeviceID() {
		if err := persistDeviceID(dp, cfg.Jellyfin.DeviceID); err != nil {
			slog.Warn("failed to save device id", "error", err)
		}
	}

	ctx, stop := signalContext(context.Background())
	defer stop()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("update check panic", "error", r)
			}
		}()
		update.Check(ctx, ver)
	}()

	token := pidToken()
	pidFile, err := writePID(dp, token)
	if err != nil {
		slog.Error("failed to write PID file", "error", err)
		return 1
	}
	defer removePID(dp, token, pidFile)

	jf := newJellyfinClient(cfg, ver)
	diagnose(ctx, jf, cfg)

	client := discord.NewClient(cfg.Discord.AppID)
	if err := connectWithRetry(ctx, client, cfg.ReconnectInterval()); err != nil {
		slog.Error("failed to connect to Discord", "error", err)
		return 1
	}
	defer client.Close()
	slog.Info("connected to Discord", "user", client.User())

	loop := reconcile.New(jf, &discordTransport{client: client}, loopOptions(cfg, jf))

	watcher := watch.New(dp.Config())
	defer watcher.Close()
	if watcher.Polling() {
		slog.Info("using polling mode for config watching")
	}

	wake := make(chan struct{}, 1)
	go watchConfig(ctx, watcher, dp, cfg, loop, jf, &level, wake)

	loop.Run(ctx, wake)
	slog.Info("received shutdown signal")
	return 0
}

// ///////////////////////////////////////////////
// Hot Reload
// ///////////////////////////////////////////////

// watchConfig reloads config.toml on change and applies it to the loop. An
// invalid file is logged and the previous config stays in effect. Settings
// that need new connections are only reported.
func watchConfig(
	ctx context.Context,
	watcher *watch.Watcher,
	dp DataPaths,
	current *config.Config,
	loop *reconcile.Loop,
	images presence.ImageResolver,
	level *slog.LevelVar,
	wake chan<- struct{},
) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-watcher.Events():
		}

		next, _, err := loadConfig(dp, os.Getenv)
		if err == nil {
			err = next.RequireCredentials()
		}
		if err != nil {
			slog.Warn("config reload rejected, keeping previous config", "error", err)
			continue
		}

		if restart := restartRequired(current, next); len(restart) > 0 {
			slog.Warn("config changes need a restart to apply", "keys", strings.Join(restart, " "))
		}
		level.Set(logger.ParseLevel(next.Log.Level))
		loop.SetOptions(loopOptions(next, images))
		current = next
		slog.Info("config reloaded")

		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

// restartRequired lists changed settings that are bound at startup.
func restartRequired(old, next *config.Config) []string {
	var keys []string
	if old.Discord.AppID != next.Discord.AppID {
		keys = append(keys, "discord.app_id")
	}
	if old.Jellyfin.ServerURL != next.Jellyfin.ServerURL {
		keys = append(keys, "jellyfin.server_url")
	}
	if old.Jellyfin.APIKey != next.Jellyfin.APIKey {
		keys = append(keys, "jellyfin.api_key")
	}
	if old.Behavior.RequestTimeoutSeconds != next.Behavior.RequestTimeoutSeconds {
		keys = append(keys, "behavior.request_timeout_seconds")
	}
	if old.Log.MaxSizeMB != next.Log.MaxSizeMB {
		keys = append(keys, "log.max_size_mb")
	}
	return keys
}

// ///////////////////////////////////////////////
// Diagnostics
// ///////////////////////////////////////////////

// sessionLister is the subset of [jellyfin.Client] used by [diagnose].
type sessionLister interface {
	ListSessions(ctx context.Context) ([]jellyfin.Session, error)
	BaseURL() string
}

// diagnose fetches sessions once and logs why nothing might show up: an id
// that does not look like a server user id, or sessions that all belong to
// other users. It never fails startup.
func diagnose(ctx context.Context, jf sessionLister, cfg *config.Config) {
	if !cfg.UserIDLooksValid() {
		slog.Warn("jellyfin.user_id does not look like a server user id; run with -list-users to find it",
			"user_id", cfg.Jellyfin.UserID)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout())
	defer cancel()
	sessions, err := jf.ListSessions(ctx)
	if err != nil {
		slog.Warn("cannot reach Jellyfin server", "url", jf.BaseURL(), "error", err)
		return
	}

	mine, seen := 0, map[string]bool{}
	var others []string
	for _, s := range sessions {
		if strings.EqualFold(s.UserID, cfg.Jellyfin.UserID) {
			mine++
			continue
		}
		if s.UserID != "" && !seen[s.UserID] {
			seen[s.UserID] = true
			others = append(others, s.UserID)
		}
	}
	slog.Info("connected to Jellyfin", "url", jf.BaseURL(), "sessions", len(sessions), "user_sessions", mine)
	if mine == 0 && len(others) > 0 {
		slog.Warn("no sessions for the configured user", "user_id", cfg.Jellyfin.UserID, "seen_user_ids", strings.Join(others, " "))
	}
}

// runListUsers prints the server's users and active sessions with their ids.
func runListUsers(dp DataPaths, ver string, out io.Writer) error {
	cfg, _, err := loadConfig(dp, os.Getenv)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Jellyfin.APIKey == "" {
		return errors.New("jellyfin.api_key (JELLYFIN_API_KEY) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.RequestTimeout())
	defer cancel()
	return listUsers(ctx, newJellyfinClient(cfg, ver), out)
}

// userLister is the subset of [jellyfin.Client] used by -list-users.
type userLister interface {
	ListUsers(ctx context.Context) ([]jellyfin.User, error)
	ListSessions(ctx context.Context) ([]jellyfin.Session, error)
}

func listUsers(ctx context.Context, jf userLister, out io.Writer) error {
	users, err := jf.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	fmt.Fprintln(out, "Users:")
	for _, u := range users {
		fmt.Fprintf(out, "  %s  %s\n", u.ID, u.Name)
	}

	sessions, err := jf.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	fmt.Fprintln(out, "\nSessions:")
	if len(sessions) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, s := range sessions {
		playing := "idle"
		if !s.Idle() {
			playing = s.NowPlayingItem.Name
		}
		fmt.Fprintf(out, "  %s  %s on %s (%s): %s\n", s.UserID, s.UserName, s.DeviceName, s.Client, playing)
	}
	return nil
}

// ///////////////////////////////////////////////
// Connect with Retry
// ///////////////////////////////////////////////

// connectAttempts bounds the startup connection attempts.
const connectAttempts = 10

// connectWithRetry attempts to connect up to [connectAttempts] times, waiting
// interval between failures. It stops early when ctx is cancelled.
func connectWithRetry(ctx context.Context, client connector, interval time.Duration) error {
	var err error
	for i := range connectAttempts {
		if err = client.Connect(); err == nil {
			return nil
		}
		slog.Warn("Discord connect attempt failed", "attempt", i+1, "error", err)
		if i == connectAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("failed to connect after %d attempts: %w", connectAttempts, err)
}
