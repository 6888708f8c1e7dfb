// Package config loads the Jellycord configuration.
//
// Configuration lives in config.toml in the data directory. Values are
// decoded over [DefaultConfig], upgraded through the [migrate.Config]
// registry, optionally overridden from the environment with
// [Config.ApplyEnv], and checked with [Config.Validate].
package config

//go:generate go run ../../cmd/genconfig

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"tools.zach/dev/jellycord/internal/atomicfile"
	"tools.zach/dev/jellycord/internal/migrate"
	"tools.zach/dev/jellycord/internal/paths"
)

// DefaultServerURL is the address of a Jellyfin server on the same machine.
const DefaultServerURL = "http://localhost:8096"

// ErrMissingCredentials is returned by [Config.RequireCredentials].
var ErrMissingCredentials = errors.New("missing credentials")

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version used for migrations.
	Version int `toml:"version"`
	// Discord holds Discord connection settings.
	Discord DiscordConfig `toml:"discord"`
	// Jellyfin holds media server settings.
	Jellyfin JellyfinConfig `toml:"jellyfin"`
	// Display holds presence display settings.
	Display DisplayConfig `toml:"display"`
	// Privacy holds session-hiding rules.
	Privacy PrivacyConfig `toml:"privacy"`
	// Behavior holds timing settings.
	Behavior BehaviorConfig `toml:"behavior"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// DiscordConfig holds Discord connection settings.
type DiscordConfig struct {
	// AppID is the numeric Discord application ID for Rich Presence.
	AppID string `toml:"app_id"`
}

// JellyfinConfig holds media server settings.
type JellyfinConfig struct {
	// ServerURL is the server root, e.g. "http://localhost:8096".
	ServerURL string `toml:"server_url"`
	// APIKey is an API key created in the server dashboard.
	APIKey string `toml:"api_key"`
	// UserID is the id of the user whose playback is shown.
	UserID string `toml:"user_id"`
	// DeviceID identifies this daemon to the server. Generated when empty.
	DeviceID string `toml:"device_id"`
}

// DisplayConfig holds presence display settings.
type DisplayConfig struct {
	// ShowArtwork uses the server's poster art as the large image.
	ShowArtwork bool `toml:"show_artwork"`
	// ShowButtons adds Last.fm links to music.
	ShowButtons bool `toml:"show_buttons"`
	// PlayingIcon is the small image shown while playing.
	PlayingIcon string `toml:"playing_icon"`
	// PausedIcon is the small image shown while paused.
	PausedIcon string `toml:"paused_icon"`
	// LastFMUsername is linked from the listening history button.
	LastFMUsername string `toml:"lastfm_username"`
}

// PrivacyConfig holds rules for sessions that are never shown.
type PrivacyConfig struct {
	// IgnorePaths are glob patterns matched against the item's server path.
	IgnorePaths []string `toml:"ignore_paths"`
	// IgnoreDevices are glob patterns matched against the device name.
	IgnoreDevices []string `toml:"ignore_devices"`
}

// BehaviorConfig holds timing settings.
type BehaviorConfig struct {
	// PollIntervalSeconds is the time between session polls.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	// ReconnectIntervalSeconds is the wait between Discord connect attempts.
	ReconnectIntervalSeconds int `toml:"reconnect_interval_seconds"`
	// RequestTimeoutSeconds bounds each HTTP request to the server.
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with defaults. Credentials are
// left empty.
func DefaultConfig() *Config {
	return &Config{
		Version: migrate.Config.CurrentVersion,
		Jellyfin: JellyfinConfig{
			ServerURL: DefaultServerURL,
		},
		Display: DisplayConfig{
			ShowArtwork: true,
			ShowButtons: true,
		},
		Privacy: PrivacyConfig{
			IgnorePaths:   []string{},
			IgnoreDevices: []string{},
		},
		Behavior: BehaviorConfig{
			PollIntervalSeconds:      5,
			ReconnectIntervalSeconds: 15,
			RequestTimeoutSeconds:    10,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ExampleConfig returns the Config written to config.default.toml.
func ExampleConfig() *Config {
	return DefaultConfig()
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

// PeekVersion reads just the version field from raw TOML bytes.
// Returns 1 if the version field is missing or zero.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if err := toml.Unmarshal(data, &v); err != nil || v.Version == 0 {
		return 1
	}
	return v.Version
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads dataDir/config.toml, migrating it in place when it predates the
// current schema. A missing file yields [DefaultConfig].
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, paths.ConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return parse(path, data)
}

// parse decodes data read from path.
func parse(path string, data []byte) (*Config, error) {
	version := PeekVersion(data)
	migrated := migrate.Config.NeedsMigration(version)
	if migrated {
		if backupErr := os.WriteFile(path+".bak", data, 0o600); backupErr != nil {
			slog.Warn("failed to write config backup", "error", backupErr)
		}
		var err error
		data, _, err = migrate.Config.Run(data, version)
		if err != nil {
			return nil, fmt.Errorf("migrate config: %w", err)
		}
	}

	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for _, key := range md.Undecoded() {
		slog.Warn("unknown config key", "key", key.String())
	}
	cfg.Version = migrate.Config.CurrentVersion

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if migrated {
		if err := cfg.Save(path); err != nil {
			slog.Warn("failed to save migrated config", "error", err)
		}
	}
	return cfg, nil
}

// Save writes the config to path as TOML using an atomic file write. The
// file holds the API key, so it is readable by the owner only.
func (c *Config) Save(path string) error {
	return atomicfile.WriteFunc(path, 0o600, func(w io.Writer) error {
		if err := toml.NewEncoder(w).Encode(c); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		return nil
	})
}

// ///////////////////////////////////////////////
// Environment Overrides
// ///////////////////////////////////////////////

// envKeys maps environment variables to the config keys they override.
var envKeys = []struct {
	env   string
	key   string
	apply func(c *Config, v string) error
}{
	{"DISCORD_CLIENT_ID", "discord.app_id", func(c *Config, v string) error { c.Discord.AppID = v; return nil }},
	{"JELLYFIN_SERVER_URL", "jellyfin.server_url", func(c *Config, v string) error { c.Jellyfin.ServerURL = v; return nil }},
	{"JELLYFIN_API_KEY", "jellyfin.api_key", func(c *Config, v string) error { c.Jellyfin.APIKey = v; return nil }},
	{"JELLYFIN_USER_ID", "jellyfin.user_id", func(c *Config, v string) error { c.Jellyfin.UserID = v; return nil }},
	{"LASTFM_USERNAME", "display.lastfm_username", func(c *Config, v string) error { c.Display.LastFMUsername = v; return nil }},
	{"UPDATE_INTERVAL", "behavior.poll_interval_seconds", func(c *Config, v string) error {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return fmt.Errorf("UPDATE_INTERVAL must be a positive number of milliseconds, got %q", v)
		}
		c.Behavior.PollIntervalSeconds = msToSeconds(ms)
		return nil
	}},
}

// msToSeconds rounds a millisecond interval up to whole seconds.
func msToSeconds(ms int) int {
	return (ms + 999) / 1000
}

// ApplyEnv overrides config values from environment variables read through
// getenv. Empty variables are ignored. It returns the config keys that were
// overridden.
func (c *Config) ApplyEnv(getenv func(string) string) ([]string, error) {
	var applied []string
	for _, e := range envKeys {
		v := strings.TrimSpace(getenv(e.env))
		if v == "" {
			continue
		}
		if err := e.apply(c, v); err != nil {
			return applied, err
		}
		applied = append(applied, e.key)
	}
	return applied, c.Validate()
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that configuration values are well-formed and in range.
// Credentials may be empty; see [Config.RequireCredentials].
func (c *Config) Validate() error {
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}
	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}

	if c.Behavior.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll_interval_seconds must be > 0, got %d", c.Behavior.PollIntervalSeconds)
	}
	if c.Behavior.ReconnectIntervalSeconds <= 0 {
		return fmt.Errorf("reconnect_interval_seconds must be > 0, got %d", c.Behavior.ReconnectIntervalSeconds)
	}
	if c.Behavior.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be > 0, got %d", c.Behavior.RequestTimeoutSeconds)
	}

	u, err := url.Parse(c.Jellyfin.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid jellyfin.server_url %q: must be an http or https URL", c.Jellyfin.ServerURL)
	}

	for _, p := range slices.Concat(c.Privacy.IgnorePaths, c.Privacy.IgnoreDevices) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid privacy pattern %q", p)
		}
	}
	return nil
}

// RequireCredentials reports which settings the daemon cannot start
// without: the user id, the API key, and a numeric Discord application id.
func (c *Config) RequireCredentials() error {
	var missing []string
	if c.Jellyfin.UserID == "" {
		missing = append(missing, "jellyfin.user_id (JELLYFIN_USER_ID)")
	}
	if c.Jellyfin.APIKey == "" {
		missing = append(missing, "jellyfin.api_key (JELLYFIN_API_KEY)")
	}
	if c.Discord.AppID == "" {
		missing = append(missing, "discord.app_id (DISCORD_CLIENT_ID)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	if _, err := strconv.ParseUint(c.Discord.AppID, 10, 64); err != nil {
		return fmt.Errorf("invalid discord.app_id %q: must be the numeric application id", c.Discord.AppID)
	}
	return nil
}

// UserIDLooksValid reports whether the configured user id has the UUID
// shape the server uses. A mismatch is only worth a warning: some servers
// report ids without dashes.
func (c *Config) UserIDLooksValid() bool {
	_, err := uuid.Parse(c.Jellyfin.UserID)
	return err == nil
}

// EnsureDeviceID assigns a random device id when none is set and reports
// whether it did.
func (c *Config) EnsureDeviceID() bool {
	if c.Jellyfin.DeviceID != "" {
		return false
	}
	c.Jellyfin.DeviceID = uuid.NewString()
	return true
}

// ///////////////////////////////////////////////
// Derived Values
// ///////////////////////////////////////////////

// PollInterval returns the time between session polls.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Behavior.PollIntervalSeconds) * time.Second
}

// ReconnectInterval returns the wait between Discord connect attempts.
func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.Behavior.ReconnectIntervalSeconds) * time.Second
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Behavior.RequestTimeoutSeconds) * time.Second
}

// ///////////////////////////////////////////////
// Privacy Helpers
// ///////////////////////////////////////////////

// Hidden reports whether a session playing itemPath on device must never be
// shown. Backslashes in server paths are matched as forward slashes.
func (c *Config) Hidden(itemPath, device string) bool {
	if itemPath != "" && matchAny(c.Privacy.IgnorePaths, strings.ReplaceAll(itemPath, `\`, "/")) {
		return true
	}
	return device != "" && matchAny(c.Privacy.IgnoreDevices, device)
}

func matchAny(patterns []string, s string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, s)
		if err != nil {
			slog.Warn("invalid glob pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
