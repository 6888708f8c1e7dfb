// Tests for the config package covering [Load] behavior (defaults, overrides,
// missing files, malformed input, migration), environment overrides
// ([Config.ApplyEnv]), credential checks ([Config.RequireCredentials]),
// privacy controls ([Config.Hidden]), validation ([Config.Validate]),
// serialization round-trips ([Config.Save]), and [ConfigDocs] completeness.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// ///////////////////////////////////////////////
// Load
// ///////////////////////////////////////////////

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		config  string // config file content
		noFile  bool   // if true, skip writing a config file
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:   "defaults from minimal config",
			config: "version = 2\n",
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if diff := cmp.Diff(DefaultConfig(), cfg, cmpopts.EquateEmpty()); diff != "" {
					t.Errorf("config mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "user overrides applied",
			config: `
version = 2

[discord]
app_id = "9999999999"

[jellyfin]
server_url = "https://media.example.com"
api_key = "secret"
user_id = "5f1c6d0e8a3b4c2d9e7f1a2b3c4d5e6f"

[behavior]
poll_interval_seconds = 10
`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Discord.AppID != "9999999999" {
					t.Errorf("AppID = %q, want %q", cfg.Discord.AppID, "9999999999")
				}
				if cfg.Jellyfin.ServerURL != "https://media.example.com" {
					t.Errorf("ServerURL = %q", cfg.Jellyfin.ServerURL)
				}
				if cfg.Jellyfin.APIKey != "secret" {
					t.Errorf("APIKey = %q", cfg.Jellyfin.APIKey)
				}
				if cfg.Behavior.PollIntervalSeconds != 10 {
					t.Errorf("PollIntervalSeconds = %d, want 10", cfg.Behavior.PollIntervalSeconds)
				}
			},
		},
		{
			name: "partial override preserves other defaults",
			config: `
version = 2

[display]
show_buttons = false
`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Display.ShowButtons {
					t.Error("ShowButtons = true, want false")
				}
				if !cfg.Display.ShowArtwork {
					t.Error("ShowArtwork = false, want default true")
				}
				if cfg.Jellyfin.ServerURL != DefaultServerURL {
					t.Errorf("ServerURL = %q, want default", cfg.Jellyfin.ServerURL)
				}
			},
		},
		{
			name:   "missing file returns defaults",
			noFile: true,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Version != DefaultConfig().Version {
					t.Errorf("Version = %d, want %d", cfg.Version, DefaultConfig().Version)
				}
			},
		},
		{
			name:    "malformed TOML returns error",
			config:  "this is not valid toml [[[",
			wantErr: true,
		},
		{
			name:    "invalid value fails validation",
			config:  "version = 2\n[log]\nlevel = \"verbose\"\n",
			wantErr: true,
		},
		{
			name:    "newer schema refused",
			config:  "version = 99\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if !tt.noFile {
				writeConfig(t, dir, tt.config)
			}

			cfg, err := Load(dir)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Migration integration
// ///////////////////////////////////////////////

func TestLoad_Migration(t *testing.T) {
	tests := []struct {
		name         string
		config       string
		wantInterval int
	}{
		{
			name:         "milliseconds rounded up to seconds",
			config:       "[behavior]\nupdate_interval_ms = 2500\n",
			wantInterval: 3,
		},
		{
			name:         "exact seconds",
			config:       "version = 1\n[behavior]\nupdate_interval_ms = 5000\n",
			wantInterval: 5,
		},
		{
			name:         "no interval keeps default",
			config:       "[discord]\napp_id = \"123\"\n",
			wantInterval: 5,
		},
		{
			name:         "current version untouched",
			config:       "version = 2\n[behavior]\npoll_interval_seconds = 7\n",
			wantInterval: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.config)

			cfg, err := Load(dir)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Version != 2 {
				t.Errorf("Version = %d, want 2", cfg.Version)
			}
			if cfg.Behavior.PollIntervalSeconds != tt.wantInterval {
				t.Errorf("PollIntervalSeconds = %d, want %d", cfg.Behavior.PollIntervalSeconds, tt.wantInterval)
			}
		})
	}
}

func TestLoad_MigrationRewritesFile(t *testing.T) {
	dir := t.TempDir()
	original := "[behavior]\nupdate_interval_ms = 4000\n"
	writeConfig(t, dir, original)

	if _, err := Load(dir); err != nil {
		t.Fatalf("Load: %v", err)
	}

	backup, err := os.ReadFile(filepath.Join(dir, "config.toml.bak"))
	if err != nil {
		t.Fatalf("backup not written: %v", err)
	}
	if string(backup) != original {
		t.Errorf("backup = %q, want original content", backup)
	}

	rewritten, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if PeekVersion(rewritten) != 2 {
		t.Errorf("rewritten version = %d, want 2", PeekVersion(rewritten))
	}
	if strings.Contains(string(rewritten), "update_interval_ms") {
		t.Error("rewritten config still contains update_interval_ms")
	}
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

func TestPeekVersion(t *testing.T) {
	tests := []struct {
		name string
		data string
		want int
	}{
		{
			name: "reads version from TOML",
			data: "version = 3\n[discord]\napp_id = \"test\"\n",
			want: 3,
		},
		{
			name: "missing version returns 1",
			data: "[discord]\napp_id = \"test\"\n",
			want: 1,
		},
		{
			name: "unparseable returns 1",
			data: "[[[",
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeekVersion([]byte(tt.data)); got != tt.want {
				t.Errorf("PeekVersion() = %d, want %d", got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// ApplyEnv
// ///////////////////////////////////////////////

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"DISCORD_CLIENT_ID":   "1234567890",
		"JELLYFIN_SERVER_URL": "http://jf.local:8096",
		"JELLYFIN_API_KEY":    "key",
		"JELLYFIN_USER_ID":    "user",
		"UPDATE_INTERVAL":     "1500",
		"LASTFM_USERNAME":     "  alice  ",
	}

	cfg := DefaultConfig()
	applied, err := cfg.ApplyEnv(func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	want := DefaultConfig()
	want.Discord.AppID = "1234567890"
	want.Jellyfin.ServerURL = "http://jf.local:8096"
	want.Jellyfin.APIKey = "key"
	want.Jellyfin.UserID = "user"
	want.Behavior.PollIntervalSeconds = 2
	want.Display.LastFMUsername = "alice"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if len(applied) != len(env) {
		t.Errorf("applied = %v, want %d keys", applied, len(env))
	}
}

func TestConfig_ApplyEnv_EmptyIgnored(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jellyfin.APIKey = "from-file"

	applied, err := cfg.ApplyEnv(func(string) string { return "" })
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("applied = %v, want none", applied)
	}
	if cfg.Jellyfin.APIKey != "from-file" {
		t.Errorf("APIKey = %q, want from-file", cfg.Jellyfin.APIKey)
	}
}

func TestConfig_ApplyEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non-numeric interval", map[string]string{"UPDATE_INTERVAL": "soon"}},
		{"zero interval", map[string]string{"UPDATE_INTERVAL": "0"}},
		{"bad server url", map[string]string{"JELLYFIN_SERVER_URL": "localhost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if _, err := cfg.ApplyEnv(func(k string) string { return tt.env[k] }); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

// ///////////////////////////////////////////////
// Credentials
// ///////////////////////////////////////////////

func TestConfig_RequireCredentials(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(cfg *Config)
		wantErr     bool
		wantMissing bool
	}{
		{
			name: "all present",
			setup: func(cfg *Config) {
				cfg.Discord.AppID = "1234567890"
				cfg.Jellyfin.APIKey = "key"
				cfg.Jellyfin.UserID = "user"
			},
		},
		{
			name:        "nothing set",
			setup:       func(cfg *Config) {},
			wantErr:     true,
			wantMissing: true,
		},
		{
			name: "missing api key",
			setup: func(cfg *Config) {
				cfg.Discord.AppID = "1234567890"
				cfg.Jellyfin.UserID = "user"
			},
			wantErr:     true,
			wantMissing: true,
		},
		{
			name: "non-numeric app id",
			setup: func(cfg *Config) {
				cfg.Discord.AppID = "my-app"
				cfg.Jellyfin.APIKey = "key"
				cfg.Jellyfin.UserID = "user"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.setup(cfg)
			err := cfg.RequireCredentials()
			if (err != nil) != tt.wantErr {
				t.Fatalf("RequireCredentials() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, ErrMissingCredentials); got != tt.wantMissing {
				t.Errorf("errors.Is(ErrMissingCredentials) = %v, want %v", got, tt.wantMissing)
			}
		})
	}
}

func TestConfig_UserIDLooksValid(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"5f1c6d0e-8a3b-4c2d-9e7f-1a2b3c4d5e6f", true},
		{"5f1c6d0e8a3b4c2d9e7f1a2b3c4d5e6f", true},
		{"alice", false},
		{"", false},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Jellyfin.UserID = tt.id
		if got := cfg.UserIDLooksValid(); got != tt.want {
			t.Errorf("UserIDLooksValid(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestConfig_EnsureDeviceID(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.EnsureDeviceID() {
		t.Fatal("EnsureDeviceID() = false on empty id")
	}
	id := cfg.Jellyfin.DeviceID
	if id == "" {
		t.Fatal("device id not assigned")
	}
	if cfg.EnsureDeviceID() {
		t.Error("EnsureDeviceID() = true with an id already set")
	}
	if cfg.Jellyfin.DeviceID != id {
		t.Errorf("device id changed from %q to %q", id, cfg.Jellyfin.DeviceID)
	}
}

// ///////////////////////////////////////////////
// Privacy
// ///////////////////////////////////////////////

func TestConfig_Hidden(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Privacy.IgnorePaths = []string{"/media/private/**", "**/Home Videos/**"}
	cfg.Privacy.IgnoreDevices = []string{"Living Room*"}

	tests := []struct {
		name   string
		path   string
		device string
		want   bool
	}{
		{"private path", "/media/private/clip.mkv", "Laptop", true},
		{"nested private path", "/media/private/a/b/clip.mkv", "Laptop", true},
		{"windows path", `D:\Home Videos\2020\beach.mp4`, "Laptop", true},
		{"ignored device", "/media/movies/film.mkv", "Living Room TV", true},
		{"public", "/media/movies/film.mkv", "Laptop", false},
		{"no path", "", "Laptop", false},
		{"nothing", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.Hidden(tt.path, tt.device); got != tt.want {
				t.Errorf("Hidden(%q, %q) = %v, want %v", tt.path, tt.device, got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Durations
// ///////////////////////////////////////////////

func TestConfig_Durations(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.PollInterval(); got != 5*time.Second {
		t.Errorf("PollInterval() = %v, want 5s", got)
	}
	if got := cfg.ReconnectInterval(); got != 15*time.Second {
		t.Errorf("ReconnectInterval() = %v, want 15s", got)
	}
	if got := cfg.RequestTimeout(); got != 10*time.Second {
		t.Errorf("RequestTimeout() = %v, want 10s", got)
	}
}

// ///////////////////////////////////////////////
// ExampleConfig
// ///////////////////////////////////////////////

func TestExampleConfig(t *testing.T) {
	cfg := ExampleConfig()
	if cfg == nil {
		t.Fatal("ExampleConfig returned nil")
	}
	if cfg.Version != 2 {
		t.Errorf("Version = %d, want 2", cfg.Version)
	}
	if cfg.Discord.AppID != "" || cfg.Jellyfin.APIKey != "" {
		t.Error("example config must not carry credentials")
	}
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		t.Fatalf("failed to marshal ExampleConfig: %v", err)
	}
}

// ///////////////////////////////////////////////
// ConfigDocs completeness
// ///////////////////////////////////////////////

func TestConfigDocsComplete(t *testing.T) {
	fields := collectTOMLFields(reflect.TypeOf(Config{}), "")
	for _, field := range fields {
		if _, ok := ConfigDocs[field]; !ok {
			t.Errorf("ConfigDocs missing entry for field %q", field)
		}
	}
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f] = true
	}
	for key := range ConfigDocs {
		if !known[key] {
			t.Errorf("ConfigDocs has entry for unknown field %q", key)
		}
	}
}

// collectTOMLFields recursively walks a struct type and returns the
// dot-separated TOML key path for every tagged field.
func collectTOMLFields(typ reflect.Type, prefix string) []string {
	var fields []string
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("toml")
		if tag == "" || tag == "-" {
			continue
		}
		if idx := strings.Index(tag, ","); idx != -1 {
			tag = tag[:idx]
		}
		path := tag
		if prefix != "" {
			path = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct {
			fields = append(fields, collectTOMLFields(f.Type, path)...)
		} else {
			fields = append(fields, path)
		}
	}
	return fields
}

// ///////////////////////////////////////////////
// Marshal field order
// ///////////////////////////////////////////////

func TestConfigMarshalFieldOrder(t *testing.T) {
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(DefaultConfig()); err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := buf.String()

	order := []string{"version", "[discord]", "[jellyfin]", "[display]", "[privacy]", "[behavior]", "[log]"}
	for i := 1; i < len(order); i++ {
		bIdx := strings.Index(out, order[i-1])
		aIdx := strings.Index(out, order[i])
		if bIdx < 0 || aIdx < 0 || bIdx > aIdx {
			t.Errorf("expected %q before %q in marshaled output", order[i-1], order[i])
		}
	}
}

// ///////////////////////////////////////////////
// Save
// ///////////////////////////////////////////////

func TestConfig_Save_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	orig := DefaultConfig()
	orig.Discord.AppID = "1234567890"
	orig.Jellyfin.APIKey = "key"
	orig.Behavior.PollIntervalSeconds = 10
	orig.Privacy.IgnoreDevices = []string{"TV*"}

	if err := orig.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("permissions = %o, want 600", perm)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(orig, loaded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

// ///////////////////////////////////////////////
// Validate
// ///////////////////////////////////////////////

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(cfg *Config)
		wantErr bool
	}{
		{
			name:  "default config passes",
			setup: func(cfg *Config) {},
		},
		{
			name:  "uppercase log level",
			setup: func(cfg *Config) { cfg.Log.Level = "DEBUG" },
		},
		{
			name:    "invalid log.level",
			setup:   func(cfg *Config) { cfg.Log.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "max_size_mb = 0",
			setup:   func(cfg *Config) { cfg.Log.MaxSizeMB = 0 },
			wantErr: true,
		},
		{
			name:    "poll_interval_seconds = 0",
			setup:   func(cfg *Config) { cfg.Behavior.PollIntervalSeconds = 0 },
			wantErr: true,
		},
		{
			name:    "negative reconnect_interval_seconds",
			setup:   func(cfg *Config) { cfg.Behavior.ReconnectIntervalSeconds = -1 },
			wantErr: true,
		},
		{
			name:    "request_timeout_seconds = 0",
			setup:   func(cfg *Config) { cfg.Behavior.RequestTimeoutSeconds = 0 },
			wantErr: true,
		},
		{
			name:    "server url without scheme",
			setup:   func(cfg *Config) { cfg.Jellyfin.ServerURL = "jf.local:8096" },
			wantErr: true,
		},
		{
			name:    "ftp server url",
			setup:   func(cfg *Config) { cfg.Jellyfin.ServerURL = "ftp://jf.local" },
			wantErr: true,
		},
		{
			name:    "bad glob",
			setup:   func(cfg *Config) { cfg.Privacy.IgnorePaths = []string{"/media/[abc"} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.setup(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Helpers
// ///////////////////////////////////////////////

// writeConfig writes a TOML config string to config.toml in dir for use
// by [Load] in test cases.
func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
}
