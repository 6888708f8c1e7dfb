package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
// The genconfig tool uses [FieldDoc] values to annotate the generated config.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "jellyfin.user_id")
// to their [FieldDoc] entries. The genconfig tool uses this map to annotate the
// generated config.default.toml with inline comments and alternative examples.
var ConfigDocs = map[string]FieldDoc{
	// ── Root ──────────────────────────────────────────────────────
	"version": {
		Comment: "Config schema version. Do not edit.",
	},

	// ── Discord ──────────────────────────────────────────────────
	"discord.app_id": {
		Comment: "Numeric application ID from the Discord developer portal.\nEnvironment: DISCORD_CLIENT_ID",
		Alternatives: []string{
			`app_id = "1234567890123456789"`,
		},
	},

	// ── Jellyfin ─────────────────────────────────────────────────
	"jellyfin.server_url": {
		Comment: "Server root. Both http://host:8096 and reverse-proxied https URLs work;\nthe /emby prefix is tried automatically.\nEnvironment: JELLYFIN_SERVER_URL",
		Alternatives: []string{
			`server_url = "https://media.example.com"`,
		},
	},
	"jellyfin.api_key": {
		Comment: "API key from Dashboard > API Keys.\nEnvironment: JELLYFIN_API_KEY",
	},
	"jellyfin.user_id": {
		Comment: "Id of the user whose playback is shown. Run with -list-users to find it.\nEnvironment: JELLYFIN_USER_ID",
	},
	"jellyfin.device_id": {
		Comment: "Identifies this daemon to the server. Generated on first start.",
	},

	// ── Display ──────────────────────────────────────────────────
	"display.show_artwork": {
		Comment: "Use the server's poster art as the large image.\nDiscord must be able to reach the server URL for images to load.",
	},
	"display.show_buttons": {
		Comment: "Add Last.fm buttons while music is playing.",
	},
	"display.playing_icon": {
		Comment: "Small image shown while playing. Empty uses the built-in icon.\nAccepts an uploaded asset key or an https URL.",
		Alternatives: []string{
			`playing_icon = "play"`,
		},
	},
	"display.paused_icon": {
		Comment: "Small image shown while paused. Empty uses the built-in icon.",
		Alternatives: []string{
			`paused_icon = "pause"`,
		},
	},
	"display.lastfm_username": {
		Comment: "Adds a \"View Listening History\" button linking to this Last.fm profile.\nEnvironment: LASTFM_USERNAME",
	},

	// ── Privacy ──────────────────────────────────────────────────
	"privacy.ignore_paths": {
		Comment: "Glob patterns for server paths that are never shown (doublestar syntax).",
		Alternatives: []string{
			`ignore_paths = ["/media/private/**", "**/Home Videos/**"]`,
		},
	},
	"privacy.ignore_devices": {
		Comment: "Glob patterns for device names that are never shown.",
		Alternatives: []string{
			`ignore_devices = ["Living Room*"]`,
		},
	},

	// ── Behavior ─────────────────────────────────────────────────
	"behavior.poll_interval_seconds": {
		Comment: "Seconds between session polls.\nEnvironment: UPDATE_INTERVAL (milliseconds)",
	},
	"behavior.reconnect_interval_seconds": {
		Comment: "Seconds between Discord connection attempts.",
	},
	"behavior.request_timeout_seconds": {
		Comment: "Timeout for each request to the server.",
	},

	// ── Log ──────────────────────────────────────────────────────
	"log.level": {
		Comment: "Minimum log level",
		Alternatives: []string{
			`level = "debug"`,
			`level = "trace"`,
		},
	},
	"log.max_size_mb": {
		Comment: "Rotate the log file after this many megabytes.",
	},
}
