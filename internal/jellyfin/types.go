package jellyfin

import "time"

// ///////////////////////////////////////////////
// Item Kinds
// ///////////////////////////////////////////////

// Item type values reported in [MediaItem.Type]. Any other value is treated
// as a generic media item.
const (
	TypeMovie   = "Movie"
	TypeEpisode = "Episode"
	TypeAudio   = "Audio"
)

// TicksPerSecond converts Jellyfin's hundred-nanosecond ticks to seconds.
const TicksPerSecond = 10_000_000

// ///////////////////////////////////////////////
// Wire Types
// ///////////////////////////////////////////////

// Session is one playback session as returned by GET /Sessions.
type Session struct {
	// ID is the server-assigned session identifier.
	ID string `json:"Id"`
	// UserID identifies the user owning the session.
	UserID string `json:"UserId"`
	// UserName is the display name of the owning user.
	UserName string `json:"UserName,omitempty"`
	// DeviceName is the user-visible name of the playback device.
	DeviceName string `json:"DeviceName"`
	// Client is the name of the client application (e.g. "Jellyfin Android").
	Client string `json:"Client"`
	// NowPlayingItem is the item being played, or nil when idle.
	NowPlayingItem *MediaItem `json:"NowPlayingItem,omitempty"`
	// PlayState holds the pause flag and playback position.
	PlayState *PlayState `json:"PlayState,omitempty"`
}

// Idle reports whether the session lacks either a playing item or a play state.
func (s Session) Idle() bool {
	return s.NowPlayingItem == nil || s.PlayState == nil
}

// MediaItem describes the item being played in a session. Which optional
// fields are populated depends on Type.
type MediaItem struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
	// Type is the item kind: "Movie", "Episode", "Audio", or another server type.
	Type string `json:"Type"`
	// Path is the file path on the server, used for privacy filtering.
	Path string `json:"Path,omitempty"`

	// Movie

	ProductionYear *int `json:"ProductionYear,omitempty"`

	// Episode

	SeriesName string `json:"SeriesName,omitempty"`
	SeriesID   string `json:"SeriesId,omitempty"`
	// ParentIndexNumber is the season number.
	ParentIndexNumber *int `json:"ParentIndexNumber,omitempty"`
	// IndexNumber is the episode number within the season.
	IndexNumber *int `json:"IndexNumber,omitempty"`

	// Audio

	Artists []string `json:"Artists,omitempty"`

	// RunTimeTicks is the total duration in hundred-nanosecond ticks.
	RunTimeTicks *int64 `json:"RunTimeTicks,omitempty"`
}

// DurationSeconds returns the item's total duration in whole seconds, or 0
// when unknown.
func (m *MediaItem) DurationSeconds() int64 {
	if m == nil || m.RunTimeTicks == nil {
		return 0
	}
	return *m.RunTimeTicks / TicksPerSecond
}

// Runtime returns the item's total duration at tick precision, or 0 when
// unknown.
func (m *MediaItem) Runtime() time.Duration {
	if m == nil || m.RunTimeTicks == nil {
		return 0
	}
	return ticksToDuration(*m.RunTimeTicks)
}

// PlayState is the playback state of a session.
type PlayState struct {
	IsPaused bool `json:"IsPaused"`
	// PositionTicks is the current position in hundred-nanosecond ticks.
	PositionTicks *int64 `json:"PositionTicks,omitempty"`
}

// PositionSeconds returns the playback position in whole seconds, or 0 when
// unknown.
func (p *PlayState) PositionSeconds() int64 {
	if p == nil || p.PositionTicks == nil {
		return 0
	}
	return *p.PositionTicks / TicksPerSecond
}

// Position returns the playback position at tick precision, or 0 when
// unknown.
func (p *PlayState) Position() time.Duration {
	if p == nil || p.PositionTicks == nil {
		return 0
	}
	return ticksToDuration(*p.PositionTicks)
}

func ticksToDuration(ticks int64) time.Duration {
	return time.Duration(ticks) * (time.Second / TicksPerSecond)
}

// User is a server account as returned by GET /Users.
type User struct {
	ID               string `json:"Id"`
	Name             string `json:"Name"`
	LastActivityDate string `json:"LastActivityDate,omitempty"`
}
