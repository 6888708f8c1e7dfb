// Package presence builds the Rich Presence payload shown for a Jellyfin
// playback session.
//
// The package provides two pure operations:
//
//   - Selection: [Select] picks which of a user's sessions to show, preferring
//     mobile devices ([IsMobile]).
//   - Derivation: [Derive] maps the selected session to an [Activity], with
//     one rule set per media kind (movie, episode, audio, other).
//
// Neither operation performs I/O. The current time and image URL resolution
// are injected through [DeriveOptions].
package presence

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
)

// ///////////////////////////////////////////////
// Activity Types
// ///////////////////////////////////////////////

// Activity is the presence payload derived from one playback session. It is
// built once by [Derive] and never modified afterwards.
type Activity struct {
	// Details is the headline (e.g. "Show │ Pilot │ S01E05").
	Details string
	// State is the subtext, usually carrying the player bar.
	State string
	// Timestamps drives the live countdown; zero values mean no countdown.
	Timestamps Timestamps
	// Assets holds the artwork and playback badge.
	Assets Assets
	// Buttons is the list of external links (max 2).
	Buttons []Button
}

// Timestamps are Unix milliseconds bounding the playback countdown.
type Timestamps struct {
	// Start is when playback would have started had it run uninterrupted.
	Start int64
	// End is when playback is expected to finish.
	End int64
}

// Assets holds the large artwork and the small playback badge.
type Assets struct {
	// LargeKey is the logical artwork key ("movie", "episode", "music", "jellyfin").
	LargeKey string
	// LargeImage is the resolved artwork URL, empty when unavailable.
	LargeImage string
	// LargeText is the tooltip on the artwork.
	LargeText string
	// SmallImage is the playing or paused icon reference.
	SmallImage string
	// SmallText is the badge tooltip (e.g. "Watching TV").
	SmallText string
}

// Button is a clickable external link.
type Button struct {
	Label string
	URL   string
}

// LargeImageRef returns the reference to hand to the display surface: the
// resolved URL when known, else the logical key.
func (a Assets) LargeImageRef() string {
	if a.LargeImage != "" {
		return a.LargeImage
	}
	return a.LargeKey
}

// HasCountdown reports whether both countdown timestamps are set.
func (a *Activity) HasCountdown() bool {
	return a != nil && a.Timestamps.Start != 0 && a.Timestamps.End != 0
}

// Hash returns a digest of everything visible except the countdown
// timestamps, which move on every poll. Two activities with equal hashes look
// the same on the card apart from the timer.
func (a *Activity) Hash() string {
	if a == nil {
		return ""
	}
	c := *a
	c.Timestamps = Timestamps{}
	data, err := json.Marshal(c)
	if err != nil {
		slog.Warn("failed to hash activity", "error", err)
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
