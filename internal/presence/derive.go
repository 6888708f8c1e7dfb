package presence

import (
	"time"

	"tools.zach/dev/jellycord/internal/jellyfin"
	"tools.zach/dev/jellycord/internal/render"
)

// ///////////////////////////////////////////////
// Derivation Options
// ///////////////////////////////////////////////

// Default badge icons, used when no icon is configured.
const (
	DefaultPlayingIcon = "https://cdn.sillydev.co.uk/u/2L9gCJFIAcl4c2L.png"
	DefaultPausedIcon  = "https://cdn.sillydev.co.uk/u/TIm2kTVAzC8XWNM.png"
)

// badgePaused takes precedence over every kind-specific badge text.
const badgePaused = "Paused"

// ImageResolver turns a content identifier into an image reference.
type ImageResolver interface {
	ImageURL(itemID, imageType string) string
}

// DeriveOptions carries everything [Derive] needs besides the session.
type DeriveOptions struct {
	// Now is the wall-clock instant the countdown is anchored to.
	Now time.Time
	// Images resolves artwork. Nil leaves only the logical artwork key.
	Images ImageResolver
	// PlayingIcon and PausedIcon are the badge references.
	PlayingIcon string
	PausedIcon  string
	// LastFMUser is the username for the listening history link.
	LastFMUser string
	// ShowArtwork enables resolved artwork images.
	ShowArtwork bool
	// ShowButtons enables external link buttons.
	ShowButtons bool
}

// ///////////////////////////////////////////////
// Derive
// ///////////////////////////////////////////////

// Derive maps a non-idle session to the activity to display. It reads only
// its arguments and never modifies s. An idle session yields nil.
func Derive(s jellyfin.Session, opts DeriveOptions) *Activity {
	if s.Idle() {
		return nil
	}
	item := s.NowPlayingItem
	state := s.PlayState
	paused := state.IsPaused
	d := variantOf(item).describe(opts)

	current := state.PositionSeconds()
	total := item.DurationSeconds()
	position, runtime := state.Position(), item.Runtime()

	if d.showsBar {
		bar := ""
		switch {
		case current > 0 && total > 0:
			bar = render.PlayerBar(current, total, paused, IsMobile(s), true)
		case IsMobile(s):
			bar = render.MobileMarker
		}
		d.subtext = fold(d.subtext, bar, d.barReplaces)
	}

	a := &Activity{
		Details: render.Truncate(d.headline, render.MaxLength),
		State:   render.Truncate(d.subtext, render.MaxLength),
		Assets: Assets{
			LargeKey:   d.key,
			LargeText:  render.Truncate(d.headline, render.MaxLength),
			SmallImage: badgeIcon(paused, opts),
			SmallText:  d.badge,
		},
		Buttons: d.buttons,
	}
	if paused {
		a.Assets.SmallText = badgePaused
	}
	if opts.ShowArtwork && opts.Images != nil && d.artworkID != "" {
		a.Assets.LargeImage = opts.Images.ImageURL(d.artworkID, jellyfin.ImagePrimary)
	}
	if position > 0 && runtime > 0 && !paused {
		a.Timestamps = Timestamps{
			Start: opts.Now.Add(-position).UnixMilli(),
			End:   opts.Now.Add(max(runtime-position, 0)).UnixMilli(),
		}
	}
	return a
}

// fold merges the player bar into subtext.
func fold(subtext, bar string, replace bool) string {
	switch {
	case bar == "":
		return subtext
	case replace || subtext == "":
		return bar
	default:
		return subtext + render.Separator + bar
	}
}

func badgeIcon(paused bool, opts DeriveOptions) string {
	if paused {
		if opts.PausedIcon != "" {
			return opts.PausedIcon
		}
		return DefaultPausedIcon
	}
	if opts.PlayingIcon != "" {
		return opts.PlayingIcon
	}
	return DefaultPlayingIcon
}
