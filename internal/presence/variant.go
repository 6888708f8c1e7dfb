package presence

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"tools.zach/dev/jellycord/internal/jellyfin"
	"tools.zach/dev/jellycord/internal/render"
)

// ///////////////////////////////////////////////
// Kind Variants
// ///////////////////////////////////////////////

// Artwork keys used when no resolved image is available.
const (
	KeyMovie   = "movie"
	KeyEpisode = "episode"
	KeyMusic   = "music"
	KeyDefault = "jellyfin"
)

// Fallback labels for missing item fields.
const (
	unknownTitle  = "Unknown"
	unknownSeries = "Unknown Series"
	unknownArtist = "Unknown Artist"
	genericMedia  = "Media"
)

const (
	lastFMBase         = "https://www.last.fm"
	lastFMTrackLabel   = "View on Last.fm"
	lastFMHistoryLabel = "View Listening History"
)

// description is the kind-specific part of an activity.
type description struct {
	headline string
	subtext  string
	key      string
	// artworkID is the item whose image is used as artwork.
	artworkID string
	badge     string
	buttons   []Button
	// barReplaces is true when the player bar replaces the subtext instead of
	// being appended to it.
	barReplaces bool
	// showsBar is false for kinds that never carry a player bar.
	showsBar bool
}

// variant is the closed set of media kinds. Only the types in this file
// implement it; [variantOf] is the single constructor.
type variant interface {
	describe(opts DeriveOptions) description
}

type (
	movieItem   struct{ item *jellyfin.MediaItem }
	episodeItem struct{ item *jellyfin.MediaItem }
	audioItem   struct{ item *jellyfin.MediaItem }
	otherItem   struct{ item *jellyfin.MediaItem }
)

// variantOf classifies item by its Type field.
func variantOf(item *jellyfin.MediaItem) variant {
	switch item.Type {
	case jellyfin.TypeMovie:
		return movieItem{item}
	case jellyfin.TypeEpisode:
		return episodeItem{item}
	case jellyfin.TypeAudio:
		return audioItem{item}
	default:
		return otherItem{item}
	}
}

// title returns the item name or the generic fallback.
func title(item *jellyfin.MediaItem) string {
	if item.Name != "" {
		return item.Name
	}
	return unknownTitle
}

func (v movieItem) describe(DeriveOptions) description {
	d := description{
		headline:  title(v.item),
		key:       KeyMovie,
		artworkID: v.item.ID,
		badge:     "Watching Movie",
		showsBar:  true,
	}
	if v.item.ProductionYear != nil && *v.item.ProductionYear > 0 {
		d.subtext = strconv.Itoa(*v.item.ProductionYear)
	}
	return d
}

func (v episodeItem) describe(DeriveOptions) description {
	series := v.item.SeriesName
	if series == "" {
		series = unknownSeries
	}

	headline := series
	if t := title(v.item); t != series {
		headline += render.Separator + t
	}
	if code := episodeCode(v.item); code != "" {
		headline += render.Separator + code
	}

	artwork := v.item.SeriesID
	if artwork == "" {
		artwork = v.item.ID
	}

	return description{
		headline:    headline,
		key:         KeyEpisode,
		artworkID:   artwork,
		badge:       "Watching TV",
		barReplaces: true,
		showsBar:    true,
	}
}

// episodeCode renders "S01E05". The season defaults to 0; without an episode
// index there is no code.
func episodeCode(item *jellyfin.MediaItem) string {
	if item.IndexNumber == nil || *item.IndexNumber <= 0 {
		return ""
	}
	season := 0
	if item.ParentIndexNumber != nil {
		season = *item.ParentIndexNumber
	}
	return fmt.Sprintf("S%02dE%02d", season, *item.IndexNumber)
}

func (v audioItem) describe(opts DeriveOptions) description {
	artist := ""
	if len(v.item.Artists) > 0 {
		artist = v.item.Artists[0]
	}
	shown := artist
	if shown == "" {
		shown = unknownArtist
	}

	t := title(v.item)
	d := description{
		headline:  "🎵 Playing song: " + t,
		subtext:   "by " + shown,
		key:       KeyMusic,
		artworkID: v.item.ID,
		badge:     "Playing Song",
	}
	if opts.ShowButtons {
		d.buttons = lastFMButtons(artist, v.item.Name, opts.LastFMUser)
	}
	return d
}

// lastFMButtons links the track on Last.fm and the user's listening history.
// Both require a known artist and title. The history link is omitted when no
// username is configured.
func lastFMButtons(artist, track, user string) []Button {
	artist = lastFMSegment(artist)
	track = lastFMSegment(track)
	if artist == "" || track == "" {
		return nil
	}
	buttons := []Button{{
		Label: lastFMTrackLabel,
		URL:   lastFMBase + "/music/" + artist + "/_/" + track,
	}}
	if user = strings.TrimSpace(user); user != "" {
		buttons = append(buttons, Button{
			Label: lastFMHistoryLabel,
			URL:   lastFMBase + "/user/" + url.PathEscape(user),
		})
	}
	return buttons
}

// lastFMSegment collapses whitespace and query-escapes s, so spaces become
// "+" the way Last.fm spells its URLs.
func lastFMSegment(s string) string {
	return url.QueryEscape(strings.Join(strings.Fields(s), " "))
}

func (v otherItem) describe(DeriveOptions) description {
	kind := v.item.Type
	if kind == "" {
		kind = genericMedia
	}
	return description{
		headline:  title(v.item),
		subtext:   kind,
		key:       KeyDefault,
		artworkID: v.item.ID,
		badge:     "Playing",
		showsBar:  true,
	}
}
