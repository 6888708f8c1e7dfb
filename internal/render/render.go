// Package render turns playback positions into the short text fragments shown
// on the presence card: time codes, a glyph progress bar, a percentage, and
// the composite player bar.
//
// Every function is pure. [PlayerBar] guarantees its output never exceeds
// [MaxLength] display units; see [PlayerBar] for the exact degradation order
// applied when the composed text is too long.
package render

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf16"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

const (
	// MaxLength is the longest string, in display units, that the presence
	// surface accepts for a single text field.
	MaxLength = 128

	// ellipsis closes a hard-truncated string; cutting at MaxLength-3 keeps
	// the result at exactly MaxLength.
	ellipsis = "..."

	// Progress bar widths for the full bar and the two shrink steps.
	barCells      = 12
	barCellsShort = 8
	barCellsMin   = 6

	filledCell = "▰"
	emptyCell  = "▱"

	// MobileIcon marks a session playing on a phone or tablet.
	MobileIcon = "📱"
	// MobileMarker is the plain marker used when no player bar can be drawn.
	MobileMarker = MobileIcon + " Mobile"

	// Separator joins segments of a presence line.
	Separator = " │ "

	mobileSuffix = Separator + MobileMarker
)

// ///////////////////////////////////////////////
// Time Formatting
// ///////////////////////////////////////////////

// FormatTime renders seconds as H:MM:SS when at least an hour, otherwise
// M:SS. Zero and negative values render as "0:00".
func FormatTime(seconds int64) string {
	if seconds <= 0 {
		return "0:00"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatRemaining renders a coarse "time left" label: "1h 5m left",
// "2h left", or "5m left". Zero and negative values render as "0m left".
func FormatRemaining(seconds int64) string {
	if seconds <= 0 {
		return "0m left"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm left", h, m)
	case h > 0:
		return fmt.Sprintf("%dh left", h)
	default:
		return fmt.Sprintf("%dm left", m)
	}
}

// ///////////////////////////////////////////////
// Progress
// ///////////////////////////////////////////////

// ratio returns current/total clamped to [0, 1].
func ratio(current, total int64) float64 {
	r := float64(current) / float64(total)
	return math.Min(math.Max(r, 0), 1)
}

// ProgressBar draws length cells, filled in proportion to current/total and
// rounded to the nearest cell. A non-positive total yields "".
func ProgressBar(current, total int64, length int) string {
	if total <= 0 || length <= 0 {
		return ""
	}
	filled := int(math.Round(ratio(current, total) * float64(length)))
	return strings.Repeat(filledCell, filled) + strings.Repeat(emptyCell, length-filled)
}

// Percentage returns the rounded percentage of current/total followed by "%".
// A non-positive total yields "0%".
func Percentage(current, total int64) string {
	if total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%d%%", int(math.Round(ratio(current, total)*100)))
}

// ///////////////////////////////////////////////
// Player Bar
// ///////////////////////////////////////////////

// Len returns the display length of s in UTF-16 code units, which is how the
// presence surface measures text. Astral-plane emoji count as two.
func Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// Truncate cuts s so that it fits in limit display units, appending "..."
// when anything was removed. Runes are never split.
func Truncate(s string, limit int) string {
	if Len(s) <= limit {
		return s
	}
	keep := limit - len(ellipsis)
	var b strings.Builder
	used := 0
	for _, r := range s {
		w := utf16.RuneLen(r)
		if used+w > keep {
			break
		}
		b.WriteRune(r)
		used += w
	}
	b.WriteString(ellipsis)
	return b.String()
}

// barLayout is the structured form of a player bar. Keeping the segments
// apart lets the degradation ladder swap or drop one without string surgery.
type barLayout struct {
	times   string
	bar     string
	percent string
	mobile  bool
}

func (l barLayout) String() string {
	var b strings.Builder
	b.WriteString(l.times)
	if l.bar != "" {
		b.WriteString(" ")
		b.WriteString(l.bar)
	}
	if l.percent != "" {
		b.WriteString(" ")
		b.WriteString(l.percent)
	}
	if l.mobile {
		b.WriteString(mobileSuffix)
	}
	return b.String()
}

// PlayerBar composes "<elapsed> / <total> <bar> <pct> │ 📱 Mobile". The bar
// and percentage are only included when includeBar is set; the mobile suffix
// only when mobile is set. A non-positive current or total yields "".
//
// When the composition exceeds [MaxLength], these steps run in order, each at
// most once and only while the text is still too long:
//
//  1. drop the mobile suffix
//  2. redraw the bar with 8 cells
//  3. redraw the bar with 6 cells
//  4. drop the mobile suffix if it is somehow still present
//  5. cut to 125 units and append "..."
//
// The paused flag does not change the text; it is accepted so callers can
// pass the full playback state.
func PlayerBar(current, total int64, paused, mobile, includeBar bool) string {
	return playerBar(current, total, mobile, includeBar, MaxLength)
}

// playerBar is [PlayerBar] with an adjustable budget so the degradation
// ladder can be exercised with short inputs.
func playerBar(current, total int64, mobile, includeBar bool, limit int) string {
	if current <= 0 || total <= 0 {
		return ""
	}

	l := barLayout{
		times:  FormatTime(current) + " / " + FormatTime(total),
		mobile: mobile,
	}
	if includeBar {
		l.bar = ProgressBar(current, total, barCells)
		l.percent = Percentage(current, total)
	}

	out := l.String()
	if Len(out) <= limit {
		return out
	}

	steps := []func(){
		func() { l.mobile = false },
		func() {
			if l.bar != "" {
				l.bar = ProgressBar(current, total, barCellsShort)
			}
		},
		func() {
			if l.bar != "" {
				l.bar = ProgressBar(current, total, barCellsMin)
			}
		},
		func() { l.mobile = false },
	}
	for _, step := range steps {
		step()
		out = l.String()
		if Len(out) <= limit {
			return out
		}
	}

	return Truncate(out, limit)
}
