// config.go defines the asset list read from data/assets.json. [AssetData]
// holds shared styling plus one [AssetStyle] per Discord asset key.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
)

// Shapes drawn without a font.
const (
	ShapePlay  = "play"
	ShapePause = "pause"
)

// AssetStyle describes how one asset is drawn.
type AssetStyle struct {
	// Glyph is the text drawn in the center. Empty means the first letter of
	// the asset key, upper-cased.
	Glyph string `json:"glyph,omitempty"`
	// Shape replaces the glyph with a vector shape ("play" or "pause").
	Shape string `json:"shape,omitempty"`
	// BgColor is the background hex color (e.g. "#00A4DC").
	BgColor string `json:"bg_color,omitempty"`
	// FgColor is the glyph or shape hex color.
	FgColor string `json:"fg_color,omitempty"`
	// Size is the square image dimension in pixels.
	Size int `json:"size,omitempty"`
	// FontSize is the font size in points at 72 DPI.
	FontSize int `json:"font_size,omitempty"`
}

// AssetData is the content of data/assets.json.
type AssetData struct {
	// Font is a local font file path relative to the repo root.
	Font string `json:"font,omitempty"`
	// FontFallback is a Google Fonts spec (e.g. "google:Inter:800") used when
	// Font is unset or missing.
	FontFallback string `json:"font_fallback,omitempty"`
	// Defaults is inherited by every asset.
	Defaults AssetStyle `json:"defaults"`
	// Assets maps Discord asset keys to their styling overrides.
	Assets map[string]AssetStyle `json:"assets"`
}

// Resolved returns the effective style for the named asset.
func (d *AssetData) Resolved(name string) AssetStyle {
	s := d.Defaults
	if o, ok := d.Assets[name]; ok {
		merge(&s, o)
	}
	if s.Glyph == "" && s.Shape == "" && name != "" {
		s.Glyph = strings.ToUpper(name[:1])
	}
	return s
}

// Names returns the asset keys in sorted order.
func (d *AssetData) Names() []string {
	names := make([]string, 0, len(d.Assets))
	for name := range d.Assets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NeedsFont reports whether any asset draws text.
func (d *AssetData) NeedsFont() bool {
	for _, name := range d.Names() {
		if d.Resolved(name).Shape == "" {
			return true
		}
	}
	return false
}

// merge applies non-zero fields from src onto dst.
func merge(dst *AssetStyle, src AssetStyle) {
	if src.Glyph != "" {
		dst.Glyph = src.Glyph
	}
	if src.Shape != "" {
		dst.Shape = src.Shape
	}
	if src.BgColor != "" {
		dst.BgColor = src.BgColor
	}
	if src.FgColor != "" {
		dst.FgColor = src.FgColor
	}
	if src.Size != 0 {
		dst.Size = src.Size
	}
	if src.FontSize != 0 {
		dst.FontSize = src.FontSize
	}
}

// LoadAssetData reads and checks an assets.json file.
func LoadAssetData(path string) (*AssetData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ad AssetData
	if err := json.Unmarshal(data, &ad); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for name, s := range ad.Assets {
		switch s.Shape {
		case "", ShapePlay, ShapePause:
		default:
			return nil, fmt.Errorf("asset %q: unknown shape %q", name, s.Shape)
		}
	}
	return &ad, nil
}
