// gen-assets renders the images uploaded to the Discord application: the
// artwork keys shown when a server image is unavailable (movie, episode,
// music, jellyfin) and optional play/pause badges.
//
// Styling comes from data/assets.json. Text glyphs use the font named there,
// either a local file or a Google Fonts download; shapes need no font.
// Output is written to assets/discord/{key}.png.
//
// Usage:
//
//	cd tools/generate-assets && go run .
//	cd tools/generate-assets && go run . -assets ../../data/assets.json -out ../../assets/discord
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/font/opentype"
)

func main() {
	assetsFile := flag.String("assets", "../../data/assets.json", "Path to assets.json")
	outDir := flag.String("out", "../../assets/discord", "Output directory")
	flag.Parse()

	// Font paths in assets.json are relative to the repo root.
	repoRoot, err := filepath.Abs(filepath.Join(filepath.Dir(*assetsFile), ".."))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: resolve repo root: %v\n", err)
		os.Exit(1)
	}

	data, err := LoadAssetData(*assetsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load assets: %v\n", err)
		os.Exit(1)
	}
	if len(data.Assets) == 0 {
		fmt.Fprintln(os.Stderr, "error: no assets defined")
		os.Exit(1)
	}

	var otFont *opentype.Font
	if data.NeedsFont() {
		client := &http.Client{Timeout: 15 * time.Second}
		fontBytes, err := resolveFont(client, data, repoRoot, filepath.Join(repoRoot, "assets", "fonts", ".cache"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if otFont, err = opentype.Parse(fontBytes); err != nil {
			fmt.Fprintf(os.Stderr, "error: parse font: %v\n", err)
			os.Exit(1)
		}
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error: create output dir: %v\n", err)
		os.Exit(1)
	}

	for _, name := range data.Names() {
		style := data.Resolved(name)
		png, err := RenderAsset(style, otFont)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: render %s: %v\n", name, err)
			os.Exit(1)
		}
		out := filepath.Join(*outDir, name+".png")
		if err := os.WriteFile(out, png, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "error: write %s: %v\n", out, err)
			os.Exit(1)
		}
		label := style.Glyph
		if style.Shape != "" {
			label = style.Shape
		}
		fmt.Printf("  %s.png (%s)\n", name, label)
	}
	fmt.Printf("Done. Generated %d assets.\n", len(data.Assets))
}

// resolveFont loads the local font when present and falls back to the
// Google Fonts spec.
func resolveFont(client *http.Client, data *AssetData, repoRoot, cacheDir string) ([]byte, error) {
	if data.Font != "" {
		path := filepath.Join(repoRoot, data.Font)
		if b, err := os.ReadFile(path); err == nil {
			fmt.Printf("font: %s (local)\n", data.Font)
			return toSFNT(path, b)
		}
	}
	if data.FontFallback != "" {
		fmt.Printf("font: %s\n", data.FontFallback)
		return FetchGoogleFont(client, data.FontFallback, cacheDir)
	}
	return nil, fmt.Errorf("no font configured (set \"font\" or \"font_fallback\" in assets.json)")
}
